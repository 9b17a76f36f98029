// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package plugin

import (
	"encoding/json"
	"strings"

	"github.com/samber/oops"

	"github.com/plugger/plugger/pkg/errutil"
	"github.com/plugger/plugger/pkg/metadata"
)

// Error codes for plugin registry and lifecycle failures.
const (
	CodeConflict        = "PLUGIN_CONFLICT"
	CodeRequirement     = "PLUGIN_REQUIREMENT"
	CodeCycle           = "PLUGIN_CYCLE"
	CodeNotLoaded       = "PLUGIN_NOT_LOADED"
	CodeInitialize      = "PLUGIN_INITIALIZE"
	CodeInvalid         = "PLUGIN_INVALID"
	CodeSessionCanceled = "PLUGIN_SESSION_CANCELED"
	CodeCrashed         = "PLUGIN_CRASHED"
)

// ErrConflict creates an error for a name that is already registered.
func ErrConflict(name, reason string) error {
	return oops.Code(CodeConflict).
		With("plugin", name).
		Errorf("%s ('%s')", reason, name)
}

// ErrNotLoaded creates an error for an operation on an unregistered plugin.
func ErrNotLoaded(name string) error {
	return oops.Code(CodeNotLoaded).
		With("plugin", name).
		Errorf("plugin is not loaded ('%s')", name)
}

// ErrInitialize creates an error for a violated initialization precondition.
func ErrInitialize(name, reason string) error {
	return oops.Code(CodeInitialize).
		With("plugin", name).
		Errorf("plugin %s ('%s')", reason, name)
}

// ErrInvalid creates an error for an invalid plugin definition.
func ErrInvalid(format string, args ...any) error {
	return oops.Code(CodeInvalid).Errorf(format, args...)
}

// ErrMissingRequirement creates an error for a dependency that is not registered.
func ErrMissingRequirement(required, requiredBy string) error {
	return oops.Code(CodeRequirement).
		With("plugin", requiredBy).
		With("requires", required).
		Errorf("required plugin is not loaded -> '%s' (required by '%s')", required, requiredBy)
}

// ErrSelfRequirement creates an error for a plugin that requires itself.
func ErrSelfRequirement(name string) error {
	return oops.Code(CodeRequirement).
		With("plugin", name).
		With("requires", name).
		Errorf("plugin requires itself ('%s')", name)
}

// ErrRequirementNotInitialized creates an error for a dependency that is registered but not initialized.
func ErrRequirementNotInitialized(required, requiredBy string) error {
	return oops.Code(CodeRequirement).
		With("plugin", requiredBy).
		With("requires", required).
		Errorf("required plugin is not initialized -> '%s' (required by '%s')", required, requiredBy)
}

// ErrMetadataMismatch creates an error for a dependency whose metadata does
// not satisfy the requirement. Both records are embedded in the message.
func ErrMetadataMismatch(requiredBy string, required, loaded metadata.Metadata) error {
	return oops.Code(CodeRequirement).
		With("plugin", requiredBy).
		With("requires", required.Name()).
		Errorf("required plugin's metadata does not match loaded plugin's metadata (required by '%s'): required %s, loaded %s",
			requiredBy, encode(required), encode(loaded))
}

// ErrRequiredBy creates an error for a plugin still depended upon by initialized plugins.
func ErrRequiredBy(name string, blockers []string) error {
	return oops.Code(CodeRequirement).
		With("plugin", name).
		With("blockers", blockers).
		Errorf("plugin '%s' is required by %d initialized plugins: %s", name, len(blockers), strings.Join(blockers, ", "))
}

// ErrNotRequired creates an error for removing a requirement that was never declared.
func ErrNotRequired(name, plugin string) error {
	return oops.Code(CodeRequirement).
		With("plugin", plugin).
		With("requires", name).
		Errorf("plugin with the name '%s' is not required", name)
}

// ErrCycle creates an error for circular requirements. path lists the plugin
// names along the cycle, starting and ending with the same name.
func ErrCycle(path []string) error {
	return oops.Code(CodeCycle).
		With("cycle", path).
		Errorf("circular requirement detected: %s", strings.Join(path, " -> "))
}

// ErrSessionCanceled creates an error for a session wait that ended with its context.
func ErrSessionCanceled(name string, cause error) error {
	return oops.Code(CodeSessionCanceled).
		With("plugin", name).
		Wrapf(cause, "waiting for session on '%s'", name)
}

// errCrashed wraps an error re-raised by a plugin's error callback.
func errCrashed(name string, event Event, err error) error {
	return oops.Code(CodeCrashed).
		With("plugin", name).
		With("event", string(event)).
		Wrapf(err, "plugin '%s' crashed during %s", name, event)
}

// IsConflict reports whether err is a registration conflict.
func IsConflict(err error) bool { return errutil.HasCode(err, CodeConflict) }

// IsRequirement reports whether err is an unsatisfied requirement.
func IsRequirement(err error) bool { return errutil.HasCode(err, CodeRequirement) }

// IsCycle reports whether err is a circular requirement.
func IsCycle(err error) bool { return errutil.HasCode(err, CodeCycle) }

// IsNotLoaded reports whether err targets an unregistered plugin.
func IsNotLoaded(err error) bool { return errutil.HasCode(err, CodeNotLoaded) }

// IsInitialize reports whether err is a violated initialization precondition.
func IsInitialize(err error) bool { return errutil.HasCode(err, CodeInitialize) }

// IsInvalid reports whether err is an invalid plugin definition.
func IsInvalid(err error) bool { return errutil.HasCode(err, CodeInvalid) }

// IsCanceled reports whether err is an abandoned session wait.
func IsCanceled(err error) bool { return errutil.HasCode(err, CodeSessionCanceled) }

// IsCrashed reports whether err was re-raised by a plugin's error callback.
func IsCrashed(err error) bool { return errutil.HasCode(err, CodeCrashed) }

func encode(md metadata.Metadata) string {
	data, err := json.Marshal(md)
	if err != nil {
		return "<unencodable>"
	}
	return string(data)
}
