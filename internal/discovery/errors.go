// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package discovery

import "github.com/samber/oops"

// Error codes for discovery failures.
const (
	CodeManifestInvalid = "MANIFEST_INVALID"
	CodeDirUnreadable   = "PLUGIN_DIR_UNREADABLE"
	CodeResolveFailed   = "PLUGIN_RESOLVE_FAILED"
	CodeSchemaInvalid   = "MANIFEST_SCHEMA_INVALID"
)

func errManifest(format string, args ...any) error {
	return oops.In("discovery").Code(CodeManifestInvalid).Errorf(format, args...)
}

func errManifestWrap(err error, format string, args ...any) error {
	return oops.In("discovery").Code(CodeManifestInvalid).Wrapf(err, format, args...)
}

func errDir(err error, dir string) error {
	return oops.In("discovery").Code(CodeDirUnreadable).
		With("dir", dir).
		Wrapf(err, "failed to read plugins directory")
}

func errResolve(err error, name, dir string) error {
	return oops.In("discovery").Code(CodeResolveFailed).
		With("plugin", name).
		With("dir", dir).
		Wrapf(err, "resolve plugin %s", name)
}
