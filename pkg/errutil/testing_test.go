// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/plugger/plugger/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("PLUGIN_CONFLICT").Errorf("duplicate plugin")
	errutil.AssertErrorCode(t, err, "PLUGIN_CONFLICT")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("plugin", "db").Errorf("test error")
	errutil.AssertErrorContext(t, err, "plugin", "db")
}
