// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package loader

import (
	"time"

	"github.com/plugger/plugger/pkg/plugin"
)

// Recorder observes plugin lifecycle transitions, e.g. to export metrics.
// It is called after every init or shutdown callback has run, with the
// status the plugin ended in and the error returned to the caller.
type Recorder interface {
	RecordTransition(name string, event plugin.Event, status plugin.Status, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(string, plugin.Event, plugin.Status, time.Duration, error) {}
