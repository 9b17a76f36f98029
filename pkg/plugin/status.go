// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package plugin

// Status is the lifecycle state of a plugin.
type Status int32

// Lifecycle states.
const (
	// StatusReady is the initial state and the state after a clean shutdown.
	StatusReady Status = iota
	// StatusBusy is held while an init or shutdown callback runs.
	StatusBusy
	// StatusInitialized means init succeeded and State holds its result.
	StatusInitialized
	// StatusCrashed means a callback failed and the error callback re-raised it.
	StatusCrashed
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusBusy:
		return "busy"
	case StatusInitialized:
		return "initialized"
	case StatusCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Event tags the callback that failed when the error callback is invoked.
type Event string

// Callback events.
const (
	EventInit     Event = "init"
	EventShutdown Event = "shutdown"
)
