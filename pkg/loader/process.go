// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package loader

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Process is the host's exit-notification capability. OnExit registers a
// handler and returns a function that unregisters exactly that handler.
type Process interface {
	OnExit(handler func()) (cancel func())
}

// DefaultExitSignals are the signals SignalProcess listens to by default.
var DefaultExitSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT}

// SignalProcess delivers exit notifications for operating system signals.
type SignalProcess struct {
	signals []os.Signal
}

// NewSignalProcess listens to sigs, or DefaultExitSignals when none are given.
func NewSignalProcess(sigs ...os.Signal) *SignalProcess {
	if len(sigs) == 0 {
		sigs = DefaultExitSignals
	}
	return &SignalProcess{signals: sigs}
}

// OnExit runs handler on its own goroutine each time one of the signals is
// received, until the returned cancel function is called. Cancel does not
// wait for a running handler, so a handler may cancel its own registration.
func (p *SignalProcess) OnExit(handler func()) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, p.signals...)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				handler()
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(stop)
		})
	}
}
