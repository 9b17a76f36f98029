// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package loader

import (
	"context"

	"github.com/plugger/plugger/pkg/errutil"
)

// AttachExitListener makes the loader shut down all plugins when the
// process is asked to exit. Attaching twice registers one listener.
func (l *Loader) AttachExitListener() {
	l.exitMu.Lock()
	defer l.exitMu.Unlock()

	if l.detachExit != nil {
		return
	}
	l.detachExit = l.process.OnExit(l.handleExit)
	l.logger.Debug("exit listener attached", "loader", l.Name())
}

// DetachExitListener removes the listener added by AttachExitListener. It
// does nothing when no listener is attached.
func (l *Loader) DetachExitListener() {
	l.exitMu.Lock()
	detach := l.detachExit
	l.detachExit = nil
	l.exitMu.Unlock()

	if detach == nil {
		return
	}
	detach()
	l.logger.Debug("exit listener detached", "loader", l.Name())
}

// HasExitListener reports whether an exit listener is attached.
func (l *Loader) HasExitListener() bool {
	l.exitMu.Lock()
	defer l.exitMu.Unlock()
	return l.detachExit != nil
}

func (l *Loader) handleExit() {
	ctx, cancel := context.WithTimeout(context.Background(), l.exitTimeout)
	defer cancel()

	l.logger.InfoContext(ctx, "exit requested, shutting down plugins", "loader", l.Name())
	err := l.ShutdownAll(ctx)
	if err != nil {
		errutil.LogError(ctx, l.logger, "shutdown on exit failed", err)
	}
	if l.onExit != nil {
		l.onExit(err)
	}
}
