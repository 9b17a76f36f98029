// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package discovery

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/plugger/plugger/pkg/loader"
	"github.com/plugger/plugger/pkg/metadata"
	"github.com/plugger/plugger/pkg/plugin"
)

// Discovered contains a manifest and its directory.
type Discovered struct {
	Manifest *Manifest
	Dir      string
}

// Resolver turns a discovered manifest into a plugin ready for registration.
type Resolver func(ctx context.Context, m *Manifest, dir string) (*plugin.Plugin, error)

// Scanner discovers plugins in a directory.
type Scanner struct {
	include glob.Glob
	logger  *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner) error

// WithInclude restricts discovery to subdirectories whose name matches the
// glob pattern.
func WithInclude(pattern string) ScannerOption {
	return func(s *Scanner) error {
		g, err := glob.Compile(pattern)
		if err != nil {
			return oops.In("discovery").With("pattern", pattern).Wrapf(err, "invalid include pattern")
		}
		s.include = g
		return nil
	}
}

// WithLogger sets the logger used for skipped plugins.
func WithLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) error {
		s.logger = logger
		return nil
	}
}

// NewScanner creates a scanner. Without WithInclude every subdirectory is
// considered.
func NewScanner(opts ...ScannerOption) (*Scanner, error) {
	s := &Scanner{
		include: glob.MustCompile("*"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Problem is a plugin directory whose manifest could not be used.
type Problem struct {
	Dir string
	Err error
}

// Discover finds all valid plugins in dir, in directory name order.
// Invalid plugins are logged and skipped; a missing or unreadable dir is an
// error.
func (s *Scanner) Discover(ctx context.Context, dir string) ([]*Discovered, error) {
	found, problems, err := s.scan(dir, ParseManifest)
	if err != nil {
		return nil, err
	}
	for _, p := range problems {
		msg := "skipping plugin with invalid manifest"
		if errors.Is(p.Err, os.ErrNotExist) {
			msg = "skipping plugin without manifest"
		}
		s.logger.WarnContext(ctx, msg,
			"dir", filepath.Base(p.Dir),
			"error", p.Err)
	}
	return found, nil
}

// Check is the strict form of Discover: every manifest is also validated
// against the JSON schema and each failure is returned instead of logged.
func (s *Scanner) Check(dir string) ([]*Discovered, []Problem, error) {
	return s.scan(dir, func(data []byte) (*Manifest, error) {
		if err := ValidateSchema(data); err != nil {
			return nil, err
		}
		return ParseManifest(data)
	})
}

func (s *Scanner) scan(dir string, parse func([]byte) (*Manifest, error)) ([]*Discovered, []Problem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errDir(err, dir)
	}

	var (
		found    []*Discovered
		problems []Problem
	)
	for _, entry := range entries {
		if !entry.IsDir() || !s.include.Match(entry.Name()) {
			continue
		}

		pluginDir := filepath.Join(dir, entry.Name())
		manifestPath := filepath.Join(pluginDir, ManifestFile)

		data, err := os.ReadFile(manifestPath) //nolint:gosec // manifestPath is constructed from ReadDir entries
		if err != nil {
			problems = append(problems, Problem{Dir: pluginDir, Err: errManifestWrap(err, "failed to read %s", ManifestFile)})
			continue
		}

		manifest, err := parse(data)
		if err != nil {
			problems = append(problems, Problem{Dir: pluginDir, Err: err})
			continue
		}

		found = append(found, &Discovered{
			Manifest: manifest,
			Dir:      pluginDir,
		})
	}

	return found, problems, nil
}

// LoadDir discovers the plugins in dir, resolves each one and registers it
// with l under the manifest's priority. A plugin that fails to resolve or
// register is logged and skipped so the rest can still load. It returns the
// plugins that were registered.
func (s *Scanner) LoadDir(ctx context.Context, l *loader.Loader, dir string, resolve Resolver) ([]*plugin.Plugin, error) {
	discovered, err := s.Discover(ctx, dir)
	if err != nil {
		return nil, err
	}

	var loaded []*plugin.Plugin
	for _, d := range discovered {
		p, err := resolve(ctx, d.Manifest, d.Dir)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to resolve plugin",
				"plugin", d.Manifest.Name,
				"error", errResolve(err, d.Manifest.Name, d.Dir))
			continue
		}

		if err := l.AddPlugin(p, loader.WithPriorityValue(d.Manifest.Priority)); err != nil {
			s.logger.ErrorContext(ctx, "failed to register plugin",
				"plugin", d.Manifest.Name,
				"error", err)
			continue
		}

		s.logger.InfoContext(ctx, "loaded plugin",
			"plugin", d.Manifest.Name,
			"type", d.Manifest.Type,
			"version", d.Manifest.Version,
			"priority", d.Manifest.Priority.String())
		loaded = append(loaded, p)
	}

	return loaded, nil
}

// Discover finds the plugins in dir with a default scanner.
func Discover(ctx context.Context, dir string) ([]*Discovered, error) {
	s, err := NewScanner()
	if err != nil {
		return nil, err
	}
	return s.Discover(ctx, dir)
}

// LoadDir registers the plugins in dir with a default scanner.
func LoadDir(ctx context.Context, l *loader.Loader, dir string, resolve Resolver) ([]*plugin.Plugin, error) {
	s, err := NewScanner()
	if err != nil {
		return nil, err
	}
	return s.LoadDir(ctx, l, dir, resolve)
}

// Static resolves a manifest into a plugin that carries the manifest's
// metadata and requirements but default callbacks. It is enough to compute
// and check load orders without running any plugin code.
func Static(_ context.Context, m *Manifest, _ string) (*plugin.Plugin, error) {
	return plugin.New(m.Name, m.PluginOptions()...)
}

// FromDescriptor builds a plugin from a JSON or YAML package descriptor.
// The descriptor's name becomes the plugin name and the remaining keys its
// metadata; with keys given only those keys are kept.
func FromDescriptor(path string, keys ...string) (*plugin.Plugin, error) {
	name, md, err := metadata.ReadDescriptor(path, keys...)
	if err != nil {
		return nil, err
	}
	return plugin.New(name, plugin.WithMetadata(md))
}
