// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

//go:build integration

package lifecycle_test

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/plugger/plugger/internal/discovery"
	pluginlua "github.com/plugger/plugger/internal/lua"
	"github.com/plugger/plugger/pkg/loader"
	"github.com/plugger/plugger/pkg/plugin"
)

var _ = Describe("Plugin lifecycle", func() {
	var (
		ctx     context.Context
		root    string
		log     *journal
		runtime *pluginlua.Runtime
		quiet   *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()
		log = &journal{}
		runtime = pluginlua.NewRuntime(pluginlua.WithLogger(slog.New(log)))
		quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

		writeFixtures(root,
			fixture{dir: "10-web", manifest: manifest("web", "priority: 0\nrequires:\n  - name: db\n    version: ^1.0.0\n  - name: cache\n")},
			fixture{dir: "20-db", manifest: manifest("db", "priority: 5\n")},
			fixture{dir: "30-cache", manifest: manifest("cache", "")},
			fixture{dir: "40-audit", manifest: manifest("audit", "priority: -1\nrequires:\n  - name: web\n")},
		)
	})

	load := func(opts ...loader.Option) *loader.Loader {
		opts = append([]loader.Option{loader.WithLogger(quiet)}, opts...)
		l, err := loader.New("root", opts...)
		Expect(err).NotTo(HaveOccurred())

		scanner, err := discovery.NewScanner(discovery.WithLogger(quiet))
		Expect(err).NotTo(HaveOccurred())
		loaded, err := scanner.LoadDir(ctx, l, root, runtime.Resolve)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(4))
		return l
	}

	Describe("sequential sweeps", func() {
		It("initializes in sorted order and shuts down in reverse", func() {
			l := load(loader.WithAutoSort(true))

			Expect(names(l.LoadOrder())).To(Equal([]string{"web", "db", "cache", "audit"}))

			Expect(l.InitAll(ctx)).To(Succeed())
			Expect(log.entries()).To(Equal([]string{"init db", "init cache", "init web", "init audit"}))

			web, ok := l.Lookup("web")
			Expect(ok).To(BeTrue())
			Expect(web.State()).To(HaveKeyWithValue("deps", HaveKey("db")))

			Expect(l.ShutdownAll(ctx)).To(Succeed())
			Expect(log.entries()[4:]).To(Equal([]string{"shutdown audit", "shutdown web", "shutdown cache", "shutdown db"}))
			for _, p := range l.Plugins() {
				Expect(p.Status()).To(Equal(plugin.StatusReady), p.Name())
			}
		})

		It("fails fast without sorting", func() {
			l := load()

			err := l.InitAll(ctx)
			Expect(plugin.IsRequirement(err)).To(BeTrue())
			Expect(log.entries()).To(BeEmpty())
		})

		It("refuses to shut down a plugin that is still required", func() {
			l := load(loader.WithAutoSort(true))
			Expect(l.InitAll(ctx)).To(Succeed())

			db, _ := l.Lookup("db")
			err := l.ShutdownPlugin(ctx, db)
			Expect(plugin.IsRequirement(err)).To(BeTrue())
			Expect(db.IsInitialized()).To(BeTrue())

			Expect(l.ShutdownAll(ctx)).To(Succeed())
		})
	})

	Describe("parallel sweeps", func() {
		It("respects requirements", func() {
			l := load(loader.WithParallel(true))

			Expect(l.InitAll(ctx)).To(Succeed())
			Expect(log.index("init db")).To(BeNumerically("<", log.index("init web")))
			Expect(log.index("init cache")).To(BeNumerically("<", log.index("init web")))
			Expect(log.index("init web")).To(BeNumerically("<", log.index("init audit")))

			Expect(l.ShutdownAll(ctx)).To(Succeed())
			Expect(log.index("shutdown audit")).To(BeNumerically("<", log.index("shutdown web")))
			Expect(log.index("shutdown web")).To(BeNumerically("<", log.index("shutdown db")))
		})
	})

	Describe("nested loaders", func() {
		It("drives a child loader as a plugin", func() {
			child := load(loader.WithAutoSort(true))
			parent, err := loader.New("parent", loader.WithLogger(quiet))
			Expect(err).NotTo(HaveOccurred())
			Expect(parent.AddPlugin(child.Plugin)).To(Succeed())

			Expect(parent.InitAll(ctx)).To(Succeed())
			Expect(child.IsInitialized()).To(BeTrue())
			Expect(log.entries()).To(HaveLen(4))

			Expect(parent.ShutdownAll(ctx)).To(Succeed())
			Expect(child.IsInitialized()).To(BeFalse())
			Expect(log.entries()).To(HaveLen(8))
		})
	})

	Describe("exit signals", func() {
		It("shuts everything down when the process is signalled", func() {
			exited := make(chan error, 1)
			l := load(
				loader.WithAutoSort(true),
				loader.WithProcess(loader.NewSignalProcess(syscall.SIGUSR1)),
				loader.WithExitHandler(func(err error) { exited <- err }),
			)
			Expect(l.InitAll(ctx)).To(Succeed())

			l.AttachExitListener()
			DeferCleanup(l.DetachExitListener)
			Expect(syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)).To(Succeed())

			Eventually(exited).WithTimeout(5 * time.Second).Should(Receive(BeNil()))
			for _, p := range l.Plugins() {
				Expect(p.IsInitialized()).To(BeFalse(), p.Name())
			}
		})
	})

	Describe("CLI", func() {
		It("validates and orders the plugin directory", func() {
			cmd := exec.CommandContext(ctx, "go", "run", ".", "validate", "--plugins-dir", root)
			cmd.Dir = "../../../cmd/plugger"
			output, err := cmd.CombinedOutput()
			Expect(err).NotTo(HaveOccurred(), "validate failed: %s", string(output))
			Expect(string(output)).To(ContainSubstring("4 plugin(s) OK"))

			cmd = exec.CommandContext(ctx, "go", "run", ".", "order", "--sorted", "--plugins-dir", root, "--log-level", "error")
			cmd.Dir = "../../../cmd/plugger"
			output, err = cmd.Output()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(output)).To(Equal("db 5\ncache unset\nweb 0\naudit -1\n"))
		})
	})
})

func names(ps []*plugin.Plugin) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name()
	}
	return out
}
