// Command fcatalogd serves the catalog protocol over TCP.
//
// Usage:
//
//	fcatalogd --listen=:8300 --catalog-dir=/var/lib/fcatalogd --n=16 --batch-size=2048
package main

import (
	"context"
	goflag "flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/calvinalkan/fcatalogd/internal/fcatalogd"
	"github.com/calvinalkan/fcatalogd/internal/fsutil"
	"github.com/calvinalkan/fcatalogd/internal/registry"
)

func main() {
	os.Exit(run(os.Args[1:], os.Environ()))
}

func run(args []string, environ []string) int {
	env := envMap(environ)

	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)

	fs := flag.NewFlagSet("fcatalogd", flag.ContinueOnError)
	fs.AddGoFlagSet(klogFlags)

	listenAddr := fs.String("listen", envOr(env, "FCATALOGD_LISTEN", ":8300"), "address to bind for the catalog protocol")
	catalogDir := fs.String("catalog-dir", envOr(env, "FCATALOGD_CATALOG_DIR", "/var/lib/fcatalogd"), "directory holding catalog SQLite files")
	sigWidth := fs.Int("n", 16, "signature width (number of hashed columns) for newly created catalogs")
	maxFrameBytes := fs.Uint32("max-frame-bytes", 0, "maximum accepted frame size in bytes (0 selects the built-in default)")
	batchSize := fs.Int("batch-size", 0, "buffered AddFunction calls before an auto-commit (0 selects the built-in default)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}

		fmt.Fprintf(os.Stderr, "fcatalogd: %v\n", err)

		return 1
	}

	if err := fsutil.NewReal().MkdirAll(*catalogDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "fcatalogd: catalog directory: %v\n", err)

		return 2
	}

	reg := registry.New(*catalogDir, *sigWidth, *batchSize)
	defer func() {
		if err := reg.CloseAll(); err != nil {
			klog.Errorf("fcatalogd: closing catalogs: %v", err)
		}
	}()

	ln, err := fcatalogd.Listen(fcatalogd.Config{
		Addr:          *listenAddr,
		Registry:      reg,
		MaxFrameBytes: *maxFrameBytes,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fcatalogd: %v\n", err)

		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	klog.Infof("fcatalogd: listening on %s (catalog-dir=%s n=%d)", ln.Addr(), *catalogDir, *sigWidth)

	if err := ln.Serve(ctx); err != nil && !fcatalogd.IsShutdownError(err) {
		klog.Errorf("fcatalogd: serve: %v", err)

		return 1
	}

	klog.Info("fcatalogd: shut down cleanly")

	return 0
}

func envMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		for i := 0; i < len(e); i++ {
			if e[i] == '=' {
				env[e[:i]] = e[i+1:]

				break
			}
		}
	}

	return env
}

func envOr(env map[string]string, key, fallback string) string {
	if v, ok := env[key]; ok && v != "" {
		return v
	}

	return fallback
}
