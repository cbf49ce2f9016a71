// Command fixtura evaluates a fixture script and writes one STL file per
// support, with its cutouts subtracted and placed in world space.
//
//	fixtura [-config fixtura.toml] [-o outdir] [-ascii] script.fixture
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chazu/fixtura/pkg/config"
	"github.com/chazu/fixtura/pkg/mesh"
	"github.com/chazu/fixtura/pkg/meshio"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fixtura", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "TOML config file (default "+config.DefaultFile+" if present)")
	outDir := fs.String("o", ".", "output directory for STL files")
	ascii := fs.Bool("ascii", false, "write ASCII instead of binary STL")
	verbose := fs.Bool("v", false, "log at debug level")
	printConfig := fs.Bool("print-config", false, "print the effective configuration and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: fixtura [flags] script.fixture\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "fixtura: %v\n", err)
		return 1
	}
	setupLogging(cfg, *verbose, stderr)

	if *printConfig {
		if err := cfg.Write(stdout); err != nil {
			log.Error().Err(err).Msg("print config")
			return 1
		}
		return 0
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	script := fs.Arg(0)
	source, err := os.ReadFile(script)
	if err != nil {
		log.Error().Err(err).Msg("read script")
		return 1
	}
	app, err := NewApp(cfg, filepath.Dir(script))
	if err != nil {
		log.Error().Err(err).Msg("configure")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result := app.Evaluate(ctx, string(source))
	for _, w := range result.Warnings {
		log.Warn().Str("script", script).Msg(w.String())
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			log.Error().Str("script", script).Msg(e.Error())
		}
		return 1
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Error().Err(err).Msg("create output directory")
		return 1
	}
	status := 0
	for _, p := range result.Parts {
		path := filepath.Join(*outDir, fileName(p.Name)+".stl")
		if err := writePart(path, p.Mesh, *ascii); err != nil {
			log.Error().Err(err).Str("support", p.Name).Msg("write stl")
			status = 1
		} else {
			log.Info().
				Str("support", p.Name).
				Str("file", path).
				Int("triangles", p.Mesh.TriangleCount()).
				Int("cutouts", p.Cutouts).
				Bool("subtracted", p.Subtracted || p.Cutouts == 0).
				Bool("fallback", p.Fallback).
				Bool("closed", mesh.IsClosed(p.Mesh)).
				Msg("wrote support")
		}
		p.Mesh.Dispose()
	}
	return status
}

func setupLogging(cfg config.Config, verbose bool, w io.Writer) {
	level, err := cfg.Level()
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
	} else {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	}
}

func writePart(path string, m *mesh.Buffer, ascii bool) error {
	if !ascii {
		return meshio.WriteSTLFile(path, m)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := meshio.WriteSTL(f, m, true); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// fileName maps a support name to a safe file name.
func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
