package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/lamb/compiler"
	"github.com/chazu/lamb/manifest"
	"github.com/chazu/lamb/vm/dist"
)

// buildCommand processes the `lamb build` subcommand.
// Usage:
//
//	lamb build                    # lamb.toml sources -> [build] output
//	lamb build -o sum.lambc a.lamb
func buildCommand(cfg config, args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	output := fs.String("o", "", "Output bundle path")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	files, err := sourceFiles(cfg, fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	src, err := readSources(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	b, err := compileCached(cfg, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	out := *output
	if out == "" {
		out = defaultOutput(cfg, files)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := dist.WriteFile(out, b); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.Infof("wrote %s (%d bytes of code, %d globals)", out, len(b.Code), len(b.Globals))
	return 0
}

func defaultOutput(cfg config, files []string) string {
	if cfg.manifest != nil {
		return cfg.manifest.OutputPath()
	}
	return strings.TrimSuffix(files[0], manifest.SourceExt) + ".lambc"
}

// disasmCommand prints the disassembly of a bundle, or of a source file
// compiled on the fly.
func disasmCommand(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Error: disasm requires exactly one file")
		return 2
	}
	path := args[0]

	var listing string
	var err error
	if strings.HasSuffix(path, manifest.SourceExt) {
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			var prog *compiler.Program
			prog, err = compiler.CompileSource(string(data))
			if err == nil {
				listing = prog.String()
			}
		}
	} else {
		var b *dist.Bundle
		b, err = dist.ReadFile(path)
		if err == nil {
			listing, err = b.Disassemble()
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Print(listing)
	return 0
}
