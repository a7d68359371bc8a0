package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/lamb/cache"
	"github.com/chazu/lamb/compiler"
	"github.com/chazu/lamb/compiler/hash"
	"github.com/chazu/lamb/interp"
	"github.com/chazu/lamb/vm"
	"github.com/chazu/lamb/vm/dist"
)

// sourceFiles returns paths, or the manifest's sources when paths is empty.
func sourceFiles(cfg config, paths []string) ([]string, error) {
	if len(paths) > 0 {
		return paths, nil
	}
	if cfg.manifest == nil {
		return nil, errors.New("no input files and no lamb.toml found")
	}
	files, err := cfg.manifest.SourceFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files in %v", "*.lamb", cfg.manifest.Source.Dirs)
	}
	return files, nil
}

// readSources concatenates files in order. Each file starts on a new line
// so a trailing comment cannot swallow the next file's first form.
func readSources(files []string) (string, error) {
	var sb strings.Builder
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", err
		}
		sb.Write(data)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// compileCached compiles src, consulting the compile cache when one is
// configured. Entries are keyed by program hash, so reformatting or
// renaming locals still hits. Cache failures are logged and otherwise
// ignored.
func compileCached(cfg config, src string) (*dist.Bundle, error) {
	key, exprs, err := hash.HashSource(src)
	if err != nil {
		return nil, err
	}
	for _, w := range compiler.Analyze(exprs) {
		log.Warningf("%s", w)
	}

	var c *cache.Cache
	if cfg.cachePath != "" {
		c, err = cache.Open(cfg.cachePath)
		if err != nil {
			log.Warningf("compile cache disabled: %v", err)
		} else {
			defer c.Close()
			if b, err := c.Get(key); err == nil {
				return b, nil
			} else if !errors.Is(err, cache.ErrNotFound) {
				log.Warningf("compile cache lookup: %v", err)
			}
		}
	}

	prog, err := compiler.Compile(exprs)
	if err != nil {
		return nil, err
	}
	b := dist.NewBundle([]byte(src), prog.Code, prog.Globals)

	if c != nil {
		if _, err := c.Put(key, b); err != nil {
			log.Warningf("compile cache store: %v", err)
		}
	}
	return b, nil
}

func runFiles(cfg config, paths []string) int {
	files, err := sourceFiles(cfg, paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	src, err := readSources(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return runSource(cfg, src)
}

// checkCommand parses and compiles files without running them, printing
// analyzer warnings. Warnings alone do not fail the check.
func checkCommand(cfg config, paths []string) int {
	files, err := sourceFiles(cfg, paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	src, err := readSources(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	exprs, err := compiler.Parse(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	warnings := compiler.Analyze(exprs)
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}
	if _, err := compiler.Compile(exprs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("ok: %d expressions, %d warnings\n", len(exprs), len(warnings))
	return 0
}

func evalCommand(cfg config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: eval requires source text")
		return 2
	}
	return runSource(cfg, strings.Join(args, " "))
}

// runSource evaluates src and prints the resulting value.
func runSource(cfg config, src string) int {
	if cfg.useInterp {
		in := interp.New(interp.Options{Out: os.Stdout, Diag: os.Stderr})
		result, err := in.EvalSource(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(result)
		if in.Failures() > 0 {
			return 1
		}
		return 0
	}

	b, err := compileCached(cfg, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return execBundle(cfg, b)
}

func execBundle(cfg config, b *dist.Bundle) int {
	if cfg.policy != nil {
		if err := cfg.policy.Check(b); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	machine := vm.NewVM(cfg.vmOpts)
	result, err := machine.Run(b.Code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(result)
	if stats := machine.Heap().LastStats(); stats != nil {
		log.Infof("gc: %d cycles, last freed %d bytes, heap %d bytes",
			machine.Heap().Cycles(), stats.FreedBytes, stats.SizeAfter)
	}
	return 0
}

func execCommand(cfg config, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Error: exec requires exactly one bundle path")
		return 2
	}
	b, err := dist.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return execBundle(cfg, b)
}
