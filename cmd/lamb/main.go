// Lamb CLI - compile, bundle and run Lamb programs
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/lamb/manifest"
	"github.com/chazu/lamb/vm"
	"github.com/chazu/lamb/vm/dist"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("lamb.cli")

// config is the merged result of lamb.toml and command-line flags.
type config struct {
	manifest  *manifest.Manifest
	vmOpts    vm.Options
	useInterp bool
	cachePath string
	policy    *dist.CapabilityPolicy
}

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (0 = errors only, 1 = info, 2 = debug)")
	logFile := flag.String("log", "", "Write logs to this file instead of stderr")
	useInterp := flag.Bool("interp", false, "Evaluate with the tree-walking interpreter instead of the VM")
	trace := flag.Bool("trace", false, "Print each executed instruction")
	gcThreshold := flag.Int("gc-threshold", 0, "Heap size in bytes that triggers collection")
	cachePath := flag.String("cache", "", "SQLite compile cache path")
	noManifest := flag.Bool("no-manifest", false, "Ignore lamb.toml")
	deny := flag.String("deny", "", "Comma-separated capabilities to refuse (e.g. Output)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lamb [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run [files...]          Compile and run files (default: lamb.toml sources)\n")
		fmt.Fprintf(os.Stderr, "  check [files...]        Compile without running and print warnings\n")
		fmt.Fprintf(os.Stderr, "  eval <source>           Evaluate source text\n")
		fmt.Fprintf(os.Stderr, "  build [-o out] [files]  Compile files into a bundle\n")
		fmt.Fprintf(os.Stderr, "  exec <bundle>           Run a compiled bundle\n")
		fmt.Fprintf(os.Stderr, "  disasm <file>           Disassemble a source file or bundle\n")
		fmt.Fprintf(os.Stderr, "  repl                    Start interactive REPL\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lamb run sum.lamb\n")
		fmt.Fprintf(os.Stderr, "  lamb eval '(+ 1 2)'\n")
		fmt.Fprintf(os.Stderr, "  lamb build -o sum.lambc sum.lamb && lamb exec sum.lambc\n")
	}
	flag.Parse()

	var m *manifest.Manifest
	if !*noManifest {
		var err error
		m, err = manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
			os.Exit(1)
		}
	}

	cfg := config{manifest: m, useInterp: *useInterp, cachePath: *cachePath, policy: dist.NewPermissivePolicy()}
	for _, c := range strings.Split(*deny, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cfg.policy.Deny(c)
		}
	}
	configureLogging(m, *verbosity, *logFile)

	if m != nil {
		cfg.vmOpts = m.VMOptions()
		if cfg.cachePath == "" {
			cfg.cachePath = m.CachePath()
		}
		log.Infof("using manifest %s/%s", m.Dir, manifest.FileName)
	}
	if *trace {
		cfg.vmOpts.Trace = true
	}
	if *gcThreshold > 0 {
		cfg.vmOpts.GCThreshold = *gcThreshold
	}
	cfg.vmOpts.Out = os.Stdout

	args := flag.Args()
	if len(args) == 0 {
		if m != nil {
			os.Exit(runFiles(cfg, nil))
		}
		runREPL(cfg)
		return
	}

	cmd, rest := args[0], args[1:]
	var code int
	switch cmd {
	case "run":
		code = runFiles(cfg, rest)
	case "check":
		code = checkCommand(cfg, rest)
	case "eval":
		code = evalCommand(cfg, rest)
	case "build":
		code = buildCommand(cfg, rest)
	case "exec":
		code = execCommand(cfg, rest)
	case "disasm":
		code = disasmCommand(rest)
	case "repl":
		runREPL(cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		flag.Usage()
		code = 2
	}
	os.Exit(code)
}

// configureLogging applies flag settings over the manifest's [log] table.
func configureLogging(m *manifest.Manifest, verbosity int, logFile string) {
	var path *string
	if m != nil {
		if verbosity == 0 {
			verbosity = m.Log.Verbosity
		}
		path = m.LogFile()
	}
	if logFile != "" {
		path = &logFile
	}
	commonlog.Configure(verbosity, path)
}
