package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/lamb/compiler"
	"github.com/chazu/lamb/interp"
	"github.com/chazu/lamb/vm"
)

// session evaluates REPL input against state that persists between lines.
type session struct {
	compiler *compiler.Compiler
	machine  *vm.VM
	interp   *interp.Interpreter
	code     []byte
}

func newSession(cfg config) *session {
	if cfg.useInterp {
		return &session{interp: interp.New(interp.Options{Out: os.Stdout, Diag: os.Stderr})}
	}
	return &session{compiler: compiler.NewCompiler(), machine: vm.NewVM(cfg.vmOpts)}
}

// eval runs one batch of input. A batch that fails to compile or to run
// leaves the session unchanged, so compiler and VM global slots stay
// aligned.
func (s *session) eval(input string) (vm.Value, error) {
	if s.interp != nil {
		return s.interp.EvalSource(input)
	}
	mark := s.compiler.Mark()
	prog, err := s.compiler.CompileSource(input)
	if err != nil {
		return nil, err
	}
	result, err := s.machine.RunFrom(prog.Code, prog.Start)
	if err != nil {
		s.compiler.Reset(mark)
		s.machine.TruncateGlobals(mark.Globals())
		return nil, err
	}
	s.code = prog.Code
	return result, nil
}

// runREPL starts an interactive read-eval-print loop
func runREPL(cfg config) {
	fmt.Println("Lamb REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Println()

	s := newSession(cfg)
	scanner := bufio.NewScanner(os.Stdin)
	lineBuffer := strings.Builder{}

	for {
		// Show prompt
		if lineBuffer.Len() == 0 {
			fmt.Print(">> ")
		} else {
			fmt.Print(".. ")
		}

		if !scanner.Scan() {
			break
		}

		line := scanner.Text()

		// Handle exit
		if lineBuffer.Len() == 0 && (line == "exit" || line == "quit") {
			break
		}

		// Handle REPL commands (start with ':')
		if lineBuffer.Len() == 0 && strings.HasPrefix(line, ":") {
			handleREPLCommand(s, line)
			continue
		}

		// Accumulate lines
		if lineBuffer.Len() > 0 {
			lineBuffer.WriteString("\n")
		}
		lineBuffer.WriteString(line)

		// Evaluate once every open paren is closed
		input := lineBuffer.String()
		if parenDepth(input) > 0 {
			continue
		}
		lineBuffer.Reset()
		if strings.TrimSpace(input) == "" {
			continue
		}

		result, err := s.eval(input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Println(result)
	}

	fmt.Println()
}

// handleREPLCommand handles REPL meta-commands
func handleREPLCommand(s *session, cmd string) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Println("REPL Commands:")
		fmt.Println("  :help, :h, :?     Show this help")
		fmt.Println("  :globals          List defined globals")
		fmt.Println("  :disasm           Show the compiled code so far")
		fmt.Println("  :gc               Run the collector and show statistics")
		fmt.Println("  exit, quit        Exit REPL")
	case ":globals":
		if s.compiler == nil {
			fmt.Println("Not available in interpreter mode")
			return
		}
		for i, name := range s.compiler.Globals() {
			fmt.Printf("  %3d  %s\n", i, name)
		}
	case ":disasm":
		if s.compiler == nil {
			fmt.Println("Not available in interpreter mode")
			return
		}
		listing, err := vm.Disassemble(s.code, s.compiler.Globals())
		fmt.Print(listing)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case ":gc":
		if s.machine == nil {
			fmt.Println("Not available in interpreter mode")
			return
		}
		stats := s.machine.Collect()
		fmt.Printf("Marked %d, swept %d, freed %d bytes, heap now %d bytes (%s)\n",
			stats.Marked, stats.Swept, stats.FreedBytes, stats.SizeAfter, stats.Duration)
	default:
		fmt.Printf("Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// parenDepth returns the number of unclosed parens in src, ignoring
// comments.
func parenDepth(src string) int {
	depth := 0
	inComment := false
	for _, r := range src {
		switch {
		case inComment:
			if r == '\n' {
				inComment = false
			}
		case r == ';':
			inComment = true
		case r == '(':
			depth++
		case r == ')':
			depth--
		}
	}
	return depth
}
