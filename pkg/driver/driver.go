// Package driver wires parse -> normalize -> codegen -> assemble -> vm
// into the small facade cmd/lamvm drives: one stateless Run for a single
// script, one persistent Session type for the REPL.
package driver

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"lamvm/pkg/assemble"
	"lamvm/pkg/codegen"
	coreerr "lamvm/pkg/errors"
	"lamvm/pkg/normalize"
	"lamvm/pkg/parse"
	"lamvm/pkg/tac"
	"lamvm/pkg/values"
	"lamvm/pkg/vm"
)

// DumpOptions controls which intermediate representation gets printed to
// the dump writer before the program runs.
type DumpOptions struct {
	NST   bool
	TAC   bool
	Const bool
}

// Run compiles and executes source once: the stateless path cmd/lamvm
// uses for `lamvm <script-path>`.
func Run(source string, opts DumpOptions, dump io.Writer) (values.Value, []coreerr.CoreError) {
	program, parseErrs := parse.ParseProgram(source)
	if len(parseErrs) > 0 {
		return 0, parseErrs
	}

	res, err := normalize.Normalize(program)
	if err != nil {
		return 0, []coreerr.CoreError{asCoreError(err)}
	}
	if opts.NST {
		dumpNST(dump, res)
	}

	tacProg, err := codegen.Generate(res.Expr, res.Table, res.Symbols)
	if err != nil {
		return 0, []coreerr.CoreError{asCoreError(err)}
	}
	if opts.TAC {
		dumpTAC(dump, tacProg)
	}

	asmProg, err := assemble.Assemble(tacProg, res.Table, res.Symbols)
	if err != nil {
		return 0, []coreerr.CoreError{asCoreError(err)}
	}
	if opts.Const {
		dumpConst(dump, asmProg)
	}

	result, err := vm.New(asmProg).Run()
	if err != nil {
		return 0, []coreerr.CoreError{asCoreError(err)}
	}
	return result, nil
}

// DisplayResult prints a Run result the way the REPL and `lamvm
// <script-path>` both want: errors formatted with DisplayErrors, otherwise
// the value's Inspect-equivalent String(). Returns false if errs is
// non-empty.
func DisplayResult(w io.Writer, source string, value values.Value, errs []coreerr.CoreError) bool {
	if len(errs) > 0 {
		coreerr.DisplayErrors(w, errs, source)
		return false
	}
	fmt.Fprintln(w, value.String())
	return true
}

// asCoreError passes an already-typed CoreError through untouched (most
// codegen faults are InternalCompilerError values, VM faults RuntimeTrap);
// anything else (the register allocator's and assemble's plain fmt.Errorf
// faults) gets wrapped so every stage's failures reach DisplayErrors
// uniformly.
func asCoreError(err error) coreerr.CoreError {
	if ce, ok := err.(coreerr.CoreError); ok {
		return ce
	}
	return &coreerr.InternalCompilerError{Msg: err.Error()}
}

func dumpNST(w io.Writer, res *normalize.Result) {
	fmt.Fprintln(w, color.New(color.FgYellow).Sprint("=== NST ==="))
	fmt.Fprintf(w, "%+v\n", res.Expr)
}

func dumpTAC(w io.Writer, prog *tac.Program) {
	fmt.Fprintln(w, color.New(color.FgYellow).Sprint("=== TAC ==="))
	for i, fn := range prog.Functions {
		name := fn.Name
		if name == "" {
			name = fmt.Sprintf("<lambda %d>", i)
		}
		fmt.Fprintf(w, "%s:\n", color.New(color.FgCyan).Sprint(name))
		for _, ins := range fn.Code {
			fmt.Fprintf(w, "  %s\n", ins)
		}
	}
}

func dumpConst(w io.Writer, prog *assemble.Program) {
	fmt.Fprintln(w, color.New(color.FgYellow).Sprint("=== CONST TABLE ==="))
	for addr, word := range prog.Table.Words() {
		fmt.Fprintf(w, "  [%d] %s\n", addr, word)
	}
}

// Session is a persistent REPL session: each Eval re-parses the
// accumulated val-statement prelude plus the new line, so earlier
// `val name = ...` bindings stay visible to later lines instead of each
// REPL entry starting from a blank slate.
type Session struct {
	prelude []string
	opts    DumpOptions
	dump    io.Writer
}

// NewSession creates an empty REPL session.
func NewSession(opts DumpOptions, dump io.Writer) *Session {
	return &Session{opts: opts, dump: dump}
}

// Eval runs line in the context of every previously accepted val
// statement in this session. On a clean parse it remembers line (if it
// is itself a val statement) so later Eval calls see the binding.
func (s *Session) Eval(line string) (values.Value, []coreerr.CoreError) {
	full := strings.Join(append(append([]string{}, s.prelude...), line), "\n")
	result, errs := Run(full, s.opts, s.dump)
	if len(errs) == 0 && strings.HasPrefix(strings.TrimSpace(line), "val ") {
		s.prelude = append(s.prelude, line)
	}
	return result, errs
}
