package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"lamvm/pkg/driver"
)

// fileConfig is the optional `-config lamvm.toml` settings: default trace
// topics and the REPL prompt, neither of which has a flag of its own.
type fileConfig struct {
	Trace  string `toml:"trace"`  // default LAMVM_TRACE topic list
	Prompt string `toml:"prompt"` // REPL primary prompt, default "> "
}

func main() {
	dumpTAC := flag.Bool("dump-tac", false, "print TAC per function (before assembly) before running")
	dumpConst := flag.Bool("dump-const", false, "print the raw const table words before running")
	dumpNST := flag.Bool("dump-nst", false, "print the normalized NST before codegen")
	configPath := flag.String("config", "", "path to a lamvm.toml config file")
	flag.Parse()

	cfg := loadConfig(*configPath)
	if cfg.Trace != "" {
		os.Setenv("LAMVM_TRACE", cfg.Trace)
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = "> "
	}

	opts := driver.DumpOptions{TAC: *dumpTAC, Const: *dumpConst, NST: *dumpNST}

	switch flag.NArg() {
	case 0:
		runRepl(opts, prompt)
	case 1:
		runFile(flag.Arg(0), opts)
	default:
		fmt.Fprintln(os.Stderr, "usage: lamvm [-dump-tac] [-dump-const] [-dump-nst] [-config path] [script]")
		os.Exit(64)
	}
}

func loadConfig(path string) fileConfig {
	var cfg fileConfig
	if path == "" {
		return cfg
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "lamvm: failed to read config %q: %s\n", path, err)
		os.Exit(70)
	}
	return cfg
}

func runFile(path string, opts driver.DumpOptions) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lamvm: failed to read %q: %s\n", path, err)
		os.Exit(70)
	}
	value, errs := driver.Run(string(src), opts, os.Stdout)
	if !driver.DisplayResult(os.Stdout, string(src), value, errs) {
		os.Exit(70)
	}
}

// runRepl reads line by line; `.quit`/`.exit` end the session, and a line
// whose braces don't balance switches to a `...` continuation prompt until
// they do.
func runRepl(opts driver.DumpOptions, prompt string) {
	scanner := bufio.NewScanner(os.Stdin)
	session := driver.NewSession(opts, os.Stdout)

	fmt.Println("lamvm (.quit or .exit to leave)")
entries:
	for {
		fmt.Print(prompt)
		var buf strings.Builder
		depth := 0
		first := true
		for {
			if !scanner.Scan() {
				fmt.Println()
				return
			}
			line := scanner.Text()
			if first {
				trimmed := strings.TrimSpace(line)
				if trimmed == ".quit" || trimmed == ".exit" {
					return
				}
				if trimmed == "" {
					continue entries
				}
			}
			buf.WriteString(line)
			buf.WriteByte('\n')
			depth += braceDelta(line)
			if depth <= 0 {
				break
			}
			fmt.Print("... ")
			first = false
		}
		value, errs := session.Eval(buf.String())
		driver.DisplayResult(os.Stdout, buf.String(), value, errs)
	}
}

func braceDelta(line string) int {
	delta := 0
	for _, ch := range line {
		switch ch {
		case '{':
			delta++
		case '}':
			delta--
		}
	}
	return delta
}
