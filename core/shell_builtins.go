package core

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pborman/getopt/v2"
)

// AllBuiltins holds the shell builtins dispatched before the engine sees
// a command. The engine's own cd handling stays reachable through the
// registry so session state updates flow through one path.
var AllBuiltins = map[string]ShellBuiltin{
	"exit":    ShellBuiltinFunc(Exit),
	"cd":      ShellBuiltinFunc(Cd),
	"pwd":     ShellBuiltinFunc(Pwd),
	"export":  ShellBuiltinFunc(Export),
	"unset":   ShellBuiltinFunc(Unset),
	"env":     ShellBuiltinFunc(Env),
	"history": ShellBuiltinFunc(History),
}

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// Exit quits the shell.
func Exit(s *Shell, args []string) int {
	s.exitRequested = true
	return 0
}

// Cd is the cd shell builtin. It runs through the engine so the session's
// working directory, exit code, and error text stay consistent.
func Cd(s *Shell, args []string) int {
	if len(args) > 2 {
		fmt.Fprintf(s.stderr, "%s: too many arguments\n", args[0])
		return 1
	}
	code := s.Runner.Run(s.Session, args)
	if code != 0 {
		if msg, ok := s.Session.LastError(); ok {
			fmt.Fprintln(s.stderr, msg)
		}
	}
	return code
}

// Pwd prints the session's working directory.
func Pwd(s *Shell, args []string) int {
	fmt.Fprintln(s.Runner.stdout(), s.Session.WorkingDirectory())
	return 0
}

// Export sets NAME=VALUE pairs in the session environment. A bare NAME
// ensures the variable exists with its current (or empty) value.
func Export(s *Shell, args []string) int {
	status := 0
	for _, arg := range args[1:] {
		split := strings.SplitN(arg, "=", 2)
		name, value := split[0], ""
		if len(split) > 1 {
			value = split[1]
		} else {
			value = s.Session.Getenv(name)
		}
		if err := s.Session.Setenv(name, value); err != nil {
			fmt.Fprintf(s.stderr, "export: %v\n", err)
			status = 1
		}
	}
	return status
}

// Unset removes variables from the session environment.
func Unset(s *Shell, args []string) int {
	opts := getopt.New()
	opts.Bool('f', "treat NAME as a function")
	opts.Bool('v', "treat NAME as a variable")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	optErr := opts.Getopt(args, nil)
	if optErr != nil || *helpOpt {
		fmt.Fprintln(s.stderr, "usage: unset [-fv] [NAME...]")
		fmt.Fprintln(s.stderr, "Unset shell variables.")
		if optErr != nil {
			return 1
		}
		return 0
	}

	for _, name := range opts.Args() {
		_ = s.Session.Unsetenv(name)
	}
	return 0
}

// Env prints the session environment, one NAME=VALUE per line in
// insertion order.
func Env(s *Shell, args []string) int {
	w := s.Runner.stdout()
	for _, kv := range s.Session.Environ() {
		fmt.Fprintln(w, kv)
	}
	return 0
}

// History displays or clears the shell's history file.
func History(s *Shell, args []string) int {
	opts := getopt.New()
	clearOpt := opts.Bool('c', "clear the history by deleting all entries")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	optErr := opts.Getopt(args, nil)
	if optErr != nil || *helpOpt {
		fmt.Fprintln(s.stderr, "usage: history [-c]")
		fmt.Fprintln(s.stderr, "Display or clear the history list.")
		if optErr != nil {
			return 1
		}
		return 0
	}

	if s.historyPath == "" {
		return 0
	}

	if *clearOpt {
		if err := os.Truncate(s.historyPath, 0); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(s.stderr, "history: %v\n", err)
			return 1
		}
		return 0
	}

	fd, err := os.Open(s.historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		fmt.Fprintf(s.stderr, "history: %v\n", err)
		return 1
	}
	defer fd.Close()

	w := s.Runner.stdout()
	scanner := bufio.NewScanner(fd)
	for i := 1; scanner.Scan(); i++ {
		fmt.Fprintf(w, "%5d  %s\n", i, scanner.Text())
	}
	return 0
}
