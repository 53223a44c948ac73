package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/anmitsu/go-shlex"
	"github.com/fatih/color"
	"github.com/josephlewis42/subsh/core/config"
	"github.com/josephlewis42/subsh/core/logger"
	"github.com/josephlewis42/subsh/core/session"
	"golang.org/x/term"
)

const (
	EnvPWD      = "PWD"
	EnvPrompt   = "PS1"
	EnvHostname = "HOSTNAME"
	EnvUser     = "USER"

	DefaultPrompt = `\u@\h:\w\$ `
)

var (
	promptUserColor = color.New(color.FgGreen, color.Bold)
	promptDirColor  = color.New(color.FgBlue, color.Bold)
	errorColor      = color.New(color.FgRed)
)

// ShellIO carries the streams and terminal callbacks a shell host runs
// against. Local and SSH hosts differ only in how they build one.
type ShellIO struct {
	Stdin  io.ReadCloser
	Stdout io.Writer
	Stderr io.Writer

	IsTerminal func() bool
	Width      func() int
}

// StdShellIO returns a ShellIO wired to the host process's terminal.
func StdShellIO() ShellIO {
	return ShellIO{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
		Width: func() int {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil {
				return 80
			}
			return w
		},
	}
}

// Shell is an interactive host for the execution engine. It owns the
// tokenization the engine deliberately leaves to its caller: lines are
// split with shlex, expanded against the session environment, and cut
// into pipeline stages at "|" tokens before being handed to the engine.
type Shell struct {
	Session  *session.Session
	Runner   *Runner
	Pipeline *Pipeline
	Readline *readline.Instance

	configuration *config.Configuration
	historyPath   string
	stderr        io.Writer
	log           *logger.SessionLogger

	exitRequested bool
}

// NewShell builds a shell for the session over the given streams.
func NewShell(configuration *config.Configuration, sess *session.Session, vio ShellIO, slog *logger.SessionLogger) (*Shell, error) {
	policy, err := PolicyFromName(configuration.Shell.SourcingPolicy)
	if err != nil {
		return nil, err
	}

	runner := &Runner{
		Policy:       policy,
		Shell:        configuration.Shell.DefaultShell,
		CaptureLimit: configuration.Shell.CaptureLimit,
		Stdin:        vio.Stdin,
		Stdout:       vio.Stdout,
		Log:          slog,
	}

	historyPath := ""
	if configuration.HistoryFile != "" {
		if home := sess.Getenv(EnvHome); home != "" {
			historyPath = filepath.Join(home, configuration.HistoryFile)
		}
	}

	cfg := &readline.Config{
		Stdin:        readline.NewCancelableStdin(vio.Stdin),
		Stdout:       vio.Stdout,
		Stderr:       vio.Stderr,
		HistoryFile:  historyPath,
		AutoComplete: newShellCompleter(sess),

		FuncGetWidth:   vio.Width,
		FuncIsTerminal: vio.IsTerminal,
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}

	shell := &Shell{
		Session:       sess,
		Runner:        runner,
		Pipeline:      &Pipeline{Runner: runner, Stderr: vio.Stderr},
		Readline:      rl,
		configuration: configuration,
		historyPath:   historyPath,
		stderr:        vio.Stderr,
		log:           slog,
	}

	if slog != nil {
		slog.Record(&logger.SessionStart{
			WorkingDirectory: sess.WorkingDirectory(),
			Interactive:      sess.Interactive(),
			EnvironSize:      len(sess.Environ()),
		})
	}

	return shell, nil
}

// PolicyFromName maps a configuration policy name to a SourcingPolicy.
func PolicyFromName(name string) (SourcingPolicy, error) {
	switch name {
	case "", "exec":
		return ExecPolicy, nil
	case "shell":
		return ShellPolicy, nil
	default:
		return ExecPolicy, fmt.Errorf("unknown sourcing policy: %q", name)
	}
}

// Prompt renders the PS1-style prompt from the session environment,
// falling back to the configured prompt.
func (s *Shell) Prompt() string {
	prompt := s.Session.Getenv(EnvPrompt)
	if prompt == "" {
		prompt = s.configuration.Prompt
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	user := s.Session.Getenv(EnvUser)
	host := s.Session.Getenv(EnvHostname)
	if host == "" {
		host, _ = os.Hostname()
	}

	pwd := s.Session.WorkingDirectory()
	if home := s.Session.Getenv(EnvHome); home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	prompt = strings.ReplaceAll(prompt, `\u`, promptUserColor.Sprint(user))
	prompt = strings.ReplaceAll(prompt, `\h`, promptUserColor.Sprint(host))
	prompt = strings.ReplaceAll(prompt, `\w`, promptDirColor.Sprint(pwd))

	if os.Geteuid() == 0 {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	return prompt
}

// SplitPipeline cuts a token list into pipeline stages at "|" tokens.
// A leading, trailing, or doubled "|" produces an empty stage, which the
// engine rejects with a descriptive error.
func SplitPipeline(tokens []string) [][]string {
	var stages [][]string
	current := []string{}
	for _, tok := range tokens {
		if tok == "|" {
			stages = append(stages, current)
			current = []string{}
			continue
		}
		current = append(current, tok)
	}
	stages = append(stages, current)

	// A bare command with no "|" is still one stage; drop the synthetic
	// trailing stage only when there were no tokens at all.
	if len(stages) == 1 && len(stages[0]) == 0 {
		return nil
	}
	return stages
}

// Run reads and executes lines until EOF or the exit builtin.
func (s *Shell) Run() error {
	for {
		s.Readline.SetPrompt(s.Prompt())
		line, err := s.Readline.Readline()

		switch {
		case err == io.EOF:
			return nil // Input closed, quit.

		case err == readline.ErrInterrupt:
			continue // ^C discards the line.

		case err != nil:
			log.Printf("Error readline: %v", err)
			continue

		case len(strings.TrimSpace(line)) == 0:
			continue // empty line
		}

		s.Interpret(line)
		if s.exitRequested {
			return nil
		}
	}
}

// Interpret tokenizes and runs a single line.
func (s *Shell) Interpret(line string) int {
	tokens, err := shlex.Split(line, true)
	if err != nil {
		fmt.Fprintln(s.stderr, "syntax error: unexpected end of file")
		return ExitInternalError
	}
	for i, tok := range tokens {
		tokens[i] = s.Session.ExpandEnv(tok)
	}

	stages := SplitPipeline(tokens)
	if len(stages) == 0 {
		return 0
	}

	if len(stages) == 1 {
		if builtin, ok := AllBuiltins[stages[0][0]]; ok {
			return builtin.Main(s, stages[0])
		}
	}

	code := s.Pipeline.Run(s.Session, stages)
	if code != 0 {
		if msg, ok := s.Session.LastError(); ok {
			errorColor.Fprintln(s.stderr, msg)
		}
	}
	return code
}

// Close releases the shell's readline resources. The session is owned by
// the caller and stays usable.
func (s *Shell) Close() error {
	if s.log != nil {
		s.log.Record(&logger.SessionEnd{LastExitCode: s.Session.LastExitCode()})
	}
	return s.Readline.Close()
}
