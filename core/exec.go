// Package core implements the process-execution engine: a single-command
// runner, a pipeline runner, and the hosts (shell, SSH server) that drive
// them against a session.
package core

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/josephlewis42/subsh/core/logger"
	"github.com/josephlewis42/subsh/core/session"
)

const (
	EnvHome  = "HOME"
	EnvShell = "SHELL"
	EnvPath  = "PATH"

	// ExitExecFailure is reported when the target program could not be
	// started, matching shell convention for "command not found".
	ExitExecFailure = 127

	// ExitInternalError is reserved for engine failures (invalid
	// invocation, spawn failure) and for children killed by a signal. It
	// is distinct from any code a child can report.
	ExitInternalError = -1

	// DefaultCaptureLimit bounds how many standard-error bytes a run
	// stores on the session. Bytes past the limit are drained and
	// discarded so the child never blocks on a full pipe.
	DefaultCaptureLimit = 4096

	// DefaultShell interprets joined command lines when ShellPolicy is
	// active and the session has no SHELL variable.
	DefaultShell = "/bin/sh"
)

// ErrNotFound is the error resulting if a path search failed to find an
// executable file.
var ErrNotFound = exec.ErrNotFound

// SourcingPolicy selects how an argument vector becomes a running process.
type SourcingPolicy int

const (
	// ExecPolicy resolves argv[0] on the search path and passes the
	// vector to the program verbatim. No shell syntax is interpreted.
	ExecPolicy SourcingPolicy = iota

	// ShellPolicy joins the vector with single spaces and hands the
	// resulting line to `$SHELL -c`. Shell metacharacters work, but the
	// naive join does not re-quote arguments: an argument containing
	// spaces or metacharacters is reinterpreted by the shell. Callers
	// choosing this policy accept that limitation.
	ShellPolicy
)

// EnvGetter is the subset of a session needed for path lookups.
type EnvGetter interface {
	Getenv(key string) string
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories named
// by the PATH variable of the given environment. If file contains a slash,
// it is tried directly and the PATH is not consulted. The result may be an
// absolute path or a path relative to the current directory.
func LookPath(env EnvGetter, file string) (string, error) {
	if strings.Contains(file, "/") {
		err := findExecutable(file)
		if err == nil {
			return file, nil
		}
		return "", err
	}
	path := env.Getenv(EnvPath)
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", ErrNotFound
}

// Runner executes one command at a time against a session.
//
// The zero value is usable: it spawns with ExecPolicy, captures up to
// DefaultCaptureLimit bytes of standard error, and inherits the host
// process's stdin/stdout.
type Runner struct {
	// Policy selects the sourcing policy for spawned commands.
	Policy SourcingPolicy

	// Shell overrides DefaultShell for ShellPolicy when the session has
	// no SHELL variable.
	Shell string

	// CaptureLimit overrides DefaultCaptureLimit when positive.
	CaptureLimit int

	// Stdin and Stdout are handed to spawned children. Standard error is
	// never handed down by Run: it always flows through the capture pipe.
	Stdin  io.Reader
	Stdout io.Writer

	// Log, if set, records an event per invocation.
	Log *logger.SessionLogger
}

func (r *Runner) stdin() io.Reader {
	if r.Stdin != nil {
		return r.Stdin
	}
	return os.Stdin
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) captureLimit() int {
	if r.CaptureLimit > 0 {
		return r.CaptureLimit
	}
	return DefaultCaptureLimit
}

// command builds the exec.Cmd for argv under the runner's sourcing policy.
// The session environment and working directory are snapshotted here, so
// later session mutation can't affect the child.
func (r *Runner) command(sess *session.Session, argv []string) (*exec.Cmd, error) {
	var path string
	var args []string

	switch r.Policy {
	case ShellPolicy:
		shell := sess.Getenv(EnvShell)
		if shell == "" {
			shell = r.Shell
		}
		if shell == "" {
			shell = DefaultShell
		}
		resolved, err := LookPath(sess, shell)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", shell, err)
		}
		path = resolved
		args = []string{shell, "-c", strings.Join(argv, " ")}

	default:
		resolved, err := LookPath(sess, argv[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %v", argv[0], err)
		}
		path = resolved
		args = argv
	}

	return &exec.Cmd{
		Path: path,
		Args: args,
		Env:  sess.Environ(),
		Dir:  sess.WorkingDirectory(),
	}, nil
}

// Run executes a single command and returns its exit status, updating the
// session's exit code and error text.
//
// argv[0] may be the builtin name "cd", which is handled without spawning
// a process. Everything else spawns a child with its standard error
// redirected into a capture pipe; if the child fails, the captured bytes
// become the session's error text.
func (r *Runner) Run(sess *session.Session, argv []string) int {
	sess.ClearLastError()

	if len(argv) == 0 {
		return r.fail(sess, "empty argument vector")
	}

	if argv[0] == "cd" {
		return r.runCd(sess, argv)
	}

	cmd, err := r.command(sess, argv)
	if err != nil {
		// Program (or shell) not found: same observable outcome as an
		// exec failure after fork, minus the process.
		sess.SetLastError(err.Error())
		sess.SetExitStatus(ExitExecFailure)
		r.record(sess, argv, ExitExecFailure)
		return ExitExecFailure
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return r.fail(sess, fmt.Sprintf("pipe: %v", err))
	}

	cmd.Stdin = r.stdin()
	cmd.Stdout = r.stdout()
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		// The lookup succeeded, so the program exists; failing to spawn
		// it is an engine failure rather than a missing program.
		sess.SetLastError(fmt.Sprintf("%s: %v", argv[0], err))
		sess.SetExitStatus(ExitInternalError)
		r.record(sess, argv, ExitInternalError)
		return ExitInternalError
	}

	// The child holds the only remaining write end; close ours before
	// reading so EOF arrives when the child exits.
	pw.Close()
	captured := readCapped(pr, r.captureLimit())
	pr.Close()

	code := waitStatus(cmd)
	if code != 0 && len(captured) > 0 {
		sess.SetLastError(strings.TrimRight(string(captured), "\n"))
	}
	sess.SetExitStatus(code)
	r.record(sess, argv, code)
	return code
}

func (r *Runner) runCd(sess *session.Session, argv []string) int {
	target := ""
	if len(argv) > 1 {
		target = argv[1]
	} else {
		target = sess.Getenv(EnvHome)
	}
	if target == "" {
		return r.fail(sess, "cd: HOME not set")
	}

	if err := sess.Chdir(target); err != nil {
		sess.SetLastError(err.Error())
		sess.SetExitStatus(ExitInternalError)
		r.record(sess, argv, ExitInternalError)
		return ExitInternalError
	}

	sess.SetExitStatus(0)
	if r.Log != nil {
		r.Log.Record(&logger.DirChange{Path: sess.WorkingDirectory()})
	}
	return 0
}

// fail records an engine failure: no process ran, exit code is
// ExitInternalError and the text explains why.
func (r *Runner) fail(sess *session.Session, text string) int {
	sess.SetLastError(text)
	sess.SetExitStatus(ExitInternalError)
	return ExitInternalError
}

func (r *Runner) record(sess *session.Session, argv []string, code int) {
	if r.Log == nil {
		return
	}
	errText, _ := sess.LastError()
	r.Log.Record(&logger.CommandRun{
		Argv:     argv,
		ExitCode: code,
		Error:    errText,
	})
}

// readCapped reads at most limit bytes from r, then drains and discards
// the rest so a verbose writer never blocks on a full pipe.
func readCapped(r io.Reader, limit int) []byte {
	buf := make([]byte, limit)
	n := 0
	for n < limit {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return buf[:n]
		}
	}
	io.Copy(io.Discard, r)
	return buf[:n]
}

// waitStatus reaps cmd and decodes its exit status: the child's code when
// it exited normally, ExitInternalError when it died to a signal.
func waitStatus(cmd *exec.Cmd) int {
	err := cmd.Wait()
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		// ExitCode is -1 for signal termination, which is exactly the
		// sentinel the engine reports.
		return exitErr.ProcessState.ExitCode()
	}
	return ExitInternalError
}
