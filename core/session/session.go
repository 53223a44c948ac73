// Package session holds the mutable state a command executor operates on:
// the working directory, the environment table, and the outcome of the
// most recent invocation.
package session

import (
	"os"

	"golang.org/x/term"
)

// Session is the state shared across invocations of the executors.
//
// A Session owns its environment table exclusively. Executors snapshot it
// via Environ() at spawn time, so mutating the session while a child is
// running never affects that child.
type Session struct {
	env *OrderedEnv

	workingDirectory string
	lastExitCode     int
	lastErrorText    string
	hasError         bool
	interactive      bool
}

// NewSession creates a Session seeded from the host process: the working
// directory comes from os.Getwd, the environment is a copy (not an alias)
// of os.Environ, the last exit code is zero and no error is set.
func NewSession() (*Session, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	return &Session{
		env:              NewOrderedEnvFromEnvList(os.Environ()),
		workingDirectory: wd,
		interactive:      term.IsTerminal(int(os.Stdin.Fd())),
	}, nil
}

// WorkingDirectory returns the session's current working directory.
func (s *Session) WorkingDirectory() string {
	return s.workingDirectory
}

// Interactive reports whether the session's controlling input stream was a
// terminal when the session was created.
func (s *Session) Interactive() bool {
	return s.interactive
}

// LastExitCode returns the exit code of the most recent invocation.
func (s *Session) LastExitCode() int {
	return s.lastExitCode
}

// Chdir changes the process working directory to path. On success the
// session's working directory is refreshed from the OS rather than the
// input string so symlinks and relative components resolve. On failure the
// session is left untouched and the OS error is returned.
func (s *Session) Chdir(path string) error {
	if err := os.Chdir(path); err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	s.workingDirectory = wd
	return nil
}

// Getenv retrieves the value of the named session environment variable.
func (s *Session) Getenv(key string) string {
	return s.env.Getenv(key)
}

// LookupEnv retrieves the named variable and whether it is present.
func (s *Session) LookupEnv(key string) (string, bool) {
	return s.env.LookupEnv(key)
}

// Setenv inserts or overwrites a session environment variable.
func (s *Session) Setenv(key, value string) error {
	return s.env.Setenv(key, value)
}

// Unsetenv removes a session environment variable.
func (s *Session) Unsetenv(key string) error {
	return s.env.Unsetenv(key)
}

// ExpandEnv replaces ${var} or $var in s using the session environment.
func (s *Session) ExpandEnv(str string) string {
	return s.env.ExpandEnv(str)
}

// Environ returns a copy of the session environment in "key=value" form,
// in insertion order, suitable for passing to a spawned process.
func (s *Session) Environ() []string {
	return s.env.Environ()
}

// Env returns the session's environment table.
func (s *Session) Env() *OrderedEnv {
	return s.env
}

// LastError returns the error text of the most recent failing invocation.
// The boolean is false when the most recent invocation succeeded.
func (s *Session) LastError() (string, bool) {
	return s.lastErrorText, s.hasError
}

// SetExitStatus records the outcome of an invocation. Intended for use by
// executors only.
func (s *Session) SetExitStatus(code int) {
	s.lastExitCode = code
}

// SetLastError records error text for the current invocation. Intended for
// use by executors only.
func (s *Session) SetLastError(text string) {
	s.lastErrorText = text
	s.hasError = true
}

// ClearLastError discards any stored error text. Executors call this at
// the start of every invocation so stale errors never leak into later
// results.
func (s *Session) ClearLastError() {
	s.lastErrorText = ""
	s.hasError = false
}

// Close tears down the session. The session must not be used afterwards.
func (s *Session) Close() error {
	s.env.Clearenv()
	return nil
}
