package session

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Env represents a mutable environment variable table.
type Env interface {
	// UserHomeDir returns the current user's home directory.
	UserHomeDir() (string, error)

	// Unsetenv unsets a single environment variable.
	Unsetenv(key string) error

	// Setenv sets the value of the environment variable named by the key.
	// It returns an error, if any.
	Setenv(key, value string) error

	// LookupEnv retrieves the value of the environment variable named by the key.
	// If the variable is present in the environment the value (which may be
	// empty) is returned and the boolean is true. Otherwise the returned value
	// will be empty and the boolean will be false.
	LookupEnv(key string) (string, bool)

	// Getenv retrieves the value of the environment variable named by the key.
	// It returns the value, which will be empty if the variable is not present.
	// To distinguish between an empty value and an unset value, use LookupEnv.
	Getenv(key string) string

	// ExpandEnv replaces ${var} or $var in the string according to the values of
	// the current environment variables. References to undefined variables are
	// replaced by the empty string.
	ExpandEnv(s string) string

	// Environ returns a copy of strings representing the environment, in the
	// form "key=value".
	Environ() []string

	// Clearenv deletes all environment variables.
	Clearenv()
}

type EnvironFetcher interface {
	// Environ returns a copy of strings representing the environment, in the
	// form "key=value".
	Environ() []string
}

// CopyEnv copies all the environment variables from src to dst.
func CopyEnv(dst Env, src EnvironFetcher) error {
	for _, e := range src.Environ() {
		split := strings.SplitN(e, "=", 2)
		key, value := split[0], ""
		if len(split) > 1 {
			value = split[1]
		}
		if err := dst.Setenv(key, value); err != nil {
			return err
		}
	}

	return nil
}

// NewOrderedEnv creates a new empty environment.
func NewOrderedEnv() *OrderedEnv {
	return &OrderedEnv{}
}

// NewOrderedEnvFrom creates a new environment with a copy of the environment
// variables in the original environment.
func NewOrderedEnvFrom(src EnvironFetcher) *OrderedEnv {
	return NewOrderedEnvFromEnvList(src.Environ())
}

// NewOrderedEnvFromEnvList creates a new environment from a list of
// "key=value" entries like the one returned by os.Environ.
func NewOrderedEnvFromEnvList(environ []string) *OrderedEnv {
	out := &OrderedEnv{}

	for _, e := range environ {
		split := strings.SplitN(e, "=", 2)
		key, value := split[0], ""
		if len(split) > 1 {
			value = split[1]
		}
		// Ignore error, blank keys in the host environment are skipped.
		_ = out.Setenv(key, value)
	}

	return out
}

// OrderedEnv implements an in-memory Env that preserves insertion order.
// Overwriting an existing variable keeps its original position, new
// variables append to the end.
type OrderedEnv struct {
	rw   sync.RWMutex
	keys []string
	env  map[string]string
}

var _ Env = (*OrderedEnv)(nil)

// UserHomeDir implements Env.UserHomeDir.
func (m *OrderedEnv) UserHomeDir() (string, error) {
	return m.Getenv("HOME"), nil
}

// Unsetenv implements Env.Unsetenv.
func (m *OrderedEnv) Unsetenv(key string) error {
	m.rw.Lock()
	defer m.rw.Unlock()

	if _, ok := m.env[key]; !ok {
		return nil
	}
	delete(m.env, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return nil
}

// Setenv implements Env.Setenv. Keys must be non-blank and can't contain
// an equals sign, mirroring what a process environment can represent.
func (m *OrderedEnv) Setenv(key, value string) error {
	if key == "" || strings.Contains(key, "=") {
		return fmt.Errorf("invalid environment variable name: %q", key)
	}

	m.rw.Lock()
	defer m.rw.Unlock()

	if m.env == nil {
		m.env = make(map[string]string)
	}
	if _, ok := m.env[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.env[key] = value
	return nil
}

// LookupEnv implements Env.LookupEnv.
func (m *OrderedEnv) LookupEnv(key string) (string, bool) {
	m.rw.RLock()
	defer m.rw.RUnlock()

	val, ok := m.env[key]
	return val, ok
}

// Getenv implements Env.Getenv.
func (m *OrderedEnv) Getenv(key string) string {
	val, _ := m.LookupEnv(key)
	return val
}

// ExpandEnv implements Env.ExpandEnv.
func (m *OrderedEnv) ExpandEnv(s string) string {
	return os.Expand(s, m.Getenv)
}

// Environ implements Env.Environ. Entries come back in insertion order.
func (m *OrderedEnv) Environ() []string {
	m.rw.RLock()
	defer m.rw.RUnlock()

	env := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		env = append(env, fmt.Sprintf("%s=%s", k, m.env[k]))
	}

	return env
}

// Len returns the number of variables in the environment.
func (m *OrderedEnv) Len() int {
	m.rw.RLock()
	defer m.rw.RUnlock()

	return len(m.keys)
}

// Clearenv implements Env.Clearenv.
func (m *OrderedEnv) Clearenv() {
	m.rw.Lock()
	defer m.rw.Unlock()
	m.keys = nil
	m.env = make(map[string]string)
}
