package core

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/josephlewis42/subsh/core/session"
)

// shellCompleter implements readline's AutoCompleter against a live
// session. On the first word of a stage it offers command names (builtins
// plus executables found on the session PATH), a leading "$" offers
// environment variable names, and everything else offers file paths
// relative to the session's working directory.
type shellCompleter struct {
	session *session.Session

	scanOnce sync.Once
	commands []string
}

func newShellCompleter(sess *session.Session) *shellCompleter {
	return &shellCompleter{session: sess}
}

// Do implements readline.AutoCompleter. Candidates are returned as the
// text remaining after the typed word, in sorted order.
func (c *shellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	before := string(line[:pos])
	word := currentWord(before)

	var matches []string
	switch {
	case strings.HasPrefix(word, "$"):
		matches = c.environMatches(word)
	case firstWordOfStage(before, word):
		matches = append(prefixMatches(c.pathCommands(), word), c.pathMatches(word)...)
	default:
		matches = c.pathMatches(word)
	}

	var out [][]rune
	for _, m := range matches {
		out = append(out, []rune(strings.TrimPrefix(m, word)))
	}
	return out, len([]rune(word))
}

// currentWord returns the partial word ending at the cursor.
func currentWord(before string) string {
	if i := strings.LastIndexAny(before, " \t"); i >= 0 {
		return before[i+1:]
	}
	return before
}

// firstWordOfStage reports whether word is in command position: the start
// of the line or the first word after a "|".
func firstWordOfStage(before, word string) bool {
	rest := strings.TrimSpace(strings.TrimSuffix(before, word))
	return rest == "" || strings.HasSuffix(rest, "|")
}

// pathCommands scans the session PATH for executable names. The scan runs
// once per shell; builtins are always included.
func (c *shellCompleter) pathCommands() []string {
	c.scanOnce.Do(func() {
		seen := make(map[string]bool)
		for name := range AllBuiltins {
			seen[name] = true
		}

		for _, dir := range filepath.SplitList(c.session.Getenv(EnvPath)) {
			if dir == "" {
				dir = "."
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, entry := range entries {
				// Stat rather than entry.Info so symlinked executables
				// resolve to their target's mode.
				info, err := os.Stat(filepath.Join(dir, entry.Name()))
				if err != nil || info.IsDir() || info.Mode()&0111 == 0 {
					continue
				}
				seen[entry.Name()] = true
			}
		}

		for name := range seen {
			c.commands = append(c.commands, name)
		}
		sort.Strings(c.commands)
	})
	return c.commands
}

// environMatches completes "$NAME" against the session environment.
func (c *shellCompleter) environMatches(word string) []string {
	prefix := strings.TrimPrefix(word, "$")

	var matches []string
	for _, kv := range c.session.Environ() {
		name := strings.SplitN(kv, "=", 2)[0]
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, "$"+name)
		}
	}
	sort.Strings(matches)
	return matches
}

// pathMatches completes file and directory names. Relative words resolve
// against the session's working directory, and directories come back with
// a trailing slash so completion can continue into them.
func (c *shellCompleter) pathMatches(word string) []string {
	dir, partial := filepath.Split(word)

	scanDir := dir
	if scanDir == "" {
		scanDir = c.session.WorkingDirectory()
	} else if !filepath.IsAbs(scanDir) {
		scanDir = filepath.Join(c.session.WorkingDirectory(), scanDir)
	}

	entries, err := os.ReadDir(scanDir)
	if err != nil {
		return nil
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, partial) {
			continue
		}
		if entry.IsDir() {
			name += "/"
		}
		matches = append(matches, dir+name)
	}
	sort.Strings(matches)
	return matches
}

func prefixMatches(candidates []string, word string) []string {
	var matches []string
	for _, candidate := range candidates {
		if strings.HasPrefix(candidate, word) {
			matches = append(matches, candidate)
		}
	}
	return matches
}
