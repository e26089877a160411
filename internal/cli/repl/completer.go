package repl

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// metaCommands are completed after ':'.
var metaCommands = []string{":help", ":history", ":quit", ":session"}

// Completer completes REPL commands and names seen in earlier input.
type Completer struct {
	mu    sync.Mutex
	words map[string]struct{}
}

// NewCompleter creates a Completer seeded with extra words, such as
// built-in names of the kernel language.
func NewCompleter(words ...string) *Completer {
	c := &Completer{words: make(map[string]struct{})}
	for _, w := range words {
		c.words[w] = struct{}{}
	}
	return c
}

// Learn records identifiers from code for later completion.
func (c *Completer) Learn(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range strings.FieldsFunc(code, notIdent) {
		if len(w) >= 3 && !unicode.IsDigit(rune(w[0])) {
			c.words[w] = struct{}{}
		}
	}
}

// Complete returns completions for prefix, sorted.
func (c *Completer) Complete(prefix string) []string {
	if prefix == "" {
		return nil
	}
	var out []string
	if strings.HasPrefix(prefix, ":") {
		for _, cmd := range metaCommands {
			if strings.HasPrefix(cmd, prefix) {
				out = append(out, cmd)
			}
		}
		return out
	}

	c.mu.Lock()
	for w := range c.words {
		if strings.HasPrefix(w, prefix) && w != prefix {
			out = append(out, w)
		}
	}
	c.mu.Unlock()
	sort.Strings(out)
	return out
}

// Callback implements term.Terminal.AutoCompleteCallback for Tab.
func (c *Completer) Callback(line string, pos int, key rune) (string, int, bool) {
	if key != '\t' {
		return "", 0, false
	}

	head := line[:pos]
	start := strings.LastIndexFunc(head, func(r rune) bool { return notIdent(r) && r != ':' })
	if start >= 0 {
		_, size := utf8.DecodeRuneInString(head[start:])
		start += size
	} else {
		start = 0
	}
	prefix := head[start:]

	matches := c.Complete(prefix)
	if len(matches) == 0 {
		return "", 0, false
	}
	completion := commonPrefix(matches)
	if len(completion) <= len(prefix) {
		return "", 0, false
	}

	newLine := head[:start] + completion + line[pos:]
	return newLine, start + len(completion), true
}

func notIdent(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$'
}

func commonPrefix(words []string) string {
	prefix := words[0]
	for _, w := range words[1:] {
		for !strings.HasPrefix(w, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}
