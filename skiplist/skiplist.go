/*
NaiveSystems Analyze - A tool for static code analysis
Copyright (C) 2023  Naive Systems Ltd.

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

/*
Package skiplist decides which source files take part in a pipeline phase.

A skip list is a newline separated list of glob rules. A rule starting with
"-" excludes the files it matches; a rule starting with "+", or with no sign,
includes them. Blank lines and lines starting with "#" are ignored. The last
rule matching a path decides; a path no rule matches is included.

Patterns follow fnmatch: "*" and "?" also match "/", "[...]" is a character
class ("[!...]" negates it, and a "]" right after "[" or "[!" is a member),
and "\" escapes the next character. "{a,b}" matches either alternative. A
pattern ending in "/" matches everything below that directory.
*/
package skiplist

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"github.com/golang/glog"
)

var ErrSyntax = errors.New("malformed skip rule")

type rule struct {
	include bool
	pattern string
	g       glob.Glob
}

// Handler holds the rules of one skip list. A nil *Handler includes everything.
type Handler struct {
	rules []rule
}

// NewHandler parses a skip list. Any malformed rule makes the whole list
// invalid and the returned error wraps ErrSyntax.
func NewHandler(content string) (*Handler, error) {
	h := &Handler{}
	for idx, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r := rule{include: true, pattern: line}
		switch line[0] {
		case '-':
			r.include = false
			r.pattern = strings.TrimSpace(line[1:])
		case '+':
			r.pattern = strings.TrimSpace(line[1:])
		}
		if r.pattern == "" {
			return nil, fmt.Errorf("%w: line %d: %q has no pattern", ErrSyntax, idx+1, line)
		}
		g, err := compile(r.pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q: %v", ErrSyntax, idx+1, line, err)
		}
		r.g = g
		h.rules = append(h.rules, r)
	}
	return h, nil
}

// NewHandlerFromFile parses the skip list stored at path.
func NewHandlerFromFile(path string) (*Handler, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	h, err := NewHandler(string(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// Match reports whether path is included.
func (h *Handler) Match(path string) bool {
	if h == nil {
		return true
	}
	for i := len(h.rules) - 1; i >= 0; i-- {
		if h.rules[i].g.Match(path) {
			if !h.rules[i].include {
				glog.V(2).Infof("%s skipped due to pattern %s", path, h.rules[i].pattern)
			}
			return h.rules[i].include
		}
	}
	return true
}

// ShouldSkip reports whether path is excluded. It is the negation of Match.
func (h *Handler) ShouldSkip(path string) bool {
	return !h.Match(path)
}

// Len returns the number of rules. Comments and blank lines are not rules.
func (h *Handler) Len() int {
	if h == nil {
		return 0
	}
	return len(h.rules)
}

// Compiles a pattern without separators, so that wildcards cross "/".
func compile(pattern string) (glob.Glob, error) {
	if strings.HasSuffix(pattern, "/") {
		pattern += "*"
	}
	return glob.Compile(escapeClassBracket(pattern))
}

// Escapes a "]" which opens a character class. fnmatch reads it as a member
// of the class; glob would close the class there.
func escapeClassBracket(pattern string) string {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		b.WriteByte(c)
		switch {
		case c == '\\' && i+1 < len(pattern):
			i++
			b.WriteByte(pattern[i])
		case c == '[' && !inClass:
			inClass = true
			if i+1 < len(pattern) && pattern[i+1] == '!' {
				i++
				b.WriteByte('!')
			}
			if i+1 < len(pattern) && pattern[i+1] == ']' {
				i++
				b.WriteString(`\]`)
			}
		case c == ']' && inClass:
			inClass = false
		}
	}
	return b.String()
}
