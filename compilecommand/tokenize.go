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

package compilecommand

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

var ErrTokenize = errors.New("cannot tokenize command")

// Tokenize returns the argument vector of the command. A split command is
// returned unchanged, so a single element may hold a multi-word value such as
// `-DVARIABLE=some value`. A raw command is split with POSIX shell quoting
// rules and nothing else: capture tools which escaped quoted values twice
// produce fragments that are later dropped as unrecognized tokens.
func (c Command) Tokenize() ([]string, error) {
	if c.Kind == Split {
		return append([]string(nil), c.Args...), nil
	}
	args, err := shlex.Split(c.Line)
	if err != nil {
		return nil, fmt.Errorf("%w: shlex.Split: %v", ErrTokenize, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no tokens in %q", ErrTokenize, c.Line)
	}
	return args, nil
}

var safeShellWord = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// Quote returns s in a form that a POSIX shell reads back as one word.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if safeShellWord.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Join quotes every argument with Quote and joins them with spaces. Splitting
// the result with POSIX rules gives back args.
func Join(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, Quote(arg))
	}
	return strings.Join(quoted, " ")
}
