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

package implicitflags

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"naive.systems/logparser/utils"
)

const DefaultQueryTimeout = 10 * time.Second

// CompilerRunner asks the compiler driver to print the commands it would run
// (`-###`) for an empty translation unit and returns the flags of those
// commands. Both GCC and Clang print every command as a line of quoted words.
type CompilerRunner struct {
	Timeout time.Duration
}

func (r CompilerRunner) DefaultFlags(ctx context.Context, compiler, target string) ([]string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	cmds := []string{compiler}
	if target != "" {
		cmds = append(cmds, "--target="+target)
	}
	cmds = append(cmds, "-###", "-E", "-x", queryLanguage(compiler), "-")
	out, err := utils.CombinedOutputWithTimeout(ctx, cmds, "", timeout)
	if err != nil {
		return nil, err
	}
	flags, err := parseDriverOutput(out)
	if err != nil {
		return nil, fmt.Errorf("unexpected output of %s: %v", strings.Join(cmds, " "), err)
	}
	return flags, nil
}

func queryLanguage(compiler string) string {
	if strings.Contains(filepath.Base(compiler), "++") {
		return "c++"
	}
	return "c"
}

// Collects the arguments of every command line printed by -###. Other lines
// (version banner, COLLECT_GCC variables) do not start with a quote.
func parseDriverOutput(out []byte) ([]string, error) {
	var flags []string
	found := false
	for _, line := range utils.OutputLines(out) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, `"`) {
			continue
		}
		words, err := shlex.Split(line)
		if err != nil {
			return nil, fmt.Errorf("shlex.Split: %v", err)
		}
		if len(words) > 1 {
			flags = append(flags, words[1:]...)
		}
		found = true
	}
	if !found {
		return nil, fmt.Errorf("no command lines found")
	}
	return flags, nil
}
