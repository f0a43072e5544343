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

package utils

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var ErrTimeout = errors.New("command timed out")

// Returns the combined stdout and stderr of a command. The command is killed
// once timeout elapses; a non-positive timeout only honors ctx.
func CombinedOutputWithTimeout(ctx context.Context, commands []string, workingDir string, timeout time.Duration) ([]byte, error) {
	if len(commands) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, commands[0], commands[1:]...)
	if workingDir != "" {
		cmd.Dir = workingDir
	}
	out, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("%w after %v: %s", ErrTimeout, timeout, cmd.String())
	}
	if err != nil {
		return out, fmt.Errorf("cmd.CombinedOutput: %v", err)
	}
	return out, nil
}

// Returns the non-empty lines of out with surrounding whitespace kept.
func OutputLines(out []byte) []string {
	var lines []string
	in := bufio.NewScanner(bytes.NewReader(out))
	in.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for in.Scan() {
		if strings.TrimSpace(in.Text()) == "" {
			continue
		}
		lines = append(lines, in.Text())
	}
	return lines
}
