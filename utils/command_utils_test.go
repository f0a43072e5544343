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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCombinedOutputWithTimeout(t *testing.T) {
	out, err := CombinedOutputWithTimeout(context.Background(), []string{"sh", "-c", "echo out; echo err 1>&2"}, "", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"out", "err"}, OutputLines(out)); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestCombinedOutputWithTimeoutExpires(t *testing.T) {
	start := time.Now()
	_, err := CombinedOutputWithTimeout(context.Background(), []string{"sleep", "10"}, "", 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("command was not killed in time: %v", elapsed)
	}
}

func TestCombinedOutputWithTimeoutFailure(t *testing.T) {
	_, err := CombinedOutputWithTimeout(context.Background(), []string{"sh", "-c", "exit 3"}, "", time.Minute)
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Errorf("expected a non-timeout error, got %v", err)
	}
	if _, err := CombinedOutputWithTimeout(context.Background(), nil, "", time.Minute); err == nil {
		t.Errorf("expected an error for an empty command")
	}
}

func TestOutputLines(t *testing.T) {
	got := OutputLines([]byte("a\n\n  \n b \n"))
	if diff := cmp.Diff([]string{"a", " b "}, got); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}
