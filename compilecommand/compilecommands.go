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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
)

var ErrMalformedRecord = errors.New("malformed compile command")

type CommandKind int

const (
	// A single shell command line, tokenized with POSIX quoting rules.
	Raw CommandKind = iota
	// An argument vector whose elements are taken verbatim.
	Split
)

// Command is the `command` field of a log entry in one of its two shapes.
type Command struct {
	Kind CommandKind
	Line string
	Args []string
}

func RawCommand(line string) Command {
	return Command{Kind: Raw, Line: line}
}

func SplitCommand(args ...string) Command {
	return Command{Kind: Split, Args: args}
}

// IsEmpty reports whether the command has no arguments. A raw command made
// only of whitespace is empty.
func (c Command) IsEmpty() bool {
	if c.Kind == Split {
		return len(c.Args) == 0
	}
	return strings.TrimSpace(c.Line) == ""
}

// String returns the command as a single line. A raw command is returned
// verbatim; a split one is joined with shell quoting so that tokenizing the
// result yields the original vector.
func (c Command) String() string {
	if c.Kind == Split {
		return Join(c.Args)
	}
	return c.Line
}

// CompileCommand is one entry of a build log (a JSON compilation database).
type CompileCommand struct {
	Directory string
	Command   Command
	File      string
	Output    string
}

type jsonCompileCommand struct {
	Directory string          `json:"directory"`
	Command   json.RawMessage `json:"command,omitempty"`
	Arguments []string        `json:"arguments,omitempty"`
	File      string          `json:"file"`
	Output    string          `json:"output,omitempty"`
}

// UnmarshalJSON accepts `command` as a string or a list of strings, and
// `arguments` as a list. If both `command` and `arguments` are given,
// `arguments` is used.
func (cc *CompileCommand) UnmarshalJSON(data []byte) error {
	var entry jsonCompileCommand
	if err := json.Unmarshal(data, &entry); err != nil {
		return err
	}
	cc.Directory = entry.Directory
	cc.File = entry.File
	cc.Output = entry.Output
	cc.Command = Command{}
	if entry.Arguments != nil {
		cc.Command = SplitCommand(entry.Arguments...)
		return nil
	}
	raw := bytes.TrimSpace(entry.Command)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	switch raw[0] {
	case '"':
		var line string
		if err := json.Unmarshal(raw, &line); err != nil {
			return err
		}
		cc.Command = RawCommand(line)
	case '[':
		var args []string
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		cc.Command = SplitCommand(args...)
	default:
		return fmt.Errorf("%w: command must be a string or a list of strings", ErrMalformedRecord)
	}
	return nil
}

func (cc CompileCommand) MarshalJSON() ([]byte, error) {
	entry := struct {
		Directory string   `json:"directory"`
		Command   string   `json:"command,omitempty"`
		Arguments []string `json:"arguments,omitempty"`
		File      string   `json:"file"`
		Output    string   `json:"output,omitempty"`
	}{
		Directory: cc.Directory,
		File:      cc.File,
		Output:    cc.Output,
	}
	if cc.Command.Kind == Split {
		entry.Arguments = cc.Command.Args
	} else {
		entry.Command = cc.Command.Line
	}
	return json.Marshal(entry)
}

// Validate reports ErrMalformedRecord if any of directory, command or file is missing.
func (cc CompileCommand) Validate() error {
	switch {
	case cc.Directory == "":
		return fmt.Errorf("%w: missing directory", ErrMalformedRecord)
	case cc.Command.IsEmpty():
		return fmt.Errorf("%w: missing command", ErrMalformedRecord)
	case cc.File == "":
		return fmt.Errorf("%w: missing file", ErrMalformedRecord)
	}
	return nil
}

// SourcePath returns the absolute, cleaned path of the source file.
func (cc CompileCommand) SourcePath() string {
	if filepath.IsAbs(cc.File) {
		return filepath.Clean(cc.File)
	}
	return filepath.Clean(filepath.Join(cc.Directory, cc.File))
}

// Read decodes a JSON array of compile commands. An entry which cannot be
// decoded is kept as an empty CompileCommand so that it fails Validate later
// and is counted with the other malformed records; only a document that is not
// a JSON array is an error.
func Read(r io.Reader) ([]CompileCommand, error) {
	var entries []json.RawMessage
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("json.Decode: %v", err)
	}
	commands := make([]CompileCommand, 0, len(entries))
	for idx, entry := range entries {
		var cc CompileCommand
		if err := json.Unmarshal(entry, &cc); err != nil {
			glog.Warningf("compile command #%d cannot be decoded: %v", idx, err)
			cc = CompileCommand{}
		}
		commands = append(commands, cc)
	}
	return commands, nil
}

func ReadCompileCommandsFromFile(compileCommandsPath string) ([]CompileCommand, error) {
	ccFile, err := os.Open(compileCommandsPath)
	if err != nil {
		return nil, err
	}
	defer ccFile.Close()
	return Read(ccFile)
}
