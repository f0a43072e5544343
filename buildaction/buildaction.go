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

package buildaction

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"naive.systems/logparser/buildflags"
	"naive.systems/logparser/compilecommand"
	"naive.systems/logparser/implicitflags"
	"naive.systems/logparser/skiplist"
)

// BuildAction is one compiler invocation selected for analysis.
type BuildAction struct {
	Source          string   `json:"source"`
	Directory       string   `json:"directory"`
	OriginalCommand string   `json:"original_command"`
	AnalyzerOptions []string `json:"analyzer_options"`
	Lang            string   `json:"lang"`
	Target          string   `json:"target"`
}

// Options configures a ParseUniqueLog pass. The zero value skips nothing and
// adds no implicit flags.
type Options struct {
	// Governs the pre-analysis phase. nil admits every file.
	PreAnalysisSkip *skiplist.Handler
	// Governs the analysis phase. nil admits every file.
	AnalysisSkip *skiplist.Handler
	// nil disables implicit flags.
	Implicit *implicitflags.Cache
}

// Stats counts what happened to the records of one pass.
type Stats struct {
	Records          int
	Malformed        int
	TokenizeFailures int
	PreprocessOnly   int
	NotCompile       int
	Skipped          int
	Duplicates       int
	Actions          int
}

// Diagnostics returns the number of records dropped because of a data error.
func (s Stats) Diagnostics() int {
	return s.Malformed + s.TokenizeFailures
}

type dedupKey struct {
	source    string
	directory string
	command   string
}

// A record is skipped only when no phase needs it: the analysis phase
// excludes it and the pre-analysis phase either excludes it too or is not
// configured.
func skipped(source string, opts Options) bool {
	if !opts.AnalysisSkip.ShouldSkip(source) {
		return false
	}
	return opts.PreAnalysisSkip == nil || opts.PreAnalysisSkip.ShouldSkip(source)
}

// ParseUniqueLog turns the records of a build log into build actions, in the
// order their records first appear. Records which are malformed, cannot be
// tokenized, are not compilations or are skipped produce no action, and
// neither do repeated (source, directory, command) triples. No record aborts
// the pass.
//
// If opts.Implicit is set, its flags are merged into the actions of gcc-like
// compilers and the cache is flushed before returning.
func ParseUniqueLog(ctx context.Context, records []compilecommand.CompileCommand, opts Options) ([]BuildAction, Stats) {
	stats := Stats{Records: len(records)}
	actions := []BuildAction{}
	seen := map[dedupKey]bool{}
	for idx, record := range records {
		if err := record.Validate(); err != nil {
			glog.Warningf("compile command #%d: %v", idx, err)
			stats.Malformed++
			continue
		}
		args, err := record.Command.Tokenize()
		if err != nil {
			glog.Warningf("compile command #%d: %v", idx, err)
			stats.TokenizeFailures++
			continue
		}
		source := record.SourcePath()
		result := buildflags.Classify(args, record.Directory, source)
		switch result.ActionType {
		case buildflags.COMPILE:
		case buildflags.PREPROCESS:
			glog.V(1).Infof("%s: preprocessor only invocation, omitted", source)
			stats.PreprocessOnly++
			continue
		default:
			glog.V(2).Infof("%s: %s invocation, omitted", source, result.ActionType)
			stats.NotCompile++
			continue
		}
		if skipped(source, opts) {
			glog.V(1).Infof("%s: skipped", source)
			stats.Skipped++
			continue
		}
		command := record.Command.String()
		key := dedupKey{source, record.Directory, command}
		if seen[key] {
			glog.V(2).Infof("%s: duplicate of an earlier compile command", source)
			stats.Duplicates++
			continue
		}
		seen[key] = true

		analyzerOptions := result.AnalyzerOptions
		if analyzerOptions == nil {
			analyzerOptions = []string{}
		}
		if opts.Implicit != nil && !result.IsClang() && result.GccToolchain() == "" {
			implicit := opts.Implicit.Resolve(ctx, result.Compiler, result.Target)
			analyzerOptions = implicitflags.Merge(analyzerOptions, implicit)
		}
		actions = append(actions, BuildAction{
			Source:          source,
			Directory:       record.Directory,
			OriginalCommand: command,
			AnalyzerOptions: analyzerOptions,
			Lang:            result.Lang,
			Target:          result.Target,
		})
	}
	stats.Actions = len(actions)
	if opts.Implicit != nil {
		if err := opts.Implicit.Flush(); err != nil {
			glog.Errorf("implicit flags not saved: %v", err)
		}
	}
	return actions, stats
}

// ParseUniqueLogFile reads a build log and parses it with ParseUniqueLog.
func ParseUniqueLogFile(ctx context.Context, path string, opts Options) ([]BuildAction, Stats, error) {
	records, err := compilecommand.ReadCompileCommandsFromFile(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("compilecommand.ReadCompileCommandsFromFile: %v", err)
	}
	actions, stats := ParseUniqueLog(ctx, records, opts)
	return actions, stats, nil
}
