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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"naive.systems/logparser/atomic"
	"naive.systems/logparser/buildaction"
	"naive.systems/logparser/i18n"
	"naive.systems/logparser/implicitflags"
	"naive.systems/logparser/skiplist"
)

func loadSkipList(path string) *skiplist.Handler {
	if path == "" {
		return nil
	}
	h, err := skiplist.NewHandlerFromFile(path)
	if err != nil {
		glog.Fatalf("skiplist.NewHandlerFromFile: %v", err)
	}
	glog.V(1).Infof("%d skip rules loaded from %s", h.Len(), path)
	return h
}

func main() {
	compileCommandsPath := flag.String("compile_commands_path", "", "Absolute path to the compile_commands file")
	skipFile := flag.String("skip_file", "", "Skip list applied in the analysis phase")
	preAnalysisSkipFile := flag.String("pre_analysis_skip_file", "", "Skip list applied in the pre-analysis phase")
	compilerInfoPath := flag.String("compiler_info_path", "", "Side file caching the implicit flags of compilers, empty to disable implicit flags")
	compilerQueryTimeout := flag.Duration("compiler_query_timeout", implicitflags.DefaultQueryTimeout, "Time limit of one compiler query")
	output := flag.String("output", "", "Path of the build action list, stdout if empty")
	lang := flag.String("lang", "en", "Language of the summary, en or zh")
	flag.Parse()
	defer glog.Flush()

	if *compileCommandsPath == "" {
		glog.Fatal("-compile_commands_path is required")
	}
	opts := buildaction.Options{
		PreAnalysisSkip: loadSkipList(*preAnalysisSkipFile),
		AnalysisSkip:    loadSkipList(*skipFile),
	}
	if *compilerInfoPath != "" {
		opts.Implicit = implicitflags.NewCache(*compilerInfoPath, implicitflags.CompilerRunner{Timeout: *compilerQueryTimeout})
		if err := opts.Implicit.Load(); err != nil {
			glog.Errorf("compiler info %s not loaded: %v", *compilerInfoPath, err)
		}
	}

	actions, stats, err := buildaction.ParseUniqueLogFile(context.Background(), *compileCommandsPath, opts)
	if err != nil {
		glog.Fatalf("buildaction.ParseUniqueLogFile: %v", err)
	}
	out, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		glog.Fatal(err)
	}
	out = append(out, '\n')
	if *output == "" {
		os.Stdout.Write(out)
	} else if err := atomic.WriteFile(*output, out, 0644); err != nil {
		glog.Fatalf("atomic.WriteFile: %v", err)
	}
	for _, line := range i18n.Summary(stats, *lang) {
		fmt.Fprintln(os.Stderr, line)
	}
}
