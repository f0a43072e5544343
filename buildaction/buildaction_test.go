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
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"naive.systems/logparser/compilecommand"
	"naive.systems/logparser/implicitflags"
	"naive.systems/logparser/skiplist"
)

func parseFile(t *testing.T, name string, opts Options) []BuildAction {
	t.Helper()
	actions, _, err := ParseUniqueLogFile(context.Background(), filepath.Join("testdata", name), opts)
	if err != nil {
		t.Fatalf("ParseUniqueLogFile(%s): %v", name, err)
	}
	if len(actions) == 0 {
		t.Fatalf("ParseUniqueLogFile(%s) returned no build actions", name)
	}
	return actions
}

func raw(directory, command, file string) compilecommand.CompileCommand {
	return compilecommand.CompileCommand{
		Directory: directory,
		Command:   compilecommand.RawCommand(command),
		File:      file,
	}
}

func handler(t *testing.T, content string) *skiplist.Handler {
	t.Helper()
	h, err := skiplist.NewHandler(content)
	if err != nil {
		t.Fatalf("skiplist.NewHandler(%q): %v", content, err)
	}
	return h
}

func TestLogFormats(t *testing.T) {
	for _, testCase := range []struct {
		file    string
		source  string
		options []string
		lang    string
		target  string
	}{
		// The legacy escaping splits the define into two words, neither of
		// which is a recognizable flag.
		{"ldlogger-old.json", "/tmp/a.cpp", []string{"-std=c++11"}, "c++", "x86_64-linux-gnu"},
		{"ldlogger-new.json", "/tmp/a.cpp", []string{"-DVARIABLE=some value"}, "c++", "x86_64-linux-gnu"},
		{"ldlogger-new-space.json", "/tmp/a b.cpp", []string{"-DVARIABLE=some value"}, "c++", ""},
		{"intercept-old.json", "/tmp/a.cpp", []string{`-DVARIABLE="some`}, "c++", "x86_64-linux-gnu"},
		{"intercept-old-space.json", "/tmp/a b.cpp", []string{`-DVARIABLE="some`}, "c++", ""},
		{"intercept-new.json", "/tmp/a.cpp", []string{`-DVARIABLE="some value"`}, "c++", "x86_64-linux-gnu"},
		{"intercept-new-space.json", "/tmp/a b.cpp", []string{`-DVARIABLE="some value"`}, "c++", ""},
		{"include.json", "/tmp/a.cpp", []string{"-I", "/include", "-I/include", "-I/tmp"}, "c++", ""},
	} {
		t.Run(testCase.file, func(t *testing.T) {
			action := parseFile(t, testCase.file, Options{})[0]
			if action.Source != testCase.source {
				t.Errorf("source = %q, want %q", action.Source, testCase.source)
			}
			if diff := cmp.Diff(testCase.options, action.AnalyzerOptions); diff != "" {
				t.Errorf("analyzer options mismatch (-want +got):\n%s", diff)
			}
			if action.Lang != testCase.lang {
				t.Errorf("lang = %q, want %q", action.Lang, testCase.lang)
			}
			if action.Target != testCase.target {
				t.Errorf("target = %q, want %q", action.Target, testCase.target)
			}
		})
	}
}

func TestSplitDefineWithSpace(t *testing.T) {
	records := []compilecommand.CompileCommand{{
		Directory: "/tmp",
		Command:   compilecommand.SplitCommand("g++", "-c", "-DVARIABLE=some value", "/tmp/a.cpp"),
		File:      "/tmp/a.cpp",
	}}
	actions, _ := ParseUniqueLog(context.Background(), records, Options{})
	if len(actions) != 1 {
		t.Fatalf("got %d build actions, want 1", len(actions))
	}
	if diff := cmp.Diff([]string{"-DVARIABLE=some value"}, actions[0].AnalyzerOptions); diff != "" {
		t.Errorf("analyzer options mismatch (-want +got):\n%s", diff)
	}
	if actions[0].OriginalCommand != "g++ -c '-DVARIABLE=some value' /tmp/a.cpp" {
		t.Errorf("original command = %q", actions[0].OriginalCommand)
	}
}

func TestRelativeInclude(t *testing.T) {
	for _, testCase := range []struct {
		command string
		want    []string
	}{
		{"g++ -c -I include a.cpp", []string{"-I", "/tmp/include"}},
		{"g++ -c -Iinclude a.cpp", []string{"-I/tmp/include"}},
	} {
		t.Run(testCase.command, func(t *testing.T) {
			actions, _ := ParseUniqueLog(context.Background(),
				[]compilecommand.CompileCommand{raw("/tmp", testCase.command, "a.cpp")}, Options{})
			if len(actions) != 1 {
				t.Fatalf("got %d build actions, want 1", len(actions))
			}
			if diff := cmp.Diff(testCase.want, actions[0].AnalyzerOptions); diff != "" {
				t.Errorf("analyzer options mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOmitPreprocessing(t *testing.T) {
	records := []compilecommand.CompileCommand{
		raw("/tmp", "g++ /tmp/a.cpp -c /tmp/a.cpp", "/tmp/a.cpp"),
		raw("/tmp", "g++ /tmp/a.cpp -E /tmp/a.cpp", "/tmp/a.cpp"),
		raw("/tmp", "g++ /tmp/a.cpp -MT /tmp/a.cpp", "/tmp/a.cpp"),
		raw("/tmp", "g++ /tmp/a.cpp -MM /tmp/a.cpp", "/tmp/a.cpp"),
		raw("/tmp", "g++ /tmp/a.cpp -MF /tmp/a.cpp", "/tmp/a.cpp"),
		raw("/tmp", "g++ /tmp/a.cpp -M /tmp/a.cpp", "/tmp/a.cpp"),
	}
	actions, stats := ParseUniqueLog(context.Background(), records, Options{})
	if len(actions) != 1 {
		t.Fatalf("got %d build actions, want 1", len(actions))
	}
	command := actions[0].OriginalCommand
	if strings.Contains(command, "-M") || strings.Contains(command, "-E") {
		t.Errorf("preprocessor invocation %q kept", command)
	}
	if !strings.Contains(command, "-c") {
		t.Errorf("compile invocation missing, got %q", command)
	}
	if stats.PreprocessOnly != 5 {
		t.Errorf("stats.PreprocessOnly = %d, want 5", stats.PreprocessOnly)
	}
}

func TestDependencyFlags(t *testing.T) {
	for _, testCase := range []struct {
		command string
		want    int
	}{
		{"g++ /tmp/a.cpp -MD /tmp/a.cpp", 1},
		{"g++ -c -MD /tmp/a.cpp", 1},
		{"g++ -c -MD -MF /tmp/a.d /tmp/a.cpp", 1},
		{"g++ /tmp/a.cpp -MD -E /tmp/a.cpp", 0},
		{"g++ /tmp/a.cpp -E -MD /tmp/a.cpp", 0},
		{"g++ -c -MT a.o /tmp/a.cpp", 0},
	} {
		t.Run(testCase.command, func(t *testing.T) {
			actions, _ := ParseUniqueLog(context.Background(),
				[]compilecommand.CompileCommand{raw("/tmp", testCase.command, "/tmp/a.cpp")}, Options{})
			if len(actions) != testCase.want {
				t.Fatalf("got %d build actions, want %d", len(actions), testCase.want)
			}
			if testCase.want == 0 {
				return
			}
			if !strings.Contains(actions[0].OriginalCommand, "-MD") {
				t.Errorf("original command %q lost -MD", actions[0].OriginalCommand)
			}
			for _, opt := range actions[0].AnalyzerOptions {
				if strings.HasPrefix(opt, "-M") {
					t.Errorf("dependency flag %q passed to the analyzer", opt)
				}
			}
		})
	}
}

func libRecords() []compilecommand.CompileCommand {
	return []compilecommand.CompileCommand{
		raw("/tmp/lib1", "g++ /tmp/lib1/a.cpp", "a.cpp"),
		raw("/tmp/lib1", "g++ /tmp/lib1/b.cpp", "b.cpp"),
		raw("/tmp/lib2", "g++ /tmp/lib2/a.cpp", "a.cpp"),
	}
}

func TestSkip(t *testing.T) {
	for _, testCase := range []struct {
		name        string
		preAnalysis string
		analysis    string
		want        []string
	}{
		{
			name:        "skip everything",
			preAnalysis: "\n-*/lib1/*\n-*/lib2/*\n",
			analysis:    "\n-*/lib1/*\n-*/lib2/*\n",
			want:        nil,
		},
		{
			name:        "pre-analysis skips everything",
			preAnalysis: "\n-*\n",
			analysis:    "\n-*/lib1/*\n",
			want:        []string{"/tmp/lib2/a.cpp"},
		},
		{
			name:        "nothing skipped before analysis",
			preAnalysis: "",
			analysis:    "-*/lib1/*",
			want:        []string{"/tmp/lib1/a.cpp", "/tmp/lib1/b.cpp", "/tmp/lib2/a.cpp"},
		},
		{
			name:        "nothing skipped in analysis",
			preAnalysis: "-*/lib1/*",
			analysis:    "",
			want:        []string{"/tmp/lib1/a.cpp", "/tmp/lib1/b.cpp", "/tmp/lib2/a.cpp"},
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			opts := Options{
				PreAnalysisSkip: handler(t, testCase.preAnalysis),
				AnalysisSkip:    handler(t, testCase.analysis),
			}
			actions, stats := ParseUniqueLog(context.Background(), libRecords(), opts)
			var got []string
			for _, action := range actions {
				got = append(got, action.Source)
			}
			if diff := cmp.Diff(testCase.want, got); diff != "" {
				t.Errorf("sources mismatch (-want +got):\n%s", diff)
			}
			if stats.Skipped != 3-len(testCase.want) {
				t.Errorf("stats.Skipped = %d, want %d", stats.Skipped, 3-len(testCase.want))
			}
		})
	}
}

func TestSkipKeepsOriginalRecord(t *testing.T) {
	records := libRecords()
	opts := Options{
		PreAnalysisSkip: handler(t, "-*"),
		AnalysisSkip:    handler(t, "-*/lib1/*"),
	}
	actions, _ := ParseUniqueLog(context.Background(), records, opts)
	if len(actions) != 1 {
		t.Fatalf("got %d build actions, want 1", len(actions))
	}
	keep := records[2]
	if actions[0].Source != filepath.Join(keep.Directory, keep.File) {
		t.Errorf("source = %q", actions[0].Source)
	}
	if actions[0].OriginalCommand != keep.Command.Line {
		t.Errorf("original command = %q, want %q", actions[0].OriginalCommand, keep.Command.Line)
	}
}

func TestAnalysisSkipWithoutPreAnalysis(t *testing.T) {
	opts := Options{AnalysisSkip: handler(t, "-*/lib1/*")}
	actions, _ := ParseUniqueLog(context.Background(), libRecords(), opts)
	if len(actions) != 1 || actions[0].Source != "/tmp/lib2/a.cpp" {
		t.Errorf("got %v, want only /tmp/lib2/a.cpp", actions)
	}
}

func TestDeduplicate(t *testing.T) {
	records := []compilecommand.CompileCommand{
		raw("/tmp", "g++ -c a.cpp", "a.cpp"),
		raw("/tmp", "g++ -c b.cpp", "b.cpp"),
		raw("/tmp", "g++ -c a.cpp", "a.cpp"),
		raw("/tmp", "g++ -c a.cpp", "/tmp/a.cpp"),
		raw("/tmp", "g++ -c -O2 a.cpp", "a.cpp"),
		raw("/tmp/build", "g++ -c ../a.cpp", "../a.cpp"),
		raw("/tmp/build", "g++ -c ../a.cpp", "../a.cpp"),
	}
	actions, stats := ParseUniqueLog(context.Background(), records, Options{})
	var got []string
	for _, action := range actions {
		got = append(got, action.Directory+": "+action.OriginalCommand)
	}
	want := []string{
		"/tmp: g++ -c a.cpp",
		"/tmp: g++ -c b.cpp",
		"/tmp: g++ -c -O2 a.cpp",
		"/tmp/build: g++ -c ../a.cpp",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("build actions mismatch (-want +got):\n%s", diff)
	}
	if stats.Duplicates != 3 {
		t.Errorf("stats.Duplicates = %d, want 3", stats.Duplicates)
	}
}

func TestBadRecords(t *testing.T) {
	records := []compilecommand.CompileCommand{
		{Directory: "/tmp", Command: compilecommand.RawCommand("g++ -c a.cpp")},
		{Command: compilecommand.RawCommand("g++ -c a.cpp"), File: "a.cpp"},
		{Directory: "/tmp", File: "a.cpp"},
		raw("/tmp", "   ", "a.cpp"),
		raw("/tmp", `g++ -c "a.cpp`, "a.cpp"),
		raw("/tmp", "g++ -o a a.o", "a.o"),
		raw("/tmp", "g++ -c a.cpp", "a.cpp"),
	}
	actions, stats := ParseUniqueLog(context.Background(), records, Options{})
	if len(actions) != 1 {
		t.Fatalf("got %d build actions, want 1", len(actions))
	}
	want := Stats{
		Records:          7,
		Malformed:        4,
		TokenizeFailures: 1,
		NotCompile:       1,
		Actions:          1,
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if stats.Diagnostics() != 5 {
		t.Errorf("stats.Diagnostics() = %d, want 5", stats.Diagnostics())
	}
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	flags []string
}

func (r *fakeRunner) DefaultFlags(ctx context.Context, compiler, target string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, compiler+"|"+target)
	return r.flags, nil
}

func TestImplicitFlags(t *testing.T) {
	runner := &fakeRunner{flags: []string{"-I", "/usr/include", "-m64", "-std=gnu++17"}}
	cache := implicitflags.NewCache("", runner)
	records := []compilecommand.CompileCommand{
		raw("/tmp", "g++ -c -std=c++11 a.cpp", "a.cpp"),
		raw("/tmp", "g++ -c b.cpp", "b.cpp"),
		raw("/tmp", "clang++ -c c.cpp", "c.cpp"),
		raw("/tmp", "g++ --gcc-toolchain=/opt/gcc -c d.cpp", "d.cpp"),
	}
	actions, _ := ParseUniqueLog(context.Background(), records, Options{Implicit: cache})
	var got [][]string
	for _, action := range actions {
		got = append(got, action.AnalyzerOptions)
	}
	want := [][]string{
		{"-std=c++11", "-m64"},
		{"-m64", "-std=gnu++17"},
		{},
		{"--gcc-toolchain=/opt/gcc"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("analyzer options mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"g++|"}, runner.calls); diff != "" {
		t.Errorf("compiler queries mismatch (-want +got):\n%s", diff)
	}
}

func TestImplicitFlagsPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compiler_info.yaml")
	runner := &fakeRunner{flags: []string{"-m32"}}
	records := []compilecommand.CompileCommand{raw("/tmp", "gcc -c a.c", "a.c")}
	ParseUniqueLog(context.Background(), records, Options{Implicit: implicitflags.NewCache(path, runner)})

	cache := implicitflags.NewCache(path, nil)
	if err := cache.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	flags, ok := cache.Lookup("gcc", "")
	if !ok {
		t.Fatal("implicit flags of gcc were not flushed")
	}
	if diff := cmp.Diff([]string{"-m32"}, flags); diff != "" {
		t.Errorf("cached flags mismatch (-want +got):\n%s", diff)
	}
}
