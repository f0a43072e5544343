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

package buildflags

import (
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

type ActionType int

const (
	LINK ActionType = iota
	COMPILE
	PREPROCESS
	INFO
	UNASSIGNED
)

func (at ActionType) String() string {
	switch at {
	case LINK:
		return "link"
	case COMPILE:
		return "compile"
	case PREPROCESS:
		return "preprocess"
	case INFO:
		return "info"
	}
	return "unassigned"
}

// Result is what Classify extracts from one compiler invocation.
type Result struct {
	ActionType ActionType
	// Flags passed on to the analyzer, in their original relative order.
	AnalyzerOptions []string
	Arch            string
	Compiler        string
	Lang            string
	Output          string
	Target          string
	// Set when -c was given. Only used for diagnostics; the verdict does not depend on it.
	HasCompileFlag bool
}

// IsClang reports whether the compiler belongs to the clang family, in which
// case the analyzer understands every flag and no implicit flags are needed.
func (r Result) IsClang() bool {
	return isClang(r.Compiler)
}

// GccToolchain returns the value of --gcc-toolchain= if it was given.
func (r Result) GccToolchain() string {
	for _, opt := range r.AnalyzerOptions {
		if strings.HasPrefix(opt, "--gcc-toolchain=") {
			return strings.TrimPrefix(opt, "--gcc-toolchain=")
		}
	}
	return ""
}

func isClang(compiler string) bool {
	return strings.Contains(filepath.Base(compiler), "clang")
}

type details struct {
	Result
	directory    string
	explicitLang string
	// -E
	preprocessOnly bool
	// -M, -MM, -MT, -MF, ...
	dependencyOnly bool
	// -MD, -MMD
	dependencySideEffect bool
	// -print-prog-name
	info bool
}

// A flagProcessor looks at args[0], with the rest of args as lookahead, and
// returns how many tokens it consumed. Zero means args[0] is not its flag.
type flagProcessor func(args []string, d *details) int

// Source files are not collected with the compiler flags; the source comes
// from the `file` field of the entry.
func skipSources(args []string, d *details) int {
	if !strings.HasPrefix(args[0], "-") {
		return 1
	}
	return 0
}

// Consumes -x followed by the language, or the attached form -x<lang>.
func getLanguage(args []string, d *details) int {
	if !strings.HasPrefix(args[0], "-x") {
		return 0
	}
	consumed := 1
	lang := args[0][2:] // 2 == len("-x")
	if args[0] == "-x" {
		if len(args) < 2 {
			return 1
		}
		lang = args[1]
		consumed = 2
	}
	if lang == "none" {
		lang = ""
	}
	d.explicitLang = lang
	return consumed
}

// Tracks the flags which decide whether this is a compilation, a pure
// preprocessing or dependency listing run, or a query of the driver.
func determineActionType(args []string, d *details) int {
	flag := args[0]
	switch {
	case flag == "-c":
		d.HasCompileFlag = true
		return 1
	case flag == "-E":
		d.preprocessOnly = true
		return 1
	case flag == "-MD" || flag == "-MMD":
		d.dependencySideEffect = true
		return 1
	case strings.HasPrefix(flag, "-print-prog-name"):
		d.info = true
		return 1
	case dependencyFlag.MatchString(flag):
		d.dependencyOnly = true
		return 1
	}
	for _, depFlag := range dependencyFlagsWithParam {
		if flag == depFlag {
			d.dependencyOnly = true
			return min(2, len(args))
		}
		if strings.HasPrefix(flag, depFlag) {
			d.dependencyOnly = true
			return 1
		}
	}
	return 0
}

func getArch(args []string, d *details) int {
	if args[0] != "-arch" {
		return 0
	}
	if len(args) > 1 {
		d.Arch = args[1]
	}
	return min(2, len(args))
}

func getOutput(args []string, d *details) int {
	if args[0] != "-o" {
		return 0
	}
	if len(args) > 1 {
		d.Output = args[1]
	}
	return min(2, len(args))
}

// Consumes --target=<triple>, or -target/--target followed by the triple.
func getTarget(args []string, d *details) int {
	if strings.HasPrefix(args[0], "--target=") {
		d.Target = strings.TrimPrefix(args[0], "--target=")
		return 1
	}
	if args[0] != "-target" && args[0] != "--target" {
		return 0
	}
	if len(args) > 1 {
		d.Target = args[1]
	}
	return min(2, len(args))
}

func skipClang(args []string, d *details) int {
	if ignoredOptionsClang.MatchString(args[0]) {
		return 1
	}
	return 0
}

func skipGcc(args []string, d *details) int {
	if ignoredOptionsGcc.MatchString(args[0]) {
		return 1
	}
	return 0
}

func skipParamOptions(args []string, d *details) int {
	if argNum, ok := ignoredParamOptions[args[0]]; ok {
		return min(1+argNum, len(args))
	}
	return 0
}

// Some -Xclang constructs make the compiler emit LLVM IR or text instead of
// doing a regular compilation, so they must not reach the analyzer.
func collectTransformXclangOpts(args []string, d *details) int {
	if args[0] != "-Xclang" {
		return 0
	}
	if len(args) < 2 {
		return 1
	}
	if !slices.Contains(xclangFlagsToSkip, args[1]) {
		d.AnalyzerOptions = append(d.AnalyzerOptions, "-Xclang", args[1])
	}
	return 2
}

// Collects flags with one argument (-I, -D, -isystem, ...). The attached and
// the separate form are both kept as they were written. Relative paths are
// made absolute with the directory of the entry.
func collectTransformIncludeOpts(args []string, d *details) int {
	item := args[0]
	flag := ""
	for _, f := range argumentFlags {
		if strings.HasPrefix(item, f) {
			flag = f
			break
		}
	}
	if flag == "" {
		return 0
	}
	together := len(item) != len(flag)
	if !together && len(args) < 2 {
		// Dropped: its argument is missing.
		return 1
	}
	separator := ""
	param := ""
	if together {
		param = item[len(flag):]
		if strings.HasPrefix(flag, "--") && strings.HasPrefix(param, "=") {
			separator = "="
			param = param[1:]
		}
	} else {
		param = args[1]
	}
	if pathFlags[flag] {
		param = d.absPath(param)
	}
	if together {
		d.AnalyzerOptions = append(d.AnalyzerOptions, flag+separator+param)
		return 1
	}
	d.AnalyzerOptions = append(d.AnalyzerOptions, flag, param)
	return 2
}

// Keeps absolute paths untouched. A leading "=" or "$SYSROOT" makes the path
// relative to the sysroot, which the compiler resolves itself.
func (d *details) absPath(path string) string {
	if path == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "=") || strings.HasPrefix(path, "$SYSROOT") {
		return path
	}
	return filepath.Clean(filepath.Join(d.directory, path))
}

func replace(args []string, d *details) int {
	if value, ok := replaceOptionsMap[args[0]]; ok {
		d.AnalyzerOptions = append(d.AnalyzerOptions, value...)
		return 1
	}
	return 0
}

// Collects the compilation (not linker or preprocessor) flags gcc has in common with clang.
func collectCompileOpts(args []string, d *details) int {
	if compileOptions.MatchString(args[0]) {
		d.AnalyzerOptions = append(d.AnalyzerOptions, args[0])
		return 1
	}
	return 0
}

// Collects every remaining flag; clang understands its own flags.
func collectClangCompileOpts(args []string, d *details) int {
	if strings.HasPrefix(args[0], "-") {
		d.AnalyzerOptions = append(d.AnalyzerOptions, args[0])
		return 1
	}
	return 0
}

var clangFlagCollectors = []flagProcessor{
	skipSources,
	skipClang,
	skipParamOptions,
	collectTransformXclangOpts,
	getOutput,
	determineActionType,
	getArch,
	getTarget,
	getLanguage,
	collectTransformIncludeOpts,
	collectClangCompileOpts,
}

var gccFlagTransformers = []flagProcessor{
	skipGcc,
	skipParamOptions,
	replace,
	determineActionType,
	getLanguage,
	getTarget,
	getArch,
	getOutput,
	collectTransformXclangOpts,
	collectTransformIncludeOpts,
	collectCompileOpts,
	skipSources,
}

// Returns the compiler and the index of its first flag. When the command
// starts with a ccache invocation the rest is a complete compilation command.
func determineCompiler(args []string) (string, int) {
	if strings.HasSuffix(filepath.Base(args[0]), "ccache") && len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		return args[1], 2
	}
	return args[0], 1
}

// Classify walks the tokens of a GCC or Clang invocation. directory is the
// working directory of the invocation and source the absolute path of the
// file it compiles.
//
// The action is PREPROCESS if -E is present, or if a dependency listing flag
// is present without -MD or -MMD, regardless of the order of the flags. It is
// LINK if the source language cannot be determined.
func Classify(args []string, directory, source string) Result {
	d := details{directory: directory}
	d.ActionType = UNASSIGNED
	if len(args) == 0 {
		d.ActionType = LINK
		return d.Result
	}
	compiler, start := determineCompiler(args)
	d.Compiler = compiler
	flagProcessors := gccFlagTransformers
	if isClang(compiler) {
		flagProcessors = clangFlagCollectors
	}
	for it := start; it < len(args); {
		consumed := 0
		for _, process := range flagProcessors {
			if consumed = process(args[it:], &d); consumed > 0 {
				break
			}
		}
		if consumed == 0 {
			glog.V(3).Infof("dropping unrecognized flag %q", args[it])
			consumed = 1
		}
		it += consumed
	}

	d.Lang = d.explicitLang
	if d.Lang == "" {
		d.Lang = extMappingLang[filepath.Ext(source)]
	}
	switch {
	case d.preprocessOnly || (d.dependencyOnly && !d.dependencySideEffect):
		d.ActionType = PREPROCESS
	case d.info && !d.HasCompileFlag:
		d.ActionType = INFO
	case d.Lang == "":
		d.ActionType = LINK
	default:
		d.ActionType = COMPILE
	}
	return d.Result
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
