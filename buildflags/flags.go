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
	"regexp"
	"strings"
)

const (
	LangC      = "c"
	LangCxx    = "c++"
	LangObjC   = "objective-c"
	LangObjCxx = "objective-c++"
)

var extMappingLang = map[string]string{
	".c":   LangC,
	".i":   LangC,
	".cp":  LangCxx,
	".cpp": LangCxx,
	".CPP": LangCxx,
	".cxx": LangCxx,
	".c++": LangCxx,
	".txx": LangCxx,
	".cc":  LangCxx,
	".C":   LangCxx,
	".ii":  LangCxx,
	".m":   LangObjC,
	".mi":  LangObjC,
	".mm":  LangObjCxx,
	".M":   LangObjCxx,
	".mii": LangObjCxx,
}

var ignoredOptionsClangList = []string{
	"-Werror",
	"-pedantic-errors",
	"-w$",
}
var ignoredOptionsClang = regexp.MustCompile("^(?:" + strings.Join(ignoredOptionsClangList, "|") + ")")

var ignoredOptionsGccList = []string{
	"-fallow-fetchr-insn",
	"-fcall-saved-",
	"-fcond-mismatch",
	"-fconserve-stack",
	"-fcrossjumping",
	"-fcse-follow-jumps",
	"-fcse-skip-blocks",
	"-fcx-limited-range$",
	"-fext-.*-literals",
	"-ffixed-r2",
	"-ffp$",
	"-mfp16-format",
	"-fgcse-lm",
	"-fhoist-adjacent-loads",
	"-findirect-inlining",
	"-finline-limit",
	"-finline-local-initialisers",
	"-fipa-sra",
	"-fmacro-prefix-map",
	"-fno-aggressive-loop-optimizations",
	"-fno-canonical-system-headers",
	"-fno-delete-null-pointer-checks",
	"-fno-defer-pop",
	"-fno-extended-identifiers",
	"-fno-jump-table",
	"-fno-keep-static-consts",
	"-f(no-)?reorder-functions",
	"-fno-strength-reduce",
	"-fno-toplevel-reorder",
	"-fno-unit-at-a-time",
	"-fno-var-tracking-assignments",
	"-fobjc-link-runtime",
	"-fpartial-inlining",
	"-fpeephole2",
	"-fr$",
	"-fregmove",
	"-frename-registers",
	"-frerun-cse-after-loop",
	"-fs$",
	"-fsched-spec",
	"-fstack-usage",
	"-fstack-reuse",
	"-fthread-jumps",
	"-ftree-pre",
	"-ftree-switch-conversion",
	"-ftree-tail-merge",
	"-m(no-)?abm",
	"-m(no-)?sdata",
	"-m(no-)?spe",
	"-m(no-)?string$",
	"-m(no-)?dsbt",
	"-m(no-)?fixed-ssp",
	"-m(no-)?pointers-to-nested-functions",
	"-mno-fp-ret-in-387",
	"-mpreferred-stack-boundary",
	"-mpcrel-func-addr",
	"-mrecord-mcount$",
	"-maccumulate-outgoing-args",
	"-mcall-aixdesc",
	"-mppa3-addr-bug",
	"-mtraceback=",
	"-mtext=",
	"-misa=",
	"-mfunction-return=",
	"-mindirect-branch-register",
	"-mindirect-branch=",
	"-mfix-cortex-m3-ldrd$",
	"-mmultiple$",
	"-msahf$",
	"-mskip-rax-setup$",
	"-mthumb-interwork$",
	"-mupdate$",
	"-mapcs",
	"-fno-merge-const-bfstores$",
	"-fno-ipa-sra$",
	"-mno-thumb-interwork$",
	"-mno-sched-prolog",
	"-save-temps",
	"-Werror",
	"-pedantic-errors",
	"-w$",
	"-g(.+)?$",
	"-flto",
	"-mxl",
	"-mfloat-gprs",
	"-mabi",
}
var ignoredOptionsGcc = regexp.MustCompile("^(?:" + strings.Join(ignoredOptionsGccList, "|") + ")")

// Linker and driver flags dropped together with the given number of arguments.
var ignoredParamOptions = map[string]int{
	"-install_name":           1,
	"-exported_symbols_list":  1,
	"-current_version":        1,
	"-compatibility_version":  1,
	"-init":                   1,
	"-e":                      1,
	"-seg1addr":               1,
	"-bundle_loader":          1,
	"-multiply_defined":       1,
	"-sectorder":              3,
	"--param":                 1,
	"-u":                      1,
	"--serialize-diagnostics": 1,
	"-framework":              1,
	"-filelist":               1,
}

var xclangFlagsToSkip = []string{
	"-module-file-info",
	"-S",
	"-emit-llvm",
	"-emit-llvm-bc",
	"-emit-llvm-only",
	"-emit-llvm-uselists",
	"-rewrite-objc",
}

var replaceOptionsMap = map[string][]string{
	"-mips32":     {"-target", "mips", "-mips32"},
	"-mips64":     {"-target", "mips64", "-mips64"},
	"-mpowerpc":   {"-target", "powerpc"},
	"-mpowerpc64": {"-target", "powerpc64"},
}

// Flags taking exactly one argument, either attached or as the next token.
// A flag which is a prefix of another one must come after it.
var argumentFlags = []string{
	"-iwithprefixbefore",
	"-iwithprefix",
	"-include-pch",
	"-cxx-isystem",
	"-idirafter",
	"-isysroot",
	"-isystem",
	"-iprefix",
	"-imacros",
	"-include",
	"--include",
	"-iquote",
	"--sysroot",
	"-sdkroot",
	"-D",
	"-I",
	"-U",
	"-F",
}

// Flags from argumentFlags whose argument is a path.
var pathFlags = map[string]bool{
	"-I":           true,
	"-F":           true,
	"-idirafter":   true,
	"-iquote":      true,
	"-isysroot":    true,
	"-isystem":     true,
	"-cxx-isystem": true,
	"--sysroot":    true,
	"-sdkroot":     true,
	"-include":     true,
	"--include":    true,
	"-include-pch": true,
	"-imacros":     true,
}

var compileOptionsList = []string{
	"-nostdinc",
	`-nostdinc\+\+`,
	"-pedantic",
	"-O[1-3]",
	"-Os",
	"-std=",
	"-stdlib=",
	"-f",
	"-m",
	"-Wno-",
	"--sysroot=",
	"-sdkroot",
	"--gcc-toolchain=",
}
var compileOptions = regexp.MustCompile("^(?:" + strings.Join(compileOptionsList, "|") + ")")

// Dependency listing flags which take one argument.
var dependencyFlagsWithParam = []string{"-MT", "-MQ", "-MF", "-MJ"}

// Dependency listing flags without an argument.
var dependencyFlag = regexp.MustCompile(`^-M[MGPV]?$`)
