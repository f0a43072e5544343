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
	"strings"
)

// Exact flags kept by Filter.
var allowedFlags = map[string]bool{
	"-m32":        true,
	"-m64":        true,
	"-mx32":       true,
	"-nostdinc":   true,
	"-nostdinc++": true,
}

// Flag prefixes kept by Filter.
var allowedPrefixes = []string{
	"-march=",
	"-mcpu=",
	"-mabi=",
	"-mfloat-abi=",
	"-mfpu=",
	"-stdlib=",
	"-std=",
	"--sysroot=",
	"--target=",
	"-isysroot",
}

// Flags whose value is the next token and which Filter keeps in attached form.
var allowedWithValue = map[string]string{
	"--sysroot": "--sysroot=",
	"-isysroot": "-isysroot",
	"-target":   "--target=",
	"--target":  "--target=",
}

// Flags whose value is the next token and which Filter drops with their value.
var droppedWithValue = map[string]bool{
	"-I":                        true,
	"-D":                        true,
	"-U":                        true,
	"-o":                        true,
	"-x":                        true,
	"-MF":                       true,
	"-MT":                       true,
	"-MQ":                       true,
	"-include":                  true,
	"-imacros":                  true,
	"-iquote":                   true,
	"-idirafter":                true,
	"-isystem":                  true,
	"-imultiarch":               true,
	"-imultilib":                true,
	"-iprefix":                  true,
	"-internal-isystem":         true,
	"-internal-externc-isystem": true,
	"-dumpbase":                 true,
	"-dumpbase-ext":             true,
	"-dumpdir":                  true,
	"-main-file-name":           true,
	"-resource-dir":             true,
	"-triple":                   true,
	"-target-cpu":               true,
}

// Filter reduces the default flags of a compiler to those selecting the
// architecture or ABI, the standard library, the language standard, the
// sysroot or the target. Include paths and everything else are dropped; the
// analyzer derives the implicit include paths itself. Every returned element
// is a complete flag.
func Filter(compilerFlags []string) []string {
	extraOpts := []string{}
	for idx := 0; idx < len(compilerFlags); idx++ {
		flag := compilerFlags[idx]
		if allowedFlags[flag] {
			extraOpts = append(extraOpts, flag)
			continue
		}
		if prefix, ok := allowedWithValue[flag]; ok {
			if idx+1 < len(compilerFlags) {
				extraOpts = append(extraOpts, prefix+compilerFlags[idx+1])
				idx++
			}
			continue
		}
		if droppedWithValue[flag] {
			idx++
			continue
		}
		for _, prefix := range allowedPrefixes {
			if strings.HasPrefix(flag, prefix) {
				extraOpts = append(extraOpts, flag)
				break
			}
		}
	}
	return extraOpts
}

// Returns the setting a flag selects, or "" if it is not one of the settings
// Filter keeps. Two flags with the same setting override each other.
func setting(flag string) string {
	switch flag {
	case "-m32", "-m64", "-mx32":
		return "-m<bits>"
	case "-nostdinc", "-nostdinc++":
		return flag
	case "-target", "--target":
		return "--target="
	case "--sysroot":
		return "--sysroot="
	}
	if strings.HasPrefix(flag, "-isysroot") {
		return "-isysroot"
	}
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(flag, prefix) {
			return prefix
		}
	}
	return ""
}

// Merge appends to explicit those implicit flags whose setting is not
// already given on the command line. explicit is not modified.
func Merge(explicit, implicit []string) []string {
	given := map[string]bool{}
	for _, flag := range explicit {
		if s := setting(flag); s != "" {
			given[s] = true
		}
	}
	merged := append([]string(nil), explicit...)
	for _, flag := range implicit {
		if s := setting(flag); s != "" && given[s] {
			continue
		}
		merged = append(merged, flag)
	}
	return merged
}
