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

package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"naive.systems/logparser/buildaction"
)

var languageMap = map[string]language.Tag{"en": language.English, "zh": language.Chinese}

const (
	msgSummary     = "%d compile commands, %d build actions"
	msgDiagnostics = "%d malformed compile commands, %d commands could not be tokenized"
	msgOmitted     = "omitted: %d preprocessor only, %d not compilations, %d skipped, %d duplicates"
)

func init() {
	for key, msg := range map[string]string{
		msgSummary:     "%d 条编译命令，%d 个构建动作",
		msgDiagnostics: "%d 条编译命令格式错误，%d 条命令无法拆分",
		msgOmitted:     "已忽略：%d 条仅预处理，%d 条非编译，%d 条被跳过，%d 条重复",
	} {
		message.SetString(language.Chinese, key, msg)
	}
	for _, key := range []string{msgSummary, msgDiagnostics, msgOmitted} {
		message.SetString(language.English, key, key)
	}
}

func GetPrinter(lang string) *message.Printer {
	var langTag language.Tag
	if _, exist := languageMap[lang]; exist {
		langTag = languageMap[lang]
	} else {
		langTag = languageMap["zh"]
	}
	return message.NewPrinter(langTag)
}

// Summary describes the outcome of a parse pass, one line per aspect. The
// diagnostics line is left out when no record was malformed.
func Summary(stats buildaction.Stats, lang string) []string {
	p := GetPrinter(lang)
	lines := []string{p.Sprintf(msgSummary, stats.Records, stats.Actions)}
	if stats.Diagnostics() > 0 {
		lines = append(lines, p.Sprintf(msgDiagnostics, stats.Malformed, stats.TokenizeFailures))
	}
	lines = append(lines, p.Sprintf(msgOmitted, stats.PreprocessOnly, stats.NotCompile, stats.Skipped, stats.Duplicates))
	return lines
}
