package patch

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// constantTypes are the declaration types a constant may carry
const constantTypes = `(?:address|uint\d*|int\d*|bytes\d*|bool|string)`

// constantPattern matches a single-line declaration such as
//
//	address internal constant NAME = 0x...;
//
// Group 1 is everything up to the value, group 2 the value.
func constantPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(\b` + constantTypes +
		`[ \t]+(?:(?:internal|public|private)[ \t]+)?constant[ \t]+` +
		regexp.QuoteMeta(name) + `[ \t]*=[ \t]*)([^;\n]+);`)
}

var trailingSeparator = regexp.MustCompile(`,(\s*\])`)

// Edit transforms file content and records what it did in the report
type Edit func(content string, report *Report) string

// SetConstants replaces the values of the named constants. Declarations that
// are not found on a single line are recorded as missed.
func SetConstants(updates map[string]string) Edit {
	return func(content string, report *Report) string {
		out, applied, missed := ApplyConstants(content, updates)
		report.Applied = append(report.Applied, applied...)
		report.Missed = append(report.Missed, missed...)
		return out
	}
}

// DropLinesContaining removes every line containing substr
func DropLinesContaining(substr string) Edit {
	return func(content string, report *Report) string {
		out, n := RemoveLines(content, substr)
		report.RemovedLines += n
		return out
	}
}

// TrimTrailingSeparators removes a comma left before a closing bracket
func TrimTrailingSeparators() Edit {
	return func(content string, report *Report) string {
		return TrimSeparators(content)
	}
}

// SetNumbers replaces the integer assigned to every name matching nameExpr
func SetNumbers(nameExpr string, value uint64) Edit {
	return func(content string, report *Report) string {
		out, n := ReplaceNumbers(content, nameExpr, value)
		report.Replaced += n
		return out
	}
}

// ApplyConstants sets each named constant to its new literal value. All other
// text is preserved byte for byte. Names are processed in sorted order so the
// applied and missed lists are deterministic.
func ApplyConstants(content string, updates map[string]string) (string, []string, []string) {
	names := make([]string, 0, len(updates))
	for name := range updates {
		names = append(names, name)
	}
	sort.Strings(names)

	var applied, missed []string
	for _, name := range names {
		value := updates[name]
		re := constantPattern(name)
		found := false
		content = re.ReplaceAllStringFunc(content, func(match string) string {
			found = true
			m := re.FindStringSubmatch(match)
			return m[1] + value + ";"
		})
		if found {
			applied = append(applied, name)
		} else {
			missed = append(missed, name)
		}
	}
	return content, applied, missed
}

// RemoveLines drops every line containing substr, along with its newline.
// It returns the new content and the number of lines removed.
func RemoveLines(content, substr string) (string, int) {
	if substr == "" {
		return content, 0
	}
	lines := strings.SplitAfter(content, "\n")
	var b strings.Builder
	removed := 0
	for _, line := range lines {
		if strings.Contains(line, substr) {
			removed++
			continue
		}
		b.WriteString(line)
	}
	return b.String(), removed
}

// TrimSeparators rewrites ",<space>]" as "<space>]"
func TrimSeparators(content string) string {
	return trailingSeparator.ReplaceAllString(content, "$1")
}

// ReplaceNumbers sets the integer literal assigned to every identifier
// matching nameExpr. It returns the new content and the number of
// assignments rewritten.
func ReplaceNumbers(content, nameExpr string, value uint64) (string, int) {
	re := regexp.MustCompile(`(` + nameExpr + `[ \t]*=[ \t]*)\d+`)
	n := len(re.FindAllStringIndex(content, -1))
	return re.ReplaceAllString(content, fmt.Sprintf("${1}%d", value)), n
}
