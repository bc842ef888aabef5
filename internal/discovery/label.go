package discovery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"btp/internal/domain"
)

// LabelInfo is the decoded content of a test unit's graph label.
type LabelInfo struct {
	Name string
	File string
	Line int // 1-based, as reported by the binary
}

// labelGrammars are tried in order, the first match wins.
// Each grammar captures name, file and line.
var labelGrammars = []*regexp.Regexp{
	regexp.MustCompile(`^([\w <>]+)\|([^|]+)\((\d+)\)$`),
	regexp.MustCompile(`(?s)^([\w <>]+)\|([^|]+)\((\d+)\)\|.*$`),
}

// DecodeLabel extracts name, file and line from a test unit label.
func DecodeLabel(label string) (LabelInfo, error) {
	for _, grammar := range labelGrammars {
		m := grammar.FindStringSubmatch(label)
		if m == nil {
			continue
		}
		line, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		return LabelInfo{Name: m[1], File: m[2], Line: line}, nil
	}
	return LabelInfo{}, &domain.LabelFormatError{Label: label}
}

// EncodeLabel renders a LabelInfo in the plain name|file(line) form.
func EncodeLabel(info LabelInfo) string {
	return fmt.Sprintf("%s|%s(%d)", info.Name, info.File, info.Line)
}

// ModuleName extracts the module name from the root node's label.
func ModuleName(label string) string {
	if i := strings.IndexByte(label, '|'); i >= 0 {
		label = label[:i]
	}
	return strings.TrimSpace(label)
}
