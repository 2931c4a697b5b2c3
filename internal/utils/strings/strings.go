package strings

import (
	"strings"

	"github.com/mitchellh/go-wordwrap"
)

// WrapString breaks v into lines of at most maxLength characters. Wrapping
// happens on word boundaries first; words longer than the limit are split
// mid-word, so a single base64 blob cannot blow up a table cell.
func WrapString(v string, maxLength int) string {
	var res []string
	for _, line := range strings.Split(wordwrap.WrapString(v, uint(maxLength)), "\n") {
		for len(line) > maxLength {
			res = append(res, line[:maxLength])
			line = line[maxLength:]
		}
		res = append(res, line)
	}
	return strings.Join(res, "\n")
}
