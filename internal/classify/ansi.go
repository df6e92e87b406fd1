package classify

import (
	"regexp"
	"strings"
)

var (
	reCSI        = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	reOSC        = regexp.MustCompile(`\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)
	reBareSGR    = regexp.MustCompile(`\[\d+(;\d+)*m`)
	reControl    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f\x{80}-\x{9f}]`)
	reWhitespace = regexp.MustCompile(`[\t\n\r]+`)
)

// StripANSI removes terminal escape sequences and control characters.
// Line breaks and tabs become single spaces. StripANSI(StripANSI(s)) == StripANSI(s).
func StripANSI(s string) string {
	for {
		next := stripOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

func stripOnce(s string) string {
	s = reOSC.ReplaceAllString(s, "")
	s = reCSI.ReplaceAllString(s, "")
	s = reWhitespace.ReplaceAllString(s, " ")
	s = reControl.ReplaceAllString(s, "")
	// color codes whose ESC byte was lost upstream
	s = reBareSGR.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
