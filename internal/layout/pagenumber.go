package layout

import (
	"regexp"
	"strings"
)

// Patterns are matched against the trimmed block text.
var pageNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`^(?i)(page|pg\.?|p\.)\s*\d+(\s*(of|/)\s*\d+)?$`),
	regexp.MustCompile(`^\d+\s*(/|of)\s*\d+$`),
	regexp.MustCompile(`^[-–—]\s*\d+\s*[-–—]$`),
	regexp.MustCompile(`^[\[(]\s*\d+\s*[\])]$`),
	regexp.MustCompile(`^第\s*\d+\s*[页頁]$`),
	regexp.MustCompile(`^第\s*\d+\s*[页頁]\s*[,，/]?\s*共\s*\d+\s*[页頁]$`),
	regexp.MustCompile(`^\d+\s*ページ$`),
	regexp.MustCompile(`^(?i)(seite|página|pagina)\s+\d+$`),
}

var romanNumeral = regexp.MustCompile(`^(?i)m{0,3}(cm|cd|d?c{0,3})(xc|xl|l?x{0,3})(ix|iv|v?i{0,3})$`)

// IsPageNumber reports whether text looks like a page number marker:
// bare digits, "Page N", "N / M", "- N -", CJK forms or a roman numeral.
func IsPageNumber(text string) bool {
	s := strings.TrimSpace(text)
	if s == "" {
		return false
	}
	for _, re := range pageNumberPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return len(s) <= 8 && romanNumeral.MatchString(s)
}
