package fontfit

import "unicode"

// Direction is the base writing direction of a text run.
type Direction int

const (
	LTR Direction = iota
	RTL
)

func (d Direction) String() string {
	if d == RTL {
		return "rtl"
	}
	return "ltr"
}

// DetectDirection returns RTL when more than half of the letters are
// Hebrew or Arabic.
func DetectDirection(text string) Direction {
	letters, rtl := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.In(r, unicode.Hebrew, unicode.Arabic, unicode.Syriac, unicode.Thaana) {
			rtl++
		}
	}
	if letters > 0 && rtl*2 > letters {
		return RTL
	}
	return LTR
}
