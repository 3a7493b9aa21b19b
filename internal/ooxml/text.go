package ooxml

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// Escape escapes s for use as XML character data.
func Escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Attr returns the value of the attribute with the given local name.
func Attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// Inserted reports text written by a renderer.
func Inserted(text string) bool { return strings.Contains(text, InsertMarker) }
