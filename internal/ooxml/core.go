package ooxml

import "encoding/xml"

// PartCore is the core properties part shared by all document types.
const PartCore = "docProps/core.xml"

// Core holds the document properties every Office file carries.
type Core struct {
	Title    string `xml:"title"`
	Subject  string `xml:"subject"`
	Creator  string `xml:"creator"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

// ReadCore parses the core properties of p.
func (p *Package) ReadCore() (Core, bool) {
	var c Core
	data := p.parts[PartCore]
	if len(data) == 0 {
		return c, false
	}
	if err := xml.Unmarshal(data, &c); err != nil {
		return c, false
	}
	return c, true
}

// CoreXML writes a core properties part holding only a title.
func CoreXML(title string) string {
	return xml.Header + `<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/">` +
		`<dc:title>` + Escape(title) + `</dc:title></cp:coreProperties>`
}
