// Package ooxml holds Office Open XML packages in memory. Word, PowerPoint
// and Excel files are zip archives of XML parts; a package is read whole,
// individual parts are rewritten and everything else is written back
// byte for byte.
package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// InsertMarker is appended to every piece of text the renderers insert, so
// a translated file can be parsed again without picking up its translations.
const InsertMarker = "\u200b"

// maxPartSize bounds a single decompressed part.
const maxPartSize = 256 << 20

const contentTypes = "[Content_Types].xml"

// Package is an OPC package held in memory. Part order is kept so a
// rewritten package lists its parts the way the source did.
type Package struct {
	names []string
	parts map[string][]byte
}

// New creates an empty package.
func New() *Package {
	return &Package{parts: make(map[string][]byte)}
}

// Open reads the package at path. Every part named in required must exist.
func Open(path string, required ...string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	p := &Package{parts: make(map[string][]byte, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readPart(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		p.names = append(p.names, f.Name)
		p.parts[f.Name] = data
	}
	for _, name := range required {
		if _, ok := p.parts[name]; !ok {
			return nil, fmt.Errorf("%s missing", name)
		}
	}
	return p, nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("part larger than %d bytes", maxPartSize)
	}
	return data, nil
}

// Names lists the parts in package order.
func (p *Package) Names() []string { return p.names }

// Part returns the content of a part, nil when it does not exist.
func (p *Package) Part(name string) []byte { return p.parts[name] }

// Has reports whether the package holds a part.
func (p *Package) Has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// Set replaces or adds a part.
func (p *Package) Set(name string, data []byte) {
	if _, ok := p.parts[name]; !ok {
		p.names = append(p.names, name)
	}
	p.parts[name] = data
}

// Write stores the package at path. [Content_Types].xml goes first.
func (p *Package) Write(path string) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	names := make([]string, 0, len(p.names))
	if _, ok := p.parts[contentTypes]; ok {
		names = append(names, contentTypes)
	}
	for _, n := range p.names {
		if n != contentTypes {
			names = append(names, n)
		}
	}
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return err
		}
		if _, err := w.Write(p.parts[name]); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Relationship is one entry of a .rels part. Target is resolved to a part
// name for internal targets.
type Relationship struct {
	ID       string
	Type     string
	Target   string
	External bool
}

type relsXML struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
		Mode   string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

// RelsPart returns the name of the relationships part of a part.
func RelsPart(part string) string {
	dir, base := path.Split(part)
	return dir + "_rels/" + base + ".rels"
}

// Relationships reads the relationships of part, keyed by id. A part
// without relationships returns an empty map.
func (p *Package) Relationships(part string) (map[string]Relationship, error) {
	out := make(map[string]Relationship)
	data := p.parts[RelsPart(part)]
	if len(data) == 0 {
		return out, nil
	}
	var rx relsXML
	if err := xml.Unmarshal(data, &rx); err != nil {
		return nil, fmt.Errorf("relationships of %s: %w", part, err)
	}
	for _, r := range rx.Rels {
		rel := Relationship{ID: r.ID, Type: r.Type, Target: r.Target, External: strings.EqualFold(r.Mode, "External")}
		if !rel.External {
			rel.Target = resolve(part, r.Target)
		}
		out[r.ID] = rel
	}
	return out, nil
}

// resolve turns a target relative to part into a part name.
func resolve(part, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join(path.Dir(part), target))
}

// TypeIs reports whether a relationship type URI ends in local, so the
// strict and transitional namespaces both match.
func (r Relationship) TypeIs(local string) bool {
	return strings.HasSuffix(r.Type, "/"+local)
}
