package document

import (
	"encoding/json"
	"math/rand"
	"path/filepath"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beabigegg/Translate-Tool/internal/geometry"
)

func box(x0, y0, x1, y1 float64) *geometry.BoundingBox {
	b := geometry.New(x0, y0, x1, y1)
	return &b
}

func sampleDocument() *Document {
	d := New("/tmp/sample.pdf", "pdf")
	d.Pages = []PageInfo{{PageNum: 0, Width: 612, Height: 792}, {PageNum: 1, Width: 612, Height: 792, Rotation: 90}}
	d.Metadata = Metadata{Title: "Sample", Author: "Someone", PageCount: 2, HasTextLayer: true}
	translated := "Hallo"
	d.Elements = []*Element{
		{ID: "p0_e0", Content: "Running head", Type: TypeHeader, PageNum: 0, BBox: box(72, 10, 300, 22)},
		{ID: "p0_e1", Content: " Hello ", Type: TypeText, PageNum: 0, BBox: box(72, 100, 300, 112.25), ShouldTranslate: true, Translated: &translated},
		{ID: "p0_e2", Content: "Hello", Type: TypeTableCell, PageNum: 0, BBox: box(72, 200, 150, 212), ShouldTranslate: true,
			Style: &StyleInfo{FontName: "Helvetica-Bold", FontSize: 11.5, Bold: true, Color: "#112233"}},
		{ID: "p1_e0", Content: "World", Type: TypeTitle, PageNum: 1, ShouldTranslate: true,
			Metadata: map[string]any{"renderable": false, "source": "ocr"}},
		{ID: "p1_e1", Content: "3", Type: TypePageNumber, PageNum: 1, BBox: box(300, 770, 310, 780)},
	}
	d.Warnings = []string{"page 2: extraction degraded"}
	return d
}

func TestTranslatableElements(t *testing.T) {
	d := sampleDocument()
	got := d.TranslatableElements()
	require.Len(t, got, 3)
	for _, e := range got {
		assert.True(t, e.ShouldTranslate)
	}
}

func TestUniqueTextsPreservesOrderAndTrims(t *testing.T) {
	d := sampleDocument()
	d.Elements = append(d.Elements, &Element{ID: "x", Content: "   ", Type: TypeText, PageNum: 1, ShouldTranslate: true})
	assert.Equal(t, []string{"Hello", "World"}, d.UniqueTexts())
}

func TestApplyTranslations(t *testing.T) {
	d := sampleDocument()
	for _, e := range d.Elements {
		e.Translated = nil
	}

	n := d.ApplyTranslations(map[string]string{"Hello": "Bonjour", "Running head": "ignored"})
	assert.Equal(t, 2, n)

	got, ok := d.Elements[1].Translation()
	assert.True(t, ok)
	assert.Equal(t, "Bonjour", got)
	got, ok = d.Elements[2].Translation()
	assert.True(t, ok)
	assert.Equal(t, "Bonjour", got)

	_, ok = d.Elements[0].Translation()
	assert.False(t, ok, "non-translatable elements keep their original content")
	_, ok = d.Elements[3].Translation()
	assert.False(t, ok, "elements missing from the map stay untranslated")
	assert.Equal(t, 1, d.MissingTranslations())
}

func TestReadingOrderTwoColumns(t *testing.T) {
	d := New("two-columns.pdf", "pdf")
	d.Pages = []PageInfo{{PageNum: 0, Width: 612, Height: 792}}
	d.Elements = []*Element{
		{ID: "right120", Type: TypeText, BBox: box(320, 120, 560, 132)},
		{ID: "left60", Type: TypeText, BBox: box(72, 60, 300, 72)},
		{ID: "nobox", Type: TypeText},
		{ID: "right60", Type: TypeText, BBox: box(320, 61, 560, 73)},
		{ID: "left120", Type: TypeText, BBox: box(72, 122, 300, 134)},
		{ID: "header", Type: TypeHeader, BBox: box(72, 5, 300, 15)},
	}

	var ids []string
	for _, e := range d.ElementsInReadingOrder() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"header", "left60", "right60", "left120", "right120", "nobox"}, ids)
}

func TestReadingOrderPagesAndMissingBoxes(t *testing.T) {
	d := New("x", "pdf")
	d.Elements = []*Element{
		{ID: "p1", PageNum: 1, BBox: box(0, 0, 1, 1)},
		{ID: "p0-nobox-a", PageNum: 0},
		{ID: "p0", PageNum: 0, BBox: box(0, 500, 1, 501)},
		{ID: "p0-nobox-b", PageNum: 0},
	}
	var ids []string
	for _, e := range d.ElementsInReadingOrder() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"p0", "p0-nobox-a", "p0-nobox-b", "p1"}, ids)
}

// Elements in an earlier line bucket always precede later ones, and the
// ordering is identical regardless of the input permutation.
func TestReadingOrderProperty(t *testing.T) {
	f := func(seed int64) bool {
		rng := rand.New(rand.NewSource(seed))
		d := New("p", "pdf")
		for i := 0; i < 12; i++ {
			x := float64(rng.Intn(500))
			y := float64(rng.Intn(700))
			d.Elements = append(d.Elements, &Element{ID: string(rune('a' + i)), BBox: box(x, y, x+float64(i+1), y+10)})
		}
		ordered := d.ElementsInReadingOrder()
		for i := 1; i < len(ordered); i++ {
			a, b := ordered[i-1], ordered[i]
			la, lb := LineBucket(a.BBox.Y0, 10), LineBucket(b.BBox.Y0, 10)
			if la > lb || (la == lb && a.BBox.X0 > b.BBox.X0) {
				return false
			}
		}

		shuffled := New("p", "pdf")
		shuffled.Elements = append([]*Element(nil), d.Elements...)
		rng.Shuffle(len(shuffled.Elements), func(i, j int) {
			shuffled.Elements[i], shuffled.Elements[j] = shuffled.Elements[j], shuffled.Elements[i]
		})
		again := shuffled.ElementsInReadingOrder()
		for i := range ordered {
			a, b := ordered[i], again[i]
			if LineBucket(a.BBox.Y0, 10) != LineBucket(b.BBox.Y0, 10) || a.BBox.X0 != b.BBox.X0 {
				return false
			}
		}
		return true
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestDictRoundTrip(t *testing.T) {
	d := sampleDocument()

	back, err := FromDict(d.ToDict())
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestDictRoundTripThroughJSON(t *testing.T) {
	d := sampleDocument()

	data, err := json.Marshal(d.ToDict())
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	back, err := FromDict(m)
	require.NoError(t, err)
	require.Len(t, back.Elements, len(d.Elements))
	for i, e := range d.Elements {
		got := back.Elements[i]
		assert.Equal(t, e.ID, got.ID)
		assert.Equal(t, e.ShouldTranslate, got.ShouldTranslate)
		assert.Equal(t, e.BBox, got.BBox)
		assert.Equal(t, e.Style, got.Style)
		assert.Equal(t, e.Translated, got.Translated)
	}
	assert.Equal(t, d.Pages, back.Pages)
	assert.Equal(t, d.Metadata, back.Metadata)
}

func TestFromDictRejectsBadInput(t *testing.T) {
	_, err := FromDict(map[string]any{"elements": []any{"nope"}})
	assert.Error(t, err)

	_, err = FromDict(map[string]any{"elements": []any{map[string]any{"element_id": "a", "element_type": "banner"}}})
	assert.Error(t, err)

	_, err = FromDict(map[string]any{"source_path": 42})
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	d := sampleDocument()
	path := filepath.Join(t.TempDir(), "out", "doc.json")

	require.NoError(t, d.Save(path))
	back, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, len(d.Elements), len(back.Elements))
	assert.Equal(t, d.Elements[2].BBox, back.Elements[2].BBox)
	assert.Equal(t, false, back.Elements[3].Metadata[MetaRenderable])
}

func TestValidate(t *testing.T) {
	d := sampleDocument()
	require.NoError(t, d.Validate())

	d.Elements[1].ID = d.Elements[0].ID
	assert.Error(t, d.Validate())

	d = sampleDocument()
	d.Elements[0].PageNum = 9
	assert.Error(t, d.Validate())
}

func TestRenderable(t *testing.T) {
	assert.True(t, (&Element{BBox: box(0, 0, 10, 10)}).Renderable())
	assert.False(t, (&Element{}).Renderable())
	assert.False(t, (&Element{BBox: box(0, 0, 0, 10)}).Renderable())
	e := &Element{BBox: box(0, 0, 10, 10)}
	e.SetMeta(MetaRenderable, false)
	assert.False(t, e.Renderable())
}

func TestElementTypeHelpers(t *testing.T) {
	assert.True(t, TypePageNumber.IsMarginal())
	assert.False(t, TypeTableCell.IsMarginal())
	assert.False(t, ElementType("banner").Valid())
}
