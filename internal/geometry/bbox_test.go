package geometry

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizesEdges(t *testing.T) {
	b := New(100, 80, 10, 20)
	assert.Equal(t, BoundingBox{X0: 10, Y0: 20, X1: 100, Y1: 80}, b)
	assert.Equal(t, 90.0, b.Width())
	assert.Equal(t, 60.0, b.Height())
	assert.Equal(t, 55.0, b.CenterX())
	assert.Equal(t, 50.0, b.CenterY())
	assert.True(t, b.Valid())
}

func TestNativeRoundTripQuadrants(t *testing.T) {
	const pageHeight = 792.0
	boxes := []BoundingBox{
		New(0, 0, 100, 50),      // top-left
		New(500, 0, 612, 40),    // top-right
		New(0, 740, 120, 792),   // bottom-left
		New(480, 700, 612, 792), // bottom-right
		New(306, 396, 306, 396), // degenerate center point
	}
	for _, b := range boxes {
		x0, y0, x1, y1 := b.ToNative(pageHeight)
		assert.LessOrEqual(t, y0, y1, "native lower edge must not exceed upper edge")
		back := FromNative(x0, y0, x1, y1, pageHeight)
		assert.True(t, b.Equal(back), "round trip changed %v into %v", b, back)
	}
}

func TestNativeConversionFlipsY(t *testing.T) {
	b := New(10, 0, 20, 30)
	_, y0, _, y1 := b.ToNative(800)
	assert.Equal(t, 770.0, y0)
	assert.Equal(t, 800.0, y1)
}

func TestNativeRoundTripProperty(t *testing.T) {
	f := func(a, b, c, d uint16, h uint16) bool {
		pageHeight := float64(h) + 1
		box := New(float64(a), float64(b), float64(c), float64(d))
		x0, y0, x1, y1 := box.ToNative(pageHeight)
		return box.Equal(FromNative(x0, y0, x1, y1, pageHeight))
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, New(5, 5, 5, 20).IsEmpty())
	assert.True(t, New(5, 5, 20, 5).IsEmpty())
	assert.False(t, New(5, 5, 6, 6).IsEmpty())
}

func TestValidRejectsNaN(t *testing.T) {
	assert.False(t, BoundingBox{X0: math.NaN(), X1: 1, Y1: 1}.Valid())
	assert.False(t, BoundingBox{X0: 5, X1: 1, Y1: 1}.Valid())
}

func TestOverlapRatio(t *testing.T) {
	table := New(0, 0, 100, 100)

	tests := []struct {
		name  string
		inner BoundingBox
		want  float64
	}{
		{"fully inside", New(10, 10, 20, 20), 1},
		{"half inside", New(90, 10, 110, 20), 0.5},
		{"outside", New(200, 200, 210, 210), 0},
		{"touching edge", New(100, 0, 110, 10), 0},
		{"empty inner", New(10, 10, 10, 20), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, OverlapRatio(tt.inner, table), Epsilon)
		})
	}
}

func TestOverlapRatioIsAsymmetric(t *testing.T) {
	small := New(0, 0, 10, 10)
	large := New(0, 0, 100, 100)
	assert.Equal(t, 1.0, OverlapRatio(small, large))
	assert.InDelta(t, 0.01, OverlapRatio(large, small), Epsilon)
}

func TestIoU(t *testing.T) {
	a := New(0, 0, 10, 10)
	b := New(5, 0, 15, 10)
	assert.InDelta(t, 50.0/150.0, IoU(a, b), Epsilon)
	assert.Equal(t, 1.0, IoU(a, a))
	assert.Equal(t, 0.0, IoU(a, New(20, 20, 30, 30)))
}

func TestContainsWithTolerance(t *testing.T) {
	outer := New(0, 0, 100, 100)
	assert.True(t, outer.Contains(New(10, 10, 90, 90), 0))
	assert.False(t, outer.Contains(New(-3, 10, 90, 90), 0))
	assert.True(t, outer.Contains(New(-3, 10, 90, 90), 5))
}

func TestMergeAndUnion(t *testing.T) {
	_, ok := Merge(nil)
	assert.False(t, ok)

	m, ok := Merge([]BoundingBox{New(0, 0, 10, 10), New(50, 5, 60, 80)})
	require.True(t, ok)
	assert.Equal(t, New(0, 0, 60, 80), m)
}

func TestExpand(t *testing.T) {
	b := New(10, 10, 20, 20)
	assert.Equal(t, New(9.5, 9.5, 20.5, 20.5), b.Expand(0.5))
	assert.Equal(t, New(11, 11, 19, 19), b.Expand(-1))

	collapsed := b.Expand(-50)
	assert.Equal(t, 15.0, collapsed.X0)
	assert.Equal(t, 15.0, collapsed.X1)
}
