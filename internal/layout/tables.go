package layout

import (
	"sort"

	"github.com/beabigegg/Translate-Tool/internal/geometry"
)

// TableDetector finds table regions on a page from its drawn rectangles
// and rules, in internal coordinates.
type TableDetector interface {
	DetectTables(rects []geometry.BoundingBox, pageWidth, pageHeight float64) []geometry.BoundingBox
}

// RuledTableDetector clusters touching ruling lines and cell rectangles.
// A cluster with enough horizontal and vertical rules becomes a table; a
// single framed box has only two horizontal rules and is not one.
type RuledTableDetector struct {
	// JoinTolerance is the gap in points that still connects two rects.
	JoinTolerance float64
	// RuleThickness is the maximum thickness of a rect treated as a line.
	RuleThickness float64
	MinHorizontal int
	MinVertical   int
	MinSize       float64
}

// NewRuledTableDetector returns a detector with the default thresholds.
func NewRuledTableDetector() *RuledTableDetector {
	return &RuledTableDetector{
		JoinTolerance: 2,
		RuleThickness: 3,
		MinHorizontal: 3,
		MinVertical:   2,
		MinSize:       20,
	}
}

// DetectTables implements TableDetector.
func (d *RuledTableDetector) DetectTables(rects []geometry.BoundingBox, pageWidth, pageHeight float64) []geometry.BoundingBox {
	var candidates []geometry.BoundingBox
	pageArea := pageWidth * pageHeight
	for _, r := range rects {
		if !r.Valid() {
			continue
		}
		// page backgrounds and frames
		if pageArea > 0 && r.Area() > 0.9*pageArea {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return nil
	}

	parent := make([]int, len(candidates))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := range candidates {
		grown := candidates[i].Expand(d.JoinTolerance)
		for j := i + 1; j < len(candidates); j++ {
			if _, ok := grown.Intersect(candidates[j].Expand(d.JoinTolerance)); ok {
				parent[find(i)] = find(j)
			}
		}
	}

	groups := make(map[int][]geometry.BoundingBox)
	for i, r := range candidates {
		root := find(i)
		groups[root] = append(groups[root], r)
	}

	var tables []geometry.BoundingBox
	for _, g := range groups {
		if !d.isTable(g) {
			continue
		}
		region, _ := geometry.Merge(g)
		tables = append(tables, region)
	}
	sort.Slice(tables, func(i, j int) bool {
		if tables[i].Y0 != tables[j].Y0 {
			return tables[i].Y0 < tables[j].Y0
		}
		return tables[i].X0 < tables[j].X0
	})
	return tables
}

func (d *RuledTableDetector) isTable(group []geometry.BoundingBox) bool {
	region, ok := geometry.Merge(group)
	if !ok || region.Width() < d.MinSize || region.Height() < d.MinSize {
		return false
	}
	horizontal, vertical, cells := 0, 0, 0
	for _, r := range group {
		switch {
		case r.Height() <= d.RuleThickness && r.Width() > d.RuleThickness:
			horizontal++
		case r.Width() <= d.RuleThickness && r.Height() > d.RuleThickness:
			vertical++
		default:
			cells++
		}
	}
	// Each cell rectangle contributes two edges in each direction.
	horizontal += 2 * cells
	vertical += 2 * cells
	return horizontal >= d.MinHorizontal && vertical >= d.MinVertical && len(group) >= 2
}
