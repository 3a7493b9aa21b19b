//go:build !ocr

package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beabigegg/Translate-Tool/internal/parser"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

func TestStubReportsMissingCapability(t *testing.T) {
	assert.False(t, Available)
	_, err := NewParser(0, "").Parse(context.Background(), writePNG(t, t.TempDir(), 10, 10), parser.DefaultOptions())
	assert.True(t, types.IsCode(err, types.ErrMissingCapability))
}
