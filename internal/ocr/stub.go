//go:build !ocr

package ocr

import "github.com/beabigegg/Translate-Tool/internal/types"

// Available reports whether OCR support is compiled in.
const Available = false

// NewTesseract fails: OCR support was not compiled in. Rebuild with
// -tags ocr to enable it.
func NewTesseract([]string) (Engine, error) {
	return nil, types.NewAppErrorWithDetails(types.ErrMissingCapability, "OCR support not enabled",
		"rebuild with -tags ocr", nil)
}
