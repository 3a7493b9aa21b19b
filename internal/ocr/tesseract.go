//go:build ocr

package ocr

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Available reports whether OCR support is compiled in.
const Available = true

type tesseract struct {
	client *gosseract.Client
}

// NewTesseract creates a Tesseract engine for the given languages
// ("eng", "chi_sim", ...). The engine must be closed after use.
func NewTesseract(languages []string) (Engine, error) {
	client := gosseract.NewClient()
	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set OCR languages: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	return &tesseract{client: client}, nil
}

func (t *tesseract) Recognize(img []byte) ([]Region, error) {
	if err := t.client.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_PARA)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	regions := make([]Region, 0, len(boxes))
	for _, b := range boxes {
		regions = append(regions, Region{Text: b.Word, Box: b.Box, Confidence: b.Confidence})
	}
	return regions, nil
}

func (t *tesseract) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
