package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/parser"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// TranslateResult maps trimmed original text to its translation.
type TranslateResult struct {
	TargetLang   string
	Translations map[string]string
	// Requested is the number of texts sent to the translator.
	Requested   int
	Translated  int
	Passthrough int
	Failed      int
	Stopped     bool
}

// Translate sends the unique translatable texts of doc to the translator
// in one call. Texts without letters (numbers, symbols) map to themselves
// and are not sent. The document itself is not modified.
func (p *Pipeline) Translate(ctx context.Context, doc *document.Document, targetLang string) (*TranslateResult, error) {
	res := &TranslateResult{TargetLang: targetLang, Translations: make(map[string]string)}
	if p.translator == nil {
		return nil, types.NewAppError(types.ErrConfig, "no translator configured", nil)
	}

	var send []string
	chars := 0
	for _, text := range doc.UniqueTexts() {
		if ctx.Err() != nil {
			res.Stopped = true
			return res, nil
		}
		if !parser.NeedsTranslation(text) {
			res.Translations[text] = text
			res.Passthrough++
			continue
		}
		send = append(send, text)
		chars += utf8.RuneCountInString(text)
	}
	if err := p.checkLimits(len(send), chars); err != nil {
		return nil, err
	}
	res.Requested = len(send)
	if len(send) == 0 {
		return res, nil
	}

	p.log.Info("translating document",
		logger.String("source", doc.SourcePath),
		logger.String("targetLang", targetLang),
		logger.Int("texts", len(send)),
		logger.Int("chars", chars))

	got, err := p.translator.Translate(ctx, send, targetLang)
	for i, text := range send {
		if i < len(got) && got[i] != "" {
			res.Translations[text] = got[i]
			res.Translated++
		} else {
			res.Failed++
		}
	}
	if err != nil {
		if ctx.Err() != nil || types.IsCode(err, types.ErrCancelled) {
			res.Stopped = true
			return res, nil
		}
		return nil, err
	}
	if res.Failed > 0 {
		p.log.Warn("some texts were not translated",
			logger.String("targetLang", targetLang),
			logger.Int("failed", res.Failed))
	}
	return res, nil
}

// checkLimits enforces the configured segment and text length limits.
// Zero disables a limit.
func (p *Pipeline) checkLimits(segments, chars int) error {
	pc := p.cfg.Pipeline
	if pc.MaxSegments > 0 && segments > pc.MaxSegments {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "document has too many segments",
			fmt.Sprintf("%d segments, limit %d", segments, pc.MaxSegments), nil)
	}
	if pc.MaxTextLength > 0 && chars > pc.MaxTextLength {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "document text is too long",
			fmt.Sprintf("%d characters, limit %d", chars, pc.MaxTextLength), nil)
	}
	return nil
}
