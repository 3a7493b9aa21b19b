package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// DefaultConcurrency is the default number of concurrent batch translations
const DefaultConcurrency = 3

// DefaultMaxRetries is the default maximum number of attempts per request
const DefaultMaxRetries = 3

// BaseRetryDelay is the base delay between retries (exponential backoff)
const BaseRetryDelay = 2 * time.Second

// MaxRetryDelay caps the delay between retries.
const MaxRetryDelay = 30 * time.Second

// Generator is the part of an eino chat model the translator needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Config configures a ChatTranslator.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	SourceLanguage string
	ContextWindow  int
	Concurrency    int
	MaxRetries     int
	Timeout        time.Duration
	// RetryDelay overrides BaseRetryDelay.
	RetryDelay time.Duration
}

// ConfigFromSettings maps the translator section of the application config.
func ConfigFromSettings(tc config.TranslatorConfig) Config {
	return Config{
		APIKey:         tc.APIKey,
		BaseURL:        tc.BaseURL,
		Model:          tc.Model,
		SourceLanguage: tc.SourceLanguage,
		ContextWindow:  tc.ContextWindow,
		MaxRetries:     tc.MaxRetries,
		Timeout:        tc.Timeout,
	}
}

func (c Config) withDefaults() Config {
	if c.ContextWindow <= 0 {
		c.ContextWindow = DefaultContextWindow
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = BaseRetryDelay
	}
	if c.Model == "" {
		c.Model = config.DefaultModel
	}
	return c
}

// ChatTranslator translates through a chat model. Texts are packed into
// separator-joined batches sized by the context window; a batch whose
// reply cannot be split back is retried item by item.
type ChatTranslator struct {
	gen Generator
	cfg Config
	log logger.Logger
}

// NewChatTranslator creates a translator backed by an OpenAI-compatible
// chat model.
func NewChatTranslator(ctx context.Context, cfg Config) (*ChatTranslator, error) {
	if cfg.APIKey == "" {
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "translator API key is not set",
			"set "+config.EnvOpenAIAPIKey+" or translator.api_key", nil)
	}
	cfg = cfg.withDefaults()

	temperature := float32(0.3)
	chatModelConfig := &openai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.Timeout,
		Temperature: &temperature,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = cfg.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create chat model", err)
	}
	return NewChatTranslatorWithGenerator(chatModel, cfg), nil
}

// NewChatTranslatorWithGenerator wraps an existing chat model.
func NewChatTranslatorWithGenerator(gen Generator, cfg Config) *ChatTranslator {
	return &ChatTranslator{gen: gen, cfg: cfg.withDefaults(), log: logger.Named("translator")}
}

// Translate implements Translator. It fails only when the context is
// cancelled or when no text at all could be translated.
func (t *ChatTranslator) Translate(ctx context.Context, texts []string, targetLang string) ([]string, error) {
	out := make([]string, len(texts))

	// blank strings need no request
	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) != "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out, nil
	}
	work := make([]string, len(pending))
	for i, idx := range pending {
		work[i] = texts[idx]
	}

	batches := MergeBatches(work, t.cfg.ContextWindow)
	t.log.Info("starting batch translation",
		logger.String("targetLang", targetLang),
		logger.Int("texts", len(work)),
		logger.Int("batches", len(batches)),
		logger.Int("contextWindow", t.cfg.ContextWindow))

	sem := make(chan struct{}, t.cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var lastErr error

	for bi, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(bi int, batch []int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			parts, err := t.translateBatch(ctx, work, batch, targetLang)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
			}
			for i, idx := range batch {
				out[pending[idx]] = parts[i]
			}
			t.log.Debug("batch done", logger.Int("batch", bi+1), logger.Int("texts", len(batch)))
		}(bi, batch)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return out, types.NewAppError(types.ErrCancelled, "translation cancelled", err)
	}

	failed := 0
	for _, idx := range pending {
		if out[idx] == "" {
			failed++
		}
	}
	if failed > 0 {
		t.log.Warn("some texts failed to translate",
			logger.Int("failed", failed),
			logger.Int("total", len(pending)))
	}
	if failed == len(pending) {
		return out, types.NewAppErrorWithDetails(types.ErrTranslation, "all texts failed to translate",
			fmt.Sprintf("%d texts", failed), lastErr)
	}
	return out, nil
}

// translateBatch returns one result per batch member; failed members are
// empty and the last error is returned alongside.
func (t *ChatTranslator) translateBatch(ctx context.Context, texts []string, batch []int, targetLang string) ([]string, error) {
	if len(batch) > 1 {
		reply, err := t.complete(ctx, JoinBatch(texts, batch), targetLang, true)
		if err == nil {
			if parts, ok := SplitBatch(reply, len(batch)); ok {
				return parts, nil
			}
			t.log.Warn("batch reply lost separators, translating items one by one",
				logger.Int("texts", len(batch)))
		} else {
			t.log.Warn("batch translation failed, translating items one by one",
				logger.Int("texts", len(batch)),
				logger.Err(err))
		}
	}

	parts := make([]string, len(batch))
	var lastErr error
	for i, idx := range batch {
		if ctx.Err() != nil {
			return parts, ctx.Err()
		}
		reply, err := t.complete(ctx, texts[idx], targetLang, false)
		if err != nil {
			lastErr = err
			t.log.Warn("text translation failed", logger.Int("length", len(texts[idx])), logger.Err(err))
			continue
		}
		parts[i] = strings.TrimSpace(reply)
	}
	return parts, lastErr
}

// complete sends one request with exponential backoff on transient errors.
func (t *ChatTranslator) complete(ctx context.Context, text, targetLang string, batched bool) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(SystemPrompt(t.cfg.SourceLanguage, targetLang, batched)),
		schema.UserMessage(text),
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.RetryDelay
	b.MaxInterval = MaxRetryDelay
	b.Multiplier = 2
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.cfg.MaxRetries-1)), ctx)

	attempt := 0
	return backoff.RetryWithData(func() (string, error) {
		attempt++
		resp, err := t.gen.Generate(ctx, messages)
		if err != nil {
			if !IsRetryable(err) {
				return "", backoff.Permanent(err)
			}
			t.log.Debug("translation attempt failed", logger.Int("attempt", attempt), logger.Err(err))
			return "", err
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return "", errors.New("model returned an empty reply")
		}
		return resp.Content, nil
	}, policy)
}

// IsRetryable determines if an error should trigger a retry. Cancellation,
// authentication failures and malformed requests are final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, final := range []string{"401", "403", "unauthorized", "invalid api key", "incorrect api key", "400", "invalid_request"} {
		if strings.Contains(msg, final) {
			return false
		}
	}
	return true
}

// LanguageName returns the English name of a language tag, or the tag
// itself when it cannot be parsed.
func LanguageName(tag string) string {
	if tag == "" || strings.EqualFold(tag, "auto") {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Tags().Name(t); name != "" {
		return name
	}
	return tag
}

// SystemPrompt builds the instructions for one request.
func SystemPrompt(sourceLang, targetLang string, batched bool) string {
	from := "the source language"
	if name := LanguageName(sourceLang); name != "" {
		from = name
	}
	to := LanguageName(targetLang)
	if to == "" {
		to = targetLang
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional document translator. Translate the user's text from %s to %s.\n\n", from, to)
	sb.WriteString("RULES:\n")
	sb.WriteString("1. Output only the translated text, without explanations or notes.\n")
	sb.WriteString("2. Preserve numbers, formulas, symbols, URLs and code exactly as they are.\n")
	sb.WriteString("3. Keep line breaks where the source has them.\n")
	if batched {
		fmt.Fprintf(&sb, "4. The input contains several blocks separated by %q. Translate each block independently and keep every separator in your output exactly as it appears. Do not merge blocks or remove separators.\n",
			strings.TrimSpace(BatchSeparator))
	}
	return sb.String()
}
