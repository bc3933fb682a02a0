// Package gemini implements the ai collaborators on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/magicwardrobe/ai"
	"github.com/kasuganosora/magicwardrobe/catalog"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	DefaultVisionModel    = "gemini-2.5-flash"
	DefaultStylistModel   = "gemini-2.5-flash"
	DefaultEmbeddingModel = "gemini-embedding-001"

	embedTaskType = "SEMANTIC_SIMILARITY"
)

// Config configures a Client.
type Config struct {
	APIKey         string
	VisionModel    string
	StylistModel   string
	EmbeddingModel string
	EmbeddingDims  int32
	RPS            float64
	Burst          int
	MaxAttempts    int
	Timeout        time.Duration // per attempt
}

func (c Config) withDefaults() Config {
	if c.VisionModel == "" {
		c.VisionModel = DefaultVisionModel
	}
	if c.StylistModel == "" {
		c.StylistModel = DefaultStylistModel
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// Client is a Vision, Stylist and Embedder backed by one genai client.
type Client struct {
	cli     *genai.Client
	cfg     Config
	limiter *rate.Limiter
	backoff func(attempt int) time.Duration
	logger  *zap.Logger
}

var (
	_ ai.Vision   = (*Client)(nil)
	_ ai.Stylist  = (*Client)(nil)
	_ ai.Embedder = (*Client)(nil)
)

// New creates a Client. An empty API key lets the SDK read GEMINI_API_KEY
// or GOOGLE_API_KEY from the environment.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Client{
		cli:     cli,
		cfg:     cfg,
		limiter: newLimiter(cfg.RPS, cfg.Burst),
		backoff: exponential,
		logger:  logger,
	}, nil
}

// newLimiter returns nil for rps <= 0, meaning unlimited.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func exponential(attempt int) time.Duration {
	return time.Duration(300*(1<<attempt)) * time.Millisecond
}

// AnalyzeImage classifies a garment photo.
func (c *Client) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (catalog.Analysis, error) {
	if len(data) == 0 {
		return catalog.Analysis{}, errors.New("gemini: empty image")
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText("Classify this clothing item."),
		}, genai.RoleUser),
	}
	raw, err := c.generateJSON(ctx, "analyze", c.cfg.VisionModel, ai.AnalysisPrompt(), contents)
	if err != nil {
		return catalog.Analysis{}, err
	}
	return ai.ParseAnalysis(raw)
}

// SuggestOutfit asks the model for the missing slots.
func (c *Client) SuggestOutfit(ctx context.Context, sc ai.StyleContext, weather string) (map[catalog.Category]ai.Suggestion, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(ai.StylistPrompt(sc, weather), genai.RoleUser),
	}
	raw, err := c.generateJSON(ctx, "suggest", c.cfg.StylistModel, ai.StylistSystemPrompt, contents)
	if err != nil {
		return nil, err
	}
	return ai.ParseSuggestions(raw)
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: embedTaskType}
	if c.cfg.EmbeddingDims > 0 {
		dims := c.cfg.EmbeddingDims
		cfg.OutputDimensionality = &dims
	}
	var vec []float32
	err := c.retry(ctx, "embed", func(ctx context.Context) error {
		resp, err := c.cli.Models.EmbedContent(ctx, c.cfg.EmbeddingModel,
			[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
		if err != nil {
			return err
		}
		if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
			return ai.ErrEmptyResponse
		}
		vec = resp.Embeddings[0].Values
		return nil
	})
	return vec, err
}

func (c *Client) generateJSON(ctx context.Context, op, model, system string, contents []*genai.Content) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	var out []byte
	err := c.retry(ctx, op, func(ctx context.Context) error {
		resp, err := c.cli.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return err
		}
		txt := resp.Text()
		if txt == "" {
			return ai.ErrEmptyResponse
		}
		out = []byte(txt)
		return nil
	})
	return out, err
}

// retry runs fn up to MaxAttempts times, waiting on the rate limiter before
// each attempt and backing off exponentially between failures.
func (c *Client) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("gemini: %s: %w", op, err)
			}
		}
		actx, cancel := ctx, context.CancelFunc(func() {})
		if c.cfg.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		}
		start := time.Now()
		err := fn(actx)
		cancel()
		if err == nil {
			c.logger.Debug("gemini call ok", zap.String("op", op),
				zap.Int("attempt", attempt+1), zap.Duration("took", time.Since(start)))
			return nil
		}
		lastErr = err
		c.logger.Warn("gemini call failed", zap.String("op", op),
			zap.Int("attempt", attempt+1), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
		if attempt+1 < c.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("gemini: %s: %w", op, ctx.Err())
			case <-time.After(c.backoff(attempt)):
			}
		}
	}
	return fmt.Errorf("gemini: %s: %w", op, lastErr)
}
