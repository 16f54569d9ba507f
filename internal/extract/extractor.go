// Package extract turns free-text patient descriptions into typed entity
// sets. A model-backed strategy is tried first; any failure degrades to a
// deterministic rule-based pass, never to an error.
package extract

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/oncomatch/trial-screener/internal/config"
	"github.com/oncomatch/trial-screener/internal/model"
	"github.com/oncomatch/trial-screener/pkg/anthropic"
)

// Strategy extracts entities from text. Implementations must be safe for
// concurrent use.
type Strategy interface {
	Extract(ctx context.Context, text string) (*model.EntitySet, error)
}

// Extractor is the façade over the two strategies. Its Extract contract
// never fails: on any model error it falls back to the rule pass.
type Extractor struct {
	cfg   config.AnthropicConfig
	rules *RuleExtractor

	once    sync.Once
	primary Strategy // nil when no model is configured or load failed
}

// New creates an Extractor. The model client is built lazily on first use
// and cached for the process lifetime.
func New(cfg config.AnthropicConfig) *Extractor {
	return &Extractor{cfg: cfg, rules: NewRuleExtractor()}
}

// NewWithStrategy creates an Extractor with an explicit primary strategy,
// used by tests and by callers that manage their own client.
func NewWithStrategy(primary Strategy) *Extractor {
	e := &Extractor{rules: NewRuleExtractor(), primary: primary}
	e.once.Do(func() {}) // primary already set
	return e
}

// loadModel builds the model-backed strategy at most once per process.
func (e *Extractor) loadModel() {
	e.once.Do(func() {
		if e.cfg.Key == "" {
			zap.L().Info("extract: no model key configured, using rule-based extraction")
			return
		}
		client := anthropic.NewClient(e.cfg.Key)
		e.primary = NewClaudeExtractor(client, e.cfg.Model, e.cfg.MaxTokens)
	})
}

// Extract never returns an error. Empty or whitespace-only input yields
// an empty EntitySet.
func (e *Extractor) Extract(ctx context.Context, text string) *model.EntitySet {
	if strings.TrimSpace(text) == "" {
		return &model.EntitySet{}
	}

	e.loadModel()

	if e.primary != nil {
		set, err := e.primary.Extract(ctx, text)
		if err == nil && !set.Empty() {
			return set
		}
		if err != nil {
			zap.L().Warn("extract: model extraction failed, falling back to rules",
				zap.Error(err),
			)
		}
	}

	set, _ := e.rules.Extract(ctx, text)
	return set
}

// BuildQuery extracts entities and derives the structured demographic
// fields. Age, sex, and smoking always come from the deterministic
// parsers so they do not depend on which strategy ran.
func (e *Extractor) BuildQuery(ctx context.Context, text string) *model.PatientQuery {
	return &model.PatientQuery{
		RawText:  text,
		Entities: *e.Extract(ctx, text),
		Age:      ParseAge(text),
		Sex:      ParseSex(text),
		Smoking:  ParseSmoking(text),
	}
}
