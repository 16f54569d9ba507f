package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/oncomatch/trial-screener/internal/model"
	"github.com/oncomatch/trial-screener/pkg/anthropic"
)

// extractionSystemPrompt asks for strict JSON so the response maps
// directly onto the four entity buckets.
const extractionSystemPrompt = `You are a medical named-entity recognizer for clinical trial screening.
Extract entities from the patient description and return ONLY a JSON object:
{"entities":[{"text":"...","category":"..."}]}
Categories: DISEASE, SYMPTOM, AGE, SEX, DRUG, TREATMENT, LIFESTYLE, LAB_VALUE, BIOMARKER.
Entity text must be lowercase and copied verbatim from the input. No prose, no markdown fences.`

// categoryBuckets maps model entity categories onto the four buckets.
var categoryBuckets = map[string]func(*model.EntitySet, string){
	"DISEASE":   func(s *model.EntitySet, t string) { s.Conditions = append(s.Conditions, t) },
	"SYMPTOM":   func(s *model.EntitySet, t string) { s.Conditions = append(s.Conditions, t) },
	"AGE":       func(s *model.EntitySet, t string) { s.Demographics = append(s.Demographics, t) },
	"SEX":       func(s *model.EntitySet, t string) { s.Demographics = append(s.Demographics, t) },
	"GENDER":    func(s *model.EntitySet, t string) { s.Demographics = append(s.Demographics, t) },
	"DRUG":      func(s *model.EntitySet, t string) { s.Treatments = append(s.Treatments, t) },
	"TREATMENT": func(s *model.EntitySet, t string) { s.Treatments = append(s.Treatments, t) },
	"LIFESTYLE": func(s *model.EntitySet, t string) { s.Treatments = append(s.Treatments, t) },
	"LAB_VALUE": func(s *model.EntitySet, t string) { s.LabValues = append(s.LabValues, t) },
	"BIOMARKER": func(s *model.EntitySet, t string) { s.LabValues = append(s.LabValues, t) },
}

// ClaudeExtractor is the model-backed strategy.
type ClaudeExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaudeExtractor creates the model-backed strategy.
func NewClaudeExtractor(client anthropic.Client, modelID string, maxTokens int64) *ClaudeExtractor {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &ClaudeExtractor{client: client, model: modelID, maxTokens: maxTokens}
}

// Extract runs one NER message over the input and buckets the result.
// An empty model output is an error so the caller can fall back.
func (c *ClaudeExtractor) Extract(ctx context.Context, text string) (*model.EntitySet, error) {
	temp := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      extractionSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: text}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: model call")
	}
	resp.Usage.LogUsage(c.model, "extract")

	set, err := parseEntityJSON(resp.Text)
	if err != nil {
		return nil, err
	}
	if set.Empty() {
		return nil, eris.New("extract: model returned no entities")
	}
	return set, nil
}

type entityPayload struct {
	Entities []struct {
		Text     string `json:"text"`
		Category string `json:"category"`
	} `json:"entities"`
}

func parseEntityJSON(raw string) (*model.EntitySet, error) {
	// Models occasionally wrap JSON in fences despite instructions.
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var payload entityPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return nil, eris.Wrap(err, "extract: parse model output")
	}

	set := &model.EntitySet{}
	for _, e := range payload.Entities {
		add, ok := categoryBuckets[strings.ToUpper(e.Category)]
		if !ok {
			continue // unknown category, skip
		}
		add(set, Normalize(e.Text))
	}

	set.Conditions = dedupe(set.Conditions)
	set.Demographics = dedupe(set.Demographics)
	set.Treatments = dedupe(set.Treatments)
	set.LabValues = dedupe(set.LabValues)

	return set, nil
}
