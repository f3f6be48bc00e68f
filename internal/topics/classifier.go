package topics

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"hemicycle.dev/plenary/internal/llm"
)

// Classification is the label pack for one agenda-topic title.
type Classification struct {
	MacroTopic    string  `json:"macro_topic"`
	SpecificFocus string  `json:"specific_focus"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason,omitempty"`
}

// Completer is the subset of the LLM client the classifier needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const (
	DefaultBatchSize = 20

	// ReasonParseFailed marks rows that received a fallback label because
	// the model response could not be used.
	ReasonParseFailed = "parse_failed"

	fallbackConfidence = 0.25
	fallbackTopic      = "Other"
)

// Classifier maps agenda-topic titles to macro topics, one batched LLM call
// at a time. Callers fan batches out across their own workers.
type Classifier struct {
	completer Completer
	store     *Store
	batchSize int
	logger    zerolog.Logger
}

func NewClassifier(completer Completer, store *Store, batchSize int, logger zerolog.Logger) *Classifier {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Classifier{
		completer: completer,
		store:     store,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "topics").Logger(),
	}
}

// ClassifyBatch labels a single pre-sliced batch. Failures degrade to
// fallback labels and are reported, never propagated.
func (c *Classifier) ClassifyBatch(ctx context.Context, titles []string) ([]Classification, bool) {
	return c.classifyBatch(ctx, titles)
}

// BatchSize reports the configured batch size.
func (c *Classifier) BatchSize() int { return c.batchSize }

// classifyBatch issues one request and reconciles the answer against the
// taxonomy. It never returns an error: contract failures produce fallback
// labels for the whole batch.
func (c *Classifier) classifyBatch(ctx context.Context, batch []string) (classifications []Classification, failed bool) {
	taxonomy, err := c.store.Topics(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("taxonomy read failed")
		return fallbackClassifications(nil, len(batch)), true
	}

	raw, err := c.completer.Complete(ctx, buildSystemPrompt(taxonomy), buildUserPrompt(batch))
	if err != nil {
		c.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("classification request failed")
		return fallbackClassifications(taxonomy, len(batch)), true
	}

	items, err := parseBatchResponse(raw, len(batch))
	if err != nil {
		c.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("classification response rejected")
		return fallbackClassifications(taxonomy, len(batch)), true
	}

	known := make(map[string]bool, len(taxonomy))
	for _, t := range taxonomy {
		known[strings.ToLower(t)] = true
	}
	var introduced []string
	for _, item := range items {
		if !known[strings.ToLower(item.MacroTopic)] {
			introduced = append(introduced, item.MacroTopic)
		}
	}
	if len(introduced) > 0 {
		added, err := c.store.Merge(ctx, introduced)
		if err != nil {
			c.logger.Warn().Err(err).Strs("topics", introduced).Msg("taxonomy merge failed")
		} else if len(added) > 0 {
			c.logger.Info().Strs("topics", added).Msg("taxonomy grew")
		}
	}

	return items, false
}

// parseBatchResponse extracts the JSON array, validates it against the batch
// schema, and enforces the one-object-per-title contract.
func parseBatchResponse(raw string, want int) ([]Classification, error) {
	jsonStr, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	items, err := validateBatchPayload([]byte(jsonStr))
	if err != nil {
		return nil, err
	}
	if len(items) != want {
		return nil, fmt.Errorf("expected %d classifications, got %d", want, len(items))
	}
	for i := range items {
		items[i].MacroTopic = strings.TrimSpace(items[i].MacroTopic)
		items[i].SpecificFocus = strings.TrimSpace(items[i].SpecificFocus)
		if items[i].MacroTopic == "" {
			return nil, fmt.Errorf("classification %d has empty macro_topic", i+1)
		}
	}
	return items, nil
}

func fallbackClassifications(taxonomy []string, n int) []Classification {
	macro := fallbackTopic
	if len(taxonomy) > 0 {
		macro = taxonomy[0]
	}
	items := make([]Classification, n)
	for i := range items {
		items[i] = Classification{
			MacroTopic: macro,
			Confidence: fallbackConfidence,
			Reason:     ReasonParseFailed,
		}
	}
	return items
}
