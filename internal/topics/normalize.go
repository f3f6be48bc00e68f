package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"hemicycle.dev/plenary/internal/llm"
)

// LabelCount pairs a macro-topic label with how many speeches carry it.
type LabelCount struct {
	Label string
	Count int
}

// MergeRule collapses variant labels into one canonical label.
type MergeRule struct {
	Canonical string   `json:"canonical"`
	Variants  []string `json:"variants"`
}

// Normalizer asks the LLM for merge rules over the distinct macro-topic
// labels and persists the accepted set.
type Normalizer struct {
	completer Completer
	rulesPath string
	logger    zerolog.Logger
}

func NewNormalizer(completer Completer, rulesPath string, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		completer: completer,
		rulesPath: rulesPath,
		logger:    logger.With().Str("component", "topics").Logger(),
	}
}

// ProposeRules requests merge rules for the given labels, filters them, and
// persists the accepted set to the rules file.
func (n *Normalizer) ProposeRules(ctx context.Context, labels []LabelCount) ([]MergeRule, error) {
	if len(labels) < 2 {
		return nil, nil
	}

	raw, err := n.completer.Complete(ctx, normalizePromptHeader, buildNormalizePrompt(labels))
	if err != nil {
		return nil, fmt.Errorf("merge rule request: %w", err)
	}

	proposed, err := parseMergeRules(raw)
	if err != nil {
		return nil, fmt.Errorf("merge rule response: %w", err)
	}

	rules := FilterRules(proposed)
	n.logger.Info().
		Int("proposed", len(proposed)).
		Int("accepted", len(rules)).
		Msg("merge rules filtered")

	if err := SaveRules(n.rulesPath, rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func parseMergeRules(raw string) ([]MergeRule, error) {
	rules, err := llm.ParseJSONResponse[[]MergeRule](raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal merge rules: %w", err)
	}
	return rules, nil
}

// FilterRules drops unusable rules: qualified canonicals such as "X (alt)" or
// "X (other)", rules that change nothing, and variants already claimed by an
// earlier rule.
func FilterRules(rules []MergeRule) []MergeRule {
	claimed := make(map[string]bool)
	accepted := make([]MergeRule, 0, len(rules))

	for _, rule := range rules {
		canonical := strings.TrimSpace(rule.Canonical)
		if canonical == "" || hasRejectedSuffix(canonical) {
			continue
		}

		var variants []string
		for _, v := range rule.Variants {
			variant := strings.TrimSpace(v)
			if variant == "" || variant == canonical {
				continue
			}
			if claimed[variant] {
				continue
			}
			claimed[variant] = true
			variants = append(variants, variant)
		}
		if len(variants) == 0 {
			continue
		}
		accepted = append(accepted, MergeRule{Canonical: canonical, Variants: variants})
	}
	return accepted
}

func hasRejectedSuffix(canonical string) bool {
	lower := strings.ToLower(canonical)
	return strings.HasSuffix(lower, "(alt)") || strings.HasSuffix(lower, "(other)")
}

// SaveRules writes the rule set to disk, replacing any previous set.
func SaveRules(path string, rules []MergeRule) error {
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("encode merge rules: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".rules-*")
	if err != nil {
		return fmt.Errorf("create temp rules file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp rules file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp rules file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace rules file: %w", err)
	}
	return nil
}

// LoadRules reads a previously persisted rule set. A missing file yields an
// empty set.
func LoadRules(path string) ([]MergeRule, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules []MergeRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode rules file %s: %w", path, err)
	}
	return rules, nil
}
