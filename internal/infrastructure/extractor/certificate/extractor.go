package certificate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/strategy"
)

const component = "field_extractor"

// Rule describes how one field is found. Labels drive the structural lookup,
// Patterns are tried in order against the flattened text and must capture the
// value in their first group. Normalize validates and canonicalises a
// candidate; a false result makes the cascade move on.
type Rule struct {
	Field     string
	Labels    []string
	Patterns  []*regexp.Regexp
	Normalize func(string) (string, bool)
}

type Extractor struct {
	rules    []Rule
	logger   *slog.Logger
	recorder strategy.Recorder
}

func NewExtractor(logger *slog.Logger, recorder strategy.Recorder) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = strategy.NopRecorder{}
	}
	return &Extractor{
		rules:    DefaultRules(),
		logger:   logger,
		recorder: recorder,
	}
}

// WithRules replaces the field rules, mostly for tests.
func (e *Extractor) WithRules(rules []Rule) *Extractor {
	e.rules = rules
	return e
}

func (e *Extractor) Extract(view ports.RenderedView) (record domain.CertificateRecord) {
	if view == nil {
		return record
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("field_extraction_panic", "panic", fmt.Sprint(r))
		}
	}()

	ctx := context.Background()
	for _, rule := range e.rules {
		res, ok := strategy.First(ctx, e.cascade(view, rule))
		if !ok {
			e.logger.Debug("field_missing", "field", rule.Field, "tried", res.Tried)
			continue
		}
		record.Set(rule.Field, res.Value)
		e.recorder.RecordStrategy(component, rule.Field+":"+res.Strategy)
		e.logger.Debug("field_extracted", "field", rule.Field, "strategy", res.Strategy)
	}
	return record
}

func (e *Extractor) cascade(view ports.RenderedView, rule Rule) []strategy.Strategy[string] {
	normalize := rule.Normalize
	if normalize == nil {
		normalize = normalizeText
	}

	chain := make([]strategy.Strategy[string], 0, len(rule.Patterns)+1)
	if len(rule.Labels) > 0 {
		chain = append(chain, strategy.Named("structural", func(context.Context) (string, bool) {
			raw, ok := view.LabeledValue(rule.Labels...)
			if !ok {
				return "", false
			}
			return normalize(raw)
		}))
	}
	for i, pattern := range rule.Patterns {
		chain = append(chain, strategy.Named(fmt.Sprintf("pattern_%d", i+1), func(context.Context) (string, bool) {
			for _, m := range pattern.FindAllStringSubmatch(view.Text(), -1) {
				if len(m) < 2 {
					continue
				}
				if value, ok := normalize(m[1]); ok {
					return value, true
				}
			}
			return "", false
		}))
	}
	return chain
}
