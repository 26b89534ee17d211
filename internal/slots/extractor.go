package slots

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/fillstate"
	"github.com/joelkehle/kontrata/internal/llm"
	"github.com/joelkehle/kontrata/internal/schema"
)

type Request struct {
	Text     string
	Category contract.Category
	Fields   []schema.Field
	// Have holds what earlier strategies already found this turn.
	Have     contract.Details
}

func (r Request) has(name string) bool {
	for _, f := range r.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Strategy is one independent way of reading fields out of an utterance.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, req Request) (contract.Details, error)
}

// Extractor runs its strategies in priority order. A field set by an
// earlier strategy is never overwritten by a later one.
type Extractor struct {
	strategies []Strategy
}

// NewExtractor wires the default cascade: completion service, label
// patterns, then the entity tagger. Either collaborator may be nil.
func NewExtractor(completer llm.Completer, tagger Tagger) *Extractor {
	var strategies []Strategy
	if completer != nil {
		strategies = append(strategies, &completionStrategy{completer: completer})
	}
	strategies = append(strategies, patternStrategy{})
	if tagger != nil {
		strategies = append(strategies, &entityStrategy{tagger: tagger})
	}
	return &Extractor{strategies: strategies}
}

func NewExtractorWithStrategies(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: append([]Strategy(nil), strategies...)}
}

// Extract never fails. Strategies that error or panic contribute nothing.
func (e *Extractor) Extract(ctx context.Context, text string, category contract.Category, fields []schema.Field) contract.Details {
	out := contract.Details{}
	req := Request{Text: text, Category: category, Fields: fields, Have: out}

	if category == contract.CategoryPartnership && req.has("partner_names") {
		if names := PartnerNames(text); len(names) > 0 {
			out["partner_names"] = contract.List(names...)
		}
	}

	for _, s := range e.strategies {
		got, err := runStrategy(ctx, s, req)
		if err != nil {
			slog.Warn("extraction_strategy_failed", "strategy", s.Name(), "category", string(category), "error", err)
			continue
		}
		for name, v := range got {
			if _, taken := out[name]; taken {
				continue
			}
			if !req.has(name) || !fillstate.IsFilled(v) {
				continue
			}
			out[name] = v
		}
	}
	return out
}

func runStrategy(ctx context.Context, s Strategy, req Request) (got contract.Details, err error) {
	defer func() {
		if r := recover(); r != nil {
			got, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Extract(ctx, req)
}
