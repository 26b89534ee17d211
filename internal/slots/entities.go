package slots

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/llm"
	"github.com/joelkehle/kontrata/internal/schema"
)

const (
	LabelPerson = "PERSON"
	LabelMoney  = "MONEY"
	LabelDate   = "DATE"
)

type Entity struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Tagger finds named entities in text, in order of appearance.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]Entity, error)
}

type entityStrategy struct {
	tagger Tagger
}

func (s *entityStrategy) Name() string { return "entities" }

func (s *entityStrategy) Extract(ctx context.Context, req Request) (contract.Details, error) {
	ents, err := s.tagger.Tag(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	return AssignEntities(ents, req.Fields, req.Have), nil
}

var reNonAmount = regexp.MustCompile(`[^\d.]`)

// AssignEntities gives each entity to the first field of the matching kind
// that is neither in have nor already assigned.
func AssignEntities(ents []Entity, fields []schema.Field, have contract.Details) contract.Details {
	byKind := map[schema.FieldKind][]string{}
	for _, f := range fields {
		k := schema.KindOf(f.Name)
		switch k {
		case schema.KindName, schema.KindMoney, schema.KindDate:
			byKind[k] = append(byKind[k], f.Name)
		}
	}
	out := contract.Details{}
	assign := func(kind schema.FieldKind, value string) {
		if value == "" {
			return
		}
		for _, name := range byKind[kind] {
			_, had := have[name]
			if _, ok := out[name]; !ok && !had {
				out[name] = contract.Text(value)
				return
			}
		}
	}
	for _, e := range ents {
		switch e.Label {
		case LabelPerson:
			assign(schema.KindName, strings.TrimSpace(e.Text))
		case LabelMoney:
			assign(schema.KindMoney, strings.Trim(reNonAmount.ReplaceAllString(e.Text, ""), "."))
		case LabelDate:
			assign(schema.KindDate, strings.TrimSpace(e.Text))
		}
	}
	return out
}

var (
	reMoneyEntity  = regexp.MustCompile(`(?i)(?:(?:₱|\$|\bphp|\busd)\s*\d[\d,]*(?:\.\d+)?|\b\d[\d,]*(?:\.\d+)?\s*(?:pesos|php)\b)`)
	reDateEntity   = regexp.MustCompile(`(?i)\b(?:(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})\b`)
	rePersonEntity = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Atty|Engr)\.?\s+((?:[A-Z][a-z]+)(?:\s+(?:de|dela|del|delos|[A-Z][a-z]+))*)`)
)

// PatternTagger is a regex tagger for amounts, calendar dates and people
// introduced with an honorific.
type PatternTagger struct{}

func (PatternTagger) Tag(_ context.Context, text string) ([]Entity, error) {
	type hit struct {
		at int
		e  Entity
	}
	var hits []hit
	for _, loc := range reMoneyEntity.FindAllStringIndex(text, -1) {
		hits = append(hits, hit{loc[0], Entity{Label: LabelMoney, Text: text[loc[0]:loc[1]]}})
	}
	for _, loc := range reDateEntity.FindAllStringIndex(text, -1) {
		hits = append(hits, hit{loc[0], Entity{Label: LabelDate, Text: text[loc[0]:loc[1]]}})
	}
	for _, m := range rePersonEntity.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, hit{m[0], Entity{Label: LabelPerson, Text: text[m[2]:m[3]]}})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at < hits[j].at })
	out := make([]Entity, len(hits))
	for i, h := range hits {
		out[i] = h.e
	}
	return out, nil
}

const taggerSystemPrompt = `You are a named-entity tagger. Return ONLY a JSON array of objects with "label" and "text" keys, in order of appearance. Labels: PERSON, MONEY, DATE, ORG. Return [] when nothing is found.`

// CompletionTagger asks the completion service for entities.
type CompletionTagger struct {
	Completer llm.Completer
}

func (t CompletionTagger) Tag(ctx context.Context, text string) ([]Entity, error) {
	if t.Completer == nil || !t.Completer.Available() {
		return nil, nil
	}
	reply, ok := t.Completer.Complete(ctx, llm.Request{
		System:    taggerSystemPrompt,
		Prompt:    "Text: " + text,
		MaxTokens: 300,
	})
	if !ok {
		return nil, nil
	}
	blob, ok := llm.EmbeddedJSON(reply, '[', ']')
	if !ok {
		return nil, fmt.Errorf("no json array in tagger reply")
	}
	var ents []Entity
	if err := json.Unmarshal([]byte(blob), &ents); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	for i := range ents {
		ents[i].Label = strings.ToUpper(strings.TrimSpace(ents[i].Label))
	}
	return ents, nil
}
