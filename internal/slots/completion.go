package slots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/llm"
	"github.com/joelkehle/kontrata/internal/schema"
)

const extractionSystemPrompt = `You are extracting contract information from a user's message.

Contract type: %s

Expected fields:
%s

Extract ONLY information that is EXPLICITLY mentioned. Return as JSON.
Use exact field names from the list above.

SPECIAL RULES:
- For "partner_names": ALWAYS return as array ["Name 1", "Name 2"]
- For fields with multiple values separated by "and", "," or similar, return as array

Example:
If user says "Partner Names: Mark Joseph and Jaedan Bahala"
Return: {"partner_names": ["Mark Joseph", "Jaedan Bahala"]}

If user says "Employer: ABC Corp, Employee: John Doe, Salary: 50000"
Return: {"employer_name": "ABC Corp", "employee_name": "John Doe", "salary": "50000"}

IMPORTANT:
- Only include fields that are present in the message
- Use exact values from the message
- Capitalize names properly
- For money, extract just the number
- For dates, keep the format from message
`

var errNoObject = errors.New("no json object in completion")

var sentinels = map[string]bool{"": true, "...": true, "n/a": true, "null": true, "none": true}

var reAndSeparator = regexp.MustCompile(`(?i)\s+and\s+`)

type completionStrategy struct {
	completer llm.Completer
}

func (s *completionStrategy) Name() string { return "completion" }

func (s *completionStrategy) Extract(ctx context.Context, req Request) (contract.Details, error) {
	if !s.completer.Available() {
		return nil, nil
	}
	lines := make([]string, 0, len(req.Fields))
	for _, f := range req.Fields {
		lines = append(lines, "- "+f.Name)
	}
	reply, ok := s.completer.Complete(ctx, llm.Request{
		System:      fmt.Sprintf(extractionSystemPrompt, string(req.Category), strings.Join(lines, "\n")),
		Prompt:      fmt.Sprintf("User message: %q\n\nExtract information as JSON with only the fields present in the message:", req.Text),
		MaxTokens:   400,
		Temperature: 0.1,
	})
	if !ok {
		return nil, nil
	}
	blob, ok := llm.EmbeddedJSON(reply, '{', '}')
	if !ok {
		return nil, errNoObject
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}

	out := contract.Details{}
	for _, f := range req.Fields {
		rv, present := raw[f.Name]
		if !present {
			continue
		}
		v, err := contract.FromAny(rv)
		if err != nil {
			continue
		}
		v = dropSentinels(v)
		if v.IsUnset() {
			continue
		}
		if schema.KindOf(f.Name) == schema.KindParties && !v.IsList() {
			v = contract.List(splitParties(v.Text)...)
		}
		out[f.Name] = v
	}
	return out, nil
}

func dropSentinels(v contract.Value) contract.Value {
	if v.IsList() {
		var keep []string
		for _, item := range v.List {
			if !sentinels[strings.ToLower(strings.TrimSpace(item))] {
				keep = append(keep, strings.TrimSpace(item))
			}
		}
		if len(keep) == 0 {
			return contract.Unset
		}
		return contract.List(keep...)
	}
	if sentinels[strings.ToLower(strings.TrimSpace(v.Text))] {
		return contract.Unset
	}
	return v
}

// splitParties splits on "and" first, then on commas.
func splitParties(s string) []string {
	var parts []string
	if reAndSeparator.MatchString(s) {
		parts = reAndSeparator.Split(s, -1)
	} else {
		parts = strings.Split(s, ",")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
