package rules

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/llm"
	"github.com/joelkehle/kontrata/internal/schema"
)

type Topic string

const (
	TopicNone        Topic = ""
	TopicMaximum     Topic = "maximum"
	TopicMinimum     Topic = "minimum"
	TopicDuration    Topic = "duration"
	TopicWage        Topic = "wage"
	TopicGround      Topic = "ground"
	TopicTermination Topic = "termination"
)

var topicWords = []struct {
	topic Topic
	words []string
}{
	{TopicMaximum, []string{"max", "maximum", "limit", "ceiling"}},
	{TopicMinimum, []string{"min", "minimum", "floor"}},
	{TopicDuration, []string{"duration", "term", "period", "year", "month"}},
	{TopicWage, []string{"wage", "salary", "pay", "compensation"}},
	{TopicGround, []string{"ground", "basis", "reason", "requirement"}},
	{TopicTermination, []string{"termination", "end", "terminate", "cancel"}},
}

var generalWords = []string{"what", "general", "all"}

// DetectTopic returns the first topic with a word in the question. Plurals
// count; substrings do not, so "terminate" is not read as "term".
func DetectTopic(question string) Topic {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tw := range topicWords {
		for _, w := range words {
			for _, tv := range tw.words {
				if w == tv || w == tv+"s" {
					return tw.topic
				}
			}
		}
	}
	return TopicNone
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type Knowledge struct {
	Topic   Topic    `json:"topic"`
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

func (k Knowledge) Found() bool {
	return strings.TrimSpace(k.Text) != ""
}

// Search collects rule text relevant to a question. A rule set is searched
// when the question names its category, or asks generally.
func (b *Book) Search(question string) Knowledge {
	lower := strings.ToLower(question)
	k := Knowledge{Topic: DetectTopic(question), Sources: []string{}}
	var sb strings.Builder
	seen := map[string]bool{}
	cite := func(set RuleSet) {
		if src := set.Source(); !seen[src] {
			seen[src] = true
			k.Sources = append(k.Sources, src)
		}
	}

	for _, set := range b.Sets() {
		if !mentions(lower, set) && !containsAny(lower, generalWords) {
			continue
		}
		switch k.Topic {
		case TopicMaximum, TopicMinimum, TopicDuration, TopicWage:
			for _, field := range set.ConstraintFields() {
				if line := constraintLine(k.Topic, field, set.Constraints[field]); line != "" {
					sb.WriteString(line)
					cite(set)
				}
			}
		case TopicGround, TopicTermination:
			var lines []string
			for _, cl := range set.RequiredClauses {
				if !cl.Mandatory {
					continue
				}
				if k.Topic == TopicTermination && !strings.Contains(strings.ToLower(cl.Name+" "+cl.Description), "termin") &&
					!strings.Contains(strings.ToLower(cl.Name), "dissolution") {
					continue
				}
				text := cl.Description
				if text == "" {
					text = contract.FieldTitle(cl.Name)
				}
				lines = append(lines, "• "+text+"\n")
				if len(lines) == 5 {
					break
				}
			}
			if len(lines) > 0 {
				fmt.Fprintf(&sb, "\n%s Requirements:\n", contractTitle(set))
				sb.WriteString(strings.Join(lines, ""))
				cite(set)
			}
		}
	}
	k.Text = sb.String()
	return k
}

func mentions(lower string, set RuleSet) bool {
	if set.ContractType != "" && strings.Contains(lower, strings.ToLower(set.ContractType)) {
		return true
	}
	if set.Key != "" && strings.Contains(lower, strings.ReplaceAll(set.Key, "_", " ")) {
		return true
	}
	return set.Key != "" && strings.Contains(lower, set.Key)
}

func contractTitle(set RuleSet) string {
	if c, ok := contract.ParseCategory(set.ContractType); ok {
		return c.Title()
	}
	return contract.FieldTitle(set.Key)
}

func constraintLine(topic Topic, field string, c Constraint) string {
	var sb strings.Builder
	label := contract.FieldTitle(field)
	kind := schema.KindOf(field)
	switch topic {
	case TopicMaximum:
		if c.Max == nil {
			return ""
		}
		fmt.Fprintf(&sb, "• %s: Maximum %s\n", label, formatNumber(*c.Max))
	case TopicMinimum:
		if c.Min == nil {
			return ""
		}
		fmt.Fprintf(&sb, "• %s: Minimum %s\n", label, formatNumber(*c.Min))
	case TopicDuration, TopicWage:
		if topic == TopicDuration && kind != schema.KindDuration {
			return ""
		}
		if topic == TopicWage && kind != schema.KindMoney {
			return ""
		}
		if c.Min != nil {
			fmt.Fprintf(&sb, "• %s: Minimum %s\n", label, formatNumber(*c.Min))
		}
		if c.Max != nil {
			fmt.Fprintf(&sb, "• %s: Maximum %s\n", label, formatNumber(*c.Max))
		}
	}
	if sb.Len() > 0 && c.Description != "" {
		fmt.Fprintf(&sb, "  (%s)\n", c.Description)
	}
	return sb.String()
}

const answerSystemPrompt = `You are a helpful Philippine contract law assistant.
Answer the user's question based on the provided law information.

Guidelines:
- Be clear and concise
- Use simple language for non-experts
- Cite the law source
- If asked for specific numbers (maximum, minimum), provide them clearly
- Explain WHY the law exists (purpose)
`

const notFoundReply = "I couldn't find specific information about that in my Philippine law database. Could you rephrase your question or ask about:\n\n• Employment law requirements\n• Lease duration limits\n• Partnership formation grounds\n• Buy and sell requirements"

type Answer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
	Found   bool     `json:"found"`
}

// Advisor answers legal questions from the rule book.
type Advisor struct {
	book      *Book
	completer llm.Completer
}

func NewAdvisor(book *Book, completer llm.Completer) *Advisor {
	return &Advisor{book: book, completer: completer}
}

func (a *Advisor) Answer(ctx context.Context, question string) Answer {
	k := a.book.Search(question)
	if !k.Found() {
		return Answer{Text: notFoundReply, Sources: []string{}}
	}
	if a.completer != nil && a.completer.Available() {
		prompt := fmt.Sprintf("Question: %s\n\nLaw Information:\n%s\n\nSources: %s\n\nProvide a clear, helpful answer for someone not expert in contracts:",
			question, k.Text, strings.Join(k.Sources, ", "))
		if out, ok := a.completer.Complete(ctx, llm.Request{System: answerSystemPrompt, Prompt: prompt, MaxTokens: 300, Temperature: 0.3}); ok {
			if len(k.Sources) > 0 {
				out += "\n\nLegal basis: " + strings.Join(k.Sources, ", ")
			}
			return Answer{Text: strings.TrimSpace(out), Sources: k.Sources, Found: true}
		}
	}
	text := "Based on Philippine law:\n\n" + strings.TrimSpace(k.Text)
	if len(k.Sources) > 0 {
		text += "\n\nSource: " + strings.Join(k.Sources, ", ")
	}
	return Answer{Text: text, Sources: k.Sources, Found: true}
}
