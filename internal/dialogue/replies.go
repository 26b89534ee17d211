package dialogue

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/joelkehle/kontrata/internal/contract"
)

const (
	greetingReply = "Hello! I'm KontrataPH, your Philippine contract assistant. I can help you:\n\n• Generate law-compliant contracts\n• Analyze existing contracts\n• Answer questions about Philippine contract law\n\nWhat would you like to do?"

	outOfScopeReply = "I'm KontrataPH, your contract assistant. I can help with:\n\n• Generating contracts (Employment, Partnership, Lease, Buy & Sell)\n• Analyzing contracts\n• Answering questions about Philippine contract law\n\nWhat would you like help with?"

	askCategoryReply = "What type of contract do you need?\n\n• Employment (includes labor contracts)\n• Partnership\n• Lease\n• Buy and Sell"

	analysisHowToReply = "I can analyze your contract! Please either:\n\n1. Upload a file, OR\n2. Paste the contract text after 'analyze this contract:'\n\nExample: analyze this contract: [paste contract text here]"

	analysisDoneReply = "Contract analysis complete! Check the panel for details."

	unknownReply = "I can help you generate contracts, analyze contracts, or answer questions about Philippine law. What would you like to do?"

	errorReply = "I encountered an error. Please try again."

	generationFailedReply = "I couldn't generate the contract just now. Your details are saved, so send any message to try again."

	clauseInvitation = "All required information collected!\n\n" +
		"Would you like to add any special clauses?\n\n" +
		"Examples:\n" +
		"  • 'Add a non-disclosure agreement'\n" +
		"  • 'Include a non-compete clause'\n" +
		"  • 'Add confidentiality terms'\n" +
		"  • Or type your own custom clause\n\n" +
		"I can generate standard clauses for you, or you can provide your own text.\n" +
		"Type 'none' or 'skip' to continue without special clauses."
)

const previewRunes = 200

func titles(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = contract.FieldTitle(f)
	}
	return out
}

func progressReply(c contract.Category, filled, missing []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Great! I'm collecting details for your %s contract.\n\n", c.Title())
	if len(filled) > 0 {
		fmt.Fprintf(&sb, "I have: %s\n\n", strings.Join(titles(filled), ", "))
	}
	sb.WriteString("I still need:\n")
	for i, f := range titles(missing) {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("  • " + f)
	}
	return sb.String()
}

func clauseAddedReply(clause string, n int, generated bool) string {
	var sb strings.Builder
	if generated {
		fmt.Fprintf(&sb, "Generated and added special clause #%d\n\n", n)
		preview := clause
		if utf8.RuneCountInString(clause) > previewRunes {
			preview = string([]rune(clause)[:previewRunes]) + "..."
		}
		fmt.Fprintf(&sb, "Preview:\n%s\n\n", preview)
	} else {
		fmt.Fprintf(&sb, "Added custom clause #%d\n\n", n)
	}
	fmt.Fprintf(&sb, "Total clauses: %d\n\n", n)
	sb.WriteString("Add more clauses, or type 'done' to finish.")
	return sb.String()
}

func validationReply(o contract.Outcome) string {
	var sb strings.Builder
	sb.WriteString("Validation errors:\n")
	for i, e := range o.Errors {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("• " + e)
	}
	sb.WriteString("\n\nPlease send the missing or corrected details.")
	return sb.String()
}

func generatedReply(rec contract.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your %s contract has been generated!\n\n", rec.Category.Title())
	fmt.Fprintf(&sb, "Contract ID: %s\n", rec.ID)
	if n := len(rec.SpecialClauses); n > 0 {
		fmt.Fprintf(&sb, "\nIncluded %d special clause(s)\n", n)
	}
	if len(rec.Validation.AppliedDefault) > 0 {
		sb.WriteString("\nApplied defaults:\n")
		sb.WriteString(bullets(rec.Validation.AppliedDefault))
	}
	if len(rec.Validation.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		sb.WriteString(bullets(rec.Validation.Warnings))
	}
	sb.WriteString("\n\nNeed another contract? Just ask!")
	return sb.String()
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "  • " + it
	}
	return strings.Join(lines, "\n")
}
