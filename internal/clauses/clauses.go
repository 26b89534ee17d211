package clauses

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/llm"
)

type InputKind int

const (
	// Custom text is appended verbatim.
	Custom InputKind = iota
	// Exit ends clause collection.
	Exit
	// Request asks for a standard clause to be drafted.
	Request
)

func (k InputKind) String() string {
	switch k {
	case Exit:
		return "exit"
	case Request:
		return "request"
	default:
		return "custom"
	}
}

var exitPhrases = map[string]bool{
	"none": true, "skip": true, "no": true, "nothing": true,
	"i don't have any": true, "i don't have": true, "no thanks": true,
	"done": true, "finish": true, "finished": true, "complete": true,
	"that's all": true, "that's it": true,
}

var (
	reClauseKeyword = wordPattern(
		"non-disclosure", "nda", "confidentiality", "non-compete",
		"non-solicitation", "intellectual property", "ip rights",
		"termination clause", "penalty clause", "arbitration",
		"force majeure", "warranty", "indemnity", "liability",
	)
	reRequestWord = wordPattern("add", "include", "want", "need", "put in")
)

// wordPattern matches any of the phrases as whole words, so "nda" is not
// found in "standard".
func wordPattern(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Parse decides what a reply in the clause-collection state means. Only the
// whole message counts as an exit phrase, so "none" inside a longer clause
// stays clause text.
func Parse(text string) InputKind {
	if IsExit(text) {
		return Exit
	}
	if IsRequest(text) {
		return Request
	}
	return Custom
}

func IsExit(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	lower = strings.ReplaceAll(lower, "’", "'")
	lower = strings.TrimRight(lower, ".!")
	return exitPhrases[lower]
}

// IsRequest reports a named clause type together with a request word, or a
// short message of at most six words naming one.
func IsRequest(text string) bool {
	if !reClauseKeyword.MatchString(text) {
		return false
	}
	return reRequestWord.MatchString(text) || len(strings.Fields(text)) <= 6
}

const draftSystemPrompt = `You are a Philippine contract law expert. Generate ONLY the clause text.

CRITICAL RULES:
- Start directly with the clause title (e.g., "NON-DISCLOSURE AGREEMENT")
- NO preamble, NO "Here's a clause", NO disclaimers
- NO "I can't provide legal advice" or similar text
- Just the pure legal clause text
- Use proper Philippine contract formatting

Contract type: %s`

const draftPrompt = `Generate a complete %s clause for a %s contract.

Output ONLY the clause text, starting with the clause title. No introduction, no explanation.

Example format:
NON-DISCLOSURE AGREEMENT

1. Definition of Confidential Information...
2. Obligations...

Now generate the clause:`

type Drafter struct {
	completer llm.Completer
}

func NewDrafter(completer llm.Completer) *Drafter {
	return &Drafter{completer: completer}
}

// Draft returns cleaned clause text, or the request itself when the
// completion service gives nothing back.
func (d *Drafter) Draft(ctx context.Context, request string, category contract.Category) string {
	request = strings.TrimSpace(request)
	if d == nil || d.completer == nil || !d.completer.Available() {
		return request
	}
	out, ok := d.completer.Complete(ctx, llm.Request{
		System:      fmt.Sprintf(draftSystemPrompt, string(category)),
		Prompt:      fmt.Sprintf(draftPrompt, request, strings.ToLower(category.Title())),
		MaxTokens:   600,
		Temperature: 0.7,
	})
	if !ok {
		return request
	}
	return strings.TrimSpace(Clean(out))
}

var (
	preambleCutoffs = []*regexp.Regexp{
		regexp.MustCompile(`(?is)^.*?I can[’']t provide legal advice.*?(?:clause|agreement|provision):\s*`),
		regexp.MustCompile(`(?is)^.*?Here[’']s a sample.*?(?:clause|agreement|provision):\s*`),
		regexp.MustCompile(`(?is)^.*?Here[’']s the.*?:\s*`),
		regexp.MustCompile(`(?is)^.*?Below is.*?:\s*`),
	}
	disclaimerLines = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^.*?I can.*?advice.*?\n`),
		regexp.MustCompile(`(?im)^.*?sample.*?clause.*?\n`),
		regexp.MustCompile(`(?im)^.*?Please.*?note.*?\n`),
		regexp.MustCompile(`(?im)^.*?Disclaimer.*?\n`),
	}
	reNumberedLine = regexp.MustCompile(`^\d+\.`)
	reTitleSuffix  = regexp.MustCompile(`(AGREEMENT|CLAUSE|PROVISION)$`)
)

const minCleanLength = 20

// Clean strips lead-in and disclaimer text from drafted clause output and
// starts it at the first title-like line. If too little survives, the
// original text is returned trimmed.
func Clean(text string) string {
	clause := text
	for _, re := range preambleCutoffs {
		if cut := re.ReplaceAllString(clause, ""); len(cut) < len(clause) {
			clause = cut
			break
		}
	}

	lines := strings.Split(clause, "\n")
	for i, line := range lines {
		if isTitleLine(strings.TrimSpace(line)) {
			if i > 0 {
				clause = strings.Join(lines[i:], "\n")
			}
			break
		}
	}

	for _, re := range disclaimerLines {
		clause = re.ReplaceAllString(clause, "")
	}
	clause = strings.TrimSpace(clause)
	if len(clause) < minCleanLength {
		slog.Warn("clause_cleanup_fallback", "chars", len(clause))
		return strings.TrimSpace(text)
	}
	return clause
}

func isTitleLine(line string) bool {
	if line == "" {
		return false
	}
	if len(line) > 5 && isUpper(line) {
		return true
	}
	return reNumberedLine.MatchString(line) || reTitleSuffix.MatchString(line)
}

// isUpper is true when s has at least one letter and no lowercase letters.
func isUpper(s string) bool {
	return strings.ToUpper(s) == s && strings.ToLower(s) != s
}
