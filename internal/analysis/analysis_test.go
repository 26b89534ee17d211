package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/llm"
	"github.com/joelkehle/kontrata/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const employmentText = `EMPLOYMENT AGREEMENT

This agreement is made between Abc Corp and John Doe, hereby referred to as the parties.

The employee shall receive a salary of PHP 50,000 every month, paid on the fifteenth and the last day.

Work hours are eight hours a day, Monday to Friday. Thirteenth month pay shall be given in December.

Employment type is regular. Termination grounds are limited to just or authorized causes under the Labor Code.

Any dispute shall be settled in the courts of Quezon City under Philippine governing law, and each party undertakes to act in good faith.`

type fakeCompleter struct {
	calls int
}

func (f *fakeCompleter) Available() bool { return true }

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, bool) {
	f.calls++
	if strings.Contains(req.System, "unfair") {
		return `Here you go: [{"severity":"medium","category":"Unfair Term","description":"Termination is one-sided","recommendation":"Allow both parties to terminate"}]`, true
	}
	return "Plain summary.", true
}

func builtin(t *testing.T) *rules.Book {
	t.Helper()
	b, err := rules.Builtin()
	require.NoError(t, err)
	return b
}

func TestLooksLikeContract(t *testing.T) {
	assert.True(t, LooksLikeContract(employmentText))
	assert.False(t, LooksLikeContract("This agreement between the parties is hereby short."))
	assert.False(t, LooksLikeContract(strings.Repeat("lorem ipsum ", 60)))
}

func TestPastedText(t *testing.T) {
	text, ok := PastedText("analyze this contract: THE AGREEMENT")
	assert.True(t, ok)
	assert.Equal(t, "THE AGREEMENT", text)

	_, ok = PastedText("analyze this contract")
	assert.False(t, ok)

	_, ok = PastedText("analyze this contract:   ")
	assert.False(t, ok)

	long := "analyze " + strings.Repeat("x", 600)
	text, ok = PastedText(long)
	assert.True(t, ok)
	assert.Equal(t, long, text)
}

func TestSegment(t *testing.T) {
	sections := Segment(employmentText)
	names := make([]string, 0, len(sections))
	for _, s := range sections {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"preamble", "parties", "compensation", "term", "dispute"}, names)
	assert.Equal(t, "EMPLOYMENT AGREEMENT", sections[0].Content)
	assert.Contains(t, sections[2].Content, "Thirteenth month pay", "paragraphs without a header join the open section")
}

func TestCheckCompliance(t *testing.T) {
	book := rules.NewBook(rules.RuleSet{Key: "lease", RequiredClauses: []rules.Clause{
		{Name: "security_deposit", Mandatory: true, Description: "Security deposit terms"},
		{Name: "repairs", Mandatory: false},
		{Name: "termination_notice", Mandatory: true},
	}})
	sections := []Section{{Name: "term", Content: "The security deposit is two months."}}

	got := CheckCompliance(book, sections, contract.CategoryLease)
	assert.False(t, got.Compliant)
	assert.Equal(t, 90, got.Score)
	assert.Equal(t, []string{"Missing required clause: termination_notice"}, got.Violations)

	unknown := CheckCompliance(book, sections, contract.CategoryBuySell)
	assert.True(t, unknown.Compliant)
	assert.Equal(t, 100, unknown.Score)
	assert.Equal(t, []string{"No specific law file for this contract type"}, unknown.Warnings)
}

func TestScoreRisks(t *testing.T) {
	tests := []struct {
		n     int
		level RiskLevel
		score float64
	}{
		{0, RiskLow, 0},
		{2, RiskLow, 0.3},
		{3, RiskMedium, 0.45},
		{5, RiskHigh, 0.75},
		{9, RiskHigh, 1},
	}
	for _, tt := range tests {
		got := ScoreRisks(make([]Risk, tt.n))
		if got.Level != tt.level || got.Total != tt.n {
			t.Fatalf("ScoreRisks(%d) = %+v, want level %s", tt.n, got, tt.level)
		}
		assert.InDelta(t, tt.score, got.Score, 1e-9)
	}
}

func TestAnalyzeWithoutCompleter(t *testing.T) {
	a := NewAnalyzer(builtin(t), nil)
	a.newID = func() string { return "abc12345" }

	report, err := a.Analyze(context.Background(), employmentText, "")
	require.NoError(t, err)
	assert.Equal(t, "abc12345", report.ID)
	assert.Equal(t, contract.CategoryEmployment, report.Category)
	assert.True(t, report.Compliance.Compliant)
	assert.Equal(t, 100, report.Compliance.Score)
	assert.Equal(t, RiskLow, report.Risks.Level)
	assert.Empty(t, report.Summaries)
	assert.True(t, strings.HasPrefix(report.Summary.Executive, "## Employment Contract Analysis\n\n**Overall: This contract looks good!**"))
	assert.Contains(t, report.Summary.Executive, "### Legal Compliance: 100%")
	assert.Contains(t, report.Summary.Executive, "### No significant risks detected")
	assert.NotContains(t, report.Summary.Executive, "### Recommendation")
}

func TestAnalyzeWithCompleter(t *testing.T) {
	fc := &fakeCompleter{}
	report, err := NewAnalyzer(builtin(t), fc).Analyze(context.Background(), employmentText, contract.CategoryEmployment)
	require.NoError(t, err)

	assert.Len(t, report.Summaries, 4, "preamble is too short to summarize")
	assert.Equal(t, "Plain summary.", report.Summaries["parties"])
	assert.Contains(t, report.Summary.KeyPoints, "**Parties**: Plain summary.")
	require.Len(t, report.Risks.Risks, 1)
	assert.Equal(t, "Termination is one-sided", report.Risks.Risks[0].Description)
	assert.Equal(t, 5, fc.calls)
	assert.Contains(t, report.Summary.Executive, "**[MEDIUM]** Termination is one-sided\n→ *Allow both parties to terminate*")
}

func TestAnalyzeMissingClausesIsRisky(t *testing.T) {
	text := strings.Replace(employmentText, "Thirteenth month pay shall be given in December.", "Bonuses are discretionary.", 1)
	text = strings.Replace(text, "Termination grounds are", "Dismissal is", 1)
	report, err := NewAnalyzer(builtin(t), nil).Analyze(context.Background(), text, "")
	require.NoError(t, err)
	assert.Equal(t, 80, report.Compliance.Score)
	assert.Len(t, report.Risks.Risks, 2)
	assert.Equal(t, "high", report.Risks.Risks[0].Severity)
	assert.Contains(t, report.Summary.Executive, "**Missing required clauses:**\n- Missing required clause: Rank-and-file")
	assert.Contains(t, report.Summary.Executive, "### Recommendation")
}

func TestAnalyzeRejectsNonContract(t *testing.T) {
	_, err := NewAnalyzer(nil, nil).Analyze(context.Background(), "hello there", "")
	assert.ErrorIs(t, err, ErrNotContract)
}
