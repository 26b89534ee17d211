package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/kontrata/internal/contract"
)

const sample = "EMPLOYMENT CONTRACT\n\nThis Employment Contract is entered into on February 17, 2026.\n\nARTICLE 1 - PARTIES\n1. Keep *secrets*.\n    a) Admission of new partners\nEMPLOYER: [EMPLOYER]"

func TestMarkdownEscapesContractText(t *testing.T) {
	md := Markdown(sample)
	assert.True(t, strings.HasPrefix(md, "# EMPLOYMENT CONTRACT\n\n"))
	assert.Contains(t, md, "\n## ARTICLE 1 - PARTIES\n\n")
	assert.Contains(t, md, "1\\. Keep \\*secrets\\*.\n")
	assert.Contains(t, md, "&nbsp;&nbsp;&nbsp;&nbsp;a) Admission of new partners\n")
	assert.Contains(t, md, "EMPLOYER: \\[EMPLOYER\\]\n")
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ARTICLE 8 - SPECIAL PROVISIONS", true},
		{"IN WITNESS WHEREOF", true},
		{"EMPLOYER", false},
		{"EMPLOYER: Abc Corp", false},
		{"Start Date: January 1, 2025.", false},
		{"_________________________", false},
	}
	for _, tt := range tests {
		if got := isHeading(tt.in); got != tt.want {
			t.Fatalf("isHeading(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildHTML(t *testing.T) {
	r := NewPDFRenderer("/nonexistent/chrome")
	out, err := r.BuildHTML(contract.Record{
		ID:        "c-1",
		Category:  contract.CategoryEmployment,
		Content:   sample,
		CreatedAt: time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<!doctype html>"))
	assert.Contains(t, out, "<title>Employment Contract</title>")
	assert.Contains(t, out, "Contract ID: c-1 · Generated February 17, 2026")
	assert.Contains(t, out, "<h1>EMPLOYMENT CONTRACT</h1>")
	assert.Contains(t, out, "<h2>ARTICLE 1 - PARTIES</h2>")
	assert.Contains(t, out, "1. Keep *secrets*.")
	assert.Contains(t, out, "[EMPLOYER]")
	assert.NotContains(t, out, "<ol>")
	assert.NotContains(t, out, "<em>")
	assert.NotContains(t, out, "<pre>")
}
