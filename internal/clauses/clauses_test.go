package clauses

import (
	"context"
	"strings"
	"testing"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/llm"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want InputKind
	}{
		{"none", Exit},
		{"  Skip ", Exit},
		{"That’s all", Exit},
		{"done.", Exit},
		{"Add a non-disclosure agreement", Request},
		{"non-compete", Request},
		{"The employee may work remotely on Fridays subject to prior approval of the manager.", Custom},
		{"none of the employee's duties may be delegated", Custom},
		{"Standard dress code applies", Custom},
		{"Meetings follow the agenda set by the calendar owner", Custom},
		{"Add an NDA", Request},
		{"The tenant address carries no liability for the landlord at any time", Custom},
	}
	for _, tt := range tests {
		if got := Parse(tt.in); got != tt.want {
			t.Fatalf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestIsRequestLongMessageNeedsRequestWord(t *testing.T) {
	assert.False(t, IsRequest("the parties agree that arbitration in Makati City shall settle every dispute"))
	assert.True(t, IsRequest("please include arbitration in Makati City for every dispute between the parties"))
}

func TestCleanDisclaimerPreamble(t *testing.T) {
	in := "I can't provide legal advice, but here's a clause: NON-DISCLOSURE AGREEMENT\n1. ..."
	got := Clean(in)
	assert.True(t, strings.HasPrefix(got, "NON-DISCLOSURE AGREEMENT"), got)
}

func TestCleanSeeksTitleLine(t *testing.T) {
	in := "Sure thing\nhappy to help\nNON-COMPETE CLAUSE\n1. The Employee shall not compete."
	assert.Equal(t, "NON-COMPETE CLAUSE\n1. The Employee shall not compete.", Clean(in))
}

func TestCleanDropsDisclaimerLines(t *testing.T) {
	in := "CONFIDENTIALITY CLAUSE\nPlease note this is not legal advice.\n1. Each party shall keep information secret."
	assert.Equal(t, "CONFIDENTIALITY CLAUSE\n1. Each party shall keep information secret.", Clean(in))
}

func TestCleanNeverEmpty(t *testing.T) {
	in := "  Here's the text: ok  "
	assert.Equal(t, "Here's the text: ok", Clean(in))
}

type fakeCompleter struct {
	available bool
	reply     string
	prompt    llm.Request
}

func (f *fakeCompleter) Available() bool { return f.available }

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, bool) {
	f.prompt = req
	return f.reply, f.reply != ""
}

func TestDraftUsesCompletionAndCleans(t *testing.T) {
	fc := &fakeCompleter{available: true, reply: "Below is a draft:\nNON-COMPETE CLAUSE\n1. For one year after separation..."}
	got := NewDrafter(fc).Draft(context.Background(), "add a non-compete clause", contract.CategoryEmployment)
	assert.Equal(t, "NON-COMPETE CLAUSE\n1. For one year after separation...", got)
	assert.Equal(t, 600, fc.prompt.MaxTokens)
	assert.Contains(t, fc.prompt.Prompt, "add a non-compete clause clause for a employment contract")
}

func TestDraftFallsBackToRequest(t *testing.T) {
	assert.Equal(t, "add an nda", NewDrafter(nil).Draft(context.Background(), " add an nda ", contract.CategoryLease))
	fc := &fakeCompleter{available: true}
	assert.Equal(t, "add an nda", NewDrafter(fc).Draft(context.Background(), "add an nda", contract.CategoryLease))
}
