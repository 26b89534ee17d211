package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/kontrata/internal/clauses"
	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/intent"
	"github.com/joelkehle/kontrata/internal/llm"
	"github.com/joelkehle/kontrata/internal/records"
	"github.com/joelkehle/kontrata/internal/render"
	"github.com/joelkehle/kontrata/internal/rules"
	"github.com/joelkehle/kontrata/internal/schema"
	"github.com/joelkehle/kontrata/internal/slots"
)

const employmentDetails = "Employer: ABC Corp, Employee: John Doe, Position: Engineer, Salary: 50000, Start Date: January 1 2025"

type fakeCompleter struct {
	reply string
}

func (f *fakeCompleter) Available() bool { return true }

func (f *fakeCompleter) Complete(context.Context, llm.Request) (string, bool) {
	return f.reply, f.reply != ""
}

type flakyRenderer struct {
	failures int
	next     Renderer
}

func (r *flakyRenderer) Render(in render.Input) (string, error) {
	if r.failures > 0 {
		r.failures--
		return "", errors.New("template exploded")
	}
	return r.next.Render(in)
}

type testEnv struct {
	tracker *Tracker
	records *records.MemoryStore
	ids     int
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	book, err := rules.Builtin()
	require.NoError(t, err)
	renderer, err := render.New(nil)
	require.NoError(t, err)

	env := &testEnv{records: records.NewMemoryStore(0)}
	cfg := Config{
		Resolver:  schema.NewResolver(),
		Book:      book,
		Extractor: slots.NewExtractor(nil, nil),
		Renderer:  renderer,
		Records:   env.records,
		Now:       func() time.Time { return time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC) },
		NewID: func() string {
			env.ids++
			return fmt.Sprintf("c-%04d", env.ids)
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	env.tracker, err = NewTracker(cfg)
	require.NoError(t, err)
	return env
}

func (e *testEnv) say(t *testing.T, session, text string) Response {
	t.Helper()
	resp, err := e.tracker.ProcessMessage(context.Background(), text, session)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) session(t *testing.T, id string) *Session {
	t.Helper()
	s, err := e.tracker.Session(context.Background(), id)
	require.NoError(t, err)
	return s
}

func TestEndToEndEmployment(t *testing.T) {
	env := newTestEnv(t, nil)

	first := env.say(t, "s1", "employment contract")
	assert.Equal(t, intent.CreateContract, first.Intent)
	assert.Equal(t, contract.CategoryEmployment, first.Category)
	assert.Equal(t, StateCollectingDetails, first.State)
	assert.Equal(t, []string{"employer_name", "employee_name", "position", "salary", "start_date"}, first.Missing)
	assert.True(t, strings.HasPrefix(first.Text, "Great! I'm collecting details for your Employment contract.\n\nI still need:\n  • Employer Name\n  • Employee Name"))

	second := env.say(t, "s1", employmentDetails)
	assert.Equal(t, StateCollectingSpecialClauses, second.State)
	assert.True(t, second.AwaitingSpecialClauses)
	assert.Empty(t, second.Missing)
	assert.True(t, strings.HasPrefix(second.Text, "All required information collected!"))

	third := env.say(t, "s1", "skip")
	require.True(t, third.Success, third.Text)
	assert.Equal(t, StateGenerated, third.State)
	assert.Equal(t, "c-0001", third.ContractID)
	assert.Contains(t, third.Text, "Your Employment contract has been generated!\n\nContract ID: c-0001\n")
	assert.Contains(t, third.Text, "Applied defaults:\n  • Employment Type: Regular")

	rec, err := env.tracker.Contract(context.Background(), "c-0001")
	require.NoError(t, err)
	assert.Equal(t, contract.CategoryEmployment, rec.Category)
	assert.Equal(t, "50,000", rec.Details.Get("salary"))
	assert.True(t, strings.HasPrefix(rec.Details.Get("start_date"), "January"))
	assert.Equal(t, "50000", rec.OriginalDetails.Get("salary"))
	assert.Empty(t, rec.SpecialClauses)
	assert.True(t, rec.Validation.Valid)
	assert.Contains(t, rec.Content, "2.1 Basic Salary: PHP 50,000 per month")
	assert.Contains(t, rec.Content, "GOVERNING LAW: Labor Code of the Philippines (PD 442)")

	sess := env.session(t, "s1")
	assert.Equal(t, StateIdle, sess.State())
	assert.Empty(t, sess.Category)
	assert.Empty(t, sess.Details)
	assert.Equal(t, "c-0001", sess.LastRecordID)
	assert.Len(t, sess.Messages, 6)
	assert.Equal(t, RoleAssistant, sess.Messages[5].Role)
}

func TestSchemaContainment(t *testing.T) {
	env := newTestEnv(t, nil)
	required := schema.NewResolver().Required(contract.CategoryLease)

	for _, turn := range []string{
		"I need a lease contract",
		"Lessor: maria santos, Tenant: pedro cruz",
		"Monthly rent: 15000, Lease term: 2 years",
		"Property address: 12 rizal street, quezon city",
	} {
		resp := env.say(t, "lease", turn)
		sess := env.session(t, "lease")
		union := append(append([]string{}, sess.Filled...), sess.Missing...)
		sort.Strings(union)
		want := append([]string{}, required...)
		sort.Strings(want)
		assert.Equal(t, want, union, "turn %q", turn)
		for _, f := range sess.Filled {
			assert.NotContains(t, sess.Missing, f)
		}
		assert.Equal(t, sess.Missing, resp.Missing)
	}
	assert.Equal(t, []string{"property_description"}, env.session(t, "lease").Missing)
}

func TestPartnershipNamesStayAList(t *testing.T) {
	env := newTestEnv(t, nil)
	env.say(t, "p", "partnership contract")
	env.say(t, "p", "Partner Names: Mark Joseph and Jaedan Bahala")

	v := env.session(t, "p").Details["partner_names"]
	require.True(t, v.IsList())
	assert.Equal(t, []string{"Mark Joseph", "Jaedan Bahala"}, v.List)
}

func TestIdleIntents(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		in     string
		intent intent.Label
		prefix string
	}{
		{"hello", intent.Greeting, "Hello! I'm KontrataPH"},
		{"tell me a joke", intent.OutOfScope, "I'm KontrataPH, your contract assistant."},
		{"I need a contract", intent.CreateContract, "What type of contract do you need?"},
		{"analyze this contract", intent.AnalyzeContract, "I can analyze your contract!"},
		{"analyze this contract: hello", intent.AnalyzeContract, "This doesn't appear to be a contract document."},
		{"what is the minimum wage?", intent.Question, "Based on Philippine law:"},
		{"together with the salary", intent.Unknown, "I can help you generate contracts"},
	}
	for _, tt := range tests {
		resp := env.say(t, "idle", tt.in)
		if resp.Intent != tt.intent || !strings.HasPrefix(resp.Text, tt.prefix) {
			t.Fatalf("%q -> intent %s text %q, want %s %q", tt.in, resp.Intent, resp.Text, tt.intent, tt.prefix)
		}
		assert.Equal(t, StateIdle, resp.State, tt.in)
	}
}

func TestGreetingMidFlowIsProvidingInfo(t *testing.T) {
	env := newTestEnv(t, nil)
	env.say(t, "g", "employment contract")
	resp := env.say(t, "g", "hi")
	assert.Equal(t, intent.CreateContract, resp.Intent)
	assert.Equal(t, StateCollectingDetails, resp.State)
	assert.Equal(t, contract.CategoryEmployment, env.session(t, "g").Category)
}

func TestQuestionMidFlowKeepsState(t *testing.T) {
	env := newTestEnv(t, nil)
	env.say(t, "q", "employment contract")
	env.say(t, "q", "Employer: ABC Corp")

	resp := env.say(t, "q", "What is the minimum salary?")
	assert.Equal(t, intent.Question, resp.Intent)
	assert.Contains(t, resp.Text, "Salary: Minimum 5000")
	assert.Contains(t, resp.Text, "I still need:\n  • Employee Name")

	sess := env.session(t, "q")
	assert.Equal(t, StateCollectingDetails, sess.State())
	assert.Equal(t, "Abc Corp", sess.Details.Get("employer_name"))
}

func TestRestartMidFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.say(t, "r", "employment contract")
	env.say(t, "r", "Employer: ABC Corp, Position: Lease Manager")
	assert.Equal(t, contract.CategoryEmployment, env.session(t, "r").Category, "a category word inside a value is not a restart")
	assert.Equal(t, "Lease Manager", env.session(t, "r").Details.Get("position"))

	resp := env.say(t, "r", "Actually I need a new lease contract instead")
	assert.Equal(t, contract.CategoryLease, resp.Category)
	sess := env.session(t, "r")
	assert.Equal(t, contract.CategoryLease, sess.Category)
	assert.Empty(t, sess.Details.Get("employer_name"))
	assert.Contains(t, resp.Text, "your Lease contract")

	resp = env.say(t, "r", "Make it a buy and sell agreement")
	assert.Equal(t, contract.CategoryBuySell, resp.Category, "a different category with a contract noun restarts")
}

func TestLabelledValuesNeverRestart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.say(t, "lv", "I need a lease contract")
	env.say(t, "lv", "Lessor: maria santos, Tenant: pedro cruz")

	resp := env.say(t, "lv", "Property Address: 5 New Street Makati, Rental Amount: 10000, Lease Period: 1 year")
	assert.Equal(t, contract.CategoryLease, resp.Category)
	assert.Equal(t, []string{"property_description"}, resp.Missing)

	sess := env.session(t, "lv")
	assert.Equal(t, "Maria Santos", sess.Details.Get("lessor_name"))
	assert.Equal(t, "Pedro Cruz", sess.Details.Get("lessee_name"))
	assert.Equal(t, "10000", sess.Details.Get("rental_amount"))
}

func TestClauseStepNeverRestarts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.say(t, "cs", "employment contract")
	env.say(t, "cs", employmentDetails)

	text := "I want a non-compete agreement so no partner can leave the business"
	require.Equal(t, contract.CategoryPartnership, intent.NewClassifier().Classify(text).Category)
	resp := env.say(t, "cs", text)
	assert.True(t, resp.AwaitingSpecialClauses)

	sess := env.session(t, "cs")
	assert.Equal(t, contract.CategoryEmployment, sess.Category)
	assert.Equal(t, "John Doe", sess.Details.Get("employee_name"))
	assert.Equal(t, []string{text}, sess.SpecialClauses)
}

func TestQuestionMidFlowKeepsLabelledValues(t *testing.T) {
	env := newTestEnv(t, nil)
	env.say(t, "ql", "employment contract")

	resp := env.say(t, "ql", "Employer: ABC Corp, Salary: 50000, is that above the minimum wage?")
	assert.Equal(t, intent.Question, resp.Intent)
	assert.Equal(t, []string{"employee_name", "position", "start_date"}, resp.Missing)
	assert.Contains(t, resp.Text, "I still need:\n  • Employee Name")

	sess := env.session(t, "ql")
	assert.Equal(t, "Abc Corp", sess.Details.Get("employer_name"))
	assert.Equal(t, "50000", sess.Details.Get("salary"))
	assert.Equal(t, StateCollectingDetails, sess.State())
}

func TestQuestionCompletingDetailsOpensClauses(t *testing.T) {
	env := newTestEnv(t, nil)
	env.say(t, "qc", "employment contract")

	resp := env.say(t, "qc", employmentDetails+", is that enough?")
	assert.Equal(t, intent.Question, resp.Intent)
	assert.True(t, resp.AwaitingSpecialClauses)
	assert.Empty(t, resp.Missing)
	assert.Equal(t, StateCollectingSpecialClauses, env.session(t, "qc").State())
}

func TestValidationFailureKeepsDetails(t *testing.T) {
	env := newTestEnv(t, nil)
	env.say(t, "v", "employment contract")
	env.say(t, "v", strings.Replace(employmentDetails, "50000", "1000", 1))

	resp := env.say(t, "v", "none")
	assert.False(t, resp.Success)
	assert.Equal(t, StateCollectingDetails, resp.State)
	require.NotNil(t, resp.Validation)
	assert.Equal(t, []string{"Salary: Below minimum of 5000"}, resp.Validation.Errors)
	assert.True(t, strings.HasPrefix(resp.Text, "Validation errors:\n• Salary: Below minimum of 5000"))

	sess := env.session(t, "v")
	assert.Equal(t, contract.CategoryEmployment, sess.Category)
	assert.Equal(t, "1000", sess.Details.Get("salary"))
	assert.Equal(t, "John Doe", sess.Details.Get("employee_name"))
	assert.Equal(t, 0, env.records.Count())

	resp = env.say(t, "v", "Salary: 20000")
	require.True(t, resp.Success, resp.Text)
	rec, err := env.tracker.Contract(context.Background(), resp.ContractID)
	require.NoError(t, err)
	assert.Equal(t, "20,000", rec.Details.Get("salary"))
}

func TestPendingRuleFieldIsCollectedAfterValidationError(t *testing.T) {
	book := rules.NewBook(rules.RuleSet{
		Key:             "employment",
		ContractType:    "EMPLOYMENT",
		RequiredClauses: []rules.Clause{{Name: "probation_terms", Mandatory: true}},
	})
	env := newTestEnv(t, func(c *Config) { c.Book = book })
	env.say(t, "p", "employment contract")
	env.say(t, "p", employmentDetails)

	resp := env.say(t, "p", "skip")
	require.NotNil(t, resp.Validation)
	assert.Equal(t, []string{"Missing required: Probation Terms"}, resp.Validation.Errors)

	resp = env.say(t, "p", "Probation Terms: six months")
	require.True(t, resp.Success, resp.Text)
	rec, err := env.tracker.Contract(context.Background(), resp.ContractID)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Details.Get("probation_terms"))
}

func TestSpecialClauseFlow(t *testing.T) {
	drafter := clauses.NewDrafter(&fakeCompleter{reply: "I can't provide legal advice, but here's a clause: NON-COMPETE CLAUSE\n1. The Employee shall not work for a competitor."})
	env := newTestEnv(t, func(c *Config) { c.Drafter = drafter })
	env.say(t, "c", "employment contract")
	env.say(t, "c", employmentDetails)

	gen := env.say(t, "c", "Add a non-compete clause")
	assert.True(t, gen.AwaitingSpecialClauses)
	assert.True(t, strings.HasPrefix(gen.Text, "Generated and added special clause #1\n\nPreview:\nNON-COMPETE CLAUSE"))
	assert.Contains(t, gen.Text, "Total clauses: 1")

	custom := env.say(t, "c", "Employees may work remotely on Fridays.")
	assert.True(t, strings.HasPrefix(custom.Text, "Added custom clause #2\n\nTotal clauses: 2"))
	assert.Equal(t, StateCollectingSpecialClauses, custom.State)

	done := env.say(t, "c", "done")
	require.True(t, done.Success, done.Text)
	assert.Contains(t, done.Text, "Included 2 special clause(s)")

	rec, err := env.tracker.Contract(context.Background(), done.ContractID)
	require.NoError(t, err)
	require.Len(t, rec.SpecialClauses, 2)
	assert.True(t, strings.HasPrefix(rec.SpecialClauses[0], "NON-COMPETE CLAUSE"))
	assert.Equal(t, "Employees may work remotely on Fridays.", rec.SpecialClauses[1])
	assert.Contains(t, rec.Content, "8.2 Employees may work remotely on Fridays.")
}

func TestGenerationFailureIsRecoverable(t *testing.T) {
	renderer, err := render.New(nil)
	require.NoError(t, err)
	flaky := &flakyRenderer{failures: 1, next: renderer}
	env := newTestEnv(t, func(c *Config) { c.Renderer = flaky })
	env.say(t, "f", "employment contract")
	env.say(t, "f", employmentDetails)

	failed := env.say(t, "f", "skip")
	assert.False(t, failed.Success)
	assert.Contains(t, failed.Error, "render: template exploded")
	sess := env.session(t, "f")
	assert.Equal(t, contract.CategoryEmployment, sess.Category)
	assert.Equal(t, "Abc Corp", sess.Details.Get("employer_name"))

	retry := env.say(t, "f", "retry")
	require.True(t, retry.Success, retry.Text)
}

func TestDefaultRecordIDsAreFullUUIDs(t *testing.T) {
	renderer, err := render.New(nil)
	require.NoError(t, err)
	tr, err := NewTracker(Config{Extractor: slots.NewExtractor(nil, nil), Renderer: renderer})
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		rec, err := tr.GenerateContract(context.Background(), contract.CategoryLease, nil, nil, "")
		require.NoError(t, err)
		_, err = uuid.Parse(rec.ID)
		require.NoError(t, err, rec.ID)
		require.False(t, seen[rec.ID])
		seen[rec.ID] = true
	}
	all, err := tr.Contracts(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestGenerateContractDirect(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.say(t, "d", "employment contract")

	rec, err := env.tracker.GenerateContract(ctx, contract.Category("lease"), contract.Details{
		"lessor_name":   contract.Text("maria santos"),
		"rental_amount": contract.Text("PHP 15000"),
	}, []string{"No pets.", "  "}, "d")
	require.NoError(t, err)
	assert.Equal(t, contract.CategoryLease, rec.Category)
	assert.Equal(t, "Maria Santos", rec.Details.Get("lessor_name"))
	assert.Equal(t, "15,000", rec.Details.Get("rental_amount"))
	assert.Equal(t, []string{"No pets."}, rec.SpecialClauses)
	assert.Equal(t, StateIdle, env.session(t, "d").State())

	_, err = env.tracker.GenerateContract(ctx, contract.CategoryEmployment, contract.Details{"salary": contract.Text("100")}, nil, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Salary: Below minimum of 5000"}, verr.Outcome.Errors)

	_, err = env.tracker.GenerateContract(ctx, contract.Category("NDA"), nil, nil, "")
	assert.Error(t, err)
}

func TestSessionsAreIndependent(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.NewID = nil })
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i)
			for _, turn := range []string{"employment contract", employmentDetails, "skip"} {
				if _, err := env.tracker.ProcessMessage(context.Background(), turn, id); err != nil {
					t.Errorf("session %s: %v", id, err)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, env.records.Count())
}

func TestKeyedMutexReleasesLocks(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	unlock()
	unlock = k.Lock("a")
	unlock()
	assert.Empty(t, k.locks)
}
