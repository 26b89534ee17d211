package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joelkehle/kontrata/internal/analysis"
	"github.com/joelkehle/kontrata/internal/clauses"
	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/fillstate"
	"github.com/joelkehle/kontrata/internal/intent"
	"github.com/joelkehle/kontrata/internal/logging"
	"github.com/joelkehle/kontrata/internal/normalize"
	"github.com/joelkehle/kontrata/internal/records"
	"github.com/joelkehle/kontrata/internal/render"
	"github.com/joelkehle/kontrata/internal/rules"
	"github.com/joelkehle/kontrata/internal/schema"
)

var tracer = otel.Tracer("kontrata/dialogue")

type Classifier interface {
	Classify(text string) intent.Result
}

type Extractor interface {
	Extract(ctx context.Context, text string, category contract.Category, fields []schema.Field) contract.Details
}

type Validator interface {
	Validate(c contract.Category, details contract.Details) contract.Outcome
}

type Drafter interface {
	Draft(ctx context.Context, request string, category contract.Category) string
}

type Advisor interface {
	Answer(ctx context.Context, question string) rules.Answer
}

type Renderer interface {
	Render(in render.Input) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, text string, c contract.Category) (analysis.Report, error)
}

// Archiver receives every finalized record. Failures are logged only.
type Archiver interface {
	Archive(ctx context.Context, rec contract.Record) error
}

// Config wires the tracker. Extractor and Renderer are required; any other
// nil collaborator gets a working default.
type Config struct {
	Resolver   *schema.Resolver
	Book       *rules.Book
	Classifier Classifier
	Extractor  Extractor
	Validator  Validator
	Drafter    Drafter
	Advisor    Advisor
	Renderer   Renderer
	Analyzer   Analyzer
	Archiver   Archiver
	Sessions   SessionStore
	Records    records.Store
	Now        func() time.Time
	NewID      func() string
}

type Tracker struct {
	resolver   *schema.Resolver
	book       *rules.Book
	classifier Classifier
	extractor  Extractor
	validator  Validator
	drafter    Drafter
	advisor    Advisor
	renderer   Renderer
	analyzer   Analyzer
	archiver   Archiver
	sessions   SessionStore
	records    records.Store
	locks      *keyedMutex
	now        func() time.Time
	newID      func() string
}

func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	t := &Tracker{
		resolver:   cfg.Resolver,
		book:       cfg.Book,
		classifier: cfg.Classifier,
		extractor:  cfg.Extractor,
		validator:  cfg.Validator,
		drafter:    cfg.Drafter,
		advisor:    cfg.Advisor,
		renderer:   cfg.Renderer,
		analyzer:   cfg.Analyzer,
		archiver:   cfg.Archiver,
		sessions:   cfg.Sessions,
		records:    cfg.Records,
		locks:      newKeyedMutex(),
		now:        cfg.Now,
		newID:      cfg.NewID,
	}
	if t.resolver == nil {
		t.resolver = schema.NewResolver()
	}
	if t.book == nil {
		t.book = rules.NewBook()
	}
	if t.classifier == nil {
		t.classifier = intent.NewClassifier()
	}
	if t.validator == nil {
		t.validator = rules.NewValidator(t.book)
	}
	if t.drafter == nil {
		t.drafter = clauses.NewDrafter(nil)
	}
	if t.advisor == nil {
		t.advisor = rules.NewAdvisor(t.book, nil)
	}
	if t.analyzer == nil {
		t.analyzer = analysis.NewAnalyzer(t.book, nil)
	}
	if t.sessions == nil {
		t.sessions = NewMemorySessionStore()
	}
	if t.records == nil {
		t.records = records.NewMemoryStore(0)
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.newID == nil {
		t.newID = uuid.NewString
	}
	return t, nil
}

type Response struct {
	SessionID              string            `json:"session_id"`
	Text                   string            `json:"response"`
	Intent                 intent.Label      `json:"intent"`
	Category               contract.Category `json:"contract_type,omitempty"`
	State                  State             `json:"state"`
	Filled                 []string          `json:"filled_fields,omitempty"`
	Missing                []string          `json:"missing_fields,omitempty"`
	RequiresAction         bool              `json:"requires_action,omitempty"`
	AwaitingSpecialClauses bool              `json:"awaiting_special_clauses,omitempty"`
	Validation             *contract.Outcome `json:"validation,omitempty"`
	ContractID             string            `json:"contract_id,omitempty"`
	Success                bool              `json:"success,omitempty"`
	Sources                []string          `json:"sources,omitempty"`
	Analysis               *analysis.Report  `json:"analysis,omitempty"`
	Error                  string            `json:"error,omitempty"`
}

// GenerationError reports which finalization step failed.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// ValidationError is returned by GenerateContract for blocking rule
// violations.
type ValidationError struct {
	Outcome contract.Outcome
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Outcome.Errors, "; ")
}

const (
	StageRender  = "render"
	StageStore   = "store"
	StageSession = "session"
)

// ProcessMessage handles one user turn. Turns for the same session are
// serialized; sessions are independent. An error is returned only when the
// session store fails, together with the generic error reply.
func (t *Tracker) ProcessMessage(ctx context.Context, text, sessionID string) (Response, error) {
	if sessionID == "" {
		sessionID = "default"
	}
	ctx = logging.WithSessionID(ctx, sessionID)
	ctx, span := tracer.Start(ctx, "dialogue.process_message")
	defer span.End()

	unlock := t.locks.Lock(sessionID)
	defer unlock()

	sess, err := t.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session load")
		return Response{SessionID: sessionID, Text: errorReply, Error: err.Error()}, fmt.Errorf("load session: %w", err)
	}
	sess.AddMessage(RoleUser, text, t.now().UTC())

	resp := t.route(ctx, sess, text)
	resp.SessionID = sessionID
	if resp.State == "" {
		resp.State = sess.State()
	}
	if resp.Category == "" {
		resp.Category = sess.Category
	}
	sess.AddMessage(RoleAssistant, resp.Text, t.now().UTC())

	if err := t.sessions.Update(ctx, sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session save")
		return Response{SessionID: sessionID, Text: errorReply, Error: err.Error()}, fmt.Errorf("save session: %w", err)
	}
	span.SetAttributes(
		attribute.String("dialogue.intent", string(resp.Intent)),
		attribute.String("dialogue.state", string(resp.State)),
	)
	logging.Info(ctx, "message_processed", "intent", string(resp.Intent), "state", string(resp.State), "category", string(resp.Category))
	return resp, nil
}

func (t *Tracker) route(ctx context.Context, sess *Session, text string) Response {
	res := t.classifier.Classify(text)
	logging.Debug(ctx, "intent_classified", "intent", string(res.Label), "category", string(res.Category), "confidence", res.Confidence)

	if sess.Active() {
		if next, ok := t.restartCategory(sess, text, res); ok {
			logging.Info(ctx, "flow_restarted", "from", string(sess.Category), "to", string(next))
			sess.ResetFlow(next)
			return t.collect(ctx, sess, text)
		}
		if res.Label == intent.Question && !sess.AwaitingSpecialClauses {
			return t.answerMidFlow(ctx, sess, text)
		}
		return t.continueFlow(ctx, sess, text)
	}

	switch res.Label {
	case intent.OutOfScope:
		return Response{Text: outOfScopeReply, Intent: intent.OutOfScope}
	case intent.Greeting:
		return Response{Text: greetingReply, Intent: intent.Greeting}
	case intent.CreateContract:
		if res.Category == "" {
			return Response{Text: askCategoryReply, Intent: intent.CreateContract, RequiresAction: true}
		}
		sess.ResetFlow(res.Category)
		return t.collect(ctx, sess, text)
	case intent.AnalyzeContract:
		return t.analyze(ctx, text)
	case intent.Question:
		ans := t.advisor.Answer(ctx, text)
		return Response{Text: ans.Text, Intent: intent.Question, Sources: ans.Sources}
	case intent.ProvidingInfo:
		if sess.Category != "" {
			sess.AwaitingDetails = true
			return t.continueFlow(ctx, sess, text)
		}
	}
	return Response{Text: unknownReply, Intent: intent.Unknown}
}

// restartCategory decides whether a create request made mid-flow abandons
// the current contract. Labelled values never count, and clause text is
// never a restart. The user must ask for a new contract ("a new lease
// contract") or request a different category with a generation verb and a
// contract noun.
func (t *Tracker) restartCategory(sess *Session, text string, res intent.Result) (contract.Category, bool) {
	if res.Label != intent.CreateContract || sess.AwaitingSpecialClauses {
		return "", false
	}
	free := intent.Unlabelled(text)
	if free == "" {
		return "", false
	}
	c, named := intent.DetectCategory(free)
	if intent.AsksForNew(free) {
		if !named {
			c = res.Category
		}
		return c, c != ""
	}
	if named && c != sess.Category && intent.RequestsGeneration(free) && intent.MentionsContract(free) {
		return c, true
	}
	return "", false
}

func (t *Tracker) continueFlow(ctx context.Context, sess *Session, text string) Response {
	if sess.AwaitingSpecialClauses {
		return t.clauseTurn(ctx, sess, text)
	}
	return t.collect(ctx, sess, text)
}

// extractionFields adds mandatory rule clauses that have no default to the
// schema so a correction after a validation error can be picked up.
func (t *Tracker) extractionFields(c contract.Category) []schema.Field {
	fields := t.resolver.Fields(c)
	have := make(map[string]bool, len(fields))
	for _, f := range fields {
		have[f.Name] = true
	}
	for _, name := range t.book.PendingFields(c) {
		if !have[name] {
			fields = append(fields, schema.Field{Name: name})
		}
	}
	return fields
}

func (t *Tracker) refresh(sess *Session) {
	sess.Filled, sess.Missing = fillstate.Partition(t.resolver.Required(sess.Category), sess.Details)
}

func (t *Tracker) merge(ctx context.Context, sess *Session, text string) {
	extracted := t.extractor.Extract(ctx, text, sess.Category, t.extractionFields(sess.Category))
	for name, v := range extracted {
		sess.Details[name] = v
	}
	t.refresh(sess)
	logging.Debug(ctx, "details_merged", "extracted", len(extracted), "filled", len(sess.Filled), "missing", len(sess.Missing))
}

func (t *Tracker) collect(ctx context.Context, sess *Session, text string) Response {
	t.merge(ctx, sess, text)

	if len(sess.Missing) > 0 {
		sess.AwaitingDetails = true
		return Response{
			Text:           progressReply(sess.Category, sess.Filled, sess.Missing),
			Intent:         intent.CreateContract,
			Filled:         sess.Filled,
			Missing:        sess.Missing,
			RequiresAction: true,
		}
	}
	if !sess.AskedSpecialClauses {
		sess.AskedSpecialClauses = true
		sess.AwaitingSpecialClauses = true
		sess.AwaitingDetails = false
		return Response{
			Text:                   clauseInvitation,
			Intent:                 intent.CreateContract,
			Filled:                 sess.Filled,
			Missing:                sess.Missing,
			AwaitingSpecialClauses: true,
		}
	}
	return t.finalize(ctx, sess)
}

// answerMidFlow keeps any labelled values in the question turn, then
// answers and points back at the open flow.
func (t *Tracker) answerMidFlow(ctx context.Context, sess *Session, text string) Response {
	t.merge(ctx, sess, text)
	ans := t.advisor.Answer(ctx, text)
	resp := Response{Intent: intent.Question, Sources: ans.Sources, Filled: sess.Filled, Missing: sess.Missing, RequiresAction: true}
	switch {
	case len(sess.Missing) > 0:
		sess.AwaitingDetails = true
		resp.Text = ans.Text + "\n\n" + progressReply(sess.Category, sess.Filled, sess.Missing)
	case !sess.AskedSpecialClauses:
		sess.AskedSpecialClauses = true
		sess.AwaitingSpecialClauses = true
		sess.AwaitingDetails = false
		resp.AwaitingSpecialClauses = true
		resp.Text = ans.Text + "\n\n" + clauseInvitation
	default:
		resp.Text = ans.Text
	}
	return resp
}

func (t *Tracker) clauseTurn(ctx context.Context, sess *Session, text string) Response {
	switch clauses.Parse(text) {
	case clauses.Exit:
		sess.AwaitingSpecialClauses = false
		return t.finalize(ctx, sess)
	case clauses.Request:
		clause := t.drafter.Draft(ctx, text, sess.Category)
		sess.SpecialClauses = append(sess.SpecialClauses, clause)
		return Response{
			Text:                   clauseAddedReply(clause, len(sess.SpecialClauses), true),
			Intent:                 intent.CreateContract,
			AwaitingSpecialClauses: true,
		}
	default:
		clause := strings.TrimSpace(text)
		sess.SpecialClauses = append(sess.SpecialClauses, clause)
		return Response{
			Text:                   clauseAddedReply(clause, len(sess.SpecialClauses), false),
			Intent:                 intent.CreateContract,
			AwaitingSpecialClauses: true,
		}
	}
}

// finalize validates a normalized copy of the session details. Raw details
// stay in the session until a record is stored.
func (t *Tracker) finalize(ctx context.Context, sess *Session) Response {
	ctx, span := tracer.Start(ctx, "dialogue.finalize")
	defer span.End()
	span.SetAttributes(attribute.String("contract.category", string(sess.Category)))

	sess.AwaitingDetails = false
	sess.AwaitingSpecialClauses = false

	details := normalize.Details(sess.Details)
	outcome := t.validator.Validate(sess.Category, details)
	if !outcome.Valid {
		sess.AwaitingDetails = true
		logging.Info(ctx, "validation_failed", "category", string(sess.Category), "errors", len(outcome.Errors))
		return Response{
			Text:           validationReply(outcome),
			Intent:         intent.CreateContract,
			State:          StateCollectingDetails,
			Validation:     &outcome,
			RequiresAction: true,
		}
	}

	rec, err := t.buildRecord(ctx, sess.Category, details, sess.Details, sess.SpecialClauses, outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		logging.Error(ctx, "generation_failed", "category", string(sess.Category), "error", err)
		sess.AwaitingDetails = true
		return Response{Text: generationFailedReply, Intent: intent.CreateContract, Error: err.Error()}
	}

	sess.ResetFlow("")
	sess.LastRecordID = rec.ID
	return Response{
		Text:       generatedReply(rec),
		Intent:     intent.CreateContract,
		Category:   rec.Category,
		State:      StateGenerated,
		Validation: &rec.Validation,
		ContractID: rec.ID,
		Success:    true,
	}
}

func (t *Tracker) buildRecord(ctx context.Context, c contract.Category, details, original contract.Details, special []string, outcome contract.Outcome) (contract.Record, error) {
	lawName := ""
	if set, ok := t.book.Get(c); ok {
		lawName = set.LawName
	}
	clauseList := append([]string{}, special...)
	content, err := t.renderer.Render(render.Input{Category: c, Details: details, Clauses: clauseList, LawName: lawName})
	if err != nil {
		return contract.Record{}, &GenerationError{Stage: StageRender, Err: err}
	}
	rec := contract.Record{
		ID:              t.newID(),
		Category:        c,
		Content:         content,
		Details:         details,
		OriginalDetails: original.Clone(),
		SpecialClauses:  clauseList,
		Validation:      outcome,
		CreatedAt:       t.now().UTC(),
	}
	if err := t.records.Put(ctx, rec); err != nil {
		return contract.Record{}, &GenerationError{Stage: StageStore, Err: err}
	}
	if t.archiver != nil {
		if err := t.archiver.Archive(ctx, rec); err != nil {
			logging.Warn(ctx, "archive_failed", "contract_id", rec.ID, "error", err)
		}
	}
	logging.Info(ctx, "contract_generated", "contract_id", rec.ID, "category", string(c), "clauses", len(clauseList))
	return rec, nil
}

func (t *Tracker) analyze(ctx context.Context, text string) Response {
	pasted, ok := analysis.PastedText(text)
	if !ok {
		return Response{Text: analysisHowToReply, Intent: intent.AnalyzeContract}
	}
	report, err := t.analyzer.Analyze(ctx, pasted, "")
	if errors.Is(err, analysis.ErrNotContract) {
		return Response{Text: analysis.NotContractReply, Intent: intent.AnalyzeContract}
	}
	if err != nil {
		logging.Error(ctx, "analysis_failed", "error", err)
		return Response{Text: errorReply, Intent: intent.AnalyzeContract, Error: err.Error()}
	}
	return Response{Text: analysisDoneReply, Intent: intent.AnalyzeContract, Analysis: &report, Success: true}
}

// GetOrCreateSession returns a copy of the session, creating it if needed.
func (t *Tracker) GetOrCreateSession(ctx context.Context, id string) (*Session, error) {
	unlock := t.locks.Lock(id)
	defer unlock()
	return t.sessions.GetOrCreate(ctx, id)
}

func (t *Tracker) Session(ctx context.Context, id string) (*Session, error) {
	return t.sessions.Get(ctx, id)
}

// GenerateContract finalizes a record directly from supplied details,
// bypassing the conversation. The session, when given, is reset to idle.
func (t *Tracker) GenerateContract(ctx context.Context, c contract.Category, details contract.Details, special []string, sessionID string) (contract.Record, error) {
	ctx, span := tracer.Start(ctx, "dialogue.generate_contract")
	defer span.End()
	if sessionID != "" {
		ctx = logging.WithSessionID(ctx, sessionID)
	}

	parsed, ok := contract.ParseCategory(string(c))
	if !ok {
		return contract.Record{}, fmt.Errorf("unknown contract type: %s", c)
	}
	c = parsed
	if details == nil {
		details = contract.Details{}
	}
	normalized := normalize.Details(details)
	outcome := t.validator.Validate(c, normalized)
	if !outcome.Valid {
		return contract.Record{}, &ValidationError{Outcome: outcome}
	}
	var kept []string
	for _, cl := range special {
		if cl = strings.TrimSpace(cl); cl != "" {
			kept = append(kept, cl)
		}
	}
	rec, err := t.buildRecord(ctx, c, normalized, details, kept, outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return contract.Record{}, err
	}

	if sessionID != "" {
		unlock := t.locks.Lock(sessionID)
		defer unlock()
		sess, err := t.sessions.GetOrCreate(ctx, sessionID)
		if err != nil {
			return rec, &GenerationError{Stage: StageSession, Err: err}
		}
		sess.ResetFlow("")
		sess.LastRecordID = rec.ID
		if err := t.sessions.Update(ctx, sess); err != nil {
			return rec, &GenerationError{Stage: StageSession, Err: err}
		}
	}
	return rec, nil
}

func (t *Tracker) Contract(ctx context.Context, id string) (contract.Record, error) {
	return t.records.Get(ctx, id)
}

func (t *Tracker) Contracts(ctx context.Context) ([]contract.Record, error) {
	return t.records.List(ctx)
}

// Resolver exposes the field schema in use.
func (t *Tracker) Resolver() *schema.Resolver {
	return t.resolver
}
