package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/dialogue"
	"github.com/joelkehle/kontrata/internal/records"
)

// SQLiteStore holds sessions and contract records in one database file.
// Every write goes straight to the database; nothing is cached in memory.
type SQLiteStore struct {
	db  *sqlx.DB
	mu  sync.Mutex
	now func() time.Time
}

// SessionTable is the dialogue.SessionStore view of a SQLiteStore.
type SessionTable struct{ s *SQLiteStore }

// RecordTable is the records.Store view of a SQLiteStore.
type RecordTable struct{ s *SQLiteStore }

var (
	_ dialogue.SessionStore = SessionTable{}
	_ records.Store         = RecordTable{}
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id               TEXT PRIMARY KEY,
	created_at               TEXT NOT NULL,
	updated_at               TEXT NOT NULL,
	contract_type            TEXT NOT NULL DEFAULT '',
	details                  TEXT NOT NULL DEFAULT '{}',
	filled_fields            TEXT NOT NULL DEFAULT '[]',
	missing_fields           TEXT NOT NULL DEFAULT '[]',
	special_clauses          TEXT NOT NULL DEFAULT '[]',
	messages                 TEXT NOT NULL DEFAULT '[]',
	awaiting_details         INTEGER NOT NULL DEFAULT 0,
	asked_special_clauses    INTEGER NOT NULL DEFAULT 0,
	awaiting_special_clauses INTEGER NOT NULL DEFAULT 0,
	last_contract_id         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS contracts (
	contract_id      TEXT PRIMARY KEY,
	contract_type    TEXT NOT NULL,
	content          TEXT NOT NULL DEFAULT '',
	details          TEXT NOT NULL DEFAULT '{}',
	original_details TEXT NOT NULL DEFAULT '{}',
	special_clauses  TEXT NOT NULL DEFAULT '[]',
	validation       TEXT NOT NULL DEFAULT '{}',
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS contracts_created_at ON contracts (created_at);
`

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Sessions() SessionTable { return SessionTable{s: s} }

func (s *SQLiteStore) Records() RecordTable { return RecordTable{s: s} }

// --- sessions ---

type sessionRow struct {
	SessionID              string `db:"session_id"`
	CreatedAt              string `db:"created_at"`
	UpdatedAt              string `db:"updated_at"`
	ContractType           string `db:"contract_type"`
	Details                string `db:"details"`
	FilledFields           string `db:"filled_fields"`
	MissingFields          string `db:"missing_fields"`
	SpecialClauses         string `db:"special_clauses"`
	Messages               string `db:"messages"`
	AwaitingDetails        int    `db:"awaiting_details"`
	AskedSpecialClauses    int    `db:"asked_special_clauses"`
	AwaitingSpecialClauses int    `db:"awaiting_special_clauses"`
	LastContractID         string `db:"last_contract_id"`
}

func (r sessionRow) session() *dialogue.Session {
	created, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
	sess := dialogue.NewSession(r.SessionID, created)
	sess.Category = contract.Category(r.ContractType)
	_ = json.Unmarshal([]byte(r.Details), &sess.Details)
	_ = json.Unmarshal([]byte(r.FilledFields), &sess.Filled)
	_ = json.Unmarshal([]byte(r.MissingFields), &sess.Missing)
	_ = json.Unmarshal([]byte(r.SpecialClauses), &sess.SpecialClauses)
	_ = json.Unmarshal([]byte(r.Messages), &sess.Messages)
	if sess.Details == nil {
		sess.Details = contract.Details{}
	}
	sess.AwaitingDetails = r.AwaitingDetails != 0
	sess.AskedSpecialClauses = r.AskedSpecialClauses != 0
	sess.AwaitingSpecialClauses = r.AwaitingSpecialClauses != 0
	sess.LastRecordID = r.LastContractID
	return sess
}

func (t SessionTable) Get(ctx context.Context, id string) (*dialogue.Session, error) {
	var row sessionRow
	err := t.s.db.GetContext(ctx, &row, "SELECT * FROM sessions WHERE session_id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dialogue.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return row.session(), nil
}

func (t SessionTable) GetOrCreate(ctx context.Context, id string) (*dialogue.Session, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	sess, err := t.Get(ctx, id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, dialogue.ErrSessionNotFound) {
		return nil, err
	}
	sess = dialogue.NewSession(id, t.s.now().UTC())
	if err := t.s.saveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (t SessionTable) Update(ctx context.Context, sess *dialogue.Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session id is required")
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.saveSession(ctx, sess)
}

func (t SessionTable) Clear(ctx context.Context, id string) error {
	_, err := t.s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", id)
	return err
}

func (s *SQLiteStore) saveSession(ctx context.Context, sess *dialogue.Session) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO sessions (session_id, created_at, updated_at, contract_type, details,
		filled_fields, missing_fields, special_clauses, messages, awaiting_details, asked_special_clauses,
		awaiting_special_clauses, last_contract_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		timeToString(sess.CreatedAt),
		timeToString(s.now()),
		string(sess.Category),
		marshalJSON(sess.Details, "{}"),
		marshalJSON(sess.Filled, "[]"),
		marshalJSON(sess.Missing, "[]"),
		marshalJSON(sess.SpecialClauses, "[]"),
		marshalJSON(sess.Messages, "[]"),
		boolToInt(sess.AwaitingDetails),
		boolToInt(sess.AskedSpecialClauses),
		boolToInt(sess.AwaitingSpecialClauses),
		sess.LastRecordID,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// --- contract records ---

type contractRow struct {
	ContractID      string `db:"contract_id"`
	ContractType    string `db:"contract_type"`
	Content         string `db:"content"`
	Details         string `db:"details"`
	OriginalDetails string `db:"original_details"`
	SpecialClauses  string `db:"special_clauses"`
	Validation      string `db:"validation"`
	CreatedAt       string `db:"created_at"`
}

func (r contractRow) record() contract.Record {
	rec := contract.Record{
		ID:              r.ContractID,
		Category:        contract.Category(r.ContractType),
		Content:         r.Content,
		Details:         contract.Details{},
		OriginalDetails: contract.Details{},
		SpecialClauses:  []string{},
		Validation:      contract.NewOutcome(),
	}
	_ = json.Unmarshal([]byte(r.Details), &rec.Details)
	_ = json.Unmarshal([]byte(r.OriginalDetails), &rec.OriginalDetails)
	_ = json.Unmarshal([]byte(r.SpecialClauses), &rec.SpecialClauses)
	_ = json.Unmarshal([]byte(r.Validation), &rec.Validation)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	return rec
}

func (t RecordTable) Put(ctx context.Context, rec contract.Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	_, err := t.s.db.ExecContext(ctx, `INSERT OR REPLACE INTO contracts (contract_id, contract_type, content, details,
		original_details, special_clauses, validation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		string(rec.Category),
		rec.Content,
		marshalJSON(rec.Details, "{}"),
		marshalJSON(rec.OriginalDetails, "{}"),
		marshalJSON(rec.SpecialClauses, "[]"),
		marshalJSON(rec.Validation, "{}"),
		timeToString(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save contract: %w", err)
	}
	return nil
}

func (t RecordTable) Get(ctx context.Context, id string) (contract.Record, error) {
	var row contractRow
	err := t.s.db.GetContext(ctx, &row, "SELECT * FROM contracts WHERE contract_id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return contract.Record{}, records.ErrNotFound
	}
	if err != nil {
		return contract.Record{}, fmt.Errorf("load contract: %w", err)
	}
	return row.record(), nil
}

func (t RecordTable) List(ctx context.Context) ([]contract.Record, error) {
	var rows []contractRow
	if err := t.s.db.SelectContext(ctx, &rows, "SELECT * FROM contracts ORDER BY created_at DESC, contract_id"); err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	out := make([]contract.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

// --- persist helpers ---

func timeToString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func marshalJSON(v any, empty string) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return empty
	}
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
