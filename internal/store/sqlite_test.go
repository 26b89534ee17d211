package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/dialogue"
	"github.com/joelkehle/kontrata/internal/records"
)

func newTestSQLiteStore(t *testing.T, dbPath string) *SQLiteStore {
	t.Helper()
	now := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	s.now = func() time.Time { return now }
	return s
}

func TestSQLiteSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "roundtrip.db")

	s1 := newTestSQLiteStore(t, dbPath)
	sess, err := s1.Sessions().GetOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	sess.ResetFlow(contract.CategoryPartnership)
	sess.Details["partner_names"] = contract.List("Mark Joseph", "Jaedan Bahala")
	sess.Details["business_name"] = contract.Text("Kape Co")
	sess.Missing = []string{"business_address"}
	sess.AddMessage(dialogue.RoleUser, "partnership contract", time.Date(2026, 2, 17, 1, 0, 0, 0, time.UTC))
	if err := s1.Sessions().Update(ctx, sess); err != nil {
		t.Fatalf("update: %v", err)
	}
	s1.Close()

	// Reopen and verify data survived.
	s2 := newTestSQLiteStore(t, dbPath)
	defer s2.Close()
	got, err := s2.Sessions().Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Category != contract.CategoryPartnership || !got.AwaitingDetails {
		t.Fatalf("unexpected flow state: %+v", got)
	}
	partners := got.Details["partner_names"]
	if !partners.IsList() || len(partners.List) != 2 || partners.List[1] != "Jaedan Bahala" {
		t.Fatalf("partner list not preserved: %+v", partners)
	}
	if got.Details.Get("business_name") != "Kape Co" {
		t.Fatalf("business_name = %q", got.Details.Get("business_name"))
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != dialogue.RoleUser {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if len(got.Missing) != 1 || got.Missing[0] != "business_address" {
		t.Fatalf("missing = %v", got.Missing)
	}
	if !got.CreatedAt.Equal(time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_at = %v", got.CreatedAt)
	}
}

func TestSQLiteSessionGetOrCreateIsStable(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "sessions.db"))
	defer s.Close()

	if _, err := s.Sessions().Get(ctx, "missing"); !errors.Is(err, dialogue.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	a, err := s.Sessions().GetOrCreate(ctx, "x")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a.AddMessage(dialogue.RoleUser, "hi", time.Now())
	if err := s.Sessions().Update(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}
	b, err := s.Sessions().GetOrCreate(ctx, "x")
	if err != nil {
		t.Fatalf("get existing: %v", err)
	}
	if len(b.Messages) != 1 {
		t.Fatalf("expected existing session, got %+v", b)
	}
	if err := s.Sessions().Clear(ctx, "x"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := s.Sessions().Get(ctx, "x"); !errors.Is(err, dialogue.ErrSessionNotFound) {
		t.Fatalf("expected cleared session, got %v", err)
	}
}

func TestSQLiteRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "records.db"))
	defer s.Close()
	recs := s.Records()

	older := contract.Record{
		ID:             "c-1",
		Category:       contract.CategoryEmployment,
		Content:        "EMPLOYMENT CONTRACT",
		Details:        contract.Details{"salary": contract.Text("50,000")},
		SpecialClauses: []string{},
		Validation:     contract.NewOutcome(),
		CreatedAt:      time.Date(2026, 2, 17, 1, 0, 0, 0, time.UTC),
	}
	newer := older
	newer.ID = "c-2"
	newer.Category = contract.CategoryLease
	newer.SpecialClauses = []string{"No pets."}
	newer.Validation.Warnings = []string{"Rental Amount: Above maximum of 100000"}
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	for _, rec := range []contract.Record{older, newer} {
		if err := recs.Put(ctx, rec); err != nil {
			t.Fatalf("put %s: %v", rec.ID, err)
		}
	}

	got, err := recs.Get(ctx, "c-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Category != contract.CategoryLease || len(got.SpecialClauses) != 1 || got.Validation.Warnings[0] == "" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Details.Get("salary") != "50,000" {
		t.Fatalf("salary = %q", got.Details.Get("salary"))
	}

	list, err := recs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c-2" || list[1].ID != "c-1" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	if _, err := recs.Get(ctx, "nope"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := recs.Put(ctx, contract.Record{}); err == nil {
		t.Fatal("expected error for record without id")
	}
}
