package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/dialogue"
	"github.com/joelkehle/kontrata/internal/logging"
)

const maxBodyBytes = 1 << 20

type Engine interface {
	ProcessMessage(ctx context.Context, text, sessionID string) (dialogue.Response, error)
	Session(ctx context.Context, id string) (*dialogue.Session, error)
	GenerateContract(ctx context.Context, c contract.Category, details contract.Details, special []string, sessionID string) (contract.Record, error)
	Contract(ctx context.Context, id string) (contract.Record, error)
	Contracts(ctx context.Context) ([]contract.Record, error)
}

type PDFRenderer interface {
	Render(ctx context.Context, rec contract.Record) ([]byte, error)
}

type Options struct {
	// PDF is optional; without it the pdf route answers unavailable.
	PDF          PDFRenderer
	LLMAvailable bool
	LLMProvider  string
}

type Server struct {
	engine Engine
	opts   Options
}

func NewServer(engine Engine, opts Options) http.Handler {
	s := &Server{engine: engine, opts: opts}
	r := mux.NewRouter()
	r.Use(requestContext, recoverer)
	r.HandleFunc("/v1/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}", s.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/v1/contracts", s.handleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/v1/contracts", s.handleListContracts).Methods(http.MethodGet)
	r.HandleFunc("/v1/contracts/{id}", s.handleContract).Methods(http.MethodGet)
	r.HandleFunc("/v1/contracts/{id}/pdf", s.handleContractPDF).Methods(http.MethodGet)
	r.HandleFunc("/v1/health", s.handleHealth).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, newError(CodeNotFound, "no route for "+r.URL.Path))
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	ae := asError(err)
	body := map[string]any{
		"code":    ae.Code,
		"message": ae.Message,
	}
	if len(ae.Details) > 0 {
		body["details"] = ae.Details
	}
	writeJSON(w, ae.Status, map[string]any{"ok": false, "error": body})
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	blob, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(blob) == 0 {
		return nil
	}
	return json.Unmarshal(blob, dst)
}

type chatResponse struct {
	OK bool `json:"ok"`
	dialogue.Response
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, validationError(err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, newError(CodeValidation, "message is required"))
		return
	}
	resp, err := s.engine.ProcessMessage(r.Context(), req.Message, strings.TrimSpace(req.SessionID))
	if err != nil {
		logging.Error(r.Context(), "chat_failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{OK: true, Response: resp})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Session(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session": sess, "state": sess.State()})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContractType   string           `json:"contract_type"`
		Details        contract.Details `json:"details"`
		SpecialClauses []string         `json:"special_clauses"`
		SessionID      string           `json:"session_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, validationError(err))
		return
	}
	c, ok := contract.ParseCategory(req.ContractType)
	if !ok {
		writeError(w, newError(CodeValidation, fmt.Sprintf("unknown contract_type %q", req.ContractType)))
		return
	}
	rec, err := s.engine.GenerateContract(r.Context(), c, req.Details, req.SpecialClauses, strings.TrimSpace(req.SessionID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "contract": rec})
}

type contractSummary struct {
	ID        string            `json:"id"`
	Category  contract.Category `json:"contract_type"`
	Clauses   int               `json:"special_clauses"`
	CreatedAt time.Time         `json:"created_at"`
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	recs, err := s.engine.Contracts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]contractSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, contractSummary{ID: rec.ID, Category: rec.Category, Clauses: len(rec.SpecialClauses), CreatedAt: rec.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "contracts": out})
}

func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.Contract(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, rec.Content)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "contract": rec})
}

func (s *Server) handleContractPDF(w http.ResponseWriter, r *http.Request) {
	if s.opts.PDF == nil {
		writeError(w, newError(CodeUnavailable, "pdf export is not configured"))
		return
	}
	rec, err := s.engine.Contract(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	pdf, err := s.opts.PDF.Render(r.Context(), rec)
	if err != nil {
		logging.Error(r.Context(), "pdf_render_failed", "contract_id", rec.ID, "error", err)
		writeError(w, newError(CodeUnavailable, "pdf render failed: "+err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.pdf"`, rec.Category.Key(), rec.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"status":        "ok",
		"llm_available": s.opts.LLMAvailable,
		"llm_provider":  s.opts.LLMProvider,
	})
}
