package llm

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Request struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Caller is a concrete completion backend.
type Caller interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Pinger is implemented by callers that can check reachability up front.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Completer is what the engine consumes.
type Completer interface {
	Available() bool
	Complete(ctx context.Context, req Request) (string, bool)
}

// Service adds the availability flag and per-call timeout to a Caller.
type Service struct {
	caller    Caller
	timeout   time.Duration
	maxTokens int
	available bool
}

const DefaultTimeout = 60 * time.Second

// NewService pings the caller once. A nil caller yields an unavailable
// service; there is no re-check after startup.
func NewService(ctx context.Context, caller Caller, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Service{caller: caller, timeout: timeout}
	if caller == nil {
		return s
	}
	s.available = true
	if p, ok := caller.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("completion_unavailable", "error", err)
			s.available = false
		}
	}
	return s
}

// LimitTokens caps the per-call token budget. Zero means no cap.
func (s *Service) LimitTokens(n int) {
	if n >= 0 {
		s.maxTokens = n
	}
}

func (s *Service) Available() bool {
	return s != nil && s.available
}

func (s *Service) Complete(ctx context.Context, req Request) (string, bool) {
	if !s.Available() {
		return "", false
	}
	if s.maxTokens > 0 && (req.MaxTokens <= 0 || req.MaxTokens > s.maxTokens) {
		req.MaxTokens = s.maxTokens
	}
	ctx, span := otel.Tracer("kontrata/llm").Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(attribute.Int("llm.max_tokens", req.MaxTokens))

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	out, err := s.caller.Complete(callCtx, req)
	if err != nil {
		class := classifyTransportError(err)
		slog.Warn("completion_failed", "class", class.String(), "elapsed_ms", time.Since(start).Milliseconds(), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, class.String())
		return "", false
	}
	out = strings.TrimSpace(out)
	if out == "" {
		slog.Warn("completion_failed", "class", failureEmpty.String())
		return "", false
	}
	slog.Debug("completion_ok", "elapsed_ms", time.Since(start).Milliseconds(), "chars", len(out))
	return out, true
}

type failureClass int

const (
	failureNone failureClass = iota
	failureEmpty
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

func (c failureClass) String() string {
	switch c {
	case failureEmpty:
		return "empty"
	case failureTimeout:
		return "timeout"
	case failureRateLimit:
		return "rate_limit"
	case failureServer:
		return "server"
	case failureClient:
		return "client"
	default:
		return "none"
	}
}

func classifyTransportError(err error) failureClass {
	msg := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	switch {
	case strings.Contains(msg, "429"):
		return failureRateLimit
	case strings.Contains(msg, " 5") || strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, " 4") || strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

// StripCodeFences removes a surrounding ``` or ```json fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// EmbeddedJSON returns the first balanced {...} or [...] block in s,
// starting at the first occurrence of open.
func EmbeddedJSON(s string, open, close byte) (string, bool) {
	s = StripCodeFences(s)
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
