package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/webproof-contributors/internal/apperror"
)

// maxResponseBytes caps how much of a prover response is read.
const maxResponseBytes = 32 << 20

// Config holds the prover endpoint and credentials. It is built once from the
// application config and handed to New.
type Config struct {
	BaseURL       string
	ClientID      string
	Secret        string
	ProveTimeout  time.Duration
	VerifyTimeout time.Duration
}

type operation struct {
	name     string // metric label
	path     string
	failure  string // prefix of the upstream error message
	timedOut string
}

var (
	opProve = operation{
		name:     "prove",
		path:     "/api/v1/prove",
		failure:  "Proof generation failed",
		timedOut: "Request timed out. GitHub API took too long to respond. Please try again.",
	}
	opVerify = operation{
		name:     "verify",
		path:     "/api/v1/verify",
		failure:  "Verification failed",
		timedOut: "Request timed out. Verification took too long to complete. Please try again.",
	}
)

// Relay forwards prove and verify calls to the web prover.
type Relay struct {
	cfg     Config
	client  *http.Client
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) { r.client = c }
}

// WithMetrics records call counts and latencies in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// New creates a Relay. Per-call deadlines come from cfg, so the default client
// has no timeout of its own.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Relay {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	r := &Relay{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prove asks the prover to perform req and returns the resulting web-proof.
func (r *Relay) Prove(ctx context.Context, req Request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("prover: encoding request: %w", err)
	}
	r.logger.Info("requesting web proof",
		slog.String("url", req.URL),
		slog.String("method", req.Method),
	)
	return r.call(ctx, opProve, r.cfg.ProveTimeout, body)
}

// Verify sends proof to the prover unchanged and returns its verification.
func (r *Relay) Verify(ctx context.Context, proof json.RawMessage) (json.RawMessage, error) {
	return r.call(ctx, opVerify, r.cfg.VerifyTimeout, proof)
}

func (r *Relay) call(ctx context.Context, op operation, timeout time.Duration, body []byte) (json.RawMessage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	out, outcome, err := r.do(ctx, op, body)
	elapsed := time.Since(start)
	r.metrics.observe(op.name, outcome, elapsed)

	if err != nil {
		r.logger.Warn("prover call failed",
			slog.String("op", op.name),
			slog.String("outcome", outcome),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	r.logger.Debug("prover call completed",
		slog.String("op", op.name),
		slog.Duration("duration", elapsed),
		slog.Int("bytes", len(out)),
	)
	return out, nil
}

func (r *Relay) do(ctx context.Context, op operation, body []byte) (json.RawMessage, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+op.path, bytes.NewReader(body))
	if err != nil {
		return nil, outcomeError, fmt.Errorf("prover: building %s request: %w", op.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", r.cfg.ClientID)
	req.Header.Set("Authorization", "Bearer "+r.cfg.Secret)

	resp, err := r.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, outcomeTimeout, apperror.Timeout(op.timedOut)
		}
		return nil, outcomeError, fmt.Errorf("prover: %s request: %w", op.name, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, outcomeTimeout, apperror.Timeout(op.timedOut)
		}
		return nil, outcomeError, fmt.Errorf("prover: reading %s response: %w", op.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, outcomeUpstream, apperror.Upstream(resp.StatusCode,
			fmt.Sprintf("%s: %d - %s", op.failure, resp.StatusCode, strings.TrimSpace(string(payload))))
	}

	if !json.Valid(payload) {
		return nil, outcomeUpstream, apperror.Upstream(http.StatusBadGateway,
			fmt.Sprintf("%s: prover returned a non-JSON response", op.failure))
	}

	return json.RawMessage(payload), outcomeOK, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
