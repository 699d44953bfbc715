package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/webproof-contributors/internal/service"
)

// ProofService is what ProofHandler needs from *service.ProofService.
type ProofService interface {
	Prove(ctx context.Context, in service.ProveInput) (json.RawMessage, error)
	Verify(ctx context.Context, proof json.RawMessage) (json.RawMessage, error)
}

// ProofHandler proxies prove and verify calls to the web prover.
type ProofHandler struct {
	proofs ProofService
	logger *slog.Logger
	now    func() time.Time
}

func NewProofHandler(proofs ProofService, logger *slog.Logger) *ProofHandler {
	return &ProofHandler{proofs: proofs, logger: logger, now: time.Now}
}

// HandleProve creates a web-proof.
//
// HTTP: POST /api/prove
// Body: {"query": "...", "variables": {...}, "githubToken": "..."}
//
//	or {"url": "https://api.github.com/repos/o/r/contributors", "headers": [...]}
//	or {"owner": "o", "repo": "r", "username": "u"}
//
// With ?download=1 the proof is sent as an attachment named after the user.
func (h *ProofHandler) HandleProve(w http.ResponseWriter, r *http.Request) {
	var in service.ProveInput
	if !decodeJSON(w, r, &in) {
		return
	}

	proof, err := h.proofs.Prove(r.Context(), in)
	if err != nil {
		h.logger.Warn("prove failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename=%q`, service.ProofFilename(h.now(), in.Username)))
	}
	writeRawJSON(w, http.StatusOK, proof)
}

// HandleVerify verifies a web-proof. The request body is the proof itself.
//
// HTTP: POST /api/verify
func (h *ProofHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	proof, ok := readJSON(w, r)
	if !ok {
		return
	}

	result, err := h.proofs.Verify(r.Context(), proof)
	if err != nil {
		h.logger.Warn("verify failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, result)
}
