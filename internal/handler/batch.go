package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/webproof-contributors/internal/model"
)

// BatchVerifier is what BatchHandler needs from *service.BatchService.
type BatchVerifier interface {
	VerifyAll(ctx context.Context) (*model.BatchResult, error)
}

type BatchHandler struct {
	batch  BatchVerifier
	logger *slog.Logger
}

func NewBatchHandler(batch BatchVerifier, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{batch: batch, logger: logger}
}

// HandleVerifyAll re-verifies every stored proof document.
//
// HTTP: GET /api/verify-all
func (h *BatchHandler) HandleVerifyAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.batch.VerifyAll(r.Context())
	if err != nil {
		h.logger.Error("verify-all failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ContributorsResponse{Success: true, BatchResult: *result})
}
