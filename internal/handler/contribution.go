package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/webproof-contributors/internal/auth"
	"github.com/sakif/webproof-contributors/internal/model"
)

// ContributionService is what ContributionHandler needs from
// *service.ContributionService.
type ContributionService interface {
	Upload(ctx context.Context, proof json.RawMessage, username string) (*model.VerifiedContribution, error)
	ListVerified(ctx context.Context) ([]model.PublicContributor, error)
	ListOwned(ctx context.Context, login string) ([]model.OwnedContribution, error)
}

type ContributionHandler struct {
	contributions ContributionService
	logger        *slog.Logger
}

func NewContributionHandler(contributions ContributionService, logger *slog.Logger) *ContributionHandler {
	return &ContributionHandler{contributions: contributions, logger: logger}
}

type uploadRequest struct {
	Proof    json.RawMessage `json:"proof"`
	Username string          `json:"username"`
}

type uploadResponse struct {
	Success bool                        `json:"success"`
	Message string                      `json:"message"`
	Data    *model.VerifiedContribution `json:"data"`
}

// ContributorsResponse is the public contributor list. The verify-all
// endpoint answers in the same shape.
type ContributorsResponse struct {
	Success bool `json:"success"`
	model.BatchResult
}

// HandleUpload verifies a proof and stores the contribution it attests.
// A signed-in user who omits username uploads as their own GitHub login.
//
// HTTP: POST /api/upload-proof
// Body: {"proof": {...}, "username": "alice"}
func (h *ContributionHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Username) == "" {
		if login, ok := auth.LoginFromContext(r.Context()); ok {
			req.Username = login
		}
	}

	stored, err := h.contributions.Upload(r.Context(), req.Proof, req.Username)
	if err != nil {
		h.logger.Warn("upload rejected",
			slog.String("username", req.Username),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Message: "Proof uploaded and verified successfully",
		Data:    stored,
	})
}

// HandleList returns every verified contribution, proofs excluded.
//
// HTTP: GET /api/contributions
func (h *ContributionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	contributors, err := h.contributions.ListVerified(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ContributorsResponse{
		Success: true,
		BatchResult: model.BatchResult{
			Contributors:   contributors,
			TotalVerified:  len(contributors),
			FilesProcessed: len(contributors),
		},
	})
}

// HandleListMine returns the signed-in user's contributions with proofs.
//
// HTTP: GET /api/me/contributions
// Auth: required
func (h *ContributionHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	login, _ := auth.LoginFromContext(r.Context())

	owned, err := h.contributions.ListOwned(r.Context(), login)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, owned)
}
