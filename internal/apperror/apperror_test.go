package apperror

import (
	"errors"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("contribution", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "NoData wraps ErrNotFound",
			err:       NoData("No contributions found for username: alice"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("proof", "Proof is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("authentication required"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "Upstream wraps ErrUpstream",
			err:       Upstream(502, "verify failed"),
			target:    ErrUpstream,
			wantMatch: true,
		},
		{
			name:      "Timeout wraps ErrTimeout",
			err:       Timeout("prover timed out"),
			target:    ErrTimeout,
			wantMatch: true,
		},
		{
			name:      "Persistence wraps ErrPersistence and its cause",
			err:       Persistence("database error", errors.New("disk full")),
			target:    ErrPersistence,
			wantMatch: true,
		},
		{
			name:      "Timeout does NOT match ErrUpstream",
			err:       Timeout("prover timed out"),
			target:    ErrUpstream,
			wantMatch: false,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("contribution", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("contribution", "abc123"),
			wantMessage: "contribution not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("username", "GitHub username is required"),
			wantMessage: "GitHub username is required",
		},
		{
			name:        "Persistence hides the cause from the message",
			err:         Persistence("Database connection failed.", errors.New("dial tcp: refused")),
			wantMessage: "Database connection failed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUpstreamStatus(t *testing.T) {
	err := Upstream(401, "verify failed: 401 - bad token")
	if err.Status != 401 {
		t.Errorf("Status = %d, want 401", err.Status)
	}
}

func TestPersistenceCauseIsReachable(t *testing.T) {
	cause := errors.New("no such table: verified_contributions")
	err := Persistence("Database table not found.", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("username", "GitHub username is required")

	if err.Field != "username" {
		t.Errorf("Field = %q, want %q", err.Field, "username")
	}
}
