package auth

import (
	"strings"
	"testing"
	"time"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestGenerate_TokenShape(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("octocat")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := strings.Count(token, "."); got != 2 {
		t.Errorf("token has %d dots, want 2 (header.payload.signature)", got)
	}
}

func TestGenerate_EmptyLogin(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Generate(""); err == nil {
		t.Fatal("Generate(\"\") should fail")
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("Jane-Doe")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	login, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if login != "Jane-Doe" {
		t.Errorf("Validate() login = %q, want %q", login, "Jane-Doe")
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	other, err := NewTokenService("a-completely-different-secret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	expired, _ := ts.GenerateWithDuration("octocat", -time.Minute)
	foreign, _ := other.Generate("octocat")
	valid, _ := ts.Generate("octocat")
	tampered := valid[:len(valid)-4] + "abcd"

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"signed with another secret", foreign},
		{"tampered signature", tampered},
		{"empty", ""},
		{"garbage", "not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err == nil {
				t.Errorf("Validate(%s) should fail", tt.name)
			}
		})
	}
}
