package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/webproof-contributors/internal/auth"
	"github.com/sakif/webproof-contributors/internal/model"
)

// Session is a signed-in GitHub user and the token identifying them.
type Session struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	GitHubURL string `json:"githubUrl"`
	Token     string `json:"-"`
}

// AuthService issues sessions for GitHub users. Identity is the GitHub login
// itself, so nothing is stored; ownership of contributions is decided by
// comparing the login with the stored github_username.
type AuthService struct {
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{tokens: tokens, logger: logger}
}

// SignIn issues a session token for a GitHub profile returned by the OAuth
// callback.
func (s *AuthService) SignIn(_ context.Context, ghUser *auth.GitHubUser) (*Session, error) {
	if ghUser == nil || ghUser.Login == "" {
		return nil, fmt.Errorf("service/auth: GitHub user must have a login")
	}

	token, err := s.tokens.Generate(ghUser.Login)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", ghUser.Login, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.Int64("githubID", ghUser.ID),
		slog.String("login", ghUser.Login),
	)

	sess := &Session{
		Login:     ghUser.Login,
		Name:      ghUser.Name,
		AvatarURL: ghUser.AvatarURL,
		GitHubURL: ghUser.HTMLURL,
		Token:     token,
	}
	if sess.AvatarURL == "" {
		sess.AvatarURL = model.AvatarURL(ghUser.Login)
	}
	if sess.GitHubURL == "" {
		sess.GitHubURL = model.ProfileURL(ghUser.Login)
	}
	return sess, nil
}

// Me describes the signed-in login without touching GitHub.
func (s *AuthService) Me(login string) *Session {
	return &Session{
		Login:     login,
		AvatarURL: model.AvatarURL(login),
		GitHubURL: model.ProfileURL(login),
	}
}

// ValidateToken returns the login a token was issued for.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	login, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return login, nil
}
