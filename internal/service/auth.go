package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/timegrave/internal/api"
	"github.com/nhle/timegrave/internal/convert"
	"github.com/nhle/timegrave/internal/model"
)

// SignUpInput is the registration form.
type SignUpInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignInInput is the sign-in form.
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResult is what a successful sign-in returns. Persisting the token
// is the caller's job.
type SignInResult struct {
	User         model.User `json:"user"`
	SessionToken string     `json:"sessionToken"`
	ExpiresAt    string     `json:"expiresAt"`
}

// AuthService talks to the /api/users endpoints.
type AuthService struct {
	client *api.Client
}

// NewAuthService creates an AuthService over client.
func NewAuthService(client *api.Client) *AuthService {
	return &AuthService{client: client}
}

// SignUp registers a new account. It does not sign the user in.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*model.User, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, api.NewError(api.KindValidation, "Email and password are required.")
	}

	body, err := convert.SnakeizeStruct(in)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Post(ctx, "/api/users", body)
	if err != nil {
		return nil, fmt.Errorf("signing up: %w", err)
	}

	user, err := api.CamelAs[model.User](resp)
	if err != nil {
		return nil, fmt.Errorf("signing up: %w", err)
	}
	return &user, nil
}

// SignIn exchanges credentials for a session token.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (*SignInResult, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, api.NewError(api.KindValidation, "Email and password are required.")
	}

	body, err := convert.SnakeizeStruct(in)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Post(ctx, "/api/users/sign-in", body)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}

	result, err := api.CamelAs[SignInResult](resp)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}
	if result.SessionToken == "" {
		return nil, &api.Error{
			Kind:    api.KindUnknown,
			Message: "The server did not return a session.",
			Status:  resp.Status,
		}
	}
	return &result, nil
}

// SignOut ends the session on the server.
func (s *AuthService) SignOut(ctx context.Context) error {
	if _, err := s.client.Post(ctx, "/api/users/sign-out", nil); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	return nil
}

// DeleteAccount permanently removes the signed-in account.
func (s *AuthService) DeleteAccount(ctx context.Context) error {
	if _, err := s.client.Delete(ctx, "/api/users"); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return nil
}

// CurrentUser returns the account the current token belongs to.
func (s *AuthService) CurrentUser(ctx context.Context) (*model.User, error) {
	resp, err := s.client.Get(ctx, "/api/users/me")
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}

	user, err := api.CamelAs[model.User](resp)
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	return &user, nil
}
