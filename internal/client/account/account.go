// Package account binds the authentication and profile surface of the
// platform API, committing successful sign-ins to the session store.
package account

import (
	"context"
	"net/url"
	"strings"

	"github.com/campushq/campushq/internal/client/api"
	"github.com/campushq/campushq/internal/client/session"
	apperrors "github.com/campushq/campushq/internal/platform/errors"
)

// Pipeline is the request surface the account service depends on.
type Pipeline interface {
	Get(ctx context.Context, path string, query url.Values, out any) (api.Meta, error)
	Post(ctx context.Context, path string, body any, out any) (api.Meta, error)
	Put(ctx context.Context, path string, body any, out any) (api.Meta, error)
}

// Service drives registration, sign-in, and profile management.
type Service struct {
	pipeline Pipeline
	sessions *session.Store
}

func NewService(pipeline Pipeline, sessions *session.Store) *Service {
	return &Service{pipeline: pipeline, sessions: sessions}
}

// Registration holds the fields of a new account request.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authPayload mirrors the data field of a successful sign-in response.
type authPayload struct {
	User         session.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// Register creates a new account. The account stays unverified until the
// emailed OTP is confirmed; no session is created here.
func (s *Service) Register(ctx context.Context, reg Registration) error {
	if strings.TrimSpace(reg.Name) == "" || strings.TrimSpace(reg.Email) == "" || reg.Password == "" {
		return apperrors.New(apperrors.CodeValidation, "name, email, and password are required")
	}
	_, err := s.pipeline.Post(ctx, "/auth/register", reg, nil)
	return err
}

// VerifyOTP confirms the emailed code and commits the resulting session.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (session.User, error) {
	return s.signIn(ctx, "/auth/verify-otp", map[string]string{
		"email": email,
		"otp":   otp,
	})
}

// ResendOTP asks for a fresh verification code.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	_, err := s.pipeline.Post(ctx, "/auth/resend-otp", map[string]string{"email": email}, nil)
	return err
}

// Login exchanges credentials for a session and commits it.
func (s *Service) Login(ctx context.Context, email, password string) (session.User, error) {
	return s.signIn(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (s *Service) signIn(ctx context.Context, path string, body any) (session.User, error) {
	var payload authPayload
	if _, err := s.pipeline.Post(ctx, path, body, &payload); err != nil {
		return session.User{}, err
	}
	if err := s.sessions.Set(session.Session{
		User:         payload.User,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}); err != nil {
		return session.User{}, apperrors.Wrap(apperrors.CodeUnknown, "store session", err)
	}
	return payload.User, nil
}

// Logout tells the server to revoke the refresh token, then clears the
// local session. The local clear happens even when the server call
// fails; signing out must always work offline.
func (s *Service) Logout(ctx context.Context) error {
	_, serverErr := s.pipeline.Post(ctx, "/auth/logout", nil, nil)
	if err := s.sessions.Clear(); err != nil {
		return err
	}
	if serverErr != nil && !apperrors.IsCode(serverErr, apperrors.CodeAuthExpired) {
		return serverErr
	}
	return nil
}

// Me fetches the authoritative profile and refreshes the cached user.
func (s *Service) Me(ctx context.Context) (session.User, error) {
	var user session.User
	if _, err := s.pipeline.Get(ctx, "/auth/me", nil, &user); err != nil {
		return session.User{}, err
	}
	s.updateUser(user)
	return user, nil
}

// ProfilePatch carries the editable profile fields.
type ProfilePatch struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// UpdateProfile edits the profile and refreshes the cached user.
func (s *Service) UpdateProfile(ctx context.Context, patch ProfilePatch) (session.User, error) {
	var user session.User
	if _, err := s.pipeline.Put(ctx, "/auth/update-profile", patch, &user); err != nil {
		return session.User{}, err
	}
	s.updateUser(user)
	return user, nil
}

// ChangePassword rotates the password for the signed-in user.
func (s *Service) ChangePassword(ctx context.Context, current, updated string) error {
	if updated == "" {
		return apperrors.New(apperrors.CodeValidation, "new password is required")
	}
	_, err := s.pipeline.Put(ctx, "/auth/change-password", map[string]string{
		"currentPassword": current,
		"newPassword":     updated,
	}, nil)
	return err
}

// RequestPasswordReset starts the forgotten-password flow.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := s.pipeline.Post(ctx, "/auth/request-password-reset", map[string]string{"email": email}, nil)
	return err
}

// ResetPassword completes the forgotten-password flow with the emailed code.
func (s *Service) ResetPassword(ctx context.Context, email, otp, password string) error {
	if password == "" {
		return apperrors.New(apperrors.CodeValidation, "new password is required")
	}
	_, err := s.pipeline.Post(ctx, "/auth/reset-password", map[string]string{
		"email":       email,
		"otp":         otp,
		"newPassword": password,
	}, nil)
	return err
}

// updateUser rewrites the cached user while keeping the current tokens.
func (s *Service) updateUser(user session.User) {
	current, ok := s.sessions.Get()
	if !ok {
		return
	}
	current.User = user
	_ = s.sessions.Set(current)
}
