package account

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/campushq/campushq/internal/client/api"
	"github.com/campushq/campushq/internal/client/session"
	apperrors "github.com/campushq/campushq/internal/platform/errors"
)

type fakePipeline struct {
	t         *testing.T
	calls     []string
	bodies    map[string]any
	responses map[string]any
	errs      map[string]error
}

func newFakePipeline(t *testing.T) *fakePipeline {
	return &fakePipeline{t: t, bodies: map[string]any{}, responses: map[string]any{}, errs: map[string]error{}}
}

func (f *fakePipeline) roundTrip(method, path string, body, out any) (api.Meta, error) {
	key := method + " " + path
	f.calls = append(f.calls, key)
	f.bodies[key] = body
	if err := f.errs[key]; err != nil {
		return api.Meta{}, err
	}
	if response, ok := f.responses[key]; ok && out != nil {
		encoded, err := json.Marshal(response)
		if err != nil {
			f.t.Fatalf("encode scripted response: %v", err)
		}
		if err := json.Unmarshal(encoded, out); err != nil {
			f.t.Fatalf("decode scripted response: %v", err)
		}
	}
	return api.Meta{}, nil
}

func (f *fakePipeline) Get(_ context.Context, path string, _ url.Values, out any) (api.Meta, error) {
	return f.roundTrip("GET", path, nil, out)
}

func (f *fakePipeline) Post(_ context.Context, path string, body, out any) (api.Meta, error) {
	return f.roundTrip("POST", path, body, out)
}

func (f *fakePipeline) Put(_ context.Context, path string, body, out any) (api.Meta, error) {
	return f.roundTrip("PUT", path, body, out)
}

func newService(t *testing.T) (*Service, *fakePipeline, *session.Store) {
	t.Helper()
	sessions, err := session.NewStore(nil)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	pipeline := newFakePipeline(t)
	return NewService(pipeline, sessions), pipeline, sessions
}

func TestLoginCommitsSession(t *testing.T) {
	service, pipeline, sessions := newService(t)
	pipeline.responses["POST /auth/login"] = authPayload{
		User:         session.User{ID: "U1", Name: "Ada", Email: "ada@campus.edu", Role: session.RoleStudent},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}

	user, err := service.Login(context.Background(), "ada@campus.edu", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "U1" {
		t.Fatalf("user = %+v", user)
	}

	current, ok := sessions.Get()
	if !ok {
		t.Fatal("expected a signed-in session")
	}
	if current.AccessToken != "access-1" || current.RefreshToken != "refresh-1" {
		t.Fatalf("tokens = %q / %q", current.AccessToken, current.RefreshToken)
	}
}

func TestLoginFailureLeavesNoSession(t *testing.T) {
	service, pipeline, sessions := newService(t)
	pipeline.errs["POST /auth/login"] = apperrors.New(apperrors.CodeForbidden, "invalid credentials")

	if _, err := service.Login(context.Background(), "ada@campus.edu", "wrong"); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if _, ok := sessions.Get(); ok {
		t.Fatal("failed login must not create a session")
	}
}

func TestVerifyOTPCommitsSession(t *testing.T) {
	service, pipeline, sessions := newService(t)
	pipeline.responses["POST /auth/verify-otp"] = authPayload{
		User:         session.User{ID: "U1", Role: session.RoleStudent},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}

	if _, err := service.VerifyOTP(context.Background(), "ada@campus.edu", "123456"); err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	if _, ok := sessions.Get(); !ok {
		t.Fatal("expected a signed-in session after verification")
	}
}

func TestRegisterValidatesLocally(t *testing.T) {
	service, pipeline, _ := newService(t)

	err := service.Register(context.Background(), Registration{Name: "Ada"})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
	if len(pipeline.calls) != 0 {
		t.Fatalf("expected zero network calls, got %v", pipeline.calls)
	}
}

func TestLogoutClearsLocallyEvenWhenServerFails(t *testing.T) {
	service, pipeline, sessions := newService(t)
	if err := sessions.Set(session.Session{
		User:         session.User{ID: "U1", Role: session.RoleStudent},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	pipeline.errs["POST /auth/logout"] = apperrors.New(apperrors.CodeNetwork, "service unreachable")

	err := service.Logout(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeNetwork) {
		t.Fatalf("expected the server failure surfaced, got %v", err)
	}
	if _, ok := sessions.Get(); ok {
		t.Fatal("session must be cleared regardless of the server call")
	}
}

func TestLogoutSwallowsExpiredAuth(t *testing.T) {
	service, pipeline, sessions := newService(t)
	if err := sessions.Set(session.Session{
		User:         session.User{ID: "U1", Role: session.RoleStudent},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	pipeline.errs["POST /auth/logout"] = apperrors.New(apperrors.CodeAuthExpired, "session expired")

	if err := service.Logout(context.Background()); err != nil {
		t.Fatalf("logging out of an expired session should succeed, got %v", err)
	}
	if _, ok := sessions.Get(); ok {
		t.Fatal("session must be cleared")
	}
}

func TestMeRefreshesCachedUser(t *testing.T) {
	service, pipeline, sessions := newService(t)
	if err := sessions.Set(session.Session{
		User:         session.User{ID: "U1", Name: "Ada", Role: session.RoleStudent},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	pipeline.responses["GET /auth/me"] = session.User{ID: "U1", Name: "Ada Lovelace", Role: session.RoleAdmin}

	user, err := service.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if user.Name != "Ada Lovelace" {
		t.Fatalf("name = %q", user.Name)
	}

	current, _ := sessions.Get()
	if current.User.Role != session.RoleAdmin {
		t.Fatalf("cached role = %q, want it refreshed", current.User.Role)
	}
	if current.AccessToken != "access-1" {
		t.Fatal("tokens must survive a profile refresh")
	}
}

func TestUpdateProfileEndpoint(t *testing.T) {
	service, pipeline, sessions := newService(t)
	if err := sessions.Set(session.Session{
		User:         session.User{ID: "U1", Name: "Ada", Role: session.RoleStudent},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	pipeline.responses["PUT /auth/update-profile"] = session.User{ID: "U1", Name: "Ada Lovelace", Role: session.RoleStudent}

	user, err := service.UpdateProfile(context.Background(), ProfilePatch{Name: "Ada Lovelace"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if user.Name != "Ada Lovelace" {
		t.Fatalf("name = %q", user.Name)
	}
	if len(pipeline.calls) != 1 || pipeline.calls[0] != "PUT /auth/update-profile" {
		t.Fatalf("calls = %v, want PUT /auth/update-profile", pipeline.calls)
	}

	current, _ := sessions.Get()
	if current.User.Name != "Ada Lovelace" {
		t.Fatalf("cached name = %q, want it refreshed", current.User.Name)
	}
}

func TestChangePasswordRequiresNewPassword(t *testing.T) {
	service, pipeline, _ := newService(t)

	if err := service.ChangePassword(context.Background(), "old", ""); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
	if len(pipeline.calls) != 0 {
		t.Fatalf("expected zero network calls, got %v", pipeline.calls)
	}
}

func TestResetPasswordSendsOTP(t *testing.T) {
	service, pipeline, _ := newService(t)

	if err := service.ResetPassword(context.Background(), "ada@campus.edu", "123456", "n3w-pass"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	body, ok := pipeline.bodies["POST /auth/reset-password"].(map[string]string)
	if !ok {
		t.Fatalf("body = %T", pipeline.bodies["POST /auth/reset-password"])
	}
	if body["otp"] != "123456" || body["newPassword"] != "n3w-pass" {
		t.Fatalf("body = %v", body)
	}
}
