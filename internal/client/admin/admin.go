// Package admin binds the user administration surface. Authorization is
// enforced server-side; a non-admin caller gets FORBIDDEN back through
// the pipeline.
package admin

import (
	"context"
	"net/url"
	"strconv"

	"github.com/campushq/campushq/internal/client/api"
	"github.com/campushq/campushq/internal/client/session"
	apperrors "github.com/campushq/campushq/internal/platform/errors"
)

// Pipeline is the request surface the admin service depends on.
type Pipeline interface {
	Get(ctx context.Context, path string, query url.Values, out any) (api.Meta, error)
	Patch(ctx context.Context, path string, body any, out any) (api.Meta, error)
	Delete(ctx context.Context, path string, out any) (api.Meta, error)
}

// Service drives the /admin endpoints.
type Service struct {
	pipeline Pipeline
}

func NewService(pipeline Pipeline) *Service {
	return &Service{pipeline: pipeline}
}

// Account is one row of the user administration listing.
type Account struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Role      session.Role `json:"role"`
	Active    bool         `json:"isActive"`
	Verified  bool         `json:"isVerified"`
	CreatedAt string       `json:"createdAt"`
}

// Stats summarizes platform activity for the admin dashboard.
type Stats struct {
	TotalUsers    int `json:"totalUsers"`
	ActiveUsers   int `json:"activeUsers"`
	TotalEvents   int `json:"totalEvents"`
	PendingEvents int `json:"pendingEvents"`
	TotalRSVPs    int `json:"totalRSVPs"`
}

// Users lists accounts one page at a time.
func (s *Service) Users(ctx context.Context, page, limit int) ([]Account, api.Meta, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var accounts []Account
	meta, err := s.pipeline.Get(ctx, "/admin/users", query, &accounts)
	if err != nil {
		return nil, api.Meta{}, err
	}
	return accounts, meta, nil
}

// User fetches a single account.
func (s *Service) User(ctx context.Context, id string) (Account, error) {
	var account Account
	if _, err := s.pipeline.Get(ctx, "/admin/users/"+url.PathEscape(id), nil, &account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// Stats fetches the platform activity summary.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if _, err := s.pipeline.Get(ctx, "/admin/stats", nil, &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// SetUserStatus activates or deactivates an account.
func (s *Service) SetUserStatus(ctx context.Context, id string, active bool) (Account, error) {
	var account Account
	body := map[string]bool{"isActive": active}
	if _, err := s.pipeline.Patch(ctx, "/admin/users/"+url.PathEscape(id)+"/status", body, &account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// SetUserRole promotes or demotes an account.
func (s *Service) SetUserRole(ctx context.Context, id string, role session.Role) (Account, error) {
	if role != session.RoleStudent && role != session.RoleAdmin {
		return Account{}, apperrors.New(apperrors.CodeValidation, "role must be student or admin")
	}
	var account Account
	body := map[string]session.Role{"role": role}
	if _, err := s.pipeline.Patch(ctx, "/admin/users/"+url.PathEscape(id)+"/role", body, &account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// DeleteUser permanently removes an account.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	_, err := s.pipeline.Delete(ctx, "/admin/users/"+url.PathEscape(id), nil)
	return err
}
