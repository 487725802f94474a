package api

import (
	"context"

	"github.com/campushq/campushq/internal/client/token"
)

// tokenPayload mirrors the data field of the refresh-token response.
type tokenPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresher performs the raw refresh-token call for the token manager.
//
// It deliberately rides the same client but targets a public endpoint, so a
// 401 from a spent refresh token can never trigger a second refresh cycle
// through the pipeline's replay logic.
type Refresher struct {
	client *Client
}

// NewRefresher wraps a pipeline client for use by the token manager.
func NewRefresher(client *Client) *Refresher {
	return &Refresher{client: client}
}

// RefreshTokens exchanges the refresh token for a rotated pair.
func (r *Refresher) RefreshTokens(ctx context.Context, refreshToken string) (token.Pair, error) {
	var payload tokenPayload
	_, err := r.client.Post(ctx, "/auth/refresh-token", map[string]string{
		"refreshToken": refreshToken,
	}, &payload)
	if err != nil {
		return token.Pair{}, err
	}
	return token.Pair{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}, nil
}
