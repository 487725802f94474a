package api

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/campushq/campushq/internal/platform/errors"
)

// envelope mirrors the platform's transport wrapper. Every response, success
// or failure, arrives in this shape.
type envelope struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data"`
	Message     string          `json:"message"`
	Total       int             `json:"total"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
	Count       int             `json:"count"`
	Error       *errorBody      `json:"error"`
}

type errorBody struct {
	Message string        `json:"message"`
	Code    string        `json:"code"`
	Details []fieldDetail `json:"details"`
}

type fieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta carries the pagination and count fields of a response envelope.
type Meta struct {
	Total       int
	TotalPages  int
	CurrentPage int
	Count       int
}

func (e envelope) meta() Meta {
	return Meta{
		Total:       e.Total,
		TotalPages:  e.TotalPages,
		CurrentPage: e.CurrentPage,
		Count:       e.Count,
	}
}

// normalizeError converts a failed response into a domain error. The raw
// transport payload never escapes the pipeline. A 401 on a public endpoint
// is a credential failure, not an expired session: no token was sent, so
// "sign in again" would be the wrong message.
func normalizeError(status int, env envelope, public bool) *apperrors.Error {
	code := apperrors.FromStatus(status)
	if public && status == http.StatusUnauthorized {
		code = apperrors.CodeInvalidCredentials
	}

	message := ""
	metadata := map[string]string{}
	if env.Error != nil {
		message = strings.TrimSpace(env.Error.Message)
		if serverCode := strings.TrimSpace(env.Error.Code); serverCode != "" {
			metadata["server_code"] = serverCode
		}
		if len(env.Error.Details) > 0 {
			parts := make([]string, 0, len(env.Error.Details))
			for _, detail := range env.Error.Details {
				text := strings.TrimSpace(detail.Message)
				if field := strings.TrimSpace(detail.Field); field != "" {
					text = field + ": " + text
					metadata[field] = strings.TrimSpace(detail.Message)
				}
				parts = append(parts, text)
			}
			message = strings.Join(parts, "; ")
		}
	}
	if message == "" {
		message = strings.TrimSpace(env.Message)
	}
	if message == "" {
		message = defaultMessage(code)
	}

	if len(metadata) == 0 {
		return apperrors.New(code, message)
	}
	return apperrors.WithMetadata(code, message, metadata)
}

func defaultMessage(code apperrors.Code) string {
	switch code {
	case apperrors.CodeAuthExpired:
		return "session expired, please sign in again"
	case apperrors.CodeInvalidCredentials:
		return "email or password is incorrect"
	case apperrors.CodeForbidden:
		return "you do not have permission to do that"
	case apperrors.CodeNotFound:
		return "the requested resource was not found"
	case apperrors.CodeConflict:
		return "the request conflicts with the current state"
	case apperrors.CodeValidation:
		return "the request was invalid"
	case apperrors.CodeNetwork:
		return "the service is temporarily unavailable, please retry"
	default:
		return "something went wrong"
	}
}
