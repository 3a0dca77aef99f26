package api

import "github.com/schoolone/portal/internal/model"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the response of POST /auth/login.
type LoginResult struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        model.User `json:"user"`
}

// errorResponse covers both the FastAPI {"detail": ...} shape and the
// echo {"message": ...} shape.
type errorResponse struct {
	Detail  any    `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (r errorResponse) text() string {
	switch d := r.Detail.(type) {
	case string:
		if d != "" {
			return d
		}
	case nil:
	default:
		return "validation failed"
	}
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}
