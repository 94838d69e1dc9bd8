package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Evildoersudo/back-end/internal/auth"
)

// loginRequest is the request body for POST /api/auth/login.
type loginRequest struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

// authUser is the user object embedded in auth responses.
type authUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// registerRequest is the request body for POST /api/auth/register.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// forgotRequest is the request body for POST /api/auth/forgot.
type forgotRequest struct {
	Account string `json:"account"`
}

// resetRequest is the request body for POST /api/auth/reset.
type resetRequest struct {
	Account     string `json:"account"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// handleLogin authenticates the admin account and returns a JWT token
// together with the user profile.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Account == "" || req.Password == "" {
		writeBadRequest(w, "account and password are required")
		return
	}

	user, err := s.auth.Login(r.Context(), req.Account, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeUnauthorized(w, "invalid account or password")
			return
		}
		s.logger.Error("login failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	token, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		s.logger.Error("failed to generate token", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"token": token,
		"user": authUser{
			Username: user.Username,
			Email:    user.Email,
			Role:     user.Role,
		},
	})
}

// handleRegister creates a new account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeBadRequest(w, "username, email and password are required")
		return
	}

	user, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameExists):
			writeBadRequest(w, "username already exists")
		case errors.Is(err, auth.ErrEmailExists):
			writeBadRequest(w, "email already exists")
		default:
			s.logger.Error("registration failed", "error", err)
			writeInternalError(w, "registration failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"user": authUser{
			Username: user.Username,
			Email:    user.Email,
			Role:     user.Role,
		},
	})
}

// handleForgotPassword issues a password reset code for the account.
//
// The code is delivered out of band (logged, for operators without a mail
// relay). The response is identical for known and unknown accounts so the
// endpoint cannot be used to enumerate users.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Account == "" {
		writeBadRequest(w, "account is required")
		return
	}

	user, code, err := s.auth.CreateResetCode(r.Context(), req.Account)
	if err != nil {
		if !errors.Is(err, auth.ErrUserNotFound) {
			s.logger.Error("failed to create reset code", "error", err)
			writeInternalError(w, "failed to create reset code")
			return
		}
	} else {
		s.logger.Info("password reset code issued",
			"username", user.Username,
			"code", code,
		)
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleResetPassword sets a new password given a valid reset code.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Account == "" || req.Code == "" || req.NewPassword == "" {
		writeBadRequest(w, "account, code and new_password are required")
		return
	}

	if err := s.auth.ResetPassword(r.Context(), req.Account, req.Code, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrResetCodeInvalid):
			writeBadRequest(w, "reset code is invalid or expired")
		default:
			s.logger.Error("password reset failed", "error", err)
			writeInternalError(w, "password reset failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
