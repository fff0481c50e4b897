package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/xid"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/auth"
	"github.com/sakif/jsonhost/internal/middleware"
	"github.com/sakif/jsonhost/internal/model"
	"github.com/sakif/jsonhost/internal/service"
)

const stateCookieName = "oauth_state"

// GitHubAuthenticator is the part of *auth.GitHubProvider the handler uses.
type GitHubAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler serves signup, login, logout, identity and GitHub sign-in.
type AuthHandler struct {
	accounts     *service.AccountService
	github       GitHubAuthenticator
	tokenTTL     time.Duration
	cookieSecure bool
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil when GitHub
// sign-in is not configured.
func NewAuthHandler(
	accounts *service.AccountService,
	github GitHubAuthenticator,
	tokenTTL time.Duration,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		github:       github,
		tokenTTL:     tokenTTL,
		cookieSecure: cookieSecure,
		validate:     newValidator(),
		logger:       logger,
	}
}

type signupRequest struct {
	FirstName string  `json:"firstName" validate:"required,max=100"`
	LastName  string  `json:"lastName" validate:"required,max=100"`
	Email     string  `json:"email" validate:"required,email,max=254"`
	Mobile    *string `json:"mobile" validate:"omitempty,max=32"`
	Password  string  `json:"password" validate:"required,max=72"`
	Type      string  `json:"type" validate:"omitempty,oneof=user admin"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// UserResponse wraps the public projection of an account.
type UserResponse struct {
	Message string           `json:"message,omitempty"`
	User    model.PublicUser `json:"user"`
}

// IdentityResponse is the body of GET /auth/me.
type IdentityResponse struct {
	User model.Identity `json:"user"`
}

// HandleSignup creates an account and starts a session.
//
// HTTP: POST /auth/signup
// Body: {"firstName","lastName","email","password","mobile"?,"type"?}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Mobile:    req.Mobile,
		Password:  req.Password,
		Type:      req.Type,
	})
	middleware.RecordAuthAttempt("signup", err == nil)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.tokenTTL, h.cookieSecure)
	writeJSON(w, http.StatusOK, UserResponse{
		Message: "Account created",
		User:    res.User.Public(),
	})
}

// HandleLogin checks credentials and starts a session.
//
// HTTP: POST /auth/login
// Body: {"email","password"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	middleware.RecordAuthAttempt("login", err == nil)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.tokenTTL, h.cookieSecure)
	writeJSON(w, http.StatusOK, UserResponse{
		Message: "Logged in",
		User:    res.User.Public(),
	})
}

// HandleLogout clears the session cookie. The token itself stays valid
// until it expires, but the browser no longer sends it.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieSecure)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// HandleMe returns the identity carried by the session token without
// touching the store.
//
// HTTP: GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, IdentityResponse{User: id})
}

// HandleSession re-reads the caller from the store and returns the fresh
// projection, including the current api key and preview url.
//
// HTTP: GET /auth/session
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.accounts.Session(r.Context(), id.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: user.Public()})
}

// HandleGitHubLogin redirects to GitHub with a random state that is also
// kept in a short-lived cookie for the callback to compare.
//
// HTTP: GET /auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback finishes GitHub sign-in and redirects home with a
// session cookie.
//
// HTTP: GET /auth/github/callback?code=...&state=...
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		writeError(w, r, h.logger, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, r, h.logger, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		middleware.RecordAuthAttempt("github", false)
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		writeError(w, r, h.logger, apperror.Unauthorized("GitHub authentication failed"))
		return
	}

	res, err := h.accounts.LoginWithGitHub(r.Context(), ghUser)
	middleware.RecordAuthAttempt("github", err == nil)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.tokenTTL, h.cookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
