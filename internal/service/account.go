// Package service holds the business rules of the JSON host:
//
//	Handler (HTTP) -> Service (rules) -> repository interfaces -> SQLite / Postgres
//
// Services take primitives and domain types, never *http.Request, and
// return apperror values that the handler layer maps to status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/auth"
	"github.com/sakif/jsonhost/internal/model"
	"github.com/sakif/jsonhost/internal/repository"
)

// AccountService registers users, checks credentials and issues session
// tokens.
type AccountService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	keys      KeyGenerator
	logger    *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	keys KeyGenerator,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		keys:      keys,
		logger:    logger,
	}
}

// AuthResult bundles the account and its freshly signed token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput is what a signup carries. Mobile and Type are optional.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Mobile    *string
	Password  string
	Type      string
}

// NormalizeEmail trims and lowercases an address. Every lookup and insert
// goes through it so "Ada@Example.com" and "ada@example.com" are one account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account with no API key and signs a token for it.
// A second signup with any case variant of an existing email fails with
// apperror.ErrConflict.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	email := NormalizeEmail(in.Email)

	switch {
	case firstName == "":
		return nil, apperror.ValidationFailed("firstName", "first name is required")
	case lastName == "":
		return nil, apperror.ValidationFailed("lastName", "last name is required")
	case email == "":
		return nil, apperror.ValidationFailed("email", "email is required")
	case in.Password == "":
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "email is not a valid address")
	}

	userType, err := model.ParseUserType(strings.TrimSpace(in.Type))
	if err != nil {
		return nil, apperror.ValidationFailed("type", "type must be either user or admin")
	}

	var mobile *string
	if in.Mobile != nil {
		if m := strings.TrimSpace(*in.Mobile); m != "" {
			mobile = &m
		}
	}

	_, err = s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperror.ConflictMsg("an account with this email already exists")
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/account: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Mobile:       mobile,
		Type:         userType,
	}
	// The unique index still guards against a concurrent signup racing the
	// lookup above.
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/account: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("type", string(user.Type)),
	)

	return s.issue(user)
}

// Login checks email and password. Unknown email and wrong password both
// yield apperror.InvalidCredentials with identical text.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/account: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.InvalidCredentials()
		}
		// A corrupt stored hash is an internal failure, but the caller
		// still only learns that the credentials were rejected.
		s.logger.Error("password verification failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.InvalidCredentials()
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// LoginWithGitHub signs in the account that owns the GitHub user's verified
// email, creating one on first sight. Accounts created this way get an
// unguessable random password, so they can only sign in through GitHub
// until a password flow exists.
func (s *AccountService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, errors.New("service/account: GitHub user must not be nil")
	}
	email := NormalizeEmail(gh.Email)
	if email == "" {
		return nil, apperror.Unauthorized("GitHub account has no verified email")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		s.logger.Info("user logged in via GitHub",
			slog.String("userID", user.ID),
			slog.String("login", gh.Login),
		)
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/account: looking up GitHub user: %w", err)
	}

	secret, err := s.keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("service/account: generating password: %w", err)
	}
	hash, err := s.passwords.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("service/account: hashing password: %w", err)
	}

	firstName, lastName := splitName(gh.Name, gh.Login)
	user = &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Type:         model.UserTypeUser,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/account: creating GitHub user: %w", err)
	}

	s.logger.Info("user registered via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return s.issue(user)
}

// Session re-reads the caller from the store so the response carries the
// current api key and preview url rather than what the token remembered.
func (s *AccountService) Session(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// The token outlived its account.
			return nil, apperror.Unauthorized("session no longer valid")
		}
		return nil, fmt.Errorf("service/account: fetching user %s: %w", userID, err)
	}
	return user, nil
}

func (s *AccountService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.Identity())
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// splitName turns a GitHub display name into first and last name. The
// login fills whichever part is missing.
func splitName(name, login string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return login, login
	case 1:
		return parts[0], login
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
