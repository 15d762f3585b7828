package auth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Gateway is the subset of the request gateway used by auth operations.
// Authenticate posts to a credential-minting endpoint (login, signup,
// refresh) and returns the token and viewer from its response.
type Gateway interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out any) error
	Authenticate(ctx context.Context, path string, body any) (token string, user User, err error)
}

// Service implements the account-level operations: login, signup, session
// resume, logout and account deletion. Domain failures (duplicate email,
// invalid credentials, wrong password) surface verbatim as APIError values
// from the gateway.
type Service struct {
	gw     Gateway
	store  *Store
	logger *zap.Logger
}

// NewService creates an auth service bound to the credential store.
func NewService(gw Gateway, store *Store, logger *zap.Logger) *Service {
	return &Service{gw: gw, store: store, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// Login exchanges email+password for a credential and installs it.
func (s *Service) Login(ctx context.Context, email, password string) error {
	token, user, err := s.gw.Authenticate(ctx, "/auth/login", loginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	s.install(token, user, "login")
	return nil
}

// Signup registers a new account. The backend logs the account in
// immediately, so a successful signup also installs a credential.
func (s *Service) Signup(ctx context.Context, username, email, password string) error {
	token, user, err := s.gw.Authenticate(ctx, "/auth/signup", signupRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return err
	}
	s.install(token, user, "signup")
	return nil
}

// Resume restores a session at startup using the transport-level cookie
// identity. On failure the store settles into the logged-out state.
func (s *Service) Resume(ctx context.Context) error {
	token, user, err := s.gw.Authenticate(ctx, "/auth/refresh", nil)
	if err != nil {
		s.store.SetLoggedOut()
		return err
	}
	s.install(token, user, "resume")
	return nil
}

// Logout clears the server-side session cookie and the local credential.
// The local credential is cleared even if the server call fails.
func (s *Service) Logout(ctx context.Context) error {
	err := s.gw.Do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	s.store.SetLoggedOut()
	if err != nil {
		s.logger.Warn("server logout failed, cleared local session anyway", zap.Error(err))
	}
	return err
}

// DeleteAccount removes the account after re-confirming the password.
// A wrong password is a domain failure and leaves the session intact.
func (s *Service) DeleteAccount(ctx context.Context, password string) error {
	err := s.gw.Do(ctx, http.MethodDelete, "/auth/me", nil, deleteAccountRequest{Password: password}, nil)
	if err != nil {
		return err
	}
	s.store.SetLoggedOut()
	return nil
}

func (s *Service) install(token string, user User, via string) {
	s.store.SetAuthenticated(token, user)

	fields := []zap.Field{zap.String("user_id", user.ID), zap.String("via", via)}
	if exp, err := ParseExpiry(token); err == nil {
		fields = append(fields, zap.Time("token_exp", exp), zap.Duration("token_ttl", time.Until(exp)))
	}
	s.logger.Info("credential installed", fields...)
}
