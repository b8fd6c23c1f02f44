package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/mall-admin/internal/domain/session"
	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/infrastructure/httpclient"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Default endpoints of the login flow
const (
	DefaultLoginPath   = "/admin/login"
	DefaultProfilePath = "/admin/info"
)

// Login field messages
const (
	MsgUsernameRequired = "Please enter the user name"
	MsgPasswordRequired = "Please enter the password"
)

// CacheClearer is the part of the query cache dropped on login and logout
type CacheClearer interface {
	Clear()
}

// LoginService signs the operator in and out
type LoginService struct {
	client      *httpclient.Client
	store       *Store
	cache       CacheClearer
	validate    *validator.Validate
	loginPath   string
	profilePath string
	logger      *zap.Logger
}

// LoginOption configures a LoginService
type LoginOption func(*LoginService)

// WithLoginPaths overrides the login and profile endpoints
func WithLoginPaths(loginPath, profilePath string) LoginOption {
	return func(s *LoginService) {
		if loginPath != "" {
			s.loginPath = loginPath
		}
		if profilePath != "" {
			s.profilePath = profilePath
		}
	}
}

// WithCache clears c whenever the session changes hands
func WithCache(c CacheClearer) LoginOption {
	return func(s *LoginService) { s.cache = c }
}

// WithLoginLogger sets the logger
func WithLoginLogger(l *zap.Logger) LoginOption {
	return func(s *LoginService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewLoginService creates the login flow
func NewLoginService(client *httpclient.Client, store *Store, opts ...LoginOption) *LoginService {
	s := &LoginService{
		client:      client,
		store:       store,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		loginPath:   DefaultLoginPath,
		profilePath: DefaultProfilePath,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login exchanges credentials for a token, stores it and loads the profile.
// A profile that cannot be loaded does not undo the login; the returned
// profile is nil in that case.
func (s *LoginService) Login(ctx context.Context, input LoginInput) (*session.Profile, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	s.logger.Info("Login attempt", zap.String("username", input.Username))
	result, err := httpclient.Send[LoginResult](ctx, s.client, httpclient.PostJSON(s.loginPath, input))
	if err != nil {
		s.logger.Warn("Login rejected", zap.String("username", input.Username), zap.Error(err))
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if result.Token == "" {
		return nil, fmt.Errorf("login failed: %w: no token in reply", httpclient.ErrMalformedEnvelope)
	}

	if s.cache != nil {
		s.cache.Clear()
	}
	if err := s.store.Replace(ctx, session.Session{Token: result.SessionToken()}); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	profile, err := s.FetchProfile(ctx)
	if err != nil {
		s.logger.Warn("Failed to load profile after login", zap.Error(err))
		return nil, nil
	}
	s.logger.Info("User logged in successfully", zap.String("username", profile.Username))
	return profile, nil
}

func (s *LoginService) validateInput(input LoginInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	verr := shared.NewValidationError()
	for _, fe := range fieldErrs {
		switch fe.Field() {
		case "Username":
			verr.Add("username", MsgUsernameRequired)
		case "Password":
			verr.Add("password", MsgPasswordRequired)
		}
	}
	return verr
}

// FetchProfile loads the signed-in operator and stores it in the session
func (s *LoginService) FetchProfile(ctx context.Context) (*session.Profile, error) {
	profile, err := httpclient.Send[session.Profile](ctx, s.client, httpclient.Get(s.profilePath, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if err := s.store.SetUser(ctx, &profile); err != nil {
		return nil, fmt.Errorf("failed to store profile: %w", err)
	}
	return &profile, nil
}

// Logout drops the session, its persisted copy and every cached query
func (s *LoginService) Logout(ctx context.Context) error {
	_, err := s.store.Clear(ctx)
	if s.cache != nil {
		s.cache.Clear()
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info("User logged out")
	return nil
}
