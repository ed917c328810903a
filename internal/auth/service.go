package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Service struct {
	users    UserStore
	verifier Verifier
	tokens   *TokenIssuer
	logger   *slog.Logger
}

func NewService(users UserStore, verifier Verifier, tokens *TokenIssuer, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		verifier: verifier,
		tokens:   tokens,
		logger:   logger,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Address  string
	Phone    string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrDuplicateAccount
	}

	digest, err := s.verifier.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: digest,
		Address:      in.Address,
		Phone:        in.Phone,
	}
	// The unique index still guards against a concurrent registration.
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login returns the account and a bearer token. Unknown accounts and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || !s.verifier.Verify(password, u.PasswordHash) {
		s.logger.WarnContext(ctx, "login rejected")
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.Identity())
	if err != nil {
		return nil, "", err
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return u, token, nil
}
