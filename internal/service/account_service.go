package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/metrics"
)

// userRepository is the subset of store.UserStore that AccountService requires.
type userRepository interface {
	List(ctx context.Context) ([]*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, email, password string) error
}

// companyRepository is the subset of store.CompanyStore that AccountService requires.
type companyRepository interface {
	List(ctx context.Context) ([]domain.Company, error)
	Create(ctx context.Context, name string) error
}

type AccountService struct {
	users     userRepository
	companies companyRepository
	metrics   *metrics.Metrics
	logger    *slog.Logger

	hashCost int
}

func NewAccountService(users userRepository, companies companyRepository, m *metrics.Metrics, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:     users,
		companies: companies,
		metrics:   m,
		logger:    logger,
		hashCost:  bcrypt.DefaultCost,
	}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Company   string
	Password  string
}

// Register creates a user. The e-mail is the login identifier and is stored
// lower-cased. When companies are configured the company must be one of them.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	user, err := s.register(ctx, in)
	switch {
	case err == nil:
		s.metrics.Registration("success")
		s.logger.Info("user registered", "email", user.Email, "company", user.Company)
	case errors.Is(err, domain.ErrDuplicateIdentity):
		s.metrics.Registration("duplicate")
	case errors.Is(err, domain.ErrValidation):
		s.metrics.Registration("invalid")
	default:
		s.metrics.Registration("error")
	}
	return user, err
}

func (s *AccountService) register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	user := &domain.User{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     normalizeEmail(in.Email),
		Company:   strings.TrimSpace(in.Company),
	}

	var errs []domain.FieldError
	if user.Email == "" {
		errs = append(errs, domain.FieldError{Field: "email", Message: "is required"})
	} else if _, err := mail.ParseAddress(user.Email); err != nil {
		errs = append(errs, domain.FieldError{Field: "email", Message: "is not a valid address"})
	}
	if in.Password == "" {
		errs = append(errs, domain.FieldError{Field: "password", Message: "is required"})
	}

	companies, err := s.companies.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(companies) > 0 && !slices.ContainsFunc(companies, func(c domain.Company) bool { return c.Name == user.Company }) {
		errs = append(errs, domain.FieldError{Field: "company", Message: "must be one of the listed companies"})
	}
	if err := domain.NewValidationErrors(errs); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hash)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the credentials and returns a fresh session. A stored
// plaintext password that matches is replaced by its hash.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		s.metrics.Login("error")
		return nil, err
	}
	if user == nil || password == "" || !s.checkPassword(ctx, user, password) {
		s.metrics.Login("failure")
		s.logger.Info("login failed", "email", normalizeEmail(email))
		return nil, domain.ErrInvalidCredentials
	}

	s.metrics.Login("success")
	s.logger.Info("user logged in", "email", user.Email)
	return &domain.Session{
		UserID:  normalizeEmail(user.Email),
		Company: user.Company,
	}, nil
}

func (s *AccountService) checkPassword(ctx context.Context, user *domain.User, password string) bool {
	if isHash(user.Password) {
		return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
	}

	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return false
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		s.logger.Error("failed to hash legacy password", "email", user.Email, "error", err)
		return true
	}
	if err := s.users.UpdatePassword(ctx, user.Email, string(hash)); err != nil {
		s.logger.Error("failed to upgrade legacy password", "email", user.Email, "error", err)
		return true
	}
	s.logger.Info("upgraded legacy password", "email", user.Email)
	return true
}

// ListUsers returns every registered user. Password hashes are cleared.
func (s *AccountService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		u.Password = ""
	}
	return users, nil
}

func (s *AccountService) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	return s.companies.List(ctx)
}

func (s *AccountService) AddCompany(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.NewValidationError("company", "is required")
	}
	if err := s.companies.Create(ctx, name); err != nil {
		return err
	}
	s.logger.Info("company added", "company", name)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isHash reports whether stored looks like a bcrypt hash rather than a
// legacy plaintext password.
func isHash(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}
