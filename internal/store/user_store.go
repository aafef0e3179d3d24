package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/tablestore"
)

type UserStore struct {
	store tablestore.Store
}

func NewUserStore(s tablestore.Store) *UserStore {
	return &UserStore{store: s}
}

func (s *UserStore) List(ctx context.Context) ([]*domain.User, error) {
	t, err := readCollection(ctx, s.store, UsersCollection, UserColumns)
	if err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, t.Len())
	for i := range t.Rows {
		users = append(users, userFromRecord(t.Record(i)))
	}
	return users, nil
}

// GetByEmail returns the first user whose e-mail matches case-insensitively,
// or nil when there is none.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	users, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if sameEmail(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

// Create adds a user. The duplicate check and the write are separate store
// operations, so two concurrent registrations of one e-mail can both succeed.
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	t, err := readCollection(ctx, s.store, UsersCollection, UserColumns)
	if err != nil {
		return err
	}
	for i := range t.Rows {
		if sameEmail(t.Value(i, "email"), user.Email) {
			return fmt.Errorf("user %s: %w", user.Email, domain.ErrDuplicateIdentity)
		}
	}

	return appendToSnapshot(ctx, s.store, UsersCollection, t, userRecord(user))
}

// UpdatePassword replaces the stored credential of the user with the given
// e-mail.
func (s *UserStore) UpdatePassword(ctx context.Context, email, password string) error {
	t, err := readCollection(ctx, s.store, UsersCollection, UserColumns)
	if err != nil {
		return err
	}
	col := t.ColumnIndex("password")
	if col < 0 {
		return fmt.Errorf("users collection has no password column")
	}

	for i := range t.Rows {
		if sameEmail(t.Value(i, "email"), email) {
			t.Rows[i][col] = password
			if err := s.store.WriteAll(ctx, UsersCollection, t); err != nil {
				return fmt.Errorf("failed to update password: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func userRecord(u *domain.User) map[string]string {
	return map[string]string{
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"email":      u.Email,
		"company":    u.Company,
		"password":   u.Password,
	}
}

func userFromRecord(rec map[string]string) *domain.User {
	return &domain.User{
		FirstName: rec["first_name"],
		LastName:  rec["last_name"],
		Email:     rec["email"],
		Company:   rec["company"],
		Password:  rec["password"],
	}
}
