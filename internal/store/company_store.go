package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/tablestore"
)

type CompanyStore struct {
	store tablestore.Store
}

func NewCompanyStore(s tablestore.Store) *CompanyStore {
	return &CompanyStore{store: s}
}

// List returns the distinct non-blank company names in stored order.
func (s *CompanyStore) List(ctx context.Context) ([]domain.Company, error) {
	t, err := readCollection(ctx, s.store, CompaniesCollection, CompanyColumns)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var companies []domain.Company
	for i := range t.Rows {
		name := strings.TrimSpace(t.Value(i, "company"))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		companies = append(companies, domain.Company{Name: name})
	}
	return companies, nil
}

func (s *CompanyStore) Create(ctx context.Context, name string) error {
	t, err := readCollection(ctx, s.store, CompaniesCollection, CompanyColumns)
	if err != nil {
		return err
	}
	for i := range t.Rows {
		if strings.TrimSpace(t.Value(i, "company")) == name {
			return fmt.Errorf("company %s: %w", name, domain.ErrAlreadyExists)
		}
	}

	return appendToSnapshot(ctx, s.store, CompaniesCollection, t, map[string]string{"company": name})
}
