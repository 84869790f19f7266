package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/pkg/db"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
)

// Service resolves the customer an order is billed to.
type Service interface {
	FindOrCreate(ctx context.Context, contact models.Contact) (*models.Customer, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("customer repository required")
	}
	return &service{repo: repo}, nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindOrCreate matches customers by email. Blank name and phone fields on an
// existing customer are filled from contact.
func (s *service) FindOrCreate(ctx context.Context, contact models.Contact) (*models.Customer, error) {
	email := NormalizeEmail(contact.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup customer")
	}
	if existing != nil {
		if fillBlank(existing, contact) {
			if err := s.repo.Save(ctx, existing); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer")
			}
		}
		return existing, nil
	}

	customer := &models.Customer{
		Email:     email,
		FirstName: strings.TrimSpace(contact.FirstName),
		LastName:  strings.TrimSpace(contact.LastName),
		Phone:     strings.TrimSpace(contact.Phone),
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
		}
		// lost a race with a concurrent checkout for the same email
		existing, err = s.repo.FindByEmail(ctx, email)
		if err != nil || existing == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload customer")
		}
		return existing, nil
	}
	return customer, nil
}

func fillBlank(c *models.Customer, contact models.Contact) bool {
	changed := false
	set := func(field *string, value string) {
		value = strings.TrimSpace(value)
		if *field == "" && value != "" {
			*field = value
			changed = true
		}
	}
	set(&c.FirstName, contact.FirstName)
	set(&c.LastName, contact.LastName)
	set(&c.Phone, contact.Phone)
	return changed
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return customer, nil
}
