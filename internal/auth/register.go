package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/customers"
	"github.com/angelmondragon/bakehouse-backend/internal/users"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/db"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/security"
)

// RegisterService creates accounts. Customer accounts attach to the customer
// record that guest checkouts with the same email already use.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.AccountDTO, error)
	RegisterAdmin(ctx context.Context, req AdminRegisterRequest) (*users.AccountDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          *db.Client
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{db: params.DB, passwordCfg: params.PasswordConfig}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.AccountDTO, error) {
	email := customers.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(req.FirstName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "firstName is required")
	}
	return s.create(ctx, email, req.Password, enums.AccountRoleCustomer, &models.Contact{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     email,
		Phone:     req.Phone,
	})
}

func (s *registerService) RegisterAdmin(ctx context.Context, req AdminRegisterRequest) (*users.AccountDTO, error) {
	email := customers.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	return s.create(ctx, email, req.Password, enums.AccountRoleAdmin, nil)
}

func (s *registerService) create(ctx context.Context, email, password string, role enums.AccountRole, contact *models.Contact) (*users.AccountDTO, error) {
	passwordHash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "hash password")
	}

	var created *users.AccountDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		accountRepo := users.NewRepository(tx)
		if _, err := accountRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check account email")
		}

		dto := users.CreateAccountDTO{Email: email, PasswordHash: passwordHash, Role: role}
		if contact != nil {
			customerSvc, err := customers.NewService(customers.NewRepository(tx))
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build customer service")
			}
			customer, err := customerSvc.FindOrCreate(ctx, *contact)
			if err != nil {
				return err
			}
			dto.CustomerID = &customer.ID
		}

		account, err := accountRepo.Create(ctx, dto)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
		}
		created = users.FromModel(account)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
