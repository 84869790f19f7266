package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
)

// AccountDTO is the transport shape that omits credentials.
type AccountDTO struct {
	ID          uuid.UUID         `json:"id"`
	Email       string            `json:"email"`
	Role        enums.AccountRole `json:"role"`
	CustomerID  *uuid.UUID        `json:"customerId,omitempty"`
	LastLoginAt *time.Time        `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// CreateAccountDTO holds the data required to persist a new account.
type CreateAccountDTO struct {
	Email        string
	PasswordHash string
	Role         enums.AccountRole
	CustomerID   *uuid.UUID
}

func FromModel(a *models.Account) *AccountDTO {
	if a == nil {
		return nil
	}
	return &AccountDTO{
		ID:          a.ID,
		Email:       a.Email,
		Role:        a.Role,
		CustomerID:  a.CustomerID,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}

func (c CreateAccountDTO) ToModel() *models.Account {
	role := c.Role
	if role == "" {
		role = enums.AccountRoleCustomer
	}
	return &models.Account{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Role:         role,
		CustomerID:   c.CustomerID,
	}
}
