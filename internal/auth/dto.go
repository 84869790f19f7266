package auth

import (
	"github.com/angelmondragon/bakehouse-backend/internal/users"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the access token and the signed-in account.
type LoginResponse struct {
	AccessToken string            `json:"accessToken"`
	Account     *users.AccountDTO `json:"account"`
}

// RegisterRequest creates a customer account.
type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Phone     string `json:"phone"`
}

// AdminRegisterRequest contains the credentials for bootstrapping an admin.
type AdminRegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}
