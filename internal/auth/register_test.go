package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bakehouse-backend/internal/customers"
	"github.com/angelmondragon/bakehouse-backend/internal/users"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/security"
)

func TestRegisterLinksExistingGuestCustomer(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Client(t)
	guest := &models.Customer{Email: "jane@example.com"}
	require.NoError(t, customers.NewRepository(client.DB()).Create(ctx, guest))

	svc, err := NewRegisterService(RegisterServiceParams{DB: client, PasswordConfig: testPassword})
	require.NoError(t, err)

	account, err := svc.Register(ctx, RegisterRequest{FirstName: "Jane", Email: "JANE@example.com", Password: "sourdough"})
	require.NoError(t, err)
	assert.Equal(t, enums.AccountRoleCustomer, account.Role)
	require.NotNil(t, account.CustomerID)
	assert.Equal(t, guest.ID, *account.CustomerID)

	stored, err := users.NewRepository(client.DB()).FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	ok, err := security.VerifyPassword("sourdough", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Register(ctx, RegisterRequest{FirstName: "Jane", Email: "jane@example.com", Password: "sourdough"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestRegisterAdminHasNoCustomer(t *testing.T) {
	ctx := context.Background()
	svc, err := NewRegisterService(RegisterServiceParams{DB: dbtest.Client(t), PasswordConfig: testPassword})
	require.NoError(t, err)

	account, err := svc.RegisterAdmin(ctx, AdminRegisterRequest{Email: "owner@example.com", Password: "croissant"})
	require.NoError(t, err)
	assert.Equal(t, enums.AccountRoleAdmin, account.Role)
	assert.Nil(t, account.CustomerID)

	_, err = svc.Register(ctx, RegisterRequest{Email: "x@example.com", Password: "croissant"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
