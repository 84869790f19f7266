package promo

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

type stubOrders struct {
	count int64
}

func (s *stubOrders) CountConfirmedWithPromo(context.Context, uuid.UUID, uuid.UUID) (int64, error) {
	return s.count, nil
}

var singapore = time.FixedZone("SGT", 8*3600)

func newPromoService(t *testing.T) (Service, *Repository, *stubOrders) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	orders := &stubOrders{}
	clock := calendar.Clock{
		Now:      func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, singapore) },
		Location: singapore,
	}
	svc, err := NewService(repo, orders, clock)
	require.NoError(t, err)
	return svc, repo, orders
}

func baseTerms() Terms {
	return Terms{
		Name:      "Spring",
		Type:      enums.PromoCodePercentage,
		Amount:    decimal.NewFromInt(10),
		StartDate: types.MustParseDate("2024-05-01"),
		Total:     5,
	}
}

func rejection(t *testing.T, err error) Rejection {
	t.Helper()
	require.Error(t, err)
	reason, ok := RejectionOf(err)
	require.True(t, ok, "expected a promo rejection, got %v", err)
	return reason
}

func TestValidateSharedCode(t *testing.T) {
	svc, _, _ := newPromoService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateInput{Terms: baseTerms(), Code: "SAVE10"})
	require.NoError(t, err)

	applied, err := svc.Validate(ctx, ValidateInput{Code: " Save10 ", Subtotal: decimal.NewFromInt(25)})
	require.NoError(t, err)
	assert.Equal(t, "save10", applied.UsedCode)
	assert.True(t, ComputeDiscount(applied, decimal.NewFromInt(25), decimal.NewFromInt(5)).Equal(decimal.NewFromInt(2)))

	assert.Equal(t, RejectInvalidOrExpired, rejection(t, mustErr(svc.Validate(ctx, ValidateInput{Code: "nope"}))))
	assert.Equal(t, RejectInvalidOrExpired, rejection(t, mustErr(svc.Validate(ctx, ValidateInput{Code: ""}))))
}

func mustErr(_ *Applied, err error) error { return err }

func TestValidateCheckOrder(t *testing.T) {
	ctx := context.Background()
	customer := uuid.New()
	future := types.MustParseDate("2024-05-11")
	yesterday := types.MustParseDate("2024-05-09")
	today := types.MustParseDate("2024-05-10")

	cases := []struct {
		name   string
		mutate func(*Terms)
		used   int
		orders int64
		input  ValidateInput
		want   Rejection
	}{
		{"cap reached before min spend", func(t *Terms) { t.MinSpending = decimal.NewFromInt(100) }, 5, 0,
			ValidateInput{Subtotal: decimal.NewFromInt(1)}, RejectInvalidOrExpired},
		{"below minimum spend", func(t *Terms) { t.MinSpending = decimal.NewFromInt(100) }, 0, 0,
			ValidateInput{Subtotal: decimal.NewFromInt(99)}, RejectBelowMinimumSpend},
		{"not started", func(t *Terms) { t.StartDate = future }, 0, 0,
			ValidateInput{Subtotal: decimal.NewFromInt(50)}, RejectInvalidOrExpired},
		{"starts later today", func(t *Terms) { t.StartDate = today; t.StartTime = "3:00 PM" }, 0, 0,
			ValidateInput{Subtotal: decimal.NewFromInt(50)}, RejectInvalidOrExpired},
		{"ended", func(t *Terms) { t.EndDate = &yesterday }, 0, 0,
			ValidateInput{Subtotal: decimal.NewFromInt(50)}, RejectInvalidOrExpired},
		{"ended this morning", func(t *Terms) { t.EndDate = &today; t.EndTime = "9:00 AM" }, 0, 0,
			ValidateInput{Subtotal: decimal.NewFromInt(50)}, RejectInvalidOrExpired},
		{"already used by customer", func(t *Terms) { t.IsOnePerCustomer = true }, 0, 1,
			ValidateInput{Subtotal: decimal.NewFromInt(50), CustomerID: &customer}, RejectAlreadyUsed},
		{"admin only", func(t *Terms) { t.IsAdminOnly = true }, 0, 0,
			ValidateInput{Subtotal: decimal.NewFromInt(50), Role: enums.AccountRoleCustomer}, RejectAdminOnly},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, orders := newPromoService(t)
			terms := baseTerms()
			tc.mutate(&terms)
			promo, err := svc.Create(ctx, CreateInput{Terms: terms, Code: "spring"})
			require.NoError(t, err)
			if tc.used > 0 {
				require.NoError(t, repo.DB(ctx).Model(promo).Update("used", tc.used).Error)
			}
			orders.count = tc.orders

			tc.input.Code = "spring"
			assert.Equal(t, tc.want, rejection(t, mustErr(svc.Validate(ctx, tc.input))))
		})
	}
}

func TestValidateEndDateCoversWholeDay(t *testing.T) {
	svc, _, _ := newPromoService(t)
	ctx := context.Background()
	today := types.MustParseDate("2024-05-10")
	terms := baseTerms()
	terms.EndDate = &today
	_, err := svc.Create(ctx, CreateInput{Terms: terms, Code: "lastday"})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, ValidateInput{Code: "lastday", Subtotal: decimal.NewFromInt(10)})
	require.NoError(t, err)
}

func TestAdminOnlyCodeForAdmins(t *testing.T) {
	svc, _, _ := newPromoService(t)
	ctx := context.Background()
	terms := baseTerms()
	terms.IsAdminOnly = true
	_, err := svc.Create(ctx, CreateInput{Terms: terms, Code: "staff"})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, ValidateInput{Code: "staff", Subtotal: decimal.NewFromInt(10), Role: enums.AccountRoleAdmin})
	require.NoError(t, err)
}

func TestPoolCodesAreSingleUse(t *testing.T) {
	svc, repo, _ := newPromoService(t)
	ctx := context.Background()
	terms := baseTerms()
	terms.Total = 3
	promo, err := svc.Create(ctx, CreateInput{Terms: terms, IsMultiCode: true})
	require.NoError(t, err)
	require.Len(t, promo.PoolCodes, 3)
	for _, pc := range promo.PoolCodes {
		assert.Len(t, pc.Code, poolCodeLength)
	}

	code := promo.PoolCodes[0].Code
	customer := uuid.New()
	applied, err := svc.Validate(ctx, ValidateInput{Code: code, Subtotal: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.NoError(t, svc.MarkUsed(ctx, applied, &customer))

	assert.Equal(t, RejectInvalidOrExpired, rejection(t, mustErr(svc.Validate(ctx, ValidateInput{Code: code, Subtotal: decimal.NewFromInt(10)}))))
	assert.Equal(t, RejectInvalidOrExpired, rejection(t, svc.MarkUsed(ctx, applied, &customer)))

	reloaded, err := repo.FindByID(ctx, promo.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Used)
	assert.True(t, reloaded.PoolCodes[len(reloaded.PoolCodes)-1].Used, "used codes sort last")

	other := promo.PoolCodes[1].Code
	_, err = svc.Validate(ctx, ValidateInput{Code: other, Subtotal: decimal.NewFromInt(10)})
	require.NoError(t, err)
}

func TestMarkUsedSharedCodeReachesCap(t *testing.T) {
	svc, _, _ := newPromoService(t)
	ctx := context.Background()
	terms := baseTerms()
	terms.Total = 1
	_, err := svc.Create(ctx, CreateInput{Terms: terms, Code: "once"})
	require.NoError(t, err)

	applied, err := svc.Validate(ctx, ValidateInput{Code: "once", Subtotal: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.NoError(t, svc.MarkUsed(ctx, applied, nil))

	assert.Equal(t, RejectInvalidOrExpired, rejection(t, mustErr(svc.Validate(ctx, ValidateInput{Code: "once", Subtotal: decimal.NewFromInt(10)}))))
}

func TestCreateRejectsDuplicateActiveCode(t *testing.T) {
	svc, _, _ := newPromoService(t)
	ctx := context.Background()
	first, err := svc.Create(ctx, CreateInput{Terms: baseTerms(), Code: "dup"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Terms: baseTerms(), Code: "DUP"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.SetActive(ctx, first.ID, false)
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateInput{Terms: baseTerms(), Code: "dup"})
	require.NoError(t, err)

	_, err = svc.SetActive(ctx, first.ID, true)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	_, err = svc.SetActive(ctx, second.ID, false)
	require.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newPromoService(t)
	ctx := context.Background()

	tooMuch := baseTerms()
	tooMuch.Amount = decimal.NewFromInt(150)
	_, err := svc.Create(ctx, CreateInput{Terms: tooMuch, Code: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	badTime := baseTerms()
	badTime.StartTime = "teatime"
	_, err = svc.Create(ctx, CreateInput{Terms: badTime, Code: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	unlimitedPool := baseTerms()
	unlimitedPool.IsUnlimited = true
	_, err = svc.Create(ctx, CreateInput{Terms: unlimitedPool, IsMultiCode: true})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, CreateInput{Terms: baseTerms()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateFreezesPricingOnceUsed(t *testing.T) {
	svc, repo, _ := newPromoService(t)
	ctx := context.Background()
	promo, err := svc.Create(ctx, CreateInput{Terms: baseTerms(), Code: "freeze"})
	require.NoError(t, err)

	terms := baseTerms()
	terms.Amount = decimal.NewFromInt(20)
	terms.Tags = []string{"vip", "vip", " "}
	updated, err := svc.Update(ctx, promo.ID, UpdateInput{Terms: terms})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, []string{"vip"}, updated.Tags)

	require.NoError(t, repo.DB(ctx).Model(&models.PromoCode{}).Where("id = ?", promo.ID).Update("used", 1).Error)
	terms.Amount = decimal.NewFromInt(50)
	end := types.MustParseDate("2024-06-30")
	terms.EndDate = &end
	updated, err = svc.Update(ctx, promo.ID, UpdateInput{Terms: terms})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(20)))
	require.NotNil(t, updated.EndDate)
	assert.Equal(t, end, *updated.EndDate)

	_, err = svc.Update(ctx, uuid.New(), UpdateInput{Terms: terms})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListAndTags(t *testing.T) {
	svc, _, _ := newPromoService(t)
	ctx := context.Background()
	for _, tc := range []struct {
		code string
		tags []string
	}{
		{"summer", []string{"seasonal"}},
		{"winter", []string{"seasonal", "holiday"}},
		{"staff", []string{"internal"}},
	} {
		terms := baseTerms()
		terms.Name = tc.code + " campaign"
		terms.Tags = tc.tags
		_, err := svc.Create(ctx, CreateInput{Terms: terms, Code: tc.code})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, ListQuery{Keyword: "SUM"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "summer", page.Items[0].Code)

	page, err = svc.List(ctx, ListQuery{Tags: []string{"seasonal"}})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = svc.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)

	_, err = svc.List(ctx, ListQuery{Cursor: "%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	tags, err := svc.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"holiday", "internal", "seasonal"}, tags)
}

func TestExportPool(t *testing.T) {
	svc, _, _ := newPromoService(t)
	ctx := context.Background()
	terms := baseTerms()
	terms.Total = 2
	promo, err := svc.Create(ctx, CreateInput{Terms: terms, IsMultiCode: true})
	require.NoError(t, err)

	data, err := svc.ExportPool(ctx, promo.ID)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(poolSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Code", rows[0][0])
	assert.Equal(t, "FALSE", rows[1][1])

	shared, err := svc.Create(ctx, CreateInput{Terms: baseTerms(), Code: "plain"})
	require.NoError(t, err)
	_, err = svc.ExportPool(ctx, shared.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}
