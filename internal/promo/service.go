package promo

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
	"github.com/angelmondragon/bakehouse-backend/pkg/pagination"
	"github.com/angelmondragon/bakehouse-backend/pkg/security"
)

const poolCodeLength = 20

// Service is the promo engine plus its back-office operations.
type Service interface {
	Validate(ctx context.Context, input ValidateInput) (*Applied, error)
	MarkUsed(ctx context.Context, applied *Applied, customerID *uuid.UUID) error
	Create(ctx context.Context, input CreateInput) (*models.PromoCode, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.PromoCode, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.PromoCode, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	List(ctx context.Context, query ListQuery) (pagination.Page[PromoDTO], error)
	Tags(ctx context.Context) ([]string, error)
	ExportPool(ctx context.Context, id uuid.UUID) ([]byte, error)
}

type service struct {
	repo   *Repository
	orders OrderQuery
	clock  calendar.Clock
}

func NewService(repo *Repository, orders OrderQuery, clock calendar.Clock) (Service, error) {
	if repo == nil {
		return nil, errors.New("promo repository required")
	}
	if orders == nil {
		return nil, errors.New("order query required")
	}
	return &service{repo: repo, orders: orders, clock: clock}, nil
}

func validateTerms(t Terms) error {
	if !t.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid promo type")
	}
	if t.Amount.IsNegative() || t.MinSpending.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amounts cannot be negative")
	}
	if t.Type == enums.PromoCodePercentage && t.Amount.GreaterThan(money.FromFloat(100)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage cannot exceed 100")
	}
	if t.StartDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start date required")
	}
	for _, clock := range []string{t.StartTime, t.EndTime} {
		if strings.TrimSpace(clock) == "" {
			continue
		}
		if _, err := calendar.ParseCutoff(clock); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid time of day")
		}
	}
	if t.EndDate != nil && t.EndDate.Before(t.StartDate) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end date precedes start date")
	}
	if !t.IsUnlimited && t.Total <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "total must be positive unless unlimited")
	}
	return nil
}

func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func applyWindow(p *models.PromoCode, t Terms) {
	p.StartDate = t.StartDate
	p.StartTime = strings.TrimSpace(t.StartTime)
	p.EndDate = t.EndDate
	p.EndTime = strings.TrimSpace(t.EndTime)
	p.Tags = normalizeTags(t.Tags)
}

func applyPricing(p *models.PromoCode, t Terms) {
	p.Name = strings.TrimSpace(t.Name)
	p.Type = t.Type
	p.Amount = money.Round2(t.Amount)
	p.MinSpending = money.Round2(t.MinSpending)
	p.IsUnlimited = t.IsUnlimited
	p.Total = t.Total
	if t.IsUnlimited {
		p.Total = 0
	}
	p.IsOnePerCustomer = t.IsOnePerCustomer
	p.IsIncludeDeliveryFee = t.IsIncludeDeliveryFee
	p.IsAdminOnly = t.IsAdminOnly
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PromoCode, error) {
	if err := validateTerms(input.Terms); err != nil {
		return nil, err
	}
	promo := &models.PromoCode{Active: true, IsMultiCode: input.IsMultiCode}
	applyPricing(promo, input.Terms)
	applyWindow(promo, input.Terms)

	if input.IsMultiCode {
		if input.IsUnlimited {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "code pools need a fixed total")
		}
		codes, err := generatePool(input.Total)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate pool codes")
		}
		for _, code := range codes {
			promo.PoolCodes = append(promo.PoolCodes, models.PromoPoolCode{Code: code})
		}
	} else {
		code := NormalizeCode(input.Code)
		if code == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "code required")
		}
		exists, err := s.repo.ActiveCodeExists(ctx, code, uuid.Nil)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check promo code")
		}
		if exists {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "code already in use")
		}
		promo.Code = code
	}

	if err := s.repo.Create(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create promo code")
	}
	return promo, nil
}

func generatePool(total int) ([]string, error) {
	seen := make(map[string]struct{}, total)
	codes := make([]string, 0, total)
	for len(codes) < total {
		code, err := security.RandomString(poolCodeLength, security.LowerAlphanumeric)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID, withPool bool) (*models.PromoCode, error) {
	promo, err := s.repo.FindByID(ctx, id, withPool)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}
	if promo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
	}
	return promo, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.PromoCode, error) {
	promo, err := s.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	terms := input.Terms
	if promo.Used > 0 {
		terms.Type = promo.Type
		terms.Total = promo.Total
		terms.IsUnlimited = promo.IsUnlimited
	}
	if err := validateTerms(terms); err != nil {
		return nil, err
	}
	applyWindow(promo, terms)
	if promo.Used == 0 {
		applyPricing(promo, terms)
	}
	if err := s.repo.Save(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save promo code")
	}
	return promo, nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.PromoCode, error) {
	promo, err := s.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if active && !promo.IsMultiCode && !promo.Active {
		exists, err := s.repo.ActiveCodeExists(ctx, promo.Code, promo.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check promo code")
		}
		if exists {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "code already in use")
		}
	}
	promo.Active = active
	if err := s.repo.Save(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save promo code")
	}
	return promo, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	return s.load(ctx, id, true)
}

func (s *service) List(ctx context.Context, query ListQuery) (pagination.Page[PromoDTO], error) {
	if _, err := pagination.ParseCursor(query.Cursor); err != nil {
		return pagination.Page[PromoDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, ListFilter{Keyword: query.Keyword, Tags: query.Tags},
		pagination.Params{Limit: query.Limit, Cursor: query.Cursor})
	if err != nil {
		return pagination.Page[PromoDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promo codes")
	}
	dtos := make([]PromoDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, ToDTO(&rows[i]))
	}
	return pagination.Build(dtos, query.Limit, func(p PromoDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	}), nil
}

func (s *service) Tags(ctx context.Context) ([]string, error) {
	lists, err := s.repo.TagLists(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promo tags")
	}
	set := map[string]struct{}{}
	for _, tags := range lists {
		for _, tag := range tags {
			set[tag] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}
