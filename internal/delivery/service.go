package delivery

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
)

const (
	outskirtPrefixLen = 3
	zonePrefixLen     = 2
)

// FeeInput selects a method, an optional time slot and the destination.
type FeeInput struct {
	MethodID   uuid.UUID  `json:"methodId" validate:"required"`
	TimeSlotID *uuid.UUID `json:"timeSlotId,omitempty"`
	PostalCode string     `json:"postalCode,omitempty"`
}

// Quote is a priced delivery selection.
type Quote struct {
	Method     *models.DeliveryMethod   `json:"-"`
	TimeSlot   *models.DeliveryTimeSlot `json:"-"`
	Fee        decimal.Decimal          `json:"fee"`
	IsOutskirt bool                     `json:"isOutskirt"`
	ZoneID     *uuid.UUID               `json:"zoneId,omitempty"`
	ZoneName   string                   `json:"zoneName,omitempty"`
}

// NeedsPostalCode reports whether the peak-day surcharge and outskirt pricing apply.
func (q *Quote) NeedsPostalCode() bool {
	return q.Method != nil && q.Method.NeedPostalCode
}

type Service interface {
	Methods(ctx context.Context) ([]models.DeliveryMethod, error)
	Price(ctx context.Context, input FeeInput) (*Quote, error)
	Zones(ctx context.Context) ([]models.DeliveryZone, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("delivery repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Methods(ctx context.Context) ([]models.DeliveryMethod, error) {
	methods, err := s.repo.ListMethods(ctx, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery methods")
	}
	return methods, nil
}

func (s *service) Zones(ctx context.Context) ([]models.DeliveryZone, error) {
	zones, err := s.repo.Zones(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery zones")
	}
	return zones, nil
}

// Price resolves the fee for a selection. A slot price overrides the method
// price, and an active outskirt matching the postal district overrides both
// for methods that deliver to an address.
func (s *service) Price(ctx context.Context, input FeeInput) (*Quote, error) {
	method, err := s.repo.FindMethod(ctx, input.MethodID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery method")
	}
	if method == nil || !method.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery method not available").
			WithDetails(map[string]any{"methodId": input.MethodID.String()})
	}

	quote := &Quote{Method: method, Fee: method.Price}
	if input.TimeSlotID != nil {
		slot, ok := method.TimeSlot(*input.TimeSlotID)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "time slot not available").
				WithDetails(map[string]any{"timeSlotId": input.TimeSlotID.String()})
		}
		quote.TimeSlot = slot
		if slot.Price != nil {
			quote.Fee = *slot.Price
		}
	}

	postal := normalizePostalCode(input.PostalCode)
	if method.NeedPostalCode {
		if postal == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "postal code required for this delivery method")
		}
		outskirt, err := s.outskirtFor(ctx, postal)
		if err != nil {
			return nil, err
		}
		if outskirt != nil {
			quote.Fee = outskirt.Price
			quote.IsOutskirt = true
		}
		zone, err := s.zoneFor(ctx, postal)
		if err != nil {
			return nil, err
		}
		if zone != nil {
			quote.ZoneID = &zone.ID
			quote.ZoneName = zone.Name
		}
	}
	quote.Fee = money.Round2(quote.Fee)
	return quote, nil
}

func normalizePostalCode(code string) string {
	return strings.ReplaceAll(strings.TrimSpace(code), " ", "")
}

func hasPrefix(prefixes []string, postal string, n int) bool {
	if len(postal) < n {
		return false
	}
	head := postal[:n]
	for _, p := range prefixes {
		if strings.TrimSpace(p) == head {
			return true
		}
	}
	return false
}

func (s *service) outskirtFor(ctx context.Context, postal string) (*models.Outskirt, error) {
	outskirts, err := s.repo.ActiveOutskirts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load outskirts")
	}
	for i := range outskirts {
		if hasPrefix(outskirts[i].Prefixes, postal, outskirtPrefixLen) {
			return &outskirts[i], nil
		}
	}
	return nil, nil
}

func (s *service) zoneFor(ctx context.Context, postal string) (*models.DeliveryZone, error) {
	zones, err := s.repo.Zones(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery zones")
	}
	for i := range zones {
		if hasPrefix(zones[i].Prefixes, postal, zonePrefixLen) {
			return &zones[i], nil
		}
	}
	return nil, nil
}
