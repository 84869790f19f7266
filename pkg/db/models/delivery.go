package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
)

// DeliveryMethod is a way of getting an order to the customer, with optional time slots.
type DeliveryMethod struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	Name           string                   `gorm:"column:name;not null"`
	Type           enums.DeliveryMethodType `gorm:"column:type;type:text;not null"`
	Price          decimal.Decimal          `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	NeedPostalCode bool                     `gorm:"column:need_postal_code;not null;default:false"`
	Active         bool                     `gorm:"column:active;not null"`
	TimeSlots      []DeliveryTimeSlot       `gorm:"foreignKey:MethodID"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *DeliveryMethod) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// TimeSlot returns the slot with the given id.
func (m *DeliveryMethod) TimeSlot(id uuid.UUID) (*DeliveryTimeSlot, bool) {
	for i := range m.TimeSlots {
		if m.TimeSlots[i].ID == id {
			return &m.TimeSlots[i], true
		}
	}
	return nil, false
}

// DeliveryTimeSlot is a delivery window. A nil Price falls back to the method price.
type DeliveryTimeSlot struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	MethodID  uuid.UUID        `gorm:"column:method_id;type:uuid;not null;index"`
	Label     string           `gorm:"column:label;not null"`
	Price     *decimal.Decimal `gorm:"column:price;type:numeric(12,2)"`
	Active    bool             `gorm:"column:active;not null"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (s *DeliveryTimeSlot) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// Outskirt prices deliveries to remote postal districts (3-digit prefixes).
type Outskirt struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	Prefixes  []string        `gorm:"column:prefixes;type:jsonb;serializer:json"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Active    bool            `gorm:"column:active;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (o *Outskirt) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// DeliveryZone groups postal sectors (2-digit prefixes) for routing reports.
type DeliveryZone struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Prefixes  []string  `gorm:"column:prefixes;type:jsonb;serializer:json"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (z *DeliveryZone) BeforeCreate(*gorm.DB) error {
	assignID(&z.ID)
	return nil
}
