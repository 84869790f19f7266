// Package seed loads reference data (settings, delivery options and the
// catalog) from a YAML file into the database.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// File is the document layout of a seed file.
type File struct {
	Settings        *Settings        `yaml:"settings"`
	DeliveryMethods []DeliveryMethod `yaml:"deliveryMethods"`
	Outskirts       []Outskirt       `yaml:"outskirts"`
	Zones           []Zone           `yaml:"zones"`
	Products        []Product        `yaml:"products"`
	Bundles         []Bundle         `yaml:"bundles"`
	SliceBoxes      []SliceBox       `yaml:"sliceBoxes"`
}

type Settings struct {
	MinAmount             decimal.Decimal `yaml:"minAmount"`
	NotifyLowStock        int             `yaml:"notifyLowStock"`
	PreparationDays       int             `yaml:"preparationDays"`
	DeliveryDays          int             `yaml:"deliveryDays"`
	DeliveryNextDayTime   string          `yaml:"deliveryNextDayTime"`
	BlackoutWeekday       *int            `yaml:"blackoutWeekday"`
	BlackoutDates         []string        `yaml:"blackoutDates"`
	PeakDaySurchargePrice decimal.Decimal `yaml:"peakDaySurchargePrice"`
	PeakDates             []string        `yaml:"peakDates"`
	MinForDeliveryActive  bool            `yaml:"minForDeliveryActive"`
	MinForDeliveryAmount  decimal.Decimal `yaml:"minForDeliveryAmount"`
	DeliveryDiscount      decimal.Decimal `yaml:"deliveryDiscount"`
	FreeDelivery          bool            `yaml:"freeDelivery"`
}

type DeliveryMethod struct {
	Name           string          `yaml:"name"`
	Type           string          `yaml:"type"`
	Price          decimal.Decimal `yaml:"price"`
	NeedPostalCode bool            `yaml:"needPostalCode"`
	Inactive       bool            `yaml:"inactive"`
	TimeSlots      []TimeSlot      `yaml:"timeSlots"`
}

type TimeSlot struct {
	Label string           `yaml:"label"`
	Price *decimal.Decimal `yaml:"price"`
}

type Outskirt struct {
	Name     string          `yaml:"name"`
	Prefixes []string        `yaml:"prefixes"`
	Price    decimal.Decimal `yaml:"price"`
}

type Zone struct {
	Name     string   `yaml:"name"`
	Prefixes []string `yaml:"prefixes"`
}

// Stock mirrors models.StockPolicy.
type Stock struct {
	Restocks       []int  `yaml:"restocks"`
	FixedStock     *int   `yaml:"fixedStock"`
	FixedStockFrom string `yaml:"fixedStockFrom"`
}

type Product struct {
	Name      string          `yaml:"name"`
	Slug      string          `yaml:"slug"`
	Category  string          `yaml:"category"`
	Price     decimal.Decimal `yaml:"price"`
	IsSpecial bool            `yaml:"special"`
	Inactive  bool            `yaml:"inactive"`
	Stock     Stock           `yaml:"stock"`
	Variants  []Variant       `yaml:"variants"`
}

type Variant struct {
	Name     string          `yaml:"name"`
	Price    decimal.Decimal `yaml:"price"`
	Inactive bool            `yaml:"inactive"`
	Stock    Stock           `yaml:"stock"`
}

type Bundle struct {
	Name  string          `yaml:"name"`
	Price decimal.Decimal `yaml:"price"`
	Items []BundleItem    `yaml:"items"`
}

// BundleItem references catalog entries by slug and variant name.
type BundleItem struct {
	Product string `yaml:"product"`
	Variant string `yaml:"variant"`
	Qty     int    `yaml:"qty"`
}

type SliceBox struct {
	Name  string          `yaml:"name"`
	Price decimal.Decimal `yaml:"price"`
	Slots int             `yaml:"slots"`
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode seed file")
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if s := f.Settings; s != nil {
		if s.PreparationDays < 0 || s.DeliveryDays <= 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "settings: preparationDays must be >= 0 and deliveryDays > 0")
		}
		if s.BlackoutWeekday != nil && (*s.BlackoutWeekday < models.NoBlackoutWeekday || *s.BlackoutWeekday > 6) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "settings: blackoutWeekday must be between -1 and 6")
		}
		for _, d := range append(append([]string{}, s.BlackoutDates...), s.PeakDates...) {
			if _, err := types.ParseDate(d); err != nil {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "settings: %v", err)
			}
		}
	}
	for _, m := range f.DeliveryMethods {
		if m.Name == "" {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "delivery method name required")
		}
		if _, err := enums.ParseDeliveryMethodType(m.Type); err != nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "delivery method %q: %v", m.Name, err)
		}
	}
	slugs := make(map[string]*Product, len(f.Products))
	for i := range f.Products {
		p := &f.Products[i]
		if p.Name == "" {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "product name required")
		}
		if p.Slug == "" {
			p.Slug = slugify(p.Name)
		}
		if _, dup := slugs[p.Slug]; dup {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "duplicate product slug %q", p.Slug)
		}
		slugs[p.Slug] = p
		if err := p.Stock.validate(p.Name); err != nil {
			return err
		}
		for _, v := range p.Variants {
			if err := v.Stock.validate(p.Name + "/" + v.Name); err != nil {
				return err
			}
		}
	}
	for _, b := range f.Bundles {
		for _, item := range b.Items {
			p, ok := slugs[item.Product]
			if !ok {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "bundle %q references unknown product %q", b.Name, item.Product)
			}
			if item.Qty <= 0 {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "bundle %q: qty must be positive", b.Name)
			}
			if item.Variant != "" && !p.hasVariant(item.Variant) {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "bundle %q references unknown variant %q of %q", b.Name, item.Variant, item.Product)
			}
		}
	}
	return nil
}

func (s Stock) validate(name string) error {
	if len(s.Restocks) != 0 && len(s.Restocks) != 7 {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "%s: restocks needs one entry per weekday", name)
	}
	if s.FixedStockFrom != "" {
		if _, err := types.ParseDate(s.FixedStockFrom); err != nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "%s: %v", name, err)
		}
	}
	return nil
}

func (s Stock) policy() models.StockPolicy {
	policy := models.StockPolicy{
		IsAutoRestock: len(s.Restocks) > 0,
		Restocks:      s.Restocks,
	}
	if s.FixedStock != nil {
		policy.IsFixedStock = true
		policy.FixedStock = *s.FixedStock
		if s.FixedStockFrom != "" {
			d := types.MustParseDate(s.FixedStockFrom)
			policy.FixedStockStartDate = &d
		}
	}
	return policy
}

func (p *Product) hasVariant(name string) bool {
	for _, v := range p.Variants {
		if v.Name == name {
			return true
		}
	}
	return false
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Result summarises an Apply run. Created lists products inserted for the
// first time so their ledger rows can be seeded.
type Result struct {
	Settings        bool
	DeliveryMethods int
	Outskirts       int
	Zones           int
	Products        int
	Bundles         int
	SliceBoxes      int
	Created         []*models.Product
}

// Apply upserts the file's rows. Rows are matched by name (products by slug)
// so re-running a seed updates in place.
func (f *File) Apply(ctx context.Context, tx *gorm.DB) (*Result, error) {
	if tx == nil {
		return nil, errors.New("database required")
	}
	tx = tx.WithContext(ctx)
	res := &Result{}

	if f.Settings != nil {
		if err := f.applySettings(tx); err != nil {
			return nil, fmt.Errorf("seed settings: %w", err)
		}
		res.Settings = true
	}
	for _, m := range f.DeliveryMethods {
		if err := applyDeliveryMethod(tx, m); err != nil {
			return nil, fmt.Errorf("seed delivery method %q: %w", m.Name, err)
		}
		res.DeliveryMethods++
	}
	for _, o := range f.Outskirts {
		var row models.Outskirt
		if err := firstOrNew(tx, &row, "name = ?", o.Name); err != nil {
			return nil, err
		}
		row.Name, row.Prefixes, row.Price, row.Active = o.Name, o.Prefixes, o.Price, true
		if err := tx.Save(&row).Error; err != nil {
			return nil, fmt.Errorf("seed outskirt %q: %w", o.Name, err)
		}
		res.Outskirts++
	}
	for _, z := range f.Zones {
		var row models.DeliveryZone
		if err := firstOrNew(tx, &row, "name = ?", z.Name); err != nil {
			return nil, err
		}
		row.Name, row.Prefixes = z.Name, z.Prefixes
		if err := tx.Save(&row).Error; err != nil {
			return nil, fmt.Errorf("seed zone %q: %w", z.Name, err)
		}
		res.Zones++
	}

	bySlug := make(map[string]*models.Product, len(f.Products))
	for _, p := range f.Products {
		product, created, err := applyProduct(tx, p)
		if err != nil {
			return nil, fmt.Errorf("seed product %q: %w", p.Name, err)
		}
		bySlug[p.Slug] = product
		if created {
			res.Created = append(res.Created, product)
		}
		res.Products++
	}
	for _, b := range f.Bundles {
		items := make([]models.BundleItem, 0, len(b.Items))
		for _, item := range b.Items {
			product := bySlug[item.Product]
			entry := models.BundleItem{ProductID: product.ID, Qty: item.Qty}
			if item.Variant != "" {
				for _, v := range product.Variants {
					if v.Name == item.Variant {
						id := v.ID
						entry.VariantID = &id
					}
				}
			}
			items = append(items, entry)
		}
		var row models.Bundle
		if err := firstOrNew(tx, &row, "name = ?", b.Name); err != nil {
			return nil, err
		}
		row.Name, row.Price, row.Items, row.Active = b.Name, b.Price, items, true
		if err := tx.Save(&row).Error; err != nil {
			return nil, fmt.Errorf("seed bundle %q: %w", b.Name, err)
		}
		res.Bundles++
	}
	for _, s := range f.SliceBoxes {
		var row models.SliceBoxOption
		if err := firstOrNew(tx, &row, "name = ?", s.Name); err != nil {
			return nil, err
		}
		row.Name, row.Price, row.Slots, row.Active = s.Name, s.Price, s.Slots, true
		if err := tx.Save(&row).Error; err != nil {
			return nil, fmt.Errorf("seed slice box %q: %w", s.Name, err)
		}
		res.SliceBoxes++
	}
	return res, nil
}

func (f *File) applySettings(tx *gorm.DB) error {
	var row models.Setting
	if err := firstOrNew(tx, &row); err != nil {
		return err
	}
	s := f.Settings
	blackout := models.NoBlackoutWeekday
	if s.BlackoutWeekday != nil {
		blackout = *s.BlackoutWeekday
	}
	row.MinAmount = s.MinAmount
	row.NotifyLowStock = s.NotifyLowStock
	row.PreparationDays = s.PreparationDays
	row.DeliveryDays = s.DeliveryDays
	row.DeliveryNextDayTime = s.DeliveryNextDayTime
	row.BlackoutWeekday = blackout
	row.BlackoutDates = s.BlackoutDates
	row.PeakDaySurchargePrice = s.PeakDaySurchargePrice
	row.PeakDates = s.PeakDates
	row.MinForDeliveryActive = s.MinForDeliveryActive
	row.MinForDeliveryAmount = s.MinForDeliveryAmount
	row.DeliveryDiscount = s.DeliveryDiscount
	row.FreeDelivery = s.FreeDelivery
	return tx.Save(&row).Error
}

func applyDeliveryMethod(tx *gorm.DB, m DeliveryMethod) error {
	var row models.DeliveryMethod
	if err := firstOrNew(tx, &row, "name = ?", m.Name); err != nil {
		return err
	}
	row.Name = m.Name
	row.Type = enums.DeliveryMethodType(m.Type)
	row.Price = m.Price
	row.NeedPostalCode = m.NeedPostalCode
	row.Active = !m.Inactive
	if err := tx.Omit("TimeSlots").Save(&row).Error; err != nil {
		return err
	}
	for _, s := range m.TimeSlots {
		var slot models.DeliveryTimeSlot
		if err := firstOrNew(tx, &slot, "method_id = ? AND label = ?", row.ID, s.Label); err != nil {
			return err
		}
		slot.MethodID, slot.Label, slot.Price, slot.Active = row.ID, s.Label, s.Price, true
		if err := tx.Save(&slot).Error; err != nil {
			return err
		}
	}
	return nil
}

func applyProduct(tx *gorm.DB, p Product) (*models.Product, bool, error) {
	var row models.Product
	if err := firstOrNew(tx, &row, "slug = ?", p.Slug); err != nil {
		return nil, false, err
	}
	created := row.CreatedAt.IsZero()
	row.Name = p.Name
	row.Slug = p.Slug
	row.Category = p.Category
	row.Price = p.Price
	row.IsSpecial = p.IsSpecial
	row.Active = !p.Inactive
	row.StockPolicy = p.Stock.policy()
	if err := tx.Omit("Variants").Save(&row).Error; err != nil {
		return nil, false, err
	}
	row.Variants = row.Variants[:0]
	for _, v := range p.Variants {
		var variant models.ProductVariant
		if err := firstOrNew(tx, &variant, "product_id = ? AND name = ?", row.ID, v.Name); err != nil {
			return nil, false, err
		}
		variant.ProductID = row.ID
		variant.Name = v.Name
		variant.Price = v.Price
		variant.Active = !v.Inactive
		variant.StockPolicy = v.Stock.policy()
		if err := tx.Save(&variant).Error; err != nil {
			return nil, false, err
		}
		row.Variants = append(row.Variants, variant)
	}
	return &row, created, nil
}

// firstOrNew loads the first row matching conds into dest and leaves dest
// zeroed when there is none.
func firstOrNew(tx *gorm.DB, dest any, conds ...any) error {
	err := tx.Order("created_at ASC").First(dest, conds...).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Ledger opens stock rows for newly created products.
type Ledger interface {
	EnsureRecordsForProduct(ctx context.Context, product *models.Product) (int, error)
}

// Run applies the file in one transaction, then opens ledger rows for the
// products it created. A nil ledger skips the second step.
func Run(ctx context.Context, db txRunner, ledger Ledger, f *File) (*Result, error) {
	if db == nil {
		return nil, errors.New("database required")
	}
	if f == nil {
		return nil, errors.New("seed file required")
	}
	var res *Result
	err := db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = f.Apply(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return res, nil
	}
	for _, product := range res.Created {
		if _, err := ledger.EnsureRecordsForProduct(ctx, product); err != nil {
			return res, fmt.Errorf("seed stock for %q: %w", product.Slug, err)
		}
	}
	return res, nil
}
