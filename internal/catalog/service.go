package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/bakehouse-backend/internal/stock"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
)

const resolveConcurrency = 8

// Resolved is a priced cart: order line snapshots plus the stock they consume.
type Resolved struct {
	Lines          []models.OrderLine
	Usages         []stock.Usage
	ProductsAmount decimal.Decimal
}

// Service resolves cart lines against the catalog.
type Service interface {
	Resolve(ctx context.Context, lines []CartLine, opts ResolveOptions) (*Resolved, error)
	Product(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Product(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

type resolvedLine struct {
	line   models.OrderLine
	usages []stock.Usage
}

// Resolve looks every line up concurrently and keeps the submitted order.
func (s *service) Resolve(ctx context.Context, lines []CartLine, opts ResolveOptions) (*Resolved, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	results := make([]resolvedLine, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			res, err := s.resolveLine(gctx, line, opts)
			if err != nil {
				if pe := pkgerrors.As(err); pe != nil && pe.Details() == nil {
					return pe.WithDetails(map[string]any{"line": i})
				}
				return err
			}
			res.line.Position = i
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Resolved{ProductsAmount: decimal.Zero}
	var usages []stock.Usage
	for _, res := range results {
		out.Lines = append(out.Lines, res.line)
		out.ProductsAmount = out.ProductsAmount.Add(res.line.Subtotal())
		usages = append(usages, res.usages...)
	}
	out.ProductsAmount = money.Round2(out.ProductsAmount)
	out.Usages = stock.MergeUsages(usages)
	return out, nil
}

func (s *service) resolveLine(ctx context.Context, line CartLine, opts ResolveOptions) (*resolvedLine, error) {
	if line.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	switch line.Kind {
	case enums.OrderLineProduct:
		return s.resolveProduct(ctx, line)
	case enums.OrderLineBundle:
		return s.resolveBundle(ctx, line)
	case enums.OrderLineSliceBox:
		return s.resolveSliceBox(ctx, line)
	case enums.OrderLineCustom:
		if !opts.AllowCustom {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "custom lines are not allowed")
		}
		return resolveCustom(line)
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown line kind %q", line.Kind)
	}
}

func (s *service) sellable(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.Product, *models.ProductVariant, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil || !product.Active {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "product is unavailable").
			WithDetails(map[string]any{"productId": productID})
	}
	if variantID == nil {
		if len(product.Variants) > 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "variant required").
				WithDetails(map[string]any{"productId": productID})
		}
		return product, nil, nil
	}
	variant, ok := product.Variant(*variantID)
	if !ok || !variant.Active {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "variant is unavailable").
			WithDetails(map[string]any{"productId": productID, "variantId": *variantID})
	}
	return product, variant, nil
}

func (s *service) resolveProduct(ctx context.Context, line CartLine) (*resolvedLine, error) {
	if line.ProductID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId required")
	}
	product, variant, err := s.sellable(ctx, *line.ProductID, line.VariantID)
	if err != nil {
		return nil, err
	}
	snapshot := models.OrderLine{
		Kind:      enums.OrderLineProduct,
		ProductID: &product.ID,
		Name:      product.Name,
		Category:  product.Category,
		Price:     product.Price,
		Quantity:  line.Quantity,
	}
	if variant != nil {
		id := variant.ID
		snapshot.VariantID = &id
		snapshot.VariantName = variant.Name
		snapshot.Price = variant.Price
	}
	if product.IsSpecial {
		snapshot.Candles = line.Candles
		snapshot.Knives = line.Knives
		snapshot.Message = strings.TrimSpace(line.Message)
	}
	usage := stock.Usage{ProductID: product.ID, VariantID: snapshot.VariantID, Qty: line.Quantity}
	return &resolvedLine{line: snapshot, usages: []stock.Usage{usage}}, nil
}

func (s *service) resolveBundle(ctx context.Context, line CartLine) (*resolvedLine, error) {
	if line.BundleID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundleId required")
	}
	bundle, err := s.repo.FindBundle(ctx, *line.BundleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bundle")
	}
	if bundle == nil || !bundle.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle is unavailable")
	}
	snapshot := models.OrderLine{
		Kind:     enums.OrderLineBundle,
		BundleID: &bundle.ID,
		Name:     bundle.Name,
		Price:    bundle.Price,
		Quantity: line.Quantity,
	}
	usages := make([]stock.Usage, 0, len(bundle.Items))
	for _, item := range bundle.Items {
		product, variant, err := s.sellable(ctx, item.ProductID, item.VariantID)
		if err != nil {
			return nil, err
		}
		snapshot.Components = append(snapshot.Components, component(product, variant, item.Qty))
		usages = append(usages, stock.Usage{ProductID: item.ProductID, VariantID: item.VariantID, Qty: item.Qty * line.Quantity})
	}
	return &resolvedLine{line: snapshot, usages: usages}, nil
}

func (s *service) resolveSliceBox(ctx context.Context, line CartLine) (*resolvedLine, error) {
	if line.SliceBoxID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sliceBoxId required")
	}
	option, err := s.repo.FindSliceBox(ctx, *line.SliceBoxID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load slice box")
	}
	if option == nil || !option.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slice box is unavailable")
	}
	filled := 0
	for _, slice := range line.Slices {
		filled += slice.Qty
	}
	if filled != option.Slots {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "slice box needs exactly %d slices", option.Slots).
			WithDetails(map[string]any{"filled": filled})
	}
	snapshot := models.OrderLine{
		Kind:       enums.OrderLineSliceBox,
		SliceBoxID: &option.ID,
		Name:       option.Name,
		Price:      option.Price,
		Quantity:   line.Quantity,
	}
	usages := make([]stock.Usage, 0, len(line.Slices))
	for _, slice := range line.Slices {
		product, variant, err := s.sellable(ctx, slice.ProductID, slice.VariantID)
		if err != nil {
			return nil, err
		}
		snapshot.Components = append(snapshot.Components, component(product, variant, slice.Qty))
		usages = append(usages, stock.Usage{ProductID: slice.ProductID, VariantID: slice.VariantID, Qty: slice.Qty * line.Quantity})
	}
	return &resolvedLine{line: snapshot, usages: usages}, nil
}

func resolveCustom(line CartLine) (*resolvedLine, error) {
	name := strings.TrimSpace(line.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "custom line needs a name")
	}
	price := decimal.Zero
	if line.Price != nil {
		price = *line.Price
	}
	if price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return &resolvedLine{line: models.OrderLine{
		Kind:     enums.OrderLineCustom,
		Name:     name,
		Price:    money.Round2(price),
		Quantity: line.Quantity,
		Message:  strings.TrimSpace(line.Message),
	}}, nil
}

func component(product *models.Product, variant *models.ProductVariant, qty int) models.LineComponent {
	c := models.LineComponent{ProductID: product.ID, Name: product.Name, Qty: qty}
	if variant != nil {
		id := variant.ID
		c.VariantID = &id
		c.VariantName = variant.Name
	}
	return c
}
