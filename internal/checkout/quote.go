package checkout

import (
	"allocation-service/internal/allocation"
	"allocation-service/internal/models"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Catalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error)
}

type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// BuildQuote prices the cart. A variant with its own price overrides the
// product price; shipping is charged per unit.
func BuildQuote(ctx context.Context, catalog Catalog, lines []allocation.Line) (Quote, error) {
	q := Quote{Subtotal: decimal.Zero, Shipping: decimal.Zero}
	for _, l := range lines {
		p, err := catalog.GetProduct(ctx, l.SKU.ProductID)
		if err != nil {
			return Quote{}, err
		}
		if p == nil {
			return Quote{}, fmt.Errorf("product %s not in catalog", l.SKU.ProductID)
		}
		price := p.Price
		if l.SKU.HasVariant() {
			v, err := catalog.GetVariant(ctx, l.SKU.VariantID)
			if err != nil {
				return Quote{}, err
			}
			if v != nil && v.Price != nil {
				price = *v.Price
			}
		}
		qty := decimal.NewFromInt(l.Quantity)
		q.Subtotal = q.Subtotal.Add(price.Mul(qty))
		q.Shipping = q.Shipping.Add(p.ShippingPerUnit.Mul(qty))
	}
	q.Total = q.Subtotal.Add(q.Shipping)
	return q, nil
}
