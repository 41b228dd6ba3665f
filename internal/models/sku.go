package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SKU is either a base product or exactly one of its variants.
type SKU struct {
	ProductID uuid.UUID `json:"product_id"`
	VariantID uuid.UUID `json:"variant_id,omitempty"`
}

func NewSKU(productID uuid.UUID, variantID *uuid.UUID) SKU {
	s := SKU{ProductID: productID}
	if variantID != nil {
		s.VariantID = *variantID
	}
	return s
}

func (s SKU) HasVariant() bool {
	return s.VariantID != uuid.Nil
}

// ID is the storage key used by stock records and reservations.
func (s SKU) ID() string {
	if !s.HasVariant() {
		return s.ProductID.String()
	}
	return s.ProductID.String() + ":" + s.VariantID.String()
}

func (s SKU) String() string { return s.ID() }

func ParseSKU(id string) (SKU, error) {
	productPart, variantPart, hasVariant := strings.Cut(id, ":")
	pid, err := uuid.Parse(productPart)
	if err != nil {
		return SKU{}, fmt.Errorf("parse sku %q: %w", id, err)
	}
	if !hasVariant {
		return SKU{ProductID: pid}, nil
	}
	vid, err := uuid.Parse(variantPart)
	if err != nil {
		return SKU{}, fmt.Errorf("parse sku %q: %w", id, err)
	}
	return SKU{ProductID: pid, VariantID: vid}, nil
}
