package domain

import "github.com/shopspring/decimal"

type ProductType string

const (
	ProductTypeDigital  ProductType = "digital"
	ProductTypePhysical ProductType = "physical"
)

type CartType string

const (
	CartTypeDigital  CartType = "digital"
	CartTypePhysical CartType = "physical"
	CartTypeNone     CartType = "none"
)

// Product is read-only reference data supplied by the content API. The cart
// holds it by value but never mutates it.
type Product struct {
	ID          int64            `json:"id"`
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	SalePrice   *decimal.Decimal `json:"sale_price,omitempty"`
	ProductType ProductType      `json:"product_type"`
	InStock     bool             `json:"in_stock"`
	StockQty    int              `json:"stock_qty"`
}

// EffectivePrice returns the sale price when one is set, otherwise the
// regular price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

type CartLineItem struct {
	ID        int64           `json:"id"`
	Product   Product         `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"total_price"`
}

// CartSnapshot is the complete cart state as of the last canonical reload.
// It is replaced wholesale on every successful reload and must not be
// mutated field-by-field by consumers.
type CartSnapshot struct {
	Token            string          `json:"token"`
	Items            []CartLineItem  `json:"items"`
	ItemCount        int             `json:"item_count"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	CartType         CartType        `json:"cart_type"`
	HasDigitalItems  bool            `json:"has_digital_items"`
	HasPhysicalItems bool            `json:"has_physical_items"`
	IsDigitalOnly    bool            `json:"is_digital_only"`
	RequiresShipping bool            `json:"requires_shipping"`
}

// Recompute derives every computed field from Items: line totals, item count,
// subtotal and the type flags. Server-provided values for these fields are
// never trusted verbatim; callers re-derive after every decode so the flags
// always agree with the item contents.
func (s *CartSnapshot) Recompute() {
	s.ItemCount = 0
	s.Subtotal = decimal.Zero
	s.HasDigitalItems = false
	s.HasPhysicalItems = false

	for i := range s.Items {
		item := &s.Items[i]
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		s.ItemCount += item.Quantity
		s.Subtotal = s.Subtotal.Add(item.LineTotal)

		switch item.Product.ProductType {
		case ProductTypePhysical:
			s.HasPhysicalItems = true
		default:
			s.HasDigitalItems = true
		}
	}

	s.Subtotal = s.Subtotal.Round(2)

	switch {
	case len(s.Items) == 0:
		s.CartType = CartTypeNone
	case s.HasPhysicalItems:
		s.CartType = CartTypePhysical
	default:
		s.CartType = CartTypeDigital
	}

	s.IsDigitalOnly = s.HasDigitalItems && !s.HasPhysicalItems
	s.RequiresShipping = s.HasPhysicalItems
}

// EmptyCartSnapshot returns the canonical empty cart shape for a token.
func EmptyCartSnapshot(token string) *CartSnapshot {
	s := &CartSnapshot{Token: token}
	s.Recompute()
	return s
}
