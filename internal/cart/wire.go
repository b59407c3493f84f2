package cart

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/djangify/storefront/internal/domain"
)

// Wire shapes for the remote cart endpoints. Decoded loosely, then normalized
// into the strict domain model; derived fields are recomputed from items
// rather than trusted verbatim.

type cartItemPayload struct {
	ID         int64           `json:"id"`
	Product    domain.Product  `json:"product"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type cartPayload struct {
	ID               int64             `json:"id"`
	Token            string            `json:"token"`
	Items            []cartItemPayload `json:"items"`
	Subtotal         decimal.Decimal   `json:"subtotal"`
	TotalItems       int               `json:"total_items"`
	HasDigitalItems  bool              `json:"has_digital_items"`
	HasPhysicalItems bool              `json:"has_physical_items"`
	RequiresShipping bool              `json:"requires_shipping"`
	IsDigitalOnly    bool              `json:"is_digital_only"`
}

// mutationResponse is the slice of a mutation response the manager cares
// about; the canonical state always comes from the follow-up reload.
type mutationResponse struct {
	CartToken string `json:"cart_token"`
}

type addItemRequest struct {
	Product  int64 `json:"product"`
	Quantity int   `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (p *cartPayload) toDomain(log *slog.Logger) *domain.CartSnapshot {
	snap := &domain.CartSnapshot{
		Token: p.Token,
		Items: make([]domain.CartLineItem, 0, len(p.Items)),
	}

	for _, item := range p.Items {
		unit := item.UnitPrice
		if unit.IsZero() {
			unit = item.Product.EffectivePrice()
		}
		snap.Items = append(snap.Items, domain.CartLineItem{
			ID:        item.ID,
			Product:   item.Product,
			Quantity:  item.Quantity,
			UnitPrice: unit,
		})
	}

	snap.Recompute()

	if p.TotalItems != snap.ItemCount ||
		p.HasDigitalItems != snap.HasDigitalItems ||
		p.HasPhysicalItems != snap.HasPhysicalItems ||
		p.RequiresShipping != snap.RequiresShipping {
		log.Warn("server cart flags disagree with item contents, using derived values",
			"server_total_items", p.TotalItems,
			"derived_item_count", snap.ItemCount,
			"cart_type", snap.CartType,
		)
	}

	return snap
}
