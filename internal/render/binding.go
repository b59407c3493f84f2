// Package render projects cart and auth state onto named UI fields through a
// Sink. It knows which fields exist and how state maps onto them; it knows
// nothing about how the sink draws them.
package render

import (
	"fmt"
	"log/slog"

	"github.com/djangify/storefront/internal/auth"
	"github.com/djangify/storefront/internal/domain"
)

// Field names the binding writes to. A sink only needs to handle the ones
// its surface actually shows.
const (
	FieldCartCount      = "cart-count"
	FieldCartSubtotal   = "cart-subtotal"
	FieldCartType       = "cart-type"
	FieldCheckoutButton = "checkout-button"
	FieldUserName       = "user-name"
	FieldSignedIn       = "signed-in"
)

// Sink is one UI surface. Implementations must tolerate fields they do not
// render.
type Sink interface {
	SetText(field, value string)
	SetEnabled(field string, enabled bool)
	SetVisible(field string, visible bool)
}

// Binding translates state snapshots into sink writes. Register its Apply
// methods as cart and auth subscribers.
type Binding struct {
	sink Sink
	log  *slog.Logger
}

func NewBinding(sink Sink, log *slog.Logger) *Binding {
	return &Binding{sink: sink, log: log}
}

// ApplyCart renders a cart snapshot: item count with the badge hidden at
// zero, the formatted subtotal, the cart type label and checkout enablement.
func (b *Binding) ApplyCart(snap *domain.CartSnapshot) {
	if snap == nil {
		return
	}

	b.sink.SetText(FieldCartCount, fmt.Sprintf("%d", snap.ItemCount))
	b.sink.SetVisible(FieldCartCount, snap.ItemCount > 0)
	b.sink.SetText(FieldCartSubtotal, "$"+snap.Subtotal.StringFixed(2))
	b.sink.SetText(FieldCartType, cartTypeLabel(snap.CartType))
	b.sink.SetEnabled(FieldCheckoutButton, snap.ItemCount > 0)
}

// ApplyCartError renders the empty fallback when no snapshot is available.
func (b *Binding) ApplyCartError(err error) {
	b.log.Warn("cart unavailable, rendering empty state", "error", err)
	b.ApplyCart(domain.EmptyCartSnapshot(""))
}

// ApplyAuth renders the session state.
func (b *Binding) ApplyAuth(state auth.State) {
	b.sink.SetVisible(FieldSignedIn, state.IsAuthenticated)
	if state.User != nil {
		b.sink.SetText(FieldUserName, state.User.FullName())
	} else {
		b.sink.SetText(FieldUserName, "")
	}
}

func cartTypeLabel(t domain.CartType) string {
	switch t {
	case domain.CartTypeDigital:
		return "Digital"
	case domain.CartTypePhysical:
		return "Physical"
	default:
		return ""
	}
}
