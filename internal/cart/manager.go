// Package cart owns the client-side cart state: one snapshot, one writer,
// many subscribers. Every mutation is confirmed by reloading canonical state
// from the server; the local copy is never patched optimistically.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/djangify/storefront/internal/api"
	"github.com/djangify/storefront/internal/domain"
	"github.com/djangify/storefront/internal/token"
)

type FailureKind string

const (
	FailureNone FailureKind = ""
	// FailureValidationRejected: a local invariant said no; the network was
	// never touched and the snapshot is untouched.
	FailureValidationRejected FailureKind = "validation_rejected"
	// FailureRequestFailed: the server or the network said no; the message
	// carries the server's own wording when it sent any.
	FailureRequestFailed FailureKind = "request_failed"
)

// Result is what every cart operation resolves to. Operations never panic
// and never return bare errors across this boundary.
type Result struct {
	Success  bool
	Kind     FailureKind
	Message  string
	Snapshot *domain.CartSnapshot
}

// Listener receives the new snapshot after every successful state
// transition. Rejected validations and failed requests do not notify.
type Listener func(*domain.CartSnapshot)

// Manager is the process-wide owner of the cart snapshot. Construct one per
// process and inject it into consumers; readers never write back into the
// snapshot.
type Manager struct {
	api    *api.Client
	tokens token.Store
	log    *slog.Logger

	mu        sync.Mutex
	snapshot  *domain.CartSnapshot
	cartToken string
	tokenRead bool
	listeners map[int]Listener
	nextID    int
	onError   func(error)

	reload singleflight.Group
}

func NewManager(apiClient *api.Client, tokens token.Store, log *slog.Logger) *Manager {
	return &Manager{
		api:       apiClient,
		tokens:    tokens,
		log:       log,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers a listener and returns its deregistration func.
// Multiple independent subscribers are supported; each sees every successful
// transition exactly once, synchronously, after the snapshot is updated.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SetErrorHandler installs the hook invoked when a reload fails and the
// manager keeps serving the last-known-good snapshot. Used by the UI layer
// to show an error state without being a subscriber.
func (m *Manager) SetErrorHandler(fn func(error)) {
	m.mu.Lock()
	m.onError = fn
	m.mu.Unlock()
}

// Snapshot returns the current last-known-good snapshot, or nil before the
// first successful load.
func (m *Manager) Snapshot() *domain.CartSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *Manager) ItemCount() int {
	if snap := m.Snapshot(); snap != nil {
		return snap.ItemCount
	}
	return 0
}

func (m *Manager) Subtotal() decimal.Decimal {
	if snap := m.Snapshot(); snap != nil {
		return snap.Subtotal
	}
	return decimal.Zero
}

func (m *Manager) CartToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartToken
}

// Load fetches canonical cart state from the server (creating a server-side
// cart when no token is held), replaces the snapshot wholesale and notifies
// subscribers. On any failure the previous snapshot stays last-known-good,
// the error hook fires and nil is returned; Load never panics past this
// boundary. Concurrent loads are collapsed into one request.
func (m *Manager) Load(ctx context.Context) *domain.CartSnapshot {
	v, err, _ := m.reload.Do("load", func() (any, error) {
		return m.load(ctx)
	})
	if err != nil {
		return nil
	}
	return v.(*domain.CartSnapshot)
}

func (m *Manager) load(ctx context.Context) (*domain.CartSnapshot, error) {
	resp, err := m.api.Do(ctx, http.MethodGet, "/cart/", nil, m.currentToken(ctx))
	if err != nil {
		m.reportError(fmt.Errorf("load cart: %w", err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := api.DecodeAPIError(resp)
		m.reportError(fmt.Errorf("load cart: %w", apiErr))
		return nil, apiErr
	}

	var payload cartPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		m.reportError(fmt.Errorf("decode cart payload: %w", err))
		return nil, err
	}

	snap := payload.toDomain(m.log)
	m.adoptSnapshot(ctx, snap)
	m.notify(snap)
	return snap, nil
}

// AddItem validates locally, posts the addition, then reloads canonical
// state. Type-exclusivity and stock violations are rejected before any
// network call with a message fit for direct display.
func (m *Manager) AddItem(ctx context.Context, product domain.Product, quantity int) Result {
	if quantity <= 0 {
		return m.rejected("Quantity must be at least 1")
	}

	if msg := m.validateAdd(product, quantity); msg != "" {
		return m.rejected(msg)
	}

	body := addItemRequest{Product: product.ID, Quantity: quantity}
	return m.mutate(ctx, http.MethodPost, "/items/", body,
		fmt.Sprintf("%s added to cart", product.Name),
		"Failed to add item to cart")
}

// UpdateItemQuantity sets the quantity of an existing line.
func (m *Manager) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) Result {
	if quantity <= 0 {
		return m.rejected("Quantity must be at least 1")
	}

	return m.mutate(ctx, http.MethodPut, fmt.Sprintf("/items/%d/", itemID), updateQuantityRequest{Quantity: quantity},
		"Cart updated successfully",
		"Failed to update cart")
}

// RemoveItem deletes a line from the cart.
func (m *Manager) RemoveItem(ctx context.Context, itemID int64) Result {
	return m.mutate(ctx, http.MethodDelete, fmt.Sprintf("/items/%d/", itemID), nil,
		"Item removed from cart",
		"Failed to remove item")
}

// Clear empties the cart. The empty state still comes from a canonical
// reload so subscribers see exactly one consistent notification.
func (m *Manager) Clear(ctx context.Context) Result {
	return m.mutate(ctx, http.MethodPost, "/cart/clear/", nil,
		"Cart cleared successfully",
		"Failed to clear cart")
}

// validateAdd enforces the invariants the server is not trusted to catch in
// time: type exclusivity and physical stock. Empty return means accepted.
func (m *Manager) validateAdd(product domain.Product, quantity int) string {
	m.mu.Lock()
	snap := m.snapshot
	m.mu.Unlock()

	if snap != nil && len(snap.Items) > 0 {
		mixed := (product.ProductType == domain.ProductTypePhysical && snap.CartType == domain.CartTypeDigital) ||
			(product.ProductType != domain.ProductTypePhysical && snap.CartType == domain.CartTypePhysical)
		if mixed {
			return fmt.Sprintf("%s cannot be added: your cart already contains %s items and digital and physical products cannot be mixed",
				product.Name, snap.CartType)
		}
	}

	if product.ProductType == domain.ProductTypePhysical {
		if !product.InStock {
			return fmt.Sprintf("%s is out of stock", product.Name)
		}
		if quantity > product.StockQty {
			return fmt.Sprintf("Only %d of %s available", product.StockQty, product.Name)
		}
	}

	return ""
}

// mutate runs the shared mutation pattern: network call, token capture,
// canonical reload, notify-via-reload. Failures leave the snapshot exactly
// as it was.
func (m *Manager) mutate(ctx context.Context, method, path string, body any, okMsg, failMsg string) Result {
	resp, err := m.api.Do(ctx, method, path, body, m.currentToken(ctx))
	if err != nil {
		m.log.Error("cart mutation failed", "method", method, "path", path, "error", err)
		return m.requestFailed(failMsg)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := api.DecodeAPIError(resp)
		m.log.Warn("cart mutation rejected by server", "method", method, "path", path, "status", apiErr.Status)
		if apiErr.HasMessage() {
			return m.requestFailed(apiErr.Message())
		}
		return m.requestFailed(failMsg)
	}

	// Some mutation responses issue a cart token before the reload does.
	var mr mutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err == nil && mr.CartToken != "" {
		m.adoptToken(ctx, mr.CartToken)
	}

	m.Load(ctx)

	return Result{Success: true, Message: okMsg, Snapshot: m.Snapshot()}
}

func (m *Manager) rejected(msg string) Result {
	return Result{Kind: FailureValidationRejected, Message: msg, Snapshot: m.Snapshot()}
}

func (m *Manager) requestFailed(msg string) Result {
	return Result{Kind: FailureRequestFailed, Message: msg, Snapshot: m.Snapshot()}
}

// currentToken returns the held cart token, reading it from durable storage
// on first use. Storage failure degrades to a tokenless load, which simply
// creates a fresh server-side cart.
func (m *Manager) currentToken(ctx context.Context) string {
	m.mu.Lock()
	if m.tokenRead || m.cartToken != "" {
		tok := m.cartToken
		m.mu.Unlock()
		return tok
	}
	m.tokenRead = true
	m.mu.Unlock()

	tok, err := m.tokens.Get(ctx, token.KeyCartToken)
	if err != nil {
		if !errors.Is(err, token.ErrNotFound) {
			m.log.Warn("cart token read failed, starting tokenless", "error", err)
		}
		return ""
	}

	m.mu.Lock()
	m.cartToken = tok
	m.mu.Unlock()
	return tok
}

func (m *Manager) adoptSnapshot(ctx context.Context, snap *domain.CartSnapshot) {
	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()

	if snap.Token != "" {
		m.adoptToken(ctx, snap.Token)
	}
}

func (m *Manager) adoptToken(ctx context.Context, tok string) {
	m.mu.Lock()
	if m.cartToken == tok {
		m.mu.Unlock()
		return
	}
	m.cartToken = tok
	m.tokenRead = true
	m.mu.Unlock()

	if err := m.tokens.Set(ctx, token.KeyCartToken, tok); err != nil {
		m.log.Warn("persisting cart token failed", "error", err)
	}
}

// adoptExternalToken takes a token observed via the store watcher. Returns
// false when it matches the held token (our own write echoing back).
func (m *Manager) adoptExternalToken(tok string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tok == m.cartToken {
		return false
	}
	m.cartToken = tok
	m.tokenRead = true
	return true
}

func (m *Manager) notify(snap *domain.CartSnapshot) {
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (m *Manager) reportError(err error) {
	m.log.Error("cart state error, keeping last-known-good snapshot", "error", err)

	m.mu.Lock()
	hook := m.onError
	m.mu.Unlock()

	if hook != nil {
		hook(err)
	}
}
