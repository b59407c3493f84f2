package cart

import (
	"context"
	"log/slog"

	"github.com/djangify/storefront/internal/token"
)

// Watcher reloads the cart when another process rotates the cart token in
// shared storage, the same way a browser tab reloads on a storage event from
// a sibling tab.
type Watcher struct {
	source  token.Watcher
	manager *Manager
	log     *slog.Logger
}

func NewWatcher(source token.Watcher, manager *Manager, log *slog.Logger) *Watcher {
	return &Watcher{
		source:  source,
		manager: manager,
		log:     log,
	}
}

// Run blocks until ctx is done, reloading the cart snapshot on every
// externally-originated cart token change. Changes echoing back from this
// process's own writes are skipped.
func (w *Watcher) Run(ctx context.Context) {
	ch, err := w.source.Watch(ctx)
	if err != nil {
		w.log.Error("token watch unavailable, cross-process cart reloads disabled", "error", err)
		return
	}

	for change := range ch {
		if change.Key != token.KeyCartToken {
			continue
		}
		if !w.manager.adoptExternalToken(change.Value) {
			continue
		}

		w.log.Info("cart token changed externally, reloading cart")
		w.manager.Load(ctx)
	}
}
