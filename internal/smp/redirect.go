package smp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// RedirectManager owns redirect lifecycle. A redirect atomically
// replaces any previous redirect for its pair, and saving one removes
// any service information registration for the same pair: exclusivity
// between the two is enforced here, not by REST-layer convention.
type RedirectManager struct {
	store  storage.Store
	logger *slog.Logger

	callbacks callbackList[RedirectCallbacks]
}

// NewRedirectManager creates a redirect manager
func NewRedirectManager(store storage.Store, logger *slog.Logger) *RedirectManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedirectManager{store: store, logger: logger}
}

// OnChange registers callbacks for redirect mutations
func (m *RedirectManager) OnChange(cb RedirectCallbacks) {
	m.callbacks.add(cb)
}

// Save stores the redirect for its (service group, document type) pair,
// replacing any previous redirect and removing any service information
// registration for the pair.
func (m *RedirectManager) Save(ctx context.Context, r *storage.Redirect) error {
	r.ID = storage.ServiceMetadataID(r.ServiceGroupID, r.DocType)

	if _, err := m.store.DeleteServiceInformation(ctx, r.ID); err != nil {
		return fmt.Errorf("removing registration for %s: %w", r.ID, err)
	}

	if err := m.store.UpsertRedirect(ctx, r); err != nil {
		return fmt.Errorf("saving redirect %s: %w", r.ID, err)
	}

	m.logger.Info("redirect saved", "id", r.ID, "target", r.TargetHref)
	m.callbacks.each(func(cb RedirectCallbacks) {
		if cb.Saved != nil {
			cb.Saved(r)
		}
	})
	return nil
}

// Delete removes the redirect for a pair. Returns Unchanged if none
// exists.
func (m *RedirectManager) Delete(ctx context.Context, serviceGroupID string, d identifier.DocType) (Change, error) {
	id := storage.ServiceMetadataID(serviceGroupID, d)

	deleted, err := m.store.DeleteRedirect(ctx, id)
	if err != nil {
		return Unchanged, fmt.Errorf("deleting redirect %s: %w", id, err)
	}
	if !deleted {
		return Unchanged, nil
	}

	m.logger.Info("redirect deleted", "id", id)
	m.callbacks.each(func(cb RedirectCallbacks) {
		if cb.Deleted != nil {
			cb.Deleted(id)
		}
	})
	return Changed, nil
}

// DeleteAllOfServiceGroup removes every redirect of a service group
func (m *RedirectManager) DeleteAllOfServiceGroup(ctx context.Context, serviceGroupID string) (int64, error) {
	n, err := m.store.DeleteAllRedirects(ctx, serviceGroupID)
	if err != nil {
		return 0, fmt.Errorf("deleting redirects of %s: %w", serviceGroupID, err)
	}
	return n, nil
}

// FindByGroupAndDocType returns the redirect for a pair, or nil
func (m *RedirectManager) FindByGroupAndDocType(ctx context.Context, serviceGroupID string, d identifier.DocType) (*storage.Redirect, error) {
	return m.store.GetRedirect(ctx, storage.ServiceMetadataID(serviceGroupID, d))
}

// GetAllOfServiceGroup returns every redirect of a service group
func (m *RedirectManager) GetAllOfServiceGroup(ctx context.Context, serviceGroupID string) ([]*storage.Redirect, error) {
	return m.store.ListRedirects(ctx, serviceGroupID)
}
