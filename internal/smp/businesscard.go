package smp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// BusinessCardManager owns business card lifecycle. A business card
// shares its service group's id and requires the group to exist, but is
// created and deleted independently of it.
type BusinessCardManager struct {
	store  storage.Store
	logger *slog.Logger
}

// NewBusinessCardManager creates a business card manager
func NewBusinessCardManager(store storage.Store, logger *slog.Logger) *BusinessCardManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusinessCardManager{store: store, logger: logger}
}

// Save stores the business card for a participant's service group.
// Returns ErrNotFound when no service group is registered for the
// participant.
func (m *BusinessCardManager) Save(ctx context.Context, p identifier.Participant, entities []storage.BusinessEntity) (*storage.BusinessCard, error) {
	id := storage.ServiceGroupID(p)

	sg, err := m.store.GetServiceGroup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up service group %s: %w", id, err)
	}
	if sg == nil {
		return nil, fmt.Errorf("service group %s: %w", id, ErrNotFound)
	}

	bc := &storage.BusinessCard{ID: id, Entities: entities}
	if err := m.store.UpsertBusinessCard(ctx, bc); err != nil {
		return nil, fmt.Errorf("saving business card %s: %w", id, err)
	}

	m.logger.Info("business card saved", "id", id, "entities", len(entities))
	return bc, nil
}

// Get returns the business card for a participant, or nil
func (m *BusinessCardManager) Get(ctx context.Context, p identifier.Participant) (*storage.BusinessCard, error) {
	return m.store.GetBusinessCard(ctx, storage.ServiceGroupID(p))
}

// Delete removes the business card for a participant. Returns Unchanged
// if none exists.
func (m *BusinessCardManager) Delete(ctx context.Context, p identifier.Participant) (Change, error) {
	id := storage.ServiceGroupID(p)

	deleted, err := m.store.DeleteBusinessCard(ctx, id)
	if err != nil {
		return Unchanged, fmt.Errorf("deleting business card %s: %w", id, err)
	}
	if !deleted {
		return Unchanged, nil
	}

	m.logger.Info("business card deleted", "id", id)
	return Changed, nil
}
