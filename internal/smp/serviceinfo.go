package smp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// ServiceInformationManager owns the process/endpoint registration
// lifecycle for (service group, document type) pairs.
type ServiceInformationManager struct {
	store  storage.Store
	ids    *identifier.Factory
	logger *slog.Logger

	callbacks callbackList[ServiceInformationCallbacks]
}

// NewServiceInformationManager creates a service information manager
func NewServiceInformationManager(store storage.Store, ids *identifier.Factory, logger *slog.Logger) *ServiceInformationManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceInformationManager{store: store, ids: ids, logger: logger}
}

// OnChange registers callbacks for registration mutations
func (m *ServiceInformationManager) OnChange(cb ServiceInformationCallbacks) {
	m.callbacks.add(cb)
}

// Merge saves the full process/endpoint tree for a (service group,
// document type) pair. REST clients resubmit the entire tree on every
// PUT, so the decision "same resource, new content" vs. "new resource"
// is made here: an existing record whose document type matches the
// submission is replaced in place, keeping its id and creation time;
// otherwise any previous record is removed and the submission inserted
// under a freshly derived id.
//
// Merge also enforces the exclusivity rule: saving a registration
// removes any redirect for the same pair.
func (m *ServiceInformationManager) Merge(ctx context.Context, si *storage.ServiceInformation) error {
	si.ID = storage.ServiceMetadataID(si.ServiceGroupID, si.DocType)

	// A redirect and a registration must never coexist for one pair.
	if _, err := m.store.DeleteRedirect(ctx, si.ID); err != nil {
		return fmt.Errorf("removing redirect for %s: %w", si.ID, err)
	}

	existing, err := m.store.GetServiceInformation(ctx, si.ID)
	if err != nil {
		return fmt.Errorf("looking up registration %s: %w", si.ID, err)
	}

	updated := false
	if existing != nil {
		if m.ids.HasSameDocType(&existing.DocType, &si.DocType) && existing.ServiceGroupID == si.ServiceGroupID {
			// Same logical object resubmitted: replace in place.
			si.CreatedAt = existing.CreatedAt
			updated = true
		} else {
			// Identity changed under the same derived id (possible only
			// for identifiers written by tools bypassing normalization):
			// drop the old record, insert fresh.
			if _, err := m.store.DeleteServiceInformation(ctx, existing.ID); err != nil {
				return fmt.Errorf("removing stale registration %s: %w", existing.ID, err)
			}
		}
	}

	if err := m.store.UpsertServiceInformation(ctx, si); err != nil {
		return fmt.Errorf("saving registration %s: %w", si.ID, err)
	}

	m.logger.Info("service information merged", "id", si.ID, "updated", updated, "processes", len(si.Processes))
	m.callbacks.each(func(cb ServiceInformationCallbacks) {
		if updated {
			if cb.Updated != nil {
				cb.Updated(si)
			}
		} else if cb.Created != nil {
			cb.Created(si)
		}
	})
	return nil
}

// Delete removes the registration for a (service group, document type)
// pair. Returns Unchanged if none exists.
func (m *ServiceInformationManager) Delete(ctx context.Context, serviceGroupID string, d identifier.DocType) (Change, error) {
	id := storage.ServiceMetadataID(serviceGroupID, d)

	deleted, err := m.store.DeleteServiceInformation(ctx, id)
	if err != nil {
		return Unchanged, fmt.Errorf("deleting registration %s: %w", id, err)
	}
	if !deleted {
		return Unchanged, nil
	}

	m.logger.Info("service information deleted", "id", id)
	m.callbacks.each(func(cb ServiceInformationCallbacks) {
		if cb.Deleted != nil {
			cb.Deleted(id)
		}
	})
	return Changed, nil
}

// DeleteAllOfServiceGroup removes every registration of a service
// group. Used by the cascading group delete and the bulk delete API.
func (m *ServiceInformationManager) DeleteAllOfServiceGroup(ctx context.Context, serviceGroupID string) (int64, error) {
	n, err := m.store.DeleteAllServiceInformation(ctx, serviceGroupID)
	if err != nil {
		return 0, fmt.Errorf("deleting registrations of %s: %w", serviceGroupID, err)
	}
	if n > 0 {
		m.logger.Info("service information bulk-deleted", "service_group", serviceGroupID, "count", n)
	}
	return n, nil
}

// FindByGroupAndDocType returns the registration for a pair, or nil
func (m *ServiceInformationManager) FindByGroupAndDocType(ctx context.Context, serviceGroupID string, d identifier.DocType) (*storage.ServiceInformation, error) {
	return m.store.GetServiceInformation(ctx, storage.ServiceMetadataID(serviceGroupID, d))
}

// GetAllOfServiceGroup returns every registration of a service group
func (m *ServiceInformationManager) GetAllOfServiceGroup(ctx context.Context, serviceGroupID string) ([]*storage.ServiceInformation, error) {
	return m.store.ListServiceInformation(ctx, serviceGroupID)
}

// FindEndpoint returns the endpoint registered for the exact (group,
// document type, process, transport profile) combination, or nil when
// the combination is not resolvable.
func (m *ServiceInformationManager) FindEndpoint(ctx context.Context, serviceGroupID string, d identifier.DocType, p identifier.Process, transportProfile string) (*storage.Endpoint, error) {
	si, err := m.FindByGroupAndDocType(ctx, serviceGroupID, d)
	if err != nil || si == nil {
		return nil, err
	}
	for i := range si.Processes {
		proc := &si.Processes[i]
		if !m.ids.HasSameProcess(&proc.ProcessID, &p) {
			continue
		}
		for j := range proc.Endpoints {
			if proc.Endpoints[j].TransportProfile == transportProfile {
				return &proc.Endpoints[j], nil
			}
		}
	}
	return nil, nil
}
