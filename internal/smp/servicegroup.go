package smp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sirosfoundation/go-smp/internal/sml"
	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// ServiceGroupManager owns the service group lifecycle, including the
// SML compensation saga and the cascading delete of children.
type ServiceGroupManager struct {
	store   storage.Store
	smlHook sml.Hook
	ids     *identifier.Factory
	logger  *slog.Logger

	// Read cache for resolution traffic; invalidated on every mutation
	cache *gocache.Cache

	callbacks callbackList[ServiceGroupCallbacks]
}

// ServiceGroupManagerConfig holds construction parameters
type ServiceGroupManagerConfig struct {
	Store    storage.Store
	SMLHook  sml.Hook
	IDs      *identifier.Factory
	Logger   *slog.Logger
	CacheTTL time.Duration
}

// NewServiceGroupManager creates a service group manager
func NewServiceGroupManager(cfg ServiceGroupManagerConfig) *ServiceGroupManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hook := cfg.SMLHook
	if hook == nil {
		hook = sml.NoopHook{}
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = time.Minute
	}
	return &ServiceGroupManager{
		store:   cfg.Store,
		smlHook: hook,
		ids:     cfg.IDs,
		logger:  logger,
		cache:   gocache.New(ttl, 2*ttl),
	}
}

// OnChange registers callbacks for service group mutations
func (m *ServiceGroupManager) OnChange(cb ServiceGroupCallbacks) {
	m.callbacks.add(cb)
}

// Create registers a new service group for the participant, owned by
// ownerID. With registerInSML the participant is registered at the SML
// first; only on success is the group persisted locally, and a failed
// persist is compensated by removing the SML registration again.
func (m *ServiceGroupManager) Create(ctx context.Context, ownerID string, p identifier.Participant, extension string, registerInSML bool) (*storage.ServiceGroup, error) {
	id := storage.ServiceGroupID(p)

	// Fail fast on an existing group. The store's duplicate check inside
	// the saga remains the backstop for the create/create race.
	existing, err := m.store.GetServiceGroup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up service group %s: %w", id, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("service group %s: %w", id, ErrAlreadyExists)
	}

	sg := &storage.ServiceGroup{
		ID:          id,
		Participant: p,
		OwnerID:     ownerID,
		Extension:   extension,
	}

	saga := &Saga{
		Name:   "service-group-create",
		Logger: m.logger,
		Steps: []SagaStep{
			{
				Name: "register-in-sml",
				Action: func(ctx context.Context) error {
					if !registerInSML {
						return nil
					}
					return m.smlHook.CreateParticipant(ctx, p)
				},
				Compensate: func(ctx context.Context) error {
					if !registerInSML {
						return nil
					}
					return m.smlHook.UndoCreateParticipant(ctx, p)
				},
			},
			{
				Name: "persist-service-group",
				Action: func(ctx context.Context) error {
					err := m.store.CreateServiceGroup(ctx, sg)
					if errors.Is(err, storage.ErrDuplicate) {
						return fmt.Errorf("service group %s: %w", id, ErrAlreadyExists)
					}
					return err
				},
			},
		},
	}

	if err := saga.Run(ctx); err != nil {
		return nil, err
	}

	m.cache.Delete(id)
	m.logger.Info("service group created", "id", id, "owner", ownerID, "sml", registerInSML)
	m.callbacks.each(func(cb ServiceGroupCallbacks) {
		if cb.Created != nil {
			cb.Created(sg)
		}
	})
	return sg, nil
}

// Update changes the owner and extension of an existing service group.
// The SML is not involved: it tracks participant existence, not
// ownership. Returns ErrNotFound for an unknown participant and
// Unchanged when nothing differs.
func (m *ServiceGroupManager) Update(ctx context.Context, p identifier.Participant, newOwnerID, extension string) (Change, error) {
	id := storage.ServiceGroupID(p)

	sg, err := m.store.GetServiceGroup(ctx, id)
	if err != nil {
		return Unchanged, fmt.Errorf("looking up service group %s: %w", id, err)
	}
	if sg == nil {
		return Unchanged, fmt.Errorf("service group %s: %w", id, ErrNotFound)
	}

	if sg.OwnerID == newOwnerID && sg.Extension == extension {
		return Unchanged, nil
	}

	sg.OwnerID = newOwnerID
	sg.Extension = extension
	if err := m.store.UpdateServiceGroup(ctx, sg); err != nil {
		return Unchanged, fmt.Errorf("updating service group %s: %w", id, err)
	}

	m.cache.Delete(id)
	m.logger.Info("service group updated", "id", id, "owner", newOwnerID)
	m.callbacks.each(func(cb ServiceGroupCallbacks) {
		if cb.Updated != nil {
			cb.Updated(sg)
		}
	})
	return Changed, nil
}

// Delete removes a service group and all of its children. Deleting an
// absent group is idempotent and returns Unchanged. With deregisterInSML
// the SML is updated first; if any local delete afterwards fails, the
// SML registration is restored so both systems stay consistent.
// Children are removed before the group itself so a concurrent resolver
// never sees an orphaned child.
func (m *ServiceGroupManager) Delete(ctx context.Context, p identifier.Participant, deregisterInSML bool) (Change, error) {
	id := storage.ServiceGroupID(p)

	sg, err := m.store.GetServiceGroup(ctx, id)
	if err != nil {
		return Unchanged, fmt.Errorf("looking up service group %s: %w", id, err)
	}
	if sg == nil {
		return Unchanged, nil
	}

	saga := &Saga{
		Name:   "service-group-delete",
		Logger: m.logger,
		Steps: []SagaStep{
			{
				Name: "deregister-from-sml",
				Action: func(ctx context.Context) error {
					if !deregisterInSML {
						return nil
					}
					return m.smlHook.DeleteParticipant(ctx, p)
				},
				Compensate: func(ctx context.Context) error {
					if !deregisterInSML {
						return nil
					}
					return m.smlHook.UndoDeleteParticipant(ctx, p)
				},
			},
			{
				Name: "delete-redirects",
				Action: func(ctx context.Context) error {
					_, err := m.store.DeleteAllRedirects(ctx, id)
					return err
				},
			},
			{
				Name: "delete-service-information",
				Action: func(ctx context.Context) error {
					_, err := m.store.DeleteAllServiceInformation(ctx, id)
					return err
				},
			},
			{
				Name: "delete-business-card",
				Action: func(ctx context.Context) error {
					_, err := m.store.DeleteBusinessCard(ctx, id)
					return err
				},
			},
			{
				Name: "delete-service-group",
				Action: func(ctx context.Context) error {
					deleted, err := m.store.DeleteServiceGroup(ctx, id)
					if err != nil {
						return fmt.Errorf("deleting service group %s: %w", id, err)
					}
					if !deleted {
						return fmt.Errorf("service group %s vanished during delete: %w", id, ErrInternal)
					}
					return nil
				},
			},
		},
	}

	if err := saga.Run(ctx); err != nil {
		return Unchanged, err
	}

	m.cache.Delete(id)
	m.logger.Info("service group deleted", "id", id, "sml", deregisterInSML)
	m.callbacks.each(func(cb ServiceGroupCallbacks) {
		if cb.Deleted != nil {
			cb.Deleted(id)
		}
	})
	return Changed, nil
}

// GetByID returns the service group for a participant, or nil if none
// is registered. Reads go through a short-lived cache.
func (m *ServiceGroupManager) GetByID(ctx context.Context, p identifier.Participant) (*storage.ServiceGroup, error) {
	id := storage.ServiceGroupID(p)

	if v, ok := m.cache.Get(id); ok {
		sg := v.(storage.ServiceGroup)
		return &sg, nil
	}

	sg, err := m.store.GetServiceGroup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up service group %s: %w", id, err)
	}
	if sg != nil {
		m.cache.SetDefault(id, *sg)
	}
	return sg, nil
}

// ContainsID reports whether a service group exists for the participant
func (m *ServiceGroupManager) ContainsID(ctx context.Context, p identifier.Participant) (bool, error) {
	sg, err := m.GetByID(ctx, p)
	return sg != nil, err
}

// GetAllOfOwner returns every service group owned by the user
func (m *ServiceGroupManager) GetAllOfOwner(ctx context.Context, ownerID string) ([]*storage.ServiceGroup, error) {
	return m.store.ListServiceGroupsByOwner(ctx, ownerID)
}

// GetAll returns every service group
func (m *ServiceGroupManager) GetAll(ctx context.Context) ([]*storage.ServiceGroup, error) {
	return m.store.ListServiceGroups(ctx)
}
