// Package storage provides data storage interfaces and implementations
// for the SMP server.
//
// # Interface Design
//
// The storage layer is organized into focused interfaces:
//
//   - [ServiceGroupStore]: one document per registered participant
//   - [ServiceInformationStore]: endpoint/process registrations
//   - [RedirectStore]: redirections to other SMPs
//   - [BusinessCardStore]: publisher business cards
//   - [UserStore]: accounts that own service groups
//
// The [Store] interface combines all sub-stores for convenience.
//
// Stores are dumb document stores: get returns (nil, nil) for an absent
// document, create of a duplicate id returns [ErrDuplicate], delete
// reports whether anything was removed. All lifecycle rules (derived
// ids, cascading deletes, exclusivity between registrations and
// redirects) live in the managers, never here.
//
// # Implementations
//
// The mongodb sub-package provides a production MongoDB implementation,
// the memory sub-package an in-memory one for development and tests.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from
// multiple goroutines. Per-document operations are atomic,
// last-writer-wins; nothing here spans multiple documents in one
// transaction.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// ErrDuplicate is returned when creating a document whose id already
// exists.
var ErrDuplicate = errors.New("document already exists")

// Store is the main storage interface combining all sub-stores
type Store interface {
	ServiceGroupStore
	ServiceInformationStore
	RedirectStore
	BusinessCardStore
	UserStore

	// Close releases storage resources
	Close(ctx context.Context) error

	// Ping checks database connectivity
	Ping(ctx context.Context) error
}

// ServiceGroupStore manages service group documents
type ServiceGroupStore interface {
	// CreateServiceGroup inserts a new service group.
	// Returns ErrDuplicate if the id is already present.
	CreateServiceGroup(ctx context.Context, sg *ServiceGroup) error

	// GetServiceGroup retrieves a service group by id, (nil, nil) if absent
	GetServiceGroup(ctx context.Context, id string) (*ServiceGroup, error)

	// UpdateServiceGroup replaces a service group document
	UpdateServiceGroup(ctx context.Context, sg *ServiceGroup) error

	// DeleteServiceGroup removes a service group, reporting whether a
	// document was actually removed
	DeleteServiceGroup(ctx context.Context, id string) (bool, error)

	// ListServiceGroupsByOwner returns all service groups owned by a user
	ListServiceGroupsByOwner(ctx context.Context, ownerID string) ([]*ServiceGroup, error)

	// ListServiceGroups returns all service groups
	ListServiceGroups(ctx context.Context) ([]*ServiceGroup, error)
}

// ServiceInformationStore manages endpoint/process registrations
type ServiceInformationStore interface {
	// UpsertServiceInformation inserts or replaces a registration by id
	UpsertServiceInformation(ctx context.Context, si *ServiceInformation) error

	// GetServiceInformation retrieves a registration by id, (nil, nil) if absent
	GetServiceInformation(ctx context.Context, id string) (*ServiceInformation, error)

	// ListServiceInformation returns all registrations of a service group
	ListServiceInformation(ctx context.Context, serviceGroupID string) ([]*ServiceInformation, error)

	// DeleteServiceInformation removes a registration
	DeleteServiceInformation(ctx context.Context, id string) (bool, error)

	// DeleteAllServiceInformation removes every registration of a service
	// group and returns how many were removed
	DeleteAllServiceInformation(ctx context.Context, serviceGroupID string) (int64, error)
}

// RedirectStore manages redirect documents
type RedirectStore interface {
	// UpsertRedirect inserts or replaces a redirect by id
	UpsertRedirect(ctx context.Context, r *Redirect) error

	// GetRedirect retrieves a redirect by id, (nil, nil) if absent
	GetRedirect(ctx context.Context, id string) (*Redirect, error)

	// ListRedirects returns all redirects of a service group
	ListRedirects(ctx context.Context, serviceGroupID string) ([]*Redirect, error)

	// DeleteRedirect removes a redirect
	DeleteRedirect(ctx context.Context, id string) (bool, error)

	// DeleteAllRedirects removes every redirect of a service group
	DeleteAllRedirects(ctx context.Context, serviceGroupID string) (int64, error)
}

// BusinessCardStore manages business card documents
type BusinessCardStore interface {
	// UpsertBusinessCard inserts or replaces a business card by id
	UpsertBusinessCard(ctx context.Context, bc *BusinessCard) error

	// GetBusinessCard retrieves a business card by id, (nil, nil) if absent
	GetBusinessCard(ctx context.Context, id string) (*BusinessCard, error)

	// DeleteBusinessCard removes a business card
	DeleteBusinessCard(ctx context.Context, id string) (bool, error)
}

// UserStore manages user accounts. User provisioning is an external
// concern; the SMP reads accounts to authenticate callers and resolve
// ownership, and only creates them through admin tooling.
type UserStore interface {
	// CreateUser inserts a new user account.
	// Returns ErrDuplicate if the id is already present.
	CreateUser(ctx context.Context, u *User) error

	// GetUser retrieves a user by id, (nil, nil) if absent
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByName retrieves a user by login name, (nil, nil) if absent
	GetUserByName(ctx context.Context, name string) (*User, error)
}

// Derived document ids. An id is always a pure function of the
// identifiers it covers, never independently assigned.

// ServiceGroupID derives the document id for a participant's service
// group: the canonical participant identifier string.
func ServiceGroupID(p identifier.Participant) string {
	return p.String()
}

// ServiceMetadataID derives the document id for a (service group,
// document type) pair. ServiceInformation and Redirect documents for the
// same pair share this id.
func ServiceMetadataID(serviceGroupID string, d identifier.DocType) string {
	return serviceGroupID + "/" + d.String()
}

// Domain models

// ServiceGroup is the set of everything one participant publishes
type ServiceGroup struct {
	ID          string                 `bson:"_id" json:"id"`
	Participant identifier.Participant `bson:"participant" json:"participant"`
	OwnerID     string                 `bson:"owner_id" json:"ownerId"`

	// Extension is an opaque JSON string carrying the wire-format
	// extension elements; the SMP never interprets it
	Extension string `bson:"extension,omitempty" json:"extension,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// ServiceInformation is the endpoint/process registration for one
// (participant, document type) pair
type ServiceInformation struct {
	ID             string             `bson:"_id" json:"id"`
	ServiceGroupID string             `bson:"service_group_id" json:"serviceGroupId"`
	DocType        identifier.DocType `bson:"doc_type" json:"docType"`
	Processes      []Process          `bson:"processes" json:"processes"`
	Extension      string             `bson:"extension,omitempty" json:"extension,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// HasEndpoints reports whether any process carries at least one
// endpoint. A registration without endpoints exists locally but is not
// advertised in reference listings.
func (si *ServiceInformation) HasEndpoints() bool {
	for _, p := range si.Processes {
		if len(p.Endpoints) > 0 {
			return true
		}
	}
	return false
}

// Process groups the endpoints serving one business process
type Process struct {
	ProcessID identifier.Process `bson:"process_id" json:"processId"`
	Endpoints []Endpoint         `bson:"endpoints" json:"endpoints"`
	Extension string             `bson:"extension,omitempty" json:"extension,omitempty"`
}

// Endpoint describes one transport-level receiving address
type Endpoint struct {
	TransportProfile              string     `bson:"transport_profile" json:"transportProfile"`
	EndpointReference             string     `bson:"endpoint_reference" json:"endpointReference"`
	RequireBusinessLevelSignature bool       `bson:"require_business_level_signature" json:"requireBusinessLevelSignature"`
	MinimumAuthenticationLevel    string     `bson:"minimum_authentication_level,omitempty" json:"minimumAuthenticationLevel,omitempty"`
	ServiceActivationDate         *time.Time `bson:"service_activation_date,omitempty" json:"serviceActivationDate,omitempty"`
	ServiceExpirationDate         *time.Time `bson:"service_expiration_date,omitempty" json:"serviceExpirationDate,omitempty"`
	Certificate                   string     `bson:"certificate,omitempty" json:"certificate,omitempty"`
	ServiceDescription            string     `bson:"service_description,omitempty" json:"serviceDescription,omitempty"`
	TechnicalContactURL           string     `bson:"technical_contact_url,omitempty" json:"technicalContactUrl,omitempty"`
	TechnicalInformationURL       string     `bson:"technical_information_url,omitempty" json:"technicalInformationUrl,omitempty"`
	Extension                     string     `bson:"extension,omitempty" json:"extension,omitempty"`
}

// Redirect points a (participant, document type) pair at a different SMP
type Redirect struct {
	ID             string             `bson:"_id" json:"id"`
	ServiceGroupID string             `bson:"service_group_id" json:"serviceGroupId"`
	DocType        identifier.DocType `bson:"doc_type" json:"docType"`
	TargetHref     string             `bson:"target_href" json:"targetHref"`

	// SubjectUniqueIdentifier is the certificate CN of the destination SMP
	SubjectUniqueIdentifier string `bson:"subject_unique_identifier" json:"subjectUniqueIdentifier"`
	Certificate             string `bson:"certificate,omitempty" json:"certificate,omitempty"`
	Extension               string `bson:"extension,omitempty" json:"extension,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// BusinessCard carries publisher directory data for a service group.
// It shares the service group's id but is created and deleted
// independently.
type BusinessCard struct {
	ID       string           `bson:"_id" json:"id"`
	Entities []BusinessEntity `bson:"entities" json:"entities"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// BusinessEntity is one legal entity on a business card
type BusinessEntity struct {
	Names                 []string             `bson:"names" json:"names"`
	CountryCode           string               `bson:"country_code" json:"countryCode"`
	GeographicalInfo      string               `bson:"geographical_info,omitempty" json:"geographicalInfo,omitempty"`
	Identifiers           []BusinessIdentifier `bson:"identifiers,omitempty" json:"identifiers,omitempty"`
	Websites              []string             `bson:"websites,omitempty" json:"websites,omitempty"`
	Contacts              []BusinessContact    `bson:"contacts,omitempty" json:"contacts,omitempty"`
	AdditionalInformation string               `bson:"additional_information,omitempty" json:"additionalInformation,omitempty"`
	RegistrationDate      *time.Time           `bson:"registration_date,omitempty" json:"registrationDate,omitempty"`
}

// BusinessIdentifier is an external identifier on a business card entity
type BusinessIdentifier struct {
	Scheme string `bson:"scheme" json:"scheme"`
	Value  string `bson:"value" json:"value"`
}

// BusinessContact is a contact entry on a business card entity
type BusinessContact struct {
	Type        string `bson:"type,omitempty" json:"type,omitempty"`
	Name        string `bson:"name,omitempty" json:"name,omitempty"`
	PhoneNumber string `bson:"phone_number,omitempty" json:"phoneNumber,omitempty"`
	Email       string `bson:"email,omitempty" json:"email,omitempty"`
}

// User is an account that may own service groups
type User struct {
	ID       string `bson:"_id" json:"id"`
	UserName string `bson:"user_name" json:"userName"`

	// PasswordHash is a bcrypt hash for HTTP Basic credentials
	PasswordHash string `bson:"password_hash" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
