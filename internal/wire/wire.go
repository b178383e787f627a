// Package wire holds the rules shared by all protocol translators:
// the translator contract, reference collection construction, and the
// opaque extension representation. The three dialect packages (peppol,
// bdxr1, bdxr2) map one domain model onto their wire shapes; everything
// dialect-independent lives here.
package wire

import (
	"errors"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// ErrEmptyMetadata is returned by translators when a service metadata
// body carries neither a registration nor a redirect.
var ErrEmptyMetadata = errors.New("service metadata carries neither service information nor a redirect")

// ServiceGroupInput is the dialect-independent content of a service
// group PUT body.
type ServiceGroupInput struct {
	// Participant is the identifier from the body, nil when the body
	// carried none or a malformed one.
	Participant *identifier.Participant

	// Extension is the stored (JSON string) form of the body's
	// extension blocks.
	Extension string
}

// ServiceMetadataInput is the dialect-independent content of a service
// metadata PUT body. Exactly one of ServiceInformation and Redirect is
// non-nil; a body carrying neither is a client error the translator
// reports.
type ServiceMetadataInput struct {
	// Participant and DocType are the identifiers from the body, for
	// comparison against the path. Either may be nil when absent.
	Participant *identifier.Participant
	DocType     *identifier.DocType

	ServiceInformation *storage.ServiceInformation
	Redirect           *storage.Redirect
}

// Metadata is what a resolution GET returns for one (service group,
// document type) pair. Exactly one field is non-nil; the caller applies
// the redirect-first precedence before constructing it.
type Metadata struct {
	ServiceInformation *storage.ServiceInformation
	Redirect           *storage.Redirect
}

// Reference is one entry of a service group's metadata reference
// collection.
type Reference struct {
	// Href is the absolute URL of the service metadata resource
	Href string

	// DocType is the document type the reference advertises
	DocType identifier.DocType
}

// Translator maps the domain model onto one wire dialect. Translators
// are stateless; all lifecycle decisions stay in the managers and the
// server.
type Translator interface {
	// ContentType is the response media type of this dialect
	ContentType() string

	// MarshalServiceGroup renders a service group with its reference
	// collection.
	MarshalServiceGroup(sg *storage.ServiceGroup, refs []Reference) ([]byte, error)

	// UnmarshalServiceGroup parses a service group PUT body
	UnmarshalServiceGroup(data []byte) (*ServiceGroupInput, error)

	// MarshalServiceMetadata renders a resolved registration or redirect
	MarshalServiceMetadata(md Metadata) ([]byte, error)

	// UnmarshalServiceMetadata parses a service metadata PUT body
	UnmarshalServiceMetadata(data []byte) (*ServiceMetadataInput, error)

	// MarshalCompleteServiceGroup renders the full export: the group
	// plus every registration body embedded.
	MarshalCompleteServiceGroup(sg *storage.ServiceGroup, infos []*storage.ServiceInformation, redirects []*storage.Redirect) ([]byte, error)
}

// BuildReferences assembles the reference collection for a service
// group. Every redirect is advertised; a registration is advertised
// only when at least one of its processes carries an endpoint.
// Registrations without endpoints exist locally but are deliberately
// omitted.
//
// baseURL is the dialect mount of this server, without trailing slash.
func BuildReferences(baseURL string, p identifier.Participant, infos []*storage.ServiceInformation, redirects []*storage.Redirect) []Reference {
	refs := make([]Reference, 0, len(infos)+len(redirects))
	for _, r := range redirects {
		refs = append(refs, Reference{
			Href:    metadataHref(baseURL, p, r.DocType),
			DocType: r.DocType,
		})
	}
	for _, si := range infos {
		if !si.HasEndpoints() {
			continue
		}
		refs = append(refs, Reference{
			Href:    metadataHref(baseURL, p, si.DocType),
			DocType: si.DocType,
		})
	}
	return refs
}

func metadataHref(baseURL string, p identifier.Participant, d identifier.DocType) string {
	return baseURL + "/" + p.Escaped() + "/services/" + d.Escaped()
}

// ResolveMetadata applies the redirect-first precedence: a redirect for
// the pair wins even when a registration also exists.
func ResolveMetadata(si *storage.ServiceInformation, r *storage.Redirect) (Metadata, bool) {
	if r != nil {
		return Metadata{Redirect: r}, true
	}
	if si != nil {
		return Metadata{ServiceInformation: si}, true
	}
	return Metadata{}, false
}
