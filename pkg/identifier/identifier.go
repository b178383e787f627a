// Package identifier implements the participant, document type and
// process identifiers used throughout the SMP, including the
// scheme-dependent equality rules of the PEPPOL and OASIS BDXR
// specifications.
//
// An identifier is a (scheme, value) pair. Its canonical string form is
// "scheme::value". Whether two identifiers with the same scheme are equal
// depends on the scheme: the PEPPOL participant scheme
// (iso6523-actorid-upis) compares values case-insensitively, while
// document type and process schemes compare case-sensitively. Schemes
// themselves always compare case-sensitively.
//
// Parsing never returns an error for malformed input; it returns nil.
// A nil identifier is a client problem, not a server problem, and callers
// are expected to map it to a bad-request response.
package identifier

import (
	"net/url"
	"strings"
)

// Separator joins scheme and value in the canonical string form.
const Separator = "::"

// Well-known identifier schemes.
const (
	// SchemePeppolParticipant is the default PEPPOL participant scheme.
	// Values under this scheme are compared case-insensitively.
	SchemePeppolParticipant = "iso6523-actorid-upis"

	// SchemeBusdoxDocType is the PEPPOL/busdox document type scheme.
	SchemeBusdoxDocType = "busdox-docid-qns"

	// SchemeBdxrDocType is the OASIS BDXR document type scheme.
	SchemeBdxrDocType = "bdx-docid-qns"

	// SchemeCenbiiProcess is the CEN BII process identifier scheme.
	SchemeCenbiiProcess = "cenbii-procid-ubl"
)

// Participant identifies a participant in the exchange network.
type Participant struct {
	Scheme string `bson:"scheme" json:"scheme"`
	Value  string `bson:"value" json:"value"`
}

// DocType identifies a document type a participant can receive.
type DocType struct {
	Scheme string `bson:"scheme" json:"scheme"`
	Value  string `bson:"value" json:"value"`
}

// Process identifies a business process within a registration.
type Process struct {
	Scheme string `bson:"scheme" json:"scheme"`
	Value  string `bson:"value" json:"value"`
}

// Factory creates and parses identifiers and owns the per-scheme
// case-sensitivity rules. All identifiers that are compared against each
// other must come from the same factory so the rules agree.
type Factory struct {
	caseInsensitive map[string]bool
}

// NewFactory returns a factory with the PEPPOL defaults: participant
// values under iso6523-actorid-upis are case-insensitive, everything
// else is case-sensitive.
func NewFactory() *Factory {
	return &Factory{
		caseInsensitive: map[string]bool{
			SchemePeppolParticipant: true,
		},
	}
}

// RegisterCaseInsensitiveScheme marks a scheme so that values under it
// compare case-insensitively and are lowercased on creation.
func (f *Factory) RegisterCaseInsensitiveScheme(scheme string) {
	f.caseInsensitive[scheme] = true
}

// IsCaseInsensitive reports whether values under the scheme compare
// case-insensitively.
func (f *Factory) IsCaseInsensitive(scheme string) bool {
	return f.caseInsensitive[scheme]
}

// normalize lowercases the value for case-insensitive schemes so that
// identical canonical strings always produce equal identifiers, no
// matter which code path created them.
func (f *Factory) normalize(scheme, value string) string {
	if f.caseInsensitive[scheme] {
		return strings.ToLower(value)
	}
	return value
}

// split separates a canonical "scheme::value" string. The value part may
// itself contain "::" (document type values frequently do), so only the
// first separator is significant.
func split(text string) (scheme, value string, ok bool) {
	idx := strings.Index(text, Separator)
	if idx < 0 {
		return "", "", false
	}
	scheme = text[:idx]
	value = text[idx+len(Separator):]
	if value == "" {
		return "", "", false
	}
	return scheme, value, true
}

// ParseParticipant parses a canonical participant identifier string.
// Returns nil on malformed input.
func (f *Factory) ParseParticipant(text string) *Participant {
	scheme, value, ok := split(text)
	if !ok {
		return nil
	}
	return f.CreateParticipant(scheme, value)
}

// CreateParticipant builds a participant identifier from an already
// separated scheme and value, normalizing per the scheme's rules.
// Returns nil if the value is empty.
func (f *Factory) CreateParticipant(scheme, value string) *Participant {
	if value == "" {
		return nil
	}
	return &Participant{Scheme: scheme, Value: f.normalize(scheme, value)}
}

// ParseDocType parses a canonical document type identifier string.
// Returns nil on malformed input.
func (f *Factory) ParseDocType(text string) *DocType {
	scheme, value, ok := split(text)
	if !ok {
		return nil
	}
	return f.CreateDocType(scheme, value)
}

// CreateDocType builds a document type identifier. Returns nil if the
// value is empty.
func (f *Factory) CreateDocType(scheme, value string) *DocType {
	if value == "" {
		return nil
	}
	return &DocType{Scheme: scheme, Value: f.normalize(scheme, value)}
}

// ParseProcess parses a canonical process identifier string. Returns nil
// on malformed input.
func (f *Factory) ParseProcess(text string) *Process {
	scheme, value, ok := split(text)
	if !ok {
		return nil
	}
	return f.CreateProcess(scheme, value)
}

// CreateProcess builds a process identifier. Returns nil if the value is
// empty.
func (f *Factory) CreateProcess(scheme, value string) *Process {
	if value == "" {
		return nil
	}
	return &Process{Scheme: scheme, Value: f.normalize(scheme, value)}
}

// sameContent is the one equality used everywhere two identifiers from
// different sources (URL path vs. request body) must be compared.
func (f *Factory) sameContent(aScheme, aValue, bScheme, bValue string) bool {
	if aScheme != bScheme {
		return false
	}
	if f.caseInsensitive[aScheme] {
		return strings.EqualFold(aValue, bValue)
	}
	return aValue == bValue
}

// HasSameContent reports whether two participant identifiers are equal
// under the factory's scheme rules.
func (f *Factory) HasSameContent(a, b *Participant) bool {
	if a == nil || b == nil {
		return a == b
	}
	return f.sameContent(a.Scheme, a.Value, b.Scheme, b.Value)
}

// HasSameDocType reports whether two document type identifiers are equal
// under the factory's scheme rules.
func (f *Factory) HasSameDocType(a, b *DocType) bool {
	if a == nil || b == nil {
		return a == b
	}
	return f.sameContent(a.Scheme, a.Value, b.Scheme, b.Value)
}

// HasSameProcess reports whether two process identifiers are equal under
// the factory's scheme rules.
func (f *Factory) HasSameProcess(a, b *Process) bool {
	if a == nil || b == nil {
		return a == b
	}
	return f.sameContent(a.Scheme, a.Value, b.Scheme, b.Value)
}

// String returns the canonical "scheme::value" form.
func (p Participant) String() string { return p.Scheme + Separator + p.Value }

// Escaped returns the URI-encoded canonical form for use in HREFs and
// URL path segments.
func (p Participant) Escaped() string { return url.PathEscape(p.String()) }

// String returns the canonical "scheme::value" form.
func (d DocType) String() string { return d.Scheme + Separator + d.Value }

// Escaped returns the URI-encoded canonical form for use in HREFs and
// URL path segments.
func (d DocType) Escaped() string { return url.PathEscape(d.String()) }

// String returns the canonical "scheme::value" form.
func (p Process) String() string { return p.Scheme + Separator + p.Value }

// Escaped returns the URI-encoded canonical form.
func (p Process) Escaped() string { return url.PathEscape(p.String()) }
