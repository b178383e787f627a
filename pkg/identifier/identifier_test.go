package identifier

import (
	"net/url"
	"strings"
	"testing"
)

func TestParseParticipant(t *testing.T) {
	f := NewFactory()

	tests := []struct {
		name       string
		text       string
		wantScheme string
		wantValue  string
		wantNil    bool
	}{
		{
			name:       "peppol participant",
			text:       "iso6523-actorid-upis::0088:5798000000001",
			wantScheme: "iso6523-actorid-upis",
			wantValue:  "0088:5798000000001",
		},
		{
			name:       "case-insensitive scheme lowercases value",
			text:       "iso6523-actorid-upis::0088:ABCDEF",
			wantScheme: "iso6523-actorid-upis",
			wantValue:  "0088:abcdef",
		},
		{
			name:       "empty scheme allowed",
			text:       "::raw-value",
			wantScheme: "",
			wantValue:  "raw-value",
		},
		{
			name:    "no separator",
			text:    "0088:5798000000001",
			wantNil: true,
		},
		{
			name:    "empty value",
			text:    "iso6523-actorid-upis::",
			wantNil: true,
		},
		{
			name:    "empty string",
			text:    "",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := f.ParseParticipant(tt.text)
			if tt.wantNil {
				if p != nil {
					t.Fatalf("ParseParticipant(%q) = %v, want nil", tt.text, p)
				}
				return
			}
			if p == nil {
				t.Fatalf("ParseParticipant(%q) = nil", tt.text)
			}
			if p.Scheme != tt.wantScheme {
				t.Errorf("Scheme = %q, want %q", p.Scheme, tt.wantScheme)
			}
			if p.Value != tt.wantValue {
				t.Errorf("Value = %q, want %q", p.Value, tt.wantValue)
			}
		})
	}
}

func TestParseDocTypeValueContainingSeparator(t *testing.T) {
	f := NewFactory()

	// Document type values regularly contain "::" themselves; only the
	// first separator splits scheme from value.
	text := "busdox-docid-qns::urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##urn:cen.eu:en16931:2017::2.1"
	d := f.ParseDocType(text)
	if d == nil {
		t.Fatal("ParseDocType returned nil")
	}
	if d.Scheme != "busdox-docid-qns" {
		t.Errorf("Scheme = %q", d.Scheme)
	}
	if d.Value != "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##urn:cen.eu:en16931:2017::2.1" {
		t.Errorf("Value = %q", d.Value)
	}
}

func TestHasSameContentSchemeRules(t *testing.T) {
	f := NewFactory()

	// Case-insensitive scheme: values differing only in case are equal.
	a := f.ParseParticipant("iso6523-actorid-upis::0088:ABC")
	b := f.ParseParticipant("iso6523-actorid-upis::0088:abc")
	if !f.HasSameContent(a, b) {
		t.Error("case-insensitive scheme: identifiers should match")
	}

	// Case-sensitive scheme: same values in different case are distinct.
	c := f.ParseDocType("busdox-docid-qns::urn:Test")
	d := f.ParseDocType("busdox-docid-qns::urn:test")
	if f.HasSameDocType(c, d) {
		t.Error("case-sensitive scheme: identifiers should not match")
	}

	// Schemes always compare case-sensitively.
	e := f.CreateDocType("Busdox-Docid-Qns", "urn:test")
	g := f.CreateDocType("busdox-docid-qns", "urn:test")
	if f.HasSameDocType(e, g) {
		t.Error("scheme comparison must be case-sensitive")
	}
}

func TestHasSameContentReflexiveSymmetric(t *testing.T) {
	f := NewFactory()

	a := f.ParseParticipant("iso6523-actorid-upis::9915:test")
	b := f.ParseParticipant("iso6523-actorid-upis::9915:TEST")

	if !f.HasSameContent(a, a) {
		t.Error("equality must be reflexive")
	}
	if f.HasSameContent(a, b) != f.HasSameContent(b, a) {
		t.Error("equality must be symmetric")
	}
}

func TestCanonicalStringStable(t *testing.T) {
	f := NewFactory()

	// Two parses of the same canonical string always produce the same
	// canonical string and equal identifiers, regardless of code path.
	text := "iso6523-actorid-upis::0088:5798000000001"
	parsed := f.ParseParticipant(text)
	created := f.CreateParticipant("iso6523-actorid-upis", "0088:5798000000001")

	if parsed.String() != created.String() {
		t.Errorf("canonical forms differ: %q vs %q", parsed.String(), created.String())
	}
	if !f.HasSameContent(parsed, created) {
		t.Error("identifiers with identical canonical strings must be equal")
	}
}

func TestEscapedRoundTrip(t *testing.T) {
	f := NewFactory()

	p := f.ParseParticipant("iso6523-actorid-upis::0088/5798000000001")
	got := p.Escaped()
	decoded, err := url.PathUnescape(got)
	if err != nil {
		t.Fatalf("unescape %q: %v", got, err)
	}
	if decoded != p.String() {
		t.Errorf("Escaped() does not round-trip: %q -> %q", got, decoded)
	}
	if strings.Contains(got, "/") {
		t.Errorf("Escaped() must not contain a raw path separator: %q", got)
	}
}
