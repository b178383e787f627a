// Package peppol implements the PEPPOL SMP 1.0 (busdox) wire dialect.
//
// The legacy PEPPOL shape differs from the OASIS BDXR dialects in two
// visible ways: endpoint addresses are wrapped in a W3C addressing
// EndpointReference/Address pair, and resolved metadata is returned
// under a SignedServiceMetadata root.
package peppol

import (
	"encoding/xml"
	"fmt"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/internal/wire"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// Namespace is the busdox service metadata publishing namespace
const Namespace = "http://busdox.org/serviceMetadata/publishing/1.0/"

// Translator maps the domain model onto the PEPPOL SMP 1.0 shape
type Translator struct {
	ids *identifier.Factory
}

// New creates a PEPPOL SMP 1.0 translator
func New(ids *identifier.Factory) *Translator {
	return &Translator{ids: ids}
}

// ContentType returns the media type of PEPPOL SMP responses
func (t *Translator) ContentType() string { return "text/xml; charset=utf-8" }

// Wire structures. Only local element names are matched on input so
// payloads with or without namespace prefixes both parse.

type identifierXML struct {
	Value  string `xml:",chardata"`
	Scheme string `xml:"scheme,attr"`
}

type extensionXML struct {
	Content string `xml:",innerxml"`
}

type referenceXML struct {
	Href string `xml:"href,attr"`
}

type serviceGroupXML struct {
	XMLName               xml.Name      `xml:"ServiceGroup"`
	Xmlns                 string        `xml:"xmlns,attr,omitempty"`
	ParticipantIdentifier identifierXML `xml:"ParticipantIdentifier"`
	References            struct {
		ServiceMetadataReferences []referenceXML `xml:"ServiceMetadataReference"`
	} `xml:"ServiceMetadataReferenceCollection"`
	Extension *extensionXML `xml:"Extension"`
}

type endpointXML struct {
	TransportProfile  string `xml:"transportProfile,attr"`
	EndpointReference struct {
		Address string `xml:"Address"`
	} `xml:"EndpointReference"`
	RequireBusinessLevelSignature bool          `xml:"RequireBusinessLevelSignature"`
	MinimumAuthenticationLevel    string        `xml:"MinimumAuthenticationLevel,omitempty"`
	ServiceActivationDate         string        `xml:"ServiceActivationDate,omitempty"`
	ServiceExpirationDate         string        `xml:"ServiceExpirationDate,omitempty"`
	Certificate                   string        `xml:"Certificate,omitempty"`
	ServiceDescription            string        `xml:"ServiceDescription,omitempty"`
	TechnicalContactUrl           string        `xml:"TechnicalContactUrl,omitempty"`
	TechnicalInformationUrl       string        `xml:"TechnicalInformationUrl,omitempty"`
	Extension                     *extensionXML `xml:"Extension"`
}

type processXML struct {
	ProcessIdentifier   identifierXML `xml:"ProcessIdentifier"`
	ServiceEndpointList struct {
		Endpoints []endpointXML `xml:"Endpoint"`
	} `xml:"ServiceEndpointList"`
	Extension *extensionXML `xml:"Extension"`
}

type serviceInformationXML struct {
	ParticipantIdentifier identifierXML `xml:"ParticipantIdentifier"`
	DocumentIdentifier    identifierXML `xml:"DocumentIdentifier"`
	ProcessList           struct {
		Processes []processXML `xml:"Process"`
	} `xml:"ProcessList"`
	Extension *extensionXML `xml:"Extension"`
}

type redirectXML struct {
	Href           string        `xml:"href,attr"`
	CertificateUID string        `xml:"CertificateUID"`
	Extension      *extensionXML `xml:"Extension"`
}

type serviceMetadataXML struct {
	XMLName            xml.Name               `xml:"ServiceMetadata"`
	Xmlns              string                 `xml:"xmlns,attr,omitempty"`
	ServiceInformation *serviceInformationXML `xml:"ServiceInformation"`
	Redirect           *redirectXML           `xml:"Redirect"`
}

type signedServiceMetadataXML struct {
	XMLName         xml.Name           `xml:"SignedServiceMetadata"`
	Xmlns           string             `xml:"xmlns,attr,omitempty"`
	ServiceMetadata serviceMetadataXML `xml:"ServiceMetadata"`
}

type completeServiceGroupXML struct {
	XMLName          xml.Name             `xml:"CompleteServiceGroup"`
	Xmlns            string               `xml:"xmlns,attr,omitempty"`
	ServiceGroup     serviceGroupXML      `xml:"ServiceGroup"`
	ServiceMetadatas []serviceMetadataXML `xml:"ServiceMetadata"`
}

// MarshalServiceGroup renders a service group with its reference
// collection.
func (t *Translator) MarshalServiceGroup(sg *storage.ServiceGroup, refs []wire.Reference) ([]byte, error) {
	out, err := t.toWireServiceGroup(sg, refs)
	if err != nil {
		return nil, err
	}
	out.Xmlns = Namespace
	return marshalDocument(out)
}

// UnmarshalServiceGroup parses a service group PUT body
func (t *Translator) UnmarshalServiceGroup(data []byte) (*wire.ServiceGroupInput, error) {
	var in serviceGroupXML
	if err := xml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parsing service group: %w", err)
	}
	ext, err := extensionContent(in.Extension)
	if err != nil {
		return nil, err
	}
	return &wire.ServiceGroupInput{
		Participant: t.ids.CreateParticipant(in.ParticipantIdentifier.Scheme, in.ParticipantIdentifier.Value),
		Extension:   ext,
	}, nil
}

// MarshalServiceMetadata renders a resolved registration or redirect
// under the SignedServiceMetadata root.
func (t *Translator) MarshalServiceMetadata(md wire.Metadata) ([]byte, error) {
	sm, err := t.toWireServiceMetadata(md)
	if err != nil {
		return nil, err
	}
	return marshalDocument(&signedServiceMetadataXML{Xmlns: Namespace, ServiceMetadata: *sm})
}

// UnmarshalServiceMetadata parses a service metadata PUT body. Both the
// bare ServiceMetadata root and the SignedServiceMetadata wrapper are
// accepted.
func (t *Translator) UnmarshalServiceMetadata(data []byte) (*wire.ServiceMetadataInput, error) {
	var sm serviceMetadataXML
	if err := xml.Unmarshal(data, &sm); err != nil {
		var signed signedServiceMetadataXML
		if err2 := xml.Unmarshal(data, &signed); err2 != nil {
			return nil, fmt.Errorf("parsing service metadata: %w", err)
		}
		sm = signed.ServiceMetadata
	}

	switch {
	case sm.ServiceInformation != nil:
		return t.fromWireServiceInformation(sm.ServiceInformation)
	case sm.Redirect != nil:
		return fromWireRedirect(sm.Redirect.Href, sm.Redirect.CertificateUID, sm.Redirect.Extension)
	default:
		return nil, wire.ErrEmptyMetadata
	}
}

// MarshalCompleteServiceGroup renders the full export: the group plus
// every registration and redirect body embedded. The embedded group
// carries no reference collection since the bodies themselves follow.
func (t *Translator) MarshalCompleteServiceGroup(sg *storage.ServiceGroup, infos []*storage.ServiceInformation, redirects []*storage.Redirect) ([]byte, error) {
	group, err := t.toWireServiceGroup(sg, nil)
	if err != nil {
		return nil, err
	}

	out := &completeServiceGroupXML{Xmlns: Namespace, ServiceGroup: *group}
	for _, r := range redirects {
		sm, err := t.toWireServiceMetadata(wire.Metadata{Redirect: r})
		if err != nil {
			return nil, err
		}
		out.ServiceMetadatas = append(out.ServiceMetadatas, *sm)
	}
	for _, si := range infos {
		sm, err := t.toWireServiceMetadata(wire.Metadata{ServiceInformation: si})
		if err != nil {
			return nil, err
		}
		out.ServiceMetadatas = append(out.ServiceMetadatas, *sm)
	}
	return marshalDocument(out)
}

func (t *Translator) toWireServiceGroup(sg *storage.ServiceGroup, refs []wire.Reference) (*serviceGroupXML, error) {
	out := &serviceGroupXML{
		ParticipantIdentifier: identifierXML{Scheme: sg.Participant.Scheme, Value: sg.Participant.Value},
	}
	for _, ref := range refs {
		out.References.ServiceMetadataReferences = append(out.References.ServiceMetadataReferences, referenceXML{Href: ref.Href})
	}
	ext, err := extensionElement(sg.Extension)
	if err != nil {
		return nil, err
	}
	out.Extension = ext
	return out, nil
}

func (t *Translator) toWireServiceMetadata(md wire.Metadata) (*serviceMetadataXML, error) {
	if md.Redirect != nil {
		r := md.Redirect
		ext, err := extensionElement(r.Extension)
		if err != nil {
			return nil, err
		}
		return &serviceMetadataXML{Redirect: &redirectXML{
			Href:           r.TargetHref,
			CertificateUID: r.SubjectUniqueIdentifier,
			Extension:      ext,
		}}, nil
	}

	si := md.ServiceInformation
	p := t.ids.ParseParticipant(si.ServiceGroupID)
	if p == nil {
		return nil, fmt.Errorf("registration %s: malformed service group id", si.ID)
	}

	out := &serviceInformationXML{
		ParticipantIdentifier: identifierXML{Scheme: p.Scheme, Value: p.Value},
		DocumentIdentifier:    identifierXML{Scheme: si.DocType.Scheme, Value: si.DocType.Value},
	}
	for _, proc := range si.Processes {
		pw := processXML{
			ProcessIdentifier: identifierXML{Scheme: proc.ProcessID.Scheme, Value: proc.ProcessID.Value},
		}
		procExt, err := extensionElement(proc.Extension)
		if err != nil {
			return nil, err
		}
		pw.Extension = procExt
		for _, ep := range proc.Endpoints {
			ew := endpointXML{
				TransportProfile:              ep.TransportProfile,
				RequireBusinessLevelSignature: ep.RequireBusinessLevelSignature,
				MinimumAuthenticationLevel:    ep.MinimumAuthenticationLevel,
				ServiceActivationDate:         wire.FormatTime(ep.ServiceActivationDate),
				ServiceExpirationDate:         wire.FormatTime(ep.ServiceExpirationDate),
				Certificate:                   ep.Certificate,
				ServiceDescription:            ep.ServiceDescription,
				TechnicalContactUrl:           ep.TechnicalContactURL,
				TechnicalInformationUrl:       ep.TechnicalInformationURL,
			}
			ew.EndpointReference.Address = ep.EndpointReference
			epExt, err := extensionElement(ep.Extension)
			if err != nil {
				return nil, err
			}
			ew.Extension = epExt
			pw.ServiceEndpointList.Endpoints = append(pw.ServiceEndpointList.Endpoints, ew)
		}
		out.ProcessList.Processes = append(out.ProcessList.Processes, pw)
	}
	siExt, err := extensionElement(si.Extension)
	if err != nil {
		return nil, err
	}
	out.Extension = siExt
	return &serviceMetadataXML{ServiceInformation: out}, nil
}

func (t *Translator) fromWireServiceInformation(in *serviceInformationXML) (*wire.ServiceMetadataInput, error) {
	siExt, err := extensionContent(in.Extension)
	if err != nil {
		return nil, err
	}

	si := &storage.ServiceInformation{Extension: siExt}
	docType := t.ids.CreateDocType(in.DocumentIdentifier.Scheme, in.DocumentIdentifier.Value)
	if docType != nil {
		si.DocType = *docType
	}

	for _, pw := range in.ProcessList.Processes {
		procID := t.ids.CreateProcess(pw.ProcessIdentifier.Scheme, pw.ProcessIdentifier.Value)
		if procID == nil {
			return nil, fmt.Errorf("process list: malformed process identifier %q", pw.ProcessIdentifier.Value)
		}
		procExt, err := extensionContent(pw.Extension)
		if err != nil {
			return nil, err
		}
		proc := storage.Process{ProcessID: *procID, Extension: procExt}
		for _, ew := range pw.ServiceEndpointList.Endpoints {
			epExt, err := extensionContent(ew.Extension)
			if err != nil {
				return nil, err
			}
			proc.Endpoints = append(proc.Endpoints, storage.Endpoint{
				TransportProfile:              ew.TransportProfile,
				EndpointReference:             ew.EndpointReference.Address,
				RequireBusinessLevelSignature: ew.RequireBusinessLevelSignature,
				MinimumAuthenticationLevel:    ew.MinimumAuthenticationLevel,
				ServiceActivationDate:         wire.ParseTime(ew.ServiceActivationDate),
				ServiceExpirationDate:         wire.ParseTime(ew.ServiceExpirationDate),
				Certificate:                   ew.Certificate,
				ServiceDescription:            ew.ServiceDescription,
				TechnicalContactURL:           ew.TechnicalContactUrl,
				TechnicalInformationURL:       ew.TechnicalInformationUrl,
				Extension:                     epExt,
			})
		}
		si.Processes = append(si.Processes, proc)
	}

	return &wire.ServiceMetadataInput{
		Participant:        t.ids.CreateParticipant(in.ParticipantIdentifier.Scheme, in.ParticipantIdentifier.Value),
		DocType:            docType,
		ServiceInformation: si,
	}, nil
}

func fromWireRedirect(href, certUID string, ext *extensionXML) (*wire.ServiceMetadataInput, error) {
	content, err := extensionContent(ext)
	if err != nil {
		return nil, err
	}
	return &wire.ServiceMetadataInput{
		Redirect: &storage.Redirect{
			TargetHref:              href,
			SubjectUniqueIdentifier: certUID,
			Extension:               content,
		},
	}, nil
}

func extensionElement(stored string) (*extensionXML, error) {
	raw, err := wire.ExtensionXML(stored)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	return &extensionXML{Content: raw}, nil
}

func extensionContent(ext *extensionXML) (string, error) {
	if ext == nil {
		return "", nil
	}
	return wire.StoreExtensionXML(ext.Content)
}

func marshalDocument(v any) ([]byte, error) {
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("rendering response: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}
