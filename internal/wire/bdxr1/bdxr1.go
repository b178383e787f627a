// Package bdxr1 implements the OASIS BDXR SMP 1.0 wire dialect.
//
// Structurally close to the legacy PEPPOL shape; the visible difference
// is the plain EndpointURI child instead of the W3C addressing wrapper.
package bdxr1

import (
	"encoding/xml"
	"fmt"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/internal/wire"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// Namespace is the OASIS BDXR SMP 1.0 namespace
const Namespace = "http://docs.oasis-open.org/bdxr/ns/SMP/2016/05"

// Translator maps the domain model onto the BDXR SMP 1.0 shape
type Translator struct {
	ids *identifier.Factory
}

// New creates a BDXR SMP 1.0 translator
func New(ids *identifier.Factory) *Translator {
	return &Translator{ids: ids}
}

// ContentType returns the media type of BDXR SMP 1.0 responses
func (t *Translator) ContentType() string { return "text/xml; charset=utf-8" }

type identifierXML struct {
	Value  string `xml:",chardata"`
	Scheme string `xml:"scheme,attr"`
}

type extensionXML struct {
	Content string `xml:",innerxml"`
}

type serviceGroupXML struct {
	XMLName               xml.Name      `xml:"ServiceGroup"`
	Xmlns                 string        `xml:"xmlns,attr,omitempty"`
	ParticipantIdentifier identifierXML `xml:"ParticipantIdentifier"`
	References            struct {
		ServiceMetadataReferences []struct {
			Href string `xml:"href,attr"`
		} `xml:"ServiceMetadataReference"`
	} `xml:"ServiceMetadataReferenceCollection"`
	Extension *extensionXML `xml:"Extension"`
}

type endpointXML struct {
	TransportProfile              string        `xml:"transportProfile,attr"`
	EndpointURI                   string        `xml:"EndpointURI"`
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
func (t *Translator) MarshalServiceMetadata(md wire.Metadata) ([]byte, error) {
	sm, err := t.toWireServiceMetadata(md)
	if err != nil {
		return nil, err
	}
	return marshalDocument(&signedServiceMetadataXML{Xmlns: Namespace, ServiceMetadata: *sm})
}

// UnmarshalServiceMetadata parses a service metadata PUT body
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
		ext, err := extensionContent(sm.Redirect.Extension)
		if err != nil {
			return nil, err
		}
		return &wire.ServiceMetadataInput{
			Redirect: &storage.Redirect{
				TargetHref:              sm.Redirect.Href,
				SubjectUniqueIdentifier: sm.Redirect.CertificateUID,
				Extension:               ext,
			},
		}, nil
	default:
		return nil, wire.ErrEmptyMetadata
	}
}

// MarshalCompleteServiceGroup renders the full export with every
// registration and redirect body embedded.
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
		out.References.ServiceMetadataReferences = append(out.References.ServiceMetadataReferences,
			struct {
				Href string `xml:"href,attr"`
			}{Href: ref.Href})
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
			epExt, err := extensionElement(ep.Extension)
			if err != nil {
				return nil, err
			}
			pw.ServiceEndpointList.Endpoints = append(pw.ServiceEndpointList.Endpoints, endpointXML{
				TransportProfile:              ep.TransportProfile,
				EndpointURI:                   ep.EndpointReference,
				RequireBusinessLevelSignature: ep.RequireBusinessLevelSignature,
				MinimumAuthenticationLevel:    ep.MinimumAuthenticationLevel,
				ServiceActivationDate:         wire.FormatTime(ep.ServiceActivationDate),
				ServiceExpirationDate:         wire.FormatTime(ep.ServiceExpirationDate),
				Certificate:                   ep.Certificate,
				ServiceDescription:            ep.ServiceDescription,
				TechnicalContactUrl:           ep.TechnicalContactURL,
				TechnicalInformationUrl:       ep.TechnicalInformationURL,
				Extension:                     epExt,
			})
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
				EndpointReference:             ew.EndpointURI,
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
