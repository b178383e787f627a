// Package bdxr2 implements the OASIS BDXR SMP 2.0 wire dialect.
//
// The 2.0 shape is not a 1:1 structural mapping of the domain model:
// endpoints are siblings of a process list inside a ProcessMetadata
// block, so several processes sharing one endpoint set collapse into a
// single block on output and fan back out into per-process domain
// records on input. Service references carry the document type
// identifier itself rather than an href.
package bdxr2

import (
	"encoding/json"
	"encoding/xml"
	"fmt"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/internal/wire"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// Root element namespaces of the BDXR SMP 2.0 schema set.
const (
	ServiceGroupNamespace    = "http://docs.oasis-open.org/bdxr/ns/SMP/2/ServiceGroup"
	ServiceMetadataNamespace = "http://docs.oasis-open.org/bdxr/ns/SMP/2/ServiceMetadata"
)

// Translator maps the domain model onto the BDXR SMP 2.0 shape
type Translator struct {
	ids *identifier.Factory
}

// New creates a BDXR SMP 2.0 translator
func New(ids *identifier.Factory) *Translator {
	return &Translator{ids: ids}
}

// ContentType returns the media type of BDXR SMP 2.0 responses
func (t *Translator) ContentType() string { return "text/xml; charset=utf-8" }

type identifierXML struct {
	Value    string `xml:",chardata"`
	SchemeID string `xml:"schemeID,attr"`
}

type extensionXML struct {
	Content string `xml:",innerxml"`
}

type serviceReferenceXML struct {
	ID identifierXML `xml:"ID"`
}

type serviceGroupXML struct {
	XMLName           xml.Name              `xml:"ServiceGroup"`
	Xmlns             string                `xml:"xmlns,attr,omitempty"`
	SMPExtensions     *extensionXML         `xml:"SMPExtensions"`
	ParticipantID     identifierXML         `xml:"ParticipantID"`
	ServiceReferences []serviceReferenceXML `xml:"ServiceReference"`
}

type endpointXML struct {
	TransportProfileID             string        `xml:"TransportProfileID"`
	AddressURI                     string        `xml:"AddressURI"`
	RequiresBusinessLevelSignature bool          `xml:"RequiresBusinessLevelSignature"`
	MinimumAuthenticationLevel     string        `xml:"MinimumAuthenticationLevel,omitempty"`
	ActivationDate                 string        `xml:"ActivationDate,omitempty"`
	ExpirationDate                 string        `xml:"ExpirationDate,omitempty"`
	Certificate                    string        `xml:"Certificate,omitempty"`
	Description                    string        `xml:"Description,omitempty"`
	Contact                        string        `xml:"Contact,omitempty"`
	TechnicalInformationURI        string        `xml:"TechnicalInformationURI,omitempty"`
	SMPExtensions                  *extensionXML `xml:"SMPExtensions"`
}

type processXML struct {
	ID            identifierXML `xml:"ID"`
	SMPExtensions *extensionXML `xml:"SMPExtensions"`
}

type redirectXML struct {
	PublisherURI            string        `xml:"PublisherURI"`
	SubjectUniqueIdentifier string        `xml:"SubjectUniqueIdentifier,omitempty"`
	Certificate             string        `xml:"Certificate,omitempty"`
	SMPExtensions           *extensionXML `xml:"SMPExtensions"`
}

// processMetadataXML is one fan-out block: every process inside it is
// served by every endpoint inside it.
type processMetadataXML struct {
	Processes []processXML  `xml:"Process"`
	Endpoints []endpointXML `xml:"Endpoint"`
	Redirect  *redirectXML  `xml:"Redirect"`
}

type serviceMetadataXML struct {
	XMLName         xml.Name             `xml:"ServiceMetadata"`
	Xmlns           string               `xml:"xmlns,attr,omitempty"`
	SMPExtensions   *extensionXML        `xml:"SMPExtensions"`
	ID              identifierXML        `xml:"ID"`
	ParticipantID   identifierXML        `xml:"ParticipantID"`
	ProcessMetadata []processMetadataXML `xml:"ProcessMetadata"`
}

type completeServiceGroupXML struct {
	XMLName          xml.Name             `xml:"CompleteServiceGroup"`
	Xmlns            string               `xml:"xmlns,attr,omitempty"`
	ServiceGroup     serviceGroupXML      `xml:"ServiceGroup"`
	ServiceMetadatas []serviceMetadataXML `xml:"ServiceMetadata"`
}

// MarshalServiceGroup renders a service group. References carry the
// advertised document type identifiers.
func (t *Translator) MarshalServiceGroup(sg *storage.ServiceGroup, refs []wire.Reference) ([]byte, error) {
	out, err := t.toWireServiceGroup(sg, refs)
	if err != nil {
		return nil, err
	}
	out.Xmlns = ServiceGroupNamespace
	return marshalDocument(out)
}

// UnmarshalServiceGroup parses a service group PUT body
func (t *Translator) UnmarshalServiceGroup(data []byte) (*wire.ServiceGroupInput, error) {
	var in serviceGroupXML
	if err := xml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parsing service group: %w", err)
	}
	ext, err := extensionContent(in.SMPExtensions)
	if err != nil {
		return nil, err
	}
	return &wire.ServiceGroupInput{
		Participant: t.ids.CreateParticipant(in.ParticipantID.SchemeID, in.ParticipantID.Value),
		Extension:   ext,
	}, nil
}

// MarshalServiceMetadata renders a resolved registration or redirect
func (t *Translator) MarshalServiceMetadata(md wire.Metadata) ([]byte, error) {
	sm, err := t.toWireServiceMetadata(md)
	if err != nil {
		return nil, err
	}
	sm.Xmlns = ServiceMetadataNamespace
	return marshalDocument(sm)
}

// UnmarshalServiceMetadata parses a service metadata PUT body, fanning
// grouped process blocks back out into per-process domain records. A
// block carrying a Redirect makes the whole body a redirect submission.
func (t *Translator) UnmarshalServiceMetadata(data []byte) (*wire.ServiceMetadataInput, error) {
	var sm serviceMetadataXML
	if err := xml.Unmarshal(data, &sm); err != nil {
		return nil, fmt.Errorf("parsing service metadata: %w", err)
	}

	participant := t.ids.CreateParticipant(sm.ParticipantID.SchemeID, sm.ParticipantID.Value)
	docType := t.ids.CreateDocType(sm.ID.SchemeID, sm.ID.Value)

	for _, pm := range sm.ProcessMetadata {
		if pm.Redirect == nil {
			continue
		}
		ext, err := extensionContent(pm.Redirect.SMPExtensions)
		if err != nil {
			return nil, err
		}
		r := &storage.Redirect{
			TargetHref:              pm.Redirect.PublisherURI,
			SubjectUniqueIdentifier: pm.Redirect.SubjectUniqueIdentifier,
			Certificate:             pm.Redirect.Certificate,
			Extension:               ext,
		}
		if docType != nil {
			r.DocType = *docType
		}
		return &wire.ServiceMetadataInput{Participant: participant, DocType: docType, Redirect: r}, nil
	}

	siExt, err := extensionContent(sm.SMPExtensions)
	if err != nil {
		return nil, err
	}
	si := &storage.ServiceInformation{Extension: siExt}
	if docType != nil {
		si.DocType = *docType
	}

	for _, pm := range sm.ProcessMetadata {
		endpoints, err := fromWireEndpoints(pm.Endpoints)
		if err != nil {
			return nil, err
		}
		for _, pw := range pm.Processes {
			procID := t.ids.CreateProcess(pw.ID.SchemeID, pw.ID.Value)
			if procID == nil {
				return nil, fmt.Errorf("process metadata: malformed process identifier %q", pw.ID.Value)
			}
			procExt, err := extensionContent(pw.SMPExtensions)
			if err != nil {
				return nil, err
			}
			si.Processes = append(si.Processes, storage.Process{
				ProcessID: *procID,
				Endpoints: copyEndpoints(endpoints),
				Extension: procExt,
			})
		}
	}

	if len(si.Processes) == 0 && len(sm.ProcessMetadata) == 0 {
		return nil, wire.ErrEmptyMetadata
	}
	return &wire.ServiceMetadataInput{Participant: participant, DocType: docType, ServiceInformation: si}, nil
}

// MarshalCompleteServiceGroup renders the full export with every
// registration and redirect body embedded.
func (t *Translator) MarshalCompleteServiceGroup(sg *storage.ServiceGroup, infos []*storage.ServiceInformation, redirects []*storage.Redirect) ([]byte, error) {
	group, err := t.toWireServiceGroup(sg, nil)
	if err != nil {
		return nil, err
	}

	out := &completeServiceGroupXML{Xmlns: ServiceGroupNamespace, ServiceGroup: *group}
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
		ParticipantID: identifierXML{SchemeID: sg.Participant.Scheme, Value: sg.Participant.Value},
	}
	for _, ref := range refs {
		out.ServiceReferences = append(out.ServiceReferences, serviceReferenceXML{
			ID: identifierXML{SchemeID: ref.DocType.Scheme, Value: ref.DocType.Value},
		})
	}
	ext, err := extensionElement(sg.Extension)
	if err != nil {
		return nil, err
	}
	out.SMPExtensions = ext
	return out, nil
}

func (t *Translator) toWireServiceMetadata(md wire.Metadata) (*serviceMetadataXML, error) {
	if md.Redirect != nil {
		r := md.Redirect
		p := t.ids.ParseParticipant(r.ServiceGroupID)
		if p == nil {
			return nil, fmt.Errorf("redirect %s: malformed service group id", r.ID)
		}
		ext, err := extensionElement(r.Extension)
		if err != nil {
			return nil, err
		}
		return &serviceMetadataXML{
			ID:            identifierXML{SchemeID: r.DocType.Scheme, Value: r.DocType.Value},
			ParticipantID: identifierXML{SchemeID: p.Scheme, Value: p.Value},
			ProcessMetadata: []processMetadataXML{{Redirect: &redirectXML{
				PublisherURI:            r.TargetHref,
				SubjectUniqueIdentifier: r.SubjectUniqueIdentifier,
				Certificate:             r.Certificate,
				SMPExtensions:           ext,
			}}},
		}, nil
	}

	si := md.ServiceInformation
	p := t.ids.ParseParticipant(si.ServiceGroupID)
	if p == nil {
		return nil, fmt.Errorf("registration %s: malformed service group id", si.ID)
	}

	out := &serviceMetadataXML{
		ID:            identifierXML{SchemeID: si.DocType.Scheme, Value: si.DocType.Value},
		ParticipantID: identifierXML{SchemeID: p.Scheme, Value: p.Value},
	}
	siExt, err := extensionElement(si.Extension)
	if err != nil {
		return nil, err
	}
	out.SMPExtensions = siExt

	for _, group := range groupByEndpointSet(si.Processes) {
		pm := processMetadataXML{}
		for _, proc := range group.processes {
			procExt, err := extensionElement(proc.Extension)
			if err != nil {
				return nil, err
			}
			pm.Processes = append(pm.Processes, processXML{
				ID:            identifierXML{SchemeID: proc.ProcessID.Scheme, Value: proc.ProcessID.Value},
				SMPExtensions: procExt,
			})
		}
		for _, ep := range group.endpoints {
			epExt, err := extensionElement(ep.Extension)
			if err != nil {
				return nil, err
			}
			pm.Endpoints = append(pm.Endpoints, endpointXML{
				TransportProfileID:             ep.TransportProfile,
				AddressURI:                     ep.EndpointReference,
				RequiresBusinessLevelSignature: ep.RequireBusinessLevelSignature,
				MinimumAuthenticationLevel:     ep.MinimumAuthenticationLevel,
				ActivationDate:                 wire.FormatTime(ep.ServiceActivationDate),
				ExpirationDate:                 wire.FormatTime(ep.ServiceExpirationDate),
				Certificate:                    ep.Certificate,
				Description:                    ep.ServiceDescription,
				Contact:                        ep.TechnicalContactURL,
				TechnicalInformationURI:        ep.TechnicalInformationURL,
				SMPExtensions:                  epExt,
			})
		}
		out.ProcessMetadata = append(out.ProcessMetadata, pm)
	}
	return out, nil
}

// endpointGroup is one fan-out unit: the processes sharing one endpoint
// set.
type endpointGroup struct {
	processes []storage.Process
	endpoints []storage.Endpoint
}

// groupByEndpointSet collapses processes with identical endpoint sets
// into shared blocks, preserving first-appearance order.
func groupByEndpointSet(procs []storage.Process) []endpointGroup {
	var groups []endpointGroup
	index := make(map[string]int)
	for _, p := range procs {
		key := endpointSetKey(p.Endpoints)
		if i, ok := index[key]; ok {
			groups[i].processes = append(groups[i].processes, p)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, endpointGroup{
			processes: []storage.Process{p},
			endpoints: p.Endpoints,
		})
	}
	return groups
}

// endpointSetKey derives a comparison key for an endpoint set. Order is
// significant: the same endpoints in a different order form a different
// set.
func endpointSetKey(eps []storage.Endpoint) string {
	data, err := json.Marshal(eps)
	if err != nil {
		return fmt.Sprintf("unkeyable:%d", len(eps))
	}
	return string(data)
}

func fromWireEndpoints(in []endpointXML) ([]storage.Endpoint, error) {
	var out []storage.Endpoint
	for _, ew := range in {
		epExt, err := extensionContent(ew.SMPExtensions)
		if err != nil {
			return nil, err
		}
		out = append(out, storage.Endpoint{
			TransportProfile:              ew.TransportProfileID,
			EndpointReference:             ew.AddressURI,
			RequireBusinessLevelSignature: ew.RequiresBusinessLevelSignature,
			MinimumAuthenticationLevel:    ew.MinimumAuthenticationLevel,
			ServiceActivationDate:         wire.ParseTime(ew.ActivationDate),
			ServiceExpirationDate:         wire.ParseTime(ew.ExpirationDate),
			Certificate:                   ew.Certificate,
			ServiceDescription:            ew.Description,
			TechnicalContactURL:           ew.Contact,
			TechnicalInformationURL:       ew.TechnicalInformationURI,
			Extension:                     epExt,
		})
	}
	return out, nil
}

func copyEndpoints(eps []storage.Endpoint) []storage.Endpoint {
	if eps == nil {
		return nil
	}
	out := make([]storage.Endpoint, len(eps))
	copy(out, eps)
	return out
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
