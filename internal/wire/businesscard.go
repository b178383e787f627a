package wire

import (
	"encoding/xml"
	"fmt"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// BusinessCardNamespace is the publisher business card namespace. The
// card shape is shared by all dialect mounts; directory crawlers read
// it independently of the SMP protocol version.
const BusinessCardNamespace = "http://www.peppol.eu/schema/pd/businesscard/20180621/"

type businessCardXML struct {
	XMLName               xml.Name            `xml:"BusinessCard"`
	Xmlns                 string              `xml:"xmlns,attr,omitempty"`
	ParticipantIdentifier businessIDXML       `xml:"ParticipantIdentifier"`
	Entities              []businessEntityXML `xml:"BusinessEntity"`
}

type businessIDXML struct {
	Value  string `xml:",chardata"`
	Scheme string `xml:"scheme,attr"`
}

type businessEntityXML struct {
	CountryCode      string `xml:"countrycode,attr"`
	RegistrationDate string `xml:"registrationdate,attr,omitempty"`
	Names            []struct {
		Name string `xml:"name,attr"`
	} `xml:"Name"`
	GeographicalInformation string          `xml:"GeographicalInformation,omitempty"`
	Identifiers             []businessIDXML `xml:"Identifier"`
	WebsiteURIs             []string        `xml:"WebsiteURI"`
	Contacts                []struct {
		Type        string `xml:"type,attr,omitempty"`
		Name        string `xml:"name,attr,omitempty"`
		PhoneNumber string `xml:"phonenumber,attr,omitempty"`
		Email       string `xml:"email,attr,omitempty"`
	} `xml:"Contact"`
	AdditionalInformation string `xml:"AdditionalInformation,omitempty"`
}

// MarshalBusinessCard renders a business card for a participant
func MarshalBusinessCard(p identifier.Participant, bc *storage.BusinessCard) ([]byte, error) {
	out := businessCardXML{
		Xmlns:                 BusinessCardNamespace,
		ParticipantIdentifier: businessIDXML{Scheme: p.Scheme, Value: p.Value},
	}
	for _, e := range bc.Entities {
		ew := businessEntityXML{
			CountryCode:             e.CountryCode,
			GeographicalInformation: e.GeographicalInfo,
			WebsiteURIs:             e.Websites,
			AdditionalInformation:   e.AdditionalInformation,
		}
		if e.RegistrationDate != nil {
			ew.RegistrationDate = e.RegistrationDate.UTC().Format("2006-01-02")
		}
		for _, name := range e.Names {
			ew.Names = append(ew.Names, struct {
				Name string `xml:"name,attr"`
			}{Name: name})
		}
		for _, id := range e.Identifiers {
			ew.Identifiers = append(ew.Identifiers, businessIDXML{Scheme: id.Scheme, Value: id.Value})
		}
		for _, c := range e.Contacts {
			ew.Contacts = append(ew.Contacts, struct {
				Type        string `xml:"type,attr,omitempty"`
				Name        string `xml:"name,attr,omitempty"`
				PhoneNumber string `xml:"phonenumber,attr,omitempty"`
				Email       string `xml:"email,attr,omitempty"`
			}{Type: c.Type, Name: c.Name, PhoneNumber: c.PhoneNumber, Email: c.Email})
		}
		out.Entities = append(out.Entities, ew)
	}

	data, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("rendering business card: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

// UnmarshalBusinessCard parses a business card PUT body. The returned
// participant is nil when the body carries none or a malformed one.
func UnmarshalBusinessCard(data []byte, ids *identifier.Factory) (*identifier.Participant, []storage.BusinessEntity, error) {
	var in businessCardXML
	if err := xml.Unmarshal(data, &in); err != nil {
		return nil, nil, fmt.Errorf("parsing business card: %w", err)
	}

	var entities []storage.BusinessEntity
	for _, ew := range in.Entities {
		e := storage.BusinessEntity{
			CountryCode:           ew.CountryCode,
			GeographicalInfo:      ew.GeographicalInformation,
			Websites:              ew.WebsiteURIs,
			AdditionalInformation: ew.AdditionalInformation,
			RegistrationDate:      ParseTime(ew.RegistrationDate),
		}
		for _, name := range ew.Names {
			e.Names = append(e.Names, name.Name)
		}
		for _, id := range ew.Identifiers {
			e.Identifiers = append(e.Identifiers, storage.BusinessIdentifier{Scheme: id.Scheme, Value: id.Value})
		}
		for _, c := range ew.Contacts {
			e.Contacts = append(e.Contacts, storage.BusinessContact{
				Type: c.Type, Name: c.Name, PhoneNumber: c.PhoneNumber, Email: c.Email,
			})
		}
		entities = append(entities, e)
	}

	return ids.CreateParticipant(in.ParticipantIdentifier.Scheme, in.ParticipantIdentifier.Value), entities, nil
}
