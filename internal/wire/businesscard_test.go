package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

func TestBusinessCardRoundTrip(t *testing.T) {
	ids := identifier.NewFactory()
	p := ids.ParseParticipant("iso6523-actorid-upis::0088:alpha")
	require.NotNil(t, p)

	registered := time.Date(2019, 3, 15, 0, 0, 0, 0, time.UTC)
	bc := &storage.BusinessCard{
		ID: p.String(),
		Entities: []storage.BusinessEntity{{
			Names:            []string{"Alpha Corp", "Alpha AS"},
			CountryCode:      "NO",
			GeographicalInfo: "Oslo",
			Identifiers:      []storage.BusinessIdentifier{{Scheme: "GLN", Value: "7080000000001"}},
			Websites:         []string{"https://alpha.example.org"},
			Contacts:         []storage.BusinessContact{{Type: "support", Email: "support@alpha.example.org"}},
			RegistrationDate: &registered,
		}},
	}

	data, err := MarshalBusinessCard(*p, bc)
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, BusinessCardNamespace)
	assert.Contains(t, body, `countrycode="NO"`)
	assert.Contains(t, body, `registrationdate="2019-03-15"`)
	assert.Contains(t, body, `name="Alpha Corp"`)

	gotP, entities, err := UnmarshalBusinessCard(data, ids)
	require.NoError(t, err)
	require.NotNil(t, gotP)
	assert.Equal(t, p.String(), gotP.String())

	require.Len(t, entities, 1)
	e := entities[0]
	assert.Equal(t, []string{"Alpha Corp", "Alpha AS"}, e.Names)
	assert.Equal(t, "NO", e.CountryCode)
	assert.Equal(t, "Oslo", e.GeographicalInfo)
	require.Len(t, e.Identifiers, 1)
	assert.Equal(t, "GLN", e.Identifiers[0].Scheme)
	require.Len(t, e.Contacts, 1)
	assert.Equal(t, "support@alpha.example.org", e.Contacts[0].Email)
	require.NotNil(t, e.RegistrationDate)
	assert.True(t, e.RegistrationDate.Equal(registered))
}

func TestUnmarshalBusinessCardMalformed(t *testing.T) {
	_, _, err := UnmarshalBusinessCard([]byte("<BusinessCard"), identifier.NewFactory())
	assert.Error(t, err)
}
