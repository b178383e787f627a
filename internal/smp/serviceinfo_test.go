package smp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/internal/storage/memory"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

func testDocType(t *testing.T, ids *identifier.Factory, text string) identifier.DocType {
	t.Helper()
	d := ids.ParseDocType(text)
	require.NotNil(t, d)
	return *d
}

func testProcess(t *testing.T, ids *identifier.Factory, text string) identifier.Process {
	t.Helper()
	p := ids.ParseProcess(text)
	require.NotNil(t, p)
	return *p
}

func testRegistration(t *testing.T, ids *identifier.Factory, groupID string) *storage.ServiceInformation {
	t.Helper()
	return &storage.ServiceInformation{
		ServiceGroupID: groupID,
		DocType:        testDocType(t, ids, "busdox-docid-qns::urn:invoice::1.0"),
		Processes: []storage.Process{{
			ProcessID: testProcess(t, ids, "cenbii-procid-ubl::urn:www.cenbii.eu:profile:bii04:ver2.0"),
			Endpoints: []storage.Endpoint{{
				TransportProfile:  "peppol-transport-as4-v2_0",
				EndpointReference: "https://ap.example.org/as4",
			}},
		}},
	}
}

func TestMergeCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := identifier.NewFactory()
	m := NewServiceInformationManager(store, ids, nil)

	var events []string
	m.OnChange(ServiceInformationCallbacks{
		Created: func(si *storage.ServiceInformation) { events = append(events, "created") },
		Updated: func(si *storage.ServiceInformation) { events = append(events, "updated") },
	})

	si := testRegistration(t, ids, "iso6523-actorid-upis::0088:alpha")
	require.NoError(t, m.Merge(ctx, si))
	assert.Equal(t, "iso6523-actorid-upis::0088:alpha/busdox-docid-qns::urn:invoice::1.0", si.ID)

	stored, err := m.FindByGroupAndDocType(ctx, si.ServiceGroupID, si.DocType)
	require.NoError(t, err)
	require.NotNil(t, stored)
	created := stored.CreatedAt

	// Resubmitting the pair replaces content but keeps the creation time
	again := testRegistration(t, ids, "iso6523-actorid-upis::0088:alpha")
	again.Processes[0].Endpoints[0].EndpointReference = "https://ap2.example.org/as4"
	require.NoError(t, m.Merge(ctx, again))

	stored, err = m.FindByGroupAndDocType(ctx, si.ServiceGroupID, si.DocType)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "https://ap2.example.org/as4", stored.Processes[0].Endpoints[0].EndpointReference)
	assert.Equal(t, created, stored.CreatedAt)
	assert.Equal(t, []string{"created", "updated"}, events)

	all, err := m.GetAllOfServiceGroup(ctx, si.ServiceGroupID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMergeRemovesRedirectForPair(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := identifier.NewFactory()
	m := NewServiceInformationManager(store, ids, nil)

	si := testRegistration(t, ids, "iso6523-actorid-upis::0088:alpha")
	id := storage.ServiceMetadataID(si.ServiceGroupID, si.DocType)
	require.NoError(t, store.UpsertRedirect(ctx, &storage.Redirect{
		ID: id, ServiceGroupID: si.ServiceGroupID, DocType: si.DocType,
		TargetHref: "https://other-smp.example.org",
	}))

	require.NoError(t, m.Merge(ctx, si))

	r, err := store.GetRedirect(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, r, "a registration and a redirect must never coexist for one pair")
}

func TestServiceInformationDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := identifier.NewFactory()
	m := NewServiceInformationManager(store, ids, nil)

	si := testRegistration(t, ids, "iso6523-actorid-upis::0088:alpha")
	require.NoError(t, m.Merge(ctx, si))

	changed, err := m.Delete(ctx, si.ServiceGroupID, si.DocType)
	require.NoError(t, err)
	assert.Equal(t, Changed, changed)

	changed, err = m.Delete(ctx, si.ServiceGroupID, si.DocType)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, changed)
}

func TestServiceInformationDeleteAll(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := identifier.NewFactory()
	m := NewServiceInformationManager(store, ids, nil)

	si := testRegistration(t, ids, "iso6523-actorid-upis::0088:alpha")
	require.NoError(t, m.Merge(ctx, si))

	si2 := testRegistration(t, ids, "iso6523-actorid-upis::0088:alpha")
	si2.DocType = testDocType(t, ids, "busdox-docid-qns::urn:order::1.0")
	require.NoError(t, m.Merge(ctx, si2))

	other := testRegistration(t, ids, "iso6523-actorid-upis::0088:beta")
	require.NoError(t, m.Merge(ctx, other))

	n, err := m.DeleteAllOfServiceGroup(ctx, "iso6523-actorid-upis::0088:alpha")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	kept, err := m.FindByGroupAndDocType(ctx, other.ServiceGroupID, other.DocType)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestFindEndpoint(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := identifier.NewFactory()
	m := NewServiceInformationManager(store, ids, nil)

	si := testRegistration(t, ids, "iso6523-actorid-upis::0088:alpha")
	require.NoError(t, m.Merge(ctx, si))

	proc := testProcess(t, ids, "cenbii-procid-ubl::urn:www.cenbii.eu:profile:bii04:ver2.0")

	ep, err := m.FindEndpoint(ctx, si.ServiceGroupID, si.DocType, proc, "peppol-transport-as4-v2_0")
	require.NoError(t, err)
	require.NotNil(t, ep)
	assert.Equal(t, "https://ap.example.org/as4", ep.EndpointReference)

	// Unknown transport profile
	ep, err = m.FindEndpoint(ctx, si.ServiceGroupID, si.DocType, proc, "busdox-transport-start")
	require.NoError(t, err)
	assert.Nil(t, ep)

	// Process values are case sensitive
	upper := testProcess(t, ids, "cenbii-procid-ubl::URN:WWW.CENBII.EU:PROFILE:BII04:VER2.0")
	ep, err = m.FindEndpoint(ctx, si.ServiceGroupID, si.DocType, upper, "peppol-transport-as4-v2_0")
	require.NoError(t, err)
	assert.Nil(t, ep)

	// Unknown pair
	ep, err = m.FindEndpoint(ctx, "iso6523-actorid-upis::0088:beta", si.DocType, proc, "peppol-transport-as4-v2_0")
	require.NoError(t, err)
	assert.Nil(t, ep)
}
