package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sirosfoundation/go-smp/internal/auth"
	"github.com/sirosfoundation/go-smp/internal/config"
	"github.com/sirosfoundation/go-smp/internal/metrics"
	"github.com/sirosfoundation/go-smp/internal/smp"
	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/internal/storage/memory"
	"github.com/sirosfoundation/go-smp/internal/wire/peppol"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

const (
	participantAlpha = "iso6523-actorid-upis::0088:alpha"
	docTypeInvoice   = "busdox-docid-qns::urn:invoice::1.0"
)

func newTestServer(t *testing.T) (*Server, *memory.Store, *identifier.Factory) {
	t.Helper()

	store := memory.NewStore()
	ids := identifier.NewFactory()

	cfg := &config.Config{}
	cfg.Server.BasePath = "/smp"
	cfg.Server.AdminKey = "admin-key"
	cfg.Metrics.Metrics.Enabled = true
	cfg.Metrics.Metrics.Path = "/metrics"

	for _, u := range []struct{ id, name, password string }{
		{"user-1", "alpha", "s3cret"},
		{"user-2", "beta", "hunter2"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, store.CreateUser(context.Background(), &storage.User{
			ID: u.id, UserName: u.name, PasswordHash: string(hash),
		}))
	}

	srv := New(Deps{
		Config:        cfg,
		Store:         store,
		IDs:           ids,
		Groups:        smp.NewServiceGroupManager(smp.ServiceGroupManagerConfig{Store: store, IDs: ids}),
		Services:      smp.NewServiceInformationManager(store, ids, nil),
		Redirects:     smp.NewRedirectManager(store, nil),
		Cards:         smp.NewBusinessCardManager(store, nil),
		Authenticator: auth.NewAuthenticator(store, auth.BearerConfig{}, nil),
		Metrics:       metrics.New(),
	})
	return srv, store, ids
}

func doRequest(t *testing.T, srv *Server, method, path, body, user, password string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		r.SetBasicAuth(user, password)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func serviceGroupBody(participant string) string {
	scheme, value, _ := strings.Cut(participant, "::")
	return `<?xml version="1.0"?>
<ServiceGroup xmlns="` + peppol.Namespace + `">
  <ParticipantIdentifier scheme="` + scheme + `">` + value + `</ParticipantIdentifier>
  <ServiceMetadataReferenceCollection/>
</ServiceGroup>`
}

func serviceMetadataBody(participant, docType string) string {
	pScheme, pValue, _ := strings.Cut(participant, "::")
	dScheme, dValue, _ := strings.Cut(docType, "::")
	return `<?xml version="1.0"?>
<ServiceMetadata xmlns="` + peppol.Namespace + `">
  <ServiceInformation>
    <ParticipantIdentifier scheme="` + pScheme + `">` + pValue + `</ParticipantIdentifier>
    <DocumentIdentifier scheme="` + dScheme + `">` + dValue + `</DocumentIdentifier>
    <ProcessList>
      <Process>
        <ProcessIdentifier scheme="cenbii-procid-ubl">urn:www.cenbii.eu:profile:bii04:ver2.0</ProcessIdentifier>
        <ServiceEndpointList>
          <Endpoint transportProfile="peppol-transport-as4-v2_0">
            <EndpointReference><Address>https://ap.example.org/as4</Address></EndpointReference>
            <RequireBusinessLevelSignature>false</RequireBusinessLevelSignature>
            <Certificate>MIIC...</Certificate>
          </Endpoint>
        </ServiceEndpointList>
      </Process>
    </ProcessList>
  </ServiceInformation>
</ServiceMetadata>`
}

func TestHealthAndReady(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, "GET", "/health", "", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, "GET", "/ready", "", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceGroupLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)
	path := "/smp/peppol/" + participantAlpha

	// Unknown group
	w := doRequest(t, srv, "GET", path, "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Create requires credentials
	w = doRequest(t, srv, "PUT", path, serviceGroupBody(participantAlpha), "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	w = doRequest(t, srv, "PUT", path, serviceGroupBody(participantAlpha), "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Reads are open
	w = doRequest(t, srv, "GET", path, "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/xml")
	assert.Contains(t, w.Body.String(), "0088:alpha")

	// Another account's valid credentials must not update it
	w = doRequest(t, srv, "PUT", path, serviceGroupBody(participantAlpha), "beta", "hunter2")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Nor delete it
	w = doRequest(t, srv, "DELETE", path, "", "beta", "hunter2")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, srv, "DELETE", path, "", "alpha", "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, "GET", path, "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutServiceGroupBodyMismatch(t *testing.T) {
	srv, _, _ := newTestServer(t)
	path := "/smp/peppol/" + participantAlpha

	// The body names a different participant: rejected before any
	// authentication or state change.
	w := doRequest(t, srv, "PUT", path, serviceGroupBody("iso6523-actorid-upis::0088:beta"), "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, "GET", path, "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(t, srv, "GET", "/smp/peppol/iso6523-actorid-upis::0088:beta", "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutServiceGroupMalformedPath(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, "PUT", "/smp/peppol/no-separator", serviceGroupBody(participantAlpha), "alpha", "s3cret")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServiceMetadataLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)
	groupPath := "/smp/peppol/" + participantAlpha
	metadataPath := groupPath + "/services/" + docTypeInvoice

	w := doRequest(t, srv, "PUT", groupPath, serviceGroupBody(participantAlpha), "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, "GET", metadataPath, "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, srv, "PUT", metadataPath, serviceMetadataBody(participantAlpha, docTypeInvoice), "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(t, srv, "GET", metadataPath, "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://ap.example.org/as4")

	// The registration now appears in the group's references
	w = doRequest(t, srv, "GET", groupPath, "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ServiceMetadataReference")
	assert.Contains(t, w.Body.String(), "/services/")

	w = doRequest(t, srv, "DELETE", metadataPath, "", "alpha", "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, "DELETE", metadataPath, "", "alpha", "s3cret")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutServiceMetadataMismatch(t *testing.T) {
	srv, _, _ := newTestServer(t)
	groupPath := "/smp/peppol/" + participantAlpha

	w := doRequest(t, srv, "PUT", groupPath, serviceGroupBody(participantAlpha), "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)

	// Document type in the path differs from the body
	otherPath := groupPath + "/services/busdox-docid-qns::urn:order::1.0"
	w = doRequest(t, srv, "PUT", otherPath, serviceMetadataBody(participantAlpha, docTypeInvoice), "alpha", "s3cret")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Nothing was stored under either document type
	w = doRequest(t, srv, "GET", otherPath, "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(t, srv, "GET", groupPath+"/services/"+docTypeInvoice, "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetServiceMetadataRedirectPrecedence(t *testing.T) {
	srv, store, ids := newTestServer(t)
	ctx := context.Background()

	p := ids.ParseParticipant(participantAlpha)
	d := ids.ParseDocType(docTypeInvoice)
	sgID := storage.ServiceGroupID(*p)
	mdID := storage.ServiceMetadataID(sgID, *d)

	require.NoError(t, store.CreateServiceGroup(ctx, &storage.ServiceGroup{
		ID: sgID, Participant: *p, OwnerID: "user-1",
	}))
	require.NoError(t, store.UpsertServiceInformation(ctx, &storage.ServiceInformation{
		ID: mdID, ServiceGroupID: sgID, DocType: *d,
		Processes: []storage.Process{{Endpoints: []storage.Endpoint{{
			TransportProfile: "peppol-transport-as4-v2_0", EndpointReference: "https://ap.example.org/as4",
		}}}},
	}))
	require.NoError(t, store.UpsertRedirect(ctx, &storage.Redirect{
		ID: mdID, ServiceGroupID: sgID, DocType: *d,
		TargetHref: "https://other-smp.example.org/resource",
	}))

	w := doRequest(t, srv, "GET", "/smp/peppol/"+participantAlpha+"/services/"+docTypeInvoice, "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://other-smp.example.org/resource")
	assert.NotContains(t, w.Body.String(), "https://ap.example.org/as4")
}

func TestReferencesOmitEndpointlessRegistrations(t *testing.T) {
	srv, store, ids := newTestServer(t)
	ctx := context.Background()

	p := ids.ParseParticipant(participantAlpha)
	sgID := storage.ServiceGroupID(*p)
	require.NoError(t, store.CreateServiceGroup(ctx, &storage.ServiceGroup{
		ID: sgID, Participant: *p, OwnerID: "user-1",
	}))

	empty := ids.ParseDocType("busdox-docid-qns::urn:empty::1.0")
	require.NoError(t, store.UpsertServiceInformation(ctx, &storage.ServiceInformation{
		ID: storage.ServiceMetadataID(sgID, *empty), ServiceGroupID: sgID, DocType: *empty,
		Processes: []storage.Process{{}},
	}))

	redirected := ids.ParseDocType("busdox-docid-qns::urn:redirected::1.0")
	require.NoError(t, store.UpsertRedirect(ctx, &storage.Redirect{
		ID: storage.ServiceMetadataID(sgID, *redirected), ServiceGroupID: sgID, DocType: *redirected,
		TargetHref: "https://other-smp.example.org",
	}))

	w := doRequest(t, srv, "GET", "/smp/peppol/"+participantAlpha, "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "urn:redirected")
	assert.NotContains(t, w.Body.String(), "urn:empty")
}

func TestDeleteAllServices(t *testing.T) {
	srv, store, ids := newTestServer(t)
	ctx := context.Background()

	p := ids.ParseParticipant(participantAlpha)
	sgID := storage.ServiceGroupID(*p)
	require.NoError(t, store.CreateServiceGroup(ctx, &storage.ServiceGroup{
		ID: sgID, Participant: *p, OwnerID: "user-1",
	}))
	for _, text := range []string{"busdox-docid-qns::urn:invoice::1.0", "busdox-docid-qns::urn:order::1.0"} {
		d := ids.ParseDocType(text)
		require.NoError(t, store.UpsertServiceInformation(ctx, &storage.ServiceInformation{
			ID: storage.ServiceMetadataID(sgID, *d), ServiceGroupID: sgID, DocType: *d,
		}))
	}
	d := ids.ParseDocType("busdox-docid-qns::urn:catalogue::1.0")
	require.NoError(t, store.UpsertRedirect(ctx, &storage.Redirect{
		ID: storage.ServiceMetadataID(sgID, *d), ServiceGroupID: sgID, DocType: *d,
	}))

	w := doRequest(t, srv, "DELETE", "/smp/peppol/"+participantAlpha+"/services", "", "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		DeletedRegistrations int64 `json:"deletedRegistrations"`
		DeletedRedirects     int64 `json:"deletedRedirects"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.EqualValues(t, 2, result.DeletedRegistrations)
	assert.EqualValues(t, 1, result.DeletedRedirects)

	// The group itself survives
	w = doRequest(t, srv, "GET", "/smp/peppol/"+participantAlpha, "", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestList(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, "PUT", "/smp/peppol/"+participantAlpha, serviceGroupBody(participantAlpha), "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)

	// Listing is allowed by account id or login name
	for _, target := range []string{"user-1", "alpha"} {
		w = doRequest(t, srv, "GET", "/smp/peppol/list/"+target, "", "alpha", "s3cret")
		require.Equal(t, http.StatusOK, w.Code)

		var result struct {
			ServiceGroups []string `json:"serviceGroups"`
			Total         int      `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, 1, result.Total)
		assert.Equal(t, []string{participantAlpha}, result.ServiceGroups)
	}

	// A caller may only list its own groups
	w = doRequest(t, srv, "GET", "/smp/peppol/list/alpha", "", "beta", "hunter2")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, srv, "GET", "/smp/peppol/list/alpha", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestComplete(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, "PUT", "/smp/peppol/"+participantAlpha, serviceGroupBody(participantAlpha), "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, srv, "PUT", "/smp/peppol/"+participantAlpha+"/services/"+docTypeInvoice,
		serviceMetadataBody(participantAlpha, docTypeInvoice), "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, "GET", "/smp/peppol/complete/"+participantAlpha, "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "CompleteServiceGroup")
	assert.Contains(t, w.Body.String(), "https://ap.example.org/as4")

	w = doRequest(t, srv, "GET", "/smp/peppol/complete/iso6523-actorid-upis::0088:unknown", "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBusinessCard(t *testing.T) {
	srv, _, _ := newTestServer(t)
	cardPath := "/smp/peppol/businesscard/" + participantAlpha

	body := `<?xml version="1.0"?>
<BusinessCard xmlns="http://www.peppol.eu/schema/pd/businesscard/20180621/">
  <ParticipantIdentifier scheme="iso6523-actorid-upis">0088:alpha</ParticipantIdentifier>
  <BusinessEntity countrycode="NO">
    <Name name="Alpha Corp"/>
  </BusinessEntity>
</BusinessCard>`

	// The group must exist first
	w := doRequest(t, srv, "PUT", cardPath, body, "alpha", "s3cret")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, srv, "PUT", "/smp/peppol/"+participantAlpha, serviceGroupBody(participantAlpha), "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, "PUT", cardPath, body, "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(t, srv, "GET", cardPath, "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="Alpha Corp"`)
	assert.Contains(t, w.Body.String(), `countrycode="NO"`)

	// Only the owner may delete
	w = doRequest(t, srv, "DELETE", cardPath, "", "beta", "hunter2")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, srv, "DELETE", cardPath, "", "alpha", "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, "GET", cardPath, "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDialectMounts(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, "PUT", "/smp/peppol/"+participantAlpha, serviceGroupBody(participantAlpha), "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)

	// The same group is visible on every dialect mount
	for _, mount := range []string{"peppol", "bdxr1", "bdxr2"} {
		w = doRequest(t, srv, "GET", "/smp/"+mount+"/"+participantAlpha, "", "", "")
		assert.Equal(t, http.StatusOK, w.Code, mount)
		assert.Contains(t, w.Body.String(), "0088:alpha", mount)
	}
}

func TestAdminSMLVerify(t *testing.T) {
	srv, _, _ := newTestServer(t)
	path := "/admin/sml/verify/" + participantAlpha

	// No admin key header
	w := doRequest(t, srv, "GET", path, "", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Right key, but no verifier configured
	r := httptest.NewRequest("GET", path, nil)
	r.Header.Set("X-Admin-Key", "admin-key")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, r)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOperationCounters(t *testing.T) {
	srv, _, _ := newTestServer(t)

	doRequest(t, srv, "GET", "/smp/peppol/"+participantAlpha, "", "", "")
	w := doRequest(t, srv, "PUT", "/smp/peppol/"+participantAlpha, serviceGroupBody(participantAlpha), "alpha", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(srv.metrics.Operations.WithLabelValues("peppol.getServiceGroup", "error")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(srv.metrics.Operations.WithLabelValues("peppol.saveServiceGroup", "success")))
}
