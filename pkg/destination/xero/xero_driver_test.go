package xero

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/hzerrad/buildable-connections/pkg/config"
	"github.com/hzerrad/buildable-connections/pkg/destination/core"
	"github.com/hzerrad/buildable-connections/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// accountingCall records one request the stub accounting API received.
type accountingCall struct {
	Method   string
	Path     string
	RawQuery string
	TenantID string
	Body     string
}

// xeroStub stands in for the connections endpoint and the accounting API.
type xeroStub struct {
	server  *httptest.Server
	tenants []string

	mu      sync.Mutex
	calls   []accountingCall
	handler func(w http.ResponseWriter, tenantID string)

	lastAuthorization string
}

func newXeroStub(t *testing.T, tenants []string) *xeroStub {
	t.Helper()

	stub := &xeroStub{tenants: tenants}
	mux := http.NewServeMux()

	mux.HandleFunc("/connections", func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		stub.lastAuthorization = r.Header.Get("Authorization")
		stub.mu.Unlock()

		connections := make([]map[string]string, 0, len(stub.tenants))
		for _, id := range stub.tenants {
			connections = append(connections, map[string]string{
				"tenantId":   id,
				"tenantType": "ORGANISATION",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(connections)
	})

	mux.HandleFunc("/api.xro/2.0/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		tenantID := r.Header.Get("Xero-Tenant-Id")

		stub.mu.Lock()
		stub.calls = append(stub.calls, accountingCall{
			Method:   r.Method,
			Path:     strings.TrimPrefix(r.URL.Path, "/api.xro/2.0"),
			RawQuery: r.URL.RawQuery,
			TenantID: tenantID,
			Body:     string(body),
		})
		handler := stub.handler
		stub.mu.Unlock()

		if handler != nil {
			handler(w, tenantID)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Status":"OK"}`))
	})

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *xeroStub) Calls() []accountingCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]accountingCall(nil), s.calls...)
}

func (s *xeroStub) Config() *config.DestinationConfig {
	return &config.DestinationConfig{
		Name:           "test-org",
		Type:           "xero",
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		AccessToken:    "access-token",
		RefreshToken:   "refresh-token",
		ConnectionsURL: s.server.URL + "/connections",
		AccountingURL:  s.server.URL + "/api.xro/2.0",
	}
}

func newConnectedDriver(t *testing.T, stub *xeroStub) *Driver {
	t.Helper()

	raw, err := NewDriver(stub.Config())
	require.NoError(t, err)
	driver := raw.(*Driver)
	require.NoError(t, driver.Connect(context.Background(), nil))
	t.Cleanup(func() { _ = driver.Disconnect(context.Background()) })
	return driver
}

func TestConnectRequiresClientCredentials(t *testing.T) {
	raw, err := NewDriver(&config.DestinationConfig{Name: "incomplete", Type: "xero"})
	require.NoError(t, err)

	err = raw.Connect(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestConnectRequiresAccessToken(t *testing.T) {
	raw, err := NewDriver(&config.DestinationConfig{
		Name:         "no-token",
		Type:         "xero",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
	require.NoError(t, err)

	err = raw.Connect(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestConnectDiscoversTenantsInOrder(t *testing.T) {
	stub := newXeroStub(t, []string{"tenant-a", "tenant-b", "tenant-c"})
	driver := newConnectedDriver(t, stub)

	assert.Equal(t, []string{"tenant-a", "tenant-b", "tenant-c"}, driver.tenantIDs)
	assert.Equal(t, "Bearer access-token", stub.lastAuthorization)
}

func TestConnectDiscoveryRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"Detail":"token expired"}`))
	}))
	t.Cleanup(server.Close)

	raw, err := NewDriver(&config.DestinationConfig{
		Name:           "rejected",
		Type:           "xero",
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		AccessToken:    "stale-token",
		ConnectionsURL: server.URL,
	})
	require.NoError(t, err)

	err = raw.Connect(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
	assert.Contains(t, err.Error(), "token expired")
}

func TestActionsExposeDottedNames(t *testing.T) {
	raw, err := NewDriver(&config.DestinationConfig{Name: "names", Type: "xero"})
	require.NoError(t, err)

	actions := raw.Actions()
	assert.Len(t, actions, len(accountingMethods))
	assert.Contains(t, actions, "accounting.getContacts")
	assert.Contains(t, actions, "accounting.createInvoices")
	for name := range actions {
		assert.True(t, strings.HasPrefix(name, "accounting."), name)
	}
}

func TestActionsOnDisconnectedDriver(t *testing.T) {
	raw, err := NewDriver(&config.DestinationConfig{Name: "offline", Type: "xero"})
	require.NoError(t, err)

	_, err = raw.Actions()["accounting.getOrganisations"](context.Background(), core.Payload{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotConnected))

	_, err = raw.TestConnection(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotConnected))
}

func TestFanOutReachesEveryTenant(t *testing.T) {
	stub := newXeroStub(t, []string{"tenant-a", "tenant-b", "tenant-c"})
	driver := newConnectedDriver(t, stub)

	result, err := driver.Actions()["accounting.getOrganisations"](context.Background(), core.Payload{})
	require.NoError(t, err)

	fanOut := result.(FanOut)
	require.Len(t, fanOut, 3)
	for i, tenantID := range []string{"tenant-a", "tenant-b", "tenant-c"} {
		assert.Equal(t, tenantID, fanOut[i].TenantID)
		assert.True(t, fanOut[i].Success)
	}

	calls := stub.Calls()
	require.Len(t, calls, 3)
	for _, call := range calls {
		assert.Equal(t, "/Organisation", call.Path)
	}
}

func TestFanOutCapturesPerTenantFailure(t *testing.T) {
	stub := newXeroStub(t, []string{"tenant-a", "tenant-b", "tenant-c"})
	stub.handler = func(w http.ResponseWriter, tenantID string) {
		w.Header().Set("Content-Type", "application/json")
		if tenantID == "tenant-b" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"Detail":"insufficient scope"}`))
			return
		}
		_, _ = w.Write([]byte(`{"Organisations":[{"Name":"Acme"}]}`))
	}
	driver := newConnectedDriver(t, stub)

	result, err := driver.Actions()["accounting.getOrganisations"](context.Background(), core.Payload{})
	require.NoError(t, err)

	fanOut := result.(FanOut)
	require.Len(t, fanOut, 3)

	assert.Equal(t, "tenant-a", fanOut[0].TenantID)
	assert.True(t, fanOut[0].Success)
	assert.Equal(t, "tenant-b", fanOut[1].TenantID)
	assert.False(t, fanOut[1].Success)
	assert.Equal(t, "tenant-c", fanOut[2].TenantID)
	assert.True(t, fanOut[2].Success)

	failed, ok := fanOut.Get("tenant-b")
	require.True(t, ok)
	body := failed.Body.(map[string]interface{})
	assert.Equal(t, "insufficient scope", body["Detail"])
}

func TestPathParameterSubstitution(t *testing.T) {
	stub := newXeroStub(t, []string{"tenant-a"})
	driver := newConnectedDriver(t, stub)

	_, err := driver.Actions()["accounting.getContact"](context.Background(), core.Payload{
		"contactID": "c-123",
	})
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Equal(t, "/Contacts/c-123", calls[0].Path)
	assert.Equal(t, "tenant-a", calls[0].TenantID)
}

func TestQueryParameters(t *testing.T) {
	stub := newXeroStub(t, []string{"tenant-a"})
	driver := newConnectedDriver(t, stub)

	_, err := driver.Actions()["accounting.getInvoices"](context.Background(), core.Payload{
		"where": `Status=="AUTHORISED"`,
		"order": "Date DESC",
		"page":  2,
	})
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/Invoices", calls[0].Path)
	assert.Contains(t, calls[0].RawQuery, "page=2")
	assert.Contains(t, calls[0].RawQuery, "order=Date+DESC")
}

func TestBodyParameter(t *testing.T) {
	stub := newXeroStub(t, []string{"tenant-a"})
	driver := newConnectedDriver(t, stub)

	_, err := driver.Actions()["accounting.createContacts"](context.Background(), core.Payload{
		"contacts": map[string]interface{}{
			"Contacts": []interface{}{
				map[string]interface{}{"Name": "Acme Ltd"},
			},
		},
	})
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, "/Contacts", calls[0].Path)
	assert.JSONEq(t, `{"Contacts":[{"Name":"Acme Ltd"}]}`, calls[0].Body)
}

func TestRequiredParameterMissing(t *testing.T) {
	stub := newXeroStub(t, []string{"tenant-a"})
	driver := newConnectedDriver(t, stub)

	_, err := driver.Actions()["accounting.getContact"](context.Background(), core.Payload{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "contactID")

	// Validation fails before any tenant call is attempted.
	assert.Empty(t, stub.Calls())
}

func TestConnectionReportsTenantCount(t *testing.T) {
	stub := newXeroStub(t, []string{"tenant-a", "tenant-b"})
	driver := newConnectedDriver(t, stub)

	result, err := driver.TestConnection(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "2 tenant(s)")
}

func TestConnectionFailureReported(t *testing.T) {
	stub := newXeroStub(t, []string{"tenant-a"})
	driver := newConnectedDriver(t, stub)

	// Point discovery at a dead endpoint after connecting.
	driver.connectionsURL = "http://127.0.0.1:1/connections"

	result, err := driver.TestConnection(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Message)
}

func TestDisconnectDropsTenantSet(t *testing.T) {
	stub := newXeroStub(t, []string{"tenant-a"})
	driver := newConnectedDriver(t, stub)

	require.NoError(t, driver.Disconnect(context.Background()))
	assert.Nil(t, driver.tenantIDs)

	_, err := driver.Actions()["accounting.getOrganisations"](context.Background(), core.Payload{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotConnected))
}
