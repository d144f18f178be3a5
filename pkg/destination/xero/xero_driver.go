// Package xero implements the accounting destination driver for the Xero
// API. One connection serves every tenant the token is authorized for.
package xero

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hzerrad/buildable-connections/pkg/clients"
	"github.com/hzerrad/buildable-connections/pkg/config"
	"github.com/hzerrad/buildable-connections/pkg/destination/base"
	"github.com/hzerrad/buildable-connections/pkg/destination/core"
	"github.com/hzerrad/buildable-connections/pkg/errors"
	"github.com/hzerrad/buildable-connections/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	defaultConnectionsURL = "https://api.xero.com/connections"
	defaultAccountingURL  = "https://api.xero.com/api.xro/2.0"

	authURL  = "https://login.xero.com/identity/connect/authorize"
	tokenURL = "https://identity.xero.com/connect/token"

	// Xero calls are kept on a short leash; the host platform retries at
	// its own layer.
	defaultRequestTimeout = 3 * time.Second
)

// TenantResult is one tenant's outcome of a fanned-out accounting call.
// Failed tenants carry the captured error body, they never abort siblings.
type TenantResult struct {
	TenantID string      `json:"tenant_id"`
	Success  bool        `json:"success"`
	Body     interface{} `json:"body"`
}

// FanOut holds per-tenant results in tenant discovery order.
type FanOut []TenantResult

// Get returns the result for one tenant id.
func (f FanOut) Get(tenantID string) (TenantResult, bool) {
	for _, r := range f {
		if r.TenantID == tenantID {
			return r, true
		}
	}
	return TenantResult{}, false
}

// Driver is the Xero accounting destination driver.
type Driver struct {
	*base.BaseDriver

	httpClient     *http.Client
	baseClient     *clients.HTTPClient
	tenantIDs      []string
	connectionsURL string
	accountingURL  string
}

// NewDriver creates a Xero driver bound to a static configuration.
func NewDriver(cfg *config.DestinationConfig) (core.Driver, error) {
	return &Driver{
		BaseDriver: base.NewBaseDriver("xero", core.DestinationTypeAccounting, "1.0.0", cfg),
	}, nil
}

// Connect builds an OAuth2-backed client from the pre-resolved token set
// and discovers the tenants it is authorized for. Token refresh belongs to
// an external collaborator and is not performed here.
func (d *Driver) Connect(ctx context.Context, override *config.DestinationConfig) error {
	cfg := d.EffectiveConfig(override)

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return errors.New(errors.ErrorTypeConfig, "client_id and client_secret are required")
	}
	if cfg.AccessToken == "" {
		return errors.New(errors.ErrorTypeAuthentication, "access_token is required; token refresh is handled upstream")
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.RequestTimeout = timeout
	httpCfg.CABundlePath = cfg.CABundlePath
	baseClient, err := clients.NewHTTPClient(httpCfg, d.GetLogger())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to build HTTP client")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
	token := &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		TokenType:    "Bearer",
	}

	clientCtx := context.WithValue(ctx, oauth2.HTTPClient, baseClient.Client())
	client := oauthCfg.Client(clientCtx, token)
	client.Timeout = timeout

	connectionsURL := cfg.ConnectionsURL
	if connectionsURL == "" {
		connectionsURL = defaultConnectionsURL
	}
	accountingURL := cfg.AccountingURL
	if accountingURL == "" {
		accountingURL = defaultAccountingURL
	}

	tenants, err := discoverTenants(ctx, client, connectionsURL)
	if err != nil {
		_ = baseClient.Close()
		return err
	}

	d.httpClient = client
	d.baseClient = baseClient
	d.tenantIDs = tenants
	d.connectionsURL = connectionsURL
	d.accountingURL = accountingURL

	d.GetLogger().Info("connected", zap.Int("tenants", len(tenants)))
	return nil
}

// Disconnect drops the client handle and the resolved tenant set.
func (d *Driver) Disconnect(_ context.Context) error {
	if d.baseClient != nil {
		_ = d.baseClient.Close()
	}
	d.httpClient = nil
	d.baseClient = nil
	d.tenantIDs = nil
	return nil
}

// TestConnection re-queries the connections endpoint. Remote failures are
// reported in the result, not raised.
func (d *Driver) TestConnection(ctx context.Context) (*core.TestResult, error) {
	if d.httpClient == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "Xero connection is not established")
	}

	tenants, err := discoverTenants(ctx, d.httpClient, d.connectionsURL)
	if err != nil {
		return &core.TestResult{Success: false, Message: err.Error()}, nil
	}
	return &core.TestResult{
		Success: true,
		Message: fmt.Sprintf("authorized for %d tenant(s)", len(tenants)),
	}, nil
}

// Actions exposes every supported accounting method under its dotted name.
func (d *Driver) Actions() map[string]core.ActionFunc {
	actions := make(map[string]core.ActionFunc, len(accountingMethods))
	for name, spec := range accountingMethods {
		spec := spec
		actions["accounting."+name] = func(ctx context.Context, payload core.Payload) (interface{}, error) {
			return d.perform(ctx, spec, payload)
		}
	}
	return actions
}

// perform fans one accounting call out across every discovered tenant,
// sequentially, capturing each tenant's outcome independently.
func (d *Driver) perform(ctx context.Context, spec methodSpec, payload core.Payload) (interface{}, error) {
	if d.httpClient == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "Xero connection is not established")
	}

	target, body, err := buildRequestParts(d.accountingURL, spec, payload)
	if err != nil {
		return nil, err
	}

	results := make(FanOut, 0, len(d.tenantIDs))
	for _, tenantID := range d.tenantIDs {
		results = append(results, d.callTenant(ctx, spec, target, body, tenantID))
	}
	return results, nil
}

func (d *Driver) callTenant(ctx context.Context, spec methodSpec, target string, body []byte, tenantID string) TenantResult {
	log := logger.WithContext(context.WithValue(ctx, logger.TenantKey, tenantID))

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, spec.verb, target, reader)
	if err != nil {
		return TenantResult{TenantID: tenantID, Success: false, Body: err.Error()}
	}
	req.Header.Set("Xero-Tenant-Id", tenantID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		log.Warn("tenant call failed", zap.Error(err))
		return TenantResult{TenantID: tenantID, Success: false, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("tenant response unreadable", zap.Error(err))
		return TenantResult{TenantID: tenantID, Success: false, Body: err.Error()}
	}

	decoded := decodeBody(raw)
	if resp.StatusCode >= http.StatusBadRequest {
		log.Warn("tenant call rejected", zap.Int("status", resp.StatusCode))
		return TenantResult{TenantID: tenantID, Success: false, Body: decoded}
	}
	return TenantResult{TenantID: tenantID, Success: true, Body: decoded}
}

// buildRequestParts resolves the method's declared parameters against the
// payload: path placeholders substituted, query parameters appended, and
// the body parameter serialized. The tenant parameter is skipped here; it
// is satisfied per call from the discovered tenant set.
func buildRequestParts(baseURL string, spec methodSpec, payload core.Payload) (string, []byte, error) {
	path := spec.path
	query := url.Values{}
	var body []byte

	for _, param := range spec.params {
		if param.name == tenantParam {
			continue
		}

		value, present := payload[param.name]
		if !present {
			if param.required {
				return "", nil, errors.Newf(errors.ErrorTypeValidation, "parameter %q is required", param.name)
			}
			continue
		}

		switch param.in {
		case inPath:
			s, ok := value.(string)
			if !ok || s == "" {
				return "", nil, errors.Newf(errors.ErrorTypeValidation, "parameter %q must be a non-empty string", param.name)
			}
			path = strings.ReplaceAll(path, "{"+param.name+"}", url.PathEscape(s))
		case inQuery:
			query.Set(param.name, fmt.Sprintf("%v", value))
		case inBody:
			raw, err := json.Marshal(value)
			if err != nil {
				return "", nil, errors.Wrapf(err, errors.ErrorTypeData, "failed to serialize parameter %q", param.name)
			}
			body = raw
		case inHeader:
			// only the tenant parameter travels as a header
		}
	}

	target := strings.TrimSuffix(baseURL, "/") + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return target, body, nil
}

// connection is one entry of the connections endpoint response.
type connection struct {
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName"`
	TenantType string `json:"tenantType"`
}

func discoverTenants(ctx context.Context, client *http.Client, connectionsURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, connectionsURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build connections request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "tenant discovery failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, errors.Newf(errors.ErrorTypeAuthentication,
			"tenant discovery returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var connections []connection
	if err := json.NewDecoder(resp.Body).Decode(&connections); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode connections response")
	}

	tenants := make([]string, 0, len(connections))
	for _, conn := range connections {
		tenants = append(tenants, conn.TenantID)
	}
	return tenants, nil
}

func decodeBody(raw []byte) interface{} {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}
	return decoded
}
