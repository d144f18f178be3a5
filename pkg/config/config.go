// Package config provides the unified configuration system for destination
// drivers. A single DestinationConfig structure carries the credential and
// identifier fields every driver consumes; each driver reads the subset it
// needs and ignores the rest.
//
// Credentials may be supplied twice: once when the driver is constructed and
// again per call as an override. Override fields take precedence over the
// bound values, field by field (see Merge).
package config

import (
	"fmt"
	"time"
)

// DestinationConfig is the static configuration a destination driver is
// seeded with. All fields are optional at this level; each driver validates
// the fields it requires on Connect.
type DestinationConfig struct {
	// Core identification fields

	// Name identifies the destination instance
	Name string `yaml:"name" json:"name"`
	// Type specifies the destination type (e.g. "bigquery", "elasticsearch", "xero")
	Type string `yaml:"type" json:"type"`

	// Warehouse fields

	// ProjectID is the cloud project the warehouse client binds to
	ProjectID string `yaml:"project_id" json:"project_id"`
	// CredentialsJSON is a JSON-encoded service-account credential
	CredentialsJSON string `yaml:"credentials_json" json:"credentials_json"`

	// OAuth2 fields (accounting destination)

	// ClientID is the OAuth2 client id
	ClientID string `yaml:"client_id" json:"client_id"`
	// ClientSecret is the OAuth2 client secret
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	// RedirectURI is the registered OAuth2 redirect URI
	RedirectURI string `yaml:"redirect_uri" json:"redirect_uri"`
	// Scopes are the OAuth2 scopes requested for the token set
	Scopes []string `yaml:"scopes" json:"scopes"`
	// AccessToken is a pre-resolved OAuth2 access token; refresh is the
	// caller's responsibility
	AccessToken string `yaml:"access_token" json:"access_token"`
	// RefreshToken is the refresh token paired with AccessToken
	RefreshToken string `yaml:"refresh_token" json:"refresh_token"`

	// Search fields

	// Addresses lists the search cluster node URLs
	Addresses []string `yaml:"addresses" json:"addresses"`
	// Username for basic authentication
	Username string `yaml:"username" json:"username"`
	// Password for basic authentication
	Password string `yaml:"password" json:"password"`
	// APIKey for key-based authentication, mutually exclusive with basic auth
	APIKey string `yaml:"api_key" json:"api_key"`

	// Transport fields

	// CABundlePath points at an optional PEM bundle for TLS verification
	CABundlePath string `yaml:"ca_bundle_path" json:"ca_bundle_path"`
	// RequestTimeout bounds each vendor HTTP request (0 = driver default)
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// Endpoint overrides, used by tests and private deployments

	// ConnectionsURL overrides the tenant discovery endpoint
	ConnectionsURL string `yaml:"connections_url" json:"connections_url"`
	// AccountingURL overrides the accounting API base URL
	AccountingURL string `yaml:"accounting_url" json:"accounting_url"`
}

// Validate checks the fields that are required regardless of destination type.
// Drivers perform their own type-specific validation on Connect.
func (c *DestinationConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout cannot be negative")
	}
	return nil
}

// Merge returns the effective configuration for a call: the receiver's values
// with any non-zero field of override taking precedence. The receiver is not
// modified. A nil override returns a copy of the receiver.
func (c *DestinationConfig) Merge(override *DestinationConfig) *DestinationConfig {
	merged := *c
	if override == nil {
		return &merged
	}

	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.ProjectID != "" {
		merged.ProjectID = override.ProjectID
	}
	if override.CredentialsJSON != "" {
		merged.CredentialsJSON = override.CredentialsJSON
	}
	if override.ClientID != "" {
		merged.ClientID = override.ClientID
	}
	if override.ClientSecret != "" {
		merged.ClientSecret = override.ClientSecret
	}
	if override.RedirectURI != "" {
		merged.RedirectURI = override.RedirectURI
	}
	if len(override.Scopes) > 0 {
		merged.Scopes = override.Scopes
	}
	if override.AccessToken != "" {
		merged.AccessToken = override.AccessToken
	}
	if override.RefreshToken != "" {
		merged.RefreshToken = override.RefreshToken
	}
	if len(override.Addresses) > 0 {
		merged.Addresses = override.Addresses
	}
	if override.Username != "" {
		merged.Username = override.Username
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.APIKey != "" {
		merged.APIKey = override.APIKey
	}
	if override.CABundlePath != "" {
		merged.CABundlePath = override.CABundlePath
	}
	if override.RequestTimeout != 0 {
		merged.RequestTimeout = override.RequestTimeout
	}
	if override.ConnectionsURL != "" {
		merged.ConnectionsURL = override.ConnectionsURL
	}
	if override.AccountingURL != "" {
		merged.AccountingURL = override.AccountingURL
	}

	return &merged
}
