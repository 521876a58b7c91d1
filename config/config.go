// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// The config package defines configuration parameters for the waiver
// server.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/errgo.v1"
	"gopkg.in/yaml.v2"

	"github.com/release-engineering/waiverdb/internal/auth"
	"github.com/release-engineering/waiverdb/internal/events"
	"github.com/release-engineering/waiverdb/internal/ldapgroups"
	"github.com/release-engineering/waiverdb/permission"
	"github.com/release-engineering/waiverdb/store"
)

// Default values for unset configuration parameters.
const (
	DefaultAPIAddr         = ":5004"
	DefaultPageSize        = 10
	DefaultMaxPageSize     = 100
	DefaultOIDCUsernameKey = auth.DefaultUsernameField
)

// Config holds the configuration parameters for the waiver service.
type Config struct {
	// APIAddr holds the address to listen on.
	APIAddr string `yaml:"api-addr"`

	// TLSCert and TLSKey optionally hold the paths of the TLS
	// certificate and key to serve with.
	TLSCert string `yaml:"tls-cert"`
	TLSKey  string `yaml:"tls-key"`

	// AccessLog, if set, holds the path of a file that requests are
	// logged to.
	AccessLog string `yaml:"access-log"`

	// LoggingConfig holds the loggo configuration string.
	LoggingConfig string `yaml:"logging-config"`

	// Storage holds the storage backend to use.
	Storage *store.Config `yaml:"storage"`

	// AuthMethods holds the enabled authentication methods in the
	// order they are tried.
	AuthMethods []string `yaml:"auth-methods"`

	OIDCIssuer        string `yaml:"oidc-issuer"`
	OIDCClientID      string `yaml:"oidc-client-id"`
	OIDCUsernameField string `yaml:"oidc-username-field"`

	// SSLTrustProxyHeaders makes the ssl method accept the client
	// certificate details from headers set by a proxy.
	SSLTrustProxyHeaders bool `yaml:"ssl-trust-proxy-headers"`

	Superusers        []string           `yaml:"superusers"`
	Permissions       []permission.Rule  `yaml:"permissions"`
	PermissionMapping permission.Mapping `yaml:"permission-mapping"`

	// LDAPHost holds the URL of the directory server used to find
	// group membership. When it is empty group permissions cannot
	// be granted.
	LDAPHost         string              `yaml:"ldap-host"`
	LDAPSearches     []ldapgroups.Search `yaml:"ldap-searches"`
	LDAPBase         string              `yaml:"ldap-base"`
	LDAPSearchString string              `yaml:"ldap-search-string"`
	LDAPBindDN       string              `yaml:"ldap-bind-dn"`
	LDAPBindPassword string              `yaml:"ldap-bind-password"`

	// LDAPGroupCacheTTL holds how long group searches are cached
	// for. Zero disables the cache.
	LDAPGroupCacheTTL time.Duration `yaml:"ldap-group-cache-ttl"`

	ResultsDBAPIURL string   `yaml:"resultsdb-api-url"`
	CORSOrigins     []string `yaml:"cors-origins"`

	Messaging events.Params `yaml:"messaging"`

	DefaultPageSize int `yaml:"default-page-size"`
	MaxPageSize     int `yaml:"max-page-size"`
}

// Read reads a configuration file from the given path. Unset
// parameters are given their default values and the result is
// validated.
func Read(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errgo.Notef(err, "cannot open config file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errgo.Notef(err, "cannot read %q", path)
	}
	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, errgo.Notef(err, "cannot parse %q", path)
	}
	conf.setDefaults()
	if err := conf.Validate(); err != nil {
		return nil, errgo.Mask(err)
	}
	return &conf, nil
}

func (c *Config) setDefaults() {
	if c.APIAddr == "" {
		c.APIAddr = DefaultAPIAddr
	}
	if len(c.AuthMethods) == 0 {
		c.AuthMethods = []string{auth.MethodOIDC}
	}
	if c.OIDCUsernameField == "" {
		c.OIDCUsernameField = DefaultOIDCUsernameKey
	}
	if c.DefaultPageSize == 0 {
		c.DefaultPageSize = DefaultPageSize
	}
	if c.MaxPageSize == 0 {
		c.MaxPageSize = DefaultMaxPageSize
	}
}

// Searches returns the directory searches to perform. When no
// ldap-searches are configured the legacy ldap-base and
// ldap-search-string parameters describe a single search.
func (c *Config) Searches() []ldapgroups.Search {
	if len(c.LDAPSearches) > 0 {
		return c.LDAPSearches
	}
	if c.LDAPBase == "" {
		return nil
	}
	s := ldapgroups.Search{
		Base:         c.LDAPBase,
		SearchString: c.LDAPSearchString,
	}
	if s.SearchString == "" {
		s.SearchString = ldapgroups.DefaultSearchString
	}
	return []ldapgroups.Search{s}
}

// DirectoryParams returns the parameters of the directory used to
// resolve group membership. The returned boolean is false unless both
// ldap-host and at least one search are configured, in which case
// group permissions are never granted.
func (c *Config) DirectoryParams() (ldapgroups.Params, bool) {
	searches := c.Searches()
	if c.LDAPHost == "" || len(searches) == 0 {
		return ldapgroups.Params{}, false
	}
	return ldapgroups.Params{
		Host:         c.LDAPHost,
		Searches:     searches,
		BindDN:       c.LDAPBindDN,
		BindPassword: c.LDAPBindPassword,
		CacheTTL:     c.LDAPGroupCacheTTL,
	}, true
}

// Rules returns the compiled permission rules described by the
// configuration.
func (c *Config) Rules() ([]permission.Rule, error) {
	rules, err := permission.Permissions(c.Permissions, c.PermissionMapping)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	return rules, nil
}

// Validate checks the configuration, reporting all the problems found.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(f string, a ...interface{}) {
		result = multierror.Append(result, fmt.Errorf(f, a...))
	}
	if c.Storage == nil {
		add("missing storage")
	}
	if c.TLSKey != "" && c.TLSCert == "" {
		add("tls-key specified without tls-cert")
	}
	if c.TLSCert != "" && c.TLSKey == "" {
		add("tls-cert specified without tls-key")
	}
	for _, m := range c.AuthMethods {
		switch m {
		case auth.MethodOIDC:
			if c.OIDCIssuer == "" {
				add("oidc authentication requires oidc-issuer")
			}
			if c.OIDCClientID == "" {
				add("oidc authentication requires oidc-client-id")
			}
		case auth.MethodSSL, auth.MethodDummy:
		default:
			add("unknown authentication method %q", m)
		}
	}
	if len(c.LDAPSearches) > 0 && (c.LDAPBase != "" || c.LDAPSearchString != "") {
		add("ldap-searches cannot be used with ldap-base or ldap-search-string")
	}
	for i, s := range c.LDAPSearches {
		if s.Base == "" {
			add("ldap-searches[%d]: missing base", i)
		}
	}
	if c.LDAPHost == "" && len(c.Searches()) > 0 {
		add("ldap searches specified without ldap-host")
	}
	if c.LDAPGroupCacheTTL < 0 {
		add("ldap-group-cache-ttl cannot be negative")
	}
	if _, err := c.Rules(); err != nil {
		add("%s", err)
	}
	if err := c.Messaging.Validate(); err != nil {
		add("messaging: %s", err)
	}
	if c.DefaultPageSize < 0 {
		add("default-page-size cannot be negative")
	}
	if c.MaxPageSize < 0 {
		add("max-page-size cannot be negative")
	}
	if c.DefaultPageSize > c.MaxPageSize {
		add("default-page-size (%d) greater than max-page-size (%d)", c.DefaultPageSize, c.MaxPageSize)
	}
	if result == nil {
		return nil
	}
	result.ErrorFormat = formatErrors
	return result
}

func formatErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}
