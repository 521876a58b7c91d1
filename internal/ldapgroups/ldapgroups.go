// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package ldapgroups resolves the directory groups a user belongs to.
package ldapgroups

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/juju/loggo"
	"github.com/patrickmn/go-cache"
	"gopkg.in/errgo.v1"
	"gopkg.in/ldap.v2"

	"github.com/release-engineering/waiverdb/params"
)

var logger = loggo.GetLogger("waiverdb.internal.ldapgroups")

// DefaultSearchString is the search filter used when a Search does not
// specify one.
const DefaultSearchString = "(memberUid={user})"

// Messages of the errors returned by the resolver. These are part of
// the API.
const (
	msgInitialize  = "Some error occurred initializing the LDAP connection."
	msgUnreachable = "The LDAP server is not reachable."
	msgMissingBase = "LDAP_SEARCHES parameter should contain the BASE key"
)

// Search describes one group search in the directory. The string
// "{user}" in SearchString is replaced by the escaped username.
type Search struct {
	Base         string `yaml:"base"`
	SearchString string `yaml:"search-string"`
}

// Params holds the parameters for a Resolver.
type Params struct {
	// Host holds the URL of the directory server, for example
	// "ldap://ldap.example.com" or "ldaps://ldap.example.com:636".
	Host string

	// Searches holds the searches to perform, in order.
	Searches []Search

	// BindDN and BindPassword optionally hold credentials to bind
	// with before searching. By default searches are anonymous.
	BindDN       string
	BindPassword string

	// CacheTTL holds how long successful search results are
	// remembered. Zero disables the cache.
	CacheTTL time.Duration
}

// Resolver resolves group membership by searching a directory server.
// A Resolver may be used concurrently.
type Resolver struct {
	params Params
	dial   func(network, addr string, tlsConfig *tls.Config) (Conn, error)
	cache  *cache.Cache
}

// New returns a new Resolver. The host URL is not checked until it is
// first used.
func New(p Params) *Resolver {
	r := &Resolver{
		params: p,
		dial:   dialLDAP,
	}
	if p.CacheTTL > 0 {
		r.cache = cache.New(p.CacheTTL, 2*p.CacheTTL)
	}
	return r
}

// Groups returns the groups that username belongs to. The searches are
// performed in order and their results joined. If wanted is not nil,
// no further searches are made once a group for which wanted returns
// true has been found. A single connection is used for all the searches
// and it is closed before Groups returns.
//
// The returned errors have a cause of params.ErrUnauthorized when the
// connection could not be initialized or a search failed,
// params.ErrBadGateway when the server could not be reached and
// params.ErrInternalServerError when a search has no base.
func (r *Resolver) Groups(ctx context.Context, username string, wanted func(group string) bool) ([]string, error) {
	var conn Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()
	var groups []string
	seen := make(map[string]bool)
	for _, s := range r.params.Searches {
		if s.Base == "" {
			logger.Errorf("%s", msgMissingBase)
			return nil, errgo.WithCausef(nil, params.ErrInternalServerError, msgMissingBase)
		}
		found, ok := r.cached(s, username)
		if !ok {
			if conn == nil {
				var err error
				conn, err = r.connect()
				if err != nil {
					return nil, errgo.Mask(err, errgo.Any)
				}
			}
			var err error
			found, err = GroupMembership(conn, username, s)
			if err != nil {
				return nil, errgo.Mask(err, errgo.Any)
			}
			r.store(s, username, found)
		}
		satisfied := false
		for _, g := range found {
			if !seen[g] {
				seen[g] = true
				groups = append(groups, g)
			}
			if wanted != nil && wanted(g) {
				satisfied = true
			}
		}
		if satisfied {
			break
		}
	}
	return groups, nil
}

// GroupMembership performs a single group search for username using
// the given connection.
func GroupMembership(conn Conn, username string, s Search) ([]string, error) {
	if s.Base == "" {
		return nil, errgo.WithCausef(nil, params.ErrInternalServerError, msgMissingBase)
	}
	searchString := s.SearchString
	if searchString == "" {
		searchString = DefaultSearchString
	}
	req := &ldap.SearchRequest{
		BaseDN:       s.Base,
		Scope:        ldap.ScopeWholeSubtree,
		DerefAliases: ldap.NeverDerefAliases,
		Filter:       strings.Replace(searchString, "{user}", ldap.EscapeFilter(username), -1),
		Attributes:   []string{"cn"},
	}
	res, err := conn.Search(req)
	if err != nil {
		return nil, classify(err)
	}
	groups := []string{}
	for _, entry := range res.Entries {
		if entry == nil || len(entry.Attributes) == 0 || len(entry.Attributes[0].Values) == 0 {
			continue
		}
		groups = append(groups, entry.Attributes[0].Values[0])
	}
	return groups, nil
}

// connect establishes a connection to the directory server, binding
// if credentials are configured.
func (r *Resolver) connect() (Conn, error) {
	u, err := url.Parse(r.params.Host)
	if err != nil {
		logger.Errorf("cannot parse LDAP host %q: %s", r.params.Host, err)
		return nil, errgo.WithCausef(nil, params.ErrUnauthorized, msgInitialize)
	}
	var tlsConfig *tls.Config
	defaultPort := "389"
	switch u.Scheme {
	case "ldap":
	case "ldaps":
		tlsConfig = &tls.Config{}
		defaultPort = "636"
	default:
		logger.Errorf("unsupported LDAP scheme %q", u.Scheme)
		return nil, errgo.WithCausef(nil, params.ErrUnauthorized, msgInitialize)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		// Assume that the URL didn't specify a port.
		host = u.Host
		port = defaultPort
	}
	if host == "" {
		logger.Errorf("no host in LDAP URL %q", r.params.Host)
		return nil, errgo.WithCausef(nil, params.ErrUnauthorized, msgInitialize)
	}
	if tlsConfig != nil {
		tlsConfig.ServerName = host
	}
	conn, err := r.dial("tcp", net.JoinHostPort(host, port), tlsConfig)
	if err != nil {
		return nil, classify(err)
	}
	if r.params.BindDN != "" {
		if err := conn.Bind(r.params.BindDN, r.params.BindPassword); err != nil {
			conn.Close()
			return nil, classify(err)
		}
	}
	return conn, nil
}

// classify converts an error from the LDAP client into an error with
// the appropriate cause.
func classify(err error) error {
	if isNetworkError(err) {
		logger.Errorf("%s: %s", msgUnreachable, err)
		return errgo.WithCausef(nil, params.ErrBadGateway, msgUnreachable)
	}
	logger.Errorf("%s: %s", msgInitialize, err)
	return errgo.WithCausef(nil, params.ErrUnauthorized, msgInitialize)
}

func isNetworkError(err error) bool {
	if ldap.IsErrorWithCode(err, ldap.ErrorNetwork) {
		return true
	}
	_, ok := err.(net.Error)
	return ok
}

func cacheKey(s Search, username string) string {
	return s.Base + "\x00" + s.SearchString + "\x00" + username
}

func (r *Resolver) cached(s Search, username string) ([]string, bool) {
	if r.cache == nil {
		return nil, false
	}
	v, ok := r.cache.Get(cacheKey(s, username))
	if !ok {
		return nil, false
	}
	return v.([]string), true
}

func (r *Resolver) store(s Search, username string, groups []string) {
	if r.cache == nil {
		return
	}
	r.cache.SetDefault(cacheKey(s, username), groups)
}

func dialLDAP(network, addr string, tlsConfig *tls.Config) (Conn, error) {
	if tlsConfig != nil {
		c, err := ldap.DialTLS(network, addr, tlsConfig)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	c, err := ldap.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Conn represents the subset of ldap connection methods used by the
// resolver. It is defined so that it can be replaced for testing.
type Conn interface {
	Bind(username, password string) error
	Search(searchRequest *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close()
}
