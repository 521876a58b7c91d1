// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ldapgroups_test

import (
	"crypto/tls"
	"fmt"

	"gopkg.in/asn1-ber.v1"
	"gopkg.in/ldap.v2"

	"github.com/release-engineering/waiverdb/internal/ldapgroups"
)

type mockLDAPDialer struct {
	db    ldapDB
	conns []*mockLDAPConn

	// dialErr, if set, is returned from Dial.
	dialErr error
	// searchErrs holds errors to return from Search, keyed by
	// base DN.
	searchErrs map[string]error
}

func newMockLDAPDialer(db ldapDB) *mockLDAPDialer {
	return &mockLDAPDialer{
		db:         db,
		searchErrs: make(map[string]error),
	}
}

func (d *mockLDAPDialer) Dial(network, address string, tlsConfig *tls.Config) (ldapgroups.Conn, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	conn := &mockLDAPConn{
		dialer:    d,
		network:   network,
		address:   address,
		tlsConfig: tlsConfig,
	}
	d.conns = append(d.conns, conn)
	return conn, nil
}

type mockLDAPConn struct {
	dialer *mockLDAPDialer

	// network, address and tlsConfig are set to the arguments passed
	// to the dial function.
	network   string
	address   string
	tlsConfig *tls.Config

	// searchReqs records every Search call.
	searchReqs []*ldap.SearchRequest
	// boundUsername is set when Bind is called.
	boundUsername string
	// closed is set when Close is called.
	closed bool
}

func (c *mockLDAPConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	c.searchReqs = append(c.searchReqs, req)
	if err := c.dialer.searchErrs[req.BaseDN]; err != nil {
		return nil, err
	}
	found, err := c.dialer.db.Search(req.BaseDN, req.Filter)
	if err != nil {
		return nil, ldap.NewError(ldap.ErrorFilterCompile, err)
	}
	entries := make([]*ldap.Entry, len(found))
	for i, res := range found {
		attrs := []*ldap.EntryAttribute{}
		for _, name := range req.Attributes {
			values, ok := res[name]
			if !ok {
				continue
			}
			attrs = append(attrs, &ldap.EntryAttribute{
				Name:   name,
				Values: values,
			})
		}
		entries[i] = &ldap.Entry{
			DN:         res["dn"][0],
			Attributes: attrs,
		}
	}
	return &ldap.SearchResult{Entries: entries}, nil
}

func (c *mockLDAPConn) Bind(username, password string) error {
	for _, entry := range c.dialer.db {
		dn, ok := entry["dn"]
		if !ok || len(dn) == 0 || dn[0] != username {
			continue
		}
		userPassword, ok := entry["userPassword"]
		if ok && len(userPassword) > 0 && userPassword[0] == password {
			c.boundUsername = username
			return nil
		}
	}
	return ldap.NewError(ldap.LDAPResultInvalidCredentials, fmt.Errorf("invalid credentials"))
}

func (c *mockLDAPConn) Close() {
	c.closed = true
}

type ldapDoc map[string][]string
type ldapDB []ldapDoc

// Search returns all the documents under base that match filter.
func (db ldapDB) Search(base, filter string) ([]ldapDoc, error) {
	match, err := filterMatcher(filter)
	if err != nil {
		return nil, err
	}
	var found []ldapDoc
	for _, doc := range db {
		dn := doc["dn"]
		if len(dn) == 0 || !hasSuffix(dn[0], base) {
			continue
		}
		if match(doc) {
			found = append(found, doc)
		}
	}
	return found, nil
}

func hasSuffix(dn, base string) bool {
	return len(dn) >= len(base) && dn[len(dn)-len(base):] == base
}

// filterMatcher returns a function that reports whether a given LDAP document
// matches the LDAP filter. It returns an error if the filter is malformed.
func filterMatcher(filter string) (func(ldapDoc) bool, error) {
	packet, err := ldap.CompileFilter(filter)
	if err != nil {
		return nil, err
	}
	return packetFilterMatcher(packet), nil
}

func packetFilterMatcher(packet *ber.Packet) func(ldapDoc) bool {
	switch packet.Tag {
	case ldap.FilterAnd:
		var children []func(ldapDoc) bool
		for _, child := range packet.Children {
			children = append(children, packetFilterMatcher(child))
		}
		return func(doc ldapDoc) bool {
			for _, child := range children {
				if !child(doc) {
					return false
				}
			}
			return true
		}
	case ldap.FilterOr:
		var children []func(ldapDoc) bool
		for _, child := range packet.Children {
			children = append(children, packetFilterMatcher(child))
		}
		return func(doc ldapDoc) bool {
			for _, child := range children {
				if child(doc) {
					return true
				}
			}
			return false
		}
	case ldap.FilterNot:
		child := packetFilterMatcher(packet.Children[0])
		return func(doc ldapDoc) bool {
			return !child(doc)
		}
	case ldap.FilterEqualityMatch:
		attr := string(packet.Children[0].Data.Bytes())
		expected := string(packet.Children[1].Data.Bytes())
		return func(doc ldapDoc) bool {
			for _, value := range doc[attr] {
				if value == expected {
					return true
				}
			}
			return false
		}
	default:
		panic(fmt.Sprintf("unimplemented tag: %v", packet.Tag))
	}
}
