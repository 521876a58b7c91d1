// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ldapgroups

import "crypto/tls"

type Dialer func(network, address string, tlsConfig *tls.Config) (Conn, error)

func SetDialer(r *Resolver, d Dialer) {
	r.dial = d
}
