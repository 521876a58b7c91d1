// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package v1

import (
	"github.com/release-engineering/waiverdb/params"
	"github.com/release-engineering/waiverdb/permission"
	"github.com/release-engineering/waiverdb/version"
)

// About returns the server version and the accepted authentication
// methods.
func (h *handler) About(*params.AboutRequest) (*params.AboutResponse, error) {
	methods := h.h.params.Authenticator.Methods()
	resp := &params.AboutResponse{
		Version:     version.VersionInfo.Version,
		AuthMethods: methods,
	}
	if len(methods) > 0 {
		resp.AuthMethod = methods[0]
	}
	return resp, nil
}

// Config returns the publicly visible configuration.
func (h *handler) Config(*params.ConfigRequest) (*params.ConfigResponse, error) {
	superusers := h.h.params.Superusers
	if superusers == nil {
		superusers = []string{}
	}
	return &params.ConfigResponse{
		PermissionMapping: h.h.params.PermissionMapping.Params(),
		Permissions:       rulesParams(h.h.params.Permissions),
		Superusers:        superusers,
	}, nil
}

// Permissions returns the permission rules, restricted to those that
// apply to the requested test case if there is one.
func (h *handler) Permissions(req *params.PermissionsRequest) ([]params.PermissionRule, error) {
	rules := h.h.params.Permissions
	if req.Testcase != "" {
		rules = permission.Match(req.Testcase, rules)
	}
	return rulesParams(rules), nil
}

func rulesParams(rules []permission.Rule) []params.PermissionRule {
	prs := make([]params.PermissionRule, len(rules))
	for i := range rules {
		prs[i] = rules[i].Params()
	}
	return prs
}
