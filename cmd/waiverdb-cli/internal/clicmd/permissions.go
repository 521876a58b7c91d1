// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package clicmd

import (
	"context"

	"github.com/juju/cmd/v3"
	"github.com/juju/gnuflag"
	"gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/params"
)

type permissionsCommand struct {
	*waiverdbCommand

	out cmd.Output

	testcase string
}

func newPermissionsCommand(c *waiverdbCommand) cmd.Command {
	return &permissionsCommand{
		waiverdbCommand: c,
	}
}

var permissionsDoc = `
The permissions command shows who may waive results. With --testcase
only the rules applying to that test case are shown.

    waiverdb-cli permissions --testcase dist.rpmdeplint
`

func (c *permissionsCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "permissions",
		Purpose: "show waiving permissions",
		Doc:     permissionsDoc,
	}
}

func (c *permissionsCommand) SetFlags(f *gnuflag.FlagSet) {
	c.waiverdbCommand.SetFlags(f)

	c.out.AddFlags(f, "yaml", map[string]cmd.Formatter{
		"yaml": cmd.FormatYaml,
		"json": cmd.FormatJson,
	})
	f.StringVar(&c.testcase, "t", "", "show only the rules applying to this test case")
	f.StringVar(&c.testcase, "testcase", "", "")
}

func (c *permissionsCommand) Init(args []string) error {
	return errgo.Mask(c.waiverdbCommand.Init(args))
}

func (c *permissionsCommand) Run(ctxt *cmd.Context) error {
	client, err := c.Client(ctxt)
	if err != nil {
		return errgo.Mask(err)
	}
	rules, err := client.Permissions(context.Background(), c.testcase)
	if err != nil {
		return errgo.Mask(err)
	}
	out := make([]rule, len(rules))
	for i, r := range rules {
		out[i] = newRule(r)
	}
	return c.out.Write(ctxt, out)
}

// rule is the representation of a permission rule in the command
// output.
type rule struct {
	Name                 string   `json:"name" yaml:"name"`
	Maintainers          []string `json:"maintainers,omitempty" yaml:"maintainers,omitempty"`
	Testcases            []string `json:"testcases,omitempty" yaml:"testcases,omitempty"`
	TestcasesIgnore      []string `json:"testcases-ignore,omitempty" yaml:"testcases-ignore,omitempty"`
	TestcaseRegexPattern string   `json:"testcase-regex-pattern,omitempty" yaml:"testcase-regex-pattern,omitempty"`
	Users                []string `json:"users,omitempty" yaml:"users,omitempty"`
	Groups               []string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

func newRule(r params.PermissionRule) rule {
	return rule{
		Name:                 r.Name,
		Maintainers:          r.Maintainers,
		Testcases:            r.Testcases,
		TestcasesIgnore:      r.TestcasesIgnore,
		TestcaseRegexPattern: r.TestcaseRegexPattern,
		Users:                r.Users,
		Groups:               r.Groups,
	}
}
