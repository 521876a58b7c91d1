// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package clicmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/juju/cmd/v3"
	"github.com/juju/gnuflag"
	"gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/params"
)

type listCommand struct {
	*waiverdbCommand

	out cmd.Output

	req params.ListWaiversRequest
	all bool
}

func newListCommand(c *waiverdbCommand) cmd.Command {
	return &listCommand{
		waiverdbCommand: c,
	}
}

var listDoc = `
The list command lists waivers, most recent first. By default only the
first page of waivers that have not been superseded is shown.

    waiverdb-cli list -s koji_build -i glibc-2.26-27.fc27
    waiverdb-cli list --testcase dist.rpmdeplint --all --format json
`

func (c *listCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "list",
		Purpose: "list waivers",
		Doc:     listDoc,
	}
}

func (c *listCommand) SetFlags(f *gnuflag.FlagSet) {
	c.waiverdbCommand.SetFlags(f)

	c.out.AddFlags(f, "tab", map[string]cmd.Formatter{
		"yaml": cmd.FormatYaml,
		"json": cmd.FormatJson,
		"tab":  formatTab,
	})
	f.StringVar(&c.req.SubjectType, "s", "", "type of the subject")
	f.StringVar(&c.req.SubjectType, "subject-type", "", "")
	f.StringVar(&c.req.SubjectIdentifier, "i", "", "identifier of the subject")
	f.StringVar(&c.req.SubjectIdentifier, "subject-identifier", "", "")
	f.StringVar(&c.req.Testcase, "t", "", "test case name")
	f.StringVar(&c.req.Testcase, "testcase", "", "")
	f.StringVar(&c.req.Scenario, "scenario", "", "test scenario")
	f.StringVar(&c.req.ProductVersion, "p", "", "product version identifier")
	f.StringVar(&c.req.ProductVersion, "product-version", "", "")
	f.StringVar(&c.req.Username, "u", "", "user that created the waivers")
	f.StringVar(&c.req.Username, "username", "", "")
	f.StringVar(&c.req.ProxiedBy, "proxied-by", "", "user that created the waivers on behalf of another")
	f.StringVar(&c.req.Since, "since", "", "time range of the waivers, as <start>[,<end>]")
	f.BoolVar(&c.req.IncludeObsolete, "include-obsolete", false, "include superseded waivers")
	f.StringVar(&c.req.Page, "page", "", "page to show")
	f.StringVar(&c.req.Limit, "limit", "", "number of waivers per page")
	f.BoolVar(&c.all, "all", false, "show all pages")
}

func (c *listCommand) Init(args []string) error {
	return errgo.Mask(c.waiverdbCommand.Init(args))
}

func (c *listCommand) Run(ctxt *cmd.Context) error {
	ctx := context.Background()
	client, err := c.Client(ctxt)
	if err != nil {
		return errgo.Mask(err)
	}
	var ws []params.Waiver
	if c.all {
		ws, err = client.ListAllWaivers(ctx, c.req)
		if err != nil {
			return errgo.Mask(err)
		}
	} else {
		page, err := client.ListWaivers(ctx, &c.req)
		if err != nil {
			return errgo.Mask(err)
		}
		ws = page.Data
	}
	out := make([]waiver, len(ws))
	for i, w := range ws {
		out[i] = newWaiver(w)
	}
	return c.out.Write(ctxt, out)
}

// waiver is the representation of a waiver in the command output.
type waiver struct {
	ID                int64  `json:"id" yaml:"id"`
	SubjectType       string `json:"subject-type" yaml:"subject-type"`
	SubjectIdentifier string `json:"subject-identifier" yaml:"subject-identifier"`
	Testcase          string `json:"testcase" yaml:"testcase"`
	Scenario          string `json:"scenario,omitempty" yaml:"scenario,omitempty"`
	ProductVersion    string `json:"product-version" yaml:"product-version"`
	Waived            bool   `json:"waived" yaml:"waived"`
	Username          string `json:"username" yaml:"username"`
	ProxiedBy         string `json:"proxied-by,omitempty" yaml:"proxied-by,omitempty"`
	Comment           string `json:"comment" yaml:"comment"`
	Timestamp         string `json:"timestamp" yaml:"timestamp"`
}

func newWaiver(w params.Waiver) waiver {
	out := waiver{
		ID:                w.ID,
		SubjectType:       w.SubjectType,
		SubjectIdentifier: w.SubjectIdentifier,
		Testcase:          w.Testcase,
		ProductVersion:    w.ProductVersion,
		Waived:            w.Waived,
		Username:          w.Username,
		Comment:           w.Comment,
		Timestamp:         w.Timestamp.UTC().Format(time.RFC3339),
	}
	if w.Scenario != nil {
		out.Scenario = *w.Scenario
	}
	if w.ProxiedBy != nil {
		out.ProxiedBy = *w.ProxiedBy
	}
	return out
}

func formatTab(writer io.Writer, value interface{}) error {
	ws, ok := value.([]waiver)
	if !ok {
		return errgo.Newf("unexpected value %T", value)
	}
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 8, 1, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBJECT\tTESTCASE\tWAIVED\tUSER\tTIMESTAMP")
	for _, w := range ws {
		fmt.Fprintf(tw, "%d\t%s/%s\t%s\t%t\t%s\t%s\n", w.ID, w.SubjectType, w.SubjectIdentifier, w.Testcase, w.Waived, w.Username, w.Timestamp)
	}
	if err := tw.Flush(); err != nil {
		return errgo.Mask(err)
	}
	_, err := writer.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return errgo.Mask(err)
}
