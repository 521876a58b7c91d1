// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package clicmd

import (
	"context"
	"fmt"

	"github.com/juju/cmd/v3"
	"github.com/juju/gnuflag"
	"gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/params"
)

type createCommand struct {
	*waiverdbCommand

	resultIDs         []int64
	subjectType       string
	subjectIdentifier string
	testcase          string
	scenario          string
	productVersion    string
	comment           string
	noWaived          bool
	username          string
}

func newCreateCommand(c *waiverdbCommand) cmd.Command {
	return &createCommand{
		waiverdbCommand: c,
	}
}

var createDoc = `
The create command creates new waivers. Results are specified either
by one or more result ids, or by a subject and test case.

    waiverdb-cli create -r 123 -r 456 -p fedora-26 -c "It's dead!"
    waiverdb-cli create -s koji_build -i glibc-2.26-27.fc27 -t dist.rpmdeplint -p fedora-27 -c "Known issue"
`

func (c *createCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "create",
		Purpose: "create waivers",
		Doc:     createDoc,
	}
}

func (c *createCommand) SetFlags(f *gnuflag.FlagSet) {
	c.waiverdbCommand.SetFlags(f)

	ids := int64sValue{&c.resultIDs}
	f.Var(ids, "r", "result id to waive (may be repeated)")
	f.Var(ids, "result-id", "")
	f.StringVar(&c.subjectType, "s", "", "type of the subject")
	f.StringVar(&c.subjectType, "subject-type", "", "")
	f.StringVar(&c.subjectIdentifier, "i", "", "identifier of the subject")
	f.StringVar(&c.subjectIdentifier, "subject-identifier", "", "")
	f.StringVar(&c.testcase, "t", "", "test case name")
	f.StringVar(&c.testcase, "testcase", "", "")
	f.StringVar(&c.scenario, "scenario", "", "test scenario")
	f.StringVar(&c.productVersion, "p", "", "product version identifier")
	f.StringVar(&c.productVersion, "product-version", "", "")
	f.StringVar(&c.comment, "c", "", "comment explaining why the result is waived")
	f.StringVar(&c.comment, "comment", "", "")
	f.BoolVar(&c.noWaived, "no-waived", false, "record that the result is not waived")
	f.StringVar(&c.username, "username", "", "create the waiver on behalf of this user")
}

func (c *createCommand) Init(args []string) error {
	if c.productVersion == "" {
		return errgo.New("please specify product version")
	}
	if c.comment == "" {
		return errgo.New("please specify comment")
	}
	hasSubject := c.subjectType != "" || c.subjectIdentifier != "" || c.testcase != ""
	switch {
	case len(c.resultIDs) > 0 && (hasSubject || c.scenario != ""):
		return errgo.New("result ids cannot be combined with a subject or test case")
	case len(c.resultIDs) == 0 && (c.subjectType == "" || c.subjectIdentifier == "" || c.testcase == ""):
		return errgo.New("please specify one or more result ids, or a subject type, subject identifier and test case")
	}
	return errgo.Mask(c.waiverdbCommand.Init(args))
}

func (c *createCommand) Run(ctxt *cmd.Context) error {
	ctx := context.Background()
	client, err := c.Client(ctxt)
	if err != nil {
		return errgo.Mask(err)
	}
	waived := !c.noWaived
	base := params.CreateWaiver{
		ProductVersion: c.productVersion,
		Comment:        c.comment,
		Waived:         &waived,
		Username:       c.username,
	}
	if len(c.resultIDs) == 0 {
		cw := base
		cw.SubjectType = c.subjectType
		cw.SubjectIdentifier = c.subjectIdentifier
		cw.Testcase = c.testcase
		cw.Scenario = c.scenario
		w, err := client.CreateWaiver(ctx, &cw)
		if err != nil {
			return errgo.Notef(err, "cannot create waiver for subject %s/%s", c.subjectType, c.subjectIdentifier)
		}
		fmt.Fprintf(ctxt.Stdout, "Created waiver %d for subject %s/%s\n", w.ID, w.SubjectType, w.SubjectIdentifier)
		return nil
	}
	for _, id := range c.resultIDs {
		cw := base
		cw.ResultID = id
		w, err := client.CreateWaiver(ctx, &cw)
		if err != nil {
			return errgo.Notef(err, "cannot create waiver for result %d", id)
		}
		fmt.Fprintf(ctxt.Stdout, "Created waiver %d for result %d\n", w.ID, id)
	}
	return nil
}
