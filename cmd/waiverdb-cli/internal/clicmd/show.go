// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package clicmd

import (
	"context"
	"strconv"

	"github.com/juju/cmd/v3"
	"github.com/juju/gnuflag"
	"gopkg.in/errgo.v1"
)

type showCommand struct {
	*waiverdbCommand

	out cmd.Output

	id int64
}

func newShowCommand(c *waiverdbCommand) cmd.Command {
	return &showCommand{
		waiverdbCommand: c,
	}
}

var showDoc = `
The show command shows the details of a waiver.

    waiverdb-cli show 42
`

func (c *showCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "show",
		Args:    "<id>",
		Purpose: "show waiver details",
		Doc:     showDoc,
	}
}

func (c *showCommand) SetFlags(f *gnuflag.FlagSet) {
	c.waiverdbCommand.SetFlags(f)

	c.out.AddFlags(f, "yaml", map[string]cmd.Formatter{
		"yaml": cmd.FormatYaml,
		"json": cmd.FormatJson,
	})
}

func (c *showCommand) Init(args []string) error {
	if len(args) == 0 {
		return errgo.New("no waiver id specified")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 1 {
		return errgo.Newf("invalid waiver id %q", args[0])
	}
	c.id = id
	return errgo.Mask(c.waiverdbCommand.Init(args[1:]))
}

func (c *showCommand) Run(ctxt *cmd.Context) error {
	client, err := c.Client(ctxt)
	if err != nil {
		return errgo.Mask(err)
	}
	w, err := client.GetWaiver(context.Background(), c.id)
	if err != nil {
		return errgo.Mask(err)
	}
	return c.out.Write(ctxt, newWaiver(*w))
}
