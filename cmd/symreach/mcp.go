package main

import (
	"github.com/urfave/cli/v2"

	"github.com/panbanda/symreach/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio that exposes reachability analysis as
tools an assistant can call.

To register it with an MCP client:
  {
    "mcpServers": {
      "symreach": {
        "command": "symreach",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - find_dead_code          Declarations no entry point reaches
  - explain_symbol          Why a symbol is live, dead or ignored
  - unresolved_references   References bound to no declaration`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:  "manifest",
				Usage: "Print the MCP registry server.json",
				Action: func(c *cli.Context) error {
					data, err := mcpserver.GenerateServerManifest(version)
					if err != nil {
						return err
					}
					_, err = c.App.Writer.Write(append(data, '\n'))
					return err
				},
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	svc, _, err := newService(c)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(c.Context)
	defer stop()
	return mcpserver.NewServer(version, svc).Run(ctx)
}
