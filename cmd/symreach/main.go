// Command symreach reports declarations that no entry point reaches.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

// Set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// getPaths returns the positional arguments, or "." when there are none.
func getPaths(c *cli.Context) []string {
	if c.Args().Present() {
		return c.Args().Slice()
	}
	return []string{"."}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "config file (TOML, YAML or JSON); defaults to symreach.toml or .symreach/ in the working directory",
			EnvVars: []string{"SYMREACH_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "output format: text, json, markdown or toon",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "write the report to `FILE` instead of stdout",
		},
		&cli.BoolFlag{Name: "no-cache", Usage: "skip the result cache"},
		&cli.BoolFlag{Name: "verbose", Usage: "log graph construction and resolution details to stderr"},
		&cli.StringFlag{Name: "pprof", Usage: "write CPU and heap profiles to `PREFIX`.cpu.pprof and PREFIX.mem.pprof"},
	}
}

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "symreach %s (commit %s, built %s)\n", version, commit, date)
	}
	return &cli.App{
		Name:     "symreach",
		Usage:    "Find unreachable declarations in Swift-style codebases",
		Version:  version,
		Metadata: make(map[string]any),
		Description: `symreach builds a symbol reference graph from the symbol manifests a
language front end writes (*.symbols.json, *.symbols.yaml) and reports the
declarations no entry point can reach.

Manifests are found by scanning the given paths; .gitignore is honored.`,
		Flags:  globalFlags(),
		Before: beforeProfile,
		After:  afterProfile,
		Commands: []*cli.Command{
			deadcodeCmd(),
			explainCmd(),
			refsCmd(),
			validateCmd(),
			watchCmd(),
			cacheCmd(),
			schemaCmd(),
			initCmd(),
			mcpCmd(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(exitCode(err))
	}
}
