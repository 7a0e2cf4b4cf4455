package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/symreach/pkg/manifest"
)

func schemaCmd() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON Schema for symbol manifests",
		Action: func(c *cli.Context) error {
			if path := c.String("output"); path != "" {
				if err := os.WriteFile(path, manifest.Schema(), 0o644); err != nil {
					return fmt.Errorf("failed to write schema: %w", err)
				}
				return nil
			}
			_, err := c.App.Writer.Write(manifest.Schema())
			return err
		},
	}
}
