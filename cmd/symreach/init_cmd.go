package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/symreach/pkg/config"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Write a symreach.toml with the default settings",
		ArgsUsage: "[file]",
		Description: `Creates symreach.toml in the current directory, or the given file.

Examples:
  symreach init                          # Creates symreach.toml
  symreach init .symreach/symreach.toml  # Creates config in .symreach
  symreach init --force                  # Overwrite existing config file`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite existing config file",
			},
		},
		Action: runInitCmd,
	}
}

func runInitCmd(c *cli.Context) error {
	path := "symreach.toml"
	if c.Args().Present() {
		path = c.Args().First()
	}

	content, err := defaultConfigTOML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if c.Bool("force") {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	color.Green("Created %s", path)
	fmt.Fprintln(c.App.Writer, "Edit this file to set entry points and ignore rules.")
	return nil
}

var configHeader = []string{
	"symreach configuration",
	"",
	"[deadcode]  mode: library, executable or hybrid; min_confidence: low, medium or high",
	"[semantic]  mode: off, hybrid, full or auto; index or command selects the resolver",
	"[input]     manifest file name globs",
	"[exclude]   directories and name globs skipped while scanning",
	"[cache]     result cache location and TTL in hours",
	"[output]    format: text, json, markdown or toon",
}

func defaultConfigTOML() ([]byte, error) {
	body, err := toml.Marshal(config.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	var buf bytes.Buffer
	for _, line := range configHeader {
		buf.WriteString(strings.TrimRight("# "+line, " ") + "\n")
	}
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes(), nil
}
