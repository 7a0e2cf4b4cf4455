package mcpserver

import (
	"encoding/json"
	"strings"
)

const (
	registrySchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	registryName   = "io.github.panbanda/symreach"
	sourceURL      = "https://github.com/panbanda/symreach"
	imageRepo      = "ghcr.io/panbanda/symreach"
)

// ServerManifest is the MCP registry entry (server.json). It is unrelated to
// symbol manifests.
type ServerManifest struct {
	Schema      string          `json:"$schema"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Version     string          `json:"version"`
	Repository  *SourceRepo     `json:"repository,omitempty"`
	Packages    []ServerPackage `json:"packages,omitempty"`
}

type SourceRepo struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// ServerPackage is one way to launch the server, here a container image
// whose entrypoint receives the "mcp" subcommand.
type ServerPackage struct {
	RegistryType     string       `json:"registryType"`
	Identifier       string       `json:"identifier"`
	PackageArguments []PackageArg `json:"packageArguments,omitempty"`
	Transport        struct {
		Type string `json:"type"`
	} `json:"transport"`
}

type PackageArg struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// GenerateServerManifest renders server.json for a release. A leading "v" in
// version is dropped; an empty version becomes 0.0.0.
func GenerateServerManifest(version string) ([]byte, error) {
	version = strings.TrimPrefix(version, "v")
	if version == "" || version == "dev" {
		version = "0.0.0"
	}

	pkg := ServerPackage{
		RegistryType:     "oci",
		Identifier:       imageRepo + ":" + version,
		PackageArguments: []PackageArg{{Type: "positional", Value: "mcp"}},
	}
	pkg.Transport.Type = "stdio"

	return json.MarshalIndent(ServerManifest{
		Schema:      registrySchema,
		Name:        registryName,
		Description: "Reachability-based dead code detection over symbol reference graphs",
		Version:     version,
		Repository:  &SourceRepo{URL: sourceURL, Source: "github"},
		Packages:    []ServerPackage{pkg},
	}, "", "  ")
}
