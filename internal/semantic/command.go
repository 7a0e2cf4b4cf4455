package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/panbanda/symreach/pkg/symgraph"
)

// DefaultTimeout bounds a single helper invocation.
const DefaultTimeout = 30 * time.Second

// CommandRequest is written to the helper's stdin.
type CommandRequest struct {
	File    string           `json:"file"`
	Queries []symgraph.Query `json:"queries"`
}

// CommandAnswer pairs a query with its resolution.
type CommandAnswer struct {
	Query      symgraph.Query      `json:"query"`
	Resolution symgraph.Resolution `json:"resolution"`
}

// CommandResponse is read from the helper's stdout.
type CommandResponse struct {
	Results []CommandAnswer `json:"results"`
}

// CommandResolver runs an external helper once per batch. The helper reads
// a CommandRequest as JSON on stdin and writes a CommandResponse on stdout.
type CommandResolver struct {
	Command []string
	Timeout time.Duration
	// Env is appended to the current environment.
	Env []string
}

// Available reports ErrUnavailable when the helper executable is missing.
func (r *CommandResolver) Available() error {
	if len(r.Command) == 0 {
		return ErrUnavailable
	}
	if _, err := exec.LookPath(r.Command[0]); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ResolveBatch implements symgraph.SemanticResolver.
func (r *CommandResolver) ResolveBatch(ctx context.Context, file string, queries []symgraph.Query) (map[symgraph.Query]symgraph.Resolution, error) {
	if len(r.Command) == 0 {
		return nil, ErrUnavailable
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(CommandRequest{File: file, Queries: queries})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("semantic helper %s: %w", file, ctx.Err())
		}
		return nil, fmt.Errorf("semantic helper %s: %w: %s", file, err, strings.TrimSpace(stderr.String()))
	}

	var resp CommandResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode semantic helper output: %w", err)
	}

	asked := make(map[symgraph.Query]bool, len(queries))
	for _, q := range queries {
		asked[q] = true
	}
	out := make(map[symgraph.Query]symgraph.Resolution, len(resp.Results))
	for _, a := range resp.Results {
		if asked[a.Query] && a.Resolution.QualifiedName != "" {
			out[a.Query] = a.Resolution
		}
	}
	return out, nil
}

var _ symgraph.SemanticResolver = (*CommandResolver)(nil)
