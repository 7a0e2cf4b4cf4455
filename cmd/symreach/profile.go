package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/urfave/cli/v2"
)

const profilerKey = "profiler"

// profiler writes <prefix>.cpu.pprof for the duration of a command and a
// heap snapshot to <prefix>.mem.pprof when it stops.
type profiler struct {
	prefix string
	cpu    *os.File
}

func startProfiler(prefix string) (*profiler, error) {
	cpu, err := os.Create(prefix + ".cpu.pprof")
	if err != nil {
		return nil, fmt.Errorf("create cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpu); err != nil {
		_ = cpu.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}
	return &profiler{prefix: prefix, cpu: cpu}, nil
}

func (p *profiler) stop(w io.Writer) error {
	pprof.StopCPUProfile()
	if err := p.cpu.Close(); err != nil {
		return fmt.Errorf("close cpu profile: %w", err)
	}

	mem, err := os.Create(p.prefix + ".mem.pprof")
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}
	defer mem.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(mem); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	fmt.Fprintf(w, "Profiles written to %s.cpu.pprof and %s.mem.pprof\n", p.prefix, p.prefix)
	return nil
}

func beforeProfile(c *cli.Context) error {
	prefix := c.String("pprof")
	if prefix == "" {
		return nil
	}
	p, err := startProfiler(prefix)
	if err != nil {
		return err
	}
	c.App.Metadata[profilerKey] = p
	return nil
}

func afterProfile(c *cli.Context) error {
	p, ok := c.App.Metadata[profilerKey].(*profiler)
	if !ok {
		return nil
	}
	delete(c.App.Metadata, profilerKey)
	return p.stop(c.App.ErrWriter)
}
