// Package progress draws stderr progress bars for manifest loading.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar. A nil or quiet Tracker is a no-op.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	out   io.Writer
}

// Option configures a Tracker.
type Option func(*options)

type options struct {
	out   io.Writer
	quiet bool
}

// WithWriter sends the bar to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// Quiet disables drawing. Used for machine-readable output and the MCP server.
func Quiet(q bool) Option {
	return func(o *options) { o.quiet = q }
}

func buildOptions(opts []Option) options {
	o := options{out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewSpinner creates a spinner for work with an unknown total, such as a
// directory scan.
func NewSpinner(label string, opts ...Option) *Tracker {
	o := buildOptions(opts)
	if o.quiet {
		return &Tracker{label: label, out: o.out}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(o.out),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, label: label, out: o.out}
}

// NewTracker creates a bar counting up to total manifests.
func NewTracker(label string, total int, opts ...Option) *Tracker {
	o := buildOptions(opts)
	if o.quiet || total <= 0 {
		return &Tracker{label: label, out: o.out}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(o.out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, out: o.out}
}

// Tick advances the bar by one. Safe for concurrent use.
func (t *Tracker) Tick() {
	if t == nil || t.bar == nil {
		return
	}
	_ = t.bar.Add(1)
}

// Func returns Tick as a callback, or nil when nothing is drawn so callers
// can skip the call entirely.
func (t *Tracker) Func() func() {
	if t == nil || t.bar == nil {
		return nil
	}
	return t.Tick
}

// FinishSuccess clears the bar without printing anything.
func (t *Tracker) FinishSuccess() {
	t.clear()
}

// FinishError clears the bar and reports err on the tracker's writer.
func (t *Tracker) FinishError(err error) {
	if t == nil {
		return
	}
	t.clear()
	if t.bar != nil {
		fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
	}
}

func (t *Tracker) clear() {
	if t == nil || t.bar == nil {
		return
	}
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}
