package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuietTrackerIsNoop(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker("Loading manifests", 3, WithWriter(&buf), Quiet(true))
	assert.Nil(t, tr.Func())
	tr.Tick()
	tr.FinishError(errors.New("boom"))
	assert.Empty(t, buf.String())
}

func TestNilTracker(t *testing.T) {
	var tr *Tracker
	assert.NotPanics(t, func() {
		tr.Tick()
		tr.FinishSuccess()
		tr.FinishError(errors.New("boom"))
		assert.Nil(t, tr.Func())
	})
}

func TestZeroTotalIsNoop(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker("Loading manifests", 0, WithWriter(&buf))
	assert.Nil(t, tr.Func())
}

func TestTrackerConcurrentTicks(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker("Loading manifests", 50, WithWriter(&buf))
	tick := tr.Func()
	assert.NotNil(t, tick)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tick()
		}()
	}
	wg.Wait()
	tr.FinishSuccess()
}

func TestFinishErrorReports(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker("Loading manifests", 2, WithWriter(&buf))
	tr.Tick()
	tr.FinishError(errors.New("bad manifest"))
	assert.Contains(t, buf.String(), "Loading manifests error: bad manifest")
}

func TestSpinner(t *testing.T) {
	var buf bytes.Buffer
	sp := NewSpinner("Scanning", WithWriter(&buf))
	sp.Tick()
	sp.FinishSuccess()

	quiet := NewSpinner("Scanning", Quiet(true))
	assert.Nil(t, quiet.Func())
}
