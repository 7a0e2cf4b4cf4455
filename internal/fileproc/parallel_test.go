package fileproc

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func TestMapFiles_PreservesInputOrder(t *testing.T) {
	files := []string{"c.json", "a.json", "b.json", "d.json"}

	results, err := MapFiles(context.Background(), files, func(_ context.Context, path string) (string, error) {
		return strings.TrimSuffix(path, ".json"), nil
	}, Options{MaxWorkers: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"c", "a", "b", "d"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("results[%d] = %q, want %q", i, results[i], want[i])
		}
	}
}

func TestMapFiles_EmptyFileList(t *testing.T) {
	results, err := MapFiles(context.Background(), nil, func(_ context.Context, path string) (string, error) {
		return path, nil
	}, Options{})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil for empty file list, got %v", results)
	}
}

func TestMapFiles_SkipsFailures(t *testing.T) {
	files := []string{"ok1", "bad", "ok2"}
	var failed []string

	results, err := MapFiles(context.Background(), files, func(_ context.Context, path string) (string, error) {
		if path == "bad" {
			return "", errors.New("broken")
		}
		return path, nil
	}, Options{
		MaxWorkers: 1,
		OnError:    func(path string, _ error) { failed = append(failed, path) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[0] != "ok1" || results[1] != "ok2" {
		t.Errorf("unexpected results: %v", results)
	}
	if len(failed) != 1 || failed[0] != "bad" {
		t.Errorf("expected bad to be reported, got %v", failed)
	}
}

func TestMapFiles_Progress(t *testing.T) {
	files := []string{"a", "b", "c", "d", "e"}
	var calls atomic.Int32

	_, err := MapFiles(context.Background(), files, func(_ context.Context, path string) (int, error) {
		return len(path), nil
	}, Options{OnProgress: func() { calls.Add(1) }})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != int32(len(files)) {
		t.Errorf("expected %d progress calls, got %d", len(files), got)
	}
}

func TestMapFiles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	_, err := MapFiles(ctx, []string{"a", "b"}, func(_ context.Context, path string) (string, error) {
		ran.Add(1)
		return path, nil
	}, Options{MaxWorkers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ran.Load() != 0 {
		t.Errorf("expected no work after cancellation, got %d calls", ran.Load())
	}
}

func TestMapFilesCollect(t *testing.T) {
	files := []string{"z", "bad2", "bad1"}

	results, err := MapFilesCollect(context.Background(), files, func(_ context.Context, path string) (string, error) {
		if strings.HasPrefix(path, "bad") {
			return "", errors.New("nope")
		}
		return path, nil
	}, 0, nil)

	if len(results) != 1 || results[0] != "z" {
		t.Errorf("unexpected results: %v", results)
	}

	var perrs *ProcessingErrors
	if !errors.As(err, &perrs) {
		t.Fatalf("expected *ProcessingErrors, got %T", err)
	}
	sorted := perrs.Sorted()
	if len(sorted) != 2 || sorted[0].Path != "bad1" || sorted[1].Path != "bad2" {
		t.Errorf("unexpected errors: %v", sorted)
	}
	if !strings.Contains(err.Error(), "2 files failed") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestProcessingError_Unwrap(t *testing.T) {
	base := errors.New("root cause")
	errs := &ProcessingErrors{}
	errs.Add("x.json", base)

	if !errors.Is(errs, base) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if errs.Error() != "x.json: root cause" {
		t.Errorf("unexpected message: %s", errs.Error())
	}
}
