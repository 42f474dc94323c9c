package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/smazurov/framestamp/internal/events"
)

func TestResult(t *testing.T) {
	tests := []struct {
		name string
		ev   events.RunCompletedEvent
		want string
	}{
		{"ok", events.RunCompletedEvent{}, ResultOK},
		{"cancelled", events.RunCompletedEvent{Cancelled: true}, ResultCancelled},
		{"failed", events.RunCompletedEvent{Error: "mux"}, ResultFailed},
		{"failed wins over cancelled", events.RunCompletedEvent{Error: "mux", Cancelled: true}, ResultFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Result(tt.ev); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCollectorRecord(t *testing.T) {
	c := NewCollector()

	c.Record(events.RunCompletedEvent{Mode: "recognize", Frames: 100, Rejected: 3, DurationSeconds: 2})
	c.Record(events.RunCompletedEvent{Mode: "recognize", Frames: 50, Rejected: 1, Cancelled: true, DurationSeconds: 1})
	c.Record(events.RunCompletedEvent{Mode: "watermark", Frames: 10, Error: "decode", DurationSeconds: 0.5})

	if got := testutil.ToFloat64(c.frames.WithLabelValues("recognize")); got != 150 {
		t.Errorf("frames{recognize} = %v, want 150", got)
	}
	if got := testutil.ToFloat64(c.rejected.WithLabelValues("recognize")); got != 4 {
		t.Errorf("frames_rejected{recognize} = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.runs.WithLabelValues("recognize", ResultOK)); got != 1 {
		t.Errorf("runs{recognize,ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.runs.WithLabelValues("recognize", ResultCancelled)); got != 1 {
		t.Errorf("runs{recognize,cancelled} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.runs.WithLabelValues("watermark", ResultFailed)); got != 1 {
		t.Errorf("runs{watermark,failed} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.duration); got != 2 {
		t.Errorf("run_duration series = %d, want 2", got)
	}

	totals := c.Totals("recognize")
	if totals == nil {
		t.Fatal("expected non-nil totals")
	}
	want := Totals{Runs: 2, Cancelled: 1, Frames: 150, Rejected: 4}
	if *totals != want {
		t.Errorf("Totals = %+v, want %+v", *totals, want)
	}

	// Verify returned copy is independent
	totals.Runs = 99
	if again := c.Totals("recognize"); again.Runs != 2 {
		t.Errorf("cache was modified, Runs = %d, want 2", again.Runs)
	}

	if c.Totals("missing") != nil {
		t.Error("expected nil for mode without runs")
	}
}

func TestCollectorRejectedReconciles(t *testing.T) {
	rejected := func(id string) events.FrameRejectedEvent {
		return events.FrameRejectedEvent{RunID: id, Mode: "recognize"}
	}
	tests := []struct {
		name   string
		replay func(c *Collector)
	}{
		{"live before completion", func(c *Collector) {
			c.RecordStarted(events.RunStartedEvent{RunID: "a", Mode: "recognize"})
			c.RecordRejected(rejected("a"))
			c.RecordRejected(rejected("a"))
			c.RecordRejected(rejected("a"))
			c.Record(events.RunCompletedEvent{RunID: "a", Mode: "recognize", Rejected: 3, Started: true})
		}},
		{"completion before live", func(c *Collector) {
			c.Record(events.RunCompletedEvent{RunID: "a", Mode: "recognize", Rejected: 3, Started: true})
			c.RecordStarted(events.RunStartedEvent{RunID: "a", Mode: "recognize"})
			c.RecordRejected(rejected("a"))
			c.RecordRejected(rejected("a"))
			c.RecordRejected(rejected("a"))
		}},
		{"completion in between", func(c *Collector) {
			c.RecordStarted(events.RunStartedEvent{RunID: "a", Mode: "recognize"})
			c.RecordRejected(rejected("a"))
			c.Record(events.RunCompletedEvent{RunID: "a", Mode: "recognize", Rejected: 3, Started: true})
			c.RecordRejected(rejected("a"))
			c.RecordRejected(rejected("a"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector()
			tt.replay(c)

			if got := testutil.ToFloat64(c.rejected.WithLabelValues("recognize")); got != 3 {
				t.Errorf("Expected 3 rejected frames, got %v", got)
			}
			if got := testutil.ToFloat64(c.active.WithLabelValues("recognize")); got != 0 {
				t.Errorf("Expected no runs in progress, got %v", got)
			}
			if len(c.inFlight) != 0 {
				t.Errorf("Expected run state to be released, got %d entries", len(c.inFlight))
			}
		})
	}
}

func TestCollectorRunsInProgress(t *testing.T) {
	c := NewCollector()

	c.RecordStarted(events.RunStartedEvent{RunID: "a", Mode: "watermark"})
	c.RecordStarted(events.RunStartedEvent{RunID: "b", Mode: "watermark"})
	if got := testutil.ToFloat64(c.active.WithLabelValues("watermark")); got != 2 {
		t.Errorf("Expected 2 runs in progress, got %v", got)
	}

	c.Record(events.RunCompletedEvent{RunID: "a", Mode: "watermark", Started: true})
	if got := testutil.ToFloat64(c.active.WithLabelValues("watermark")); got != 1 {
		t.Errorf("Expected 1 run in progress, got %v", got)
	}

	// A run that failed before starting never counts as in progress.
	c.Record(events.RunCompletedEvent{RunID: "c", Mode: "watermark", Error: "open"})
	if got := testutil.ToFloat64(c.active.WithLabelValues("watermark")); got != 1 {
		t.Errorf("Expected 1 run in progress, got %v", got)
	}
	if _, ok := c.inFlight["c"]; ok {
		t.Error("Expected state of an unstarted run to be released")
	}
}

func TestCollectorProgressAndCaptures(t *testing.T) {
	c := NewCollector()

	c.RecordProgress(events.StreamProgressEvent{RunID: "a", Mode: "recognize", Frames: 120})
	c.RecordProgress(events.StreamProgressEvent{RunID: "a", Mode: "recognize", Frames: 240})
	if got := testutil.ToFloat64(c.progress.WithLabelValues("recognize")); got != 240 {
		t.Errorf("Expected progress 240, got %v", got)
	}

	c.RecordCapture(events.CaptureReadyEvent{Path: "/captures/a.mp4"})
	c.RecordCapture(events.CaptureReadyEvent{Path: "/captures/b.mp4"})
	if got := testutil.ToFloat64(c.captures); got != 2 {
		t.Errorf("Expected 2 captures, got %v", got)
	}
}

func TestCollectorSubscribe(t *testing.T) {
	c := NewCollector()
	bus := events.New()
	recorded := make(chan events.RunCompletedEvent, 1)
	unsub := c.Subscribe(bus, func(e events.RunCompletedEvent) {
		recorded <- e
	})
	defer unsub()

	bus.Publish(events.RunCompletedEvent{RunID: "run-1", Mode: "watermark", Frames: 7})

	select {
	case e := <-recorded:
		if e.RunID != "run-1" {
			t.Errorf("Expected run-1, got %s", e.RunID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for recorded run")
	}
	totals := c.Totals("watermark")
	if totals == nil {
		t.Fatal("expected totals after callback")
	}
	if totals.Frames != 7 {
		t.Errorf("Frames = %d, want 7", totals.Frames)
	}

	bus.Publish(events.CaptureReadyEvent{Path: "/captures/a.mp4"})
	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(c.captures) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for capture to be counted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.Record(events.RunCompletedEvent{Mode: "watermark", Frames: 42, DurationSeconds: 1.5})

	path := filepath.Join(t.TempDir(), "framestamp.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		`framestamp_frames_total{mode="watermark"} 42`,
		`framestamp_runs_total{mode="watermark",result="ok"} 1`,
		`framestamp_run_duration_seconds_count{mode="watermark"} 1`,
		"# TYPE framestamp_last_run_timestamp_seconds gauge",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected textfile to contain %q, got:\n%s", want, text)
		}
	}
}

func TestWriteTextfileMissingDir(t *testing.T) {
	c := NewCollector()
	if err := c.WriteTextfile(filepath.Join(t.TempDir(), "missing", "framestamp.prom")); err == nil {
		t.Fatal("Expected error for missing directory")
	}
}
