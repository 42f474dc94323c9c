// Package metrics provides Prometheus metrics for framestamp runs.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/framestamp/internal/events"
)

// Run results used for the result label.
const (
	ResultOK        = "ok"
	ResultFailed    = "failed"
	ResultCancelled = "cancelled"
)

// Collector records per-run counters on its own registry.
type Collector struct {
	registry *prometheus.Registry

	frames   *prometheus.CounterVec
	rejected *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  *prometheus.GaugeVec
	active   *prometheus.GaugeVec
	progress *prometheus.GaugeVec
	captures prometheus.Counter

	mu sync.RWMutex
	// Local cache for summary access.
	totals map[string]*Totals
	// inFlight tracks runs whose events are still arriving.
	inFlight map[string]*runState
}

// runState reconciles the live per-frame events of one run with its
// completion event. Event types are delivered independently, so either
// side may arrive first.
type runState struct {
	started  bool
	done     bool
	rejected int // rejections counted before completion
	late     int // rejections accounted at completion but not yet delivered
}

// Totals holds the accumulated values for one mode.
type Totals struct {
	Runs      int
	Failed    int
	Cancelled int
	Frames    int
	Rejected  int
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "framestamp",
			Name:      "frames_total",
			Help:      "Decoded video frames across carried streams",
		}, []string{"mode"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "framestamp",
			Name:      "frames_rejected_total",
			Help:      "Frames dropped because their stamp could not be read",
		}, []string{"mode"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "framestamp",
			Name:      "runs_total",
			Help:      "Completed runs by result",
		}, []string{"mode", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "framestamp",
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of runs",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"mode"}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "framestamp",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run",
		}, []string{"mode"}),
		active: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "framestamp",
			Name:      "runs_in_progress",
			Help:      "Runs that have started and not yet completed",
		}, []string{"mode"}),
		progress: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "framestamp",
			Name:      "run_progress_frames",
			Help:      "Frames decoded by the best stream at the last progress report",
		}, []string{"mode"}),
		captures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "framestamp",
			Name:      "captures_ready_total",
			Help:      "Captures reported ready by the directory watcher",
		}),
		totals:   make(map[string]*Totals),
		inFlight: make(map[string]*runState),
	}
}

// Registry returns the registry the collector's metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record adds one completed run. Rejections not yet counted live are
// added here, so frames_rejected_total matches the event once it returns.
func (c *Collector) Record(e events.RunCompletedEvent) {
	result := Result(e)

	c.frames.WithLabelValues(e.Mode).Add(float64(e.Frames))
	c.runs.WithLabelValues(e.Mode, result).Inc()
	c.duration.WithLabelValues(e.Mode).Observe(e.DurationSeconds)
	c.lastRun.WithLabelValues(e.Mode).SetToCurrentTime()

	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.run(e.RunID)
	if st.started {
		c.active.WithLabelValues(e.Mode).Dec()
	}
	st.done = true
	if missing := e.Rejected - st.rejected; missing > 0 {
		c.rejected.WithLabelValues(e.Mode).Add(float64(missing))
		st.late = missing
	}
	// A run that never started publishes no live events.
	if !e.Started {
		st.started = true
	}
	c.settle(e.RunID, st)

	t, ok := c.totals[e.Mode]
	if !ok {
		t = &Totals{}
		c.totals[e.Mode] = t
	}
	t.Runs++
	t.Frames += e.Frames
	t.Rejected += e.Rejected
	switch result {
	case ResultFailed:
		t.Failed++
	case ResultCancelled:
		t.Cancelled++
	}
}

// RecordStarted marks a run as in progress.
func (c *Collector) RecordStarted(e events.RunStartedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.run(e.RunID)
	st.started = true
	if !st.done {
		c.active.WithLabelValues(e.Mode).Inc()
	}
	c.settle(e.RunID, st)
}

// RecordRejected counts one rejected frame as it happens.
func (c *Collector) RecordRejected(e events.FrameRejectedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.run(e.RunID)
	switch {
	case !st.done:
		st.rejected++
		c.rejected.WithLabelValues(e.Mode).Inc()
	case st.late > 0:
		st.late--
	}
	c.settle(e.RunID, st)
}

// RecordProgress exports the latest progress report of a run.
func (c *Collector) RecordProgress(e events.StreamProgressEvent) {
	c.progress.WithLabelValues(e.Mode).Set(float64(e.Frames))
}

// RecordCapture counts a capture handed over by the directory watcher.
func (c *Collector) RecordCapture(events.CaptureReadyEvent) {
	c.captures.Inc()
}

// run returns the state of a run, creating it if needed. Callers hold mu.
func (c *Collector) run(id string) *runState {
	st, ok := c.inFlight[id]
	if !ok {
		st = &runState{}
		c.inFlight[id] = st
	}
	return st
}

// settle forgets a run once every one of its events has been delivered.
func (c *Collector) settle(id string, st *runState) {
	if st.started && st.done && st.late == 0 {
		delete(c.inFlight, id)
	}
}

// Subscribe records the run events published on bus. Each of after is called
// with a RunCompletedEvent once it has been recorded. Returns a function that
// removes every subscription.
func (c *Collector) Subscribe(bus *events.Bus, after ...func(events.RunCompletedEvent)) func() {
	unsubs := []func(){
		bus.Subscribe(c.RecordStarted),
		bus.Subscribe(c.RecordRejected),
		bus.Subscribe(c.RecordProgress),
		bus.Subscribe(c.RecordCapture),
		bus.Subscribe(func(e events.RunCompletedEvent) {
			c.Record(e)
			for _, fn := range after {
				fn(e)
			}
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// Totals returns the accumulated values for a mode, or nil if no run was recorded.
func (c *Collector) Totals(mode string) *Totals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.totals[mode]; ok {
		dup := *t
		return &dup
	}
	return nil
}

// WriteTextfile writes all metrics in the node-exporter textfile format.
// The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Result maps a completed run to its result label.
func Result(e events.RunCompletedEvent) string {
	switch {
	case e.Failed():
		return ResultFailed
	case e.Cancelled:
		return ResultCancelled
	default:
		return ResultOK
	}
}
