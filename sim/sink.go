package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/mission"
	"github.com/openaerial/visnav/navigation"
)

// StatusSink receives the outcome of every tick.
type StatusSink interface {
	Publish(st mission.Status) error
}

// LogSink logs every tick at debug level and state changes at info level.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink returns a sink writing to logger.
func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish implements StatusSink.
func (s *LogSink) Publish(st mission.Status) error {
	kv := []interface{}{
		"tick", st.Tick,
		"state", st.State,
		"command", st.Command,
		"pose", st.Pose.String(),
		"progress", st.Progress.String(),
		"landmark_confidence", st.Detection.Confidence,
	}
	if st.Message != "" {
		kv = append(kv, "message", st.Message)
	}
	if st.Transitioned() {
		s.logger.Infow("tick", kv...)
		return nil
	}
	s.logger.Debugw("tick", kv...)
	return nil
}

// JSONLinesSink writes one JSON object per tick.
type JSONLinesSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesSink returns a sink writing to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{enc: json.NewEncoder(w)}
}

// Publish implements StatusSink.
func (s *JSONLinesSink) Publish(st mission.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(st)
}

// Recorder keeps every published status in memory.
type Recorder struct {
	mu       sync.Mutex
	statuses []mission.Status
}

// Publish implements StatusSink.
func (r *Recorder) Publish(st mission.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, st)
	return nil
}

// Statuses returns a copy of everything recorded so far.
func (r *Recorder) Statuses() []mission.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mission.Status(nil), r.statuses...)
}

// Last returns the most recent status.
func (r *Recorder) Last() (mission.Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return mission.Status{}, false
	}
	return r.statuses[len(r.statuses)-1], true
}

// MultiSink publishes to every sink in order and combines their errors.
type MultiSink []StatusSink

// Publish implements StatusSink.
func (m MultiSink) Publish(st mission.Status) error {
	var errs error
	for _, s := range m {
		errs = multierr.Append(errs, s.Publish(st))
	}
	return errs
}

// Summary renders a table of the state changes in a run followed by the command counts.
func Summary(statuses []mission.Status) string {
	t := table.NewWriter()
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"Tick", "From", "To", "Pose", "Waypoint", "Message"})
	for _, st := range lo.Filter(statuses, func(st mission.Status, _ int) bool { return st.Transitioned() }) {
		t.AppendRow(table.Row{st.Tick, st.PreviousState, st.State, st.Pose.String(), st.Progress.String(), st.Message})
	}
	if len(statuses) == 0 {
		t.AppendFooter(table.Row{"0 ticks"})
		return t.Render()
	}
	last := statuses[len(statuses)-1]
	counts := lo.CountValues(lo.Map(statuses, func(st mission.Status, _ int) navigation.Command { return st.Command }))
	var parts []string
	for _, cmd := range navigation.AllCommands() {
		if n := counts[cmd]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", cmd, n))
		}
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d ticks", len(statuses)),
		"final",
		last.State,
		last.Pose.String(),
		last.Progress.String(),
		strings.Join(parts, ", "),
	})
	return t.Render()
}
