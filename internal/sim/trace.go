package sim

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/teslashibe/go-gaze/pkg/agent"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// TraceWriter writes one CSV row per tick: time, gaze state, eyelid
// weights and the yaw and pitch of every joint.
type TraceWriter struct {
	f  *os.File
	w  *csv.Writer
	nj int
}

// CreateTrace creates the trace file and writes the header for gc's chain.
func CreateTrace(path string, gc *gaze.Controller) (*TraceWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace: %w", err)
	}
	tw := &TraceWriter{f: f, w: csv.NewWriter(f), nj: len(gc.Joints())}

	header := []string{"time", "gaze", "blink_left", "blink_right"}
	for _, j := range gc.Joints() {
		header = append(header, j.Name+"_yaw", j.Name+"_pitch")
	}
	if err := tw.w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	return tw, nil
}

// Write appends the agent's current pose.
func (t *TraceWriter) Write(a *agent.Agent) error {
	row := make([]string, 0, 4+2*t.nj)
	row = append(row, num(a.Time()), a.Gaze().StateName())
	var l, r float64
	if b := a.Blink(); b != nil {
		l, r = b.Weights()
	}
	row = append(row, num(l), num(r))
	for _, p := range a.Gaze().Pose() {
		row = append(row, num(p.Yaw), num(p.Pitch))
	}
	return t.w.Write(row)
}

// Close flushes and closes the file. It is safe to call twice.
func (t *TraceWriter) Close() error {
	if t.f == nil {
		return nil
	}
	t.w.Flush()
	err := t.w.Error()
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	t.f = nil
	return err
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
