// Package telemetrytest records telemetry reports so tests can assert on them.
package telemetrytest

import (
	"sync"
)

type Report struct {
	Kind   string
	Id     string
	Params []any
	Count  int64
}

// Recorder implements telemetry.API by keeping every report in memory.
type Recorder struct {
	mu      sync.Mutex
	Reports []Report
}

func (r *Recorder) add(report Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reports = append(r.Reports, report)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(Report{Kind: "broken", Id: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(Report{Kind: "warning", Id: id, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(Report{Kind: "debug", Id: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(Report{Kind: "count", Id: id, Count: count})
}

// Find returns the reports of a kind, in order.
func (r *Recorder) Find(kind string) []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Report
	for _, report := range r.Reports {
		if report.Kind == kind {
			out = append(out, report)
		}
	}
	return out
}
