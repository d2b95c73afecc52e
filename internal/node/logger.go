package node

import (
	"fmt"

	"github.com/san-kum/spikesim/internal/event"
)

// DataLogger samples a node's recordables for every subscribed request.
type DataLogger struct {
	reqs []*event.LoggingRequest
}

// Connect validates a request against the recordables of rec and
// subscribes it.
func (l *DataLogger) Connect(req *event.LoggingRequest, rec Recordable) error {
	if err := CheckRequest(req, rec); err != nil {
		return err
	}
	l.reqs = append(l.reqs, req)
	return nil
}

// CheckRequest reports whether rec can serve req.
func CheckRequest(req *event.LoggingRequest, rec Recordable) error {
	if req == nil || req.Sink == nil {
		return fmt.Errorf("%w: logging request without sink", ErrIncompatibleEvent)
	}
	if req.Interval < 1 {
		return fmt.Errorf("%w: got %d steps", ErrLoggingInterval, req.Interval)
	}
	known := make(map[string]bool)
	for _, n := range rec.Recordables() {
		known[n] = true
	}
	for _, n := range req.Names {
		if !known[n] {
			return fmt.Errorf("%w: %q", ErrUnknownRecordable, n)
		}
	}
	return nil
}

func (l *DataLogger) Subscribers() int { return len(l.reqs) }

// Record samples rec at the end of update step t.
func (l *DataLogger) Record(sender int, t int64, rec Recordable) {
	for _, req := range l.reqs {
		if (t+1)%req.Interval != 0 {
			continue
		}
		vals := make([]float64, len(req.Names))
		for i, n := range req.Names {
			vals[i], _ = rec.Record(n)
		}
		req.Sink.Collect(event.Sample{Sender: sender, Step: t + 1, Values: vals})
	}
}
