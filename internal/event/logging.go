package event

// Sample is one row of recorded quantities.
type Sample struct {
	Sender int
	Step   int64
	Values []float64
}

// Sink receives samples from the nodes it subscribed to. Collect may be
// called from several threads.
type Sink interface {
	Collect(Sample)
}

// LoggingRequest subscribes a sink to named recordables of a node,
// sampled every Interval steps.
type LoggingRequest struct {
	Names    []string
	Interval int64
	Sink     Sink
}
