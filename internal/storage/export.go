package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/spikesim/internal/device"
	"github.com/san-kum/spikesim/internal/simtime"
)

type ExportSpike struct {
	Sender       int     `json:"sender"`
	Time         float64 `json:"time"`
	Step         int64   `json:"step"`
	Offset       float64 `json:"offset"`
	Multiplicity int     `json:"multiplicity"`
}

type ExportSample struct {
	Sender int       `json:"sender"`
	Time   float64   `json:"time"`
	Values []float64 `json:"values"`
}

type ExportData struct {
	RunMetadata
	Spikes  []ExportSpike  `json:"spikes"`
	Samples []ExportSample `json:"samples,omitempty"`
}

// ExportJSON writes a run as a single JSON document.
func ExportJSON(w io.Writer, run *Run) error {
	res := simtime.Resolution{H: run.Meta.Resolution}
	data := ExportData{
		RunMetadata: run.Meta,
		Spikes:      exportSpikes(run.Spikes),
		Samples:     make([]ExportSample, len(run.Trace.Samples)),
	}
	for i, s := range run.Trace.Samples {
		data.Samples[i] = ExportSample{Sender: s.Sender, Time: res.Ms(s.Step), Values: s.Values}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func exportSpikes(spikes []device.SpikeRecord) []ExportSpike {
	out := make([]ExportSpike, len(spikes))
	for i, s := range spikes {
		out[i] = ExportSpike{
			Sender:       s.Sender,
			Time:         s.Time,
			Step:         s.Stamp.Step,
			Offset:       s.Stamp.Offset,
			Multiplicity: s.Multiplicity,
		}
	}
	return out
}
