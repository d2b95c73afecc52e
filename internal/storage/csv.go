package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/spikesim/internal/device"
	"github.com/san-kum/spikesim/internal/event"
	"github.com/san-kum/spikesim/internal/experiment"
	"github.com/san-kum/spikesim/internal/simtime"
)

var spikeHeader = []string{"sender", "step", "offset", "time", "multiplicity"}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteSpikes writes one row per spike.
func WriteSpikes(w io.Writer, spikes []device.SpikeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(spikeHeader); err != nil {
		return err
	}
	for _, s := range spikes {
		row := []string{
			strconv.Itoa(s.Sender),
			strconv.FormatInt(s.Stamp.Step, 10),
			formatFloat(s.Stamp.Offset),
			formatFloat(s.Time),
			strconv.Itoa(s.Multiplicity),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadSpikes(r io.Reader) ([]device.SpikeRecord, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}
	out := make([]device.SpikeRecord, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(spikeHeader) {
			return nil, fmt.Errorf("spikes row %d: %d fields", i+1, len(rec))
		}
		var s device.SpikeRecord
		var err error
		if s.Sender, err = strconv.Atoi(rec[0]); err != nil {
			return nil, fmt.Errorf("spikes row %d: %w", i+1, err)
		}
		if s.Stamp.Step, err = strconv.ParseInt(rec[1], 10, 64); err != nil {
			return nil, fmt.Errorf("spikes row %d: %w", i+1, err)
		}
		if s.Stamp.Offset, err = strconv.ParseFloat(rec[2], 64); err != nil {
			return nil, fmt.Errorf("spikes row %d: %w", i+1, err)
		}
		if s.Time, err = strconv.ParseFloat(rec[3], 64); err != nil {
			return nil, fmt.Errorf("spikes row %d: %w", i+1, err)
		}
		if s.Multiplicity, err = strconv.Atoi(rec[4]); err != nil {
			return nil, fmt.Errorf("spikes row %d: %w", i+1, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteTrace writes one row per sample with the sample time in ms.
func WriteTrace(w io.Writer, tr experiment.Trace, res simtime.Resolution) error {
	cw := csv.NewWriter(w)
	header := append([]string{"sender", "step", "time"}, tr.Names...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range tr.Samples {
		row := []string{
			strconv.Itoa(s.Sender),
			strconv.FormatInt(s.Step, 10),
			formatFloat(res.Ms(s.Step)),
		}
		for _, v := range s.Values {
			row = append(row, formatFloat(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadTrace(r io.Reader) (experiment.Trace, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return experiment.Trace{}, err
	}
	if len(records) == 0 {
		return experiment.Trace{}, nil
	}
	tr := experiment.Trace{Names: records[0][3:]}
	for i, rec := range records[1:] {
		if len(rec) != len(records[0]) {
			return experiment.Trace{}, fmt.Errorf("trace row %d: %d fields", i+1, len(rec))
		}
		var s event.Sample
		if s.Sender, err = strconv.Atoi(rec[0]); err != nil {
			return experiment.Trace{}, fmt.Errorf("trace row %d: %w", i+1, err)
		}
		if s.Step, err = strconv.ParseInt(rec[1], 10, 64); err != nil {
			return experiment.Trace{}, fmt.Errorf("trace row %d: %w", i+1, err)
		}
		s.Values = make([]float64, len(tr.Names))
		for j := range s.Values {
			if s.Values[j], err = strconv.ParseFloat(rec[3+j], 64); err != nil {
				return experiment.Trace{}, fmt.Errorf("trace row %d: %w", i+1, err)
			}
		}
		tr.Samples = append(tr.Samples, s)
	}
	return tr, nil
}
