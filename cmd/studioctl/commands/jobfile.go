package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"studio/internal/jobs"
)

// jobFile is the on-disk description of one job. Durations use Go syntax
// ("90s", "5m").
type jobFile struct {
	Provider       string          `json:"provider"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Timeout        string          `json:"timeout,omitempty"`
	PollInterval   string          `json:"poll_interval,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

func readJobFile(path string) (jobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return jobFile{}, fmt.Errorf("read job file: %w", err)
	}
	var f jobFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return jobFile{}, fmt.Errorf("parse job file %s: %w", path, err)
	}
	if strings.TrimSpace(f.Provider) == "" {
		return jobFile{}, fmt.Errorf("job file %s: provider is required", path)
	}
	if len(f.Payload) == 0 {
		return jobFile{}, fmt.Errorf("job file %s: payload is required", path)
	}
	return f, nil
}

// resolve looks up the adapter for the file's provider and decodes the
// payload into that adapter's request type.
func (f jobFile) resolve(registry *jobs.Registry) (jobs.Job, error) {
	adapter, err := registry.Lookup(strings.TrimSpace(f.Provider))
	if err != nil {
		return jobs.Job{}, err
	}
	decoder, ok := adapter.(jobs.PayloadDecoder)
	if !ok {
		return jobs.Job{}, fmt.Errorf("provider %q does not accept job files", f.Provider)
	}
	payload, err := decoder.DecodePayload(f.Payload)
	if err != nil {
		return jobs.Job{}, err
	}

	req := jobs.Request{
		Provider:       adapter.Name(),
		IdempotencyKey: f.IdempotencyKey,
		Payload:        payload,
	}
	if req.Timeout, err = parseDuration("timeout", f.Timeout); err != nil {
		return jobs.Job{}, err
	}
	if req.PollInterval, err = parseDuration("poll_interval", f.PollInterval); err != nil {
		return jobs.Job{}, err
	}
	return jobs.Job{Adapter: adapter, Request: req}, nil
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", field)
	}
	return d, nil
}
