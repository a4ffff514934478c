package model

import (
	"encoding/json"
	"time"
)

// Cache is the persisted per-device snapshot together with the times it was
// last touched.
type Cache struct {
	Print          *StatusReport `json:"print,omitempty"`
	LastUpdate     *time.Time    `json:"last_update,omitempty"`
	LastFullUpdate *time.Time    `json:"last_full_update,omitempty"`
}

// Seconds is a duration that is stored as a number of seconds.
type Seconds time.Duration

func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(s).Seconds())
}

func (s *Seconds) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	*s = Seconds(time.Duration(secs * float64(time.Second)))
	return nil
}

func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// PrintJob exists only while a print is believed to be active.
type PrintJob struct {
	Duration      Seconds    `json:"duration"`
	Eta           *time.Time `json:"eta"`
	State         JobState   `json:"state"`
	SlackChannel  *string    `json:"slack_channel"`
	SlackThreadTs *string    `json:"slack_thread_ts"`
	StartMessage  *string    `json:"start_message"`
}

// PrinterState is the persisted job-tracking state of one printer.
type PrinterState struct {
	CurrentJob *PrintJob `json:"current_job"`
}
