package model

import "reflect"

// StatusReport is the fully reconstructed printer state. Every field is
// optional: nil means the printer has not told us yet, not zero.
type StatusReport struct {
	BedTemper          *int     `json:"bed_temper,omitempty"`
	BedTargetTemper    *int     `json:"bed_target_temper,omitempty"`
	NozzleTemper       *int     `json:"nozzle_temper,omitempty"`
	NozzleTargetTemper *int     `json:"nozzle_target_temper,omitempty"`
	ChamberTemper      *float64 `json:"chamber_temper,omitempty"`

	CoolingFanSpeed   *string `json:"cooling_fan_speed,omitempty"`
	BigFan1Speed      *string `json:"big_fan1_speed,omitempty"`
	BigFan2Speed      *string `json:"big_fan2_speed,omitempty"`
	HeatbreakFanSpeed *string `json:"heatbreak_fan_speed,omitempty"`

	GcodeState      *GcodeState `json:"gcode_state,omitempty"`
	GcodeFile       *string     `json:"gcode_file,omitempty"`
	SubtaskName     *string     `json:"subtask_name,omitempty"`
	McPrintStage    *string     `json:"mc_print_stage,omitempty"`
	McPercent       *int        `json:"mc_percent,omitempty"`
	McRemainingTime *int        `json:"mc_remaining_time,omitempty"`
	LayerNum        *int        `json:"layer_num,omitempty"`
	TotalLayerNum   *int        `json:"total_layer_num,omitempty"`
	PrintError      *int        `json:"print_error,omitempty"`
	WifiSignal      *string     `json:"wifi_signal,omitempty"`

	Ams          *AmsSummary   `json:"ams,omitempty"`
	LightsReport []LightReport `json:"lights_report,omitempty"`
	Upload       *UploadStatus `json:"upload,omitempty"`
}

// AmsSummary is the filament bay summary.
type AmsSummary struct {
	Ams           []AmsUnit `json:"ams,omitempty"`
	AmsExistBits  *string   `json:"ams_exist_bits,omitempty"`
	TrayExistBits *string   `json:"tray_exist_bits,omitempty"`
	TrayNow       *string   `json:"tray_now,omitempty"`
	TrayTar       *string   `json:"tray_tar,omitempty"`
	Version       *int      `json:"version,omitempty"`
}

type AmsUnit struct {
	ID       *string   `json:"id,omitempty"`
	Humidity *string   `json:"humidity,omitempty"`
	Temp     *string   `json:"temp,omitempty"`
	Tray     []AmsTray `json:"tray,omitempty"`
}

type AmsTray struct {
	ID        *string `json:"id,omitempty"`
	TrayType  *string `json:"tray_type,omitempty"`
	TrayColor *string `json:"tray_color,omitempty"`
	Remain    *int    `json:"remain,omitempty"`
}

// LightReport is the state of one light channel. Node identifies the channel.
type LightReport struct {
	Node string `json:"node"`
	Mode string `json:"mode"`
}

type UploadStatus struct {
	Status   *string `json:"status,omitempty"`
	Progress *int    `json:"progress,omitempty"`
	Message  *string `json:"message,omitempty"`
}

// Equal reports whether every field of r and other is equal.
func (r *StatusReport) Equal(other *StatusReport) bool {
	if r == nil || other == nil {
		return r == other
	}
	return reflect.DeepEqual(r, other)
}

// State returns the gcode state, or the empty state when unknown.
func (r *StatusReport) State() GcodeState {
	if r == nil || r.GcodeState == nil {
		return ""
	}
	return *r.GcodeState
}

// ReportWrapper is the wire envelope: a single top-level "print" key.
type ReportWrapper struct {
	Print *StatusReport `json:"print,omitempty"`
}
