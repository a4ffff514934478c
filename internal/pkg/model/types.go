package model

// GcodeState is the print state reported by the printer in `gcode_state`.
type GcodeState string

func (gs GcodeState) String() string {
	return string(gs)
}

const (
	GcodeStateIdle    GcodeState = "IDLE"
	GcodeStatePrepare GcodeState = "PREPARE"
	GcodeStateSlicing GcodeState = "SLICING"
	GcodeStateRunning GcodeState = "RUNNING"
	GcodeStatePause   GcodeState = "PAUSE"
	GcodeStateFinish  GcodeState = "FINISH"
	GcodeStateFailed  GcodeState = "FAILED"
)

// JobState is the lifecycle state of a tracked print job.
type JobState string

func (js JobState) String() string {
	return string(js)
}

const (
	JobStateRunning JobState = "running"
	JobStatePaused  JobState = "paused"
)

var JobStates = []JobState{
	JobStateRunning,
	JobStatePaused,
}

func (js JobState) Valid() bool {
	for _, s := range JobStates {
		if s == js {
			return true
		}
	}
	return false
}
