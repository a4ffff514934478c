package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/souzu/internal/pkg/model"
)

func ptr[T any](v T) *T {
	return &v
}

func mustParse(t *testing.T, payload string) Patch {
	t.Helper()
	patch, err := ParsePatch([]byte(payload))
	require.NoError(t, err)
	return patch
}

func TestParsePatch(t *testing.T) {
	tests := map[string]struct {
		payload string
		want    Patch
		wantErr bool
	}{
		"print object": {
			payload: `{"print": {"bed_temper": 60}}`,
			want:    Patch{"bed_temper": float64(60)},
		},
		"no print key": {
			payload: `{"info": {"command": "get_version"}}`,
			want:    Patch{},
		},
		"null print": {
			payload: `{"print": null}`,
			want:    Patch{},
		},
		"invalid json": {
			payload: `{"print": {`,
			wantErr: true,
		},
		"print is not an object": {
			payload: `{"print": [1, 2]}`,
			wantErr: true,
		},
		"invalid utf-8": {
			payload: "{\"print\": {\"subtask_name\": \"cube\xff\xfe\"}}",
			wantErr: true,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParsePatch([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPatch_IsFull(t *testing.T) {
	assert.True(t, Patch{"msg": float64(0)}.IsFull())
	assert.False(t, Patch{"msg": float64(1)}.IsFull())
	assert.False(t, Patch{}.IsFull())
}

func TestMerge_MissingFieldsArePreserved(t *testing.T) {
	base := &model.StatusReport{
		BedTemper:       ptr(60),
		NozzleTemper:    ptr(210),
		GcodeState:      ptr(model.GcodeStateRunning),
		McRemainingTime: ptr(42),
		Upload:          &model.UploadStatus{Status: ptr("idle"), Progress: ptr(0)},
	}

	got, err := Merge(base, mustParse(t, `{"print": {"mc_percent": 12}}`))
	require.NoError(t, err)

	assert.Equal(t, base.BedTemper, got.BedTemper)
	assert.Equal(t, base.NozzleTemper, got.NozzleTemper)
	assert.Equal(t, base.GcodeState, got.GcodeState)
	assert.Equal(t, base.McRemainingTime, got.McRemainingTime)
	assert.Equal(t, base.Upload, got.Upload)
	assert.Equal(t, ptr(12), got.McPercent)
}

func TestMerge_DoesNotModifyBase(t *testing.T) {
	base := &model.StatusReport{BedTemper: ptr(60)}

	_, err := Merge(base, mustParse(t, `{"print": {"bed_temper": 70}}`))
	require.NoError(t, err)

	assert.Equal(t, 60, *base.BedTemper)
}

func TestMerge_ScalarsOverride(t *testing.T) {
	base := &model.StatusReport{
		BedTemper:  ptr(60),
		GcodeState: ptr(model.GcodeStateRunning),
		PrintError: ptr(5),
	}

	got, err := Merge(base, mustParse(t, `{"print": {"bed_temper": 0, "gcode_state": "FINISH", "print_error": null}}`))
	require.NoError(t, err)

	assert.Equal(t, ptr(0), got.BedTemper)
	assert.Equal(t, model.GcodeStateFinish, got.State())
	assert.Nil(t, got.PrintError)
}

func TestMerge_NilBase(t *testing.T) {
	got, err := Merge(nil, mustParse(t, `{"print": {"gcode_state": "IDLE", "mc_remaining_time": 0}}`))
	require.NoError(t, err)

	assert.Equal(t, &model.StatusReport{
		GcodeState:      ptr(model.GcodeStateIdle),
		McRemainingTime: ptr(0),
	}, got)
}

func TestMerge_RoundsTemperatures(t *testing.T) {
	tests := map[string]struct {
		payload    string
		wantBed    int
		wantNozzle int
	}{
		"round down": {payload: `{"print": {"bed_temper": 10.2, "nozzle_temper": 200.4}}`, wantBed: 10, wantNozzle: 200},
		"round up":   {payload: `{"print": {"bed_temper": 10.7, "nozzle_temper": 200.7}}`, wantBed: 11, wantNozzle: 201},
		"half up":    {payload: `{"print": {"bed_temper": 60.5, "nozzle_temper": 201.5}}`, wantBed: 61, wantNozzle: 202},
		"integral":   {payload: `{"print": {"bed_temper": 55, "nozzle_temper": 220}}`, wantBed: 55, wantNozzle: 220},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Merge(&model.StatusReport{}, mustParse(t, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.wantBed, *got.BedTemper)
			assert.Equal(t, tt.wantNozzle, *got.NozzleTemper)
		})
	}
}

func TestParsePatch_InvalidUTF8(t *testing.T) {
	_, err := ParsePatch([]byte("{\"print\": {\"subtask_name\": \"cube\xff\xfe\"}}"))
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestMerge_RoundsFractionalTargets(t *testing.T) {
	got, err := Merge(&model.StatusReport{}, mustParse(t,
		`{"print": {"gcode_state": "FINISH", "nozzle_target_temper": 219.5, "bed_target_temper": 59.4}}`))
	require.NoError(t, err)
	assert.Equal(t, model.GcodeStateFinish, got.State())
	require.NotNil(t, got.NozzleTargetTemper)
	assert.Equal(t, 220, *got.NozzleTargetTemper)
	require.NotNil(t, got.BedTargetTemper)
	assert.Equal(t, 59, *got.BedTargetTemper)
}

func TestMerge_NestedObjectsMergeFieldByField(t *testing.T) {
	base := &model.StatusReport{
		Upload: &model.UploadStatus{Status: ptr("uploading"), Progress: ptr(10), Message: ptr("hello")},
		Ams:    &model.AmsSummary{TrayNow: ptr("1"), AmsExistBits: ptr("1")},
	}

	got, err := Merge(base, mustParse(t, `{"print": {"upload": {"progress": 55}, "ams": {"tray_now": "2"}}}`))
	require.NoError(t, err)

	assert.Equal(t, &model.UploadStatus{Status: ptr("uploading"), Progress: ptr(55), Message: ptr("hello")}, got.Upload)
	assert.Equal(t, &model.AmsSummary{TrayNow: ptr("2"), AmsExistBits: ptr("1")}, got.Ams)
}

func TestMerge_ListReplaceRules(t *testing.T) {
	base := &model.StatusReport{
		Ams: &model.AmsSummary{
			Ams: []model.AmsUnit{{ID: ptr("0"), Humidity: ptr("4")}, {ID: ptr("1"), Humidity: ptr("3")}},
		},
	}

	t.Run("non-empty list replaces", func(t *testing.T) {
		got, err := Merge(base, mustParse(t, `{"print": {"ams": {"ams": [{"id": "0", "humidity": "5"}]}}}`))
		require.NoError(t, err)
		assert.Equal(t, []model.AmsUnit{{ID: ptr("0"), Humidity: ptr("5")}}, got.Ams.Ams)
	})

	t.Run("empty list keeps base", func(t *testing.T) {
		got, err := Merge(base, mustParse(t, `{"print": {"ams": {"ams": []}}}`))
		require.NoError(t, err)
		assert.Equal(t, base.Ams.Ams, got.Ams.Ams)
	})

	t.Run("empty list on absent field stays absent", func(t *testing.T) {
		got, err := Merge(&model.StatusReport{}, mustParse(t, `{"print": {"lights_report": []}}`))
		require.NoError(t, err)
		assert.Nil(t, got.LightsReport)
	})
}

func TestMerge_LightsReportMergesByNode(t *testing.T) {
	base := &model.StatusReport{
		LightsReport: []model.LightReport{
			{Node: "chamber_light", Mode: "on"},
			{Node: "work_light", Mode: "flashing"},
			{Node: "logo_light", Mode: "on"},
		},
	}

	got, err := Merge(base, mustParse(t, `{"print": {"lights_report": [
		{"node": "work_light", "mode": "off"},
		{"node": "heatbed_light", "mode": "on"}
	]}}`))
	require.NoError(t, err)

	assert.Equal(t, []model.LightReport{
		{Node: "chamber_light", Mode: "on"},
		{Node: "work_light", Mode: "off"},
		{Node: "logo_light", Mode: "on"},
		{Node: "heatbed_light", Mode: "on"},
	}, got.LightsReport)
}

func TestMerge_UnknownFieldsIgnored(t *testing.T) {
	got, err := Merge(&model.StatusReport{}, mustParse(t, `{"print": {"command": "push_status", "sequence_id": "42", "mc_percent": 3}}`))
	require.NoError(t, err)
	assert.Equal(t, &model.StatusReport{McPercent: ptr(3)}, got)
}

func TestMerge_SchemaMismatch(t *testing.T) {
	_, err := Merge(&model.StatusReport{}, mustParse(t, `{"print": {"mc_percent": "lots"}}`))
	assert.Error(t, err)
}

func TestMerge_EmptyPatchIsIdempotent(t *testing.T) {
	base := &model.StatusReport{
		BedTemper:    ptr(60),
		LightsReport: []model.LightReport{{Node: "chamber_light", Mode: "on"}},
	}
	patches := []string{
		`{"print": {"gcode_state": "RUNNING", "upload": {"status": "idle"}}}`,
		`{"print": {"ams": {"ams": [{"id": "0", "tray": []}]}}}`,
		`{"print": {"lights_report": [{"node": "work_light", "mode": "on"}]}}`,
		`{"print": {}}`,
	}
	for _, payload := range patches {
		once, err := Merge(base, mustParse(t, payload))
		require.NoError(t, err)
		twice, err := Merge(once, Patch{})
		require.NoError(t, err)
		assert.True(t, once.Equal(twice), "payload %s", payload)
	}
}
