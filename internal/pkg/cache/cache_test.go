package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/souzu/internal/pkg/model"
)

func ptr[T any](v T) *T {
	return &v
}

var testDevice = model.Device{ID: "XXXXYYYY", Name: "Test Printer", FilenamePrefix: "xxxxyyyy"}

func TestStore_RoundTrip(t *testing.T) {
	updated := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	full := time.Date(2023, 1, 1, 11, 0, 0, 0, time.UTC)

	tests := map[string]*model.Cache{
		"all absent": {},
		"only timestamps": {
			LastUpdate:     &updated,
			LastFullUpdate: &full,
		},
		"full": {
			Print: &model.StatusReport{
				BedTemper:    ptr(65),
				NozzleTemper: ptr(210),
				GcodeState:   ptr(model.GcodeStateRunning),
				LightsReport: []model.LightReport{{Node: "chamber_light", Mode: "on"}},
				Ams: &model.AmsSummary{
					Ams: []model.AmsUnit{{ID: ptr("0"), Tray: []model.AmsTray{{ID: ptr("0"), TrayType: ptr("PLA")}}}},
				},
				Upload: &model.UploadStatus{Status: ptr("idle")},
			},
			LastUpdate: &updated,
		},
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			store := New(t.TempDir())
			require.NoError(t, store.Save(testDevice, want))

			got, err := store.Load(testDevice)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	got, err := New(t.TempDir()).Load(testDevice)
	require.NoError(t, err)
	assert.Equal(t, &model.Cache{}, got)
}

func TestStore_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xxxxyyyy.json"), []byte("garbage"), 0o600))

	got, err := New(dir).Load(testDevice)
	require.NoError(t, err)
	assert.Equal(t, &model.Cache{}, got)
}

func TestStore_LoadUnreadable(t *testing.T) {
	dir := t.TempDir()
	// a directory where the file should be cannot be read as a file
	require.NoError(t, os.Mkdir(filepath.Join(dir, "xxxxyyyy.json"), 0o755))

	_, err := New(dir).Load(testDevice)
	assert.Error(t, err)
}

func TestStore_UseSavesOnError(t *testing.T) {
	store := New(t.TempDir())
	wantErr := context.Canceled

	err := store.Use(testDevice, func(c *model.Cache) error {
		c.Print = &model.StatusReport{BedTemper: ptr(60)}
		return wantErr
	})
	assert.True(t, errors.Is(err, wantErr))

	got, err := store.Load(testDevice)
	require.NoError(t, err)
	assert.Equal(t, &model.StatusReport{BedTemper: ptr(60)}, got.Print)
}
