package bambu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/souzu/internal/pkg/cache"
	"github.com/anicoll/souzu/internal/pkg/model"
)

func TestRegistry(t *testing.T) {
	store := cache.New(t.TempDir())
	second := model.Device{ID: "01P00A000000002", Name: "Garage", Address: "192.0.2.11", AccessCode: "x"}

	a, err := New(testDevice, nil, nil, store)
	require.NoError(t, err)
	b, err := New(second, nil, nil, store)
	require.NoError(t, err)

	r := NewRegistry()
	assert.True(t, r.Add(a))
	assert.True(t, r.Add(b))
	assert.False(t, r.Add(a))

	devices := r.Devices()
	require.Len(t, devices, 2)
	assert.Equal(t, second.ID, devices[0].ID)
	assert.Equal(t, testDevice.ID, devices[1].ID)

	latest, ok := r.Latest(testDevice.ID)
	assert.True(t, ok)
	assert.Nil(t, latest)

	sub, ok := r.Subscribe(testDevice.ID)
	require.True(t, ok)
	sub.Close()

	_, ok = r.Latest("unknown")
	assert.False(t, ok)
	_, ok = r.Subscribe("unknown")
	assert.False(t, ok)

	r.Remove(testDevice.ID)
	_, ok = r.Get(testDevice.ID)
	assert.False(t, ok)
}
