package lock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-lock/internal/application"
	"smart-lock/internal/domain"
	"smart-lock/internal/lock"
)

type entityRecorder struct {
	calls [][]application.LockEntity
}

func (r *entityRecorder) add(_ context.Context, entities []application.LockEntity) error {
	r.calls = append(r.calls, entities)
	return nil
}

func (r *entityRecorder) ids() []string {
	var ids []string
	for _, batch := range r.calls {
		for _, e := range batch {
			ids = append(ids, e.UniqueID())
		}
	}
	return ids
}

func testDevices() staticDevices {
	return staticDevices{
		"lock1":  {ID: "lock1", Name: "Front Door", Category: "jtmsbh"},
		"lock2":  {ID: "lock2", Name: "Back Door", Category: "jtmsbh"},
		"plug1":  {ID: "plug1", Name: "Kitchen Plug", Category: "cz"},
		"light1": {ID: "light1", Name: "Hall Light", Category: "dj"},
	}
}

func TestPlatform_DiscoverFiltersCategories(t *testing.T) {
	platform := lock.NewPlatform(testDevices(), &mockAPI{}, discardLogger())
	recorder := &entityRecorder{}

	err := platform.Discover(context.Background(), recorder.add, []string{"lock1", "plug1", "light1", "lock2"})
	require.NoError(t, err)

	require.Len(t, recorder.calls, 1)
	assert.Equal(t, []string{"tuya.lock1", "tuya.lock2"}, recorder.ids())
}

func TestPlatform_DiscoverSkipsMissingDevices(t *testing.T) {
	platform := lock.NewPlatform(testDevices(), &mockAPI{}, discardLogger())
	recorder := &entityRecorder{}

	err := platform.Discover(context.Background(), recorder.add, []string{"ghost", "lock1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tuya.lock1"}, recorder.ids())
}

func TestPlatform_DiscoverNothingMatches(t *testing.T) {
	platform := lock.NewPlatform(testDevices(), &mockAPI{}, discardLogger())
	recorder := &entityRecorder{}

	err := platform.Discover(context.Background(), recorder.add, []string{"plug1", "ghost"})
	require.NoError(t, err)
	assert.Empty(t, recorder.calls)
}

func TestPlatform_SetupFollowsDiscovery(t *testing.T) {
	devices := staticDevices{"lock1": {ID: "lock1", Category: "jtmsbh"}}
	platform := lock.NewPlatform(devices, &mockAPI{}, discardLogger())
	dispatcher := application.NewSignalDispatcher(discardLogger())
	recorder := &entityRecorder{}
	ctx := context.Background()

	disconnect, err := platform.Setup(ctx, recorder.add, dispatcher)
	require.NoError(t, err)
	assert.Equal(t, []string{"tuya.lock1"}, recorder.ids())

	devices["lock2"] = domain.Device{ID: "lock2", Category: "jtmsbh"}
	dispatcher.Send(ctx, domain.SignalDiscoveryNew, []string{"lock2"})
	assert.Equal(t, []string{"tuya.lock1", "tuya.lock2"}, recorder.ids())

	disconnect()
	devices["lock3"] = domain.Device{ID: "lock3", Category: "jtmsbh"}
	dispatcher.Send(ctx, domain.SignalDiscoveryNew, []string{"lock3"})
	assert.Len(t, recorder.calls, 2)
}

func TestPlatform_RediscoveryIsIdempotentInHub(t *testing.T) {
	devices := testDevices()
	platform := lock.NewPlatform(devices, &mockAPI{}, discardLogger())
	hub := application.NewHub(nil, application.NewSignalDispatcher(discardLogger()), &application.NoopNotifier{}, discardLogger())
	ctx := context.Background()

	ids := []string{"lock1", "lock2", "plug1"}
	require.NoError(t, platform.Discover(ctx, hub.AddEntities, ids))
	require.NoError(t, platform.Discover(ctx, hub.AddEntities, ids))

	assert.Len(t, hub.LockEntities(), 2)
}

func TestLookup(t *testing.T) {
	d, ok := lock.Lookup("jtmsbh")
	require.True(t, ok)
	assert.Equal(t, lock.DPCodeM15WifiLockState, d.Key)
	assert.Equal(t, false, d.LockedValue)
	assert.Equal(t, true, d.UnlockedValue)
	assert.Equal(t, "mdi:lock", d.Icon)

	_, ok = lock.Lookup("cz")
	assert.False(t, ok)
	assert.Equal(t, []string{"jtmsbh"}, lock.Categories())
}
