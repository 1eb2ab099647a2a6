package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeAndEmit(t *testing.T) {
	bus := NewBus()

	var started, all []*Event
	bus.Subscribe(RunStarted, func(e *Event) { started = append(started, e) })
	bus.SubscribeAll(func(e *Event) { all = append(all, e) })

	bus.Emit(RunStarted, "runs", map[string]interface{}{"run_id": "a"})
	bus.Emit(RunCompleted, "runs", nil)

	require.Len(t, started, 1)
	assert.Equal(t, RunStarted, started[0].Type)
	assert.Equal(t, "runs", started[0].Module)
	assert.Equal(t, "a", started[0].Data["run_id"])
	assert.False(t, started[0].Timestamp.IsZero())

	require.Len(t, all, 2)
	assert.Equal(t, RunCompleted, all[1].Type)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsubscribe := bus.Subscribe(RunQueued, func(*Event) { calls++ })
	unsubscribeAll := bus.SubscribeAll(func(*Event) { calls++ })
	assert.Equal(t, 2, bus.SubscriberCount())

	bus.Emit(RunQueued, "runs", nil)
	assert.Equal(t, 2, calls)

	unsubscribe()
	unsubscribeAll()
	assert.Equal(t, 0, bus.SubscriberCount())

	bus.Emit(RunQueued, "runs", nil)
	assert.Equal(t, 2, calls)
}

func TestManager_EmitTyped(t *testing.T) {
	var logs bytes.Buffer
	bus := NewBus()
	manager := NewManager(bus, zerolog.New(&logs))

	var received *Event
	bus.Subscribe(RunCompleted, func(e *Event) { received = e })

	manager.EmitTyped("runs", &RunCompletedData{
		RunID:       "run-1",
		Episodes:    10,
		Goals:       7,
		SuccessRate: 0.7,
		Converged:   true,
	})

	require.NotNil(t, received)
	assert.Equal(t, "run-1", received.Data["run_id"])
	assert.Equal(t, float64(7), received.Data["goals"])
	assert.Equal(t, true, received.Data["converged"])

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "RUN_COMPLETED", entry["event_type"])
	assert.Equal(t, "events", entry["service"])
}

func TestManager_EpisodeEventsLogAtDebug(t *testing.T) {
	var logs bytes.Buffer
	manager := NewManager(NewBus(), zerolog.New(&logs).Level(zerolog.InfoLevel))

	manager.EmitTyped("runs", &EpisodeCompletedData{RunID: "r", Episode: 3})

	assert.Empty(t, logs.String())
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus()
	manager := NewManager(bus, zerolog.Nop())

	var received *Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { received = e })

	manager.EmitError("archive", errors.New("upload failed"), map[string]interface{}{"run_id": "x"})

	require.NotNil(t, received)
	assert.Equal(t, "upload failed", received.Data["error"])
	assert.Equal(t, "archive", received.Module)
}

func TestEventData_Types(t *testing.T) {
	testCases := []struct {
		data EventData
		want EventType
	}{
		{&RunQueuedData{}, RunQueued},
		{&RunStartedData{}, RunStarted},
		{&EpisodeCompletedData{}, EpisodeCompleted},
		{&RunCompletedData{}, RunCompleted},
		{&RunFailedData{}, RunFailed},
		{&ErrorEventData{}, ErrorOccurred},
	}

	for _, tc := range testCases {
		t.Run(string(tc.want), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.data.EventType())
			assert.Contains(t, AllTypes, tc.want)
		})
	}
}

func TestRunFailedData_OmitsUnknownPosition(t *testing.T) {
	raw, err := json.Marshal(&RunFailedData{RunID: "r", Error: "boom"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "episode")

	episode := 4
	raw, err = json.Marshal(&RunFailedData{RunID: "r", Error: "boom", Episode: &episode})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"episode":4`)
}
