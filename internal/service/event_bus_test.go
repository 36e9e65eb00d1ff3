package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rn2903-service/internal/model"
)

func receive(t *testing.T, ch <-chan model.ServiceEvent) (model.ServiceEvent, bool) {
	t.Helper()
	select {
	case e, ok := <-ch:
		return e, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return model.ServiceEvent{}, false
	}
}

func TestEventBusFiltersByType(t *testing.T) {
	bus := NewEventBus(nil)
	go bus.Start()
	defer bus.Stop()

	all := bus.Subscribe()
	rxOnly := bus.Subscribe(model.EventRadioRx)
	assert.Equal(t, 2, bus.SubscriberCount())

	bus.Publish(model.NewServiceEvent(model.EventStateChange, "INFO", nil))
	bus.Publish(model.NewServiceEvent(model.EventRadioRx, "INFO", map[string]interface{}{"data": "AB"}))

	e, ok := receive(t, all)
	require.True(t, ok)
	assert.Equal(t, model.EventStateChange, e.EventType)
	e, _ = receive(t, all)
	assert.Equal(t, model.EventRadioRx, e.EventType)

	e, _ = receive(t, rxOnly)
	assert.Equal(t, model.EventRadioRx, e.EventType)
	assert.Equal(t, "AB", e.Data["data"])
}

func TestEventBusUnsubscribeAndStop(t *testing.T) {
	bus := NewEventBus(nil)
	go bus.Start()

	a := bus.Subscribe()
	b := bus.Subscribe()
	bus.Unsubscribe(a)
	_, ok := <-a
	assert.False(t, ok)
	assert.Equal(t, 1, bus.SubscriberCount())

	bus.Stop()
	bus.Stop()
	_, ok = <-b
	assert.False(t, ok)
}
