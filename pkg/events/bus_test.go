package events

import (
	"encoding/json"
	"testing"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()

	var got []string
	unsub := bus.Subscribe(func(ev Event) {
		got = append(got, ev.Name)
	})

	bus.Publish(New(MicStatus, MicStatusPayload{Status: StatusListening}))
	bus.Publish(New(TriggerVoiceAssistant, nil))

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0] != MicStatus || got[1] != TriggerVoiceAssistant {
		t.Errorf("unexpected event order: %v", got)
	}

	unsub()
	bus.Publish(New(CachedResponseEnded, nil))
	if len(got) != 2 {
		t.Errorf("handler fired after unsubscribe")
	}
}

func TestBusSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe(func(Event) { order = append(order, 1) })
	bus.Subscribe(func(Event) { order = append(order, 2) })
	bus.Subscribe(func(Event) { order = append(order, 3) })

	bus.Publish(New(DeploymentAudioStopped, nil))

	for i, n := range order {
		if n != i+1 {
			t.Fatalf("handlers ran out of order: %v", order)
		}
	}
}

func TestEventPayloadEncoding(t *testing.T) {
	ev := New(VoiceVolume, VolumePayload{Volume: 0.42, Threshold: 0.3})

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	var decoded struct {
		Event string `json:"event"`
		Data  struct {
			Volume    float64 `json:"volume"`
			Threshold float64 `json:"threshold"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}

	if decoded.Event != "voiceVolume" {
		t.Errorf("expected event name voiceVolume, got %s", decoded.Event)
	}
	if decoded.Data.Volume != 0.42 || decoded.Data.Threshold != 0.3 {
		t.Errorf("payload mismatch: %+v", decoded.Data)
	}
}
