package events

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventNowPlaying)
	other := bus.Subscribe(EventHealth)

	bus.Publish(EventNowPlaying, Payload{"path": "music/a.mp3"})

	select {
	case p := <-sub:
		if p["path"] != "music/a.mp3" {
			t.Errorf("payload = %v", p)
		}
	default:
		t.Fatal("subscriber did not receive payload")
	}

	select {
	case p := <-other:
		t.Fatalf("unrelated subscriber received %v", p)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventNowPlaying)
	bus.Unsubscribe(EventNowPlaying, sub)

	if _, open := <-sub; open {
		t.Fatal("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(EventNowPlaying, Payload{"path": "music/a.mp3"})
}

func TestPublishSkipsFullSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventNowPlaying)

	for i := 0; i < cap(sub)+5; i++ {
		bus.Publish(EventNowPlaying, Payload{"n": i})
	}

	if len(sub) != cap(sub) {
		t.Errorf("buffered %d payloads, want %d", len(sub), cap(sub))
	}
}
