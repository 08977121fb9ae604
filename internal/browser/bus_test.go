package browser

import (
	"context"
	"testing"
	"time"
)

func TestBusDeliversInOrderToEverySubscriber(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	src := make(chan Event, 3)
	src <- TabCreated{}
	src <- TabMoved{TabID: 1}
	src <- TabRemoved{TabID: 1}
	close(src)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go bus.Run(ctx, src)

	want := []string{"tabs.onCreated", "tabs.onMoved", "tabs.onRemoved"}
	for _, sub := range []<-chan Event{a, b} {
		var got []string
		for ev := range sub {
			got = append(got, ev.Name())
		}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("event %d = %s, want %s", i, got[i], want[i])
			}
		}
	}
}
