package bus

import (
	"fmt"
	"sync"
	"testing"

	"terrainview.dev/internal/protocol"
)

func TestPublish_ordersPerSubscriber(t *testing.T) {
	b := New(200)
	sub := b.Subscribe()
	defer sub.Close()

	const n = 100
	for i := 0; i < n; i++ {
		b.Publish(protocol.NewPlayerMoved(fmt.Sprintf("player_%d", i), float64(i), 0))
	}

	for i := 0; i < n; i++ {
		u := <-sub.C()
		m, ok := u.(protocol.PlayerMoved)
		if !ok {
			t.Fatalf("update %d: got %T, want PlayerMoved", i, u)
		}
		if want := fmt.Sprintf("player_%d", i); m.ID != want {
			t.Fatalf("update %d: id=%s want=%s", i, m.ID, want)
		}
	}
	if got := sub.Dropped(); got != 0 {
		t.Fatalf("Dropped=%d want=0", got)
	}
}

func TestPublish_noSubscribersIsNoop(t *testing.T) {
	b := New(4)
	b.Publish(protocol.NewAllCleared())
	if got := b.Published(); got != 1 {
		t.Fatalf("Published=%d want=1", got)
	}
}

func TestPublish_dropsOldestWhenQueueFull(t *testing.T) {
	b := New(2)
	sub := b.Subscribe()
	defer sub.Close()

	for i := 1; i <= 4; i++ {
		b.Publish(protocol.NewPlayerMoved(fmt.Sprintf("player_%d", i), 0, 0))
	}

	// Queue cap 2, 4 published: the two oldest are gone, the two
	// newest remain, still in order.
	first := (<-sub.C()).(protocol.PlayerMoved)
	second := (<-sub.C()).(protocol.PlayerMoved)
	if first.ID != "player_3" || second.ID != "player_4" {
		t.Fatalf("got %s,%s want player_3,player_4", first.ID, second.ID)
	}
	if got := sub.Dropped(); got != 2 {
		t.Fatalf("Dropped=%d want=2", got)
	}
	if got := b.Dropped(); got != 2 {
		t.Fatalf("bus Dropped=%d want=2", got)
	}
}

func TestSubscribe_onlySeesLaterUpdates(t *testing.T) {
	b := New(8)
	b.Publish(protocol.NewAllCleared())

	sub := b.Subscribe()
	defer sub.Close()
	b.Publish(protocol.NewPlayerMoved("player_1", 1, 2))

	u := <-sub.C()
	if _, ok := u.(protocol.PlayerMoved); !ok {
		t.Fatalf("got %T, want PlayerMoved (pre-subscribe update must not be delivered)", u)
	}
	select {
	case u := <-sub.C():
		t.Fatalf("unexpected extra update %T", u)
	default:
	}
}

func TestClose_detachesAndIsIdempotent(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	if got := b.Subscribers(); got != 1 {
		t.Fatalf("Subscribers=%d want=1", got)
	}
	sub.Close()
	sub.Close()
	if got := b.Subscribers(); got != 0 {
		t.Fatalf("Subscribers=%d want=0", got)
	}
	if _, ok := <-sub.C(); ok {
		t.Fatalf("channel still open after Close")
	}
	// Publishing after detach must not panic.
	b.Publish(protocol.NewAllCleared())
}

func TestPublish_concurrentWithSubscribeAndClose(t *testing.T) {
	b := New(16)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Publish(protocol.NewAllCleared())
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s := b.Subscribe()
				s.Close()
			}
		}()
	}
	wg.Wait()
	if got := b.Subscribers(); got != 0 {
		t.Fatalf("Subscribers=%d want=0", got)
	}
}
