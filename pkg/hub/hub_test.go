package hub

import (
	"sync"
	"testing"
	"time"
)

// attach registers a bare client with a send buffer of the given size.
// The connection pumps never run; tests read the send channel directly.
func attach(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan []byte, buffer)}
	select {
	case h.register <- c:
	case <-time.After(time.Second):
		t.Fatal("register timed out")
	}
	return c
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client count: got %d, want %d", h.ClientCount(), want)
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Stop()

	c := attach(t, h, 4)
	waitForCount(t, h, 1)

	if err := h.BroadcastJSON(map[string]int{"n": 1}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}

	select {
	case frame := <-c.send:
		if string(frame) != `{"n":1}` {
			t.Errorf("frame: got %s", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
}

// A slow client is dropped while another goroutine polls ClientCount; the
// map mutation and the count read must not race.
func TestHub_DropSlowClientWhileCounting(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Stop()

	// No reader and no buffer: the first frame marks it slow.
	attach(t, h, 0)
	waitForCount(t, h, 1)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				h.ClientCount()
			}
		}
	}()

	for i := 0; i < 100; i++ {
		h.Broadcast([]byte("frame"))
	}

	waitForCount(t, h, 0)
	close(stop)
	wg.Wait()
}

func TestHub_StopEndsRun(t *testing.T) {
	h := New("test")
	ran := make(chan struct{})
	go func() {
		h.Run()
		close(ran)
	}()

	h.Stop()
	h.Stop() // idempotent

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestHub_ClientAttachAfterStop(t *testing.T) {
	h := New("test")
	h.Stop()

	c := NewClient(h, nil)
	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	default:
		t.Fatal("send channel still open after attaching to a stopped hub")
	}
}
