package download

import (
	"testing"
	"time"

	"github.com/mediadrop/mediadrop/internal/model"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := newBroadcaster()
	defer b.close()

	first, stopFirst := b.subscribe(4)
	second, stopSecond := b.subscribe(4)
	defer stopFirst()
	defer stopSecond()

	job := &model.DownloadJob{ID: "job-1"}
	b.publish(model.Event{Type: model.EventStarted, Job: job})

	for _, ch := range []<-chan model.Event{first, second} {
		select {
		case ev := <-ch:
			if ev.Job.ID != "job-1" {
				t.Errorf("Expected job-1, got %s", ev.Job.ID)
			}
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for event")
		}
	}
}

func TestBroadcasterDropsProgressWhenFull(t *testing.T) {
	b := newBroadcaster()
	defer b.close()

	ch, stop := b.subscribe(1)
	defer stop()

	job := &model.DownloadJob{ID: "job-1"}
	b.publish(model.Event{Type: model.EventProgress, Job: job})
	b.publish(model.Event{Type: model.EventProgress, Job: job}) // dropped, buffer full

	if got := len(ch); got != 1 {
		t.Errorf("Expected 1 buffered event, got %d", got)
	}
}

func TestBroadcasterTerminalDeliversToDeparted(t *testing.T) {
	b := newBroadcaster()
	defer b.close()

	_, stop := b.subscribe(0)
	stop()

	// Must not block even though the subscriber is gone.
	done := make(chan struct{})
	go func() {
		b.publish(model.Event{Type: model.EventCompleted, Job: &model.DownloadJob{ID: "job-1"}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on an unsubscribed consumer")
	}
}

func TestBroadcasterPublishAfterCloseIsNoOp(t *testing.T) {
	b := newBroadcaster()
	ch, _ := b.subscribe(4)
	b.close()

	// Must neither panic nor deliver.
	b.publish(model.Event{Type: model.EventCompleted, Job: &model.DownloadJob{ID: "job-1"}})

	if _, ok := <-ch; ok {
		t.Error("Expected no events after close")
	}
}

func TestBroadcasterCloseUnblocksPendingTerminal(t *testing.T) {
	b := newBroadcaster()
	b.subscribe(1) // never read; first terminal fills the buffer

	job := &model.DownloadJob{ID: "job-1"}
	b.publish(model.Event{Type: model.EventCompleted, Job: job})

	published := make(chan struct{})
	go func() {
		b.publish(model.Event{Type: model.EventFailed, Job: job}) // blocks on the full buffer
		close(published)
	}()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		b.close()
		close(closed)
	}()

	for _, ch := range []chan struct{}{published, closed} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("Close deadlocked against a pending terminal publish")
		}
	}
}

func TestBroadcasterCloseClosesChannels(t *testing.T) {
	b := newBroadcaster()
	ch, _ := b.subscribe(4)
	b.close()

	if _, ok := <-ch; ok {
		t.Error("Expected subscriber channel to be closed")
	}

	// Subscribing after close yields an already-closed channel.
	late, _ := b.subscribe(4)
	if _, ok := <-late; ok {
		t.Error("Expected late subscription channel to be closed")
	}
}
