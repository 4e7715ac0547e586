package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"campusconnect.id/communityhub/internal/model"
	"campusconnect.id/communityhub/internal/ws"
	"campusconnect.id/communityhub/pkg/apperror"
	"github.com/google/uuid"
)

func TestPublishRejectsEmptyContent(t *testing.T) {
	msgs := &fakeMessageRepo{}
	hub := &fakeHub{}
	svc := NewChatService(msgs, hub, nil, 0, 100, time.Second)

	for _, content := range []string{"", "   ", "\n\t", "<script>alert(1)</script>"} {
		_, err := svc.Publish(context.Background(), uuid.New(), content)
		if !errors.Is(err, apperror.ErrValidation) {
			t.Fatalf("content %q: got %v, want validation error", content, err)
		}
	}
	if len(hub.all()) != 0 {
		t.Fatal("rejected message was broadcast")
	}
}

func TestPublishSanitizesMarkup(t *testing.T) {
	msgs := &fakeMessageRepo{}
	svc := NewChatService(msgs, &fakeHub{}, nil, 0, 100, time.Second)

	msg, err := svc.Publish(context.Background(), uuid.New(), "  <b>hello</b> world  ")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if msg.Content != "hello world" {
		t.Fatalf("content = %q, want %q", msg.Content, "hello world")
	}
}

func TestPublishStoreFailureSuppressesBroadcast(t *testing.T) {
	msgs := &fakeMessageRepo{createErr: errors.New("connection refused")}
	hub := &fakeHub{}
	svc := NewChatService(msgs, hub, nil, 0, 100, time.Second)

	_, err := svc.Publish(context.Background(), uuid.New(), "hello")
	if !errors.Is(err, apperror.ErrDependency) {
		t.Fatalf("got %v, want dependency error", err)
	}
	if len(hub.all()) != 0 {
		t.Fatal("broadcast happened despite store failure")
	}
}

func TestPublishBroadcastsStoredMessage(t *testing.T) {
	msgs := &fakeMessageRepo{}
	hub := &fakeHub{}
	svc := NewChatService(msgs, hub, nil, 0, 100, time.Second)
	userID := uuid.New()

	msg, err := svc.Publish(context.Background(), userID, "hello")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	events := hub.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != ws.EventMessageNew {
		t.Fatalf("event type = %q", events[0].Type)
	}
	sent, ok := events[0].Data.(*model.Message)
	if !ok {
		t.Fatalf("event data is %T, want *model.Message", events[0].Data)
	}
	if sent.ID != msg.ID || sent.UserID != userID {
		t.Fatal("broadcast message does not match stored message")
	}
}

// Concurrent publishers must fan out in the same order the store
// committed. A real hub subscriber observes the delivery order; the
// store records commit order via Seq.
func TestPublishOrderMatchesCommitOrder(t *testing.T) {
	msgs := &fakeMessageRepo{}
	hub := ws.NewHub(256)
	defer hub.Close()
	svc := NewChatService(msgs, hub, nil, 0, 100, time.Second)

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Publish(context.Background(), uuid.New(), fmt.Sprintf("msg %d", i)); err != nil {
				t.Errorf("Publish: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var lastSeq int64
	for i := 0; i < n; i++ {
		ev := <-sub.Events()
		msg := ev.Data.(*model.Message)
		if msg.Seq <= lastSeq {
			t.Fatalf("delivery out of commit order: seq %d after %d", msg.Seq, lastSeq)
		}
		lastSeq = msg.Seq
	}
}

// blockingMessageRepo hangs every Create until its context expires, like
// a store that stopped answering.
type blockingMessageRepo struct{}

func (r *blockingMessageRepo) Create(ctx context.Context, _ *model.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (r *blockingMessageRepo) ListRecent(ctx context.Context, _ int) ([]model.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// A hung store write must hit the configured deadline and release the
// publish lock; without the bound one stalled write blocks every other
// publisher for as long as the store stays silent.
func TestPublishStoreWriteTimeBounded(t *testing.T) {
	hub := &fakeHub{}
	svc := NewChatService(&blockingMessageRepo{}, hub, nil, 0, 100, 50*time.Millisecond)

	type result struct {
		err error
	}
	first := make(chan result, 1)
	go func() {
		_, err := svc.Publish(context.Background(), uuid.New(), "hello")
		first <- result{err}
	}()

	select {
	case r := <-first:
		if !errors.Is(r.err, apperror.ErrDependency) {
			t.Fatalf("got %v, want dependency error", r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish never timed out against a hung store")
	}

	// The lock is free again: a second publisher fails on its own
	// deadline instead of queueing forever behind the first.
	second := make(chan result, 1)
	go func() {
		_, err := svc.Publish(context.Background(), uuid.New(), "world")
		second <- result{err}
	}()

	select {
	case r := <-second:
		if !errors.Is(r.err, apperror.ErrDependency) {
			t.Fatalf("got %v, want dependency error", r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second publisher stalled behind a hung store write")
	}

	if len(hub.all()) != 0 {
		t.Fatal("timed-out write was broadcast")
	}
}

func TestHistoryReadTimeBounded(t *testing.T) {
	svc := NewChatService(&blockingMessageRepo{}, &fakeHub{}, nil, 0, 100, 50*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := svc.History(context.Background(), 10)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error from a hung store read")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("history read never timed out against a hung store")
	}
}

func TestHistoryDefaultsAndCaps(t *testing.T) {
	msgs := &fakeMessageRepo{}
	svc := NewChatService(msgs, &fakeHub{}, nil, 0, 100, time.Second)
	ctx := context.Background()

	if _, err := svc.History(ctx, 0); err != nil {
		t.Fatalf("History: %v", err)
	}
	if msgs.lastLimit != 100 {
		t.Fatalf("default limit = %d, want 100", msgs.lastLimit)
	}

	if _, err := svc.History(ctx, 25); err != nil {
		t.Fatalf("History: %v", err)
	}
	if msgs.lastLimit != 25 {
		t.Fatalf("limit = %d, want 25", msgs.lastLimit)
	}

	if _, err := svc.History(ctx, 10000); err != nil {
		t.Fatalf("History: %v", err)
	}
	if msgs.lastLimit != maxHistoryLimit {
		t.Fatalf("limit = %d, want cap %d", msgs.lastLimit, maxHistoryLimit)
	}
}

func TestHistoryReturnsAscending(t *testing.T) {
	msgs := &fakeMessageRepo{}
	svc := NewChatService(msgs, &fakeHub{}, nil, 0, 100, time.Second)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.Publish(ctx, uuid.New(), fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	history, err := svc.History(ctx, 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("got %d messages, want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Seq <= history[i-1].Seq {
			t.Fatalf("history not ascending: seq %d after %d", history[i].Seq, history[i-1].Seq)
		}
	}
	if history[len(history)-1].Content != "msg 4" {
		t.Fatalf("history missing newest message, last = %q", history[len(history)-1].Content)
	}
}
