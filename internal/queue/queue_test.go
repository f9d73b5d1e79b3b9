package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

func TestNewWaitingNotifiedEvent(t *testing.T) {
	sub := uint64(7)
	at := time.Date(2026, 10, 20, 19, 5, 0, 0, time.FixedZone("X", 3600))
	ev := NewWaitingNotifiedEvent(model.WaitingEntry{Code: "W1", Guests: 3, SubscriberID: &sub, NotifiedAt: &at}, time.Time{})
	if ev.NotifiedAt != "2026-10-20T18:05:00Z" {
		t.Fatalf("notified_at = %q", ev.NotifiedAt)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(body); !strings.Contains(got, `"subscriber_id":7`) || strings.Contains(got, "contact") {
		t.Fatalf("body = %s", got)
	}

	now := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	ev = NewWaitingNotifiedEvent(model.WaitingEntry{Code: "W2", Guests: 2, Contact: "555"}, now)
	if ev.NotifiedAt != "2026-10-20T12:00:00Z" || ev.SubscriberID != nil {
		t.Fatalf("event = %+v", ev)
	}
}

func TestHandleMessageAppendsLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	for _, ev := range []WaitingNotifiedEvent{
		{Code: "W1", Guests: 2, Contact: "555-0100", NotifiedAt: "2026-10-20T12:00:00Z"},
		{Code: "W2", Guests: 4, SubscriberID: ptr(uint64(3)), NotifiedAt: "2026-10-20T12:01:00Z"},
	} {
		body, _ := json.Marshal(ev)
		if err := handleMessage(dir, body); err != nil {
			t.Fatal(err)
		}
	}
	raw, err := os.ReadFile(filepath.Join(dir, NotificationLog))
	if err != nil {
		t.Fatal(err)
	}
	want := `[2026-10-20T12:00:00Z] Table ready | code=W1 | guests=2 | casual | contact="555-0100"` + "\n" +
		`[2026-10-20T12:01:00Z] Table ready | code=W2 | guests=4 | subscriber=3 | contact=""` + "\n"
	if string(raw) != want {
		t.Fatalf("log:\n%s\nwant:\n%s", raw, want)
	}
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := handleMessage(dir, []byte("{")); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if err := handleMessage(dir, []byte(`{"guests":2}`)); err == nil {
		t.Fatal("expected error for event without code")
	}
}

func TestNotifierPublishesInBackground(t *testing.T) {
	got := make(chan WaitingNotifiedEvent, 1)
	n := NewNotifier("amqp://example")
	n.publish = func(_ context.Context, url string, ev WaitingNotifiedEvent) error {
		if url != "amqp://example" {
			t.Errorf("url = %q", url)
		}
		got <- ev
		return nil
	}
	n.WaitingListChanged(nil)
	n.WaitingNotified(model.WaitingEntry{Code: "W9", Guests: 5})
	select {
	case ev := <-got:
		if ev.Code != "W9" || ev.Guests != 5 {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not published")
	}
}

func TestBrokerURLFallback(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://alt/")
	if got := BrokerURL(); got != "amqp://alt/" {
		t.Fatalf("got %q", got)
	}
	t.Setenv("RABBITMQ_URL", "amqp://main/")
	if got := BrokerURL(); got != "amqp://main/" {
		t.Fatalf("got %q", got)
	}
}

func ptr[T any](v T) *T { return &v }
