package connection

import (
	"errors"
	"sync"
	"testing"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

type fakeSender struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (f *fakeSender) Send(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeSender) got() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func TestAddIdentifyRemove(t *testing.T) {
	r := NewRegistry()
	s := r.Add("10.0.0.1:5000", &fakeSender{})
	if s.ID == "" || s.Role() != model.RoleGuest {
		t.Fatalf("new session = %+v role %q", s, s.Role())
	}
	if err := r.Identify(s.ID, "maria", model.RoleManager); err != nil {
		t.Fatal(err)
	}
	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].Username != "maria" || snap[0].Role != model.RoleManager || snap[0].RemoteAddr != "10.0.0.1:5000" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !r.Remove(s.ID) || r.Remove(s.ID) {
		t.Fatal("remove should succeed exactly once")
	}
	if err := r.Identify(s.ID, "x", model.RoleGuest); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("identify removed session: err = %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestBroadcastOnlyReachesSubscribers(t *testing.T) {
	r := NewRegistry()
	subA, subB, quiet := &fakeSender{}, &fakeSender{}, &fakeSender{}
	a := r.Add("a", subA)
	b := r.Add("b", subB)
	r.Add("c", quiet)
	for _, id := range []string{a.ID, b.ID} {
		if err := r.Subscribe(id); err != nil {
			t.Fatal(err)
		}
	}
	if n := r.Broadcast("WAITING_LIST|X:2:WAITING"); n != 2 {
		t.Fatalf("delivered %d, want 2", n)
	}
	if err := r.Unsubscribe(b.ID); err != nil {
		t.Fatal(err)
	}
	r.Broadcast("WAITING_LIST")
	if got := subA.got(); len(got) != 2 {
		t.Fatalf("a got %v", got)
	}
	if got := subB.got(); len(got) != 1 {
		t.Fatalf("b got %v", got)
	}
	if got := quiet.got(); len(got) != 0 {
		t.Fatalf("unsubscribed session got %v", got)
	}
}

func TestFailedWriteRemovesSubscriber(t *testing.T) {
	r := NewRegistry()
	broken := &fakeSender{err: errors.New("broken pipe")}
	ok := &fakeSender{}
	bad := r.Add("bad", broken)
	good := r.Add("good", ok)
	_ = r.Subscribe(bad.ID)
	_ = r.Subscribe(good.ID)

	if n := r.Broadcast("PING"); n != 1 {
		t.Fatalf("delivered %d, want 1", n)
	}
	if _, found := r.Get(bad.ID); found {
		t.Fatal("failed session still registered")
	}
	subs := r.Subscribers()
	if len(subs) != 1 || subs[0].ID != good.ID {
		t.Fatalf("stale subscriber left behind: %v", subs)
	}
}

func TestRemoveClearsSubscription(t *testing.T) {
	r := NewRegistry()
	s := r.Add("a", &fakeSender{})
	_ = r.Subscribe(s.ID)
	r.Remove(s.ID)
	if len(r.Subscribers()) != 0 {
		t.Fatal("removed session still subscribed")
	}
	if err := r.Subscribe(s.ID); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("subscribe removed session: err = %v", err)
	}
}

func TestConcurrentBroadcastAndChurn(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := r.Add("peer", &fakeSender{})
			_ = r.Subscribe(s.ID)
			r.Broadcast("X")
			r.Remove(s.ID)
		}()
	}
	wg.Wait()
	if r.Len() != 0 || len(r.Subscribers()) != 0 {
		t.Fatalf("leftovers: %d sessions, %d subscribers", r.Len(), len(r.Subscribers()))
	}
}
