package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pipewatch/pipewatch/pkg/types"
	"github.com/pipewatch/pipewatch/server/internal/subscription"
)

var baseTime = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

// --- test helpers -----------------------------------------------------------

type capture struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (c *capture) server(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, b)
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *capture) only(t *testing.T) []byte {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) != 1 {
		t.Fatalf("deliveries: got %d, want 1", len(c.bodies))
	}
	return c.bodies[0]
}

func register(t *testing.T, r subscription.Registry, url string, kind subscription.Kind) {
	t.Helper()
	if _, err := r.Subscribe(context.Background(), subscription.Subscriber{CallbackURL: url, Kind: kind}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
}

func payload() []types.PipelineStatus {
	return []types.PipelineStatus{
		types.CountStatus(types.EventCI, types.ModeBroken, 2, (17 * time.Minute).Milliseconds()),
		types.BranchStatus(types.EventCD, types.ModeDeployFailed, "PROD"),
	}
}

func newNotifier(r subscription.Registry, onResult func(subscription.Kind, error)) *Notifier {
	n := New(r, Options{Timeout: 2 * time.Second, OnResult: onResult})
	n.now = func() time.Time { return baseTime }
	return n
}

// --- delivery ---------------------------------------------------------------

func TestNotify_HTTPReceivesRawPayload(t *testing.T) {
	reg := subscription.NewMemoryRegistry()
	var c capture
	register(t, reg, c.server(t, http.StatusOK).URL, subscription.KindHTTP)

	newNotifier(reg, nil).Notify(context.Background(), payload())

	var got []types.PipelineStatus
	if err := json.Unmarshal(c.only(t), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("statuses: got %d, want 2", len(got))
	}
	if got[0].Mode() != types.ModeBroken || got[1].Branch() != "PROD" {
		t.Errorf("payload: got %v %v", got[0], got[1])
	}
	if total := got[0].Data()["total"]; total != float64(2) {
		t.Errorf("total: got %v, want 2", total)
	}
}

func TestNotify_SlackText(t *testing.T) {
	reg := subscription.NewMemoryRegistry()
	var c capture
	register(t, reg, c.server(t, http.StatusOK).URL, subscription.KindSlack)

	newNotifier(reg, nil).For("web").Notify(context.Background(), payload())

	var msg map[string]string
	if err := json.Unmarshal(c.only(t), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := "*[BROKEN]* web: 2 definition(s) broken, first failure 17 minutes ago\n" +
		"*[DEPLOY-FAILED]* web: release PROD failed to deploy"
	if msg["text"] != want {
		t.Errorf("text:\n got %q\nwant %q", msg["text"], want)
	}
}

func TestNotify_TeamsCard(t *testing.T) {
	reg := subscription.NewMemoryRegistry()
	var c capture
	register(t, reg, c.server(t, http.StatusOK).URL, subscription.KindTeams)

	newNotifier(reg, nil).For("web").Notify(context.Background(), payload()[1:])

	var card struct {
		Type       string              `json:"@type"`
		ThemeColor string              `json:"themeColor"`
		Title      string              `json:"title"`
		Sections   []map[string]string `json:"sections"`
	}
	if err := json.Unmarshal(c.only(t), &card); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if card.Type != "MessageCard" || card.Title != "pipewatch: web" {
		t.Errorf("card header: %+v", card)
	}
	if card.ThemeColor != "FF4F6A" {
		t.Errorf("themeColor: got %s, want FF4F6A", card.ThemeColor)
	}
	if len(card.Sections) != 1 || !strings.Contains(card.Sections[0]["text"], "PROD failed") {
		t.Errorf("sections: %+v", card.Sections)
	}
}

func TestNotify_FailureIsolatedPerSubscriber(t *testing.T) {
	reg := subscription.NewMemoryRegistry()
	var good, bad capture
	register(t, reg, bad.server(t, http.StatusInternalServerError).URL, subscription.KindHTTP)
	register(t, reg, "http://127.0.0.1:1/unreachable", subscription.KindHTTP)
	register(t, reg, good.server(t, http.StatusOK).URL, subscription.KindHTTP)

	var mu sync.Mutex
	var failures, successes int
	n := newNotifier(reg, func(_ subscription.Kind, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failures++
		} else {
			successes++
		}
	})
	n.Notify(context.Background(), payload())

	good.only(t)
	if failures != 2 || successes != 1 {
		t.Errorf("results: got %d failures / %d successes, want 2 / 1", failures, successes)
	}
}

func TestNotify_DeliversConcurrently(t *testing.T) {
	reg := subscription.NewMemoryRegistry()
	var arrived sync.WaitGroup
	arrived.Add(2)
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived.Done()
		<-release
	})
	for i := 0; i < 2; i++ {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		register(t, reg, srv.URL, subscription.KindHTTP)
	}

	done := make(chan struct{})
	go func() {
		newNotifier(reg, nil).Notify(context.Background(), payload())
		close(done)
	}()

	// Both requests must be in flight at the same time.
	waited := make(chan struct{})
	go func() {
		arrived.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("deliveries were not concurrent")
	}
	close(release)
	<-done
}

func TestNotify_NoSubscribersIsNoop(t *testing.T) {
	called := false
	n := newNotifier(subscription.NewMemoryRegistry(), func(subscription.Kind, error) { called = true })
	n.Notify(context.Background(), payload())
	if called {
		t.Error("OnResult called without subscribers")
	}
}

// --- Describe ---------------------------------------------------------------

func TestDescribe(t *testing.T) {
	tests := []struct {
		status types.PipelineStatus
		want   string
	}{
		{types.CountStatus(types.EventCI, types.ModeBuilding, 3, (2 * time.Minute).Milliseconds()),
			"3 build(s) running, started 2 minutes ago"},
		{types.BranchStatus(types.EventCI, types.ModeBuilt, "DEVELOP"), "build of DEVELOP succeeded"},
		{types.BranchStatus(types.EventCD, types.ModePending, "PROD"), "release PROD is waiting for approval"},
		{types.NewStatus(types.EventCI, types.ModePassing, map[string]any{
			"pull": [3]int{0, 1, 1}, "merge": [3]int{1, 2, 3}, "deploy": [3]int{0, 0, 0},
		}), "all pipelines passing (pull [0 1 1], merge [1 2 3], deploy [0 0 0])"},
	}
	for _, tc := range tests {
		if got := Describe("", tc.status, baseTime); got != tc.want {
			t.Errorf("Describe(%s): got %q, want %q", tc.status, got, tc.want)
		}
	}
}
