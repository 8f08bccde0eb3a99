package subscription_test

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/pipewatch/pipewatch/server/internal/subscription"
)

var guidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// backends returns one fresh registry per implementation.
func backends(t *testing.T) map[string]subscription.Registry {
	t.Helper()
	sq, err := subscription.NewSQLiteRegistry(context.Background(),
		filepath.Join(t.TempDir(), "subs.db"),
		subscription.WithTableName("test_subscribers"))
	if err != nil {
		t.Fatalf("NewSQLiteRegistry: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return map[string]subscription.Registry{
		"memory": subscription.NewMemoryRegistry(),
		"sqlite": sq,
	}
}

func subscribe(t *testing.T, r subscription.Registry, url string) string {
	t.Helper()
	id, err := r.Subscribe(context.Background(), subscription.Subscriber{CallbackURL: url})
	if err != nil {
		t.Fatalf("Subscribe(%q): %v", url, err)
	}
	return id
}

func TestSubscribe_ReturnsGUID(t *testing.T) {
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := subscribe(t, r, "https://hooks.example.com/a")
			if !guidPattern.MatchString(id) {
				t.Errorf("id %q is not a lowercase guid", id)
			}
			if n, _ := r.Count(context.Background()); n != 1 {
				t.Errorf("Count: got %d, want 1", n)
			}
		})
	}
}

func TestSubscribe_RejectsDuplicateURL(t *testing.T) {
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			subscribe(t, r, "https://hooks.example.com/a")
			_, err := r.Subscribe(context.Background(),
				subscription.Subscriber{CallbackURL: "https://hooks.example.com/a", Kind: subscription.KindSlack})
			if !errors.Is(err, subscription.ErrDuplicateURL) {
				t.Errorf("err: got %v, want ErrDuplicateURL", err)
			}
			if n, _ := r.Count(context.Background()); n != 1 {
				t.Errorf("Count: got %d, want 1", n)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	cases := []subscription.Subscriber{
		{},
		{CallbackURL: "not a url"},
		{CallbackURL: "ftp://example.com/x"},
		{CallbackURL: "https://example.com/x", Kind: "pagerduty"},
	}
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, s := range cases {
				if _, err := r.Subscribe(context.Background(), s); !errors.Is(err, subscription.ErrInvalid) {
					t.Errorf("Subscribe(%+v): got %v, want ErrInvalid", s, err)
				}
			}
		})
	}
}

func TestUnsubscribe(t *testing.T) {
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := subscribe(t, r, "https://hooks.example.com/a")

			if err := r.Unsubscribe(ctx, id); err != nil {
				t.Fatalf("Unsubscribe: %v", err)
			}
			if err := r.Unsubscribe(ctx, id); !errors.Is(err, subscription.ErrNotFound) {
				t.Errorf("second Unsubscribe: got %v, want ErrNotFound", err)
			}
			// The url can be registered again once released.
			subscribe(t, r, "https://hooks.example.com/a")
		})
	}
}

func TestUnsubscribe_UnknownID(t *testing.T) {
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := r.Unsubscribe(context.Background(), "nope"); !errors.Is(err, subscription.ErrNotFound) {
				t.Errorf("got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestList_OrderAndKind(t *testing.T) {
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := subscribe(t, r, "https://hooks.example.com/a")
			second, err := r.Subscribe(ctx, subscription.Subscriber{
				CallbackURL: "https://hooks.example.com/b",
				Kind:        subscription.KindTeams,
			})
			if err != nil {
				t.Fatal(err)
			}

			subs, err := r.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(subs) != 2 {
				t.Fatalf("List: got %d subscribers, want 2", len(subs))
			}
			if subs[0].ID != first || subs[1].ID != second {
				t.Errorf("order: got [%s %s], want [%s %s]", subs[0].ID, subs[1].ID, first, second)
			}
			if subs[0].Kind != subscription.KindHTTP {
				t.Errorf("default kind: got %q, want http", subs[0].Kind)
			}
			if subs[1].Kind != subscription.KindTeams {
				t.Errorf("kind: got %q, want teams", subs[1].Kind)
			}
		})
	}
}

func TestSQLiteRegistry_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "subs.db")

	r, err := subscription.NewSQLiteRegistry(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	id := subscribe(t, r, "https://hooks.example.com/a")
	r.Close()

	r, err = subscription.NewSQLiteRegistry(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	subs, err := r.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].ID != id {
		t.Errorf("after reopen: got %+v, want one subscriber %s", subs, id)
	}
}
