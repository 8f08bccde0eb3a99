package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// passHandler is a grpc.UnaryHandler that returns ("ok", nil).
func passHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

func callWithKey(t *testing.T, a APIKey, header, key string) (interface{}, error) {
	t.Helper()
	ctx := context.Background()
	if key != "" {
		ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(header, key))
	}
	return a.Unary()(ctx, nil, &grpc.UnaryServerInfo{}, passHandler)
}

// fakeStream carries only a context.
type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f fakeStream) Context() context.Context { return f.ctx }

// --- unary ---

func TestUnary_ModeNone_PassesThrough(t *testing.T) {
	a := APIKey{Mode: "none", Key: "secret"}
	res, err := a.Unary()(context.Background(), nil, &grpc.UnaryServerInfo{}, passHandler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "ok" {
		t.Errorf("result: got %v, want ok", res)
	}
}

func TestUnary_EmptyKey_PassesThrough(t *testing.T) {
	a := APIKey{Mode: "apikey"}
	if _, err := a.Unary()(context.Background(), nil, &grpc.UnaryServerInfo{}, passHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUnary_CorrectKey_Passes(t *testing.T) {
	a := APIKey{Mode: "apikey", Key: "supersecret"}
	res, err := callWithKey(t, a, DefaultHeader, "supersecret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "ok" {
		t.Errorf("result: got %v, want ok", res)
	}
}

func TestUnary_Rejections(t *testing.T) {
	a := APIKey{Mode: "apikey", Key: "supersecret"}
	contexts := map[string]context.Context{
		"wrong key":      metadata.NewIncomingContext(context.Background(), metadata.Pairs(DefaultHeader, "wrong")),
		"missing header": metadata.NewIncomingContext(context.Background(), metadata.MD{}),
		"no metadata":    context.Background(),
	}
	for name, ctx := range contexts {
		t.Run(name, func(t *testing.T) {
			_, err := a.Unary()(ctx, nil, &grpc.UnaryServerInfo{}, passHandler)
			if code := status.Code(err); code != codes.Unauthenticated {
				t.Errorf("code: got %v, want Unauthenticated", code)
			}
		})
	}
}

func TestUnary_CustomHeaderIsCaseInsensitive(t *testing.T) {
	a := APIKey{Mode: "apikey", Header: "X-Pipewatch-Token", Key: "mytoken"}
	if _, err := callWithKey(t, a, "x-pipewatch-token", "mytoken"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- stream ---

func TestStream(t *testing.T) {
	a := APIKey{Mode: "apikey", Key: "k"}
	called := false
	handler := func(srv interface{}, ss grpc.ServerStream) error {
		called = true
		return nil
	}

	err := a.Stream()(nil, fakeStream{ctx: context.Background()}, &grpc.StreamServerInfo{}, handler)
	if status.Code(err) != codes.Unauthenticated || called {
		t.Fatalf("without key: err=%v called=%v", err, called)
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(DefaultHeader, "k"))
	if err := a.Stream()(nil, fakeStream{ctx: ctx}, &grpc.StreamServerInfo{}, handler); err != nil || !called {
		t.Fatalf("with key: err=%v called=%v", err, called)
	}
}

// --- http ---

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := APIKey{Mode: "apikey", Key: "k"}.Middleware(next)

	tests := []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"nope", http.StatusUnauthorized},
		{"k", http.StatusTeapot},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/pipeline/status", nil)
		if tc.key != "" {
			req.Header.Set("X-Api-Key", tc.key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Errorf("key %q: got %d, want %d", tc.key, rr.Code, tc.want)
		}
	}
}

func TestMiddleware_DisabledPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	rr := httptest.NewRecorder()
	APIKey{Mode: "none", Key: "k"}.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("got %d, want 204", rr.Code)
	}
}
