package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// DefaultHeader is used when no header name is configured.
const DefaultHeader = "x-api-key"

// APIKey holds the expected key and where to read it from.
type APIKey struct {
	Mode   string
	Header string
	Key    string
}

func (a APIKey) enabled() bool {
	return a.Mode == "apikey" && a.Key != ""
}

func (a APIKey) header() string {
	if a.Header == "" {
		return DefaultHeader
	}
	// gRPC normalises metadata keys to lowercase.
	return strings.ToLower(a.Header)
}

func (a APIKey) matches(got string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(a.Key)) == 1
}

func (a APIKey) checkMetadata(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get(a.header())
	if len(vals) == 0 || !a.matches(vals[0]) {
		return status.Error(codes.Unauthenticated, "invalid api key")
	}
	return nil
}

// Unary returns a grpc.UnaryServerInterceptor enforcing the key.
func (a APIKey) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if a.enabled() {
			if err := a.checkMetadata(ctx); err != nil {
				return nil, err
			}
		}
		return handler(ctx, req)
	}
}

// Stream returns a grpc.StreamServerInterceptor enforcing the key.
func (a APIKey) Stream() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if a.enabled() {
			if err := a.checkMetadata(ss.Context()); err != nil {
				return err
			}
		}
		return handler(srv, ss)
	}
}

// Middleware rejects HTTP requests without the key with 401.
func (a APIKey) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.enabled() && !a.matches(r.Header.Get(a.header())) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid api key"}`)) //nolint:errcheck
			return
		}
		next.ServeHTTP(w, r)
	})
}
