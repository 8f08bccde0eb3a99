// Package auth guards the pipewatch gRPC and HTTP surfaces with a shared API key.
//
// An APIKey value is built once from configuration and exposes a unary
// interceptor, a stream interceptor and an HTTP middleware. When Mode is not
// "apikey" or Key is empty every call passes through. Otherwise a missing or
// wrong key is rejected with codes.Unauthenticated (gRPC) or 401 (HTTP).
package auth
