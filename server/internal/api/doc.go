// Package api implements the pipewatch HTTP surface on a chi router.
//
// New(Options) returns an http.Handler that serves:
//
//	POST   /{root}/subscription        {callbackUrl, type?} → 201 "<id>"
//	DELETE /{root}/subscription        {id} → 200 true
//	GET    /{root}/subscription/count  {"subscribed": n}
//	GET    /{root}/status              latest cycle per live project
//	GET    /{root}/status/{project}    one project; 404 if unknown or stale
//	GET    /metrics                    Prometheus text exposition (optional)
//	GET    /ws/stream                  WebSocket status hub (optional)
//
// A missing callbackUrl, an unknown type, a duplicate URL or an unknown id is
// a 400. Unrouted GET and PUT requests get 405, unrouted POST and DELETE get
// 400. Every response is JSON.
//
// Options.Guard, usually the API-key middleware, wraps only the /{root} routes.
package api
