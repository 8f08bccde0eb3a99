package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pipewatch/pipewatch/server/internal/store"
	"github.com/pipewatch/pipewatch/server/internal/subscription"
)

// DefaultRoot is the first path segment used when Options.Root is empty.
const DefaultRoot = "pipeline"

// Options wires the handler to its dependencies.
type Options struct {
	// Root is the first path segment of the REST routes.
	Root     string
	Store    *store.Store
	Registry subscription.Registry

	// Guard wraps the /{root} routes, typically auth.APIKey.Middleware.
	Guard func(http.Handler) http.Handler

	// Metrics and Stream are mounted at /metrics and /ws/stream when set.
	Metrics http.Handler
	Stream  http.Handler

	Logger *slog.Logger
}

// Handler serves the pipewatch HTTP surface.
type Handler struct {
	store    *store.Store
	registry subscription.Registry
	log      *slog.Logger
	router   chi.Router
}

// New creates a Handler and registers all routes.
func New(opts Options) *Handler {
	h := &Handler{
		store:    opts.Store,
		registry: opts.Registry,
		log:      opts.Logger,
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	root := strings.Trim(opts.Root, "/")
	if root == "" {
		root = DefaultRoot
	}

	r := chi.NewRouter()
	r.NotFound(fallback)
	r.MethodNotAllowed(fallback)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.Stream != nil {
		r.Method(http.MethodGet, "/ws/stream", opts.Stream)
	}

	r.Route("/"+root, func(r chi.Router) {
		r.NotFound(fallback)
		r.MethodNotAllowed(fallback)
		if opts.Guard != nil {
			r.Use(opts.Guard)
		}
		r.Post("/subscription", h.subscribe)
		r.Delete("/subscription", h.unsubscribe)
		r.Get("/subscription/count", h.count)
		r.Get("/status", h.listStatus)
		r.Get("/status/{project}", h.getStatus)
	})

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// fallback answers unrouted requests: reads and replacements are not
// allowed, anything else is a bad request.
func fallback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodDelete:
		jsonErr(w, http.StatusBadRequest, "bad request")
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// subscribe handles POST /{root}/subscription.
func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	err := decodeRequest(r, &req, map[string]*string{"callbackUrl": &req.CallbackURL, "type": &req.Type})
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CallbackURL == "" {
		jsonErr(w, http.StatusBadRequest, "callbackUrl is required")
		return
	}

	id, err := h.registry.Subscribe(r.Context(), subscription.Subscriber{
		CallbackURL: req.CallbackURL,
		Kind:        subscription.Kind(req.Type),
	})
	switch {
	case errors.Is(err, subscription.ErrInvalid), errors.Is(err, subscription.ErrDuplicateURL):
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.Error("api: subscribe failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("api: subscribed", "id", id, "type", req.Type)
	jsonResp(w, http.StatusCreated, id)
}

// maxFormBody caps form-encoded request bodies.
const maxFormBody = 64 << 10

// decodeRequest fills dst from a JSON body, or fills the fields named in form
// when the body is form-encoded. The form body is read directly because
// Request.ParseForm ignores DELETE bodies.
func decodeRequest(r *http.Request, dst any, form map[string]*string) error {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/x-www-form-urlencoded" {
		return json.NewDecoder(r.Body).Decode(dst)
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxFormBody))
	if err != nil {
		return err
	}
	vals, err := url.ParseQuery(string(b))
	if err != nil {
		return err
	}
	for k, p := range form {
		*p = vals.Get(k)
	}
	return nil
}

// unsubscribe handles DELETE /{root}/subscription.
func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := decodeRequest(r, &req, map[string]*string{"id": &req.ID}); err != nil || req.ID == "" {
		jsonErr(w, http.StatusBadRequest, "id is required")
		return
	}

	err := h.registry.Unsubscribe(r.Context(), req.ID)
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.Error("api: unsubscribe failed", "id", req.ID, "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("api: unsubscribed", "id", req.ID)
	jsonResp(w, http.StatusOK, true)
}

// count handles GET /{root}/subscription/count.
func (h *Handler) count(w http.ResponseWriter, r *http.Request) {
	n, err := h.registry.Count(r.Context())
	if err != nil {
		h.log.Error("api: count subscribers failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonResp(w, http.StatusOK, CountResponse{Subscribed: n})
}

// listStatus handles GET /{root}/status.
func (h *Handler) listStatus(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// getStatus handles GET /{root}/status/{project}. Unknown and stale projects
// are both 404.
func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	e, ok := h.store.Live(chi.URLParam(r, "project"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "project not found")
		return
	}
	jsonResp(w, http.StatusOK, toProjectStatus(e))
}

// BuildSnapshot collects the live entries of st.
func BuildSnapshot(st *store.Store) StatusSnapshot {
	entries := st.List()
	projects := make([]ProjectStatus, 0, len(entries))
	for _, e := range entries {
		projects = append(projects, toProjectStatus(e))
	}
	return StatusSnapshot{
		Projects:    projects,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func toProjectStatus(e *store.Entry) ProjectStatus {
	c := e.Cycle
	ps := ProjectStatus{
		Project:   c.Project,
		Statuses:  c.Statuses(),
		Builds:    c.Builds,
		Deploys:   c.Deploys,
		PolledAt:  c.At.UTC().Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if c.Err != nil {
		ps.Error = c.Err.Error()
	}
	return ps
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
