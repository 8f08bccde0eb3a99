package notifier

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pipewatch/pipewatch/pkg/types"
	"github.com/pipewatch/pipewatch/server/internal/subscription"
)

const defaultTimeout = 10 * time.Second

// Options configures a Notifier. Zero values select the defaults.
type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
	// OnResult is called once per delivery attempt with its outcome.
	OnResult func(kind subscription.Kind, err error)
}

// Notifier fans poll results out to the subscribers of a Registry.
type Notifier struct {
	registry subscription.Registry
	client   *http.Client
	log      *slog.Logger
	onResult func(subscription.Kind, error)
	now      func() time.Time
}

// New creates a Notifier reading subscribers from registry.
func New(registry subscription.Registry, opts Options) *Notifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		registry: registry,
		client:   &http.Client{Timeout: timeout},
		log:      log,
		onResult: opts.OnResult,
		now:      time.Now,
	}
}

// Notify delivers payload to every subscriber without a project label.
func (n *Notifier) Notify(ctx context.Context, payload []types.PipelineStatus) {
	n.deliverAll(ctx, "", payload)
}

// For returns a notifier that labels chat messages with project.
func (n *Notifier) For(project string) *ProjectNotifier {
	return &ProjectNotifier{n: n, project: project}
}

// ProjectNotifier is a Notifier bound to one project.
type ProjectNotifier struct {
	n       *Notifier
	project string
}

func (p *ProjectNotifier) Notify(ctx context.Context, payload []types.PipelineStatus) {
	p.n.deliverAll(ctx, p.project, payload)
}

func (n *Notifier) deliverAll(ctx context.Context, project string, payload []types.PipelineStatus) {
	subs, err := n.registry.List(ctx)
	if err != nil {
		n.log.Error("notifier: list subscribers failed", "err", err)
		return
	}
	if len(subs) == 0 || len(payload) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s subscription.Subscriber) {
			defer wg.Done()
			err := n.deliver(ctx, s, project, payload)
			if n.onResult != nil {
				n.onResult(s.Kind, err)
			}
			if err != nil {
				n.log.Error("notifier: webhook delivery failed",
					"subscriber", s.ID,
					"type", s.Kind,
					"err", err,
				)
				return
			}
			n.log.Debug("notifier: webhook delivered", "subscriber", s.ID, "type", s.Kind)
		}(s)
	}
	wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, s subscription.Subscriber, project string, payload []types.PipelineStatus) error {
	var (
		body []byte
		err  error
	)
	switch s.Kind {
	case subscription.KindSlack:
		body, err = slackBody(project, payload, n.now())
	case subscription.KindTeams:
		body, err = teamsBody(project, payload, n.now())
	case subscription.KindHTTP, "":
		body, err = httpBody(payload)
	default:
		return fmt.Errorf("unknown webhook type %q", s.Kind)
	}
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return n.post(ctx, s.CallbackURL, body)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
