package metrics

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/pipewatch/pipewatch/server/internal/poller"
	"github.com/pipewatch/pipewatch/server/internal/subscription"
)

const namespace = "pipewatch"

// series is a set of labelled values belonging to one family.
type series struct {
	labels []string
	values map[string]*sample
}

type sample struct {
	labels []string
	value  float64
}

func newSeries(labels ...string) *series {
	return &series{labels: labels, values: make(map[string]*sample)}
}

func (s *series) add(delta float64, labelValues ...string) {
	s.at(labelValues...).value += delta
}

func (s *series) set(v float64, labelValues ...string) {
	s.at(labelValues...).value = v
}

func (s *series) at(labelValues ...string) *sample {
	key := ""
	for _, v := range labelValues {
		key += v + "\xff"
	}
	sm, ok := s.values[key]
	if !ok {
		sm = &sample{labels: labelValues}
		s.values[key] = sm
	}
	return sm
}

// Registry accumulates pipewatch metrics. It is safe for concurrent use.
type Registry struct {
	subs subscription.Registry

	mu            sync.Mutex
	polls         *series
	pollFailures  *series
	notifications *series
	deliveries    *series
	ledger        *series
	window        *series
}

// New creates a Registry. subs may be nil, in which case the subscriber gauge
// is omitted.
func New(subs subscription.Registry) *Registry {
	return &Registry{
		subs:          subs,
		polls:         newSeries("project"),
		pollFailures:  newSeries("project"),
		notifications: newSeries("mode"),
		deliveries:    newSeries("type", "result"),
		ledger:        newSeries("project", "engine"),
		window:        newSeries("project", "kind"),
	}
}

// Publish records one poll cycle. It satisfies poller.Publisher.
func (r *Registry) Publish(c poller.Cycle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls.add(1, c.Project)
	if c.Err != nil {
		r.pollFailures.add(1, c.Project)
		return
	}
	// Touch the failure series so it is exported as zero.
	r.pollFailures.add(0, c.Project)
	if c.Notification != nil {
		r.notifications.add(1, string(c.Notification.Mode()))
	}
	for engine, n := range c.LedgerEntries {
		r.ledger.set(float64(n), c.Project, engine)
	}
	r.window.set(float64(c.Builds), c.Project, "builds")
	r.window.set(float64(c.Deploys), c.Project, "deploys")
}

// ObserveDelivery records one webhook delivery attempt.
func (r *Registry) ObserveDelivery(kind subscription.Kind, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries.add(1, string(kind), result)
}

// Families returns a snapshot of all metric families, sorted by name.
func (r *Registry) Families(ctx context.Context) []*dto.MetricFamily {
	r.mu.Lock()
	out := []*dto.MetricFamily{
		family("polls_total", "Completed poll cycles.", dto.MetricType_COUNTER, r.polls),
		family("poll_failures_total", "Poll cycles that yielded no result because of an error.", dto.MetricType_COUNTER, r.pollFailures),
		family("notifications_total", "One-shot notifications emitted, by mode.", dto.MetricType_COUNTER, r.notifications),
		family("webhook_deliveries_total", "Webhook delivery attempts, by subscriber type and result.", dto.MetricType_COUNTER, r.deliveries),
		family("ledger_entries", "Remembered notification keys.", dto.MetricType_GAUGE, r.ledger),
		family("window_records", "Records in the latest poll window.", dto.MetricType_GAUGE, r.window),
	}
	r.mu.Unlock()

	if r.subs != nil {
		if n, err := r.subs.Count(ctx); err == nil {
			s := newSeries()
			s.set(float64(n))
			out = append(out, family("subscribers", "Registered webhook subscribers.", dto.MetricType_GAUGE, s))
		} else {
			slog.Warn("metrics: count subscribers failed", "err", err)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// WriteText renders all families in the text exposition format. Families
// without samples are skipped.
func (r *Registry) WriteText(ctx context.Context, w io.Writer) error {
	for _, mf := range r.Families(ctx) {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// ServeHTTP serves GET /metrics.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var buf bytes.Buffer
	if err := r.WriteText(req.Context(), &buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	w.Write(buf.Bytes()) //nolint:errcheck
}

// family converts s to a MetricFamily. Callers must hold the registry lock.
func family(name, help string, typ dto.MetricType, s *series) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: proto.String(namespace + "_" + name),
		Help: proto.String(help),
		Type: typ.Enum(),
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sm := s.values[k]
		m := &dto.Metric{}
		for i, name := range s.labels {
			m.Label = append(m.Label, &dto.LabelPair{
				Name:  proto.String(name),
				Value: proto.String(sm.labels[i]),
			})
		}
		switch typ {
		case dto.MetricType_COUNTER:
			m.Counter = &dto.Counter{Value: proto.Float64(sm.value)}
		default:
			m.Gauge = &dto.Gauge{Value: proto.Float64(sm.value)}
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}
