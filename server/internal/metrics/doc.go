// Package metrics exposes poller and delivery counters in the Prometheus text
// exposition format.
//
// Registry implements poller.Publisher and provides ObserveDelivery for the
// notifier's OnResult hook. Families are built as client_model protobufs and
// rendered with expfmt, so no client library registry is involved.
//
// Exposed families:
//
//	pipewatch_polls_total{project}
//	pipewatch_poll_failures_total{project}
//	pipewatch_notifications_total{mode}
//	pipewatch_webhook_deliveries_total{type,result}
//	pipewatch_ledger_entries{project,engine}
//	pipewatch_window_records{project,kind}
//	pipewatch_subscribers
package metrics
