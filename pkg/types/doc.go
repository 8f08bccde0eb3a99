// Package types defines the records and statuses shared by the poller, the
// status engines and the HTTP surface.
//
// PipelineRecord is the provider-neutral form of one build or deployment.
// PipelineStatus is the immutable {event, mode, data} value produced by the
// engines and delivered to subscribers.
package types
