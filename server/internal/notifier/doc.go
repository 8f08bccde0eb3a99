// Package notifier posts poll results to every registered subscriber.
//
// Deliveries run concurrently and Notify waits for all of them. A failing
// subscriber is logged and reported to the OnResult hook. It never affects
// the other subscribers or the caller.
//
// Payload format depends on the subscriber kind:
//
//	http   the raw JSON array of statuses
//	slack  {"text": ...} with one line per status
//	teams  a MessageCard with one section per status
package notifier
