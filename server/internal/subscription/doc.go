// Package subscription keeps the webhook subscribers notified after every poll.
//
// A Registry maps generated ids to callback URLs. Each callback URL may be
// registered once. MemoryRegistry lives for the process lifetime and
// SQLiteRegistry keeps subscribers across restarts.
package subscription
