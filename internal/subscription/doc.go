// Package subscription watches feeds for new media and enqueues downloads.
// The manager owns the rules and their dedup ledgers; the scheduler polls on
// a timer and hands new entries to the download engine.
package subscription
