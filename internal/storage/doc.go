// Package storage persists the durable slotwatch state: watched target
// dates, the inbound message cursor and notification counters.
//
// Every driver stores three logical keys as JSON and replaces each one
// atomically. Loading is lenient: malformed entries are dropped and reported,
// never fatal.
package storage
