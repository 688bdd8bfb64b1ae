// Package feed defines the boundary between territory and the data sources
// that drive it.
//
// A source has a query side, [Lister], used to seed or reload the store, and
// a streaming side, [Subscriber], that delivers insert, update and delete
// [Event] values one at a time. Payloads arriving as bytes go through
// [Decode], which validates them against an embedded JSON schema and turns
// them into the closed [Event] type before anything else sees them.
//
// [Memory] is the in-process implementation. Backends for MongoDB, Redis and
// SQLite live in the mongofeed, redisfeed and sqlitefeed subpackages, and
// replay reads and records event logs.
package feed
