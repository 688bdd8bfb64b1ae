// Package store keeps territory layouts consistent with a stream of entity
// changes.
//
// A [Store] owns the canonical entity records, one [layout.Result] and one
// [position.Position] per occupied zone, and a derived table holding the
// heaviest entity of every non-central zone. Those top entities are the
// central zone's occupants.
//
// # Ingestion
//
// [Store.Ingest] applies insert, update and delete events in order. Each
// applied event is classified by comparing the record before and after:
//
//	NEW_ENTITY      id was unknown
//	ENTITY_REMOVED  id was deleted
//	WEIGHT_CHANGE   weight differs (checked before zone)
//	ZONE_CHANGE     zone differs
//	ATTRIBUTE_ONLY  only payload fields differ
//	NO_OP           nothing differs, or an unknown id was deleted
//
// Membership-affecting kinds dirty the zones the entity left and entered,
// and the central zone when a top entity changed. Only dirty zones are laid
// out again. When the central boundary moves every position is resolved
// again; otherwise only zones whose layout changed are. A layout or position
// that comes out equal keeps its previous pointer, so callers can detect
// change by reference.
//
// Events that fail validation or name an unknown zone are dropped and
// logged; they never touch state and produce no notification. When the
// [LayoutFunc] fails for a zone, that zone keeps serving its previous
// layout while the rest of the batch proceeds.
//
// # Notifications
//
// Every ingestion call yields one [Notification] per applied event, sharing
// a batch id. The batch is kept as [Store.LastNotifications] and handed to
// the configured [Sink] after state is updated. [Visible] drops the kinds a
// user interface does not surface.
//
// # Feeds
//
// [Store.Attach] connects a [feed.Subscriber]; [Store.Reload] diffs a fresh
// listing from a [feed.Lister] against canonical state and ingests only the
// difference.
package store
