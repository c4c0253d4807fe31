// Package storage is the client's durable local store: the collection the
// UI treats as authoritative between syncs.
package storage

import "booker/pkg/model"

// Store persists the booking collection and its sync metadata as two
// independently keyed blobs. SaveBookings is a full replace. When the
// backing store is unavailable every read returns empty and every write is
// a no-op, so the client keeps working in memory-only degraded mode.
type Store interface {
	Bookings() ([]model.Booking, error)
	SaveBookings(bookings []model.Booking) error
	SyncMetadata() (model.SyncMetadata, error)
	SaveSyncMetadata(meta model.SyncMetadata) error
	Clear() error
	Available() bool
}
