// Package reconcile merges the local store and the remote source into one
// consistent booking set. The caller confirms remote availability first;
// Merge is never fed partial remote data.
package reconcile

import (
	"strings"

	"booker/pkg/model"
)

// contentKey identifies the logical booking regardless of which store
// assigned its id. An optimistic local write and its later remote
// counterpart carry different ids but the same five fields.
type contentKey struct {
	name     string
	email    string
	date     string
	time     string
	duration int
}

func keyOf(b model.Booking) contentKey {
	return contentKey{
		name:     strings.ToLower(strings.TrimSpace(b.Name)),
		email:    strings.ToLower(strings.TrimSpace(b.Email)),
		date:     b.Date,
		time:     b.Time,
		duration: b.Duration,
	}
}

// Merge unifies local and remote bookings. Remote wins for any id present
// in both, and a local booking whose content matches a remote one is
// dropped in favour of the remote record even when the ids differ.
// Output order is not significant; callers sort for presentation.
func Merge(local, remote []model.Booking) []model.Booking {
	byID := make(map[string]model.Booking, len(local)+len(remote))
	for _, b := range local {
		byID[b.ID] = b
	}
	for _, b := range remote {
		byID[b.ID] = b
	}

	remoteContent := make(map[contentKey]string, len(remote))
	for _, b := range remote {
		remoteContent[keyOf(b)] = b.ID
	}

	merged := make([]model.Booking, 0, len(byID))
	for id, b := range byID {
		if remoteID, ok := remoteContent[keyOf(b)]; ok && remoteID != id {
			// Same logical booking materialized under a local id; the
			// remote copy is already in the map under its own id.
			continue
		}
		merged = append(merged, b)
	}
	return merged
}
