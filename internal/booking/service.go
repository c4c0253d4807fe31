// Package booking orchestrates the booking lifecycle: validation, conflict
// gating, local persistence, best-effort remote writes, and reconciliation.
// The local store is authoritative for the caller; the remote source catches
// up in the background.
package booking

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"booker/internal/availability"
	"booker/internal/booking/validator"
	"booker/internal/reconcile"
	"booker/internal/storage"
	apperrors "booker/pkg/errors"
	"booker/pkg/logger"
	"booker/pkg/model"
)

const (
	localIDPrefix = "booking-"

	msgSlotTaken      = "This time slot is already booked. Please choose another time."
	msgPastDate       = "Cannot book appointments in the past."
	msgSyncInProgress = "Sync already in progress"
	msgBackendDown    = "Backend is not available"
)

var localIDPattern = regexp.MustCompile(`^booking-(\d+)$`)

// RemoteClient is the slice of the remote source the lifecycle needs.
type RemoteClient interface {
	Healthy(ctx context.Context) bool
	ListBookings(ctx context.Context) ([]model.Booking, error)
	CreateBooking(ctx context.Context, form model.BookingForm) (*model.Booking, error)
	UpdateBooking(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	CheckAvailability(ctx context.Context, date, clock string, duration int, excludeID string) (bool, error)
}

// Service is the Booking Lifecycle Manager. One instance per session; all
// the state the original kept in module-level globals (id counter, backend
// flag, sync-in-flight flag) lives here so instances never share state.
type Service struct {
	store     storage.Store
	remote    RemoteClient
	validator *validator.BookingValidator
	log       *logger.Logger
	now       func() time.Time

	// mu serializes every read-modify-write cycle against the store.
	mu     sync.Mutex
	nextID int

	backendAvailable atomic.Bool
	syncInFlight     atomic.Bool
	background       sync.WaitGroup
}

func NewService(store storage.Store, remote RemoteClient, v *validator.BookingValidator, log *logger.Logger) (*Service, error) {
	s := &Service{
		store:     store,
		remote:    remote,
		validator: v,
		log:       log,
		now:       time.Now,
	}

	bookings, err := store.Bookings()
	if err != nil {
		return nil, err
	}
	s.nextID = nextLocalSeq(bookings)
	return s, nil
}

// nextLocalSeq seeds the id counter from the highest booking-<n> suffix
// already present, so ids never collide after a reload.
func nextLocalSeq(bookings []model.Booking) int {
	next := 1
	for _, b := range bookings {
		m := localIDPattern.FindStringSubmatch(b.ID)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}

// CheckBackend probes the remote health endpoint and records the verdict.
func (s *Service) CheckBackend(ctx context.Context) bool {
	healthy := s.remote.Healthy(ctx)
	s.backendAvailable.Store(healthy)
	return healthy
}

// GetAll returns the local collection sorted ascending by date then time.
func (s *Service) GetAll() ([]model.Booking, error) {
	bookings, err := s.store.Bookings()
	if err != nil {
		return nil, err
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].Date+bookings[i].Time < bookings[j].Date+bookings[j].Time
	})
	return bookings, nil
}

func (s *Service) GetByID(id string) (*model.Booking, error) {
	bookings, err := s.store.Bookings()
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		if bookings[i].ID == id {
			return &bookings[i], nil
		}
	}
	return nil, apperrors.NotFoundWithID("Booking", id)
}

// GetByDate returns the bookings on a calendar day, sorted by time.
func (s *Service) GetByDate(date string) ([]model.Booking, error) {
	bookings, err := s.store.Bookings()
	if err != nil {
		return nil, err
	}
	var out []model.Booking
	for _, b := range bookings {
		if b.Date == date {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// Create validates the form, gates on the overlap check, writes locally,
// then mirrors to the remote best-effort. The local write is the one step
// that must succeed; everything after it degrades to pendingSync.
func (s *Service) Create(ctx context.Context, form model.BookingForm) (*model.Booking, error) {
	if err := s.validator.ValidateForm(&form); err != nil {
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"errors": err.Error()})
	}

	slot, err := availability.SlotFor(form.Date, form.Time, form.Duration)
	if err != nil {
		return nil, apperrors.FieldValidation("date", "Please enter a valid date")
	}
	if slot.Start.Before(s.now()) {
		return nil, apperrors.Conflict(msgPastDate, "date")
	}

	s.mu.Lock()
	bookings, err := s.store.Bookings()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !availability.IsAvailable(slot, bookings, "") {
		s.mu.Unlock()
		return nil, apperrors.Conflict(msgSlotTaken, "time")
	}

	now := s.now().UTC().Format(time.RFC3339)
	created := model.Booking{
		ID:        fmt.Sprintf("%s%d", localIDPrefix, s.nextID),
		Name:      form.Name,
		Email:     form.Email,
		Date:      form.Date,
		Time:      form.Time,
		Duration:  form.Duration,
		Notes:     form.Notes,
		Status:    model.StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveBookings(append(bookings, created)); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.nextID++
	s.mu.Unlock()

	s.log.Info("Booking created locally", "id", created.ID, "date", created.Date, "time", created.Time)

	result := created
	if s.backendAvailable.Load() {
		if remote, err := s.remote.CreateBooking(ctx, form); err != nil {
			s.log.Warn("Remote create failed, keeping local record", "id", created.ID, "error", err)
			s.markPendingSync()
		} else {
			// The remote record is canonical from here on.
			s.replaceLocal(created.ID, *remote)
			result = *remote
			s.log.Info("Booking mirrored to remote", "local_id", created.ID, "remote_id", remote.ID)
		}
	}

	s.triggerBackgroundSync()
	return &result, nil
}

// Update applies a patch to the local record, re-gates on availability when
// the interval changed, and mirrors best-effort. A missing id is a
// not-found error, without any state change.
func (s *Service) Update(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error) {
	if err := s.validator.ValidatePatch(&patch); err != nil {
		return nil, apperrors.Validation("Booking update validation failed", map[string]any{"errors": err.Error()})
	}

	s.mu.Lock()
	bookings, err := s.store.Bookings()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	idx := -1
	for i := range bookings {
		if bookings[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return nil, apperrors.NotFoundWithID("Booking", id)
	}

	updated := patch.Apply(bookings[idx])
	intervalChanged := patch.Date != nil || patch.Time != nil || patch.Duration != nil
	if intervalChanged {
		slot, err := availability.SlotFor(updated.Date, updated.Time, updated.Duration)
		if err != nil {
			s.mu.Unlock()
			return nil, apperrors.FieldValidation("date", "Please enter a valid date")
		}
		if slot.Start.Before(s.now()) {
			s.mu.Unlock()
			return nil, apperrors.Conflict(msgPastDate, "date")
		}
		if !availability.IsAvailable(slot, bookings, id) {
			s.mu.Unlock()
			return nil, apperrors.Conflict(msgSlotTaken, "time")
		}
	}

	updated.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	bookings[idx] = updated
	if err := s.store.SaveBookings(bookings); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.log.Info("Booking updated locally", "id", id)

	result := updated
	if s.backendAvailable.Load() {
		if remote, err := s.remote.UpdateBooking(ctx, id, patch); err != nil {
			s.log.Warn("Remote update failed, keeping local record", "id", id, "error", err)
			s.markPendingSync()
		} else {
			s.replaceLocal(id, *remote)
			result = *remote
		}
	}

	s.triggerBackgroundSync()
	return &result, nil
}

// Delete removes the booking locally first and reports whether it existed.
// The remote delete is best-effort and never rolls the local delete back.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	bookings, err := s.store.Bookings()
	if err != nil {
		s.mu.Unlock()
		return false, err
	}

	idx := -1
	for i := range bookings {
		if bookings[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return false, nil
	}

	bookings = append(bookings[:idx], bookings[idx+1:]...)
	if err := s.store.SaveBookings(bookings); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.mu.Unlock()

	s.log.Info("Booking deleted locally", "id", id)

	if s.backendAvailable.Load() {
		if err := s.remote.DeleteBooking(ctx, id); err != nil {
			s.log.Warn("Remote delete failed, local delete stands", "id", id, "error", err)
			s.markPendingSync()
		}
	}

	s.triggerBackgroundSync()
	return true, nil
}

// IsTimeSlotAvailable checks locally first; a local conflict is final. When
// the local check passes and the remote is believed reachable, the remote
// gets a second opinion and may veto. A remote error falls back to the
// local verdict.
func (s *Service) IsTimeSlotAvailable(ctx context.Context, date, clock string, duration int, excludeID string) (bool, error) {
	slot, err := availability.SlotFor(date, clock, duration)
	if err != nil {
		return false, apperrors.InvalidInput("invalid date or time")
	}

	bookings, err := s.store.Bookings()
	if err != nil {
		return false, err
	}
	if !availability.IsAvailable(slot, bookings, excludeID) {
		return false, nil
	}

	if s.backendAvailable.Load() {
		available, err := s.remote.CheckAvailability(ctx, date, clock, duration, excludeID)
		if err != nil {
			s.log.Warn("Remote availability check failed, using local verdict", "error", err)
			return true, nil
		}
		return available, nil
	}
	return true, nil
}

// Sync is the explicit reconciliation entry point. It is single-flight: a
// concurrent call returns a failed result immediately instead of queueing.
// On any failure the local store is left untouched.
func (s *Service) Sync(ctx context.Context) model.SyncResult {
	if !s.syncInFlight.CompareAndSwap(false, true) {
		return model.SyncResult{Success: false, Error: msgSyncInProgress}
	}
	defer s.syncInFlight.Store(false)

	if !s.CheckBackend(ctx) {
		return model.SyncResult{Success: false, Error: msgBackendDown}
	}

	remote, err := s.remote.ListBookings(ctx)
	if err != nil {
		s.log.Warn("Sync aborted, cannot list remote bookings", "error", err)
		return model.SyncResult{Success: false, Error: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := s.store.Bookings()
	if err != nil {
		return model.SyncResult{Success: false, Error: err.Error()}
	}

	merged := reconcile.Merge(local, remote)
	if err := s.store.SaveBookings(merged); err != nil {
		return model.SyncResult{Success: false, Error: err.Error()}
	}

	now := s.now().UTC().Format(time.RFC3339)
	meta := model.SyncMetadata{LastSync: &now, PendingSync: false}
	if len(remote) > 0 {
		meta.LastSyncID = &remote[0].ID
	}
	if err := s.store.SaveSyncMetadata(meta); err != nil {
		return model.SyncResult{Success: false, Error: err.Error()}
	}

	s.nextID = nextLocalSeq(merged)
	s.log.Info("Sync completed", "local", len(local), "remote", len(remote), "merged", len(merged))
	return model.SyncResult{Success: true}
}

// SyncStatus reports the persisted metadata plus the in-memory backend flag.
func (s *Service) SyncStatus() (model.SyncStatus, error) {
	meta, err := s.store.SyncMetadata()
	if err != nil {
		return model.SyncStatus{}, err
	}
	return model.SyncStatus{
		LastSync:         meta.LastSync,
		PendingSync:      meta.PendingSync,
		BackendAvailable: s.backendAvailable.Load(),
	}, nil
}

// Clear wipes the local store and resets the id sequence. The remote source
// is never touched.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.nextID = 1
	s.log.Info("Local store cleared")
	return nil
}

// Wait blocks until all fire-and-forget syncs spawned so far have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// triggerBackgroundSync starts a full reconciliation without making the
// caller wait. Its failure never affects the mutation that spawned it; the
// only observable effect is the pendingSync flag.
func (s *Service) triggerBackgroundSync() {
	if !s.backendAvailable.Load() {
		return
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if res := s.Sync(context.Background()); !res.Success && res.Error != msgSyncInProgress {
			s.log.Warn("Background sync failed", "error", res.Error)
			s.markPendingSync()
		}
	}()
}

// markPendingSync records that a local mutation has not been confirmed
// against the remote. Storage failures here are logged, not propagated:
// the user-visible operation already succeeded.
func (s *Service) markPendingSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.store.SyncMetadata()
	if err != nil {
		s.log.Error("Cannot read sync metadata", "error", err)
		return
	}
	meta.PendingSync = true
	if err := s.store.SaveSyncMetadata(meta); err != nil {
		s.log.Error("Cannot persist pendingSync flag", "error", err)
	}
}

// replaceLocal swaps the record stored under localID for the canonical
// remote version.
func (s *Service) replaceLocal(localID string, canonical model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bookings, err := s.store.Bookings()
	if err != nil {
		s.log.Error("Cannot read store to adopt remote record", "error", err)
		return
	}
	for i := range bookings {
		if bookings[i].ID == localID {
			bookings[i] = canonical
			break
		}
	}
	if err := s.store.SaveBookings(bookings); err != nil {
		s.log.Error("Cannot persist canonical remote record", "local_id", localID, "error", err)
	}
}
