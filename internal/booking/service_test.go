package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"booker/internal/booking/validator"
	apperrors "booker/pkg/errors"
	"booker/pkg/logger"
	"booker/pkg/model"
)

// memStore is an in-memory storage.Store for unit tests.
type memStore struct {
	mu       sync.Mutex
	bookings []model.Booking
	meta     model.SyncMetadata
	failSave bool
}

func (m *memStore) Bookings() ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Booking, len(m.bookings))
	copy(out, m.bookings)
	return out, nil
}

func (m *memStore) SaveBookings(bookings []model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return apperrors.Storage("disk full", nil)
	}
	m.bookings = make([]model.Booking, len(bookings))
	copy(m.bookings, bookings)
	return nil
}

func (m *memStore) SyncMetadata() (model.SyncMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta, nil
}

func (m *memStore) SaveSyncMetadata(meta model.SyncMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = meta
	return nil
}

func (m *memStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = nil
	m.meta = model.SyncMetadata{}
	return nil
}

func (m *memStore) Available() bool { return true }

// mockRemote is a func-field remote client.
type mockRemote struct {
	healthyFunc func(ctx context.Context) bool
	listFunc    func(ctx context.Context) ([]model.Booking, error)
	createFunc  func(ctx context.Context, form model.BookingForm) (*model.Booking, error)
	updateFunc  func(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error)
	deleteFunc  func(ctx context.Context, id string) error
	checkFunc   func(ctx context.Context, date, clock string, duration int, excludeID string) (bool, error)
}

func (m *mockRemote) Healthy(ctx context.Context) bool {
	if m.healthyFunc != nil {
		return m.healthyFunc(ctx)
	}
	return false
}

func (m *mockRemote) ListBookings(ctx context.Context) ([]model.Booking, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockRemote) CreateBooking(ctx context.Context, form model.BookingForm) (*model.Booking, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, form)
	}
	return nil, apperrors.Network("no remote", nil)
}

func (m *mockRemote) UpdateBooking(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, patch)
	}
	return nil, apperrors.Network("no remote", nil)
}

func (m *mockRemote) DeleteBooking(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return apperrors.Network("no remote", nil)
}

func (m *mockRemote) CheckAvailability(ctx context.Context, date, clock string, duration int, excludeID string) (bool, error) {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, date, clock, duration, excludeID)
	}
	return false, apperrors.Network("no remote", nil)
}

var testNow = time.Date(2025, 11, 1, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store *memStore, remote *mockRemote) *Service {
	t.Helper()
	if store == nil {
		store = &memStore{}
	}
	if remote == nil {
		remote = &mockRemote{}
	}
	s, err := NewService(store, remote, validator.New(logger.Discard()), logger.Discard())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	s.now = func() time.Time { return testNow }
	return s
}

func aliceForm() model.BookingForm {
	return model.BookingForm{
		Name: "Alice", Email: "alice@example.com",
		Date: "2025-11-15", Time: "09:00", Duration: 60,
	}
}

func TestCreate_OfflineSucceedsLocally(t *testing.T) {
	store := &memStore{}
	s := newTestService(t, store, nil)

	b, err := s.Create(context.Background(), aliceForm())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.ID != "booking-1" {
		t.Errorf("expected booking-1, got %q", b.ID)
	}
	if b.Status != model.StatusConfirmed {
		t.Errorf("expected confirmed, got %q", b.Status)
	}

	stored, _ := store.Bookings()
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored booking, got %d", len(stored))
	}
}

func TestCreate_ConflictInsideExisting(t *testing.T) {
	s := newTestService(t, &memStore{}, nil)
	ctx := context.Background()

	if _, err := s.Create(ctx, aliceForm()); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := s.Create(ctx, model.BookingForm{
		Name: "Bob", Email: "bob@example.com",
		Date: "2025-11-15", Time: "09:30", Duration: 30,
	})
	if !apperrors.Is(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var appErr *apperrors.AppError
	if ok := errorsAs(err, &appErr); !ok || appErr.Details["field"] != "time" {
		t.Errorf("conflict must point at the time field, got %+v", appErr)
	}
}

func TestCreate_BackToBackSlotsAreFree(t *testing.T) {
	s := newTestService(t, &memStore{}, nil)
	ctx := context.Background()

	if _, err := s.Create(ctx, aliceForm()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.Create(ctx, model.BookingForm{
		Name: "Bob", Email: "bob@example.com",
		Date: "2025-11-15", Time: "10:00", Duration: 30,
	}); err != nil {
		t.Fatalf("touching slot must be free: %v", err)
	}
}

func TestCreate_PastDateRejected(t *testing.T) {
	s := newTestService(t, &memStore{}, nil)

	form := aliceForm()
	form.Date = "2025-10-01"
	_, err := s.Create(context.Background(), form)
	if !apperrors.Is(err, apperrors.CodeConflict) {
		t.Fatalf("expected past-date conflict, got %v", err)
	}
	var appErr *apperrors.AppError
	if ok := errorsAs(err, &appErr); !ok || appErr.Details["field"] != "date" {
		t.Errorf("past-date must point at the date field, got %+v", appErr)
	}
}

func TestCreate_ValidationAbortsBeforeStore(t *testing.T) {
	store := &memStore{}
	s := newTestService(t, store, nil)

	form := aliceForm()
	form.Email = "broken"
	if _, err := s.Create(context.Background(), form); !apperrors.Is(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if stored, _ := store.Bookings(); len(stored) != 0 {
		t.Error("validation failure must not touch the store")
	}
}

func TestCreate_AdoptsRemoteRecord(t *testing.T) {
	store := &memStore{}
	remote := &mockRemote{
		healthyFunc: func(ctx context.Context) bool { return true },
		createFunc: func(ctx context.Context, form model.BookingForm) (*model.Booking, error) {
			return &model.Booking{
				ID: "remote-9", Name: form.Name, Email: form.Email,
				Date: form.Date, Time: form.Time, Duration: form.Duration,
				Status: model.StatusConfirmed,
			}, nil
		},
	}
	s := newTestService(t, store, remote)
	s.CheckBackend(context.Background())

	b, err := s.Create(context.Background(), aliceForm())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.Wait()

	if b.ID != "remote-9" {
		t.Errorf("remote id must become canonical, got %q", b.ID)
	}
	stored, _ := store.Bookings()
	if len(stored) != 1 || stored[0].ID != "remote-9" {
		t.Errorf("store must hold the canonical record, got %+v", stored)
	}
}

func TestCreate_RemoteFailureKeepsLocalAndFlagsPending(t *testing.T) {
	store := &memStore{}
	remote := &mockRemote{
		healthyFunc: func(ctx context.Context) bool { return true },
		createFunc: func(ctx context.Context, form model.BookingForm) (*model.Booking, error) {
			return nil, apperrors.Timeout("remote did not respond within 5s")
		},
		listFunc: func(ctx context.Context) ([]model.Booking, error) {
			return nil, apperrors.Network("down", nil)
		},
	}
	s := newTestService(t, store, remote)
	s.CheckBackend(context.Background())

	b, err := s.Create(context.Background(), aliceForm())
	if err != nil {
		t.Fatalf("remote failure must not fail the create: %v", err)
	}
	s.Wait()

	if b.ID != "booking-1" {
		t.Errorf("local record must stand, got %q", b.ID)
	}
	meta, _ := store.SyncMetadata()
	if !meta.PendingSync {
		t.Error("pendingSync must be set after a failed remote write")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	s := newTestService(t, &memStore{}, nil)
	name := "Zed"
	_, err := s.Update(context.Background(), "booking-404", model.BookingPatch{Name: &name})
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdate_SelfExclusionOnUnchangedInterval(t *testing.T) {
	s := newTestService(t, &memStore{}, nil)
	ctx := context.Background()
	b, err := s.Create(ctx, aliceForm())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Re-submitting the same interval with only a notes change must not
	// conflict with the booking's own slot.
	notes := "bring documents"
	sameTime := "09:00"
	updated, err := s.Update(ctx, b.ID, model.BookingPatch{Notes: &notes, Time: &sameTime})
	if err != nil {
		t.Fatalf("self-overlap must be excluded: %v", err)
	}
	if updated.Notes != notes {
		t.Errorf("patch not applied: %+v", updated)
	}
}

func TestUpdate_ConflictWithOtherBooking(t *testing.T) {
	s := newTestService(t, &memStore{}, nil)
	ctx := context.Background()
	if _, err := s.Create(ctx, aliceForm()); err != nil {
		t.Fatal(err)
	}
	b2, err := s.Create(ctx, model.BookingForm{
		Name: "Bob", Email: "bob@example.com",
		Date: "2025-11-15", Time: "11:00", Duration: 30,
	})
	if err != nil {
		t.Fatal(err)
	}

	clash := "09:30"
	if _, err := s.Update(ctx, b2.ID, model.BookingPatch{Time: &clash}); !apperrors.Is(err, apperrors.CodeConflict) {
		t.Errorf("expected conflict moving into an occupied slot, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := &memStore{}
	s := newTestService(t, store, nil)
	ctx := context.Background()
	b, err := s.Create(ctx, aliceForm())
	if err != nil {
		t.Fatal(err)
	}

	ok, err := s.Delete(ctx, b.ID)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if stored, _ := store.Bookings(); len(stored) != 0 {
		t.Error("booking must be gone locally")
	}

	ok, err = s.Delete(ctx, b.ID)
	if err != nil || ok {
		t.Errorf("second delete must report false, got %v, %v", ok, err)
	}
}

func TestDelete_RemoteFailureDoesNotRollBack(t *testing.T) {
	store := &memStore{}
	remote := &mockRemote{
		healthyFunc: func(ctx context.Context) bool { return true },
		createFunc: func(ctx context.Context, form model.BookingForm) (*model.Booking, error) {
			return nil, apperrors.Network("down", nil)
		},
		deleteFunc: func(ctx context.Context, id string) error {
			return apperrors.Network("down", nil)
		},
		listFunc: func(ctx context.Context) ([]model.Booking, error) {
			return nil, apperrors.Network("down", nil)
		},
	}
	s := newTestService(t, store, remote)
	s.CheckBackend(context.Background())

	b, err := s.Create(context.Background(), aliceForm())
	if err != nil {
		t.Fatal(err)
	}
	s.Wait()

	ok, err := s.Delete(context.Background(), b.ID)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	s.Wait()

	if stored, _ := store.Bookings(); len(stored) != 0 {
		t.Error("local delete must stand despite remote failure")
	}
	meta, _ := store.SyncMetadata()
	if !meta.PendingSync {
		t.Error("pendingSync must be set after a failed remote delete")
	}
}

func TestGetAll_SortedByDateThenTime(t *testing.T) {
	store := &memStore{bookings: []model.Booking{
		{ID: "b1", Date: "2025-11-11", Time: "10:00"},
		{ID: "b2", Date: "2025-11-10", Time: "09:00"},
		{ID: "b3", Date: "2025-11-10", Time: "08:00"},
	}}
	s := newTestService(t, store, nil)

	got, err := s.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	wantOrder := []string{"b3", "b2", "b1"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("order mismatch at %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestSync_BackendUnreachableLeavesStoreUntouched(t *testing.T) {
	store := &memStore{bookings: []model.Booking{{ID: "booking-1", Name: "Alice"}}}
	remote := &mockRemote{
		healthyFunc: func(ctx context.Context) bool { return false },
	}
	s := newTestService(t, store, remote)

	res := s.Sync(context.Background())
	if res.Success {
		t.Fatal("sync against unreachable backend must fail")
	}

	stored, _ := store.Bookings()
	if len(stored) != 1 || stored[0].ID != "booking-1" {
		t.Errorf("store must be untouched, got %+v", stored)
	}
	meta, _ := store.SyncMetadata()
	if meta.LastSync != nil {
		t.Error("failed sync must not record lastSync")
	}
}

func TestSync_MergesAndUpdatesMetadata(t *testing.T) {
	store := &memStore{bookings: []model.Booking{
		{ID: "booking-1", Name: "Alice", Email: "a@x.com", Date: "2025-11-15", Time: "09:00", Duration: 60},
	}}
	remote := &mockRemote{
		healthyFunc: func(ctx context.Context) bool { return true },
		listFunc: func(ctx context.Context) ([]model.Booking, error) {
			return []model.Booking{
				{ID: "remote-9", Name: "Alice", Email: "a@x.com", Date: "2025-11-15", Time: "09:00", Duration: 60},
				{ID: "remote-10", Name: "Carol", Email: "c@x.com", Date: "2025-11-16", Time: "10:00", Duration: 30},
			}, nil
		},
	}
	s := newTestService(t, store, remote)

	res := s.Sync(context.Background())
	if !res.Success {
		t.Fatalf("sync failed: %s", res.Error)
	}

	stored, _ := store.Bookings()
	if len(stored) != 2 {
		t.Fatalf("expected 2 bookings after dedup merge, got %d: %+v", len(stored), stored)
	}
	for _, b := range stored {
		if b.ID == "booking-1" {
			t.Error("local duplicate must be replaced by the remote record")
		}
	}

	meta, _ := store.SyncMetadata()
	if meta.LastSync == nil || meta.PendingSync {
		t.Errorf("metadata not updated: %+v", meta)
	}
	if meta.LastSyncID == nil || *meta.LastSyncID != "remote-9" {
		t.Errorf("lastSyncId must record the first remote booking, got %+v", meta.LastSyncID)
	}
}

func TestSync_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	remote := &mockRemote{
		healthyFunc: func(ctx context.Context) bool {
			close(started)
			<-release
			return true
		},
		listFunc: func(ctx context.Context) ([]model.Booking, error) { return nil, nil },
	}
	s := newTestService(t, &memStore{}, remote)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Sync(context.Background())
	}()

	<-started
	res := s.Sync(context.Background())
	if res.Success || res.Error != "Sync already in progress" {
		t.Errorf("re-entrant sync must be rejected, got %+v", res)
	}
	close(release)
	wg.Wait()
}

func TestNextIDSeededFromStore(t *testing.T) {
	store := &memStore{bookings: []model.Booking{
		{ID: "booking-3"},
		{ID: "remote-99"},
		{ID: "booking-7"},
	}}
	s := newTestService(t, store, nil)

	b, err := s.Create(context.Background(), aliceForm())
	if err != nil {
		t.Fatal(err)
	}
	if b.ID != "booking-8" {
		t.Errorf("counter must continue past the highest suffix, got %q", b.ID)
	}
}

func TestIsTimeSlotAvailable_RemoteVeto(t *testing.T) {
	remote := &mockRemote{
		healthyFunc: func(ctx context.Context) bool { return true },
		checkFunc: func(ctx context.Context, date, clock string, duration int, excludeID string) (bool, error) {
			return false, nil
		},
	}
	s := newTestService(t, &memStore{}, remote)
	s.CheckBackend(context.Background())

	ok, err := s.IsTimeSlotAvailable(context.Background(), "2025-11-15", "09:00", 60, "")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("remote veto must override a local available verdict")
	}
}

func TestIsTimeSlotAvailable_RemoteErrorFallsBackToLocal(t *testing.T) {
	remote := &mockRemote{
		healthyFunc: func(ctx context.Context) bool { return true },
		checkFunc: func(ctx context.Context, date, clock string, duration int, excludeID string) (bool, error) {
			return false, apperrors.Timeout("slow")
		},
	}
	s := newTestService(t, &memStore{}, remote)
	s.CheckBackend(context.Background())

	ok, err := s.IsTimeSlotAvailable(context.Background(), "2025-11-15", "09:00", 60, "")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("remote error must fall back to the local verdict")
	}
}

func TestIsTimeSlotAvailable_LocalConflictIsFinal(t *testing.T) {
	remoteCalled := false
	store := &memStore{bookings: []model.Booking{
		{ID: "booking-1", Date: "2025-11-15", Time: "09:00", Duration: 60, Status: model.StatusConfirmed},
	}}
	remote := &mockRemote{
		healthyFunc: func(ctx context.Context) bool { return true },
		checkFunc: func(ctx context.Context, date, clock string, duration int, excludeID string) (bool, error) {
			remoteCalled = true
			return true, nil
		},
	}
	s := newTestService(t, store, remote)
	s.CheckBackend(context.Background())

	ok, err := s.IsTimeSlotAvailable(context.Background(), "2025-11-15", "09:30", 30, "")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("local conflict must be final")
	}
	if remoteCalled {
		t.Error("remote must not be asked when the local check already failed")
	}
}

// errorsAs is a tiny local wrapper so the tests read like the rest of the
// package.
func errorsAs(err error, target **apperrors.AppError) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(*apperrors.AppError); ok {
		*target = appErr
		return true
	}
	return false
}
