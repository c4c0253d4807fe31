// Package service implements the server-side booking rules: the same
// half-open overlap check the client runs, applied against committed
// records. The server verdict is the check of last resort for slots booked
// concurrently by other clients.
package service

import (
	"context"
	"errors"
	"time"

	"booker/internal/availability"
	"booker/internal/booking/validator"
	"booker/internal/server/events"
	"booker/internal/server/repository"
	apperrors "booker/pkg/errors"
	"booker/pkg/logger"
	"booker/pkg/model"

	"github.com/google/uuid"
)

const msgSlotTaken = "Time slot is already booked"

type BookingService interface {
	Create(ctx context.Context, form *model.BookingForm) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context) ([]model.Booking, error)
	Update(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error)
	Delete(ctx context.Context, id string) error
	CheckAvailability(ctx context.Context, date, clock string, duration int, excludeID string) (bool, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	validator *validator.BookingValidator
	events    events.Publisher
	log       *logger.Logger
	now       func() time.Time
}

func NewBookingService(repo repository.BookingRepository, v *validator.BookingValidator, publisher events.Publisher, log *logger.Logger) BookingService {
	return &bookingService{
		repo:      repo,
		validator: v,
		events:    publisher,
		log:       log,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, form *model.BookingForm) (*model.Booking, error) {
	if err := s.validator.ValidateForm(form); err != nil {
		s.log.Warn("Booking validation failed", "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"errors": err.Error()})
	}

	slot, err := availability.SlotFor(form.Date, form.Time, form.Duration)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid date or time")
	}
	if err := s.verifyNoOverlap(ctx, slot, ""); err != nil {
		return nil, err
	}

	now := s.now().UTC().Format(time.RFC3339)
	booking := &model.Booking{
		ID:        uuid.NewString(),
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
	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.events.Publish(ctx, events.TypeCreated, *booking)
	s.log.Info("Booking created", "id", booking.ID, "date", booking.Date, "time", booking.Time)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context) ([]model.Booking, error) {
	bookings, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) Update(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if err := s.validator.ValidatePatch(patch); err != nil {
		s.log.Warn("Booking update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"errors": err.Error()})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to check booking existence", err)
	}

	merged := patch.Apply(*existing)
	if patch.Date != nil || patch.Time != nil || patch.Duration != nil {
		slot, err := availability.SlotFor(merged.Date, merged.Time, merged.Duration)
		if err != nil {
			return nil, apperrors.InvalidInput("invalid date or time")
		}
		if err := s.verifyNoOverlap(ctx, slot, id); err != nil {
			return nil, err
		}
	}

	merged.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if err := s.repo.Update(ctx, id, &merged); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to update booking", err)
	}

	s.events.Publish(ctx, events.TypeUpdated, merged)
	s.log.Info("Booking updated", "id", id)
	return &merged, nil
}

func (s *bookingService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", id)
		}
		return apperrors.Internal("Failed to check booking existence", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", id)
		}
		return apperrors.Internal("Failed to delete booking", err)
	}

	s.events.Publish(ctx, events.TypeDeleted, *booking)
	s.log.Info("Booking deleted", "id", id)
	return nil
}

func (s *bookingService) CheckAvailability(ctx context.Context, date, clock string, duration int, excludeID string) (bool, error) {
	slot, err := availability.SlotFor(date, clock, duration)
	if err != nil {
		return false, apperrors.InvalidInput("invalid date or time")
	}
	existing, err := s.repo.FindAll(ctx)
	if err != nil {
		return false, apperrors.Internal("Failed to check existing bookings", err)
	}
	return availability.IsAvailable(slot, existing, excludeID), nil
}

// verifyNoOverlap rejects a slot that collides with any committed,
// non-cancelled booking other than excludeID.
func (s *bookingService) verifyNoOverlap(ctx context.Context, slot availability.Slot, excludeID string) error {
	existing, err := s.repo.FindAll(ctx)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}
	if !availability.IsAvailable(slot, existing, excludeID) {
		return apperrors.Conflict(msgSlotTaken, "time")
	}
	return nil
}
