// Package queue serves read-only views of a doctor's day.
package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/pkg/errors"
)

type Service struct {
	queues   repository.QueueRepository
	bookings repository.BookingRepository
	doctors  repository.DoctorRepository
}

func NewService(store repository.Store, doctors repository.DoctorRepository) *Service {
	return &Service{
		queues:   store.Queues(),
		bookings: store.Bookings(),
		doctors:  doctors,
	}
}

// Status returns the realtime counters of doctorID on date.
func (s *Service) Status(ctx context.Context, doctorID, date string) (*model.QueueSnapshot, error) {
	if doctorID == "" || date == "" {
		return nil, errors.Validation("doctorId and date are required", nil)
	}
	day, err := model.ParseDate(date)
	if err != nil {
		return nil, errors.Validation("date must be a date in YYYY-MM-DD format", err)
	}

	q, err := s.queues.Get(ctx, doctorID, day)
	if err != nil {
		if stderrors.Is(err, repository.ErrQueueNotFound) {
			return nil, errors.QueueNotFound(err)
		}
		return nil, errors.Internal(fmt.Errorf("failed to get queue: %w", err))
	}
	snap := q.Snapshot()
	return &snap, nil
}

// PatientStats summarises the bookings of the doctor owning accountID
// between from and to, both inclusive. Empty bounds default to today.
func (s *Service) PatientStats(ctx context.Context, accountID, from, to string, now time.Time) (*model.PatientStats, error) {
	start, end, err := statsRange(from, to, now)
	if err != nil {
		return nil, err
	}

	doctor, err := s.doctors.GetByAccount(ctx, accountID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("Doctor profile", err)
		}
		return nil, errors.Internal(fmt.Errorf("failed to get doctor: %w", err))
	}

	stats, err := s.bookings.Stats(ctx, doctor.ID, start, end)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to compute patient stats: %w", err))
	}
	return stats, nil
}

func statsRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	today := model.NormalizeDate(now)
	start, end := today, today

	var err error
	if from != "" {
		if start, err = model.ParseDate(from); err != nil {
			return start, end, errors.Validation("startDate must be a date in YYYY-MM-DD format", err)
		}
	}
	if to != "" {
		if end, err = model.ParseDate(to); err != nil {
			return start, end, errors.Validation("endDate must be a date in YYYY-MM-DD format", err)
		}
	} else if from != "" {
		end = start
	}
	if end.Before(start) {
		return start, end, errors.Validation("endDate must not be before startDate", nil)
	}
	return start, end, nil
}
