package booking

import (
	"context"
	"errors"
	"strings"

	"barberia-backend/internal/models"
	"barberia-backend/internal/schedule"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrDayOffNotFound   = errors.New("day off not found")
	ErrInvalidWeekday   = errors.New("invalid weekday")
)

func (s *Service) ListSchedules(ctx context.Context, specialist string) ([]models.Schedule, error) {
	return s.calendar.ListSchedules(ctx, strings.TrimSpace(specialist))
}

func (s *Service) CreateSchedule(ctx context.Context, row models.Schedule) (models.Schedule, error) {
	row.Specialist = strings.TrimSpace(row.Specialist)
	if row.Specialist == "" {
		return models.Schedule{}, ErrMissingSpecialist
	}
	if row.Weekday < 0 || row.Weekday > 6 {
		return models.Schedule{}, ErrInvalidWeekday
	}
	window, err := schedule.ParseRange(row.Start, row.End)
	if err != nil {
		return models.Schedule{}, ErrInvalidTime
	}
	if window.Empty() {
		return models.Schedule{}, ErrInvalidRange
	}

	row.ID = primitive.NewObjectID().Hex()
	row.Active = true
	if err := s.calendar.InsertSchedule(ctx, row); err != nil {
		return models.Schedule{}, err
	}
	s.invalidate(ctx, "slots:"+row.Specialist+":")
	return row, nil
}

func (s *Service) Schedule(ctx context.Context, id string) (models.Schedule, error) {
	row, err := s.calendar.GetSchedule(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Schedule{}, ErrScheduleNotFound
		}
		return models.Schedule{}, err
	}
	return row, nil
}

func (s *Service) DeleteSchedule(ctx context.Context, id string) error {
	deleted, err := s.calendar.DeleteSchedule(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrScheduleNotFound
		}
		return err
	}
	s.invalidate(ctx, "slots:"+deleted.Specialist+":")
	return nil
}

func (s *Service) ListDaysOff(ctx context.Context, from string) ([]models.DayOff, error) {
	from = strings.TrimSpace(from)
	if from != "" {
		if _, err := schedule.ParseDate(from, s.location); err != nil {
			return nil, ErrInvalidDate
		}
	}
	return s.calendar.ListDaysOff(ctx, from)
}

// CreateDayOff stores a full or partial day off. An empty specialist closes
// the shop for everyone.
func (s *Service) CreateDayOff(ctx context.Context, off models.DayOff) (models.DayOff, error) {
	off.Specialist = strings.TrimSpace(off.Specialist)
	date, ok := models.NormalizeDate(off.Date)
	if !ok {
		return models.DayOff{}, ErrInvalidDate
	}
	off.Date = date
	if !off.AllDay {
		interval, err := schedule.ParseRange(off.Start, off.End)
		if err != nil {
			return models.DayOff{}, ErrInvalidTime
		}
		if interval.Empty() {
			return models.DayOff{}, ErrInvalidRange
		}
	} else {
		off.Start, off.End = "", ""
	}

	off.ID = primitive.NewObjectID().Hex()
	off.Active = true
	off.CreatedAt = s.now().In(s.location)
	if err := s.calendar.InsertDayOff(ctx, off); err != nil {
		return models.DayOff{}, err
	}
	s.invalidateDayOff(ctx, off)
	return off, nil
}

func (s *Service) DayOff(ctx context.Context, id string) (models.DayOff, error) {
	off, err := s.calendar.GetDayOff(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.DayOff{}, ErrDayOffNotFound
		}
		return models.DayOff{}, err
	}
	return off, nil
}

func (s *Service) DeleteDayOff(ctx context.Context, id string) error {
	deleted, err := s.calendar.DeleteDayOff(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrDayOffNotFound
		}
		return err
	}
	s.invalidateDayOff(ctx, deleted)
	return nil
}

func (s *Service) invalidateDayOff(ctx context.Context, off models.DayOff) {
	if off.Specialist == "" {
		s.invalidate(ctx, "slots:")
		return
	}
	s.invalidateDay(ctx, off.Specialist, off.Date)
}
