package doctors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/doctor-portal/internal/calendar"
)

// HoursStore keeps per-doctor weekly hours in Redis. Doctors without an
// entry follow the organisation schedule.
type HoursStore struct {
	redis    redis.Cmdable
	fallback *Schedule
}

// NewHoursStore creates a store that falls back to schedule.
func NewHoursStore(client redis.Cmdable, schedule *Schedule) *HoursStore {
	if client == nil {
		panic("doctors: redis client required")
	}
	if schedule == nil {
		panic("doctors: fallback schedule required")
	}
	return &HoursStore{redis: client, fallback: schedule}
}

func (s *HoursStore) key(doctorID string) string {
	return fmt.Sprintf("doctor:hours:%s", doctorID)
}

// Get returns the doctor's stored hours, or the organisation week when none are stored.
func (s *HoursStore) Get(ctx context.Context, doctorID string) (*WeeklyHours, error) {
	data, err := s.redis.Get(ctx, s.key(doctorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		w := s.fallback.Weekly()
		return &w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("doctors: get hours: %w", err)
	}

	var hours WeeklyHours
	if err := json.Unmarshal(data, &hours); err != nil {
		return nil, fmt.Errorf("doctors: unmarshal hours: %w", err)
	}
	return &hours, nil
}

// Set stores the doctor's weekly hours.
func (s *HoursStore) Set(ctx context.Context, doctorID string, hours *WeeklyHours) error {
	if hours == nil {
		return errors.New("doctors: hours required")
	}
	if err := hours.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(hours)
	if err != nil {
		return fmt.Errorf("doctors: marshal hours: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(doctorID), data, 0).Err(); err != nil {
		return fmt.Errorf("doctors: set hours: %w", err)
	}
	return nil
}

// Reset drops the doctor's hours so the organisation schedule applies again.
func (s *HoursStore) Reset(ctx context.Context, doctorID string) error {
	if err := s.redis.Del(ctx, s.key(doctorID)).Err(); err != nil {
		return fmt.Errorf("doctors: reset hours: %w", err)
	}
	return nil
}

// HoursFor resolves the doctor's window on date.
func (s *HoursStore) HoursFor(ctx context.Context, doctorID string, date calendar.Date) (calendar.Window, error) {
	data, err := s.redis.Get(ctx, s.key(doctorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.fallback.HoursFor(ctx, doctorID, date)
	}
	if err != nil {
		return calendar.Window{}, fmt.Errorf("doctors: get hours: %w", err)
	}
	var hours WeeklyHours
	if err := json.Unmarshal(data, &hours); err != nil {
		return calendar.Window{}, fmt.Errorf("doctors: unmarshal hours: %w", err)
	}
	return hours.ForDay(date.Weekday()).Window()
}
