package appointments

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/doctor-portal/internal/calendar"
)

// Store persists appointments. Insert must reject an appointment that overlaps
// an active one for the same doctor and date with ErrSlotConflict, atomically
// with respect to other inserts.
type Store interface {
	// ListByDoctorAndDate returns the doctor's active appointments on date, ordered by start time.
	ListByDoctorAndDate(ctx context.Context, doctorID string, date calendar.Date) ([]Appointment, error)
	Insert(ctx context.Context, apt Appointment) (Appointment, error)
	Get(ctx context.Context, id string) (Appointment, error)
	// ListByPatient and ListByDoctor return every appointment, ordered by date then start time.
	ListByPatient(ctx context.Context, patientID string) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error)
	// Cancel marks the appointment cancelled at the given time. Cancelling twice is a no-op.
	Cancel(ctx context.Context, id string, at time.Time) (Appointment, error)
}

// InMemoryStore is a Store backed by a map. The conflict check and the insert
// happen under one mutex, which gives the same guarantee as a storage-level
// exclusion constraint within a single process.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]Appointment
	order []string
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]Appointment)}
}

func (s *InMemoryStore) ListByDoctorAndDate(ctx context.Context, doctorID string, date calendar.Date) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(a Appointment) bool {
		return a.Active() && a.DoctorID == doctorID && a.Date == date
	}), nil
}

func (s *InMemoryStore) Insert(ctx context.Context, apt Appointment) (Appointment, error) {
	if err := ctx.Err(); err != nil {
		return Appointment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[apt.ID]; exists {
		return Appointment{}, fmt.Errorf("appointments: duplicate id %s", apt.ID)
	}
	if apt.Active() {
		for _, id := range s.order {
			other := s.byID[id]
			if other.Active() && other.DoctorID == apt.DoctorID && other.Date == apt.Date && other.Interval().Overlaps(apt.Interval()) {
				return Appointment{}, fmt.Errorf("%w: overlaps %s at %s", ErrSlotConflict, other.ID, other.Interval())
			}
		}
	}
	s.byID[apt.ID] = apt
	s.order = append(s.order, apt.ID)
	return apt, nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	apt, ok := s.byID[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return apt, nil
}

func (s *InMemoryStore) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (s *InMemoryStore) ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(a Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (s *InMemoryStore) Cancel(ctx context.Context, id string, at time.Time) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apt, ok := s.byID[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	if apt.Status == StatusCancelled {
		return apt, nil
	}
	cancelledAt := at
	apt.Status = StatusCancelled
	apt.CancelledAt = &cancelledAt
	s.byID[id] = apt
	return apt, nil
}

// filter must be called with s.mu held.
func (s *InMemoryStore) filter(keep func(Appointment) bool) []Appointment {
	out := make([]Appointment, 0)
	for _, id := range s.order {
		if apt := s.byID[id]; keep(apt) {
			out = append(out, apt)
		}
	}
	sortAppointments(out)
	return out
}

func sortAppointments(apts []Appointment) {
	sort.SliceStable(apts, func(i, j int) bool {
		a, b := apts[i], apts[j]
		if a.Date != b.Date {
			return a.Date.Time(time.UTC).Before(b.Date.Time(time.UTC))
		}
		return a.StartTime < b.StartTime
	})
}
