package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/physioflow/clinic-scheduler/internal/timeslot"
)

// MemoryRepository is an in-memory Repository used by tests and the
// simulator. It is safe for concurrent use.
type MemoryRepository struct {
	mu           sync.RWMutex
	patients     map[uuid.UUID]Patient
	therapists   map[uuid.UUID]Therapist
	appointments map[uuid.UUID]Appointment
	history      map[uuid.UUID][]StatusChange
	nextChangeID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		therapists:   make(map[uuid.UUID]Therapist),
		appointments: make(map[uuid.UUID]Appointment),
		history:      make(map[uuid.UUID][]StatusChange),
	}
}

func (r *MemoryRepository) PutPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemoryRepository) PutTherapist(t Therapist) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.therapists[t.ID] = t
}

func (r *MemoryRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.therapists[id]
	if !ok {
		return nil, ErrTherapistNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	detail := &AppointmentDetail{Appointment: a}
	if p, ok := r.patients[a.PatientID]; ok {
		detail.Patient = &p
	}
	if t, ok := r.therapists[a.TherapistID]; ok {
		detail.Therapist = &t
	}
	detail.History = append(detail.History, r.history[id]...)
	return detail, nil
}

func (r *MemoryRepository) ListAppointmentsByTherapist(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.TherapistID != therapistID {
			continue
		}
		if !timeslot.Overlaps(a.StartTime, a.EndTime, from, to) {
			continue
		}
		result = append(result, a)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

func (r *MemoryRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := *appt
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	r.appointments[a.ID] = a
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, start, end time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.StartTime = start
	a.EndTime = end
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

// ApplyStatusChange mutates the appointment and appends the history
// record under one lock acquisition. All guards run before the first
// write, so a failed call leaves both maps untouched.
func (r *MemoryRepository) ApplyStatusChange(ctx context.Context, rec StatusChange, interval *Interval) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[rec.AppointmentID]
	if !ok || a.Status != rec.From {
		return nil, ErrAppointmentNotFound
	}

	now := time.Now()
	a.Status = rec.To
	if interval != nil {
		a.StartTime = interval.Start
		a.EndTime = interval.End
	}
	a.UpdatedAt = now
	r.appointments[a.ID] = a

	r.nextChangeID++
	rec.ID = r.nextChangeID
	if rec.ChangedAt.IsZero() {
		rec.ChangedAt = now
	}
	r.history[rec.AppointmentID] = append(r.history[rec.AppointmentID], rec)
	return &a, nil
}

func (r *MemoryRepository) ListStatusChanges(ctx context.Context, appointmentID uuid.UUID) ([]StatusChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]StatusChange(nil), r.history[appointmentID]...), nil
}
