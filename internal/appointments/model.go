// Package appointments owns doctor availability and the booking transactor
// that commits appointments without double-booking.
package appointments

import (
	"strings"
	"time"

	"github.com/wolfman30/doctor-portal/internal/calendar"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusBooked    Status = "booked"
	StatusCancelled Status = "cancelled"
)

// Appointment is a committed booking of one doctor by one patient.
type Appointment struct {
	ID          string         `json:"id"`
	PatientID   string         `json:"patient_id"`
	DoctorID    string         `json:"doctor_id"`
	Speciality  string         `json:"speciality"`
	Date        calendar.Date  `json:"date"`
	StartTime   calendar.Clock `json:"start_time"`
	EndTime     calendar.Clock `json:"end_time"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty"`
}

// Interval returns the half-open time span the appointment occupies.
func (a Appointment) Interval() calendar.Interval {
	return calendar.Interval{Start: a.StartTime, End: a.EndTime}
}

// Active reports whether the appointment still holds its slot.
func (a Appointment) Active() bool {
	return a.Status == StatusBooked
}

// HasParticipant reports whether userID is the patient or the doctor.
func (a Appointment) HasParticipant(userID string) bool {
	return userID != "" && (a.PatientID == userID || a.DoctorID == userID)
}

// BookingRequest is the input to Service.Book. The end time is never supplied;
// it is always derived from the configured duration.
type BookingRequest struct {
	DoctorID   string         `json:"doctor_id"`
	PatientID  string         `json:"patient_id"`
	Speciality string         `json:"speciality"`
	Date       calendar.Date  `json:"date"`
	StartTime  calendar.Clock `json:"start_time"`
}

// Validate checks the identity fields; slot validity is checked by calendar math.
func (r BookingRequest) Validate() error {
	if strings.TrimSpace(r.DoctorID) == "" {
		return invalidRequest("doctor_id is required")
	}
	if strings.TrimSpace(r.PatientID) == "" {
		return invalidRequest("patient_id is required")
	}
	if r.DoctorID == r.PatientID {
		return invalidRequest("a doctor cannot book themselves")
	}
	return nil
}

// Warning is a non-fatal problem reported alongside a committed booking.
type Warning struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// BookingResult is a committed appointment plus any post-commit warnings.
type BookingResult struct {
	Appointment Appointment `json:"appointment"`
	Warnings    []Warning   `json:"warnings,omitempty"`
}

// HasWarning reports whether a warning of the given kind is attached.
func (r *BookingResult) HasWarning(kind ErrorKind) bool {
	if r == nil {
		return false
	}
	for _, w := range r.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}
