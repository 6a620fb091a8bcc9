package events

import "time"

// AppointmentBookedV1 is published once per committed booking.
type AppointmentBookedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	PatientID     string    `json:"patient_id"`
	Speciality    string    `json:"speciality,omitempty"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	BookedAt      time.Time `json:"booked_at"`
}

func (AppointmentBookedV1) EventType() string { return "appointment.booked.v1" }

// AppointmentCancelledV1 is published when a booking frees its slot.
type AppointmentCancelledV1 struct {
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	PatientID     string    `json:"patient_id"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	CancelledBy   string    `json:"cancelled_by,omitempty"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

func (AppointmentCancelledV1) EventType() string { return "appointment.cancelled.v1" }
