package notify

import (
	"fmt"

	"github.com/wolfman30/doctor-portal/internal/appointments"
	"github.com/wolfman30/doctor-portal/internal/calendar"
	"github.com/wolfman30/doctor-portal/internal/events"
)

// BookedEvent converts an appointment into its published event.
func BookedEvent(apt appointments.Appointment) events.AppointmentBookedV1 {
	return events.AppointmentBookedV1{
		AppointmentID: apt.ID,
		DoctorID:      apt.DoctorID,
		PatientID:     apt.PatientID,
		Speciality:    apt.Speciality,
		Date:          apt.Date.String(),
		StartTime:     apt.StartTime.String(),
		EndTime:       apt.EndTime.String(),
		BookedAt:      apt.CreatedAt,
	}
}

// appointmentFromEvent rebuilds the appointment a booked event describes.
func appointmentFromEvent(evt events.AppointmentBookedV1) (appointments.Appointment, error) {
	date, err := calendar.ParseDate(evt.Date)
	if err != nil {
		return appointments.Appointment{}, fmt.Errorf("notify: event date: %w", err)
	}
	start, err := calendar.ParseClock(evt.StartTime)
	if err != nil {
		return appointments.Appointment{}, fmt.Errorf("notify: event start: %w", err)
	}
	end, err := calendar.ParseClock(evt.EndTime)
	if err != nil {
		return appointments.Appointment{}, fmt.Errorf("notify: event end: %w", err)
	}
	return appointments.Appointment{
		ID:         evt.AppointmentID,
		PatientID:  evt.PatientID,
		DoctorID:   evt.DoctorID,
		Speciality: evt.Speciality,
		Date:       date,
		StartTime:  start,
		EndTime:    end,
		Status:     appointments.StatusBooked,
		CreatedAt:  evt.BookedAt,
	}, nil
}

func aggregateFor(apt appointments.Appointment) string {
	return "appointment:" + apt.ID
}
