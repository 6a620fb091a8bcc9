package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type badEvent struct{}

func (badEvent) EventType() string { return "" }

func TestNewEnvelope(t *testing.T) {
	fixedNow := time.Unix(0, 123456000).UTC()
	prevNow := nowFunc
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = prevNow }()

	id := uuid.MustParse("9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8")
	env, err := NewEnvelope("appointment:apt-1", AppointmentBookedV1{
		AppointmentID: "apt-1",
		DoctorID:      "doc-1",
		PatientID:     "pat-1",
		Date:          "2024-01-10",
		StartTime:     "14:00",
		EndTime:       "14:45",
		BookedAt:      fixedNow,
	}, WithEventID(id))
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if env.EventID != id {
		t.Fatalf("expected event id override, got %s", env.EventID)
	}
	if env.TimestampMicros != fixedNow.UnixMicro() {
		t.Fatalf("unexpected timestamp: %d", env.TimestampMicros)
	}
	if env.EventType != "appointment.booked.v1" {
		t.Fatalf("unexpected type: %s", env.EventType)
	}
	if env.Aggregate != "appointment:apt-1" {
		t.Fatalf("unexpected aggregate: %s", env.Aggregate)
	}

	var decoded AppointmentBookedV1
	if err := env.Decode(&decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.AppointmentID != "apt-1" || decoded.EndTime != "14:45" {
		t.Fatalf("unexpected decoded payload %#v", decoded)
	}

	var wrong AppointmentCancelledV1
	if err := env.Decode(&wrong); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestNewEnvelopeValidation(t *testing.T) {
	if _, err := NewEnvelope(" ", AppointmentBookedV1{}); err != errMissingAggregate {
		t.Fatalf("expected missing aggregate error, got %v", err)
	}
	if _, err := NewEnvelope("appointment:1", nil); err != errNilEvent {
		t.Fatalf("expected nil event error, got %v", err)
	}
	if _, err := NewEnvelope("appointment:1", badEvent{}); err == nil {
		t.Fatal("expected missing type error")
	}
}
