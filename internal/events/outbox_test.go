package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/wolfman30/doctor-portal/pkg/logging"
)

var outboxColumns = []string{"id", "aggregate", "event_type", "payload", "attempts", "created_at"}

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO outbox").WithArgs(pgxmock.AnyArg(), "appointment:apt-1", "appointment.booked.v1", pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	env, err := store.Insert(context.Background(), "appointment:apt-1", AppointmentBookedV1{AppointmentID: "apt-1"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if env.EventID == uuid.Nil {
		t.Fatal("expected generated event id")
	}

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows(outboxColumns).AddRow(id, "appointment:apt-1", "appointment.booked.v1", []byte(`{"appointment_id":"apt-1"}`), 1, now)
	mock.ExpectQuery(`UPDATE outbox\s+SET claimed_until(.|\s)+FOR UPDATE SKIP LOCKED`).WithArgs(int32(10), 5, float64(30)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10, 5, 30*time.Second)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id || entries[0].Attempts != 1 {
		t.Fatalf("unexpected entries: %#v", entries)
	}
	var evt AppointmentBookedV1
	if err := entries[0].Envelope().Decode(&evt); err != nil || evt.AppointmentID != "apt-1" {
		t.Fatalf("unexpected decoded entry %#v err=%v", evt, err)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelivererDrain(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)
	okID, failID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	var handled []uuid.UUID
	handler := DeliveryHandlerFunc(func(ctx context.Context, entry OutboxEntry) error {
		handled = append(handled, entry.ID)
		if entry.ID == failID {
			return errors.New("calendar unavailable")
		}
		return nil
	})
	d := NewDeliverer(store, handler, logging.Discard()).WithBatchSize(2).WithMaxAttempts(3)

	rows := pgxmock.NewRows(outboxColumns).
		AddRow(okID, "appointment:a", "appointment.booked.v1", []byte(`{}`), 0, now).
		AddRow(failID, "appointment:b", "appointment.booked.v1", []byte(`{}`), 2, now)
	mock.ExpectQuery("UPDATE outbox").WithArgs(int32(2), 3, float64(60)).WillReturnRows(rows)
	mock.ExpectExec("SET delivered_at").WithArgs(okID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("claimed_until = NULL").WithArgs(failID, "calendar unavailable").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	d.drain(context.Background())

	if len(handled) != 2 {
		t.Fatalf("expected both entries handled, got %v", handled)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFetchPendingOrdersClaimedEntries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	older, newer := uuid.New(), uuid.New()
	now := time.Now().UTC()
	rows := pgxmock.NewRows(outboxColumns).
		AddRow(newer, "appointment:b", "appointment.booked.v1", []byte(`{}`), 0, now).
		AddRow(older, "appointment:a", "appointment.booked.v1", []byte(`{}`), 0, now.Add(-time.Minute))
	mock.ExpectQuery("UPDATE outbox").WithArgs(int32(5), 5, float64(60)).WillReturnRows(rows)

	entries, err := newOutboxStoreWithExec(mock).FetchPending(context.Background(), 5, 5, time.Minute)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != older || entries[1].ID != newer {
		t.Fatalf("expected entries in creation order, got %#v", entries)
	}
}

func TestAppendCanonicalEventUsesCallerTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox").WithArgs(pgxmock.AnyArg(), "appointment:apt-1", "appointment.booked.v1", pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := AppendCanonicalEvent(ctx, tx, "appointment:apt-1", AppointmentBookedV1{AppointmentID: "apt-1"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}

	if _, err := AppendCanonicalEvent(ctx, nil, "appointment:apt-1", AppointmentBookedV1{}); err == nil {
		t.Fatal("expected error without an executor")
	}
}

func TestDelivererReleasesBatchWhenLeaseElapses(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	slowID, leftID := uuid.New(), uuid.New()
	now := time.Now().UTC()
	var handled []uuid.UUID
	handler := DeliveryHandlerFunc(func(ctx context.Context, entry OutboxEntry) error {
		handled = append(handled, entry.ID)
		<-ctx.Done()
		return nil
	})
	d := NewDeliverer(newOutboxStoreWithExec(mock), handler, logging.Discard()).WithLease(20 * time.Millisecond)

	rows := pgxmock.NewRows(outboxColumns).
		AddRow(slowID, "appointment:a", "appointment.booked.v1", []byte(`{}`), 0, now).
		AddRow(leftID, "appointment:b", "appointment.booked.v1", []byte(`{}`), 0, now.Add(time.Second))
	mock.ExpectQuery("UPDATE outbox").WithArgs(int32(25), 5, float64(0.02)).WillReturnRows(rows)
	mock.ExpectExec("SET delivered_at").WithArgs(slowID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	d.drain(context.Background())

	if len(handled) != 1 || handled[0] != slowID {
		t.Fatalf("expected only the first entry handled, got %v", handled)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelivererStartStopsOnCancel(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	d := NewDeliverer(newOutboxStoreWithExec(mock), DeliveryHandlerFunc(func(context.Context, OutboxEntry) error { return nil }), logging.Discard()).
		WithInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliverer did not stop")
	}
}
