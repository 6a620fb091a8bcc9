package events

import (
	"context"
	"errors"
	"testing"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestProcessedStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("google_calendar", "evt").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	processed, err := store.AlreadyProcessed(context.Background(), "google_calendar", "evt")
	if err != nil || !processed {
		t.Fatalf("expected existing row, got processed=%v err=%v", processed, err)
	}

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("google_calendar", "evt-miss").WillReturnError(pgx.ErrNoRows)
	processed, err = store.AlreadyProcessed(context.Background(), "google_calendar", "evt-miss")
	if err != nil || processed {
		t.Fatalf("expected missing row, got processed=%v err=%v", processed, err)
	}

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("google_calendar", "evt-new").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	ok, err := store.MarkProcessed(context.Background(), "google_calendar", "evt-new")
	if err != nil || !ok {
		t.Fatalf("expected mark processed success, got %v %v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProcessedStoreOnce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	store := newProcessedStoreWithExec(mock)
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) error { calls++; return nil }

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("email", "evt-1").WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO processed_events").WithArgs("email", "evt-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := store.Once(ctx, "email", "evt-1", fn); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("email", "evt-1").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	if err := store.Once(ctx, "email", "evt-1", fn); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected fn to run once, ran %d times", calls)
	}

	boom := errors.New("smtp down")
	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("email", "evt-2").WillReturnError(pgx.ErrNoRows)
	if err := store.Once(ctx, "email", "evt-2", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
