package bootstrap

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/doctor-portal/internal/appointments"
	appconfig "github.com/wolfman30/doctor-portal/internal/config"
	"github.com/wolfman30/doctor-portal/internal/doctors"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

// Scheduling groups the storage, hours and locking backends chosen from config.
type Scheduling struct {
	Store  appointments.Store
	Hours  appointments.HoursProvider
	Locker appointments.Locker
	// HoursStore is nil without Redis; per-doctor hours are then read-only.
	HoursStore *doctors.HoursStore
	Config     appointments.Config
	Backend    string
}

// BuildScheduling picks Postgres over memory for appointments and Redis over
// an in-process mutex for the booking lock. Either client may be nil. hook
// runs inside each Postgres booking transaction and may be nil.
func BuildScheduling(cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, hook appointments.InsertHook, logger *logging.Logger) (*Scheduling, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	window, err := cfg.WorkingWindow()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: working hours: %w", err)
	}
	days, err := cfg.WorkingWeekdays()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	schedule := doctors.NewSchedule(window, days)

	out := &Scheduling{
		Hours: schedule,
		Config: appointments.Config{
			Duration:      cfg.AppointmentDuration,
			Granularity:   cfg.SlotGranularity,
			LockTimeout:   cfg.BookingLockTimeout,
			NotifyTimeout: cfg.NotifyTimeout,
		},
	}

	if pool != nil {
		store := appointments.NewPostgresStore(pool)
		if hook != nil {
			store.WithInsertHook(hook)
		}
		out.Store = store
		out.Backend = "postgres"
	} else {
		out.Store = appointments.NewInMemoryStore()
		out.Backend = "memory"
		logger.Warn("DATABASE_URL not set; appointments are kept in memory")
		if hook != nil {
			logger.Warn("booking insert hook ignored without Postgres")
		}
	}

	if redisClient != nil {
		out.Locker = appointments.NewRedisLocker(redisClient, cfg.BookingLockTTL, logger)
		out.HoursStore = doctors.NewHoursStore(redisClient, schedule)
		out.Hours = out.HoursStore
	} else {
		out.Locker = appointments.NewKeyedLocker()
	}

	logger.Info("scheduling configured",
		"store", out.Backend,
		"distributed_lock", redisClient != nil,
		"default_hours", schedule.String(),
		"duration", cfg.AppointmentDuration,
		"granularity", cfg.SlotGranularity,
	)
	return out, nil
}
