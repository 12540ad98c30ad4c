package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultBatteryLevel is reported before anyone has recorded a reading.
	DefaultBatteryLevel = 100
	// SystemUpdater is the UpdatedBy value of the default reading.
	SystemUpdater = "System"
)

// BatteryRepository stores the shared battery reading.
type BatteryRepository interface {
	GetBatteryLevel(ctx context.Context) (BatteryLevel, error)
	SaveBatteryLevel(ctx context.Context, level BatteryLevel) error
}

// BatteryService reads and records the vehicle's battery level.
type BatteryService struct {
	settings BatteryRepository
	now      func() time.Time
	logger   *slog.Logger
}

// NewBatteryService wires the battery service.
func NewBatteryService(settings BatteryRepository, now func() time.Time, logger *slog.Logger) *BatteryService {
	if now == nil {
		now = time.Now
	}
	return &BatteryService{settings: settings, now: now, logger: defaultLogger(logger)}
}

// Get returns the current reading. When none is stored the default reading
// is saved and returned.
func (s *BatteryService) Get(ctx context.Context, principal Principal) (BatteryLevel, error) {
	if s == nil || s.settings == nil {
		return BatteryLevel{}, fmt.Errorf("battery service not configured")
	}
	if !principal.Active() {
		return BatteryLevel{}, ErrUnauthorized
	}

	level, err := s.settings.GetBatteryLevel(ctx)
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return BatteryLevel{}, err
	}

	level = BatteryLevel{Level: DefaultBatteryLevel, UpdatedAt: s.now(), UpdatedBy: SystemUpdater}
	if saveErr := s.settings.SaveBatteryLevel(ctx, level); saveErr != nil {
		serviceLogger(ctx, s.logger, "BatteryService", "Get").
			WarnContext(ctx, "failed to store default battery level", "error", saveErr)
	}
	return level, nil
}

// Update records a new reading. Only administrators may update it.
func (s *BatteryService) Update(ctx context.Context, principal Principal, value int) (level BatteryLevel, err error) {
	if s == nil || s.settings == nil {
		err = fmt.Errorf("battery service not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "BatteryService", "Update",
		"principal_id", principal.UserID,
		"level", value,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update battery level", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "battery level updated")
	}()

	if !principal.Active() || !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if value < 0 || value > 100 {
		err = &ValidationError{FieldErrors: map[string]string{"level": "level must be between 0 and 100"}}
		return
	}

	level = BatteryLevel{Level: value, UpdatedAt: s.now(), UpdatedBy: principal.Username}
	if err = s.settings.SaveBatteryLevel(ctx, level); err != nil {
		return BatteryLevel{}, err
	}
	return level, nil
}
