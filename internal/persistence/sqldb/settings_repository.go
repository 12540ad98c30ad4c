package sqldb

import (
	"context"
	"fmt"

	"github.com/example/vehicle-scheduler/internal/persistence"
)

const batterySettingName = "battery"

// SettingsRepository implements persistence.SettingsRepository.
type SettingsRepository struct {
	pool *Pool
}

// NewSettingsRepository creates a settings repository on pool.
func NewSettingsRepository(pool *Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

type settingRow struct {
	Level     int    `db:"level"`
	UpdatedAt string `db:"updated_at"`
	UpdatedBy string `db:"updated_by"`
}

// GetBatterySetting loads the battery document or returns persistence.ErrNotFound.
func (r *SettingsRepository) GetBatterySetting(ctx context.Context) (persistence.BatterySetting, error) {
	var row settingRow
	query := r.pool.rebind(`SELECT level, updated_at, updated_by FROM settings WHERE name = ?`)
	if err := r.pool.db.GetContext(ctx, &row, query, batterySettingName); err != nil {
		return persistence.BatterySetting{}, r.pool.mapper.MapError(err)
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.BatterySetting{}, fmt.Errorf("parse battery updated_at: %w", err)
	}
	return persistence.BatterySetting{Level: row.Level, UpdatedAt: updated, UpdatedBy: row.UpdatedBy}, nil
}

// SaveBatterySetting inserts or replaces the battery document.
func (r *SettingsRepository) SaveBatterySetting(ctx context.Context, setting persistence.BatterySetting) error {
	query := r.pool.rebind(`
		INSERT INTO settings (name, level, updated_at, updated_by) VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET level = excluded.level, updated_at = excluded.updated_at, updated_by = excluded.updated_by
	`)
	return r.pool.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx, query, batterySettingName, setting.Level, formatTime(setting.UpdatedAt), setting.UpdatedBy)
		return err
	})
}
