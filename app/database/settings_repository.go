package database

import (
	"context"
	"fmt"
)

// SettingsRepository persists user overrides for sources and topics.
type SettingsRepository struct {
	db *DB
}

func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSourceSettings returns the saved source overrides ordered by position.
func (r *SettingsRepository) GetSourceSettings(ctx context.Context) ([]SourceSetting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, id, name, enabled, position
		FROM source_settings
		ORDER BY position, kind, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get source settings: %w", err)
	}
	defer rows.Close()

	var settings []SourceSetting
	for rows.Next() {
		var s SourceSetting
		if err := rows.Scan(&s.Kind, &s.ID, &s.Name, &s.Enabled, &s.Position); err != nil {
			return nil, fmt.Errorf("failed to scan source setting row: %w", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source setting rows: %w", err)
	}

	return settings, nil
}

// SaveSourceSettings replaces all saved source overrides.
func (r *SettingsRepository) SaveSourceSettings(ctx context.Context, settings []SourceSetting) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM source_settings`); err != nil {
		return fmt.Errorf("failed to clear source settings: %w", err)
	}

	for i, s := range settings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO source_settings (kind, id, name, enabled, position)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(kind, id) DO UPDATE SET
				name = excluded.name,
				enabled = excluded.enabled,
				position = excluded.position,
				updated_at = CURRENT_TIMESTAMP
		`, s.Kind, s.ID, s.Name, s.Enabled, i)
		if err != nil {
			return fmt.Errorf("failed to save source setting %s/%s: %w", s.Kind, s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTopicSettings returns the saved topic order.
func (r *SettingsRepository) GetTopicSettings(ctx context.Context) ([]TopicSetting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, enabled, position
		FROM topic_settings
		ORDER BY position, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get topic settings: %w", err)
	}
	defer rows.Close()

	var settings []TopicSetting
	for rows.Next() {
		var s TopicSetting
		if err := rows.Scan(&s.Name, &s.Enabled, &s.Position); err != nil {
			return nil, fmt.Errorf("failed to scan topic setting row: %w", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topic setting rows: %w", err)
	}

	return settings, nil
}

// SaveTopicSettings replaces the saved topic order.
func (r *SettingsRepository) SaveTopicSettings(ctx context.Context, settings []TopicSetting) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM topic_settings`); err != nil {
		return fmt.Errorf("failed to clear topic settings: %w", err)
	}

	for i, s := range settings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO topic_settings (name, enabled, position)
			VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				enabled = excluded.enabled,
				position = excluded.position,
				updated_at = CURRENT_TIMESTAMP
		`, s.Name, s.Enabled, i)
		if err != nil {
			return fmt.Errorf("failed to save topic setting %s: %w", s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
