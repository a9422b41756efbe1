// ABOUTME: Database operations for sync_state and sync_log tables
// ABOUTME: Tracks per-source sync status and journals every upsert attempt
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SyncState represents the sync state for a source.
type SyncState struct {
	Service       string
	LastSyncTime  *time.Time
	LastSyncToken *string
	Status        string
	ErrorMessage  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SyncLog is one journaled upsert attempt.
type SyncLog struct {
	ID            uuid.UUID
	RunID         string
	SourceService string
	SourceID      string
	VanID         *int
	Success       bool
	IsUpdated     bool
	Merged        bool
	Error         string
	Metadata      string
	ImportedAt    time.Time
}

// SyncLogFilter narrows ListSyncLogs. Zero values match everything.
type SyncLogFilter struct {
	SourceService string
	RunID         string
	FailedOnly    bool
	Limit         int
}

// RunSummary aggregates the journal entries of one run.
type RunSummary struct {
	RunID         string
	SourceService string
	Total         int
	Succeeded     int
	Updated       int
	Failed        int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// GetSyncState retrieves the sync state for a source.
func GetSyncState(db *sql.DB, service string) (*SyncState, error) {
	row := db.QueryRow(`
		SELECT service, last_sync_time, last_sync_token, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE service = ?
	`, service)

	state, err := scanSyncState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}
	return state, nil
}

// UpdateSyncStatus updates the sync status for a source.
func UpdateSyncStatus(db *sql.DB, service, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO sync_state (service, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, service, status, errorMsgVal)

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	return nil
}

// UpdateSyncToken marks a source idle and records the id of its last completed run.
func UpdateSyncToken(db *sql.DB, service, token string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (service, last_sync_time, last_sync_token, status, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, ?, 'idle', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			last_sync_time = CURRENT_TIMESTAMP,
			last_sync_token = excluded.last_sync_token,
			status = 'idle',
			error_message = NULL,
			updated_at = CURRENT_TIMESTAMP
	`, service, token)

	if err != nil {
		return fmt.Errorf("failed to update sync token: %w", err)
	}

	return nil
}

// GetAllSyncStates retrieves the sync state for all sources.
func GetAllSyncStates(db *sql.DB) ([]SyncState, error) {
	rows, err := db.Query(`
		SELECT service, last_sync_time, last_sync_token, status, error_message, created_at, updated_at
		FROM sync_state
		ORDER BY service
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []SyncState
	for rows.Next() {
		state, err := scanSyncState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		states = append(states, *state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync states: %w", err)
	}

	return states, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSyncState(s scanner) (*SyncState, error) {
	var state SyncState
	var lastSyncTime sql.NullTime
	var lastSyncToken sql.NullString
	var errorMessage sql.NullString

	err := s.Scan(
		&state.Service,
		&lastSyncTime,
		&lastSyncToken,
		&state.Status,
		&errorMessage,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastSyncTime.Valid {
		state.LastSyncTime = &lastSyncTime.Time
	}
	if lastSyncToken.Valid {
		state.LastSyncToken = &lastSyncToken.String
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}

	return &state, nil
}

// CheckSyncLogExists reports whether a record was already upserted successfully.
func CheckSyncLogExists(db *sql.DB, sourceService, sourceID string) (bool, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM sync_log
		WHERE source_service = ? AND source_id = ? AND success = 1
	`, sourceService, sourceID).Scan(&count)

	if err != nil {
		return false, fmt.Errorf("failed to check sync log: %w", err)
	}

	return count > 0, nil
}

// CreateSyncLog journals one upsert attempt. A zero ID is replaced with a new UUID.
func CreateSyncLog(db *sql.DB, entry *SyncLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ImportedAt.IsZero() {
		entry.ImportedAt = time.Now().UTC()
	}

	var vanID sql.NullInt64
	if entry.VanID != nil {
		vanID = sql.NullInt64{Int64: int64(*entry.VanID), Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO sync_log (id, run_id, source_service, source_id, van_id, success, is_updated, merged, error, metadata, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID.String(),
		entry.RunID,
		entry.SourceService,
		entry.SourceID,
		vanID,
		entry.Success,
		entry.IsUpdated,
		entry.Merged,
		nullString(entry.Error),
		nullString(entry.Metadata),
		entry.ImportedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}

	return nil
}

// ListSyncLogs returns journal entries, newest first.
func ListSyncLogs(db *sql.DB, filter SyncLogFilter) ([]SyncLog, error) {
	query := `
		SELECT id, run_id, source_service, source_id, van_id, success, is_updated, merged, error, metadata, imported_at
		FROM sync_log
	`

	var conditions []string
	var args []any
	if filter.SourceService != "" {
		conditions = append(conditions, "source_service = ?")
		args = append(args, filter.SourceService)
	}
	if filter.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.FailedOnly {
		conditions = append(conditions, "success = 0")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY imported_at DESC, rowid DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []SyncLog
	for rows.Next() {
		var entry SyncLog
		var id string
		var vanID sql.NullInt64
		var errMsg, metadata sql.NullString

		if err := rows.Scan(
			&id,
			&entry.RunID,
			&entry.SourceService,
			&entry.SourceID,
			&vanID,
			&entry.Success,
			&entry.IsUpdated,
			&entry.Merged,
			&errMsg,
			&metadata,
			&entry.ImportedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}

		entry.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid sync log id %q: %w", id, err)
		}
		if vanID.Valid {
			v := int(vanID.Int64)
			entry.VanID = &v
		}
		entry.Error = errMsg.String
		entry.Metadata = metadata.String

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync log: %w", err)
	}

	return entries, nil
}

// ListRuns summarizes the most recent runs, newest first.
func ListRuns(db *sql.DB, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.Query(`
		SELECT run_id, MIN(source_service), COUNT(*),
			SUM(success), SUM(CASE WHEN success = 1 AND is_updated = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
			MIN(imported_at), MAX(imported_at)
		FROM sync_log
		GROUP BY run_id
		ORDER BY MAX(imported_at) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var started, finished string
		if err := rows.Scan(
			&run.RunID,
			&run.SourceService,
			&run.Total,
			&run.Succeeded,
			&run.Updated,
			&run.Failed,
			&started,
			&finished,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// parseTimestamp reads the text form SQLite returns for aggregated DATETIME columns.
func parseTimestamp(s string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
