package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"survey-service/models"

	"github.com/apex/log"
)

// Store persists draft snapshots of in-progress surveys, keyed by task id.
// Failures degrade to "no draft available"; they never block the wizard.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewStore(db *sql.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl, now: time.Now}
}

// Key returns the storage key for a task id.
func Key(taskId string) string {
	return fmt.Sprintf("survey-draft-%s", taskId)
}

// Save writes a snapshot for the task. No-op when the task id is absent or
// the draft holds no village yet, so essentially-empty drafts are never
// persisted.
func (s *Store) Save(ctx context.Context, taskId string, snap *models.DraftSnapshot) error {
	if taskId == "" {
		return nil
	}
	if snap.Data.VillageId == "" && snap.Data.VillageName == "" {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		log.Errorf("Failed to serialize draft for task %s: %v", taskId, err)
		return err
	}

	result, err := s.db.ExecContext(ctx, `INSERT
		INTO survey_drafts (draft_key, payload, ts)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE payload=?, ts=?`,
		Key(taskId), payload, snap.Timestamp, payload, snap.Timestamp)
	logResult("saveDraft", result, err)
	return err
}

// Load returns the stored snapshot for the task, or nil when none is usable.
// A snapshot older than the TTL is deleted silently. Corrupt payloads are
// logged, deleted and treated as "no draft".
func (s *Store) Load(ctx context.Context, taskId string) (*models.DraftSnapshot, error) {
	if taskId == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload, ts FROM survey_drafts WHERE draft_key = ?`, Key(taskId))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	var (
		payload []byte
		ts      int64
	)
	if err := rows.Scan(&payload, &ts); err != nil {
		return nil, err
	}
	rows.Close()

	cutoff := s.now().Add(-s.ttl).UnixMilli()
	if ts < cutoff {
		log.Infof("Draft for task %s expired, discarding silently", taskId)
		if err := s.Delete(ctx, taskId); err != nil {
			log.Warnf("Failed to delete expired draft for task %s: %v", taskId, err)
		}
		return nil, nil
	}

	snap := &models.DraftSnapshot{}
	if err := json.Unmarshal(payload, snap); err != nil {
		log.Warnf("Corrupt draft payload for task %s, discarding: %v", taskId, err)
		if err := s.Delete(ctx, taskId); err != nil {
			log.Warnf("Failed to delete corrupt draft for task %s: %v", taskId, err)
		}
		return nil, nil
	}

	return snap, nil
}

// Delete removes the snapshot for the task. Called on successful submission
// and on explicit discard.
func (s *Store) Delete(ctx context.Context, taskId string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM survey_drafts WHERE draft_key = ?`, Key(taskId))
	logResult("deleteDraft", result, err)
	return err
}

// PurgeExpired removes every snapshot older than the TTL and returns the
// number of rows removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl).UnixMilli()
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM survey_drafts WHERE ts < ?`, cutoff)
	if err != nil {
		log.Errorf("Error purging expired drafts: %v", err)
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func logResult(operation string, result sql.Result, err error) {
	if err != nil {
		log.Errorf("Error in %s: %v", operation, err)
	} else {
		rowsAffected, _ := result.RowsAffected()
		log.Infof("%s: %d rows affected", operation, rowsAffected)
	}
}
