package drafts

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

// InitSchema creates the draft table if it doesn't exist
func InitSchema(db *sql.DB) error {
	log.Info("Initializing survey-service database schema...")

	draftsTableSQL := `
	CREATE TABLE IF NOT EXISTS survey_drafts(
		draft_key VARCHAR(128) NOT NULL,
		payload JSON NOT NULL,
		ts BIGINT NOT NULL,
		PRIMARY KEY (draft_key),
		INDEX ts_index (ts)
	)`

	if _, err := db.Exec(draftsTableSQL); err != nil {
		return fmt.Errorf("failed to create survey_drafts table: %w", err)
	}
	log.Info("Survey_drafts table created/verified")

	return nil
}
