package drafts

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/robfig/cron/v3"
)

// StartSweeper schedules an hourly purge of expired drafts and returns the
// running scheduler so callers can stop it on shutdown.
func StartSweeper(store *Store) *cron.Cron {
	c := cron.New()

	_, err := c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		removed, err := store.PurgeExpired(ctx)
		if err != nil {
			log.Errorf("Draft sweep failed: %v", err)
			return
		}
		if removed > 0 {
			log.Infof("Draft sweep removed %d expired drafts", removed)
		}
	})
	if err != nil {
		log.Errorf("Failed to schedule draft sweeper: %v", err)
		return c
	}

	c.Start()
	log.Info("Draft sweeper scheduled hourly")
	return c
}
