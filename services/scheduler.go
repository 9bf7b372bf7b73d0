// services/scheduler.go
package services

import (
	"time"

	"naval-battle-server/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StartLobbyJanitor sweeps abandoned lobbies: waiting games nobody joined
// within ttl are deleted with the same cascade (and the same per-game lock)
// as an explicit cancel. Active and finished games are never touched. A
// non-positive ttl disables the janitor.
func (s *GameService) StartLobbyJanitor(ttl time.Duration) {
	if ttl <= 0 {
		log.Info().Msg("lobby janitor disabled")
		return
	}

	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-ttl)

			var stale []models.Game
			err := s.DB.Where("status = ? AND created_at < ?", models.GameStatusWaiting, cutoff).
				Find(&stale).Error
			if err != nil {
				log.Error().Err(err).Msg("lobby janitor: query failed")
				return
			}

			for _, g := range stale {
				err := s.DB.Transaction(func(tx *gorm.DB) error {
					var game models.Game
					if err := lockGame(tx, g.ID, &game); err != nil {
						return err
					}
					// re-check under the lock: a join may have raced us
					if game.Status != models.GameStatusWaiting {
						return nil
					}
					return deleteGameCascade(tx, game.ID)
				})
				if err != nil {
					log.Error().Err(err).Uint("game_id", g.ID).Msg("lobby janitor: delete failed")
				} else {
					log.Info().Uint("game_id", g.ID).Str("name", g.Name).Msg("lobby janitor: removed stale lobby")
				}
			}
		}),
	)
}
