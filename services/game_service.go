package services

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"naval-battle-server/models"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GameService owns the match lifecycle: creation, matchmaking, shot
// resolution and surrender. Every mutating operation runs inside one
// transaction that first locks the game row, so two concurrent requests on
// the same game serialize and the loser fails the same state check the
// winner already passed.
type GameService struct {
	DB *gorm.DB

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewGameService(db *gorm.DB) *GameService {
	return NewGameServiceWithRand(db, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewGameServiceWithRand injects the board-generation randomness, used by
// tests to get deterministic fleets.
func NewGameServiceWithRand(db *gorm.DB, rng *rand.Rand) *GameService {
	return &GameService{DB: db, rng: rng}
}

// newBoard generates a fresh fleet. rand.Rand is not safe for concurrent
// use, so generation is serialized; boards stay independent per player.
func (s *GameService) newBoard() Board {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return GenerateBoard(s.rng)
}

// lockGame loads the game row FOR UPDATE. sqlite (tests) has no row locks
// and serializes writers on its own, so the clause is skipped there.
func lockGame(tx *gorm.DB, gameID uint, game *models.Game) error {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGameNotFound
		}
		return infraErr("load game", err)
	}
	return nil
}

// MoveResult is what a shot (or surrender) reports back to the client.
type MoveResult struct {
	Hit           bool  `json:"hit"`
	ShipDestroyed bool  `json:"ship_destroyed"`
	GameFinished  bool  `json:"game_finished"`
	WinnerID      *uint `json:"winner_id,omitempty"`
}

// CreateGame opens a new lobby in waiting status. A user gets one waiting
// lobby at a time and cannot open one while playing an active game. The
// creator's board is not generated here: it is created when they join, like
// any other player.
func (s *GameService) CreateGame(name string, creatorID uint) (*models.Game, error) {
	if name == "" {
		return nil, ErrMissingFields
	}

	var waiting int64
	if err := s.DB.Model(&models.Game{}).
		Where("creator_id = ? AND status = ?", creatorID, models.GameStatusWaiting).
		Count(&waiting).Error; err != nil {
		return nil, infraErr("count waiting games", err)
	}
	if waiting > 0 {
		return nil, ErrHasWaitingGame
	}

	inActive, err := s.userInActiveGame(s.DB, creatorID)
	if err != nil {
		return nil, err
	}
	if inActive {
		return nil, ErrAlreadyInGame
	}

	game := &models.Game{
		Name:      name,
		Slug:      slug.Make(name),
		Status:    models.GameStatusWaiting,
		CreatorID: creatorID,
	}
	if err := s.DB.Create(game).Error; err != nil {
		return nil, infraErr("create game", err)
	}

	log.Info().Uint("game_id", game.ID).Uint("creator_id", creatorID).Str("slug", game.Slug).Msg("game created")
	return game, nil
}

// JoinGame adds a user to a waiting lobby. The count-then-insert decision
// runs under the game row lock, so a join race cannot produce three players
// or two first-turn holders. The first joiner gets the turn; the second join
// flips the game to active in the same transaction.
func (s *GameService) JoinGame(gameID, userID uint) (*models.GamePlayer, error) {
	var player *models.GamePlayer

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := lockGame(tx, gameID, &game); err != nil {
			return err
		}
		if game.Status != models.GameStatusWaiting {
			return ErrGameNotWaiting
		}

		inActive, err := s.userInActiveGame(tx, userID)
		if err != nil {
			return err
		}
		if inActive {
			return ErrAlreadyInGame
		}

		var existing int64
		if err := tx.Model(&models.GamePlayer{}).
			Where("game_id = ? AND user_id = ?", gameID, userID).
			Count(&existing).Error; err != nil {
			return infraErr("check membership", err)
		}
		if existing > 0 {
			return ErrAlreadyJoined
		}

		var count int64
		if err := tx.Model(&models.GamePlayer{}).
			Where("game_id = ?", gameID).
			Count(&count).Error; err != nil {
			return infraErr("count players", err)
		}
		if count >= 2 {
			return ErrGameFull
		}

		raw, err := s.newBoard().Marshal()
		if err != nil {
			return infraErr("serialize board", err)
		}

		player = &models.GamePlayer{
			GameID:         gameID,
			UserID:         userID,
			Board:          raw,
			ShipsRemaining: TotalShips,
			IsCurrentTurn:  count == 0,
		}
		if err := tx.Create(player).Error; err != nil {
			return infraErr("create player", err)
		}

		if count == 1 {
			if err := tx.Model(&game).Update("status", models.GameStatusActive).Error; err != nil {
				return infraErr("activate game", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint("game_id", gameID).Uint("user_id", userID).Bool("first_turn", player.IsCurrentTurn).Msg("player joined")
	return player, nil
}

// CancelGame deletes a waiting lobby and everything under it. Only the
// creator may cancel, and only before an opponent turned the game active.
func (s *GameService) CancelGame(gameID, userID uint) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := lockGame(tx, gameID, &game); err != nil {
			return err
		}
		if game.CreatorID != userID {
			return ErrNotCreator
		}
		if game.Status != models.GameStatusWaiting {
			return ErrGameNotWaiting
		}
		return deleteGameCascade(tx, gameID)
	})
	if err != nil {
		return err
	}

	log.Info().Uint("game_id", gameID).Uint("user_id", userID).Msg("game cancelled")
	return nil
}

// deleteGameCascade removes a game's moves, players and the game row itself.
func deleteGameCascade(tx *gorm.DB, gameID uint) error {
	if err := tx.Where("game_id = ?", gameID).Delete(&models.GameMove{}).Error; err != nil {
		return infraErr("delete moves", err)
	}
	if err := tx.Where("game_id = ?", gameID).Delete(&models.GamePlayer{}).Error; err != nil {
		return infraErr("delete players", err)
	}
	if err := tx.Delete(&models.Game{}, gameID).Error; err != nil {
		return infraErr("delete game", err)
	}
	return nil
}

// MakeMove resolves one shot by the attacker against the opponent's board:
// turn check, shot application, move log, unconditional turn flip, and win
// detection, all inside the locked transaction. A hit does not grant another
// turn.
func (s *GameService) MakeMove(gameID, userID uint, position string) (*MoveResult, error) {
	// reject malformed positions before touching any state
	if _, _, err := ParsePosition(position); err != nil {
		return nil, err
	}

	var result MoveResult

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := lockGame(tx, gameID, &game); err != nil {
			return err
		}
		if game.Status != models.GameStatusActive {
			return ErrGameNotActive
		}

		var attacker models.GamePlayer
		if err := tx.Where("game_id = ? AND user_id = ?", gameID, userID).
			First(&attacker).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlayerNotFound
			}
			return infraErr("load attacker", err)
		}
		if !attacker.IsCurrentTurn {
			return ErrNotYourTurn
		}

		var defender models.GamePlayer
		if err := tx.Where("game_id = ? AND user_id <> ?", gameID, userID).
			First(&defender).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlayerNotFound
			}
			return infraErr("load defender", err)
		}

		board, err := UnmarshalBoard(defender.Board)
		if err != nil {
			return infraErr("deserialize board", err)
		}

		shot, err := board.ApplyShot(position)
		if err != nil {
			return err
		}

		raw, err := board.Marshal()
		if err != nil {
			return infraErr("serialize board", err)
		}
		remaining := board.CountRemainingShips()

		if err := tx.Model(&defender).Updates(map[string]interface{}{
			"board":           raw,
			"ships_remaining": remaining,
			"is_current_turn": true,
		}).Error; err != nil {
			return infraErr("update defender", err)
		}
		if err := tx.Model(&attacker).Update("is_current_turn", false).Error; err != nil {
			return infraErr("update attacker", err)
		}

		move := &models.GameMove{
			GameID:          gameID,
			PlayerID:        userID,
			TargetPlayerID:  defender.UserID,
			Position:        position,
			Hit:             shot.Hit,
			ShipDestroyed:   shot.ShipDestroyed,
			FinalBoardState: raw,
		}
		if err := tx.Create(move).Error; err != nil {
			return infraErr("record move", err)
		}

		result = MoveResult{Hit: shot.Hit, ShipDestroyed: shot.ShipDestroyed}

		if remaining == 0 {
			if err := finishGame(tx, &game, userID, defender.UserID); err != nil {
				return err
			}
			winnerID := userID
			result.GameFinished = true
			result.WinnerID = &winnerID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Uint("game_id", gameID).
		Uint("user_id", userID).
		Str("position", position).
		Bool("hit", result.Hit).
		Bool("finished", result.GameFinished).
		Msg("move resolved")
	return &result, nil
}

// finishGame marks the game finished with a winner and bumps both users'
// aggregate counters. Runs inside the caller's transaction.
func finishGame(tx *gorm.DB, game *models.Game, winnerID, loserID uint) error {
	if err := tx.Model(game).Updates(map[string]interface{}{
		"status":    models.GameStatusFinished,
		"winner_id": winnerID,
	}).Error; err != nil {
		return infraErr("finish game", err)
	}
	if err := tx.Model(&models.User{}).Where("id = ?", winnerID).
		UpdateColumn("games_won", gorm.Expr("games_won + 1")).Error; err != nil {
		return infraErr("bump winner", err)
	}
	if err := tx.Model(&models.User{}).Where("id = ?", loserID).
		UpdateColumn("games_lost", gorm.Expr("games_lost + 1")).Error; err != nil {
		return infraErr("bump loser", err)
	}
	return nil
}

// Surrender forfeits. On a waiting lobby it behaves like CancelGame (creator
// only); on an active game the opponent wins immediately with the same
// counter updates a sunk fleet produces. Anyone else gets NotParticipant.
func (s *GameService) Surrender(gameID, userID uint) (*MoveResult, error) {
	var result MoveResult

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := lockGame(tx, gameID, &game); err != nil {
			return err
		}

		switch game.Status {
		case models.GameStatusWaiting:
			if game.CreatorID != userID {
				return ErrNotParticipant
			}
			return deleteGameCascade(tx, gameID)

		case models.GameStatusActive:
			var quitter models.GamePlayer
			if err := tx.Where("game_id = ? AND user_id = ?", gameID, userID).
				First(&quitter).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotParticipant
				}
				return infraErr("load quitter", err)
			}
			var opponent models.GamePlayer
			if err := tx.Where("game_id = ? AND user_id <> ?", gameID, userID).
				First(&opponent).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrPlayerNotFound
				}
				return infraErr("load opponent", err)
			}

			if err := finishGame(tx, &game, opponent.UserID, userID); err != nil {
				return err
			}
			winnerID := opponent.UserID
			result = MoveResult{GameFinished: true, WinnerID: &winnerID}
			return nil

		default:
			return ErrNotParticipant
		}
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint("game_id", gameID).Uint("user_id", userID).Msg("player surrendered")
	return &result, nil
}

// userInActiveGame reports whether the user is currently a player in any
// active game.
func (s *GameService) userInActiveGame(tx *gorm.DB, userID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Game{}).
		Joins("JOIN game_players ON game_players.game_id = games.id").
		Where("game_players.user_id = ? AND games.status = ?", userID, models.GameStatusActive).
		Count(&count).Error
	if err != nil {
		return false, infraErr("count active games", err)
	}
	return count > 0, nil
}
