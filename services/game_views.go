// services/game_views.go
//
// Read-side projections of game state. Fog of war lives entirely here:
// boards are stored with ships visible and redacted at read time for the
// opponent's view. Nothing in this file mutates state.
package services

import (
	"errors"
	"time"

	"naval-battle-server/models"

	"gorm.io/gorm"
)

type GameSummary struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Status   string `json:"status"`
	WinnerID *uint  `json:"winner_id"`
}

type PlayerView struct {
	ID             uint   `json:"id"`
	UserID         uint   `json:"user_id"`
	Username       string `json:"username"`
	Board          Board  `json:"board"`
	ShipsRemaining int    `json:"ships_remaining"`
	IsCurrentTurn  bool   `json:"is_current_turn"`
}

// GameStateView is what the polling client renders: the requester's own
// board unredacted and the opponent's with un-hit ships hidden.
type GameStateView struct {
	Game          GameSummary `json:"game"`
	CurrentPlayer PlayerView  `json:"current_player"`
	Opponent      PlayerView  `json:"opponent"`
}

// GetGameState builds the requesting player's view of an active or finished
// game. The opponent's ships stay secret until hit.
func (s *GameService) GetGameState(gameID, userID uint) (*GameStateView, error) {
	var game models.Game
	if err := s.DB.Preload("Players.User").First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, infraErr("load game", err)
	}

	var me, opponent *models.GamePlayer
	for i := range game.Players {
		if game.Players[i].UserID == userID {
			me = &game.Players[i]
		} else {
			opponent = &game.Players[i]
		}
	}
	if me == nil || opponent == nil {
		return nil, ErrPlayerNotFound
	}

	myBoard, err := UnmarshalBoard(me.Board)
	if err != nil {
		return nil, infraErr("deserialize board", err)
	}
	theirBoard, err := UnmarshalBoard(opponent.Board)
	if err != nil {
		return nil, infraErr("deserialize board", err)
	}

	return &GameStateView{
		Game: GameSummary{
			ID:       game.ID,
			Name:     game.Name,
			Slug:     game.Slug,
			Status:   game.Status,
			WinnerID: game.WinnerID,
		},
		CurrentPlayer: playerView(me, myBoard),
		Opponent:      playerView(opponent, theirBoard.Redacted()),
	}, nil
}

func playerView(p *models.GamePlayer, board Board) PlayerView {
	v := PlayerView{
		ID:             p.ID,
		UserID:         p.UserID,
		Board:          board,
		ShipsRemaining: p.ShipsRemaining,
		IsCurrentTurn:  p.IsCurrentTurn,
	}
	if p.User != nil {
		v.Username = p.User.Username
	}
	return v
}

type GamePlayerInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type GameListItem struct {
	ID          uint             `json:"id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	Status      string           `json:"status"`
	Creator     string           `json:"creator"`
	CreatorID   uint             `json:"creator_id"`
	PlayerCount int              `json:"player_count"`
	Players     []GamePlayerInfo `json:"players"`
}

// ListWaitingGames returns the open lobby list.
func (s *GameService) ListWaitingGames() ([]GameListItem, error) {
	var games []models.Game
	err := s.DB.Where("status = ?", models.GameStatusWaiting).
		Preload("Creator").
		Preload("Players.User").
		Order("created_at DESC").
		Find(&games).Error
	if err != nil {
		return nil, infraErr("list waiting games", err)
	}
	return listItems(games), nil
}

// ListActiveGamesForUser returns active games the user is playing in.
func (s *GameService) ListActiveGamesForUser(userID uint) ([]GameListItem, error) {
	var games []models.Game
	err := s.DB.
		Joins("JOIN game_players ON game_players.game_id = games.id").
		Where("game_players.user_id = ? AND games.status = ?", userID, models.GameStatusActive).
		Preload("Creator").
		Preload("Players.User").
		Find(&games).Error
	if err != nil {
		return nil, infraErr("list active games", err)
	}
	return listItems(games), nil
}

func listItems(games []models.Game) []GameListItem {
	items := make([]GameListItem, 0, len(games))
	for _, g := range games {
		item := GameListItem{
			ID:          g.ID,
			Name:        g.Name,
			Slug:        g.Slug,
			Status:      g.Status,
			CreatorID:   g.CreatorID,
			PlayerCount: len(g.Players),
		}
		if g.Creator != nil {
			item.Creator = g.Creator.Username
		}
		for _, p := range g.Players {
			info := GamePlayerInfo{ID: p.UserID}
			if p.User != nil {
				info.Username = p.User.Username
			}
			item.Players = append(item.Players, info)
		}
		items = append(items, item)
	}
	return items
}

type MoveView struct {
	ID            uint      `json:"id"`
	Position      string    `json:"position"`
	Hit           bool      `json:"hit"`
	ShipDestroyed bool      `json:"ship_destroyed"`
	Player        string    `json:"player"`
	TargetPlayer  string    `json:"target_player"`
	CreatedAt     time.Time `json:"created_at"`
}

// GetMoves returns a game's move log in play order.
func (s *GameService) GetMoves(gameID uint) ([]MoveView, error) {
	var moves []models.GameMove
	err := s.DB.Where("game_id = ?", gameID).
		Preload("Player").
		Preload("TargetPlayer").
		Order("created_at ASC").
		Find(&moves).Error
	if err != nil {
		return nil, infraErr("list moves", err)
	}

	views := make([]MoveView, 0, len(moves))
	for _, m := range moves {
		v := MoveView{
			ID:            m.ID,
			Position:      m.Position,
			Hit:           m.Hit,
			ShipDestroyed: m.ShipDestroyed,
			CreatedAt:     m.CreatedAt,
		}
		if m.Player != nil {
			v.Player = m.Player.Username
		}
		if m.TargetPlayer != nil {
			v.TargetPlayer = m.TargetPlayer.Username
		}
		views = append(views, v)
	}
	return views, nil
}

type StatsGame struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Opponent  string    `json:"opponent"`
	CreatedAt time.Time `json:"created_at"`
}

type UserStats struct {
	TotalGames int         `json:"total_games"`
	WonGames   int         `json:"won_games"`
	LostGames  int         `json:"lost_games"`
	WonList    []StatsGame `json:"won_games_list"`
	LostList   []StatsGame `json:"lost_games_list"`
}

// GetUserStats partitions the user's finished games by whether they won.
func (s *GameService) GetUserStats(userID uint) (*UserStats, error) {
	var won []models.Game
	err := s.DB.Where("status = ? AND winner_id = ?", models.GameStatusFinished, userID).
		Preload("Players.User").
		Find(&won).Error
	if err != nil {
		return nil, infraErr("list won games", err)
	}

	var lost []models.Game
	err = s.DB.
		Joins("JOIN game_players ON game_players.game_id = games.id").
		Where("game_players.user_id = ? AND games.status = ? AND games.winner_id <> ?",
			userID, models.GameStatusFinished, userID).
		Preload("Players.User").
		Find(&lost).Error
	if err != nil {
		return nil, infraErr("list lost games", err)
	}

	stats := &UserStats{
		TotalGames: len(won) + len(lost),
		WonGames:   len(won),
		LostGames:  len(lost),
		WonList:    statsGames(won, userID),
		LostList:   statsGames(lost, userID),
	}
	return stats, nil
}

func statsGames(games []models.Game, userID uint) []StatsGame {
	out := make([]StatsGame, 0, len(games))
	for _, g := range games {
		sg := StatsGame{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt}
		for _, p := range g.Players {
			if p.UserID != userID && p.User != nil {
				sg.Opponent = p.User.Username
			}
		}
		out = append(out, sg)
	}
	return out
}

type FinalBoards struct {
	Player1Board    Board  `json:"player1_board"`
	Player2Board    Board  `json:"player2_board"`
	Player1Username string `json:"player1_username"`
	Player2Username string `json:"player2_username"`
}

type GameDetailPlayer struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	ShipsRemaining int    `json:"ships_remaining"`
}

type GameDetails struct {
	Game        GameSummary        `json:"game"`
	Players     []GameDetailPlayer `json:"players"`
	FinalBoards *FinalBoards       `json:"final_board_state"`
	Moves       []MoveView         `json:"moves"`
}

// GetGameDetails is the post-game view: both boards fully visible plus the
// complete move log. FinalBoards is nil until at least one move was made.
func (s *GameService) GetGameDetails(gameID uint) (*GameDetails, error) {
	var game models.Game
	if err := s.DB.Preload("Players.User").First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, infraErr("load game", err)
	}

	moves, err := s.GetMoves(gameID)
	if err != nil {
		return nil, err
	}

	details := &GameDetails{
		Game: GameSummary{
			ID:       game.ID,
			Name:     game.Name,
			Slug:     game.Slug,
			Status:   game.Status,
			WinnerID: game.WinnerID,
		},
		Moves: moves,
	}
	for _, p := range game.Players {
		dp := GameDetailPlayer{ID: p.UserID, ShipsRemaining: p.ShipsRemaining}
		if p.User != nil {
			dp.Username = p.User.Username
		}
		details.Players = append(details.Players, dp)
	}

	if len(moves) > 0 && len(game.Players) == 2 {
		b1, err := UnmarshalBoard(game.Players[0].Board)
		if err != nil {
			return nil, infraErr("deserialize board", err)
		}
		b2, err := UnmarshalBoard(game.Players[1].Board)
		if err != nil {
			return nil, infraErr("deserialize board", err)
		}
		fb := &FinalBoards{Player1Board: b1, Player2Board: b2}
		if game.Players[0].User != nil {
			fb.Player1Username = game.Players[0].User.Username
		}
		if game.Players[1].User != nil {
			fb.Player2Username = game.Players[1].User.Username
		}
		details.FinalBoards = fb
	}
	return details, nil
}
