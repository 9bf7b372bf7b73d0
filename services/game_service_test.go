package services

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"naval-battle-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// one shared in-memory database per test, named after the test so
	// parallel tests never collide
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.GamePlayer{},
		&models.GameMove{},
	))
	return db
}

func newTestService(t *testing.T) (*GameService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewGameServiceWithRand(db, rand.New(rand.NewSource(1))), db
}

func newUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Password: "x"}
	require.NoError(t, db.Create(u).Error)
	return u
}

// startedGame creates a game and joins both users, returning the active game.
func startedGame(t *testing.T, svc *GameService, db *gorm.DB, u1, u2 *models.User) *models.Game {
	t.Helper()
	game, err := svc.CreateGame("Armada", u1.ID)
	require.NoError(t, err)
	_, err = svc.JoinGame(game.ID, u1.ID)
	require.NoError(t, err)
	_, err = svc.JoinGame(game.ID, u2.ID)
	require.NoError(t, err)

	require.NoError(t, db.First(game, game.ID).Error)
	require.Equal(t, models.GameStatusActive, game.Status)
	return game
}

func loadPlayer(t *testing.T, db *gorm.DB, gameID, userID uint) *models.GamePlayer {
	t.Helper()
	var p models.GamePlayer
	require.NoError(t, db.Where("game_id = ? AND user_id = ?", gameID, userID).First(&p).Error)
	return &p
}

// setBoard overwrites a player's fleet with a crafted one.
func setBoard(t *testing.T, db *gorm.DB, gameID, userID uint, b Board) {
	t.Helper()
	raw, err := b.Marshal()
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.GamePlayer{}).
		Where("game_id = ? AND user_id = ?", gameID, userID).
		Updates(map[string]interface{}{
			"board":           raw,
			"ships_remaining": b.CountRemainingShips(),
		}).Error)
}

// assertOneTurn checks the core turn invariant: exactly one of the two
// players holds the turn.
func assertOneTurn(t *testing.T, db *gorm.DB, gameID uint) {
	t.Helper()
	var players []models.GamePlayer
	require.NoError(t, db.Where("game_id = ?", gameID).Find(&players).Error)
	require.Len(t, players, 2)
	assert.NotEqual(t, players[0].IsCurrentTurn, players[1].IsCurrentTurn)
}

func TestCreateGame(t *testing.T) {
	svc, db := newTestService(t)
	u := newUser(t, db, "ada")

	game, err := svc.CreateGame("Armada Invencible", u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusWaiting, game.Status)
	assert.Equal(t, u.ID, game.CreatorID)
	assert.Equal(t, "armada-invencible", game.Slug)
	assert.Nil(t, game.WinnerID)

	// no participant row until the creator joins
	var players int64
	require.NoError(t, db.Model(&models.GamePlayer{}).Where("game_id = ?", game.ID).Count(&players).Error)
	assert.Zero(t, players)
}

func TestCreateGameGuards(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")

	_, err := svc.CreateGame("", u1.ID)
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.CreateGame("first", u1.ID)
	require.NoError(t, err)
	_, err = svc.CreateGame("second", u1.ID)
	assert.ErrorIs(t, err, ErrHasWaitingGame)

	// u2 playing an active game cannot open a lobby
	u3 := newUser(t, db, "eve")
	game, err := svc.CreateGame("duel", u2.ID)
	require.NoError(t, err)
	_, err = svc.JoinGame(game.ID, u2.ID)
	require.NoError(t, err)
	_, err = svc.JoinGame(game.ID, u3.ID)
	require.NoError(t, err)
	_, err = svc.CreateGame("another", u2.ID)
	assert.ErrorIs(t, err, ErrAlreadyInGame)
}

func TestJoinGame(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")

	game, err := svc.CreateGame("Armada", u1.ID)
	require.NoError(t, err)

	p1, err := svc.JoinGame(game.ID, u1.ID)
	require.NoError(t, err)
	assert.True(t, p1.IsCurrentTurn)
	assert.Equal(t, TotalShips, p1.ShipsRemaining)

	require.NoError(t, db.First(game, game.ID).Error)
	assert.Equal(t, models.GameStatusWaiting, game.Status)

	p2, err := svc.JoinGame(game.ID, u2.ID)
	require.NoError(t, err)
	assert.False(t, p2.IsCurrentTurn)

	require.NoError(t, db.First(game, game.ID).Error)
	assert.Equal(t, models.GameStatusActive, game.Status)

	// boards are generated independently per player
	b1, err := UnmarshalBoard(p1.Board)
	require.NoError(t, err)
	b2, err := UnmarshalBoard(p2.Board)
	require.NoError(t, err)
	assert.Equal(t, TotalShips, b1.CountRemainingShips())
	assert.Equal(t, TotalShips, b2.CountRemainingShips())
	assert.NotEqual(t, b1, b2)

	assertOneTurn(t, db, game.ID)
}

func TestJoinGameErrors(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	u3 := newUser(t, db, "eve")

	_, err := svc.JoinGame(9999, u1.ID)
	assert.ErrorIs(t, err, ErrGameNotFound)

	game, err := svc.CreateGame("Armada", u1.ID)
	require.NoError(t, err)
	_, err = svc.JoinGame(game.ID, u1.ID)
	require.NoError(t, err)

	_, err = svc.JoinGame(game.ID, u1.ID)
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	_, err = svc.JoinGame(game.ID, u2.ID)
	require.NoError(t, err)

	// game went active on the second join; latecomers are rejected on status
	_, err = svc.JoinGame(game.ID, u3.ID)
	assert.ErrorIs(t, err, ErrGameNotWaiting)
}

func TestCancelGame(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")

	game, err := svc.CreateGame("Armada", u1.ID)
	require.NoError(t, err)
	_, err = svc.JoinGame(game.ID, u1.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.CancelGame(game.ID, u2.ID), ErrNotCreator)
	assert.ErrorIs(t, svc.CancelGame(9999, u1.ID), ErrGameNotFound)

	require.NoError(t, svc.CancelGame(game.ID, u1.ID))

	var games, players int64
	require.NoError(t, db.Model(&models.Game{}).Count(&games).Error)
	require.NoError(t, db.Model(&models.GamePlayer{}).Count(&players).Error)
	assert.Zero(t, games)
	assert.Zero(t, players)
}

func TestCancelActiveGameRejected(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	game := startedGame(t, svc, db, u1, u2)

	assert.ErrorIs(t, svc.CancelGame(game.ID, u1.ID), ErrGameNotWaiting)
}

func TestMakeMoveTurnEnforcement(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	game := startedGame(t, svc, db, u1, u2)

	// u1 joined first and holds the turn
	_, err := svc.MakeMove(game.ID, u2.ID, "A1")
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = svc.MakeMove(game.ID, u1.ID, "A1")
	require.NoError(t, err)
	assertOneTurn(t, db, game.ID)
	assert.False(t, loadPlayer(t, db, game.ID, u1.ID).IsCurrentTurn)
	assert.True(t, loadPlayer(t, db, game.ID, u2.ID).IsCurrentTurn)

	// no "go again on hit": the turn always flips
	_, err = svc.MakeMove(game.ID, u1.ID, "B1")
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestMakeMoveValidation(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	game := startedGame(t, svc, db, u1, u2)

	_, err := svc.MakeMove(game.ID, u1.ID, "Z9")
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = svc.MakeMove(9999, u1.ID, "A1")
	assert.ErrorIs(t, err, ErrGameNotFound)

	outsider := newUser(t, db, "eve")
	_, err = svc.MakeMove(game.ID, outsider.ID, "A1")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	// a failed move must not consume the turn or log anything
	assert.True(t, loadPlayer(t, db, game.ID, u1.ID).IsCurrentTurn)
	var moves int64
	require.NoError(t, db.Model(&models.GameMove{}).Count(&moves).Error)
	assert.Zero(t, moves)
}

func TestMakeMoveAlreadyShot(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	game := startedGame(t, svc, db, u1, u2)

	_, err := svc.MakeMove(game.ID, u1.ID, "C3")
	require.NoError(t, err)
	_, err = svc.MakeMove(game.ID, u2.ID, "D4")
	require.NoError(t, err)

	before := loadPlayer(t, db, game.ID, u2.ID)
	_, err = svc.MakeMove(game.ID, u1.ID, "C3")
	assert.ErrorIs(t, err, ErrAlreadyShot)

	// rejection leaves board, ship count and turn untouched
	after := loadPlayer(t, db, game.ID, u2.ID)
	assert.Equal(t, before.Board, after.Board)
	assert.Equal(t, before.ShipsRemaining, after.ShipsRemaining)
	assert.True(t, loadPlayer(t, db, game.ID, u1.ID).IsCurrentTurn)
}

func TestMakeMoveRecordsLog(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	game := startedGame(t, svc, db, u1, u2)

	res, err := svc.MakeMove(game.ID, u1.ID, "E5")
	require.NoError(t, err)

	var move models.GameMove
	require.NoError(t, db.Where("game_id = ?", game.ID).First(&move).Error)
	assert.Equal(t, u1.ID, move.PlayerID)
	assert.Equal(t, u2.ID, move.TargetPlayerID)
	assert.Equal(t, "E5", move.Position)
	assert.Equal(t, res.Hit, move.Hit)

	// the snapshot is the defender's board right after the shot
	snap, err := UnmarshalBoard(move.FinalBoardState)
	require.NoError(t, err)
	row, col, _ := ParsePosition("E5")
	if res.Hit {
		assert.Equal(t, CellHit, snap[row][col])
	} else {
		assert.Equal(t, CellMiss, snap[row][col])
	}
}

func TestWinDetection(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	game := startedGame(t, svc, db, u1, u2)

	// leave the defender a single ship cell at A1
	b := NewBoard()
	b[0][0] = CellShip
	setBoard(t, db, game.ID, u2.ID, b)

	res, err := svc.MakeMove(game.ID, u1.ID, "A1")
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.True(t, res.ShipDestroyed)
	assert.True(t, res.GameFinished)
	require.NotNil(t, res.WinnerID)
	assert.Equal(t, u1.ID, *res.WinnerID)

	require.NoError(t, db.First(game, game.ID).Error)
	assert.Equal(t, models.GameStatusFinished, game.Status)
	require.NotNil(t, game.WinnerID)
	assert.Equal(t, u1.ID, *game.WinnerID)

	assert.Equal(t, 0, loadPlayer(t, db, game.ID, u2.ID).ShipsRemaining)

	var winner, loser models.User
	require.NoError(t, db.First(&winner, u1.ID).Error)
	require.NoError(t, db.First(&loser, u2.ID).Error)
	assert.Equal(t, 1, winner.GamesWon)
	assert.Equal(t, 0, winner.GamesLost)
	assert.Equal(t, 1, loser.GamesLost)
	assert.Equal(t, 0, loser.GamesWon)

	// finished games accept no further moves
	_, err = svc.MakeMove(game.ID, u2.ID, "B2")
	assert.ErrorIs(t, err, ErrGameNotActive)
}

func TestFullMatchAlternation(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	game := startedGame(t, svc, db, u1, u2)

	// both players sweep the grid in lockstep: each position is fired at
	// both boards before moving on, so one fleet must sink within 128 moves
	players := []uint{u1.ID, u2.ID}
	turn := 0
	finished := false
	for row := 0; row < BoardSize && !finished; row++ {
		for col := 0; col < BoardSize && !finished; col++ {
			pos := FormatPosition(row, col)
			for i := 0; i < 2 && !finished; i++ {
				res, err := svc.MakeMove(game.ID, players[turn%2], pos)
				require.NoError(t, err)
				finished = res.GameFinished
				if !finished {
					assertOneTurn(t, db, game.ID)
				}
				turn++
			}
		}
	}
	require.True(t, finished)

	moves, err := svc.GetMoves(game.ID)
	require.NoError(t, err)
	require.Equal(t, turn, len(moves))
	// no two consecutive moves by the same attacker
	for i := 1; i < len(moves); i++ {
		assert.NotEqual(t, moves[i-1].Player, moves[i].Player)
	}
}

func TestSurrenderActiveGame(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	game := startedGame(t, svc, db, u1, u2)

	res, err := svc.Surrender(game.ID, u2.ID)
	require.NoError(t, err)
	assert.True(t, res.GameFinished)
	require.NotNil(t, res.WinnerID)
	assert.Equal(t, u1.ID, *res.WinnerID)

	require.NoError(t, db.First(game, game.ID).Error)
	assert.Equal(t, models.GameStatusFinished, game.Status)
	require.NotNil(t, game.WinnerID)
	assert.Equal(t, u1.ID, *game.WinnerID)

	var winner, loser models.User
	require.NoError(t, db.First(&winner, u1.ID).Error)
	require.NoError(t, db.First(&loser, u2.ID).Error)
	assert.Equal(t, 1, winner.GamesWon)
	assert.Equal(t, 1, loser.GamesLost)
}

func TestSurrenderWaitingGame(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")

	game, err := svc.CreateGame("Armada", u1.ID)
	require.NoError(t, err)
	_, err = svc.JoinGame(game.ID, u1.ID)
	require.NoError(t, err)

	// only the creator can walk away from a waiting lobby
	_, err = svc.Surrender(game.ID, u2.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.Surrender(game.ID, u1.ID)
	require.NoError(t, err)

	var games int64
	require.NoError(t, db.Model(&models.Game{}).Count(&games).Error)
	assert.Zero(t, games)
}

func TestSurrenderNonParticipant(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	outsider := newUser(t, db, "eve")
	game := startedGame(t, svc, db, u1, u2)

	_, err := svc.Surrender(game.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestGetGameStateFogOfWar(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	game := startedGame(t, svc, db, u1, u2)

	_, err := svc.MakeMove(game.ID, u1.ID, "A1")
	require.NoError(t, err)

	state, err := svc.GetGameState(game.ID, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, u1.ID, state.CurrentPlayer.UserID)
	assert.Equal(t, "ada", state.CurrentPlayer.Username)
	assert.Equal(t, u2.ID, state.Opponent.UserID)

	// own fleet fully visible, opponent's only where already shot
	assert.Equal(t, TotalShips, countCells(state.CurrentPlayer.Board, CellShip))
	assert.Equal(t, 0, countCells(state.Opponent.Board, CellShip))

	outsider := newUser(t, db, "eve")
	_, err = svc.GetGameState(game.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = svc.GetGameState(9999, u1.ID)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestListings(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	u3 := newUser(t, db, "eve")

	lobby, err := svc.CreateGame("open lobby", u3.ID)
	require.NoError(t, err)
	_, err = svc.JoinGame(lobby.ID, u3.ID)
	require.NoError(t, err)

	game := startedGame(t, svc, db, u1, u2)

	waiting, err := svc.ListWaitingGames()
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, lobby.ID, waiting[0].ID)
	assert.Equal(t, "eve", waiting[0].Creator)
	assert.Equal(t, 1, waiting[0].PlayerCount)

	active, err := svc.ListActiveGamesForUser(u1.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, game.ID, active[0].ID)

	active, err = svc.ListActiveGamesForUser(u3.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestUserStats(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	game := startedGame(t, svc, db, u1, u2)

	b := NewBoard()
	b[0][0] = CellShip
	setBoard(t, db, game.ID, u2.ID, b)
	_, err := svc.MakeMove(game.ID, u1.ID, "A1")
	require.NoError(t, err)

	stats, err := svc.GetUserStats(u1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalGames)
	assert.Equal(t, 1, stats.WonGames)
	assert.Equal(t, 0, stats.LostGames)
	require.Len(t, stats.WonList, 1)
	assert.Equal(t, "bob", stats.WonList[0].Opponent)

	stats, err = svc.GetUserStats(u2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LostGames)
	require.Len(t, stats.LostList, 1)
	assert.Equal(t, "ada", stats.LostList[0].Opponent)
}

func TestGameDetails(t *testing.T) {
	svc, db := newTestService(t)
	u1 := newUser(t, db, "ada")
	u2 := newUser(t, db, "bob")
	game := startedGame(t, svc, db, u1, u2)

	details, err := svc.GetGameDetails(game.ID)
	require.NoError(t, err)
	assert.Nil(t, details.FinalBoards) // no moves yet
	assert.Len(t, details.Players, 2)

	_, err = svc.MakeMove(game.ID, u1.ID, "A1")
	require.NoError(t, err)

	details, err = svc.GetGameDetails(game.ID)
	require.NoError(t, err)
	require.NotNil(t, details.FinalBoards)
	assert.Len(t, details.Moves, 1)
	assert.Equal(t, "A1", details.Moves[0].Position)

	_, err = svc.GetGameDetails(9999)
	assert.ErrorIs(t, err, ErrGameNotFound)
}
