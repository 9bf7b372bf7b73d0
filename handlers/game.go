// handlers/game.go
package handlers

import (
	"naval-battle-server/middleware"
	"naval-battle-server/models"
	"naval-battle-server/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type GameHandler struct {
	Service *services.GameService
}

func SetupGameRoutes(app *fiber.App, gameService *services.GameService) {
	h := &GameHandler{Service: gameService}

	// everything game-related requires an authenticated user
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/games", h.Index)
	secured.Post("/games", h.Create)
	secured.Get("/games/active", h.ActiveGames)
	secured.Post("/games/:id/join", h.Join)
	secured.Delete("/games/:id/cancel", h.Cancel)
	secured.Post("/games/:id/surrender", h.Surrender)
	secured.Get("/games/:id", h.Show)
	secured.Post("/games/:id/move", h.MakeMove)
	secured.Get("/games/:id/moves", h.Moves)
	secured.Get("/games/:id/details", h.Details)
	secured.Get("/users/:userId/stats", h.UserStats)
}

// statusFor maps an error kind to an HTTP status so every failure mode keeps
// a stable, distinct shape on the wire.
func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindStateConflict:
		return fiber.StatusConflict
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	ge := services.AsGameError(err)
	if ge.Kind == services.KindInfrastructure {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(statusFor(ge.Kind)).JSON(fiber.Map{
		"success": false,
		"code":    ge.Code,
		"message": ge.Message,
	})
}

func gameID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, services.ErrGameNotFound
	}
	return uint(id), nil
}

// Index lists lobbies waiting for an opponent.
func (h *GameHandler) Index(c *fiber.Ctx) error {
	games, err := h.Service.ListWaitingGames()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "games": games})
}

// ActiveGames lists active games the requesting user plays in.
func (h *GameHandler) ActiveGames(c *fiber.Ctx) error {
	games, err := h.Service.ListActiveGamesForUser(middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "active_games": games})
}

type createGameRequest struct {
	Name string `json:"name"`
}

func (h *GameHandler) Create(c *fiber.Ctx) error {
	var req createGameRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, services.ErrMissingFields)
	}
	game, err := h.Service.CreateGame(req.Name, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "game created",
		"game": fiber.Map{
			"id":     game.ID,
			"name":   game.Name,
			"slug":   game.Slug,
			"status": game.Status,
		},
	})
}

func (h *GameHandler) Join(c *fiber.Ctx) error {
	id, err := gameID(c)
	if err != nil {
		return fail(c, err)
	}
	player, err := h.Service.JoinGame(id, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}

	state, err := h.Service.GetGameState(id, middleware.UserID(c))
	started := err == nil && state.Game.Status == models.GameStatusActive

	return c.JSON(fiber.Map{
		"success":         true,
		"message":         "joined game",
		"should_redirect": started,
		"game_id":         id,
		"game_player": fiber.Map{
			"id":              player.ID,
			"game_id":         player.GameID,
			"user_id":         player.UserID,
			"ships_remaining": player.ShipsRemaining,
			"is_current_turn": player.IsCurrentTurn,
		},
	})
}

func (h *GameHandler) Cancel(c *fiber.Ctx) error {
	id, err := gameID(c)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Service.CancelGame(id, middleware.UserID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "matchmaking cancelled"})
}

func (h *GameHandler) Surrender(c *fiber.Ctx) error {
	id, err := gameID(c)
	if err != nil {
		return fail(c, err)
	}
	result, err := h.Service.Surrender(id, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "you surrendered", "result": result})
}

// Show is the polled game-state endpoint: the requester's own board plus the
// opponent's redacted one.
func (h *GameHandler) Show(c *fiber.Ctx) error {
	id, err := gameID(c)
	if err != nil {
		return fail(c, err)
	}
	state, err := h.Service.GetGameState(id, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "game_state": state})
}

type moveRequest struct {
	Position string `json:"position"`
}

func (h *GameHandler) MakeMove(c *fiber.Ctx) error {
	id, err := gameID(c)
	if err != nil {
		return fail(c, err)
	}
	var req moveRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, services.ErrMissingFields)
	}
	result, err := h.Service.MakeMove(id, middleware.UserID(c), req.Position)
	if err != nil {
		return fail(c, err)
	}

	message := "miss"
	if result.Hit {
		message = "hit!"
	}
	return c.JSON(fiber.Map{"success": true, "message": message, "result": result})
}

func (h *GameHandler) Moves(c *fiber.Ctx) error {
	id, err := gameID(c)
	if err != nil {
		return fail(c, err)
	}
	moves, err := h.Service.GetMoves(id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "moves": moves})
}

func (h *GameHandler) Details(c *fiber.Ctx) error {
	id, err := gameID(c)
	if err != nil {
		return fail(c, err)
	}
	details, err := h.Service.GetGameDetails(id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "game": details})
}

func (h *GameHandler) UserStats(c *fiber.Ctx) error {
	id, err := c.ParamsInt("userId")
	if err != nil || id <= 0 {
		return fail(c, services.ErrUserNotFound)
	}
	stats, err := h.Service.GetUserStats(uint(id))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats})
}
