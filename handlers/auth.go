// handlers/auth.go
package handlers

import (
	"naval-battle-server/middleware"
	"naval-battle-server/services"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Service *services.AuthService
}

func SetupAuthRoutes(app *fiber.App, authService *services.AuthService) {
	h := &AuthHandler{Service: authService}

	app.Post("/auth/register", h.Register)
	app.Post("/auth/login", h.Login)
	app.Get("/auth/profile/:id", h.ProfileByID)

	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/auth/profile", h.Profile)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, services.ErrMissingFields)
	}
	user, err := h.Service.Register(req.Username, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "user registered",
		"user":    user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, services.ErrMissingFields)
	}
	token, user, err := h.Service.Login(req.Email, req.Password)
	if err != nil {
		// credential failures are reported as 401, not 403
		if ge := services.AsGameError(err); ge.Code == "invalid_credentials" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"code":    ge.Code,
				"message": ge.Message,
			})
		}
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "token": token, "user": user})
}

func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	user, err := h.Service.Profile(middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}

func (h *AuthHandler) ProfileByID(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fail(c, services.ErrUserNotFound)
	}
	user, err := h.Service.Profile(uint(id))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}
