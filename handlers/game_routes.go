// handlers/game_routes.go
package handlers

import (
	"trivia-prize-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App, gameService *services.GameService, roundService *services.RoundService) {
	// 🔓 Public catalog routes — *no user context*, but **still require Gateway auth**
	app.Get("/games", gameService.ListGames)
	app.Get("/games/:id", gameService.GetGame)
	app.Get("/games/:id/rounds/open", roundService.GetOpenRound)
}
