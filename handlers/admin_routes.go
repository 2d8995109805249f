// handlers/admin_routes.go
package handlers

import (
	"trivia-prize-system/middleware"
	"trivia-prize-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(
	app *fiber.App,
	gameService *services.GameService,
	winnerService *services.WinnerService,
	discountService *services.DiscountService,
	claimService *services.ClaimService,
) {
	// 🔐 Admin routes — require user context (userID, roles) from Gateway
	admin := app.Group("/s/admin", middleware.UserContextMiddleware())

	games := admin.Group("/", middleware.RequireCapability("manage_games"))
	games.Post("/games", gameService.CreateGame)
	games.Patch("/games/:id/status", gameService.UpdateGameStatus)
	games.Delete("/games/:id", gameService.DeleteGame)
	games.Post("/games/:id/questions", gameService.CreateQuestion)
	games.Get("/games/:id/questions", gameService.ListQuestions)

	rounds := admin.Group("/", middleware.RequireCapability("manage_rounds"))
	rounds.Post("/rounds/:id/finalize", winnerService.FinalizeRound)
	rounds.Post("/actions", discountService.IssueDiscount)
	rounds.Get("/actions", discountService.ListUserActions)

	prizes := admin.Group("/", middleware.RequireCapability("manage_prizes"))
	prizes.Patch("/fulfillments/:id", claimService.UpdateFulfillment)
}
