// handlers/play_routes.go
package handlers

import (
	"time"

	"trivia-prize-system/middleware"
	"trivia-prize-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func SetupPlayRoutes(
	app *fiber.App,
	rdb *redis.Client,
	roundService *services.RoundService,
	paymentService *services.PaymentService,
	quizService *services.QuizService,
	discountService *services.DiscountService,
	claimService *services.ClaimService,
) {
	// 🔓 Public gameplay routes, rate-limited per IP since entry and answers
	// are the abuse-sensitive surface
	play := app.Group("/", middleware.RateLimiter(rdb, "play", 120, time.Minute))

	play.Get("/rounds/:id", roundService.GetRound)
	play.Post("/rounds/:id/join", roundService.JoinRound)

	// Payment settlement callbacks from the payment provider
	play.Post("/participants/:id/payment", paymentService.SettlePayment)

	// Quiz loop
	play.Get("/participants/:id/questions/next", quizService.GetNextQuestion)
	play.Post("/participants/:id/answers", quizService.PostAnswer)

	// Discount codes
	play.Post("/actions/quote", discountService.QuoteDiscount)

	// Prize claims get a tighter limit since tokens are a guessable surface
	claims := app.Group("/claim", middleware.RateLimiter(rdb, "claim", 30, time.Minute))
	claims.Get("/:token", claimService.GetClaim)
	claims.Post("/:token", claimService.PostClaim)
}
