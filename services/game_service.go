package services

import (
	"errors"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"trivia-prize-system/models"
	"trivia-prize-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type GameService struct {
	DB *gorm.DB
}

func NewGameService(db *gorm.DB) *GameService {
	return &GameService{DB: db}
}

// CreateGame creates a prize template and opens round 1 for it.
// POST /admin/games (multipart form)
func (s *GameService) CreateGame(c *fiber.Ctx) error {
	name := c.FormValue("name")
	prizeName := c.FormValue("prize_name")
	entryFeeStr := c.FormValue("entry_fee")
	maxPlayersStr := c.FormValue("max_players")

	if name == "" || prizeName == "" || entryFeeStr == "" || maxPlayersStr == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name, prize_name, entry_fee and max_players are required"})
	}

	entryFee, err := strconv.ParseFloat(entryFeeStr, 64)
	if err != nil || entryFee < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "entry_fee must be a non-negative number"})
	}
	maxPlayers, err := strconv.Atoi(maxPlayersStr)
	if err != nil || maxPlayers < 2 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "max_players must be an integer >= 2"})
	}

	game := &models.Game{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        slug.Make(name),
		Description: c.FormValue("description"),
		PrizeName:   prizeName,
		Currency:    strings.ToUpper(c.FormValue("currency")),
		EntryFee:    entryFee,
		MaxPlayers:  maxPlayers,
		Status:      models.GameStatusActive,
	}
	if game.Currency == "" {
		game.Currency = "USD"
	}
	if v := c.FormValue("prize_value"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			game.PrizeValue = f
		} else {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "prize_value must be a non-negative number"})
		}
	}
	if v := c.FormValue("questions_per_round"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			game.QuestionsPerRound = n
		} else {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "questions_per_round must be a positive integer"})
		}
	}
	if v := c.FormValue("completion_window_mins"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			game.CompletionWindowMins = n
		}
	}
	game.AutoRestart = strings.ToLower(c.FormValue("auto_restart")) != "false"

	// Prize image → R2, local uploads dir as fallback when R2 is not configured
	if imageFile, err := c.FormFile("prize_image"); err == nil && imageFile.Size > 0 {
		ext := filepath.Ext(imageFile.Filename)
		if ext == "" {
			ext = ".jpg"
		}
		key := "prizes/" + uuid.NewString() + ext
		if utils.R2Enabled() {
			url, err := utils.UploadFileToR2(imageFile, key)
			if err != nil {
				log.Printf("[GAMES] prize image upload failed: %v", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload prize image"})
			}
			game.PrizeImageURL = url
		} else {
			localPath := utils.GetUploadPath(key)
			if err := utils.SaveFile(imageFile, localPath); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save prize image"})
			}
			game.PrizeImageURL = "/" + localPath
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(game).Error; err != nil {
			return err
		}
		_, err := CreateRound(tx, game.ID)
		return err
	})
	if err != nil {
		log.Printf("[GAMES] create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create game", "details": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(game)
}

// ListGames returns active games for the public catalogue.
// GET /games
func (s *GameService) ListGames(c *fiber.Ctx) error {
	var games []models.Game
	query := s.DB.Order("created_at DESC")
	if c.Query("all") != "true" {
		query = query.Where("status = ?", models.GameStatusActive)
	}
	if err := query.Find(&games).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(games)
}

// GetGame fetches a game by id or slug.
// GET /games/:id
func (s *GameService) GetGame(c *fiber.Ctx) error {
	idOrSlug := c.Params("id")
	var game models.Game
	err := s.DB.Where("id = ? OR slug = ?", idOrSlug, idOrSlug).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(game)
}

// UpdateGameStatus pauses, reactivates or disables a game.
// PATCH /admin/games/:id/status
func (s *GameService) UpdateGameStatus(c *fiber.Ctx) error {
	type Req struct {
		Status string `json:"status" validate:"required,oneof=active paused completed disabled"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	switch req.Status {
	case models.GameStatusActive, models.GameStatusPaused, models.GameStatusCompleted, models.GameStatusDisabled:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be active, paused, completed or disabled"})
	}

	res := s.DB.Model(&models.Game{}).Where("id = ?", c.Params("id")).Update("status", req.Status)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "update failed"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	}
	return c.JSON(fiber.Map{"message": "status updated", "status": req.Status})
}

// DeleteGame soft-deletes a game. Rounds and their participants cascade.
// DELETE /admin/games/:id
func (s *GameService) DeleteGame(c *fiber.Ctx) error {
	result := s.DB.Delete(&models.Game{}, "id = ?", c.Params("id"))
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	}
	return c.JSON(fiber.Map{"message": "game deleted"})
}

// CreateQuestion adds a question to a game's pool.
// POST /admin/games/:id/questions
func (s *GameService) CreateQuestion(c *fiber.Ctx) error {
	type Req struct {
		Text     string `json:"text" validate:"required"`
		OptionA  string `json:"option_a" validate:"required"`
		OptionB  string `json:"option_b" validate:"required"`
		OptionC  string `json:"option_c" validate:"required"`
		OptionD  string `json:"option_d" validate:"required"`
		Correct  string `json:"correct" validate:"required,oneof=a b c d"`
		Category string `json:"category,omitempty"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Text == "" || req.OptionA == "" || req.OptionB == "" || req.OptionC == "" || req.OptionD == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text and all four options are required"})
	}
	switch req.Correct {
	case "a", "b", "c", "d":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "correct must be one of a, b, c, d"})
	}

	var game models.Game
	if err := s.DB.First(&game, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	}

	question := models.Question{
		ID:       uuid.NewString(),
		GameID:   game.ID,
		Text:     req.Text,
		OptionA:  req.OptionA,
		OptionB:  req.OptionB,
		OptionC:  req.OptionC,
		OptionD:  req.OptionD,
		Correct:  req.Correct,
		Category: req.Category,
		Active:   true,
	}
	if err := s.DB.Create(&question).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create question"})
	}
	return c.Status(fiber.StatusCreated).JSON(question)
}

// ListQuestions returns a game's question pool. The correct option is
// re-attached here because the model hides it from player responses.
// GET /admin/games/:id/questions
func (s *GameService) ListQuestions(c *fiber.Ctx) error {
	var questions []models.Question
	if err := s.DB.Where("game_id = ?", c.Params("id")).Find(&questions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	type adminQuestion struct {
		models.Question
		Correct string `json:"correct"`
	}
	out := make([]adminQuestion, len(questions))
	for i, q := range questions {
		out[i] = adminQuestion{Question: q, Correct: q.Correct}
	}
	return c.JSON(out)
}
