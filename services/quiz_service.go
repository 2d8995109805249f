package services

import (
	"errors"
	"log"

	"trivia-prize-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuizService struct {
	DB      *gorm.DB
	Ranking *RankingService
}

func NewQuizService(db *gorm.DB, ranking *RankingService) *QuizService {
	return &QuizService{DB: db, Ranking: ranking}
}

// ServedQuestion is the player-facing view. The correct option never leaves
// the server.
type ServedQuestion struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Total    int    `json:"total"`
	Text     string `json:"text"`
	OptionA  string `json:"option_a"`
	OptionB  string `json:"option_b"`
	OptionC  string `json:"option_c"`
	OptionD  string `json:"option_d"`
	Category string `json:"category,omitempty"`
}

// NextQuestion picks a random question from the game's pool that this email
// has never been shown for this game, and records the exposure.
func (s *QuizService) NextQuestion(participantID string) (*ServedQuestion, error) {
	var served *ServedQuestion

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		participant, game, err := loadPlayContext(tx, participantID)
		if err != nil {
			return err
		}
		if participant.GameCompleted {
			return ErrInvalidTransition
		}
		if participant.QuestionsSeen >= game.QuestionsPerRound {
			return ErrInvalidTransition
		}

		var question models.Question
		err = tx.Where("game_id = ? AND active = ?", game.ID, true).
			Where("id NOT IN (?)",
				tx.Model(&models.ParticipantQuestionHistory{}).
					Select("question_id").
					Where("email = ? AND game_id = ?", participant.Email, game.ID)).
			Order("RANDOM()").
			First(&question).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestionExhausted
			}
			return err
		}

		history := models.ParticipantQuestionHistory{
			ID:            uuid.NewString(),
			Email:         participant.Email,
			GameID:        game.ID,
			QuestionID:    question.ID,
			ParticipantID: participant.ID,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Participant{}).
			Where("id = ?", participant.ID).
			Update("questions_seen", gorm.Expr("questions_seen + 1")).Error; err != nil {
			return err
		}

		served = &ServedQuestion{
			ID:       question.ID,
			Number:   participant.QuestionsSeen + 1,
			Total:    game.QuestionsPerRound,
			Text:     question.Text,
			OptionA:  question.OptionA,
			OptionB:  question.OptionB,
			OptionC:  question.OptionC,
			OptionD:  question.OptionD,
			Category: question.Category,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return served, nil
}

// SubmitAnswer records one answer with its elapsed time. When the last
// question of the round is answered it marks the participant completed, sums
// the per-question times into total_time_micros, and re-runs ranking for the
// round so completion_rank stays current as finishers arrive.
func (s *QuizService) SubmitAnswer(participantID, questionID, chosenOption string, elapsedMicros int64) (*models.Participant, error) {
	if elapsedMicros <= 0 {
		return nil, ErrInvalidTransition
	}

	var result models.Participant
	var roundID string

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		participant, game, err := loadPlayContext(tx, participantID)
		if err != nil {
			return err
		}
		if participant.GameCompleted {
			return ErrInvalidTransition
		}

		var question models.Question
		if err := tx.First(&question, "id = ? AND game_id = ?", questionID, game.ID).Error; err != nil {
			return err
		}

		correct := question.Correct == chosenOption
		answer := models.ParticipantAnswer{
			ID:            uuid.NewString(),
			ParticipantID: participant.ID,
			QuestionID:    question.ID,
			ChosenOption:  chosenOption,
			Correct:       correct,
			ElapsedMicros: elapsedMicros,
		}
		// Double submissions are rejected here; the unique participant+question
		// index remains the backstop under concurrent submits. Any other
		// insert failure is a real DB error and surfaces as one.
		var already int64
		if err := tx.Model(&models.ParticipantAnswer{}).
			Where("participant_id = ? AND question_id = ?", participant.ID, question.ID).
			Count(&already).Error; err != nil {
			return err
		}
		if already > 0 {
			return ErrInvalidTransition
		}
		if err := tx.Create(&answer).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrInvalidTransition
			}
			return err
		}

		updates := map[string]interface{}{}
		if correct {
			updates["correct_answers"] = gorm.Expr("correct_answers + 1")
		}

		var answered int64
		if err := tx.Model(&models.ParticipantAnswer{}).
			Where("participant_id = ?", participant.ID).
			Count(&answered).Error; err != nil {
			return err
		}

		if int(answered) >= game.QuestionsPerRound {
			var totalMicros int64
			if err := tx.Model(&models.ParticipantAnswer{}).
				Where("participant_id = ?", participant.ID).
				Select("COALESCE(SUM(elapsed_micros), 0)").
				Scan(&totalMicros).Error; err != nil {
				return err
			}
			updates["game_completed"] = true
			updates["total_time_micros"] = totalMicros

			correctCount := participant.CorrectAnswers
			if correct {
				correctCount++
			}
			if correctCount < game.QuestionsPerRound {
				// One wrong answer excludes the entry from ranking for good.
				updates["excluded_reason"] = "wrong_answer"
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Participant{}).
				Where("id = ?", participant.ID).
				Updates(updates).Error; err != nil {
				return err
			}
		}

		if err := tx.First(&result, "id = ?", participant.ID).Error; err != nil {
			return err
		}
		roundID = participant.RoundID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.GameCompleted {
		if err := s.Ranking.RecomputeRanks(roundID); err != nil {
			log.Printf("[QUIZ] rank recompute failed for round %s: %v", roundID, err)
		}
	}
	return &result, nil
}

// loadPlayContext fetches the participant with its game and enforces that
// only paid entries play.
func loadPlayContext(tx *gorm.DB, participantID string) (*models.Participant, *models.Game, error) {
	var participant models.Participant
	if err := tx.First(&participant, "id = ?", participantID).Error; err != nil {
		return nil, nil, err
	}
	if participant.PaymentStatus != models.PaymentStatusPaid {
		return nil, nil, ErrInvalidTransition
	}
	var round models.Round
	if err := tx.First(&round, "id = ?", participant.RoundID).Error; err != nil {
		return nil, nil, err
	}
	var game models.Game
	if err := tx.First(&game, "id = ?", round.GameID).Error; err != nil {
		return nil, nil, err
	}
	return &participant, &game, nil
}

// --- HTTP endpoints ---

// GetNextQuestion serves the next unseen question.
// GET /participants/:id/questions/next
func (s *QuizService) GetNextQuestion(c *fiber.Ctx) error {
	question, err := s.NextQuestion(c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrQuestionExhausted):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no unseen questions remain for this game"})
		case errors.Is(err, ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "entry is not in a playable state"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "participant not found"})
		}
		log.Printf("[QUIZ] next question failed for %s: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to serve question"})
	}
	return c.JSON(question)
}

// PostAnswer records an answer.
// POST /participants/:id/answers
func (s *QuizService) PostAnswer(c *fiber.Ctx) error {
	type Req struct {
		QuestionID    string `json:"question_id" validate:"required"`
		ChosenOption  string `json:"chosen_option" validate:"required,oneof=a b c d"`
		ElapsedMicros int64  `json:"elapsed_micros" validate:"required,gt=0"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.QuestionID == "" || req.ElapsedMicros <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "question_id and positive elapsed_micros are required"})
	}
	switch req.ChosenOption {
	case "a", "b", "c", "d":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "chosen_option must be one of a, b, c, d"})
	}

	participant, err := s.SubmitAnswer(c.Params("id"), req.QuestionID, req.ChosenOption, req.ElapsedMicros)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "answer not accepted for current entry state"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "participant or question not found"})
		}
		log.Printf("[QUIZ] answer failed for %s: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record answer"})
	}

	return c.JSON(fiber.Map{
		"participant_id":  participant.ID,
		"questions_seen":  participant.QuestionsSeen,
		"game_completed":  participant.GameCompleted,
		"correct_answers": participant.CorrectAnswers,
	})
}
