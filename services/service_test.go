package services

import (
	"fmt"
	"testing"

	"trivia-prize-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// testStack wires the full service graph against one test database.
type testStack struct {
	DB        *gorm.DB
	Rounds    *RoundService
	Payments  *PaymentService
	Quiz      *QuizService
	Ranking   *RankingService
	Winners   *WinnerService
	Discounts *DiscountService
	Claims    *ClaimService
	Notify    *NotifyService
}

func newStack(t *testing.T) *testStack {
	t.Helper()
	db := openTestDB(t)
	notify := NewNotifyService(db)
	rounds := NewRoundService(db)
	ranking := NewRankingService(db)
	discounts := NewDiscountService(db)
	return &testStack{
		DB:        db,
		Rounds:    rounds,
		Payments:  NewPaymentService(db, rounds, notify),
		Quiz:      NewQuizService(db, ranking),
		Ranking:   ranking,
		Winners:   NewWinnerService(db, ranking, discounts, notify),
		Discounts: discounts,
		Claims:    NewClaimService(db, notify),
		Notify:    notify,
	}
}

func seedGame(t *testing.T, db *gorm.DB, maxPlayers, questionsPerRound int) (*models.Game, *models.Round) {
	t.Helper()
	game := &models.Game{
		ID:                   uuid.NewString(),
		Name:                 "Win a PlayStation 5",
		Slug:                 "win-a-playstation-5-" + uuid.NewString()[:8],
		PrizeName:            "PlayStation 5",
		PrizeValue:           499,
		Currency:             "USD",
		EntryFee:             10,
		MaxPlayers:           maxPlayers,
		QuestionsPerRound:    questionsPerRound,
		CompletionWindowMins: 60,
		AutoRestart:          false,
		Status:               models.GameStatusActive,
	}
	if err := db.Create(game).Error; err != nil {
		t.Fatalf("failed to seed game: %v", err)
	}
	round := &models.Round{
		ID:          uuid.NewString(),
		GameID:      game.ID,
		RoundNumber: 1,
		Status:      models.RoundStatusActive,
	}
	if err := db.Create(round).Error; err != nil {
		t.Fatalf("failed to seed round: %v", err)
	}
	return game, round
}

func seedQuestions(t *testing.T, db *gorm.DB, gameID string, n int) []models.Question {
	t.Helper()
	questions := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		q := models.Question{
			ID:      uuid.NewString(),
			GameID:  gameID,
			Text:    fmt.Sprintf("Question %d?", i+1),
			OptionA: "alpha",
			OptionB: "beta",
			OptionC: "gamma",
			OptionD: "delta",
			Correct: "a",
			Active:  true,
		}
		if err := db.Create(&q).Error; err != nil {
			t.Fatalf("failed to seed question: %v", err)
		}
		questions = append(questions, q)
	}
	return questions
}

// admitPaid admits a participant and settles their payment as paid.
func admitPaid(t *testing.T, st *testStack, roundID, email string) *models.Participant {
	t.Helper()
	p, err := st.Rounds.Admit(AdmitRequest{
		RoundID: roundID,
		Email:   email,
		Name:    "Player " + email,
	})
	if err != nil {
		t.Fatalf("admit %s: %v", email, err)
	}
	settled, err := st.Payments.Settle(p.ID, models.PaymentStatusPaid, "ref-"+email)
	if err != nil {
		t.Fatalf("settle %s: %v", email, err)
	}
	return settled
}

// answerAll submits the correct option for each question with the given
// per-question elapsed times.
func answerAll(t *testing.T, st *testStack, participantID string, questions []models.Question, elapsed []int64) *models.Participant {
	t.Helper()
	var last *models.Participant
	for i, q := range questions {
		p, err := st.Quiz.SubmitAnswer(participantID, q.ID, q.Correct, elapsed[i])
		if err != nil {
			t.Fatalf("answer question %d: %v", i+1, err)
		}
		last = p
	}
	return last
}
