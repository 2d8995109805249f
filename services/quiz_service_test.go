package services

import (
	"errors"
	"testing"

	"trivia-prize-system/models"
)

func TestNextQuestionNeverRepeatsForUser(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 3, 3)
	seedQuestions(t, st.DB, game.ID, 3)
	p := admitPaid(t, st, round.ID, "alice@example.com")

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		q, err := st.Quiz.NextQuestion(p.ID)
		if err != nil {
			t.Fatalf("question %d: %v", i+1, err)
		}
		if seen[q.ID] {
			t.Fatalf("question %s served twice", q.ID)
		}
		seen[q.ID] = true
		if q.Number != i+1 || q.Total != 3 {
			t.Fatalf("expected progress %d/3, got %d/%d", i+1, q.Number, q.Total)
		}
	}
}

func TestNextQuestionCrossRoundExposure(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 3, 2)
	questions := seedQuestions(t, st.DB, game.ID, 3)

	// Same email plays two entries; pool of 3 with 2 per round leaves only
	// one unseen question for the second entry.
	p1 := admitPaid(t, st, round.ID, "repeat@example.com")
	answerAll(t, st, p1.ID, questions[:2], []int64{1_000_000, 1_000_000})
	for _, q := range questions[:2] {
		h := models.ParticipantQuestionHistory{
			ID: q.ID + "-h", Email: "repeat@example.com", GameID: game.ID,
			QuestionID: q.ID, ParticipantID: p1.ID,
		}
		if err := st.DB.Create(&h).Error; err != nil {
			t.Fatal(err)
		}
	}

	p2 := admitPaid(t, st, round.ID, "repeat@example.com")
	q, err := st.Quiz.NextQuestion(p2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if q.ID != questions[2].ID {
		t.Fatalf("expected the one unseen question, got %s", q.ID)
	}

	if _, err := st.Quiz.NextQuestion(p2.ID); !errors.Is(err, ErrQuestionExhausted) {
		t.Fatalf("expected ErrQuestionExhausted, got %v", err)
	}
}

func TestSubmitAnswerRejectsDuplicates(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 3, 3)
	questions := seedQuestions(t, st.DB, game.ID, 3)
	p := admitPaid(t, st, round.ID, "alice@example.com")

	if _, err := st.Quiz.SubmitAnswer(p.ID, questions[0].ID, "a", 500_000); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Quiz.SubmitAnswer(p.ID, questions[0].ID, "b", 700_000); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected duplicate answer rejection, got %v", err)
	}

	var fresh models.Participant
	if err := st.DB.First(&fresh, "id = ?", p.ID).Error; err != nil {
		t.Fatal(err)
	}
	if fresh.CorrectAnswers != 1 {
		t.Fatalf("expected 1 correct answer, got %d", fresh.CorrectAnswers)
	}
}

func TestUnpaidEntryCannotPlay(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 3, 3)
	questions := seedQuestions(t, st.DB, game.ID, 3)

	p, err := st.Rounds.Admit(AdmitRequest{RoundID: round.ID, Email: "a@example.com", Name: "A"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := st.Quiz.NextQuestion(p.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for unpaid entry, got %v", err)
	}
	if _, err := st.Quiz.SubmitAnswer(p.ID, questions[0].ID, "a", 500_000); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for unpaid entry, got %v", err)
	}
}

func TestCompletionSumsMicrosAndMarksWrongAnswerExcluded(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 3, 3)
	questions := seedQuestions(t, st.DB, game.ID, 3)
	p := admitPaid(t, st, round.ID, "alice@example.com")

	if _, err := st.Quiz.SubmitAnswer(p.ID, questions[0].ID, "a", 4_000_000); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Quiz.SubmitAnswer(p.ID, questions[1].ID, "b", 3_000_000); err != nil { // wrong
		t.Fatal(err)
	}
	last, err := st.Quiz.SubmitAnswer(p.ID, questions[2].ID, "a", 5_340_000)
	if err != nil {
		t.Fatal(err)
	}

	if !last.GameCompleted {
		t.Fatal("expected completion after the last answer")
	}
	if last.TotalTimeMicros != 12_340_000 {
		t.Fatalf("expected total 12340000µs, got %d", last.TotalTimeMicros)
	}
	if last.ExcludedReason != "wrong_answer" {
		t.Fatalf("expected wrong_answer exclusion, got %q", last.ExcludedReason)
	}
	if last.CompletionRank != nil {
		t.Fatal("excluded entry must keep a NULL rank")
	}

	// Completion never blocks further answers being rejected cleanly.
	if _, err := st.Quiz.SubmitAnswer(p.ID, questions[0].ID, "a", 1); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected rejection after completion, got %v", err)
	}
}

func TestSubmitAnswerSurfacesStorageErrors(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 3, 3)
	questions := seedQuestions(t, st.DB, game.ID, 3)
	p := admitPaid(t, st, round.ID, "alice@example.com")

	if err := st.DB.Migrator().DropTable(&models.ParticipantAnswer{}); err != nil {
		t.Fatal(err)
	}

	_, err := st.Quiz.SubmitAnswer(p.ID, questions[0].ID, "a", 500_000)
	if err == nil {
		t.Fatal("expected a storage error")
	}
	// A broken answers table is not a double submission.
	if errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("storage failure must not be reported as a duplicate: %v", err)
	}
}
