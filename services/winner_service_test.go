package services

import (
	"errors"
	"testing"
	"time"

	"trivia-prize-system/models"
)

// Full happy path: two entrants fill the round, both finish fully correct,
// the faster one wins, gets a claim token, and the loser gets a replay
// discount.
func TestFinalizeCommitsFastestCorrectFinisher(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 2, 9)
	questions := seedQuestions(t, st.DB, game.ID, 9)

	fast := admitPaid(t, st, round.ID, "fast@example.com")
	slow := admitPaid(t, st, round.ID, "slow@example.com")

	fastTimes := make([]int64, 9)
	slowTimes := make([]int64, 9)
	for i := 0; i < 8; i++ {
		fastTimes[i] = 1_000_000
		slowTimes[i] = 1_000_000
	}
	fastTimes[8] = 4_340_000 // 12.340s total
	slowTimes[8] = 7_002_000 // 15.002s total
	answerAll(t, st, fast.ID, questions, fastTimes)
	answerAll(t, st, slow.ID, questions, slowTimes)

	result, err := st.Winners.Finalize(round.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Ready || !result.Committed {
		t.Fatalf("expected committed result, got %+v", result)
	}
	if result.WinnerID == nil || *result.WinnerID != fast.ID {
		t.Fatal("fastest fully-correct finisher must win")
	}

	var done models.Round
	if err := st.DB.First(&done, "id = ?", round.ID).Error; err != nil {
		t.Fatal(err)
	}
	if done.Status != models.RoundStatusCompleted || done.CompletedAt == nil {
		t.Fatalf("round should be completed, got %s", done.Status)
	}

	var winner models.Participant
	if err := st.DB.First(&winner, "id = ?", fast.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !winner.IsWinner || winner.CompletionRank == nil || *winner.CompletionRank != 1 {
		t.Fatal("winner flags not set")
	}
	if winner.TotalTimeMicros != 12_340_000 {
		t.Fatalf("expected winning total 12340000µs, got %d", winner.TotalTimeMicros)
	}

	var runnerUp models.Participant
	if err := st.DB.First(&runnerUp, "id = ?", slow.ID).Error; err != nil {
		t.Fatal(err)
	}
	if runnerUp.CompletionRank == nil || *runnerUp.CompletionRank != 2 || runnerUp.TotalTimeMicros != 15_002_000 {
		t.Fatalf("expected rank 2 at 15002000µs, got %+v", runnerUp.CompletionRank)
	}

	var token models.ClaimToken
	if err := st.DB.First(&token, "participant_id = ?", fast.ID).Error; err != nil {
		t.Fatalf("claim token not minted: %v", err)
	}
	if token.UsedAt != nil || !token.ExpiresAt.After(time.Now()) {
		t.Fatal("claim token must start unused and unexpired")
	}

	var replay models.UserAction
	if err := st.DB.First(&replay, "user_email = ? AND kind = ?", "slow@example.com", models.ActionKindReplay).Error; err != nil {
		t.Fatalf("loser replay discount not issued: %v", err)
	}
	if replay.Status != models.ActionStatusActive {
		t.Fatalf("replay discount should be active, got %s", replay.Status)
	}
}

func TestFinalizeIsSingleShot(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 2, 3)
	questions := seedQuestions(t, st.DB, game.ID, 3)

	p1 := admitPaid(t, st, round.ID, "p1@example.com")
	p2 := admitPaid(t, st, round.ID, "p2@example.com")
	answerAll(t, st, p1.ID, questions, []int64{1_000_000, 1_000_000, 1_000_000})
	answerAll(t, st, p2.ID, questions, []int64{2_000_000, 2_000_000, 2_000_000})

	if _, err := st.Winners.Finalize(round.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Winners.Finalize(round.ID, true); !errors.Is(err, ErrWinnerAlreadySet) {
		t.Fatalf("second finalize must lose with ErrWinnerAlreadySet, got %v", err)
	}

	var tokens int64
	if err := st.DB.Model(&models.ClaimToken{}).Count(&tokens).Error; err != nil {
		t.Fatal(err)
	}
	if tokens != 1 {
		t.Fatalf("expected exactly one claim token, got %d", tokens)
	}
}

func TestFinalizeWaitsForCompletionWindow(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 2, 3)
	questions := seedQuestions(t, st.DB, game.ID, 3)

	p1 := admitPaid(t, st, round.ID, "p1@example.com")
	admitPaid(t, st, round.ID, "p2@example.com")
	answerAll(t, st, p1.ID, questions, []int64{1_000_000, 1_000_000, 1_000_000})

	// p2 is still playing and the window is open.
	result, err := st.Winners.Finalize(round.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Ready {
		t.Fatal("finalize must wait while paid entrants can still finish")
	}

	// Window elapsed: the straggler is excluded as timed out and p1 wins.
	past := time.Now().Add(-2 * time.Hour)
	if err := st.DB.Model(&models.Round{}).Where("id = ?", round.ID).Update("filled_at", past).Error; err != nil {
		t.Fatal(err)
	}
	result, err = st.Winners.Finalize(round.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Committed || result.WinnerID == nil || *result.WinnerID != p1.ID {
		t.Fatalf("expected p1 to win after window, got %+v", result)
	}

	var straggler models.Participant
	if err := st.DB.First(&straggler, "round_id = ? AND id != ?", round.ID, p1.ID).Error; err != nil {
		t.Fatal(err)
	}
	if straggler.ExcludedReason != "timed_out" {
		t.Fatalf("straggler should be excluded as timed_out, got %q", straggler.ExcludedReason)
	}
}

func TestFinalizeWithNoCorrectFinisher(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 2, 3)
	questions := seedQuestions(t, st.DB, game.ID, 3)

	p1 := admitPaid(t, st, round.ID, "p1@example.com")
	p2 := admitPaid(t, st, round.ID, "p2@example.com")
	for _, id := range []string{p1.ID, p2.ID} {
		for _, q := range questions {
			if _, err := st.Quiz.SubmitAnswer(id, q.ID, "b", 1_000_000); err != nil { // all wrong
				t.Fatal(err)
			}
		}
	}

	result, err := st.Winners.Finalize(round.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Committed || result.WinnerID != nil {
		t.Fatalf("round should complete with no winner, got %+v", result)
	}

	var done models.Round
	if err := st.DB.First(&done, "id = ?", round.ID).Error; err != nil {
		t.Fatal(err)
	}
	if done.Status != models.RoundStatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.WinnerParticipantID != nil {
		t.Fatal("winner_participant_id must stay NULL")
	}

	var tokens int64
	if err := st.DB.Model(&models.ClaimToken{}).Count(&tokens).Error; err != nil {
		t.Fatal(err)
	}
	if tokens != 0 {
		t.Fatal("no claim token without a winner")
	}
}

func TestFinalizeRequiresFullRound(t *testing.T) {
	st := newStack(t)
	_, round := seedGame(t, st.DB, 3, 3)
	admitPaid(t, st, round.ID, "p1@example.com")

	if _, err := st.Winners.Finalize(round.ID, true); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for non-full round, got %v", err)
	}
}

func TestSweepDueRoundsFinalizesElapsedRounds(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 2, 3)
	questions := seedQuestions(t, st.DB, game.ID, 3)

	p1 := admitPaid(t, st, round.ID, "p1@example.com")
	admitPaid(t, st, round.ID, "p2@example.com")
	answerAll(t, st, p1.ID, questions, []int64{1_000_000, 1_000_000, 1_000_000})

	past := time.Now().Add(-2 * time.Hour)
	if err := st.DB.Model(&models.Round{}).Where("id = ?", round.ID).Update("filled_at", past).Error; err != nil {
		t.Fatal(err)
	}

	st.Winners.SweepDueRounds()

	var done models.Round
	if err := st.DB.First(&done, "id = ?", round.ID).Error; err != nil {
		t.Fatal(err)
	}
	if done.Status != models.RoundStatusCompleted {
		t.Fatalf("sweep should finalize the round, got %s", done.Status)
	}
	if done.WinnerParticipantID == nil || *done.WinnerParticipantID != p1.ID {
		t.Fatal("sweep committed the wrong winner")
	}
}
