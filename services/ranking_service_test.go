package services

import (
	"testing"
	"time"

	"trivia-prize-system/models"
)

func TestOrderFinishersIsDeterministic(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)

	finishers := []models.Participant{
		{ID: "c", TotalTimeMicros: 15_002_000, PaymentConfirmedAt: &t1},
		{ID: "a", TotalTimeMicros: 12_340_000, PaymentConfirmedAt: &t2},
		{ID: "b", TotalTimeMicros: 12_340_000, PaymentConfirmedAt: &t1},
		{ID: "d", TotalTimeMicros: 12_340_000, PaymentConfirmedAt: &t1},
	}

	want := []string{"b", "d", "a", "c"} // time, then earliest payment, then id
	for i := 0; i < 5; i++ {
		got := OrderFinishers(finishers)
		for j, id := range want {
			if got[j].ID != id {
				t.Fatalf("run %d: position %d = %s, want %s", i, j, got[j].ID, id)
			}
		}
	}
}

func TestRecomputeRanksOnlyRanksEligibleFinishers(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 4, 3)
	questions := seedQuestions(t, st.DB, game.ID, 3)

	fast := admitPaid(t, st, round.ID, "fast@example.com")
	slow := admitPaid(t, st, round.ID, "slow@example.com")
	wrong := admitPaid(t, st, round.ID, "wrong@example.com")
	unfinished := admitPaid(t, st, round.ID, "dnf@example.com")

	answerAll(t, st, fast.ID, questions, []int64{4_000_000, 3_000_000, 5_340_000}) // 12.340s
	answerAll(t, st, slow.ID, questions, []int64{5_000_000, 5_000_000, 5_002_000}) // 15.002s
	for i, q := range questions {
		opt := q.Correct
		if i == 1 {
			opt = "c"
		}
		if _, err := st.Quiz.SubmitAnswer(wrong.ID, q.ID, opt, 1_000_000); err != nil {
			t.Fatal(err)
		}
	}

	if err := st.Ranking.RecomputeRanks(round.ID); err != nil {
		t.Fatal(err)
	}

	rank := func(id string) *int {
		var p models.Participant
		if err := st.DB.First(&p, "id = ?", id).Error; err != nil {
			t.Fatal(err)
		}
		return p.CompletionRank
	}

	if r := rank(fast.ID); r == nil || *r != 1 {
		t.Fatalf("fast finisher should hold rank 1, got %v", r)
	}
	if r := rank(slow.ID); r == nil || *r != 2 {
		t.Fatalf("slow finisher should hold rank 2, got %v", r)
	}
	if rank(wrong.ID) != nil {
		t.Fatal("entry with a wrong answer must keep a NULL rank")
	}
	if rank(unfinished.ID) != nil {
		t.Fatal("unfinished entry must keep a NULL rank")
	}
}

func TestRecomputeRanksClearsStaleRanks(t *testing.T) {
	st := newStack(t)
	game, round := seedGame(t, st.DB, 3, 3)
	questions := seedQuestions(t, st.DB, game.ID, 3)

	p1 := admitPaid(t, st, round.ID, "p1@example.com")
	p2 := admitPaid(t, st, round.ID, "p2@example.com")
	answerAll(t, st, p1.ID, questions, []int64{1_000_000, 1_000_000, 1_000_000})
	answerAll(t, st, p2.ID, questions, []int64{2_000_000, 2_000_000, 2_000_000})

	// p1 gets refunded after completing; eligibility is lost and rank 1
	// must pass to p2 on recompute.
	if _, err := st.Payments.Settle(p1.ID, models.PaymentStatusRefunded, ""); err != nil {
		t.Fatal(err)
	}
	if err := st.Ranking.RecomputeRanks(round.ID); err != nil {
		t.Fatal(err)
	}

	var refunded, remaining models.Participant
	if err := st.DB.First(&refunded, "id = ?", p1.ID).Error; err != nil {
		t.Fatal(err)
	}
	if err := st.DB.First(&remaining, "id = ?", p2.ID).Error; err != nil {
		t.Fatal(err)
	}
	if refunded.CompletionRank != nil {
		t.Fatal("refunded entry must lose its rank")
	}
	if remaining.CompletionRank == nil || *remaining.CompletionRank != 1 {
		t.Fatalf("remaining finisher should be rank 1, got %v", remaining.CompletionRank)
	}
}
