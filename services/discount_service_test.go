package services

import (
	"errors"
	"testing"
	"time"

	"trivia-prize-system/models"
)

func TestDiscountedFee(t *testing.T) {
	if got := DiscountedFee(10, 20); got != 8 {
		t.Fatalf("expected 8, got %.2f", got)
	}
	if got := DiscountedFee(10, 100); got != 0 {
		t.Fatalf("expected 0, got %.2f", got)
	}
}

func TestIssueRejectsBadPercent(t *testing.T) {
	st := newStack(t)
	if _, err := st.Discounts.Issue("a@example.com", models.ActionKindPromo, 0, time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected error for 0 percent")
	}
	if _, err := st.Discounts.Issue("a@example.com", models.ActionKindPromo, 120, time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected error for >100 percent")
	}
}

func TestAdmitAppliesDiscountOnce(t *testing.T) {
	st := newStack(t)
	_, round := seedGame(t, st.DB, 3, 3)

	action, err := st.Discounts.Issue("alice@example.com", models.ActionKindReplay, 20, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	p, err := st.Rounds.Admit(AdmitRequest{
		RoundID:      round.ID,
		Email:        "alice@example.com",
		Name:         "Alice",
		DiscountCode: action.Code,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.PaymentAmount != 8 {
		t.Fatalf("expected discounted fee 8, got %.2f", p.PaymentAmount)
	}
	if p.DiscountApplied != 2 {
		t.Fatalf("expected discount_applied 2, got %.2f", p.DiscountApplied)
	}

	var used models.UserAction
	if err := st.DB.First(&used, "id = ?", action.ID).Error; err != nil {
		t.Fatal(err)
	}
	if used.Status != models.ActionStatusUsed || used.UsedAt == nil {
		t.Fatal("action should be consumed at admission")
	}
	if used.ParticipantID == nil || *used.ParticipantID != p.ID {
		t.Fatal("consumed action must record which entry used it")
	}

	// Second redemption attempt fails, and the admission rolls back with it.
	_, err = st.Rounds.Admit(AdmitRequest{
		RoundID:      round.ID,
		Email:        "alice@example.com",
		Name:         "Alice",
		DiscountCode: action.Code,
	})
	if !errors.Is(err, ErrDiscountAlreadyUsed) {
		t.Fatalf("expected ErrDiscountAlreadyUsed, got %v", err)
	}
	var count int64
	if err := st.DB.Model(&models.Participant{}).Where("round_id = ?", round.ID).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("failed redemption must not leave a participant behind, got %d", count)
	}
}

func TestAdmitRejectsExpiredDiscount(t *testing.T) {
	st := newStack(t)
	_, round := seedGame(t, st.DB, 3, 3)

	action, err := st.Discounts.Issue("bob@example.com", models.ActionKindPromo, 50, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	_, err = st.Rounds.Admit(AdmitRequest{
		RoundID:      round.ID,
		Email:        "bob@example.com",
		Name:         "Bob",
		DiscountCode: action.Code,
	})
	if !errors.Is(err, ErrDiscountExpired) {
		t.Fatalf("expected ErrDiscountExpired, got %v", err)
	}
}

func TestAdmitRejectsForeignDiscount(t *testing.T) {
	st := newStack(t)
	_, round := seedGame(t, st.DB, 3, 3)

	action, err := st.Discounts.Issue("owner@example.com", models.ActionKindPromo, 50, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	// Codes are bound to the issued email.
	_, err = st.Rounds.Admit(AdmitRequest{
		RoundID:      round.ID,
		Email:        "thief@example.com",
		Name:         "Thief",
		DiscountCode: action.Code,
	})
	if err == nil {
		t.Fatal("expected foreign code to be rejected")
	}
}

func TestExpireSweepMarksOverdueActions(t *testing.T) {
	st := newStack(t)

	overdue, err := st.Discounts.Issue("a@example.com", models.ActionKindPromo, 10, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	current, err := st.Discounts.Issue("a@example.com", models.ActionKindPromo, 10, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	st.Discounts.ExpireSweep()

	var a, b models.UserAction
	if err := st.DB.First(&a, "id = ?", overdue.ID).Error; err != nil {
		t.Fatal(err)
	}
	if err := st.DB.First(&b, "id = ?", current.ID).Error; err != nil {
		t.Fatal(err)
	}
	if a.Status != models.ActionStatusExpired {
		t.Fatalf("overdue action should be expired, got %s", a.Status)
	}
	if b.Status != models.ActionStatusActive {
		t.Fatalf("current action must stay active, got %s", b.Status)
	}
}
