package memrepo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/repository"
)

func TestUserUniqueness(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	if err := s.CreateUser(ctx, &model.User{Email: "Alice@X.com", SAPID: "SAP1"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := s.CreateUser(ctx, &model.User{Email: "alice@x.com"}); err != repository.ErrEmailExists {
		t.Errorf("Expected ErrEmailExists, got %v", err)
	}
	if err := s.CreateUser(ctx, &model.User{Email: "bob@x.com", SAPID: "SAP1"}); err != repository.ErrSAPIDExists {
		t.Errorf("Expected ErrSAPIDExists, got %v", err)
	}
	if err := s.CreateUser(ctx, &model.User{Email: "carol@x.com"}); err != nil {
		t.Errorf("Expected empty SAP ids not to collide, got %v", err)
	}
	if err := s.CreateUser(ctx, &model.User{Email: "dan@x.com"}); err != nil {
		t.Errorf("Expected empty SAP ids not to collide, got %v", err)
	}
}

func TestUpdatePaymentCompareAndSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	r := &model.Registration{UserID: "u1", OrderID: "AMB_1", Events: []model.EventLine{{EventID: "a", EventPrice: 10}}, TotalAmount: 10}
	if err := s.CreateRegistration(ctx, r); err != nil {
		t.Fatalf("CreateRegistration failed: %v", err)
	}
	success := model.PaymentSuccess

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdatePayment(ctx, "AMB_1", model.PaymentUpdate{From: model.PaymentPending, Status: &success})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch err {
		case nil:
			wins++
		case repository.ErrStaleWrite:
		default:
			t.Errorf("Unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("Expected exactly one winning transition, got %d", wins)
	}

	if _, err := s.UpdatePayment(ctx, "missing", model.PaymentUpdate{From: model.PaymentPending}); err != repository.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPendingRegistrations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"A", "B", "C"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.SetClock(func() time.Time { return at })
		if err := s.CreateRegistration(ctx, &model.Registration{UserID: "u", OrderID: id}); err != nil {
			t.Fatalf("CreateRegistration failed: %v", err)
		}
	}

	got, _ := s.PendingRegistrations(ctx, base.Add(90*time.Second), 10)
	if len(got) != 2 || got[0].OrderID != "A" || got[1].OrderID != "B" {
		t.Errorf("Expected A then B, got %+v", got)
	}

	newest, _ := s.RegistrationsByUser(ctx, "u")
	if len(newest) != 3 || newest[0].OrderID != "C" {
		t.Errorf("Expected newest first, got %+v", newest)
	}

	checked, err := s.MarkChecked(ctx, "A", base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("MarkChecked failed: %v", err)
	}
	if checked.ReconcileAttempts != 1 || checked.LastCheckedAt == nil {
		t.Errorf("Expected one recorded attempt, got %+v", checked)
	}
	got, _ = s.PendingRegistrations(ctx, base.Add(time.Hour), 2)
	if len(got) != 2 || got[0].OrderID != "B" || got[1].OrderID != "C" {
		t.Errorf("Expected unchecked B and C before A, got %+v", got)
	}
	_, _ = s.MarkChecked(ctx, "B", base.Add(6*time.Minute))
	_, _ = s.MarkChecked(ctx, "C", base.Add(7*time.Minute))
	got, _ = s.PendingRegistrations(ctx, base.Add(time.Hour), 1)
	if len(got) != 1 || got[0].OrderID != "A" {
		t.Errorf("Expected least recently checked A, got %+v", got)
	}
}

func TestMarkCheckedOnlyWhilePending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	if err := s.CreateRegistration(ctx, &model.Registration{UserID: "u", OrderID: "AMB_P"}); err != nil {
		t.Fatalf("CreateRegistration failed: %v", err)
	}
	success := model.PaymentSuccess
	if _, err := s.UpdatePayment(ctx, "AMB_P", model.PaymentUpdate{From: model.PaymentPending, Status: &success}); err != nil {
		t.Fatalf("UpdatePayment failed: %v", err)
	}
	if _, err := s.MarkChecked(ctx, "AMB_P", time.Now()); err != repository.ErrStaleWrite {
		t.Errorf("Expected ErrStaleWrite, got %v", err)
	}
	if _, err := s.MarkChecked(ctx, "missing", time.Now()); err != repository.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTeamMembership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	team := &model.Team{Name: "Rocketeers", EventID: "hack-2026", LeaderID: "L", InviteCode: "ABC123",
		Members: []model.TeamMember{{UserID: "L", Status: model.MemberAccepted}}}
	if err := s.CreateTeam(ctx, team); err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	if err := s.CreateTeam(ctx, &model.Team{EventID: "hack-2026", LeaderID: "L", InviteCode: "ZZZ999"}); err != repository.ErrTeamExists {
		t.Errorf("Expected ErrTeamExists, got %v", err)
	}
	if err := s.CreateTeam(ctx, &model.Team{EventID: "amplify", LeaderID: "L", InviteCode: "ABC123"}); err != repository.ErrInviteCodeTaken {
		t.Errorf("Expected ErrInviteCodeTaken, got %v", err)
	}

	if _, err := s.AddMember(ctx, team.ID, model.TeamMember{UserID: "M"}, 2); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if _, err := s.AddMember(ctx, team.ID, model.TeamMember{UserID: "M"}, 2); err != repository.ErrAlreadyMember {
		t.Errorf("Expected ErrAlreadyMember, got %v", err)
	}
	if _, err := s.AddMember(ctx, team.ID, model.TeamMember{UserID: "N"}, 2); err != repository.ErrTeamFull {
		t.Errorf("Expected ErrTeamFull, got %v", err)
	}
	got, _ := s.TeamByID(ctx, team.ID)
	if len(got.Members) != 2 {
		t.Errorf("Expected 2 members, got %d", len(got.Members))
	}

	mine, _ := s.TeamsForUser(ctx, "M")
	if len(mine) != 1 {
		t.Errorf("Expected member to see the team, got %d teams", len(mine))
	}

	if _, err := s.RemoveMember(ctx, team.ID, "nobody"); err != repository.ErrMemberNotFound {
		t.Errorf("Expected ErrMemberNotFound, got %v", err)
	}
	if _, err := s.RemoveMember(ctx, "missing", "M"); err != repository.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAddMemberConcurrentCapacity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	team := &model.Team{EventID: "hack-2026", LeaderID: "L", InviteCode: "CAP001",
		Members: []model.TeamMember{{UserID: "L", Status: model.MemberAccepted}}}
	if err := s.CreateTeam(ctx, team); err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.AddMember(ctx, team.ID, model.TeamMember{UserID: string(rune('a' + i))}, 4)
		}(i)
	}
	wg.Wait()

	got, _ := s.TeamByID(ctx, team.ID)
	if len(got.Members) != 4 {
		t.Errorf("Expected 4 members, got %d", len(got.Members))
	}
}
