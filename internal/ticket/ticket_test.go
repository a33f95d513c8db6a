package ticket

import (
	"strings"
	"testing"
	"time"

	"github.com/ambiora/techfest-backend/internal/model"
)

func TestNextLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		event    string
		existing []string
		want     string
	}{
		{"continues the prefix sequence", "Amplify", []string{"AM001", "AM002"}, "AM003"},
		{"first ticket", "Robo Wars", nil, "RO001"},
		{"other prefixes ignored", "Open Mic", []string{"AM001", "RO001"}, "OP001"},
		{"keeps punctuation", "#hack 2026", nil, "#H001"},
		{"separator counts", "A-Team", []string{"AM001"}, "A-001"},
		{"leading space trimmed", "  robo wars", []string{"RO001"}, "RO002"},
		{"short name padded", "X", nil, "XX001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextLabel(tt.event, tt.existing); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDerive(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	regs := []model.Registration{
		{
			OrderID: "AMB_2", PaymentStatus: model.PaymentSuccess, CreatedAt: t0.Add(time.Hour), UserName: "Alice",
			Events: []model.EventLine{{EventID: "ai-quest", EventName: "AI Quest"}, {EventID: "amplify", EventName: "Amplify"}},
		},
		{OrderID: "AMB_X", PaymentStatus: model.PaymentFailed, CreatedAt: t0, Events: []model.EventLine{{EventName: "Amplify"}}},
		{
			OrderID: "AMB_1", PaymentStatus: model.PaymentSuccess, CreatedAt: t0, UserName: "Alice",
			Events: []model.EventLine{{EventID: "amplify", EventName: "Amplify"}},
		},
	}

	got := Derive(regs)
	if len(got) != 3 {
		t.Fatalf("Expected 3 tickets, got %d", len(got))
	}
	wantIDs := []string{"AMB_1-01", "AMB_2-01", "AMB_2-02"}
	wantLabels := []string{"AM001", "AI001", "AM002"}
	for i := range got {
		if got[i].ID != wantIDs[i] || got[i].Label != wantLabels[i] {
			t.Errorf("ticket %d: expected %s/%s, got %s/%s", i, wantIDs[i], wantLabels[i], got[i].ID, got[i].Label)
		}
	}
	if !strings.Contains(got[0].QRPayload, `"ticketId":"AMB_1-01"`) {
		t.Errorf("Unexpected QR payload %s", got[0].QRPayload)
	}
}

func TestDeriveIDsUniqueAcrossPrefixCollisions(t *testing.T) {
	t.Parallel()

	regs := []model.Registration{{
		OrderID: "AMB_1", PaymentStatus: model.PaymentSuccess,
		Events: []model.EventLine{{EventName: "Amplify"}, {EventName: "Amazing Race"}},
	}}
	got := Derive(regs)
	if got[0].ID == got[1].ID {
		t.Error("Expected distinct ids for events sharing a label prefix")
	}
	if got[0].Label != "AM001" || got[1].Label != "AM002" {
		t.Errorf("Unexpected labels %s %s", got[0].Label, got[1].Label)
	}
}
