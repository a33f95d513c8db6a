package model

import "time"

type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberAccepted MemberStatus = "accepted"
)

// TeamMember snapshots the member's contact details at join time.
type TeamMember struct {
	UserID   string       `json:"userId"`
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	SAPID    string       `json:"sapId"`
	JoinedAt time.Time    `json:"joinedAt"`
	Status   MemberStatus `json:"status"`
}

// Team is one leader's entry for one event. The leader is always the
// first member.
type Team struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	EventID    string       `json:"eventId"`
	LeaderID   string       `json:"leaderId"`
	InviteCode string       `json:"inviteCode"`
	Members    []TeamMember `json:"members"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

func (t Team) HasMember(userID string) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (t Team) Leader() (TeamMember, bool) {
	for _, m := range t.Members {
		if m.UserID == t.LeaderID {
			return m, true
		}
	}
	return TeamMember{}, false
}

// TeamPreview is the public, PII-free view served for an invite code.
type TeamPreview struct {
	Name        string `json:"name"`
	EventID     string `json:"eventId"`
	MemberCount int    `json:"memberCount"`
	LeaderName  string `json:"leaderName"`
}

func (t Team) Preview() TeamPreview {
	p := TeamPreview{Name: t.Name, EventID: t.EventID, MemberCount: len(t.Members)}
	if l, ok := t.Leader(); ok {
		p.LeaderName = l.Name
	}
	return p
}
