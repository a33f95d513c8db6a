// Package ticket turns paid registrations into ticket views. The server
// registration is the only source of truth; tickets are recomputed on
// every read.
package ticket

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ambiora/techfest-backend/internal/model"
)

// Ticket is one admission for one event line of a paid registration.
// ID is unique across all users; Label is the short human form printed
// on the pass and is only unique within one holder's tickets.
type Ticket struct {
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	OrderID       string    `json:"orderId"`
	EventID       string    `json:"eventId"`
	EventName     string    `json:"eventName"`
	EventCategory string    `json:"eventCategory,omitempty"`
	EventDate     string    `json:"eventDate,omitempty"`
	Price         int64     `json:"price"`
	HolderName    string    `json:"holderName"`
	PurchasedAt   time.Time `json:"purchasedAt"`
	QRPayload     string    `json:"qrPayload"`
}

// Prefix is the first two characters of the trimmed event name,
// uppercased. Names shorter than that are padded with X.
func Prefix(eventName string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(eventName) {
		if n == 2 {
			break
		}
		b.WriteRune(unicode.ToUpper(r))
		n++
	}
	for ; n < 2; n++ {
		b.WriteByte('X')
	}
	return b.String()
}

// NextLabel numbers a new ticket for eventName given the holder's
// existing labels: prefix plus the count of labels sharing it, plus one,
// zero-padded to three digits.
func NextLabel(eventName string, existing []string) string {
	prefix := Prefix(eventName)
	n := 0
	for _, l := range existing {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return fmt.Sprintf("%s%03d", prefix, n+1)
}

// Derive builds the ticket list for a holder from their registrations.
// Only success registrations produce tickets; labels are assigned in
// purchase order so they are stable across reads.
func Derive(regs []model.Registration) []Ticket {
	paid := make([]model.Registration, 0, len(regs))
	for _, r := range regs {
		if r.PaymentStatus == model.PaymentSuccess {
			paid = append(paid, r)
		}
	}
	sort.SliceStable(paid, func(i, j int) bool { return paid[i].CreatedAt.Before(paid[j].CreatedAt) })

	var (
		out    []Ticket
		labels []string
	)
	for _, r := range paid {
		for i, line := range r.Events {
			t := Ticket{
				ID:            fmt.Sprintf("%s-%02d", r.OrderID, i+1),
				Label:         NextLabel(line.EventName, labels),
				OrderID:       r.OrderID,
				EventID:       line.EventID,
				EventName:     line.EventName,
				EventCategory: line.EventCategory,
				EventDate:     line.EventDate,
				Price:         line.EventPrice,
				HolderName:    r.UserName,
				PurchasedAt:   r.CreatedAt,
			}
			t.QRPayload = qrPayload(t)
			labels = append(labels, t.Label)
			out = append(out, t)
		}
	}
	return out
}

// IDs returns the ticket ids in order.
func IDs(ts []Ticket) []string {
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return ids
}

func qrPayload(t Ticket) string {
	b, _ := json.Marshal(map[string]string{
		"ticketId": t.ID,
		"label":    t.Label,
		"orderId":  t.OrderID,
		"eventId":  t.EventID,
		"holder":   t.HolderName,
	})
	return string(b)
}
