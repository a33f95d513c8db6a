package service

import (
	"context"
	"io"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/export"
	"github.com/ambiora/techfest-backend/internal/model"
)

type AdminService struct {
	Registrations *RegistrationService
	Teams         *TeamService
}

type CategoryStats struct {
	Registrations int   `json:"registrations"`
	Revenue       int64 `json:"revenue"`
}

// Stats counts line items per category over paid registrations and
// registrations per payment status over everything.
type Stats struct {
	TotalRegistrations int                      `json:"totalRegistrations"`
	ByStatus           map[string]int           `json:"byStatus"`
	ByCategory         map[string]CategoryStats `json:"byCategory"`
	Revenue            int64                    `json:"revenue"`
	Teams              int                      `json:"teams"`
}

func (s *AdminService) Stats(ctx context.Context) (Stats, error) {
	regs, err := s.Registrations.AdminList(ctx)
	if err != nil {
		return Stats{}, err
	}
	teams, err := s.Teams.AdminList(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		TotalRegistrations: len(regs),
		ByStatus: map[string]int{
			string(model.PaymentPending): 0,
			string(model.PaymentSuccess): 0,
			string(model.PaymentFailed):  0,
		},
		ByCategory: map[string]CategoryStats{},
		Teams:      len(teams),
	}
	for _, r := range regs {
		st.ByStatus[string(r.PaymentStatus)]++
		if r.PaymentStatus != model.PaymentSuccess {
			continue
		}
		st.Revenue += r.TotalAmount
		for _, e := range r.Events {
			cat := e.EventCategory
			if cat == "" {
				cat = "Other"
			}
			c := st.ByCategory[cat]
			c.Registrations++
			c.Revenue += e.EventPrice
			st.ByCategory[cat] = c
		}
	}
	return st, nil
}

// ExportCSV writes the registrations report to w.
func (s *AdminService) ExportCSV(ctx context.Context, w io.Writer) error {
	regs, err := s.Registrations.AdminList(ctx)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(w, regs); err != nil {
		return apperr.Internal("export registrations", err)
	}
	return nil
}
