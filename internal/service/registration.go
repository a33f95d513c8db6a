package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/catalog"
	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/payment"
	"github.com/ambiora/techfest-backend/internal/queue"
	"github.com/ambiora/techfest-backend/internal/repository"
	"github.com/ambiora/techfest-backend/internal/ticket"
)

// Sources recorded on registration.confirmed events.
const (
	SourceCreate    = "create"
	SourcePatch     = "patch"
	SourceCheckout  = "checkout"
	SourceReconcile = "reconcile"
)

type RegistrationService struct {
	Users         repository.UserStore
	Registrations repository.RegistrationStore
	Gateway       payment.Gateway
	Publisher     queue.Publisher
	// Catalog, when set, maps line event ids onto catalog ids so the
	// team join check matches however the client spelled them.
	Catalog *catalog.Catalog
	Now     func() time.Time
}

type CreateRegistrationInput struct {
	Events           []model.EventLine `json:"events"`
	TotalAmount      *int64            `json:"totalAmount"`
	OrderID          string            `json:"orderId"`
	PaymentSessionID string            `json:"paymentSessionId"`
	PaymentStatus    string            `json:"paymentStatus"`
	PaymentDetails   map[string]any    `json:"paymentDetails"`
}

// Create persists a registration for userID. A registration may only be
// born successful when the gateway already reports the order as paid.
func (s *RegistrationService) Create(ctx context.Context, userID string, in CreateRegistrationInput) (model.Registration, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	if len(in.Events) == 0 || in.TotalAmount == nil || in.OrderID == "" {
		return model.Registration{}, apperr.Validation("Missing required fields")
	}
	var sum int64
	lines := make([]model.EventLine, 0, len(in.Events))
	for _, e := range in.Events {
		e.EventID = strings.TrimSpace(e.EventID)
		if e.EventID == "" || strings.TrimSpace(e.EventName) == "" {
			return model.Registration{}, apperr.Validation("Each event needs eventId and eventName")
		}
		if e.EventPrice < 0 {
			return model.Registration{}, apperr.Validation("Event price cannot be negative")
		}
		if s.Catalog != nil {
			if ev, ok := s.Catalog.Get(e.EventID); ok {
				e.EventID = ev.ID
			}
		}
		sum += e.EventPrice
		lines = append(lines, e)
	}
	if *in.TotalAmount != sum {
		return model.Registration{}, apperr.Validation("totalAmount must equal the sum of event prices")
	}

	status := model.PaymentPending
	if in.PaymentStatus != "" {
		st, ok := model.ParsePaymentStatus(in.PaymentStatus)
		if !ok {
			return model.Registration{}, apperr.Validation("Invalid paymentStatus")
		}
		status = st
	}

	u, err := s.Users.UserByID(ctx, userID)
	if err != nil {
		return model.Registration{}, notFoundOr(err, "User not found", "load user")
	}

	if status == model.PaymentSuccess {
		if _, err := s.confirmPaid(ctx, in.OrderID); err != nil {
			return model.Registration{}, err
		}
	}

	reg := model.Registration{
		UserID:           u.ID,
		UserName:         u.Name,
		UserEmail:        u.Email,
		UserPhone:        u.Phone,
		UserSAPID:        u.SAPID,
		Events:           lines,
		TotalAmount:      sum,
		OrderID:          in.OrderID,
		PaymentStatus:    status,
		PaymentSessionID: strings.TrimSpace(in.PaymentSessionID),
		PaymentDetails:   in.PaymentDetails,
	}
	if err := s.Registrations.CreateRegistration(ctx, &reg); err != nil {
		if errors.Is(err, repository.ErrOrderExists) {
			return model.Registration{}, apperr.Conflict("Order ID already exists")
		}
		return model.Registration{}, storeErr("create registration", err)
	}
	log.Printf("registration: created %s for %s (%s)", reg.OrderID, reg.UserEmail, reg.PaymentStatus)
	if status == model.PaymentSuccess {
		s.publish(ctx, reg, SourceCreate)
	}
	return reg, nil
}

// List returns the caller's registrations, newest first.
func (s *RegistrationService) List(ctx context.Context, userID string) ([]model.Registration, error) {
	regs, err := s.Registrations.RegistrationsByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list registrations", err)
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	return regs, nil
}

// Tickets derives the caller's tickets from their paid registrations.
func (s *RegistrationService) Tickets(ctx context.Context, userID string) ([]ticket.Ticket, error) {
	regs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	ts := ticket.Derive(regs)
	if ts == nil {
		ts = []ticket.Ticket{}
	}
	return ts, nil
}

// Owned loads orderID and hides it from anyone but its owner.
func (s *RegistrationService) Owned(ctx context.Context, userID, orderID string) (model.Registration, error) {
	reg, err := s.Registrations.RegistrationByOrderID(ctx, orderID)
	if err != nil {
		return model.Registration{}, notFoundOr(err, "Registration not found", "load registration")
	}
	if reg.UserID != userID {
		return model.Registration{}, apperr.NotFound("Registration not found")
	}
	return reg, nil
}

// UpdateStatus is the owner-facing PATCH. A nil status only replaces
// the payment details.
func (s *RegistrationService) UpdateStatus(ctx context.Context, userID, orderID string, status *string, details map[string]any) (model.Registration, error) {
	reg, err := s.Owned(ctx, userID, orderID)
	if err != nil {
		return model.Registration{}, err
	}
	target := reg.PaymentStatus
	if status != nil {
		st, ok := model.ParsePaymentStatus(*status)
		if !ok {
			return model.Registration{}, apperr.Validation("Invalid paymentStatus")
		}
		target = st
	}
	return s.transition(ctx, reg, target, details, SourcePatch)
}

// Reconcile asks the gateway about reg and applies the verdict: PAID
// settles it, a terminal gateway state fails it, anything else leaves it
// as is. The returned status is the gateway's.
func (s *RegistrationService) Reconcile(ctx context.Context, reg model.Registration, source string) (model.Registration, payment.OrderStatus, error) {
	st, err := s.Gateway.GetOrderStatus(ctx, reg.OrderID)
	if err != nil {
		return reg, payment.OrderStatus{}, err
	}
	var target model.PaymentStatus
	switch {
	case st.Success:
		target = model.PaymentSuccess
	case st.Failed() && reg.PaymentStatus == model.PaymentPending:
		target = model.PaymentFailed
	default:
		return reg, st, nil
	}
	if target == reg.PaymentStatus {
		return reg, st, nil
	}
	details := mergeDetails(reg.PaymentDetails, map[string]any{
		"gatewayStatus": st.Status,
		"verifiedAt":    clock(s.Now).Format(time.RFC3339),
	})
	updated, err := s.apply(ctx, reg, target, details, source)
	return updated, st, err
}

// FailUnknown fails a pending registration whose order the gateway has
// no record of.
func (s *RegistrationService) FailUnknown(ctx context.Context, reg model.Registration) (model.Registration, error) {
	if reg.PaymentStatus != model.PaymentPending {
		return reg, nil
	}
	details := mergeDetails(reg.PaymentDetails, map[string]any{
		"gatewayStatus":     "NOT_FOUND",
		"reconcileAttempts": reg.ReconcileAttempts,
		"verifiedAt":        clock(s.Now).Format(time.RFC3339),
	})
	return s.apply(ctx, reg, model.PaymentFailed, details, SourceReconcile)
}

// AdminList returns every registration with the owner's current SAP id,
// falling back to the snapshot taken at creation.
func (s *RegistrationService) AdminList(ctx context.Context) ([]model.AdminRegistration, error) {
	regs, err := s.Registrations.AllRegistrations(ctx)
	if err != nil {
		return nil, storeErr("list registrations", err)
	}
	ids := make([]string, 0, len(regs))
	seen := map[string]bool{}
	for _, r := range regs {
		if !seen[r.UserID] {
			seen[r.UserID] = true
			ids = append(ids, r.UserID)
		}
	}
	users, err := s.Users.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr("load users", err)
	}
	out := make([]model.AdminRegistration, 0, len(regs))
	for _, r := range regs {
		sap := r.UserSAPID
		if u, ok := users[r.UserID]; ok && u.SAPID != "" {
			sap = u.SAPID
		}
		out = append(out, model.AdminRegistration{Registration: r, SAPID: sap})
	}
	return out, nil
}

func (s *RegistrationService) transition(ctx context.Context, reg model.Registration, target model.PaymentStatus, details map[string]any, source string) (model.Registration, error) {
	from := reg.PaymentStatus
	switch {
	case target == from:
	case from == model.PaymentSuccess:
		return model.Registration{}, apperr.Conflict("Registration is already paid")
	case target == model.PaymentPending:
		return model.Registration{}, apperr.Conflict(fmt.Sprintf("Cannot move a %s registration back to pending", from))
	case target == model.PaymentSuccess:
		st, err := s.confirmPaid(ctx, reg.OrderID)
		if err != nil {
			return model.Registration{}, err
		}
		if details == nil {
			details = reg.PaymentDetails
		}
		details = mergeDetails(details, map[string]any{"gatewayStatus": st.Status})
	}
	return s.apply(ctx, reg, target, details, source)
}

func (s *RegistrationService) apply(ctx context.Context, reg model.Registration, target model.PaymentStatus, details map[string]any, source string) (model.Registration, error) {
	upd := model.PaymentUpdate{From: reg.PaymentStatus, Details: details}
	if target != reg.PaymentStatus {
		upd.Status = &target
	}
	updated, err := s.Registrations.UpdatePayment(ctx, reg.OrderID, upd)
	switch {
	case errors.Is(err, repository.ErrStaleWrite):
		return model.Registration{}, apperr.Conflict("Registration was updated concurrently, please retry")
	case err != nil:
		return model.Registration{}, notFoundOr(err, "Registration not found", "update registration")
	}
	if upd.Status != nil {
		log.Printf("registration: %s %s -> %s (%s)", reg.OrderID, reg.PaymentStatus, target, source)
		if target == model.PaymentSuccess {
			s.publish(ctx, updated, source)
		}
	}
	return updated, nil
}

func (s *RegistrationService) confirmPaid(ctx context.Context, orderID string) (payment.OrderStatus, error) {
	st, err := s.Gateway.GetOrderStatus(ctx, orderID)
	if err != nil {
		return payment.OrderStatus{}, err
	}
	if !st.Success {
		return st, apperr.PaymentRequired("Payment has not been confirmed by the gateway")
	}
	return st, nil
}

func (s *RegistrationService) publish(ctx context.Context, reg model.Registration, source string) {
	if s.Publisher == nil {
		return
	}
	ev := queue.RegistrationConfirmedEvent{
		OrderID:     reg.OrderID,
		UserID:      reg.UserID,
		UserEmail:   reg.UserEmail,
		UserName:    reg.UserName,
		TotalAmount: reg.TotalAmount,
		Source:      source,
		ConfirmedAt: clock(s.Now).Format(time.RFC3339),
	}
	for _, e := range reg.Events {
		ev.EventIDs = append(ev.EventIDs, e.EventID)
		ev.EventNames = append(ev.EventNames, e.EventName)
	}
	if err := s.Publisher.PublishRegistrationConfirmed(ctx, ev); err != nil {
		log.Printf("queue: publish registration.confirmed %s: %v", reg.OrderID, err)
	}
}

func mergeDetails(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
