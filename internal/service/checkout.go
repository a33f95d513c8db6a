package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/catalog"
	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/payment"
	"github.com/ambiora/techfest-backend/internal/repository"
	"github.com/ambiora/techfest-backend/internal/utils"
)

const (
	DefaultFeeBPS   = 250
	orderNotePrefix = "Ambiora Tech Fest - "
)

// Quote prices a cart from the catalog.
type Quote struct {
	Lines    []model.EventLine `json:"events"`
	Subtotal int64             `json:"subtotal"`
	Fee      int64             `json:"convenienceFee"`
	Total    int64             `json:"total"`
}

// ConvenienceFee is bps basis points of subtotal, rounded half up.
func ConvenienceFee(subtotal, bps int64) int64 {
	if subtotal <= 0 || bps <= 0 {
		return 0
	}
	return (subtotal*bps + 5000) / 10000
}

// PriceCart builds a quote for eventIDs. Duplicates are dropped; unknown
// ids are rejected.
func PriceCart(c *catalog.Catalog, eventIDs []string, feeBPS int64) (Quote, error) {
	var q Quote
	seen := map[string]bool{}
	for _, id := range eventIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		ev, ok := c.Get(id)
		if !ok {
			return Quote{}, apperr.Validation("Unknown event: " + id)
		}
		if seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true
		q.Lines = append(q.Lines, model.EventLine{
			EventID:          ev.ID,
			EventName:        ev.Name,
			EventPrice:       ev.Price,
			EventCategory:    ev.Category,
			EventDate:        ev.Date,
			EventDescription: ev.Description,
		})
		q.Subtotal += ev.Price
	}
	if len(q.Lines) == 0 {
		return Quote{}, apperr.Validation("Your cart is empty")
	}
	q.Fee = ConvenienceFee(q.Subtotal, feeBPS)
	q.Total = q.Subtotal + q.Fee
	return q, nil
}

type CheckoutService struct {
	Users         repository.UserStore
	Registrations repository.RegistrationStore
	Payments      *RegistrationService
	Gateway       payment.Gateway
	Catalog       *catalog.Catalog
	FeeBPS        int64
	PublicBaseURL string
	Environment   string
	Now           func() time.Time
}

type CheckoutOrder struct {
	OrderID          string `json:"orderId"`
	PaymentSessionID string `json:"paymentSessionId"`
	Environment      string `json:"environment"`
	Quote
}

type VerifyResult struct {
	OrderID       string              `json:"orderId"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
	GatewayStatus string              `json:"gatewayStatus,omitempty"`
	Registration  model.Registration  `json:"registration"`
}

// CreateOrder records a pending registration for the cart and opens a
// gateway order for it. If the gateway refuses, the registration is
// marked failed and the gateway error is returned.
func (s *CheckoutService) CreateOrder(ctx context.Context, userID string, eventIDs []string) (CheckoutOrder, error) {
	q, err := PriceCart(s.Catalog, eventIDs, s.FeeBPS)
	if err != nil {
		return CheckoutOrder{}, err
	}
	if !s.Gateway.Configured() {
		return CheckoutOrder{}, apperr.Config("Cashfree credentials not configured")
	}
	u, err := s.Users.UserByID(ctx, userID)
	if err != nil {
		return CheckoutOrder{}, notFoundOr(err, "User not found", "load user")
	}
	orderID, err := utils.NewOrderID(clock(s.Now))
	if err != nil {
		return CheckoutOrder{}, apperr.Internal("generate order id", err)
	}

	reg := model.Registration{
		UserID:        u.ID,
		UserName:      u.Name,
		UserEmail:     u.Email,
		UserPhone:     u.Phone,
		UserSAPID:     u.SAPID,
		Events:        q.Lines,
		TotalAmount:   q.Subtotal,
		OrderID:       orderID,
		PaymentStatus: model.PaymentPending,
		PaymentDetails: map[string]any{
			"convenienceFee": q.Fee,
			"orderAmount":    q.Total,
		},
	}
	if err := s.Registrations.CreateRegistration(ctx, &reg); err != nil {
		if errors.Is(err, repository.ErrOrderExists) {
			return CheckoutOrder{}, apperr.Conflict("Order ID already exists, please retry")
		}
		return CheckoutOrder{}, storeErr("create registration", err)
	}

	names := make([]string, len(q.Lines))
	for i, l := range q.Lines {
		names[i] = l.EventName
	}
	sess, err := s.Gateway.CreateOrder(ctx, payment.OrderRequest{
		OrderID:  orderID,
		Amount:   float64(q.Total),
		Currency: "INR",
		Customer: &payment.CustomerDetails{
			CustomerID:    u.ID,
			CustomerName:  u.Name,
			CustomerEmail: u.Email,
			CustomerPhone: u.Phone,
		},
		Meta: payment.OrderMeta{ReturnURL: s.returnURL(orderID)},
		Note: orderNotePrefix + strings.Join(names, ", "),
	})
	if err != nil {
		failed := model.PaymentFailed
		details := mergeDetails(reg.PaymentDetails, map[string]any{"error": errorMessage(err)})
		if _, uerr := s.Registrations.UpdatePayment(ctx, orderID, model.PaymentUpdate{From: model.PaymentPending, Status: &failed, Details: details}); uerr != nil {
			log.Printf("checkout: mark %s failed: %v", orderID, uerr)
		}
		return CheckoutOrder{}, err
	}

	session := sess.PaymentSessionID
	if _, err := s.Registrations.UpdatePayment(ctx, orderID, model.PaymentUpdate{From: model.PaymentPending, PaymentSessionID: &session}); err != nil {
		return CheckoutOrder{}, storeErr("store payment session", err)
	}
	log.Printf("checkout: order %s created, amount %d", orderID, q.Total)
	return CheckoutOrder{OrderID: orderID, PaymentSessionID: session, Environment: s.Environment, Quote: q}, nil
}

// Verify settles orderID from the gateway's view of it. The status the
// client was redirected with is never consulted.
func (s *CheckoutService) Verify(ctx context.Context, userID, orderID string) (VerifyResult, error) {
	reg, err := s.Payments.Owned(ctx, userID, orderID)
	if err != nil {
		return VerifyResult{}, err
	}
	if reg.PaymentStatus == model.PaymentSuccess {
		return VerifyResult{OrderID: orderID, PaymentStatus: reg.PaymentStatus, Registration: reg}, nil
	}
	reg, st, err := s.Payments.Reconcile(ctx, reg, SourceCheckout)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{OrderID: orderID, PaymentStatus: reg.PaymentStatus, GatewayStatus: st.Status, Registration: reg}, nil
}

func (s *CheckoutService) returnURL(orderID string) string {
	base := strings.TrimRight(s.PublicBaseURL, "/")
	return fmt.Sprintf("%s/checkout?order_id=%s&status={order_status}", base, url.QueryEscape(orderID))
}

func errorMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
