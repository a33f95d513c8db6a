package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/catalog"
	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/payment"
	"github.com/ambiora/techfest-backend/internal/payment/paymenttest"
	"github.com/ambiora/techfest-backend/internal/queue"
	"github.com/ambiora/techfest-backend/internal/repository/memrepo"
)

const testSecret = "test-secret"

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.RegistrationConfirmedEvent
}

func (p *recordingPublisher) PublishRegistrationConfirmed(_ context.Context, ev queue.RegistrationConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	store    *memrepo.Store
	gw       *paymenttest.Gateway
	pub      *recordingPublisher
	auth     *AuthService
	regs     *RegistrationService
	teams    *TeamService
	checkout *CheckoutService
	admin    *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memrepo.New()
	gw := paymenttest.New()
	pub := &recordingPublisher{}
	cat := catalog.Default()
	regs := &RegistrationService{Users: store, Registrations: store, Gateway: gw, Publisher: pub, Catalog: cat}
	teams := &TeamService{Users: store, Teams: store, Registrations: store, Catalog: cat}
	return &fixture{
		store: store,
		gw:    gw,
		pub:   pub,
		auth:  &AuthService{Users: store, Secret: testSecret, TokenTTL: time.Hour, BcryptCost: 4},
		regs:  regs,
		teams: teams,
		checkout: &CheckoutService{
			Users:         store,
			Registrations: store,
			Payments:      regs,
			Gateway:       gw,
			Catalog:       cat,
			FeeBPS:        DefaultFeeBPS,
			PublicBaseURL: "https://fest.example",
			Environment:   "sandbox",
		},
		admin: &AdminService{Registrations: regs, Teams: teams},
	}
}

func (f *fixture) signup(t *testing.T, email, sap string) model.PublicUser {
	t.Helper()
	res, err := f.auth.Signup(context.Background(), SignupInput{
		Name: "User " + email, Email: email, Phone: "98765 43210", SAPID: sap, Password: "pw123456",
	})
	if err != nil {
		t.Fatalf("Signup(%s) failed: %v", email, err)
	}
	return res.User
}

// paidFor gives userID a success registration covering eventID.
func (f *fixture) paidFor(t *testing.T, userID, eventID, orderID string) {
	t.Helper()
	f.gw.SetStatus(orderID, payment.StatusPaid)
	total := int64(150)
	_, err := f.regs.Create(context.Background(), userID, CreateRegistrationInput{
		Events:        []model.EventLine{{EventID: eventID, EventName: eventID, EventPrice: 150}},
		TotalAmount:   &total,
		OrderID:       orderID,
		PaymentStatus: "success",
	})
	if err != nil {
		t.Fatalf("paid registration failed: %v", err)
	}
}

func expectKind(t *testing.T, err error, k apperr.Kind) {
	t.Helper()
	if !apperr.Is(err, k) {
		t.Fatalf("Expected %s error, got %v", k, err)
	}
}

func strPtr(s string) *string { return &s }
