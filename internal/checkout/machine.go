// Package checkout is the buyer-side checkout flow: cart, live repricing,
// handing off to the hosted gateway page and settling on return. The
// redirect's own status parameter is shown to nobody and trusted for
// nothing; only the server's verification issues tickets.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ambiora/techfest-backend/internal/catalog"
	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/service"
	"github.com/ambiora/techfest-backend/internal/ticket"
)

type State string

const (
	StateIdle            State = "idle"
	StateRedirectLogin   State = "redirect_login"
	StateSummarizing     State = "summarizing"
	StateAwaitingGateway State = "awaiting_gateway_redirect"
	StateReturned        State = "returned_from_gateway"
	StateVerifying       State = "verifying"
	StateTicketsIssued   State = "tickets_issued"
	StateFailedShown     State = "failed_shown"
)

var (
	ErrNotSummarized = errors.New("checkout: review the cart summary before paying")
	ErrEmptyCart     = errors.New("checkout: cart is empty")
	ErrNotReturn     = errors.New("checkout: url carries no order_id")
)

// Summary is the cart priced from the live catalog.
type Summary struct {
	Lines []model.EventLine
	// Unavailable lists cart entries no longer in the catalog.
	Unavailable []string
	// Repriced lists cart entries whose price changed since they were added.
	Repriced []string
	Subtotal int64
	Fee      int64
	Total    int64
}

// Return is the outcome of coming back from the gateway page.
type Return struct {
	OrderID string
	// URLStatus is what the redirect claimed; informational only.
	URLStatus string
	Status    model.PaymentStatus
	Tickets   []ticket.Ticket
}

type Machine struct {
	Backend Backend
	Store   Store
	FeeBPS  int64
	Now     func() time.Time

	state   State
	summary *Summary
	banner  string
}

func New(b Backend, s Store) *Machine {
	return &Machine{Backend: b, Store: s, FeeBPS: service.DefaultFeeBPS, state: StateIdle}
}

func (m *Machine) State() State { return m.state }

// Banner is the message to show in FailedShown.
func (m *Machine) Banner() string { return m.banner }

func (m *Machine) Login(ctx context.Context, email, password string) error {
	tok, err := m.Backend.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return m.update(func(l *Local) {
		l.Session = &Session{Token: tok, Email: strings.ToLower(strings.TrimSpace(email))}
	})
}

func (m *Machine) Logout() error {
	return m.update(func(l *Local) { l.Session = nil })
}

// AddToCart looks id up in the live catalog and remembers what it cost.
func (m *Machine) AddToCart(ctx context.Context, id string) (CartItem, error) {
	cat, err := m.catalog(ctx)
	if err != nil {
		return CartItem{}, err
	}
	ev, ok := cat.Get(id)
	if !ok {
		return CartItem{}, fmt.Errorf("checkout: unknown event %q", id)
	}
	item := CartItem{EventID: ev.ID, Name: ev.Name, Price: ev.Price, AddedAt: m.now()}
	err = m.update(func(l *Local) {
		for _, c := range l.Cart {
			if c.EventID == ev.ID {
				return
			}
		}
		l.Cart = append(l.Cart, item)
	})
	return item, err
}

func (m *Machine) RemoveFromCart(id string) error {
	return m.update(func(l *Local) {
		kept := l.Cart[:0]
		for _, c := range l.Cart {
			if !strings.EqualFold(c.EventID, id) {
				kept = append(kept, c)
			}
		}
		l.Cart = kept
	})
}

func (m *Machine) ClearCart() error {
	return m.update(func(l *Local) { l.Cart = nil })
}

func (m *Machine) Cart() ([]CartItem, error) {
	l, err := m.Store.Load()
	return l.Cart, err
}

// Enter is the page load. Without a session the buyer is sent to login
// with returnTo remembered. A URL carrying order_id is a gateway return;
// anything else shows the summary.
func (m *Machine) Enter(ctx context.Context, returnTo string) (*Summary, *Return, error) {
	l, err := m.Store.Load()
	if err != nil {
		return nil, nil, err
	}
	if l.Session == nil {
		m.state = StateRedirectLogin
		return nil, nil, m.update(func(l *Local) { l.ReturnTo = returnTo })
	}
	if returnTo != "" {
		if u, perr := url.Parse(returnTo); perr == nil && u.Query().Get("order_id") != "" {
			ret, err := m.HandleReturn(ctx, returnTo)
			return nil, ret, err
		}
	}
	s, err := m.Summarize(ctx)
	return s, nil, err
}

// Summarize prices the cart from the live catalog. Stale cart prices are
// ignored.
func (m *Machine) Summarize(ctx context.Context) (*Summary, error) {
	l, err := m.session()
	if err != nil {
		return nil, err
	}
	if len(l.Cart) == 0 {
		m.state = StateIdle
		return nil, ErrEmptyCart
	}
	cat, err := m.catalog(ctx)
	if err != nil {
		return nil, m.backendErr(err)
	}

	s := &Summary{}
	var ids []string
	for _, c := range l.Cart {
		ev, ok := cat.Get(c.EventID)
		if !ok {
			s.Unavailable = append(s.Unavailable, c.Name)
			continue
		}
		if ev.Price != c.Price {
			s.Repriced = append(s.Repriced, ev.Name)
		}
		ids = append(ids, ev.ID)
	}
	if len(ids) == 0 {
		m.state = StateIdle
		return s, ErrEmptyCart
	}
	q, err := service.PriceCart(cat, ids, m.FeeBPS)
	if err != nil {
		return nil, err
	}
	s.Lines, s.Subtotal, s.Fee, s.Total = q.Lines, q.Subtotal, q.Fee, q.Total
	m.summary = s
	m.state = StateSummarizing
	return s, nil
}

// Pay opens a gateway order for the summarized cart. The returned session
// id is handed to the gateway's hosted page; the cart stays untouched
// until the payment is verified.
func (m *Machine) Pay(ctx context.Context) (service.CheckoutOrder, error) {
	if m.state != StateSummarizing || m.summary == nil {
		return service.CheckoutOrder{}, ErrNotSummarized
	}
	l, err := m.session()
	if err != nil {
		return service.CheckoutOrder{}, err
	}
	ids := make([]string, len(m.summary.Lines))
	for i, line := range m.summary.Lines {
		ids[i] = line.EventID
	}
	order, err := m.Backend.CreateOrder(ctx, l.Session.Token, ids)
	if err != nil {
		m.fail("Could not start the payment: " + message(err))
		return service.CheckoutOrder{}, m.backendErr(err)
	}
	m.state = StateAwaitingGateway
	return order, m.update(func(l *Local) { l.PendingOrderID = order.OrderID })
}

// HandleReturn settles the order named in the gateway redirect URL by
// asking the server. On success the ticket cache is refreshed and the
// cart cleared; otherwise the cart is kept for a retry.
func (m *Machine) HandleReturn(ctx context.Context, rawURL string) (*Return, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("checkout: bad return url: %w", err)
	}
	q := u.Query()
	ret := &Return{OrderID: q.Get("order_id"), URLStatus: q.Get("status")}
	if ret.OrderID == "" {
		return nil, ErrNotReturn
	}
	m.state = StateReturned

	l, err := m.session()
	if err != nil {
		return ret, err
	}

	m.state = StateVerifying
	res, err := m.Backend.VerifyOrder(ctx, l.Session.Token, ret.OrderID)
	if err != nil {
		m.fail("We could not confirm your payment yet. Your cart is saved; please try again.")
		return ret, m.backendErr(err)
	}
	ret.Status = res.PaymentStatus

	switch res.PaymentStatus {
	case model.PaymentSuccess:
		tickets, stale, err := m.refreshTickets(ctx, l)
		if err != nil {
			m.fail("Payment confirmed, but tickets could not be loaded. Check My Tickets shortly.")
			return ret, err
		}
		ret.Tickets = tickets
		m.state = StateTicketsIssued
		m.banner = ""
		return ret, m.update(func(l *Local) {
			l.Cart = nil
			l.PendingOrderID = ""
			if stale {
				l.Tickets = tickets
			}
		})
	case model.PaymentFailed:
		m.fail("Payment failed or was cancelled. Your cart is saved; you can try again.")
	default:
		m.fail("Payment is still processing. Your cart is saved; check again in a moment.")
	}
	return ret, nil
}

// Tickets returns the server's tickets, falling back to the local cache
// when the server cannot be reached.
func (m *Machine) Tickets(ctx context.Context) ([]ticket.Ticket, error) {
	l, err := m.session()
	if err != nil {
		return nil, err
	}
	ts, stale, err := m.refreshTickets(ctx, l)
	if err != nil {
		var ae *APIError
		if errors.As(err, &ae) {
			return nil, m.backendErr(err)
		}
		return l.Tickets, nil
	}
	if !stale {
		return ts, nil
	}
	return ts, m.update(func(l *Local) { l.Tickets = ts })
}

// refreshTickets reads the authoritative list and reports whether the
// local cache disagrees with it.
func (m *Machine) refreshTickets(ctx context.Context, l Local) ([]ticket.Ticket, bool, error) {
	ts, err := m.Backend.Tickets(ctx, l.Session.Token)
	if err != nil {
		return nil, false, err
	}
	return ts, !sameIDs(ticket.IDs(ts), ticket.IDs(l.Tickets)), nil
}

func (m *Machine) session() (Local, error) {
	l, err := m.Store.Load()
	if err != nil {
		return Local{}, err
	}
	if l.Session == nil {
		m.state = StateRedirectLogin
		return l, errors.New("checkout: login required")
	}
	return l, nil
}

// backendErr drops the session when the server refuses the token.
func (m *Machine) backendErr(err error) error {
	var ae *APIError
	if errors.As(err, &ae) && ae.Unauthenticated() {
		m.state = StateRedirectLogin
		if uerr := m.update(func(l *Local) { l.Session = nil }); uerr != nil {
			return uerr
		}
	}
	return err
}

func (m *Machine) fail(banner string) {
	m.state = StateFailedShown
	m.banner = banner
}

func (m *Machine) catalog(ctx context.Context) (*catalog.Catalog, error) {
	events, err := m.Backend.Events(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(events)
}

func (m *Machine) update(fn func(*Local)) error {
	l, err := m.Store.Load()
	if err != nil {
		return err
	}
	fn(&l)
	return m.Store.Save(l)
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func message(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a = append([]string(nil), a...)
	b = append([]string(nil), b...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
