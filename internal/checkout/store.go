package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ambiora/techfest-backend/internal/ticket"
)

// CartItem is what the buyer picked. Name and Price are the values seen
// when the item was added; they are display hints only and are re-read
// from the catalog before paying.
type CartItem struct {
	EventID string    `json:"eventId"`
	Name    string    `json:"name"`
	Price   int64     `json:"price"`
	AddedAt time.Time `json:"addedAt"`
}

type Session struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// Local is everything the client keeps between runs.
type Local struct {
	Session        *Session        `json:"session,omitempty"`
	Cart           []CartItem      `json:"cart"`
	Tickets        []ticket.Ticket `json:"tickets"`
	PendingOrderID string          `json:"pendingOrderId,omitempty"`
	ReturnTo       string          `json:"returnTo,omitempty"`
}

type Store interface {
	Load() (Local, error)
	Save(Local) error
}

// FileStore keeps Local as one JSON file.
type FileStore struct {
	Path string
}

func (f FileStore) Load() (Local, error) {
	bs, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Local{}, nil
	}
	if err != nil {
		return Local{}, fmt.Errorf("read %s: %w", f.Path, err)
	}
	var l Local
	if err := json.Unmarshal(bs, &l); err != nil {
		return Local{}, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	return l, nil
}

// Save writes through a temp file so a crash never leaves half a cart.
func (f FileStore) Save(l Local) error {
	bs, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, bs, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

// DefaultPath is ~/.ambiora/checkout.json, or the working directory when
// there is no home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "checkout.json"
	}
	return filepath.Join(home, ".ambiora", "checkout.json")
}
