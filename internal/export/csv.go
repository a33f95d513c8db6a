// Package export writes registration reports and archives them to an
// S3-compatible bucket.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ambiora/techfest-backend/internal/model"
)

// Header is the column order of the registrations report.
var Header = []string{"Date", "User Name", "Email", "Phone", "SAP ID", "Event Name", "Category", "Price", "Order ID", "Status"}

const dateLayout = "2006-01-02 15:04"

// WriteCSV writes one row per event line of every registration.
func WriteCSV(w io.Writer, regs []model.AdminRegistration) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range regs {
		for _, e := range r.Events {
			row := []string{
				r.CreatedAt.UTC().Format(dateLayout),
				r.UserName,
				r.UserEmail,
				r.UserPhone,
				r.SAPID,
				e.EventName,
				e.EventCategory,
				strconv.FormatInt(e.EventPrice, 10),
				r.OrderID,
				string(r.PaymentStatus),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write row %s: %w", r.OrderID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName is the archive name for a report taken at t.
func FileName(t time.Time) string {
	return "registrations-" + t.UTC().Format("20060102-150405") + ".csv"
}
