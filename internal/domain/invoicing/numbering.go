package invoicing

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/chantier/backend/internal/domain/shared"
)

var numberPrefixes = map[Type]string{
	TypeQuote: "DEV",
	TypeBill:  "FAC",
}

var numberPattern = regexp.MustCompile(`^(DEV|FAC)-(\d{4})-(\d{5,})$`)

// NumberSequence claims the next counter value for a type and year.
// The claim must be a single atomic increment-and-read and must survive a
// rollback of the caller's own transaction. Contention maps to
// ErrNumberingContention.
type NumberSequence interface {
	Next(ctx context.Context, t Type, year int) (int64, error)
}

// FormatNumber renders DEV-2026-00042 / FAC-2026-00042
func FormatNumber(t Type, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%05d", numberPrefixes[t], year, seq)
}

// ParseNumber splits an invoice number into its parts
func ParseNumber(number string) (Type, int, int64, error) {
	m := numberPattern.FindStringSubmatch(number)
	if m == nil {
		return "", 0, 0, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Malformed invoice number %q", number))
	}
	t := TypeQuote
	if m[1] == numberPrefixes[TypeBill] {
		t = TypeBill
	}
	year, _ := strconv.Atoi(m[2])
	seq, _ := strconv.ParseInt(m[3], 10, 64)
	return t, year, seq, nil
}

// NumberingService issues invoice numbers. It never retries; a contention
// error is returned to the caller, which retries the whole creation.
//
// The year comes from the service clock at claim time, never from the
// document's issue date: a backdated invoice still gets a number above every
// number already issued.
type NumberingService struct {
	sequence NumberSequence
	now      func() time.Time
}

// NewNumberingService creates a NumberingService; a nil clock uses time.Now
func NewNumberingService(sequence NumberSequence, now func() time.Time) *NumberingService {
	if now == nil {
		now = time.Now
	}
	return &NumberingService{sequence: sequence, now: now}
}

// Next claims the next number for the type in the current year
func (s *NumberingService) Next(ctx context.Context, t Type) (string, error) {
	if !t.IsValid() {
		return "", shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown invoice type %q", t))
	}
	year := s.now().UTC().Year()
	seq, err := s.sequence.Next(ctx, t, year)
	if err != nil {
		return "", err
	}
	return FormatNumber(t, year, seq), nil
}
