package square

import (
	"strings"
	"unicode/utf8"

	sq "github.com/square/square-go-sdk"
)

// Square field limits for CreatePayment.
const (
	maxIdempotencyKeyLen = 45
	maxReferenceIDLen    = 40
	maxNoteLen           = 500
)

// PaymentIntentParams carries the inputs for a one-off Square card payment.
type PaymentIntentParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	// ReferenceID is the order job id; webhooks are matched back through it.
	ReferenceID string
	BuyerEmail  string
}

// toSquareRequest builds the create-payment call with autocomplete enabled, so
// Square captures the card and reports COMPLETED without a separate capture
// call. Text fields are clipped to Square's limits.
func (p PaymentIntentParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	autocomplete := true
	return &sq.CreatePaymentRequest{
		IdempotencyKey:    clip(idempotencyKey, maxIdempotencyKeyLen),
		SourceID:          p.SourceID,
		Autocomplete:      &autocomplete,
		AmountMoney:       money(p.AmountCents, p.Currency),
		LocationID:        optional(p.LocationID, 0),
		ReferenceID:       optional(p.ReferenceID, maxReferenceIDLen),
		Note:              optional(p.Note, maxNoteLen),
		BuyerEmailAddress: optional(p.BuyerEmail, 0),
	}
}

func money(amount int64, currency string) *sq.Money {
	if amount <= 0 {
		return nil
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = "USD"
	}
	c := sq.Currency(code)
	return &sq.Money{Amount: &amount, Currency: &c}
}

// optional returns nil for blank values, else the trimmed value clipped to
// limit runes (0 means unlimited).
func optional(value string, limit int) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	if limit > 0 {
		v = clip(v, limit)
	}
	return &v
}

func clip(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}
