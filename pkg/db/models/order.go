package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/fabshop-backend/pkg/db/types"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	"github.com/angelmondragon/fabshop-backend/pkg/money"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

// Order is the aggregate root for one checkout attempt, keyed by job id.
type Order struct {
	JobID             string               `gorm:"column:job_id;primaryKey" json:"jobId"`
	Items             []OrderItem          `gorm:"column:items;type:jsonb;serializer:json;not null" json:"items"`
	Address           types.Address        `gorm:"column:address;type:jsonb;serializer:json;not null" json:"address"`
	Customer          types.Customer       `gorm:"column:customer;type:jsonb;serializer:json;not null" json:"customer"`
	Currency          enums.Currency       `gorm:"column:currency;not null;default:'USD'" json:"currency"`
	SubtotalCents     money.Cents          `gorm:"column:subtotal_cents;not null" json:"subtotal"`
	ShippingCents     money.Cents          `gorm:"column:shipping_cents;not null" json:"shippingCost"`
	TaxCents          money.Cents          `gorm:"column:tax_cents;not null" json:"taxAmount"`
	TotalCents        money.Cents          `gorm:"column:total_cents;not null" json:"total"`
	TaxRate           string               `gorm:"column:tax_rate;not null" json:"taxRate"`
	TaxJurisdiction   string               `gorm:"column:tax_jurisdiction" json:"taxJurisdiction,omitempty"`
	TaxExempt         bool                 `gorm:"column:tax_exempt;not null" json:"taxExempt"`
	CustomFabrication bool                 `gorm:"column:custom_fabrication;not null" json:"isCustomFabrication"`
	ExemptionReview   bool                 `gorm:"column:exemption_review;not null" json:"exemptionReview,omitempty"`
	ShippingMethod    enums.ShippingMethod `gorm:"column:shipping_method;not null" json:"shippingMethod"`
	PaymentStatus     enums.PaymentStatus  `gorm:"column:payment_status;not null;default:'unpaid'" json:"paymentStatus"`
	PaymentIntentID   *string              `gorm:"column:payment_intent_id;uniqueIndex" json:"paymentIntentId,omitempty"`
	Documents         DocumentSet          `gorm:"column:documents;type:jsonb;serializer:json" json:"documents"`
	AppliedEvents     dbtypes.EventKeys    `gorm:"column:applied_events" json:"-"`
	RetryOf           *string              `gorm:"column:retry_of" json:"retryOf,omitempty"`
	FailureReason     *string              `gorm:"column:failure_reason" json:"failureReason,omitempty"`
	PaidAt            *time.Time           `gorm:"column:paid_at" json:"paidAt,omitempty"`
	FailedAt          *time.Time           `gorm:"column:failed_at" json:"failedAt,omitempty"`
	RefundedAt        *time.Time           `gorm:"column:refunded_at" json:"refundedAt,omitempty"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is a priced line captured at checkout. Config keeps the submitted
// configuration so a failed order can be re-quoted.
type OrderItem struct {
	ID                  string            `json:"id,omitempty"`
	ProductType         enums.ProductType `json:"productType"`
	Quantity            int               `json:"quantity"`
	IsCustomFabrication bool              `json:"isCustomFabrication"`
	LeadTime            enums.LeadTime    `json:"leadTime"`
	UnitPrice           money.Cents       `json:"unitPrice"`
	LineTotal           money.Cents       `json:"price"`
	Title               string            `json:"title"`
	Lines               []string          `json:"lines,omitempty"`
	WeightLbs           decimal.Decimal   `json:"weightLbs"`
	Config              json.RawMessage   `json:"config"`
}

// DocumentRecord is the stored result of one render.
type DocumentRecord struct {
	URL         string     `json:"url"`
	GeneratedAt time.Time  `json:"generatedAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// DocumentSet maps document type to its rendered record.
type DocumentSet map[enums.DocumentType]DocumentRecord

// Document returns the record for docType, if any.
func (o *Order) Document(docType enums.DocumentType) (DocumentRecord, bool) {
	if o == nil || o.Documents == nil {
		return DocumentRecord{}, false
	}
	rec, ok := o.Documents[docType]
	return rec, ok && rec.URL != ""
}

// IntentID returns the attached payment intent id or "".
func (o *Order) IntentID() string {
	if o == nil || o.PaymentIntentID == nil {
		return ""
	}
	return *o.PaymentIntentID
}

// Clone returns a copy that shares no mutable state with o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	out := *o
	if o.Items != nil {
		out.Items = make([]OrderItem, len(o.Items))
		for i, item := range o.Items {
			item.Lines = append([]string(nil), item.Lines...)
			item.Config = append(json.RawMessage(nil), item.Config...)
			out.Items[i] = item
		}
	}
	if o.Documents != nil {
		out.Documents = make(DocumentSet, len(o.Documents))
		for k, rec := range o.Documents {
			rec.ExpiresAt = cloneTime(rec.ExpiresAt)
			out.Documents[k] = rec
		}
	}
	out.AppliedEvents = append(dbtypes.EventKeys(nil), o.AppliedEvents...)
	out.PaymentIntentID = cloneString(o.PaymentIntentID)
	out.RetryOf = cloneString(o.RetryOf)
	out.FailureReason = cloneString(o.FailureReason)
	out.PaidAt = cloneTime(o.PaidAt)
	out.FailedAt = cloneTime(o.FailedAt)
	out.RefundedAt = cloneTime(o.RefundedAt)
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
