package orders

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	"github.com/angelmondragon/fabshop-backend/pkg/money"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

const ordersTableSQL = `
CREATE TABLE IF NOT EXISTS orders (
  job_id TEXT PRIMARY KEY,
  items TEXT NOT NULL,
  address TEXT NOT NULL,
  customer TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  subtotal_cents INTEGER NOT NULL,
  shipping_cents INTEGER NOT NULL,
  tax_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  tax_rate TEXT NOT NULL,
  tax_jurisdiction TEXT,
  tax_exempt INTEGER NOT NULL DEFAULT 0,
  custom_fabrication INTEGER NOT NULL DEFAULT 0,
  exemption_review INTEGER NOT NULL DEFAULT 0,
  shipping_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  payment_intent_id TEXT UNIQUE,
  documents TEXT,
  applied_events TEXT,
  retry_of TEXT,
  failure_reason TEXT,
  paid_at DATETIME,
  failed_at DATETIME,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec(ordersTableSQL).Error)
	return db
}

func newTestOrder(jobID, intentID string, status enums.PaymentStatus) *models.Order {
	order := &models.Order{
		JobID: jobID,
		Items: []models.OrderItem{{
			ID:          "line-1",
			ProductType: enums.ProductTypeDumpsterGate,
			Quantity:    1,
			LeadTime:    enums.LeadTimeStandard,
			UnitPrice:   money.Cents(100000),
			LineTotal:   money.Cents(100000),
			Title:       "Dumpster gate 8' x 6'",
			Lines:       []string{"Style: solid"},
			WeightLbs:   decimal.NewFromInt(312),
			Config:      json.RawMessage(`{"productType":"dumpster_gate","quantity":1,"size":"8x6"}`),
		}},
		Address:        types.Address{Street: "1 Main St", City: "Ogden", State: "UT", Zip: "84401"},
		Customer:       types.Customer{Name: "Pat Doe", Email: "pat@example.com"},
		Currency:       enums.CurrencyUSD,
		SubtotalCents:  100000,
		ShippingCents:  10116,
		TaxCents:       6100,
		TotalCents:     116216,
		TaxRate:        "0.061",
		ShippingMethod: enums.ShippingMethodStandardFreight,
		PaymentStatus:  status,
		Documents:      models.DocumentSet{},
	}
	if intentID != "" {
		order.PaymentIntentID = &intentID
	}
	return order
}
