package checkout

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fabshop-backend/internal/cart"
	"github.com/angelmondragon/fabshop-backend/internal/catalog"
	"github.com/angelmondragon/fabshop-backend/internal/orders"
	"github.com/angelmondragon/fabshop-backend/internal/shipping"
	"github.com/angelmondragon/fabshop-backend/internal/tax"
	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/square"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

const gate8x6 = `{"productType":"dumpster_gate","quantity":2,"size":"8x6","style":"solid","finish":"powder_coat","mounting":"bollard"}`

var (
	utah     = types.Address{Street: "1 Foundry Way", City: "Salt Lake City", State: "UT", Zip: "84101", Country: "US"}
	customer = types.Customer{Name: "Pat Doe", Email: "pat@example.com"}
)

type fakeGateway struct {
	mu     sync.Mutex
	calls  []square.PaymentIntentParams
	nextID string
	err    error
}

func (f *fakeGateway) CreatePaymentIntent(_ context.Context, params square.PaymentIntentParams) (*square.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	id := f.nextID
	if id == "" {
		id = "pay_" + params.ReferenceID
	}
	return &square.PaymentIntent{ID: id, Status: "APPROVED"}, nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestService(t *testing.T, gateway PaymentGateway) (Service, orders.Store) {
	t.Helper()
	taxEngine, err := tax.NewEngine(tax.Options{})
	require.NoError(t, err)
	quotes, err := cart.NewService(cart.ServiceParams{
		Validator: catalog.NewValidator(catalog.DefaultPricingTable(), nil),
		Tax:       taxEngine,
		Shipping:  shipping.NewEngine(shipping.DefaultTable()),
	})
	require.NoError(t, err)

	store := orders.NewMemoryStore()
	svc, err := NewService(ServiceParams{Quotes: quotes, Store: store, Gateway: gateway})
	require.NoError(t, err)
	return svc, store
}

func quoteInput(t *testing.T) cart.QuoteInput {
	t.Helper()
	var cfg catalog.LineItemConfig
	require.NoError(t, json.Unmarshal([]byte(gate8x6), &cfg))
	return cart.QuoteInput{Items: []catalog.LineItemConfig{cfg}, Address: utah}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Store: orders.NewMemoryStore()})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Quotes: nil})
	require.Error(t, err)
}

func TestCheckoutWithoutSourceLeavesOrderUnpaid(t *testing.T) {
	gateway := &fakeGateway{}
	svc, store := newTestService(t, gateway)

	result, err := svc.Checkout(context.Background(), Input{JobID: "JOB-1001", Quote: quoteInput(t), Customer: customer})
	require.NoError(t, err)
	require.Equal(t, "JOB-1001", result.Order.JobID)
	require.Equal(t, enums.PaymentStatusUnpaid, result.Order.PaymentStatus)
	require.Nil(t, result.Order.PaymentIntentID)
	require.Zero(t, gateway.callCount())

	require.Equal(t, result.Quote.Total, result.Order.TotalCents)
	require.Equal(t, result.Quote.Subtotal, result.Order.SubtotalCents)
	require.Equal(t, result.Quote.Tax.TaxAmount, result.Order.TaxCents)
	require.Equal(t, result.Quote.Shipping.SelectedCost, result.Order.ShippingCents)
	require.Equal(t, "0.061", result.Order.TaxRate)
	require.Len(t, result.Order.Items, 1)
	require.Equal(t, 2, result.Order.Items[0].Quantity)

	stored, err := store.Get(context.Background(), "JOB-1001")
	require.NoError(t, err)
	require.Equal(t, result.Order.TotalCents, stored.TotalCents)
}

func TestCheckoutWithSourceAttachesIntent(t *testing.T) {
	gateway := &fakeGateway{}
	svc, store := newTestService(t, gateway)

	result, err := svc.Checkout(context.Background(), Input{
		JobID:    "JOB-1002",
		Quote:    quoteInput(t),
		Customer: customer,
		SourceID: "cnon:card-nonce-ok",
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, result.Order.PaymentStatus)
	require.Equal(t, "pay_JOB-1002", result.Order.IntentID())

	require.Equal(t, 1, gateway.callCount())
	call := gateway.calls[0]
	require.Equal(t, result.Order.TotalCents.Int64(), call.AmountCents)
	require.Equal(t, "JOB-1002", call.ReferenceID)
	require.Equal(t, "USD", call.Currency)
	require.Equal(t, intentIdempotencyKey("JOB-1002", "cnon:card-nonce-ok"), call.IdempotencyKey)

	jobID, err := store.JobIDForIntent(context.Background(), "pay_JOB-1002")
	require.NoError(t, err)
	require.Equal(t, "JOB-1002", jobID)
}

func TestCheckoutGeneratesJobID(t *testing.T) {
	svc, _ := newTestService(t, &fakeGateway{})

	result, err := svc.Checkout(context.Background(), Input{Quote: quoteInput(t), Customer: customer})
	require.NoError(t, err)
	require.NotEmpty(t, result.Order.JobID)
}

func TestCheckoutRejectsInvalidInput(t *testing.T) {
	svc, store := newTestService(t, &fakeGateway{})
	ctx := context.Background()

	_, err := svc.Checkout(ctx, Input{JobID: "bad job/id", Quote: quoteInput(t), Customer: customer})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "jobId", pkgerrors.FieldOf(err))

	_, err = svc.Checkout(ctx, Input{JobID: "JOB-1003", Quote: quoteInput(t), Customer: types.Customer{Name: "Pat"}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "customer.email", pkgerrors.FieldOf(err))

	_, err = store.Get(ctx, "JOB-1003")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCheckoutDuplicateJobIDConflicts(t *testing.T) {
	svc, _ := newTestService(t, &fakeGateway{})
	ctx := context.Background()

	_, err := svc.Checkout(ctx, Input{JobID: "JOB-1004", Quote: quoteInput(t), Customer: customer})
	require.NoError(t, err)
	_, err = svc.Checkout(ctx, Input{JobID: "JOB-1004", Quote: quoteInput(t), Customer: customer})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestRequestPaymentIntent(t *testing.T) {
	gateway := &fakeGateway{}
	svc, _ := newTestService(t, gateway)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, Input{JobID: "JOB-1005", Quote: quoteInput(t), Customer: customer})
	require.NoError(t, err)

	_, err = svc.RequestPaymentIntent(ctx, "JOB-1005", " ")
	require.Equal(t, "sourceId", pkgerrors.FieldOf(err))

	order, err := svc.RequestPaymentIntent(ctx, "JOB-1005", "cnon:ok")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.Equal(t, 1, gateway.callCount())

	again, err := svc.RequestPaymentIntent(ctx, "JOB-1005", "cnon:ok")
	require.NoError(t, err)
	require.Equal(t, order.IntentID(), again.IntentID())
	require.Equal(t, 1, gateway.callCount())

	_, err = svc.RequestPaymentIntent(ctx, "JOB-missing", "cnon:ok")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRequestPaymentIntentGatewayFailureKeepsOrderUnpaid(t *testing.T) {
	gateway := &fakeGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "square unavailable")}
	svc, store := newTestService(t, gateway)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, Input{JobID: "JOB-1006", Quote: quoteInput(t), Customer: customer, SourceID: "cnon:ok"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	order, err := store.Get(ctx, "JOB-1006")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusUnpaid, order.PaymentStatus)
}

func TestCheckoutGatewayFailureReportsGeneratedJobID(t *testing.T) {
	gateway := &fakeGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "square unavailable")}
	svc, store := newTestService(t, gateway)
	ctx := context.Background()

	result, err := svc.Checkout(ctx, Input{Quote: quoteInput(t), Customer: customer, SourceID: "cnon:ok"})
	require.Nil(t, result)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	jobID, _ := details["jobId"].(string)
	require.NotEmpty(t, jobID)

	order, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusUnpaid, order.PaymentStatus)

	gateway.mu.Lock()
	gateway.err = nil
	gateway.mu.Unlock()
	recovered, err := svc.RequestPaymentIntent(ctx, jobID, "cnon:ok")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, recovered.PaymentStatus)
}

func TestCheckoutGatewayFailureKeepsExistingDetails(t *testing.T) {
	gateway := &fakeGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "card declined").
		WithDetails(map[string]any{"gatewayCode": "GENERIC_DECLINE"})}
	svc, _ := newTestService(t, gateway)

	_, err := svc.Checkout(context.Background(), Input{JobID: "JOB-1010", Quote: quoteInput(t), Customer: customer, SourceID: "cnon:declined"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, "JOB-1010", details["jobId"])
	require.Equal(t, "GENERIC_DECLINE", details["gatewayCode"])
	require.Equal(t, "card declined", pkgerrors.As(err).Message())
}

func TestRequestPaymentIntentWithoutGateway(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, Input{JobID: "JOB-1007", Quote: quoteInput(t), Customer: customer})
	require.NoError(t, err)
	_, err = svc.RequestPaymentIntent(ctx, "JOB-1007", "cnon:ok")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func failOrder(t *testing.T, store orders.Store, jobID string) {
	t.Helper()
	_, err := store.Mutate(context.Background(), jobID, func(o *models.Order) error {
		o.PaymentStatus = enums.PaymentStatusFailed
		return nil
	})
	require.NoError(t, err)
}

func TestRetryCreatesNewOrderFromFailed(t *testing.T) {
	gateway := &fakeGateway{}
	svc, store := newTestService(t, gateway)
	ctx := context.Background()

	first, err := svc.Checkout(ctx, Input{JobID: "JOB-1008", Quote: quoteInput(t), Customer: customer, SourceID: "cnon:declined"})
	require.NoError(t, err)
	failOrder(t, store, "JOB-1008")

	retried, err := svc.Retry(ctx, "JOB-1008", RetryInput{JobID: "JOB-1008-R1", SourceID: "cnon:ok"})
	require.NoError(t, err)
	require.Equal(t, "JOB-1008-R1", retried.Order.JobID)
	require.NotNil(t, retried.Order.RetryOf)
	require.Equal(t, "JOB-1008", *retried.Order.RetryOf)
	require.Equal(t, enums.PaymentStatusPending, retried.Order.PaymentStatus)
	require.Equal(t, first.Order.TotalCents, retried.Order.TotalCents)
	require.Equal(t, first.Order.ShippingMethod, retried.Order.ShippingMethod)
	require.Equal(t, customer, retried.Order.Customer)

	original, err := store.Get(ctx, "JOB-1008")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, original.PaymentStatus)
	require.Equal(t, first.Order.IntentID(), original.IntentID())
}

func TestRetryRejectsNonFailedOrder(t *testing.T) {
	svc, _ := newTestService(t, &fakeGateway{})
	ctx := context.Background()

	_, err := svc.Checkout(ctx, Input{JobID: "JOB-1009", Quote: quoteInput(t), Customer: customer, SourceID: "cnon:ok"})
	require.NoError(t, err)

	_, err = svc.Retry(ctx, "JOB-1009", RetryInput{SourceID: "cnon:ok"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = svc.Retry(ctx, "JOB-missing", RetryInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestIntentIdempotencyKeyIsStable(t *testing.T) {
	require.Equal(t, intentIdempotencyKey("JOB-1", "src"), intentIdempotencyKey("JOB-1", "src"))
	require.NotEqual(t, intentIdempotencyKey("JOB-1", "src"), intentIdempotencyKey("JOB-1", "src2"))
}
