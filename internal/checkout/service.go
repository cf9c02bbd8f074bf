package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fabshop-backend/internal/cart"
	"github.com/angelmondragon/fabshop-backend/internal/catalog"
	"github.com/angelmondragon/fabshop-backend/internal/orders"
	pkgcheckout "github.com/angelmondragon/fabshop-backend/pkg/checkout"
	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/logger"
	"github.com/angelmondragon/fabshop-backend/pkg/square"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

// intentKeySpace namespaces deterministic gateway idempotency keys.
var intentKeySpace = uuid.MustParse("6f1c2b8e-4d0a-4c53-9a57-0f2e61f0c3d4")

// PaymentGateway creates the gateway-side payment an order waits on.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, params square.PaymentIntentParams) (*square.PaymentIntent, error)
}

// Service turns accepted quotes into orders awaiting payment.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
	RequestPaymentIntent(ctx context.Context, jobID, sourceID string) (*models.Order, error)
	Retry(ctx context.Context, failedJobID string, input RetryInput) (*Result, error)
}

// Input is an accepted quote plus the contact and payment source.
type Input struct {
	JobID    string
	Quote    cart.QuoteInput
	Customer types.Customer
	// SourceID is the tokenized card from the browser payment form. Without
	// it the order stays unpaid until RequestPaymentIntent is called.
	SourceID string
}

// RetryInput starts a fresh payment attempt for a failed order.
type RetryInput struct {
	JobID    string
	SourceID string
}

type Result struct {
	Order *models.Order `json:"order"`
	Quote *cart.Quote   `json:"quote"`
}

type ServiceParams struct {
	Quotes   cart.Service
	Store    orders.Store
	Gateway  PaymentGateway
	Currency enums.Currency
	Logger   *logger.Logger
}

type service struct {
	quotes   cart.Service
	store    orders.Store
	gateway  PaymentGateway
	currency enums.Currency
	logg     *logger.Logger
	newJobID func() string
}

func NewService(params ServiceParams) (Service, error) {
	if params.Quotes == nil {
		return nil, fmt.Errorf("quote service required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	currency := params.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	return &service{
		quotes:   params.Quotes,
		store:    params.Store,
		gateway:  params.Gateway,
		currency: currency,
		logg:     params.Logger,
		newJobID: uuid.NewString,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	return s.checkout(ctx, input, "")
}

func (s *service) checkout(ctx context.Context, input Input, retryOf string) (*Result, error) {
	jobID, err := s.resolveJobID(input.JobID)
	if err != nil {
		return nil, err
	}
	if err := pkgcheckout.ValidateCustomer(input.Customer); err != nil {
		return nil, err
	}

	quote, err := s.quotes.BuildQuote(ctx, input.Quote)
	if err != nil {
		return nil, err
	}

	order, err := s.newOrder(jobID, quote, input.Quote, input.Customer)
	if err != nil {
		return nil, err
	}
	if retryOf != "" {
		order.RetryOf = &retryOf
	}
	if err := s.store.Create(ctx, order); err != nil {
		return nil, err
	}
	ctx = s.withJob(ctx, jobID)
	s.info(ctx, "checkout.order_created")

	if strings.TrimSpace(input.SourceID) == "" {
		return &Result{Order: order, Quote: quote}, nil
	}
	withIntent, err := s.attachIntent(ctx, order, input.SourceID)
	if err != nil {
		// The order exists; the caller needs its jobId to re-request the intent.
		return nil, withJobID(err, jobID)
	}
	return &Result{Order: withIntent, Quote: quote}, nil
}

// RequestPaymentIntent attaches a gateway payment to an unpaid order. An order
// that already waits on an intent is returned unchanged.
func (s *service) RequestPaymentIntent(ctx context.Context, jobID, sourceID string) (*models.Order, error) {
	if strings.TrimSpace(sourceID) == "" {
		return nil, pkgerrors.Field("sourceId", "is required")
	}
	order, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	ctx = s.withJob(ctx, jobID)

	switch order.PaymentStatus {
	case enums.PaymentStatusUnpaid:
		return s.attachIntent(ctx, order, sourceID)
	case enums.PaymentStatusPending:
		return order, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"paymentStatus": order.PaymentStatus})
	}
}

// Retry re-quotes a failed order's stored configuration into a new order.
// The failed order itself is never modified.
func (s *service) Retry(ctx context.Context, failedJobID string, input RetryInput) (*Result, error) {
	failed, err := s.store.Get(ctx, failedJobID)
	if err != nil {
		return nil, err
	}
	if failed.PaymentStatus != enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only failed orders can be retried").
			WithDetails(map[string]any{"paymentStatus": failed.PaymentStatus})
	}

	quoteInput, err := quoteInputFromOrder(failed)
	if err != nil {
		return nil, err
	}
	return s.checkout(ctx, Input{
		JobID:    input.JobID,
		Quote:    quoteInput,
		Customer: failed.Customer,
		SourceID: input.SourceID,
	}, failed.JobID)
}

func (s *service) resolveJobID(jobID string) (string, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return s.newJobID(), nil
	}
	if err := pkgcheckout.ValidateJobID(jobID); err != nil {
		return "", err
	}
	return jobID, nil
}

// withJobID carries jobID in the error details, keeping the original code and
// any details already present.
func withJobID(err error, jobID string) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment intent could not be created").
			WithDetails(map[string]any{"jobId": jobID})
	}
	details := map[string]any{"jobId": jobID}
	switch existing := typed.Details().(type) {
	case map[string]any:
		for k, v := range existing {
			details[k] = v
		}
	case nil:
	default:
		details["cause"] = existing
	}
	return pkgerrors.Wrap(typed.Code(), err, typed.Message()).WithDetails(details)
}

func (s *service) attachIntent(ctx context.Context, order *models.Order, sourceID string) (*models.Order, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	intent, err := s.gateway.CreatePaymentIntent(ctx, square.PaymentIntentParams{
		AmountCents:    order.TotalCents.Int64(),
		Currency:       string(order.Currency),
		SourceID:       sourceID,
		IdempotencyKey: intentIdempotencyKey(order.JobID, sourceID),
		ReferenceID:    order.JobID,
		Note:           "Fabrication order " + order.JobID,
		BuyerEmail:     order.Customer.Email,
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "checkout.payment_intent_failed", err)
		}
		return nil, err
	}

	updated, err := s.store.Mutate(ctx, order.JobID, func(o *models.Order) error {
		switch {
		case o.PaymentStatus == enums.PaymentStatusUnpaid:
			id := intent.ID
			o.PaymentIntentID = &id
			o.PaymentStatus = enums.PaymentStatusPending
			return nil
		case o.IntentID() == intent.ID:
			return orders.ErrNoChange
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already has a payment intent")
		}
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "intent_id", intent.ID), "checkout.payment_intent_attached")
	}
	return updated, nil
}

func (s *service) newOrder(jobID string, quote *cart.Quote, input cart.QuoteInput, customer types.Customer) (*models.Order, error) {
	items := make([]models.OrderItem, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		item, err := orderItemFromLine(line)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &models.Order{
		JobID:             jobID,
		Items:             items,
		Address:           input.Address,
		Customer:          customer,
		Currency:          s.currency,
		SubtotalCents:     quote.Subtotal,
		ShippingCents:     quote.Shipping.SelectedCost,
		TaxCents:          quote.Tax.TaxAmount,
		TotalCents:        quote.Total,
		TaxRate:           quote.Tax.TaxRate.String(),
		TaxJurisdiction:   quote.Tax.Jurisdiction,
		TaxExempt:         quote.Tax.IsExempt,
		CustomFabrication: input.IsCustomFabrication,
		ExemptionReview:   quote.Tax.ExemptionReview,
		ShippingMethod:    quote.Shipping.SelectedMethod,
		PaymentStatus:     enums.PaymentStatusUnpaid,
		Documents:         models.DocumentSet{},
		CreatedAt:         time.Now().UTC(),
	}, nil
}

func orderItemFromLine(line catalog.NormalizedConfig) (models.OrderItem, error) {
	config, err := json.Marshal(line.Config)
	if err != nil {
		return models.OrderItem{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode line configuration")
	}
	return models.OrderItem{
		ID:                  line.ID,
		ProductType:         line.ProductType,
		Quantity:            line.Quantity,
		IsCustomFabrication: line.IsCustomFabrication,
		LeadTime:            line.LeadTime,
		UnitPrice:           line.UnitPrice,
		LineTotal:           line.LineTotal,
		Title:               line.Description.Title,
		Lines:               line.Description.Lines,
		WeightLbs:           line.Profile.WeightLbs,
		Config:              config,
	}, nil
}

func quoteInputFromOrder(order *models.Order) (cart.QuoteInput, error) {
	items := make([]catalog.LineItemConfig, 0, len(order.Items))
	for i, item := range order.Items {
		var cfg catalog.LineItemConfig
		if err := json.Unmarshal(item.Config, &cfg); err != nil {
			return cart.QuoteInput{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("decode stored configuration for line %d", i))
		}
		items = append(items, cfg)
	}
	return cart.QuoteInput{
		Items:                   items,
		Address:                 order.Address,
		IsTaxExempt:             order.TaxExempt,
		IsCustomFabrication:     order.CustomFabrication,
		PreferredShippingMethod: order.ShippingMethod,
	}, nil
}

// intentIdempotencyKey is stable for one (order, payment source) pair so a
// retried request never charges twice.
func intentIdempotencyKey(jobID, sourceID string) string {
	return uuid.NewSHA1(intentKeySpace, []byte(jobID+"\x00"+sourceID)).String()
}

func (s *service) withJob(ctx context.Context, jobID string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithJobID(ctx, jobID)
}

func (s *service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}
