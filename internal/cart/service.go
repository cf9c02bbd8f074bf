package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/fabshop-backend/internal/catalog"
	"github.com/angelmondragon/fabshop-backend/internal/shipping"
	"github.com/angelmondragon/fabshop-backend/internal/tax"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/logger"
	"github.com/angelmondragon/fabshop-backend/pkg/metrics"
	"github.com/angelmondragon/fabshop-backend/pkg/money"
)

// Service builds price quotes.
type Service interface {
	BuildQuote(ctx context.Context, input QuoteInput) (*Quote, error)
}

type ServiceParams struct {
	Validator *catalog.Validator
	Tax       *tax.Engine
	Shipping  *shipping.Engine
	Metrics   *metrics.QuoteMetrics
	Logger    *logger.Logger
}

type service struct {
	validator *catalog.Validator
	tax       *tax.Engine
	shipping  *shipping.Engine
	metrics   *metrics.QuoteMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a quote service backed by the provided engines.
func NewService(params ServiceParams) (Service, error) {
	if params.Validator == nil {
		return nil, fmt.Errorf("config validator required")
	}
	if params.Tax == nil {
		return nil, fmt.Errorf("tax engine required")
	}
	if params.Shipping == nil {
		return nil, fmt.Errorf("shipping engine required")
	}
	return &service{
		validator: params.Validator,
		tax:       params.Tax,
		shipping:  params.Shipping,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// BuildQuote validates every line in order and aborts on the first invalid
// one. Tax is computed on the subtotal only; shipping is not taxed.
func (s *service) BuildQuote(ctx context.Context, input QuoteInput) (quote *Quote, err error) {
	started := s.now()
	defer func() {
		outcome := "ok"
		if typed := pkgerrors.As(err); typed != nil {
			outcome = string(typed.Code())
		} else if err != nil {
			outcome = string(pkgerrors.CodeInternal)
		}
		s.metrics.Observe(outcome, s.now().Sub(started))
	}()

	if len(input.Items) == 0 {
		return nil, pkgerrors.Field("items", "must contain at least one line item")
	}

	lines, err := s.preprocessQuoteInput(ctx, input)
	if err != nil {
		return nil, err
	}

	var subtotal money.Cents
	custom := input.IsCustomFabrication
	for _, line := range lines {
		if subtotal, err = money.Sum(subtotal, line.LineTotal); err != nil {
			return nil, overflowError("subtotal", err)
		}
		custom = custom || line.IsCustomFabrication
	}

	ship, err := s.shipping.Calculate(lines, input.Address, input.PreferredShippingMethod)
	if err != nil {
		return nil, err
	}

	taxResult, err := s.tax.Calculate(subtotal, input.Address, input.IsTaxExempt, custom)
	if err != nil {
		return nil, err
	}
	if !taxResult.IsExempt && !taxResult.KnownJurisdiction && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"jurisdiction": taxResult.Jurisdiction,
			"tax_policy":   "fail_open",
		})
		s.logg.Warn(logCtx, "quote.tax.unknown_jurisdiction")
	}

	total, err := money.Sum(subtotal, taxResult.TaxAmount, ship.SelectedCost)
	if err != nil {
		return nil, overflowError("total", err)
	}

	return &Quote{
		Lines:    lines,
		Subtotal: subtotal,
		Shipping: ship,
		Tax:      taxResult,
		Total:    total,
	}, nil
}

func overflowError(field string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cart total is too large to price").
		WithDetails(map[string]any{"field": field})
}
