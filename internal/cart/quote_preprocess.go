package cart

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fabshop-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
)

func (s *service) preprocessQuoteInput(ctx context.Context, input QuoteInput) ([]catalog.NormalizedConfig, error) {
	lines := make([]catalog.NormalizedConfig, 0, len(input.Items))
	for i, item := range input.Items {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "quote cancelled")
		}
		line, err := s.validator.Validate(item)
		if err != nil {
			return nil, lineError(i, err)
		}
		lines = append(lines, *line)
	}
	return lines, nil
}

// lineError scopes a validation error to its position in the cart.
func lineError(index int, err error) error {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		return err
	}
	field := fmt.Sprintf("items[%d]", index)
	if inner := pkgerrors.FieldOf(err); inner != "" {
		field = field + "." + inner
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("items[%d]: %s", index, typed.Message())).
		WithDetails(map[string]any{"field": field, "index": index})
}
