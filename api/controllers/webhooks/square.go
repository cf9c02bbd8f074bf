package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/fabshop-backend/api/responses"
	squarewebhook "github.com/angelmondragon/fabshop-backend/internal/webhooks/square"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/logger"
	"github.com/angelmondragon/fabshop-backend/pkg/square"
)

const maxWebhookBody = 1 << 20

// SquareWebhookService accepts one signed Square delivery.
type SquareWebhookService interface {
	Receive(ctx context.Context, body []byte, signature string) (*squarewebhook.Receipt, error)
}

type receivedResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"eventId,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// SquareWebhook handles Square payment and refund notifications. Any 2xx tells
// Square to stop redelivering, so only accepted or no-op events return 200.
func SquareWebhook(svc SquareWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway not configured"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		receipt, err := svc.Receive(ctx, payload, r.Header.Get(square.SignatureHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, receivedResponse{
			Received:  true,
			EventID:   receipt.EventID,
			Duplicate: receipt.Duplicate,
		})
	}
}
