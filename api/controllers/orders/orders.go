package orders

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/fabshop-backend/api/responses"
	"github.com/angelmondragon/fabshop-backend/internal/documents"
	internalorders "github.com/angelmondragon/fabshop-backend/internal/orders"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/logger"
)

// DocumentService returns the stored document for an order, producing it on
// first request.
type DocumentService interface {
	Ensure(ctx context.Context, jobID string, docType enums.DocumentType) (*documents.Document, error)
}

// Detail returns one order by job id.
func Detail(store internalorders.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order store unavailable"))
			return
		}

		jobID, err := jobIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := store.Get(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

type documentResponse struct {
	Success      bool               `json:"success"`
	PDFURL       string             `json:"pdfUrl"`
	DocumentType enums.DocumentType `json:"documentType"`
	GeneratedAt  time.Time          `json:"generatedAt"`
	ExpiresAt    *time.Time         `json:"expiresAt,omitempty"`
}

// Document serves GET /orders/{jobId}/documents?type=shop_packet|quote.
func Document(svc DocumentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "document service unavailable"))
			return
		}

		jobID, err := jobIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw := strings.TrimSpace(r.URL.Query().Get("type"))
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Field("type", "is required"))
			return
		}
		docType, err := enums.ParseDocumentType(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Field("type", "must be shop_packet or quote"))
			return
		}

		doc, err := svc.Ensure(r.Context(), jobID, docType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, documentResponse{
			Success:      true,
			PDFURL:       doc.URL,
			DocumentType: doc.Type,
			GeneratedAt:  doc.GeneratedAt,
			ExpiresAt:    doc.ExpiresAt,
		})
	}
}

func jobIDParam(r *http.Request) (string, error) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobId"))
	if jobID == "" {
		return "", pkgerrors.Field("jobId", "is required")
	}
	return jobID, nil
}
