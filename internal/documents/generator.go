package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/fabshop-backend/internal/orders"
	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/logger"
	"github.com/angelmondragon/fabshop-backend/pkg/metrics"
)

const (
	contentTypePDF       = "application/pdf"
	defaultQuoteTTL      = 30 * 24 * time.Hour
	defaultRenderTimeout = 10 * time.Second
)

// Storage persists rendered documents and returns a retrievable URL.
type Storage interface {
	Upload(ctx context.Context, object, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, object string) error
}

// Document is a generated document as returned to callers.
type Document struct {
	JobID       string             `json:"jobId"`
	Type        enums.DocumentType `json:"documentType"`
	URL         string             `json:"pdfUrl"`
	GeneratedAt time.Time          `json:"generatedAt"`
	ExpiresAt   *time.Time         `json:"expiresAt,omitempty"`
	// Rendered is true only for the call that produced the document.
	Rendered bool `json:"-"`
}

type GeneratorParams struct {
	Store    orders.Store
	Storage  Storage
	Renderer Renderer
	// Locker is optional; without it renders are only collapsed in-process.
	Locker        Locker
	QuoteTTL      time.Duration
	RenderTimeout time.Duration
	Metrics       *metrics.DocumentMetrics
	Logger        *logger.Logger
}

// Generator produces each (order, document type) at most once.
type Generator struct {
	store         orders.Store
	storage       Storage
	renderer      Renderer
	locker        Locker
	quoteTTL      time.Duration
	renderTimeout time.Duration
	metrics       *metrics.DocumentMetrics
	logg          *logger.Logger
	group         singleflight.Group
	now           func() time.Time
}

func NewGenerator(params GeneratorParams) (*Generator, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Storage == nil {
		return nil, fmt.Errorf("document storage required")
	}
	renderer := params.Renderer
	if renderer == nil {
		renderer = PDFRenderer{}
	}
	quoteTTL := params.QuoteTTL
	if quoteTTL <= 0 {
		quoteTTL = defaultQuoteTTL
	}
	renderTimeout := params.RenderTimeout
	if renderTimeout <= 0 {
		renderTimeout = defaultRenderTimeout
	}
	return &Generator{
		store:         params.Store,
		storage:       params.Storage,
		renderer:      renderer,
		locker:        params.Locker,
		quoteTTL:      quoteTTL,
		renderTimeout: renderTimeout,
		metrics:       params.Metrics,
		logg:          params.Logger,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// Ensure returns the stored document, rendering and recording it first if
// this is the first request for it.
func (g *Generator) Ensure(ctx context.Context, jobID string, docType enums.DocumentType) (*Document, error) {
	if !docType.IsValid() {
		return nil, pkgerrors.Field("type", "must be shop_packet or quote")
	}
	order, err := g.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if doc, ok := existing(order, docType); ok {
		g.metrics.IncRequest(string(docType), "memoized")
		return doc, nil
	}
	if len(order.Items) == 0 {
		g.metrics.IncRequest(string(docType), "unavailable")
		return nil, pkgerrors.New(pkgerrors.CodeDocumentNotAvailable, "order has no items to document").
			WithDetails(map[string]any{"jobId": jobID, "documentType": docType})
	}

	// The render must outlive any single caller, since followers share it.
	renderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.renderTimeout)
	defer cancel()

	v, err, _ := g.group.Do(jobID+":"+string(docType), func() (any, error) {
		return g.generate(renderCtx, jobID, docType)
	})
	if err != nil {
		g.metrics.IncRequest(string(docType), "failed")
		return nil, err
	}
	doc := *v.(*Document)
	if doc.Rendered {
		g.metrics.IncRequest(string(docType), "rendered")
	} else {
		g.metrics.IncRequest(string(docType), "memoized")
	}
	return &doc, nil
}

func (g *Generator) generate(ctx context.Context, jobID string, docType enums.DocumentType) (*Document, error) {
	if g.logg != nil {
		ctx = g.logg.WithFields(g.logg.WithJobID(ctx, jobID), map[string]any{"document_type": string(docType)})
	}

	if g.locker != nil {
		release, err := g.locker.Acquire(ctx, jobID+":"+string(docType))
		switch {
		case errors.Is(err, ErrLockTimeout):
			order, getErr := g.store.Get(ctx, jobID)
			if getErr != nil {
				return nil, getErr
			}
			if doc, ok := existing(order, docType); ok {
				return doc, nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "document render already in progress")
		case err != nil:
			// Recording below is still exclusive; only duplicate render work is at stake.
			if g.logg != nil {
				g.logg.Error(ctx, "documents.lock_unavailable", err)
			}
		default:
			defer release()
		}
	}

	order, err := g.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if doc, ok := existing(order, docType); ok {
		return doc, nil
	}

	generatedAt := g.now()
	var expiresAt *time.Time
	if docType == enums.DocumentTypeQuote {
		exp := generatedAt.Add(g.quoteTTL)
		expiresAt = &exp
	}

	started := time.Now()
	data, err := g.renderer.Render(order, docType, RenderMeta{GeneratedAt: generatedAt, ExpiresAt: expiresAt})
	if err != nil {
		return nil, g.renderFailure(ctx, err, "render document")
	}
	object := objectName(jobID, docType, uuid.NewString())
	url, err := g.storage.Upload(ctx, object, contentTypePDF, data)
	if err != nil {
		return nil, g.renderFailure(ctx, err, "store document")
	}
	g.metrics.ObserveRender(string(docType), time.Since(started))

	record := models.DocumentRecord{URL: url, GeneratedAt: generatedAt, ExpiresAt: expiresAt}
	rendered := false
	updated, err := g.store.Mutate(ctx, jobID, func(o *models.Order) error {
		if _, ok := o.Document(docType); ok {
			return orders.ErrNoChange
		}
		if o.Documents == nil {
			o.Documents = models.DocumentSet{}
		}
		o.Documents[docType] = record
		rendered = true
		return nil
	})
	if err != nil || !rendered {
		// Our upload is unreferenced; another render's object is never touched.
		g.removeObject(ctx, object)
	}
	if err != nil {
		return nil, err
	}

	doc, _ := existing(updated, docType)
	doc.Rendered = rendered
	if g.logg != nil && rendered {
		g.logg.Info(g.logg.WithField(ctx, "url", url), "documents.rendered")
	}
	return doc, nil
}

func (g *Generator) removeObject(ctx context.Context, object string) {
	if err := g.storage.Delete(ctx, object); err != nil && g.logg != nil {
		g.logg.Error(g.logg.WithField(ctx, "object", object), "documents.cleanup_failed", err)
	}
}

func (g *Generator) renderFailure(ctx context.Context, err error, msg string) error {
	if g.logg != nil {
		g.logg.Error(ctx, "documents.render_failed", err)
	}
	return pkgerrors.Wrap(pkgerrors.CodeRenderFailure, err, msg)
}

func existing(order *models.Order, docType enums.DocumentType) (*Document, bool) {
	rec, ok := order.Document(docType)
	if !ok {
		return nil, false
	}
	return &Document{
		JobID:       order.JobID,
		Type:        docType,
		URL:         rec.URL,
		GeneratedAt: rec.GeneratedAt,
		ExpiresAt:   rec.ExpiresAt,
	}, true
}

// objectName is unique per render, so concurrent renders never share an object.
func objectName(jobID string, docType enums.DocumentType, renderID string) string {
	return fmt.Sprintf("orders/%s/%s-%s.pdf", jobID, docType, renderID)
}
