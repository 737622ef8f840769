package pricelisthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/centralpricelist/pricelist/internal/export"
	"github.com/centralpricelist/pricelist/internal/oracle"
	"github.com/centralpricelist/pricelist/internal/platform/httpx"
	"github.com/centralpricelist/pricelist/internal/pricelist"
	"github.com/centralpricelist/pricelist/internal/pricing"
	"github.com/centralpricelist/pricelist/internal/shared"
)

const (
	// multipartMemory is kept in memory before the form spills to disk.
	multipartMemory = 32 << 20

	// formOverhead covers multipart boundaries and the option fields.
	formOverhead = 1 << 20

	exportTimeout = 2 * time.Minute

	idempotencyModule = "pricelist.upload"
)

// Service defines the pricelist operations used by the handler.
type Service interface {
	Import(ctx context.Context, doc pricelist.Document, opts pricelist.Options) (pricelist.Summary, error)
	StartUpload(ctx context.Context, filename string, opts pricelist.Options) (pricelist.UploadStatus, error)
	FailUpload(ctx context.Context, id string, cause error)
	Status(ctx context.Context, id string) (pricelist.UploadStatus, error)
	RecentUploads(ctx context.Context) ([]pricelist.UploadStatus, error)
	List(ctx context.Context, filter pricelist.ListFilter) ([]pricelist.ProductRecord, int, error)
	Stats(ctx context.Context) (pricelist.CatalogStats, error)
	Delete(ctx context.Context, ids []string) (int64, error)
	Export(ctx context.Context, filter pricelist.ExportFilter) ([]pricelist.ProductRecord, error)
}

// Enqueuer hands a spooled upload to the background worker.
type Enqueuer interface {
	EnqueueUpload(ctx context.Context, upload pricelist.Upload) error
}

// Spooler keeps upload bytes until the worker reads them.
type Spooler interface {
	Save(id, filename string, data []byte) (string, error)
	Remove(path string) error
}

// KeyStore remembers the Idempotency-Key of accepted uploads.
type KeyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler serves the pricelist API.
type Handler struct {
	logger   *slog.Logger
	service  Service
	enqueuer Enqueuer
	spool    Spooler
	keys     KeyStore
	maxBytes int64
	now      func() time.Time
}

// NewHandler constructs the pricelist HTTP handler. Without an enqueuer or a
// spool every upload is processed inside the request.
func NewHandler(logger *slog.Logger, service Service, enqueuer Enqueuer, spool Spooler, maxBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		enqueuer: enqueuer,
		spool:    spool,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// WithIdempotency makes uploads honour the Idempotency-Key header.
func (h *Handler) WithIdempotency(keys KeyStore) {
	h.keys = keys
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, r, fmt.Errorf("%w: upload exceeds %d bytes", httpx.ErrTooLarge, h.maxBytes))
			return
		}
		h.respondError(w, r, fmt.Errorf("%w: multipart form: %v", httpx.ErrValidation, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, r, fmt.Errorf("%w: file is required", httpx.ErrValidation))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if int64(len(data)) > h.maxBytes {
		h.respondError(w, r, fmt.Errorf("%w: upload exceeds %d bytes", httpx.ErrTooLarge, h.maxBytes))
		return
	}

	opts, err := uploadOptions(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if opts.SourceFile == "" {
		opts.SourceFile = header.Filename
	}
	doc := pricelist.Document{Filename: header.Filename, Data: data}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if !h.claim(w, r, key) {
		return
	}

	if h.enqueuer == nil || h.spool == nil || r.URL.Query().Get("mode") == "sync" {
		summary, err := h.service.Import(r.Context(), doc, opts)
		if err != nil {
			h.release(r.Context(), key)
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, summary)
		return
	}
	h.enqueue(w, r, key, doc, opts)
}

// claim reserves the idempotency key. A repeated key is a 409.
func (h *Handler) claim(w http.ResponseWriter, r *http.Request, key string) bool {
	if key == "" || h.keys == nil {
		return true
	}
	err := h.keys.CheckAndInsert(r.Context(), key, idempotencyModule)
	switch {
	case err == nil:
		return true
	case errors.Is(err, shared.ErrIdempotencyConflict):
		h.respondError(w, r, fmt.Errorf("%w: upload %q already received", httpx.ErrDuplicate, key))
	default:
		h.respondError(w, r, fmt.Errorf("%w: idempotency: %v", httpx.ErrUnavailable, err))
	}
	return false
}

// release frees the key of an upload that was not accepted so the client can retry.
func (h *Handler) release(ctx context.Context, key string) {
	if key == "" || h.keys == nil {
		return
	}
	if err := h.keys.Delete(context.WithoutCancel(ctx), key, idempotencyModule); err != nil {
		h.logger.Warn("idempotency key not released", slog.String("key", key), slog.Any("error", err))
	}
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, key string, doc pricelist.Document, opts pricelist.Options) {
	ctx := r.Context()
	status, err := h.service.StartUpload(ctx, doc.Filename, opts)
	if err != nil {
		h.release(ctx, key)
		h.respondError(w, r, err)
		return
	}
	path, err := h.spool.Save(status.ID, doc.Filename, doc.Data)
	if err != nil {
		h.service.FailUpload(ctx, status.ID, err)
		h.release(ctx, key)
		h.respondError(w, r, err)
		return
	}
	upload := pricelist.Upload{ID: status.ID, Filename: doc.Filename, Path: path, Options: opts}
	if err := h.enqueuer.EnqueueUpload(ctx, upload); err != nil {
		h.service.FailUpload(ctx, status.ID, err)
		h.release(ctx, key)
		if rerr := h.spool.Remove(path); rerr != nil {
			h.logger.Warn("spooled upload not removed", slog.String("path", path), slog.Any("error", rerr))
		}
		h.respondError(w, r, fmt.Errorf("%w: enqueue upload: %v", httpx.ErrUnavailable, err))
		return
	}
	h.logger.Info("upload queued", slog.String("upload_id", status.ID), slog.String("file", status.Filename))
	httpx.JSON(w, http.StatusAccepted, status)
}

// uploadOptions reads either a JSON "config" field or the individual form
// fields.
func uploadOptions(r *http.Request) (pricelist.Options, error) {
	var opts pricelist.Options
	if raw := strings.TrimSpace(r.FormValue("config")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			return opts, fmt.Errorf("%w: config: %v", httpx.ErrValidation, err)
		}
		return opts, nil
	}
	opts.SupplierName = r.FormValue("supplier_name")
	opts.PriceType = r.FormValue("price_type")
	opts.Provider = r.FormValue("ai_provider")
	if raw := strings.TrimSpace(r.FormValue("markup_percentage")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, fmt.Errorf("%w: markup_percentage must be a number", httpx.ErrValidation)
		}
		opts.Markup = &v
	}
	return opts, nil
}

func (h *Handler) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) handleRecentUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.service.RecentUploads(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if uploads == nil {
		uploads = []pricelist.UploadStatus{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"uploads": uploads})
}

type listResponse struct {
	Products   []pricelist.ProductRecord `json:"products"`
	Pagination shared.Pagination         `json:"pagination"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	records, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if records == nil {
		records = []pricelist.ProductRecord{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Products:   records,
		Pagination: shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func listFilter(r *http.Request) (pricelist.ListFilter, error) {
	q := r.URL.Query()
	page, err := optionalInt(q.Get("page"), "page")
	if err != nil {
		return pricelist.ListFilter{}, err
	}
	limit, err := optionalInt(q.Get("limit"), "limit")
	if err != nil {
		return pricelist.ListFilter{}, err
	}
	f := pricelist.ListFilter{
		Supplier: q.Get("supplier"),
		Search:   q.Get("search"),
		SortBy:   q.Get("sort"),
		SortDir:  strings.ToLower(q.Get("dir")),
	}
	f.Page, f.Limit = shared.Normalize(page, limit)
	if f.CategoryID, err = optionalIntPtr(q.Get("category_id"), "category_id"); err != nil {
		return f, err
	}
	if f.MinPrice, err = optionalFloat(q.Get("min_price"), "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = optionalFloat(q.Get("max_price"), "max_price"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

type deleteRequest struct {
	ProductIDs []string `json:"product_ids"`
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: invalid body: %v", httpx.ErrValidation, err))
		return
	}
	deleted, err := h.service.Delete(r.Context(), req.ProductIDs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "deleted_count": deleted})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	category, err := optionalIntPtr(q.Get("category"), "category")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	filter := pricelist.ExportFilter{Supplier: strings.TrimSpace(q.Get("supplier")), CategoryID: category}

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	now := h.now()
	key := exportKey(format, filter)
	val, err, coalesced := singleflightBuild(ctx, key, func(ctx context.Context) (interface{}, error) {
		records, err := h.service.Export(ctx, filter)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := export.Write(&buf, format, records, now); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if coalesced {
		h.logger.Debug("export shared", slog.String("key", key))
	}
	httpx.Attachment(w, format.ContentType(), export.Filename(format, now), val.([]byte))
}

func exportKey(format export.Format, filter pricelist.ExportFilter) string {
	category := "all"
	if filter.CategoryID != nil {
		category = strconv.Itoa(*filter.CategoryID)
	}
	return fmt.Sprintf("export:%s:%s:%s", format, strings.ToLower(filter.Supplier), category)
}

// respondError maps domain failures onto the httpx sentinels.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := mapError(err)
	if !isClientError(mapped) {
		h.logger.Error("pricelist request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, mapped)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, pricelist.ErrValidation),
		errors.Is(err, pricelist.ErrUnsupportedFormat),
		errors.Is(err, pricelist.ErrEmptyFile),
		errors.Is(err, pricelist.ErrUnreadable),
		errors.Is(err, pricing.ErrUnknownPriceType),
		errors.Is(err, pricing.ErrInvalidMarkup),
		errors.Is(err, oracle.ErrUnknownProvider),
		errors.Is(err, export.ErrUnsupportedFormat):
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case errors.Is(err, pricelist.ErrFileTooLarge):
		return fmt.Errorf("%w: %v", httpx.ErrTooLarge, err)
	case errors.Is(err, pricelist.ErrNotFound), errors.Is(err, pricelist.ErrNoProducts):
		return fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, oracle.ErrNotConfigured):
		return fmt.Errorf("%w: %v", httpx.ErrUnavailable, err)
	case errors.Is(err, oracle.ErrEmptyResponse),
		errors.Is(err, oracle.ErrNoJSONArray),
		errors.Is(err, oracle.ErrNoJSONObject),
		isStatusError(err):
		return fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}
	return err
}

func isStatusError(err error) bool {
	var se *oracle.StatusError
	return errors.As(err, &se)
}

func isClientError(err error) bool {
	return errors.Is(err, httpx.ErrValidation) ||
		errors.Is(err, httpx.ErrNotFound) ||
		errors.Is(err, httpx.ErrTooLarge) ||
		errors.Is(err, httpx.ErrDuplicate)
}

func optionalInt(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", httpx.ErrValidation, field)
	}
	return v, nil
}

func optionalIntPtr(raw, field string) (*int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := optionalInt(raw, field)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalFloat(raw, field string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", httpx.ErrValidation, field)
	}
	return &v, nil
}
