package pricelist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/centralpricelist/pricelist/internal/classify"
	"github.com/centralpricelist/pricelist/internal/oracle"
	"github.com/centralpricelist/pricelist/internal/pdftext"
	"github.com/centralpricelist/pricelist/internal/pricing"
	"github.com/centralpricelist/pricelist/internal/sheet"
)

// CompleterSource hands out the oracle for a provider name.
type CompleterSource interface {
	Select(name string) (oracle.Completer, error)
}

// Recorder receives pipeline measurements.
type Recorder interface {
	ObserveDocument(format, outcome string)
	ObserveRows(outcome string, n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveDocument(string, string) {}
func (nopRecorder) ObserveRows(string, int)        {}

// Config tunes the orchestrator.
type Config struct {
	DefaultProvider string
	SheetAnalysis   bool
	SheetWorkers    int
	MaxUploadBytes  int64
	DefaultMarkup   *float64
}

// sourceOracle marks records read from PDF text by the oracle.
const sourceOracle = "oracle"

// Service parses documents, prices their rows and persists the records.
type Service struct {
	repo     Repository
	statuses StatusStore
	oracles  CompleterSource
	resolver *sheet.Resolver
	recorder Recorder
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService wires the orchestrator. oracles and recorder may be nil.
func NewService(repo Repository, statuses StatusStore, oracles CompleterSource, recorder Recorder, logger *slog.Logger, cfg Config) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SheetWorkers <= 0 {
		cfg.SheetWorkers = 4
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = oracle.ProviderOpenAI
	}
	return &Service{
		repo:     repo,
		statuses: statuses,
		oracles:  oracles,
		resolver: sheet.NewResolver(),
		recorder: recorder,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Parse decodes doc and returns priced records without persisting them.
// Structural problems in single sheets are skipped; an unknown price type or
// a failed oracle call aborts the document.
func (s *Service) Parse(ctx context.Context, doc Document, opts Options) (Result, error) {
	format, err := s.checkDocument(doc, opts)
	if err != nil {
		return Result{}, err
	}
	if opts.SourceFile == "" {
		opts.SourceFile = filepath.Base(doc.Filename)
	}

	var res Result
	switch format {
	case FormatXLSX, FormatXLS:
		var (
			wb   sheet.Workbook
			rerr error
		)
		if format == FormatXLS {
			wb, rerr = sheet.ReadLegacyWorkbook(bytes.NewReader(doc.Data))
		} else {
			wb, rerr = sheet.ReadWorkbook(bytes.NewReader(doc.Data))
		}
		if rerr != nil {
			err = fmt.Errorf("pricelist: read %s: %w: %w", format, ErrUnreadable, rerr)
			break
		}
		res, err = s.ParseWorkbook(ctx, wb, opts)
	case FormatPDF:
		text, terr := pdftext.Extract(ctx, doc.Data)
		if terr != nil {
			err = fmt.Errorf("pricelist: read pdf: %w: %w", ErrUnreadable, terr)
			break
		}
		res, err = s.ParsePDFText(ctx, text.Text(), opts)
	}
	if err != nil {
		s.recorder.ObserveDocument(string(format), "error")
		return Result{}, err
	}
	res.Format = format
	s.recorder.ObserveDocument(string(format), "parsed")
	s.recorder.ObserveRows("accepted", res.Stats.RowsAccepted)
	s.recorder.ObserveRows("rejected", res.Stats.RowsRejected)
	return res, nil
}

func (s *Service) checkDocument(doc Document, opts Options) (Format, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	format, err := DetectFormat(doc.Filename)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, filepath.Ext(doc.Filename))
	}
	if len(doc.Data) == 0 {
		return "", ErrEmptyFile
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(doc.Data)) > s.cfg.MaxUploadBytes {
		return "", ErrFileTooLarge
	}
	return format, nil
}

type sheetOutcome struct {
	records  []ProductRecord
	rows     int
	rejected map[sheet.Rejection]int
	skipped  bool
	oracle   bool
	errs     []string
}

// ParseWorkbook prices every vendor sheet of wb. Sheets are resolved
// concurrently; records keep the workbook's sheet order.
func (s *Service) ParseWorkbook(ctx context.Context, wb sheet.Workbook, opts Options) (Result, error) {
	override, err := pricing.ParsePriceType(opts.PriceType)
	if err != nil {
		return Result{}, err
	}

	analyzer := s.analyzer(opts)
	outcomes := make([]sheetOutcome, len(wb.Sheets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SheetWorkers)
	for i, sh := range wb.Sheets {
		g.Go(func() error {
			out, err := s.parseSheet(gctx, sh, analyzer, override, opts)
			outcomes[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{PriceType: pricing.Resolve(override, ""), Stats: Stats{Sheets: len(wb.Sheets), Rejections: map[string]int{}}}
	var errs errorList
	for _, out := range outcomes {
		if out.skipped {
			res.Stats.SheetsSkipped++
			continue
		}
		res.Records = append(res.Records, out.records...)
		if out.oracle {
			res.Stats.OracleRows += len(out.records)
		}
		res.Stats.RowsFound += out.rows
		for reason, n := range out.rejected {
			res.Stats.Rejections[string(reason)] += n
			res.Stats.RowsRejected += n
		}
		for _, e := range out.errs {
			errs.add(e)
		}
	}
	res.Stats.RowsAccepted = len(res.Records)
	res.Errors = errs
	return res, nil
}

func (s *Service) parseSheet(ctx context.Context, sh sheet.Sheet, analyzer *oracle.StructureAnalyzer, override pricing.PriceType, opts Options) (sheetOutcome, error) {
	log := s.logger.With(slog.String("sheet", sh.Name))
	if s.resolver.Denylisted(sh.Name) {
		log.Info("sheet skipped", slog.String("reason", "denylisted sheet"))
		return sheetOutcome{skipped: true}, nil
	}

	st := s.resolver.Resolve(sh.Rows, sh.Name)
	if !st.IsValid && analyzer != nil && len(sh.Rows) >= s.resolver.MinRows {
		log.Info("header heuristic failed, asking oracle", slog.String("reason", st.Reason))
		st = analyzer.Analyze(ctx, sh.Rows, sh.Name)
		if err := st.Check(sh.Rows); err != nil {
			st = sheet.Invalid(err.Error())
		}
	}
	if !st.IsValid {
		log.Info("sheet skipped", slog.String("reason", st.Reason))
		return sheetOutcome{skipped: true}, nil
	}

	ex := sheet.Extract(sh.Rows, st)
	out := sheetOutcome{
		rejected: ex.Rejected,
		rows:     len(ex.Candidates) + ex.RejectedCount(),
		oracle:   st.Source != sheet.SourceHeuristic,
	}
	if n := ex.RejectedCount(); n > 0 {
		log.Debug("rows rejected", slog.Int("count", n), slog.Any("reasons", ex.Rejected))
	}

	for _, c := range ex.Candidates {
		in := recordInput{
			description: c.Description,
			category:    c.Category,
			sheet:       sh.Name,
			hint:        st.SupplierGuess,
			price:       c.Price,
			detected:    st.DetectedPriceType,
			confidence:  st.Confidence,
			source:      string(st.Source),
		}
		if st.Source == sheet.SourceHeuristic {
			in.name = truncateRunes(c.Name+" - "+c.Description, maxNameRunes)
			in.model = c.Name
		} else {
			in.name = c.Name
		}
		rec, err := s.buildRecord(in, override, opts)
		if errors.Is(err, pricing.ErrUnknownPriceType) {
			return out, fmt.Errorf("pricelist: sheet %q: %w", sh.Name, err)
		}
		if err != nil {
			out.errs = append(out.errs, fmt.Sprintf("%s row %d: %v", sh.Name, c.Row+1, err))
			continue
		}
		out.records = append(out.records, rec)
	}
	log.Info("sheet parsed", slog.String("source", string(st.Source)), slog.Int("records", len(out.records)), slog.Int("rejected", ex.RejectedCount()))
	return out, nil
}

// ParsePDFText hands the document text to the oracle and prices the rows it
// returns. A failed call aborts the document.
func (s *Service) ParsePDFText(ctx context.Context, text string, opts Options) (Result, error) {
	override, err := pricing.ParsePriceType(opts.PriceType)
	if err != nil {
		return Result{}, err
	}
	completer, err := s.completer(opts)
	if err != nil {
		return Result{}, fmt.Errorf("pricelist: pdf: %w", err)
	}

	rows, err := oracle.NewTextExtractor(completer).Extract(ctx, text, oracle.ExtractHints{
		SupplierName: opts.SupplierName,
		PriceType:    override,
		SourceFile:   opts.SourceFile,
	})
	if err != nil {
		return Result{}, fmt.Errorf("pricelist: pdf: %w", err)
	}

	res := Result{PriceType: pricing.Resolve(override, ""), Stats: Stats{RowsFound: len(rows), Rejections: map[string]int{}}}
	var errs errorList
	for i, row := range rows {
		if !row.Valid() {
			res.Stats.RowsRejected++
			res.Stats.Rejections[string(sheet.RejectMissingField)]++
			continue
		}
		rec, err := s.buildRecord(recordInput{
			name:        strings.TrimSpace(row.Name),
			description: strings.TrimSpace(row.Description),
			model:       strings.TrimSpace(row.ModelNumber),
			category:    row.Category,
			sheet:       "pdf",
			price:       float64(row.Price),
			confidence:  0.85,
			source:      sourceOracle,
		}, override, opts)
		if errors.Is(err, pricing.ErrUnknownPriceType) {
			return Result{}, fmt.Errorf("pricelist: pdf: %w", err)
		}
		if err != nil {
			errs.add(fmt.Sprintf("pdf item %d: %v", i+1, err))
			continue
		}
		res.Records = append(res.Records, rec)
	}
	res.Stats.RowsAccepted = len(res.Records)
	res.Stats.OracleRows = len(res.Records)
	res.Errors = errs
	return res, nil
}

type recordInput struct {
	name        string
	description string
	model       string
	category    string
	sheet       string
	hint        string
	price       float64
	detected    pricing.PriceType
	confidence  float64
	source      string
}

func (s *Service) buildRecord(in recordInput, override pricing.PriceType, opts Options) (ProductRecord, error) {
	supplier := classify.Supplier(opts.SourceFile, in.sheet, in.name, in.hint)
	if supplier == classify.UnknownSupplier && strings.TrimSpace(opts.SupplierName) != "" {
		supplier = strings.TrimSpace(opts.SupplierName)
	}

	priceType := pricing.Resolve(override, in.detected)
	markupOverride := opts.Markup
	if markupOverride == nil {
		markupOverride = s.cfg.DefaultMarkup
	}
	markup := pricing.ResolveMarkup(markupOverride, in.name, supplier)

	prices, err := pricing.Normalize(in.price, priceType, markup)
	if err != nil {
		return ProductRecord{}, err
	}

	key := in.model
	if key == "" {
		key = in.name
	}
	now := s.now().UTC()
	return ProductRecord{
		ProductID:       NewProductID(supplier, key),
		Name:            in.name,
		Description:     in.description,
		ModelNumber:     in.model,
		CategoryID:      classify.Category(in.name, in.description, supplier),
		Supplier:        supplier,
		SourceFile:      opts.SourceFile,
		SourceSheet:     in.sheet,
		Prices:          prices,
		Currency:        Currency,
		Confidence:      in.confidence,
		ProcessingNotes: fmt.Sprintf("%s: %s at %s%% markup from %s", in.source, priceType, strconv.FormatFloat(prices.MarkupPercentage, 'f', -1, 64), in.sheet),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (s *Service) completer(opts Options) (oracle.Completer, error) {
	if s.oracles == nil {
		return nil, oracle.ErrNotConfigured
	}
	provider := opts.Provider
	if provider == "" {
		provider = s.cfg.DefaultProvider
	}
	return s.oracles.Select(provider)
}

func (s *Service) analyzer(opts Options) *oracle.StructureAnalyzer {
	if !s.cfg.SheetAnalysis {
		return nil
	}
	c, err := s.completer(opts)
	if err != nil {
		s.logger.Warn("sheet analysis disabled for upload", slog.Any("error", err))
		return nil
	}
	return oracle.NewStructureAnalyzer(c, s.logger)
}

// Import parses doc and upserts every record. Failed writes are counted and
// reported; they do not stop the batch.
func (s *Service) Import(ctx context.Context, doc Document, opts Options) (Summary, error) {
	return s.importDocument(ctx, doc, opts, nil)
}

func (s *Service) importDocument(ctx context.Context, doc Document, opts Options, progress func(done, total int)) (Summary, error) {
	start := s.now()
	res, err := s.Parse(ctx, doc, opts)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Filename:       filepath.Base(doc.Filename),
		Format:         res.Format,
		Supplier:       strings.TrimSpace(opts.SupplierName),
		TotalFound:     res.Stats.RowsFound,
		RejectedCount:  res.Stats.RowsRejected,
		AIEnhancements: res.Stats.OracleRows,
		PriceType:      opts.PriceType,
		Markup:         opts.Markup,
	}
	if sum.PriceType == "" {
		sum.PriceType = "auto"
	}
	errs := errorList(res.Errors)

	total := len(res.Records)
	for i, rec := range res.Records {
		saved, err := s.repo.Upsert(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return Summary{}, ctx.Err()
			}
			sum.FailedCount++
			errs.add(fmt.Sprintf("%s (%s): %v", rec.ProductID, rec.Name, err))
			s.logger.Warn("record not saved", slog.String("product_id", rec.ProductID), slog.Any("error", err))
			continue
		}
		sum.SavedCount++
		if len(sum.Preview) < PreviewSize {
			sum.Preview = append(sum.Preview, saved)
		}
		if progress != nil {
			progress(i+1, total)
		}
	}

	sum.Errors = errs
	sum.Success = sum.SavedCount > 0
	sum.ProcessingTimeMS = s.now().Sub(start).Milliseconds()
	outcome := "saved"
	if !sum.Success {
		outcome = "empty"
	}
	s.recorder.ObserveDocument(string(res.Format), outcome)
	s.recorder.ObserveRows("saved", sum.SavedCount)
	s.recorder.ObserveRows("failed", sum.FailedCount)
	s.logger.Info("pricelist imported",
		slog.String("file", sum.Filename),
		slog.Int("found", sum.TotalFound),
		slog.Int("saved", sum.SavedCount),
		slog.Int("failed", sum.FailedCount),
		slog.Int("rejected", sum.RejectedCount))
	return sum, nil
}

// StartUpload registers a new upload in the processing state. Options and the
// file type are checked here so a queued upload only fails on content.
func (s *Service) StartUpload(ctx context.Context, filename string, opts Options) (UploadStatus, error) {
	if err := opts.Validate(); err != nil {
		return UploadStatus{}, err
	}
	if _, err := DetectFormat(filename); err != nil {
		return UploadStatus{}, fmt.Errorf("pricelist: %s: %w", filepath.Base(filename), err)
	}
	now := s.now().UTC()
	st := UploadStatus{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(filename),
		Supplier:  strings.TrimSpace(opts.SupplierName),
		State:     StateProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.statuses.Put(ctx, st); err != nil {
		return UploadStatus{}, err
	}
	return st, nil
}

// progressEvery throttles status writes during persistence.
const progressEvery = 25

// Track imports doc while recording progress under the upload id. The final
// status is completed or error; the returned error mirrors the latter.
func (s *Service) Track(ctx context.Context, id string, doc Document, opts Options) (Summary, error) {
	st, err := s.statuses.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		now := s.now().UTC()
		st = UploadStatus{ID: id, Filename: filepath.Base(doc.Filename), Supplier: opts.SupplierName, CreatedAt: now}
	} else if err != nil {
		return Summary{}, err
	}
	st.State = StateProcessing
	s.putStatus(ctx, st)

	sum, err := s.importDocument(ctx, doc, opts, func(done, total int) {
		if done%progressEvery != 0 && done != total {
			return
		}
		st.ProductsProcessed = done
		st.TotalProducts = total
		st.Progress = done * 100 / max(total, 1)
		s.putStatus(ctx, st)
	})

	st.UpdatedAt = s.now().UTC()
	if err != nil {
		st.State = StateError
		st.Error = err.Error()
		s.putStatus(ctx, st)
		return Summary{}, err
	}
	st.State = StateCompleted
	st.Progress = 100
	st.ProductsProcessed = sum.SavedCount
	st.TotalProducts = sum.TotalFound
	st.AIEnhancements = sum.AIEnhancements
	st.Summary = &sum
	s.putStatus(ctx, st)
	return sum, nil
}

// FailUpload moves an upload to the error state without processing it.
func (s *Service) FailUpload(ctx context.Context, id string, cause error) {
	st, err := s.statuses.Get(ctx, id)
	if err != nil {
		s.logger.Warn("upload status missing", slog.String("upload_id", id), slog.Any("error", err))
		return
	}
	st.State = StateError
	st.Error = cause.Error()
	s.putStatus(ctx, st)
}

func (s *Service) putStatus(ctx context.Context, st UploadStatus) {
	st.UpdatedAt = s.now().UTC()
	if err := s.statuses.Put(ctx, st); err != nil {
		s.logger.Warn("upload status not stored", slog.String("upload_id", st.ID), slog.Any("error", err))
	}
}

// Status returns one upload.
func (s *Service) Status(ctx context.Context, id string) (UploadStatus, error) {
	return s.statuses.Get(ctx, id)
}

// RecentUploads lists the newest uploads.
func (s *Service) RecentUploads(ctx context.Context) ([]UploadStatus, error) {
	return s.statuses.Recent(ctx, RecentUploads)
}

// PurgeUploads drops statuses created before the cutoff.
func (s *Service) PurgeUploads(ctx context.Context, before time.Time) (int, error) {
	return s.statuses.Purge(ctx, before)
}

// List returns a page of stored records.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]ProductRecord, int, error) {
	return s.repo.List(ctx, filter)
}

// Stats summarises the stored catalog.
func (s *Service) Stats(ctx context.Context) (CatalogStats, error) {
	return s.repo.Stats(ctx)
}

// Delete removes records by id.
func (s *Service) Delete(ctx context.Context, ids []string) (int64, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return 0, fmt.Errorf("%w: product ids required", ErrValidation)
	}
	return s.repo.Delete(ctx, clean)
}

// Export loads the records for an export. An empty result is ErrNoProducts.
func (s *Service) Export(ctx context.Context, filter ExportFilter) ([]ProductRecord, error) {
	records, err := s.repo.Export(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoProducts
	}
	return records, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
