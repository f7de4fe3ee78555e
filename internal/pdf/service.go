package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/a3tai/mcp-pdf-forms/internal/convert"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/audit"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/embed"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/engine"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/fields"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/reconcile"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/reduce"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/signature"
	"github.com/a3tai/mcp-pdf-forms/internal/storage"
)

// DefaultWorkers bounds ProcessBatch when Settings.Workers is unset
const DefaultWorkers = 4

// PreviewDPI is the resolution of the page images written by RenderPreviews
const PreviewDPI = 72.0

// Settings tunes the components a Service builds per document
type Settings struct {
	Password        string
	Workers         int
	ReduceThreshold int
	RasterDPI       float64
	JPEGQuality     int
	CacheTTL        time.Duration
	AuditBackground []byte
	TempDir         string
	DuplicatePolicy reconcile.DuplicatePolicy
}

// Service runs form operations against stored documents. Every operation
// opens its own engine documents through the factory, so one Service may be
// shared by concurrent callers.
type Service struct {
	factory   engine.Factory
	store     storage.Store
	merger    engine.Merger
	converter convert.Converter
	cache     *signature.Cache
	settings  Settings
	logger    *log.Logger
}

// Option configures a Service
type Option func(*Service)

// WithConverter enables ImportOffice. Calls are admitted through limiter.
func WithConverter(conv convert.Converter, limiter *convert.Limiter) Option {
	return func(s *Service) { s.converter = convert.Limit(conv, limiter) }
}

// WithLogger sets the logger handed to every component
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a service over store. merger joins audit pages.
func NewService(factory engine.Factory, store storage.Store, merger engine.Merger, settings Settings, opts ...Option) *Service {
	if settings.Workers <= 0 {
		settings.Workers = DefaultWorkers
	}
	s := &Service{
		factory:  factory,
		store:    store,
		merger:   merger,
		cache:    signature.NewCache(settings.CacheTTL),
		settings: settings,
		logger:   log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the signature image cache owned by the service
func (s *Service) Cache() *signature.Cache {
	return s.cache
}

// read returns the stored bytes of key
func (s *Service) read(key storage.Key) ([]byte, error) {
	data, err := s.store.ReadDocument(key)
	if err == nil {
		return data, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypePrecondition, "document not stored", err).
			WithContext(key.String())
	}
	return nil, pdferrors.Wrap(pdferrors.ErrorTypeResource, "failed to read document", err).
		WithContext(key.String())
}

// open loads the stored document of key into a fresh engine document
func (s *Service) open(key storage.Key) (engine.Document, error) {
	data, err := s.read(key)
	if err != nil {
		return nil, err
	}
	doc := s.factory.New()
	if err := doc.LoadFromBytes(data, s.settings.Password); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to load document", err).
			WithContext(key.String())
	}
	return doc, nil
}

// Fields reads the field layout of a stored document and resolves the image
// of every signature field
func (s *Service) Fields(key storage.Key) (fields.PDFFields, error) {
	doc, err := s.open(key)
	if err != nil {
		return fields.PDFFields{}, err
	}
	layout, err := fields.Read(doc)
	if err != nil {
		return fields.PDFFields{}, err
	}
	signature.NewResolver(doc, key.String(),
		signature.WithCache(s.cache),
		signature.WithLogger(s.logger),
	).Populate(&layout)
	return layout, nil
}

// Reconcile brings the stored document of key to the submitted layout and
// stores the result under the same key
func (s *Service) Reconcile(key storage.Key, submitted fields.PDFFields) (*reconcile.Result, error) {
	doc, err := s.open(key)
	if err != nil {
		return nil, err
	}
	template, err := fields.Read(doc)
	if err != nil {
		return nil, err
	}

	r := reconcile.NewReconciler(doc, s.embedder(),
		reconcile.WithStore(s.store, key),
		reconcile.WithPassword(s.settings.Password),
		reconcile.WithDuplicatePolicy(s.settings.DuplicatePolicy),
		reconcile.WithLogger(s.logger),
	)
	res, err := r.Reconcile(template, submitted)
	s.cache.Invalidate(key.String())
	if err != nil {
		return res, fmt.Errorf("reconcile %s: %w", key, err)
	}
	s.logger.Printf("service: reconciled %s with %d operations", key, res.Operations())
	return res, nil
}

// Embed writes text and choice values into the stored document of key
func (s *Service) Embed(key storage.Key, textFields []fields.TextField, choiceFields []fields.ChoiceField, readOnly bool) ([]byte, error) {
	data, err := s.read(key)
	if err != nil {
		return nil, err
	}
	out, err := s.embedder().Embed(textFields, choiceFields, data, readOnly)
	if err != nil {
		return nil, err
	}
	if err := s.save(key, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ComposeAuditTrail draws the audit trail of a collection and stores it
// under the collection id
func (s *Service) ComposeAuditTrail(trace fields.DocumentCollectionAuditTrace, mode audit.Mode) ([]byte, error) {
	if trace.CollectionID == "" {
		return nil, pdferrors.New(pdferrors.ErrorTypePrecondition, "collection id is required")
	}
	out, err := s.composer().ComposeCollectionTrace(trace, mode)
	if err != nil {
		return nil, err
	}
	key := storage.Key{Type: storage.DocumentTypeAuditTrail, ID: trace.CollectionID}
	if err := s.save(key, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ComposeRowTrace draws a plain row audit trail and stores it under id
func (s *Service) ComposeRowTrace(id string, rows []string) ([]byte, error) {
	out, err := s.composer().ComposeRowTrace(rows)
	if err != nil {
		return nil, err
	}
	if err := s.save(storage.Key{Type: storage.DocumentTypeAuditTrail, ID: id}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reduce shrinks the stored document of key when it is oversized. It reports
// whether the stored bytes were replaced.
func (s *Service) Reduce(key storage.Key) (bool, error) {
	data, err := s.read(key)
	if err != nil {
		return false, err
	}
	out, err := s.reducer().ReduceIfOversized(data)
	if err != nil {
		return false, err
	}
	if len(out) == len(data) {
		return false, nil
	}
	if err := s.save(key, out); err != nil {
		return false, err
	}
	s.cache.Invalidate(key.String())
	return true, nil
}

// ImportOffice converts an office document, reduces it and stores it under key
func (s *Service) ImportOffice(ctx context.Context, key storage.Key, filename string, data []byte) ([]byte, error) {
	if s.converter == nil {
		return nil, pdferrors.New(pdferrors.ErrorTypePrecondition, "no converter configured")
	}
	converted, err := s.converter.ToPDF(ctx, filename, data)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeResource, "conversion failed", err).
			WithContext(filename)
	}
	out, err := s.reducer().ReduceIfOversized(converted)
	if err != nil {
		return nil, err
	}
	if err := s.save(key, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RenderPreviews renders every page of the stored document and replaces its
// stored page images
func (s *Service) RenderPreviews(key storage.Key) (int, error) {
	doc, err := s.open(key)
	if err != nil {
		return 0, err
	}
	images := make([][]byte, 0, doc.PageCount())
	for p := 1; p <= doc.PageCount(); p++ {
		img, err := doc.RenderPage(p, PreviewDPI)
		if err != nil {
			return 0, pdferrors.Wrap(pdferrors.ErrorTypeCorruptInput, "failed to render page", err).WithPage(p)
		}
		images = append(images, img)
	}
	if err := s.store.CreateImagesFromBytes(key, images); err != nil {
		return 0, pdferrors.Wrap(pdferrors.ErrorTypeResource, "failed to store page images", err).
			WithContext(key.String())
	}
	return len(images), nil
}

// PageImages returns count stored page images of key starting at start
func (s *Service) PageImages(key storage.Key, start, count int) ([][]byte, error) {
	images, err := s.store.ReadImagesInRange(key, start, count)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeResource, "failed to read page images", err).
			WithContext(key.String())
	}
	return images, nil
}

// Delete removes every stored blob of key and its cached images
func (s *Service) Delete(key storage.Key) error {
	s.cache.Invalidate(key.String())
	if err := s.store.DeleteAllDocumentData(key); err != nil {
		return pdferrors.Wrap(pdferrors.ErrorTypeResource, "failed to delete document", err).
			WithContext(key.String())
	}
	return nil
}

// Job is one unit of ProcessBatch. Submitted, when set, is reconciled first;
// Reduce then shrinks the stored result.
type Job struct {
	Key       storage.Key       `json:"key"`
	Submitted *fields.PDFFields `json:"submitted,omitempty"`
	Reduce    bool              `json:"reduce"`
}

// JobResult is the outcome of one Job
type JobResult struct {
	Key       storage.Key       `json:"key"`
	Reconcile *reconcile.Result `json:"reconcile,omitempty"`
	Reduced   bool              `json:"reduced"`
	Err       error             `json:"-"`
}

// ProcessBatch runs independent jobs on at most Settings.Workers goroutines.
// Results keep the order of jobs; the returned error joins every job error.
// Jobs not yet started when ctx is done fail with the context error.
func (s *Service) ProcessBatch(ctx context.Context, jobs []Job) ([]JobResult, error) {
	results := make([]JobResult, len(jobs))
	p := pool.New().WithMaxGoroutines(s.settings.Workers).WithErrors().WithContext(ctx)
	for i, job := range jobs {
		p.Go(func(ctx context.Context) error {
			results[i] = s.runJob(ctx, job)
			return results[i].Err
		})
	}
	err := p.Wait()
	return results, err
}

func (s *Service) runJob(ctx context.Context, job Job) JobResult {
	res := JobResult{Key: job.Key}
	if err := ctx.Err(); err != nil {
		res.Err = fmt.Errorf("%s: %w", job.Key, err)
		return res
	}
	if job.Submitted != nil {
		out, err := s.Reconcile(job.Key, *job.Submitted)
		res.Reconcile = out
		if err != nil {
			res.Err = err
			return res
		}
	}
	if job.Reduce {
		reduced, err := s.Reduce(job.Key)
		res.Reduced = reduced
		if err != nil {
			res.Err = fmt.Errorf("reduce %s: %w", job.Key, err)
		}
	}
	return res
}

func (s *Service) save(key storage.Key, data []byte) error {
	if err := s.store.SaveDocument(key, data); err != nil {
		return pdferrors.Wrap(pdferrors.ErrorTypeResource, "failed to store document", err).
			WithContext(key.String())
	}
	return nil
}

func (s *Service) embedder() *embed.Embedder {
	return embed.NewEmbedder(s.factory.New(),
		embed.WithPassword(s.settings.Password),
		embed.WithLogger(s.logger),
	)
}

func (s *Service) composer() *audit.Composer {
	opts := []audit.Option{audit.WithLogger(s.logger)}
	if len(s.settings.AuditBackground) > 0 {
		opts = append(opts, audit.WithBackground(s.settings.AuditBackground))
	}
	if s.settings.TempDir != "" {
		opts = append(opts, audit.WithTempDir(s.settings.TempDir))
	}
	return audit.NewComposer(s.factory, s.merger, opts...)
}

func (s *Service) reducer() *reduce.Reducer {
	opts := []reduce.Option{
		reduce.WithPassword(s.settings.Password),
		reduce.WithLogger(s.logger),
	}
	if s.settings.ReduceThreshold > 0 {
		opts = append(opts, reduce.WithThreshold(s.settings.ReduceThreshold))
	}
	if s.settings.RasterDPI > 0 {
		opts = append(opts, reduce.WithDPI(s.settings.RasterDPI))
	}
	if s.settings.JPEGQuality > 0 {
		opts = append(opts, reduce.WithQuality(s.settings.JPEGQuality))
	}
	return reduce.NewReducer(s.factory, opts...)
}
