// Package convert runs one PDF to Markdown conversion per call: sniff,
// stage, extract, render, release.
package convert

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/dgallion1/pdfmd/internal/extract"
	"github.com/dgallion1/pdfmd/internal/markdown"
	"github.com/dgallion1/pdfmd/internal/staging"
)

// PDFSignature is the byte prefix every accepted upload starts with.
var PDFSignature = []byte("%PDF-")

// UploadedDocument is the request-owned input of one conversion. Data must
// not be modified while the conversion runs.
type UploadedDocument struct {
	Data    []byte
	Name    string
	Options extract.Options
}

// Config tunes a Pipeline.
type Config struct {
	ExtractTimeout time.Duration
	MaxConcurrent  int
}

// Pipeline converts uploaded documents. It is safe for concurrent use; the
// only state shared between conversions is the staging namespace, the
// concurrency bound and the stats counters.
type Pipeline struct {
	stager    *staging.Stager
	extractor extract.Extractor
	sem       *semaphore.Weighted
	timeout   time.Duration
	stats     *Stats
	log       *slog.Logger
}

func NewPipeline(stager *staging.Stager, extractor extract.Extractor, cfg Config, stats *Stats, log *slog.Logger) *Pipeline {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if stats == nil {
		stats = NewStats(time.Hour)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		stager:    stager,
		extractor: extractor,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		timeout:   cfg.ExtractTimeout,
		stats:     stats,
		log:       log,
	}
}

func (p *Pipeline) Stats() *Stats { return p.stats }

// Convert runs the whole conversion and never panics. The staged resource,
// if one was created, has been released by the time Convert returns.
func (p *Pipeline) Convert(ctx context.Context, doc UploadedDocument) (res Result) {
	start := time.Now()
	log := p.log.With("request_id", middleware.GetReqID(ctx), "file", staging.SanitizeName(doc.Name), "bytes", len(doc.Data))
	if len(doc.Data) > 0 {
		log = log.With("sha256", digest(doc.Data))
	}

	defer func() {
		if r := recover(); r != nil {
			res = failure(Internal, MsgConvertFailed, fmt.Errorf("conversion panic: %v", r))
		}
		p.finish(log, res, time.Since(start))
	}()

	if len(doc.Data) == 0 {
		return failure(InvalidInput, MsgNoFile, staging.ErrEmpty)
	}
	if !bytes.HasPrefix(doc.Data, PDFSignature) {
		return failure(InvalidInput, MsgNotPDF, errors.New("missing %PDF- signature"))
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return failure(Canceled, MsgConvertFailed, err)
	}
	defer p.sem.Release(1)

	staged, err := p.stager.Stage(ctx, doc.Data, doc.Name)
	if err != nil {
		return p.fail(ctx, err)
	}

	md, err := staging.WithStaged(staged, func(r *staging.Resource) (string, error) {
		return p.extract(ctx, r, doc.Options)
	})
	if err != nil {
		return p.fail(ctx, err)
	}
	return success(md)
}

func (p *Pipeline) extract(ctx context.Context, src extract.Source, opts extract.Options) (string, error) {
	ectx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ectx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	text, err := p.extractor.Extract(ectx, src, opts)
	if err != nil {
		return "", err
	}
	// A result that raced the deadline is still discarded.
	if err := ectx.Err(); err != nil {
		return "", err
	}
	return markdown.Render(*text), nil
}

// fail classifies err. A canceled caller always reports Canceled, even when
// the engine surfaced a different error while unwinding.
func (p *Pipeline) fail(ctx context.Context, err error) Result {
	kind := Classify(err)
	if ctx.Err() != nil {
		kind = Canceled
	}
	msg := MsgConvertFailed
	if kind == InvalidInput {
		msg = MsgNoFile
	}
	return failure(kind, msg, err)
}

func (p *Pipeline) finish(log *slog.Logger, res Result, elapsed time.Duration) {
	log = log.With("duration_ms", elapsed.Milliseconds())
	if res.OK() {
		p.stats.Record("", elapsed)
		log.Info("conversion succeeded", "markdown_bytes", len(res.Markdown))
		return
	}
	f := res.Failure
	p.stats.Record(f.Kind, elapsed)
	switch f.Kind {
	case InvalidInput, Canceled:
		log.Info("conversion rejected", "kind", f.Kind, "error", f.Err)
	case StagingIOFailure, Internal:
		log.Error("conversion failed", "kind", f.Kind, "error", f.Err)
	default:
		log.Warn("conversion failed", "kind", f.Kind, "error", f.Err)
	}
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
