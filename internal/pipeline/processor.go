package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"
	"github.com/rotisserie/eris"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docground/internal/chunker"
	"github.com/dgallion1/docground/internal/config"
	"github.com/dgallion1/docground/internal/document"
	"github.com/dgallion1/docground/internal/embed"
	"github.com/dgallion1/docground/internal/extract"
	"github.com/dgallion1/docground/internal/ground"
	"github.com/dgallion1/docground/internal/metrics"
	"github.com/dgallion1/docground/internal/mode"
	"github.com/dgallion1/docground/internal/ocr"
	"github.com/dgallion1/docground/internal/parser"
	"github.com/dgallion1/docground/internal/report"
	"github.com/dgallion1/docground/internal/retrieve"
	"github.com/dgallion1/docground/internal/tables"
)

// Events emitted while a request is processed.
const (
	EventMarkdownStart = "markdown_start"
	EventPPStart       = "pp_start"
)

// Response statuses.
const (
	ResponseDone    = "done"
	ResponsePartial = "partial"
)

// singlePassContextLimit caps the context stored in the report for
// single-pass fields.
const singlePassContextLimit = 4000

// EmitFunc receives progress events.
type EmitFunc func(event string, data map[string]any)

// Request is one document to extract from.
type Request struct {
	RequestID string
	Filename  string
	Data      []byte
	Template  document.Template
	Emit      EmitFunc
}

// Response is the extraction result returned to callers.
type Response struct {
	RequestID   string                         `json:"request_id"`
	Template    string                         `json:"template"`
	Text        string                         `json:"text"`
	Fields      map[string]document.FieldValue `json:"fields"`
	Extractions []document.FieldExtraction     `json:"extractions"`
	Status      string                         `json:"status"`
}

// Deps are the collaborators of a Processor.
type Deps struct {
	Config    *config.Config
	Extractor extract.Extractor
	Analyzer  ocr.Analyzer
	Chain     *embed.Chain
	Reports   *report.Store
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

// Processor runs single requests end to end: conversion, layout analysis,
// chunking, mode selection, extraction and grounding.
type Processor struct {
	cfg       *config.Config
	extractor extract.Extractor
	analyzer  ocr.Analyzer
	chain     *embed.Chain
	reports   *report.Store
	metrics   *metrics.Metrics
	policy    tables.Policy
	pool      *ants.Pool
	log       *zap.Logger

	backoff func() retry.Backoff
}

// NewProcessor validates the layout policy and starts the CPU pool.
func NewProcessor(d Deps) (*Processor, error) {
	if d.Config == nil || d.Extractor == nil {
		return nil, eris.New("pipeline: config and extractor are required")
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	policy, err := tables.ParsePolicy(d.Config.OCR.Policy)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: ocr policy")
	}
	size := d.Config.Pipeline.CPUPoolSize
	if size <= 0 {
		size = 4
	}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		log.Error("cpu task panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: cpu pool")
	}
	analyzer := d.Analyzer
	if analyzer == nil {
		analyzer = ocr.MockAnalyzer{}
	}
	return &Processor{
		cfg:       d.Config,
		extractor: d.Extractor,
		analyzer:  analyzer,
		chain:     d.Chain,
		reports:   d.Reports,
		metrics:   d.Metrics,
		policy:    policy,
		pool:      pool,
		log:       log,
		backoff:   Backoff,
	}, nil
}

// Close releases the CPU pool.
func (p *Processor) Close() {
	p.pool.Release()
}

// runCPU runs fn on the bounded pool and waits for it.
func (p *Processor) runCPU(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := p.pool.Submit(func() {
		defer close(done)
		fn()
	}); err != nil {
		return eris.Wrap(err, "pipeline: submit cpu task")
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// prepared is the document state shared by both extraction modes.
type prepared struct {
	markdown string
	tokens   document.TokenBatch
	blocks   []document.PageBlocks
	fallback *ground.Fallback
	chunks   []document.Chunk
	decision mode.Decision
	estimate int
	manifest report.Manifest
}

// Process extracts req.Template from req.Data. Only invalid input and
// cancellation are errors; failed model calls yield zero-confidence fields
// and a partial status.
func (p *Processor) Process(ctx context.Context, req Request) (*Response, error) {
	req.Template.Normalize()
	if err := req.Template.Validate(); err != nil {
		return nil, err
	}
	if req.RequestID == "" {
		req.RequestID = NewRequestID()
	}
	if req.Emit == nil {
		req.Emit = func(string, map[string]any) {}
	}
	log := p.log.With(zap.String("request_id", req.RequestID), zap.String("template", req.Template.Name))

	doc, err := p.prepare(ctx, req, log)
	if err != nil {
		return nil, err
	}
	p.metrics.ModeSelected(string(doc.decision.Mode))

	var results []fieldResult
	if doc.decision.Mode == mode.SinglePass {
		results, err = p.singlePass(ctx, req, doc)
	} else {
		results, err = p.fieldWise(ctx, req, doc, log)
	}
	if err != nil {
		return nil, err
	}

	resp := &Response{
		RequestID:   req.RequestID,
		Template:    req.Template.Name,
		Text:        doc.markdown,
		Fields:      make(map[string]document.FieldValue, len(results)),
		Extractions: make([]document.FieldExtraction, 0, len(results)),
		Status:      ResponseDone,
	}
	rep := &report.Report{
		RequestID:  req.RequestID,
		CreatedAt:  time.Now().UnixMilli(),
		Manifest:   doc.manifest,
		FieldOrder: req.Template.Fields,
		Fields:     make(map[string]report.FieldDetail, len(results)),
	}
	for _, r := range results {
		resp.Fields[r.extraction.Key] = document.FieldValue{Value: r.extraction.Value, Confidence: r.extraction.Confidence}
		resp.Extractions = append(resp.Extractions, r.extraction)
		rep.Fields[r.extraction.Key] = r.detail
		if r.detail.Error != "" {
			resp.Status = ResponsePartial
		}
	}

	if p.reports != nil {
		err := p.reports.Save(&report.Bundle{
			Report:   rep,
			Response: resp,
			Markdown: doc.markdown,
			Tokens:   doc.tokens,
			Blocks:   doc.blocks,
		})
		if err != nil {
			log.Warn("report not saved", zap.Error(err))
		}
	}
	log.Info("request processed",
		zap.String("mode", string(doc.decision.Mode)),
		zap.Int("chunks", len(doc.chunks)),
		zap.Int("fields", len(results)),
		zap.String("status", resp.Status),
	)
	return resp, nil
}

func (p *Processor) prepare(ctx context.Context, req Request, log *zap.Logger) (*prepared, error) {
	cfg := p.cfg
	doc := &prepared{
		manifest: report.Manifest{
			RequestID: req.RequestID,
			File:      req.Filename,
			Template:  req.Template.Name,
			Policy: report.Policy{
				RAGTopK: cfg.RAG.TopK,
				RAGWeights: retrieve.Weights{
					Lexical: cfg.RAG.WeightBM25,
					Vector:  cfg.RAG.WeightVec,
					Anchor:  cfg.RAG.WeightAnchor,
				},
				PPStructPolicy: string(p.policy),
				LLM: report.LLMPolicy{
					Backend:     p.extractor.Name(),
					NCtx:        cfg.LLM.NCtx,
					Seed:        cfg.LLM.Seed,
					Temperature: cfg.LLM.Temperature,
					JSONStrict:  true,
				},
			},
			TimingsMs: map[string]int64{},
		},
	}

	req.Emit(EventMarkdownStart, nil)
	start := time.Now()
	conv, err := parser.Convert(ctx, req.Data, req.Filename, parser.Options{
		TextLayerMinChars: cfg.OCR.TextLayerMinChars,
		FallbackPdftotext: true,
	})
	if err != nil {
		return nil, err
	}
	markdownMs := time.Since(start).Milliseconds()
	doc.manifest.TimingsMs["markdown"] = markdownMs
	p.metrics.ObserveStep("markdown", req.Template.Name, markdownMs)
	doc.manifest.Source = string(conv.Source)
	doc.markdown = conv.Markdown
	doc.tokens = document.NormalizeWords(conv.Words)

	var layout tables.Decision
	if conv.Source == parser.SourceRaster {
		layout = tables.Decision{Analyze: true, Reason: "raster"}
	} else {
		layout = tables.Decide(p.policy, doc.markdown, doc.tokens.Tokens, tables.SniffConfig{
			MinRows:    cfg.OCR.SniffMinRows,
			MinCols:    cfg.OCR.SniffMinCols,
			XTolerance: cfg.OCR.SniffColTol,
		})
	}
	doc.manifest.Layout = &layout

	var ppMs int64
	if layout.Analyze {
		req.Emit(EventPPStart, map[string]any{"reason": layout.Reason})
		start := time.Now()
		blocks, err := p.analyzer.Analyze(ctx, req.Data, req.Filename)
		ppMs = time.Since(start).Milliseconds()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("layout analysis failed", zap.Error(err))
		}
		doc.blocks = blocks
		p.metrics.ObserveStep("pp", req.Template.Name, ppMs)
	}
	doc.manifest.TimingsMs["pp"] = ppMs

	if conv.Source == parser.SourceRaster && len(doc.blocks) > 0 {
		doc.markdown = ocr.BuildMarkdown(doc.blocks)
		doc.tokens = ocr.Tokens(doc.blocks)
		doc.fallback = ocr.FirstTextBlock(doc.blocks)
	}
	doc.manifest.TokenSpace = doc.tokens.Space

	doc.chunks = chunker.Split(doc.markdown, chunker.Config{MaxChars: cfg.RAG.ChunkMaxChars})
	doc.estimate = chunker.ApproximateTokens(doc.markdown)
	doc.decision = mode.Select(mode.Input{
		TokenEstimate:  doc.estimate,
		ChunkCount:     len(doc.chunks),
		ContextWindow:  cfg.LLM.NCtx,
		ReservedMargin: cfg.RAG.ReservedMargin(),
		MinSegments:    cfg.RAG.MinSegments,
	})
	doc.manifest.Mode = doc.decision.Mode
	doc.manifest.CEff = doc.decision.CEff
	doc.manifest.TokenEstimate = doc.estimate
	doc.manifest.ChunkCount = len(doc.chunks)

	log.Debug("document prepared",
		zap.String("source", string(conv.Source)),
		zap.String("layout_reason", layout.Reason),
		zap.Int("chunks", len(doc.chunks)),
		zap.Int("token_estimate", doc.estimate),
		zap.Int("c_eff", doc.decision.CEff),
	)
	return doc, nil
}

// fieldResult is one grounded field and its forensic record.
type fieldResult struct {
	extraction document.FieldExtraction
	detail     report.FieldDetail
}

func (p *Processor) singlePass(ctx context.Context, req Request, doc *prepared) ([]fieldResult, error) {
	fields := req.Template.Fields
	start := time.Now()
	resp, callErr := p.extract(ctx, extract.Request{
		Fields:   fields,
		Guidance: req.Template.Guidance,
		Context:  doc.markdown,
	})
	llmMs := time.Since(start).Milliseconds()
	if callErr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	p.metrics.ObserveStep("llm", req.Template.Name, llmMs)

	results := make([]fieldResult, len(fields))
	err := p.runCPU(ctx, func() {
		for i, key := range fields {
			var fv document.FieldValue
			if resp != nil {
				fv = resp.Values[key]
			}
			ext, al := ground.Ground(key, fv.Value, fv.Confidence, doc.tokens, doc.fallback)
			raw, _ := json.MarshalIndent(fv, "", "  ")
			results[i] = fieldResult{
				extraction: ext,
				detail: newDetail(mode.SinglePass, llmMs, ext, al, report.FieldDetail{
					Retrieval: []report.RetrievalEntry{},
					Prompt:    extract.SanitizeGuidance(req.Template.Guidance),
					Context:   truncateContext(doc.markdown),
					LLMRaw:    string(raw),
				}, callErr),
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Processor) fieldWise(ctx context.Context, req Request, doc *prepared, log *zap.Logger) ([]fieldResult, error) {
	var ix *retrieve.Index
	start := time.Now()
	err := p.runCPU(ctx, func() {
		ix = retrieve.Build(ctx, doc.chunks, req.Template.Anchors(), retrieve.Config{
			Weights: retrieve.Weights{
				Lexical: p.cfg.RAG.WeightBM25,
				Vector:  p.cfg.RAG.WeightVec,
				Anchor:  p.cfg.RAG.WeightAnchor,
			},
			VectorIndex: p.cfg.RAG.VectorIndex,
		}, p.chain, log)
	})
	if err != nil {
		return nil, err
	}
	indexMs := time.Since(start).Milliseconds()
	doc.manifest.TimingsMs["index"] = indexMs
	doc.manifest.RetrievalBackend = ix.Backend()
	doc.manifest.LexicalBackend = ix.LexicalBackend()
	p.metrics.ObserveStep("index", req.Template.Name, indexMs)
	p.metrics.IndexBuilt(ix.Backend())

	fields := req.Template.Fields
	results := make([]fieldResult, len(fields))
	limit := p.cfg.Pipeline.MaxConcurrentFields
	if limit <= 0 {
		limit = 1
	}
	var llmTotal int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, key := range fields {
		i, key := i, key
		g.Go(func() error {
			hits := ix.Search(gctx, key, p.cfg.RAG.TopK)
			retrieval := make([]report.RetrievalEntry, 0, len(hits))
			for _, h := range hits {
				c := ix.Chunk(h.ChunkID)
				retrieval = append(retrieval, report.RetrievalEntry{
					ChunkID: h.ChunkID,
					Score:   h.Score,
					Kind:    c.Kind,
					Start:   c.Start,
					Len:     c.Len(),
				})
			}
			ctxText := ix.Context(hits)

			start := time.Now()
			resp, callErr := p.extract(gctx, extract.Request{
				Fields:   []string{key},
				Guidance: req.Template.Guidance,
				Context:  ctxText,
			})
			llmMs := time.Since(start).Milliseconds()
			if callErr != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			mu.Lock()
			llmTotal += llmMs
			mu.Unlock()

			var fv document.FieldValue
			raw := ""
			if resp != nil {
				fv = resp.Values[key]
				raw = resp.Raw
			}
			return p.runCPU(gctx, func() {
				ext, al := ground.Ground(key, fv.Value, fv.Confidence, doc.tokens, doc.fallback)
				results[i] = fieldResult{
					extraction: ext,
					detail: newDetail(mode.FieldWise, llmMs, ext, al, report.FieldDetail{
						Retrieval: retrieval,
						Prompt:    extract.SanitizeGuidance(req.Template.Guidance),
						Context:   ctxText,
						LLMRaw:    raw,
					}, callErr),
				}
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.metrics.ObserveStep("llm", req.Template.Name, llmTotal)
	return results, nil
}

// extract calls the extractor, retrying retryable failures with backoff.
func (p *Processor) extract(ctx context.Context, req extract.Request) (*extract.Response, error) {
	backoff := retry.WithMaxRetries(MaxAttempts-1, p.backoff())
	attempt := 0
	var resp *extract.Response
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var callErr error
		resp, callErr = p.extractor.Extract(ctx, req)
		if callErr == nil {
			return nil
		}
		if IsRetryable(callErr) {
			p.log.Warn("retryable extraction error",
				zap.Strings("fields", req.Fields),
				zap.Int("attempt", attempt),
				zap.Error(callErr),
			)
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func newDetail(m mode.Mode, llmMs int64, ext document.FieldExtraction, al ground.Alignment, d report.FieldDetail, callErr error) report.FieldDetail {
	d.Mode = m
	d.LLMMs = llmMs
	d.Confidence = ext.Confidence
	d.Coverage = ext.Coverage
	d.TokenIndices = al.Indices
	if d.TokenIndices == nil {
		d.TokenIndices = []int{}
	}
	d.BBoxes = ext.BBoxes
	d.Pages = ext.Pages
	d.Space = ext.Space
	d.WeakProvenance = ext.WeakProvenance
	if callErr != nil {
		d.Error = callErr.Error()
	}
	return d
}

func truncateContext(md string) string {
	if len(md) <= singlePassContextLimit {
		return md
	}
	cut := singlePassContextLimit
	for cut > 0 && !utf8.RuneStart(md[cut]) {
		cut--
	}
	return md[:cut] + "... [truncated]"
}

