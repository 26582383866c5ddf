package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/config"
	"github.com/dgallion1/docground/internal/embed"
	"github.com/dgallion1/docground/internal/extract"
	"github.com/dgallion1/docground/internal/metrics"
	"github.com/dgallion1/docground/internal/ocr"
	"github.com/dgallion1/docground/internal/pipeline"
	"github.com/dgallion1/docground/internal/report"
)

// env holds the components shared by every command.
type env struct {
	Extractor extract.Extractor
	Stats     *extract.LLMStats
	Reports   *report.Store
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Processor *pipeline.Processor
}

func initEnv(cfg *config.Config, log *zap.Logger) (*env, error) {
	stats := extract.NewLLMStats(extract.DefaultStatsWindow)
	ext, err := extract.New(cfg.LLM, stats, log.Named("extract"))
	if err != nil {
		return nil, eris.Wrap(err, "init extractor")
	}
	chain, err := embed.FromConfig(cfg.Embedding, log.Named("embed"))
	if err != nil {
		return nil, eris.Wrap(err, "init embeddings")
	}
	reports := report.NewStore(cfg.Reports.Dir, cfg.Reports.TTL, log.Named("report"))
	reg, m := metrics.NewRegistry()

	proc, err := pipeline.NewProcessor(pipeline.Deps{
		Config:    cfg,
		Extractor: ext,
		Analyzer:  ocr.New(cfg.OCR, log.Named("ocr")),
		Chain:     chain,
		Reports:   reports,
		Metrics:   m,
		Log:       log.Named("pipeline"),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init processor")
	}

	log.Info("components ready",
		zap.String("llm_backend", ext.Name()),
		zap.Strings("embedding_chain", chain.Names()),
		zap.String("ocr_policy", cfg.OCR.Policy),
		zap.String("reports_dir", reports.Dir()),
	)
	return &env{
		Extractor: ext,
		Stats:     stats,
		Reports:   reports,
		Registry:  reg,
		Metrics:   m,
		Processor: proc,
	}, nil
}

func (e *env) Close() {
	e.Processor.Close()
}
