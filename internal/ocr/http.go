package ocr

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/config"
	"github.com/dgallion1/docground/internal/document"
)

// HTTPAnalyzer posts documents to a PP-Structure style layout service at
// {base}/analyze.
type HTTPAnalyzer struct {
	client *resty.Client
	log    *zap.Logger
}

// NewHTTPAnalyzer builds a client for cfg.BaseURL.
func NewHTTPAnalyzer(cfg config.OCRConfig, log *zap.Logger) *HTTPAnalyzer {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(retryCondition)
	return &HTTPAnalyzer{client: client, log: log}
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, data []byte, filename string) ([]document.PageBlocks, error) {
	var pages []document.PageBlocks
	resp, err := a.client.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(data)).
		SetFormData(map[string]string{"payload": `{"pages":[]}`}).
		SetResult(&pages).
		Post("/analyze")
	if err != nil {
		return nil, eris.Wrap(err, "ocr: analyze request")
	}
	if resp.IsError() {
		return nil, eris.Errorf("ocr: analyze returned status %d", resp.StatusCode())
	}
	blocks := 0
	for _, pg := range pages {
		blocks += len(pg.Blocks)
	}
	a.log.Debug("layout analysis done",
		zap.String("filename", filename),
		zap.Int("pages", len(pages)),
		zap.Int("blocks", blocks),
	)
	return pages, nil
}
