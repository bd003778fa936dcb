package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dataharvest/pkg/config"
	errs "dataharvest/pkg/errors"
	"dataharvest/pkg/logger"
	"dataharvest/pkg/ratelimit"
	"dataharvest/pkg/retry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	browser "github.com/EDDYCJY/fake-useragent"
	"github.com/go-resty/resty/v2"
)

// Result holds the payload of a completed fetch
type Result struct {
	Body       []byte
	Hash       string // hex-encoded SHA-256 of the payload
	StatusCode int
}

// Fetcher performs HTTP retrievals with retry, backoff and pacing
type Fetcher struct {
	client   *resty.Client
	retryCfg config.RetryConfig
	pacer    ratelimit.Limiter
	logger   logger.Logger
}

// New creates a Fetcher from configuration
func New(cfg *config.Config) *Fetcher {
	client := resty.New()
	client.SetTimeout(cfg.HTTP.Timeout)
	client.SetHeader("User-Agent", cfg.HTTP.UserAgent)
	client.SetHeader("Accept-Language", cfg.HTTP.AcceptLanguage)

	return &Fetcher{
		client:   client,
		retryCfg: cfg.Retry,
		pacer:    newPacer(cfg),
		logger:   logger.GetLogger(),
	}
}

// newPacer builds the request pacer: a jitter delay before every
// request, plus a per-minute budget when one is configured
func newPacer(cfg *config.Config) ratelimit.Limiter {
	pacer := ratelimit.Chain{
		ratelimit.NewJitter(cfg.HTTP.JitterMin, cfg.HTTP.JitterMax),
	}
	if cfg.HTTP.RequestsPerMinute > 0 {
		pacer = append(pacer, ratelimit.NewTokenBucket(cfg.HTTP.RequestsPerMinute, time.Minute))
	}
	return pacer
}

// NewProtected creates a Fetcher for sources behind interactive-challenge
// defenses. The transport is wrapped with a challenge-solving round
// tripper and the User-Agent is rotated per client.
func NewProtected(cfg *config.Config) *Fetcher {
	client := resty.New()
	client.SetTimeout(cfg.Rendered.ChallengeTimeout)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("User-Agent", browser.Chrome())
	client.SetHeader("Accept-Language", cfg.HTTP.AcceptLanguage)

	return &Fetcher{
		client:   client,
		retryCfg: cfg.Retry,
		pacer:    newPacer(cfg),
		logger:   logger.GetLogger(),
	}
}

// Client exposes the underlying resty client
func (f *Fetcher) Client() *resty.Client {
	return f.client
}

// retryConfig builds a retry configuration for one fetch
func (f *Fetcher) retryConfig(ctx context.Context) *retry.Config {
	return &retry.Config{
		MaxAttempts: f.retryCfg.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    f.retryCfg.BaseDelay,
			MaxDelay:     f.retryCfg.MaxDelay,
			Multiplier:   f.retryCfg.Multiplier,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: ctx,
		Logger:  f.logger,
	}
}

// Fetch retrieves a URL and returns the payload with its content hash.
// Transient failures (timeouts, connection errors, 429, 5xx) are retried
// with exponential backoff up to the configured attempt budget; permanent
// failures (404, 403 and other 4xx) fail fast.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	return retry.DoWithResult(func() (*Result, error) {
		return f.attempt(ctx, func() (*resty.Response, error) {
			return f.client.R().SetContext(ctx).Get(url)
		}, url)
	}, f.retryConfig(ctx))
}

// Post sends a JSON body and returns the response payload with its hash.
// Used by API-backed sources whose endpoints take query documents.
func (f *Fetcher) Post(ctx context.Context, url string, body interface{}) (*Result, error) {
	return retry.DoWithResult(func() (*Result, error) {
		return f.attempt(ctx, func() (*resty.Response, error) {
			return f.client.R().
				SetContext(ctx).
				SetHeader("Content-Type", "application/json").
				SetBody(body).
				Post(url)
		}, url)
	}, f.retryConfig(ctx))
}

// attempt performs a single paced request and classifies the outcome
func (f *Fetcher) attempt(ctx context.Context, do func() (*resty.Response, error), url string) (*Result, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := do()
	if err != nil {
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "request to %s failed: %v", url, err)
	}

	code := resp.StatusCode()
	if code < 200 || code >= 300 {
		return nil, errs.New(errs.TypeForStatusCode(code), code, "%s returned status %d", url, code)
	}

	body := resp.Body()
	sum := sha256.Sum256(body)

	f.logger.DebugWithFields("fetch completed", map[string]interface{}{
		"url":    url,
		"status": code,
		"bytes":  len(body),
	})

	return &Result{
		Body:       body,
		Hash:       hex.EncodeToString(sum[:]),
		StatusCode: code,
	}, nil
}

// FetchToFile retrieves a URL and writes the payload to the destination
// path. The content hash is computed over the full payload before any
// write; the file is written to a temporary name and renamed into place
// so an interrupted run never leaves a partial file.
func (f *Fetcher) FetchToFile(ctx context.Context, url, destPath string) (*Result, error) {
	result, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := writeFile(result.Body, destPath); err != nil {
		return nil, err
	}
	return result, nil
}

// PostToFile sends a JSON query document and writes the response
// payload to the destination path, with the same hashing and atomic
// write guarantees as FetchToFile.
func (f *Fetcher) PostToFile(ctx context.Context, url string, body interface{}, destPath string) (*Result, error) {
	result, err := f.Post(ctx, url, body)
	if err != nil {
		return nil, err
	}
	if err := writeFile(result.Body, destPath); err != nil {
		return nil, err
	}
	return result, nil
}

// writeFile writes a payload to a temporary name and renames it into
// place
func writeFile(body []byte, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	tempPath := destPath + ".tmp"
	if err := os.WriteFile(tempPath, body, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename into place: %w", err)
	}

	return nil
}
