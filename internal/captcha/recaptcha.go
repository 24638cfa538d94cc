// Package captcha screens booking requests for automated traffic.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jwalitptl/queue-api/pkg/circuitbreaker"
)

const DefaultMinScore = 0.4

// Verifier reports whether a client token belongs to a human.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Noop accepts every request; used when captcha is disabled.
type Noop struct{}

func (Noop) Verify(context.Context, string, string) (bool, error) { return true, nil }

type Config struct {
	VerifyURL string
	Secret    string
	MinScore  float64
	Timeout   time.Duration
}

// ReCaptcha calls Google's siteverify endpoint.
type ReCaptcha struct {
	cfg    Config
	client *http.Client
	cb     *circuitbreaker.CircuitBreaker
}

func NewReCaptcha(cfg Config) *ReCaptcha {
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &ReCaptcha{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:             "recaptcha",
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		}),
	}
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

func (r *ReCaptcha) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", r.cfg.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	var res siteVerifyResponse
	err := r.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.VerifyURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&res)
	})
	if err != nil {
		return false, fmt.Errorf("failed to verify captcha: %w", err)
	}

	return res.Success && res.Score >= r.cfg.MinScore, nil
}
