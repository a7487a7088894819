package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/licito/backend/config"
	"github.com/licito/backend/pkg/logger"
)

// ErrNotConfigured is returned by optional integrations that have no credentials
var ErrNotConfigured = errors.New("integration not configured")

// Email is one outgoing message
type Email struct {
	To      string
	Subject string
	HTML    string
}

// EmailSender delivers a single email
type EmailSender interface {
	Send(ctx context.Context, e Email) error
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type emailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// EmailClient talks to a transactional email HTTP API (POST /emails with a bearer key)
type EmailClient struct {
	httpClient *resty.Client
	from       string
	enabled    bool
}

func NewEmailClient(cfg *config.EmailConfig) *EmailClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &EmailClient{
		httpClient: client,
		from:       cfg.From,
		enabled:    cfg.APIURL != "" && cfg.APIKey != "",
	}
}

func (c *EmailClient) Send(ctx context.Context, e Email) error {
	if !c.enabled {
		return ErrNotConfigured
	}

	var result emailResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(emailRequest{From: c.from, To: []string{e.To}, Subject: e.Subject, HTML: e.HTML}).
		SetResult(&result).
		SetError(&result).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("failed to call email provider: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("email provider returned %d: %s", resp.StatusCode(), result.Message)
	}

	logger.Debug(ctx, "email sent", "to", e.To, "provider_id", result.ID)
	return nil
}
