package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/licito/backend/config"
	"github.com/licito/backend/pkg/logger"
)

// WhatsAppSender delivers a text message to a phone number
type WhatsAppSender interface {
	SendText(ctx context.Context, phone, text string) error
}

type whatsAppRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// WhatsAppClient talks to a WhatsApp gateway HTTP API
// (POST /message/sendText/{instance} with an apikey header)
type WhatsAppClient struct {
	httpClient *resty.Client
	instance   string
	enabled    bool
}

func NewWhatsAppClient(cfg *config.WhatsAppConfig) *WhatsAppClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("apikey", cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &WhatsAppClient{
		httpClient: client,
		instance:   cfg.Instance,
		enabled:    cfg.APIURL != "" && cfg.APIKey != "" && cfg.Instance != "",
	}
}

func (c *WhatsAppClient) SendText(ctx context.Context, phone, text string) error {
	if !c.enabled {
		return ErrNotConfigured
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(whatsAppRequest{Number: phone, Text: text}).
		Post("/message/sendText/" + url.PathEscape(c.instance))
	if err != nil {
		return fmt.Errorf("failed to call whatsapp gateway: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("whatsapp gateway returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	logger.Debug(ctx, "whatsapp message sent", "phone", phone)
	return nil
}

// NormalizePhone keeps only the digits of a phone number
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
