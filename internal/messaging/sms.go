package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"realestate-platform/internal/config"

	"golang.org/x/time/rate"
)

// TextSender delivers an SMS
type TextSender interface {
	SendText(ctx context.Context, phone, text string) error
}

// SMSGateway posts messages to an HTTP SMS gateway with a bearer token
type SMSGateway struct {
	client  *http.Client
	url     string
	token   string
	sender  string
	limiter *rate.Limiter
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

func NewSMSGateway(cfg config.SMSConfig) *SMSGateway {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &SMSGateway{
		client:  &http.Client{Timeout: cfg.GetTimeout()},
		url:     cfg.GatewayURL,
		token:   cfg.Token,
		sender:  cfg.Sender,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// SendText waits for the gateway throttle and posts the message
func (g *SMSGateway) SendText(ctx context.Context, phone, text string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms throttle: %w", err)
	}

	payload, err := json.Marshal(smsRequest{To: phone, From: g.sender, Message: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
