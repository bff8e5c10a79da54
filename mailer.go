package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const defaultEmailTimeout = 10 * time.Second

// HTTPMailer delivers email through a JSON HTTP API authenticated with an
// Api-Token header. Any 2xx response is a success.
type HTTPMailer struct {
	URL        string
	APIToken   string
	Sender     string
	HTTPClient *http.Client
}

var _ Mailer = (*HTTPMailer)(nil)

func NewHTTPMailer(url, apiToken, sender string, timeout time.Duration) *HTTPMailer {
	if timeout <= 0 {
		timeout = defaultEmailTimeout
	}
	return &HTTPMailer{
		URL:        url,
		APIToken:   apiToken,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type emailAddress struct {
	Email string `json:"email"`
}

type emailRequest struct {
	To      []emailAddress `json:"to"`
	From    emailAddress   `json:"from"`
	Subject string         `json:"subject"`
	HTML    string         `json:"html"`
}

func (m *HTTPMailer) Send(ctx context.Context, to, subject, html string) error {
	if m.URL == "" {
		return goerrors.New("email API url not configured", goerrors.CategoryInternal)
	}

	raw, err := json.Marshal(emailRequest{
		To:      []emailAddress{{Email: to}},
		From:    emailAddress{Email: m.Sender},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Token", m.APIToken)

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// LogMailer only logs outgoing email, for local development.
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) Send(ctx context.Context, to, subject, html string) error {
	logger := m.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	logger.WithContext(ctx).Info("email not delivered, log mailer in use",
		"to", to,
		"subject", subject,
		"html", html,
	)
	return nil
}
