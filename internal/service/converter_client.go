package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrConverterUnavailable is returned when no conversion service is configured.
var ErrConverterUnavailable = errors.New("word conversion is not configured")

// WordConverter turns PDF bytes into a DOCX document.
type WordConverter interface {
	ConvertToDocx(ctx context.Context, pdf []byte) ([]byte, error)
}

type converterClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewConverterClient talks to a conversion service exposing
// POST {baseURL}/convert/docx. An empty baseURL yields a converter that
// always fails with ErrConverterUnavailable.
func NewConverterClient(baseURL string, timeout time.Duration, logger zerolog.Logger) WordConverter {
	return &converterClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("service", "ConverterClient").Logger(),
	}
}

func (c *converterClient) ConvertToDocx(ctx context.Context, pdf []byte) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrConverterUnavailable
	}
	url := fmt.Sprintf("%s/convert/docx", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(pdf))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", docxContentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request to converter: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			c.logger.Warn().Err(readErr).Int("status_code", resp.StatusCode).Msg("Failed to read error body from converter")
			return nil, fmt.Errorf("converter returned status %d", resp.StatusCode)
		}
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("error_body", string(bodyBytes)).
			Msg("Converter returned error")
		return nil, fmt.Errorf("converter returned status %d", resp.StatusCode)
	}

	docx, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading converter response: %w", err)
	}
	return docx, nil
}

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
