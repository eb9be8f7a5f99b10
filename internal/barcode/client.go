package barcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 4 << 20

// Client calls the provider's image-scan endpoint. It holds no per-call
// state and is safe for concurrent use.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// Compile-time interface check.
var _ Decoder = (*Client)(nil)

// NewClient creates a provider client. Zero BaseURL and Timeout fall back to
// the defaults; an empty APIKey is accepted here and reported by Decode.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		endpoint:   baseURL + ScanPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a provider credential is set.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Endpoint returns the full scan URL the client posts to.
func (c *Client) Endpoint() string { return c.endpoint }

// Timeout returns the per-call deadline applied by the client.
func (c *Client) Timeout() time.Duration { return c.httpClient.Timeout }

// Decode sends img to the provider and returns the codes it found, in
// provider order. "No codes" is an empty slice and a nil error.
func (c *Client) Decode(ctx context.Context, img Image) ([]Code, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}
	if img.Empty() {
		return nil, ErrNoImage
	}

	body, contentType, err := encodeImageForm(img)
	if err != nil {
		return nil, fmt.Errorf("barcode: build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("barcode: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(APIKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Timeout: isTimeout(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Timeout: isTimeout(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       truncateBody(raw, MaxDetailBytes),
		}
	}

	codes, err := parseScanResponse(raw)
	if err != nil {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       truncateBody(raw, MaxDetailBytes),
			Err:        err,
		}
	}
	return codes, nil
}

// encodeImageForm builds the single-part multipart body the provider expects.
func encodeImageForm(img Image) (io.Reader, string, error) {
	filename := img.Filename
	if filename == "" {
		filename = DefaultFilename
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, ImageField, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
