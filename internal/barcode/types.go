package barcode

import (
	"context"
	"time"
)

const (
	// DefaultBaseURL is the provider's public API root.
	DefaultBaseURL = "https://api.cloudmersive.com"

	// ScanPath is the image-scan endpoint relative to the base URL.
	ScanPath = "/barcode/scan/image"

	// ImageField is the multipart field the provider expects the image under.
	ImageField = "imageFile"

	// APIKeyHeader carries the provider credential.
	APIKeyHeader = "Apikey"

	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 30 * time.Second

	// DefaultFilename and DefaultContentType are used when the upload omits them.
	DefaultFilename    = "frame.jpg"
	DefaultContentType = "image/jpeg"

	// MaxDetailBytes bounds the provider body excerpt kept for diagnostics.
	MaxDetailBytes = 400
)

// Image is an uploaded image payload.
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Empty reports whether the payload carries no bytes.
func (img Image) Empty() bool { return len(img.Data) == 0 }

// Code is one decoded symbol. Fields the provider did not send stay nil
// and serialize as JSON null.
type Code struct {
	Type *string `json:"type"`
	Text *string `json:"text"`
}

// TypeOrEmpty returns the symbology or "" when absent.
func (c Code) TypeOrEmpty() string {
	if c.Type == nil {
		return ""
	}
	return *c.Type
}

// TextOrEmpty returns the decoded text or "" when absent.
func (c Code) TextOrEmpty() string {
	if c.Text == nil {
		return ""
	}
	return *c.Text
}

// Decoder turns an image into decoded codes.
type Decoder interface {
	Decode(ctx context.Context, img Image) ([]Code, error)
}

// Config configures a provider client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns a config pointing at the public provider with the
// standard timeout. The API key is left empty.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}
