package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	scanPath   = "/barcode/scan/image"
	imageField = "imageFile"
	keyHeader  = "Apikey"
)

// FoundCode is one entry of a canned provider answer. Nil fields are
// omitted from the JSON body.
type FoundCode struct {
	Type *string
	Text *string
}

// Found builds a FoundCode with both fields set.
func Found(typ, text string) FoundCode {
	return FoundCode{Type: &typ, Text: &text}
}

// ProviderRequest records what the stub received.
type ProviderRequest struct {
	APIKey      string
	Filename    string
	ContentType string
	Image       []byte
}

// ProviderStub is an httptest server speaking the barcode scan contract.
type ProviderStub struct {
	Server *httptest.Server

	mu       sync.Mutex
	status   int
	body     string
	delay    time.Duration
	requests []ProviderRequest
}

// NewProviderStub starts a stub answering 200 with no codes. It is closed
// when the test ends.
func NewProviderStub(t *testing.T) *ProviderStub {
	t.Helper()

	p := &ProviderStub{status: http.StatusOK, body: `{"Successful":true,"FoundBarcodes":[]}`}
	p.Server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.Server.Close)
	return p
}

// URL is the stub's base URL.
func (p *ProviderStub) URL() string { return p.Server.URL }

// RespondWith sets a raw status and body for subsequent calls.
func (p *ProviderStub) RespondWith(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	p.body = body
}

// RespondWithCodes answers 200 with the given codes in order.
func (p *ProviderStub) RespondWithCodes(codes ...FoundCode) {
	items := make([]map[string]string, 0, len(codes))
	for _, c := range codes {
		item := map[string]string{}
		if c.Type != nil {
			item["BarcodeType"] = *c.Type
		}
		if c.Text != nil {
			item["RawText"] = *c.Text
		}
		items = append(items, item)
	}
	body, _ := json.Marshal(map[string]any{"Successful": true, "FoundBarcodes": items})
	p.RespondWith(http.StatusOK, string(body))
}

// Delay makes every answer wait d before being written.
func (p *ProviderStub) Delay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

// Hits returns how many scan requests reached the stub.
func (p *ProviderStub) Hits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// LastRequest returns the most recent scan request.
func (p *ProviderStub) LastRequest() (ProviderRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return ProviderRequest{}, false
	}
	return p.requests[len(p.requests)-1], true
}

func (p *ProviderStub) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != scanPath {
		http.NotFound(w, r)
		return
	}

	rec := ProviderRequest{APIKey: r.Header.Get(keyHeader)}
	if file, header, err := r.FormFile(imageField); err == nil {
		rec.Filename = header.Filename
		rec.ContentType = header.Header.Get("Content-Type")
		rec.Image, _ = io.ReadAll(file)
		_ = file.Close()
	}

	p.mu.Lock()
	p.requests = append(p.requests, rec)
	status, body, delay := p.status, p.body, p.delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
