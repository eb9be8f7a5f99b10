package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/catalog"
)

// mockDecoder records images and returns canned codes or an error.
type mockDecoder struct {
	mu         sync.Mutex
	configured bool
	codes      []barcode.Code
	err        error
	images     []barcode.Image
}

func newMockDecoder(codes ...barcode.Code) *mockDecoder {
	return &mockDecoder{configured: true, codes: codes}
}

func (m *mockDecoder) Configured() bool { return m.configured }

func (m *mockDecoder) Decode(ctx context.Context, img barcode.Image) ([]barcode.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.images = append(m.images, img)
	if m.err != nil {
		return nil, m.err
	}
	if img.Empty() {
		return nil, barcode.ErrNoImage
	}
	return m.codes, nil
}

func (m *mockDecoder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}

// mockResolver serves a fixed set of products keyed by barcode and sku.
type mockResolver struct {
	products []catalog.Product
	err      error
	codes    []string
}

func (m *mockResolver) Resolve(ctx context.Context, code string) (catalog.Result, error) {
	m.codes = append(m.codes, code)
	if m.err != nil {
		return catalog.Result{}, m.err
	}
	for i := range m.products {
		if p := &m.products[i]; p.Barcode != nil && *p.Barcode == code {
			return catalog.Result{Found: true, Product: p, MatchedOn: catalog.MatchBarcode}, nil
		}
	}
	for i := range m.products {
		if p := &m.products[i]; p.SKU != nil && *p.SKU == code {
			return catalog.Result{Found: true, Product: p, MatchedOn: catalog.MatchSKU}, nil
		}
	}
	return catalog.Result{}, nil
}

func code(typ, text string) barcode.Code {
	return barcode.Code{Type: &typ, Text: &text}
}

func newTestServer(dec Decoder, res Resolver) *Server {
	return NewServer(Config{CORSOrigin: "*", MaxUploadMB: 1, TimeoutSec: 5, WebSocketEnabled: true}, dec, res)
}

// multipartImage builds a multipart body carrying data under field.
func multipartImage(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if field != "" {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
		if contentType != "" {
			h["Content-Type"] = []string{contentType}
		}
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, writer.WriteField("other", "value"))
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

// newDecodeRequest creates a POST /api/decode request with an image upload.
func newDecodeRequest(t *testing.T, data []byte) *http.Request {
	t.Helper()

	body, ct := multipartImage(t, "image", "frame.png", "image/png", data)
	req := httptest.NewRequest(http.MethodPost, "/api/decode", body)
	req.Header.Set("Content-Type", ct)
	return req
}
