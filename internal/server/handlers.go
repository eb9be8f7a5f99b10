package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/catalog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	imageFormField = "image"

	msgMissingAPIKey = "Missing CLOUDMERSIVE_API_KEY"
	msgNoImage       = "No image provided"
	msgTooLarge      = "File too large"
	msgMissingCode   = "Missing code"
	msgInternal      = "internal error"
)

// healthHandler reports liveness as plain text.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

// decodeHandler forwards an uploaded image to the recognition provider.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Credentials are checked before the upload is read.
	if s.decoder == nil || !s.decoder.Configured() {
		decodeRequestsTotal.WithLabelValues("http", "config_error").Inc()
		s.writeErrorResponse(w, msgMissingAPIKey, http.StatusInternalServerError)
		return
	}

	img, status, msg := s.readUploadedImage(w, r)
	if status != http.StatusOK {
		decodeRequestsTotal.WithLabelValues("http", "client_error").Inc()
		s.writeErrorResponse(w, msg, status)
		return
	}

	codes, err := s.decode(r.Context(), img, "http")
	if err != nil {
		status, resp := decodeErrorResponse(err)
		if status == http.StatusInternalServerError && resp.Error == msgInternal {
			slog.Error("Decode failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		} else {
			slog.Warn("Decode rejected", "error", err, "cause", upstreamCause(err), "status", status, "request_id", RequestIDFromContext(r.Context()))
		}
		s.writeJSON(w, status, resp)
		return
	}

	if codes == nil {
		codes = []barcode.Code{}
	}
	s.writeJSON(w, http.StatusOK, DecodeResponse{OK: true, Results: codes})
}

// readUploadedImage extracts the image form field. A non-OK status comes with
// the message to report.
func (s *Server) readUploadedImage(w http.ResponseWriter, r *http.Request) (barcode.Image, int, string) {
	maxBytes := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return barcode.Image{}, http.StatusRequestEntityTooLarge, msgTooLarge
		}
		return barcode.Image{}, http.StatusBadRequest, msgNoImage
	}

	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		return barcode.Image{}, http.StatusBadRequest, msgNoImage
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxBytes {
		return barcode.Image{}, http.StatusRequestEntityTooLarge, msgTooLarge
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return barcode.Image{}, http.StatusBadRequest, msgNoImage
	}
	uploadSizeBytes.Observe(float64(len(data)))

	return barcode.Image{
		Data:        data,
		Filename:    header.Filename,
		ContentType: partContentType(header),
	}, http.StatusOK, ""
}

func partContentType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if ct == "application/octet-stream" {
		return ""
	}
	return ct
}

// decode runs one provider call and records metrics for it.
func (s *Server) decode(ctx context.Context, img barcode.Image, source string) ([]barcode.Code, error) {
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	codes, err := s.decoder.Decode(ctx, img)
	providerDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	if err != nil {
		decodeRequestsTotal.WithLabelValues(source, decodeErrorLabel(err)).Inc()
		return nil, err
	}

	decodeRequestsTotal.WithLabelValues(source, "success").Inc()
	codesPerImage.WithLabelValues(source).Observe(float64(len(codes)))
	return codes, nil
}

// decodeErrorResponse maps a gateway error to its status and response body.
func decodeErrorResponse(err error) (int, ErrorResponse) {
	var upstream *barcode.UpstreamError
	switch {
	case errors.Is(err, barcode.ErrMissingAPIKey):
		return http.StatusInternalServerError, ErrorResponse{Error: msgMissingAPIKey}
	case errors.Is(err, barcode.ErrNoImage):
		return http.StatusBadRequest, ErrorResponse{Error: msgNoImage}
	case errors.As(err, &upstream):
		return http.StatusBadGateway, ErrorResponse{Error: upstream.Error(), Details: upstream.Body}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: msgInternal}
	}
}

// upstreamCause returns the transport or parse error behind an upstream failure.
func upstreamCause(err error) error {
	var upstream *barcode.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Err
	}
	return nil
}

func decodeErrorLabel(err error) string {
	var upstream *barcode.UpstreamError
	switch {
	case errors.Is(err, barcode.ErrMissingAPIKey):
		return "config_error"
	case errors.Is(err, barcode.ErrNoImage):
		return "client_error"
	case errors.As(err, &upstream):
		if upstream.Timeout {
			return "timeout"
		}
		return "upstream_error"
	default:
		return "error"
	}
}

// searchHandler resolves a code against the catalog.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		s.writeErrorResponse(w, msgMissingCode, http.StatusBadRequest)
		return
	}

	if s.resolver == nil {
		slog.Error("Search requested without catalog", "request_id", RequestIDFromContext(r.Context()))
		s.writeErrorResponse(w, msgInternal, http.StatusInternalServerError)
		return
	}

	result, err := s.resolver.Resolve(r.Context(), code)
	if err != nil {
		if errors.Is(err, catalog.ErrEmptyCode) {
			s.writeErrorResponse(w, msgMissingCode, http.StatusBadRequest)
			return
		}
		catalogLookupsTotal.WithLabelValues("error").Inc()
		slog.Error("Catalog lookup failed", "error", err, "code", code, "request_id", RequestIDFromContext(r.Context()))
		s.writeErrorResponse(w, msgInternal, http.StatusInternalServerError)
		return
	}

	resp := SearchResponse{OK: true, Found: result.Found, Code: code}
	if result.Found {
		catalogLookupsTotal.WithLabelValues(result.MatchedOn).Inc()
		resp.Data = newProductData(result.Product)
	} else {
		catalogLookupsTotal.WithLabelValues("not_found").Inc()
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes v as a JSON response body.
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Log error, but can't send another response
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{OK: false, Error: message})
}
