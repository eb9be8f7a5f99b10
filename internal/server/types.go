package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/catalog"
)

// Decoder is the decode gateway as seen by the handlers.
type Decoder interface {
	Decode(ctx context.Context, img barcode.Image) ([]barcode.Code, error)
	Configured() bool
}

// Resolver is the catalog lookup as seen by the handlers.
type Resolver interface {
	Resolve(ctx context.Context, code string) (catalog.Result, error)
}

// Server holds the HTTP server state and dependencies. Decoder and resolver
// are independent; no handler chains one into the other.
type Server struct {
	decoder          Decoder
	resolver         Resolver
	corsOrigin       string
	maxUploadMB      int64
	timeoutSec       int
	websocketEnabled bool
	rateLimiter      *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host             string
	Port             int
	CORSOrigin       string
	MaxUploadMB      int64
	TimeoutSec       int
	WebSocketEnabled bool
	RateLimit        RateLimitConfig
}

// RateLimitConfig holds per-client limits. Zero disables an individual limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// DecodeResponse is the success body of the decode endpoint.
type DecodeResponse struct {
	OK      bool           `json:"ok"`
	Results []barcode.Code `json:"results"`
}

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SearchResponse is the success body of the search endpoint.
type SearchResponse struct {
	OK    bool         `json:"ok"`
	Found bool         `json:"found"`
	Code  string       `json:"code"`
	Data  *ProductData `json:"data,omitempty"`
}

// ProductData is the public view of a catalog product.
type ProductData struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Barcode *string `json:"barcode"`
	SKU     *string `json:"sku"`
	Price   float64 `json:"price"`
}

func newProductData(p *catalog.Product) *ProductData {
	return &ProductData{
		ID:      p.ID,
		Name:    p.Name,
		Barcode: p.Barcode,
		SKU:     p.SKU,
		Price:   p.Price,
	}
}

// NewServer creates a server around an already initialized decoder and resolver.
func NewServer(config Config, decoder Decoder, resolver Resolver) *Server {
	s := &Server{
		decoder:          decoder,
		resolver:         resolver,
		corsOrigin:       config.CORSOrigin,
		maxUploadMB:      config.MaxUploadMB,
		timeoutSec:       config.TimeoutSec,
		websocketEnabled: config.WebSocketEnabled,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 10
	}

	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}

	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.requestIDMiddleware(s.corsMiddleware(s.healthHandler)))
	mux.HandleFunc("/api/decode", s.requestIDMiddleware(s.corsMiddleware(s.rateLimitMiddleware(s.decodeHandler))))
	mux.HandleFunc("/api/search", s.requestIDMiddleware(s.corsMiddleware(s.rateLimitMiddleware(s.searchHandler))))
	mux.Handle("/metrics", promhttp.Handler())

	if s.websocketEnabled {
		mux.HandleFunc("/ws/decode", s.requestIDMiddleware(s.corsMiddleware(s.decodeWebSocketHandler)))
	}
}

// Handler returns a ServeMux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
