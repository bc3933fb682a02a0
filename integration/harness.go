package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/magicwardrobe/ai"
	apirest "github.com/kasuganosora/magicwardrobe/api/rest"
	"github.com/kasuganosora/magicwardrobe/audit"
	"github.com/kasuganosora/magicwardrobe/cache"
	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/config"
	"github.com/kasuganosora/magicwardrobe/history"
	"github.com/kasuganosora/magicwardrobe/inventory"
	mw "github.com/kasuganosora/magicwardrobe/middleware"
	"github.com/kasuganosora/magicwardrobe/outfit"
	"github.com/kasuganosora/magicwardrobe/testutil"
	"github.com/kasuganosora/magicwardrobe/wardrobe"
	"github.com/kasuganosora/magicwardrobe/weather"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// ForecastBody is what the fake Open-Meteo endpoint answers.
const ForecastBody = `{"current_weather":{"temperature":41.5,"weathercode":63,"is_day":1}}`

// TestServer wraps a real HTTP server with the wardrobe services wired
// together. Model calls are served by deterministic fakes and weather by a
// local forecast endpoint.
type TestServer struct {
	DB          *gorm.DB
	Cache       cache.Cache
	Outfits     *outfit.Manager
	Audit       *audit.Service
	Stylist     *ScriptedStylist
	WeatherHits *atomic.Int32
	Server      *httptest.Server
	URL         string // http://127.0.0.1:<port>
	Sec         config.SecurityConfig

	weatherSrv *httptest.Server
}

// NewTestServer creates a fully wired wardrobe server for integration
// testing. It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}

	var hits atomic.Int32
	weatherSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, ForecastBody)
	}))

	auditSvc := audit.New(db, audit.Options{FlushInterval: 50 * time.Millisecond}, logger)

	// ---- AI fakes ----
	embedder, err := ai.NewCachedEmbedder(BagOfWords{}, 256)
	require.NoError(t, err)
	stylist := &ScriptedStylist{}

	// ---- Weather ----
	weatherClient := weather.NewClient(weatherSrv.URL, time.Second, c, time.Hour, logger)
	locator := weather.NewSessionLocator(c, sec.JWTTTLH)

	// ---- Services ----
	invSvc := inventory.NewService(db, embedder, logger)
	histSvc := history.NewService(db, logger)
	outfits := outfit.NewManager(wardrobe.NewFactory(wardrobe.Deps{
		Inventory: invSvc,
		History:   histSvc,
		Cache:     c,
		Stylist:   stylist,
		Embedder:  embedder,
		Weather: func(accountID int64) outfit.WeatherSource {
			return weather.NewLookup(weatherClient, weather.Chain{locator.For(accountID)})
		},
		Options: outfit.Options{Intn: func(int) int { return 0 }},
		LockTTL: time.Minute,
		Logger:  logger,
	}), logger)

	// ---- Gin HTTP Server ----
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst, mw.ByIP))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": outfits.Count()})
	})

	authH := apirest.NewAuthHandler(db, c, sec, outfits, logger)
	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(sec, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(sec, c), authH.Refresh)

		private := api.Group("", mw.Auth(sec, c))
		apirest.Routes{
			Garments: apirest.NewGarmentHandler(invSvc, PhotoVision{}, auditSvc, 1<<20, logger),
			Outfit:   apirest.NewOutfitHandler(outfits, invSvc, locator, auditSvc, logger),
			History:  apirest.NewHistoryHandler(histSvc, logger),
		}.Register(private)
	}

	server := httptest.NewServer(r)
	return &TestServer{
		DB:          db,
		Cache:       c,
		Outfits:     outfits,
		Audit:       auditSvc,
		Stylist:     stylist,
		WeatherHits: &hits,
		Server:      server,
		URL:         server.URL,
		Sec:         sec,
		weatherSrv:  weatherSrv,
	}
}

// Close shuts down the servers and flushes the audit log.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.weatherSrv.Close()
	ts.Audit.Stop(context.Background())
}

// --- AI fakes ---

// BagOfWords embeds text as hashed word counts, so texts sharing words
// score higher under cosine similarity.
type BagOfWords struct{}

const bagDims = 32

func (BagOfWords) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, bagDims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%bagDims]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		return nil, fmt.Errorf("bag of words: empty text")
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / math.Sqrt(norm))
	}
	return v, nil
}

// PhotoMarker separates the image bytes from the analysis PhotoVision
// reads back: "Category|SubCategory|Color".
const PhotoMarker = "\x00meta:"

// PhotoVision "sees" the analysis encoded after PhotoMarker.
type PhotoVision struct{}

func (PhotoVision) AnalyzeImage(_ context.Context, data []byte, _ string) (catalog.Analysis, error) {
	_, meta, ok := strings.Cut(string(data), PhotoMarker)
	if !ok {
		return catalog.Analysis{}, ai.ErrEmptyResponse
	}
	parts := strings.Split(meta, "|")
	if len(parts) != 3 {
		return catalog.Analysis{}, ai.ErrEmptyResponse
	}
	return catalog.Analysis{
		Category:     catalog.Category(parts[0]),
		SubCategory:  parts[1],
		PrimaryColor: parts[2],
		Description:  parts[2] + " " + parts[1],
	}, nil
}

// ScriptedStylist returns fixed suggestions and records what it was asked.
type ScriptedStylist struct {
	mu          sync.Mutex
	Suggestions map[catalog.Category]ai.Suggestion
	weathers    []string
	contexts    []ai.StyleContext
}

func (s *ScriptedStylist) SuggestOutfit(_ context.Context, sc ai.StyleContext, weather string) (map[catalog.Category]ai.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weathers = append(s.weathers, weather)
	s.contexts = append(s.contexts, sc)
	return s.Suggestions, nil
}

// Weathers returns the weather phrases passed so far.
func (s *ScriptedStylist) Weathers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.weathers...)
}

// LastContext returns the most recent style context.
func (s *ScriptedStylist) LastContext() ai.StyleContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contexts[len(s.contexts)-1]
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body any, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, token)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, token)
}

// Put sends a PUT request with JSON body and optional Bearer token.
func (ts *TestServer) Put(t *testing.T, path string, body any, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPut, path, body, token)
}

// Delete sends a DELETE request with optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodDelete, path, nil, token)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Login logs in (auto-registers on first call) and returns the token and account ID.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, accountID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]any
	ReadJSON(t, resp, &result)
	token = result["token"].(string)
	accountID = int64(result["account_id"].(float64))
	return
}

// --- Wardrobe helpers ---

// Upload sends a photo through analyze-and-save and returns the new
// garment's id. meta is "Category|SubCategory|Color".
func (ts *TestServer) Upload(t *testing.T, token, meta string) int64 {
	t.Helper()
	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	fw, err := mp.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	_, err = fw.Write(append(append([]byte{}, pngHeader...), PhotoMarker+meta...))
	require.NoError(t, err)
	require.NoError(t, mp.WriteField("save", "true"))
	require.NoError(t, mp.WriteField("image_uri", "file:///"+strings.ReplaceAll(meta, "|", "_")+".png"))
	require.NoError(t, mp.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/garments/analyze", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Garment struct {
			ID int64 `json:"id"`
		} `json:"garment"`
	}
	ReadJSON(t, resp, &result)
	return result.Garment.ID
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

var testCounter uint64

// UniqueID returns a short name unique within the test binary.
func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}
