package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"labeladmin/src/app"
	"labeladmin/src/auth"
	cfg "labeladmin/src/configuration"
	"labeladmin/src/imaging"
	"labeladmin/src/repository"
	"labeladmin/src/session"
)

const testCookie = "labeladmin_client"

type testEnv struct {
	router   *gin.Engine
	docs     repository.DocumentStore
	sessions *session.MemoryStore
	service  *app.CollectionService
}

type envOption func(*Dependencies)

func withStore(store repository.DocumentStore) envOption {
	return func(d *Dependencies) {
		d.Collections = app.NewCollectionService(store, d.Collections.Schema())
	}
}

func withVerifier(v auth.Verifier) envOption {
	return func(d *Dependencies) { d.Verifier = v }
}

func withExporter(e func(*app.CollectionService) *app.Exporter) envOption {
	return func(d *Dependencies) { d.Exporter = e(d.Collections) }
}

func testConfig() *cfg.Properties {
	return &cfg.Properties{
		Server: cfg.HttpServerProperties{
			Name:         "labeladmin",
			Brand:        "BADINVSTMENT",
			AllowOrigins: []string{"http://localhost:3000"},
		},
		Session: cfg.SessionProperties{CookieName: testCookie},
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	schema, err := app.LoadSchema()
	require.NoError(t, err)
	docs := repository.NewMemoryStore()
	sessions := session.NewMemoryStore()

	deps := Dependencies{
		Config:      testConfig(),
		Logger:      zap.NewNop(),
		Collections: app.NewCollectionService(docs, schema),
		Verifier:    auth.NewStaticVerifier("", ""),
		Sessions:    sessions,
		Normalizer:  imaging.New(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	router, err := NewRouter(deps)
	require.NoError(t, err)
	return &testEnv{router: router, docs: docs, sessions: sessions, service: deps.Collections}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) json(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

// browser returns the client cookie of a new browser.
func browser() *http.Cookie {
	return &http.Cookie{Name: testCookie, Value: uuid.NewString()}
}

// login marks a new browser as authenticated directly in the session store.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	cookie := browser()
	require.NoError(t, session.NewGate(e.sessions, cookie.Value).Login(context.Background()))
	return cookie
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func formRequest(path string, values url.Values, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func getPage(path string, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}
