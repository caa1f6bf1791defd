package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"vexl-backend/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        CORSConfig
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{
			name:       "wildcard allows any origin",
			cfg:        DefaultCORSConfig(),
			method:     http.MethodGet,
			origin:     "http://localhost:3000",
			wantStatus: http.StatusOK,
			wantOrigin: "*",
		},
		{
			name:       "preflight",
			cfg:        DefaultCORSConfig(),
			method:     http.MethodOptions,
			origin:     "http://localhost:3000",
			wantStatus: http.StatusNoContent,
			wantOrigin: "*",
		},
		{
			name:       "listed origin echoed",
			cfg:        CORSConfig{AllowOrigins: []string{"https://vexl.example"}, AllowCredentials: true},
			method:     http.MethodGet,
			origin:     "https://vexl.example",
			wantStatus: http.StatusOK,
			wantOrigin: "https://vexl.example",
		},
		{
			name:       "unlisted origin forbidden",
			cfg:        CORSConfig{AllowOrigins: []string{"https://vexl.example"}},
			method:     http.MethodGet,
			origin:     "https://evil.example",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.Use(CORS(tt.cfg))
			router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(RateLimit(RateLimitConfig{RequestsPerMinute: 1, Burst: 2}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)

	w := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limited")

	assert.Equal(t, http.StatusOK, do("10.0.0.2").Code, "limits are per client")
}

func TestLimiterEvictsIdleClients(t *testing.T) {
	l := NewLimiter(RateLimitConfig{RequestsPerMinute: 60, Burst: 1, IdleTTL: time.Minute})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	ok, _ := l.Allow("a")
	require.True(t, ok)
	ok, wait := l.Allow("a")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	now = now.Add(30 * time.Second)
	l.Allow("b")
	assert.Equal(t, 2, l.Len())

	now = now.Add(45 * time.Second)
	l.Allow("b")
	assert.Equal(t, 1, l.Len(), "a was idle past the TTL")
}

type fakePrefs struct {
	mu      sync.Mutex
	stored  map[string]*model.Preferences
	updates int
	loadErr error
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{stored: make(map[string]*model.Preferences)}
}

func (f *fakePrefs) Load(_ context.Context, id string) (*model.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.stored[id]; ok {
		c := *p
		return &c, f.loadErr
	}
	return &model.Preferences{VisitorID: id, Language: model.LangEN, Theme: model.ThemeDark}, f.loadErr
}

func (f *fakePrefs) Update(ctx context.Context, id, lang, theme string) (*model.Preferences, error) {
	p, _ := f.Load(ctx, id)
	if lang != "" {
		p.Language = model.Language(lang)
	}
	if theme != "" {
		p.Theme = model.Theme(theme)
	}
	f.mu.Lock()
	f.stored[id] = p
	f.updates++
	f.mu.Unlock()
	return p, nil
}

func TestVisitor(t *testing.T) {
	prefs := newFakePrefs()
	router := setupTestRouter()
	router.Use(Visitor(prefs, VisitorConfig{CookieName: "vid"}))

	var got model.AppContext
	router.GET("/", func(c *gin.Context) {
		got = AppContext(c)
		c.Status(http.StatusOK)
	})

	// first visit issues a cookie
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "vid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, cookies[0].Value, got.VisitorID)
	assert.Equal(t, model.LangEN, got.Lang)
	assert.Equal(t, model.ThemeDark, got.Theme)
	assert.Equal(t, 0, prefs.updates)

	vid := cookies[0].Value
	request := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.AddCookie(&http.Cookie{Name: "vid", Value: vid})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w = request("/?lang=ar&theme=light")
	assert.Empty(t, w.Result().Cookies(), "known visitors keep their cookie")
	assert.Equal(t, vid, got.VisitorID)
	assert.Equal(t, model.LangAR, got.Lang)
	assert.Equal(t, "rtl", got.Dir())
	assert.Equal(t, model.ThemeLight, got.Theme)
	assert.Equal(t, 1, prefs.updates)

	// saved preferences are loaded on the next request
	request("/")
	assert.Equal(t, model.LangAR, got.Lang)
	assert.Equal(t, model.ThemeLight, got.Theme)

	// unchanged or invalid overrides are not saved
	request("/?lang=ar&theme=purple")
	assert.Equal(t, 1, prefs.updates)
}

func TestVisitorReplacesInvalidCookie(t *testing.T) {
	prefs := newFakePrefs()
	router := setupTestRouter()
	router.Use(Visitor(prefs, DefaultVisitorConfig()))
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, AppContext(c).VisitorID) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "vexl_vid", Value: "../../etc/passwd"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Len(t, w.Result().Cookies(), 1)
	assert.NotEqual(t, "../../etc/passwd", w.Body.String())
}

func TestVisitorSurvivesLoadError(t *testing.T) {
	prefs := newFakePrefs()
	prefs.loadErr = errors.New("backend down")
	router := setupTestRouter()
	router.Use(Visitor(prefs, DefaultVisitorConfig()))
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, string(AppContext(c).Lang)) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "en", w.Body.String())
}

func TestAppContextDefault(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	app := AppContext(c)
	assert.Equal(t, model.LangEN, app.Lang)
	assert.Equal(t, model.ThemeDark, app.Theme)
}
