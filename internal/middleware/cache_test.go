package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/travel-availability/internal/config"
)

func TestRedisCacheHitAndInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.CacheConfig{
		Enabled:       true,
		Methods:       map[string]bool{http.MethodGet: true},
		TTL:           time.Minute,
		KeyStrategy:   "route_query",
		Prefix:        "cache:test",
		GenerationKey: "cache:test:gen",
		MaxBodyBytes:  1 << 20,
	}
	version := 1
	calls := 0
	e := echo.New()
	e.GET("/items/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "v": version})
	}, NewRedisCache(cfg, rdb))
	e.GET("/missing", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false})
	}, NewRedisCache(cfg, rdb))
	e.PUT("/items/:id", func(c echo.Context) error {
		version++
		return c.NoContent(http.StatusNoContent)
	}, InvalidateCache(cfg, rdb))
	e.PUT("/fail", func(c echo.Context) error {
		return c.NoContent(http.StatusConflict)
	}, InvalidateCache(cfg, rdb))

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}
	put := func(path string) {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, path, nil))
	}

	first := get("/items/1")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get("/items/1")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	// Path params are part of the key.
	get("/items/2")
	assert.Equal(t, 2, calls)

	put("/fail")
	assert.Equal(t, "HIT", get("/items/1").Header().Get("X-Cache"), "failed write keeps the cache")

	put("/items/1")
	fresh := get("/items/1")
	assert.Equal(t, "MISS", fresh.Header().Get("X-Cache"))
	assert.Contains(t, fresh.Body.String(), `"v":2`)

	get("/missing")
	get("/missing")
	assert.Equal(t, 5, calls, "non-200 responses are not cached")
}

func TestPayloadRoundTrip(t *testing.T) {
	h := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, h, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestCacheDisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewRedisCache(config.CacheConfig{}, nil))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}
