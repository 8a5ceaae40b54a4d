package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking/internal/config"
	"github.com/iliyamo/movie-booking/internal/logging"
	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, uid uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, 5)
	require.NoError(t, err)
	return tok.Token
}

func serve(t *testing.T, mw echo.MiddlewareFunc, authz string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	require.NoError(t, h(c))
	return rec, c
}

func TestJWTAuth(t *testing.T) {
	rec, c := serve(t, JWTAuth(secret), "Bearer "+token(t, 7, model.RoleUser))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	id, ok := UserID(c)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, model.RoleUser, Role(c))
	assert.False(t, IsAdmin(c))

	rec, _ = serve(t, JWTAuth(secret), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(t, JWTAuth(secret), "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := utils.NewAccessToken("other-secret", 7, model.RoleUser, 5)
	require.NoError(t, err)
	rec, _ = serve(t, JWTAuth(secret), "Bearer "+other.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalJWT(t *testing.T) {
	rec, c := serve(t, OptionalJWT(secret), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := UserID(c)
	assert.False(t, ok)

	rec, c = serve(t, OptionalJWT(secret), "Bearer "+token(t, 3, model.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, IsAdmin(c))

	rec, _ = serve(t, OptionalJWT(secret), "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	chain := func(next echo.HandlerFunc) echo.HandlerFunc {
		return JWTAuth(secret)(RequireRole(model.RoleAdmin)(next))
	}
	rec, _ := serve(t, chain, "Bearer "+token(t, 1, model.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = serve(t, chain, "Bearer "+token(t, 2, model.RoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/otp/send", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/otp/send")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:ip:10.0.0.9:route:POST /api/otp/send", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))
	c.Set(CtxUserID, uint64(12))
	assert.Equal(t, "rl:user:12", buildRateKey(cfg, c))

	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.9:user:12:route:POST /api/otp/send", buildRateKey(cfg, c))
}

func TestParseBucketResult(t *testing.T) {
	allowed, remaining, retry, ok := parseBucketResult([]any{int64(1), int64(4), int64(0)})
	assert.True(t, ok)
	assert.True(t, allowed)
	assert.Equal(t, int64(4), remaining)
	assert.Zero(t, retry)

	allowed, _, retry, ok = parseBucketResult([]any{int64(0), int64(0), int64(1500)})
	assert.True(t, ok)
	assert.False(t, allowed)
	assert.Equal(t, 2, retryAfterSeconds(retry))

	_, _, _, ok = parseBucketResult("nope")
	assert.False(t, ok)
}

func TestDisabledMiddlewarePassesThrough(t *testing.T) {
	rec, _ := serve(t, NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, logging.Discard()), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = serve(t, NewRedisCache(config.CacheConfig{Enabled: true}, nil, logging.Discard()), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("def"))
	assert.Equal(t, "abcd", cw.buf.String())
	assert.True(t, cw.truncated())
	assert.Equal(t, "abcdef", rec.Body.String())
}

func TestCacheKeyStrategies(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/admin/stats?x=1", nil), httptest.NewRecorder())
	c.SetPath("/api/admin/stats")

	withQuery := cacheKeyFrom(config.CacheConfig{Prefix: "cache"}, c)
	routeOnly := cacheKeyFrom(config.CacheConfig{Prefix: "cache", KeyStrategy: "route"}, c)
	assert.NotEqual(t, withQuery, routeOnly)
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, withQuery)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	chain := func(next echo.HandlerFunc) echo.HandlerFunc { return RequestID()(RequestLogger(log)(next)) }
	rec, _ := serve(t, chain, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.Contains(t, buf.String(), `"uri":"/api/bookings"`)
	assert.Contains(t, buf.String(), `"status":204`)
}
