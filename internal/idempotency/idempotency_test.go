package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func byUser(r *http.Request) string { return r.Header.Get("X-User") }

type counter struct {
	calls atomic.Int32
	code  int
}

func (c *counter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := c.calls.Add(1)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c.code)
	w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
}

func do(h http.Handler, method, body, user, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/transfers", strings.NewReader(body))
	req.Header.Set("X-User", user)
	if key != "" {
		req.Header.Set(Header, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReplay(t *testing.T) {
	_, rdb := newRedis(t)
	next := &counter{code: http.StatusCreated}
	h := Middleware(rdb, time.Hour, byUser)(next)

	first := do(h, http.MethodPost, `{"name":"M4A1"}`, "doe", "k1")
	second := do(h, http.MethodPost, `{"name":"M4A1"}`, "doe", "k1")

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestKeysAreScopedPerUser(t *testing.T) {
	_, rdb := newRedis(t)
	next := &counter{code: http.StatusCreated}
	h := Middleware(rdb, time.Hour, byUser)(next)

	do(h, http.MethodPost, `{}`, "doe", "k1")
	do(h, http.MethodPost, `{}`, "martinez", "k1")
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestPassThrough(t *testing.T) {
	_, rdb := newRedis(t)
	next := &counter{code: http.StatusOK}
	h := Middleware(rdb, time.Hour, byUser)(next)

	do(h, http.MethodPost, `{}`, "doe", "")
	do(h, http.MethodPost, `{}`, "doe", "")
	do(h, http.MethodGet, "", "doe", "k1")
	do(h, http.MethodGet, "", "doe", "k1")
	assert.Equal(t, int32(4), next.calls.Load())
}

func TestDifferentBody(t *testing.T) {
	_, rdb := newRedis(t)
	next := &counter{code: http.StatusCreated}
	h := Middleware(rdb, time.Hour, byUser)(next)

	do(h, http.MethodPost, `{"name":"a"}`, "doe", "k1")
	rec := do(h, http.MethodPost, `{"name":"b"}`, "doe", "k1")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestInProgress(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	key := buildKey(http.MethodPost, "/api/transfers", "doe", "k1")
	ok, err := setNX(ctx, rdb, key, entry{InProgress: true, BodySHA256: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"})
	require.NoError(t, err)
	require.True(t, ok)

	next := &counter{code: http.StatusCreated}
	rec := do(Middleware(rdb, time.Hour, byUser)(next), http.MethodPost, "", "doe", "k1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(0), next.calls.Load())
}

func TestServerErrorsAreNotStored(t *testing.T) {
	mr, rdb := newRedis(t)
	next := &counter{code: http.StatusInternalServerError}
	h := Middleware(rdb, time.Hour, byUser)(next)

	do(h, http.MethodPost, `{}`, "doe", "k1")
	assert.False(t, mr.Exists(buildKey(http.MethodPost, "/api/transfers", "doe", "k1")))

	do(h, http.MethodPost, `{}`, "doe", "k1")
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestStoredEntryExpires(t *testing.T) {
	mr, rdb := newRedis(t)
	next := &counter{code: http.StatusCreated}
	h := Middleware(rdb, time.Minute, byUser)(next)

	do(h, http.MethodPost, `{}`, "doe", "k1")
	mr.FastForward(2 * time.Minute)
	do(h, http.MethodPost, `{}`, "doe", "k1")
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestRedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	rec := do(Middleware(rdb, time.Hour, byUser)(&counter{code: http.StatusCreated}), http.MethodPost, `{}`, "doe", "k1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOversizedBody(t *testing.T) {
	mr, rdb := newRedis(t)
	next := &counter{code: http.StatusCreated}
	h := Middleware(rdb, time.Hour, byUser)(next)

	rec := do(h, http.MethodPost, strings.Repeat("x", MaxBodyBytes+1), "doe", "big")

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, int32(0), next.calls.Load())
	assert.Empty(t, mr.Keys(), "no key is locked for a rejected body")
}
