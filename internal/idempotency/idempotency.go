// Package idempotency replays the stored response of a mutating request
// that is retried with the same Idempotency-Key header.
package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Header carries the client-chosen request key.
const Header = "Idempotency-Key"

const (
	// lockTTL bounds how long an unfinished request blocks its key.
	lockTTL = 60 * time.Second
	// redisTimeout bounds each Redis call made by the middleware.
	redisTimeout = 2 * time.Second
	maxKeyLength = 128
)

// DefaultTTL is how long a finished response is replayed.
const DefaultTTL = 24 * time.Hour

// MaxBodyBytes caps the request body that is read and hashed.
const MaxBodyBytes = 1 << 20

type entry struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body,omitempty"`
	BodySHA256 string    `json:"body_sha256"`
	CreatedAt  time.Time `json:"created_at"`
}

type recorder struct {
	http.ResponseWriter
	buf  bytes.Buffer
	code int
}

func (r *recorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware makes mutating requests that carry an Idempotency-Key
// replayable for ttl. scope identifies the caller, so two users cannot
// collide on the same key. Requests without the header pass through.
//
// A retried key with a different body gets 422, a retry while the first
// request is still running gets 409. Server errors are not stored, so the
// client may retry them.
func Middleware(rdb redis.UniversalClient, ttl time.Duration, scope func(*http.Request) string) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			reqKey := strings.TrimSpace(r.Header.Get(Header))
			if reqKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(reqKey) > maxKeyLength {
				writeError(w, http.StatusBadRequest, "idempotency key too long")
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				writeError(w, http.StatusBadRequest, "reading request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			bodyHash := hex.EncodeToString(sum[:])

			key := buildKey(r.Method, r.URL.Path, scope(r), reqKey)

			ctx, cancel := context.WithTimeout(r.Context(), redisTimeout)
			defer cancel()

			ok, err := setNX(ctx, rdb, key, entry{InProgress: true, BodySHA256: bodyHash, CreatedAt: time.Now().UTC()})
			if err != nil {
				slog.Error("idempotency store unavailable", "error", err)
				writeError(w, http.StatusServiceUnavailable, "idempotency store unavailable")
				return
			}
			if !ok {
				cur, err := load(ctx, rdb, key)
				if err != nil {
					slog.Warn("loading idempotency entry", "key", key, "error", err)
					writeError(w, http.StatusConflict, "request is already in progress")
					return
				}
				if cur.BodySHA256 != bodyHash {
					writeError(w, http.StatusUnprocessableEntity, "idempotency key reused with a different body")
					return
				}
				if cur.InProgress {
					writeError(w, http.StatusConflict, "request is already in progress")
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(cur.Code)
				w.Write(cur.Body)
				return
			}

			rec := &recorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r)

			// The request context may already be done.
			saveCtx, saveCancel := context.WithTimeout(context.Background(), redisTimeout)
			defer saveCancel()

			if rec.code >= http.StatusInternalServerError {
				if err := rdb.Del(saveCtx, key).Err(); err != nil {
					slog.Warn("releasing idempotency key", "key", key, "error", err)
				}
				return
			}
			final := entry{Code: rec.code, Body: rec.buf.Bytes(), BodySHA256: bodyHash, CreatedAt: time.Now().UTC()}
			if err := save(saveCtx, rdb, key, final, ttl); err != nil {
				slog.Warn("saving idempotency entry", "key", key, "error", err)
			}
		})
	}
}

func buildKey(method, path, scope, reqKey string) string {
	return "idemp:" + strings.ToLower(method) + ":" + path + ":" + scope + ":" + reqKey
}

func setNX(ctx context.Context, rdb redis.UniversalClient, key string, e entry) (bool, error) {
	payload, _ := json.Marshal(e)
	return rdb.SetNX(ctx, key, payload, lockTTL).Result()
}

func load(ctx context.Context, rdb redis.UniversalClient, key string) (entry, error) {
	var e entry
	v, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(v, &e)
	return e, err
}

func save(ctx context.Context, rdb redis.UniversalClient, key string, e entry, ttl time.Duration) error {
	payload, _ := json.Marshal(e)
	return rdb.Set(ctx, key, payload, ttl).Err()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
