package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisrepo "github.com/iho/ledgerbook/internal/adapter/repository/redis"
)

type fakeIdempotencyStore struct {
	checkAndSetFn func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	updateFn      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func (f *fakeIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if f.checkAndSetFn != nil {
		return f.checkAndSetFn(ctx, key, response, ttl)
	}
	return false, nil, nil
}

func (f *fakeIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, key, response, ttl)
	}
	return nil
}

// memoryStore behaves like the redis store: the first claim wins.
type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]byte{}}
}

func (s *memoryStore) CheckAndSet(_ context.Context, key string, response []byte, _ time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[key]; ok {
		return true, existing, nil
	}
	s.data[key] = response
	return false, nil, nil
}

func (s *memoryStore) Update(_ context.Context, key string, response []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = response
	return nil
}

func postWithKey(path, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set(IdempotencyKeyHeader, key)
	return req
}

func TestIdempotencyMiddleware_StoreErrorFailsRequest(t *testing.T) {
	var called bool
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			return false, nil, context.DeadlineExceeded
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Hour)

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, postWithKey("/api/v1/installments/i-1/post", "key-err", `{}`))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_SkipsNonMutatingRequests(t *testing.T) {
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			t.Fatal("store should not be consulted for GET")
			return false, nil, nil
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	req.Header.Set(IdempotencyKeyHeader, "key-get")
	rr := httptest.NewRecorder()

	called := false
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, req)

	if !called {
		t.Fatalf("expected next handler to be called")
	}
}

func TestIdempotencyMiddleware_ReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	mw := NewIdempotencyMiddleware(store, time.Hour)

	calls := 0
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"transfer_id":"tr-1"}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postWithKey("/api/v1/installments/i-1/post", "key-1", `{"source_account_id":"a"}`))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postWithKey("/api/v1/installments/i-1/post", "key-1", `{"source_account_id":"a"}`))

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != `{"transfer_id":"tr-1"}` {
		t.Fatalf("unexpected replay %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get(IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected replay header")
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content type to be replayed")
	}
}

func TestIdempotencyMiddleware_RejectsDifferentRequest(t *testing.T) {
	store := newMemoryStore()
	mw := NewIdempotencyMiddleware(store, time.Hour)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postWithKey("/api/v1/loans/l-1/extra-payments", "key-2", `{"amount":"100"}`))

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "different body", path: "/api/v1/loans/l-1/extra-payments", body: `{"amount":"200"}`},
		{name: "different path", path: "/api/v1/loans/l-2/extra-payments", body: `{"amount":"100"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, postWithKey(tt.path, "key-2", tt.body))
			if rr.Code != http.StatusConflict {
				t.Fatalf("expected 409, got %d", rr.Code)
			}
		})
	}
}

func TestIdempotencyMiddleware_InProgress(t *testing.T) {
	store := newMemoryStore()
	mw := NewIdempotencyMiddleware(store, time.Hour)

	inner := httptest.NewRecorder()
	outer := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A duplicate arriving while the first request runs.
		mw.Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("duplicate should not run")
		})).ServeHTTP(inner, postWithKey("/api/v1/balances/sync-all", "key-3", `{}`))
		w.WriteHeader(http.StatusOK)
	}))

	outer.ServeHTTP(httptest.NewRecorder(), postWithKey("/api/v1/balances/sync-all", "key-3", `{}`))

	if inner.Code != http.StatusConflict {
		t.Fatalf("expected 409 for the in-flight duplicate, got %d", inner.Code)
	}
}

func TestIdempotencyMiddleware_ServerErrorReleasesKey(t *testing.T) {
	store := newMemoryStore()
	mw := NewIdempotencyMiddleware(store, time.Hour)

	status := http.StatusInternalServerError
	calls := 0
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postWithKey("/api/v1/loans", "key-4", `{}`))
	status = http.StatusCreated
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, postWithKey("/api/v1/loans", "key-4", `{}`))

	if calls != 2 || rr.Code != http.StatusCreated {
		t.Fatalf("expected the retry to run, calls=%d code=%d", calls, rr.Code)
	}

	var stored envelope
	if err := json.Unmarshal(store.data["key-4"], &stored); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if stored.Released || stored.Status != http.StatusCreated {
		t.Fatalf("expected the success to be final, got %+v", stored)
	}
}

func TestIdempotencyMiddleware_ClientErrorIsFinal(t *testing.T) {
	store := newMemoryStore()
	mw := NewIdempotencyMiddleware(store, time.Hour)

	calls := 0
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postWithKey("/api/v1/loans", "key-5", `{}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, postWithKey("/api/v1/loans", "key-5", `{}`))

	if calls != 1 || rr.Code != http.StatusBadRequest {
		t.Fatalf("expected the 400 to be replayed, calls=%d code=%d", calls, rr.Code)
	}
}

func TestIdempotencyMiddleware_HandlerSeesBody(t *testing.T) {
	mw := NewIdempotencyMiddleware(newMemoryStore(), 0)

	var got bytes.Buffer
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = got.ReadFrom(r.Body)
	})).ServeHTTP(httptest.NewRecorder(), postWithKey("/api/v1/loans", "key-6", `{"principal":"1000"}`))

	if got.String() != `{"principal":"1000"}` {
		t.Fatalf("expected body to be restored, got %q", got.String())
	}
}

func TestIdempotencyMiddleware_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mw := NewIdempotencyMiddleware(redisrepo.NewIdempotencyStore(client), time.Minute)
	calls := 0
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, postWithKey("/api/v1/loans", "key-redis", `{}`))
		if rr.Code != http.StatusCreated || rr.Body.String() != `{"ok":true}` {
			t.Fatalf("attempt %d: unexpected response %d %s", i, rr.Code, rr.Body.String())
		}
	}

	if calls != 1 {
		t.Fatalf("expected one execution, got %d", calls)
	}
	if ttl := mr.TTL("idempotency:key-redis"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected key ttl within a minute, got %s", ttl)
	}
}
