package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type fakeIdempotencyStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{data: make(map[string]string)}
}

func (f *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	return true, nil
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func idempotentTestRouter(store *fakeIdempotencyStore, hits *int) http.Handler {
	r := chi.NewRouter()
	r.Use(Idempotency(store, nil))
	r.Put("/api/v1/cart/items", func(w http.ResponseWriter, req *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	})
	r.Get("/api/v1/cart", func(w http.ResponseWriter, req *http.Request) {
		*hits++
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func customerRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(WithCustomerID(req.Context(), uuid.NewString()))
}

func TestIdempotencyRequiresKeyOnMatchedRoute(t *testing.T) {
	hits := 0
	router := idempotentTestRouter(newFakeIdempotencyStore(), &hits)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customerRequest(http.MethodPut, "/api/v1/cart/items", `{"quantity":1}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if hits != 0 {
		t.Fatalf("handler should not run without a key, got %d hits", hits)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	hits := 0
	store := newFakeIdempotencyStore()
	router := idempotentTestRouter(store, &hits)

	customerID := uuid.NewString()
	makeReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items", strings.NewReader(`{"quantity":1}`))
		req.Header.Set("Idempotency-Key", "key-1")
		return req.WithContext(WithCustomerID(req.Context(), customerID))
	}

	first := httptest.NewRecorder()
	router.ServeHTTP(first, makeReq())
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, makeReq())
	if second.Code != http.StatusOK {
		t.Fatalf("expected replayed 200 got %d", second.Code)
	}
	if hits != 1 {
		t.Fatalf("expected handler to run once, got %d", hits)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay body mismatch: %q vs %q", first.Body.String(), second.Body.String())
	}
	if got := second.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("replay should restore content type, got %q", got)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	hits := 0
	store := newFakeIdempotencyStore()
	router := idempotentTestRouter(store, &hits)

	customerID := uuid.NewString()
	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "key-1")
		req = req.WithContext(WithCustomerID(req.Context(), customerID))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	if resp := send(`{"quantity":1}`); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp := send(`{"quantity":2}`); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestIdempotencyIgnoresUnmatchedRoutes(t *testing.T) {
	hits := 0
	router := idempotentTestRouter(newFakeIdempotencyStore(), &hits)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customerRequest(http.MethodGet, "/api/v1/cart", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if hits != 1 {
		t.Fatalf("expected handler to run, got %d hits", hits)
	}
}

func TestIdempotencyScopesKeysByCustomer(t *testing.T) {
	hits := 0
	store := newFakeIdempotencyStore()
	router := idempotentTestRouter(store, &hits)

	send := func(customerID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items", strings.NewReader(`{"quantity":1}`))
		req.Header.Set("Idempotency-Key", "shared-key")
		req = req.WithContext(WithCustomerID(req.Context(), customerID))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	send(uuid.NewString())
	send(uuid.NewString())

	if hits != 2 {
		t.Fatalf("different customers must not share records, got %d hits", hits)
	}
}
