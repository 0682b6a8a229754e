package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	apperrors "cowork/pkg/errors"
	httputil "cowork/pkg/http"
)

const (
	// CodeIdempotencyMismatch reports a key reused with a different body.
	CodeIdempotencyMismatch = "IDEMPOTENCY_KEY_REUSED"

	ReplayedHeader = "Idempotent-Replayed"
)

type IdempotencyStore interface {
	Get(key string) (*CachedResponse, bool)
	Set(key string, response *CachedResponse)
	// Begin claims key for one in-flight request. It returns false while
	// another request holds the claim.
	Begin(key string) bool
	Done(key string)
	Stop()
}

// CachedResponse is the stored answer to a write. Fingerprint is the digest
// of the request body that produced it.
type CachedResponse struct {
	StatusCode  int
	Headers     http.Header
	Body        []byte
	Fingerprint string
	CreatedAt   time.Time
}

type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	store    map[string]*CachedResponse
	inFlight map[string]struct{}
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		store:    make(map[string]*CachedResponse),
		inFlight: make(map[string]struct{}),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}

	go store.cleanup(sweepInterval(ttl))

	return store
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > 10*time.Minute {
		return 10 * time.Minute
	}
	return ttl
}

func (s *InMemoryIdempotencyStore) Get(key string) (*CachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response, exists := s.store[key]
	if !exists {
		return nil, false
	}
	if time.Since(response.CreatedAt) > s.ttl {
		delete(s.store, key)
		return nil, false
	}
	return response, true
}

func (s *InMemoryIdempotencyStore) Set(key string, response *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response.CreatedAt = time.Now()
	s.store[key] = response
}

func (s *InMemoryIdempotencyStore) Begin(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *InMemoryIdempotencyStore) Done(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

func (s *InMemoryIdempotencyStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key, response := range s.store {
				if time.Since(response.CreatedAt) > s.ttl {
					delete(s.store, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.Header().Set(ReplayedHeader, "false")
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the stored response when a write is retried with the
// same key and body. A retry that arrives while the first attempt is still
// running gets CONCURRENCY_ERROR; reusing a key with another body gets
// IDEMPOTENCY_KEY_REUSED.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = "Idempotency-Key"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractIdempotencyKey(r, headerName)
			if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			fingerprint, err := fingerprintBody(r)
			if err != nil {
				httputil.WriteError(w, apperrors.InvalidInput("Failed to read request body"))
				return
			}

			if cached, found := store.Get(key); found {
				replayOrReject(w, cached, fingerprint)
				return
			}

			if !store.Begin(key) {
				httputil.WriteError(w, apperrors.Concurrency("A request with this idempotency key is still in progress"))
				return
			}
			defer store.Done(key)

			capture := captureResponse(w)
			next.ServeHTTP(capture, r)
			cacheResponse(store, key, fingerprint, capture, w)
		})
	}
}

// extractIdempotencyKey scopes the client key to the route so a key reused
// against another endpoint never replays an unrelated response.
func extractIdempotencyKey(r *http.Request, headerName string) string {
	key := r.Header.Get(headerName)
	if key == "" {
		return ""
	}
	return r.Method + " " + r.URL.Path + " " + key
}

// fingerprintBody digests the body and leaves it readable for the handler.
func fingerprintBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func replayOrReject(w http.ResponseWriter, cached *CachedResponse, fingerprint string) {
	if cached.Fingerprint != fingerprint {
		httputil.WriteError(w, apperrors.New(
			CodeIdempotencyMismatch,
			"Idempotency key was already used with a different request body",
			http.StatusUnprocessableEntity,
		))
		return
	}

	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func captureResponse(w http.ResponseWriter) *responseCapture {
	return &responseCapture{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
}

func cacheResponse(store IdempotencyStore, key, fingerprint string, capture *responseCapture, w http.ResponseWriter) {
	if !shouldCacheResponse(capture.statusCode) {
		return
	}

	headers := w.Header().Clone()
	headers.Del(RequestIDHeader)
	headers.Del(ReplayedHeader)

	store.Set(key, &CachedResponse{
		StatusCode:  capture.statusCode,
		Headers:     headers,
		Body:        capture.body.Bytes(),
		Fingerprint: fingerprint,
	})
}

// shouldCacheResponse keeps successes and CONFLICT answers. A booking created
// over an overlap is stored in Conflict and answered with 409, so a retry must
// not create it twice.
func shouldCacheResponse(statusCode int) bool {
	return (statusCode >= 200 && statusCode < 300) || statusCode == http.StatusConflict
}
