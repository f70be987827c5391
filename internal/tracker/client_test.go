package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"issuewatch/pkg/logx"
)

func TestEndpointDerivation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		source   string
		key      string
		endpoint string
		wantErr  bool
	}{
		{
			name:     "browse url",
			source:   "https://tracker.example.com/browse/PROJ-123",
			key:      "PROJ-123",
			endpoint: "https://tracker.example.com/rest/api/2/issue/PROJ-123",
		},
		{
			name:     "lowercase key is canonicalized",
			source:   "https://tracker.example.com/browse/proj-7",
			key:      "PROJ-7",
			endpoint: "https://tracker.example.com/rest/api/2/issue/PROJ-7",
		},
		{
			name:     "rest url passes through",
			source:   "https://tracker.example.com/rest/api/2/issue/PROJ-123",
			key:      "PROJ-123",
			endpoint: "https://tracker.example.com/rest/api/2/issue/PROJ-123",
		},
		{
			name:     "trailing slash",
			source:   "https://tracker.example.com/browse/PROJ-123/",
			key:      "PROJ-123",
			endpoint: "https://tracker.example.com/rest/api/2/issue/PROJ-123",
		},
		{name: "no key in path", source: "https://tracker.example.com/browse/", wantErr: true},
		{name: "key without dash", source: "https://tracker.example.com/browse/overview", wantErr: true},
		{name: "missing host", source: "/browse/PROJ-123", wantErr: true},
		{name: "garbage", source: "://", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			key, endpoint, err := Endpoint(tt.source)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Endpoint(%q) = %s, %s; want error", tt.source, key, endpoint)
				}
				return
			}
			if err != nil {
				t.Fatalf("Endpoint(%q) error: %v", tt.source, err)
			}
			if key != tt.key || endpoint != tt.endpoint {
				t.Fatalf("Endpoint(%q) = %s, %s; want %s, %s", tt.source, key, endpoint, tt.key, tt.endpoint)
			}
		})
	}
}

// Same derivation twice must yield the same endpoint.
func TestEndpointDeterministic(t *testing.T) {
	t.Parallel()
	src := "https://tracker.example.com/browse/PROJ-42?focusedId=1#comment"
	k1, e1, err := Endpoint(src)
	if err != nil {
		t.Fatalf("Endpoint: %v", err)
	}
	k2, e2, err := Endpoint(src)
	if err != nil {
		t.Fatalf("Endpoint: %v", err)
	}
	if k1 != k2 || e1 != e2 {
		t.Fatalf("non-deterministic derivation: %s/%s vs %s/%s", k1, e1, k2, e2)
	}
}

func TestFetchRecordStatusCodes(t *testing.T) {
	t.Parallel()
	var status int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		code := status
		mu.Unlock()
		if code != http.StatusOK {
			w.WriteHeader(code)
			fmt.Fprint(w, "nope")
			return
		}
		fmt.Fprint(w, `{"fields": {"status": {"name": "Open"}}}`)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{}, logx.Nop())

	for _, code := range []int{404, 403, 500} {
		mu.Lock()
		status = code
		mu.Unlock()
		_, err := client.FetchRecord(context.Background(), srv.URL)
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("status %d: err = %v, want *FetchError", code, err)
		}
		if fe.Status != code {
			t.Fatalf("FetchError.Status = %d, want %d", fe.Status, code)
		}
	}

	mu.Lock()
	status = http.StatusOK
	mu.Unlock()
	rec, err := client.FetchRecord(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchRecord: %v", err)
	}
	if rec.Status != "Open" {
		t.Fatalf("Status = %q", rec.Status)
	}
}

func TestFetchRecordParseError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"fields": {}}`)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{}, logx.Nop())
	_, err := client.FetchRecord(context.Background(), srv.URL)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

func TestFetchRecordTransportError(t *testing.T) {
	t.Parallel()
	client := NewClient(ClientConfig{}, logx.Nop())
	_, err := client.FetchRecord(context.Background(), "http://127.0.0.1:1/rest/api/2/issue/PROJ-1")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
}

func TestFetchRecordSendsBearerToken(t *testing.T) {
	t.Parallel()
	var gotAuth string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()
		fmt.Fprint(w, `{"fields": {"status": {"name": "Open"}}}`)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BearerToken: "s3cret"}, logx.Nop())
	if _, err := client.FetchRecord(context.Background(), srv.URL); err != nil {
		t.Fatalf("FetchRecord: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "Bearer s3cret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestEngineCycle(t *testing.T) {
	t.Parallel()
	var body string
	var mu sync.Mutex
	setBody := func(s string) { mu.Lock(); body = s; mu.Unlock() }
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		b := body
		mu.Unlock()
		fmt.Fprint(w, b)
	}))
	defer srv.Close()

	engine := NewEngine(NewClient(ClientConfig{}, logx.Nop()), logx.Nop())
	ctx := context.Background()

	// First cycle: no prior snapshot, reported as new and cached.
	setBody(`{"fields": {"status": {"name": "Open"}}}`)
	cs, _, err := engine.FetchAndDiff(ctx, "PROJ-1", srv.URL)
	if err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if !cs.IsNew || !cs.HasChanges {
		t.Fatalf("cycle 1: IsNew=%v HasChanges=%v", cs.IsNew, cs.HasChanges)
	}

	// Second cycle, same document: idempotent, no changes.
	cs, _, err = engine.FetchAndDiff(ctx, "PROJ-1", srv.URL)
	if err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if cs.HasChanges || cs.IsNew {
		t.Fatalf("cycle 2: unexpected changes %+v", cs)
	}

	// Third cycle: status flipped, diffed against the cached snapshot.
	setBody(`{"fields": {"status": {"name": "Done"}}}`)
	cs, rec, err := engine.FetchAndDiff(ctx, "PROJ-1", srv.URL)
	if err != nil {
		t.Fatalf("cycle 3: %v", err)
	}
	if cs.Status == nil || cs.Status.From != "Open" || cs.Status.To != "Done" {
		t.Fatalf("cycle 3: Status = %+v", cs.Status)
	}
	if rec.Status != "Done" {
		t.Fatalf("cycle 3: record = %+v", rec)
	}
	if got := engine.Snapshot("PROJ-1"); got == nil || got.Status != "Done" {
		t.Fatalf("cache = %+v, want Done", got)
	}

	// A failing fetch leaves the cache untouched.
	setBody(`not json`)
	if _, _, err := engine.FetchAndDiff(ctx, "PROJ-1", srv.URL); err == nil {
		t.Fatal("expected error for bad body")
	}
	if got := engine.Snapshot("PROJ-1"); got == nil || got.Status != "Done" {
		t.Fatalf("cache after failure = %+v, want Done", got)
	}

	// Forget drops the snapshot; the next cycle is new again.
	engine.Forget("PROJ-1")
	setBody(`{"fields": {"status": {"name": "Done"}}}`)
	cs, _, err = engine.FetchAndDiff(ctx, "PROJ-1", srv.URL)
	if err != nil {
		t.Fatalf("cycle 4: %v", err)
	}
	if !cs.IsNew {
		t.Fatal("cycle 4: expected IsNew after Forget")
	}
}
