package crashstats

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProcessedCrash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("crash_id"); got != "abc-123" {
			t.Errorf("crash_id = %q, want abc-123", got)
		}
		if got := r.Header.Get("Auth-Token"); got != "secret" {
			t.Errorf("Auth-Token = %q, want secret", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"uuid":             "abc-123",
			"signature":        "mozilla::dom::Worker::Run",
			"build":            "20240301094911",
			"version":          "124.0",
			"release_channel":  "release",
			"moz_crash_reason": "MOZ_RELEASE_ASSERT(mState == Running)",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", 100)
	crash, err := client.ProcessedCrash(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("ProcessedCrash: %v", err)
	}
	if crash.Signature != "mozilla::dom::Worker::Run" {
		t.Errorf("signature = %q", crash.Signature)
	}
	if crash.BuildID != "20240301094911" {
		t.Errorf("build id = %q", crash.BuildID)
	}
	if crash.ReleaseChannel != "release" {
		t.Errorf("channel = %q", crash.ReleaseChannel)
	}
}

func TestProcessedCrashMissingSignature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"uuid": "abc-123"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 100)
	if _, err := client.ProcessedCrash(context.Background(), "abc-123"); err == nil {
		t.Fatal("expected error for crash without signature")
	}
}

func TestProcessedCrashServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 100)
	if _, err := client.ProcessedCrash(context.Background(), "abc-123"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestSampleCrashesDedup(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("signature"); got != "=OOM | small" {
			t.Errorf("signature param = %q", got)
		}
		json.NewEncoder(w).Encode(superSearchResponse{
			Hits: []CrashInstance{
				{UUID: "u1", BuildID: "20240301094911", Version: "124.0", ReleaseChannel: "release"},
				{UUID: "u2", BuildID: "20240301094911", Version: "124.0", ReleaseChannel: "release"},
				{UUID: "u3", BuildID: "20240215120000", Version: "125.0a1", ReleaseChannel: "nightly"},
			},
			Total: 3,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 100)
	instances, err := client.SampleCrashes(context.Background(), "OOM | small", 2, 10)
	if err != nil {
		t.Fatalf("SampleCrashes: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 monthly searches, got %d", calls)
	}
	// Same three hits each month, so deduplication by (build, version) must
	// leave exactly two.
	if len(instances) != 2 {
		t.Fatalf("got %d instances after dedup, want 2", len(instances))
	}
	if instances[0].UUID != "u1" || instances[1].UUID != "u3" {
		t.Errorf("dedup did not preserve first-seen order: %+v", instances)
	}
}

func TestDedupeByBuildEmpty(t *testing.T) {
	if got := DedupeByBuild(nil); got != nil {
		t.Errorf("DedupeByBuild(nil) = %v, want nil", got)
	}
}
