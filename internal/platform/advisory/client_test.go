package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pharmd/pharmd/internal/domain/screening"
	"github.com/pharmd/pharmd/pkg/errs"
)

func TestAnalyze_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/analyze" {
			t.Errorf("expected /analyze, got %s", r.URL.Path)
		}
		var req screening.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Medications) != 2 {
			t.Errorf("expected 2 medications, got %d", len(req.Medications))
		}
		json.NewEncoder(w).Encode(map[string]string{"analysis": "no additional concerns"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	analysis, err := client.Analyze(context.Background(), screening.Request{
		Medications: []screening.MedicationRef{{Name: "warfarin"}, {Name: "aspirin"}},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis != "no additional concerns" {
		t.Errorf("unexpected analysis: %q", analysis)
	}
}

func TestAnalyze_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Analyze(context.Background(), screening.Request{
		Medications: []screening.MedicationRef{{Name: "warfarin"}},
	})
	if !errors.Is(err, errs.ErrExternalUnavailable) {
		t.Errorf("expected ErrExternalUnavailable, got %v", err)
	}
}

func TestAnalyze_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // shut down before calling

	client := NewClient(srv.URL, time.Second)
	_, err := client.Analyze(context.Background(), screening.Request{
		Medications: []screening.MedicationRef{{Name: "warfarin"}},
	})
	if !errors.Is(err, errs.ErrExternalUnavailable) {
		t.Errorf("expected ErrExternalUnavailable, got %v", err)
	}
}

func TestAnalyze_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 10*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Analyze(ctx, screening.Request{
		Medications: []screening.MedicationRef{{Name: "warfarin"}},
	})
	if !errors.Is(err, errs.ErrExternalUnavailable) {
		t.Errorf("expected ErrExternalUnavailable on deadline, got %v", err)
	}
}

func TestAnalyze_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Analyze(context.Background(), screening.Request{
		Medications: []screening.MedicationRef{{Name: "warfarin"}},
	})
	if !errors.Is(err, errs.ErrExternalUnavailable) {
		t.Errorf("expected ErrExternalUnavailable, got %v", err)
	}
}
