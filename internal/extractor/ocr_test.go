package extractor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

type fakeRecognizer struct {
	regions []Region
	err     error
	calls   int
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ []byte, _ string, _ int) ([]Region, error) {
	f.calls++
	return f.regions, f.err
}

func regionsWithConfidence(confs ...float64) []Region {
	out := make([]Region, len(confs))
	for i, c := range confs {
		out[i] = Region{Text: "recognized text", Confidence: c, Height: 10}
	}
	return out
}

func TestEscalator_FastPassGoodEnough(t *testing.T) {
	fast := &fakeRecognizer{regions: regionsWithConfidence(0.9, 0.8)}
	accurate := &fakeRecognizer{regions: regionsWithConfidence(0.99)}
	e := NewEscalator(fast, accurate, 0.6, slog.New(slog.NewTextHandler(io.Discard, nil)))

	regions, err := e.Recognize(context.Background(), nil, "doc.pdf", 1)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(regions) != 2 {
		t.Errorf("regions = %d", len(regions))
	}
	if accurate.calls != 0 {
		t.Errorf("accurate recognizer should not run on a confident fast pass")
	}
}

func TestEscalator_EscalatesOnWeakConfidence(t *testing.T) {
	fast := &fakeRecognizer{regions: regionsWithConfidence(0.4, 0.3)}
	accurate := &fakeRecognizer{regions: regionsWithConfidence(0.95)}
	e := NewEscalator(fast, accurate, 0.6, slog.New(slog.NewTextHandler(io.Discard, nil)))

	regions, err := e.Recognize(context.Background(), nil, "doc.pdf", 3)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if accurate.calls != 1 {
		t.Errorf("expected escalation, accurate calls = %d", accurate.calls)
	}
	if len(regions) != 1 || regions[0].Confidence != 0.95 {
		t.Errorf("regions = %+v", regions)
	}
}

func TestEscalator_EscalatesOnFastFailure(t *testing.T) {
	fast := &fakeRecognizer{err: errors.New("engine crashed")}
	accurate := &fakeRecognizer{regions: regionsWithConfidence(0.9)}
	e := NewEscalator(fast, accurate, 0.6, slog.New(slog.NewTextHandler(io.Discard, nil)))

	regions, err := e.Recognize(context.Background(), nil, "doc.pdf", 1)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(regions) != 1 {
		t.Errorf("regions = %+v", regions)
	}
}

func TestEscalator_EmptyFastResultEscalates(t *testing.T) {
	fast := &fakeRecognizer{}
	accurate := &fakeRecognizer{regions: regionsWithConfidence(0.7)}
	e := NewEscalator(fast, accurate, 0.6, slog.New(slog.NewTextHandler(io.Discard, nil)))

	regions, err := e.Recognize(context.Background(), nil, "doc.pdf", 1)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(regions) != 1 {
		t.Errorf("blank page should be retried accurately: %+v", regions)
	}
}

func TestHTTPRecognizer_SendsModeAndPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocr/recognize" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("mode"); got != "fast" {
			t.Errorf("mode = %q", got)
		}
		if got := r.FormValue("page"); got != "4" {
			t.Errorf("page = %q", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		file.Close()
		w.Write([]byte(`{"regions":[{"text":"Robot requirements","confidence":0.82,"bbox":{"left":50,"top":100,"right":300,"bottom":114},"height":14}]}`))
	}))
	defer srv.Close()

	rec := NewFastRecognizer(srv.URL)
	regions, err := rec.Recognize(context.Background(), []byte("%PDF-fake"), "rules.pdf", 4)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("regions = %+v", regions)
	}
	got := regions[0]
	if got.Text != "Robot requirements" || got.Confidence != 0.82 {
		t.Errorf("region = %+v", got)
	}
	if got.BBox != (docmodel.BBox{Left: 50, Top: 100, Right: 300, Bottom: 114}) {
		t.Errorf("bbox = %+v", got.BBox)
	}
}

func TestHTTPRecognizer_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"regions":[],"error":"model not loaded"}`))
	}))
	defer srv.Close()

	rec := NewAccurateRecognizer(srv.URL)
	if _, err := rec.Recognize(context.Background(), nil, "rules.pdf", 1); err == nil {
		t.Fatal("expected error from error body")
	}
}
