package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

// Region is one recognized text region on a page, in page coordinates.
type Region struct {
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	BBox       docmodel.BBox `json:"bbox"`
	Height     float64       `json:"height"`
}

// Recognizer runs OCR over one page of a document.
type Recognizer interface {
	Recognize(ctx context.Context, doc []byte, filename string, page int) ([]Region, error)
}

// HTTPRecognizer calls the OCR sidecar. Mode selects the engine profile:
// "fast" for the cheap first pass, "accurate" for the slow one.
type HTTPRecognizer struct {
	baseURL    string
	mode       string
	httpClient *http.Client
}

func NewFastRecognizer(baseURL string) *HTTPRecognizer {
	return newHTTPRecognizer(baseURL, "fast", 1*time.Minute)
}

func NewAccurateRecognizer(baseURL string) *HTTPRecognizer {
	return newHTTPRecognizer(baseURL, "accurate", 5*time.Minute)
}

func newHTTPRecognizer(baseURL, mode string, timeout time.Duration) *HTTPRecognizer {
	return &HTTPRecognizer{
		baseURL: baseURL,
		mode:    mode,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (r *HTTPRecognizer) Recognize(ctx context.Context, doc []byte, filename string, page int) ([]Region, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fileWriter.Write(doc); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	writer.WriteField("page", fmt.Sprintf("%d", page))
	writer.WriteField("mode", r.mode)
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/ocr/recognize", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ocr %s page %d: status %d: %s", r.mode, page, resp.StatusCode, string(respBody))
	}

	var body struct {
		Regions []Region `json:"regions"`
		Error   string   `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("ocr %s page %d: %s", r.mode, page, body.Error)
	}
	return body.Regions, nil
}

// Escalator runs the fast recognizer first and escalates the page to the
// accurate one when the fast pass comes back weak.
type Escalator struct {
	fast      Recognizer
	accurate  Recognizer
	threshold float64 // escalate below this average confidence
	log       *slog.Logger
}

const DefaultEscalateThreshold = 0.6

func NewEscalator(fast, accurate Recognizer, threshold float64, log *slog.Logger) *Escalator {
	if threshold <= 0 {
		threshold = DefaultEscalateThreshold
	}
	return &Escalator{fast: fast, accurate: accurate, threshold: threshold, log: log}
}

func (e *Escalator) Recognize(ctx context.Context, doc []byte, filename string, page int) ([]Region, error) {
	regions, err := e.fast.Recognize(ctx, doc, filename, page)
	if err == nil && averageConfidence(regions) >= e.threshold && len(regions) > 0 {
		return regions, nil
	}
	if e.accurate == nil {
		return regions, err
	}
	if err != nil {
		e.log.Warn("fast ocr failed, escalating", "page", page, "error", err)
	} else {
		e.log.Debug("escalating to accurate ocr",
			"page", page, "avg_confidence", averageConfidence(regions))
	}
	return e.accurate.Recognize(ctx, doc, filename, page)
}

func averageConfidence(regions []Region) float64 {
	if len(regions) == 0 {
		return 0
	}
	var sum float64
	for _, r := range regions {
		sum += r.Confidence
	}
	return sum / float64(len(regions))
}
