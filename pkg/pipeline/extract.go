package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
)

// maxExtractChars caps how much embedded text a single Extract job will
// read before treating the document as "likely image-based" rather than
// hanging on a pathological PDF.
const maxExtractChars = 2_000_000

// ExtractResult is Extract's job result, also the payload normalize
// consumes as NormalizePayload.RawText once forwarded by the dispatcher.
type ExtractResult struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	NumPages   int    `json:"num_pages"`
}

// ExtractHandler implements the Extract stage: for PDFs
// with an embedded text layer it reads that text directly; otherwise it
// emits ocr.escalated and defers to the OCR stage via a
// separate enqueue, rather than attempting extraction itself.
type ExtractHandler struct {
	Documents DocumentStore
	Bus       *events.Bus
	// EnqueueOCR hands the document off to the OCR pool. Supplied by the
	// caller (normally pkg/worker.Dispatcher.Enqueue) so Extract never
	// talks to the broker directly.
	EnqueueOCR func(ctx context.Context, documentID, filePath string) error
}

// Handle implements pkg/worker.Handler.
func (h *ExtractHandler) Handle(ctx context.Context, job *models.Job) ([]byte, error) {
	var in ExtractPayload
	if err := json.Unmarshal(job.Payload, &in); err != nil {
		return nil, fmt.Errorf("extract: invalid payload: %w", err)
	}

	text, numPages, err := extractPDFText(in.FilePath)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	if looksLikeImagePDF(text, numPages) {
		if h.EnqueueOCR != nil {
			if err := h.EnqueueOCR(ctx, in.DocumentID, in.FilePath); err != nil {
				return nil, fmt.Errorf("extract: failed to enqueue ocr: %w", err)
			}
		}
		h.publishOCREscalated(in.DocumentID)
		return json.Marshal(ExtractResult{DocumentID: in.DocumentID, NumPages: numPages})
	}

	if h.Documents != nil {
		if err := h.Documents.SaveExtractedText(ctx, in.DocumentID, text, numPages); err != nil {
			return nil, fmt.Errorf("extract: failed to save extracted text: %w", err)
		}
	}

	h.publishCompleted(in.DocumentID, job.ID, text)

	return json.Marshal(ExtractResult{DocumentID: in.DocumentID, Text: text, NumPages: numPages})
}

func (h *ExtractHandler) publishCompleted(documentID, jobID, text string) {
	if h.Bus == nil {
		return
	}
	payload, err := json.Marshal(textForwardPayload{
		StagePayload: events.StagePayload{DocumentID: documentID, JobID: jobID, Stage: "extract", Status: events.StageCompleted},
		RawText:      text,
	})
	if err != nil {
		return
	}
	h.Bus.Publish(events.StageTopic("extract", events.StageCompleted), "pipeline-extract", payload, documentID)
}

func (h *ExtractHandler) publishOCREscalated(documentID string) {
	if h.Bus == nil {
		return
	}
	payload, err := json.Marshal(events.DocumentPayload{DocumentID: documentID, Status: "ocr_required"})
	if err != nil {
		return
	}
	h.Bus.Publish(events.TopicOCREscalated, "pipeline-extract", payload, documentID)
}

// extractPDFText reads the embedded text layer of every page, recovering
// from panics raised by malformed PDFs (e.g. "zlib: invalid header").
func extractPDFText(path string) (text string, numPages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, numPages, err = "", 0, fmt.Errorf("panic during pdf extraction: %v", r)
		}
	}()

	f, r, openErr := pdf.Open(path)
	if openErr != nil {
		return "", 0, fmt.Errorf("failed to open pdf: %w", openErr)
	}
	defer f.Close()

	var sb strings.Builder
	total := r.NumPage()
	if total == 0 {
		return "", 0, ErrEmptyDocument
	}

	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
		if sb.Len() > maxExtractChars {
			break
		}
	}

	return sb.String(), total, nil
}

// looksLikeImagePDF reports whether a PDF has no meaningful embedded
// text layer, in which case Extract defers to OCR rather than persisting
// an effectively empty document.
func looksLikeImagePDF(text string, numPages int) bool {
	if numPages == 0 {
		return true
	}
	trimmed := strings.TrimSpace(text)
	// Fewer than ~40 characters per page is a reasonable signal the PDF
	// is scanned images rather than typeset text.
	return len(trimmed) < 40*numPages
}
