package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/pipeline"
)

// minimalTextPDF is a hand-built, single-page PDF with an embedded
// "Hello World" text run, used to exercise the embedded-text-layer path
// without a binary test fixture on disk.
const minimalTextPDF = `%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R] /Count 1 >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>
endobj
4 0 obj
<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>
endobj
5 0 obj
<< /Length 43 >>
stream
BT /F1 24 Tf 20 100 Td (Hello World) Tj ET
endstream
endobj
xref
0 6
0000000000 65535 f 
0000000009 00000 n 
0000000058 00000 n 
0000000115 00000 n 
0000000241 00000 n 
0000000311 00000 n 
trailer
<< /Size 6 /Root 1 0 R >>
startxref
403
%%EOF`

// imageOnlyPDF is a valid single-page PDF whose content stream is empty,
// mirroring a scanned image-only PDF with no embedded text layer.
const imageOnlyPDF = `%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R] /Count 1 >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] /Resources << >> /Contents 4 0 R >>
endobj
4 0 obj
<< /Length 0 >>
stream

endstream
endobj
xref
0 5
0000000000 65535 f 
0000000009 00000 n 
0000000058 00000 n 
0000000115 00000 n 
0000000219 00000 n 
trailer
<< /Size 5 /Root 1 0 R >>
startxref
268
%%EOF`

func writeTempPDF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractHandlerReadsEmbeddedText(t *testing.T) {
	path := writeTempPDF(t, minimalTextPDF)
	docs := &fakeDocumentStore{}

	h := &pipeline.ExtractHandler{Documents: docs}

	payload, _ := json.Marshal(pipeline.ExtractPayload{DocumentID: "doc-1", FilePath: path})
	job := &models.Job{ID: "job-1", Payload: payload}

	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)

	var result pipeline.ExtractResult
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Contains(t, result.Text, "Hello World")
	assert.Equal(t, 1, result.NumPages)
}

func TestExtractHandlerMissingFileReturnsError(t *testing.T) {
	h := &pipeline.ExtractHandler{}
	payload, _ := json.Marshal(pipeline.ExtractPayload{DocumentID: "doc-1", FilePath: "/nonexistent/path.pdf"})
	job := &models.Job{ID: "job-1", Payload: payload}

	_, err := h.Handle(context.Background(), job)
	require.Error(t, err)
}

func TestExtractHandlerEscalatesToOCRForImageOnlyPDF(t *testing.T) {
	path := writeTempPDF(t, imageOnlyPDF)

	var enqueued bool
	h := &pipeline.ExtractHandler{
		EnqueueOCR: func(ctx context.Context, documentID, filePath string) error {
			enqueued = true
			assert.Equal(t, "doc-1", documentID)
			return nil
		},
	}

	payload, _ := json.Marshal(pipeline.ExtractPayload{DocumentID: "doc-1", FilePath: path})
	job := &models.Job{ID: "job-1", Payload: payload}

	_, err := h.Handle(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, enqueued)
}
