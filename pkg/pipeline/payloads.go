package pipeline

import "github.com/arkhamforge/docintel/pkg/events"

// textForwardPayload is published on a "stage.<name>.completed" topic by
// any stage whose successor is Normalize. It embeds events.StagePayload
// (flattened into the same JSON object, not nested) so the Pool
// Dispatcher's admission-agnostic forwarding — it republishes the
// completion event's payload bytes verbatim as the next stage's job
// payload — hands Normalize a raw_text field to unmarshal into
// NormalizePayload, while CompletionTracker's StagePayload unmarshal of
// the same bytes still finds document_id/job_id/stage/status/error.
type textForwardPayload struct {
	events.StagePayload
	RawText string `json:"raw_text"`
}

// ExtractPayload is the Extract stage's job payload.
type ExtractPayload struct {
	DocumentID string `json:"document_id"`
	FilePath   string `json:"file_path"`
}

// OCRPayload is the OCR stage's job payload, enqueued by Extract when a
// PDF (or image) has no embedded text layer.
type OCRPayload struct {
	DocumentID string `json:"document_id"`
	FilePath   string `json:"file_path"`
}

// NormalizePayload is the Normalize stage's job payload.
type NormalizePayload struct {
	DocumentID string `json:"document_id"`
	RawText    string `json:"raw_text"`
}

// NERPayload is the NER stage's job payload.
type NERPayload struct {
	DocumentID string `json:"document_id"`
}

// ChunkPayload is the Chunk stage's job payload.
type ChunkPayload struct {
	DocumentID string `json:"document_id"`
}

// EmbedPayload is the Embed stage's job payload.
type EmbedPayload struct {
	DocumentID string `json:"document_id"`
	Collection string `json:"collection"`
}
