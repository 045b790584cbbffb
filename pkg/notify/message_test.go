package notify

import (
	"strings"
	"testing"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIngestedMessage(t *testing.T) {
	blocks := BuildIngestedMessage("doc-1", "https://dash.example.com")
	require.Len(t, blocks, 1)

	section := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, section.Text.Text, ":inbox_tray:")
	assert.Contains(t, section.Text.Text, "https://dash.example.com/documents/doc-1")
}

func TestBuildCompleteMessage(t *testing.T) {
	blocks := BuildCompleteMessage("doc-1", "https://dash.example.com")
	require.Len(t, blocks, 1)

	section := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, section.Text.Text, ":white_check_mark:")
	assert.Contains(t, section.Text.Text, "Document complete")
}

func TestBuildPartialMessage(t *testing.T) {
	blocks := BuildPartialMessage("doc-1", "no gpu-embed workers registered", "https://dash.example.com")
	require.Len(t, blocks, 1)

	section := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, section.Text.Text, ":warning:")
	assert.Contains(t, section.Text.Text, "no gpu-embed workers registered")
}

func TestBuildFailedMessage(t *testing.T) {
	blocks := BuildFailedMessage("doc-1", "extraction failed: malformed PDF", "https://dash.example.com")
	require.Len(t, blocks, 1)

	section := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, section.Text.Text, ":x:")
	assert.Contains(t, section.Text.Text, "extraction failed: malformed PDF")
}

func TestBuildOCREscalatedMessage(t *testing.T) {
	blocks := BuildOCREscalatedMessage("doc-1", "https://dash.example.com")
	require.Len(t, blocks, 1)

	section := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, section.Text.Text, "OCR escalated")
}

func TestTruncateLongReason(t *testing.T) {
	reason := strings.Repeat("x", maxBlockTextLength+500)
	blocks := BuildFailedMessage("doc-1", reason, "https://dash.example.com")

	section := blocks[0].(*goslack.SectionBlock)
	assert.LessOrEqual(t, len(section.Text.Text), maxBlockTextLength+200)
	assert.Contains(t, section.Text.Text, "truncated")
}
