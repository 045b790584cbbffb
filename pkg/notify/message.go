package notify

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

// BuildIngestedMessage creates Block Kit blocks for a document.ingested
// notification.
func BuildIngestedMessage(documentID, dashboardURL string) []goslack.Block {
	url := documentURL(documentID, dashboardURL)
	text := fmt.Sprintf(":inbox_tray: *Document ingested* — processing started.\n<%s|View in Dashboard>", url)
	return []goslack.Block{section(text)}
}

// BuildCompleteMessage creates Block Kit blocks for a document.complete
// notification.
func BuildCompleteMessage(documentID, dashboardURL string) []goslack.Block {
	url := documentURL(documentID, dashboardURL)
	text := fmt.Sprintf(":white_check_mark: *Document complete*\n<%s|View in Dashboard>", url)
	return []goslack.Block{section(text)}
}

// BuildPartialMessage creates Block Kit blocks for a document.partial
// notification — a document that finished ingestion without every
// mandatory stage succeeding (e.g. no embedding workers available).
func BuildPartialMessage(documentID, reason, dashboardURL string) []goslack.Block {
	url := documentURL(documentID, dashboardURL)
	text := fmt.Sprintf(":warning: *Document partial* — %s\n<%s|View in Dashboard>", truncate(reason), url)
	return []goslack.Block{section(text)}
}

// BuildFailedMessage creates Block Kit blocks for a document.failed
// notification.
func BuildFailedMessage(documentID, reason, dashboardURL string) []goslack.Block {
	url := documentURL(documentID, dashboardURL)
	text := fmt.Sprintf(":x: *Document failed*\n\n*Reason:*\n%s\n\n<%s|View Details>", truncate(reason), url)
	return []goslack.Block{section(text)}
}

// BuildOCREscalatedMessage creates Block Kit blocks for a
// ocr.escalated notification.
func BuildOCREscalatedMessage(documentID, dashboardURL string) []goslack.Block {
	url := documentURL(documentID, dashboardURL)
	text := fmt.Sprintf(":mag: *OCR escalated to heavy engine*\n<%s|View in Dashboard>", url)
	return []goslack.Block{section(text)}
}

func documentURL(documentID, dashboardURL string) string {
	return fmt.Sprintf("%s/documents/%s", dashboardURL, documentID)
}

func section(text string) goslack.Block {
	return goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
		nil, nil,
	)
}

func truncate(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated)_"
}
