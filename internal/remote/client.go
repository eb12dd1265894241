// Package remote stores the synchronized document as one named file in a provider's
// app-private folder.
package remote

import (
	"context"

	"github.com/MarcoPoloResearchLab/yearsync/internal/syncdoc"
)

// DefaultDocumentName is the file name used when none is configured.
const DefaultDocumentName = "year-view-config.json"

// Client reaches the single remote document. Every failure is an *Error.
type Client interface {
	// Find looks the document up by name and reports its provider id.
	Find(ctx context.Context) (string, bool, error)
	// Read downloads and decodes the document. Decode failures carry CodeInvalidDocument.
	Read(ctx context.Context, fileID string) (syncdoc.Document, error)
	// Write creates the document when fileID is empty and replaces it otherwise.
	// It returns the id of the stored document.
	Write(ctx context.Context, fileID string, doc syncdoc.DocumentV2) (string, error)
	// Delete removes the document. An already absent document is not an error.
	Delete(ctx context.Context, fileID string) error
}

func decodeDocument(payload []byte) (syncdoc.Document, error) {
	doc, err := syncdoc.Decode(payload)
	if err != nil {
		return nil, invalidDocument(err)
	}
	return doc, nil
}
