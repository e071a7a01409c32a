// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package r2r

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrEmptyReply is returned by SendAgentMessage when the backend responds
// successfully but the assistant message carries no content.
var ErrEmptyReply = errors.New("backend returned an empty reply")

// APIError reports a failed call against the R2R backend. It carries the
// HTTP status and the raw response body so callers can log the backend's
// own diagnostics without re-reading the response.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("r2r %s failed with status %d: %s", e.Op, e.Status, e.Body)
}

// DuplicateDocumentError classifies the backend's "document already exists"
// rejection. The id of the pre-existing document is recovered from the
// error payload so callers can treat the upload as a success.
//
// Classification happens exactly once, at the facade boundary
// (classifyUploadError); the error never escapes CreateDocument.
type DuplicateDocumentError struct {
	DocumentID string
}

func (e *DuplicateDocumentError) Error() string {
	return fmt.Sprintf("document %s already exists", e.DocumentID)
}

// duplicateDocPattern matches the backend's duplicate-document message,
// e.g. "Document 9fbe403b-c11c-5aae-8ade-ef22980c3ad1 already exists".
var duplicateDocPattern = regexp.MustCompile(`Document ([a-fA-F0-9-]+) already exists`)

// classifyUploadError inspects a failed upload response body. If the
// backend reports a benign duplicate it returns a DuplicateDocumentError
// carrying the recovered id; otherwise it returns the APIError unchanged.
func classifyUploadError(apiErr *APIError) error {
	if m := duplicateDocPattern.FindStringSubmatch(apiErr.Body); m != nil {
		return &DuplicateDocumentError{DocumentID: m[1]}
	}
	return apiErr
}
