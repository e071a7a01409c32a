// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// Chunk types emitted on the send-message stream. Every stream ends in
// exactly one terminal chunk: metadata on success, error on failure.
const (
	ChunkTypeContent  = "content"
	ChunkTypeMetadata = "metadata"
	ChunkTypeError    = "error"
)

// StreamChunk is one unit of the ordered, terminated output sequence
// delivered to a client during message streaming.
//
// # Fields
//
//   - Id: unique chunk id for ordering and deduplication.
//   - Type: content, metadata or error.
//   - Data: a word (content), ChunkMetadata (metadata) or a message
//     string (error).
//   - IsFinal: true on the last content chunk and on the terminal
//     metadata/error chunk.
//   - CreatedAt: Unix milliseconds at emission.
type StreamChunk struct {
	Id        string `json:"id"`
	Type      string `json:"type"`
	Data      any    `json:"data"`
	IsFinal   bool   `json:"is_final"`
	CreatedAt int64  `json:"created_at"`
}

// ChunkMetadata is the payload of the terminal metadata chunk.
type ChunkMetadata struct {
	ConversationID string `json:"conversation_id"`
	DocumentID     string `json:"document_id"`
	SessionID      string `json:"session_id"`
}
