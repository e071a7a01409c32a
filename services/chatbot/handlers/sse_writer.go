// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/datatypes"
)

// ChunkWriter writes stream chunks to an SSE response. Implementations
// handle the wire format (event: type\ndata: json\n\n) and flush after
// every chunk so delivery is incremental.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ChunkWriter interface {
	// WriteContent emits one word chunk. final marks the last content
	// chunk of the stream.
	WriteContent(word string, final bool) error

	// WriteMetadata emits the single terminal metadata chunk.
	WriteMetadata(meta datatypes.ChunkMetadata) error

	// WriteError emits the single terminal error chunk. The message must
	// already be sanitized for client display.
	WriteError(message string) error
}

// sseChunkWriter implements ChunkWriter over http.ResponseWriter.
//
// # Limitations
//
//   - Requires http.Flusher support.
//   - Cannot be reused across requests.
type sseChunkWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewChunkWriter wraps w for SSE chunk emission. The caller must set SSE
// headers via SetSSEHeaders before the first write.
func NewChunkWriter(w http.ResponseWriter) (ChunkWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseChunkWriter{writer: w, flusher: flusher}, nil
}

func (w *sseChunkWriter) WriteContent(word string, final bool) error {
	return w.writeChunk(datatypes.StreamChunk{
		Type:    datatypes.ChunkTypeContent,
		Data:    word,
		IsFinal: final,
	})
}

func (w *sseChunkWriter) WriteMetadata(meta datatypes.ChunkMetadata) error {
	return w.writeChunk(datatypes.StreamChunk{
		Type:    datatypes.ChunkTypeMetadata,
		Data:    meta,
		IsFinal: true,
	})
}

func (w *sseChunkWriter) WriteError(message string) error {
	return w.writeChunk(datatypes.StreamChunk{
		Type:    datatypes.ChunkTypeError,
		Data:    message,
		IsFinal: true,
	})
}

// writeChunk assigns chunk metadata, serializes and flushes one SSE event.
func (w *sseChunkWriter) writeChunk(chunk datatypes.StreamChunk) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	chunk.Id = uuid.NewString()
	chunk.CreatedAt = time.Now().UnixMilli()

	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", chunk.Type, data); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetSSEHeaders configures response headers for SSE streaming. Must be
// called before any write to the response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

var _ ChunkWriter = (*sseChunkWriter)(nil)
