// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request, response and stream chunk types for
// the chatbot service.
package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/document"
)

// MaxMessageContentBytes is the maximum size of one chat message.
// Bounds are in bytes, not runes, to cap memory per request.
const MaxMessageContentBytes = 32 * 1024

// chatValidate is the shared validator for request datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// OwnerID is an opaque user identifier. The frontend historically sends
// it as a JSON number but string identifiers are accepted too.
type OwnerID string

// UnmarshalJSON accepts both `42` and `"42"`.
func (o *OwnerID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = OwnerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*o = OwnerID(n.String())
		return nil
	}
	return fmt.Errorf("user_id must be a string or a number")
}

// InitializeChatRequest starts a new chat session: the applications and
// questions records are rendered into a document, uploaded to the
// backend, and a session is created around the result.
type InitializeChatRequest struct {
	UserID           OwnerID                   `json:"user_id" validate:"required"`
	ApplicationsData document.ApplicationsData `json:"applications_data"`
	QuestionsData    document.QuestionsData    `json:"questions_data"`
}

// Validate checks the request after JSON binding.
func (r *InitializeChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// InitializeChatResponse reports the created session.
type InitializeChatResponse struct {
	SessionID  string `json:"session_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	DocumentID string `json:"document_id,omitempty"`
}

// SendMessageRequest carries one user message to an existing session.
// SessionID is deliberately not constrained to a uuid shape: unknown ids
// must surface as 404, not 400.
type SendMessageRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Message   string `json:"message" validate:"required,maxbytes"`
}

// Validate checks the request after JSON binding.
func (r *SendMessageRequest) Validate() error {
	return chatValidate.Struct(r)
}

// SendMessageResponse is the non-streaming reply variant.
type SendMessageResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// CloseChatRequest tears down a session explicitly.
type CloseChatRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// Validate checks the request after JSON binding.
func (r *CloseChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// SessionStatusResponse describes one session for the status endpoint.
type SessionStatusResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	LastActivity    string `json:"last_activity,omitempty"`
	DocumentID      string `json:"document_id,omitempty"`
	ConversationID  string `json:"conversation_id,omitempty"`
	IngestionStatus string `json:"ingestion_status,omitempty"`
}

// HealthResponse is the health endpoint body.
type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	Timestamp      string `json:"timestamp"`
}
