// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package r2r wraps the remote R2R retrieval-augmented-generation backend.
// Each chat session owns exactly one Client; the Client exposes document
// upload/delete, conversation creation and agent message exchange as
// single-shot operations that may fail. Failures are reported upward as
// typed errors and are never fatal to the calling session.
package r2r

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("portfolio.chatbot.r2r")

// queryPreamble is prepended to every user message so the model answers
// from the retrieved context without referencing the document itself.
const queryPreamble = "### Answer the following query without any additional context or mentioning the document in your response:\n"

// GenerationOptions configures the backend's generation step for an agent
// call. Stream is always false here: streaming is synthesized locally by
// the delivery controller, never by the backend.
type GenerationOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	SearchLimit int
}

// Client is the facade over one R2R backend. A Client is exclusively owned
// by a single session and must not be shared across sessions.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient validates the backend address and returns a ready Client.
// An unset or unparsable base URL is reported as an error so the caller
// can surface "backend unavailable" before any session state is created.
func NewClient(baseURL, apiKey string) (*Client, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("R2R base URL is not configured")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("R2R base URL %q is invalid", baseURL)
	}
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}, nil
}

type documentCreateRequest struct {
	RawText  string            `json:"raw_text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type documentCreateResponse struct {
	Results struct {
		DocumentID string `json:"document_id"`
		Message    string `json:"message"`
		TaskID     string `json:"task_id"`
	} `json:"results"`
}

// CreateDocument uploads the generated portfolio text for RAG ingestion
// and returns the backend-assigned document id.
//
// If the backend rejects the upload because the document already exists,
// the existing id is recovered from the error payload and returned as a
// success. All other failures surface as errors.
func (c *Client) CreateDocument(ctx context.Context, text string, metadata map[string]string) (string, error) {
	ctx, span := tracer.Start(ctx, "r2r.CreateDocument")
	defer span.End()

	var resp documentCreateResponse
	err := c.do(ctx, http.MethodPost, "/v3/documents", documentCreateRequest{
		RawText:  text,
		Metadata: metadata,
	}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			var dup *DuplicateDocumentError
			if errors.As(classifyUploadError(apiErr), &dup) {
				slog.Info("document already exists in backend, reusing it", "document_id", dup.DocumentID)
				return dup.DocumentID, nil
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("upload document: %w", err)
	}

	slog.Info("document uploaded to backend",
		"document_id", resp.Results.DocumentID,
		"task_id", resp.Results.TaskID,
	)
	span.SetAttributes(attribute.String("r2r.document_id", resp.Results.DocumentID))
	return resp.Results.DocumentID, nil
}

// DeleteDocument removes a document from the backend. Deleting an absent
// document is not an error; teardown paths call this best-effort and must
// never be blocked by it.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "r2r.DeleteDocument")
	defer span.End()

	if documentID == "" {
		return nil
	}
	err := c.do(ctx, http.MethodDelete, "/v3/documents/"+url.PathEscape(documentID), nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

type conversationCreateResponse struct {
	Results struct {
		ID string `json:"id"`
	} `json:"results"`
}

// CreateConversation starts a new backend conversation and returns its id.
// Called at most once per session, lazily, on the first message.
func (c *Client) CreateConversation(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "r2r.CreateConversation")
	defer span.End()

	var resp conversationCreateResponse
	if err := c.do(ctx, http.MethodPost, "/v3/conversations", struct{}{}, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("create conversation: %w", err)
	}
	slog.Info("backend conversation created", "conversation_id", resp.Results.ID)
	return resp.Results.ID, nil
}

type agentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type agentRequest struct {
	Message        agentMessage   `json:"message"`
	SearchSettings searchSettings `json:"search_settings"`
	RAGGeneration  ragGeneration  `json:"rag_generation_config"`
	ConversationID string         `json:"conversation_id"`
	Mode           string         `json:"mode"`
}

type searchSettings struct {
	Limit   int           `json:"limit"`
	Filters searchFilters `json:"filters"`
}

type searchFilters struct {
	DocumentID string `json:"document_id"`
}

type ragGeneration struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens_to_sample"`
	Stream      bool    `json:"stream"`
}

type agentResponse struct {
	Results struct {
		Messages []agentMessage `json:"messages"`
	} `json:"results"`
}

// SendAgentMessage sends one user message through the backend's agent
// endpoint and returns the assistant's complete reply. Retrieval is scoped
// to the session's single document; generation follows opts. An empty
// assistant reply is reported as ErrEmptyReply.
func (c *Client) SendAgentMessage(ctx context.Context, conversationID, documentID, text string, opts GenerationOptions) (string, error) {
	ctx, span := tracer.Start(ctx, "r2r.SendAgentMessage")
	defer span.End()
	span.SetAttributes(
		attribute.String("r2r.conversation_id", conversationID),
		attribute.String("r2r.model", opts.Model),
	)

	req := agentRequest{
		Message:        agentMessage{Role: "user", Content: queryPreamble + text},
		SearchSettings: searchSettings{Limit: opts.SearchLimit, Filters: searchFilters{DocumentID: documentID}},
		RAGGeneration: ragGeneration{
			Model:       opts.Model,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			Stream:      false,
		},
		ConversationID: conversationID,
		Mode:           "rag",
	}

	var resp agentResponse
	if err := c.do(ctx, http.MethodPost, "/v3/retrieval/agent", req, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("send agent message: %w", err)
	}

	if len(resp.Results.Messages) == 0 {
		return "", ErrEmptyReply
	}
	reply := resp.Results.Messages[len(resp.Results.Messages)-1].Content
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// DocumentInfo is the subset of the backend's document overview surfaced
// on the session-status endpoint.
type DocumentInfo struct {
	ID              string `json:"id"`
	IngestionStatus string `json:"ingestion_status"`
	SizeInBytes     int64  `json:"size_in_bytes"`
	CreatedAt       string `json:"created_at"`
}

type documentOverviewResponse struct {
	Results DocumentInfo `json:"results"`
}

// DocumentOverview fetches ingestion status for a document.
func (c *Client) DocumentOverview(ctx context.Context, documentID string) (*DocumentInfo, error) {
	ctx, span := tracer.Start(ctx, "r2r.DocumentOverview")
	defer span.End()

	var resp documentOverviewResponse
	err := c.do(ctx, http.MethodGet, "/v3/documents/"+url.PathEscape(documentID), nil, &resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("document overview %s: %w", documentID, err)
	}
	return &resp.Results, nil
}

// do issues one JSON request against the backend and decodes the response
// into out (when non-nil). Non-2xx responses become *APIError with the
// body preserved for classification and logging.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Op: method + " " + path, Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse %s %s response: %w", method, path, err)
		}
	}
	return nil
}
