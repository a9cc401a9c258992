// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

// Package generator talks to the external content and sprite services
// used to create fused characters.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	defaultRequestTimeout = 30 * time.Second
	retryBaseDelay        = 500 * time.Millisecond
	maxRetries            = 3
)

// SourceCharacter describes one fusion input sent to the content service.
type SourceCharacter struct {
	Name    string   `json:"name"`
	Rarity  string   `json:"rarity"`
	Type    string   `json:"type"`
	Moves   []string `json:"moves"`
	BaseHP  int      `json:"base_hp"`
	BaseAtk int      `json:"base_attack"`
	BaseDef int      `json:"base_defense"`
}

// ContentClient generates fused-character content over HTTP. Responses
// are returned raw; the fusion coordinator validates them against its
// schema before trusting any field.
type ContentClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewContentClient creates a ContentClient for the given service.
func NewContentClient(baseURL, apiKey string) (*ContentClient, error) {
	if baseURL == "" {
		return nil, oops.Code("GENERATOR_CONFIG_INVALID").Errorf("content service URL is required")
	}
	return &ContentClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

// GenerateFusion asks the content service to invent a fused character
// from the two sources. Transient failures (5xx, transport errors) are
// retried with fibonacci backoff; 4xx responses fail immediately.
func (c *ContentClient) GenerateFusion(ctx context.Context, first, second SourceCharacter) (json.RawMessage, error) {
	body, err := json.Marshal(struct {
		First  SourceCharacter `json:"first"`
		Second SourceCharacter `json:"second"`
	}{First: first, Second: second})
	if err != nil {
		return nil, oops.Code("GENERATOR_REQUEST_FAILED").
			With("operation", "marshal request").
			Wrap(err)
	}

	var payload json.RawMessage
	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(retryBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, err := c.generateOnce(ctx, body)
		if err != nil {
			return err
		}
		payload = result
		return nil
	})
	if err != nil {
		if _, coded := oops.AsOops(err); coded {
			return nil, err
		}
		return nil, oops.Code("GENERATOR_UNAVAILABLE").
			With("service", c.baseURL).
			Wrap(err)
	}
	return payload, nil
}

func (c *ContentClient) generateOnce(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/fusions", bytes.NewReader(body))
	if err != nil {
		return nil, oops.Code("GENERATOR_REQUEST_FAILED").Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport errors are worth another attempt.
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, retry.RetryableError(err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, retry.RetryableError(
			fmt.Errorf("content service returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, oops.Code("GENERATOR_REJECTED").
			With("status", resp.StatusCode).
			Errorf("content service rejected the request")
	}

	return json.RawMessage(respBody), nil
}
