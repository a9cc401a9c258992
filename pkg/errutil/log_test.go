// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package errutil_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuseforge/fuseforge/pkg/errutil"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("LEDGER_APPEND_FAILED").
		With("account_id", "01ARZ3NDEKTSV4RRFFQ69G5FAV").
		Errorf("insert rejected")

	errutil.LogError(logger, "ledger append failed", err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ledger append failed", entry["msg"])
	assert.Equal(t, "LEDGER_APPEND_FAILED", entry["code"])
	assert.Contains(t, entry["error"], "insert rejected")
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "something failed", errors.New("plain error"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "something failed", entry["msg"])
	assert.Equal(t, "plain error", entry["error"])
}
