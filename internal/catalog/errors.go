// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package catalog

import "errors"

// ErrNotFound is returned when a requested template does not exist.
var ErrNotFound = errors.New("not found")
