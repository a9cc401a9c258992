// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Frame geometry the game client expects when slicing sheets.
const (
	frameSize      = 64
	idleFrames     = 4
	battleFrames   = 4
	spinFrames     = 8
	spinSheetCols  = 4
	maxFramePixels = 1 << 22 // decode guard for service responses
)

// SheetPaths holds the asset-relative paths of the composed sprite sheets.
type SheetPaths struct {
	Default     string
	Spinning    string
	BattleLeft  string
	BattleRight string
}

// SpriteClient generates pixel-art frames over HTTP and composes them
// into the sheet layout the game client loads.
type SpriteClient struct {
	baseURL    string
	apiKey     string
	assetDir   string
	httpClient *http.Client
}

// NewSpriteClient creates a SpriteClient writing sheets under assetDir.
func NewSpriteClient(baseURL, apiKey, assetDir string) (*SpriteClient, error) {
	if baseURL == "" {
		return nil, oops.Code("GENERATOR_CONFIG_INVALID").Errorf("sprite service URL is required")
	}
	if assetDir == "" {
		return nil, oops.Code("GENERATOR_CONFIG_INVALID").Errorf("asset directory is required")
	}
	return &SpriteClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		assetDir:   assetDir,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

// GenerateSheets fetches frames for each pose and writes the composed
// sheets under the sprite set's directory. A partial failure leaves no
// sheets behind so the caller can fall back to stock sprites.
func (c *SpriteClient) GenerateSheets(ctx context.Context, spriteSet, description string) (SheetPaths, error) {
	dir := filepath.Join(c.assetDir, spriteSet)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SheetPaths{}, oops.Code("SPRITE_WRITE_FAILED").
			With("dir", dir).
			Wrap(err)
	}

	poses := []struct {
		pose   string
		frames int
		cols   int
		file   string
	}{
		{"idle", idleFrames, idleFrames, "default.png"},
		{"spin", spinFrames, spinSheetCols, "spinning.png"},
		{"battle_left", battleFrames, battleFrames, "battle_left.png"},
		{"battle_right", battleFrames, battleFrames, "battle_right.png"},
	}

	paths := make(map[string]string, len(poses))
	for _, p := range poses {
		frames, err := c.fetchFrames(ctx, description, p.pose, p.frames)
		if err != nil {
			c.cleanup(dir)
			return SheetPaths{}, err
		}
		sheet, err := composeSheet(frames, p.cols)
		if err != nil {
			c.cleanup(dir)
			return SheetPaths{}, err
		}
		path := filepath.Join(dir, p.file)
		if err := writePNG(path, sheet); err != nil {
			c.cleanup(dir)
			return SheetPaths{}, err
		}
		paths[p.pose] = filepath.ToSlash(filepath.Join("sprites", spriteSet, p.file))
	}

	return SheetPaths{
		Default:     paths["idle"],
		Spinning:    paths["spin"],
		BattleLeft:  paths["battle_left"],
		BattleRight: paths["battle_right"],
	}, nil
}

func (c *SpriteClient) cleanup(dir string) {
	_ = os.RemoveAll(dir) //nolint:errcheck // best-effort removal of partial output
}

// DiscardSheets removes a previously generated sprite set. Callers use
// it when the state change referencing the sheets does not commit.
func (c *SpriteClient) DiscardSheets(spriteSet string) {
	c.cleanup(filepath.Join(c.assetDir, spriteSet))
}

// fetchFrames requests count frames for a pose. The service returns
// base64-encoded 64x64 PNGs.
func (c *SpriteClient) fetchFrames(ctx context.Context, description, pose string, count int) ([]image.Image, error) {
	body, err := json.Marshal(struct {
		Description string `json:"description"`
		Pose        string `json:"pose"`
		Frames      int    `json:"frames"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
	}{description, pose, count, frameSize, frameSize})
	if err != nil {
		return nil, oops.Code("SPRITE_REQUEST_FAILED").Wrap(err)
	}

	var frames []image.Image
	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(retryBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, err := c.fetchOnce(ctx, body)
		if err != nil {
			return err
		}
		frames = result
		return nil
	})
	if err != nil {
		if _, coded := oops.AsOops(err); coded {
			return nil, err
		}
		return nil, oops.Code("SPRITE_UNAVAILABLE").
			With("pose", pose).
			Wrap(err)
	}
	if len(frames) != count {
		return nil, oops.Code("SPRITE_BAD_RESPONSE").
			With("pose", pose).
			Errorf("expected %d frames, got %d", count, len(frames))
	}
	return frames, nil
}

func (c *SpriteClient) fetchOnce(ctx context.Context, body []byte) ([]image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/frames", bytes.NewReader(body))
	if err != nil {
		return nil, oops.Code("SPRITE_REQUEST_FAILED").Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	switch {
	case resp.StatusCode >= 500:
		return nil, retry.RetryableError(
			fmt.Errorf("sprite service returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, oops.Code("SPRITE_REJECTED").
			With("status", resp.StatusCode).
			Errorf("sprite service rejected the request")
	}

	var parsed struct {
		Frames []string `json:"frames"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, oops.Code("SPRITE_BAD_RESPONSE").Wrap(err)
	}

	frames := make([]image.Image, 0, len(parsed.Frames))
	for i, encoded := range parsed.Frames {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, oops.Code("SPRITE_BAD_RESPONSE").
				With("frame", i).
				Wrap(err)
		}
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, oops.Code("SPRITE_BAD_RESPONSE").
				With("frame", i).
				Wrap(err)
		}
		bounds := img.Bounds()
		if bounds.Dx()*bounds.Dy() > maxFramePixels {
			return nil, oops.Code("SPRITE_BAD_RESPONSE").
				With("frame", i).
				Errorf("frame too large: %dx%d", bounds.Dx(), bounds.Dy())
		}
		frames = append(frames, img)
	}
	return frames, nil
}

// composeSheet tiles frames left to right, wrapping after cols columns.
// Frames are drawn at the 64x64 grid the game client slices on.
func composeSheet(frames []image.Image, cols int) (image.Image, error) {
	if len(frames) == 0 {
		return nil, oops.Code("SPRITE_BAD_RESPONSE").Errorf("no frames to compose")
	}
	rows := (len(frames) + cols - 1) / cols
	sheet := image.NewRGBA(image.Rect(0, 0, cols*frameSize, rows*frameSize))

	for i, frame := range frames {
		col, row := i%cols, i/cols
		target := image.Rect(col*frameSize, row*frameSize, (col+1)*frameSize, (row+1)*frameSize)
		draw.Draw(sheet, target, frame, frame.Bounds().Min, draw.Over)
	}
	return sheet, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return oops.Code("SPRITE_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close() //nolint:errcheck // encode error takes precedence
		return oops.Code("SPRITE_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("SPRITE_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
