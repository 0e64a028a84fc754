// Package media downloads post images and shrinks them to fit the
// attachment limit of the posting service.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"golang.org/x/image/draw"

	"github.com/salcido/reddibot/internal/domain"
)

const (
	// DefaultMaxBytes is the posting service's attachment ceiling.
	DefaultMaxBytes = 5_000_000
	// DefaultWidth is the width oversized images are scaled down to.
	DefaultWidth = 1000

	downloadCap  = 50 << 20
	jpegQuality  = 90
	fetchTimeout = 20 * time.Second
)

var errTooLarge = errors.New("media exceeds download cap")

// Fetcher downloads media payloads.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

// Fetch returns the body at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, downloadCap+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) > downloadCap {
		return nil, errTooLarge
	}
	return data, nil
}

// Prepare base64-encodes data for upload, resizing first when it is larger
// than maxBytes.
func Prepare(data []byte, maxBytes, width int) (string, error) {
	if len(data) > maxBytes {
		resized, err := Resize(data, width)
		if err != nil {
			return "", err
		}
		data = resized
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Resize scales an encoded jpeg or png to width pixels, keeping the aspect
// ratio, and re-encodes it as jpeg. Narrower images are only re-encoded.
func Resize(data []byte, width int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.ResizeError{Err: fmt.Errorf("decode: %w", err)}
	}

	b := src.Bounds()
	dst := image.Image(src)
	if b.Dx() > width {
		height := b.Dy() * width / b.Dx()
		if height < 1 {
			height = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, b, draw.Over, nil)
		dst = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, &domain.ResizeError{Err: fmt.Errorf("encode: %w", err)}
	}
	return buf.Bytes(), nil
}
