package fakebluesky

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/semaphore"
)

const (
	topPercentage   = 0.3
	blueThreshold   = 0.5
	rgbBlueRatio    = 1.2
	minBlueValue    = 100
	maxWidth        = 600
	downloadTimeout = 5 * time.Second

	// imageAnalysisWeight bounds concurrent image analyses at 2 per post,
	// regardless of how many images the post attaches.
	imageAnalysisWeight = 2
)

var httpClient = &http.Client{}

// shouldExclude runs the blue-sky detection pipeline over every image URL
// and applies the conservative rule: any flagged image, or any failed
// analysis (download, decode, timeout), excludes the whole post.
func shouldExclude(ctx context.Context, urls []string) bool {
	if len(urls) == 0 {
		return false
	}

	sem := semaphore.NewWeighted(imageAnalysisWeight)
	results := make(chan bool, len(urls))

	for _, u := range urls {
		u := u
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- true
				return
			}
			defer sem.Release(1)

			flagged, err := isBlueSkyImage(ctx, u)
			if err != nil {
				results <- true
				return
			}
			results <- flagged
		}()
	}

	exclude := false
	for range urls {
		if <-results {
			exclude = true
		}
	}
	return exclude
}

// isBlueSkyImage downloads, decodes, resizes, and analyzes one image URL.
func isBlueSkyImage(ctx context.Context, url string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	img, err := downloadAndResize(ctx, url)
	if err != nil {
		return false, err
	}
	return analyzeTopPixels(img), nil
}

func downloadAndResize(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read image bytes: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	if width <= maxWidth {
		return img, nil
	}

	height := bounds.Dy()
	newHeight := int(float64(height) * (float64(maxWidth) / float64(width)))
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst, nil
}

// analyzeTopPixels scans the top topPercentage rows and flags the image if
// at least blueThreshold of those pixels are "blue".
func analyzeTopPixels(img image.Image) bool {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	topHeight := int(float64(height) * topPercentage)
	if topHeight == 0 {
		return false
	}

	total := 0
	blue := 0
	for y := bounds.Min.Y; y < bounds.Min.Y+topHeight; y++ {
		for x := bounds.Min.X; x < bounds.Min.X+width; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA() returns 16-bit-scaled components; reduce to 8-bit.
			r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(b>>8)
			total++
			if isBluePixel(r8, g8, b8) {
				blue++
			}
		}
	}

	if total == 0 {
		return false
	}
	return float64(blue)/float64(total) >= blueThreshold
}

func isBluePixel(r, g, b uint8) bool {
	rf, gf, bf := float64(r), float64(g), float64(b)
	return b >= minBlueValue && bf > rf*rgbBlueRatio && bf > gf*rgbBlueRatio
}
