package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gartenconnect/internal/entities"
	"gartenconnect/internal/interfaces"
	"gartenconnect/internal/metrics"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	captionName  = "🛍️ *%s*"
	captionPrice = "💰 Precio: %s"
	captionLink  = "🔗 %s"
)

// GalleryRenderer turns a classifier response into outbound units
type GalleryRenderer struct {
	fetcher     interfaces.ImageFetcher
	concurrency int
	log         zerolog.Logger
}

func NewGalleryRenderer(fetcher interfaces.ImageFetcher, concurrency int, log zerolog.Logger) *GalleryRenderer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &GalleryRenderer{fetcher: fetcher, concurrency: concurrency, log: log}
}

// Caption is the text attached to the cover image of a product. The price
// line is left out when the backend sent no usable price.
func Caption(p entities.Product) string {
	lines := []string{fmt.Sprintf(captionName, p.Name)}
	switch {
	case p.PriceText != "":
		lines = append(lines, fmt.Sprintf(captionPrice, p.PriceText))
	case p.Price > 0:
		lines = append(lines, fmt.Sprintf(captionPrice, strconv.FormatFloat(p.Price, 'f', 2, 64)+" €"))
	}
	lines = append(lines, fmt.Sprintf(captionLink, p.Link))
	return strings.Join(lines, "\n")
}

// Render produces the units for resp in send order
func (r *GalleryRenderer) Render(ctx context.Context, resp entities.ClassifierResponse) []entities.RenderUnit {
	switch resp.Kind {
	case entities.ResponsePlainText:
		return []entities.RenderUnit{entities.TextUnit(nonEmpty(resp.Text))}
	case entities.ResponseDiagnostic:
		return []entities.RenderUnit{entities.TextUnit(nonEmpty(resp.Detail))}
	}

	var units []entities.RenderUnit
	for _, p := range resp.Products() {
		units = append(units, r.RenderProduct(ctx, p)...)
	}
	return units
}

type fetchResult struct {
	data []byte
	err  error
}

// RenderProduct fetches every image of p concurrently and emits them in the
// original order. The caption goes on the first image that was fetched
// successfully; failed images are skipped.
func (r *GalleryRenderer) RenderProduct(ctx context.Context, p entities.Product) []entities.RenderUnit {
	results := make([]fetchResult, len(p.Images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, url := range p.Images {
		g.Go(func() error {
			data, err := r.fetcher.Fetch(gctx, url)
			results[i] = fetchResult{data: data, err: err}
			return nil // a failed image never cancels its siblings
		})
	}
	_ = g.Wait()

	caption := Caption(p)
	captioned := false
	units := make([]entities.RenderUnit, 0, len(results))
	for i, res := range results {
		if res.err == nil && len(res.data) == 0 {
			res.err = errors.New("empty body")
		}
		if res.err != nil {
			metrics.ImageFetchFailures.Inc()
			r.log.Warn().Err(res.err).Str("product", p.Name).Str("url", p.Images[i]).Msg("product image skipped")
			continue
		}
		c := ""
		if !captioned {
			c = caption
			captioned = true
		}
		units = append(units, entities.ImageUnit(res.data, mimetype.Detect(res.data).String(), c))
	}

	if !captioned && len(p.Images) > 0 {
		r.log.Warn().Str("product", p.Name).Int("images", len(p.Images)).Msg("all product images failed, product omitted")
	}
	return units
}

func nonEmpty(text string) string {
	if text == "" {
		return FallbackReply
	}
	return text
}
