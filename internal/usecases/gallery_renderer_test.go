package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"gartenconnect/internal/entities"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaption(t *testing.T) {
	tests := []struct {
		name    string
		product entities.Product
		want    string
	}{
		{
			name:    "numeric price",
			product: entities.Product{Name: "Maceta", Price: 12.5, Link: "https://shop/1"},
			want:    "🛍️ *Maceta*\n💰 Precio: 12.50 €\n🔗 https://shop/1",
		},
		{
			name:    "free text price",
			product: entities.Product{Name: "Maceta", PriceText: "19.99 EUR", Link: "https://shop/1"},
			want:    "🛍️ *Maceta*\n💰 Precio: 19.99 EUR\n🔗 https://shop/1",
		},
		{
			name:    "no price",
			product: entities.Product{Name: "Maceta", Link: "https://shop/1"},
			want:    "🛍️ *Maceta*\n🔗 https://shop/1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Caption(tt.product))
		})
	}
}

func TestRenderProductCaptionSkipsFailedImage(t *testing.T) {
	fetcher := &fakeFetcher{stubs: map[string]fetchStub{
		"https://img/u1": {err: errors.New("403")},
		"https://img/u2": {data: pngBytes},
		"https://img/u3": {data: jpegBytes},
	}}
	r := NewGalleryRenderer(fetcher, 3, zerolog.Nop())
	p := entities.Product{Name: "Maceta", Price: 12.5, Link: "l", Images: []string{"https://img/u1", "https://img/u2", "https://img/u3"}}

	units := r.RenderProduct(context.Background(), p)

	require.Len(t, units, 2)
	assert.Equal(t, entities.UnitImage, units[0].Kind)
	assert.Equal(t, pngBytes, units[0].Image)
	assert.Equal(t, "image/png", units[0].Mimetype)
	assert.Equal(t, Caption(p), units[0].Caption)
	assert.Equal(t, jpegBytes, units[1].Image)
	assert.Empty(t, units[1].Caption)
}

func TestRenderProductKeepsOrderUnderConcurrency(t *testing.T) {
	fetcher := &fakeFetcher{stubs: map[string]fetchStub{
		"a": {data: []byte("first image"), delay: 30 * time.Millisecond},
		"b": {data: []byte("second image"), delay: 10 * time.Millisecond},
		"c": {data: []byte("third image")},
	}}
	r := NewGalleryRenderer(fetcher, 3, zerolog.Nop())

	units := r.RenderProduct(context.Background(), entities.Product{Name: "x", Images: []string{"a", "b", "c"}})

	require.Len(t, units, 3)
	assert.Equal(t, "first image", string(units[0].Image))
	assert.Equal(t, "second image", string(units[1].Image))
	assert.Equal(t, "third image", string(units[2].Image))
	assert.NotEmpty(t, units[0].Caption)
}

func TestRenderAllImagesFailedContinues(t *testing.T) {
	fetcher := &fakeFetcher{stubs: map[string]fetchStub{
		"bad1": {err: errors.New("timeout")},
		"bad2": {data: []byte{}},
		"good": {data: jpegBytes},
	}}
	r := NewGalleryRenderer(fetcher, 2, zerolog.Nop())
	resp := entities.ClassifierResponse{
		Kind: entities.ResponseProductList,
		Items: []entities.Product{
			{Name: "Rota", Images: []string{"bad1", "bad2"}},
			{Name: "Buena", Price: 3, Link: "l", Images: []string{"good"}},
		},
	}

	units := r.Render(context.Background(), resp)

	require.Len(t, units, 1)
	assert.Contains(t, units[0].Caption, "Buena")
}

func TestRenderPairOrder(t *testing.T) {
	fetcher := &fakeFetcher{stubs: map[string]fetchStub{
		"top":    {data: []byte("top image")},
		"bottom": {data: []byte("bottom image")},
	}}
	r := NewGalleryRenderer(fetcher, 1, zerolog.Nop())
	resp := entities.ClassifierResponse{
		Kind:   entities.ResponseProductPair,
		Top:    &entities.Product{Name: "Camisa", Images: []string{"top"}},
		Bottom: &entities.Product{Name: "Pantalón", Images: []string{"bottom"}},
	}

	units := r.Render(context.Background(), resp)

	require.Len(t, units, 2)
	assert.Contains(t, units[0].Caption, "Camisa")
	assert.Contains(t, units[1].Caption, "Pantalón")
}

func TestRenderText(t *testing.T) {
	r := NewGalleryRenderer(&fakeFetcher{}, 1, zerolog.Nop())

	tests := []struct {
		name string
		resp entities.ClassifierResponse
		want string
	}{
		{name: "plain", resp: entities.ClassifierResponse{Kind: entities.ResponsePlainText, Text: "hola"}, want: "hola"},
		{name: "empty plain", resp: entities.ClassifierResponse{Kind: entities.ResponsePlainText}, want: FallbackReply},
		{name: "diagnostic", resp: entities.ClassifierResponse{Kind: entities.ResponseDiagnostic, Detail: "rate limited"}, want: "rate limited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units := r.Render(context.Background(), tt.resp)
			require.Len(t, units, 1)
			assert.Equal(t, entities.TextUnit(tt.want), units[0])
		})
	}
}

func TestRenderEmptyList(t *testing.T) {
	r := NewGalleryRenderer(&fakeFetcher{}, 1, zerolog.Nop())
	units := r.Render(context.Background(), entities.ClassifierResponse{Kind: entities.ResponseProductList})
	assert.Empty(t, units)
}
