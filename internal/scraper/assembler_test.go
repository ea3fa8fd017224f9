package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<html><body>
<h1 class="Product__title">Борщ с говядиной</h1>
<meta itemprop="price" content="189">
<div class="ProductCard__weight">0,5 кг</div>
<img src="//img.vkusvill.ru/pim/images/site_LargeWebP/borshch.webp?v=2" class="gallery">
<img src="https://cdn.other/banner.png">
</body></html>`

type memImages struct {
	saved map[string][]byte
	err   error
}

func (m *memImages) Put(_ context.Context, name string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[name] = data
	return "data/pictures/" + name, nil
}

const borshchURL = "https://shop.example/goods/borshch-42.html"

func TestAssembler_Fields(t *testing.T) {
	ff := &fakeFetcher{pages: map[string]string{borshchURL: productPage}}
	a, err := NewAssembler(AssemblerConfig{Fetcher: ff}, nil)
	require.NoError(t, err)

	p, err := a.Assemble(context.Background(), borshchURL)
	require.NoError(t, err)

	assert.Equal(t, borshchURL, p.URL)
	require.NotNil(t, p.Name)
	assert.Equal(t, "Борщ с говядиной", *p.Name)
	require.NotNil(t, p.PriceRub)
	assert.InDelta(t, 189, *p.PriceRub, 1e-9)
	require.NotNil(t, p.WeightG)
	assert.InDelta(t, 500, *p.WeightG, 1e-9)
	assert.Nil(t, p.KcalPer100g)
	assert.Nil(t, p.Brand)
	assert.Nil(t, p.ImagePath, "images are off by default")
	assert.Equal(t, 1, len(ff.calls), "one fetch per product")
}

func TestAssembler_DownloadsImage(t *testing.T) {
	imgURL := "https://img.vkusvill.ru/pim/images/site_LargeWebP/borshch.webp?v=2"
	ff := &fakeFetcher{pages: map[string]string{
		borshchURL: productPage,
		imgURL:     "JPEGDATA",
	}}
	store := &memImages{}
	a, err := NewAssembler(AssemblerConfig{Fetcher: ff, Images: store, DownloadImages: true}, nil)
	require.NoError(t, err)

	p, err := a.Assemble(context.Background(), borshchURL)
	require.NoError(t, err)

	require.NotNil(t, p.ImagePath)
	assert.Equal(t, "data/pictures/borshch-42.jpg", *p.ImagePath)
	assert.Equal(t, "JPEGDATA", string(store.saved["borshch-42.jpg"]))
	assert.Equal(t, borshchURL, ff.referers[imgURL], "image request carries the product page as referer")
}

func TestAssembler_ImageFailureLeavesPathUnset(t *testing.T) {
	t.Run("download", func(t *testing.T) {
		ff := &fakeFetcher{pages: map[string]string{borshchURL: productPage}}
		a, err := NewAssembler(AssemblerConfig{Fetcher: ff, Images: &memImages{}, DownloadImages: true}, nil)
		require.NoError(t, err)

		p, err := a.Assemble(context.Background(), borshchURL)
		require.NoError(t, err)
		assert.Nil(t, p.ImagePath)
		require.NotNil(t, p.Name)
	})

	t.Run("store", func(t *testing.T) {
		ff := &fakeFetcher{pages: map[string]string{
			borshchURL: productPage,
			"https://img.vkusvill.ru/pim/images/site_LargeWebP/borshch.webp?v=2": "JPEGDATA",
		}}
		a, err := NewAssembler(AssemblerConfig{Fetcher: ff, Images: &memImages{err: errors.New("disk full")}, DownloadImages: true}, nil)
		require.NoError(t, err)

		p, err := a.Assemble(context.Background(), borshchURL)
		require.NoError(t, err)
		assert.Nil(t, p.ImagePath)
	})
}

func TestAssembler_NoSlugSkipsImage(t *testing.T) {
	imgURL := "https://img.vkusvill.ru/pim/images/site_LargeWebP/borshch.webp?v=2"
	for _, pageURL := range []string{"https://shop.example/", "https://shop.example/goods/.html"} {
		t.Run(pageURL, func(t *testing.T) {
			ff := &fakeFetcher{pages: map[string]string{pageURL: productPage, imgURL: "JPEGDATA"}}
			store := &memImages{}
			a, err := NewAssembler(AssemblerConfig{Fetcher: ff, Images: store, DownloadImages: true}, nil)
			require.NoError(t, err)

			p, err := a.Assemble(context.Background(), pageURL)
			require.NoError(t, err)
			assert.Nil(t, p.ImagePath)
			assert.Empty(t, store.saved)
			assert.Equal(t, []string{pageURL}, ff.calls, "the image is never requested")
		})
	}
}

func TestAssembler_FetchErrorPropagates(t *testing.T) {
	ff := &fakeFetcher{}
	a, err := NewAssembler(AssemblerConfig{Fetcher: ff}, nil)
	require.NoError(t, err)

	_, err = a.Assemble(context.Background(), borshchURL)
	var fe *FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestNewAssembler_Validation(t *testing.T) {
	_, err := NewAssembler(AssemblerConfig{}, nil)
	assert.Error(t, err)

	_, err = NewAssembler(AssemblerConfig{Fetcher: &fakeFetcher{}, DownloadImages: true}, nil)
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "syrniki-123", Slug("https://shop.example/goods/syrniki-123.html"))
	assert.Equal(t, "plov", Slug("https://shop.example/goods/plov"))
	assert.Equal(t, "", Slug("https://shop.example/"))
}
