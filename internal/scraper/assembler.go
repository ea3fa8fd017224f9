package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/FranksOps/shelf/internal/extract"
	"github.com/FranksOps/shelf/internal/metrics"
	"github.com/FranksOps/shelf/internal/storage"
	"github.com/FranksOps/shelf/pkg/mask"
)

// ImageStore persists downloaded product photos.
type ImageStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// AssemblerConfig wires an Assembler.
type AssemblerConfig struct {
	Fetcher   PageFetcher
	Extractor *extract.Extractor
	// Images is required when DownloadImages is set.
	Images         ImageStore
	DownloadImages bool
	Masker         *mask.Masker
}

// Assembler turns one product URL into a storage.Product.
type Assembler struct {
	fetcher   PageFetcher
	extractor *extract.Extractor
	images    ImageStore
	download  bool
	masker    *mask.Masker
	logger    *zap.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(cfg AssemblerConfig, logger *zap.Logger) (*Assembler, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("assembler: fetcher is required")
	}
	if cfg.DownloadImages && cfg.Images == nil {
		return nil, fmt.Errorf("assembler: image store is required when downloading images")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.New(extract.Config{}, logger)
	}
	if cfg.Masker == nil {
		cfg.Masker = mask.New(mask.Config{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		fetcher:   cfg.Fetcher,
		extractor: cfg.Extractor,
		images:    cfg.Images,
		download:  cfg.DownloadImages,
		masker:    cfg.Masker,
		logger:    logger,
	}, nil
}

// Assemble fetches the product page once and extracts every field. A fetch
// failure is returned as is; missing fields and image failures are not
// errors.
func (a *Assembler) Assemble(ctx context.Context, productURL string) (*storage.Product, error) {
	page, err := a.fetcher.Fetch(ctx, productURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", a.masker.URL(productURL), err)
	}

	f := a.extractor.Extract(doc)
	p := &storage.Product{
		URL:             productURL,
		Name:            f.Name,
		PriceRub:        f.PriceRub,
		WeightG:         f.WeightG,
		KcalPer100g:     f.Nutrition.Kcal,
		ProteinsPer100g: f.Nutrition.Proteins,
		FatsPer100g:     f.Nutrition.Fats,
		CarbsPer100g:    f.Nutrition.Carbs,
		ShelfLifeDays:   f.ShelfLifeDays,
		StorageTempMinC: f.StorageTempMinC,
		StorageTempMaxC: f.StorageTempMaxC,
		CategoryMain:    f.CategoryMain,
		CategoryPath:    f.CategoryPath,
		Brand:           f.Brand,
		Country:         f.Country,
		Manufacturer:    f.Manufacturer,
		Rating:          f.Rating,
		RatingsCount:    f.RatingsCount,
		Ingredients:     f.Ingredients,
		Tags:            f.Tags,
	}

	if a.download && f.ImageURL != "" {
		base := page.FinalURL
		if base == "" {
			base = productURL
		}
		p.ImagePath = a.saveImage(ctx, base, productURL, f.ImageURL)
	}

	missing := p.Missing()
	if !a.download {
		missing = without(missing, "image_path")
	}
	metrics.RecordMissing(missing...)
	return p, nil
}

// saveImage downloads the photo and stores it as <page slug>.jpg. Failures,
// and product URLs with no slug to name the file by, only leave the path unset.
func (a *Assembler) saveImage(ctx context.Context, pageURL, productURL, src string) *string {
	log := a.logger.With(zap.String("url", a.masker.URL(productURL)))

	slug := Slug(productURL)
	if slug == "" {
		log.Debug("no slug to name the image by")
		return nil
	}
	imgURL, err := resolve(pageURL, src)
	if err != nil {
		log.Debug("image url unusable", zap.Error(err))
		return nil
	}
	img, err := a.fetcher.Fetch(ctx, imgURL, WithReferer(productURL))
	if err != nil {
		log.Debug("image download failed", zap.String("err", a.masker.Scrub(err.Error(), imgURL)))
		return nil
	}

	stored, err := a.images.Put(ctx, slug+".jpg", img.Body)
	if err != nil {
		log.Debug("image save failed", zap.Error(err))
		return nil
	}
	log.Debug("saved image", zap.String("path", stored))
	return &stored
}

// Slug returns the last path segment of a product URL without its extension.
func Slug(productURL string) string {
	u, err := url.Parse(productURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func without(list []string, drop string) []string {
	out := list[:0]
	for _, s := range list {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
