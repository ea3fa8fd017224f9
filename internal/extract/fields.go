// Package extract reads product fields out of a parsed product page. Each
// field is located by a cascade of lookup strategies; the first one that
// yields a non-empty value wins.
package extract

import (
	"strings"

	"github.com/FranksOps/shelf/pkg/normalize"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// DefaultImageHost is the CDN product photos are served from.
const DefaultImageHost = "img.vkusvill.ru"

// Fields is everything extracted from one product page. Nil means absent.
type Fields struct {
	Name            *string
	PriceRub        *float64
	WeightG         *float64
	Nutrition       Nutrition
	ShelfLifeDays   *float64
	StorageTempMinC *float64
	StorageTempMaxC *float64
	CategoryMain    *string
	CategoryPath    *string
	Brand           *string
	Country         *string
	Manufacturer    *string
	Rating          *float64
	RatingsCount    *int
	Ingredients     *string
	Tags            *string
	// ImageURL is the raw src of the main product photo, unresolved.
	ImageURL string
}

var (
	nameStrategy = Text("h1[class*='Product__title']")

	priceStrategy = Chain(
		Attr("[itemprop='price'][content]", "content"),
		Text("[class*='js-datalayer-catalog-list-price'][class*='hidden']"),
	)

	weightStrategy = Chain(
		Text("[class*='ProductCard_weight'], [class*='ProductCard__weight']"),
		InfoBlock("Вес/объем"),
	)

	shelfLifeStrategy = InfoBlock("Годен")
	storageStrategy   = InfoBlock("Условия хранения")

	categoryMainStrategy = Attr("#log_section_name", "value")
	categoryPathStrategy = Text("[class*='js-datalayer-catalog-list-category'][class*='hidden']")

	brandStrategy        = OwnText("[itemprop='brand'] [itemprop='name']")
	countryStrategy      = InfoBlock("Страна производства")
	manufacturerStrategy = Chain(InfoBlock("Изготовитель"), InfoBlock("Производитель"))

	ratingStrategy      = Attr("[itemprop='aggregateRating'] [itemprop='ratingValue'][content]", "content")
	ratingCountStrategy = Attr("[itemprop='aggregateRating'] [itemprop='reviewCount'][content]", "content")

	ingredientsStrategy = Chain(InfoBlock("Состав"), InfoBlock("Ингредиенты"), InfoBlock("Состав продукта"))

	descriptionStrategy = Chain(
		Attr("[itemprop='description'][content]", "content"),
		Text("[itemprop='description']"),
		InfoBlock("Описание"),
	)

	perKiloSelector = "[class*='Currency'], [class*='Price'], [class*='Product_price']"
)

// Config tunes an Extractor.
type Config struct {
	// ImageHost restricts product photo candidates to this host.
	ImageHost string
}

// Extractor pulls product fields out of parsed pages. It holds no per-page
// state and is safe for concurrent use.
type Extractor struct {
	imageStrategy Strategy
	logger        *zap.Logger
}

// New creates an Extractor.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.ImageHost == "" {
		cfg.ImageHost = DefaultImageHost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	host := strings.ReplaceAll(cfg.ImageHost, "'", "")
	return &Extractor{
		imageStrategy: Chain(
			Attr("img[src*='"+host+"'][src*='.webp']", "src"),
			Attr("img[src*='"+host+"']", "src"),
		),
		logger: logger,
	}
}

// Extract reads every field from doc.
func (e *Extractor) Extract(doc *goquery.Document) Fields {
	f := Fields{
		Name:         str(nameStrategy(doc)),
		PriceRub:     Price(doc),
		WeightG:      Weight(doc),
		Nutrition:    e.Nutrition(doc),
		Brand:        str(brandStrategy(doc)),
		Country:      str(countryStrategy(doc)),
		Manufacturer: str(manufacturerStrategy(doc)),
		Ingredients:  str(ingredientsStrategy(doc)),
		Tags:         str(descriptionStrategy(doc)),
	}
	f.ShelfLifeDays, f.StorageTempMinC, f.StorageTempMaxC = ShelfAndStorage(doc)
	f.CategoryMain, f.CategoryPath = Categories(doc)
	f.Rating, f.RatingsCount = Rating(doc)
	f.ImageURL, _ = e.imageStrategy(doc)

	if f.Nutrition.Empty() {
		e.logger.Debug("nutrition empty, fields stay unset")
	}
	return f
}

// Price returns the product price in rubles.
func Price(doc *goquery.Document) *float64 {
	v, ok := priceStrategy(doc)
	if !ok {
		return nil
	}
	return normalize.Number(v)
}

// Weight returns the package weight in grams. Goods sold by the kilogram
// without a stated weight report 1000.
func Weight(doc *goquery.Document) *float64 {
	if v, ok := weightStrategy(doc); ok {
		if g := normalize.Grams(v); g != nil {
			return g
		}
	}

	perKilo := false
	doc.Find(perKiloSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := s.Text()
		perKilo = strings.Contains(t, "/кг") || strings.Contains(t, "/ кг")
		return !perKilo
	})
	if perKilo {
		kg := 1000.0
		return &kg
	}
	return nil
}

// ShelfAndStorage returns shelf life in days and the storage temperature
// range in °C.
func ShelfAndStorage(doc *goquery.Document) (days, tmin, tmax *float64) {
	if v, ok := shelfLifeStrategy(doc); ok {
		days = normalize.ShelfLifeDays(v)
	}
	if v, ok := storageStrategy(doc); ok {
		tmin, tmax = normalize.TemperatureRange(v)
	}
	return days, tmin, tmax
}

// Categories returns the main category and the full category path. The
// path falls back to the main category when the page carries none.
func Categories(doc *goquery.Document) (main, path *string) {
	main = str(categoryMainStrategy(doc))

	raw, ok := categoryPathStrategy(doc)
	if !ok {
		return main, main
	}
	var parts []string
	for _, p := range strings.Split(raw, "//") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return main, nil
	}
	joined := strings.Join(parts, " / ")
	return main, &joined
}

// Rating returns the average rating and the number of reviews.
func Rating(doc *goquery.Document) (*float64, *int) {
	var rating *float64
	if v, ok := ratingStrategy(doc); ok {
		rating = normalize.Number(v)
	}

	var count *int
	if v, ok := ratingCountStrategy(doc); ok {
		if n := normalize.Number(v); n != nil {
			c := int(*n)
			count = &c
		}
	}
	return rating, count
}

func str(v string, ok bool) *string {
	if !ok {
		return nil
	}
	return &v
}
