package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/FranksOps/shelf/pkg/normalize"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Nutrition holds per-100g nutrition facts. Nil means not found.
type Nutrition struct {
	Proteins *float64 `json:"proteins,omitempty"`
	Fats     *float64 `json:"fats,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Kcal     *float64 `json:"kcal,omitempty"`
}

type nutrient int

const (
	proteins nutrient = iota
	fats
	carbs
	kcal
)

// nutrientKeys is scanned in order; the first stem contained in a label
// decides the nutrient.
var nutrientKeys = []struct {
	stem  string
	field nutrient
}{
	{"белк", proteins},
	{"жир", fats},
	{"углевод", carbs},
	{"ккал", kcal},
	{"энергетичес", kcal},
}

var (
	// \w and \b are ASCII-only in RE2; word characters are spelled out so
	// Cyrillic stems extend to their inflected endings.
	proteinsAfter  = regexp.MustCompile(`(?i)белк[\p{L}\p{N}_]*\D*([\d.,]+)`)
	proteinsBefore = regexp.MustCompile(`(?i)([\d.,]+)\D*белк[\p{L}\p{N}_]*`)
	fatsAfter      = regexp.MustCompile(`(?i)жир[\p{L}\p{N}_]*\D*([\d.,]+)`)
	fatsBefore     = regexp.MustCompile(`(?i)([\d.,]+)\D*жир[\p{L}\p{N}_]*`)
	carbsAfter     = regexp.MustCompile(`(?i)углевод[\p{L}\p{N}_]*\D*([\d.,]+)`)
	carbsBefore    = regexp.MustCompile(`(?i)([\d.,]+)\D*углевод[\p{L}\p{N}_]*`)
	kcalRe         = regexp.MustCompile(`(?i)([\d.,]+)\s*ккал`)
	kcalEnergyRe   = regexp.MustCompile(`(?i)энергетичес[\p{L}\p{N}_]*.*?([\d.,]+)\s*ккал`)
	signedNumberRe = regexp.MustCompile(`[-+]?\d+(?:[.,]\d+)?`)
)

const (
	energySelector    = "[class*='EnergyDesc'], [class*='EnergyValue'], [class*='EnergyItem']"
	accordionSelector = "div[class*='DetailProdPageAccordion']"
	rowSelector       = "li, p, div[class*='Row'], div[class*='Item'], div[class*='line']"
)

func (n *Nutrition) field(f nutrient) **float64 {
	switch f {
	case proteins:
		return &n.Proteins
	case fats:
		return &n.Fats
	case carbs:
		return &n.Carbs
	default:
		return &n.Kcal
	}
}

func (n *Nutrition) set(f nutrient, v *float64) {
	if v != nil {
		*n.field(f) = v
	}
}

// Filled counts the non-nil facts.
func (n Nutrition) Filled() int {
	c := 0
	for _, v := range []*float64{n.Proteins, n.Fats, n.Carbs, n.Kcal} {
		if v != nil {
			c++
		}
	}
	return c
}

// Empty reports whether no fact was found.
func (n Nutrition) Empty() bool {
	return n.Filled() == 0
}

// Merge takes each fact from primary when present, else from fallback.
func Merge(primary, fallback Nutrition) Nutrition {
	pick := func(a, b *float64) *float64 {
		if a != nil {
			return a
		}
		return b
	}
	return Nutrition{
		Proteins: pick(primary.Proteins, fallback.Proteins),
		Fats:     pick(primary.Fats, fallback.Fats),
		Carbs:    pick(primary.Carbs, fallback.Carbs),
		Kcal:     pick(primary.Kcal, fallback.Kcal),
	}
}

// NutritionContainer locates the element holding nutrition facts: the info
// block titled "Пищевая…", else the block or accordion around the first
// Energy* element. It returns nil when the page has none.
func NutritionContainer(doc *goquery.Document) *goquery.Selection {
	for _, title := range []string{"Пищевая", "Пищевая и энергетическая"} {
		if item := infoItem(doc.Selection, title); item != nil {
			return item
		}
	}

	marker := doc.Find(energySelector).First()
	if marker.Length() == 0 {
		return nil
	}
	if anc := marker.Parent().Closest(infoItemSelector); anc.Length() > 0 {
		return anc
	}
	if anc := marker.Parent().Closest(accordionSelector); anc.Length() > 0 {
		return anc
	}
	return nil
}

// assignNutrient sets the fact named by label to the first number in value.
// Only the first matching stem is considered, even if value has no number.
func assignNutrient(n *Nutrition, label, value string) {
	lt := strings.ToLower(label)
	for _, k := range nutrientKeys {
		if strings.Contains(lt, k.stem) {
			n.set(k.field, normalize.Number(value))
			return
		}
	}
}

// FromBlocks reads labelled label/value structures inside container. Each
// layout is tried only while fewer than four facts are known.
func FromBlocks(container *goquery.Selection) Nutrition {
	var n Nutrition

	container.Find("div[class*='EnergyItem']").Each(func(_ int, item *goquery.Selection) {
		key := item.Find("[class*='EnergyDesc']").First()
		val := item.Find("[class*='EnergyValue']").First()
		if key.Length() > 0 && val.Length() > 0 {
			assignNutrient(&n, NodeText(key), NodeText(val))
		}
	})

	if n.Filled() < 4 {
		descs := container.Find("[class*='EnergyDesc']")
		values := container.Find("[class*='EnergyValue']")
		for i := 0; i < descs.Length() && i < values.Length(); i++ {
			assignNutrient(&n, NodeText(descs.Eq(i)), NodeText(values.Eq(i)))
		}
	}

	if n.Filled() < 4 {
		container.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := tr.ChildrenFiltered("th, td")
			if cells.Length() >= 2 {
				assignNutrient(&n, NodeText(cells.First()), NodeText(cells.Last()))
			}
		})
	}

	if n.Filled() < 4 {
		container.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
			text := NodeText(row)
			if k, v, ok := strings.Cut(text, ":"); ok {
				assignNutrient(&n, k, v)
				return
			}
			lt := strings.ToLower(text)
			for _, k := range nutrientKeys {
				if strings.Contains(lt, k.stem) {
					if m := signedNumberRe.FindString(text); m != "" {
						if v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64); err == nil {
							n.set(k.field, &v)
						}
					}
					break
				}
			}
		})
	}

	return n
}

// FromText scans the flattened container text for numbers adjacent to
// nutrient names.
func FromText(container *goquery.Selection) Nutrition {
	blob := NodeText(container)
	var n Nutrition

	n.Proteins = numNear(blob, proteinsAfter, proteinsBefore)
	n.Fats = numNear(blob, fatsAfter, fatsBefore)
	n.Carbs = numNear(blob, carbsAfter, carbsBefore)

	if m := kcalRe.FindStringSubmatch(blob); m != nil {
		n.Kcal = normalize.Number(m[1])
	} else if m := kcalEnergyRe.FindStringSubmatch(blob); m != nil {
		n.Kcal = normalize.Number(m[1])
	}
	return n
}

// numNear tries the number after the stem, then the number before it. Only
// the first pattern that matches is converted.
func numNear(blob string, after, before *regexp.Regexp) *float64 {
	if m := after.FindStringSubmatch(blob); m != nil {
		return normalize.Number(m[1])
	}
	if m := before.FindStringSubmatch(blob); m != nil {
		return normalize.Number(m[1])
	}
	return nil
}

// Nutrition resolves the four nutrition facts of a product page. Values
// read from structured blocks take precedence over values found in text.
func (e *Extractor) Nutrition(doc *goquery.Document) Nutrition {
	container := NutritionContainer(doc)
	if container == nil {
		e.logger.Debug("nutrition container not found", zap.Strings("titles", infoTitles(doc, 6)))
		return Nutrition{}
	}

	blocks := FromBlocks(container)
	text := FromText(container)
	merged := Merge(blocks, text)

	e.logger.Debug("nutrition resolved",
		zap.Int("from_blocks", blocks.Filled()),
		zap.Int("from_text", text.Filled()),
		zap.Int("merged", merged.Filled()),
	)
	return merged
}
