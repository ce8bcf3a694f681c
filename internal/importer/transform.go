package importer

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bookstore-service/internal/models"
	"bookstore-service/internal/wooclient"
)

const (
	defaultPages     = 100
	defaultLanguage  = "Telugu"
	fallbackCategory = "literature"
	importSource     = "woocommerce"
)

var (
	teluguRunRegex = regexp.MustCompile(`[\x{0C00}-\x{0C7F}]+`)
	htmlTagRegex   = regexp.MustCompile(`<[^>]*>`)
)

// categoryMap translates WooCommerce category terms into the store's
// fixed catalog categories. Unrecognized terms fall back to literature.
var categoryMap = map[string]string{
	"fiction":     "literature",
	"non-fiction": "literature",
	"poetry":      "poetry",
	"devotional":  "devotional",
	"education":   "educational",
	"children":    "children",
	"history":     "history",
	"philosophy":  "philosophy",
	"biography":   "biography",
}

// Transform maps one WooCommerce product record onto the internal book
// schema. It is a pure function of its inputs: the same record always
// yields the same book, modulo the supplied import timestamp.
func Transform(p *wooclient.Product, userID string, now time.Time) *models.Book {
	meta := map[string]string{}
	for _, m := range p.MetaData {
		meta[m.Key] = m.StringValue()
	}

	attrs := map[string][]string{}
	for _, a := range p.Attributes {
		attrs[a.Name] = a.Options
	}

	description := StripHTML(p.Description)
	importDate := now

	book := &models.Book{
		Title:             p.Name,
		TitleTelugu:       firstNonEmpty(ExtractTelugu(p.Name), meta["_title_telugu"]),
		Author:            firstNonEmpty(meta["_author"], firstOption(attrs, "Author"), "Unknown Author"),
		AuthorTelugu:      firstNonEmpty(meta["_author_telugu"], ExtractTelugu(meta["_author"])),
		Publisher:         firstNonEmpty(meta["_publisher"], firstOption(attrs, "Publisher"), "Unknown Publisher"),
		PublisherTelugu:   firstNonEmpty(meta["_publisher_telugu"], ExtractTelugu(meta["_publisher"])),
		ISBN:              firstNonEmpty(meta["_isbn"], meta["isbn"], fmt.Sprintf("WOO-%d", p.ID)),
		Price:             parsePrice(p.Price, p.RegularPrice),
		OriginalPrice:     parsePrice(p.RegularPrice, p.Price),
		Discount:          ComputeDiscount(p.RegularPrice, p.SalePrice),
		Description:       description,
		DescriptionTelugu: firstNonEmpty(ExtractTelugu(description), meta["_description_telugu"]),
		Image:             firstImage(p.Images),
		Images:            marshalImages(p.Images),
		Category:          MapCategory(primaryCategory(p.Categories)),
		CategoryTelugu:    meta["_category_telugu"],
		Pages:             parseIntDefault(firstNonEmpty(meta["_pages"], firstOption(attrs, "Pages")), defaultPages),
		Language:          firstNonEmpty(meta["_language"], firstOption(attrs, "Language"), defaultLanguage),
		Dimensions:        marshalDimensions(p.Dimensions),
		Weight:            parseFloat(p.Weight),
		PublicationYear:   parseIntDefault(firstNonEmpty(meta["_publication_year"], meta["year"]), now.Year()),
		InStock:           p.StockStatus == "instock",
		StockCount:        stockQuantity(p.StockQuantity),
		Tags:              marshalTags(p.Tags),
		Featured:          p.Featured,
		IsActive:          p.Status == "publish",
		CreatedBy:         userID,
		WooCommerceID:     p.ID,
		ImportSource:      importSource,
		ImportDate:        &importDate,
	}
	return book
}

// ExtractTelugu pulls Telugu-script runs (U+0C00..U+0C7F) out of mixed
// text, joined by single spaces. Returns "" when no Telugu is present.
func ExtractTelugu(text string) string {
	if text == "" {
		return ""
	}
	matches := teluguRunRegex.FindAllString(text, -1)
	return strings.Join(matches, " ")
}

// StripHTML removes markup tags, leaving trimmed plain text
func StripHTML(html string) string {
	if html == "" {
		return ""
	}
	return strings.TrimSpace(htmlTagRegex.ReplaceAllString(html, ""))
}

// MapCategory translates an external category term through the fixed
// lookup table, falling back to literature
func MapCategory(term string) string {
	if mapped, ok := categoryMap[strings.ToLower(term)]; ok {
		return mapped
	}
	return fallbackCategory
}

// ComputeDiscount derives the discount percentage from regular vs sale
// price. No sale price means no discount.
func ComputeDiscount(regularPrice, salePrice string) int {
	if salePrice == "" {
		return 0
	}
	regular := parseFloat(regularPrice)
	sale := parseFloat(salePrice)
	if regular <= 0 || sale >= regular {
		return 0
	}
	return int(math.Round((regular - sale) / regular * 100))
}

func primaryCategory(categories []wooclient.Category) string {
	if len(categories) == 0 {
		return fallbackCategory
	}
	return categories[0].Name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstOption(attrs map[string][]string, name string) string {
	if options := attrs[name]; len(options) > 0 {
		return options[0]
	}
	return ""
}

func firstImage(images []wooclient.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].Src
}

func marshalImages(images []wooclient.Image) string {
	srcs := make([]string, 0, len(images))
	for _, img := range images {
		srcs = append(srcs, img.Src)
	}
	data, _ := json.Marshal(srcs)
	return string(data)
}

func marshalTags(tags []wooclient.Tag) string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	data, _ := json.Marshal(names)
	return string(data)
}

func marshalDimensions(d wooclient.Dimensions) string {
	data, _ := json.Marshal(map[string]float64{
		"length": parseFloat(d.Length),
		"width":  parseFloat(d.Width),
		"height": parseFloat(d.Height),
	})
	return string(data)
}

func parsePrice(primary, fallback string) float64 {
	if primary != "" {
		return parseFloat(primary)
	}
	return parseFloat(fallback)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntDefault(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

func stockQuantity(q *int) int {
	if q == nil || *q < 0 {
		return 0
	}
	return *q
}
