package main

import (
	"context"
	"errors"
	"log"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// CatalogQuery is one page of a title/style/type lookup.
type CatalogQuery struct {
	Title  string   `json:"title"`
	Styles []string `json:"style,omitempty"`
	Type   string   `json:"type,omitempty"`
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
}

// Catalog answers similarity lookups.
type Catalog interface {
	Query(ctx context.Context, q CatalogQuery) ([]SearchResult, error)
}

// catalogStore is a catalog the admin API can edit.
type catalogStore interface {
	Catalog
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, p Product) (int64, error)
	Delete(ctx context.Context, id int64) (Product, error)
}

var errProductNotFound = errors.New("product not found")

var descriptionConverter = md.NewConverter("", true, nil)

// plainDescription turns a stored HTML description into readable text.
// Plain text passes through untouched.
func plainDescription(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return s
	}
	out, err := descriptionConverter.ConvertString(s)
	if err != nil {
		log.Printf("description conversion error: %v", err)
		return s
	}
	return strings.TrimSpace(out)
}

// productResult maps a catalog row to the record shape the chat renders.
// When images is non-nil, rows with a Cloudinary public id are delivered
// through it.
func productResult(p Product, images *imageHost) SearchResult {
	price := p.Price
	r := SearchResult{
		Title:       p.Title,
		Price:       &price,
		Currency:    p.Currency,
		ImageURL:    p.ImageURL,
		SKU:         p.SKU,
		Company:     p.Company,
		Status:      p.Status,
		Type:        p.Type,
		Categories:  p.Categories,
		Description: plainDescription(p.Description),
		Images:      p.Images,
		Videos:      p.Videos,
	}
	if p.ImagePublicID != "" && images != nil {
		if u, err := images.DeliveryURL(p.ImagePublicID); err == nil {
			r.ImageURL = u
		} else {
			log.Printf("delivery url for %s: %v", p.ImagePublicID, err)
		}
	}
	return r
}

// matches reports whether p satisfies q. Title is a case-insensitive
// substring (the generic "Jewelry" matches all), any one style is enough,
// and type must be equal.
func (q CatalogQuery) matches(p Product) bool {
	if q.Title != "" && q.Title != "Jewelry" &&
		!strings.Contains(strings.ToLower(p.Title), strings.ToLower(q.Title)) {
		return false
	}
	if q.Type != "" && !strings.EqualFold(p.Type, q.Type) {
		return false
	}
	if len(q.Styles) == 0 {
		return true
	}
	for _, want := range q.Styles {
		for _, have := range p.Categories {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// page slices items according to the query's offset and limit.
func page[T any](items []T, q CatalogQuery) []T {
	if q.Offset >= len(items) {
		return nil
	}
	items = items[q.Offset:]
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items
}
