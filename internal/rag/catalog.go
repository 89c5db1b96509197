package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/seller-copilot/server/internal/product"
)

// BuildCatalogIndex converts every listing into an indexed document.
func BuildCatalogIndex(ctx context.Context, index *MemoryIndex, repo *product.Repository) error {
	products := repo.List("", false)
	docs := make([]Document, 0, len(products))
	for _, p := range products {
		docs = append(docs, Document{
			ID:   p.ID,
			Text: productCard(p, false),
			Metadata: map[string]string{
				"title":    p.Title,
				"category": p.Category,
				"price":    fmt.Sprintf("%.0f", p.Price),
			},
		})
	}
	return index.Add(ctx, docs)
}

// ProductContext renders one listing as a context card including the
// seller-only negotiation bounds. Used when the product is already
// resolved and no search is needed.
func ProductContext(repo *product.Repository, productID string) (string, bool) {
	p := repo.Get(productID)
	if p == nil {
		return "", false
	}
	return productCard(p, true), true
}

func productCard(p *product.Product, withInternal bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Товар: %s\nКатегория: %s\nЦена: %.0f руб.\n", p.Title, p.Category, p.Price)
	if p.Description != "" {
		fmt.Fprintf(&b, "Описание: %s\n", p.Description)
	}
	if len(p.Characteristics) > 0 {
		keys := make([]string, 0, len(p.Characteristics))
		for k := range p.Characteristics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Характеристики:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  - %s: %s\n", k, p.Characteristics[k])
		}
	}
	if p.Warranty != "" {
		fmt.Fprintf(&b, "Гарантия: %s\n", p.Warranty)
	}
	if p.QualityNotes != "" {
		fmt.Fprintf(&b, "Состояние: %s\n", p.QualityNotes)
	}
	if p.IsAvailable() {
		fmt.Fprintf(&b, "В наличии: %d шт.\n", p.Stock)
	} else {
		b.WriteString("Нет в наличии\n")
	}
	if withInternal {
		if p.CanBargain() {
			fmt.Fprintf(&b, "[внутреннее] Торг уместен, минимальная цена: %.0f руб.\n", p.MinAcceptablePrice())
		} else {
			b.WriteString("[внутреннее] Цена окончательная, торг не уместен.\n")
		}
		if len(p.MeetingLocations) > 0 {
			fmt.Fprintf(&b, "[внутреннее] Места встречи: %s\n", strings.Join(p.MeetingLocations, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
