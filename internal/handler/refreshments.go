package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// MenuEntry is one item of the concession stand.
type MenuEntry struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Category   string `json:"category"`
}

var menu = []MenuEntry{
	{ID: 1, Name: "Popcorn", PriceCents: 12000, Category: "snack"},
	{ID: 2, Name: "Juice", PriceCents: 8000, Category: "drink"},
	{ID: 3, Name: "Chats", PriceCents: 15000, Category: "snack"},
	{ID: 4, Name: "French Fries", PriceCents: 13000, Category: "snack"},
	{ID: 5, Name: "Lunch Combo", PriceCents: 25000, Category: "combo"},
	{ID: 6, Name: "Dinner Combo", PriceCents: 30000, Category: "combo"},
	{ID: 7, Name: "Momos", PriceCents: 14000, Category: "snack"},
}

// MenuItem looks an item up by name, ignoring case.
func MenuItem(name string) (MenuEntry, bool) {
	for _, m := range menu {
		if strings.EqualFold(m.Name, strings.TrimSpace(name)) {
			return m, true
		}
	}
	return MenuEntry{}, false
}

// Refreshments handles GET /api/refreshments.
func Refreshments(c echo.Context) error {
	return c.JSON(http.StatusOK, menu)
}
