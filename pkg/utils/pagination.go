package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PageDefaults bounds the page size of one listing.
type PageDefaults struct {
	Limit    int
	MaxLimit int
}

var (
	// UserListPage is used by the admin user directory.
	UserListPage = PageDefaults{Limit: 20, MaxLimit: 100}
	// ActivityFeedPage keeps notification pages short.
	ActivityFeedPage = PageDefaults{Limit: 15, MaxLimit: 50}
)

// Page is a 1-based page of a listing.
type Page struct {
	Number int
	Limit  int
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// Scope limits a gorm query to the page: db.Scopes(page.Scope).
func (p Page) Scope(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.Limit)
}

func (p Page) TotalPages(total int64) int {
	if p.Limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

// ParsePage reads ?page and ?limit. Missing or malformed values fall back to
// the defaults and limits above MaxLimit are clamped.
func ParsePage(c *fiber.Ctx, d PageDefaults) Page {
	number, err := strconv.Atoi(c.Query("page"))
	if err != nil || number < 1 {
		number = 1
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = d.Limit
	}
	if d.MaxLimit > 0 && limit > d.MaxLimit {
		limit = d.MaxLimit
	}
	return Page{Number: number, Limit: limit}
}
