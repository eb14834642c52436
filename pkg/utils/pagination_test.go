package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func parsePageForTest(t *testing.T, defaults PageDefaults, query string) Page {
	t.Helper()

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(ParsePage(c, defaults))
	})

	path := "/"
	if query != "" {
		path = fmt.Sprintf("/?%s", query)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	if err != nil {
		t.Fatalf("page request failed for query %q: %v", query, err)
	}
	defer resp.Body.Close()

	var parsed Page
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("failed to decode page for query %q: %v", query, err)
	}
	return parsed
}

func TestParsePage(t *testing.T) {
	testCases := []struct {
		name       string
		defaults   PageDefaults
		query      string
		wantNumber int
		wantLimit  int
		wantOffset int
	}{
		{name: "user list defaults", defaults: UserListPage, wantNumber: 1, wantLimit: 20},
		{name: "activity feed defaults", defaults: ActivityFeedPage, wantNumber: 1, wantLimit: 15},
		{name: "second page of users", defaults: UserListPage, query: "page=2&limit=10", wantNumber: 2, wantLimit: 10, wantOffset: 10},
		{name: "page below one", defaults: UserListPage, query: "page=0&limit=10", wantNumber: 1, wantLimit: 10},
		{name: "page not a number", defaults: ActivityFeedPage, query: "page=abc", wantNumber: 1, wantLimit: 15},
		{name: "limit below one falls back", defaults: ActivityFeedPage, query: "page=3&limit=0", wantNumber: 3, wantLimit: 15, wantOffset: 30},
		{name: "user list clamps at 100", defaults: UserListPage, query: "limit=500", wantNumber: 1, wantLimit: 100},
		{name: "activity feed clamps at 50", defaults: ActivityFeedPage, query: "limit=500", wantNumber: 1, wantLimit: 50},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := parsePageForTest(t, tc.defaults, tc.query)

			if got.Number != tc.wantNumber {
				t.Fatalf("expected page=%d, got %d", tc.wantNumber, got.Number)
			}
			if got.Limit != tc.wantLimit {
				t.Fatalf("expected limit=%d, got %d", tc.wantLimit, got.Limit)
			}
			if got.Offset() != tc.wantOffset {
				t.Fatalf("expected offset=%d, got %d", tc.wantOffset, got.Offset())
			}
		})
	}
}

func TestPageTotalPages(t *testing.T) {
	page := Page{Number: 1, Limit: ActivityFeedPage.Limit}
	tests := []struct {
		total int64
		want  int
	}{
		{total: 0, want: 0},
		{total: 15, want: 1},
		{total: 16, want: 2},
		{total: 45, want: 3},
	}
	for _, tt := range tests {
		if got := page.TotalPages(tt.total); got != tt.want {
			t.Errorf("TotalPages(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
	if got := (Page{Number: 1}).TotalPages(10); got != 0 {
		t.Errorf("expected zero pages without a limit, got %d", got)
	}
}

func TestPageScope(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 user=test password=test dbname=test port=5432 sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("failed to create dry-run gorm db: %v", err)
	}

	page := Page{Number: 3, Limit: UserListPage.Limit}
	scoped := db.Table("users").Order("created_at DESC").Scopes(page.Scope).Find(&[]map[string]interface{}{})

	limitClause, ok := scoped.Statement.Clauses["LIMIT"]
	if !ok {
		t.Fatal("expected LIMIT clause to be set by the page scope")
	}
	limitExpr, ok := limitClause.Expression.(clause.Limit)
	if !ok {
		t.Fatalf("expected LIMIT clause expression type %T, got %T", clause.Limit{}, limitClause.Expression)
	}
	if limitExpr.Limit == nil || *limitExpr.Limit != 20 {
		t.Fatalf("expected limit=20, got %v", limitExpr.Limit)
	}
	if limitExpr.Offset != 40 {
		t.Fatalf("expected offset=40, got %d", limitExpr.Offset)
	}
}
