//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
)

func TestListMenu(t *testing.T) {
	resp := doGet(t, "/api/menu")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	items := decodeJSON[[]menuItemResponse](t, resp)
	if len(items) != seedMenuLen {
		t.Fatalf("expected %d menu items, got %d", seedMenuLen, len(items))
	}

	for _, it := range items {
		if it.ID == 0 {
			t.Error("menu item has zero id")
		}
		if it.Name == "" {
			t.Errorf("menu item %d has empty name", it.ID)
		}
		if it.Price <= 0 {
			t.Errorf("menu item %d has non-positive price %v", it.ID, it.Price)
		}
		if !it.IsAvailable {
			t.Errorf("menu item %d is not available", it.ID)
		}
	}
}

func TestListMenu_Filters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "category", query: "?category=Pizza", want: 2},
		{name: "search", query: "?search=burger", want: 2},
		{name: "max price", query: "?maxPrice=9.00", want: 4},
		{name: "price range", query: "?minPrice=10&maxPrice=13", want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doGet(t, "/api/menu"+tt.query)
			defer resp.Body.Close()
			expectStatus(t, resp, http.StatusOK)

			items := decodeJSON[[]menuItemResponse](t, resp)
			if len(items) != tt.want {
				t.Errorf("expected %d items, got %d", tt.want, len(items))
			}
		})
	}
}

func TestListMenu_BadPrice(t *testing.T) {
	resp := doGet(t, "/api/menu?minPrice=cheap")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestGetMenuItem(t *testing.T) {
	pizza := menuByName(t)["Margherita Pizza"]

	resp := doGet(t, fmt.Sprintf("/api/menu/%d", pizza.ID))
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[menuItemResponse](t, resp)
	if got.Name != "Margherita Pizza" {
		t.Errorf("name: got %q, want %q", got.Name, "Margherita Pizza")
	}
	if got.Price != 12.99 {
		t.Errorf("price: got %v, want 12.99", got.Price)
	}
	if got.Category != "Pizza" {
		t.Errorf("category: got %q, want %q", got.Category, "Pizza")
	}
}

func TestGetMenuItem_NotFound(t *testing.T) {
	resp := doGet(t, "/api/menu/999999")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)

	body := decodeJSON[errorResponse](t, resp)
	if body.Code != http.StatusNotFound {
		t.Errorf("error code: got %d, want %d", body.Code, http.StatusNotFound)
	}
}

func TestGetMenuItem_InvalidID(t *testing.T) {
	resp := doGet(t, "/api/menu/abc")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestAdminMenu(t *testing.T) {
	item := map[string]any{
		"name":        "Garlic Bread",
		"description": "Toasted with herb butter",
		"price":       "4.25",
		"image":       "garlic-bread.jpg",
		"category":    "Sides",
	}

	t.Run("customer forbidden", func(t *testing.T) {
		resp := doPost(t, "/api/admin/menu", item, bearer(customerToken))
		defer resp.Body.Close()
		expectStatus(t, resp, http.StatusForbidden)
	})

	resp := doPost(t, "/api/admin/menu", item, bearer(adminToken))
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)
	created := decodeJSON[menuItemResponse](t, resp)

	item["isAvailable"] = false
	item["price"] = 4.5
	upd := do(t, http.MethodPut, fmt.Sprintf("/api/admin/menu/%d", created.ID), item, bearer(adminToken))
	defer upd.Body.Close()
	expectStatus(t, upd, http.StatusOK)

	got := decodeJSON[menuItemResponse](t, upd)
	if got.IsAvailable {
		t.Error("expected item to be unavailable")
	}
	if got.Price != 4.5 {
		t.Errorf("price: got %v, want 4.5", got.Price)
	}

	// Unavailable items cannot be added to a cart.
	add := doPost(t, "/api/cart/items", map[string]any{"menuItemId": created.ID, "quantity": 1})
	defer add.Body.Close()
	expectStatus(t, add, http.StatusUnprocessableEntity)

	dup := doPost(t, "/api/admin/menu", item, bearer(adminToken))
	defer dup.Body.Close()
	expectStatus(t, dup, http.StatusConflict)

	// Admins still find the hidden dish, and can bring it back and hide it
	// again.
	list := doGet(t, "/api/admin/menu?search=garlic", bearer(adminToken))
	defer list.Body.Close()
	expectStatus(t, list, http.StatusOK)
	if found := decodeJSON[[]menuItemResponse](t, list); len(found) != 1 || found[0].IsAvailable {
		t.Fatalf("admin listing: got %+v, want one unavailable Garlic Bread", found)
	}

	path := fmt.Sprintf("/api/admin/menu/%d/toggle-availability", created.ID)
	for _, want := range []bool{true, false} {
		toggled := doPatch(t, path, nil, bearer(adminToken))
		defer toggled.Body.Close()
		expectStatus(t, toggled, http.StatusOK)
		if got := decodeJSON[menuItemResponse](t, toggled); got.IsAvailable != want {
			t.Errorf("toggle: isAvailable %v, want %v", got.IsAvailable, want)
		}
	}

	literal := doGet(t, "/api/menu?search=%25", bearer(adminToken))
	defer literal.Body.Close()
	expectStatus(t, literal, http.StatusOK)
	if found := decodeJSON[[]menuItemResponse](t, literal); len(found) != 0 {
		t.Errorf("search %%: got %d items, want 0", len(found))
	}
}
