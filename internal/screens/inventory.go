package screens

import (
	"strconv"
	"strings"

	"github.com/five82/depot/internal/column"
	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/filter"
	"github.com/five82/depot/internal/tablectl"
)

func init() {
	register(Screen{
		Resource:    "inventory",
		Title:       "Inventory",
		Description: "Stock on hand per item and site",
		Columns: column.Set{
			column.Field("id", "ID", "id").Unsearchable().WithWidth(6),
			column.Field("item", "Item", "Item.name").WithWidth(24),
			column.Field("code", "Code", "Item.code").WithWidth(10),
			column.Field("category", "Category", "Item.ItemGroup.name").WithWidth(14),
			column.Field("site", "Site", "Site.name").WithWidth(12),
			column.Field("unit", "Unit", "Item.unit").Unsearchable().WithWidth(6),
			column.Field("quantity", "Qty", "quantity").Unsearchable().WithWidth(8),
			column.Field("locked", "Locked", "lockedQuantity").Unsearchable().WithWidth(8),
			column.Computed("available", "Available", func(e entity.Entity) any {
				return Available(e)
			}).WithWidth(10),
			column.Computed("status", "Status", func(e entity.Entity) any {
				return StockStatus(e)
			}).Searched().WithWidth(13),
			dateField("updated", "Updated", "updatedAt").Hide().WithWidth(10),
		},
		Filters: []filter.Filter{
			filter.Equals("category", "Category", "Item.ItemGroup.name"),
			filter.Equals("site", "Site", "Site.name"),
			filter.Func("status", "Status", func(e entity.Entity, v string) bool {
				return strings.EqualFold(StockStatus(e), v)
			}, StatusInStock, StatusLowStock, StatusOutOfStock),
		},
		DefaultSort: "item",
		Summary:     inventorySummary,
		Form: []FormField{
			{Key: "itemId", Label: "Item ID", Kind: FieldNumber, Required: true},
			{Key: "siteId", Label: "Site ID", Kind: FieldNumber, Required: true},
			{Key: "quantity", Label: "Quantity", Kind: FieldNumber, Required: true},
			{Key: "lockedQuantity", Label: "Locked quantity", Kind: FieldNumber},
		},
	})
}

func inventorySummary(rows []entity.Entity) []tablectl.Stat {
	available := sumOf(rows, Available)
	locked := sumOf(rows, at("lockedQuantity"))
	out := countWhere(rows, func(e entity.Entity) bool { return StockStatus(e) == StatusOutOfStock })
	low := countWhere(rows, func(e entity.Entity) bool { return StockStatus(e) == StatusLowStock })
	return []tablectl.Stat{
		stat("Total available", available.String()),
		stat("Total locked", locked.String()),
		stat("Low stock", strconv.Itoa(low)),
		stat("Out of stock", strconv.Itoa(out)),
	}
}
