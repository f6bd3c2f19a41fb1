package screens

import (
	"strconv"
	"strings"

	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/column"
	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/filter"
	"github.com/five82/depot/internal/tablectl"
)

var requisitionStatuses = []string{"Pending", "Approved", "Partially Issued", "Issued", "Rejected"}

func init() {
	register(Screen{
		Resource:    "requisitions",
		Title:       "Requisitions",
		Description: "Material requests from sites",
		Columns: column.Set{
			column.Field("id", "ID", "id").Unsearchable().WithWidth(6),
			column.Field("number", "Number", "requisitionNumber").WithWidth(12),
			dateField("date", "Date", "date").WithWidth(10),
			column.Field("site", "Site", "Site.name").WithWidth(12),
			column.Field("requestedBy", "Requested by", "RequestedBy.name").WithWidth(14),
			column.Computed("items", "Items", func(e entity.Entity) any {
				return len(entity.Items(e, "items"))
			}).WithWidth(6),
			column.Computed("requested", "Requested", func(e entity.Entity) any {
				requested, _ := RequisitionTotals(e)
				return requested
			}).WithWidth(10),
			column.Computed("issued", "Issued", func(e entity.Entity) any {
				_, issued := RequisitionTotals(e)
				return issued
			}).WithWidth(8),
			column.Computed("pending", "Pending", func(e entity.Entity) any {
				return RequisitionPending(e)
			}).WithWidth(8),
			column.Field("status", "Status", "status").WithWidth(16),
		},
		Filters: []filter.Filter{
			filter.Equals("status", "Status", "status", requisitionStatuses...),
			filter.Equals("site", "Site", "Site.name"),
		},
		DefaultSort: "date",
		Summary: func(rows []entity.Entity) []tablectl.Stat {
			open := countWhere(rows, func(e entity.Entity) bool { return RequisitionPending(e).IsPositive() })
			return []tablectl.Stat{
				stat("Requisitions", strconv.Itoa(len(rows))),
				stat("With pending items", strconv.Itoa(open)),
				stat("Pending quantity", sumOf(rows, RequisitionPending).String()),
			}
		},
		Form: []FormField{
			{Key: "requisitionNumber", Label: "Number", Required: true},
			{Key: "date", Label: "Date", Kind: FieldDate, Required: true},
			{Key: "siteId", Label: "Site ID", Kind: FieldNumber, Required: true},
			{Key: "status", Label: "Status", Kind: FieldSelect, Options: requisitionStatuses},
			{Key: "remarks", Label: "Remarks"},
		},
	})

	register(Screen{
		Resource:    "issues",
		Title:       "Issues",
		Description: "Material issued against requisitions",
		Columns: column.Set{
			column.Field("id", "ID", "id").Unsearchable().WithWidth(6),
			column.Field("number", "Number", "issueNumber").WithWidth(12),
			dateField("date", "Date", "date").WithWidth(10),
			column.Field("requisition", "Requisition", "Requisition.requisitionNumber").WithWidth(12),
			column.Field("item", "Item", "Item.name").WithWidth(20),
			column.Field("site", "Site", "Site.name").WithWidth(12),
			column.Field("quantity", "Qty", "quantity").Unsearchable().WithWidth(8),
			column.Field("machine", "Machine", "Machine.name").WithWidth(16),
			column.Field("issuedTo", "Issued to", "issuedTo").Hide().WithWidth(14),
		},
		Filters: []filter.Filter{
			filter.Equals("site", "Site", "Site.name"),
			filter.Equals("item", "Item", "Item.name"),
		},
		DefaultSort: "date",
		Summary: func(rows []entity.Entity) []tablectl.Stat {
			return []tablectl.Stat{
				stat("Issues", strconv.Itoa(len(rows))),
				stat("Quantity issued", sumOf(rows, at("quantity")).String()),
			}
		},
		Form: []FormField{
			{Key: "issueNumber", Label: "Number", Required: true},
			{Key: "date", Label: "Date", Kind: FieldDate, Required: true},
			{Key: "requisitionId", Label: "Requisition ID", Kind: FieldNumber},
			{Key: "itemId", Label: "Item ID", Kind: FieldNumber, Required: true},
			{Key: "siteId", Label: "Site ID", Kind: FieldNumber, Required: true},
			{Key: "quantity", Label: "Quantity", Kind: FieldNumber, Required: true},
			{Key: "machineId", Label: "Machine ID", Kind: FieldNumber},
			{Key: "issuedTo", Label: "Issued to"},
		},
		Depends: []collection.Key{
			collection.ListKey("inventory"),
			collection.ListKey("requisitions"),
		},
	})

	register(Screen{
		Resource:    "procurement",
		Title:       "Procurement",
		Description: "Purchase orders and receiving",
		Columns: column.Set{
			column.Field("id", "ID", "id").Unsearchable().WithWidth(6),
			column.Field("number", "PO Number", "orderNumber").WithWidth(12),
			dateField("date", "Date", "orderDate").WithWidth(10),
			column.Field("vendor", "Vendor", "Vendor.name").WithWidth(20),
			column.Field("site", "Site", "Site.name").WithWidth(12),
			column.Computed("items", "Items", func(e entity.Entity) any {
				return len(entity.Items(e, "items"))
			}).WithWidth(6),
			column.Computed("total", "Total", func(e entity.Entity) any {
				return OrderTotal(e)
			}).WithRender(decimalRender(2)).WithWidth(12),
			column.Computed("remaining", "Remaining", func(e entity.Entity) any {
				return OrderRemaining(e)
			}).WithWidth(10),
			column.Computed("receiving", "Receiving", func(e entity.Entity) any {
				return ReceivingStatus(e)
			}).Searched().WithWidth(10),
			column.Field("status", "Status", "status").Hide().WithWidth(10),
		},
		Filters: []filter.Filter{
			filter.Equals("vendor", "Vendor", "Vendor.name"),
			filter.Equals("site", "Site", "Site.name"),
			filter.Func("receiving", "Receiving", func(e entity.Entity, v string) bool {
				return strings.EqualFold(ReceivingStatus(e), v)
			}, ReceivingPending, ReceivingPartial, ReceivingReceived),
		},
		DefaultSort: "date",
		Summary: func(rows []entity.Entity) []tablectl.Stat {
			pending := countWhere(rows, func(e entity.Entity) bool { return ReceivingStatus(e) != ReceivingReceived })
			return []tablectl.Stat{
				stat("Orders", strconv.Itoa(len(rows))),
				stat("Open", strconv.Itoa(pending)),
				stat("Order value", money(sumOf(rows, OrderTotal))),
				stat("Remaining quantity", sumOf(rows, OrderRemaining).String()),
			}
		},
		Form: []FormField{
			{Key: "orderNumber", Label: "PO number", Required: true},
			{Key: "orderDate", Label: "Order date", Kind: FieldDate, Required: true},
			{Key: "vendorId", Label: "Vendor ID", Kind: FieldNumber, Required: true},
			{Key: "siteId", Label: "Site ID", Kind: FieldNumber},
			{Key: "status", Label: "Status", Kind: FieldSelect, Options: []string{"Draft", "Ordered", "Closed"}},
		},
		// Receiving an order adds stock.
		Depends: []collection.Key{collection.ListKey("inventory")},
	})
}
