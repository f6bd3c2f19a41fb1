package screens

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/column"
	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/filter"
	"github.com/five82/depot/internal/tablectl"
)

var machineStatuses = []string{"Active", "Idle", "Under Maintenance", "Retired"}

func init() {
	register(Screen{
		Resource:    "machines",
		Title:       "Machines",
		Description: "Fleet register",
		Columns: column.Set{
			column.Field("id", "ID", "id").Unsearchable().WithWidth(6),
			column.Field("name", "Name", "name").WithWidth(20),
			column.Field("regNo", "Reg. No", "registrationNumber").WithWidth(12),
			column.Field("category", "Category", "MachineCategory.name").WithWidth(14),
			column.Field("site", "Site", "Site.name").WithWidth(12),
			column.Field("make", "Make", "make").WithWidth(12),
			column.Field("model", "Model", "model").Hide().WithWidth(12),
			column.Field("status", "Status", "status").WithWidth(16),
			dateField("purchased", "Purchased", "purchaseDate").Hide().WithWidth(10),
		},
		Filters: []filter.Filter{
			filter.Equals("category", "Category", "MachineCategory.name"),
			filter.Equals("site", "Site", "Site.name"),
			filter.Equals("status", "Status", "status", machineStatuses...),
		},
		DefaultSort: "name",
		Summary: func(rows []entity.Entity) []tablectl.Stat {
			active := countWhere(rows, func(e entity.Entity) bool { return filter.FieldValue(e, "status") == "Active" })
			repair := countWhere(rows, func(e entity.Entity) bool { return filter.FieldValue(e, "status") == "Under Maintenance" })
			return []tablectl.Stat{
				stat("Machines", strconv.Itoa(len(rows))),
				stat("Active", strconv.Itoa(active)),
				stat("Under maintenance", strconv.Itoa(repair)),
			}
		},
		Form: []FormField{
			{Key: "name", Label: "Name", Required: true},
			{Key: "registrationNumber", Label: "Registration number"},
			{Key: "machineCategoryId", Label: "Category ID", Kind: FieldNumber},
			{Key: "siteId", Label: "Site ID", Kind: FieldNumber},
			{Key: "make", Label: "Make"},
			{Key: "model", Label: "Model"},
			{Key: "status", Label: "Status", Kind: FieldSelect, Options: machineStatuses},
			{Key: "purchaseDate", Label: "Purchase date", Kind: FieldDate},
		},
	})

	register(Screen{
		Resource:    "logbook",
		Title:       "Logbook",
		Description: "Daily machine hours and diesel",
		Columns: column.Set{
			column.Field("id", "ID", "id").Unsearchable().WithWidth(6),
			dateField("date", "Date", "date").WithWidth(10),
			column.Field("machine", "Machine", "Machine.name").WithWidth(18),
			column.Field("site", "Site", "Site.name").WithWidth(12),
			column.Field("openingHours", "Open hrs", "openingHours").Unsearchable().Hide().WithWidth(9),
			column.Field("closingHours", "Close hrs", "closingHours").Unsearchable().Hide().WithWidth(9),
			column.Computed("hoursRun", "Hours", func(e entity.Entity) any {
				return HoursRun(e)
			}).WithWidth(7),
			column.Field("openingDiesel", "Open L", "openingDiesel").Unsearchable().Hide().WithWidth(8),
			column.Field("dieselIssued", "Issued L", "dieselIssued").Unsearchable().WithWidth(8),
			column.Field("closingDiesel", "Close L", "closingDiesel").Unsearchable().Hide().WithWidth(8),
			column.Computed("dieselUsed", "Used L", func(e entity.Entity) any {
				return DieselUsed(e)
			}).WithWidth(8),
			column.Computed("dieselAverage", "L/hr", func(e entity.Entity) any {
				if avg, ok := DieselAverage(e); ok {
					return avg
				}
				return nil
			}).WithRender(decimalRender(2)).WithWidth(6),
			column.Field("operator", "Operator", "operatorName").WithWidth(14),
		},
		Filters: []filter.Filter{
			filter.Equals("site", "Site", "Site.name"),
			filter.Equals("machine", "Machine", "Machine.name"),
		},
		DefaultSort: "date",
		Summary: func(rows []entity.Entity) []tablectl.Stat {
			hours := sumOf(rows, HoursRun)
			used := sumOf(rows, DieselUsed)
			avg := column.Placeholder
			if hours.IsPositive() {
				avg = used.DivRound(hours, 2).String()
			}
			return []tablectl.Stat{
				stat("Entries", strconv.Itoa(len(rows))),
				stat("Hours run", hours.String()),
				stat("Diesel used", used.String()),
				stat("Average L/hr", avg),
			}
		},
		Form: []FormField{
			{Key: "date", Label: "Date", Kind: FieldDate, Required: true},
			{Key: "machineId", Label: "Machine ID", Kind: FieldNumber, Required: true},
			{Key: "openingHours", Label: "Opening hours", Kind: FieldNumber},
			{Key: "closingHours", Label: "Closing hours", Kind: FieldNumber},
			{Key: "openingDiesel", Label: "Opening diesel", Kind: FieldNumber},
			{Key: "dieselIssued", Label: "Diesel issued", Kind: FieldNumber},
			{Key: "closingDiesel", Label: "Closing diesel", Kind: FieldNumber},
			{Key: "operatorName", Label: "Operator"},
		},
		// Diesel issues draw down inventory.
		Depends: []collection.Key{collection.ListKey("inventory")},
	})

	register(Screen{
		Resource:    "maintenance",
		Title:       "Maintenance",
		Description: "Service and repair records",
		Columns: column.Set{
			column.Field("id", "ID", "id").Unsearchable().WithWidth(6),
			dateField("date", "Date", "date").WithWidth(10),
			column.Field("machine", "Machine", "Machine.name").WithWidth(18),
			column.Field("type", "Type", "type").WithWidth(12),
			column.Field("vendor", "Vendor", "Vendor.name").WithWidth(16),
			column.Field("cost", "Cost", "cost").Unsearchable().WithRender(moneyRender).WithWidth(10),
			column.Field("status", "Status", "status").WithWidth(12),
			dateField("nextDue", "Next due", "nextDueDate").WithWidth(10),
			column.Field("remarks", "Remarks", "remarks").Hide().WithWidth(24),
		},
		Filters: []filter.Filter{
			filter.Equals("type", "Type", "type", "Preventive", "Breakdown", "Inspection"),
			filter.Equals("status", "Status", "status", "Scheduled", "In Progress", "Completed"),
			filter.Equals("machine", "Machine", "Machine.name"),
		},
		DefaultSort: "date",
		Summary: func(rows []entity.Entity) []tablectl.Stat {
			open := countWhere(rows, func(e entity.Entity) bool { return filter.FieldValue(e, "status") != "Completed" })
			return []tablectl.Stat{
				stat("Records", strconv.Itoa(len(rows))),
				stat("Open", strconv.Itoa(open)),
				stat("Total cost", money(sumOf(rows, at("cost")))),
			}
		},
		Form: []FormField{
			{Key: "date", Label: "Date", Kind: FieldDate, Required: true},
			{Key: "machineId", Label: "Machine ID", Kind: FieldNumber, Required: true},
			{Key: "type", Label: "Type", Kind: FieldSelect, Options: []string{"Preventive", "Breakdown", "Inspection"}},
			{Key: "vendorId", Label: "Vendor ID", Kind: FieldNumber},
			{Key: "cost", Label: "Cost", Kind: FieldNumber},
			{Key: "status", Label: "Status", Kind: FieldSelect, Options: []string{"Scheduled", "In Progress", "Completed"}},
			{Key: "nextDueDate", Label: "Next due", Kind: FieldDate},
			{Key: "remarks", Label: "Remarks"},
		},
		Depends: []collection.Key{collection.ListKey("machines")},
	})
}

func moneyRender(v any, _ entity.Entity) string {
	d, ok := entity.Decimal(v)
	if !ok {
		return ""
	}
	return money(d)
}

func decimalRender(places int32) column.RenderFunc {
	return func(v any, _ entity.Entity) string {
		d, ok := v.(decimal.Decimal)
		if !ok {
			return entity.Text(v)
		}
		return d.StringFixed(places)
	}
}
