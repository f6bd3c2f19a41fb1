package screens

import (
	"strconv"
	"strings"

	"github.com/five82/depot/internal/auth"
	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/column"
	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/filter"
	"github.com/five82/depot/internal/tablectl"
)

func roleNames() []string {
	out := make([]string, len(auth.Roles))
	for i, r := range auth.Roles {
		out[i] = r.String()
	}
	return out
}

func init() {
	register(Screen{
		Resource:    "vendors",
		Title:       "Vendors",
		Description: "Suppliers and service providers",
		Columns: column.Set{
			column.Field("id", "ID", "id").Unsearchable().WithWidth(6),
			column.Field("name", "Name", "name").WithWidth(22),
			column.Field("contact", "Contact", "contactPerson").WithWidth(16),
			column.Field("phone", "Phone", "phone").WithWidth(14),
			column.Field("email", "Email", "email").WithWidth(22),
			column.Field("city", "City", "address.city").WithWidth(12),
			column.Field("gstin", "GSTIN", "gstin").Hide().WithWidth(16),
			column.Field("active", "Active", "active").Unsearchable().WithRender(boolRender).WithWidth(7),
		},
		Filters: []filter.Filter{
			filter.Equals("city", "City", "address.city"),
			filter.Func("active", "Active", func(e entity.Entity, v string) bool {
				return strings.EqualFold(boolRender(valueAt(e, "active"), e), v)
			}, "Yes", "No"),
		},
		DefaultSort: "name",
		Summary: func(rows []entity.Entity) []tablectl.Stat {
			return []tablectl.Stat{stat("Vendors", strconv.Itoa(len(rows)))}
		},
		Form: []FormField{
			{Key: "name", Label: "Name", Required: true},
			{Key: "contactPerson", Label: "Contact person"},
			{Key: "phone", Label: "Phone"},
			{Key: "email", Label: "Email"},
			{Key: "address.city", Label: "City"},
			{Key: "gstin", Label: "GSTIN"},
		},
		Depends: []collection.Key{
			collection.ListKey("procurement"),
			collection.ListKey("maintenance"),
		},
	})

	register(Screen{
		Resource:    "users",
		Title:       "Users",
		Description: "Accounts and roles",
		Columns: column.Set{
			column.Field("id", "ID", "id").Unsearchable().WithWidth(6),
			column.Field("name", "Name", "name").WithWidth(18),
			column.Field("email", "Email", "email").WithWidth(24),
			column.Field("role", "Role", "role").WithWidth(12),
			column.Field("site", "Site", "Site.name").WithWidth(12),
			dateField("lastLogin", "Last login", "lastLoginAt").WithWidth(10),
		},
		Filters: []filter.Filter{
			filter.Equals("role", "Role", "role", roleNames()...),
			filter.Equals("site", "Site", "Site.name"),
		},
		DefaultSort: "name",
		Summary: func(rows []entity.Entity) []tablectl.Stat {
			admins := countWhere(rows, func(e entity.Entity) bool {
				return auth.ParseRole(filter.FieldValue(e, "role")) == auth.RoleAdmin
			})
			return []tablectl.Stat{
				stat("Users", strconv.Itoa(len(rows))),
				stat("Admins", strconv.Itoa(admins)),
			}
		},
		Form: []FormField{
			{Key: "name", Label: "Name", Required: true},
			{Key: "email", Label: "Email", Required: true},
			{Key: "role", Label: "Role", Kind: FieldSelect, Options: roleNames(), Required: true},
			{Key: "siteId", Label: "Site ID", Kind: FieldNumber},
		},
	})
}

func valueAt(e entity.Entity, path string) any {
	v, _ := entity.Lookup(e, path)
	return v
}
