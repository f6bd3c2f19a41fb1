package devserver

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/five82/depot/internal/entity"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

var errNotFound = errors.New("not found")

// relations resolve foreign-key fields in writes to embedded objects, the
// way the real backend includes related records.
var relations = []struct {
	field    string
	embed    string
	resource string
}{
	{"siteId", "Site", "sites"},
	{"itemId", "Item", "items"},
	{"machineId", "Machine", "machines"},
	{"machineCategoryId", "MachineCategory", "machineCategories"},
	{"vendorId", "Vendor", "vendors"},
	{"requisitionId", "Requisition", "requisitions"},
}

// db is the in-memory dataset. Records are stored with json.Number values
// so they round-trip exactly.
type db struct {
	mu     sync.RWMutex
	tables map[string][]entity.Entity
	nextID map[string]int64
	now    func() time.Time
}

func loadFixtures(data []byte) (*db, error) {
	var raw map[string][]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	d := &db{tables: make(map[string][]entity.Entity), nextID: make(map[string]int64), now: time.Now}
	for resource, rows := range raw {
		table := make([]entity.Entity, 0, len(rows))
		var maxID int64
		for _, row := range rows {
			e, err := normalize(row)
			if err != nil {
				return nil, fmt.Errorf("fixture %s: %w", resource, err)
			}
			if id, err := strconv.ParseInt(e.ID(), 10, 64); err == nil && id > maxID {
				maxID = id
			}
			table = append(table, e)
		}
		d.tables[resource] = table
		d.nextID[resource] = maxID + 1
	}
	return d, nil
}

// normalize converts decoded YAML or JSON into an Entity holding only JSON
// types, with numbers as json.Number.
func normalize(v any) (entity.Entity, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return entity.Decode(data)
}

func (d *db) has(resource string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.tables[resource]
	return ok
}

func (d *db) list(resource string) []entity.Entity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rows := d.tables[resource]
	out := make([]entity.Entity, len(rows))
	for i, row := range rows {
		out[i] = clone(row)
	}
	return out
}

func (d *db) get(resource, id string) (entity.Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, row := d.findLocked(resource, id)
	if row == nil {
		return nil, errNotFound
	}
	return clone(row), nil
}

func (d *db) create(resource string, payload entity.Entity) entity.Entity {
	d.mu.Lock()
	defer d.mu.Unlock()
	row := clone(payload)
	row["id"] = json.Number(strconv.FormatInt(d.nextID[resource], 10))
	d.nextID[resource]++
	row["createdAt"] = d.now().UTC().Format(time.RFC3339)
	d.resolveLocked(row)
	d.tables[resource] = append(d.tables[resource], row)
	if resource == "issues" {
		d.drawDownLocked(row)
	}
	return clone(row)
}

func (d *db) update(resource, id string, payload entity.Entity) (entity.Entity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx, row := d.findLocked(resource, id)
	if row == nil {
		return nil, errNotFound
	}
	next := clone(row)
	for k, v := range payload {
		if k == "id" {
			continue
		}
		next[k] = v
	}
	next["updatedAt"] = d.now().UTC().Format(time.RFC3339)
	d.resolveLocked(next)
	d.tables[resource][idx] = next
	return clone(next), nil
}

func (d *db) remove(resource, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx, row := d.findLocked(resource, id)
	if row == nil {
		return errNotFound
	}
	d.tables[resource] = slices.Delete(d.tables[resource], idx, idx+1)
	return nil
}

func (d *db) findLocked(resource, id string) (int, entity.Entity) {
	for i, row := range d.tables[resource] {
		if row.ID() == id {
			return i, row
		}
	}
	return -1, nil
}

// resolveLocked embeds related records named by *Id fields.
func (d *db) resolveLocked(row entity.Entity) {
	for _, rel := range relations {
		v, ok := row[rel.field]
		if !ok {
			continue
		}
		id := strings.TrimSpace(entity.Text(v))
		if _, related := d.findLocked(rel.resource, id); related != nil {
			row[rel.embed] = summary(related)
		}
	}
}

// drawDownLocked subtracts an issued quantity from the matching inventory
// row, which is why issues invalidate the inventory list.
func (d *db) drawDownLocked(issue entity.Entity) {
	qty := entity.DecimalAt(issue, "quantity")
	if !qty.IsPositive() {
		return
	}
	item := entity.Text(issue["itemId"])
	site := entity.Text(issue["siteId"])
	for _, row := range d.tables["inventory"] {
		if entity.Text(lookup(row, "Item.id")) != item || entity.Text(lookup(row, "Site.id")) != site {
			continue
		}
		left := entity.DecimalAt(row, "quantity").Sub(qty)
		if left.IsNegative() {
			left = decimal.Zero
		}
		row["quantity"] = json.Number(left.String())
		row["updatedAt"] = d.now().UTC().Format(time.RFC3339)
		return
	}
}

func lookup(e entity.Entity, path string) any {
	v, _ := entity.Lookup(e, path)
	return v
}

// summary is the embedded form of a related record: its scalar fields.
func summary(e entity.Entity) map[string]any {
	out := make(map[string]any)
	for k, v := range e {
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		out[k] = v
	}
	return out
}

func clone(e entity.Entity) entity.Entity {
	out, err := normalize(e)
	if err != nil || out == nil {
		return entity.Entity{}
	}
	return out
}
