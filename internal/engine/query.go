package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

// AllowedPageSizes are the page sizes a list view accepts.
var AllowedPageSizes = []int{10, 20, 50, 100}

const DefaultPageSize = 10

// TableQuerySpec is the caller's list request for one entity.
type TableQuerySpec struct {
	Entity    string `json:"entity"`
	Search    string `json:"search,omitempty"`
	SortField string `json:"order_by,omitempty"`
	SortDir   string `json:"direction,omitempty"` // asc or desc
	PageSize  int    `json:"per_page"`
	Page      int    `json:"page"`
}

type OrderClause struct {
	Column string
	Dir    string // ASC or DESC
}

type QueryResult struct {
	SQL    string
	Params []any
}

// ParseTableQuery reads search, order_by, direction, per_page and page.
// Malformed values are kept as-is or zeroed; Normalize decides what they mean.
func ParseTableQuery(c *fiber.Ctx, entity string) TableQuerySpec {
	spec := TableQuerySpec{
		Entity:    entity,
		Search:    strings.TrimSpace(c.Query("search")),
		SortField: strings.TrimSpace(c.Query("order_by")),
		SortDir:   strings.ToLower(strings.TrimSpace(c.Query("direction"))),
	}
	spec.PageSize, _ = strconv.Atoi(c.Query("per_page"))
	spec.Page, _ = strconv.Atoi(c.Query("page"))
	return spec
}

// Normalize validates the spec against the entity. It never fails: an
// unknown sort field is dropped, a page size outside AllowedPageSizes
// becomes DefaultPageSize and a page below 1 becomes 1.
func (s *TableQuerySpec) Normalize(entity *metadata.Entity) {
	if !allowedPageSize(s.PageSize) {
		s.PageSize = DefaultPageSize
	}
	if s.Page < 1 {
		s.Page = 1
	}
	if s.SortField != "" && sortableField(entity, s.SortField) == nil {
		s.SortField = ""
	}
	if s.SortDir != "desc" {
		s.SortDir = "asc"
	}
	if s.SortField == "" {
		s.SortDir = ""
	}
}

func allowedPageSize(n int) bool {
	for _, size := range AllowedPageSizes {
		if size == n {
			return true
		}
	}
	return false
}

// sortableField returns the field when it is a real, stored, non-key field.
func sortableField(entity *metadata.Entity, name string) *metadata.Field {
	f := entity.GetField(name)
	if f == nil || f.Kind == metadata.KindManyToMany || name == entity.PrimaryKey {
		return nil
	}
	return f
}

// OrderBy returns the ORDER BY of a normalized spec: the explicit sort or
// the entity's default ordering, with the primary key as a tiebreaker.
func (s *TableQuerySpec) OrderBy(entity *metadata.Entity) []OrderClause {
	var orders []OrderClause
	if f := sortableField(entity, s.SortField); f != nil {
		dir := "ASC"
		if s.SortDir == "desc" {
			dir = "DESC"
		}
		orders = append(orders, OrderClause{Column: f.Column(), Dir: dir})
	} else {
		name, desc := entity.DefaultOrder()
		column := name
		if f := entity.GetField(name); f != nil {
			column = f.Column()
		}
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		orders = append(orders, OrderClause{Column: column, Dir: dir})
	}
	if orders[0].Column != entity.PrimaryKey {
		orders = append(orders, OrderClause{Column: entity.PrimaryKey, Dir: orders[0].Dir})
	}
	return orders
}

// BuildSelectSQL selects every column of the entity in the given order.
// A limit of zero selects all rows.
func BuildSelectSQL(d store.Dialect, entity *metadata.Entity, orders []OrderClause, limit, offset int) QueryResult {
	pb := d.NewParamBuilder()
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(selectColumns(entity), ", "), entity.Table)
	if len(orders) > 0 {
		parts := make([]string, len(orders))
		for i, o := range orders {
			parts[i] = o.Column + " " + o.Dir
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s OFFSET %s", pb.Add(limit), pb.Add(offset))
	}
	return QueryResult{SQL: b.String(), Params: pb.Params()}
}

// BuildCountSQL counts every row of the entity.
func BuildCountSQL(entity *metadata.Entity) QueryResult {
	return QueryResult{SQL: fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", entity.Table)}
}

// BuildByIDsSQL selects the rows with the given primary keys.
func BuildByIDsSQL(d store.Dialect, entity *metadata.Entity, ids []any) QueryResult {
	pb := d.NewParamBuilder()
	where := d.InExpr(entity.PrimaryKey, pb, ids)
	return QueryResult{
		SQL:    fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(selectColumns(entity), ", "), entity.Table, where),
		Params: pb.Params(),
	}
}

func selectColumns(entity *metadata.Entity) []string {
	cols := []string{entity.PrimaryKey}
	for i := range entity.Fields {
		cols = append(cols, entity.Fields[i].Column())
	}
	return cols
}

// PageInfo describes the page returned by a list view.
type PageInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"per_page"`
	Total    int  `json:"total"`
	Pages    int  `json:"pages"`
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
}

// paginate clamps the requested page into [1, pages].
func paginate(page, size, total int) PageInfo {
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}
	return PageInfo{
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    pages,
		HasNext:  page < pages,
		HasPrev:  page > 1,
	}
}

func (p PageInfo) offset() int {
	return (p.Page - 1) * p.PageSize
}
