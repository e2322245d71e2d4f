package analytics

import (
	"fmt"
	"time"

	"catering-backend/internal/store"
)

const dateLayout = "2006-01-02"

// DefaultRangeDays is the span used when no start date is given.
const DefaultRangeDays = 30

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) StartString() string { return r.Start.Format(dateLayout) }
func (r DateRange) EndString() string   { return r.End.Format(dateLayout) }

// ParseDateRange reads YYYY-MM-DD bounds. A missing or malformed bound
// falls back to the last DefaultRangeDays days ending today; reversed
// bounds are swapped.
func ParseDateRange(start, end string, now time.Time) DateRange {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	r := DateRange{Start: today.AddDate(0, 0, -DefaultRangeDays), End: today}
	if t, err := time.Parse(dateLayout, start); err == nil {
		r.Start = t
	}
	if t, err := time.Parse(dateLayout, end); err == nil {
		r.End = t
	}
	if r.Start.After(r.End) {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

// Chart is one aggregate. Its query selects a label and a value column.
type Chart struct {
	ID       string
	Title    string
	Type     string // bar, line or pie
	Requires []string
	Dated    bool
	query    func(d store.Dialect, r DateRange) (string, []any)
}

func between(d store.Dialect, column string, r DateRange) (string, []any) {
	pb := d.NewParamBuilder()
	return fmt.Sprintf("%s BETWEEN %s AND %s", column, pb.Add(r.StartString()), pb.Add(r.EndString())), pb.Params()
}

func undated(sql string) func(store.Dialect, DateRange) (string, []any) {
	return func(store.Dialect, DateRange) (string, []any) { return sql, nil }
}

// Charts lists every chart in dashboard order.
var Charts = []Chart{
	{
		ID: "top-dishes", Title: "Top 5 dishes by quantity sold", Type: "bar",
		Requires: []string{"dish", "reportdish"}, Dated: true,
		query: func(d store.Dialect, r DateRange) (string, []any) {
			where, args := between(d, "r.date", r)
			return `SELECT d.name AS label, SUM(rd.quantity) AS value
FROM core_reportdish rd
JOIN core_dish d ON d.id = rd.dish_id
JOIN core_report r ON r.id = rd.report_id
WHERE ` + where + `
GROUP BY d.name
ORDER BY value DESC
LIMIT 5`, args
		},
	},
	{
		ID: "revenue-by-group", Title: "Revenue by assortment group", Type: "bar",
		Requires: []string{"dish", "reportdish"}, Dated: true,
		query: func(d store.Dialect, r DateRange) (string, []any) {
			where, args := between(d, "r.date", r)
			return `SELECT g.name AS label, SUM(rd.quantity * d.price) AS value
FROM core_reportdish rd
JOIN core_dish d ON d.id = rd.dish_id
JOIN core_assortmentgroup g ON g.id = d.assortment_group_id
JOIN core_report r ON r.id = rd.report_id
WHERE ` + where + `
GROUP BY g.name
ORDER BY value DESC`, args
		},
	},
	{
		ID: "low-stock", Title: "Products running low", Type: "bar",
		Requires: []string{"product"},
		query: undated(`SELECT name AS label, remaining_stock AS value
FROM core_product
WHERE remaining_stock < 20
ORDER BY remaining_stock
LIMIT 10`),
	},
	{
		ID: "monthly-deliveries", Title: "Deliveries per month", Type: "line",
		Requires: []string{"delivery"}, Dated: true,
		query: func(d store.Dialect, r DateRange) (string, []any) {
			where, args := between(d, "date", r)
			month := d.MonthExpr("date")
			return fmt.Sprintf(`SELECT %s AS label, COUNT(id) AS value
FROM core_delivery
WHERE %s
GROUP BY %s
ORDER BY label`, month, where, month), args
		},
	},
	{
		ID: "avg-dish-price", Title: "Average dish price by group", Type: "bar",
		Requires: []string{"dish"},
		query: undated(`SELECT g.name AS label, AVG(d.price) AS value
FROM core_dish d
JOIN core_assortmentgroup g ON g.id = d.assortment_group_id
GROUP BY g.name
ORDER BY value DESC`),
	},
	{
		ID: "employees-by-position", Title: "Employees by position", Type: "pie",
		Requires: []string{"employee"},
		query: undated(`SELECT p.name AS label, COUNT(e.id) AS value
FROM core_employee e
JOIN core_position p ON p.id = e.position_id
GROUP BY p.name
ORDER BY value DESC`),
	},
	{
		ID: "daily-requests", Title: "Requests per day", Type: "line",
		Requires: []string{"request"}, Dated: true,
		query: func(d store.Dialect, r DateRange) (string, []any) {
			where, args := between(d, "date", r)
			return `SELECT date AS label, COUNT(id) AS value
FROM core_request
WHERE ` + where + `
GROUP BY date
ORDER BY date`, args
		},
	},
	{
		ID: "provider-volume", Title: "Delivered quantity by provider", Type: "pie",
		Requires: []string{"delivery", "deliveryproduct"}, Dated: true,
		query: func(d store.Dialect, r DateRange) (string, []any) {
			where, args := between(d, "dl.date", r)
			return `SELECT pr.name AS label, SUM(dp.quantity) AS value
FROM core_deliveryproduct dp
JOIN core_delivery dl ON dl.id = dp.delivery_id
JOIN core_provider pr ON pr.id = dl.provider_id
WHERE ` + where + `
GROUP BY pr.name
ORDER BY value DESC`, args
		},
	},
	{
		ID: "avg-product-price", Title: "Average purchase price by provider", Type: "bar",
		Requires: []string{"product"},
		query: undated(`SELECT pr.name AS label, AVG(p.purchase_price) AS value
FROM core_product p
JOIN core_provider pr ON pr.id = p.provider_id
GROUP BY pr.name
ORDER BY value DESC
LIMIT 10`),
	},
}

// FindChart returns the chart with the given id, or nil.
func FindChart(id string) *Chart {
	for i := range Charts {
		if Charts[i].ID == id {
			return &Charts[i]
		}
	}
	return nil
}
