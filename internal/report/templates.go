package report

import (
	"fmt"

	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

// Template is a ready-made query offered on the reporting page.
type Template struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

func chefTemplates(store.Dialect) []Template {
	return []Template{
		{
			Name:  "Dishes of an assortment group",
			Query: "SELECT * FROM core_dish WHERE assortment_group_id = (SELECT id FROM core_assortmentgroup WHERE name = 'Суп')",
		},
		{
			Name:  "Dishes containing an ingredient",
			Query: "SELECT d.name, d.price, d.output FROM core_dish d JOIN core_dish_ingredients di ON d.id = di.dish_id JOIN core_ingredient i ON di.ingredient_id = i.id WHERE i.name LIKE '%курица%'",
		},
		{
			Name:  "Dishes in a price range",
			Query: "SELECT * FROM core_dish WHERE price BETWEEN 100 AND 500 ORDER BY price",
		},
	}
}

func managerTemplates(d store.Dialect) []Template {
	return []Template{
		{
			Name:  "Deliveries of the last week",
			Query: fmt.Sprintf("SELECT * FROM core_delivery WHERE date >= %s", d.DaysAgoExpr(7)),
		},
		{
			Name:  "Products running low",
			Query: "SELECT * FROM core_product WHERE remaining_stock < 10 ORDER BY remaining_stock ASC",
		},
		{
			Name:  "Requests of the last month",
			Query: fmt.Sprintf("SELECT * FROM core_request WHERE date >= %s", d.DaysAgoExpr(30)),
		},
	}
}

func hrTemplates(store.Dialect) []Template {
	return []Template{
		{
			Name:  "Employees holding a position",
			Query: "SELECT * FROM core_employee WHERE position_id = (SELECT id FROM core_position WHERE name = 'Повар')",
		},
		{
			Name:  "Employees living in a city",
			Query: "SELECT e.first_name, e.last_name, c.name AS city FROM core_employee e JOIN core_city c ON e.city_id = c.id WHERE c.name = 'Москва'",
		},
		{
			Name:  "Employees with a profession",
			Query: "SELECT e.* FROM core_employee e JOIN core_workbook w ON e.id = w.employee_id JOIN core_profession p ON w.profession_id = p.id WHERE p.name LIKE '%повар%'",
		},
	}
}

func directorTemplates(store.Dialect) []Template {
	return []Template{
		{
			Name:  "Dishes priced above average",
			Query: "SELECT * FROM core_dish WHERE price > (SELECT AVG(price) FROM core_dish)",
		},
		{
			Name:  "Top 5 most expensive dishes",
			Query: "SELECT * FROM core_dish ORDER BY price DESC LIMIT 5",
		},
		{
			Name:  "Employees by position",
			Query: "SELECT e.first_name, e.last_name, p.name AS position FROM core_employee e JOIN core_position p ON e.position_id = p.id WHERE p.name LIKE '%повар%'",
		},
	}
}

// Templates returns the query templates of the principal's role. Directors
// and superusers get their own three followed by every other role's.
func Templates(p *metadata.Principal, d store.Dialect) []Template {
	if p == nil {
		return nil
	}
	if p.Unrestricted() {
		out := directorTemplates(d)
		out = append(out, managerTemplates(d)...)
		out = append(out, chefTemplates(d)...)
		return append(out, hrTemplates(d)...)
	}
	switch p.Role {
	case metadata.RoleManager:
		return managerTemplates(d)
	case metadata.RoleChef:
		return chefTemplates(d)
	case metadata.RoleHRManager:
		return hrTemplates(d)
	}
	return nil
}
