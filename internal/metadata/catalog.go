package metadata

import "fmt"

// Choice sets used by provider, employee and workbook.
var (
	AbbreviationType = &Enum{Name: "abbreviationtype", Values: []string{"ООО", "АО", "ИП", "ПАО", "ПК", "КПКГ", "ГУП", "МУП", "ФКП", "НКО"}}
	GenderType       = &Enum{Name: "gendertype", Values: []string{"Мужской", "Женский"}}
	EventType        = &Enum{Name: "eventtype", Values: []string{"Прием", "Увольнение", "Перевод"}}
)

// DismissalEvent is the workbook event that requires a reason.
const DismissalEvent = "Увольнение"

func varchar(name, label string, n int) Field {
	return Field{Name: name, Label: label, Type: fmt.Sprintf("VARCHAR(%d)", n)}
}

func numeric(name, label string, precision, scale int) Field {
	return Field{Name: name, Label: label, Type: fmt.Sprintf("NUMERIC(%d,%d)", precision, scale), NonNegative: true}
}

func ref(name, label, target string) Field {
	return Field{Name: name, Label: label, Type: "BIGINT", References: target}
}

func date(name, label string) Field {
	return Field{Name: name, Label: label, Type: "DATE"}
}

func choice(name, label string, enum *Enum, n int) Field {
	return Field{Name: name, Label: label, Type: fmt.Sprintf("VARCHAR(%d)", n), Choices: enum.Name}
}

func address() []Field {
	return []Field{
		ref("country", "Country", "country"),
		ref("city", "City", "city"),
		ref("street", "Street", "street"),
	}
}

// named builds a lookup entity that only has a name.
func named(name, label, plural string, n int) *Entity {
	return &Entity{
		Name: name, Label: label, Plural: plural,
		Ordering: "-name", Display: []string{"name"},
		Fields: []Field{varchar("name", "Name", n)},
	}
}

// Catalog returns the catering schema. Entities are listed so that every
// foreign key points at an entity declared earlier.
func Catalog() ([]*Entity, []*Relation, []*Enum) {
	dish := &Entity{
		Name: "dish", Label: "Dish", Plural: "Dishes",
		Ordering: "-name", Display: []string{"name"},
		Fields: []Field{
			varchar("name", "Name", 30),
			withDefault(numeric("price", "Price", 10, 2), "0"),
			withDefault(numeric("output", "Output", 10, 3), "0"),
			withDefault(Field{Name: "description", Label: "Description", Type: "TEXT"}, ""),
			{Name: "image", Label: "Image", Type: "IMAGE", Nullable: true},
			ref("assortment_group", "Assortment group", "assortmentgroup"),
			ref("unit_of_measurement", "Unit of measurement", "unitofmeasurement"),
		},
	}

	provider := &Entity{
		Name: "provider", Label: "Provider", Plural: "Providers",
		Ordering: "-name", Display: []string{"name"},
		Fields: append([]Field{
			varchar("name", "Name", 30),
			varchar("code", "Code", 8),
			choice("abbreviation", "Legal form", AbbreviationType, 4),
			varchar("account_number", "Account number", 30),
			varchar("director_first_name", "Director first name", 25),
			varchar("director_last_name", "Director last name", 25),
			varchar("director_phone", "Director phone", 25),
			varchar("house_number", "House number", 6),
			ref("bank", "Bank", "bank"),
		}, address()...),
	}

	employee := &Entity{
		Name: "employee", Label: "Employee", Plural: "Employees",
		Ordering: "-last_name", Display: []string{"last_name"},
		Fields: append([]Field{
			varchar("first_name", "First name", 25),
			varchar("last_name", "Last name", 25),
			varchar("middle_name", "Middle name", 25),
			date("birthday_date", "Birthday"),
			varchar("house_number", "House number", 6),
			varchar("work_experience", "Work experience", 20),
			choice("gender", "Gender", GenderType, 7),
			ref("position", "Position", "position"),
		}, address()...),
	}

	entities := []*Entity{
		named("assortmentgroup", "Assortment group", "Assortment groups", 25),
		named("unitofmeasurement", "Unit of measurement", "Units of measurement", 8),
		{
			Name: "ingredient", Label: "Ingredient", Plural: "Ingredients",
			Ordering: "-name", Display: []string{"name"},
			Fields: []Field{
				varchar("name", "Name", 25),
				numeric("gross_weight", "Gross weight", 10, 3),
				numeric("net_weight", "Net weight", 10, 3),
			},
		},
		dish,
		{
			Name: "bank", Label: "Bank", Plural: "Banks",
			Ordering: "-name", Display: []string{"name"},
			Fields: []Field{
				varchar("name", "Name", 20),
				varchar("correspondent_account_number", "Correspondent account", 20),
				varchar("bank_identification_code", "BIC", 9),
				varchar("taxpayer_identification_number", "TIN", 10),
			},
		},
		named("country", "Country", "Countries", 20),
		named("city", "City", "Cities", 20),
		named("street", "Street", "Streets", 20),
		provider,
		{
			Name: "product", Label: "Product", Plural: "Products",
			Ordering: "-name", Display: []string{"name"},
			Fields: []Field{
				varchar("name", "Name", 40),
				numeric("price_premium", "Price premium", 4, 2),
				numeric("remaining_stock", "Remaining stock", 10, 3),
				numeric("purchase_price", "Purchase price", 10, 2),
				ref("unit_of_measurement", "Unit of measurement", "unitofmeasurement"),
				ref("provider", "Provider", "provider"),
			},
		},
		{
			Name: "delivery", Label: "Delivery", Plural: "Deliveries",
			Ordering: "-date", Display: []string{"date"},
			Fields: []Field{date("date", "Date"), ref("provider", "Provider", "provider")},
		},
		lineItem("deliveryproduct", "Delivered product", "Delivered products", "delivery", "Delivery", "product", "Product"),
		named("division", "Division", "Divisions", 20),
		{
			Name: "request", Label: "Request", Plural: "Requests",
			Ordering: "-date", Display: []string{"date"},
			Fields: []Field{date("date", "Date"), ref("division", "Division", "division")},
		},
		lineItem("requestproduct", "Requested product", "Requested products", "request", "Request", "product", "Product"),
		{
			Name: "report", Label: "Report", Plural: "Reports",
			Ordering: "-date", Display: []string{"date"},
			Fields: []Field{date("date", "Date")},
		},
		lineItem("reportdish", "Reported dish", "Reported dishes", "report", "Report", "dish", "Dish"),
		{
			Name: "position", Label: "Position", Plural: "Positions",
			Ordering: "-name", Display: []string{"name"},
			Fields: []Field{varchar("name", "Name", 25), varchar("code", "Code", 20)},
		},
		employee,
		{
			Name: "placeofwork", Label: "Place of work", Plural: "Places of work",
			Ordering: "-name", Display: []string{"name"},
			Fields: append([]Field{varchar("name", "Name", 25)}, address()...),
		},
		named("department", "Department", "Departments", 25),
		named("profession", "Profession", "Professions", 25),
		named("specialization", "Specialization", "Specializations", 25),
		named("classification", "Classification", "Classifications", 25),
		{
			Name: "workbook", Label: "Work book entry", Plural: "Work book",
			Ordering: "-event_date", Display: []string{"employee", "event_date"},
			Fields: []Field{
				{Name: "event_date", Label: "Event date", Type: "DATE", Nullable: true},
				{Name: "reason_for_dismissal", Label: "Reason for dismissal", Type: "TEXT", Nullable: true},
				choice("event_type", "Event type", EventType, 10),
				varchar("number", "Number", 20),
				varchar("document_type", "Document type", 30),
				ref("employee", "Employee", "employee"),
				ref("place_of_work", "Place of work", "placeofwork"),
				ref("department", "Department", "department"),
				ref("profession", "Profession", "profession"),
				ref("specialization", "Specialization", "specialization"),
				ref("classification", "Classification", "classification"),
			},
		},
	}

	relations := []*Relation{
		{
			Name: "ingredients", Label: "Ingredients", Type: "many_to_many",
			Source: "dish", Target: "ingredient",
			JoinTable: TablePrefix + "dish_ingredients", SourceJoinKey: "dish_id", TargetJoinKey: "ingredient_id",
			OnDelete: "detach",
		},
	}

	return entities, relations, []*Enum{AbbreviationType, GenderType, EventType}
}

// CatalogRules returns the custom validation rules of the catalog.
func CatalogRules() []*Rule {
	return []*Rule{
		{
			Entity:     "ingredient",
			Field:      "net_weight",
			Expression: `record.net_weight != nil && record.gross_weight != nil && record.net_weight > record.gross_weight`,
			Message:    "net weight cannot exceed gross weight",
		},
		{
			Entity:     "employee",
			Field:      "birthday_date",
			Expression: `record.birthday_date != nil && record.birthday_date > today`,
			Message:    "birthday cannot be in the future",
		},
		{
			Entity:     "workbook",
			Field:      "reason_for_dismissal",
			Expression: `record.event_type == "` + DismissalEvent + `" && (record.reason_for_dismissal == nil || trim(record.reason_for_dismissal) == "")`,
			Message:    "reason for dismissal is required",
		},
	}
}

func lineItem(name, label, plural, parent, parentLabel, item, itemLabel string) *Entity {
	return &Entity{
		Name: name, Label: label, Plural: plural,
		Ordering: "-id", Display: []string{item, "quantity"},
		Fields: []Field{
			ref(parent, parentLabel, parent),
			ref(item, itemLabel, item),
			numeric("quantity", "Quantity", 10, 3),
		},
	}
}

func withDefault(f Field, v any) Field {
	f.Default = v
	return f
}
