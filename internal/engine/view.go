package engine

import (
	"context"
	"fmt"

	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

// ListResult is one page of a table view.
type ListResult struct {
	Entity       *metadata.EntityDescriptor `json:"entity"`
	Fields       []metadata.FieldDescriptor `json:"fields"`
	Capabilities Capabilities               `json:"capabilities"`
	Rows         []Record                   `json:"rows"`
	Page         PageInfo                   `json:"page"`
	Query        TableQuerySpec             `json:"query"`
}

// ListRecords returns a filtered, sorted page of an entity's records.
// Without a search term paging happens in SQL. With one, every record is
// loaded and matched in memory against its rendered search text.
func (s *Service) ListRecords(ctx context.Context, name string, spec TableQuerySpec, p *metadata.Principal) (*ListResult, error) {
	entity, desc, err := s.resolveEntity(name)
	if err != nil {
		return nil, err
	}
	if err := CheckPermission(p, entity.Name, metadata.ActionView); err != nil {
		return nil, err
	}

	spec.Entity = entity.Name
	spec.Normalize(entity)
	orders := spec.OrderBy(entity)
	d := s.store.Dialect
	resolver := newDisplayResolver(s.store.DB, d, s.registry)

	var rows []map[string]any
	var page PageInfo
	if spec.Search == "" {
		var total int
		cr := BuildCountSQL(entity)
		if err := s.store.DB.QueryRowContext(ctx, cr.SQL, cr.Params...).Scan(&total); err != nil {
			return nil, fmt.Errorf("count %s: %w", entity.Name, err)
		}
		page = paginate(spec.Page, spec.PageSize, total)
		qr := BuildSelectSQL(d, entity, orders, page.PageSize, page.offset())
		rows, err = store.QueryRows(ctx, s.store.DB, qr.SQL, qr.Params...)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", entity.Name, err)
		}
		if err := resolver.preload(ctx, entity, rows, 0); err != nil {
			return nil, err
		}
	} else {
		qr := BuildSelectSQL(d, entity, orders, 0, 0)
		all, err := store.QueryRows(ctx, s.store.DB, qr.SQL, qr.Params...)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", entity.Name, err)
		}
		if err := resolver.preload(ctx, entity, all, 0); err != nil {
			return nil, err
		}
		matched := resolver.filterRows(entity, all, spec.Search)
		page = paginate(spec.Page, spec.PageSize, len(matched))
		end := min(page.offset()+page.PageSize, len(matched))
		rows = matched[page.offset():end]
	}
	spec.Page = page.Page

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, resolver.toRecord(entity, row))
	}

	return &ListResult{
		Entity:       desc,
		Fields:       desc.Fields,
		Capabilities: CapabilitiesFor(p, entity.Name),
		Rows:         records,
		Page:         page,
		Query:        spec,
	}, nil
}

// TableSummary is one entry of a role's landing page.
type TableSummary struct {
	Name         string       `json:"name"`
	Label        string       `json:"label"`
	Count        int          `json:"count"`
	Capabilities Capabilities `json:"capabilities"`
}

// Tables lists the caller's visible entities with their record counts.
func (s *Service) Tables(ctx context.Context, p *metadata.Principal) ([]TableSummary, error) {
	if p == nil {
		return nil, UnauthorizedError("Authentication required")
	}
	visible := VisibleEntities(p, s.registry)
	out := make([]TableSummary, 0, len(visible))
	for _, v := range visible {
		entity := s.registry.GetEntity(v.Name)
		var count int
		cr := BuildCountSQL(entity)
		if err := s.store.DB.QueryRowContext(ctx, cr.SQL).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", entity.Name, err)
		}
		out = append(out, TableSummary{
			Name:         v.Name,
			Label:        v.Label,
			Count:        count,
			Capabilities: CapabilitiesFor(p, v.Name),
		})
	}
	return out, nil
}

// Option is a selectable record in a form.
type Option struct {
	ID      int64  `json:"id"`
	Display string `json:"display"`
}

type FormField struct {
	metadata.FieldDescriptor
	Required bool     `json:"required"`
	Value    any      `json:"value"`
	Options  []Option `json:"options,omitempty"`
}

// FormSpec is what the presentation layer needs to render a create or edit form.
type FormSpec struct {
	Entity     *metadata.EntityDescriptor `json:"entity"`
	Action     metadata.Action            `json:"action"`
	Fields     []FormField                `json:"fields"`
	ManyToMany []FormField                `json:"many_to_many,omitempty"`
	Record     *Record                    `json:"record,omitempty"`
}

// Form describes the create form (id nil) or the edit form of a record.
func (s *Service) Form(ctx context.Context, name string, id *int64, p *metadata.Principal) (*FormSpec, error) {
	entity, desc, err := s.resolveEntity(name)
	if err != nil {
		return nil, err
	}
	action := metadata.ActionAdd
	if id != nil {
		action = metadata.ActionChange
	}
	if err := CheckPermission(p, entity.Name, action); err != nil {
		return nil, err
	}

	form := &FormSpec{Entity: desc, Action: action}
	if id != nil {
		rec, err := s.fetchRecord(ctx, entity, *id)
		if err != nil {
			return nil, err
		}
		form.Record = &rec
	}

	options := make(map[string][]Option)
	for _, fd := range desc.Fields {
		f := entity.GetField(fd.Name)
		ff := FormField{FieldDescriptor: fd, Required: f.Required(), Value: f.Default}
		if form.Record != nil {
			ff.Value = form.Record.Values[fd.Name]
		}
		if fd.Kind == metadata.KindReference {
			if ff.Options, err = s.optionsFor(ctx, fd.Target.Name, options); err != nil {
				return nil, err
			}
		}
		form.Fields = append(form.Fields, ff)
	}

	for _, rel := range s.registry.ManyToMany(entity.Name) {
		fd := findDescriptor(desc.ManyToMany, rel.Name)
		ff := FormField{FieldDescriptor: fd, Value: []int64{}}
		if ff.Options, err = s.optionsFor(ctx, rel.Target, options); err != nil {
			return nil, err
		}
		if id != nil {
			selected, err := relatedIDs(ctx, s.store.DB, s.store.Dialect, rel, *id)
			if err != nil {
				return nil, err
			}
			ff.Value = selected
		}
		form.ManyToMany = append(form.ManyToMany, ff)
	}
	return form, nil
}

func findDescriptor(fields []metadata.FieldDescriptor, name string) metadata.FieldDescriptor {
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	return metadata.FieldDescriptor{Name: name, Kind: metadata.KindManyToMany}
}

// optionsFor lists every record of target in its default order.
func (s *Service) optionsFor(ctx context.Context, target string, cache map[string][]Option) ([]Option, error) {
	if opts, ok := cache[target]; ok {
		return opts, nil
	}
	entity := s.registry.GetEntity(target)
	if entity == nil {
		return nil, UnknownEntityError(target)
	}
	spec := TableQuerySpec{}
	qr := BuildSelectSQL(s.store.Dialect, entity, spec.OrderBy(entity), 0, 0)
	rows, err := store.QueryRows(ctx, s.store.DB, qr.SQL, qr.Params...)
	if err != nil {
		return nil, fmt.Errorf("load %s options: %w", target, err)
	}
	resolver := newDisplayResolver(s.store.DB, s.store.Dialect, s.registry)
	if err := resolver.preload(ctx, entity, rows, 1); err != nil {
		return nil, err
	}
	opts := make([]Option, 0, len(rows))
	for _, row := range rows {
		id, _ := toInt64(row[entity.PrimaryKey])
		opts = append(opts, Option{ID: id, Display: resolver.recordDisplay(entity, row)})
	}
	cache[target] = opts
	return opts, nil
}

// relatedIDs returns the target ids linked to a source record.
func relatedIDs(ctx context.Context, q store.Querier, d store.Dialect, rel *metadata.Relation, sourceID int64) ([]int64, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
		rel.TargetJoinKey, rel.JoinTable, rel.SourceJoinKey, d.Placeholder(1), rel.TargetJoinKey)
	rows, err := store.QueryRows(ctx, q, sql, sourceID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rel.Name, err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if id, ok := toInt64(row[rel.TargetJoinKey]); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
