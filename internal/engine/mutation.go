package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"catering-backend/internal/audit"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

// MutationInput is a create or update request. Fields are keyed by field
// name; Relations carry the full target id list of many-to-many relations.
type MutationInput struct {
	Fields            map[string]any
	Relations         map[string][]any
	SaveAndAddAnother bool
}

// NewMutationInput splits a submitted body into fields and many-to-many
// relations and strips control keys.
func NewMutationInput(reg *metadata.Registry, entity *metadata.Entity, body map[string]any) MutationInput {
	in := MutationInput{Fields: make(map[string]any), Relations: make(map[string][]any)}
	for key, v := range body {
		if controlKeys[key] {
			continue
		}
		if reg.FindManyToMany(entity.Name, key) != nil {
			in.Relations[key] = toList(v)
			continue
		}
		in.Fields[key] = v
	}
	return in
}

func toList(v any) []any {
	switch l := v.(type) {
	case nil:
		return []any{}
	case []any:
		return l
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	case []int64:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out
	case string:
		if strings.TrimSpace(l) == "" {
			return []any{}
		}
		var out []any
		for _, part := range strings.Split(l, ",") {
			out = append(out, strings.TrimSpace(part))
		}
		return out
	default:
		return []any{v}
	}
}

// Outcome tells the presentation layer where to go after a successful save.
type Outcome string

const (
	OutcomeShowList   Outcome = "list"
	OutcomeAddAnother Outcome = "add_another"
)

type MutationResult struct {
	Record   Record   `json:"data"`
	Outcome  Outcome  `json:"outcome"`
	Redirect string   `json:"redirect"`
	Replaced []string `json:"-"` // stored files the write no longer references
}

// WritePlan is a validated write, ready to execute.
type WritePlan struct {
	IsCreate  bool
	Entity    *metadata.Entity
	ID        int64
	Values    map[string]any
	Relations []RelationWrite
}

// RelationWrite replaces the full membership of a many-to-many relation.
type RelationWrite struct {
	Relation  *metadata.Relation
	TargetIDs []int64
}

// Create validates and inserts a record together with its many-to-many
// memberships in one transaction.
func (s *Service) Create(ctx context.Context, name string, in MutationInput, p *metadata.Principal) (*MutationResult, error) {
	entity, _, err := s.resolveEntity(name)
	if err != nil {
		return nil, err
	}
	if err := CheckPermission(p, entity.Name, metadata.ActionAdd); err != nil {
		return nil, err
	}

	plan, errs := PlanWrite(s.registry, entity, in, nil)
	if len(errs) > 0 {
		return nil, ValidationError(errs)
	}
	rec, err := s.apply(ctx, plan)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, p, audit.ActionCreate, entity.Name, rec.ID, rec.Display, "")

	result := &MutationResult{Record: rec, Outcome: OutcomeShowList, Redirect: ListPath(entity.Name)}
	if in.SaveAndAddAnother {
		result.Outcome = OutcomeAddAnother
		result.Redirect = AddPath(entity.Name)
	}
	return result, nil
}

// Update applies a partial update. Fields not submitted keep their stored
// values; a submitted relation replaces the membership entirely.
func (s *Service) Update(ctx context.Context, name string, id int64, in MutationInput, p *metadata.Principal) (*MutationResult, error) {
	entity, _, err := s.resolveEntity(name)
	if err != nil {
		return nil, err
	}
	if err := CheckPermission(p, entity.Name, metadata.ActionChange); err != nil {
		return nil, err
	}

	existing, err := fetchRow(ctx, s.store.DB, s.store.Dialect, entity, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError(entity.Name, id)
		}
		return nil, fmt.Errorf("get %s/%d: %w", entity.Name, id, err)
	}

	plan, errs := PlanWrite(s.registry, entity, in, existing)
	if len(errs) > 0 {
		return nil, ValidationError(errs)
	}
	plan.ID = id

	current := make(map[string][]int64, len(plan.Relations))
	for _, rw := range plan.Relations {
		ids, err := relatedIDs(ctx, s.store.DB, s.store.Dialect, rw.Relation, id)
		if err != nil {
			return nil, err
		}
		current[rw.Relation.Name] = ids
	}
	detail := changeDetail(changedFields(entity, plan, existing, current))
	replaced := replacedFiles(entity, plan, existing)

	rec, err := s.apply(ctx, plan)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, p, audit.ActionUpdate, entity.Name, rec.ID, rec.Display, detail)

	return &MutationResult{Record: rec, Outcome: OutcomeShowList, Redirect: ListPath(entity.Name), Replaced: replaced}, nil
}

// apply runs a plan in its own transaction and returns the stored record.
func (s *Service) apply(ctx context.Context, plan *WritePlan) (Record, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := ExecuteWritePlan(ctx, tx, s.store.Dialect, s.registry, plan)
	if err != nil {
		return Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	return s.fetchRecord(ctx, plan.Entity, id)
}

// ExecuteWritePlan performs the planned insert or update and the relation
// replacements on tx. Nothing is committed here.
func ExecuteWritePlan(ctx context.Context, tx *sql.Tx, d store.Dialect, reg *metadata.Registry, plan *WritePlan) (int64, error) {
	if errs := checkReferences(ctx, tx, d, reg, plan); len(errs) > 0 {
		return 0, ValidationError(errs)
	}

	id := plan.ID
	if plan.IsCreate {
		query, params := BuildInsertSQL(d, plan.Entity, plan.Values)
		newID, err := store.InsertReturningID(ctx, tx, query, params...)
		if err != nil {
			return 0, writeError(d, plan.Entity, err)
		}
		id = newID
	} else if len(plan.Values) > 0 {
		query, params := BuildUpdateSQL(d, plan.Entity, id, plan.Values)
		if _, err := store.Exec(ctx, tx, query, params...); err != nil {
			return 0, writeError(d, plan.Entity, err)
		}
	}

	for _, rw := range plan.Relations {
		if err := replaceManyToMany(ctx, tx, d, reg, rw, id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// checkReferences verifies every submitted foreign key points at a stored record.
func checkReferences(ctx context.Context, q store.Querier, d store.Dialect, reg *metadata.Registry, plan *WritePlan) []ErrorDetail {
	var errs []ErrorDetail
	for _, f := range plan.Entity.ReferenceFields() {
		v, ok := plan.Values[f.Name]
		if !ok || v == nil {
			continue
		}
		target := reg.GetEntity(f.References)
		if target == nil {
			continue
		}
		missing, err := missingIDs(ctx, q, d, target, []int64{v.(int64)})
		if err != nil {
			errs = append(errs, ErrorDetail{Field: f.Name, Rule: "exists", Message: err.Error()})
			continue
		}
		if len(missing) > 0 {
			errs = append(errs, ErrorDetail{
				Field:   f.Name,
				Rule:    "exists",
				Message: "Select a valid choice. That choice is not one of the available choices.",
			})
		}
	}
	return errs
}

// missingIDs returns the ids that have no row in the target entity.
func missingIDs(ctx context.Context, q store.Querier, d store.Dialect, target *metadata.Entity, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	pb := d.NewParamBuilder()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		target.PrimaryKey, target.Table, d.InExpr(target.PrimaryKey, pb, args))
	rows, err := store.QueryRows(ctx, q, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("check %s ids: %w", target.Name, err)
	}
	found := make(map[int64]bool, len(rows))
	for _, row := range rows {
		if id, ok := toInt64(row[target.PrimaryKey]); ok {
			found[id] = true
		}
	}
	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// replaceManyToMany makes the join rows of sourceID exactly rw.TargetIDs.
func replaceManyToMany(ctx context.Context, tx *sql.Tx, d store.Dialect, reg *metadata.Registry, rw RelationWrite, sourceID int64) error {
	rel := rw.Relation
	target := reg.GetEntity(rel.Target)
	if target == nil {
		return fmt.Errorf("relation %s: unknown target %s", rel.Name, rel.Target)
	}

	missing, err := missingIDs(ctx, tx, d, target, rw.TargetIDs)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		parts := make([]string, len(missing))
		for i, id := range missing {
			parts[i] = fmt.Sprint(id)
		}
		return ValidationError([]ErrorDetail{{
			Field:   rel.Name,
			Rule:    "exists",
			Message: fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", strings.Join(parts, ", ")),
		}})
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", rel.JoinTable, rel.SourceJoinKey, d.Placeholder(1))
	if _, err := store.Exec(ctx, tx, del, sourceID); err != nil {
		return fmt.Errorf("clear %s: %w", rel.Name, err)
	}

	ins := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
		rel.JoinTable, rel.SourceJoinKey, rel.TargetJoinKey, d.Placeholder(1), d.Placeholder(2))
	for _, targetID := range rw.TargetIDs {
		if _, err := store.Exec(ctx, tx, ins, sourceID, targetID); err != nil {
			return fmt.Errorf("link %s %d: %w", rel.Name, targetID, err)
		}
	}
	return nil
}

// writeError maps constraint violations to API errors.
func writeError(d store.Dialect, entity *metadata.Entity, err error) error {
	err = store.MapError(d, err)
	switch {
	case errors.Is(err, store.ErrUniqueViolation):
		return ConflictError(fmt.Sprintf("A %s with these values already exists", entity.Label))
	case errors.Is(err, store.ErrForeignKeyViolation):
		return ValidationError([]ErrorDetail{{Rule: "exists", Message: "A referenced record does not exist."}})
	}
	return fmt.Errorf("write %s: %w", entity.Name, err)
}

// BuildInsertSQL inserts the given values and returns the new primary key.
func BuildInsertSQL(d store.Dialect, entity *metadata.Entity, values map[string]any) (string, []any) {
	pb := d.NewParamBuilder()
	var cols, placeholders []string
	for _, name := range sortedKeys(values) {
		f := entity.GetField(name)
		if f == nil {
			continue
		}
		cols = append(cols, f.Column())
		placeholders = append(placeholders, pb.Add(values[name]))
	}
	if len(cols) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", entity.Table, entity.PrimaryKey), nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		entity.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), entity.PrimaryKey), pb.Params()
}

// BuildUpdateSQL sets the given values on one row.
func BuildUpdateSQL(d store.Dialect, entity *metadata.Entity, id int64, values map[string]any) (string, []any) {
	pb := d.NewParamBuilder()
	var sets []string
	for _, name := range sortedKeys(values) {
		f := entity.GetField(name)
		if f == nil {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", f.Column(), pb.Add(values[name])))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		entity.Table, strings.Join(sets, ", "), entity.PrimaryKey, pb.Add(id)), pb.Params()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
