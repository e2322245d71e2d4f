package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"catering-backend/internal/engine"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

// Series is a computed chart.
type Series struct {
	Chart  string    `json:"chart"`
	Title  string    `json:"title"`
	Type   string    `json:"type"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Start  string    `json:"start_date,omitempty"`
	End    string    `json:"end_date,omitempty"`
}

type Service struct {
	store  *store.Store
	logger *zap.Logger
}

func NewService(s *store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, logger: logger}
}

// Allowed reports whether the principal may view every entity the chart reads.
func Allowed(p *metadata.Principal, chart *Chart) bool {
	for _, entity := range chart.Requires {
		if !engine.HasCapability(p, entity, metadata.ActionView) {
			return false
		}
	}
	return true
}

// Compute runs one chart for the principal.
func (s *Service) Compute(ctx context.Context, id string, p *metadata.Principal, r DateRange) (*Series, error) {
	chart := FindChart(id)
	if chart == nil {
		return nil, engine.NewAppError("NOT_FOUND", 404, fmt.Sprintf("Unknown chart: %s", id))
	}
	if p == nil {
		return nil, engine.UnauthorizedError("Authentication required")
	}
	if !Allowed(p, chart) {
		return nil, engine.ForbiddenError(fmt.Sprintf("Permission denied: chart %s", id))
	}
	return s.compute(ctx, chart, r)
}

// Dashboard computes every chart the principal may view. A failing chart
// is logged and left out, so one broken aggregate does not hide the rest.
func (s *Service) Dashboard(ctx context.Context, p *metadata.Principal, r DateRange) ([]Series, error) {
	if p == nil {
		return nil, engine.UnauthorizedError("Authentication required")
	}
	out := []Series{}
	for i := range Charts {
		chart := &Charts[i]
		if !Allowed(p, chart) {
			continue
		}
		series, err := s.compute(ctx, chart, r)
		if err != nil {
			s.logger.Error("compute chart", zap.String("chart", chart.ID), zap.Error(err))
			continue
		}
		if len(series.Labels) > 0 {
			out = append(out, *series)
		}
	}
	return out, nil
}

func (s *Service) compute(ctx context.Context, chart *Chart, r DateRange) (*Series, error) {
	query, args := chart.query(s.store.Dialect, r)
	rows, err := store.QueryRows(ctx, s.store.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", chart.ID, err)
	}

	series := &Series{Chart: chart.ID, Title: chart.Title, Type: chart.Type, Labels: []string{}, Values: []float64{}}
	if chart.Dated {
		series.Start, series.End = r.StartString(), r.EndString()
	}
	for _, row := range rows {
		label, ok := labelString(row["label"])
		if !ok {
			continue
		}
		series.Labels = append(series.Labels, label)
		series.Values = append(series.Values, toFloat(row["value"]))
	}
	return series, nil
}

func labelString(v any) (string, bool) {
	switch l := v.(type) {
	case nil:
		return "", false
	case string:
		return l, l != ""
	case time.Time:
		return l.Format(dateLayout), true
	default:
		return fmt.Sprint(l), true
	}
}

// toFloat reads aggregate values, which drivers return as integers,
// floats or numeric strings.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return 0
		}
		return d.InexactFloat64()
	}
	return 0
}
