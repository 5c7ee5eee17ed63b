package models

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingBody is returned by Validate when a payload decodes but lacks its top-level body
var ErrMissingBody = errors.New("payload is missing its body")

// ResultSetsInput is the tabular payload shape shared by the older stats endpoints
type ResultSetsInput struct {
	Resource   string           `json:"resource"`
	ResultSets []ResultSetInput `json:"resultSets"`
	// A few endpoints return a single set under "resultSet"
	ResultSet *ResultSetInput `json:"resultSet,omitempty"`
}

// ResultSetInput is one named table of headers and rows
type ResultSetInput struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	RowSet  [][]any  `json:"rowSet"`
}

// Find returns the result set with the given name
func (r *ResultSetsInput) Find(name string) (*ResultSetInput, error) {
	for i := range r.ResultSets {
		if strings.EqualFold(r.ResultSets[i].Name, name) {
			return &r.ResultSets[i], nil
		}
	}
	if r.ResultSet != nil && strings.EqualFold(r.ResultSet.Name, name) {
		return r.ResultSet, nil
	}
	return nil, fmt.Errorf("result set %q not found in %s payload", name, r.Resource)
}

// Rows returns each row keyed by its upper-cased header
func (rs *ResultSetInput) Rows() []ResultRow {
	index := make([]string, len(rs.Headers))
	for i, h := range rs.Headers {
		index[i] = strings.ToUpper(h)
	}

	rows := make([]ResultRow, 0, len(rs.RowSet))
	for _, raw := range rs.RowSet {
		row := make(ResultRow, len(index))
		for i, h := range index {
			if i < len(raw) {
				row[h] = raw[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// ResultRow is a single resultSet row keyed by header
type ResultRow map[string]any

// String returns the value as a string, or "" when absent
func (r ResultRow) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the value as a float64
func (r ResultRow) Float(key string) (float64, bool) {
	return toFloat(r[key])
}

// Int64 returns the value as an int64
func (r ResultRow) Int64(key string) (int64, bool) {
	f, ok := toFloat(r[key])
	if !ok {
		return 0, false
	}
	return int64(math.Round(f)), true
}

// NullInt32 returns the value as a nullable int32
func (r ResultRow) NullInt32(key string) sql.NullInt32 {
	f, ok := toFloat(r[key])
	if !ok {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(math.Round(f)), Valid: true}
}

// NullInt64 returns the value as a nullable int64
func (r ResultRow) NullInt64(key string) sql.NullInt64 {
	v, ok := r.Int64(key)
	if !ok {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// NullFloat64 returns the value as a nullable float64
func (r ResultRow) NullFloat64(key string) sql.NullFloat64 {
	f, ok := toFloat(r[key])
	if !ok {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func nullInt32(p *float64) sql.NullInt32 {
	if p == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(math.Round(*p)), Valid: true}
}

func nullFloat64(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullScore(s string) sql.NullInt32 {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullInt32{}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(v), Valid: true}
}

// clockMinutes parses "M:SS" into fractional minutes
func clockMinutes(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	var minutes, seconds int
	if n, _ := fmt.Sscanf(s, "%d:%d", &minutes, &seconds); n == 2 {
		return float64(minutes) + float64(seconds)/60, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
