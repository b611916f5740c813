package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Row is a result row keyed by column name.
type Row map[string]any

// FuxiRecord is a row of the FuxiData table.
type FuxiRecord struct {
	ID   any    `json:"id"`
	Data any    `json:"data"`
	Type string `json:"type"`
	Time any    `json:"time"`
}

// FuxiRecordFromRow picks the FuxiData columns out of a generic row.
func FuxiRecordFromRow(r Row) FuxiRecord {
	typ, _ := r["type"].(string)
	return FuxiRecord{
		ID:   r["id"],
		Data: r["data"],
		Type: typ,
		Time: r["time"],
	}
}

// Table describes a user table and its row count. RowCount holds the
// string "Error counting rows" when counting failed.
type Table struct {
	Schema      string `json:"schemaname"`
	Name        string `json:"tablename"`
	Owner       string `json:"tableowner,omitempty"`
	HasIndexes  bool   `json:"hasindexes"`
	HasRules    bool   `json:"hasrules"`
	HasTriggers bool   `json:"hastriggers"`
	RowSecurity bool   `json:"rowsecurity"`
	RowCount    any    `json:"rowCount"`
}

// RowCountError is stored in Table.RowCount when a table could not be counted.
const RowCountError = "Error counting rows"

// Pagination is attached to query responses whose request had a limit or an offset.
type Pagination struct {
	Total  int64 `json:"total"`
	Limit  *int  `json:"limit,omitempty"`
	Offset int   `json:"offset"`

	// HasMore is only known when both limit and offset were supplied.
	HasMore *bool `json:"hasMore,omitempty"`
}

// NewPagination builds the pagination block for a window of rows.
func NewPagination(total int64, limit, offset *int) Pagination {
	p := Pagination{Total: total, Limit: limit}

	if offset != nil {
		p.Offset = *offset
	}

	if limit != nil && offset != nil {
		hasMore := int64(*offset)+int64(*limit) < total
		p.HasMore = &hasMore
	}

	return p
}

// ParseTotal converts the `total` column of a count statement into an int64.
// Drivers disagree on its type: int8, UInt64, numeric strings.
func ParseTotal(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, fmt.Errorf("total %d overflows int64", t)
		}
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("total %v is not an integer", t)
		}
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse total %q: %w", t, err)
		}
		return n, nil
	case []byte:
		return ParseTotal(string(t))
	case nil:
		return 0, fmt.Errorf("total is missing")
	default:
		return 0, fmt.Errorf("unexpected total type %T", v)
	}
}
