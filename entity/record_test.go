package entity

import (
	"encoding/json"
	"testing"
)

func intPtr(i int) *int { return &i }

func TestNewPagination(t *testing.T) {
	tests := map[string]struct {
		total         int64
		limit, offset *int
		want          string
	}{
		"has more": {
			total: 30, limit: intPtr(20), offset: intPtr(0),
			want: `{"total":30,"limit":20,"offset":0,"hasMore":true}`,
		},
		"last page": {
			total: 30, limit: intPtr(20), offset: intPtr(10),
			want: `{"total":30,"limit":20,"offset":10,"hasMore":false}`,
		},
		"limit only": {
			total: 3, limit: intPtr(2),
			want: `{"total":3,"limit":2,"offset":0}`,
		},
		"offset only": {
			total: 3, offset: intPtr(1),
			want: `{"total":3,"offset":1}`,
		},
	}

	for name, tt := range tests {
		actual, err := json.Marshal(NewPagination(tt.total, tt.limit, tt.offset))
		if err != nil {
			t.Fatalf("%s: Marshal returned error: %v", name, err)
		}
		if string(actual) != tt.want {
			t.Fatalf("%s: NewPagination\n%s,\nwant %s", name, actual, tt.want)
		}
	}
}

func TestParseTotal(t *testing.T) {
	tests := map[string]struct {
		in      any
		want    int64
		wantErr bool
	}{
		"int64":       {in: int64(12), want: 12},
		"uint64":      {in: uint64(7), want: 7},
		"int":         {in: 3, want: 3},
		"float":       {in: float64(4), want: 4},
		"string":      {in: "42", want: 42},
		"json number": {in: json.Number("5"), want: 5},
		"bytes":       {in: []byte("9"), want: 9},
		"fraction":    {in: 1.5, wantErr: true},
		"garbage":     {in: "many", wantErr: true},
		"nil":         {in: nil, wantErr: true},
		"bool":        {in: true, wantErr: true},
	}

	for name, tt := range tests {
		actual, err := ParseTotal(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got %d", name, actual)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: returned error: %v", name, err)
		}
		if actual != tt.want {
			t.Fatalf("%s: ParseTotal = %d, want %d", name, actual, tt.want)
		}
	}
}

func TestFuxiRecordFromRow(t *testing.T) {
	r := FuxiRecordFromRow(Row{"id": int64(1), "type": "point", "data": map[string]any{"x": 1.0}, "time": "t", "extra": 1})

	if r.ID != int64(1) || r.Type != "point" || r.Time != "t" {
		t.Fatalf("FuxiRecordFromRow = %+v", r)
	}
}
