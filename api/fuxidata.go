package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/thisisjab/fuxi/entity"
	"github.com/thisisjab/fuxi/fault"
	"github.com/thisisjab/fuxi/querier"
)

const (
	defaultDataLimit = 10
	maxDataLimit     = 100
	defaultDataType  = "default"
)

// Rows of FuxiData carry the wall clock of UTC+8 in a zone-less column.
var beijing = time.FixedZone("UTC+8", 8*60*60)

// getDataHandler looks a record up by id, lists the records of a type in an
// optional time range, or pages through all records, in that order of
// precedence.
func (s *server) getDataHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		st, err := s.services.Compiler.CompileFetch(querier.Request{
			TableName: querier.DefaultTableName,
			Filters:   []querier.Filter{{Field: querier.IDColumn, Operator: querier.OpEq, Value: id}},
		})
		if s.returnOnError(w, r, err) {
			return
		}

		row, err := s.queryOne(r, st)
		if s.returnOnError(w, r, err) {
			return
		}

		s.writeJson(w, http.StatusOK, apiResponse{Success: true, Data: row}, nil) //nolint:errcheck
		return
	}

	if typ := q.Get("type"); typ != "" {
		s.dataByType(w, r, typ, q.Get("startTime"), q.Get("endTime"))
		return
	}

	limit, err := readIntParam(r, "limit")
	if s.returnOnError(w, r, err) {
		return
	}
	if limit == nil {
		limit = new(int)
		*limit = defaultDataLimit
	}
	*limit = min(*limit, maxDataLimit)

	offset, err := readIntParam(r, "offset")
	if s.returnOnError(w, r, err) {
		return
	}
	if offset == nil {
		offset = new(int)
	}

	req := querier.Request{
		TableName: querier.DefaultTableName,
		Columns:   []string{querier.IDColumn, "time", "type"},
		Limit:     limit,
		Offset:    offset,
	}

	st, err := s.services.Compiler.CompileFetch(req)
	if s.returnOnError(w, r, err) {
		return
	}

	rows, err := s.services.Storage.Query(r.Context(), st)
	if s.returnOnError(w, r, err) {
		return
	}

	total, err := s.count(r, querier.Request{TableName: querier.DefaultTableName})
	if s.returnOnError(w, r, err) {
		return
	}

	p := entity.NewPagination(total, limit, offset)
	s.writeJson(w, http.StatusOK, apiResponse{Success: true, Data: rows, Pagination: &p}, nil) //nolint:errcheck
}

func (s *server) dataByType(w http.ResponseWriter, r *http.Request, typ, start, end string) {
	filters := []querier.Filter{{Field: "type", Operator: querier.OpEq, Value: typ}}
	if start != "" {
		filters = append(filters, querier.Filter{Field: "time", Operator: querier.OpGte, Value: start})
	}
	if end != "" {
		filters = append(filters, querier.Filter{Field: "time", Operator: querier.OpLte, Value: end})
	}

	st, err := s.services.Compiler.CompileFetch(querier.Request{
		TableName: querier.DefaultTableName,
		Filters:   filters,
		OrderBy:   querier.IDColumn,
		Order:     querier.Asc,
	})
	if s.returnOnError(w, r, err) {
		return
	}

	rows, err := s.services.Storage.Query(r.Context(), st)
	if s.returnOnError(w, r, err) {
		return
	}

	msg := fmt.Sprintf("Found %d records with type: %s", len(rows), typ)
	if start != "" || end != "" {
		msg += fmt.Sprintf(" (time range: %s - %s)", orAny(start), orAny(end))
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success:  true,
		Message:  msg,
		Data:     rows,
		Metadata: map[string]any{"total": len(rows), "queryType": "type"},
	}, nil)
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}

type saveDataInput struct {
	Data any    `json:"data"`
	Type string `json:"type"`
}

// saveDataHandler stores the data payload as JSON text stamped with the
// current UTC+8 wall clock.
func (s *server) saveDataHandler(w http.ResponseWriter, r *http.Request) {
	var input saveDataInput
	if s.returnOnError(w, r, s.readJson(w, r, &input)) {
		return
	}

	if isBlank(input.Data) {
		s.handleError(w, r, fault.New(fault.BadInputCode, "No data provided."))
		return
	}

	data, err := json.Marshal(input.Data)
	if s.returnOnError(w, r, err) {
		return
	}

	typ := input.Type
	if typ == "" {
		typ = defaultDataType
	}

	st, err := s.services.Compiler.CompileInsert(querier.DefaultTableName, map[string]any{
		"data": string(data),
		"type": typ,
		"time": s.now().In(beijing),
	})
	if s.returnOnError(w, r, err) {
		return
	}

	row, err := s.queryOne(r, st)
	if err != nil && isNotFound(err) {
		s.internalServerError(w, r, fmt.Errorf("insert into %s returned no row", querier.DefaultTableName))
		return
	}
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Message: "Data saved successfully",
		Data:    entity.FuxiRecordFromRow(row),
	}, nil)
}

type updateDataInput struct {
	ID   any    `json:"id"`
	Data any    `json:"data"`
	Type string `json:"type"`
}

// updateDataHandler replaces the data of an existing record and refreshes
// its time. The type is only changed when given.
func (s *server) updateDataHandler(w http.ResponseWriter, r *http.Request) {
	var input updateDataInput
	if s.returnOnError(w, r, s.readJson(w, r, &input)) {
		return
	}

	if isBlank(input.ID) {
		s.handleError(w, r, fault.New(fault.BadInputCode, "ID is required."))
		return
	}

	if isBlank(input.Data) {
		s.handleError(w, r, fault.New(fault.BadInputCode, "Data is required."))
		return
	}

	st, err := s.services.Compiler.CompileFetch(querier.Request{
		TableName: querier.DefaultTableName,
		Columns:   []string{querier.IDColumn},
		Filters:   []querier.Filter{{Field: querier.IDColumn, Operator: querier.OpEq, Value: input.ID}},
	})
	if s.returnOnError(w, r, err) {
		return
	}

	if _, err := s.queryOne(r, st); s.returnOnError(w, r, err) {
		return
	}

	data, err := json.Marshal(input.Data)
	if s.returnOnError(w, r, err) {
		return
	}

	fields := map[string]any{
		"data": string(data),
		"time": s.now().In(beijing),
	}
	if input.Type != "" {
		fields["type"] = input.Type
	}

	st, err = s.services.Compiler.CompileUpdate(querier.DefaultTableName, input.ID, fields)
	if s.returnOnError(w, r, err) {
		return
	}

	row, err := s.queryOne(r, st)
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Message: "Data updated successfully",
		Data:    entity.FuxiRecordFromRow(row),
	}, nil)
}

func (s *server) listTablesHandler(w http.ResponseWriter, r *http.Request) {
	tables, err := s.services.Storage.Tables(r.Context())
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Message: "Tables retrieved successfully",
		Data: map[string]any{
			"totalTables": len(tables),
			"tables":      tables,
		},
	}, nil)
}
