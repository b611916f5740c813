package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/thisisjab/fuxi/entity"
	"github.com/thisisjab/fuxi/fault"
	"github.com/thisisjab/fuxi/notify"
	"github.com/thisisjab/fuxi/querier"
)

// queryParamsHandler reads the request from the URL:
// tableName, logic, orderBy, order, limit, offset and filters (a JSON list).
func (s *server) queryParamsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := querier.Request{
		TableName: q.Get("tableName"),
		Logic:     querier.Combinator(q.Get("logic")),
		OrderBy:   q.Get("orderBy"),
		Order:     querier.Direction(q.Get("order")),
	}

	var err error
	if req.Limit, err = readIntParam(r, "limit"); s.returnOnError(w, r, err) {
		return
	}
	if req.Offset, err = readIntParam(r, "offset"); s.returnOnError(w, r, err) {
		return
	}

	if raw := q.Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Filters); err != nil {
			s.handleError(w, r, fault.New(fault.BadInputCode, "Invalid filters parameter").WithOriginal(err))
			return
		}
	}

	s.runQuery(w, r, req)
}

func (s *server) queryBodyHandler(w http.ResponseWriter, r *http.Request) {
	var req querier.Request
	if s.returnOnError(w, r, s.readJson(w, r, &req)) {
		return
	}

	s.runQuery(w, r, req)
}

// runQuery fetches the rows and, for paged requests, the total behind them.
func (s *server) runQuery(w http.ResponseWriter, r *http.Request, req querier.Request) {
	st, err := s.services.Compiler.CompileFetch(req)
	if s.returnOnError(w, r, err) {
		return
	}

	s.logger.Debug("executing query", "query", st.Query, "params", st.Args)

	rows, err := s.services.Storage.Query(r.Context(), st)
	if s.returnOnError(w, r, err) {
		return
	}

	res := apiResponse{Success: true, Data: rows}

	if req.Paged() {
		total, err := s.count(r, req)
		if s.returnOnError(w, r, err) {
			return
		}

		p := entity.NewPagination(total, req.Limit, req.Offset)
		res.Pagination = &p
	}

	s.writeJson(w, http.StatusOK, res, nil) //nolint:errcheck
}

func (s *server) count(r *http.Request, req querier.Request) (int64, error) {
	st, err := s.services.Compiler.CompileCount(req)
	if err != nil {
		return 0, err
	}

	rows, err := s.services.Storage.Query(r.Context(), st)
	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		return 0, nil
	}

	return entity.ParseTotal(rows[0]["total"])
}

// createHandler inserts the body, minus the optional tableName, as a row.
func (s *server) createHandler(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if s.returnOnError(w, r, s.readJson(w, r, &body)) {
		return
	}

	table, err := splitTableName(body)
	if s.returnOnError(w, r, err) {
		return
	}

	if len(body) == 0 {
		s.handleError(w, r, fault.New(fault.BadInputCode, "No fields provided."))
		return
	}

	st, err := s.services.Compiler.CompileInsert(table, body)
	if s.returnOnError(w, r, err) {
		return
	}

	row, err := s.queryOne(r, st)
	if err != nil && isNotFound(err) {
		s.internalServerError(w, r, errors.New("insert returned no row"))
		return
	}
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Message: "Record created successfully",
		Data:    row,
	}, nil)
}

// updateHandler sets the body fields on the row with the given id and
// broadcasts an `updated` event on the table channel.
func (s *server) updateHandler(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if s.returnOnError(w, r, s.readJson(w, r, &body)) {
		return
	}

	table, err := splitTableName(body)
	if s.returnOnError(w, r, err) {
		return
	}

	id := body[querier.IDColumn]
	delete(body, querier.IDColumn)

	if isBlank(id) {
		s.handleError(w, r, fault.New(fault.BadInputCode, "ID is required."))
		return
	}

	if len(body) == 0 {
		s.handleError(w, r, fault.New(fault.BadInputCode, "No fields to update."))
		return
	}

	st, err := s.services.Compiler.CompileUpdate(table, id, body)
	if s.returnOnError(w, r, err) {
		return
	}

	row, err := s.queryOne(r, st)
	if s.returnOnError(w, r, err) {
		return
	}

	if table == "" {
		table = querier.DefaultTableName
	}

	event := make(map[string]any, len(body)+2)
	for k, v := range body {
		event[k] = v
	}
	event["id"] = id
	event["tableName"] = table
	s.publish(notify.Event{Channel: table, Name: "updated", Data: event})

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Message: "Record updated successfully",
		Data:    row,
	}, nil)
}

// deleteHandler reads id and tableName from the query string, falling back
// to a JSON body when the id is not in the URL.
func (s *server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var id any
	if v := q.Get("id"); v != "" {
		id = v
	}
	table := q.Get("tableName")

	if id == nil && r.ContentLength != 0 {
		var body struct {
			ID        any    `json:"id"`
			TableName string `json:"tableName"`
		}
		// A missing or malformed body only means there is no id.
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1_048_576)).Decode(&body); err == nil {
			id = body.ID
			if body.TableName != "" {
				table = body.TableName
			}
		}
	}

	if isBlank(id) {
		s.handleError(w, r, fault.New(fault.BadInputCode, "ID is required."))
		return
	}

	st, err := s.services.Compiler.CompileDelete(table, id)
	if s.returnOnError(w, r, err) {
		return
	}

	row, err := s.queryOne(r, st)
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Message: "Record deleted successfully",
		Data:    row,
	}, nil)
}

// queryOne runs a statement expected to return a row.
func (s *server) queryOne(r *http.Request, st querier.Statement) (entity.Row, error) {
	s.logger.Debug("executing statement", "kind", st.Kind, "query", st.Query, "params", st.Args)

	rows, err := s.services.Storage.Query(r.Context(), st)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fault.New(fault.NotFoundCode, "Record not found.")
	}

	return rows[0], nil
}

func (s *server) publish(e notify.Event) {
	if s.services.Publisher == nil {
		return
	}
	s.services.Publisher.Publish(e)
}

func isNotFound(err error) bool {
	var f fault.Fault
	return errors.As(err, &f) && f.Code() == fault.NotFoundCode
}

func isBlank(id any) bool {
	switch v := id.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0
	}
	return false
}
