package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thisisjab/fuxi/entity"
	"github.com/thisisjab/fuxi/notify"
	"github.com/thisisjab/fuxi/querier"
)

func TestGetDataByID(t *testing.T) {
	store := &fakeStorage{respond: func(st querier.Statement) ([]entity.Row, error) {
		return []entity.Row{{"id": 5, "type": "t"}}, nil
	}}
	h := newTestServer(t, store, Config{}, Services{})

	rec, res := do(t, h, http.MethodGet, "/api/fuxi-data/get-data?id=5&type=ignored", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":5,"type":"t"}`, string(res.Data))

	st := store.statements()[0]
	assert.Equal(t, `SELECT * FROM "FuxiData" WHERE "id" = $1`, st.Query)
	assert.Equal(t, []any{"5"}, st.Args)
}

func TestGetDataByIDNotFound(t *testing.T) {
	h := newTestServer(t, &fakeStorage{}, Config{}, Services{})

	rec, _ := do(t, h, http.MethodGet, "/api/fuxi-data/get-data?id=5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDataByType(t *testing.T) {
	store := &fakeStorage{respond: func(st querier.Statement) ([]entity.Row, error) {
		return []entity.Row{{"id": 1}, {"id": 2}}, nil
	}}
	h := newTestServer(t, store, Config{}, Services{})

	tests := []struct {
		target string
		query  string
		args   []any
		msg    string
	}{
		{
			target: "/api/fuxi-data/get-data?type=report",
			query:  `SELECT * FROM "FuxiData" WHERE "type" = $1 ORDER BY "id" ASC`,
			args:   []any{"report"},
			msg:    "Found 2 records with type: report",
		},
		{
			target: "/api/fuxi-data/get-data?type=report&startTime=2024-01-01&endTime=2024-02-01",
			query:  `SELECT * FROM "FuxiData" WHERE "type" = $1 AND "time" >= $2 AND "time" <= $3 ORDER BY "id" ASC`,
			args:   []any{"report", "2024-01-01", "2024-02-01"},
			msg:    "Found 2 records with type: report (time range: 2024-01-01 - 2024-02-01)",
		},
		{
			target: "/api/fuxi-data/get-data?type=report&endTime=2024-02-01",
			query:  `SELECT * FROM "FuxiData" WHERE "type" = $1 AND "time" <= $2 ORDER BY "id" ASC`,
			args:   []any{"report", "2024-02-01"},
			msg:    "Found 2 records with type: report (time range: any - 2024-02-01)",
		},
	}

	for i, tt := range tests {
		rec, res := do(t, h, http.MethodGet, tt.target, "")
		require.Equal(t, http.StatusOK, rec.Code)

		st := store.statements()[i]
		assert.Equal(t, tt.query, st.Query)
		assert.Equal(t, tt.args, st.Args)
		assert.Equal(t, tt.msg, res.Message)
		assert.Equal(t, float64(2), res.Metadata["total"])
		assert.Equal(t, "type", res.Metadata["queryType"])
	}
}

func TestGetDataPaged(t *testing.T) {
	store := &fakeStorage{respond: func(st querier.Statement) ([]entity.Row, error) {
		if strings.HasPrefix(st.Query, "SELECT COUNT(*)") {
			return []entity.Row{{"total": int64(150)}}, nil
		}
		return []entity.Row{{"id": 1}}, nil
	}}
	h := newTestServer(t, store, Config{}, Services{})

	rec, res := do(t, h, http.MethodGet, "/api/fuxi-data/get-data?limit=500&offset=20", "")
	require.Equal(t, http.StatusOK, rec.Code)

	sts := store.statements()
	require.Len(t, sts, 2)
	assert.Equal(t, `SELECT "id", "time", "type" FROM "FuxiData" LIMIT $1 OFFSET $2`, sts[0].Query)
	assert.Equal(t, []any{100, 20}, sts[0].Args)
	assert.Equal(t, `SELECT COUNT(*) as total FROM "FuxiData"`, sts[1].Query)

	require.NotNil(t, res.Pagination)
	assert.Equal(t, int64(150), res.Pagination.Total)
	assert.Equal(t, 100, *res.Pagination.Limit)
	assert.True(t, *res.Pagination.HasMore)
}

func TestGetDataPagedDefaults(t *testing.T) {
	store := &fakeStorage{respond: func(st querier.Statement) ([]entity.Row, error) {
		if strings.HasPrefix(st.Query, "SELECT COUNT(*)") {
			return []entity.Row{{"total": "3"}}, nil
		}
		return []entity.Row{}, nil
	}}
	h := newTestServer(t, store, Config{}, Services{})

	rec, res := do(t, h, http.MethodGet, "/api/fuxi-data/get-data", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []any{10, 0}, store.statements()[0].Args)
	assert.False(t, *res.Pagination.HasMore)
}

func TestSaveData(t *testing.T) {
	store := &fakeStorage{respond: func(st querier.Statement) ([]entity.Row, error) {
		return []entity.Row{{"id": 9, "data": map[string]any{"a": 1}, "type": "default", "time": "2024-05-01T10:00:00"}}, nil
	}}
	h := newTestServer(t, store, Config{}, Services{})

	rec, res := do(t, h, http.MethodPost, "/api/fuxi-data/save-data", `{"data":{"a":1}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Data saved successfully", res.Message)
	assert.JSONEq(t, `{"id":9,"data":{"a":1},"type":"default","time":"2024-05-01T10:00:00"}`, string(res.Data))

	st := store.statements()[0]
	assert.Equal(t, `INSERT INTO "FuxiData" ("data", "time", "type") VALUES ($1, $2, $3) RETURNING *`, st.Query)
	require.Len(t, st.Args, 3)
	assert.Equal(t, `{"a":1}`, st.Args[0])
	assert.Equal(t, "default", st.Args[2])

	ts, ok := st.Args[1].(time.Time)
	require.True(t, ok)
	assert.Equal(t, 10, ts.Hour())
}

func TestSaveDataRequiresData(t *testing.T) {
	store := &fakeStorage{}
	h := newTestServer(t, store, Config{}, Services{})

	rec, res := do(t, h, http.MethodPost, "/api/fuxi-data/save-data", `{"type":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No data provided.", res.Message)
	assert.Empty(t, store.statements())
}

func TestUpdateData(t *testing.T) {
	store := &fakeStorage{respond: func(st querier.Statement) ([]entity.Row, error) {
		return []entity.Row{{"id": 2, "data": "x", "type": "report", "time": "t"}}, nil
	}}
	h := newTestServer(t, store, Config{}, Services{})

	rec, _ := do(t, h, http.MethodPut, "/api/fuxi-data/update-data", `{"id":2,"data":[1,2],"type":"report"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sts := store.statements()
	require.Len(t, sts, 2)
	assert.Equal(t, `SELECT "id" FROM "FuxiData" WHERE "id" = $1`, sts[0].Query)
	assert.Equal(t, `UPDATE "FuxiData" SET "data" = $1, "time" = $2, "type" = $3 WHERE "id" = $4 RETURNING *`, sts[1].Query)
	assert.Equal(t, "[1,2]", sts[1].Args[0])
}

func TestUpdateDataKeepsTypeWhenOmitted(t *testing.T) {
	store := &fakeStorage{respond: func(st querier.Statement) ([]entity.Row, error) {
		return []entity.Row{{"id": 2}}, nil
	}}
	h := newTestServer(t, store, Config{}, Services{})

	rec, _ := do(t, h, http.MethodPut, "/api/fuxi-data/update-data", `{"id":2,"data":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `UPDATE "FuxiData" SET "data" = $1, "time" = $2 WHERE "id" = $3 RETURNING *`, store.statements()[1].Query)
}

func TestUpdateDataErrors(t *testing.T) {
	store := &fakeStorage{}
	h := newTestServer(t, store, Config{}, Services{})

	rec, res := do(t, h, http.MethodPut, "/api/fuxi-data/update-data", `{"data":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ID is required.", res.Message)

	rec, res = do(t, h, http.MethodPut, "/api/fuxi-data/update-data", `{"id":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Data is required.", res.Message)

	rec, _ = do(t, h, http.MethodPut, "/api/fuxi-data/update-data", `{"id":1,"data":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, store.statements(), 1)
}

func TestListTables(t *testing.T) {
	store := &fakeStorage{tables: []entity.Table{
		{Schema: "public", Name: "FuxiData", RowCount: int64(3)},
		{Schema: "public", Name: "broken", RowCount: entity.RowCountError},
	}}
	h := newTestServer(t, store, Config{}, Services{})

	rec, res := do(t, h, http.MethodGet, "/api/fuxi-data/list-tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tables retrieved successfully", res.Message)
	assert.JSONEq(t, `{
		"totalTables": 2,
		"tables": [
			{"schemaname":"public","tablename":"FuxiData","hasindexes":false,"hasrules":false,"hastriggers":false,"rowsecurity":false,"rowCount":3},
			{"schemaname":"public","tablename":"broken","hasindexes":false,"hasrules":false,"hastriggers":false,"rowsecurity":false,"rowCount":"Error counting rows"}
		]
	}`, string(res.Data))
}

func TestSentryFeishu(t *testing.T) {
	feishu := &fakeFeishu{result: notify.WebhookResult{Status: 200, StatusText: "OK", OK: true, Data: map[string]any{"code": 0}}}
	h := newTestServer(t, &fakeStorage{}, Config{}, Services{Feishu: feishu})

	body := `{"data":{"event":{"title":"boom","datetime":"d","web_url":"w","tags":[["device","pc"],["os","mac"],["browser","chrome"],["url","u"]]}}}`
	rec, res := do(t, h, http.MethodPost, "/api/webhooks/sentry-feishu", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Message)
	assert.JSONEq(t, `{"status":200,"statusText":"OK","ok":true,"data":{"code":0}}`, string(res.Data))

	require.Len(t, feishu.notices, 1)
	assert.Equal(t, "pc_mac_chrome", feishu.notices[0].Env)
}

func TestSentryFeishuErrors(t *testing.T) {
	h := newTestServer(t, &fakeStorage{}, Config{}, Services{})
	rec, _ := do(t, h, http.MethodPost, "/api/webhooks/sentry-feishu", `{}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	h = newTestServer(t, &fakeStorage{}, Config{}, Services{Feishu: &fakeFeishu{}})
	rec, _ = do(t, h, http.MethodPost, "/api/webhooks/sentry-feishu", `{"data":{}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/webhooks/sentry-feishu", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
