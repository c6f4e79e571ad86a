package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chrisdamba/menumanager/internal/api"
	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/repositories"
	"github.com/chrisdamba/menumanager/internal/repositories/memory"
	"github.com/chrisdamba/menumanager/internal/repositories/storetest"
	"github.com/chrisdamba/menumanager/internal/tree"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, doc *models.Document, structured bool) *Server {
	t.Helper()
	engine := tree.NewEngine(memory.NewDocumentRepository(doc))
	return New(engine, models.ServerConfig{StructuredErrors: structured, MetricsEnabled: true}, nil)
}

func do(t *testing.T, s *Server, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func getDocument(t *testing.T, s *Server) (*models.Document, string) {
	t.Helper()
	w := do(t, s, http.MethodGet, api.PathGetData, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc := models.NewDocument()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), doc))
	return doc, w.Header().Get("ETag")
}

func itemPath(i int) tree.Path {
	return tree.P("restaurants", 0, "menus", 0, "categories", 0, "items", i)
}

func TestGetData(t *testing.T) {
	s := newTestServer(t, storetest.SampleDocument(), false)
	w := do(t, s, http.MethodGet, api.PathGetData, nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, `"0"`, w.Header().Get("ETag"))
	assert.Contains(t, w.Body.String(), `"price":8.00`)

	doc := models.NewDocument()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), doc))
	assert.Equal(t, storetest.SampleDocument(), doc)
}

func TestGetEmptyDocument(t *testing.T) {
	s := newTestServer(t, nil, false)
	w := do(t, s, http.MethodGet, api.PathGetData, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"restaurants":[]}`, w.Body.String())
}

func TestUpdateData(t *testing.T) {
	s := newTestServer(t, storetest.SampleDocument(), false)
	body := api.MutationRequest{
		Path:    itemPath(1),
		NewData: map[string]any{"name": "Penne", "price": 7.5, "rewardEligible": true},
	}
	w := do(t, s, http.MethodPut, api.PathUpdateData, body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Data updated", w.Body.String())
	assert.Equal(t, `"1"`, w.Header().Get("ETag"))

	doc, etag := getDocument(t, s)
	assert.Equal(t, `"1"`, etag)
	item := doc.Restaurants[0].Menus[0].Categories[0].Items[1]
	assert.Equal(t, "Penne", item.Name)
	assert.Equal(t, models.Price(7.5), item.Price)
	assert.Equal(t, "pasta", item.ID)
}

func TestAddData(t *testing.T) {
	s := newTestServer(t, models.NewDocument(), false)
	body := api.MutationRequest{Path: tree.P("restaurants"), NewData: tree.DefaultValue(tree.LevelRestaurant)}

	w := do(t, s, http.MethodPost, api.PathAddData, body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Data added", w.Body.String())

	doc, _ := getDocument(t, s)
	require.Len(t, doc.Restaurants, 1)
	item := doc.Restaurants[0].Menus[0].Categories[0].Items[0]
	assert.Equal(t, models.Price(0), item.Price)
	assert.NotEmpty(t, item.ID)
}

func TestDeleteData(t *testing.T) {
	s := newTestServer(t, storetest.SampleDocument(), false)
	w := do(t, s, http.MethodDelete, api.PathDeleteData, api.MutationRequest{Path: itemPath(0)}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Data deleted", w.Body.String())

	doc, _ := getDocument(t, s)
	items := doc.Restaurants[0].Menus[0].Categories[0].Items
	require.Len(t, items, 1)
	assert.Equal(t, "Pasta", items[0].Name)
}

func TestDefaultFailuresArePlainBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   any
		prefix string
	}{
		{"missing path", http.MethodPut, api.PathUpdateData, api.MutationRequest{Path: tree.P("restaurants", 4, "name"), NewData: "x"}, "Error updating data: "},
		{"add to scalar", http.MethodPost, api.PathAddData, api.MutationRequest{Path: itemPath(0).Child(tree.Key("price")), NewData: 1}, "Error adding data: "},
		{"bad shape", http.MethodPost, api.PathAddData, api.MutationRequest{Path: tree.P("restaurants"), NewData: map[string]any{"name": "x"}}, "Error adding data: "},
		{"delete a field", http.MethodDelete, api.PathDeleteData, api.MutationRequest{Path: itemPath(0).Child(tree.Key("name"))}, "Error deleting data: "},
		{"malformed body", http.MethodPut, api.PathUpdateData, `{"path": "restaurants"`, "Invalid update parameters"},
		{"float index", http.MethodDelete, api.PathDeleteData, `{"path": ["restaurants", 0.5]}`, "Invalid delete parameters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, storetest.SampleDocument(), false)
			w := do(t, s, tt.method, tt.target, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
			assert.True(t, len(w.Body.String()) >= len(tt.prefix) && w.Body.String()[:len(tt.prefix)] == tt.prefix, w.Body.String())

			doc, etag := getDocument(t, s)
			assert.Equal(t, `"0"`, etag)
			assert.Equal(t, storetest.SampleDocument(), doc)
		})
	}
}

func TestStructuredFailures(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   any
		header map[string]string
		status int
		kind   string
	}{
		{"path not found", http.MethodPut, api.PathUpdateData, api.MutationRequest{Path: tree.P("restaurants", 4, "name"), NewData: "x"}, nil, http.StatusNotFound, "PathNotFound"},
		{"invalid target", http.MethodPost, api.PathAddData, api.MutationRequest{Path: itemPath(0).Child(tree.Key("price")), NewData: 1}, nil, http.StatusUnprocessableEntity, "InvalidTarget"},
		{"validation failed", http.MethodPut, api.PathUpdateData, api.MutationRequest{Path: itemPath(0).Child(tree.Key("price")), NewData: -3}, nil, http.StatusBadRequest, "ValidationFailed"},
		{"revision conflict", http.MethodPut, api.PathUpdateData, api.MutationRequest{Path: tree.P("restaurants", 0, "name"), NewData: "B"}, map[string]string{"If-Match": `"7"`}, http.StatusConflict, "RevisionConflict"},
		{"malformed body", http.MethodPost, api.PathAddData, `[]`, nil, http.StatusBadRequest, "BadRequest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, storetest.SampleDocument(), true)
			w := do(t, s, tt.method, tt.target, tt.body, tt.header)
			assert.Equal(t, tt.status, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp.Kind)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestIfMatch(t *testing.T) {
	s := newTestServer(t, storetest.SampleDocument(), false)
	_, etag := getDocument(t, s)

	body := api.MutationRequest{Path: tree.P("restaurants", 0, "name"), NewData: "B"}
	w := do(t, s, http.MethodPut, api.PathUpdateData, body, map[string]string{"If-Match": etag})
	require.Equal(t, http.StatusOK, w.Code)

	// the old tag is now stale
	w = do(t, s, http.MethodPut, api.PathUpdateData, body, map[string]string{"If-Match": etag})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "revision conflict")
}

type unavailableService struct{}

func (unavailableService) Fetch(context.Context) (*models.Snapshot, error) {
	return nil, errors.Join(tree.ErrPersistenceFailed, repositories.ErrStoreUnavailable)
}

func (unavailableService) Apply(context.Context, tree.Mutation) (tree.Result, error) {
	return tree.Result{}, &tree.MutationError{Op: tree.OpUpdate, Kind: tree.ErrPersistenceFailed, Err: repositories.ErrStoreUnavailable}
}

func TestStoreUnavailable(t *testing.T) {
	plain := New(unavailableService{}, models.ServerConfig{}, nil)
	w := do(t, plain, http.MethodGet, api.PathGetData, nil, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	structured := New(unavailableService{}, models.ServerConfig{StructuredErrors: true}, nil)
	w = do(t, structured, http.MethodPut, api.PathUpdateData, api.MutationRequest{Path: tree.P("restaurants", 0, "name"), NewData: "x"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"PersistenceFailed"`)
}

func TestSearchEndpoint(t *testing.T) {
	s := newTestServer(t, storetest.SampleDocument(), false)

	w := do(t, s, http.MethodGet, api.PathSearch+"?area=items&option=name&name=pi", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "Pizza", results[0]["name"])

	w = do(t, s, http.MethodGet, api.PathSearch+"?dietary_requirements=vegan", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No results found", w.Body.String())

	w = do(t, s, http.MethodGet, api.PathSearch+"?area=items", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLocate(t *testing.T) {
	s := newTestServer(t, storetest.SampleDocument(), false)

	w := do(t, s, http.MethodGet, api.PathLocate+"?id=pasta", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.LocateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, itemPath(1).Equal(resp.Path))

	w = do(t, s, http.MethodGet, api.PathLocate+"?id=sushi", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, api.PathLocate, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil, false)

	w := do(t, s, http.MethodGet, api.PathHealth, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	do(t, s, http.MethodGet, api.PathGetData, nil, nil)
	w = do(t, s, http.MethodGet, api.PathMetrics, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "menu_http_requests_total")
}
