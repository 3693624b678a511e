package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openwis/form-registry/pkg/cache"
	"github.com/openwis/form-registry/pkg/datastore"
)

func newTestRouter(t *testing.T, cm *cache.CacheManager) chi.Router {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, datastore.AutoMigrate(db))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(db, cm, nil, log).Router(nil)
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// energyFormSpec is the wire-level form specification used across the handler
// tests.
func energyFormSpec() map[string]any {
	return map[string]any{
		"name": "energy",
		"attributes": []map[string]any{
			{"name": "facility", "type": "text"},
			{"name": "consumption", "type": "float"},
			{"name": "grid_share", "type": "float_or_null"},
			{"name": "energy_scope", "type": "single", "choices": []map[string]any{
				{"choice_id": 1, "value": "Scope 1"},
				{"choice_id": 2, "value": "Scope 2"},
			}},
			{"name": "carriers", "type": "multiple", "choices": []map[string]any{
				{"choice_id": 1, "value": "Electricity"},
				{"choice_id": 2, "value": "Natural gas"},
			}},
			{"name": "meters", "type": "form", "form": map[string]any{
				"name": "energy_meters",
				"attributes": []map[string]any{
					{"name": "serial", "type": "text"},
					{"name": "reading", "type": "float"},
				},
			}},
		},
	}
}

func createEnergyForm(t *testing.T, router chi.Router) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/forms", energyFormSpec())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// activeViewID reads the form's active view id through the API.
func activeViewID(t *testing.T, router chi.Router, name string) float64 {
	t.Helper()
	rec := doJSON(t, router, http.MethodGet, "/api/forms/"+name+"/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	view, ok := body["view"].(map[string]any)
	require.True(t, ok)
	return view["id"].(float64)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestFormEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)
	createEnergyForm(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/forms/energy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "energy", body["name"])
	attrs := body["attributes"].([]any)
	assert.Len(t, attrs, 6)
	// ContextForm carries no view configuration
	assert.Nil(t, body["view"])

	rec = doJSON(t, router, http.MethodGet, "/api/forms/energy/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	view := body["view"].(map[string]any)
	assert.Equal(t, "energy_view", view["name"])
	assert.Equal(t, float64(1), view["revision"])

	rec = doJSON(t, router, http.MethodGet, "/api/forms/absent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// duplicate form name
	rec = doJSON(t, router, http.MethodPost, "/api/forms", energyFormSpec())
	assert.Equal(t, http.StatusConflict, rec.Code)

	// reserved attribute name
	rec = doJSON(t, router, http.MethodPost, "/api/forms", map[string]any{
		"name":       "broken",
		"attributes": []map[string]any{{"name": "obj_id", "type": "text"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// malformed body
	req := httptest.NewRequest(http.MethodPost, "/api/forms", bytes.NewBufferString("{"))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestViewEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)
	createEnergyForm(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/forms/energy/views", map[string]any{
		"name": "auditor_view",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	assert.Equal(t, "auditor_view", created["name"])
	assert.Equal(t, false, created["active"])

	rec = doJSON(t, router, http.MethodPost, "/api/views/energy_view/revisions", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	revised := decodeBody(t, rec)
	assert.Equal(t, float64(2), revised["revision"])

	rec = doJSON(t, router, http.MethodPost, "/api/views/no_such_view/revisions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/views/energy_view/revisions/2/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/forms/energy/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody(t, rec)["view"].(map[string]any)
	assert.Equal(t, float64(2), view["revision"])

	rec = doJSON(t, router, http.MethodPut, "/api/views/energy_view/revisions/9/activate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// copy by view id
	id := int64(activeViewID(t, router, "energy"))
	rec = doJSON(t, router, http.MethodPost, "/api/views/"+itoa(id)+"/copy", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	copied := decodeBody(t, rec)
	assert.Equal(t, "energy_view_copy", copied["name"])
}

func TestSubmissionEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)
	createEnergyForm(t, router)
	viewID := activeViewID(t, router, "energy")

	values := map[string]any{
		"facility":     "plant-a",
		"consumption":  12.5,
		"grid_share":   "N/A",
		"energy_scope": 2,
		"carriers":     []any{1, "custom blend"},
		"meters": []any{
			map[string]any{"serial": "M-1", "reading": 10.5},
		},
	}
	rec := doJSON(t, router, http.MethodPost, "/api/submissions", map[string]any{
		"table_view_id": viewID,
		"values":        values,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	obj := decodeBody(t, rec)
	id := int64(obj["id"].(float64))
	name := obj["name"].(string)
	assert.Equal(t, float64(1), obj["revision"])
	assert.Equal(t, "draft", obj["status"])

	rec = doJSON(t, router, http.MethodGet, "/api/submissions/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decodeBody(t, rec)["values"].(map[string]any)
	assert.Equal(t, "plant-a", loaded["facility"])
	assert.Equal(t, 12.5, loaded["consumption"])
	assert.Equal(t, "N/A", loaded["grid_share"])
	assert.Equal(t, []any{float64(1), "custom blend"}, loaded["carriers"])
	meters := loaded["meters"].([]any)
	require.Len(t, meters, 1)
	assert.Equal(t, "M-1", meters[0].(map[string]any)["serial"])

	// publish a revision with a restatement
	rec = doJSON(t, router, http.MethodPost, "/api/submissions/"+itoa(id)+"/revisions", map[string]any{
		"new_values":        map[string]any{"consumption": 15.0},
		"restatements":      map[string]string{"consumption": "meter recalibrated"},
		"create_submission": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	second := decodeBody(t, rec)
	secondID := int64(second["id"].(float64))
	assert.Equal(t, float64(2), second["revision"])
	assert.Equal(t, "published", second["status"])

	rec = doJSON(t, router, http.MethodGet, "/api/submissions/"+itoa(secondID)+"/restatements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var restatements []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &restatements))
	require.Len(t, restatements, 1)
	assert.Equal(t, "consumption", restatements[0]["attribute_name"])
	assert.Equal(t, 12.5, restatements[0]["old_value"])
	assert.Equal(t, 15.0, restatements[0]["new_value"])
	assert.Equal(t, "meter recalibrated", restatements[0]["reason"])

	rec = doJSON(t, router, http.MethodGet, "/api/submissions/named/"+name, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var revs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &revs))
	assert.Len(t, revs, 2)

	// rollback to the first revision
	rec = doJSON(t, router, http.MethodPost, "/api/submissions/"+itoa(secondID)+"/rollback", map[string]any{
		"target_id": id,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rolled := decodeBody(t, rec)
	rolledID := int64(rolled["id"].(float64))
	assert.Equal(t, float64(3), rolled["revision"])

	rec = doJSON(t, router, http.MethodGet, "/api/submissions/"+itoa(rolledID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	loaded = decodeBody(t, rec)["values"].(map[string]any)
	assert.Equal(t, 12.5, loaded["consumption"])

	// checkout blocks publishing until checkin
	rec = doJSON(t, router, http.MethodPut, "/api/submissions/"+itoa(rolledID)+"/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/submissions/"+itoa(rolledID)+"/revisions", map[string]any{
		"new_values":        map[string]any{"consumption": 1.0},
		"create_submission": true,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = doJSON(t, router, http.MethodPut, "/api/submissions/"+itoa(rolledID)+"/checkin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// first-write update is rejected once values exist
	rec = doJSON(t, router, http.MethodPut, "/api/submissions/"+itoa(id), map[string]any{
		"values": map[string]any{"facility": "plant-b"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// validation failures are the caller's fault
	rec = doJSON(t, router, http.MethodPost, "/api/submissions", map[string]any{
		"table_view_id": viewID,
		"values":        map[string]any{"bogus": 1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/submissions/99999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmptySubmissionFirstWrite(t *testing.T) {
	router := newTestRouter(t, nil)
	createEnergyForm(t, router)
	viewID := activeViewID(t, router, "energy")

	rec := doJSON(t, router, http.MethodPost, "/api/submissions", map[string]any{
		"table_view_id": viewID,
		"name":          "ACME-2026-ENERGY",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	obj := decodeBody(t, rec)
	id := int64(obj["id"].(float64))
	assert.Equal(t, true, obj["checked_out"])

	rec = doJSON(t, router, http.MethodPut, "/api/submissions/"+itoa(id), map[string]any{
		"values": map[string]any{"facility": "plant-a", "consumption": 3.5},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/submissions/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["submission"].(map[string]any)["checked_out"])
	assert.Equal(t, 3.5, body["values"].(map[string]any)["consumption"])
}

func TestSchemaCacheOnFormRoutes(t *testing.T) {
	cm := cache.NewCacheManager(&cache.CacheConfig{
		Enabled:       true,
		SchemaTTL:     time.Minute,
		SubmissionTTL: time.Minute,
		MaxSize:       10,
	})
	router := newTestRouter(t, cm)
	createEnergyForm(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/forms/energy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	rec = doJSON(t, router, http.MethodGet, "/api/forms/energy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	// a view change on the form drops the cached schema
	rec = doJSON(t, router, http.MethodPost, "/api/forms/energy/views", map[string]any{
		"name": "auditor_view",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/forms/energy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}
