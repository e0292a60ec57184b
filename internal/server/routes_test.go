package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/lazypower/crystals/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func createCrystal(t *testing.T, srv *Server, body string) store.Crystal {
	t.Helper()
	w := do(t, srv, "POST", "/api/crystals", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c store.Crystal
	decode(t, w, &c)
	return c
}

func TestCrystalCRUD(t *testing.T) {
	srv := testServer(t)

	c := createCrystal(t, srv, `{"name":"Taco Stand","category":"restaurant","notes":"al pastor","location":{"lat":34.0007,"lng":-81.0348}}`)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Taco Stand", c.Name)

	w := do(t, srv, "GET", "/api/crystals/"+c.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got store.Crystal
	decode(t, w, &got)
	assert.Equal(t, "al pastor", got.Notes)

	// partial update keeps the other fields
	w = do(t, srv, "PUT", "/api/crystals/"+c.ID, `{"notes":"closed mondays"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &got)
	assert.Equal(t, "closed mondays", got.Notes)
	assert.Equal(t, "Taco Stand", got.Name)
	assert.Equal(t, 34.0007, got.Location.Lat)

	w = do(t, srv, "DELETE", "/api/crystals/"+c.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/api/crystals/"+c.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, "DELETE", "/api/crystals/"+c.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, "PUT", "/api/crystals/"+c.ID, `{"name":"x"}`).Code)
}

func TestCreateCrystalInvalid(t *testing.T) {
	srv := testServer(t)

	bodies := []string{
		`not json`,
		`{"name":"","location":{"lat":1,"lng":1}}`,
		`{"name":"x","category":"spaceship","location":{"lat":1,"lng":1}}`,
		`{"name":"x","location":{"lat":91,"lng":1}}`,
	}
	for _, b := range bodies {
		w := do(t, srv, "POST", "/api/crystals", b)
		assert.Equal(t, http.StatusBadRequest, w.Code, b)
	}
}

func TestCreateCrystalAtCurrentPosition(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/crystals", `{"name":"Here"}`)
	assert.Equal(t, http.StatusConflict, w.Code, "no position yet")

	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/position", `{"lat":12.5,"lng":-3.25}`).Code)

	c := createCrystal(t, srv, `{"name":"Here"}`)
	assert.Equal(t, 12.5, c.Location.Lat)
	assert.Equal(t, -3.25, c.Location.Lng)
	assert.Equal(t, store.CategoryOther, c.Category)
}

func TestListCrystals(t *testing.T) {
	srv := testServer(t)
	createCrystal(t, srv, `{"name":"Far Coffee","category":"restaurant","location":{"lat":34.01,"lng":-81}}`)
	createCrystal(t, srv, `{"name":"Near Coffee","category":"restaurant","location":{"lat":34.0001,"lng":-81}}`)
	createCrystal(t, srv, `{"name":"Office","category":"work","location":{"lat":34,"lng":-81.0001}}`)

	type listResponse struct {
		Count    int  `json:"count"`
		Sorted   bool `json:"sorted"`
		Crystals []struct {
			Crystal        store.Crystal `json:"crystal"`
			DistanceMeters float64       `json:"distanceMeters"`
		} `json:"crystals"`
	}

	var resp listResponse
	decode(t, do(t, srv, "GET", "/api/crystals", ""), &resp)
	assert.Equal(t, 3, resp.Count)
	assert.False(t, resp.Sorted)
	assert.Equal(t, "Far Coffee", resp.Crystals[0].Crystal.Name, "input order without a position")

	do(t, srv, "POST", "/api/position", `{"lat":34,"lng":-81}`)

	resp = listResponse{}
	decode(t, do(t, srv, "GET", "/api/crystals?q=coffee", ""), &resp)
	assert.True(t, resp.Sorted)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "Near Coffee", resp.Crystals[0].Crystal.Name)
	assert.Equal(t, "Far Coffee", resp.Crystals[1].Crystal.Name)
	assert.Greater(t, resp.Crystals[1].DistanceMeters, resp.Crystals[0].DistanceMeters)

	resp = listResponse{}
	decode(t, do(t, srv, "GET", "/api/crystals?category=work", ""), &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Office", resp.Crystals[0].Crystal.Name)
}

func TestNearby(t *testing.T) {
	srv := testServer(t)
	// ~55m and ~167m north of the fix below
	createCrystal(t, srv, `{"name":"Close","location":{"lat":34.0005,"lng":-81}}`)
	createCrystal(t, srv, `{"name":"Far","location":{"lat":34.0015,"lng":-81}}`)

	w := do(t, srv, "GET", "/api/nearby", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var unavailable struct {
		Error  string          `json:"error"`
		Nearby []store.Crystal `json:"nearby"`
	}
	decode(t, w, &unavailable)
	assert.NotEmpty(t, unavailable.Error)
	assert.NotNil(t, unavailable.Nearby)
	assert.Empty(t, unavailable.Nearby)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, "GET", "/api/nearby?radius=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "GET", "/api/nearby?radius=-5", "").Code)

	do(t, srv, "POST", "/api/position", `{"lat":34,"lng":-81}`)

	var resp struct {
		Radius float64         `json:"radius"`
		Count  int             `json:"count"`
		Nearby []store.Crystal `json:"nearby"`
		Alert  string          `json:"alert"`
	}
	w = do(t, srv, "GET", "/api/nearby", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, 100.0, resp.Radius, "default radius from settings")
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "You're at Close", resp.Alert)

	resp.Nearby = nil
	decode(t, do(t, srv, "GET", "/api/nearby?radius=500", ""), &resp)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "2 crystals nearby", resp.Alert)
	assert.Equal(t, "Close", resp.Nearby[0].Name, "input order")
}

func TestPositionUpdate(t *testing.T) {
	srv := testServer(t)
	createCrystal(t, srv, `{"name":"Bench","location":{"lat":10,"lng":10}}`)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, "POST", "/api/position", `{"lat":100,"lng":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "POST", "/api/position", `garbage`).Code)

	w := do(t, srv, "POST", "/api/position", `{"lat":10,"lng":10}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Alert  string          `json:"alert"`
		Nearby []store.Crystal `json:"nearby"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "You're at Bench", resp.Alert)

	checkins, err := srv.db.RecentCheckIns(10)
	require.NoError(t, err)
	require.Len(t, checkins, 1)
	assert.Equal(t, store.CheckInOK, checkins[0].Status)
	assert.Equal(t, 1, checkins[0].NearbyCount)
}

func TestPositionFailureKeepsFix(t *testing.T) {
	srv := testServer(t)

	do(t, srv, "POST", "/api/position", `{"lat":1,"lng":2}`)
	w := do(t, srv, "POST", "/api/position/failure", `{"reason":"timeout"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var pos positionResponse
	decode(t, do(t, srv, "GET", "/api/position", ""), &pos)
	assert.True(t, pos.Resolved)
	require.NotNil(t, pos.Position)
	assert.Equal(t, 1.0, pos.Position.Lat)
	assert.Equal(t, "timeout", pos.LastError)

	// the next fix clears the error
	do(t, srv, "POST", "/api/position", `{"lat":3,"lng":4}`)
	pos = positionResponse{}
	decode(t, do(t, srv, "GET", "/api/position", ""), &pos)
	assert.Empty(t, pos.LastError)
	assert.Equal(t, 3.0, pos.Position.Lat)

	checkins, err := srv.db.RecentCheckIns(10)
	require.NoError(t, err)
	require.Len(t, checkins, 3)
	assert.Equal(t, store.CheckInFailed, checkins[1].Status)
}

func TestPositionUnresolved(t *testing.T) {
	srv := testServer(t)
	var pos positionResponse
	decode(t, do(t, srv, "GET", "/api/position", ""), &pos)
	assert.False(t, pos.Resolved)
	assert.Nil(t, pos.Position)
}

func TestPositionRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{PositionRate: 0.001, PositionBurst: 1})

	assert.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/position", `{"lat":1,"lng":1}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, srv, "POST", "/api/position", `{"lat":1,"lng":1}`).Code)

	// reads are not throttled
	assert.Equal(t, http.StatusOK, do(t, srv, "GET", "/api/position", "").Code)
}

func TestGroups(t *testing.T) {
	srv := testServer(t)
	createCrystal(t, srv, `{"name":"A","location":{"lat":34,"lng":-81}}`)
	createCrystal(t, srv, `{"name":"A2","location":{"lat":34.00001,"lng":-81}}`)
	createCrystal(t, srv, `{"name":"B","location":{"lat":34.0001,"lng":-81}}`)
	createCrystal(t, srv, `{"name":"C","location":{"lat":40,"lng":-75}}`)

	var resp struct {
		Count  int `json:"count"`
		Groups []struct {
			Members []store.Crystal `json:"members"`
		} `json:"groups"`
	}
	w := do(t, srv, "GET", "/api/groups", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)

	require.Equal(t, 3, resp.Count)
	assert.Len(t, resp.Groups[0].Members, 2)
	assert.Equal(t, "A", resp.Groups[0].Members[0].Name)
	assert.Equal(t, "A2", resp.Groups[0].Members[1].Name)
}

func TestSettings(t *testing.T) {
	srv := testServer(t)

	var s store.Settings
	decode(t, do(t, srv, "GET", "/api/settings", ""), &s)
	assert.Equal(t, store.DefaultSettings(), s)

	w := do(t, srv, "PUT", "/api/settings", `{"notificationRadius":250}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, do(t, srv, "GET", "/api/settings", ""), &s)
	assert.Equal(t, 250.0, s.NotificationRadius)
	assert.True(t, s.AutoCheckLocation, "omitted fields keep their value")

	assert.Equal(t, http.StatusBadRequest, do(t, srv, "PUT", "/api/settings", `{"notificationRadius":-1}`).Code)
}

func TestStatsAndCheckIns(t *testing.T) {
	srv := testServer(t)
	createCrystal(t, srv, `{"name":"A","location":{"lat":1,"lng":1}}`)

	var stats struct {
		Count int    `json:"count"`
		Bytes int    `json:"bytes"`
		Size  string `json:"size"`
	}
	decode(t, do(t, srv, "GET", "/api/stats", ""), &stats)
	assert.Equal(t, 1, stats.Count)
	assert.Positive(t, stats.Bytes)
	assert.NotEmpty(t, stats.Size)

	var ci struct {
		Count    int             `json:"count"`
		CheckIns []store.CheckIn `json:"checkins"`
	}
	decode(t, do(t, srv, "GET", "/api/checkins?limit=5", ""), &ci)
	assert.Equal(t, 0, ci.Count)
	assert.NotNil(t, ci.CheckIns)
}

func TestExportImport(t *testing.T) {
	srv := testServer(t)
	createCrystal(t, srv, `{"name":"One","location":{"lat":1,"lng":1}}`)
	createCrystal(t, srv, `{"name":"Two","location":{"lat":2,"lng":2}}`)

	w := do(t, srv, "GET", "/api/export?gzip=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".json.gz")

	gz, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	var exported []store.Crystal
	require.NoError(t, json.NewDecoder(gz).Decode(&exported))
	require.Len(t, exported, 2)

	// import replaces everything, including the stale third record
	createCrystal(t, srv, `{"name":"Three","location":{"lat":3,"lng":3}}`)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("POST", "/api/import", bytes.NewReader(must(t, srv, "/api/export?gzip=1"))))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	count, err := srv.db.CountCrystals()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	backup :=`[{"id":1700000000000,"name":"Legacy","category":"home","location":{"lat":5,"lng":6},"photos":[]},{"name":"No location"}]`
	w = do(t, srv, "POST", "/api/import", backup)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Imported int      `json:"imported"`
		Skipped  []string `json:"skipped"`
	}
	decode(t, w, &result)
	assert.Equal(t, 1, result.Imported)
	assert.Len(t, result.Skipped, 1)

	records, err := srv.db.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1700000000000", records[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, "POST", "/api/import", `{"not":"an array"}`).Code)
}

func must(t *testing.T, srv *Server, path string) []byte {
	t.Helper()
	w := do(t, srv, "GET", path, "")
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.Bytes()
}
