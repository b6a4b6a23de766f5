package occurrence

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/geo"
)

var testExtent = geo.Extent{West: -10, East: 10, South: 45, North: 65}

func testRecords() []frame.Record {
	return []frame.Record{
		{Value: 1, Type: frame.TypePresence, Lon: -5, Lat: 50},
		{Value: 1, Type: frame.TypePresence, Lon: 0, Lat: 55},
		{Value: 1, Type: frame.TypePresence, Lon: 5, Lat: 60},
		{Value: 1, Type: frame.TypePresence, Lon: 120, Lat: 10}, // outside extent
	}
}

func TestFixture_FetchFiltersToExtent(t *testing.T) {
	f := NewFixture(testRecords())

	table, err := f.Fetch(context.Background(), testExtent)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	for _, r := range table.Rows {
		assert.True(t, testExtent.Contains(r.Lon, r.Lat))
	}
}

func TestFixture_Source(t *testing.T) {
	f := NewFixture(testRecords()[:1])
	form, err := f.Source()
	require.NoError(t, err)
	assert.Contains(t, form.Decl, "func newOccurrenceStage() stage.Occurrence")
	assert.Contains(t, form.Decl, `{Value: 1, Type: "presence", Lon: -5, Lat: 50},`)
}

func TestCSV_Fetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "occ.csv")
	data := "longitude,latitude,value,type\n-5,50,1,presence\n0,55,0,absence\n120,10,1,presence\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c := NewCSV(CSVConfig{Path: path})
	table, err := c.Fetch(context.Background(), testExtent)
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	assert.Equal(t, frame.TypePresence, table.Rows[0].Type)
	assert.Equal(t, frame.TypeAbsence, table.Rows[1].Type)
	assert.Equal(t, 0.0, table.Rows[1].Value)
}

func TestCSV_DefaultsValueAndType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "occ.csv")
	require.NoError(t, os.WriteFile(path, []byte("lon,lat\n-5,50\n"), 0o644))

	c := NewCSV(CSVConfig{Path: path})
	table, err := c.Fetch(context.Background(), testExtent)
	require.NoError(t, err)

	require.Equal(t, 1, table.Len())
	assert.Equal(t, 1.0, table.Rows[0].Value)
	assert.Equal(t, frame.TypePresence, table.Rows[0].Type)
}

func TestCSV_Errors(t *testing.T) {
	dir := t.TempDir()

	missingHeader := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(missingHeader, []byte("a,b\n1,2\n"), 0o644))

	badValue := filepath.Join(dir, "badvalue.csv")
	require.NoError(t, os.WriteFile(badValue, []byte("lon,lat\nfoo,50\n"), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"file does not exist", filepath.Join(dir, "nope.csv")},
		{"missing coordinate columns", missingHeader},
		{"invalid longitude", badValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSV(CSVConfig{Path: tt.path}).Fetch(context.Background(), testExtent)
			require.Error(t, err)
		})
	}
}

func newTestGBIF(t *testing.T, cfg GBIFConfig) *GBIF {
	t.Helper()
	if cfg.Species == "" {
		cfg.Species = "Anopheles plumbeus"
	}
	cfg.RateLimitMS = 1
	cfg.CacheTTL = time.Minute
	g := NewGBIF(cfg)

	httpmock.ActivateNonDefault(g.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	t.Cleanup(g.Close)
	return g
}

func TestGBIF_FetchSinglePage(t *testing.T) {
	g := newTestGBIF(t, GBIFConfig{})

	httpmock.RegisterResponder("GET", "https://api.gbif.org/v1/occurrence/search",
		httpmock.NewStringResponder(200, `{
			"offset": 0, "limit": 300, "endOfRecords": true, "count": 3,
			"results": [
				{"scientificName": "Anopheles plumbeus", "decimalLongitude": -5, "decimalLatitude": 50},
				{"scientificName": "Anopheles plumbeus", "decimalLongitude": 0, "decimalLatitude": 55, "individualCount": 4},
				{"scientificName": "Anopheles plumbeus", "decimalLongitude": 120, "decimalLatitude": 10}
			]
		}`))

	table, err := g.Fetch(context.Background(), testExtent)
	require.NoError(t, err)

	require.Equal(t, 2, table.Len(), "record outside the extent is dropped")
	assert.Equal(t, frame.TypePresence, table.Rows[0].Type)
	assert.Equal(t, 4.0, table.Rows[1].Value, "individualCount carries through as the value")
}

func TestGBIF_FetchPaginates(t *testing.T) {
	g := newTestGBIF(t, GBIFConfig{PageSize: 1})

	pages := []string{
		`{"offset": 0, "limit": 1, "endOfRecords": false,
		  "results": [{"decimalLongitude": -5, "decimalLatitude": 50}]}`,
		`{"offset": 1, "limit": 1, "endOfRecords": true,
		  "results": [{"decimalLongitude": 5, "decimalLatitude": 60}]}`,
	}
	call := 0
	httpmock.RegisterResponder("GET", "https://api.gbif.org/v1/occurrence/search",
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(200, pages[call])
			call++
			return resp, nil
		})

	table, err := g.Fetch(context.Background(), testExtent)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, 2, call)
}

func TestGBIF_FetchStopsOnNonAdvancingPage(t *testing.T) {
	g := newTestGBIF(t, GBIFConfig{MaxPages: 0})

	// A response that claims more records but reports limit 0 would
	// otherwise request the same offset again on every iteration.
	httpmock.RegisterResponder("GET", "https://api.gbif.org/v1/occurrence/search",
		httpmock.NewStringResponder(200, `{"offset": 0, "limit": 0, "endOfRecords": false,
		  "results": [{"decimalLongitude": -5, "decimalLatitude": 50}]}`))

	table, err := g.Fetch(context.Background(), testExtent)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestGBIF_FetchCaches(t *testing.T) {
	g := newTestGBIF(t, GBIFConfig{})

	httpmock.RegisterResponder("GET", "https://api.gbif.org/v1/occurrence/search",
		httpmock.NewStringResponder(200, `{"endOfRecords": true, "results": [{"decimalLongitude": 0, "decimalLatitude": 50}]}`))

	_, err := g.Fetch(context.Background(), testExtent)
	require.NoError(t, err)
	_, err = g.Fetch(context.Background(), testExtent)
	require.NoError(t, err)

	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "second fetch is served from cache")
}

func TestGBIF_FetchServerError(t *testing.T) {
	g := newTestGBIF(t, GBIFConfig{})

	httpmock.RegisterResponder("GET", "https://api.gbif.org/v1/occurrence/search",
		httpmock.NewStringResponder(503, `{"error": "unavailable"}`))

	_, err := g.Fetch(context.Background(), testExtent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestGBIF_RequiresSpecies(t *testing.T) {
	g := NewGBIF(GBIFConfig{})
	_, err := g.Fetch(context.Background(), testExtent)
	require.Error(t, err)
}

func TestGBIF_Source(t *testing.T) {
	g := NewGBIF(GBIFConfig{Species: "Anopheles plumbeus"})
	form, err := g.Source()
	require.NoError(t, err)
	assert.Contains(t, form.Decl, `Species: "Anopheles plumbeus"`)
	assert.Contains(t, form.Decl, "func newOccurrenceStage() stage.Occurrence")
}
