package chroma

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/internal/vectorstore"
	"github.com/dshills/codeindex/pkg/types"
)

func chunkRecord(path string, index int, mtime int64) vectorstore.Record {
	chunk := types.Chunk{Path: path, Index: index, Text: "text of " + path}
	return vectorstore.ChunkRecord(chunk, mtime, []float32{0.1, 0.2, 0.3})
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
		expected string
	}{
		{name: "default", endpoint: "", expected: DefaultURL},
		{name: "trailing slash", endpoint: "http://chroma:8000/", expected: "http://chroma:8000"},
		{name: "https", endpoint: "https://chroma.example.com", expected: "https://chroma.example.com"},
		{name: "bad scheme", endpoint: "ftp://chroma:8000", wantErr: true},
		{name: "no host", endpoint: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, client.Endpoint())
		})
	}
}

func TestStore_OpenCreatesCollectionOnce(t *testing.T) {
	fake, srv := newFakeServer(t, "0.5.3")

	store, err := NewStore(srv.URL, "/work/app")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	first, err := store.Open(ctx)
	require.NoError(t, err)
	second, err := store.Open(ctx)
	require.NoError(t, err)

	assert.Equal(t, vectorstore.CollectionName("/work/app"), first.Name())
	assert.Equal(t, first.Name(), second.Name())
	assert.Len(t, fake.names, 1)
	assert.Equal(t, srv.URL, store.Endpoint())
}

func TestStore_OpenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	store, err := NewStore(endpoint, "/work/app")
	require.NoError(t, err)

	_, err = store.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, vectorstore.ErrUnavailable)
	assert.Contains(t, err.Error(), endpoint)
}

func TestCollection_WriterModeFollowsServerVersion(t *testing.T) {
	tests := []struct {
		version string
		mode    string
	}{
		{version: "1.0.15", mode: vectorstore.ModeUpsert},
		{version: "0.6.3", mode: vectorstore.ModeUpsert},
		{version: "0.5.3", mode: vectorstore.ModeUpsert},
		{version: "0.4.0", mode: vectorstore.ModeUpsert},
		{version: "0.3.29", mode: vectorstore.ModeAppend},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			_, srv := newFakeServer(t, tt.version)
			store, err := NewStore(srv.URL, "/work/app")
			require.NoError(t, err)

			col, err := store.Open(context.Background())
			require.NoError(t, err)

			w, err := vectorstore.NewWriter(col)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, w.Mode())
		})
	}
}

func TestCollection_RoundTrip(t *testing.T) {
	for _, version := range []string{"0.5.3", "1.0.15"} {
		t.Run(version, func(t *testing.T) {
			testCollectionRoundTrip(t, version)
		})
	}
}

func testCollectionRoundTrip(t *testing.T, version string) {
	_, srv := newFakeServer(t, version)
	store, err := NewStore(srv.URL, "/work/app")
	require.NoError(t, err)

	ctx := context.Background()
	col, err := store.Open(ctx)
	require.NoError(t, err)
	w, err := vectorstore.NewWriter(col)
	require.NoError(t, err)

	require.NoError(t, w.Write(ctx, []vectorstore.Record{
		chunkRecord("a.go", 0, 100),
		chunkRecord("a.go", 1, 100),
		chunkRecord("b.go", 0, 200),
	}))

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// chunk 0 lookup uses a two-clause $and filter
	records, err := col.Get(ctx, vectorstore.FirstChunkOf("a.go"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a.go:0", records[0].ID)
	meta, ok := types.MetadataFromMap(records[0].Metadata)
	require.True(t, ok)
	assert.Equal(t, int64(100), meta.MTime)
	assert.Equal(t, "text of a.go", records[0].Document)

	// upsert replaces in place
	require.NoError(t, w.Write(ctx, []vectorstore.Record{chunkRecord("a.go", 0, 150)}))
	records, err = col.Get(ctx, vectorstore.FirstChunkOf("a.go"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	meta, _ = types.MetadataFromMap(records[0].Metadata)
	assert.Equal(t, int64(150), meta.MTime)

	// delete by path removes every chunk of the file
	require.NoError(t, col.Delete(ctx, vectorstore.PathIs("a.go")))
	n, err = col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := col.Query(ctx, []float32{0.1, 0.2, 0.3}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b.go:0", matches[0].ID)
	assert.Equal(t, 0.5, matches[0].Distance)
}

func TestAppendOnlyCollection_DuplicateID(t *testing.T) {
	_, srv := newFakeServer(t, "0.3.21")
	store, err := NewStore(srv.URL, "/work/app")
	require.NoError(t, err)

	ctx := context.Background()
	col, err := store.Open(ctx)
	require.NoError(t, err)

	appender, ok := col.(vectorstore.Appender)
	require.True(t, ok)
	_, isUpserter := col.(vectorstore.Upserter)
	assert.False(t, isUpserter)

	require.NoError(t, appender.Add(ctx, []vectorstore.Record{chunkRecord("a.go", 0, 1)}))
	err = appender.Add(ctx, []vectorstore.Record{chunkRecord("a.go", 0, 1)})
	assert.ErrorIs(t, err, vectorstore.ErrDuplicateID)
}

func TestCollection_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	err = client.Heartbeat(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Body)
}

func TestClient_DetectsAPIVersion(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		apis     []string
		expected string
	}{
		{name: "v2 only", version: "1.0.15", apis: []string{"v2"}, expected: "v2"},
		{name: "both prefers v2", version: "0.6.3", apis: []string{"v1", "v2"}, expected: "v2"},
		{name: "v1 only", version: "0.5.3", apis: []string{"v1"}, expected: "v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, srv := newFakeServerAPI(t, tt.version, tt.apis...)
			client, err := NewClient(srv.URL)
			require.NoError(t, err)
			assert.Empty(t, client.APIVersion())

			require.NoError(t, client.Heartbeat(context.Background()))
			assert.Equal(t, tt.expected, client.APIVersion())

			v, err := client.Version(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.version, v.String())

			if tt.expected == "v2" {
				assert.Zero(t, fake.requestsWithPrefix(apiV1))
			}
		})
	}
}

func TestStore_OpenUsesTenantScopedRoutesOnV2(t *testing.T) {
	fake, srv := newFakeServerAPI(t, "1.0.15", "v2")
	store, err := NewStore(srv.URL, "/work/app")
	require.NoError(t, err)

	ctx := context.Background()
	col, err := store.Open(ctx)
	require.NoError(t, err)
	_, err = col.Count(ctx)
	require.NoError(t, err)

	scoped := apiV2 + "/tenants/default_tenant/databases/default_database/collections"
	assert.Equal(t, 3, fake.requestsWithPrefix(scoped)) // create, count on open, count
	assert.Zero(t, fake.requestsWithPrefix(apiV1))
}

func TestStore_OpenSelectsRoutesOnce(t *testing.T) {
	fake, srv := newFakeServerAPI(t, "0.5.3", "v1")
	store, err := NewStore(srv.URL, "/work/app")
	require.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		_, err := store.Open(ctx)
		require.NoError(t, err)
	}

	// only the first heartbeat tries v2
	assert.Equal(t, 1, fake.requestsWithPrefix(apiV2))
	assert.Equal(t, 3, fake.requestsWithPrefix(apiV1+"/heartbeat"))
}

func TestSupportsUpsert(t *testing.T) {
	cases := map[string]bool{"0.4.0": true, "0.4.24": true, "1.0.0": true, "0.3.29": false}
	for raw, want := range cases {
		v := mustVersion(t, raw)
		assert.Equal(t, want, SupportsUpsert(v), raw)
	}
}

func mustVersion(t *testing.T, raw string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(raw)
	require.NoError(t, err)
	return v
}
