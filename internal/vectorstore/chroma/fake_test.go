package chroma

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Masterminds/semver/v3"
)

// fakeServer is an in-memory stand-in for the Chroma REST API. It serves the
// route sets listed in apis: "v1" (pre-0.6 servers), "v2" (1.x servers,
// which answer v1 routes with 410 Gone) or both.
type fakeServer struct {
	t       *testing.T
	version string
	apis    map[string]bool

	mu          sync.Mutex
	collections map[string]map[string]fakeRecord // by collection id
	names       map[string]string                // name -> id
	requests    []string
}

type fakeRecord struct {
	Document  string
	Metadata  map[string]any
	Embedding []float32
}

// newFakeServer serves the route sets a real server of version would:
// v1 before 0.6, both through 0.6.x, v2 only from 1.0
func newFakeServer(t *testing.T, version string) (*fakeServer, *httptest.Server) {
	t.Helper()
	v := semver.MustParse(version)
	switch {
	case v.LessThan(semver.MustParse("0.6.0")):
		return newFakeServerAPI(t, version, "v1")
	case v.LessThan(semver.MustParse("1.0.0")):
		return newFakeServerAPI(t, version, "v1", "v2")
	}
	return newFakeServerAPI(t, version, "v2")
}

func newFakeServerAPI(t *testing.T, version string, apis ...string) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{
		t:           t,
		version:     version,
		apis:        map[string]bool{},
		collections: map[string]map[string]fakeRecord{},
		names:       map[string]string{},
	}
	for _, api := range apis {
		f.apis[api] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	path, ok := f.route(w, r.URL.Path)
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	switch {
	case path == "/heartbeat":
		writeJSON(w, map[string]int64{"nanosecond heartbeat": 1})
	case path == "/version":
		writeJSON(w, f.version)
	case path == "/collections" && r.Method == http.MethodPost:
		var name string
		_ = json.Unmarshal(body["name"], &name)
		id, ok := f.names[name]
		if !ok {
			id = "col-" + name
			f.names[name] = id
			f.collections[id] = map[string]fakeRecord{}
		}
		writeJSON(w, map[string]any{"id": id, "name": name})
	case strings.HasPrefix(path, "/collections/"):
		parts := strings.Split(strings.TrimPrefix(path, "/collections/"), "/")
		records, ok := f.collections[parts[0]]
		if !ok || len(parts) != 2 {
			http.Error(w, "collection not found", http.StatusNotFound)
			return
		}
		f.collectionOp(w, parts[1], records, body)
	default:
		http.NotFound(w, r)
	}
}

// requestsWithPrefix counts recorded requests whose path starts with prefix
func (f *fakeServer) requestsWithPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		_, p, _ := strings.Cut(req, " ")
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

// route strips the API prefix from p, answering unsupported generations the
// way real servers do
func (f *fakeServer) route(w http.ResponseWriter, p string) (string, bool) {
	switch {
	case strings.HasPrefix(p, apiV2+"/"):
		if !f.apis["v2"] {
			http.Error(w, "404 page not found", http.StatusNotFound)
			return "", false
		}
		p = strings.TrimPrefix(p, apiV2)
		scope := "/tenants/" + DefaultTenant + "/databases/" + DefaultDatabase
		if strings.HasPrefix(p, "/tenants/") {
			if !strings.HasPrefix(p, scope+"/") {
				http.Error(w, "tenant or database not found", http.StatusNotFound)
				return "", false
			}
			return strings.TrimPrefix(p, scope), true
		}
		if strings.HasPrefix(p, "/collections") {
			// v2 only serves collections under a tenant and database
			http.Error(w, "404 page not found", http.StatusNotFound)
			return "", false
		}
		return p, true
	case strings.HasPrefix(p, apiV1+"/"):
		if !f.apis["v1"] {
			http.Error(w, `{"error":"Unimplemented","message":"The v1 API is deprecated. Please use /v2 apis"}`, http.StatusGone)
			return "", false
		}
		return strings.TrimPrefix(p, apiV1), true
	}
	http.Error(w, "404 page not found", http.StatusNotFound)
	return "", false
}

func (f *fakeServer) collectionOp(w http.ResponseWriter, op string, records map[string]fakeRecord, body map[string]json.RawMessage) {
	switch op {
	case "count":
		writeJSON(w, len(records))
	case "add", "upsert":
		var req writeRequest
		raw, _ := json.Marshal(body)
		_ = json.Unmarshal(raw, &req)
		if op == "add" {
			for _, id := range req.IDs {
				if _, exists := records[id]; exists {
					http.Error(w, "ID "+id+" already exists", http.StatusConflict)
					return
				}
			}
		}
		for i, id := range req.IDs {
			records[id] = fakeRecord{
				Document:  req.Documents[i],
				Metadata:  req.Metadatas[i],
				Embedding: req.Embeddings[i],
			}
		}
		writeJSON(w, true)
	case "get":
		where := decodeWhere(f.t, body["where"])
		resp := getResponse{}
		for id, rec := range records {
			if matchesWhere(where, rec.Metadata) {
				doc := rec.Document
				resp.IDs = append(resp.IDs, id)
				resp.Documents = append(resp.Documents, &doc)
				resp.Metadatas = append(resp.Metadatas, rec.Metadata)
			}
		}
		writeJSON(w, resp)
	case "delete":
		where := decodeWhere(f.t, body["where"])
		for id, rec := range records {
			if matchesWhere(where, rec.Metadata) {
				delete(records, id)
			}
		}
		writeJSON(w, []string{})
	case "query":
		var req queryRequest
		raw, _ := json.Marshal(body)
		_ = json.Unmarshal(raw, &req)
		resp := queryResponse{IDs: [][]string{{}}, Documents: [][]*string{{}}, Metadatas: [][]map[string]any{{}}, Distances: [][]float64{{}}}
		for id, rec := range records {
			if len(resp.IDs[0]) >= req.NResults {
				break
			}
			doc := rec.Document
			resp.IDs[0] = append(resp.IDs[0], id)
			resp.Documents[0] = append(resp.Documents[0], &doc)
			resp.Metadatas[0] = append(resp.Metadatas[0], rec.Metadata)
			resp.Distances[0] = append(resp.Distances[0], 0.5)
		}
		writeJSON(w, resp)
	default:
		http.Error(w, "404 page not found", http.StatusNotFound)
	}
}

// decodeWhere flattens Chroma's where syntax into field -> value, failing the
// test when it sees anything other than $eq clauses under at most one $and
func decodeWhere(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		t.Errorf("where is not an object: %s", raw)
		return out
	}
	if len(top) > 1 {
		t.Errorf("where must have exactly one top-level operator: %s", raw)
	}

	clauses := []json.RawMessage{raw}
	if and, ok := top["$and"]; ok {
		clauses = nil
		if err := json.Unmarshal(and, &clauses); err != nil {
			t.Errorf("bad $and: %s", and)
		}
	}

	for _, c := range clauses {
		var clause map[string]map[string]any
		if err := json.Unmarshal(c, &clause); err != nil {
			t.Errorf("bad clause: %s", c)
			continue
		}
		for field, op := range clause {
			v, ok := op["$eq"]
			if !ok {
				t.Errorf("clause without $eq: %s", c)
			}
			out[field] = v
		}
	}
	return out
}

func matchesWhere(where map[string]any, meta map[string]any) bool {
	for field, want := range where {
		if meta[field] != want {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
