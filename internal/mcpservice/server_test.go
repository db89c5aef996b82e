package mcpservice

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/refinekit/refine-mcp/internal/refine"
	"github.com/refinekit/refine-mcp/internal/refine/config"
)

// newService builds the MCP service over a minimal fake OpenRefine.
func newService(t *testing.T) *MCPService {
	config.TestInit()

	var mu sync.Mutex
	projects := map[int64][]byte{}
	nextID := int64(2000000001)

	mux := http.NewServeMux()
	mux.HandleFunc("/command/core/get-csrf-token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token":"tok-1"}`)
	})
	mux.HandleFunc("/command/core/create-project-from-upload", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("project-file")
		require.NoError(t, err)
		defer file.Close()
		data := make([]byte, 1<<20)
		n, _ := file.Read(data)
		mu.Lock()
		id := nextID
		nextID++
		projects[id] = data[:n]
		mu.Unlock()
		w.Header().Set("Location", fmt.Sprintf("/project?project=%d", id))
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/command/core/apply-operations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"ok","lastModified":1712000000000}`)
	})
	mux.HandleFunc("/command/core/export-rows", func(w http.ResponseWriter, r *http.Request) {
		id := int64(0)
		fmt.Sscanf(r.URL.Query().Get("project"), "%d", &id)
		mu.Lock()
		data := projects[id]
		mu.Unlock()
		w.Header().Set("Content-Type", "text/csv")
		w.Write(data)
	})
	mux.HandleFunc("/command/core/delete-project", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"ok"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, aerr := CreateMCPService(refine.New(srv.URL))
	require.Nil(t, aerr)
	return svc
}

// rpc posts one JSON-RPC message to the MCP route and returns the response.
func rpc(t *testing.T, svc *MCPService, body string) gjson.Result {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
	svc.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, gjson.ValidBytes(rec.Body.Bytes()))
	return gjson.ParseBytes(rec.Body.Bytes())
}

func TestCreateMCPServiceNilClient(t *testing.T) {
	config.TestInit()
	_, aerr := CreateMCPService(nil)
	require.NotNil(t, aerr)
	assert.ErrorIs(t, aerr, ErrNilClient)
}

func TestListTools(t *testing.T) {
	svc := newService(t)
	resp := rpc(t, svc, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	names := []string{}
	for _, tool := range resp.Get("result.tools").Array() {
		names = append(names, tool.Get("name").String())
	}
	assert.Contains(t, names, "create_project")
	assert.Contains(t, names, "apply_operations")
	assert.Contains(t, names, "export_rows")
	assert.Contains(t, names, "delete_project")
	assert.Contains(t, names, "get_project_models")
}

func TestToolPipeline(t *testing.T) {
	svc := newService(t)

	dataset := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "a,b\n1,2\n")
	}))
	t.Cleanup(dataset.Close)

	resp := rpc(t, svc, fmt.Sprintf(
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"create_project","arguments":{"dataset_url":%q,"name":"Pipeline"}}}`,
		dataset.URL))
	require.False(t, resp.Get("result.isError").Bool(), resp.Raw)
	created := gjson.Parse(resp.Get("result.content.0.text").String())
	projectID := created.Get("project_id").Int()
	assert.Greater(t, projectID, int64(0))
	assert.Equal(t, "Pipeline", created.Get("name").String())

	resp = rpc(t, svc, fmt.Sprintf(
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"apply_operations","arguments":{"project_id":%d,"operations":"[]"}}}`,
		projectID))
	require.False(t, resp.Get("result.isError").Bool(), resp.Raw)
	applied := gjson.Parse(resp.Get("result.content.0.text").String())
	assert.True(t, applied.Get("applied").Bool())

	resp = rpc(t, svc, fmt.Sprintf(
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"export_rows","arguments":{"project_id":%d}}}`,
		projectID))
	require.False(t, resp.Get("result.isError").Bool(), resp.Raw)
	exported := gjson.Parse(resp.Get("result.content.0.text").String())
	assert.Equal(t, "text/csv", exported.Get("mime_type").String())
	assert.Equal(t, "a,b\n1,2\n", exported.Get("data").String())

	resp = rpc(t, svc, fmt.Sprintf(
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"delete_project","arguments":{"project_id":%d}}}`,
		projectID))
	require.False(t, resp.Get("result.isError").Bool(), resp.Raw)
	deleted := gjson.Parse(resp.Get("result.content.0.text").String())
	assert.True(t, deleted.Get("deleted").Bool())
}

func TestToolErrorsSurfaceAsToolErrors(t *testing.T) {
	svc := newService(t)

	// invalid operations payload becomes a tool error, not a protocol error
	resp := rpc(t, svc, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"apply_operations","arguments":{"project_id":1,"operations":"not json"}}}`)
	assert.True(t, resp.Get("result.isError").Bool(), resp.Raw)
	assert.Contains(t, resp.Get("result.content.0.text").String(), "operations payload")

	// missing required dataset_url
	resp = rpc(t, svc, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"create_project","arguments":{}}}`)
	assert.True(t, resp.Get("result.isError").Bool(), resp.Raw)
}

func TestInvalidJSONRejected(t *testing.T) {
	svc := newService(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString("{not json"))
	svc.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
