package gist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const sharedDiagram = `{
	"database": "postgresql",
	"title": "Shop",
	"tables": [{"id":0,"name":"orders"},{"id":1,"name":"items"}],
	"relationships": [{"startTableId":0,"endTableId":1}],
	"notes": [],
	"subjectAreas": [{"name":"sales"}],
	"transform": {"pan":{"x":12,"y":-4},"zoom":0.5},
	"types": [{"name":"money"}],
	"enums": [{"name":"status"}]
}`

func newGistServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(ClientConfig{APIURL: server.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client
}

func writeGist(t *testing.T, writer http.ResponseWriter, files map[string]string) {
	t.Helper()
	payload := gistPayload{Files: map[string]gistFile{}}
	for name, content := range files {
		payload.Files[name] = gistFile{Content: content}
	}
	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(payload); err != nil {
		t.Errorf("failed to encode gist: %v", err)
	}
}

func TestFetchParsesSharedDiagram(t *testing.T) {
	client := newGistServer(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/gists/abc123" {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		if request.Header.Get(apiVersionHeader) != apiVersion {
			t.Errorf("expected api version header, got %q", request.Header.Get(apiVersionHeader))
		}
		if request.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", request.Header.Get("Authorization"))
		}
		writeGist(t, writer, map[string]string{DefaultFileName: sharedDiagram})
	})

	document, err := client.Fetch(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if document.Title != "Shop" || len(document.Tables) != 2 {
		t.Fatalf("unexpected document %#v", document)
	}

	diagram := document.Diagram("local-1", "abc123")
	if diagram.ID != "local-1" || diagram.ImportedFromGistID != "abc123" {
		t.Fatalf("unexpected identity %#v", diagram)
	}
	if diagram.Database != diagrams.DatabasePostgreSQL {
		t.Fatalf("unexpected dialect %q", diagram.Database)
	}
	if len(diagram.Areas) != 1 || len(diagram.Types) != 1 || len(diagram.Enums) != 1 {
		t.Fatalf("expected areas, types and enums to be carried, got %#v", diagram)
	}
	if diagram.Transform.Zoom != 0.5 || diagram.Transform.Pan.X != 12 {
		t.Fatalf("unexpected transform %#v", diagram.Transform)
	}
}

func TestFetchLogsUnknownDialect(t *testing.T) {
	testCases := []struct {
		name     string
		database string
		warnings int
	}{
		{name: "unknown", database: "cockroach", warnings: 1},
		{name: "known mixed case", database: " PostgreSQL ", warnings: 0},
		{name: "absent", database: "", warnings: 0},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				content, _ := json.Marshal(map[string]any{"database": testCase.database, "title": "Shop", "tables": []any{}})
				writeGist(t, writer, map[string]string{DefaultFileName: string(content)})
			}))
			t.Cleanup(server.Close)
			client, err := NewClient(ClientConfig{APIURL: server.URL, Logger: zap.New(core)})
			if err != nil {
				t.Fatalf("failed to build client: %v", err)
			}

			document, err := client.Fetch(context.Background(), "abc123")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			entries := logs.FilterMessage(logUnknownDialect).All()
			if len(entries) != testCase.warnings {
				t.Fatalf("expected %d dialect warnings, got %d", testCase.warnings, len(entries))
			}
			if testCase.warnings > 0 {
				if entries[0].ContextMap()[fieldShareID] != "abc123" {
					t.Fatalf("expected share id on warning, got %v", entries[0].ContextMap())
				}
				if kind := document.Diagram("", "abc123").Database; kind != diagrams.DatabaseGeneric {
					t.Fatalf("expected generic fallback, got %q", kind)
				}
			}
		})
	}
}

func TestFetchFailures(t *testing.T) {
	testCases := []struct {
		name     string
		handler  http.HandlerFunc
		sentinel error
	}{
		{
			name: "not found",
			handler: func(writer http.ResponseWriter, request *http.Request) {
				writer.WriteHeader(http.StatusNotFound)
			},
			sentinel: ErrFetch,
		},
		{
			name: "missing file",
			handler: func(writer http.ResponseWriter, request *http.Request) {
				writeGist(t, writer, map[string]string{"other.json": sharedDiagram})
			},
			sentinel: ErrMissingFile,
		},
		{
			name: "malformed file",
			handler: func(writer http.ResponseWriter, request *http.Request) {
				writeGist(t, writer, map[string]string{DefaultFileName: `{"tables": [`})
			},
			sentinel: ErrMalformed,
		},
		{
			name: "malformed payload",
			handler: func(writer http.ResponseWriter, request *http.Request) {
				_, _ = writer.Write([]byte("<html>"))
			},
			sentinel: ErrMalformed,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			client := newGistServer(t, testCase.handler)
			_, err := client.Fetch(context.Background(), "abc123")
			if !errors.Is(err, testCase.sentinel) {
				t.Fatalf("expected %v, got %v", testCase.sentinel, err)
			}
		})
	}
}

func TestFetchRejectsEmptyShareID(t *testing.T) {
	client, err := NewClient(ClientConfig{})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	if _, err := client.Fetch(context.Background(), " "); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestDocumentDiagramDropsUnsupportedFields(t *testing.T) {
	document, err := ParseDocument(`{"database":"mysql","title":"","types":[{"name":"t"}],"enums":[{"name":"e"}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diagram := document.Diagram("", "g-1")
	if diagram.Types != nil || diagram.Enums != nil {
		t.Fatalf("mysql must not carry types or enums, got %#v", diagram)
	}
	if diagram.Name != diagrams.DefaultName {
		t.Fatalf("expected default name, got %q", diagram.Name)
	}
	if diagram.Transform != diagrams.DefaultTransform() {
		t.Fatalf("expected default transform, got %#v", diagram.Transform)
	}
}

func TestParseDocumentRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"", "[]", "42", `"text"`} {
		if _, err := ParseDocument(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected malformed error for %q, got %v", raw, err)
		}
	}
}
