package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/config"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/database"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/listing"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/remotestore"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/server"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/session"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const sharedDiagram = `{"database":"postgresql","title":"Shared orders","tables":[{"name":"orders"},{"name":"items"}],"relationships":[{"name":"fk"}],"notes":[],"subjectAreas":[]}`

func TestRootCommandRegistersSubcommands(testContext *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{{"serve"}, {"list"}, {"open"}, {"template"}, {"template", "import"}, {"template", "list"}} {
		found, _, err := root.Find(path)
		name := path[len(path)-1]
		if err != nil || found.Name() != name {
			testContext.Fatalf("expected subcommand %v, got %v (%v)", path, found, err)
		}
	}
}

func TestPrintEntries(testContext *testing.T) {
	var out bytes.Buffer
	entries := []listing.Entry{
		{ID: "a", Name: "Orders", DialectName: "PostgreSQL", Tables: 2, SizeLabel: "1.5KB", LastModified: time.UnixMilli(1700000000000)},
		{ID: "b", Name: "Remote", DialectName: "Generic", SizeLabel: "90B", LastModified: time.UnixMilli(1700000000000), RemoteOnly: true},
	}
	if err := printEntries(&out, entries); err != nil {
		testContext.Fatalf("print failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		testContext.Fatalf("expected header and two rows, got %q", out.String())
	}
	if !strings.Contains(lines[1], "Orders") || !strings.HasSuffix(strings.TrimSpace(lines[1]), "local") {
		testContext.Fatalf("unexpected first row %q", lines[1])
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[2]), "remote") {
		testContext.Fatalf("unexpected second row %q", lines[2])
	}
}

func TestShareParamClears(testContext *testing.T) {
	param := &shareParam{value: "abc"}
	if param.ShareID() != "abc" {
		testContext.Fatalf("unexpected share id %q", param.ShareID())
	}
	param.ClearShareID()
	if param.ShareID() != "" {
		testContext.Fatalf("expected share id to be cleared")
	}
}

func TestConsolePrompterWritesNotices(testContext *testing.T) {
	var out bytes.Buffer
	prompter := &consolePrompter{out: &out}
	prompter.PromptForDialect()
	prompter.Notify(session.NoticeDiagramNotFound)
	if !strings.Contains(out.String(), "choose a database dialect") {
		testContext.Fatalf("missing dialect prompt in %q", out.String())
	}
	if !strings.Contains(out.String(), "notice: didnt_find_diagram") {
		testContext.Fatalf("missing notice in %q", out.String())
	}
}

func startRemoteService(testContext *testing.T) *httptest.Server {
	testContext.Helper()
	db, err := database.OpenSQLite(filepath.Join(testContext.TempDir(), "remote.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open remote database: %v", err)
	}
	repository, err := remotestore.NewRepository(remotestore.RepositoryConfig{Database: db})
	if err != nil {
		testContext.Fatalf("failed to build repository: %v", err)
	}
	handler, err := server.NewHTTPHandler(server.Dependencies{Repository: repository})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}
	service := httptest.NewServer(handler)
	testContext.Cleanup(service.Close)
	return service
}

func startGistService(testContext *testing.T) *httptest.Server {
	testContext.Helper()
	payload, err := json.Marshal(map[string]any{
		"files": map[string]any{
			"share.json": map[string]string{"content": sharedDiagram},
		},
	})
	if err != nil {
		testContext.Fatalf("failed to encode gist: %v", err)
	}
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gists/abc123" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}))
	testContext.Cleanup(service.Close)
	return service
}

func configureViper(testContext *testing.T, remoteURL, gistURL string) {
	testContext.Helper()
	viper.Reset()
	config.ApplyDefaults(viper.GetViper())
	viper.Set("local.path", filepath.Join(testContext.TempDir(), "local.db"))
	viper.Set("remote.url", remoteURL)
	viper.Set("remote.retry_attempts", 1)
	viper.Set("gist.api_url", gistURL)
	viper.Set("log.level", "error")
	testContext.Cleanup(viper.Reset)
}

func TestOpenImportsGistAndListShowsIt(testContext *testing.T) {
	remote := startRemoteService(testContext)
	gistService := startGistService(testContext)
	configureViper(testContext, remote.URL, gistService.URL)
	ctx := context.Background()

	var out bytes.Buffer
	if err := runOpen(ctx, &out, openOptions{shareID: "abc123", save: true}); err != nil {
		testContext.Fatalf("open failed: %v", err)
	}
	output := out.String()
	for _, expected := range []string{"save: completed", "outcome: loaded", "name: Shared orders", "tables: 2", "dirty: false", "token: d "} {
		if !strings.Contains(output, expected) {
			testContext.Fatalf("expected %q in output:\n%s", expected, output)
		}
	}

	out.Reset()
	if err := runList(ctx, &out, `database == "postgresql" && tables == 2`); err != nil {
		testContext.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), "Shared orders") {
		testContext.Fatalf("expected imported diagram in listing:\n%s", out.String())
	}

	out.Reset()
	if err := runOpen(ctx, &out, openOptions{}); err != nil {
		testContext.Fatalf("reopen failed: %v", err)
	}
	if !strings.Contains(out.String(), "name: Shared orders") {
		testContext.Fatalf("expected latest diagram to reopen:\n%s", out.String())
	}
}

func TestOpenWithoutDiagramsPrompts(testContext *testing.T) {
	remote := startRemoteService(testContext)
	configureViper(testContext, remote.URL, "https://api.github.com")

	var out bytes.Buffer
	if err := runOpen(context.Background(), &out, openOptions{}); err != nil {
		testContext.Fatalf("open failed: %v", err)
	}
	output := out.String()
	if !strings.Contains(output, "choose a database dialect") || !strings.Contains(output, "outcome: no_diagram") {
		testContext.Fatalf("unexpected output:\n%s", output)
	}
	if !strings.Contains(output, "token: (none)") {
		testContext.Fatalf("expected no token:\n%s", output)
	}
}

func TestListRejectsInvalidFilter(testContext *testing.T) {
	if err := runList(context.Background(), &bytes.Buffer{}, "tables >"); err == nil {
		testContext.Fatalf("expected invalid filter error")
	}
}

func TestTemplateImportListAndOpen(testContext *testing.T) {
	remote := startRemoteService(testContext)
	configureViper(testContext, remote.URL, "https://api.github.com")
	ctx := context.Background()

	path := filepath.Join(testContext.TempDir(), "blog.json")
	document := `{"database":"sqlite","title":"Blog","tables":[{"name":"posts"},{"name":"authors"}],"relationships":[],"notes":[],"subjectAreas":[]}`
	if err := os.WriteFile(path, []byte(document), 0o600); err != nil {
		testContext.Fatalf("failed to write template file: %v", err)
	}

	var out bytes.Buffer
	if err := runTemplateImport(ctx, &out, templateImportOptions{file: path, id: "blog"}); err != nil {
		testContext.Fatalf("template import failed: %v", err)
	}
	if !strings.Contains(out.String(), "session: t blog") {
		testContext.Fatalf("expected session token in output:\n%s", out.String())
	}

	out.Reset()
	if err := runTemplateList(ctx, &out); err != nil {
		testContext.Fatalf("template list failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "Blog") || !strings.HasSuffix(strings.TrimSpace(lines[1]), "custom") {
		testContext.Fatalf("unexpected template listing:\n%s", out.String())
	}

	out.Reset()
	if err := runOpen(ctx, &out, openOptions{token: "t blog"}); err != nil {
		testContext.Fatalf("open failed: %v", err)
	}
	for _, expected := range []string{"token: t blog", "outcome: loaded", "name: Blog", "tables: 2", "dirty: false"} {
		if !strings.Contains(out.String(), expected) {
			testContext.Fatalf("expected %q in output:\n%s", expected, out.String())
		}
	}
}

func TestTemplateImportRequiresFile(testContext *testing.T) {
	configureViper(testContext, "http://127.0.0.1:1", "https://api.github.com")
	err := runTemplateImport(context.Background(), &bytes.Buffer{}, templateImportOptions{})
	if !errors.Is(err, errMissingTemplateFile) {
		testContext.Fatalf("expected missing file error, got %v", err)
	}
}
