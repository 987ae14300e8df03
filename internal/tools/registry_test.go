package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/hyperiot"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/knowledge"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/projects"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/tools"
)

const devicesBody = `[{"id":100,"deviceName":"sensor-a"},{"id":101,"deviceName":"sensor-b"}]`

type fakePlatform struct {
	mu     sync.Mutex
	hits   map[string]int
	auth   []string
	status int
	cards  string
}

func newFakePlatform(t *testing.T) (*fakePlatform, *httptest.Server) {
	t.Helper()
	f := &fakePlatform{
		hits:  make(map[string]int),
		cards: `[{"id":42,"name":"Foo"},{"id":7,"name":"Smart Farm"}]`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		status, cards := f.status, f.cards
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/hyperiot/hprojects/all/cards":
			w.Write([]byte(cards))
		case strings.HasPrefix(r.URL.Path, "/hyperiot/hdevices/all/"):
			w.Write([]byte(devicesBody))
		case strings.HasPrefix(r.URL.Path, "/hyperiot/hpackets/all/"):
			w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakePlatform) set(status int, cards string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	if cards != "" {
		f.cards = cards
	}
}

func (f *fakePlatform) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakePlatform) firstAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.auth) == 0 {
		return ""
	}
	return f.auth[0]
}

func (f *fakePlatform) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.hits {
		n += c
	}
	return n
}

func newRegistry(t *testing.T) (*tools.Registry, *fakePlatform) {
	t.Helper()
	f, srv := newFakePlatform(t)
	client := hyperiot.New(srv.URL)
	return tools.NewRegistry(projects.NewIndex(client, nil), client, knowledge.Default()), f
}

func TestRegistry_Definitions(t *testing.T) {
	registry, _ := newRegistry(t)

	want := []string{"list_projects", "list_project_devices", "list_project_packets", "github_link", "what_is"}
	defs := registry.Definitions()
	if len(defs) != len(want) {
		t.Fatalf("Definitions() returned %d tools, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("Definitions()[%d] = %s, want %s", i, defs[i].Name, name)
		}
		if defs[i].Description == "" {
			t.Errorf("tool %s has no description", name)
		}
	}

	prompt := registry.GetToolsForPrompt()
	if !strings.Contains(prompt, "- list_project_devices: ") {
		t.Errorf("GetToolsForPrompt() missing list_project_devices:\n%s", prompt)
	}
}

func TestRegistry_ListProjects(t *testing.T) {
	registry, platform := newRegistry(t)

	res, err := registry.Execute(context.Background(), "list_projects", nil, "abc")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := "Ecco la lista dei progetti:\nFoo\nSmart Farm\n"
	if res.Output != want {
		t.Errorf("output = %q, want %q", res.Output, want)
	}
	if res.CallID == "" || res.Tool != "list_projects" {
		t.Errorf("result = %+v", res)
	}
	if auth := platform.firstAuth(); auth != "JWT abc" {
		t.Errorf("Authorization = %q, want %q", auth, "JWT abc")
	}
}

func TestRegistry_ListProjectsEmpty(t *testing.T) {
	registry, platform := newRegistry(t)
	platform.set(0, `[]`)

	res, err := registry.Execute(context.Background(), "list_projects", map[string]interface{}{"input": "whatever"}, "abc")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Output != "Ecco la lista dei progetti:\n" {
		t.Errorf("output = %q", res.Output)
	}
}

func TestRegistry_ListProjectsRepeatsDoNotDuplicate(t *testing.T) {
	registry, platform := newRegistry(t)
	ctx := context.Background()

	var last interface{}
	for i := 0; i < 3; i++ {
		res, err := registry.Execute(ctx, "list_projects", nil, "abc")
		if err != nil {
			t.Fatalf("Execute() #%d error = %v", i, err)
		}
		last = res.Output
	}
	if last != "Ecco la lista dei progetti:\nFoo\nSmart Farm\n" {
		t.Errorf("output after repeats = %q", last)
	}
	if got := platform.count("/hyperiot/hprojects/all/cards"); got != 3 {
		t.Errorf("cards requests = %d, want 3", got)
	}
}

func TestRegistry_DevicesAfterListing(t *testing.T) {
	registry, platform := newRegistry(t)
	ctx := context.Background()

	if _, err := registry.Execute(ctx, "list_projects", nil, "abc"); err != nil {
		t.Fatalf("list_projects error = %v", err)
	}
	res, err := registry.Execute(ctx, "list_project_devices", map[string]interface{}{"input": "smart farm"}, "abc")
	if err != nil {
		t.Fatalf("list_project_devices error = %v", err)
	}
	raw, ok := res.Output.(json.RawMessage)
	if !ok {
		t.Fatalf("output type = %T, want json.RawMessage", res.Output)
	}
	if string(raw) != devicesBody {
		t.Errorf("output = %s, want %s", raw, devicesBody)
	}
	if got := platform.count("/hyperiot/hdevices/all/7"); got != 1 {
		t.Errorf("devices requests = %d, want 1", got)
	}
}

func TestRegistry_PacketsAfterHook(t *testing.T) {
	registry, platform := newRegistry(t)
	ctx := context.Background()

	if _, err := registry.AgentPromptPrefix(ctx, "abc"); err != nil {
		t.Fatalf("AgentPromptPrefix() error = %v", err)
	}
	if _, err := registry.Execute(ctx, "list_project_packets", map[string]interface{}{"input": "FOO"}, "abc"); err != nil {
		t.Fatalf("list_project_packets error = %v", err)
	}
	if got := platform.count("/hyperiot/hpackets/all/42"); got != 1 {
		t.Errorf("packets requests = %d, want 1", got)
	}
}

func TestRegistry_UnknownProjectMakesNoRequest(t *testing.T) {
	registry, platform := newRegistry(t)

	_, err := registry.Execute(context.Background(), "list_project_devices", map[string]interface{}{"input": "Smart Farm"}, "abc")
	if !errors.Is(err, projects.ErrProjectNotFound) {
		t.Fatalf("error = %v, want ErrProjectNotFound", err)
	}
	if got := platform.total(); got != 0 {
		t.Errorf("platform requests = %d, want 0", got)
	}
}

func TestRegistry_UpstreamFailure(t *testing.T) {
	registry, platform := newRegistry(t)
	platform.set(http.StatusUnauthorized, "")

	_, err := registry.Execute(context.Background(), "list_projects", nil, "expired")
	if err == nil {
		t.Fatal("expected error")
	}
	if !hyperiot.IsAuthFailure(err) {
		t.Errorf("IsAuthFailure(%v) = false", err)
	}
}

func TestRegistry_StaticTools(t *testing.T) {
	registry, platform := newRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		tool   string
		params map[string]interface{}
		want   string
	}{
		{name: "github link", tool: "github_link", want: "https://github.com/HyperIoT-Labs"},
		{name: "what is hyperiot", tool: "what_is", params: map[string]interface{}{"input": "HyperIoT"}, want: "HyperIoT è una piattaforma Open Source No-Code Cloud Native per la gestione di big data da qualsiasi rete IIoT disponibile su Github"},
		{name: "what is github", tool: "what_is", params: map[string]interface{}{"input": "github"}, want: "link github https://github.com/HyperIoT-Labs"},
		{name: "what is unknown", tool: "what_is", params: map[string]interface{}{"input": "kubernetes"}, want: "Non lo so"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := registry.Execute(ctx, tt.tool, tt.params, "")
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if res.Output != tt.want {
				t.Errorf("output = %q, want %q", res.Output, tt.want)
			}
		})
	}
	if got := platform.total(); got != 0 {
		t.Errorf("static tools made %d platform requests", got)
	}
}

func TestRegistry_InvalidInput(t *testing.T) {
	registry, _ := newRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		tool   string
		params map[string]interface{}
	}{
		{name: "missing project name", tool: "list_project_devices", params: nil},
		{name: "non-string project name", tool: "list_project_packets", params: map[string]interface{}{"input": true}},
		{name: "missing question", tool: "what_is", params: map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Execute(ctx, tt.tool, tt.params, "abc")
			if !errors.Is(err, tools.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	registry, _ := newRegistry(t)

	_, err := registry.Execute(context.Background(), "nonexistent_tool", nil, "abc")
	if !errors.Is(err, tools.ErrUnknownTool) {
		t.Errorf("error = %v, want ErrUnknownTool", err)
	}
}

func TestRegistry_AgentPromptPrefix(t *testing.T) {
	registry, platform := newRegistry(t)
	ctx := context.Background()

	prefix, err := registry.AgentPromptPrefix(ctx, "abc")
	if err != nil {
		t.Fatalf("AgentPromptPrefix() error = %v", err)
	}
	if !strings.HasPrefix(prefix, "Tu sei ACBot") {
		t.Errorf("prefix = %q", prefix)
	}
	if got := platform.count("/hyperiot/hprojects/all/cards"); got != 1 {
		t.Errorf("cards requests = %d, want 1", got)
	}

	platform.set(http.StatusBadGateway, "")
	if _, err := registry.AgentPromptPrefix(ctx, "abc"); err == nil {
		t.Fatal("expected error when platform fails")
	}
}

func TestRegistry_Register(t *testing.T) {
	registry, _ := newRegistry(t)

	err := registry.Register(tools.Tool{
		Name:        "echo",
		Description: "Echo the input",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"input": map[string]interface{}{"type": "string"}},
			"required":   []string{"input"},
		},
	}, func(_ context.Context, params map[string]interface{}, _ string) (interface{}, error) {
		return params["input"], nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res, err := registry.Execute(context.Background(), "echo", map[string]interface{}{"input": "ciao"}, "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Output != "ciao" {
		t.Errorf("output = %v", res.Output)
	}

	if err := registry.Register(tools.Tool{}, nil); err == nil {
		t.Error("Register() with empty name should fail")
	}
}
