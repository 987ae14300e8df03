package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/hyperiot"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/knowledge"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/observability"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/projects"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/session"
)

var (
	// ErrUnknownTool is returned by Execute for a name that was never registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidInput is returned when the arguments don't match the tool's schema.
	ErrInvalidInput = errors.New("invalid tool input")
)

// Tool represents a function the assistant can call
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolResult is what the host gets back. Output is either plain text or the
// platform's JSON body, untouched.
type ToolResult struct {
	CallID string      `json:"call_id"`
	Tool   string      `json:"tool"`
	Output interface{} `json:"output"`
}

// ToolHandler is a function that executes a tool
type ToolHandler func(ctx context.Context, params map[string]interface{}, userID string) (interface{}, error)

// Platform is the part of the HyperIoT API the project-scoped tools call.
type Platform interface {
	ListDevices(ctx context.Context, token string, id hyperiot.ProjectID) (json.RawMessage, error)
	ListPackets(ctx context.Context, token string, id hyperiot.ProjectID) (json.RawMessage, error)
}

// Registry manages available tools
type Registry struct {
	tools    map[string]Tool
	handlers map[string]ToolHandler
	schemas  map[string]*jsonschema.Schema
	order    []string

	index     *projects.Index
	platform  Platform
	knowledge *knowledge.Base
}

// NewRegistry creates a registry with the built-in HyperIoT tools.
func NewRegistry(index *projects.Index, platform Platform, kb *knowledge.Base) *Registry {
	if kb == nil {
		kb = knowledge.Default()
	}
	r := &Registry{
		tools:     make(map[string]Tool),
		handlers:  make(map[string]ToolHandler),
		schemas:   make(map[string]*jsonschema.Schema),
		index:     index,
		platform:  platform,
		knowledge: kb,
	}
	r.registerBuiltinTools()
	return r
}

// Register adds a tool to the registry, compiling its parameter schema.
func (r *Registry) Register(tool Tool, handler ToolHandler) error {
	if strings.TrimSpace(tool.Name) == "" {
		return errors.New("tool name is required")
	}
	params := tool.Parameters
	if params == nil {
		params = map[string]interface{}{"type": "object"}
		tool.Parameters = params
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("tool %s: marshal schema: %w", tool.Name, err)
	}
	compiler := jsonschema.NewCompiler()
	url := tool.Name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("tool %s: %w", tool.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", tool.Name, err)
	}

	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = tool
	r.handlers[tool.Name] = handler
	r.schemas[tool.Name] = schema
	return nil
}

func (r *Registry) mustRegister(tool Tool, handler ToolHandler) {
	if err := r.Register(tool, handler); err != nil {
		panic(err)
	}
}

// Definitions returns the tools in registration order.
func (r *Registry) Definitions() []Tool {
	defs := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name])
	}
	return defs
}

// GetToolsForPrompt returns a formatted list of tools for the system prompt
func (r *Registry) GetToolsForPrompt() string {
	var lines []string
	for _, tool := range r.Definitions() {
		lines = append(lines, fmt.Sprintf("- %s: %s", tool.Name, tool.Description))
	}
	return strings.Join(lines, "\n")
}

// Execute runs a tool with the given parameters on behalf of userID.
// Handler errors are returned as-is; nothing is retried or swallowed.
func (r *Registry) Execute(ctx context.Context, toolName string, params map[string]interface{}, userID string) (*ToolResult, error) {
	handler, exists := r.handlers[toolName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	if err := r.schemas[toolName].Validate(params); err != nil {
		observability.ObserveToolCall(toolName, "invalid")
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	callID := uuid.NewString()
	log := slog.With("tool", toolName, "call_id", callID)
	if sub := session.Subject(userID); sub != "" {
		log = log.With("subject", sub)
	}
	log.Info("tool call")

	out, err := handler(ctx, params, userID)
	if err != nil {
		observability.ObserveToolCall(toolName, "error")
		log.Warn("tool call failed", "error", err)
		return nil, err
	}
	observability.ObserveToolCall(toolName, "ok")
	return &ToolResult{CallID: callID, Tool: toolName, Output: out}, nil
}

// AgentPromptPrefix is the hook the host runs before each agent turn. It
// refreshes the project index for the user and returns the persona prompt.
func (r *Registry) AgentPromptPrefix(ctx context.Context, userID string) (string, error) {
	if _, err := r.index.Populate(ctx, session.Token(userID)); err != nil {
		observability.ObserveToolCall("agent_prompt_prefix", "error")
		return "", err
	}
	observability.ObserveToolCall("agent_prompt_prefix", "ok")
	return r.knowledge.PromptPrefix, nil
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
