package tools

import (
	"context"
	"strings"

	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/session"
)

const projectListHeader = "Ecco la lista dei progetti:\n"

func inputSchema(description string, required bool) map[string]interface{} {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"input": map[string]interface{}{"type": "string", "description": description},
		},
	}
	if required {
		schema["required"] = []string{"input"}
	}
	return schema
}

func (r *Registry) registerBuiltinTools() {
	r.mustRegister(Tool{
		Name:        "list_projects",
		Description: "Which HyperIoT projects are there? Lists the user's projects by name. Call this before asking for devices or packets of a project.",
		Parameters:  inputSchema("Ignored", false),
	}, r.handleListProjects)

	r.mustRegister(Tool{
		Name:        "list_project_devices",
		Description: "Which devices does a project have? The input is the project name.",
		Parameters:  inputSchema("Project name, case-insensitive (e.g. 'Smart Farm')", true),
	}, r.handleListProjectDevices)

	r.mustRegister(Tool{
		Name:        "list_project_packets",
		Description: "Which packets does a project have? The input is the project name.",
		Parameters:  inputSchema("Project name, case-insensitive (e.g. 'Smart Farm')", true),
	}, r.handleListProjectPackets)

	r.mustRegister(Tool{
		Name:        "github_link",
		Description: "GitHub link of the project? Answers with the HyperIoT GitHub organization URL.",
		Parameters:  inputSchema("Ignored", false),
	}, r.handleGitHubLink)

	r.mustRegister(Tool{
		Name:        "what_is",
		Description: "What is it? The input is whatever follows the question.",
		Parameters:  inputSchema("Subject of the question (e.g. 'hyperiot')", true),
	}, r.handleWhatIs)
}

func (r *Registry) handleListProjects(ctx context.Context, params map[string]interface{}, userID string) (interface{}, error) {
	if _, err := r.index.Populate(ctx, session.Token(userID)); err != nil {
		return nil, err
	}
	names, err := r.index.Names(ctx)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(projectListHeader)
	for _, name := range names {
		b.WriteString(name)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (r *Registry) handleListProjectDevices(ctx context.Context, params map[string]interface{}, userID string) (interface{}, error) {
	id, err := r.index.Resolve(ctx, toString(params["input"]))
	if err != nil {
		return nil, err
	}
	return r.platform.ListDevices(ctx, session.Token(userID), id)
}

func (r *Registry) handleListProjectPackets(ctx context.Context, params map[string]interface{}, userID string) (interface{}, error) {
	id, err := r.index.Resolve(ctx, toString(params["input"]))
	if err != nil {
		return nil, err
	}
	return r.platform.ListPackets(ctx, session.Token(userID), id)
}

func (r *Registry) handleGitHubLink(ctx context.Context, params map[string]interface{}, userID string) (interface{}, error) {
	return r.knowledge.GitHubLink, nil
}

func (r *Registry) handleWhatIs(ctx context.Context, params map[string]interface{}, userID string) (interface{}, error) {
	return r.knowledge.Answer(toString(params["input"])), nil
}
