// Package testutil provides shared test helpers.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/archon-ai/agent-tester/internal/archon"
	"github.com/archon-ai/agent-tester/internal/openrouter"
	"github.com/archon-ai/agent-tester/internal/testsuite"
)

// MockAgentGateway is a configurable in-memory stand-in for the Archon API,
// used across test packages. Unknown agent ids fail with the same typed
// not-found error the real client returns. Safe for concurrent use so the
// engine's parallel mode can be tested against it.
type MockAgentGateway struct {
	mu sync.Mutex

	// Agents holds the known agents keyed by id.
	Agents map[string]archon.AgentInfo

	// Responses maps the "prompt" input string to canned outputs.
	Responses map[string]testsuite.Values

	// DefaultResponse is returned when no matching prompt is found.
	DefaultResponse testsuite.Values

	// InvokeFunc, when set, replaces the canned-response lookup entirely.
	InvokeFunc func(ctx context.Context, agentID string, inputs testsuite.Values) (testsuite.Values, error)

	// InvokeErr, when set, fails every invocation.
	InvokeErr error

	// Metrics holds canned per-agent metrics.
	Metrics map[string]map[string]any

	// UpdateErr, when set, fails UpdateAgentMetadata.
	UpdateErr error

	// Invocations counts InvokeAgent calls.
	Invocations int

	// LastInputs stores the most recent invocation inputs for inspection.
	LastInputs testsuite.Values

	// UpdatedMetadata stores the metadata from the last UpdateAgentMetadata
	// call, keyed by agent id.
	UpdatedMetadata map[string]map[string]any
}

func (m *MockAgentGateway) GetAgent(_ context.Context, agentID string) (*archon.AgentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.Agents[agentID]
	if !ok {
		return nil, &archon.NotFoundError{AgentID: agentID}
	}
	return &agent, nil
}

func (m *MockAgentGateway) ListAgents(_ context.Context, limit, offset int) ([]archon.AgentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agents := make([]archon.AgentInfo, 0, len(m.Agents))
	for _, a := range m.Agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	if offset > len(agents) {
		offset = len(agents)
	}
	agents = agents[offset:]
	if limit > 0 && limit < len(agents) {
		agents = agents[:limit]
	}
	return agents, nil
}

func (m *MockAgentGateway) InvokeAgent(ctx context.Context, agentID string, inputs testsuite.Values) (testsuite.Values, error) {
	m.mu.Lock()
	m.Invocations++
	m.LastInputs = inputs.Clone()
	fn := m.InvokeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, agentID, inputs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Agents != nil {
		if _, ok := m.Agents[agentID]; !ok {
			return nil, &archon.NotFoundError{AgentID: agentID}
		}
	}
	if m.InvokeErr != nil {
		return nil, m.InvokeErr
	}

	if prompt, ok := inputs["prompt"]; ok {
		if s, isStr := prompt.AsString(); isStr {
			if resp, ok := m.Responses[s]; ok {
				return resp.Clone(), nil
			}
		}
	}
	if m.DefaultResponse != nil {
		return m.DefaultResponse.Clone(), nil
	}
	return testsuite.Values{"response": testsuite.StringValue("mock response")}, nil
}

func (m *MockAgentGateway) GetAgentMetrics(_ context.Context, agentID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Agents[agentID]; !ok {
		return nil, &archon.NotFoundError{AgentID: agentID}
	}
	if metrics, ok := m.Metrics[agentID]; ok {
		return metrics, nil
	}
	return map[string]any{}, nil
}

func (m *MockAgentGateway) UpdateAgentMetadata(_ context.Context, agentID string, metadata map[string]any) (*archon.AgentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.Agents[agentID]
	if !ok {
		return nil, &archon.NotFoundError{AgentID: agentID}
	}
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	if m.UpdatedMetadata == nil {
		m.UpdatedMetadata = make(map[string]map[string]any)
	}
	m.UpdatedMetadata[agentID] = metadata
	return &agent, nil
}

// MockModelGateway is a configurable mock for openrouter.Client.
type MockModelGateway struct {
	// Models is returned by ListModels.
	Models []openrouter.ModelInfo

	// ListModelsErr, when set, fails ListModels.
	ListModelsErr error

	// Responses maps user messages to canned chat responses.
	Responses map[string]string

	// DefaultResponse is returned when no matching key is found in Responses.
	DefaultResponse string

	// Calls tracks the number of ChatCompletion invocations.
	Calls int

	// LastRequest stores the most recent ChatRequest for inspection.
	LastRequest openrouter.ChatRequest
}

func (m *MockModelGateway) ListModels(_ context.Context) ([]openrouter.ModelInfo, error) {
	if m.ListModelsErr != nil {
		return nil, m.ListModelsErr
	}
	return m.Models, nil
}

func (m *MockModelGateway) ChatCompletion(_ context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	m.Calls++
	m.LastRequest = req

	if resp, ok := m.Responses[req.UserMessage]; ok {
		return &openrouter.ChatResponse{Content: resp}, nil
	}
	if m.DefaultResponse != "" {
		return &openrouter.ChatResponse{Content: m.DefaultResponse}, nil
	}
	return &openrouter.ChatResponse{Content: "mock response"}, nil
}

func (m *MockModelGateway) ChatCompletionStream(_ context.Context, _ openrouter.ChatRequest) (*openrouter.StreamReader, error) {
	return nil, fmt.Errorf("streaming not supported in mock")
}
