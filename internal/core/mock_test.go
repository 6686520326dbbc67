package core

import (
	"context"
	"sync"

	"github.com/agenthands/graphrag/internal/core/model"
	"github.com/agenthands/graphrag/internal/llm"
)

type MockStore struct {
	mu       sync.Mutex
	Graph    map[string][]model.Neighbor
	Entities []model.Entity
	Err      error
	Calls    int
}

func (m *MockStore) Neighbors(ctx context.Context, ids, edgeTypes []string, limit int) (map[string][]model.Neighbor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	allowed := make(map[string]bool, len(edgeTypes))
	for _, t := range edgeTypes {
		allowed[t] = true
	}
	out := make(map[string][]model.Neighbor)
	for _, id := range ids {
		for _, n := range m.Graph[id] {
			if allowed[n.Edge.Type] {
				out[id] = append(out[id], n)
			}
		}
	}
	return out, nil
}

func (m *MockStore) SearchEntities(ctx context.Context, terms []string, limit int) ([]model.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Entities, nil
}

type MockLLM struct {
	mu       sync.Mutex
	Response string
	Block    bool
	Calls    int
	Prompts  []string
}

func (m *MockLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.Prompts = append(m.Prompts, req.Prompt)
	m.mu.Unlock()
	if m.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.Response, nil
}
