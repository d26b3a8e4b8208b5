package metrics

import "sync"

// AgentCounters tracks per-agent call outcomes.
type AgentCounters struct {
	Attempts  int64 `json:"attempts"`  // Total invocations
	Fallbacks int64 `json:"fallbacks"` // Times the deterministic fallback ran
	Successes int64 `json:"successes"` // Invocations that produced a usable result
}

// Registry is an injectable metrics sink shared by the pipeline agents.
// Safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	agents map[string]*AgentCounters
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*AgentCounters)}
}

func (r *Registry) counters(agent string) *AgentCounters {
	c, ok := r.agents[agent]
	if !ok {
		c = &AgentCounters{}
		r.agents[agent] = c
	}
	return c
}

// Attempt records one invocation of the named agent.
func (r *Registry) Attempt(agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters(agent).Attempts++
}

// Fallback records one fallback use by the named agent.
func (r *Registry) Fallback(agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters(agent).Fallbacks++
}

// Success records one successful result from the named agent.
func (r *Registry) Success(agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters(agent).Successes++
}

// Snapshot returns a copy of all counters keyed by agent name.
func (r *Registry) Snapshot() map[string]AgentCounters {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]AgentCounters, len(r.agents))
	for name, c := range r.agents {
		out[name] = *c
	}
	return out
}
