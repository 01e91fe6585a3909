package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zeu5/counting-rm/automaton"
	"github.com/zeu5/counting-rm/rl"
)

type MachineSummary struct {
	Name          string   `json:"name"`
	Propositions  []string `json:"propositions"`
	InitialState  int      `json:"initial_state"`
	States        []int    `json:"states"`
	Terminal      []int    `json:"terminal"`
	Counters      []int    `json:"initial_counters"`
	RewardMachine bool     `json:"reward_machine"`
}

type EntryView struct {
	Expr    string `json:"expr"`
	Events  string `json:"events"`
	Pattern string `json:"pattern"`
	Next    int    `json:"next"`
	Delta   []int  `json:"delta"`
}

type MachineDetail struct {
	MachineSummary
	Table   map[int][]EntryView `json:"table"`
	Samples [][]int             `json:"samples"`
}

// TransitionRequest resolves one step. The observations are only passed to the
// reward function and may be omitted for constant rewards.
type TransitionRequest struct {
	State    int            `json:"state"`
	Counters []int          `json:"counters" binding:"required"`
	Events   []string       `json:"events"`
	Obs      rl.Observation `json:"obs"`
	Action   string         `json:"action"`
	NextObs  rl.Observation `json:"next_obs"`
}

type TransitionResponse struct {
	State    int     `json:"state"`
	Counters []int   `json:"counters"`
	Reward   float64 `json:"reward"`
	Entry    int     `json:"entry"`
	Terminal bool    `json:"terminal"`
}

type CounterfactualRequest struct {
	Events  []string       `json:"events"`
	Obs     rl.Observation `json:"obs"`
	Action  string         `json:"action"`
	NextObs rl.Observation `json:"next_obs"`
}

type CounterfactualView struct {
	State        int     `json:"state"`
	Counters     []int   `json:"counters"`
	NextState    int     `json:"next_state"`
	NextCounters []int   `json:"next_counters"`
	Reward       float64 `json:"reward"`
	Terminal     bool    `json:"terminal"`
}

type CounterfactualResponse struct {
	Experiences []CounterfactualView `json:"experiences"`
	Skipped     int                  `json:"skipped"`
}

func summarize(m *automaton.Machine) MachineSummary {
	return MachineSummary{
		Name:          m.Name(),
		Propositions:  m.Alphabet(),
		InitialState:  m.InitialState(),
		States:        m.States(),
		Terminal:      m.Terminal(),
		Counters:      m.InitialCounters(),
		RewardMachine: m.IsRewardMachine(),
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "machines": len(s.names())})
}

func (s *Server) handleList(c *gin.Context) {
	out := make([]MachineSummary, 0)
	for _, name := range s.names() {
		if m, ok := s.machine(name); ok {
			out = append(out, summarize(m))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGet(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	table := make(map[int][]EntryView)
	for _, u := range m.States() {
		entries := m.Entries(u)
		views := make([]EntryView, len(entries))
		for i, e := range entries {
			views[i] = EntryView{
				Expr:    e.Guard.Expr(),
				Events:  e.Guard.EventText(),
				Pattern: e.Guard.CounterText(),
				Next:    e.Next,
				Delta:   e.Delta,
			}
		}
		table[u] = views
	}
	c.JSON(http.StatusOK, MachineDetail{
		MachineSummary: summarize(m),
		Table:          table,
		Samples:        m.SampleCounterConfigurations(),
	})
}

func (s *Server) handleTransition(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}
	events, err := toEvents(m, req.Events)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := m.Transition(req.State, req.Counters, events)
	if err != nil {
		s.writeMachineError(c, err)
		return
	}
	c.JSON(http.StatusOK, TransitionResponse{
		State:    out.State,
		Counters: out.Counters,
		Reward:   out.Reward(req.Obs, rl.NamedAction(req.Action), req.NextObs),
		Entry:    out.Entry,
		Terminal: m.IsTerminal(out.State),
	})
}

func (s *Server) handleCounterfactual(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	var req CounterfactualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}
	events, err := toEvents(m, req.Events)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	relabeled, skipped, err := m.Relabel(events)
	if err != nil {
		s.writeMachineError(c, err)
		return
	}
	action := rl.NamedAction(req.Action)
	resp := CounterfactualResponse{
		Experiences: make([]CounterfactualView, len(relabeled)),
		Skipped:     skipped,
	}
	for i, r := range relabeled {
		resp.Experiences[i] = CounterfactualView{
			State:        r.State,
			Counters:     r.Counters,
			NextState:    r.Outcome.State,
			NextCounters: r.Outcome.Counters,
			Reward:       r.Outcome.Reward(req.Obs, action, req.NextObs),
			Terminal:     m.IsTerminal(r.Outcome.State),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) lookup(c *gin.Context) (*automaton.Machine, bool) {
	name := c.Param("name")
	m, ok := s.machine(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown machine %q", name)})
	}
	return m, ok
}

func (s *Server) writeMachineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, automaton.ErrInvalidState),
		errors.Is(err, automaton.ErrTableCompleteness),
		errors.Is(err, automaton.ErrCounterUnderflow):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Error("machine request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func toEvents(m *automaton.Machine, names []string) (automaton.Events, error) {
	alphabet := m.Alphabet()
	events := automaton.NewEvents()
	for _, n := range names {
		if !alphabet.Contains(n) {
			return nil, fmt.Errorf("unknown proposition %q for machine %s", n, m.Name())
		}
		events.Add(n)
	}
	return events, nil
}
