package grid

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/zeu5/counting-rm/automaton"
	"golang.org/x/exp/rand"
)

//go:embed machines/office.yaml
var officeDefinition []byte

// Letters of the reference worlds
const (
	LetterA = "A"
	LetterB = "B"
	LetterC = "C"

	Mail   = "M"
	Coffee = "C"
	Office = "P"
)

// LetterWorld places A, B and C in the corners of a height x width room
func LetterWorld(height, width int) *GridEnvironment {
	return NewGridEnvironment(height, width, map[Position]string{
		{I: height - 1, J: 0}:         LetterA,
		{I: height - 1, J: width - 1}: LetterB,
		{I: 0, J: width - 1}:          LetterC,
	})
}

// OfficeWorld places the mail, the coffee machine and the office
func OfficeWorld(height, width int) *GridEnvironment {
	return NewGridEnvironment(height, width, map[Position]string{
		{I: height - 1, J: width / 2}: Mail,
		{I: height / 2, J: width - 1}: Coffee,
		{I: 0, J: width - 1}:          Office,
	})
}

// LetterMachine counts the visits to A. Once B is reached with a nonzero count
// every visit to C pays one and decrements the counter; the episode ends when
// the counter is back to zero.
//
// Counter configurations for counterfactuals are 0, 1 and 2 plus extra random
// counts below horizon.
func LetterMachine(g *GridEnvironment, extra, horizon int, seed uint64) (*automaton.Machine, error) {
	c, ok := g.Find(LetterC)
	if !ok {
		return nil, fmt.Errorf("grid: letter world has no %s", LetterC)
	}
	sampler := automaton.MixedCounters(
		[][]int{{0}, {1}, {2}},
		extra,
		horizon,
		false,
		rand.New(rand.NewSource(seed)),
	)

	def := automaton.NewDefinition("letter", automaton.NewAlphabet(LetterA, LetterB, LetterC)).
		WithCounters(0).
		WithSampler(sampler)
	def.From(0).
		OnValue("A / (-)", 0, 0, 1).
		OnValue("B / (NZ)", 1, 0, 0).
		OnValue("/ (-)", 0, 0, 0)
	def.From(1).
		OnValue("C / (NZ)", 1, 1, -1).
		OnValue("/ (Z)", automaton.Terminal, 0, 0).
		On("/ (NZ)", 1, DistanceReward(c, 0.01), 0)
	return automaton.New(def)
}

// OfficeRewards resolves the named rewards of the office machine
func OfficeRewards(g *GridEnvironment) automaton.RewardRegistry {
	office, _ := g.Find(Office)
	return automaton.RewardRegistry{
		"toward_office": ProgressReward(office, 0.1),
	}
}

// OfficeMachine is the reward machine of the office world
func OfficeMachine(g *GridEnvironment) (*automaton.Machine, error) {
	def, err := automaton.LoadDefinition(bytes.NewReader(officeDefinition), OfficeRewards(g))
	if err != nil {
		return nil, err
	}
	return automaton.New(def)
}
