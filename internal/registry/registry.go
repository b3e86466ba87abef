package registry

import (
	"fmt"
	"log"
	"slices"

	kitlog "github.com/go-kit/log"

	"github.com/st3v3nmw/replcheck/internal/attest"
	"github.com/st3v3nmw/replcheck/internal/config"
	"github.com/st3v3nmw/replcheck/internal/failover"
)

func init() {
	log.SetFlags(0)
}

var scenarios = make(map[string]*Scenario)

// ScenarioFunc builds the suite for a run against the fixture's cluster.
type ScenarioFunc func(cfg *config.Config, fx failover.Fixture, logger kitlog.Logger) *attest.Suite

type Scenario struct {
	Key     string
	Name    string
	Summary string
	Fn      ScenarioFunc
}

// UnknownScenarioError is returned when the requested scenario is not registered.
type UnknownScenarioError struct {
	Key string
}

func (e *UnknownScenarioError) Error() string {
	return fmt.Sprintf("unknown scenario: %s", e.Key)
}

// Register adds a scenario. Call from init() in scenario files.
func Register(key string, scenario *Scenario) {
	if scenario.Fn == nil {
		log.Fatalf("Cannot register scenario %s without a suite.", key)
	}

	if _, exists := scenarios[key]; exists {
		log.Fatalf("Scenario %s registered twice.", key)
	}

	scenario.Key = key
	scenarios[key] = scenario
}

func Get(key string) (*Scenario, error) {
	scenario, exists := scenarios[key]
	if !exists {
		return nil, &UnknownScenarioError{Key: key}
	}

	return scenario, nil
}

// All returns the registered scenarios ordered by key.
func All() []*Scenario {
	keys := make([]string, 0, len(scenarios))
	for key := range scenarios {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	out := make([]*Scenario, 0, len(keys))
	for _, key := range keys {
		out = append(out, scenarios[key])
	}

	return out
}
