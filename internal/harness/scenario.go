package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ballot/internal/model"
)

// Scenario is a scripted election.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps run in order against one ledger.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final ledger state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one ledger operation.
type Step struct {
	Op        string `yaml:"op"`
	Name      string `yaml:"name,omitempty"`
	To        string `yaml:"to,omitempty"`
	Slot      *int   `yaml:"slot,omitempty"`
	Privilege string `yaml:"privilege,omitempty"`
	Party     string `yaml:"party,omitempty"`

	// Attempts submits a vote that many times concurrently. Exactly one
	// attempt may be accepted; Expect applies to that winner.
	Attempts int `yaml:"attempts,omitempty"`

	// Expect is the expected outcome, OutcomeOK when empty.
	Expect string `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpCreateRegistrant = "create_registrant"
	OpRenameRegistrant = "rename_registrant"
	OpRemoveRegistrant = "remove_registrant"
	OpEnroll           = "enroll"
	OpRemoveIdentity   = "remove_identity"
	OpVote             = "vote"
)

// Step outcomes.
const (
	OutcomeOK                  = "ok"
	OutcomeAlreadyVoted        = "already_voted"
	OutcomeUnknownRegistrant   = "unknown_registrant"
	OutcomeNotFound            = "not_found"
	OutcomeConstraintViolation = "constraint_violation"
	OutcomeInvalidInput        = "invalid_input"
)

// Assertion validates final state.
type Assertion struct {
	// Type selects the assertion: tally, audit_count, audit_order,
	// identity or reconciles.
	Type string `yaml:"type"`

	// Rows and Orphaned are used by tally.
	Rows     []model.TallyRow `yaml:"rows,omitempty"`
	Orphaned int64            `yaml:"orphaned,omitempty"`

	// Event and Count are used by audit_count.
	Event string `yaml:"event,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Events is used by audit_order.
	Events []string `yaml:"events,omitempty"`

	// Slot and Bound are used by identity.
	Slot  int  `yaml:"slot,omitempty"`
	Bound bool `yaml:"bound,omitempty"`
}

// Assertion type constants.
const (
	AssertTally      = "tally"
	AssertAuditCount = "audit_count"
	AssertAuditOrder = "audit_order"
	AssertIdentity   = "identity"
	AssertReconciles = "reconciles"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	switch step.Op {
	case OpCreateRegistrant, OpRemoveRegistrant:
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required for %s", i, step.Op)
		}
	case OpRenameRegistrant:
		if step.Name == "" || step.To == "" {
			return fmt.Errorf("steps[%d]: name and to are required for %s", i, step.Op)
		}
	case OpEnroll:
		if step.Slot == nil {
			return fmt.Errorf("steps[%d]: slot is required for %s", i, step.Op)
		}
		if step.Privilege != "" {
			if _, err := model.ParsePrivilege(step.Privilege); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
	case OpRemoveIdentity:
		if step.Slot == nil {
			return fmt.Errorf("steps[%d]: slot is required for %s", i, step.Op)
		}
	case OpVote:
		if step.Slot == nil || step.Party == "" {
			return fmt.Errorf("steps[%d]: slot and party are required for %s", i, step.Op)
		}
		if step.Attempts < 0 {
			return fmt.Errorf("steps[%d]: attempts must be non-negative", i)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}

	switch step.Expect {
	case "", OutcomeOK, OutcomeAlreadyVoted, OutcomeUnknownRegistrant,
		OutcomeNotFound, OutcomeConstraintViolation, OutcomeInvalidInput:
		return nil
	default:
		return fmt.Errorf("steps[%d]: unknown outcome %q", i, step.Expect)
	}
}

func validateAssertion(i int, a Assertion) error {
	switch a.Type {
	case AssertTally, AssertReconciles, AssertIdentity:
	case AssertAuditCount:
		if !model.EventKind(a.Event).Valid() {
			return fmt.Errorf("assertions[%d]: unknown event %q", i, a.Event)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", i)
		}
	case AssertAuditOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for audit_order", i)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
