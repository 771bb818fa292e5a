package rewards

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// PolicyTable maps task identifiers to the reward the service pays for them.
type PolicyTable struct {
	tasks        map[string]int64
	welcomeBonus int64
}

// policyFile mirrors the YAML representation of the policy table.
type policyFile struct {
	WelcomeBonus int64            `yaml:"welcome_bonus"`
	Tasks        map[string]int64 `yaml:"tasks"`
}

// ParsePolicyTable decodes a YAML policy table.
func ParsePolicyTable(data []byte) (*PolicyTable, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	if file.WelcomeBonus <= 0 {
		return nil, errors.New("policy welcome_bonus must be positive")
	}
	tasks := make(map[string]int64, len(file.Tasks))
	for id, amount := range file.Tasks {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, errors.New("policy task id required")
		}
		if amount <= 0 {
			return nil, fmt.Errorf("task %s: reward must be positive", id)
		}
		tasks[id] = amount
	}
	return &PolicyTable{tasks: tasks, welcomeBonus: file.WelcomeBonus}, nil
}

// LoadPolicyFile reads a YAML policy table from disk.
func LoadPolicyFile(path string) (*PolicyTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open policy: %w", err)
	}
	return ParsePolicyTable(data)
}

// DefaultPolicyTable returns the built-in reward table.
func DefaultPolicyTable() *PolicyTable {
	table, err := ParsePolicyTable(defaultPolicyYAML)
	if err != nil {
		panic(fmt.Sprintf("rewards: embedded policy is invalid: %v", err))
	}
	return table
}

// AmountFor returns the reward for a task, or the welcome bonus when
// welcomeBonus is set (taskID is then ignored).
func (p *PolicyTable) AmountFor(taskID string, welcomeBonus bool) (int64, error) {
	if welcomeBonus {
		return p.welcomeBonus, nil
	}
	amount, ok := p.tasks[taskID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}
	return amount, nil
}

// Tasks returns the known task identifiers in sorted order.
func (p *PolicyTable) Tasks() []string {
	ids := make([]string, 0, len(p.tasks))
	for id := range p.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
