// Package employees is the demo employee/firm directory the compliance
// check endpoint consults to resolve an employee_id into the opaque
// Employee record a rule is invoked with. The spec treats this lookup as an
// external collaborator outside the engine's own scope; this package is a
// minimal, embedded stand-in for it.
package employees

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

//go:embed demo_employees.json
var demoEmployeesFS embed.FS

// Directory resolves employee_id to an Employee record.
type Directory struct {
	byID map[string]rules.Employee
}

// LoadDemo builds a Directory from the embedded demo dataset.
func LoadDemo() (*Directory, error) {
	raw, err := demoEmployeesFS.ReadFile("demo_employees.json")
	if err != nil {
		return nil, fmt.Errorf("employees: read embedded dataset: %w", err)
	}

	var byID map[string]rules.Employee
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, fmt.Errorf("employees: decode embedded dataset: %w", err)
	}
	for id, e := range byID {
		e.ID = id
		byID[id] = e
	}
	return &Directory{byID: byID}, nil
}

// Lookup returns the employee for id, or false if unknown.
func (d *Directory) Lookup(id string) (rules.Employee, bool) {
	e, ok := d.byID[id]
	return e, ok
}
