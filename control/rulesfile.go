package control

import (
	"fmt"

	"github.com/mockproxy/mockproxy/internal/helper"
	"github.com/mockproxy/mockproxy/proxy"
)

// LoadRulesFile reads path as a JSON array of RuleSpec and registers each
// one with engine, in order, so a deployment can seed its mock rules at
// startup instead of (or alongside) adding them over the control channel.
func LoadRulesFile(engine *proxy.Proxy, path string) error {
	var specs []RuleSpec
	if err := helper.NewStructFromFile(path, &specs); err != nil {
		return fmt.Errorf("control: load rules file: %w", err)
	}
	for i, spec := range specs {
		rule, err := spec.toRule()
		if err != nil {
			return fmt.Errorf("control: rule %d: %w", i, err)
		}
		engine.AddRule(rule)
	}
	return nil
}
