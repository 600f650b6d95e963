// Package harness converts the output of benchmark tools into ledger
// measurements.
package harness

import (
	"fmt"
	"sort"

	"github.com/mslinn/benchledger/pkg/ledger"
)

// Tool names as recorded in Entry.Tool
const (
	ToolGoogleCPP = "googlecpp"
	ToolGo        = "go"
)

// Parser turns raw tool output into measurements
type Parser func(data []byte) ([]ledger.Measurement, error)

var parsers = map[string]Parser{
	ToolGoogleCPP: ParseGoogleCPP,
	ToolGo:        ParseGo,
}

// Tools lists the supported tool names
func Tools() []string {
	names := make([]string, 0, len(parsers))
	for name := range parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse dispatches to the parser for tool
func Parse(tool string, data []byte) ([]ledger.Measurement, error) {
	p, ok := parsers[tool]
	if !ok {
		return nil, fmt.Errorf("unsupported tool %q (supported: %v)", tool, Tools())
	}

	benches, err := p(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s output: %w", tool, err)
	}
	if len(benches) == 0 {
		return nil, fmt.Errorf("no benchmarks found in %s output", tool)
	}
	return benches, nil
}
