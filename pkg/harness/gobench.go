package harness

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/perf/benchfmt"

	"github.com/mslinn/benchledger/pkg/ledger"
)

// ParseGo reads `go test -bench` text output. The first value of each result
// becomes the measurement; further metrics such as B/op and allocs/op are
// kept in Extra in the units the tool printed.
func ParseGo(data []byte) ([]ledger.Measurement, error) {
	var benches []ledger.Measurement

	r := benchfmt.NewReader(bytes.NewReader(data), "go test output")
	for r.Scan() {
		switch rec := r.Result().(type) {
		case *benchfmt.SyntaxError:
			return nil, rec
		case *benchfmt.Result:
			benches = append(benches, goMeasurement(rec))
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return benches, nil
}

func goMeasurement(res *benchfmt.Result) ledger.Measurement {
	base, parts := res.Name.Parts()

	name := "Benchmark" + string(base)
	procs := ""
	for _, p := range parts {
		if p[0] == '-' {
			procs = string(p[1:])
			continue
		}
		name += string(p)
	}

	extra := []string{"iterations: " + strconv.Itoa(res.Iters)}
	if procs != "" {
		extra = append(extra, "threads: "+procs)
	}

	var m ledger.Measurement
	for i, v := range res.Values {
		value, unit := printed(v)
		if i == 0 {
			m.Value, m.Unit = value, unit
			continue
		}
		extra = append(extra, fmt.Sprintf("%s %s", strconv.FormatFloat(value, 'f', -1, 64), unit))
	}

	m.Name = name
	m.Extra = strings.Join(extra, "\n")
	return m
}

// printed undoes benchfmt's unit tidying so ns/op stays ns/op
func printed(v benchfmt.Value) (float64, string) {
	if v.OrigUnit != "" {
		return v.OrigValue, v.OrigUnit
	}
	return v.Value, v.Unit
}
