package harness

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mslinn/benchledger/pkg/ledger"
)

// googleBenchmarkOutput is the subset of --benchmark_format=json we read
type googleBenchmarkOutput struct {
	Benchmarks []struct {
		Name       string  `json:"name"`
		RunType    string  `json:"run_type"`
		Iterations int64   `json:"iterations"`
		RealTime   float64 `json:"real_time"`
		CPUTime    float64 `json:"cpu_time"`
		TimeUnit   string  `json:"time_unit"`
		Threads    int     `json:"threads"`
	} `json:"benchmarks"`
}

// ParseGoogleCPP reads Google Benchmark JSON output. Aggregate rows
// (mean, median, stddev) are skipped.
func ParseGoogleCPP(data []byte) ([]ledger.Measurement, error) {
	var out googleBenchmarkOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	benches := make([]ledger.Measurement, 0, len(out.Benchmarks))
	for _, b := range out.Benchmarks {
		if b.RunType == "aggregate" {
			continue
		}

		unit := b.TimeUnit
		if unit == "" {
			unit = "ns"
		}
		threads := b.Threads
		if threads == 0 {
			threads = 1
		}

		benches = append(benches, ledger.Measurement{
			Name:  b.Name,
			Value: b.RealTime,
			Unit:  unit + "/iter",
			Extra: fmt.Sprintf("iterations: %d\ncpu: %s %s\nthreads: %d",
				b.Iterations, strconv.FormatFloat(b.CPUTime, 'f', -1, 64), unit, threads),
		})
	}
	return benches, nil
}
