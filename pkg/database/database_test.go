package database

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/mslinn/benchledger/pkg/ledger"
	"github.com/mslinn/benchledger/pkg/series"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleLedger() *ledger.Ledger {
	l := ledger.New("https://github.com/sam20908/matrixpp")
	l.LastUpdate = 3000
	l.Entries["Benchmark"] = []ledger.Entry{
		{
			Commit: ledger.CommitInfo{ID: "c1", Distinct: true, URL: "https://github.com/sam20908/matrixpp/commit/c1"},
			Date:   1000,
			Tool:   "googlecpp",
			Benches: []ledger.Measurement{
				{Name: "det_5x5", Value: 1080, Unit: "ns/iter"},
			},
		},
		{
			Commit: ledger.CommitInfo{ID: "c2", Distinct: true},
			Date:   3000,
			Tool:   "googlecpp",
			Benches: []ledger.Measurement{
				{Name: "det_5x5", Value: 990, Unit: "ns/iter"},
				{Name: "det_10x10", Value: 28552861.76, Unit: "ns/iter", Extra: "iterations: 25"},
			},
		},
		{
			Commit:  ledger.CommitInfo{ID: "c3"},
			Date:    2000,
			Tool:    "googlecpp",
			Benches: []ledger.Measurement{{Name: "det_5x5", Value: 1000, Unit: "ns/iter"}},
		},
	}
	l.Entries["Go"] = []ledger.Entry{
		{
			Commit:  ledger.CommitInfo{ID: "c2"},
			Date:    3000,
			Tool:    "go",
			Benches: []ledger.Measurement{},
		},
	}
	return l
}

func TestOpen_CreatesSchema(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"ledger_meta", "entries", "measurements"} {
		var name string
		err := db.conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Mirror(sampleLedger()); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}
	db.Close()

	// migrations must be idempotent
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	_, ok, err := db.Info()
	if err != nil || !ok {
		t.Errorf("Info() after reopen = %v, %v", ok, err)
	}
}

func TestInfo_BadMirrorTime(t *testing.T) {
	db := openTestDB(t)
	_, err := db.conn.Exec(`INSERT INTO ledger_meta (id, repo_url, last_update, mirrored_at) VALUES (1, 'u', 1, 'yesterday')`)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if _, _, err := db.Info(); err == nil {
		t.Error("Expected error for an unparseable mirror time")
	}
}

func TestInfo_Empty(t *testing.T) {
	db := openTestDB(t)

	_, ok, err := db.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if ok {
		t.Error("Info() reported a mirror before any import")
	}
}

func TestMirror(t *testing.T) {
	db := openTestDB(t)
	before := time.Now().Add(-time.Second)

	if err := db.Mirror(sampleLedger()); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	info, ok, err := db.Info()
	if err != nil || !ok {
		t.Fatalf("Info() = %v, %v", ok, err)
	}
	if info.RepoURL != "https://github.com/sam20908/matrixpp" {
		t.Errorf("RepoURL = %s", info.RepoURL)
	}
	if info.LastUpdate != 3000 {
		t.Errorf("LastUpdate = %d, want 3000", info.LastUpdate)
	}
	if info.MirroredAt.Before(before) {
		t.Errorf("MirroredAt = %v, want after %v", info.MirroredAt, before)
	}
}

func TestMirror_ReplacesPreviousContents(t *testing.T) {
	db := openTestDB(t)

	if err := db.Mirror(sampleLedger()); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	smaller := ledger.New("u")
	smaller.Entries["Benchmark"] = []ledger.Entry{
		{Commit: ledger.CommitInfo{ID: "only"}, Date: 5, Tool: "go", Benches: []ledger.Measurement{{Name: "X", Value: 1}}},
	}
	if err := db.Mirror(smaller); err != nil {
		t.Fatalf("second Mirror failed: %v", err)
	}

	var entries, measurements int
	db.conn.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&entries)
	db.conn.QueryRow(`SELECT COUNT(*) FROM measurements`).Scan(&measurements)
	if entries != 1 || measurements != 1 {
		t.Errorf("after re-mirror: %d entries, %d measurements; want 1, 1", entries, measurements)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	if err := db.Mirror(sampleLedger()); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}

	cpp := stats[0]
	if cpp.Group != "Benchmark" || cpp.Tool != "googlecpp" {
		t.Errorf("stats[0] = %+v", cpp)
	}
	if cpp.Entries != 3 || cpp.Benchmarks != 2 {
		t.Errorf("googlecpp entries=%d benchmarks=%d, want 3, 2", cpp.Entries, cpp.Benchmarks)
	}
	if cpp.FirstDate != 1000 || cpp.LastDate != 3000 {
		t.Errorf("googlecpp dates = %d..%d, want 1000..3000", cpp.FirstDate, cpp.LastDate)
	}

	goStats := stats[1]
	if goStats.Group != "Go" || goStats.Entries != 1 || goStats.Benchmarks != 0 {
		t.Errorf("stats[1] = %+v", goStats)
	}
}

func TestBenchmarkStats(t *testing.T) {
	db := openTestDB(t)
	if err := db.Mirror(sampleLedger()); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	stats, err := db.BenchmarkStats("Benchmark", "googlecpp")
	if err != nil {
		t.Fatalf("BenchmarkStats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}

	// ordered by name
	if stats[0].Name != "det_10x10" || stats[0].Count != 1 {
		t.Errorf("stats[0] = %+v", stats[0])
	}

	small := stats[1]
	if small.Name != "det_5x5" || small.Count != 3 {
		t.Errorf("stats[1] = %+v", small)
	}
	if small.Min != 990 || small.Max != 1080 {
		t.Errorf("det_5x5 min/max = %v/%v, want 990/1080", small.Min, small.Max)
	}
	if small.Avg < 1023.33 || small.Avg > 1023.34 {
		t.Errorf("det_5x5 avg = %v, want ~1023.33", small.Avg)
	}
	if small.Unit != "ns/iter" {
		t.Errorf("det_5x5 unit = %s", small.Unit)
	}
}

func TestPoints_OrderedByDate(t *testing.T) {
	db := openTestDB(t)
	if err := db.Mirror(sampleLedger()); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	points, err := db.Points("Benchmark", "googlecpp", "det_5x5")
	if err != nil {
		t.Fatalf("Points failed: %v", err)
	}

	want := []string{"c1", "c3", "c2"}
	if len(points) != len(want) {
		t.Fatalf("len(points) = %d, want %d", len(points), len(want))
	}
	for i, id := range want {
		if points[i].CommitID != id {
			t.Errorf("points[%d] = %s, want %s", i, points[i].CommitID, id)
		}
	}

	if points[0].CommitURL != "https://github.com/sam20908/matrixpp/commit/c1" || !points[0].Distinct {
		t.Errorf("points[0] = %+v", points[0])
	}
	if points[1].Distinct {
		t.Errorf("points[1].Distinct = true, want false")
	}

	// the mirror answers exactly like the query engine
	if want := series.Query(sampleLedger(), "Benchmark", "googlecpp", "det_5x5"); !reflect.DeepEqual(points, want) {
		t.Errorf("mirror points differ from series.Query:\n%+v\n%+v", points, want)
	}

	none, err := db.Points("Benchmark", "go", "det_5x5")
	if err != nil {
		t.Fatalf("Points failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("len(none) = %d, want 0", len(none))
	}
}
