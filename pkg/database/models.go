package database

import "time"

// MirrorInfo describes the snapshot currently held in the mirror
type MirrorInfo struct {
	RepoURL    string
	LastUpdate int64 // epoch millis
	MirroredAt time.Time
}

// GroupStats summarises one (group, tool) pair
type GroupStats struct {
	Group      string
	Tool       string
	Entries    int
	Benchmarks int
	FirstDate  int64
	LastDate   int64
}

// BenchmarkStats summarises one benchmark across all of its entries
type BenchmarkStats struct {
	Name  string
	Unit  string
	Count int
	Min   float64
	Max   float64
	Avg   float64
}
