package ledger

// DefaultGroup is the stream name used by the hosted benchmark feed
const DefaultGroup = "Benchmark"

// Person identifies a commit author or committer
type Person struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// CommitInfo identifies the source revision an entry is attributed to
type CommitInfo struct {
	Author    Person `json:"author"`
	Committer Person `json:"committer"`
	Distinct  bool   `json:"distinct"`
	ID        string `json:"id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"` // ISO-8601, kept verbatim
	TreeID    string `json:"tree_id"`
	URL       string `json:"url"`
}

// Measurement is a single named result within an Entry
type Measurement struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`  // e.g. 'ns/iter', 'ns/op'
	Extra string  `json:"extra"` // passed through verbatim
}

// Entry is one recorded CI run
type Entry struct {
	Commit  CommitInfo    `json:"commit"`
	Date    int64         `json:"date"` // epoch millis of the run, not the commit
	Tool    string        `json:"tool"` // 'googlecpp', 'go', ...
	Benches []Measurement `json:"benches"`
}

// Ledger is the top-level persisted object.
//
// A *Ledger obtained from a Store is a shared snapshot and must be treated as
// read-only.
type Ledger struct {
	LastUpdate int64              `json:"lastUpdate"`
	RepoURL    string             `json:"repoUrl"`
	Entries    map[string][]Entry `json:"entries"`
}

// New returns an empty ledger for the given repository
func New(repoURL string) *Ledger {
	return &Ledger{
		RepoURL: repoURL,
		Entries: make(map[string][]Entry),
	}
}

// Size returns the number of groups and entries in the ledger
func (l *Ledger) Size() (groups, entries int) {
	for _, list := range l.Entries {
		entries += len(list)
	}
	return len(l.Entries), entries
}

// clone copies an entry so later changes by the caller cannot leak into the ledger
func (e Entry) clone() Entry {
	out := e
	if e.Benches != nil {
		out.Benches = make([]Measurement, len(e.Benches))
		copy(out.Benches, e.Benches)
	}
	return out
}
