package keeper

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxRecords = 20

// CycleRecord captures what happened in a single keeper cycle.
type CycleRecord struct {
	Tick    uint64  `json:"tick"`
	Level   string  `json:"level"`
	Due     int     `json:"due"`
	Paid    int     `json:"paid"`
	Skipped int     `json:"skipped"`
	Failed  int     `json:"failed"`
	Amount  float64 `json:"amount"`
}

// CycleMemory manages a ring of recent keeper cycle records on disk.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file. Returns empty memory if it is missing.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{path: path}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("keeper memory corrupted, starting fresh", "error", err)
		return &CycleMemory{path: path}
	}
	mem.path = path
	return &mem
}

// Save writes the memory to disk. An empty path keeps it in memory only.
func (m *CycleMemory) Save() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal keeper memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		slog.Error("failed to write keeper memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// TotalPaid sums the amount paid across remembered cycles.
func (m *CycleMemory) TotalPaid() float64 {
	var total float64
	for _, r := range m.Records {
		total += r.Amount
	}
	return total
}

// Summary renders the last n cycles, one per line.
func (m *CycleMemory) Summary(n int) string {
	start := 0
	if len(m.Records) > n {
		start = len(m.Records) - n
	}
	var b strings.Builder
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "tick %d: %s due=%d paid=%d skipped=%d failed=%d amount=%.2f\n",
			r.Tick, r.Level, r.Due, r.Paid, r.Skipped, r.Failed, r.Amount)
	}
	return b.String()
}
