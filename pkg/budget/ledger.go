package budget

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"path"

	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// ledgerFile is the append-only JSON-lines spend record, relative to the
// report directory.
const ledgerFile = "ledger.jsonl"

// Ledger persists cost entries so spend survives restarts.
type Ledger struct {
	ws  workspace.Workspace
	dir string
	log *slog.Logger
}

// NewLedger creates a ledger rooted at the budget report directory.
func NewLedger(ws workspace.Workspace, reportDir string) *Ledger {
	return &Ledger{
		ws:  ws,
		dir: reportDir,
		log: slog.With("component", "budget_ledger"),
	}
}

// Path returns the workspace-relative ledger location.
func (l *Ledger) Path() string {
	return path.Join(l.dir, ledgerFile)
}

// Append writes one entry as a JSON line.
func (l *Ledger) Append(entry models.CostEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return l.ws.AppendFile(l.Path(), append(data, '\n'))
}

// Load reads all persisted entries. A missing ledger yields an empty
// slice; undecodable lines are skipped with a warning.
func (l *Ledger) Load() ([]models.CostEntry, error) {
	data, err := l.ws.ReadFile(l.Path())
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var entries []models.CostEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var entry models.CostEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			l.log.Warn("Skipping undecodable ledger line", "line", line, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}
