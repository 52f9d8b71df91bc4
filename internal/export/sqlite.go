// Package export writes the resolved I/O tree to a SQLite database.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/iotree/api"
	"github.com/agentic-research/iotree/internal/ctxlog"
)

const schema = `
CREATE TABLE IF NOT EXISTS modules (
	position INTEGER PRIMARY KEY,
	hardware TEXT NOT NULL,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS endpoints (
	position INTEGER PRIMARY KEY,
	hardware TEXT NOT NULL,
	hardware_comment TEXT NOT NULL,
	parameter TEXT NOT NULL,
	parameter_comment TEXT NOT NULL,
	module TEXT NOT NULL,
	direction TEXT NOT NULL,
	parent_hardware TEXT,
	depth INTEGER NOT NULL,
	path TEXT NOT NULL
);
`

// Endpoint depths match the display tree: base points sit below their
// group, compound points one level further down.
const baseDepth = 3

// Writer inserts modules and endpoints inside a single transaction.
type Writer struct {
	db           *sql.DB
	tx           *sql.Tx
	stmtModule   *sql.Stmt
	stmtEndpoint *sql.Stmt
	modules      int
	endpoints    int
	mu           sync.Mutex
}

// NewWriter opens (creating if needed) the database at dbPath, replaces any
// previous export in it and starts a transaction.
func NewWriter(dbPath string) (*Writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Performance tuning for bulk insert
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec("DELETE FROM modules; DELETE FROM endpoints;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clear previous export: %w", err)
	}

	w := &Writer{db: db}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmtModule, err = w.tx.Prepare(`INSERT INTO modules (position, hardware, name) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	w.stmtEndpoint, err = w.tx.Prepare(`
		INSERT INTO endpoints (position, hardware, hardware_comment, parameter, parameter_comment,
			module, direction, parent_hardware, depth, path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	return err
}

// AddModule records one module row.
func (w *Writer) AddModule(m api.Module) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.stmtModule.Exec(w.modules, m.Hardware, m.Name); err != nil {
		return fmt.Errorf("insert module %s: %w", m.Hardware, err)
	}
	w.modules++
	return nil
}

// AddEndpoint records one endpoint row. parent is the hardware address of
// the base point a compound point is nested under, or "".
func (w *Writer) AddEndpoint(module, direction, parent string, depth int, ep api.Endpoint) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var parentHW *string
	if parent != "" {
		parentHW = &parent
	}
	_, err := w.stmtEndpoint.Exec(
		w.endpoints,
		ep.Hardware,
		ep.HardwareComment,
		ep.Parameter,
		ep.ParameterComment,
		module,
		direction,
		parentHW,
		depth,
		ep.Path,
	)
	if err != nil {
		return fmt.Errorf("insert endpoint %s: %w", ep.Hardware, err)
	}
	w.endpoints++
	return nil
}

// Close commits and closes the database.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_ = w.stmtModule.Close()
	_ = w.stmtEndpoint.Close()
	if err := w.tx.Commit(); err != nil {
		_ = w.db.Close()
		return err
	}
	if _, err := w.db.Exec(`CREATE INDEX IF NOT EXISTS idx_endpoints_hardware ON endpoints(hardware)`); err != nil {
		_ = w.db.Close()
		return fmt.Errorf("create index: %w", err)
	}
	return w.db.Close()
}

// Abort rolls back and closes the database.
func (w *Writer) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.tx.Rollback()
	_ = w.db.Close()
}

// Write exports the whole view to dbPath.
func Write(ctx context.Context, dbPath string, view *api.Tree) error {
	w, err := NewWriter(dbPath)
	if err != nil {
		return err
	}
	if err := writeView(w, view); err != nil {
		w.Abort()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Exported tree.",
		"path", dbPath,
		"modules", w.modules,
		"endpoints", w.endpoints)
	return nil
}

func writeView(w *Writer, view *api.Tree) error {
	for _, m := range view.Modules {
		if err := w.AddModule(m); err != nil {
			return err
		}
		for _, g := range m.Groups {
			if err := writeEndpoints(w, m.Hardware, g.Name, "", baseDepth, g.Endpoints); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeEndpoints(w *Writer, module, direction, parent string, depth int, eps []api.Endpoint) error {
	for _, ep := range eps {
		if err := w.AddEndpoint(module, direction, parent, depth, ep); err != nil {
			return err
		}
		if err := writeEndpoints(w, module, direction, ep.Hardware, depth+1, ep.Children); err != nil {
			return err
		}
	}
	return nil
}
