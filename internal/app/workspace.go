package app

import (
	"context"
	goerrors "errors"
	"fmt"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/deploymenttheory/go-batch-runner/internal/project"
	"github.com/deploymenttheory/go-batch-runner/internal/snapshot"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
)

// Workspace is a project opened together with its table
type Workspace struct {
	Project   *project.Config
	Store     *table.Store
	TablePath string
	Restored  bool // the table came from a snapshot

	recorder *snapshot.Recorder
}

// Open fetches the project and loads its table from tablePath. Without a
// table file the last snapshot is restored, or a table with one empty row
// is started.
func (a *App) Open(ctx context.Context, projectID, tablePath string) (*Workspace, error) {
	proj, err := a.Projects.Fetch(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := project.Join(proj.Validate()); err != nil {
		return nil, err
	}

	ws := &Workspace{Project: proj, TablePath: tablePath}
	switch {
	case tablePath != "" && fsutil.FileExists(tablePath):
		store, tableProject, err := table.LoadFile(tablePath)
		if err != nil {
			return nil, err
		}
		if tableProject != "" && tableProject != proj.ID {
			a.Log.Warnw("Table file belongs to another project", "table_project", tableProject, "project", proj.ID)
		}
		ws.Store = store
	case a.Cache != nil:
		store, err := snapshot.Restore(ctx, a.Cache, proj.ID)
		switch {
		case err == nil:
			ws.Store = store
			ws.Restored = true
		case goerrors.Is(err, errors.ErrSnapshotNotFound), goerrors.Is(err, errors.ErrSnapshotCorrupt):
		default:
			a.Log.Warnw("Snapshot cache unavailable", "error", err)
		}
	}

	if ws.Store == nil {
		ws.Store = table.NewStore(proj.InputSchema, proj.OutputSchema)
		ws.Store.AddEmptyRow()
	} else {
		ws.Store.SetSchema(proj.InputSchema, proj.OutputSchema)
	}

	if a.Cache != nil {
		ws.recorder = snapshot.NewRecorder(a.Cache, proj.ID, ws.Store,
			a.Config.Snapshot.Debounce, a.Config.Snapshot.MaxWait, a.Log)
	}
	return ws, nil
}

// Close writes the table file and the final snapshot
func (w *Workspace) Close(ctx context.Context) error {
	var errs []error
	if w.TablePath != "" {
		if err := w.Store.SaveFile(w.TablePath, w.Project.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if w.recorder != nil {
		if err := w.recorder.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("saving snapshot: %w", err))
		}
	}
	return goerrors.Join(errs...)
}
