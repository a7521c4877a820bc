package collect

import (
	"context"

	"github.com/zahanm/collect-beans/pkg/bookkeeper"
	"github.com/zahanm/collect-beans/pkg/db"
)

// Backend is the part of the bookkeeping API used for collection.
//
//go:generate mockgen -destination=mocks/mock_interface.go -source=interface.go -package=mock_collect
type Backend interface {
	CollectRun(ctx context.Context, req bookkeeper.CollectRunRequest) (*bookkeeper.CollectRunResponse, error)
	LastImported(ctx context.Context, accounts []string) (*bookkeeper.LastImportedResponse, error)
	OtherImporters(ctx context.Context, mode bookkeeper.CollectMode) (*bookkeeper.OtherImportersResponse, error)
	BackupDiff(ctx context.Context) (*bookkeeper.BackupResponse, error)
	RunBackup(ctx context.Context) (*bookkeeper.BackupResponse, error)
}

// Recorder stores a line of history per importer run.
type Recorder interface {
	RecordRun(record db.RunRecord) error
}
