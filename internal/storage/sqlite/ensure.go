package sqlite

import (
	"github.com/casebooklabs/casebook/internal/progress"
)

// Ensure SQLite stores implement the storage interfaces.
var (
	_ progress.Store = (*ProgressStore)(nil)
)
