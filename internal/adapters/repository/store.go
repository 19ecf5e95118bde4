// Package repository persists submitted rating batches as write-once
// result files and loads whole-directory snapshots of them.
package repository

import (
	"context"

	"github.com/okian/listeval/internal/domain/model"
)

// Format is the on-disk encoding of a result file.
type Format string

// Supported result file formats.
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Store provides write-once persistence of submission batches.
type Store interface {
	// Save writes the batch to a new file named after its key.
	// Returns ErrAlreadyCompleted if the file already exists.
	Save(ctx context.Context, batch model.SubmissionBatch) (string, error)

	// Completed reports whether a batch for key has been stored.
	Completed(ctx context.Context, key model.SubmissionKey) bool

	// LoadAll returns every stored record and the number of files read.
	LoadAll(ctx context.Context) ([]model.RatingRecord, int, error)
}
