package job

import (
	"context"

	"github.com/sepworks/sepd/internal/service"
)

// EmbeddingBackfillJob periodically embeds entries that were saved without
// vectors, e.g. after the provider was temporarily down.
type EmbeddingBackfillJob struct {
	entries *service.EntryService
	batch   int
}

func NewEmbeddingBackfillJob(entries *service.EntryService, batch int) *EmbeddingBackfillJob {
	return &EmbeddingBackfillJob{entries: entries, batch: batch}
}

func (j *EmbeddingBackfillJob) Name() string {
	return "embedding_backfill"
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	if j.entries == nil {
		return nil
	}
	return j.entries.BackfillMissingEmbeddings(ctx, j.batch)
}
