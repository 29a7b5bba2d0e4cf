package sqlite

// Storage composes every repository over one DB connection into the single
// collaborator interface internal/repository.Storage describes, so callers
// that wire the engine end-to-end (the ingest pipeline, the query engine)
// take one value instead of six.
type Storage struct {
	*SourceRepository
	*SummaryRepository
	*ExtractionRepository
	*FileMentionRepository
	*SearchRepository
	*StatsRepository
	*DB
}

// NewStorage builds a Storage over db. db must already have migrations
// applied (Open does this).
func NewStorage(db *DB) *Storage {
	return &Storage{
		SourceRepository:      NewSourceRepository(db),
		SummaryRepository:     NewSummaryRepository(db),
		ExtractionRepository:  NewExtractionRepository(db),
		FileMentionRepository: NewFileMentionRepository(db),
		SearchRepository:      NewSearchRepository(db),
		StatsRepository:       NewStatsRepository(db),
		DB:                    db,
	}
}
