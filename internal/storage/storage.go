package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/khata"
)

// Repositories bundles the stores the pipeline needs
type Repositories struct {
	Roster khata.RosterRepository
	Marks  khata.MarkRepository
	close  func(context.Context) error
}

// Close releases the backend
func (r *Repositories) Close(ctx context.Context) error {
	if r.close == nil {
		return nil
	}
	return r.close(ctx)
}

// Open builds repositories for backend ("mongo" or "memory"). A positive
// cacheTTL puts a CachedRoster in front of the roster store.
func Open(ctx context.Context, backend, mongoURI, dbName string, cacheTTL time.Duration) (*Repositories, error) {
	var repos *Repositories
	switch backend {
	case "mongo":
		store, err := ConnectMongo(ctx, mongoURI, dbName)
		if err != nil {
			return nil, err
		}
		repos = &Repositories{Roster: store.Roster(), Marks: store.Marks(), close: store.Close}
	case "memory":
		log.Println("⚠️ Using in-memory storage, data is lost on restart")
		repos = &Repositories{Roster: NewMemoryRoster(), Marks: NewMemoryMarks()}
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (supported: mongo, memory)", backend)
	}

	if cacheTTL > 0 {
		repos.Roster = NewCachedRoster(repos.Roster, cacheTTL)
	}
	return repos, nil
}
