package inmemdb

import (
	"sort"

	"github.com/trezcool/pogil/core/responses"
)

type responseRepository struct {
	db *DB
}

var _ responses.Repository = (*responseRepository)(nil) // interface compliance check

func NewResponseRepository(db *DB) *responseRepository {
	return &responseRepository{db: db}
}

func (repo *responseRepository) QueryInstanceResponses(instanceID int) ([]responses.Response, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rs := make([]responses.Response, 0)
	for id, r := range repo.db.responses {
		if id.instanceID == instanceID {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Key < rs[j].Key })
	return rs, nil
}

func (repo *responseRepository) GetResponse(instanceID int, key string) (responses.Response, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.responses[responseID{instanceID, key}]; ok {
		return r, nil
	}
	return responses.Response{}, responses.ErrNotFound
}

// UpsertResponses keeps a stored group when the update carries none, like the SQL upsert.
func (repo *responseRepository) UpsertResponses(rs ...responses.Response) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, r := range rs {
		id := responseID{r.InstanceID, r.Key}
		if old, ok := repo.db.responses[id]; ok && !r.GroupID.Valid {
			r.GroupID = old.GroupID
		}
		r.UpdatedAt = r.UpdatedAt.UTC()
		repo.db.responses[id] = r
	}
	return nil
}
