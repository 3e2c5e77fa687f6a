package inmemdb

import (
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/pogil/core/instance"
)

type instanceRepository struct {
	db *DB
}

var _ instance.Repository = (*instanceRepository)(nil) // interface compliance check

func NewInstanceRepository(db *DB) *instanceRepository {
	return &instanceRepository{db: db}
}

func copyInstance(inst *instance.Instance) instance.Instance {
	cp := *inst
	cp.Members = append([]instance.Member(nil), inst.Members...)
	return cp
}

func (repo *instanceRepository) CreateInstance(activityID int, studentIDs ...int) (instance.Instance, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ids := append([]int(nil), studentIDs...)
	sort.Ints(ids)
	repo.db.lastID++
	inst := &instance.Instance{ID: repo.db.lastID, ActivityID: activityID}
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		inst.Members = append(inst.Members, instance.Member{StudentID: id})
	}
	repo.db.instances[inst.ID] = inst
	return copyInstance(inst), nil
}

func (repo *instanceRepository) GetInstance(id int) (instance.Instance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	inst, ok := repo.db.instances[id]
	if !ok {
		return instance.Instance{}, instance.ErrNotFound
	}
	return copyInstance(inst), nil
}

func (repo *instanceRepository) SetActiveStudent(instanceID, studentID int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inst, ok := repo.db.instances[instanceID]
	if !ok {
		return instance.ErrNotFound
	}
	inst.ActiveStudentID = null.IntFrom(studentID)
	return nil
}

func (repo *instanceRepository) TouchMember(instanceID, studentID int, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inst, ok := repo.db.instances[instanceID]
	if !ok {
		return instance.ErrNotFound
	}
	for i := range inst.Members {
		if inst.Members[i].StudentID == studentID {
			inst.Members[i].LastHeartbeat = null.TimeFrom(at.UTC())
			return nil
		}
	}
	return instance.ErrNotMember
}
