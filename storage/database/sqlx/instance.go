package sqlxrepos

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/pogil/core/instance"
)

type (
	instanceRow struct {
		ID              int       `db:"id"`
		ActivityID      int       `db:"activity_id"`
		ActiveStudentID null.Int  `db:"active_student_id"`
		CreatedAt       time.Time `db:"created_at"`
	}

	memberRow struct {
		StudentID     int       `db:"student_id"`
		LastHeartbeat null.Time `db:"last_heartbeat"`
	}
)

type instanceRepository struct {
	db *sqlx.DB
}

var _ instance.Repository = (*instanceRepository)(nil) // interface compliance check

func NewInstanceRepository(db *sqlx.DB) *instanceRepository {
	return &instanceRepository{db: db}
}

func (repo instanceRepository) GetInstance(id int) (instance.Instance, error) {
	return getInstance(repo.db, id)
}

func getInstance(exec executor, id int) (instance.Instance, error) {
	var row instanceRow
	err := exec.Get(&row, `SELECT id, activity_id, active_student_id, created_at FROM activity_instance WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return instance.Instance{}, instance.ErrNotFound
		}
		return instance.Instance{}, dbError(err, "getting instance")
	}

	var members []memberRow
	err = exec.Select(&members, `SELECT student_id, last_heartbeat FROM instance_member WHERE instance_id = $1 ORDER BY student_id`, id)
	if err != nil {
		return instance.Instance{}, dbError(err, "querying instance members")
	}

	inst := instance.Instance{
		ID:              row.ID,
		ActivityID:      row.ActivityID,
		ActiveStudentID: row.ActiveStudentID,
		Members:         make([]instance.Member, len(members)),
	}
	for i, m := range members {
		inst.Members[i] = instance.Member{StudentID: m.StudentID, LastHeartbeat: m.LastHeartbeat}
	}
	return inst, nil
}

func (repo instanceRepository) SetActiveStudent(instanceID, studentID int) error {
	res, err := repo.db.Exec(`UPDATE activity_instance SET active_student_id = $2 WHERE id = $1`, instanceID, studentID)
	if err != nil {
		return dbError(err, "setting active student")
	}
	return notFoundIfNone(res.RowsAffected())
}

func (repo instanceRepository) TouchMember(instanceID, studentID int, at time.Time) error {
	res, err := repo.db.Exec(
		`UPDATE instance_member SET last_heartbeat = $3 WHERE instance_id = $1 AND student_id = $2`,
		instanceID, studentID, at.UTC(),
	)
	if err != nil {
		return dbError(err, "touching member")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return instance.ErrNotMember
	}
	return nil
}

// CreateInstance starts an activity instance for a group of students.
func (repo instanceRepository) CreateInstance(activityID int, studentIDs ...int) (instance.Instance, error) {
	var inst instance.Instance
	err := inTx(repo.db, func(tx *sqlx.Tx) error {
		var id int
		if err := tx.Get(&id, `INSERT INTO activity_instance (activity_id) VALUES ($1) RETURNING id`, activityID); err != nil {
			return dbError(err, "creating instance")
		}
		for _, sid := range studentIDs {
			if _, err := tx.Exec(`INSERT INTO instance_member (instance_id, student_id) VALUES ($1, $2)`, id, sid); err != nil {
				return dbError(err, fmt.Sprintf("adding member %d", sid))
			}
		}
		var err error
		inst, err = getInstance(tx, id)
		return err
	})
	return inst, err
}

func notFoundIfNone(n int64, err error) error {
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return instance.ErrNotFound
	}
	return nil
}
