package sqlxrepos

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/pogil/core/responses"
)

type responseRow struct {
	InstanceID int       `db:"instance_id"`
	Key        string    `db:"response_key"`
	Type       string    `db:"response_type"`
	Value      string    `db:"response"`
	GroupID    null.Int  `db:"group_id"`
	AnsweredBy null.Int  `db:"answered_by"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (row responseRow) response() responses.Response {
	return responses.Response{
		InstanceID: row.InstanceID,
		Key:        row.Key,
		Type:       row.Type,
		Value:      row.Value,
		GroupID:    row.GroupID,
		AnsweredBy: row.AnsweredBy,
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

const (
	responseColumns = `instance_id, response_key, response_type, response, group_id, answered_by, updated_at`

	upsertResponse = `
INSERT INTO response (` + responseColumns + `)
VALUES (:instance_id, :response_key, :response_type, :response, :group_id, :answered_by, :updated_at)
ON CONFLICT (instance_id, response_key) DO UPDATE SET
    response_type = EXCLUDED.response_type,
    response      = EXCLUDED.response,
    group_id      = COALESCE(EXCLUDED.group_id, response.group_id),
    answered_by   = EXCLUDED.answered_by,
    updated_at    = EXCLUDED.updated_at`
)

type responseRepository struct {
	db *sqlx.DB
}

var _ responses.Repository = (*responseRepository)(nil) // interface compliance check

func NewResponseRepository(db *sqlx.DB) *responseRepository {
	return &responseRepository{db: db}
}

func (repo responseRepository) QueryInstanceResponses(instanceID int) ([]responses.Response, error) {
	var rows []responseRow
	q := `SELECT ` + responseColumns + ` FROM response WHERE instance_id = $1 ORDER BY response_key`
	if err := repo.db.Select(&rows, q, instanceID); err != nil {
		return nil, dbError(err, "querying responses")
	}
	rs := make([]responses.Response, len(rows))
	for i, row := range rows {
		rs[i] = row.response()
	}
	return rs, nil
}

func (repo responseRepository) GetResponse(instanceID int, key string) (responses.Response, error) {
	var row responseRow
	q := `SELECT ` + responseColumns + ` FROM response WHERE instance_id = $1 AND response_key = $2`
	if err := repo.db.Get(&row, q, instanceID, key); err != nil {
		if isNoRows(err) {
			return responses.Response{}, responses.ErrNotFound
		}
		return responses.Response{}, dbError(err, "getting response")
	}
	return row.response(), nil
}

// UpsertResponses saves all responses in one transaction.
func (repo responseRepository) UpsertResponses(rs ...responses.Response) error {
	if len(rs) == 0 {
		return nil
	}
	return inTx(repo.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamed(upsertResponse)
		if err != nil {
			return dbError(err, "preparing response upsert")
		}
		defer func() { _ = stmt.Close() }()

		for _, r := range rs {
			row := responseRow{
				InstanceID: r.InstanceID,
				Key:        r.Key,
				Type:       r.Type,
				Value:      r.Value,
				GroupID:    r.GroupID,
				AnsweredBy: r.AnsweredBy,
				UpdatedAt:  r.UpdatedAt.UTC(),
			}
			if _, err := stmt.Exec(row); err != nil {
				return dbError(err, "saving response "+r.Key)
			}
		}
		return nil
	})
}
