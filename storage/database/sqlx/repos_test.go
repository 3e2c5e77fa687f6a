package sqlxrepos

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/pogil/core/instance"
	"github.com/trezcool/pogil/core/responses"
	"github.com/trezcool/pogil/tests"
)

func TestInstanceRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewInstanceRepository(db)

	inst := testutil.CreateInstance(t, repo, 3, 12, 11)
	if inst.ActivityID != 3 || len(inst.Members) != 2 || inst.Members[0].StudentID != 11 {
		t.Fatalf("CreateInstance() = %+v", inst)
	}
	if inst.ActiveStudentID.Valid {
		t.Error("new instance has an active student")
	}

	if err := repo.SetActiveStudent(inst.ID, 12); err != nil {
		t.Fatalf("SetActiveStudent() error = %v", err)
	}
	at := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := repo.TouchMember(inst.ID, 11, at); err != nil {
		t.Fatalf("TouchMember() error = %v", err)
	}
	if err := repo.TouchMember(inst.ID, 99, at); err != instance.ErrNotMember {
		t.Errorf("TouchMember(stranger) error = %v, want %v", err, instance.ErrNotMember)
	}

	got, err := repo.GetInstance(inst.ID)
	if err != nil {
		t.Fatalf("GetInstance() error = %v", err)
	}
	if got.ActiveStudentID != null.IntFrom(12) {
		t.Errorf("active student = %v, want 12", got.ActiveStudentID)
	}
	if !got.Members[0].LastHeartbeat.Time.Equal(at) {
		t.Errorf("heartbeat = %v, want %v", got.Members[0].LastHeartbeat, at)
	}

	if _, err := repo.GetInstance(inst.ID + 1000); err != instance.ErrNotFound {
		t.Errorf("GetInstance(missing) error = %v, want %v", err, instance.ErrNotFound)
	}
	if err := repo.SetActiveStudent(inst.ID+1000, 1); err != instance.ErrNotFound {
		t.Errorf("SetActiveStudent(missing) error = %v, want %v", err, instance.ErrNotFound)
	}
}

func TestResponseRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	inst := testutil.CreateInstance(t, NewInstanceRepository(db), 1, 7)
	repo := NewResponseRepository(db)

	now := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	err := repo.UpsertResponses(
		responses.Response{InstanceID: inst.ID, Key: "1a", Type: responses.TypeText, Value: "first", GroupID: null.IntFrom(1), UpdatedAt: now},
		responses.Response{InstanceID: inst.ID, Key: "0code1", Type: responses.TypePython, Value: "print(1)", UpdatedAt: now},
	)
	if err != nil {
		t.Fatalf("UpsertResponses() error = %v", err)
	}

	// a code save carries no group: the stored one is kept
	later := now.Add(time.Minute)
	err = repo.UpsertResponses(responses.Response{
		InstanceID: inst.ID, Key: "1a", Type: responses.TypeText, Value: "second", AnsweredBy: null.IntFrom(7), UpdatedAt: later,
	})
	if err != nil {
		t.Fatalf("UpsertResponses() error = %v", err)
	}

	got, err := repo.GetResponse(inst.ID, "1a")
	if err != nil {
		t.Fatalf("GetResponse() error = %v", err)
	}
	want := responses.Response{
		InstanceID: inst.ID, Key: "1a", Type: responses.TypeText, Value: "second",
		GroupID: null.IntFrom(1), AnsweredBy: null.IntFrom(7), UpdatedAt: later,
	}
	if got != want {
		t.Errorf("GetResponse() = %+v, want %+v", got, want)
	}

	all, err := repo.QueryInstanceResponses(inst.ID)
	if err != nil {
		t.Fatalf("QueryInstanceResponses() error = %v", err)
	}
	if len(all) != 2 || all[0].Key != "0code1" || all[1].Key != "1a" {
		t.Errorf("QueryInstanceResponses() = %+v", all)
	}

	if _, err := repo.GetResponse(inst.ID, "9z"); err != responses.ErrNotFound {
		t.Errorf("GetResponse(missing) error = %v, want %v", err, responses.ErrNotFound)
	}
}
