// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/instance"
	"github.com/trezcool/pogil/storage/database"
)

// LoopsSheet is a small activity exercising every block kind.
const LoopsSheet = `\title{Loops}
\section*{Warm up}
Read the code, then answer.
\begin{itemize}
\item predict
\item run
\end{itemize}
\python
print("hello")
\endpython
\questiongroup{Counting}
\question{What does the loop print?}
\python
for i in range(3):
    print(i)
\endpython
\textresponse{2}
\sampleresponses{0 1 2}
\endquestion
\question{Why does it stop at 2?}
\endquestion
\endquestiongroup`

// SheetLines splits a fixture into markup lines.
func SheetLines(sheet string) []string {
	return strings.Split(sheet, "\n")
}

// OpenDB connects to the TEST database and migrates it; the test is skipped
// when not running with ENV=TEST or when the database is unreachable.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if !core.Conf.TestMode {
		t.Skip("database tests need ENV=TEST")
	}
	db, err := database.Open(core.Conf)
	if err != nil {
		t.Fatalf("database.Open(): %v", err)
	}
	if err = database.Ping(db.DB, 3); err != nil {
		_ = db.Close()
		t.Skipf("database unreachable: %v", err)
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		t.Fatalf("database.Migrate(): %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Exec(`TRUNCATE activity_instance CASCADE`)
		_ = db.Close()
	})
	return db
}

type instanceCreator interface {
	CreateInstance(activityID int, studentIDs ...int) (instance.Instance, error)
}

func CreateInstance(t *testing.T, repo instanceCreator, activityID int, studentIDs ...int) instance.Instance {
	t.Helper()
	inst, err := repo.CreateInstance(activityID, studentIDs...)
	if err != nil {
		t.Fatalf("CreateInstance() failed: %v", err)
	}
	return inst
}
