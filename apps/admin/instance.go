package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/storage/database"
)

func (cli *commandLine) newInstanceCmd(args []string) error {
	fs := cli.newFlagSet("newinstance")
	activityID := fs.Int("activity", 0, "activity ID (required)")
	students := fs.String("students", "", "comma separated student IDs of the group (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *activityID <= 0 {
		return core.NewFieldError("activity", "this field is required")
	}
	var ids []int
	for _, s := range splitList(*students) {
		id, err := strconv.Atoi(s)
		if err != nil || id <= 0 {
			return core.NewFieldError("students", fmt.Sprintf("invalid student ID %q", s))
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return core.NewFieldError("students", "this field is required")
	}

	db, err := cli.openDB()
	if err != nil {
		return err
	}
	inst, err := cli.newInstanceRepo(db).CreateInstance(*activityID, ids...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errors.New("a student is listed twice")
		}
		return errors.Wrap(err, "creating instance")
	}
	_, err = fmt.Fprintf(cli.out, "instance %d created for activity %d (%d members)\n", inst.ID, inst.ActivityID, len(inst.Members))
	return err
}
