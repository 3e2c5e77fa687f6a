package main

func (cli *commandLine) migrateCmd(args []string) error {
	db, err := cli.openDB()
	if err != nil {
		return err
	}
	return cli.migrate(db.DB, args[0], args[1:]...)
}
