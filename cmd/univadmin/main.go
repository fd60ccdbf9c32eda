package main

import (
	"os"

	"github.com/moweilong/univadmin/cmd/univadmin/app"
)

func main() {
	command := app.NewUnivAdminCommand()
	if err := command.Execute(); err != nil {
		app.PrintError(command.ErrOrStderr(), err)
		os.Exit(1)
	}
}
