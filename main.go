package main

import (
	"os"

	"github.com/go-admin-template/go-admin-template/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
