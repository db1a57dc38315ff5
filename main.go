package main

import (
	"os"

	"github.com/cnchain/cnd/app"
)

func main() {
	if err := app.StartApp(); err != nil {
		os.Exit(1)
	}
}
