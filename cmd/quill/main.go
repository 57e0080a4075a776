package main

import (
	"os"

	"quill/internal/gateway/app"
)

func main() {
	if err := newRootCmd(app.NewService).Execute(); err != nil {
		os.Exit(1)
	}
}
