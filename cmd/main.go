package main

import (
	"log/slog"
	"os"

	"campus-tracker-service/server"
)

func main() {
	if err := server.Run(); err != nil {
		slog.Error("campus tracker stopped", "err", err)
		os.Exit(1)
	}
}
