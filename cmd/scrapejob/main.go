package main

import (
	"scrapejob/cmd/scrapejob/commands"
	"scrapejob/lib/osutil"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")

	ctx, cancel := osutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
