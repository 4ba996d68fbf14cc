package main

import (
	"coursetable/cmd/coursetable/commands"
	"coursetable/internal/components/telemetry"
	"coursetable/pkg/serviceutil"
)

func main() {
	telemetry.InitSlog(false)
	commands.ExecuteContext(serviceutil.SignalContext())
}
