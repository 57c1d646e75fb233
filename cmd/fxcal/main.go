package main

import (
	"context"

	"fxlab/cmd/fxcal/commands"
	"fxlab/lib/serviceutil"
	"fxlab/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	// telemetry is best-effort: the toolchain runs fine without a
	// telemetry.json5 in scope
	tel, err := telemetry.SetupFromEnv(ctx, "fxcal")
	if err == nil {
		defer tel.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)
	}

	commands.ExecuteContext(ctx)
}
