// Command incidencectl loads a dashboard profile outside the service and
// prints its entity catalog, chart specification or rendered chart. It also
// checks datasets and cuts test fixtures from them.
//
// Usage:
//
//	incidencectl catalog --profile combined
//	incidencectl render --entity Getafe --entity Fuenlabrada --format png --out chart.png
//	incidencectl fixture --source municipal --entity Getafe --limit 10 --out testdata/municipal.json
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
