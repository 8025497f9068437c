package main

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/afadesigns/rtx/pkg/cmd/root"
)

func main() {
	if dsn := os.Getenv("RTX_SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			fmt.Fprintf(os.Stderr, "rtx: sentry init failed: %s\n", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			defer recoverAndReport()
		}
	}

	if err := root.NewCmdRoot().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rtx: %s\n", fmt.Sprintf("%+v", err))
		os.Exit(3)
	}
}

// recoverAndReport forwards an otherwise-fatal panic to Sentry before
// re-panicking, so a crash still terminates the process the same way it
// would without RTX_SENTRY_DSN set.
func recoverAndReport() {
	if r := recover(); r != nil {
		sentry.CurrentHub().Recover(r)
		panic(r)
	}
}
