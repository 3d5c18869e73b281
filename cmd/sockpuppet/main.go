// Command sockpuppet scores social media profiles for signs of being fake.
//
// Usage:
//
//	sockpuppet batch profiles.csv
//	sockpuppet manual --followers 10 --following 500 --posts 1 --profile-pic no
//	sockpuppet lookup https://www.instagram.com/jane_doe/   # requires RAPIDAPI_KEY and RAPIDAPI_HOST
//	sockpuppet screenshot profile.png                       # requires tesseract
//	sockpuppet sample -o sample.xlsx
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}
	if !errors.Is(err, errIncomplete) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
