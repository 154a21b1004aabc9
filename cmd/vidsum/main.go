package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	switch {
	case err == nil:
		return
	case errors.Is(err, context.Canceled):
		// Interrupted runs already printed a resume hint.
	default:
		fmt.Fprintf(os.Stderr, "vidsum: %v\n", err)
	}
	os.Exit(1)
}
