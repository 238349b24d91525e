package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	root := newRootCommand()
	err := root.Execute()
	if err == nil {
		return
	}
	// An interrupted run already printed nothing useful; stay quiet.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "dossier:", err)
	}
	os.Exit(1)
}
