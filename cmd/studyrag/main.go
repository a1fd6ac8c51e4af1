// Package main is the entry point for the StudyRAG assistant service.
package main

import (
	"os"

	"github.com/studykit/studyrag/cmd/studyrag/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
