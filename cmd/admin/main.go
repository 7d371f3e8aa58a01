package main

import (
	"log"

	"go-report-access-service/internal/tools"
)

func main() {
	if err := tools.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
