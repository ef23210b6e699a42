package main

import (
	"flag"
	"log"
	"os"

	"example.com/clocksim/internal/analysis"
)

func main() {
	dir := flag.String("logs", "logs", "directory holding vm<id>.log files")
	flag.Parse()

	sums, err := analysis.Summarize(*dir)
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	if len(sums) == 0 {
		log.Fatalf("analyze: no vm logs in %s", *dir)
	}
	if err := analysis.WriteReport(os.Stdout, sums); err != nil {
		log.Fatal(err)
	}
}
