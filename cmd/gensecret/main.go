package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/harrylevesque/bloodscan/internal/crypto"
)

func main() {
	out := flag.String("out", "session.key", "File to write the hex encoded session secret to")
	flag.Parse()

	if err := crypto.WriteSecret(*out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Session secret written to %s\n", *out)
}
