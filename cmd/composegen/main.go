// Package main prints a docker-compose manifest for a chat deployment.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/MrGarbonzo/secretforge/internal/compose"
)

func main() {
	image := flag.String("image", "", "Container image (default: published chat image)")
	name := flag.String("name", "", "Container name")
	port := flag.Int("port", 0, "Service port")
	history := flag.Bool("enable-history", false, "Enable chat history")
	secretNetwork := flag.Bool("enable-secret-network", false, "Enable Secret Network wallet features")
	chainID := flag.String("chain-id", "secret-4", "Chain ID (with --enable-secret-network)")
	nodeURL := flag.String("node-url", "", "LCD endpoint (with --enable-secret-network)")
	out := flag.String("out", "", "Output file (default: stdout)")

	flag.Parse()

	doc := compose.Generate(compose.Options{
		Image:               *image,
		ContainerName:       *name,
		Port:                *port,
		EnableHistory:       *history,
		EnableSecretNetwork: *secretNetwork,
		ChainID:             *chainID,
		NodeURL:             *nodeURL,
	})

	if *out == "" {
		fmt.Print(doc)
		return
	}
	if err := os.WriteFile(*out, []byte(doc), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *out, err)
		os.Exit(1)
	}
}
