// Package compose renders the docker-compose manifest users deploy the chat
// service with.
package compose

import (
	"fmt"
	"strings"
)

const (
	defaultImage         = "ghcr.io/mrgarbonzo/secretforge/chat:latest"
	defaultContainerName = "secretforge-chat"
	defaultPort          = 3000
)

// Options selects the features baked into the generated manifest.
type Options struct {
	Image         string
	ContainerName string
	Port          int

	EnableHistory       bool
	EnableSecretNetwork bool

	// ChainID and NodeURL are only emitted when EnableSecretNetwork is set.
	ChainID string
	NodeURL string
}

func (o *Options) fillDefaults() {
	if o.Image == "" {
		o.Image = defaultImage
	}
	if o.ContainerName == "" {
		o.ContainerName = defaultContainerName
	}
	if o.Port <= 0 {
		o.Port = defaultPort
	}
}

// Generate renders the docker-compose manifest. The API key is referenced as
// a shell variable, never inlined.
func Generate(opts Options) string {
	opts.fillDefaults()

	env := []string{
		"SECRET_AI_API_KEY=${SECRET_AI_API_KEY}",
	}
	if opts.EnableHistory {
		env = append(env, "ENABLE_HISTORY=true")
	}
	if opts.EnableSecretNetwork {
		env = append(env, "ENABLE_SECRET_NETWORK=true")
		if opts.ChainID != "" {
			env = append(env, "SECRET_CHAIN_ID="+opts.ChainID)
		}
		if opts.NodeURL != "" {
			env = append(env, "SECRET_NODE_URL="+opts.NodeURL)
		}
	}

	var b strings.Builder
	b.WriteString("version: '3.8'\n\n")
	b.WriteString("services:\n")
	fmt.Fprintf(&b, "  %s:\n", opts.ContainerName)
	fmt.Fprintf(&b, "    image: %s\n", opts.Image)
	fmt.Fprintf(&b, "    container_name: %s\n\n", opts.ContainerName)

	b.WriteString("    environment:\n")
	for _, e := range env {
		fmt.Fprintf(&b, "      - %s\n", e)
	}
	b.WriteString("\n")

	b.WriteString("    ports:\n")
	fmt.Fprintf(&b, "      - \"%d:%d\"\n\n", opts.Port, opts.Port)

	b.WriteString("    restart: unless-stopped\n\n")

	b.WriteString("    healthcheck:\n")
	fmt.Fprintf(&b, "      test: [\"CMD\", \"wget\", \"-q\", \"-O-\", \"http://localhost:%d/api/health\"]\n", opts.Port)
	b.WriteString("      interval: 30s\n")
	b.WriteString("      timeout: 10s\n")
	b.WriteString("      retries: 3\n")
	b.WriteString("      start_period: 5s\n")

	return b.String()
}
