package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ledgerline/spendgate/pkg/agentkey"
	"github.com/ledgerline/spendgate/pkg/credentials"
)

// runInspectKeyCmd implements `spendgate inspect-key`.
//
// Shows the public half of the configured agent secret: agent id and
// Ed25519 public key. The signing seed never appears in any output.
//
// Exit codes:
//
//	0 = key material parsed
//	3 = missing or malformed secret
//	4 = usage error
func runInspectKeyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("inspect-key", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		profile     string
		profilesDir string
		jsonOutput  bool
	)

	cmd.StringVar(&profile, "profile", "", "Named credential profile instead of the environment")
	cmd.StringVar(&profilesDir, "profiles-dir", ".", "Directory holding profile_<name>.yaml files")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 4
	}

	var secret string
	if profile != "" {
		p, err := credentials.LoadProfile(profilesDir, profile)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 3
		}
		secret = p.AgentSecret
	} else {
		secret = os.Getenv(credentials.EnvAgentSecret)
	}
	if secret == "" {
		_, _ = fmt.Fprintf(stderr, "Error: no agent secret; set %s or use --profile\n", credentials.EnvAgentSecret)
		return 3
	}

	key, err := agentkey.Parse(secret)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	if jsonOutput {
		printJSON(stdout, map[string]any{
			"agent_id":   key.AgentID(),
			"public_key": key.PublicKey(),
			"algorithm":  "ed25519",
		})
	} else {
		_, _ = fmt.Fprintf(stdout, "Agent:      %s\n", key.AgentID())
		_, _ = fmt.Fprintf(stdout, "Public key: %s\n", key.PublicKey())
		_, _ = fmt.Fprintln(stdout, "Algorithm:  ed25519")
	}
	return 0
}
