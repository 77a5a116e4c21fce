package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is one named credential profile on disk. Profiles live as
// profile_<name>.yaml files in a profiles directory.
type Profile struct {
	Name                string `yaml:"name"`
	AgentSecret         string `yaml:"agent_secret"`
	APIURL              string `yaml:"api_url"`
	MandateID           string `yaml:"mandate_id"`
	NotaryPublicKey     string `yaml:"notary_public_key,omitempty"`
	MinimumBalanceCents int64  `yaml:"minimum_balance_cents,omitempty"`
}

// Credentials makes Profile a Provider.
func (p *Profile) Credentials() (Credentials, error) {
	apiURL := p.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	c := Credentials{
		AgentSecret:         p.AgentSecret,
		APIURL:              apiURL,
		MandateID:           p.MandateID,
		NotaryPublicKey:     p.NotaryPublicKey,
		MinimumBalanceCents: p.MinimumBalanceCents,
	}
	if err := c.Validate(); err != nil {
		return Credentials{}, fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return c, nil
}

// LoadProfile loads a credential profile by name from profilesDir.
func LoadProfile(profilesDir, name string) (*Profile, error) {
	name = strings.ToLower(name)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}

	if profile.Name == "" {
		profile.Name = name
	}

	return &profile, nil
}

// LoadAllProfiles loads every profile_*.yaml in profilesDir, keyed by name.
func LoadAllProfiles(profilesDir string) (map[string]*Profile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*Profile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile Profile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if profile.Name == "" {
			// Extract name from filename: profile_staging.yaml -> staging
			base := filepath.Base(path)
			profile.Name = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}

		profiles[profile.Name] = &profile
	}

	return profiles, nil
}
