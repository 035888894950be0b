package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/elusaegis/ai-passport/internal/notary"
)

// notaryPreset is the YAML shape of a notary preset file. String
// fields support ${VAR:-default} expansion.
type notaryPreset struct {
	Domain       string `yaml:"domain"`
	Port         int    `yaml:"port"`
	PathPrefix   string `yaml:"path_prefix"`
	Mode         string `yaml:"mode"`
	MaxSentBytes int    `yaml:"max_sent_bytes"`
	MaxRecvBytes int    `yaml:"max_recv_bytes"`
	Network      string `yaml:"network"`
}

// NotaryFromPreset loads a notary configuration from a YAML preset
// file. Unset fields fall back to the NOTARY_* environment variables,
// then the published defaults.
func NotaryFromPreset(path string) (notary.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return notary.Config{}, fmt.Errorf("reading notary preset %s: %w", path, err)
	}

	expanded := expandEnvWithDefaults(string(data))

	var preset notaryPreset
	if err := yaml.Unmarshal([]byte(expanded), &preset); err != nil {
		return notary.Config{}, fmt.Errorf("parsing notary preset %s: %w", path, err)
	}

	cfg, err := NotaryFromEnv()
	if err != nil {
		return notary.Config{}, err
	}

	if preset.Domain != "" {
		cfg.Domain = preset.Domain
	}
	if preset.Port != 0 {
		cfg.Port = preset.Port
	}
	if preset.PathPrefix != "" {
		cfg.PathPrefix = preset.PathPrefix
	}
	if preset.Mode != "" {
		if cfg.Mode, err = notary.ParseMode(preset.Mode); err != nil {
			return notary.Config{}, err
		}
	}
	if preset.MaxSentBytes != 0 {
		cfg.MaxTotalSent = preset.MaxSentBytes
	}
	if preset.MaxRecvBytes != 0 {
		cfg.MaxTotalRecv = preset.MaxRecvBytes
		cfg.MaxDecryptedOnline = preset.MaxRecvBytes
	}
	if preset.Network != "" {
		if cfg.Network, err = notary.ParseNetworkSetting(preset.Network); err != nil {
			return notary.Config{}, err
		}
	}

	return cfg, nil
}
