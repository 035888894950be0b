// Package config loads the prover configuration from the environment
// and optional preset files.
//
// DESIGN: explicit values win, then environment variables, then the
// published defaults. `.env` files are loaded from the working
// directory and from ~/.config/ai-passport/ before resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/notary"
	"github.com/elusaegis/ai-passport/internal/provider"
)

// Published defaults.
const (
	DefaultProver = "tls-single"

	// Byte budget defaults for TLS notarization.
	DefaultMaxSentBytes = 4 * 1024
	DefaultMaxRecvBytes = 16 * 1024

	DefaultNotaryType    = "remote"
	DefaultNotaryDomain  = "notary.pse.dev"
	DefaultNotaryVersion = "v0.1.0-alpha.12"
	DefaultNotaryPort    = 443

	DefaultProxyHost = "localhost"
	DefaultProxyPort = 8443

	DefaultModelAPIPort = 443
)

// LoadEnvFiles loads .env files: the given file (default ./.env) first,
// then ~/.config/ai-passport/.env. Neither replaces a variable that is
// already set, so the given file overrides the home one.
func LoadEnvFiles(envFile string) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Debug().Str("file", envFile).Msg("no env file loaded")
	}

	if home, err := os.UserHomeDir(); err == nil {
		configEnv := filepath.Join(home, ".config", "ai-passport", ".env")
		if _, err := os.Stat(configEnv); err == nil {
			_ = godotenv.Load(configEnv)
		}
	}
}

// ProveConfig carries the model API parameters for one proving run.
type ProveConfig struct {
	API     *provider.API
	ModelID string

	// MaxRequestBytes and MaxResponseBytes are per-message size hints
	// for capacity planning. 0 disables dynamic sizing.
	MaxRequestBytes  int
	MaxResponseBytes int

	// RequestTimeout bounds one HTTP exchange. 0 means none.
	RequestTimeout time.Duration
}

// ProveFromEnv resolves the model API configuration from MODEL_* vars.
func ProveFromEnv() (*ProveConfig, error) {
	domain := os.Getenv("MODEL_API_DOMAIN")
	if domain == "" {
		return nil, fmt.Errorf("MODEL_API_DOMAIN is required (the hostname of the model API)")
	}

	apiKey := os.Getenv("MODEL_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("MODEL_API_KEY is required")
	}

	modelID := os.Getenv("MODEL_ID")
	if modelID == "" {
		return nil, fmt.Errorf("MODEL_ID is required (e.g. claude-3-5-sonnet-latest)")
	}

	port, err := envInt("MODEL_API_PORT", DefaultModelAPIPort)
	if err != nil {
		return nil, err
	}

	cfg := &ProveConfig{
		API:     provider.NewAPI(domain, port, apiKey),
		ModelID: modelID,
	}

	if cfg.MaxRequestBytes, err = envInt("MAX_SINGLE_REQUEST_SIZE", 0); err != nil {
		return nil, err
	}
	if cfg.MaxResponseBytes, err = envInt("MAX_SINGLE_RESPONSE_SIZE", 0); err != nil {
		return nil, err
	}

	log.Info().
		Str("api", fmt.Sprintf("%s:%d%s", domain, port, cfg.API.ChatEndpoint())).
		Str("provider", cfg.API.Name()).
		Str("model", modelID).
		Msg("model configuration resolved")

	return cfg, nil
}

// NotaryFromEnv resolves the notary configuration from NOTARY_* vars.
func NotaryFromEnv() (notary.Config, error) {
	mode, err := notary.ParseMode(envString("NOTARY_TYPE", DefaultNotaryType))
	if err != nil {
		return notary.Config{}, err
	}

	network, err := notary.ParseNetworkSetting(os.Getenv("NOTARY_NETWORK_OPTIMIZATION"))
	if err != nil {
		return notary.Config{}, err
	}

	port, err := envInt("NOTARY_PORT", DefaultNotaryPort)
	if err != nil {
		return notary.Config{}, err
	}
	maxSent, err := envInt("NOTARY_MAX_SENT_BYTES", DefaultMaxSentBytes)
	if err != nil {
		return notary.Config{}, err
	}
	maxRecv, err := envInt("NOTARY_MAX_RECV_BYTES", DefaultMaxRecvBytes)
	if err != nil {
		return notary.Config{}, err
	}

	return notary.Config{
		Domain:             envString("NOTARY_DOMAIN", DefaultNotaryDomain),
		Port:               port,
		PathPrefix:         envString("NOTARY_VERSION", DefaultNotaryVersion),
		Mode:               mode,
		MaxTotalSent:       maxSent,
		MaxTotalRecv:       maxRecv,
		MaxDecryptedOnline: maxRecv,
		DeferDecryption:    false,
		Network:            network,
	}, nil
}

// ProxyConfig locates the attestation proxy server.
type ProxyConfig struct {
	Host string
	Port int
}

// ProxyFromEnv resolves the proxy location from PROXY_* vars.
func ProxyFromEnv() (ProxyConfig, error) {
	port, err := envInt("PROXY_PORT", DefaultProxyPort)
	if err != nil {
		return ProxyConfig{}, err
	}
	return ProxyConfig{
		Host: envString("PROXY_HOST", DefaultProxyHost),
		Port: port,
	}, nil
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return n, nil
}

// expandEnvWithDefaults expands ${VAR} and ${VAR:-default} in a string.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}
