// Package main is the ai-passport CLI: prove model conversations,
// verify attestations, list produced proofs.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/attest"
	"github.com/elusaegis/ai-passport/internal/budget"
	"github.com/elusaegis/ai-passport/internal/config"
	"github.com/elusaegis/ai-passport/internal/httpwire"
	"github.com/elusaegis/ai-passport/internal/interaction"
	"github.com/elusaegis/ai-passport/internal/monitoring"
	"github.com/elusaegis/ai-passport/internal/notary"
	"github.com/elusaegis/ai-passport/internal/prover"
	"github.com/elusaegis/ai-passport/internal/provider"
	"github.com/elusaegis/ai-passport/internal/store"
)

const version = "0.4.0"

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "prove":
		runProve(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	case "proofs":
		runProofs(os.Args[2:])
	case "models":
		runModels(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Println("ai-passport", version)
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(2)
	}
}

func runProve(args []string) {
	fs := flag.NewFlagSet("prove", flag.ExitOnError)
	envFile := fs.String("env-file", ".env", "path to environment file")
	proverFlag := fs.String("prover", "", "prover type: direct | proxy | tls-single | tls-per-message")
	modelID := fs.String("model-id", "", "model to use (overrides MODEL_ID)")
	notaryPreset := fs.String("notary-config", "", "path to a notary preset YAML file")
	maxRounds := fs.Int("max-req-num-sent", 0, "planned round count for single-shot capacity sizing")
	timeout := fs.Duration("request-timeout", 0, "per-request timeout (0 = none)")
	debug := fs.Bool("debug", false, "enable debug logging")
	trace := fs.Bool("trace", false, "enable trace logging (dumps wire sizes)")
	_ = fs.Parse(args)

	monitoring.Setup(*debug, *trace)

	if override := os.Getenv("APP_ENV_FILE"); override != "" && *envFile == ".env" {
		*envFile = override
	}
	config.LoadEnvFiles(*envFile)

	cfg, err := config.ProveFromEnv()
	if err != nil {
		fail("configuration", err)
	}
	if *modelID != "" {
		cfg.ModelID = *modelID
	}
	cfg.RequestTimeout = *timeout

	kindStr := *proverFlag
	if kindStr == "" {
		kindStr = os.Getenv("PROVER")
	}
	if kindStr == "" {
		kindStr = config.DefaultProver
	}
	kind, err := prover.ParseKind(kindStr)
	if err != nil {
		fail("configuration", err)
	}

	opts := prover.Options{MaxRounds: *maxRounds}

	if kind == prover.KindTlsSingleShot || kind == prover.KindTlsPerMessage {
		if *notaryPreset != "" {
			opts.Notary, err = config.NotaryFromPreset(*notaryPreset)
		} else {
			opts.Notary, err = config.NotaryFromEnv()
		}
		if err != nil {
			fail("notary configuration", err)
		}
	}
	if kind == prover.KindProxy {
		if opts.Proxy, err = config.ProxyFromEnv(); err != nil {
			fail("proxy configuration", err)
		}
	}

	if err := os.MkdirAll("model_ips", 0o755); err != nil {
		log.Warn().Err(err).Msg("cannot create proof directory")
	}
	if registry, err := store.Open(filepath.Join("model_ips", "proofs.db")); err != nil {
		log.Warn().Err(err).Msg("proof registry unavailable, continuing without index")
	} else {
		opts.Registry = registry
		defer registry.Close()
	}

	p, err := prover.New(kind, opts)
	if err != nil {
		fail("configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("prover", string(kind)).
		Str("model", cfg.ModelID).
		Msg("starting proving session")

	if !interaction.Interactive() {
		log.Debug().Msg("stdin is not a terminal; reading messages line by line")
	}

	input := interaction.NewHolder(interaction.NewStdinSource())
	proofs, err := p.Run(ctx, cfg, input)

	for _, path := range proofs {
		fmt.Println("proof:", path)
	}
	if err != nil {
		fail("proving session", err)
	}
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	pubKey := fs.String("notary-pubkey", "", "hex-encoded notary public key (defaults to the key embedded in the artifact)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	monitoring.Setup(*debug, false)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: passport verify [--notary-pubkey HEX] <proof-file>")
		os.Exit(2)
	}

	att, err := attest.ReadProof(fs.Arg(0))
	if err != nil {
		fail("verification", err)
	}
	if err := att.Verify(*pubKey); err != nil {
		fail("verification", err)
	}

	fmt.Printf("OK: attestation of %s at %s verifies (%d transcript entries)\n",
		att.TargetHost, att.Timestamp, len(att.Transcript))
}

func runProofs(args []string) {
	fs := flag.NewFlagSet("proofs", flag.ExitOnError)
	dbPath := fs.String("registry", filepath.Join("model_ips", "proofs.db"), "path to the proof registry")
	_ = fs.Parse(args)

	monitoring.Setup(false, false)

	registry, err := store.Open(*dbPath)
	if err != nil {
		fail("proof registry", err)
	}
	defer registry.Close()

	proofs, err := registry.List(context.Background())
	if err != nil {
		fail("proof registry", err)
	}
	if len(proofs) == 0 {
		fmt.Println("no proofs recorded yet")
		return
	}

	for _, p := range proofs {
		fmt.Printf("%s  %-16s %-10s %s\n",
			p.CreatedAt.Format(time.RFC3339), p.Strategy, p.Model, p.Path)
	}
}

func runModels(args []string) {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	envFile := fs.String("env-file", ".env", "path to environment file")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	monitoring.Setup(*debug, false)
	config.LoadEnvFiles(*envFile)

	domain := os.Getenv("MODEL_API_DOMAIN")
	if domain == "" {
		fail("configuration", fmt.Errorf("MODEL_API_DOMAIN is required"))
	}
	port := config.DefaultModelAPIPort
	if v := os.Getenv("MODEL_API_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &port)
	}
	api := provider.NewAPI(domain, port, os.Getenv("MODEL_API_KEY"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ids, err := fetchModels(ctx, api)
	if err != nil {
		fail("model list", err)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

// fetchModels lists the models the API serves.
func fetchModels(ctx context.Context, api *provider.API) ([]string, error) {
	conn, err := tlsDial(ctx, api.Domain, api.Port)
	if err != nil {
		return nil, err
	}
	sender := httpwire.NewConnSender(conn)
	defer sender.Close()

	req := &httpwire.Request{Method: "GET", Path: api.ModelsEndpoint()}
	req.AddHeader("Host", api.Domain)
	req.AddHeader("Accept", "application/json")
	req.AddHeader("Connection", "close")
	for _, h := range api.ModelsHeaders(api.Key) {
		req.Headers = append(req.Headers, h)
	}

	resp, err := sender.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("model list request failed with status %d", resp.StatusCode)
	}
	return provider.ParseModelList(resp.Body)
}

func tlsDial(ctx context.Context, domain string, port int) (*tls.Conn, error) {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: domain}}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", domain, port))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s:%d: %w", domain, port, err)
	}
	return conn.(*tls.Conn), nil
}

// fail prints the error kind, cause and a remedy where one is known,
// then exits.
func fail(stage string, err error) {
	fmt.Fprintf(os.Stderr, "error (%s): %v\n", stage, err)

	var exceeded *budget.ExceededError
	var rejection *notary.PolicyRejectionError
	var timeout *interaction.TimeoutError
	var malformed *provider.MalformedReplyError

	switch {
	case errors.As(err, &exceeded):
		fmt.Fprintln(os.Stderr, "hint: shorten the input, reduce the round count, or start a new session")
	case errors.As(err, &rejection):
		fmt.Fprintln(os.Stderr, "hint: lower NOTARY_MAX_SENT_BYTES/NOTARY_MAX_RECV_BYTES or the per-message size hints")
	case errors.As(err, &timeout):
		fmt.Fprintln(os.Stderr, "hint: raise --request-timeout or retry with a shorter message")
	case errors.As(err, &malformed):
		fmt.Fprintln(os.Stderr, "hint: check that MODEL_API_DOMAIN points at an OpenAI-compatible endpoint")
	}

	os.Exit(1)
}

func printHelp() {
	fmt.Println(`ai-passport - verifiable attestations of LLM conversations

Usage:
  passport prove  [flags]         Run an attested conversation
  passport verify [flags] <file>  Verify an attestation artifact
  passport proofs [flags]         List recorded proofs
  passport models [flags]         List models served by the API
  passport version                Print version

Prove flags:
  --prover KIND          direct | proxy | tls-single | tls-per-message
  --model-id ID          model to use (overrides MODEL_ID)
  --env-file FILE        environment file (default .env)
  --notary-config FILE   notary preset YAML
  --max-req-num-sent N   planned rounds for single-shot sizing
  --request-timeout DUR  per-request timeout (e.g. 90s)
  --debug, --trace       logging verbosity

Environment:
  MODEL_API_DOMAIN, MODEL_API_PORT, MODEL_API_KEY, MODEL_ID, PROVER,
  NOTARY_TYPE, NOTARY_DOMAIN, NOTARY_PORT, NOTARY_VERSION,
  NOTARY_MAX_SENT_BYTES, NOTARY_MAX_RECV_BYTES, PROXY_HOST, PROXY_PORT`)
}
