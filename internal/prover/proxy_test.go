package prover

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elusaegis/ai-passport/internal/attest"
	"github.com/elusaegis/ai-passport/internal/config"
	"github.com/elusaegis/ai-passport/internal/interaction"
	"github.com/elusaegis/ai-passport/internal/notary"
	"github.com/elusaegis/ai-passport/internal/provider"
	"github.com/elusaegis/ai-passport/internal/store"
)

// fakeProxy mimics the attestation proxy: it records the exchanges it
// serves and returns a signed artifact on GET /__attest.
type fakeProxy struct {
	mu      sync.Mutex
	entries []attest.Entry
	host    string
	signer  *notary.Signer
}

func (p *fakeProxy) handler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/__attest" {
		p.serveAttestation(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)

	var reqHeaders []attest.HeaderPair
	for name, values := range r.Header {
		for _, v := range values {
			reqHeaders = append(reqHeaders, attest.HeaderPair{name, v})
		}
	}

	respBody := `{"choices":[{"message":{"role":"assistant","content":"proxied reply"}}]}`

	p.mu.Lock()
	p.host = r.Host
	p.entries = append(p.entries,
		attest.RequestEntry(r.Method, r.URL.Path, reqHeaders, string(body)),
		attest.ResponseEntry(200, []attest.HeaderPair{{"content-type", "application/json"}}, respBody),
	)
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(respBody))
}

func (p *fakeProxy) serveAttestation(w http.ResponseWriter, r *http.Request) {
	var censor []string
	if list := r.Header.Get("x-censor-headers"); list != "" {
		for _, name := range strings.Split(list, ",") {
			censor = append(censor, strings.TrimSpace(name))
		}
	}

	p.mu.Lock()
	entries := append([]attest.Entry(nil), p.entries...)
	host := p.host
	p.mu.Unlock()

	sign := func(_ context.Context, message []byte) (string, string, error) {
		return p.signer.Sign(message), p.signer.PublicKeyHex(), nil
	}

	att, err := attest.BuildAndSign(r.Context(), entries, host, censor, sign)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(att)
}

func hostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func TestProxyProverEndToEnd(t *testing.T) {
	chdirTemp(t)

	signer, err := notary.EphemeralSigner()
	require.NoError(t, err)
	proxy := &fakeProxy{signer: signer}

	server := httptest.NewTLSServer(http.HandlerFunc(proxy.handler))
	defer server.Close()

	host, port := hostPort(t, server.URL)

	registry, err := store.Open(":memory:")
	require.NoError(t, err)
	defer registry.Close()

	prover := &Proxy{
		Proxy:     config.ProxyConfig{Host: host, Port: port},
		Registry:  registry,
		TLSConfig: &tls.Config{InsecureSkipVerify: true},
	}
	input := interaction.NewHolder(interaction.NewSliceSource("question one", "question two"))

	cfg := &config.ProveConfig{
		API:     provider.NewAPI("api.red-pill.ai", 443, "sk-proxy-test"),
		ModelID: "claude-3-opus",
	}

	proofs, err := prover.Run(context.Background(), cfg, input)
	require.NoError(t, err)
	require.Len(t, proofs, 1)

	att, err := attest.ReadProof(proofs[0])
	require.NoError(t, err)
	require.NoError(t, att.Verify(signer.PublicKeyHex()))

	// The proxy saw the target host, not its own.
	assert.Equal(t, "api.red-pill.ai", att.TargetHost)
	// 2 rounds proxied.
	assert.Len(t, att.Transcript, 4)

	// The bearer token was censored before signing.
	for _, entry := range att.Transcript {
		for _, h := range entry.Headers {
			if strings.EqualFold(h[0], "authorization") {
				assert.Equal(t, strings.Repeat("X", len("Bearer sk-proxy-test")), h[1])
			}
		}
	}

	// The proof was indexed.
	indexed, err := registry.List(context.Background())
	require.NoError(t, err)
	require.Len(t, indexed, 1)
	assert.Equal(t, "proxy", indexed[0].Strategy)
	assert.Equal(t, proofs[0], indexed[0].Path)
}

func TestProxyProverNoRoundsSkipsAttestation(t *testing.T) {
	chdirTemp(t)

	signer, err := notary.EphemeralSigner()
	require.NoError(t, err)
	proxy := &fakeProxy{signer: signer}

	server := httptest.NewTLSServer(http.HandlerFunc(proxy.handler))
	defer server.Close()

	host, port := hostPort(t, server.URL)

	prover := &Proxy{
		Proxy:     config.ProxyConfig{Host: host, Port: port},
		TLSConfig: &tls.Config{InsecureSkipVerify: true},
	}
	input := interaction.NewHolder(interaction.NewSliceSource())

	cfg := &config.ProveConfig{
		API:     provider.NewAPI("foo.example.com", 443, "k"),
		ModelID: "m",
	}

	proofs, err := prover.Run(context.Background(), cfg, input)
	require.NoError(t, err)
	assert.Empty(t, proofs)
}

func TestDirectProverNoProofs(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"direct reply"}}]}`)
	}))
	defer server.Close()

	host, port := hostPort(t, server.URL)

	prover := &Direct{TLSConfig: &tls.Config{InsecureSkipVerify: true}}
	input := interaction.NewHolder(interaction.NewSliceSource("hello", "again"))

	cfg := &config.ProveConfig{
		API:     provider.NewAPI(host, port, "sk-direct"),
		ModelID: "m",
	}

	proofs, err := prover.Run(context.Background(), cfg, input)
	require.NoError(t, err)
	assert.Empty(t, proofs)
}
