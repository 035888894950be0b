package attest

import (
	"fmt"
	"strconv"
	"strings"
)

// The finalizer re-derives HTTP spans from the committed byte streams.
// Parsing is done by hand rather than via net/http so header order and
// case survive into the attestation exactly as they went over the wire.

// parseRequests splits the sent stream into request entries.
func parseRequests(data []byte) ([]Entry, error) {
	var entries []Entry
	rest := string(data)

	for len(rest) > 0 {
		head, body, next, err := splitExchange(rest, false)
		if err != nil {
			return nil, fmt.Errorf("parsing request %d: %w", len(entries)+1, err)
		}

		lines := strings.Split(head, "\r\n")
		method, path, err := parseRequestLine(lines[0])
		if err != nil {
			return nil, fmt.Errorf("parsing request %d: %w", len(entries)+1, err)
		}

		headers, err := parseHeaderLines(lines[1:])
		if err != nil {
			return nil, fmt.Errorf("parsing request %d: %w", len(entries)+1, err)
		}

		entries = append(entries, RequestEntry(method, path, headers, body))
		rest = next
	}
	return entries, nil
}

// parseResponses splits the received stream into response entries.
func parseResponses(data []byte) ([]Entry, error) {
	var entries []Entry
	rest := string(data)

	for len(rest) > 0 {
		head, body, next, err := splitExchange(rest, true)
		if err != nil {
			return nil, fmt.Errorf("parsing response %d: %w", len(entries)+1, err)
		}

		lines := strings.Split(head, "\r\n")
		status, err := parseStatusLine(lines[0])
		if err != nil {
			return nil, fmt.Errorf("parsing response %d: %w", len(entries)+1, err)
		}

		headers, err := parseHeaderLines(lines[1:])
		if err != nil {
			return nil, fmt.Errorf("parsing response %d: %w", len(entries)+1, err)
		}

		entries = append(entries, ResponseEntry(status, headers, body))
		rest = next
	}
	return entries, nil
}

// splitExchange cuts one head + body off the stream. The body length
// comes from Content-Length; a response without one extends to the end
// of the stream (connection-close delimited).
func splitExchange(stream string, isResponse bool) (head, body, rest string, err error) {
	idx := strings.Index(stream, "\r\n\r\n")
	if idx < 0 {
		return "", "", "", fmt.Errorf("no header/body separator found")
	}
	head = stream[:idx]
	remainder := stream[idx+4:]

	length, ok, err := contentLength(head)
	if err != nil {
		return "", "", "", err
	}

	switch {
	case ok:
		if length > len(remainder) {
			return "", "", "", fmt.Errorf("body truncated: want %d bytes, have %d", length, len(remainder))
		}
		return head, remainder[:length], remainder[length:], nil
	case isResponse:
		// Read-to-close semantics.
		return head, remainder, "", nil
	default:
		return head, "", remainder, nil
	}
}

func contentLength(head string) (int, bool, error) {
	for _, line := range strings.Split(head, "\r\n")[1:] {
		name, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false, fmt.Errorf("invalid Content-Length %q", strings.TrimSpace(value))
		}
		return n, true, nil
	}
	return 0, false, nil
}

func parseRequestLine(line string) (method, path string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") {
		return "", "", fmt.Errorf("malformed request line %q", line)
	}
	return parts[0], parts[1], nil
}

func parseStatusLine(line string) (int, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return 0, fmt.Errorf("malformed status line %q", line)
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("malformed status code in %q", line)
	}
	return status, nil
}

func parseHeaderLines(lines []string) ([]HeaderPair, error) {
	var headers []HeaderPair
	for _, line := range lines {
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		headers = append(headers, HeaderPair{name, strings.TrimSpace(value)})
	}
	return headers, nil
}
