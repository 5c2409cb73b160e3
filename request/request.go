// Package request sends concrete HTTP requests built from resolved
// templates and classifies transport failures.
package request

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request is a concrete request specification, fully resolved:
// no interpolation slots remain in any field.
type Request struct {
	Method  string
	URL     string
	Version string
	Header  http.Header
	Body    string
}

func (r *Request) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", r.Method, r.URL)
	if r.Version != "" {
		fmt.Fprintf(&sb, " %s", r.Version)
	}
	sb.WriteString("\n")
	for name, values := range r.Header {
		for _, value := range values {
			fmt.Fprintf(&sb, "%s: %s\n", name, value)
		}
	}
	if r.Body != "" {
		sb.WriteString("\n")
		sb.WriteString(r.Body)
	}
	return sb.String()
}

// ReadMessage parses a resolved template into a Request. The format is
// a start line `METHOD URL [VERSION]`, header lines `Name: value` up to
// the first blank line, then the body.
func ReadMessage(text string) (*Request, error) {
	lines := strings.Split(text, "\n")

	// Start line: skip leading blank lines
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return nil, fmt.Errorf("empty request message")
	}

	fields := strings.Fields(lines[i])
	if len(fields) < 2 || len(fields) > 3 {
		return nil, fmt.Errorf("malformed start line: %q", strings.TrimSpace(lines[i]))
	}
	req := &Request{
		Method: strings.ToUpper(fields[0]),
		URL:    fields[1],
		Header: make(http.Header),
	}
	if len(fields) == 3 {
		req.Version = fields[2]
	}
	switch req.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
		http.MethodPatch, http.MethodHead, http.MethodOptions:
	default:
		return nil, fmt.Errorf("unsupported method: %s", req.Method)
	}

	u, err := url.ParseRequestURI(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", req.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url scheme %q", u.Scheme)
	}

	// Header lines up to the first blank line
	i++
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed header line: %q", line)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	// The rest is the body
	if i < len(lines) {
		req.Body = strings.TrimSpace(strings.Join(lines[i:], "\n"))
	}
	return req, nil
}
