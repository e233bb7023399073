package msgchain

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Transport defines how a replica exchanges thread entries with a peer.
// Different implementations can use HTTP, message queues, sneakernet, etc.
type Transport interface {
	// Pull fetches every entry of a thread from the peer.
	Pull(thread string) ([]SignedEntry, error)

	// Push sends entries to the peer, which admits them only if they
	// continue its stored chain.
	Push(thread string, entries []SignedEntry) error

	// Count returns the number of entries the peer stores for a thread.
	Count(thread string) (int, error)

	// Threads lists the threads the peer knows about.
	Threads() ([]ThreadInfo, error)
}

// HTTPTransport implements Transport against a Server over HTTP/HTTPS.
type HTTPTransport struct {
	BaseURL string       // Base URL of the peer (e.g., "https://peer.example.com")
	Client  *http.Client // HTTP client (can customize timeouts, TLS, etc.)
}

// NewHTTPTransport creates an HTTP transport for the peer at baseURL.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
	}
}

func (t *HTTPTransport) threadURL(thread, suffix string) string {
	return fmt.Sprintf("%s/api/v1/threads/%s/%s", t.BaseURL, url.PathEscape(thread), suffix)
}

// Pull fetches a thread's entries and re-validates the whole chain
// before returning it: the peer is not trusted.
func (t *HTTPTransport) Pull(thread string) ([]SignedEntry, error) {
	resp, err := t.Client.Get(t.threadURL(thread, "entries"))
	if err != nil {
		return nil, fmt.Errorf("get entries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}

	entries, err := ReadEntries(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := ValidateEntries(entries); err != nil {
		return nil, fmt.Errorf("pulled chain invalid: %w", err)
	}
	return entries, nil
}

// Push sends entries to the peer via HTTP POST.
func (t *HTTPTransport) Push(thread string, entries []SignedEntry) error {
	var buf bytes.Buffer
	if err := WriteEntries(&buf, entries); err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}

	resp, err := t.Client.Post(t.threadURL(thread, "entries"), "application/octet-stream", &buf)
	if err != nil {
		return fmt.Errorf("post entries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// Count fetches the peer's entry count for a thread.
func (t *HTTPTransport) Count(thread string) (int, error) {
	resp, err := t.Client.Get(t.threadURL(thread, "count"))
	if err != nil {
		return 0, fmt.Errorf("get count: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read count: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return n, nil
}

// Threads fetches the peer's thread registry.
func (t *HTTPTransport) Threads() ([]ThreadInfo, error) {
	resp, err := t.Client.Get(t.BaseURL + "/api/v1/threads")
	if err != nil {
		return nil, fmt.Errorf("get threads: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}
	return readThreadInfos(resp.Body)
}

// writeThreadInfos frames the registry: per thread [8]byte created-at
// unix seconds (big-endian), [4]byte name length, name bytes.
func writeThreadInfos(w io.Writer, threads []ThreadInfo) error {
	bw := bufio.NewWriter(w)
	for _, info := range threads {
		var hdr [12]byte
		binary.BigEndian.PutUint64(hdr[0:8], uint64(info.CreatedAt))
		binary.BigEndian.PutUint32(hdr[8:12], uint32(len(info.Name)))
		if _, err := bw.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := bw.WriteString(info.Name); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func readThreadInfos(r io.Reader) ([]ThreadInfo, error) {
	br := bufio.NewReader(r)
	var out []ThreadInfo
	for {
		var hdr [12]byte
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("read thread header: %w", err)
		}
		createdAt := int64(binary.BigEndian.Uint64(hdr[0:8]))
		nameLen := binary.BigEndian.Uint32(hdr[8:12])
		if nameLen > maxRecordSize {
			return nil, fmt.Errorf("thread name length %d too large", nameLen)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, fmt.Errorf("read thread name: %w", err)
		}
		out = append(out, ThreadInfo{Name: string(name), CreatedAt: createdAt})
	}
}
