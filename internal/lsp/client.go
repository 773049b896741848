// Package lsp runs language servers and answers the crawler's
// symbol-navigation queries over them.
package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"

	powernap "github.com/charmbracelet/x/powernap/pkg/lsp"
	"github.com/charmbracelet/x/powernap/pkg/lsp/protocol"
	"github.com/sourcegraph/jsonrpc2"
)

// Client speaks LSP to one language server over stdio.
type Client struct {
	serverID string
	cmd      *exec.Cmd
	conn     *jsonrpc2.Conn

	mu       sync.Mutex
	versions map[string]int // uri -> document version
}

// Minimal wire types for the requests this client issues. The full
// protocol structs carry far more than a definition query needs.
type (
	textDocumentID struct {
		URI string `json:"uri"`
	}
	textDocumentItem struct {
		URI        string `json:"uri"`
		LanguageID string `json:"languageId"`
		Version    int    `json:"version"`
		Text       string `json:"text"`
	}
	position struct {
		Line      uint32 `json:"line"`
		Character uint32 `json:"character"`
	}
	positionParams struct {
		TextDocument textDocumentID `json:"textDocument"`
		Position     position       `json:"position"`
	}
	workspaceFolder struct {
		URI  string `json:"uri"`
		Name string `json:"name"`
	}
	initializeParams struct {
		ProcessID        int               `json:"processId"`
		RootURI          string            `json:"rootUri"`
		Capabilities     map[string]any    `json:"capabilities"`
		InitOptions      any               `json:"initializationOptions,omitempty"`
		WorkspaceFolders []workspaceFolder `json:"workspaceFolders,omitempty"`
	}
	didOpenParams struct {
		TextDocument textDocumentItem `json:"textDocument"`
	}
	didChangeParams struct {
		TextDocument  versionedTextDocumentID `json:"textDocument"`
		ContentChange []wholeDocumentChange   `json:"contentChanges"`
	}
	versionedTextDocumentID struct {
		URI     string `json:"uri"`
		Version int    `json:"version"`
	}
	wholeDocumentChange struct {
		Text string `json:"text"`
	}
	locationLink struct {
		TargetURI   string         `json:"targetUri"`
		TargetRange protocol.Range `json:"targetRange"`
	}
)

// stdioPipe joins a server's stdout/stdin into one ReadWriteCloser for
// the jsonrpc2 stream.
type stdioPipe struct {
	out io.ReadCloser
	in  io.WriteCloser
}

func (p stdioPipe) Read(b []byte) (int, error)  { return p.out.Read(b) }
func (p stdioPipe) Write(b []byte) (int, error) { return p.in.Write(b) }

func (p stdioPipe) Close() error {
	errOut := p.out.Close()
	if err := p.in.Close(); err != nil {
		return err
	}
	return errOut
}

// newClient spawns a language server process and opens a jsonrpc2
// connection over its stdio.
func newClient(ctx context.Context, serverID, cmdPath string, args []string, env map[string]string) (*Client, error) {
	cmd := exec.Command(cmdPath, args...)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("lsp: stdin %s: %w", serverID, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("lsp: stdout %s: %w", serverID, err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("lsp: start %s: %w", serverID, err)
	}

	c := &Client{
		serverID: serverID,
		cmd:      cmd,
		versions: make(map[string]int),
	}

	stream := jsonrpc2.NewBufferedStream(stdioPipe{out: stdout, in: stdin}, jsonrpc2.VSCodeObjectCodec{})
	handler := jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(c.handle))
	c.conn = jsonrpc2.NewConn(ctx, stream, handler)
	return c, nil
}

// handle answers server-to-client traffic. Requests get an empty
// success so servers that expect capability registration or progress
// tokens don't stall; notifications are dropped.
func (c *Client) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	if req.Notif {
		return nil, nil
	}
	switch req.Method {
	case "workspace/configuration":
		// The server expects one entry per requested item; a single
		// null satisfies the common single-item case.
		return []any{nil}, nil
	default:
		return nil, nil
	}
}

// initialize performs the initialize/initialized handshake.
func (c *Client) initialize(ctx context.Context, rootURI, rootName string, initOptions any) error {
	params := initializeParams{
		ProcessID: os.Getpid(),
		RootURI:   rootURI,
		Capabilities: map[string]any{
			"textDocument": map[string]any{
				"definition":     map[string]any{"linkSupport": true},
				"typeDefinition": map[string]any{"linkSupport": true},
				"declaration":    map[string]any{"linkSupport": true},
				"implementation": map[string]any{"linkSupport": true},
			},
		},
		InitOptions:      initOptions,
		WorkspaceFolders: []workspaceFolder{{URI: rootURI, Name: rootName}},
	}
	var result json.RawMessage
	if err := c.conn.Call(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("lsp: initialize %s: %w", c.serverID, err)
	}
	if err := c.conn.Notify(ctx, "initialized", struct{}{}); err != nil {
		return fmt.Errorf("lsp: initialized %s: %w", c.serverID, err)
	}
	return nil
}

// openFile sends didOpen for a file, or didChange if already open.
// Servers need the document open before they answer position queries.
func (c *Client) openFile(ctx context.Context, absPath string) error {
	uri := string(protocol.URIFromPath(absPath))

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("lsp: read %s: %w", absPath, err)
	}

	c.mu.Lock()
	version, alreadyOpen := c.versions[uri]
	if alreadyOpen {
		version++
	}
	c.versions[uri] = version
	c.mu.Unlock()

	if alreadyOpen {
		return c.conn.Notify(ctx, "textDocument/didChange", didChangeParams{
			TextDocument:  versionedTextDocumentID{URI: uri, Version: version},
			ContentChange: []wholeDocumentChange{{Text: string(data)}},
		})
	}

	lang := powernap.DetectLanguage(absPath)
	return c.conn.Notify(ctx, "textDocument/didOpen", didOpenParams{
		TextDocument: textDocumentItem{
			URI:        uri,
			LanguageID: string(lang),
			Version:    0,
			Text:       string(data),
		},
	})
}

// query issues one position-based navigation request and decodes the
// location-shaped result.
func (c *Client) query(ctx context.Context, method, absPath string, line, character int) ([]protocol.Location, error) {
	params := positionParams{
		TextDocument: textDocumentID{URI: string(protocol.URIFromPath(absPath))},
		Position:     position{Line: uint32(line), Character: uint32(character)},
	}
	var raw json.RawMessage
	if err := c.conn.Call(ctx, method, params, &raw); err != nil {
		return nil, fmt.Errorf("lsp: %s %s: %w", method, c.serverID, err)
	}
	return decodeLocations(raw)
}

// decodeLocations accepts the three result shapes servers return for
// navigation queries: Location, Location[], and LocationLink[]. A null
// result decodes to empty, not an error.
func decodeLocations(raw json.RawMessage) ([]protocol.Location, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var many []protocol.Location
	if err := json.Unmarshal(raw, &many); err == nil && locationsValid(many) {
		return many, nil
	}

	var links []locationLink
	if err := json.Unmarshal(raw, &links); err == nil && len(links) > 0 && links[0].TargetURI != "" {
		locs := make([]protocol.Location, 0, len(links))
		for _, l := range links {
			locs = append(locs, protocol.Location{URI: protocol.DocumentURI(l.TargetURI), Range: l.TargetRange})
		}
		return locs, nil
	}

	var one protocol.Location
	if err := json.Unmarshal(raw, &one); err == nil && one.URI != "" {
		return []protocol.Location{one}, nil
	}
	return nil, fmt.Errorf("lsp: unrecognized location result: %s", truncateForLog(raw))
}

// locationsValid rejects []LocationLink payloads that happen to
// unmarshal into []Location as zero values.
func locationsValid(locs []protocol.Location) bool {
	if len(locs) == 0 {
		return true
	}
	return locs[0].URI != ""
}

// close shuts the server down gracefully, killing it if shutdown fails.
func (c *Client) close(ctx context.Context) error {
	shutdownErr := c.conn.Call(ctx, "shutdown", nil, nil)
	if shutdownErr == nil {
		_ = c.conn.Notify(ctx, "exit", nil)
	}
	if err := c.conn.Close(); err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	if shutdownErr != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
		return fmt.Errorf("lsp: shutdown %s: %w", c.serverID, shutdownErr)
	}
	_ = c.cmd.Wait()
	return nil
}

// uriToPath converts a file:// URI back to a filesystem path.
func uriToPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return strings.TrimPrefix(uri, "file://")
	}
	path, err := url.PathUnescape(u.Path)
	if err != nil {
		return u.Path
	}
	return path
}

func truncateForLog(raw []byte) string {
	const max = 200
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
