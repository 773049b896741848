package lsp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	powernapconfig "github.com/charmbracelet/x/powernap/pkg/config"
	powernap "github.com/charmbracelet/x/powernap/pkg/lsp"
	"github.com/charmbracelet/x/powernap/pkg/lsp/protocol"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/tabctx/internal/crawler"
)

// skipAutoStart lists generic commands that should not be auto-started.
// These interpreters/runners may trigger package downloads or run wrong binaries.
var skipAutoStart = map[string]bool{
	"npx":     true,
	"node":    true,
	"python":  true,
	"python3": true,
	"java":    true,
	"ruby":    true,
	"perl":    true,
	"dotnet":  true,
	"bun":     true,
}

// initTimeout bounds the initialize handshake for a freshly started server.
const initTimeout = 15 * time.Second

// Manager manages language-server lifecycles keyed by server name and
// implements the crawler's Resolver over them.
type Manager struct {
	cfgMgr    *powernapconfig.Manager
	overrides map[string]string // language ID -> command override

	mu      sync.Mutex
	clients map[string]*Client // serverName -> client
	broken  map[string]bool    // servers that failed to start
}

// NewManager creates a manager with powernap's built-in server defaults.
// overrides maps language IDs to explicit server commands from config.
func NewManager(overrides map[string]string) *Manager {
	// Silence powernap's slog output; this process logs through zerolog.
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cm := powernapconfig.NewManager()
	_ = cm.LoadDefaults()
	return &Manager{
		cfgMgr:    cm,
		overrides: overrides,
		clients:   make(map[string]*Client),
		broken:    make(map[string]bool),
	}
}

// Resolve implements crawler.Resolver: it routes one navigation query
// to the servers responsible for the file and returns the first
// non-empty answer. No server, a broken server, or an empty answer all
// yield an empty slice.
func (m *Manager) Resolve(ctx context.Context, file string, pos crawler.Position, kind crawler.ResolveKind) ([]crawler.Location, error) {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("lsp: resolve %s: %w", file, err)
	}

	method, ok := methodForKind(kind)
	if !ok {
		return nil, fmt.Errorf("lsp: unsupported resolve kind %s", kind)
	}

	for _, c := range m.ensureClients(ctx, absPath) {
		if err := c.openFile(ctx, absPath); err != nil {
			log.Warn().Err(err).Str("server", c.serverID).Msg("lsp: openFile")
			continue
		}
		locs, err := c.query(ctx, method, absPath, pos.Line, pos.Character)
		if err != nil {
			log.Warn().Err(err).Str("server", c.serverID).Str("method", method).Msg("lsp: query")
			continue
		}
		if len(locs) > 0 {
			return fromProtocol(locs), nil
		}
	}
	return nil, nil
}

// methodForKind maps a resolution kind to its LSP request method.
func methodForKind(kind crawler.ResolveKind) (string, bool) {
	switch kind {
	case crawler.ResolveDefinition:
		return "textDocument/definition", true
	case crawler.ResolveTypeDefinition:
		return "textDocument/typeDefinition", true
	case crawler.ResolveDeclaration:
		return "textDocument/declaration", true
	case crawler.ResolveImplementation:
		return "textDocument/implementation", true
	case crawler.ResolveReferences:
		return "textDocument/references", true
	default:
		return "", false
	}
}

// fromProtocol converts LSP locations to crawler locations.
func fromProtocol(locs []protocol.Location) []crawler.Location {
	out := make([]crawler.Location, 0, len(locs))
	for _, l := range locs {
		out = append(out, crawler.Location{
			Filepath: uriToPath(string(l.URI)),
			Range: crawler.Range{
				Start: crawler.Position{Line: int(l.Range.Start.Line), Character: int(l.Range.Start.Character)},
				End:   crawler.Position{Line: int(l.Range.End.Line), Character: int(l.Range.End.Character)},
			},
		})
	}
	return out
}

// StopAll gracefully shuts down all running language servers.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		if err := c.close(ctx); err != nil {
			log.Warn().Err(err).Str("server", c.serverID).Msg("lsp: stopAll")
		}
	}
}

// serverToStart holds info needed to start a server outside the lock.
type serverToStart struct {
	name    string
	cfg     *powernapconfig.ServerConfig
	root    string
	cmdPath string
}

// ensureClients finds or starts language servers for the given file.
func (m *Manager) ensureClients(ctx context.Context, absPath string) []*Client {
	lang := string(powernap.DetectLanguage(absPath))
	if lang == "" {
		log.Debug().Str("file", absPath).Msg("lsp: unknown language, skipping")
		return nil
	}

	servers := m.cfgMgr.GetServers()

	// Phase 1: under lock, collect existing clients and identify servers to start.
	m.mu.Lock()
	var result []*Client
	var pending []serverToStart

	for name, cfg := range servers {
		if !matchesFileType(cfg, lang) {
			continue
		}
		if m.broken[name] {
			continue
		}
		if c, ok := m.clients[name]; ok {
			result = append(result, c)
			continue
		}
		command := cfg.Command
		if override := m.overrides[lang]; override != "" {
			command = override
		} else if skipAutoStart[command] {
			m.broken[name] = true
			continue
		}
		cmdPath := lookPath(command)
		if cmdPath == "" {
			m.broken[name] = true
			continue
		}
		root := findRoot(absPath, cfg.RootMarkers)
		if root == "" {
			root, _ = os.Getwd()
		}
		pending = append(pending, serverToStart{name: name, cfg: cfg, root: root, cmdPath: cmdPath})
	}
	m.mu.Unlock()

	// Phase 2: start servers without holding the lock (blocking I/O).
	for _, s := range pending {
		c, err := m.startClient(ctx, s)

		m.mu.Lock()
		if err != nil {
			log.Warn().Err(err).Str("server", s.name).Msg("lsp: start failed")
			m.broken[s.name] = true
		} else {
			m.clients[s.name] = c
			result = append(result, c)
		}
		m.mu.Unlock()
	}

	return result
}

// startClient spawns and initializes a single language server.
func (m *Manager) startClient(ctx context.Context, s serverToStart) (*Client, error) {
	rootURI := string(protocol.URIFromPath(s.root))

	c, err := newClient(ctx, s.name, s.cmdPath, s.cfg.Args, s.cfg.Environment)
	if err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	if err := c.initialize(initCtx, rootURI, filepath.Base(s.root), s.cfg.InitOptions); err != nil {
		_ = c.close(ctx)
		return nil, fmt.Errorf("initialize: %w", err)
	}

	log.Info().Str("server", s.name).Str("root", s.root).Str("cmd", s.cmdPath).Msg("lsp: server started")
	return c, nil
}

// matchesFileType checks if a server config handles the given language ID.
func matchesFileType(cfg *powernapconfig.ServerConfig, lang string) bool {
	for _, ft := range cfg.FileTypes {
		if ft == lang {
			return true
		}
	}
	return false
}

// findRoot walks up from the file looking for any of the root markers.
func findRoot(absPath string, markers []string) string {
	dir := filepath.Dir(absPath)
	for {
		for _, marker := range markers {
			matches, _ := filepath.Glob(filepath.Join(dir, marker))
			if len(matches) > 0 {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// lookPath finds a command binary, checking PATH first, then common
// language-specific bin directories that may not be in PATH.
func lookPath(command string) string {
	if p, err := exec.LookPath(command); err == nil {
		return p
	}

	// Extra directories where language toolchains install binaries.
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	var extras []string

	// Go: $GOBIN or $GOPATH/bin or ~/go/bin
	if gobin := os.Getenv("GOBIN"); gobin != "" {
		extras = append(extras, gobin)
	}
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		extras = append(extras, filepath.Join(gopath, "bin"))
	}
	extras = append(extras, filepath.Join(home, "go", "bin"))

	// Node and Python user installs.
	extras = append(extras, filepath.Join(home, ".local", "bin"))
	extras = append(extras, filepath.Join(home, ".npm-global", "bin"))

	for _, dir := range extras {
		p := filepath.Join(dir, command)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}
