package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/theapemachine/trill-go/pkg/errors"
	"github.com/theapemachine/trill-go/pkg/jsonrpc"
	"github.com/theapemachine/trill-go/pkg/tools"
)

// Config carries the outward-facing settings of the memory service.
type Config struct {
	Name       string
	Version    string
	Host       string
	Port       int
	Endpoint   string // JSON-RPC POST endpoint path, e.g. /rpc
	CORSOrigin string // default "*"
}

/*
MemoryService assembles the protocol surface: an MCP server carrying the
five memory tools, served as JSON-RPC 2.0 over a single POST endpoint
(initialize, tools/list, tools/call), plus a health endpoint and CORS
headers on every response.
*/
type MemoryService struct {
	cfg       Config
	mcpSrv    *server.MCPServer
	transport *server.StreamableHTTPServer
}

func New(cfg Config, toolset *tools.Toolset) *MemoryService {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "/rpc"
	}

	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}

	mcpSrv := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithLogging(),
		server.WithToolCapabilities(true),
	)

	toolset.Register(mcpSrv)

	// Stateless: every protocol call is an independent request; all
	// durable state lives in the collaborators.
	transport := server.NewStreamableHTTPServer(
		mcpSrv,
		server.WithEndpointPath(cfg.Endpoint),
		server.WithStateLess(true),
	)

	return &MemoryService{
		cfg:       cfg,
		mcpSrv:    mcpSrv,
		transport: transport,
	}
}

// Handler returns the full HTTP surface of the service.
func (svc *MemoryService) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(svc.cfg.Endpoint, withToolErrorCode(svc.transport))
	mux.HandleFunc("/health", svc.handleHealth)
	mux.HandleFunc("/", svc.handleHealth)

	return withCORS(svc.cfg.CORSOrigin, mux)
}

// Start blocks, serving until the listener fails.
func (svc *MemoryService) Start() error {
	addr := fmt.Sprintf("%s:%d", svc.cfg.Host, svc.cfg.Port)
	log.Info("starting memory service", "addr", addr, "endpoint", svc.cfg.Endpoint)

	return http.ListenAndServe(addr, svc.Handler())
}

func (svc *MemoryService) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/health" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"name":      svc.cfg.Name,
		"version":   svc.cfg.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// bufferedResponse captures a downstream response so its body can be
// rewritten before hitting the wire.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: http.Header{}, status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) { b.status = status }

func (b *bufferedResponse) Write(p []byte) (int, error) { return b.body.Write(p) }

/*
withToolErrorCode rewrites failing tools/call responses onto the reserved
tool-execution error code. The MCP layer reports every handler error as a
generic internal error; the protocol contract reserves -32000 for a tool
that was found, invoked and failed.
*/
func withToolErrorCode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)

		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))

		var req jsonrpc.RPCRequest

		if json.Unmarshal(body, &req) != nil || req.Method != "tools/call" {
			next.ServeHTTP(w, r)
			return
		}

		buffer := newBufferedResponse()
		next.ServeHTTP(buffer, r)

		payload := buffer.body.Bytes()

		var resp jsonrpc.RPCResponse

		if json.Unmarshal(payload, &resp) == nil && resp.Error != nil &&
			resp.Error.Code == errors.ErrInternal.Code {
			resp.Error = errors.ErrToolExecution.WithMessagef("%s", resp.Error.Message)

			if rewritten, err := json.Marshal(resp); err == nil {
				payload = rewritten
			}
		}

		buffer.header.Del("Content-Length")

		for key, values := range buffer.header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}

		w.WriteHeader(buffer.status)
		_, _ = w.Write(payload)
	})
}

// withCORS applies the configured origin to every response and resolves
// preflight requests.
func withCORS(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Mcp-Session-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
