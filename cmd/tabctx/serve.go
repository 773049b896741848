package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xonecas/tabctx/internal/crawler"
)

// request is one crawl request on the serve stream.
type request struct {
	ID     int    `json:"id"`
	File   string `json:"file"`
	Offset int    `json:"offset"`
}

// response answers one request. Snippets is empty, never null.
type response struct {
	ID       int               `json:"id"`
	Snippets []crawler.Snippet `json:"snippets"`
}

// crawlServer runs crawls for a stream of requests with supersede
// semantics: each new request cancels the one in flight, and a
// superseded request's answer is discarded. Completion triggers on
// every keystroke, so only the latest request matters.
type crawlServer struct {
	c   *crawler.Crawler
	out *json.Encoder

	mu      sync.Mutex
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

func newCrawlServer(c *crawler.Crawler, w io.Writer) *crawlServer {
	return &crawlServer{c: c, out: json.NewEncoder(w)}
}

// handleLine parses one request line and starts its crawl, cancelling
// the request currently in flight. Malformed lines are logged and
// dropped without disturbing the in-flight request.
func (s *crawlServer) handleLine(ctx context.Context, line []byte) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		log.Warn().Err(err).Msg("serve: bad request line")
		return
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	reqCtx, reqCancel := context.WithCancel(ctx)
	s.cancel = reqCancel
	s.mu.Unlock()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer reqCancel()

		contents, err := os.ReadFile(req.File)
		if err != nil {
			log.Warn().Err(err).Str("file", req.File).Msg("serve: read failed")
			contents = nil
		}
		snippets := s.c.Snippets(reqCtx, req.File, string(contents), req.Offset, nil)

		// A superseded request stays silent; its answer is stale.
		if reqCtx.Err() != nil {
			return
		}
		if snippets == nil {
			snippets = []crawler.Snippet{}
		}
		s.mu.Lock()
		if err := s.out.Encode(response{ID: req.ID, Snippets: snippets}); err != nil {
			log.Warn().Err(err).Msg("serve: write response")
		}
		s.mu.Unlock()
	}()
}

// wait blocks until every started request has finished or gone silent.
func (s *crawlServer) wait() { s.pending.Wait() }

// runServe reads JSON-line requests from stdin and answers on stdout.
func runServe(cmd *cobra.Command, _ []string) error {
	_, c, manager, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer manager.StopAll(context.Background())

	srv := newCrawlServer(c, os.Stdout)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		srv.handleLine(ctx, line)
	}
	srv.wait()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("serve: read stdin: %w", err)
	}
	return nil
}
