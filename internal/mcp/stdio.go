package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// RunStdio serves newline-delimited JSON-RPC on stdin/stdout. Sessions,
// origin checks and rate limiting do not apply here; the transport is
// only reachable by whoever launched the process.
func RunStdio(ctx context.Context, srv *Server) error {
	return runStdio(ctx, srv, os.Stdin, os.Stdout)
}

func runStdio(ctx context.Context, srv *Server, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	// Refinement requests can carry multi-kilobyte prompts; the default
	// 64K token limit is too tight for pasted documents.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	writer := bufio.NewWriter(out)
	defer writer.Flush()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			return err
		}
		result, err := srv.route(ctx, req)
		resp := respond(req.ID, result)
		if err != nil {
			// Same code mapping as HTTP, so a client sees one contract
			// regardless of transport.
			resp = respondError(req.ID, rpcError(err))
		}
		data, _ := json.Marshal(resp)
		if _, err := writer.Write(append(data, '\n')); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("stdio scan error: %w", err)
	}
	return nil
}
