package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"promptforge/internal/app"
	"promptforge/internal/config"
	"promptforge/internal/pipeline"
	"promptforge/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	cfg, err := config.Load(os.Getenv("PF_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	switch cmd {
	case "up":
		runCompose("up", "-d")
	case "down":
		runCompose("down")
	case "seed":
		seed(cfg)
	case "doctor":
		doctor(cfg)
	case "refine":
		refine(cfg, strings.Join(os.Args[2:], " "))
	case "mcp-test":
		mcpTest(cfg)
	default:
		usage()
	}
}

func runCompose(args ...string) {
	cmd := exec.Command("docker", append([]string{"compose"}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Fatalf("docker compose failed: %v", err)
	}
}

// seed refines a handful of demo prompts through the full pipeline and
// saves the results, so search and stats have something to show.
func seed(cfg config.Config) {
	if cfg.Database.DSN == "" {
		fmt.Println("seed requires database.dsn (or PF_DB_DSN)")
		return
	}
	seedFlag := "/tmp/promptforge-seed.done"
	if _, err := os.Stat(seedFlag); err == nil {
		fmt.Println("seed already applied; delete /tmp/promptforge-seed.done to re-run")
		return
	}

	ctx := context.Background()
	appInstance, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer appInstance.Close()

	demos := []struct {
		Raw    string
		Domain string
		Tone   string
	}{
		{"Create a user table", "sql", "technical"},
		{"Write a query that joins orders with customers and sums revenue by month", "sql", ""},
		{"Make me a landing page headline for a budgeting app", "saas", "friendly"},
		{"Describe a tense night scene in a noir film", "cine", ""},
		{"Summarize this meeting and list the action items", "", "formal"},
	}
	for _, demo := range demos {
		result, err := appInstance.Pipeline.Process(ctx, pipeline.ProcessInput{Raw: demo.Raw, Domain: demo.Domain, Tone: demo.Tone})
		if err != nil {
			log.Printf("seed refine failed: %v", err)
			continue
		}
		saved, err := appInstance.Tools.SavePrompt(ctx, store.Prompt{
			Raw:          result.Original,
			Refined:      result.Refined,
			SystemPrompt: result.SystemPrompt,
			Domain:       result.Metadata.Domain,
			Tone:         result.Metadata.Tone,
			Score:        result.Score.Overall,
			Scores: store.Scores{
				Clarity:      result.Score.Clarity,
				Specificity:  result.Score.Specificity,
				Structure:    result.Score.Structure,
				Completeness: result.Score.Completeness,
				Overall:      result.Score.Overall,
			},
			Tags: []string{"seed"},
		})
		if err != nil {
			log.Printf("seed save failed: %v", err)
			continue
		}
		fmt.Printf("seeded %s (%s)\n", saved.(map[string]any)["id"], result.Metadata.Domain)
	}
	_ = os.WriteFile(seedFlag, []byte(time.Now().Format(time.RFC3339)), 0o644)
	fmt.Println("seeded demo prompts")
}

func doctor(cfg config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	checks := []struct {
		Name string
		Fn   func() error
	}{
		{"database", func() error { return pingDatabase(ctx, cfg.Database.DSN) }},
		{"redis", func() error { return pingTCP(cfg.Redis.URL) }},
		{"qdrant", func() error { return pingHTTP(cfg.Qdrant.URL) }},
		{"mcp", func() error { return pingHTTP(fmt.Sprintf("%s/healthz", localHTTPBase(cfg))) }},
	}
	for _, check := range checks {
		if err := check.Fn(); err != nil {
			fmt.Printf("%s: FAIL (%v)\n", check.Name, err)
			continue
		}
		fmt.Printf("%s: OK\n", check.Name)
	}
}

// refine runs one prompt through the pipeline and prints the result.
// Without a configured database this uses the offline wiring, so it
// works on a bare machine.
func refine(cfg config.Config, text string) {
	if strings.TrimSpace(text) == "" {
		fmt.Println("usage: promptforge refine <prompt text>")
		return
	}
	ctx := context.Background()
	appInstance, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer appInstance.Close()

	result, err := appInstance.Pipeline.Process(ctx, pipeline.ProcessInput{Raw: text})
	if err != nil {
		log.Fatalf("refine error: %v", err)
	}
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encode error: %v", err)
	}
	fmt.Println(string(encoded))
}

func mcpTest(cfg config.Config) {
	url := fmt.Sprintf("%s/mcp", localHTTPBase(cfg))
	initReq := map[string]any{"jsonrpc": "2.0", "id": 1, "method": "initialize", "params": map[string]any{}}
	resp, session := callMCP(cfg, url, initReq, "")
	fmt.Printf("initialize: %s\n", resp)

	listReq := map[string]any{"jsonrpc": "2.0", "id": 2, "method": "tools/list", "params": map[string]any{}}
	resp, _ = callMCP(cfg, url, listReq, session)
	fmt.Printf("tools/list: %s\n", resp)

	callReq := map[string]any{
		"jsonrpc": "2.0", "id": 3, "method": "tools/call",
		"params": map[string]any{
			"name":      "refine_prompt",
			"arguments": map[string]any{"raw": "Create a user table", "domain": "sql"},
		},
	}
	resp, _ = callMCP(cfg, url, callReq, session)
	fmt.Printf("refine_prompt: %s\n", resp)
}

func callMCP(cfg config.Config, url string, payload map[string]any, session string) (string, string) {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cfg.Security.APIKey != "" {
		req.Header.Set("X-API-Key", cfg.Security.APIKey)
	}
	if session != "" {
		req.Header.Set("MCP-Session-Id", session)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err.Error(), session
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	return strings.TrimSpace(buf.String()), resp.Header.Get("MCP-Session-Id")
}

func localHTTPBase(cfg config.Config) string {
	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8090"
	}
	host := "127.0.0.1"
	port := ""
	if strings.HasPrefix(addr, ":") {
		port = strings.TrimPrefix(addr, ":")
	} else if strings.Contains(addr, ":") {
		parts := strings.Split(addr, ":")
		if parts[0] != "" {
			host = parts[0]
		}
		if len(parts) > 1 {
			port = parts[len(parts)-1]
		}
	} else {
		port = addr
	}
	if port == "" {
		port = "8090"
	}
	return fmt.Sprintf("http://%s:%s", host, port)
}

func pingHTTP(url string) error {
	if url == "" {
		return fmt.Errorf("missing url")
	}
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func pingDatabase(ctx context.Context, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("missing dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}

func pingTCP(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("missing url")
	}
	host := rawURL
	if strings.Contains(rawURL, "://") {
		parts := strings.Split(rawURL, "://")
		host = parts[len(parts)-1]
	}
	if strings.Contains(host, "@") {
		host = host[strings.LastIndex(host, "@")+1:]
	}
	if strings.Contains(host, "/") {
		host = strings.Split(host, "/")[0]
	}
	if !strings.Contains(host, ":") {
		host += ":6379"
	}
	conn, err := net.DialTimeout("tcp", host, 2*time.Second)
	if err != nil {
		return err
	}
	return conn.Close()
}

func usage() {
	fmt.Println("Usage: promptforge <up|down|seed|doctor|refine|mcp-test>")
}
