// keyctl is the operator tool for the license service. It issues and
// lists keys through the running service's admin API, and exports the
// register straight from the record store.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"keyserve/internal/config"
	"keyserve/internal/exporter"
	"keyserve/internal/store"
	"keyserve/pkg/fingerprint"
)

const requestTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "issue":
		err = runIssue(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "activate":
		err = runClientCall(os.Args[2:], "activate")
	case "verify":
		err = runClientCall(os.Args[2:], "verify")
	case "fingerprint":
		err = runFingerprint()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", slog.String("command", os.Args[1]), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: keyctl <command> [flags]

commands:
  issue        issue a new license key via the admin API
  list         list licenses via the admin API
  export       export the license register to xlsx or csv from the store
  activate     activate a key for this machine
  verify       verify a key against this machine
  fingerprint  print this machine's hardware identifier`)
}

func runIssue(args []string) error {
	fs := flag.NewFlagSet("issue", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "service base URL")
	key := fs.String("key", "", "explicit license key (generated when empty)")
	licType := fs.String("type", "standard", "license type: standard | trial | lifetime")
	duration := fs.String("duration", "", "validity in days from first activation (default 30)")
	fs.Parse(args)

	payload := map[string]string{}
	if *key != "" {
		payload["license_key"] = *key
	}
	if *licType != "" {
		payload["license_type"] = *licType
	}
	if *duration != "" {
		payload["duration_days"] = *duration
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := post(*server+"/api/admin/licenses", body)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "service base URL")
	fs.Parse(args)

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Get(*server + "/api/admin/licenses")
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server answered %d: %s", resp.StatusCode, raw)
	}
	return printJSON(raw)
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "licenses.xlsx", "output file path (.xlsx or .csv)")
	format := fs.String("format", "xlsx", "output format: xlsx | csv")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	records, err := st.List(ctx)
	if err != nil {
		return fmt.Errorf("list licenses: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	writer := exporter.NewRegisterWriter(cfg.DisplayLocation(), logger)
	switch *format {
	case "xlsx":
		return writer.WriteXLSX(*out, records)
	case "csv":
		return writer.WriteCSV(*out, records)
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

// runClientCall activates or verifies a key for the local machine, using
// its own fingerprint as the hardware identifier.
func runClientCall(args []string, op string) error {
	fs := flag.NewFlagSet(op, flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "service base URL")
	key := fs.String("key", "", "license key (required)")
	hardwareID := fs.String("hardware-id", "", "hardware id override (defaults to this machine's fingerprint)")
	fs.Parse(args)

	if *key == "" {
		return fmt.Errorf("-key is required")
	}
	hw := *hardwareID
	if hw == "" {
		var err error
		hw, err = fingerprint.Generate()
		if err != nil {
			return fmt.Errorf("derive fingerprint: %w", err)
		}
	}

	body, err := json.Marshal(map[string]string{
		"license_key": *key,
		"hardware_id": hw,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := post(*server+"/api/license/"+op, body)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runFingerprint() error {
	hw, err := fingerprint.Generate()
	if err != nil {
		return fmt.Errorf("derive fingerprint: %w", err)
	}
	fmt.Println(hw)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "mongo":
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.Store.URI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		st, err := store.NewMongoStore(ctx, client.Database(cfg.Store.Database),
			store.WithCollectionName(cfg.Store.Collection),
			store.WithOpTimeout(cfg.Store.OpTimeout),
		)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("open store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func post(url string, body []byte) ([]byte, error) {
	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server answered %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}

func printJSON(raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		// Not JSON; print as-is.
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}
