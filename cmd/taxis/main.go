// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the Taxis CLI.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jmaurel/taxis/pkg/config"
	"github.com/jmaurel/taxis/pkg/descriptor"
	"github.com/jmaurel/taxis/pkg/eventlog"
	"github.com/jmaurel/taxis/pkg/refdata"
	"github.com/jmaurel/taxis/pkg/registry"
	"github.com/jmaurel/taxis/pkg/telemetry"
	"github.com/jmaurel/taxis/pkg/workflow"
)

type globalFlags struct {
	ConfigPath string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		fatal(err)
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log)

	switch args[0] {
	case "resolve":
		runResolve(global, args[1:])
	case "run":
		runWorkflow(ctx, global, cfg, args[1:])
	case "events":
		runEvents(ctx, global, cfg, args[1:])
	case "providers":
		runProviders(ctx, global, cfg, args[1:])
	case "seed":
		runSeed(ctx, global, args[1:])
	case "serve-registry":
		runServeRegistry(args[1:])
	case "help":
		printUsage()
	case "version":
		fmt.Println("dev")
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// runResolve prints the construction order for one agent, or for every agent
// in the catalog when none is named. Cycles surface with their full path.
func runResolve(global globalFlags, args []string) {
	cmd := newFlagSet("resolve")
	catalogPath := cmd.String("catalog", "", "Path to the agent catalog (YAML or JSON)")
	parseFlags(cmd, args)

	store := loadCatalog(*catalogPath)
	targets := cmd.Args()
	if len(targets) == 0 {
		targets = store.Identities()
	}

	type resolution struct {
		Agent string   `json:"agent"`
		Order []string `json:"order,omitempty"`
		Error string   `json:"error,omitempty"`
	}
	results := make([]resolution, 0, len(targets))
	for _, target := range targets {
		order, err := store.Resolve(target)
		res := resolution{Agent: target, Order: order}
		if err != nil {
			res.Error = err.Error()
			res.Order = nil
		}
		results = append(results, res)
	}

	if global.JSON {
		printJSON(results)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "AGENT", "CONSTRUCTION ORDER")
	for _, res := range results {
		if res.Error != "" {
			writeRow(writer, res.Agent, "ERROR: "+res.Error)
			continue
		}
		writeRow(writer, res.Agent, strings.Join(res.Order, " -> "))
	}
	_ = writer.Flush()
}

// runWorkflow executes a workflow definition against the catalog using echo
// agents, each returning its input unchanged. It exercises dependency
// resolution, registration ordering, and protocol checks without real agent
// code; programs embed the engine directly for production execution.
func runWorkflow(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := newFlagSet("run")
	catalogPath := cmd.String("catalog", "", "Path to the agent catalog (YAML or JSON)")
	workflowPath := cmd.String("workflow", "", "Path to the workflow definition (YAML or JSON)")
	parseFlags(cmd, args)

	store := loadCatalog(*catalogPath)
	if strings.TrimSpace(*workflowPath) == "" {
		fatal(fmt.Errorf("missing --workflow"))
	}
	def, err := workflow.LoadDefinition(*workflowPath)
	if err != nil {
		fatal(err)
	}

	shutdown, err := telemetry.Init("taxis", "dev", cfg.Telemetry)
	if err != nil {
		fatal(err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(flushCtx)
	}()
	metrics, err := telemetry.NewCoreMetrics()
	if err != nil {
		fatal(err)
	}

	events, closeLog := openEventLog(cfg)
	defer closeLog()

	factories := make(map[string]registry.Factory, len(store.Identities()))
	for _, identity := range store.Identities() {
		factories[identity] = echoFactory
	}
	reg := registry.New(store, factories, events, registry.WithMetrics(metrics))
	defer func() { _ = reg.Close(ctx) }()

	engine := workflow.NewEngine(reg, store, events,
		workflow.WithStepTimeout(cfg.Workflow.StepTimeout),
		workflow.WithContinueOnError(cfg.Workflow.ContinueOnError),
		workflow.WithMetrics(metrics),
	)
	record, err := engine.Execute(ctx, *def)
	if err != nil && record == nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(record)
		if err != nil {
			os.Exit(1)
		}
		return
	}
	fmt.Printf("workflow %s: %s (correlation %s)\n", record.Name, record.Status, record.CorrelationID)
	writer := newTabWriter()
	writeRow(writer, "STEP", "AGENT", "METHOD", "RESULT")
	for _, step := range record.Steps {
		result := "ok"
		if step.Error != "" {
			result = step.Error
		}
		writeRow(writer, fmt.Sprintf("%d", step.Index), step.Agent, step.Method, result)
	}
	_ = writer.Flush()
	if err != nil {
		fatal(err)
	}
	if record.Status == workflow.StatusFailed {
		os.Exit(1)
	}
}

func runEvents(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := newFlagSet("events")
	agent := cmd.String("agent", "", "Filter by agent identity")
	correlation := cmd.String("correlation", "", "Filter by correlation id")
	kind := cmd.String("kind", "", "Filter by event kind (registration|invocation|error)")
	limit := cmd.Int("limit", 50, "Maximum entries to return")
	parseFlags(cmd, args)

	events, closeLog := openEventLog(cfg)
	defer closeLog()

	entries, err := events.Query(ctx, eventlog.Filter{
		AgentID:       *agent,
		CorrelationID: *correlation,
		Kind:          eventlog.Kind(*kind),
		Limit:         *limit,
	})
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(entries)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "TIMESTAMP", "AGENT", "KIND", "CORRELATION")
	for _, entry := range entries {
		writeRow(writer, entry.Timestamp.Format(time.RFC3339), entry.AgentID,
			string(entry.Kind), entry.CorrelationID)
	}
	_ = writer.Flush()
}

func runProviders(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := newFlagSet("providers")
	domain := cmd.String("domain", "", "Inspect a single domain's records")
	parseFlags(cmd, args)

	metrics, err := telemetry.NewCoreMetrics()
	if err != nil {
		fatal(err)
	}
	manager, err := refdata.NewManager(cfg.Providers, refdata.WithProviderMetrics(metrics))
	if err != nil {
		fatal(err)
	}
	if err := manager.LoadAll(ctx); err != nil {
		fatal(err)
	}

	if *domain != "" {
		p, err := manager.Provider(*domain)
		if err != nil {
			fatal(err)
		}
		records, err := p.GetAll()
		if err != nil {
			fatal(err)
		}
		if global.JSON {
			printJSON(records)
			return
		}
		writer := newTabWriter()
		writeRow(writer, "ID", "NAME")
		for _, r := range records {
			writeRow(writer, r.ID, r.Name)
		}
		_ = writer.Flush()
		return
	}

	type domainStatus struct {
		Domain   string `json:"domain"`
		Origin   string `json:"origin"`
		Records  int    `json:"records"`
		Degraded bool   `json:"degraded"`
	}
	statuses := make([]domainStatus, 0, len(manager.Domains()))
	for _, name := range manager.Domains() {
		p, err := manager.Provider(name)
		if err != nil {
			fatal(err)
		}
		records, err := p.GetAll()
		if err != nil {
			fatal(err)
		}
		statuses = append(statuses, domainStatus{
			Domain:   name,
			Origin:   p.Origin(),
			Records:  len(records),
			Degraded: p.Degraded(),
		})
	}

	if global.JSON {
		printJSON(statuses)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "DOMAIN", "ORIGIN", "RECORDS", "DEGRADED")
	for _, s := range statuses {
		writeRow(writer, s.Domain, s.Origin, fmt.Sprintf("%d", s.Records), fmt.Sprintf("%t", s.Degraded))
	}
	_ = writer.Flush()
}

// runSeed pushes a static file's records into a remote registry. The upsert
// is keyed on record id, so re-running a seed is always safe.
func runSeed(ctx context.Context, global globalFlags, args []string) {
	cmd := newFlagSet("seed")
	endpoint := cmd.String("endpoint", "", "Remote registry base URL")
	domain := cmd.String("domain", "", "Reference-data domain to seed")
	file := cmd.String("file", "", "Static records file (YAML)")
	token := cmd.String("token", "", "Bearer token for the remote registry")
	parseFlags(cmd, args)

	if *endpoint == "" || *domain == "" || *file == "" {
		fatal(fmt.Errorf("usage: taxis seed --endpoint <url> --domain <name> --file <records.yaml>"))
	}

	static := &refdata.StaticFileBackend{Domain: *domain, Path: *file}
	records, err := static.Fetch(ctx)
	if err != nil {
		fatal(err)
	}
	backend := refdata.NewRemoteBackend(*domain, *endpoint)
	backend.AuthToken = *token
	if err := backend.Upsert(ctx, records); err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(map[string]any{"domain": *domain, "records": len(records)})
		return
	}
	fmt.Printf("seeded %d records into domain %s\n", len(records), *domain)
}

func runServeRegistry(args []string) {
	cmd := newFlagSet("serve-registry")
	addr := cmd.String("addr", ":8089", "Listen address")
	parseFlags(cmd, args)

	srv := refdata.NewServer(*addr)
	fmt.Printf("registry listening on %s\n", *addr)
	if err := srv.Serve(); err != nil {
		fatal(err)
	}
}

func loadCatalog(path string) *descriptor.Store {
	if strings.TrimSpace(path) == "" {
		fatal(fmt.Errorf("missing --catalog"))
	}
	store, err := descriptor.LoadCatalog(path)
	if err != nil {
		fatal(err)
	}
	return store
}

func openEventLog(cfg *config.Config) (eventlog.Log, func()) {
	if cfg.EventLog.Backend == "sqlite" {
		db, err := sql.Open("sqlite", cfg.EventLog.Path)
		if err != nil {
			fatal(err)
		}
		log, err := eventlog.NewSQLiteLog(db)
		if err != nil {
			_ = db.Close()
			fatal(err)
		}
		return log, func() { _ = db.Close() }
	}
	return eventlog.NewMemoryLog(), func() {}
}

// echoAgent returns whatever input it receives. The CLI uses it to exercise
// catalogs and workflows without application agent code.
type echoAgent struct{}

func echoFactory(map[string]any) (registry.Agent, error) { return echoAgent{}, nil }

func (echoAgent) Connect(context.Context, *registry.Registry) error { return nil }

func (echoAgent) Disconnect(context.Context) error { return nil }
func (echoAgent) Invoke(_ context.Context, _ string, input any) (any, error) {
	return input, nil
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func parseFlags(cmd *flag.FlagSet, args []string) {
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func printUsage() {
	fmt.Println(`Taxis CLI

Usage:
  taxis [global flags] <command> [args]

Global flags:
  --config <path>      Path to taxis.yaml
  --json               JSON output

Commands:
  resolve --catalog <path> [agent...]
  run --catalog <path> --workflow <path>
  events [--agent <id>] [--correlation <id>] [--kind <kind>] [--limit N]
  providers [--domain <name>]
  seed --endpoint <url> --domain <name> --file <records.yaml> [--token <t>]
  serve-registry [--addr <addr>]
  version`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
