// loanservectl is the operator CLI: broker topology management, dead-letter
// triage, and audit-chain verification and export.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/usecase"
	"github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/config"
	pgRepo "github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/postgres"
	"github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/topology"
	"github.com/cschwartz85032/loanserve-sub001/pkg/observability"
	pkgpostgres "github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
	"github.com/cschwartz85032/loanserve-sub001/pkg/rabbitmq"
)

const usage = `usage: loanservectl <command> [flags]

commands:
  apply-topology      declare exchanges, queues and bindings
  validate-topology   compare live broker state against the expected layout
  dlq list            show dead-letter queue depths
  dlq inspect         peek at messages on one DLQ
  dlq analyze         group a DLQ sample by origin and reason
  dlq reprocess       republish dead-lettered messages to their origin queues
  dlq purge           drop all messages on one DLQ
  verify-chain        walk a tenant's audit chain and report broken links
  export-chain        dump a date range of a tenant's audit chain as JSON lines plus a manifest
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:  envOr("LOG_LEVEL", "warn"),
		Format: "text",
	})

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "apply-topology":
		err = applyTopology(cfg, logger)
	case "validate-topology":
		err = validateTopology(ctx, cfg)
	case "dlq":
		err = dlqCommand(ctx, cfg, logger, args)
	case "verify-chain":
		err = verifyChain(ctx, cfg, logger, args)
	case "export-chain":
		err = exportChain(ctx, cfg, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func applyTopology(cfg config.Config, logger *slog.Logger) error {
	conn, err := rabbitmq.Dial(cfg.Broker)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	report, err := topology.NewManager(conn, logger).Apply()
	if len(report.ExchangesDeclared) > 0 || len(report.QueuesDeclared) > 0 {
		fmt.Printf("declared %d exchanges, %d queues\n", len(report.ExchangesDeclared), len(report.QueuesDeclared))
	}
	for _, name := range report.Refused {
		fmt.Printf("refused:   %s (priority args on a quorum queue)\n", name)
	}
	for _, name := range report.Recreated {
		fmt.Printf("recreated: %s\n", name)
	}
	for _, name := range report.Versioned {
		fmt.Printf("versioned: %s\n", name)
	}
	return err
}

func validateTopology(ctx context.Context, cfg config.Config) error {
	mgmt, err := rabbitmq.NewMgmtClient(cfg.Broker)
	if err != nil {
		return err
	}

	mismatches, err := topology.NewValidator(mgmt).Validate(ctx)
	if err != nil {
		return err
	}
	if len(mismatches) == 0 {
		fmt.Println("topology matches")
		return nil
	}
	for _, m := range mismatches {
		fmt.Printf("%s %s: %s\n", m.Kind, m.Name, m.Reason)
	}
	os.Exit(1)
	return nil
}

func dlqCommand(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("dlq: subcommand required (list, inspect, analyze, reprocess, purge)")
	}
	sub, args := args[0], args[1:]

	fs := flag.NewFlagSet("dlq "+sub, flag.ExitOnError)
	queue := fs.String("queue", "", "dead-letter queue name")
	limit := fs.Int("limit", 25, "max messages to touch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conn, err := rabbitmq.Dial(cfg.Broker)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck
	mgmt, err := rabbitmq.NewMgmtClient(cfg.Broker)
	if err != nil {
		return err
	}
	tool := topology.NewDLQTool(conn, mgmt, logger)

	switch sub {
	case "list":
		summaries, err := tool.List(ctx)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			fmt.Printf("%-28s %6d messages  %d consumers\n", s.Queue, s.Messages, s.Consumers)
		}
		return nil
	case "inspect":
		if *queue == "" {
			return fmt.Errorf("dlq inspect: -queue is required")
		}
		msgs, err := tool.Inspect(*queue, *limit)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Printf("%s  origin=%s reason=%q reprocessed=%d at=%s\n",
				m.MessageID, m.OriginQueue, m.PoisonReason, m.ReprocessCount,
				m.Timestamp.Format(time.RFC3339))
		}
		fmt.Printf("%d messages (left on the queue)\n", len(msgs))
		return nil
	case "analyze":
		if *queue == "" {
			return fmt.Errorf("dlq analyze: -queue is required")
		}
		analysis, err := tool.Analyze(*queue, *limit)
		if err != nil {
			return err
		}
		fmt.Printf("sampled %d messages\n", analysis.Sampled)
		for origin, n := range analysis.ByOrigin {
			fmt.Printf("  origin %-28s %d\n", origin, n)
		}
		for reason, n := range analysis.ByReason {
			fmt.Printf("  reason %-28s %d\n", reason, n)
		}
		return nil
	case "reprocess":
		if *queue == "" {
			return fmt.Errorf("dlq reprocess: -queue is required")
		}
		n, err := tool.Reprocess(ctx, *queue, *limit)
		fmt.Printf("reprocessed %d messages\n", n)
		return err
	case "purge":
		if *queue == "" {
			return fmt.Errorf("dlq purge: -queue is required")
		}
		n, err := tool.Purge(*queue)
		fmt.Printf("purged %d messages\n", n)
		return err
	default:
		return fmt.Errorf("dlq: unknown subcommand %q", sub)
	}
}

func verifyChain(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("verify-chain", flag.ExitOnError)
	tenant := fs.String("tenant", "", "tenant id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, pool, err := tenantPool(ctx, cfg, *tenant)
	if err != nil {
		return err
	}
	defer pool.Close()

	result, err := usecase.NewVerifyEventChainUseCase(pgRepo.NewEventLogRepo(pool), logger).Execute(ctx)
	if err != nil {
		return err
	}
	if result.IsValid {
		fmt.Printf("chain intact: %d events\n", result.TotalEvents)
		return nil
	}
	for _, link := range result.BrokenLinks {
		fmt.Printf("broken %s at %s: expected %s, got %s\n",
			link.Field, link.EventID, link.Expected, link.Actual)
	}
	os.Exit(1)
	return nil
}

func exportChain(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("export-chain", flag.ExitOnError)
	tenant := fs.String("tenant", "", "tenant id")
	from := fs.String("from", "", "start date, YYYY-MM-DD, inclusive")
	to := fs.String("to", "", "end date, YYYY-MM-DD, inclusive")
	if err := fs.Parse(args); err != nil {
		return err
	}
	startDate, err := time.Parse(time.DateOnly, *from)
	if err != nil {
		return fmt.Errorf("-from must be a YYYY-MM-DD date")
	}
	endDate, err := time.Parse(time.DateOnly, *to)
	if err != nil {
		return fmt.Errorf("-to must be a YYYY-MM-DD date")
	}

	ctx, pool, err := tenantPool(ctx, cfg, *tenant)
	if err != nil {
		return err
	}
	defer pool.Close()

	result, err := usecase.NewExportEventChainUseCase(pgRepo.NewEventLogRepo(pool)).
		Execute(ctx, os.Stdout, startDate, endDate)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d events, chain_valid=%t, export_hash=%s\n",
		result.TotalEvents, result.ChainValid, result.ExportHash)
	return nil
}

func tenantPool(ctx context.Context, cfg config.Config, tenant string) (context.Context, *pgxpool.Pool, error) {
	tenantID, err := uuid.Parse(tenant)
	if err != nil || tenantID == uuid.Nil {
		return nil, nil, fmt.Errorf("a well-formed -tenant id is required")
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()
	pool, err := pkgpostgres.NewPool(dbCtx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return pkgpostgres.WithTenant(ctx, tenantID), pool, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
