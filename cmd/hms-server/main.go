package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/invoice"
	"github.com/hms/hms/internal/domain/pricing"
	"github.com/hms/hms/internal/platform/codec"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hms-server",
		Short:        "Hospital invoice pricing service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), catalogCmd(), quoteCmd())
	return root
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(cfg.ZerologLevel()).With().Timestamp().Str("service", "hms").Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the invoice API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cfg, newLogger(cfg))
		},
	}
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	calc, err := buildCalculator(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}

	drafts := invoice.NewMemoryDraftStore()
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		drafts = invoice.NewRedisDraftStore(rdb, cfg.DraftTTL)
		logger.Info().Dur("draft_ttl", cfg.DraftTTL).Msg("draft sessions stored in redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set, draft sessions are kept in memory")
	}

	svc := invoice.NewService(drafts, invoice.NewBillRepoPG(pool), calc, logger)
	svc.SetCurrency(cfg.Currency)

	e := newEcho(cfg, logger)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	if rdb != nil {
		e.GET("/health/redis", db.PingHandler(redisPinger{rdb}))
	}

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	invoice.NewHandler(svc).RegisterRoutes(api)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = codec.JSONSerializer{}

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	return e
}

// buildCalculator merges the adjustment_rules table over the built-in catalog.
func buildCalculator(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*pricing.Calculator, error) {
	rounding, err := cfg.Rounding()
	if err != nil {
		return nil, err
	}
	catalog := pricing.DefaultCatalog()
	if pool != nil {
		catalog, err = pricing.LoadCatalog(ctx, pricing.NewRuleRepoPG(pool), catalog)
		if err != nil {
			return nil, fmt.Errorf("load adjustment catalog: %w", err)
		}
	}
	logger.Info().
		Int("rules", catalog.Len()).
		Str("rounding", string(rounding.Mode)).
		Int32("places", rounding.Places).
		Msg("adjustment catalog loaded")
	return pricing.NewCalculator(catalog, rounding), nil
}

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func openPool(ctx context.Context) (*pgxpool.Pool, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return pool, cfg, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, cfg, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
			return nil
		},
	}
	up.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, cfg, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
			for _, s := range statuses {
				state, at := "pending", ""
				if s.Applied {
					state = "applied"
				}
				if s.AppliedAt != nil {
					at = s.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, s.Name, state, at)
			}
			return w.Flush()
		},
	}
	status.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")

	cmd.AddCommand(up, status)
	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the effective adjustment catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := pricing.DefaultCatalog()
			if withDB, _ := cmd.Flags().GetBool("db"); withDB {
				ctx := cmd.Context()
				pool, _, err := openPool(ctx)
				if err != nil {
					return err
				}
				defer pool.Close()
				if catalog, err = pricing.LoadCatalog(ctx, pricing.NewRuleRepoPG(pool), catalog); err != nil {
					return err
				}
			}
			return printCatalog(cmd.OutOrStdout(), catalog)
		},
	}
	cmd.Flags().Bool("db", false, "Merge active rules from the adjustment_rules table")
	return cmd
}

func printCatalog(out io.Writer, catalog *pricing.Catalog) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tDIRECTION\tPERCENT\tLABEL")
	for _, r := range catalog.Rules() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Code, r.Direction, r.Percentage.String(), r.Label)
	}
	return w.Flush()
}

func quoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "quote",
		Short:   "Apply a primary and optional secondary adjustment to an amount",
		Example: "  hms-server quote --base 10000 --primary discount10 --secondary second_surgery50",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseStr, _ := cmd.Flags().GetString("base")
			primary, _ := cmd.Flags().GetString("primary")
			secondary, _ := cmd.Flags().GetString("secondary")
			mode, _ := cmd.Flags().GetString("rounding")
			places, _ := cmd.Flags().GetInt("places")

			base, err := decimal.NewFromString(baseStr)
			if err != nil {
				return fmt.Errorf("invalid --base %q: %w", baseStr, err)
			}
			rounding, err := pricing.ParseRounding(mode, places)
			if err != nil {
				return err
			}
			chain, err := pricing.NewCalculator(nil, rounding).ApplyChain(base, pricing.Code(primary), pricing.Code(secondary))
			if err != nil {
				return err
			}
			printChain(cmd.OutOrStdout(), chain)
			return nil
		},
	}
	cmd.Flags().String("base", "0", "Base amount")
	cmd.Flags().String("primary", string(pricing.CodeNone), "Primary adjustment code")
	cmd.Flags().String("secondary", "", "Secondary adjustment code, applied to the primary result")
	cmd.Flags().String("rounding", string(pricing.RoundHalfUp), "Rounding mode: half_up or truncate")
	cmd.Flags().Int("places", 2, "Decimal places of each adjustment amount")
	return cmd
}

func printChain(out io.Writer, chain pricing.Chain) {
	fmt.Fprintf(out, "base       %s\n", chain.BaseAmount)
	fmt.Fprintf(out, "%-10s %s -> %s\n", chain.Primary.Code, chain.Primary.AdjustmentAmount, chain.Primary.ResultAmount)
	if chain.Secondary != nil {
		fmt.Fprintf(out, "%-10s %s -> %s\n", chain.Secondary.Code, chain.Secondary.AdjustmentAmount, chain.Secondary.ResultAmount)
	}
	fmt.Fprintf(out, "final      %s\n", chain.FinalAmount)
}
