package commands

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/dipscreener/internal/api"
	"github.com/wonny/dipscreener/internal/api/handlers"
	"github.com/wonny/dipscreener/internal/scheduler"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, the scheduler and /metrics",
	Long: `Starts the REST API together with the scheduler.

Endpoints:
  GET  /health                     - Health check
  GET  /metrics                    - Prometheus metrics (METRICS_ENABLED)
  GET  /api/status                 - Tier freshness and next action
  POST /api/triggers/{stage}       - Run master-list, screen or deep-analyze
  GET  /api/triggers/{id}          - Trigger progress and outcome
  GET  /api/records                - Ranked records (?limit=N)
  GET  /api/records/{symbol}       - One record
  GET  /api/records/export.csv     - Ranked records as CSV
  GET  /api/lists/master           - Latest master list
  GET  /api/lists/screening        - Latest screening list (?top=N)

Example:
  dipscreener serve
  dipscreener serve --port 9000 --no-scheduler`,
	RunE: runServe,
}

var (
	servePort        string
	serveNoScheduler bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (default PORT)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "serve the API without scheduled jobs")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if servePort != "" {
		a.cfg.Port = servePort
	}

	g, gctx := errgroup.WithContext(ctx)

	// Handlers and router
	pipeline := handlers.NewPipelineHandler(gctx, a.orchestrator, a.cfg.Pipeline.DefaultTop, a.log)
	var metricsHandler http.Handler
	if a.registry != nil {
		metricsHandler = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	}
	router := api.NewRouter(api.Handlers{
		Pipeline: pipeline,
		Ranking:  handlers.NewRankingHandler(a.orchestrator, a.log),
		Lists:    handlers.NewListHandler(a.orchestrator, a.cfg.Pipeline.DefaultTop, a.log),
		Metrics:  metricsHandler,
	}, a.log)
	server := api.New(":"+a.cfg.Port, a.cfg.Server, a.log, router)
	ln, err := server.Listen()
	if err != nil {
		return err
	}

	// Scheduler
	var sched *scheduler.Scheduler
	if !serveNoScheduler {
		if sched, err = newScheduler(gctx, a); err != nil {
			ln.Close()
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
	}

	g.Go(func() error { return server.Serve(gctx, ln) })
	g.Go(func() error {
		<-gctx.Done()
		pipeline.Wait()
		if sched != nil {
			sched.Stop()
		}
		return nil
	})

	PrintSuccess(fmt.Sprintf("Server running on http://%s", ln.Addr()))
	fmt.Println("Press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("Server stopped")
	return nil
}
