package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/dipscreener/internal/scheduler"
	"github.com/wonny/dipscreener/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the funnel on a schedule",
	Long: `Starts the scheduler or manages its jobs.

Registered jobs:
- master_list:   SCHEDULE_MASTER_LIST (default Mondays 06:00)
- screening:     SCHEDULE_SCREEN (default weekdays 21:30)
- deep_analysis: SCHEDULE_ANALYZE (default weekdays 22:00)
- cache_report:  hourly

A job whose tier is still fresh does nothing. An interrupted deep analysis
is resumed by the next run.

Subcommands:
  start   - start the scheduler
  list    - list registered jobs
  run     - run one job now and wait for it

Example:
  dipscreener scheduler start
  dipscreener scheduler start --skip master_list,cache_report
  dipscreener scheduler run screening`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

var skippedJobs []string

func init() {
	schedulerStartCmd.Flags().StringSliceVar(&skippedJobs, "skip", nil, "jobs to leave unscheduled")

	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// newScheduler registers every funnel job. Cancelling base interrupts
// running jobs.
func newScheduler(base context.Context, a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(base, a.log)
	top := a.cfg.Pipeline.DefaultTop

	for _, job := range []scheduler.Job{
		jobs.NewMasterListJob(a.orchestrator, a.cfg.Schedule.MasterList, a.log),
		jobs.NewScreeningJob(a.orchestrator, top, a.cfg.Schedule.Screening, a.log),
		jobs.NewAnalysisJob(a.orchestrator, top, a.cfg.Schedule.Analysis, a.log),
		jobs.NewCacheReportJob(a.cache, a.metrics, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// skipJobs unschedules the named jobs. Unknown names are an error so a typo
// does not silently leave a job running.
func skipJobs(sched *scheduler.Scheduler, names []string) error {
	for _, name := range names {
		if err := sched.RemoveJob(strings.TrimSpace(name)); err != nil {
			return fmt.Errorf("skip: %w", err)
		}
	}
	return nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(ctx, a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	if err := skipJobs(sched, skippedJobs); err != nil {
		return err
	}

	PrintHeader("dipscreener scheduler")
	sched.Start()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	PrintSuccess("Scheduler stopped")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(ctx, a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()
	widths := []int{14, 20}
	PrintTableHeader([]string{"JOB", "SCHEDULE"}, widths)
	for _, jobName := range sched.GetAllJobs() {
		PrintTableRow([]string{jobName, stats[jobName].Schedule}, widths)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jobName := args[0]

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(ctx, a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	sched.Wait()

	history, err := sched.GetJobHistory(jobName)
	if err != nil {
		return err
	}
	latest := history.GetLatestResults(1)
	if len(latest) == 0 {
		return fmt.Errorf("job %s left no result", jobName)
	}

	result := latest[0]
	if !result.Success {
		return fmt.Errorf("job %s failed after %d attempt(s): %s", jobName, result.Attempts, result.Error)
	}
	PrintSuccess(fmt.Sprintf("Job %s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}
