package website

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"git.handmade.network/hmn/postmerge/src/config"
	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/jobs"
	"git.handmade.network/hmn/postmerge/src/logging"
	"github.com/spf13/cobra"
)

var WebsiteCommand = &cobra.Command{
	Use:   "hmnmerge",
	Short: "Merge forum posts and keep the forum's counters straight",
}

func init() {
	serveCommand := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			defer logging.LogPanics(nil)
			Serve()
		},
	}
	WebsiteCommand.AddCommand(serveCommand)
}

func Serve() {
	logging.Info().Msg("Hello, HMN!")

	conn := db.NewConnPool()
	defer conn.Close()

	var wg sync.WaitGroup

	server := &http.Server{
		Addr:    config.Config.Addr,
		Handler: NewWebsiteRoutes(NewDBPostMerger(conn)),
	}
	privateServer := &http.Server{
		Addr:    config.Config.PrivateAddr,
		Handler: NewPrivateRoutes(),
	}

	wg.Add(1)
	backgroundJobs := jobs.Jobs{
		MonitorJobQueue(conn),
		listen(server, "admin API"),
		listen(privateServer, "metrics"),
	}

	// Wait for SIGINT in the background and trigger graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	go func() {
		<-signals // First SIGINT (start shutdown)
		logging.Info().Msg("Shutting down")

		unfinished := backgroundJobs.CancelAndWait(shutdownTimeout() + time.Second)
		if len(unfinished) == 0 {
			logging.Info().Msg("Background jobs closed gracefully")
		} else {
			logging.Warn().Strs("Unfinished", unfinished).Msg("Background jobs did not finish by the deadline")
		}
		wg.Done()

		<-signals // Second SIGINT (force quit)
		logging.Warn().Strs("Unfinished background jobs", backgroundJobs.ListUnfinished()).Msg("Forcibly killed the server")
		os.Exit(1)
	}()

	wg.Wait()
}

// Serves until the job is canceled, then shuts the server down gracefully so
// that merges in flight get to commit.
func listen(server *http.Server, name string) *jobs.Job {
	return jobs.Go(name, func(job *jobs.Job) {
		go func() {
			job.Logger.Info().Str("addr", server.Addr).Msg("Serving")
			err := server.ListenAndServe()
			if !errors.Is(err, http.ErrServerClosed) {
				job.Logger.Error().Err(err).Msg("Server shut down unexpectedly")
			}
		}()

		<-job.Canceled()
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout())
		defer cancel()
		if err := server.Shutdown(timeoutCtx); err != nil {
			job.Logger.Warn().Err(err).Msg("Server did not shut down gracefully")
		}
	})
}

func shutdownTimeout() time.Duration {
	return config.Config.Merge.Timeout + 5*time.Second
}
