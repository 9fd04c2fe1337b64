package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcavallo/minos/internal/logger"
	"github.com/mcavallo/minos/pkg/blockcache"
	"github.com/mcavallo/minos/pkg/blockdev"
	badgerdev "github.com/mcavallo/minos/pkg/blockdev/badger"
	"github.com/mcavallo/minos/pkg/config"
	"github.com/mcavallo/minos/pkg/kernel"
	"github.com/mcavallo/minos/pkg/metrics"
	promimpl "github.com/mcavallo/minos/pkg/metrics/prometheus"
	"github.com/mcavallo/minos/pkg/minfs"
)

var runCmd = &cobra.Command{
	Use:   "run [program...]",
	Short: "Boot the kernel over an image and run programs",
	Long: `run opens the configured block device, mounts the minfs image on it,
and boots the kernel. The named programs are spawned as children of init
and the command exits when every process has finished.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := logger.Init(logger.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		}); err != nil {
			return err
		}
		return runKernel(cfg, args)
	},
}

func openDevice(cfg *config.Config) (blockdev.BlockDevice, func() error, error) {
	switch cfg.Device.Kind {
	case "file":
		dev, err := blockdev.OpenFile(cfg.Device.Path)
		if err != nil {
			return nil, nil, err
		}
		return dev, dev.Close, nil
	case "badger":
		dev, err := badgerdev.Open(cfg.Device.Path)
		if err != nil {
			return nil, nil, err
		}
		return dev, dev.Close, nil
	case "memory":
		return blockdev.NewMem(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown device kind %q", cfg.Device.Kind)
	}
}

func runKernel(cfg *config.Config, programs []string) error {
	dev, closeDev, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeDev() }()

	cache := blockcache.NewManager(cfg.Cache.Capacity)
	fs, err := minfs.Open(dev, cache)
	if err != nil {
		return fmt.Errorf("mount %s: %w", cfg.Device.Path, err)
	}

	var schedMetrics kernel.SchedMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		cache.SetMetrics(promimpl.NewCacheMetrics())
		schedMetrics = promimpl.NewSchedMetrics()
	}

	k := kernel.New(kernel.Options{
		FS:              fs,
		Metrics:         schedMetrics,
		DefaultPriority: uint64(cfg.Scheduler.DefaultPriority),
		MinPriority:     uint64(cfg.Scheduler.MinPriority),
	})
	registerBuiltins(k)
	k.Register("init", initProgram(programs))
	if _, err := k.Spawn("init"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.Metrics.Listen)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	kernelDone := make(chan error, 1)
	g.Go(func() error {
		kernelDone <- k.Run()
		return nil
	})

	g.Go(func() error {
		select {
		case err := <-kernelDone:
			if metricsServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsServer.Shutdown(shutdownCtx)
			}
			return err
		case <-ctx.Done():
			logger.Info("signal received, shutting down")
			if metricsServer != nil {
				_ = metricsServer.Close()
			}
			os.Exit(130)
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	cache.SyncAll()
	logger.Info("kernel finished")
	return nil
}

// initProgram spawns the requested programs and reaps every child.
func initProgram(programs []string) kernel.Program {
	return func(env *kernel.Env) int {
		for _, name := range programs {
			if pid := env.Spawn(name); pid < 0 {
				fmt.Fprintf(os.Stderr, "init: unknown program %q\n", name)
			}
		}
		for {
			var code int
			pid := env.Waitpid(-1, &code)
			if pid == kernel.ErrnoInval {
				return 0
			}
			if pid == kernel.ErrnoAgain {
				env.Yield()
				continue
			}
			logger.Info("process finished", logger.KeyPid, pid, logger.KeyExit, code)
		}
	}
}
