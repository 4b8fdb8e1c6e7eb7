package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/dshills/skillcourse-mcp/internal/httpapi"
	"github.com/dshills/skillcourse-mcp/internal/indexer"
	"github.com/dshills/skillcourse-mcp/internal/mcp"
	"github.com/dshills/skillcourse-mcp/internal/recommender"
	"github.com/dshills/skillcourse-mcp/internal/storage"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "skillcourse %s\n", version)
		fmt.Fprintf(c.App.Writer, "Build Time: %s\n", buildTime)
		fmt.Fprintf(c.App.Writer, "Build Mode: %s\n", storage.BuildMode)
		fmt.Fprintf(c.App.Writer, "SQLite Driver: %s\n", storage.DriverName)
	}

	return &cli.App{
		Name:    "skillcourse",
		Usage:   "Recommend training courses for missing skills",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				EnvVars: []string{"SKILLCOURSE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveCommand,
			},
			{
				Name:   "http",
				Usage:  "Serve the HTTP API",
				Action: httpCommand,
			},
			{
				Name:      "import",
				Usage:     "Import courses from a JSON file into the catalog",
				ArgsUsage: "<courses.json>",
				Action:    importCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "index",
						Usage: "Embed imported courses into the index",
					},
				},
			},
			{
				Name:   "sync",
				Usage:  "Bring the embedding index in step with the catalog",
				Action: syncCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Reset the index and re-embed every course",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Compare the embedding index with the catalog",
				Action: statusCommand,
			},
			{
				Name:   "recommend",
				Usage:  "Recommend courses for a skill",
				Action: recommendCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "skill",
						Aliases:  []string{"s"},
						Usage:    "Missing skill; repeat for several skills",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "top-n",
						Aliases: []string{"n"},
						Usage:   "Number of recommendations per skill",
						Value:   types.DefaultTopN,
					},
					&cli.StringFlag{
						Name:  "level",
						Usage: "Desired level (débutant, intermédiaire, avancé)",
					},
					&cli.StringFlag{
						Name:  "context",
						Usage: "Extra context appended to the search text",
					},
				},
			},
		},
	}
}

// withRuntime builds the runtime for a command and tears it down afterwards
func withRuntime(c *cli.Context, fn func(ctx context.Context, rt *runtime) error) error {
	rt, err := newRuntime(c.String("config"))
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, rt)
}

func serveCommand(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		mcp.ServerVersion = version
		server := mcp.NewServer(rt.service, rt.indexer, rt.syncOptions(false), rt.logger.Named("mcp"))

		rt.logger.Info("MCP server ready, listening on stdio")
		if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		rt.logger.Info("server stopped")
		return nil
	})
}

func httpCommand(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		api := httpapi.NewServer(rt.service, rt.indexer, rt, rt.syncOptions(false), rt.logger.Named("http"))

		srv := &http.Server{
			Addr:         rt.cfg.HTTP.Addr,
			Handler:      api.Router(),
			ReadTimeout:  rt.cfg.HTTP.ReadTimeout,
			WriteTimeout: rt.cfg.HTTP.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			rt.logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if serr := api.Shutdown(shutdownCtx); serr != nil {
				rt.logger.Warn("background sync did not stop", zap.Error(serr))
			}
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		rt.logger.Info("received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if err := api.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		rt.logger.Info("server stopped gracefully")
		return nil
	})
}

func importCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("import requires exactly one JSON file", 2)
	}
	path := c.Args().First()

	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		index := c.Bool("index")
		if index {
			if err := rt.requireIndex(); err != nil {
				return err
			}
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		recs, err := indexer.DecodeCourses(f)
		if err != nil {
			return err
		}
		stats, err := rt.indexer.ImportCourses(ctx, recs, index)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, map[string]interface{}{
			"file":     path,
			"records":  len(recs),
			"imported": stats.Imported,
			"indexed":  stats.Indexed,
			"invalid":  stats.Invalid,
			"errors":   stats.Errors,
		})
	})
}

func syncCommand(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if err := rt.requireIndex(); err != nil {
			return err
		}
		stats, err := rt.indexer.Sync(ctx, rt.syncOptions(c.Bool("force")))
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, httpapi.NewSyncStatistics(stats))
	})
}

func statusCommand(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if err := rt.requireIndex(); err != nil {
			return err
		}
		st, err := rt.indexer.Status(ctx)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, httpapi.NewStatusResponse(st))
	})
}

func recommendCommand(c *cli.Context) error {
	skills := c.StringSlice("skill")
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if len(skills) == 1 {
			req := httpapi.RecommendRequest{
				Skill:   skills[0],
				TopN:    c.Int("top-n"),
				Level:   c.String("level"),
				Context: c.String("context"),
			}
			resp, err := rt.service.Recommend(ctx, req.Query())
			if err != nil {
				return err
			}
			rt.logger.Debug("recommendation served",
				zap.String("backend", resp.Backend),
				zap.Duration("duration", resp.Duration))
			return printJSON(c.App.Writer, httpapi.NewRecommendResponse(req, resp))
		}

		resp, err := rt.service.RecommendForSkills(ctx, recommender.SkillsRequest{
			Skills:   skills,
			PerSkill: c.Int("top-n"),
			Level:    c.String("level"),
			Context:  c.String("context"),
		})
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, httpapi.NewSkillsResponse(resp))
	})
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
