package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/kindlenotes/internal/config"
	"github.com/conorfennell/kindlenotes/internal/importer"
	"github.com/conorfennell/kindlenotes/internal/knol"
	"github.com/conorfennell/kindlenotes/internal/library"
	"github.com/conorfennell/kindlenotes/internal/logging"
	"github.com/conorfennell/kindlenotes/internal/storage"
	"github.com/conorfennell/kindlenotes/internal/study"
	"github.com/conorfennell/kindlenotes/internal/sync"
	"github.com/conorfennell/kindlenotes/internal/web"
)

type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "kindlenotes",
		Short:        "Study your Kindle highlights as spaced-repetition flashcards",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultFile()+")")
	pf.String("library.dir", "", "directory holding the book documents")
	pf.String("store.driver", "", "session store: json or sqlite")
	pf.String("store.path", "", "session store file")
	pf.String("log.level", "", "debug, info, warn or error")
	pf.String("log.format", "", "text or json")

	root.AddCommand(
		a.syncCmd(),
		a.prettifyCmd(),
		a.booksCmd(),
		a.studyCmd(),
		a.serveCmd(),
		a.reapCmd(),
	)
	return root
}

func (a *app) library() *library.Dir {
	return library.New(a.cfg.Library.Dir, a.logger)
}

func (a *app) service(lib *library.Dir) (*study.Service, storage.Store, error) {
	store, err := storage.Open(a.cfg.Store.Driver, a.cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	svc := study.NewService(store, lib, study.Options{
		SessionSize: a.cfg.Study.SessionSize,
		StaleAfter:  a.cfg.Study.StaleAfter,
		Logger:      a.logger,
	})
	return svc, store, nil
}

func (a *app) syncer(lib *library.Dir) *sync.Syncer {
	if a.cfg.Import.File == "" {
		return nil
	}
	return sync.NewSyncer(importer.JSONFile{Path: a.cfg.Import.File}, lib, sync.GitOptions{
		Remote: a.cfg.Library.Remote,
		Commit: a.cfg.Library.Commit,
	}, a.logger)
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().String("import.file", "", "JSON export of highlights to import")
	cmd.Flags().String("library.remote", "", "git remote to pull before and push after syncing")
	cmd.Flags().Bool("library.commit", false, "commit changed documents")
}

func (a *app) syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Merge imported highlights into the book documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			syncer := a.syncer(a.library())
			if syncer == nil {
				return errors.New("no import file configured (set import.file)")
			}
			report, err := syncer.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d books: %d created, %d updated, %d unchanged, %d failed\n",
				report.Books, report.Created, report.Updated, report.Unchanged, len(report.Errors))
			if len(report.Errors) > 0 {
				return errors.Join(report.Errors...)
			}
			return nil
		},
	}
	addSyncFlags(cmd)
	return cmd
}

func (a *app) prettifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prettify [file...]",
		Short: "Assign identities to hand-written cards and normalize documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				var err error
				if paths, err = a.library().Paths(); err != nil {
					return err
				}
			}
			var invalid []error
			for _, path := range paths {
				raw, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				result := knol.Prettify(string(raw))
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, result.Status)
				switch result.Status {
				case knol.StatusInvalid:
					invalid = append(invalid, fmt.Errorf("%s: %w", path, result.Err))
				case knol.StatusModified:
					if _, err := library.WriteDocument(path, result.Document); err != nil {
						return err
					}
				}
			}
			return errors.Join(invalid...)
		},
	}
}

func (a *app) booksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "List books with their eligible and due flashcards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, store, err := a.service(a.library())
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := svc.Summaries(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCARDS\tELIGIBLE\tDUE")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", s.ID, s.Name, s.Flashcards, s.Eligible, s.Due)
			}
			return tw.Flush()
		},
	}
}

func (a *app) studyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "study [book-id]",
		Short: "Study flashcards in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, store, err := a.service(a.library())
			if err != nil {
				return err
			}
			defer store.Close()

			bookID := ""
			if len(args) == 1 {
				bookID = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runStudy(ctx, svc, bookID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int("study.sessionsize", 0, "flashcards per session")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the study API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib := a.library()
			svc, store, err := a.service(lib)
			if err != nil {
				return err
			}
			defer store.Close()

			var syncer web.Syncer
			if s := a.syncer(lib); s != nil {
				syncer = s
			}
			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           web.NewServer(svc, syncer, a.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errc := make(chan error, 1)
			go func() {
				a.logger.Info("listening", "addr", srv.Addr)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("server.addr", "", "listen address")
	addSyncFlags(cmd)
	return cmd
}

func (a *app) reapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Cancel study sessions left ongoing for too long",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, store, err := a.service(a.library())
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := svc.ReapStale(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d stale sessions\n", n)
			return nil
		},
	}
	cmd.Flags().Duration("study.staleafter", 0, "age after which an ongoing session is stale")
	return cmd
}
