package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/endpointstore/pkg/endpointstore"
	"github.com/nimburion/endpointstore/pkg/sandbox"
	"github.com/nimburion/endpointstore/pkg/store"
	"github.com/nimburion/endpointstore/pkg/version"
)

// storeAction runs one store operation and returns the value to print.
type storeAction func(ctx context.Context, st *endpointstore.Store) (any, error)

func (a *app) runStore(cmd *cobra.Command, action storeAction) error {
	cfg, log, err := a.load(cmd)
	if err != nil {
		return err
	}
	stopTracing, err := startTracing(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer stopTracing()

	st, closeFn, err := OpenStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			log.Warn("failed to close endpoints client", "error", err)
		}
	}()

	ctx := cmd.Context()
	if cfg.Endpoints.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Endpoints.Timeout)
		defer cancel()
	}
	out, err := action(ctx, st)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch a record by identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStore(cmd, func(ctx context.Context, st *endpointstore.Store) (any, error) {
				return st.Get(ctx, args[0]).Await(ctx)
			})
		},
	}
}

func (a *app) putCommand() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "put <json|->",
		Short: "Update a record, creating it when it has no identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := readRecord(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var directives *store.PutDirectives
			if cmd.Flags().Changed("id") {
				directives = store.ExplicitID(id)
			}
			return a.runStore(cmd, func(ctx context.Context, st *endpointstore.Store) (any, error) {
				return st.Put(ctx, record, directives).Await(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "identity overriding the one in the record")
	return cmd
}

func (a *app) addCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <json|->",
		Short: "Create a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := readRecord(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return a.runStore(cmd, func(ctx context.Context, st *endpointstore.Store) (any, error) {
				return st.Add(ctx, record, nil).Await(ctx)
			})
		},
	}
}

func (a *app) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a record by identity",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStore(cmd, func(ctx context.Context, st *endpointstore.Store) (any, error) {
				return st.Remove(ctx, args[0]).Await(ctx)
			})
		},
	}
}

// queryOutput is the printed form of a query.
type queryOutput struct {
	Items         []store.Record `json:"items"`
	Total         int            `json:"total"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func (a *app) queryCommand() *cobra.Command {
	var (
		start int
		count int
		order string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if start < 0 || count < 0 {
				return errors.New("--start and --count must not be negative")
			}
			options := &store.QueryOptions{Start: start, Count: count, Sort: parseSort(order)}
			return a.runStore(cmd, func(ctx context.Context, st *endpointstore.Store) (any, error) {
				results := st.Query(ctx, nil, options)
				items, err := results.All(ctx)
				if err != nil {
					return nil, err
				}
				total, err := results.Total().Await(ctx)
				if err != nil {
					return nil, err
				}
				token, err := results.NextPageToken().Await(ctx)
				if err != nil {
					return nil, err
				}
				return queryOutput{Items: items, Total: total, NextPageToken: token}, nil
			})
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "index of the first record")
	cmd.Flags().IntVar(&count, "count", 0, "maximum number of records")
	cmd.Flags().StringVar(&order, "sort", "", "comma separated attributes, prefixed with - for descending order")
	return cmd
}

func (a *app) sandboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve a local endpoints service over REST and gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := a.load(cmd)
			if err != nil {
				return err
			}
			stopTracing, err := startTracing(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer stopTracing()

			backend, err := sandbox.OpenBackend(cfg.Sandbox, cfg.Endpoints.IDProperty, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := backend.Close(); err != nil {
					log.Warn("failed to close sandbox backend", "error", err)
				}
			}()

			srv, err := sandbox.New(sandbox.Config{
				HTTPAddr:       cfg.Sandbox.HTTPAddr,
				GRPCAddr:       cfg.Sandbox.GRPCAddr,
				Resource:       cfg.Endpoints.Resource,
				IDProperty:     cfg.Endpoints.IDProperty,
				BackendName:    cfg.Sandbox.Backend,
				JWTSecret:      cfg.Sandbox.Auth.JWTSecret,
				Issuer:         cfg.Sandbox.Auth.Issuer,
				RateLimitRPS:   cfg.Sandbox.RateLimit.RPS,
				RateLimitBurst: cfg.Sandbox.RateLimit.Burst,
				Version:        version.Current(cfg.Service.Name).Version,
				DisableMetrics: !cfg.Observability.MetricsEnabled,
			}, backend, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log.Info("starting sandbox", "backend", cfg.Sandbox.Backend, "version", version.Current(cfg.Service.Name).String())
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("http-addr", "", "REST listen address")
	cmd.Flags().String("grpc-addr", "", "gRPC listen address, empty to disable")
	cmd.AddCommand(a.tokenCommand())
	return cmd
}

func (a *app) tokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token accepted by the sandbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.load(cmd)
			if err != nil {
				return err
			}
			auth, err := sandbox.NewAuthenticator(cfg.Sandbox.Auth.JWTSecret, cfg.Sandbox.Auth.Issuer)
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(subject, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func (a *app) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.load(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg.Redacted()); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Current(a.opts.Name)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service:    %s\n", info.Service)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			_, err := fmt.Fprintf(out, "Go:         %s\n", info.GoVersion)
			return err
		},
	}
}

// readRecord decodes a JSON object from arg, or from in when arg is "-".
func readRecord(in io.Reader, arg string) (store.Record, error) {
	var raw io.Reader = strings.NewReader(arg)
	if arg == "-" {
		raw = in
	}
	var record store.Record
	if err := json.NewDecoder(raw).Decode(&record); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}
	if record == nil {
		return nil, errors.New("invalid record: expected a JSON object")
	}
	return record, nil
}

// parseSort turns "name,-age" into ascending name then descending age.
func parseSort(raw string) []store.SortInformation {
	var sort []store.SortInformation
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimLeft(field, "+-")
		if field == "" {
			continue
		}
		sort = append(sort, store.SortInformation{Attribute: field, Descending: descending})
	}
	return sort
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
