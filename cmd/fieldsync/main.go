// Command fieldsync is the device-side offline queue: forms are enqueued
// locally while out of coverage and flushed to the farm server on demand.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go-fundo-ops/internal/config"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/offline"
	applogger "go-fundo-ops/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	envFile string
	backend string
	path    string
	server  string
	token   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "fieldsync",
		Short:        "Offline queue for field journals",
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env", "", "env file to load")
	flags.StringVar(&opts.backend, "backend", "", "queue store: sqlite or badger (default from QUEUE_BACKEND)")
	flags.StringVar(&opts.path, "path", "", "queue store location (default from QUEUE_PATH)")
	flags.StringVar(&opts.server, "server", "", "farm server base URL (default from SYNC_SERVER_URL)")
	flags.StringVar(&opts.token, "token", "", "bearer token (default from SYNC_TOKEN)")

	root.AddCommand(
		newEnqueueCmd(opts),
		newCountCmd(opts),
		newListCmd(opts),
		newFlushCmd(opts),
	)
	return root
}

// open resolves the settings and opens the queue. Flags win over config.
func (o *options) open() (*offline.Queue, *zap.Logger, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return nil, nil, err
	}
	qc := cfg.Queue
	if o.backend != "" {
		qc.Backend = o.backend
	}
	if o.path != "" {
		qc.Path = o.path
	}
	if o.server != "" {
		qc.ServerURL = o.server
	}
	if o.token != "" {
		qc.Token = o.token
	}

	logger := applogger.Must(applogger.NewDevelopment())

	var store offline.Store
	switch qc.Backend {
	case "sqlite":
		store, err = offline.OpenSQLiteStore(qc.Path)
	case "badger":
		store, err = offline.OpenBadgerStore(qc.Path)
	default:
		err = fmt.Errorf("unknown queue backend %q", qc.Backend)
	}
	if err != nil {
		return nil, nil, err
	}

	sink := offline.NewRemoteSink(qc.ServerURL, qc.Token, qc.Timeout)
	return offline.NewQueue(store, sink, applogger.Named(logger, "queue")), logger, nil
}

func queueArg(args []string) (string, error) {
	if _, ok := model.ParseJournalKind(args[0]); !ok {
		return "", fmt.Errorf("unknown queue %q", args[0])
	}
	return args[0], nil
}

func newEnqueueCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "enqueue <queue>",
		Short: "Queue one form (JSON object) or several (JSON array) from a file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queueID, err := queueArg(args)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			raw, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			payloads, err := splitPayloads(raw)
			if err != nil {
				return err
			}

			q, logger, err := opts.open()
			if err != nil {
				return err
			}
			defer q.Close()

			for _, p := range payloads {
				p, err = withRowID(queueID, p, time.Now())
				if err != nil {
					return err
				}
				rec, err := q.Enqueue(cmd.Context(), queueID, p)
				if err != nil {
					return err
				}
				logger.Info("queued", zap.String("queue_id", queueID), zap.Int64("seq", rec.Seq))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON input file, - for stdin")
	return cmd
}

func newCountCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "count <queue>",
		Short: "Print the number of pending records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queueID, err := queueArg(args)
			if err != nil {
				return err
			}
			q, _, err := opts.open()
			if err != nil {
				return err
			}
			defer q.Close()

			n, err := q.Count(cmd.Context(), queueID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list <queue>",
		Short: "Print pending records as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queueID, err := queueArg(args)
			if err != nil {
				return err
			}
			q, _, err := opts.open()
			if err != nil {
				return err
			}
			defer q.Close()

			records, err := q.List(cmd.Context(), queueID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
}

func newFlushCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "flush <queue>",
		Short: "Send the whole queue to the server; nothing is removed on failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queueID, err := queueArg(args)
			if err != nil {
				return err
			}
			q, logger, err := opts.open()
			if err != nil {
				return err
			}
			defer q.Close()

			n, err := q.Flush(cmd.Context(), queueID)
			if err != nil {
				logger.Error("flush failed, queue kept", zap.String("queue_id", queueID), zap.Error(err))
				return err
			}
			logger.Info("flushed", zap.String("queue_id", queueID), zap.Int("records", n))
			return nil
		},
	}
}

// splitPayloads accepts a single JSON object or an array of objects.
func splitPayloads(raw []byte) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	if raw[0] == '[' {
		var many []json.RawMessage
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
		return many, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("input is not valid JSON")
	}
	return []json.RawMessage{json.RawMessage(raw)}, nil
}

// withRowID stamps row_id = <queue>-<unix nanos> on payloads that lack one,
// so a re-sent form is recognised by the server.
func withRowID(queueID string, payload json.RawMessage, at time.Time) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if id, ok := fields["row_id"]; ok && string(id) != `""` && string(id) != "null" {
		return payload, nil
	}
	id, err := json.Marshal(fmt.Sprintf("%s-%d", queueID, at.UnixNano()))
	if err != nil {
		return nil, err
	}
	fields["row_id"] = id
	return json.Marshal(fields)
}
