package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/birdayz/kflow"
	"github.com/birdayz/kflow/kbridge"
	"github.com/birdayz/kflow/kstore"
)

type bridgeFlags struct {
	brokers      []string
	group        string
	inputTopic   string
	outputTopic  string
	programID    string
	store        string
	metricsAddr  string
	createTopics bool
	partitions   int32
	replication  int16
}

func newBridgeCommand(g *globals) *cobra.Command {
	f := bridgeFlags{}

	cmd := &cobra.Command{
		Use:   "bridge <description>",
		Short: "Run a program between two Kafka topics",
		Long: `Consume JSON messages from the input topic, feed them to the program and
produce its outputs to the output topic. With --store the program state is
loaded on start and saved on shutdown.`,
		Example: `  kflow bridge program.json --brokers localhost:9092 --input sensors --output sensors-derived`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(cmd.Context(), g, f, args[0])
		},
	}

	cmd.Flags().StringSliceVar(&f.brokers, "brokers", []string{"localhost:9092"}, "seed brokers")
	cmd.Flags().StringVar(&f.group, "group", "kflow", "consumer group")
	cmd.Flags().StringVar(&f.inputTopic, "input", "", "input topic")
	cmd.Flags().StringVar(&f.outputTopic, "output", "", "output topic")
	cmd.Flags().StringVar(&f.programID, "id", "default", "program id, also the snapshot id")
	cmd.Flags().StringVar(&f.store, "store", "", "snapshot store, see kflow snapshot --help")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", ":9090", "address serving /metrics, empty to disable")
	cmd.Flags().BoolVar(&f.createTopics, "create-topics", false, "create missing topics on start")
	cmd.Flags().Int32Var(&f.partitions, "partitions", 1, "partitions of created topics")
	cmd.Flags().Int16Var(&f.replication, "replication-factor", 1, "replication factor of created topics")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runBridge(ctx context.Context, g *globals, f bridgeFlags, path string) (err error) {
	log := g.logr()

	reg := prometheus.NewRegistry()
	metrics, err := kflow.NewMetrics(reg)
	if err != nil {
		return err
	}
	manager := kflow.NewManager(registry(), kflow.WithLogr(log), kflow.WithMetrics(metrics))

	var store kstore.Store
	if f.store != "" {
		if store, err = openStore(ctx, f.store); err != nil {
			return err
		}
		defer store.Close()
	}

	if err := loadOrCreate(ctx, manager, store, f.programID, path); err != nil {
		return err
	}
	if store != nil {
		defer func() {
			if saveErr := manager.Save(context.Background(), store, f.programID); saveErr != nil {
				err = multierr.Append(err, saveErr)
				return
			}
			log.Info("Saved program state", "program", f.programID)
		}()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(f.brokers...),
		kgo.ConsumerGroup(f.group),
		kgo.ConsumeTopics(f.inputTopic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return fmt.Errorf("kafka client: %w", err)
	}
	defer client.Close()

	if f.createTopics {
		if err := kbridge.EnsureTopics(ctx, kadm.NewClient(client), f.partitions, f.replication, f.inputTopic, f.outputTopic); err != nil {
			return err
		}
	}

	b := kbridge.New(client, manager, f.programID, f.outputTopic, kbridge.WithLogr(log.WithName("bridge")))

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return b.Run(ctx)
	})
	if f.metricsAddr != "" {
		srv := &http.Server{
			Addr:              f.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		grp.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		grp.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info("Bridge running", "program", f.programID, "input", f.inputTopic, "output", f.outputTopic)
	return grp.Wait()
}

// loadOrCreate restores the program from store when it holds a snapshot for
// id, and builds it from the description otherwise.
func loadOrCreate(ctx context.Context, m *kflow.Manager, store kstore.Store, id, path string) error {
	if store != nil {
		err := m.Load(ctx, store, id)
		if err == nil || !errors.Is(err, kstore.ErrSnapshotNotFound) {
			return err
		}
	}
	b, err := readDescription(path)
	if err != nil {
		return err
	}
	_, err = m.Create(id, b)
	return err
}
