// Command ipa-helper drives the query lifecycle this module
// implements. In the absence of a real network transport (out of
// scope for this module, see spec.md's Non-goals), its `simulate`
// subcommand runs all three helpers in-process over an
// internal/transport.InMemoryNetwork, the same "local simulation mode"
// shape the teacher's CLI offers when no network address is given.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/ipa-helper/internal/config"
	"github.com/luxfi/ipa-helper/internal/gateway"
	"github.com/luxfi/ipa-helper/internal/query"
	"github.com/luxfi/ipa-helper/internal/telemetry"
	"github.com/luxfi/ipa-helper/internal/transport"
	"github.com/luxfi/ipa-helper/pkg/executor"
	"github.com/luxfi/ipa-helper/pkg/field"
	"github.com/luxfi/ipa-helper/pkg/ids"
	"github.com/luxfi/ipa-helper/pkg/share"
)

var (
	configPath string
	verbose    bool

	operandA int
	operandB int

	rootCmd = &cobra.Command{
		Use:   "ipa-helper",
		Short: "Coordinates a three-party IPA MPC query",
		Long: `ipa-helper drives the query lifecycle one helper in an IPA
(Interoperable Private Attribution) ring follows: originating or
accepting a query, feeding it input shares, and reporting status and
result.`,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run all three helpers in-process and complete one query",
		Long:  `Runs a single multiply query end to end over an in-memory ring, for development and demonstration.`,
		RunE:  runSimulate,
	}

	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Display build and configuration information",
		RunE:  runInfo,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "ring configuration file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	simulateCmd.Flags().IntVar(&operandA, "a", 4, "first multiply operand (mod 31)")
	simulateCmd.Flags().IntVar(&operandB, "b", 5, "second multiply operand (mod 31)")

	rootCmd.AddCommand(simulateCmd, infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	fmt.Println("ipa-helper: three-party IPA MPC query coordinator")
	fmt.Println()
	fmt.Println("Supported fields: Fp (prime, saferith-backed), Gf2, Gf32 (GF(2^32) extension)")
	fmt.Println("Lifecycle: Preparing -> AwaitingInputs -> Running -> AwaitingCompletion -> Completed")
	if configPath != "" {
		doc, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("Ring: %v (self=%s)\n", doc.Ring.Identities(), doc.Ring.Self)
	}
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ring := [3]ids.HelperIdentity{"h1", "h2", "h3"}

	net := transport.NewInMemoryNetwork(ring)
	log := telemetry.NewNop()
	if verbose {
		var err error
		log, err = newVerboseLogger()
		if err != nil {
			return err
		}
	}
	gwCfg := gateway.Config{SendWindow: 16, ReceiveWindow: 16}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	a := field.NewFp31(uint64(operandA))
	b := field.NewFp31(uint64(operandB))
	aShares := share.ShareOf3(a, func() field.Fp { return field.NewFp31(uint64(rng.Intn(31))) })
	bShares := share.ShareOf3(b, func() field.Fp { return field.NewFp31(uint64(rng.Intn(31))) })

	// NewProcessor starts each helper's own prepare request/ack
	// dispatch loops, so there's no separate listener to wire up here.
	processors := make(map[ids.HelperIdentity]*query.Processor, 3)
	for i, id := range ring {
		i := i
		exec := executor.NewMultiply(func() ([]share.Share[field.Fp], []share.Share[field.Fp], error) {
			return []share.Share[field.Fp]{aShares[i]}, []share.Share[field.Fp]{bShares[i]}, nil
		})
		processors[id] = query.NewProcessor(ctx, id, net.For(id), gwCfg, log, exec)
	}

	if _, err := processors["h1"].NewQuery(ctx, "sim-1", ring, "fp31"); err != nil {
		return fmt.Errorf("ipa-helper: new_query: %w", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for _, id := range ring {
		for {
			st, err := processors[id].Status("sim-1")
			if err == nil && st == query.StateAwaitingInputs {
				break
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("ipa-helper: timed out waiting for %s to prepare", id)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	// Every helper's receive_inputs blocks inside its Multiply
	// executor's synchronous round (each side sends to, and waits on,
	// its ring neighbors), so all three run concurrently.
	errs := make(chan error, 3)
	for _, id := range ring {
		id := id
		go func() { errs <- processors[id].ReceiveInputs(ctx, "sim-1", nil, nil) }()
	}
	for _, id := range ring {
		if err := <-errs; err != nil {
			return fmt.Errorf("ipa-helper: receive_inputs(%s): %w", id, err)
		}
	}

	results := make(map[ids.HelperIdentity]share.Share[field.Fp], 3)
	for _, id := range ring {
		result, err := processors[id].Complete(ctx, "sim-1")
		if err != nil {
			return fmt.Errorf("ipa-helper: complete(%s): %w", id, err)
		}
		if len(result.Output) != 2 {
			return fmt.Errorf("ipa-helper: complete(%s): unexpected result width %d", id, len(result.Output))
		}
		results[id] = share.Share[field.Fp]{
			Left:  field.FpFromBytes(31, result.Output[0:1]),
			Right: field.FpFromBytes(31, result.Output[1:2]),
		}
	}

	product := [3]share.Share[field.Fp]{results["h1"], results["h2"], results["h3"]}
	got := share.Reconstruct(product)

	fmt.Printf("%d * %d mod 31 = %d\n", operandA, operandB, got.Uint64())
	return nil
}

func newVerboseLogger() (*telemetry.Logger, error) {
	return telemetry.New()
}
