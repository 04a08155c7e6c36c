package scenarios_test

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luxfi/ipa-helper/internal/coreerr"
	"github.com/luxfi/ipa-helper/internal/gateway"
	"github.com/luxfi/ipa-helper/internal/query"
	"github.com/luxfi/ipa-helper/internal/telemetry"
	"github.com/luxfi/ipa-helper/internal/transport"
	"github.com/luxfi/ipa-helper/pkg/executor"
	"github.com/luxfi/ipa-helper/pkg/field"
	"github.com/luxfi/ipa-helper/pkg/ids"
	"github.com/luxfi/ipa-helper/pkg/share"
)

var ring = [3]ids.HelperIdentity{"h1", "h2", "h3"}

type harness struct {
	processors map[ids.HelperIdentity]*query.Processor
	cancel     context.CancelFunc
}

func newHarness(execs map[ids.HelperIdentity]executor.Executor) *harness {
	net := transport.NewInMemoryNetwork(ring)
	ctx, cancel := context.WithCancel(context.Background())
	log := telemetry.NewNop()
	gwCfg := gateway.Config{SendWindow: 8, ReceiveWindow: 8}

	h := &harness{processors: make(map[ids.HelperIdentity]*query.Processor, 3), cancel: cancel}
	for _, id := range ring {
		h.processors[id] = query.NewProcessor(ctx, id, net.For(id), gwCfg, log, execs[id])
	}
	return h
}

func (h *harness) close() { h.cancel() }

// fakeRunningQuery reports Running until finish is called, so
// scenario 5 can observe the poll-then-upgrade transition rather than
// completion on the very first poll.
type fakeRunningQuery struct {
	done   chan struct{}
	result executor.Result
}

func newFakeRunningQuery(result executor.Result) *fakeRunningQuery {
	return &fakeRunningQuery{done: make(chan struct{}), result: result}
}

func (f *fakeRunningQuery) finish() { close(f.done) }

func (f *fakeRunningQuery) Status() executor.Status {
	select {
	case <-f.done:
		return executor.StatusCompleted
	default:
		return executor.StatusRunning
	}
}

func (f *fakeRunningQuery) Wait(ctx context.Context) (executor.Result, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return executor.Result{}, ctx.Err()
	}
}

func (f *fakeRunningQuery) Cancel() {}

type fakeExecutor struct {
	mu sync.Mutex
	rq *fakeRunningQuery
}

func newFakeExecutor(result executor.Result) *fakeExecutor {
	return &fakeExecutor{rq: newFakeRunningQuery(result)}
}

func (f *fakeExecutor) Execute(ctx context.Context, cfg executor.Config, keys executor.KeyRegistry, gw *gateway.Gateway, input io.Reader) (executor.RunningQuery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rq, nil
}

var _ = Describe("new_query happy path", func() {
	// Scenario 1: coordinator ends up AwaitingInputs with itself as
	// H1 and both peers as H2/H3; both followers end up AwaitingInputs
	// too.
	It("assigns roles and replicates the query to both followers", func() {
		h := newHarness(nil)
		defer h.close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		entry, err := h.processors["h1"].NewQuery(ctx, "happy-1", ring, "fp31")
		Expect(err).NotTo(HaveOccurred())

		role, ok := entry.Roles().Role("h1")
		Expect(ok).To(BeTrue())
		Expect(role).To(Equal(ids.H1))
		role, ok = entry.Roles().Role("h2")
		Expect(ok).To(BeTrue())
		Expect(role).To(Equal(ids.H2))
		role, ok = entry.Roles().Role("h3")
		Expect(ok).To(BeTrue())
		Expect(role).To(Equal(ids.H3))

		Eventually(func() query.State {
			st, err := h.processors["h2"].Status("happy-1")
			if err != nil {
				return 0
			}
			return st
		}).Should(Equal(query.StateAwaitingInputs))

		Eventually(func() query.State {
			st, err := h.processors["h3"].Status("happy-1")
			if err != nil {
				return 0
			}
			return st
		}).Should(Equal(query.StateAwaitingInputs))

		st, err := h.processors["h1"].Status("happy-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(st).To(Equal(query.StateAwaitingInputs))
	})
})

var _ = Describe("prepare rejection rolls back", func() {
	// Scenario 2: a peer rejecting a prepare request (WrongTarget, or
	// any other cause) must leave the coordinator's registry empty, so
	// a retry with the same id doesn't spuriously observe
	// AlreadyRunning.
	It("rolls back the coordinator's entry and allows a clean retry", func() {
		h := newHarness(nil)
		defer h.close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		staleRoles, err := ids.NewRoleAssignment("h3", "h1", "h2")
		Expect(err).NotTo(HaveOccurred())
		_, err = h.processors["h3"].Registry().Insert("rollback-1", staleRoles, "fp31")
		Expect(err).NotTo(HaveOccurred())

		_, err = h.processors["h1"].NewQuery(ctx, "rollback-1", ring, "fp31")
		var transportErr *coreerr.TransportError
		Expect(err).To(BeAssignableToTypeOf(transportErr))

		_, err = h.processors["h1"].Status("rollback-1")
		Expect(err).To(HaveOccurred(), "coordinator must not retain an entry for a query it failed to prepare")

		// h2 accepted the first prepare and keeps its entry; clear it
		// along with h3's before retrying.
		Eventually(func() query.State {
			st, err := h.processors["h2"].Status("rollback-1")
			if err != nil {
				return 0
			}
			return st
		}).Should(Equal(query.StateAwaitingInputs))
		h.processors["h2"].Registry().Remove("rollback-1")
		h.processors["h3"].Registry().Remove("rollback-1")
		_, err = h.processors["h1"].NewQuery(ctx, "rollback-1", ring, "fp31")
		Expect(err).NotTo(HaveOccurred(), "retry with the same id must not see a stale AlreadyRunning")
	})

	It("rejects a prepare request that names the receiver H1", func() {
		h := newHarness(nil)
		defer h.close()

		badRoles, err := ids.NewRoleAssignment("h3", "h1", "h2")
		Expect(err).NotTo(HaveOccurred())

		req := transport.PrepareQueryRequest{QueryId: "wrong-target-1", Roles: badRoles, Field: "fp31", Origin: "h1"}
		err = h.processors["h3"].Prepare(context.Background(), req)

		var wrongTarget *coreerr.WrongTargetError
		Expect(err).To(BeAssignableToTypeOf(wrongTarget))

		_, err = h.processors["h3"].Status("wrong-target-1")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("duplicate query id", func() {
	// Scenario 3: a second new_query for an id that already has a live
	// entry reports AlreadyRunning rather than silently clobbering it.
	It("reports AlreadyRunning without disturbing the existing entry", func() {
		h := newHarness(nil)
		defer h.close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err := h.processors["h1"].NewQuery(ctx, "dup-1", ring, "fp31")
		Expect(err).NotTo(HaveOccurred())

		_, err = h.processors["h1"].NewQuery(ctx, "dup-1", ring, "fp31")
		Expect(err).To(MatchError(query.ErrAlreadyRunning))
	})
})

var _ = Describe("multiply query executed through the processor", func() {
	// Scenario 4: a=4, b=5 over Fp31, driven entirely through
	// NewQuery/ReceiveInputs/Complete (not executor.RunRound directly),
	// reconstructs to 20.
	It("reconstructs the product via NewQuery, ReceiveInputs, and Complete", func() {
		rng := rand.New(rand.NewSource(4831))
		a := field.NewFp31(4)
		b := field.NewFp31(5)
		aShares := share.ShareOf3(a, func() field.Fp { return field.NewFp31(uint64(rng.Intn(31))) })
		bShares := share.ShareOf3(b, func() field.Fp { return field.NewFp31(uint64(rng.Intn(31))) })

		execs := make(map[ids.HelperIdentity]executor.Executor, 3)
		for i, id := range ring {
			i := i
			execs[id] = executor.NewMultiply(func() ([]share.Share[field.Fp], []share.Share[field.Fp], error) {
				return []share.Share[field.Fp]{aShares[i]}, []share.Share[field.Fp]{bShares[i]}, nil
			})
		}

		h := newHarness(execs)
		defer h.close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := h.processors["h1"].NewQuery(ctx, "mul-scenario-4", ring, "fp31")
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() query.State {
			st, err := h.processors["h2"].Status("mul-scenario-4")
			if err != nil {
				return 0
			}
			return st
		}).Should(Equal(query.StateAwaitingInputs))

		errs := make(chan error, 3)
		for _, id := range ring {
			id := id
			go func() { errs <- h.processors[id].ReceiveInputs(ctx, "mul-scenario-4", nil, nil) }()
		}
		for range ring {
			Expect(<-errs).NotTo(HaveOccurred())
		}

		results := make(map[ids.HelperIdentity]share.Share[field.Fp], 3)
		for _, id := range ring {
			result, err := h.processors[id].Complete(ctx, "mul-scenario-4")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Output).To(HaveLen(2))
			results[id] = share.Share[field.Fp]{
				Left:  field.FpFromBytes(31, result.Output[0:1]),
				Right: field.FpFromBytes(31, result.Output[1:2]),
			}
		}

		product := [3]share.Share[field.Fp]{results["h1"], results["h2"], results["h3"]}
		got := share.Reconstruct(product)
		Expect(field.NewFp31(20).Equal(got)).To(BeTrue())
	})
})

var _ = Describe("status polling observes completion", func() {
	// Scenario 5: start_query, then poll status repeatedly until it
	// reports Completed on its own (no explicit complete() call yet),
	// and complete() afterward returns the same result the poll saw.
	It("upgrades Running to Completed purely through repeated status polls", func() {
		fe := newFakeExecutor(executor.Result{Output: []byte("polled-result")})
		h := newHarness(map[ids.HelperIdentity]executor.Executor{"h1": fe})
		defer h.close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err := h.processors["h1"].NewQuery(ctx, "poll-1", ring, "fp31")
		Expect(err).NotTo(HaveOccurred())
		Expect(h.processors["h1"].ReceiveInputs(ctx, "poll-1", nil, nil)).To(Succeed())

		st, err := h.processors["h1"].Status("poll-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(st).To(Equal(query.StateRunning))

		fe.rq.finish()

		Eventually(func() query.State {
			st, err := h.processors["h1"].Status("poll-1")
			if err != nil {
				return 0
			}
			return st
		}).Should(Equal(query.StateCompleted))

		result, err := h.processors["h1"].Complete(ctx, "poll-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Output).To(Equal([]byte("polled-result")))
	})
})

var _ = Describe("channel ordering", func() {
	// Scenario 6: send P0..P4 in order on ChannelId{Role: H2, Step:
	// "x"}, while concurrently requesting RecordId 3 before RecordId
	// 0. Both sides must resolve correctly with no duplicate
	// deliveries, and the channel must be idle once every record has
	// been consumed.
	It("delivers every record exactly once regardless of request order", func() {
		net := transport.NewInMemoryNetwork(ring)
		log := telemetry.NewNop()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		roles, err := ids.NewRoleAssignment("h1", "h2", "h3")
		Expect(err).NotTo(HaveOccurred())
		cfg := gateway.Config{SendWindow: 8, ReceiveWindow: 8}

		gw1 := gateway.New(ctx, "q1", "h1", roles, net.For("h1"), cfg, log)
		defer gw1.Close()
		gw2 := gateway.New(ctx, "q1", "h2", roles, net.For("h2"), cfg, log)
		defer gw2.Close()

		channel := ids.ChannelId{Role: ids.H2, Step: "x"}
		sender := gw1.SendingEnd(channel, "h2")
		receiver := gw2.ReceivingEnd(channel)

		var mu sync.Mutex
		results := make(map[ids.RecordId][]byte, 5)
		var wg sync.WaitGroup

		for _, r := range []ids.RecordId{3, 0, 1, 4, 2} {
			r := r
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				payload, err := receiver.Receive(ctx, r)
				Expect(err).NotTo(HaveOccurred())
				mu.Lock()
				results[r] = payload
				mu.Unlock()
			}()
		}

		for i := 0; i < 5; i++ {
			Expect(sender.Send(ctx, ids.RecordId(i), []byte{'P', byte('0' + i)})).To(Succeed())
		}

		wg.Wait()

		for i := 0; i < 5; i++ {
			Expect(results[ids.RecordId(i)]).To(Equal([]byte{'P', byte('0' + i)}))
		}
		Expect(gw2.Idle()).To(BeTrue())
	})
})
