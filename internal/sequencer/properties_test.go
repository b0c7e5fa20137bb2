package sequencer_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"github.com/imamik/k8solo/internal/sequencer"
)

// buildSteps returns n steps named s1..sn. The step at failAt (1-based)
// fails; 0 means none fail.
func buildSteps(n, failAt int, calls *[]string) []sequencer.Step {
	steps := make([]sequencer.Step, 0, n)
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("s%d", i)
		fail := i == failAt
		steps = append(steps, sequencer.Step{
			Name: name,
			Action: func(context.Context) error {
				*calls = append(*calls, name)
				if fail {
					return errors.New("injected failure")
				}
				return nil
			},
		})
	}
	return steps
}

func names(from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("s%d", i))
	}
	return out
}

var _ = Describe("Sequencer", func() {
	var (
		ctx   context.Context
		store sequencer.MarkerStore
		calls []string
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = sequencer.NewFileStore(afero.NewMemMapFs(), "/state")
		calls = nil
	})

	DescribeTable("is idempotent",
		func(n int) {
			steps := buildSteps(n, 0, &calls)
			Expect(sequencer.New(store).Run(ctx, steps)).To(Succeed())
			Expect(calls).To(HaveLen(n))

			calls = nil
			Expect(sequencer.New(store).Run(ctx, steps)).To(Succeed())
			Expect(calls).To(BeEmpty())
		},
		Entry("one step", 1),
		Entry("three steps", 3),
		Entry("fourteen steps", 14),
	)

	DescribeTable("fails fast and resumes at the failed step",
		func(n, k int) {
			err := sequencer.New(store).Run(ctx, buildSteps(n, k, &calls))

			var se *sequencer.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Step).To(Equal(fmt.Sprintf("s%d", k)))
			Expect(calls).To(Equal(names(1, k)))

			calls = nil
			Expect(sequencer.New(store).Run(ctx, buildSteps(n, 0, &calls))).To(Succeed())
			Expect(calls).To(Equal(names(k, n)))
		},
		Entry("first of three", 3, 1),
		Entry("middle of five", 5, 3),
		Entry("last of four", 4, 4),
	)

	It("never runs cleanup after a failure", func() {
		cleaned := false
		seq := sequencer.New(store, sequencer.WithCleanup(func(context.Context) error {
			cleaned = true
			return store.Clear()
		}))

		Expect(seq.Run(ctx, buildSteps(3, 2, &calls))).NotTo(Succeed())
		Expect(cleaned).To(BeFalse())

		markers, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(markers).To(HaveLen(1))
	})

	It("clears markers through cleanup after a full pass", func() {
		seq := sequencer.New(store, sequencer.WithCleanup(func(context.Context) error {
			return store.Clear()
		}))

		Expect(seq.Run(ctx, buildSteps(3, 0, &calls))).To(Succeed())
		markers, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(markers).To(BeEmpty())
	})

	It("classifies precondition failures and writes no marker", func() {
		steps := []sequencer.Step{{
			Name: "network",
			Action: func(context.Context) error {
				return sequencer.Precondition(errors.New("interface eth0 not found"))
			},
		}}

		err := sequencer.New(store).Run(ctx, steps)
		var se *sequencer.StepError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Kind).To(Equal(sequencer.KindPrecondition))

		has, err := store.Has("network")
		Expect(err).NotTo(HaveOccurred())
		Expect(has).To(BeFalse())
	})

	It("works the same against the in-memory store", func() {
		mem := sequencer.NewMemoryStore()
		Expect(sequencer.New(mem).Run(ctx, buildSteps(2, 0, &calls))).To(Succeed())
		calls = nil
		Expect(sequencer.New(mem).Run(ctx, buildSteps(2, 0, &calls))).To(Succeed())
		Expect(calls).To(BeEmpty())
	})
})
