package ledger_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cadence.app/outreach/internal/ledger"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/store"
	"cadence.app/outreach/internal/store/storetest"
)

type failingUsageStore struct {
	store.RateUsageStore
}

func (failingUsageStore) Reserve(context.Context, int64, time.Time, model.ActionKind, int32) (int32, bool, error) {
	return 0, false, errors.New("connection reset")
}

var _ = Describe("Ledger", func() {
	var (
		ctx     context.Context
		mem     *storetest.Memory
		l       *ledger.Ledger
		account model.Account
		now     time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = storetest.NewMemory()
		l = ledger.New(mem.RateUsage(), ledger.Limits{Invites: 3, Messages: 5, FirstDegreeMessages: 2}, 90)
		account = mem.PutAccount(model.Account{ProviderAccountID: "acc-1", Timezone: "UTC"})
		now = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	})

	Describe("TryReserve", func() {
		It("grants exactly the limit and then refuses", func() {
			for i := 0; i < 3; i++ {
				ok, err := l.TryReserve(ctx, account, model.ActionKindInvite, now)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())
			}

			ok, err := l.TryReserve(ctx, account, model.ActionKindInvite, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(mem.Usage(account.ID, now, model.ActionKindInvite)).To(Equal(int32(3)))
		})

		It("counts each action kind separately", func() {
			for i := 0; i < 3; i++ {
				_, _ = l.TryReserve(ctx, account, model.ActionKindInvite, now)
			}
			ok, err := l.TryReserve(ctx, account, model.ActionKindMessage, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("starts a fresh counter on the next local day", func() {
			for i := 0; i < 3; i++ {
				_, _ = l.TryReserve(ctx, account, model.ActionKindInvite, now)
			}
			ok, err := l.TryReserve(ctx, account, model.ActionKindInvite, now.Add(24*time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("uses the account zone to pick the day", func() {
			tokyo := mem.PutAccount(model.Account{ProviderAccountID: "acc-2", Timezone: "Asia/Tokyo"})
			// 23:30 UTC on March 5 is already March 6 in Tokyo.
			late := time.Date(2025, 3, 5, 23, 30, 0, 0, time.UTC)
			Expect(ledger.LocalDay(tokyo, late).Day()).To(Equal(6))
		})

		It("prefers the account's own limit over the default", func() {
			one := int32(1)
			account.DailyInviteLimit = &one
			ok, _ := l.TryReserve(ctx, account, model.ActionKindInvite, now)
			Expect(ok).To(BeTrue())
			ok, _ = l.TryReserve(ctx, account, model.ActionKindInvite, now)
			Expect(ok).To(BeFalse())
		})

		It("treats a zero limit as disabled", func() {
			zero := int32(0)
			account.DailyMessageLimit = &zero
			ok, err := l.TryReserve(ctx, account, model.ActionKindMessage, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("never grants more than the limit under concurrent callers", func() {
			var (
				wg      sync.WaitGroup
				granted atomic.Int32
			)
			for i := 0; i < 40; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					ok, err := l.TryReserve(ctx, account, model.ActionKindMessage, now)
					Expect(err).NotTo(HaveOccurred())
					if ok {
						granted.Add(1)
					}
				}()
			}
			wg.Wait()
			Expect(granted.Load()).To(Equal(int32(5)))
		})

		It("wraps storage errors", func() {
			broken := ledger.New(failingUsageStore{}, ledger.Limits{Invites: 3}, 0)
			_, err := broken.TryReserve(ctx, account, model.ActionKindInvite, now)
			Expect(err).To(MatchError(ContainSubstring("connection reset")))
		})
	})

	Describe("Usage", func() {
		It("reports every kind with its limit", func() {
			_, _ = l.TryReserve(ctx, account, model.ActionKindInvite, now)

			usage, err := l.Usage(ctx, account, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(usage).To(HaveLen(3))
			Expect(usage[0]).To(Equal(ledger.Usage{Kind: model.ActionKindInvite, Count: 1, Limit: 3}))
			Expect(usage[0].Remaining()).To(Equal(int32(2)))
			Expect(usage[1].Count).To(BeZero())
		})
	})

	Describe("Rollover", func() {
		It("materializes today's counters and prunes old ones", func() {
			old := now.Add(-120 * 24 * time.Hour)
			_, _ = l.TryReserve(ctx, account, model.ActionKindInvite, old)

			Expect(l.Rollover(ctx, []model.Account{account}, now)).To(Succeed())

			rows, err := mem.RateUsage().ListForDay(ctx, account.ID, ledger.LocalDay(account, now))
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(mem.Usage(account.ID, old, model.ActionKindInvite)).To(BeZero())
		})
	})
})
