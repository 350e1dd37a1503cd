package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/paperlane/paperlane/internal/events"
	"github.com/paperlane/paperlane/internal/service"
	"github.com/paperlane/paperlane/internal/service/mappers"
	"github.com/paperlane/paperlane/internal/store/model"
)

var _ = Describe("account service", func() {
	var env *testEnv

	BeforeEach(func() {
		env = newTestEnv()
	})

	AfterEach(func() {
		env.Close()
	})

	// registerWithProfile returns an account waiting for payment.
	registerWithProfile := func() *model.Account {
		account, err := env.accounts.Register(context.TODO(), owner, owner.ID)
		Expect(err).To(BeNil())
		account, err = env.accounts.CompleteProfile(context.TODO(), owner, account.ID, validProfile())
		Expect(err).To(BeNil())
		return account
	}

	Context("registration", func() {
		It("creates an account waiting for its profile", func() {
			account, err := env.accounts.Register(context.TODO(), owner, owner.ID)
			Expect(err).To(BeNil())
			Expect(account.Status).To(Equal(model.AccountPendingProfile))
			Expect(account.IsActive).To(BeFalse())

			activities := env.activities(service.ResourceAccount, account.ID.String())
			Expect(activities).To(HaveLen(1))
			Expect(activities[0].Action).To(Equal(service.ActionUserRegistered))
		})

		It("returns the existing account when registering twice", func() {
			first, err := env.accounts.Register(context.TODO(), owner, owner.ID)
			Expect(err).To(BeNil())
			second, err := env.accounts.Register(context.TODO(), owner, owner.ID)
			Expect(err).To(BeNil())
			Expect(second.ID).To(Equal(first.ID))
			Expect(env.count("accounts")).To(Equal(int64(1)))
		})

		It("refuses to register someone else", func() {
			_, err := env.accounts.Register(context.TODO(), owner, other.ID)
			Expect(errors.Is(err, service.ErrUnauthorized)).To(BeTrue())
			Expect(env.count("accounts")).To(BeZero())
		})

		It("returns the actor's own account", func() {
			account, err := env.accounts.Register(context.TODO(), owner, owner.ID)
			Expect(err).To(BeNil())

			mine, err := env.accounts.MyAccount(context.TODO(), owner)
			Expect(err).To(BeNil())
			Expect(mine.ID).To(Equal(account.ID))

			_, err = env.accounts.MyAccount(context.TODO(), other)
			Expect(errors.Is(err, service.ErrNotFound)).To(BeTrue())
		})
	})

	Context("profile", func() {
		It("moves the account to payment", func() {
			account := registerWithProfile()
			Expect(account.Status).To(Equal(model.AccountPendingPayment))

			profile, err := env.store.Profile().GetByAccount(context.TODO(), account.ID)
			Expect(err).To(BeNil())
			Expect(profile.FullName).To(Equal("Siti Rahma"))
		})

		It("refuses a second profile", func() {
			account := registerWithProfile()

			_, err := env.accounts.CompleteProfile(context.TODO(), owner, account.ID, validProfile())
			Expect(errors.Is(err, service.ErrAlreadyCompleted)).To(BeTrue())
			Expect(errors.Is(err, service.ErrInvalidState)).To(BeTrue())
			Expect(env.count("profiles")).To(Equal(int64(1)))
		})

		It("requires a name and phone", func() {
			account, err := env.accounts.Register(context.TODO(), owner, owner.ID)
			Expect(err).To(BeNil())

			_, err = env.accounts.CompleteProfile(context.TODO(), owner, account.ID, mappers.ProfileForm{FullName: "Siti"})
			var validationErr *service.ErrValidation
			Expect(errors.As(err, &validationErr)).To(BeTrue())
			Expect(env.count("profiles")).To(BeZero())
		})

		It("refuses another user's account", func() {
			account, err := env.accounts.Register(context.TODO(), owner, owner.ID)
			Expect(err).To(BeNil())

			_, err = env.accounts.CompleteProfile(context.TODO(), other, account.ID, validProfile())
			Expect(errors.Is(err, service.ErrUnauthorized)).To(BeTrue())
			Expect(env.count("profiles")).To(BeZero())
		})
	})

	Context("payment", func() {
		It("creates a pending proof and subscription", func() {
			account := registerWithProfile()

			proof, err := env.accounts.SubmitPayment(context.TODO(), owner, account.ID, validPayment())
			Expect(err).To(BeNil())
			Expect(proof.Status).To(Equal(model.PaymentPending))
			Expect(proof.Amount).To(Equal(int64(50000)))

			sub, err := env.store.Subscription().Get(context.TODO(), proof.SubscriptionID)
			Expect(err).To(BeNil())
			Expect(sub.Status).To(Equal(model.SubscriptionPending))

			stored, err := env.store.Account().Get(context.TODO(), account.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.AccountPendingVerification))
		})

		It("refuses a second proof while one is pending", func() {
			account := registerWithProfile()
			first, err := env.accounts.SubmitPayment(context.TODO(), owner, account.ID, validPayment())
			Expect(err).To(BeNil())

			_, err = env.accounts.SubmitPayment(context.TODO(), owner, account.ID, validPayment())
			Expect(errors.Is(err, service.ErrDuplicateSubmission)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(first.ID.String()))
			Expect(env.count("payment_proofs")).To(Equal(int64(1)))
			Expect(env.count("subscriptions")).To(Equal(int64(1)))
		})

		It("refuses an unknown package", func() {
			account := registerWithProfile()
			form := validPayment()
			form.PackageCode = "PLATINUM"

			_, err := env.accounts.SubmitPayment(context.TODO(), owner, account.ID, form)
			Expect(errors.Is(err, service.ErrNotFound)).To(BeTrue())
			Expect(env.count("subscriptions")).To(BeZero())
		})

		It("refuses payment before the profile is complete", func() {
			account, err := env.accounts.Register(context.TODO(), owner, owner.ID)
			Expect(err).To(BeNil())

			_, err = env.accounts.SubmitPayment(context.TODO(), owner, account.ID, validPayment())
			Expect(errors.Is(err, service.ErrInvalidState)).To(BeTrue())
		})
	})

	Context("verification", func() {
		var (
			account *model.Account
			proof   *model.PaymentProof
		)

		BeforeEach(func() {
			account = registerWithProfile()
			var err error
			proof, err = env.accounts.SubmitPayment(context.TODO(), owner, account.ID, validPayment())
			Expect(err).To(BeNil())
		})

		It("activates the subscription and the account", func() {
			before := time.Now().UTC()
			verified, err := env.accounts.VerifyPayment(context.TODO(), admin, proof.ID, nil)
			Expect(err).To(BeNil())
			Expect(verified.Status).To(Equal(model.PaymentVerified))
			Expect(*verified.DecidedBy).To(Equal(admin.ID))

			sub, err := env.store.Subscription().Get(context.TODO(), proof.SubscriptionID)
			Expect(err).To(BeNil())
			Expect(sub.Status).To(Equal(model.SubscriptionActive))
			Expect(sub.EndDate).ToNot(BeNil())
			Expect(*sub.EndDate).To(BeTemporally("~", before.AddDate(0, 0, 30), time.Minute))

			stored, err := env.store.Account().Get(context.TODO(), account.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.AccountActive))
			Expect(stored.IsActive).To(BeTrue())

			Eventually(env.writer.Types).Should(ContainElement(events.PaymentMessageKind))
		})

		It("is admin only", func() {
			_, err := env.accounts.VerifyPayment(context.TODO(), owner, proof.ID, nil)
			Expect(errors.Is(err, service.ErrUnauthorized)).To(BeTrue())

			stored, err := env.store.Payment().Get(context.TODO(), proof.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.PaymentPending))
		})

		It("refuses a proof that was already decided", func() {
			_, err := env.accounts.VerifyPayment(context.TODO(), admin, proof.ID, nil)
			Expect(err).To(BeNil())

			_, err = env.accounts.RejectPayment(context.TODO(), admin, proof.ID, "wrong amount", nil)
			Expect(errors.Is(err, service.ErrAlreadyDecided)).To(BeTrue())
		})

		It("returns not found for an unknown proof", func() {
			_, err := env.accounts.VerifyPayment(context.TODO(), admin, uuid.New(), nil)
			Expect(errors.Is(err, service.ErrNotFound)).To(BeTrue())
		})

		It("lets exactly one of two concurrent decisions win", func() {
			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					_, errs[i] = env.accounts.VerifyPayment(context.TODO(), admin, proof.ID, nil)
				}(i)
			}
			wg.Wait()

			succeeded := 0
			for _, err := range errs {
				if err == nil {
					succeeded++
					continue
				}
				Expect(errors.Is(err, service.ErrInvalidState) || errors.Is(err, service.ErrStaleState)).To(BeTrue())
			}
			Expect(succeeded).To(Equal(1))

			verified := 0
			for _, a := range env.activities(service.ResourcePaymentProof, proof.ID.String()) {
				if a.Action == service.ActionPaymentVerified {
					verified++
				}
			}
			Expect(verified).To(Equal(1))
		})

		It("requires a reason to reject and changes nothing without one", func() {
			_, err := env.accounts.RejectPayment(context.TODO(), admin, proof.ID, "   ", nil)
			Expect(errors.Is(err, service.ErrMissingReason)).To(BeTrue())

			stored, err := env.store.Payment().Get(context.TODO(), proof.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.PaymentPending))
			Expect(stored.Version).To(Equal(proof.Version))

			acc, err := env.store.Account().Get(context.TODO(), account.ID)
			Expect(err).To(BeNil())
			Expect(acc.Status).To(Equal(model.AccountPendingVerification))
		})

		It("rejects the proof, cancels the subscription and reopens payment", func() {
			rejected, err := env.accounts.RejectPayment(context.TODO(), admin, proof.ID, "transfer not found", nil)
			Expect(err).To(BeNil())
			Expect(rejected.Status).To(Equal(model.PaymentRejected))
			Expect(*rejected.RejectionReason).To(Equal("transfer not found"))

			sub, err := env.store.Subscription().Get(context.TODO(), proof.SubscriptionID)
			Expect(err).To(BeNil())
			Expect(sub.Status).To(Equal(model.SubscriptionCancelled))

			acc, err := env.store.Account().Get(context.TODO(), account.ID)
			Expect(err).To(BeNil())
			Expect(acc.Status).To(Equal(model.AccountPendingPayment))

			_, err = env.accounts.SubmitPayment(context.TODO(), owner, account.ID, validPayment())
			Expect(err).To(BeNil())
		})

		It("dispatches a decision form", func() {
			_, err := env.accounts.Decide(context.TODO(), admin, proof.ID, mappers.DecisionForm{Decision: mappers.DecisionReject})
			Expect(errors.Is(err, service.ErrMissingReason)).To(BeTrue())

			decided, err := env.accounts.Decide(context.TODO(), admin, proof.ID, mappers.DecisionForm{Decision: mappers.DecisionVerify})
			Expect(err).To(BeNil())
			Expect(decided.Status).To(Equal(model.PaymentVerified))
		})

		It("lists pending proofs with their account and package", func() {
			reviews, err := env.accounts.ListPendingPaymentProofs(context.TODO(), admin)
			Expect(err).To(BeNil())
			Expect(reviews).To(HaveLen(1))
			Expect(reviews[0].Proof.ID).To(Equal(proof.ID))
			Expect(reviews[0].Account.ID).To(Equal(account.ID))
			Expect(reviews[0].Package).ToNot(BeNil())
			Expect(reviews[0].Package.Code).To(Equal("PROPOSAL"))
			Expect(reviews[0].Profile).ToNot(BeNil())

			_, err = env.accounts.ListPendingPaymentProofs(context.TODO(), owner)
			Expect(errors.Is(err, service.ErrUnauthorized)).To(BeTrue())
		})
	})

	Context("expiry", func() {
		It("expires subscriptions past their end date", func() {
			account := env.activate(owner)

			expired, err := env.accounts.ExpireSubscriptions(context.TODO(), time.Now().UTC())
			Expect(err).To(BeNil())
			Expect(expired).To(BeZero())

			expired, err = env.accounts.ExpireSubscriptions(context.TODO(), time.Now().UTC().AddDate(0, 0, 31))
			Expect(err).To(BeNil())
			Expect(expired).To(Equal(1))

			stored, err := env.store.Account().Get(context.TODO(), account.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.AccountExpired))
			Expect(stored.IsActive).To(BeFalse())

			// a second sweep finds nothing left to do
			expired, err = env.accounts.ExpireSubscriptions(context.TODO(), time.Now().UTC().AddDate(0, 0, 31))
			Expect(err).To(BeNil())
			Expect(expired).To(BeZero())
		})

		It("lets an expired account renew", func() {
			account := env.activate(owner)
			_, err := env.accounts.ExpireSubscriptions(context.TODO(), time.Now().UTC().AddDate(0, 0, 31))
			Expect(err).To(BeNil())

			status, err := env.accounts.Status(context.TODO(), owner, account.ID)
			Expect(err).To(BeNil())
			Expect(status.NextStep).To(Equal(service.NextStepRenew))

			_, err = env.accounts.SubmitPayment(context.TODO(), owner, account.ID, validPayment())
			Expect(err).To(BeNil())
		})

		It("blocks submission once the end date passed, before the sweep runs", func() {
			account := env.activate(owner)
			doc := env.createDocument(owner)

			sub, err := env.store.Subscription().Current(context.TODO(), account.ID)
			Expect(err).To(BeNil())
			past := time.Now().UTC().Add(-time.Minute)
			sub.EndDate = &past
			_, err = env.store.Subscription().Update(context.TODO(), *sub)
			Expect(err).To(BeNil())

			_, err = env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(errors.Is(err, service.ErrAccountInactive)).To(BeTrue())

			status, err := env.accounts.Status(context.TODO(), owner, account.ID)
			Expect(err).To(BeNil())
			Expect(status.Account.Status).To(Equal(model.AccountActive))
			Expect(status.Active).To(BeFalse())
			Expect(status.NextStep).To(Equal(service.NextStepRenew))
		})

		It("reports the account inactive on every read once the end date passed", func() {
			account := env.activate(owner)

			mine, err := env.accounts.MyAccount(context.TODO(), owner)
			Expect(err).To(BeNil())
			Expect(mine.IsActive).To(BeTrue())

			sub, err := env.store.Subscription().Current(context.TODO(), account.ID)
			Expect(err).To(BeNil())
			past := time.Now().UTC().Add(-time.Hour)
			sub.EndDate = &past
			_, err = env.store.Subscription().Update(context.TODO(), *sub)
			Expect(err).To(BeNil())

			// the sweep has not run, the stored flag is still set
			stored, err := env.store.Account().Get(context.TODO(), account.ID)
			Expect(err).To(BeNil())
			Expect(stored.IsActive).To(BeTrue())

			mine, err = env.accounts.MyAccount(context.TODO(), owner)
			Expect(err).To(BeNil())
			Expect(mine.IsActive).To(BeFalse())

			got, err := env.accounts.GetAccount(context.TODO(), admin, account.ID)
			Expect(err).To(BeNil())
			Expect(got.IsActive).To(BeFalse())

			status, err := env.accounts.Status(context.TODO(), owner, account.ID)
			Expect(err).To(BeNil())
			Expect(status.Active).To(BeFalse())
			Expect(status.Account.IsActive).To(BeFalse())
		})
	})

	Context("suspension", func() {
		It("suspends and reinstates an active account", func() {
			account := env.activate(owner)

			suspended, err := env.accounts.Suspend(context.TODO(), admin, account.ID, "chargeback")
			Expect(err).To(BeNil())
			Expect(suspended.Status).To(Equal(model.AccountSuspended))
			Expect(*suspended.SuspendedReason).To(Equal("chargeback"))

			doc := env.createDocument(owner)
			_, err = env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(errors.Is(err, service.ErrAccountInactive)).To(BeTrue())

			status, err := env.accounts.Status(context.TODO(), owner, account.ID)
			Expect(err).To(BeNil())
			Expect(status.NextStep).To(Equal(service.NextStepContactSupport))

			reinstated, err := env.accounts.Reinstate(context.TODO(), admin, account.ID)
			Expect(err).To(BeNil())
			Expect(reinstated.Status).To(Equal(model.AccountActive))
			Expect(reinstated.SuspendedReason).To(BeNil())
		})

		It("reinstates to expired when the subscription ended meanwhile", func() {
			account := env.activate(owner)
			_, err := env.accounts.Suspend(context.TODO(), admin, account.ID, "review")
			Expect(err).To(BeNil())

			expired, err := env.accounts.ExpireSubscriptions(context.TODO(), time.Now().UTC().AddDate(0, 0, 31))
			Expect(err).To(BeNil())
			Expect(expired).To(Equal(1))

			stored, err := env.store.Account().Get(context.TODO(), account.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.AccountSuspended))

			reinstated, err := env.accounts.Reinstate(context.TODO(), admin, account.ID)
			Expect(err).To(BeNil())
			Expect(reinstated.Status).To(Equal(model.AccountExpired))
			Expect(reinstated.IsActive).To(BeFalse())
		})

		It("requires a reason and an admin", func() {
			account := env.activate(owner)

			_, err := env.accounts.Suspend(context.TODO(), admin, account.ID, "")
			Expect(errors.Is(err, service.ErrMissingReason)).To(BeTrue())

			_, err = env.accounts.Suspend(context.TODO(), owner, account.ID, "self")
			Expect(errors.Is(err, service.ErrUnauthorized)).To(BeTrue())
		})

		It("refuses to reinstate an account that is not suspended", func() {
			account := env.activate(owner)

			_, err := env.accounts.Reinstate(context.TODO(), admin, account.ID)
			Expect(errors.Is(err, service.ErrInvalidState)).To(BeTrue())
		})
	})

	Context("status", func() {
		It("walks the next step through the lifecycle", func() {
			account, err := env.accounts.Register(context.TODO(), owner, owner.ID)
			Expect(err).To(BeNil())

			next := func() service.NextStep {
				status, err := env.accounts.Status(context.TODO(), owner, account.ID)
				Expect(err).To(BeNil())
				return status.NextStep
			}

			Expect(next()).To(Equal(service.NextStepCompleteProfile))

			_, err = env.accounts.CompleteProfile(context.TODO(), owner, account.ID, validProfile())
			Expect(err).To(BeNil())
			Expect(next()).To(Equal(service.NextStepSubmitPayment))

			proof, err := env.accounts.SubmitPayment(context.TODO(), owner, account.ID, validPayment())
			Expect(err).To(BeNil())
			Expect(next()).To(Equal(service.NextStepAwaitVerification))

			_, err = env.accounts.VerifyPayment(context.TODO(), admin, proof.ID, nil)
			Expect(err).To(BeNil())

			status, err := env.accounts.Status(context.TODO(), owner, account.ID)
			Expect(err).To(BeNil())
			Expect(status.NextStep).To(Equal(service.NextStepNone))
			Expect(status.Active).To(BeTrue())
			Expect(status.Package).ToNot(BeNil())
			Expect(status.Package.Code).To(Equal("PROPOSAL"))
		})

		It("is not visible to other users", func() {
			account, err := env.accounts.Register(context.TODO(), owner, owner.ID)
			Expect(err).To(BeNil())

			_, err = env.accounts.Status(context.TODO(), other, account.ID)
			Expect(errors.Is(err, service.ErrUnauthorized)).To(BeTrue())

			_, err = env.accounts.Status(context.TODO(), admin, account.ID)
			Expect(err).To(BeNil())
		})
	})

	It("lists the seeded packages", func() {
		packages, err := env.accounts.ListPackages(context.TODO())
		Expect(err).To(BeNil())
		codes := []string{}
		for _, p := range packages {
			codes = append(codes, p.Code)
		}
		Expect(codes).To(ConsistOf("PROPOSAL", "HASIL", "TUTUP"))
	})
})

var _ = Describe("gate", func() {
	It("lets owners and admins through", func() {
		Expect(service.CanAccess(owner, owner.ID)).To(BeTrue())
		Expect(service.CanAccess(admin, owner.ID)).To(BeTrue())
		Expect(service.CanAccess(other, owner.ID)).To(BeFalse())
	})

	It("requires an admin", func() {
		Expect(service.RequireAdmin(admin)).To(Succeed())
		Expect(errors.Is(service.RequireAdmin(owner), service.ErrUnauthorized)).To(BeTrue())
	})

	It("names the resource it refused", func() {
		id := uuid.New()
		err := service.Authorize(other, owner.ID, service.ResourceDocument, id)
		Expect(errors.Is(err, service.ErrUnauthorized)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring(id.String()))
	})
})
