package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/auth"
	"github.com/paperlane/paperlane/internal/service/mappers"
	"github.com/paperlane/paperlane/internal/store"
	"github.com/paperlane/paperlane/internal/store/model"
	"github.com/paperlane/paperlane/pkg/log"
	"github.com/paperlane/paperlane/pkg/metrics"
)

type NextStep string

const (
	NextStepCompleteProfile   NextStep = "COMPLETE_PROFILE"
	NextStepSubmitPayment     NextStep = "SUBMIT_PAYMENT"
	NextStepAwaitVerification NextStep = "AWAIT_VERIFICATION"
	NextStepNone              NextStep = "NONE"
	NextStepRenew             NextStep = "RENEW"
	NextStepContactSupport    NextStep = "CONTACT_SUPPORT"
)

// AccountStatus is the account as seen by its owner: where it stands and what to do next.
type AccountStatus struct {
	Account      model.Account
	Profile      *model.Profile
	Subscription *model.Subscription
	Package      *model.Package
	PendingProof *model.PaymentProof
	// Active is computed at read time and does not wait for the expiry sweep.
	Active   bool
	NextStep NextStep
}

// PaymentReview is a pending payment proof with what an administrator needs to decide on it.
type PaymentReview struct {
	Proof   model.PaymentProof
	Account model.Account
	Profile *model.Profile
	Package *model.Package
}

// AccountService drives the account lifecycle: profile, payment, verification, expiry and suspension.
type AccountService struct {
	store    store.Store
	activity *ActivityRecorder
	logger   *log.StructuredLogger
	now      func() time.Time
}

func NewAccountService(s store.Store, activity *ActivityRecorder) *AccountService {
	return &AccountService{
		store:    s,
		activity: activity,
		logger:   log.NewDebugLogger("account_service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register creates the account of ownerID. Registering twice returns the existing account.
func (a *AccountService) Register(ctx context.Context, actor auth.User, ownerID string) (*model.Account, error) {
	tracer := a.logger.WithContext(ctx).Operation("register_account").
		WithString("owner_id", ownerID).
		Build()

	if !CanAccess(actor, ownerID) {
		return nil, &ErrUnauthorizedAccess{fmt.Errorf("%w: %s may not register %s", ErrUnauthorized, actor.ID, ownerID)}
	}

	existing, err := a.store.Account().GetByOwner(ctx, ownerID)
	if err == nil {
		tracer.Success().WithBool("existing", true).Log()
		return existing, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}

	var (
		account  *model.Account
		activity *model.Activity
	)
	err = inTransaction(ctx, a.store, func(ctx context.Context) error {
		var err error
		account, err = a.store.Account().Create(ctx, model.Account{OwnerID: ownerID, Status: model.AccountPendingProfile})
		if err != nil {
			return err
		}

		activity, err = a.activity.Record(ctx, ActivityEntry{
			Actor:      actor,
			Action:     ActionUserRegistered,
			Resource:   ResourceAccount,
			ResourceID: account.ID.String(),
			ToStatus:   string(account.Status),
		})
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return a.store.Account().GetByOwner(ctx, ownerID)
		}
		tracer.Error(err).Log()
		return nil, err
	}

	a.activity.Publish(ctx, activity)
	tracer.Success().WithUUID("account_id", account.ID).Log()

	return account, nil
}

func (a *AccountService) GetAccount(ctx context.Context, actor auth.User, id uuid.UUID) (*model.Account, error) {
	account, err := a.store.Account().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrAccountNotFound(id)
		}
		return nil, err
	}

	if err := Authorize(actor, account.OwnerID, ResourceAccount, id); err != nil {
		return nil, err
	}
	if account.IsActive, err = accountActive(ctx, a.store, account, a.now()); err != nil {
		return nil, err
	}
	return account, nil
}

// MyAccount returns the account owned by actor.
func (a *AccountService) MyAccount(ctx context.Context, actor auth.User) (*model.Account, error) {
	account, err := a.store.Account().GetByOwner(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, &ErrResourceNotFound{fmt.Errorf("%w: no account for %s", ErrNotFound, actor.ID)}
		}
		return nil, err
	}
	if account.IsActive, err = accountActive(ctx, a.store, account, a.now()); err != nil {
		return nil, err
	}
	return account, nil
}

func (a *AccountService) CompleteProfile(ctx context.Context, actor auth.User, accountID uuid.UUID, form mappers.ProfileForm) (*model.Account, error) {
	tracer := a.logger.WithContext(ctx).Operation("complete_profile").
		WithUUID("account_id", accountID).
		WithString("actor_id", actor.ID).
		Build()

	if err := validateForm(form); err != nil {
		return nil, err
	}
	if _, err := a.GetAccount(ctx, actor, accountID); err != nil {
		return nil, err
	}

	var (
		updated  *model.Account
		activity *model.Activity
	)
	err := withStaleRetry(ctx, "complete_profile", func(ctx context.Context) error {
		return inTransaction(ctx, a.store, func(ctx context.Context) error {
			account, err := a.store.Account().Get(ctx, accountID)
			if err != nil {
				return err
			}

			_, err = a.store.Profile().GetByAccount(ctx, accountID)
			switch {
			case err == nil:
				return NewErrAlreadyCompleted("profile", accountID)
			case !errors.Is(err, store.ErrRecordNotFound):
				return err
			}

			if account.Status != model.AccountPendingProfile {
				return NewErrInvalidState(ResourceAccount, accountID, string(account.Status), "complete profile of")
			}

			if _, err := a.store.Profile().Create(ctx, form.ToProfile(*account)); err != nil {
				return err
			}

			account.Status = model.AccountPendingPayment
			account.IsActive = false
			updated, err = a.store.Account().Update(ctx, *account)
			if err != nil {
				return err
			}

			activity, err = a.activity.Record(ctx, ActivityEntry{
				Actor:      actor,
				Action:     ActionProfileCompleted,
				Resource:   ResourceAccount,
				ResourceID: accountID.String(),
				FromStatus: string(model.AccountPendingProfile),
				ToStatus:   string(updated.Status),
				Details:    map[string]any{"full_name": form.FullName, "institution": form.Institution},
			})
			return err
		})
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	a.activity.Publish(ctx, activity)
	metrics.IncreaseAccountTransitionMetric(string(model.AccountPendingProfile), string(updated.Status))
	tracer.Success().Log()

	return updated, nil
}

// SubmitPayment records a payment proof for a package. The account waits for an administrator afterwards.
// An EXPIRED account may submit again to renew.
func (a *AccountService) SubmitPayment(ctx context.Context, actor auth.User, accountID uuid.UUID, form mappers.PaymentForm) (*model.PaymentProof, error) {
	tracer := a.logger.WithContext(ctx).Operation("submit_payment").
		WithUUID("account_id", accountID).
		WithString("package", form.PackageCode).
		Build()

	if err := validateForm(form); err != nil {
		return nil, err
	}
	if _, err := a.GetAccount(ctx, actor, accountID); err != nil {
		return nil, err
	}

	var (
		proof    *model.PaymentProof
		from     model.AccountStatus
		activity *model.Activity
	)
	err := withStaleRetry(ctx, "submit_payment", func(ctx context.Context) error {
		return inTransaction(ctx, a.store, func(ctx context.Context) error {
			account, err := a.store.Account().Get(ctx, accountID)
			if err != nil {
				return err
			}

			pending, err := a.store.Payment().List(ctx, store.NewPaymentQueryFilter().ByAccount(accountID).ByStatus(model.PaymentPending))
			if err != nil {
				return err
			}
			if len(pending) > 0 {
				return NewErrDuplicateSubmission(accountID, pending[0].ID)
			}

			if account.Status != model.AccountPendingPayment && account.Status != model.AccountExpired {
				return NewErrInvalidState(ResourceAccount, accountID, string(account.Status), "submit payment for")
			}

			pkg, err := a.store.Package().GetByCode(ctx, form.PackageCode)
			if err != nil {
				if errors.Is(err, store.ErrRecordNotFound) {
					return NewErrPackageNotFound(form.PackageCode)
				}
				return err
			}
			if !pkg.Active {
				return NewErrPackageNotFound(form.PackageCode)
			}

			subscription, err := a.store.Subscription().Create(ctx, model.Subscription{
				AccountID: accountID,
				PackageID: pkg.ID,
				Status:    model.SubscriptionPending,
			})
			if err != nil {
				return err
			}

			proof, err = a.store.Payment().Create(ctx, form.ToPaymentProof(*account, *subscription, *pkg, a.now()))
			if err != nil {
				return err
			}

			from = account.Status
			account.Status = model.AccountPendingVerification
			account.IsActive = false
			if _, err := a.store.Account().Update(ctx, *account); err != nil {
				return err
			}

			activity, err = a.activity.Record(ctx, ActivityEntry{
				Actor:      actor,
				Action:     ActionPaymentUploaded,
				Resource:   ResourcePaymentProof,
				ResourceID: proof.ID.String(),
				FromStatus: string(from),
				ToStatus:   string(model.AccountPendingVerification),
				Details:    map[string]any{"account_id": accountID.String(), "package": pkg.Code, "amount": proof.Amount},
			})
			return err
		})
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	a.activity.Publish(ctx, activity)
	metrics.IncreaseAccountTransitionMetric(string(from), string(model.AccountPendingVerification))
	tracer.Success().WithUUID("proof_id", proof.ID).Log()

	return proof, nil
}

// Decide applies an administrator decision on a payment proof.
func (a *AccountService) Decide(ctx context.Context, actor auth.User, proofID uuid.UUID, form mappers.DecisionForm) (*model.PaymentProof, error) {
	switch form.Decision {
	case mappers.DecisionVerify:
		return a.VerifyPayment(ctx, actor, proofID, form.Notes)
	case mappers.DecisionReject:
		return a.RejectPayment(ctx, actor, proofID, form.Reason, form.Notes)
	default:
		return nil, NewErrInvalidForm(fmt.Errorf("unknown decision %q", form.Decision))
	}
}

// VerifyPayment activates the subscription paid by the proof and the account that owns it.
func (a *AccountService) VerifyPayment(ctx context.Context, actor auth.User, proofID uuid.UUID, notes *string) (*model.PaymentProof, error) {
	tracer := a.logger.WithContext(ctx).Operation("verify_payment").
		WithUUID("proof_id", proofID).
		WithString("admin_id", actor.ID).
		Build()

	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	var (
		proof    *model.PaymentProof
		from     model.AccountStatus
		activity *model.Activity
	)
	err := withStaleRetry(ctx, "verify_payment", func(ctx context.Context) error {
		return inTransaction(ctx, a.store, func(ctx context.Context) error {
			p, subscription, account, err := a.loadDecision(ctx, proofID)
			if err != nil {
				return err
			}

			pkg, err := a.store.Package().Get(ctx, subscription.PackageID)
			if err != nil {
				return err
			}

			now := a.now()
			validUntil := now.AddDate(0, 0, pkg.ValidityDays)

			p.Status = model.PaymentVerified
			p.DecidedAt = &now
			p.DecidedBy = &actor.ID
			p.AdminNotes = notes
			proof, err = a.store.Payment().Update(ctx, *p)
			if err != nil {
				return err
			}

			subscription.Status = model.SubscriptionActive
			subscription.StartDate = &now
			subscription.EndDate = &validUntil
			subscription.IsActive = true
			if _, err := a.store.Subscription().Update(ctx, *subscription); err != nil {
				return err
			}

			from = account.Status
			account.Status = model.AccountActive
			account.IsActive = true
			account.SuspendedReason = nil
			if _, err := a.store.Account().Update(ctx, *account); err != nil {
				return err
			}

			activity, err = a.activity.Record(ctx, ActivityEntry{
				Actor:      actor,
				Action:     ActionPaymentVerified,
				Resource:   ResourcePaymentProof,
				ResourceID: proofID.String(),
				FromStatus: string(from),
				ToStatus:   string(model.AccountActive),
				Details: map[string]any{
					"account_id":  account.ID.String(),
					"package":     pkg.Code,
					"amount":      proof.Amount,
					"valid_until": validUntil.Format(time.RFC3339),
				},
			})
			return err
		})
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	a.activity.Publish(ctx, activity)
	metrics.IncreasePaymentDecisionMetric(string(mappers.DecisionVerify))
	metrics.IncreaseAccountTransitionMetric(string(from), string(model.AccountActive))
	tracer.Success().Log()

	return proof, nil
}

// RejectPayment cancels the subscription paid by the proof and sends the account back to payment.
func (a *AccountService) RejectPayment(ctx context.Context, actor auth.User, proofID uuid.UUID, reason string, notes *string) (*model.PaymentProof, error) {
	tracer := a.logger.WithContext(ctx).Operation("reject_payment").
		WithUUID("proof_id", proofID).
		WithString("admin_id", actor.ID).
		Build()

	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, NewErrMissingReason()
	}

	var (
		proof    *model.PaymentProof
		from     model.AccountStatus
		activity *model.Activity
	)
	err := withStaleRetry(ctx, "reject_payment", func(ctx context.Context) error {
		return inTransaction(ctx, a.store, func(ctx context.Context) error {
			p, subscription, account, err := a.loadDecision(ctx, proofID)
			if err != nil {
				return err
			}

			now := a.now()
			p.Status = model.PaymentRejected
			p.DecidedAt = &now
			p.DecidedBy = &actor.ID
			p.RejectionReason = &reason
			p.AdminNotes = notes
			proof, err = a.store.Payment().Update(ctx, *p)
			if err != nil {
				return err
			}

			subscription.Status = model.SubscriptionCancelled
			subscription.IsActive = false
			if _, err := a.store.Subscription().Update(ctx, *subscription); err != nil {
				return err
			}

			from = account.Status
			account.Status = model.AccountPendingPayment
			account.IsActive = false
			if _, err := a.store.Account().Update(ctx, *account); err != nil {
				return err
			}

			activity, err = a.activity.Record(ctx, ActivityEntry{
				Actor:      actor,
				Action:     ActionPaymentRejected,
				Resource:   ResourcePaymentProof,
				ResourceID: proofID.String(),
				FromStatus: string(from),
				ToStatus:   string(model.AccountPendingPayment),
				Details:    map[string]any{"account_id": account.ID.String(), "reason": reason},
			})
			return err
		})
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	a.activity.Publish(ctx, activity)
	metrics.IncreasePaymentDecisionMetric(string(mappers.DecisionReject))
	metrics.IncreaseAccountTransitionMetric(string(from), string(model.AccountPendingPayment))
	tracer.Success().Log()

	return proof, nil
}

// loadDecision reads a pending proof with its subscription and account inside the caller's transaction.
func (a *AccountService) loadDecision(ctx context.Context, proofID uuid.UUID) (*model.PaymentProof, *model.Subscription, *model.Account, error) {
	proof, err := a.store.Payment().Get(ctx, proofID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil, nil, NewErrPaymentProofNotFound(proofID)
		}
		return nil, nil, nil, err
	}
	if proof.Status != model.PaymentPending {
		return nil, nil, nil, NewErrAlreadyDecided(proofID, string(proof.Status))
	}

	subscription, err := a.store.Subscription().Get(ctx, proof.SubscriptionID)
	if err != nil {
		return nil, nil, nil, err
	}

	account, err := a.store.Account().Get(ctx, proof.AccountID)
	if err != nil {
		return nil, nil, nil, err
	}

	return proof, subscription, account, nil
}

func (a *AccountService) ListPendingPaymentProofs(ctx context.Context, actor auth.User) ([]PaymentReview, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	proofs, err := a.store.Payment().List(ctx, store.NewPaymentQueryFilter().ByStatus(model.PaymentPending))
	if err != nil {
		return nil, fmt.Errorf("failed to list payment proofs: %w", err)
	}
	if len(proofs) == 0 {
		return []PaymentReview{}, nil
	}

	seen := make(map[uuid.UUID]struct{}, len(proofs))
	accountIDs := make([]uuid.UUID, 0, len(proofs))
	for _, p := range proofs {
		if _, ok := seen[p.AccountID]; !ok {
			seen[p.AccountID] = struct{}{}
			accountIDs = append(accountIDs, p.AccountID)
		}
	}

	accounts, err := a.store.Account().List(ctx, store.NewAccountQueryFilter().ByID(accountIDs...))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]model.Account, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = acc
	}

	packages, err := a.store.Package().List(ctx, false)
	if err != nil {
		return nil, err
	}
	packagesByID := make(map[uuid.UUID]model.Package, len(packages))
	for _, pkg := range packages {
		packagesByID[pkg.ID] = pkg
	}

	reviews := make([]PaymentReview, 0, len(proofs))
	for _, p := range proofs {
		review := PaymentReview{Proof: p, Account: byID[p.AccountID]}
		if pkg, ok := packagesByID[p.PackageID]; ok {
			review.Package = &pkg
		}
		if profile, err := a.store.Profile().GetByAccount(ctx, p.AccountID); err == nil {
			review.Profile = profile
		}
		reviews = append(reviews, review)
	}

	return reviews, nil
}

// ExpireSubscriptions ends every ACTIVE subscription whose end date has passed and expires its account.
// It returns the number of subscriptions expired.
func (a *AccountService) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	tracer := a.logger.WithContext(ctx).Operation("expire_subscriptions").Build()

	due, err := a.store.Subscription().List(ctx, store.NewSubscriptionQueryFilter().ByStatus(model.SubscriptionActive).EndedBy(now))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, sub := range due {
		done, err := a.expireSubscription(ctx, sub.ID, now)
		if err != nil {
			tracer.Warn("failed to expire subscription").WithUUID("subscription_id", sub.ID).WithString("error", err.Error()).Log()
			continue
		}
		if done {
			expired++
		}
	}

	if expired > 0 {
		tracer.Success().WithInt("expired", expired).Log()
	}
	return expired, nil
}

func (a *AccountService) expireSubscription(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	system := auth.SystemUser()

	var (
		done       bool
		from       model.AccountStatus
		to         model.AccountStatus
		activities []*model.Activity
	)
	err := withStaleRetry(ctx, "expire_subscription", func(ctx context.Context) error {
		done = false
		activities = nil
		return inTransaction(ctx, a.store, func(ctx context.Context) error {
			sub, err := a.store.Subscription().Get(ctx, id)
			if err != nil {
				return err
			}
			if sub.Status != model.SubscriptionActive || sub.EndDate == nil || sub.EndDate.After(now) {
				return nil
			}

			sub.Status = model.SubscriptionExpired
			sub.IsActive = false
			if _, err := a.store.Subscription().Update(ctx, *sub); err != nil {
				return err
			}

			account, err := a.store.Account().Get(ctx, sub.AccountID)
			if err != nil {
				return err
			}

			from = account.Status
			to = account.Status
			if account.Status == model.AccountActive {
				to = model.AccountExpired
			}
			account.Status = to
			account.IsActive = false
			if _, err := a.store.Account().Update(ctx, *account); err != nil {
				return err
			}

			activity, err := a.activity.Record(ctx, ActivityEntry{
				Actor:      system,
				Action:     ActionSubscriptionExpired,
				Resource:   ResourceSubscription,
				ResourceID: sub.ID.String(),
				FromStatus: string(from),
				ToStatus:   string(to),
				Details:    map[string]any{"account_id": account.ID.String(), "ended_at": sub.EndDate.Format(time.RFC3339)},
			})
			if err != nil {
				return err
			}
			activities = append(activities, activity)
			done = true
			return nil
		})
	})
	if err != nil {
		return false, err
	}

	a.activity.Publish(ctx, activities...)
	if done && from != to {
		metrics.IncreaseAccountTransitionMetric(string(from), string(to))
	}
	return done, nil
}

// Status reports the account state, whether it currently grants access and the next step for its owner.
func (a *AccountService) Status(ctx context.Context, actor auth.User, accountID uuid.UUID) (*AccountStatus, error) {
	account, err := a.GetAccount(ctx, actor, accountID)
	if err != nil {
		return nil, err
	}

	status := &AccountStatus{Account: *account}

	if profile, err := a.store.Profile().GetByAccount(ctx, accountID); err == nil {
		status.Profile = profile
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}

	if sub, err := a.store.Subscription().Current(ctx, accountID); err == nil {
		status.Subscription = sub
		if pkg, err := a.store.Package().Get(ctx, sub.PackageID); err == nil {
			status.Package = pkg
		}
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}

	pending, err := a.store.Payment().List(ctx, store.NewPaymentQueryFilter().ByAccount(accountID).ByStatus(model.PaymentPending))
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		status.PendingProof = &pending[0]
	}

	status.Active = account.IsActive
	status.NextStep = nextStep(account.Status, status.Active)

	return status, nil
}

func nextStep(status model.AccountStatus, active bool) NextStep {
	switch status {
	case model.AccountPendingProfile:
		return NextStepCompleteProfile
	case model.AccountPendingPayment:
		return NextStepSubmitPayment
	case model.AccountPendingVerification:
		return NextStepAwaitVerification
	case model.AccountActive:
		if active {
			return NextStepNone
		}
		return NextStepRenew
	case model.AccountExpired:
		return NextStepRenew
	default:
		return NextStepContactSupport
	}
}

func (a *AccountService) Suspend(ctx context.Context, actor auth.User, accountID uuid.UUID, reason string) (*model.Account, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, NewErrMissingReason()
	}

	return a.adminTransition(ctx, actor, accountID, "suspend", func(ctx context.Context, account *model.Account) (string, error) {
		if account.Status != model.AccountActive {
			return "", NewErrInvalidState(ResourceAccount, accountID, string(account.Status), "suspend")
		}
		account.Status = model.AccountSuspended
		account.IsActive = false
		account.SuspendedReason = &reason
		return ActionAccountSuspended, nil
	})
}

// Reinstate lifts a suspension. The account is EXPIRED when its subscription ended in the meantime.
func (a *AccountService) Reinstate(ctx context.Context, actor auth.User, accountID uuid.UUID) (*model.Account, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	return a.adminTransition(ctx, actor, accountID, "reinstate", func(ctx context.Context, account *model.Account) (string, error) {
		if account.Status != model.AccountSuspended {
			return "", NewErrInvalidState(ResourceAccount, accountID, string(account.Status), "reinstate")
		}

		effective := false
		sub, err := a.store.Subscription().Current(ctx, accountID)
		switch {
		case err == nil:
			effective = sub.Effective(a.now())
		case !errors.Is(err, store.ErrRecordNotFound):
			return "", err
		}

		if effective {
			account.Status = model.AccountActive
		} else {
			account.Status = model.AccountExpired
		}
		account.IsActive = effective
		account.SuspendedReason = nil
		return ActionAccountReinstated, nil
	})
}

func (a *AccountService) adminTransition(ctx context.Context, actor auth.User, accountID uuid.UUID, operation string, apply func(ctx context.Context, account *model.Account) (string, error)) (*model.Account, error) {
	tracer := a.logger.WithContext(ctx).Operation(operation+"_account").
		WithUUID("account_id", accountID).
		WithString("admin_id", actor.ID).
		Build()

	var (
		updated  *model.Account
		from     model.AccountStatus
		activity *model.Activity
	)
	err := withStaleRetry(ctx, operation+"_account", func(ctx context.Context) error {
		return inTransaction(ctx, a.store, func(ctx context.Context) error {
			account, err := a.store.Account().Get(ctx, accountID)
			if err != nil {
				if errors.Is(err, store.ErrRecordNotFound) {
					return NewErrAccountNotFound(accountID)
				}
				return err
			}

			from = account.Status
			action, err := apply(ctx, account)
			if err != nil {
				return err
			}

			updated, err = a.store.Account().Update(ctx, *account)
			if err != nil {
				return err
			}

			details := map[string]any{}
			if updated.SuspendedReason != nil {
				details["reason"] = *updated.SuspendedReason
			}
			activity, err = a.activity.Record(ctx, ActivityEntry{
				Actor:      actor,
				Action:     action,
				Resource:   ResourceAccount,
				ResourceID: accountID.String(),
				FromStatus: string(from),
				ToStatus:   string(updated.Status),
				Details:    details,
			})
			return err
		})
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	a.activity.Publish(ctx, activity)
	metrics.IncreaseAccountTransitionMetric(string(from), string(updated.Status))
	tracer.Success().WithString("status", string(updated.Status)).Log()

	return updated, nil
}

func (a *AccountService) ListPackages(ctx context.Context) (model.PackageList, error) {
	return a.store.Package().List(ctx, true)
}

// isEffectivelyActive reports whether the account of ownerID currently grants access to processing.
func isEffectivelyActive(ctx context.Context, s store.Store, ownerID string, now time.Time) (bool, error) {
	account, err := s.Account().GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return accountActive(ctx, s, account, now)
}

// accountActive derives the activity flag from the account status and the current subscription's
// end date. The stored flag lags behind until the expiry sweep runs.
func accountActive(ctx context.Context, s store.Store, account *model.Account, now time.Time) (bool, error) {
	if account.Status != model.AccountActive {
		return false, nil
	}

	sub, err := s.Subscription().Current(ctx, account.ID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return sub.Effective(now), nil
}
