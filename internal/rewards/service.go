package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/account"
	"github.com/congo-pay/congo_points/internal/ledger"
	"github.com/congo-pay/congo_points/internal/metrics"
	"github.com/congo-pay/congo_points/internal/notification"
	"github.com/congo-pay/congo_points/internal/points"
)

// ErrNotOwner indicates the caller is not the deployer while the issuer
// restriction is enabled.
var ErrNotOwner = errors.New("caller is not the ledger owner")

// Options tunes host policy on top of the ledger rules.
type Options struct {
	// RestrictIssuer limits issuance and authority toggles to the deployer.
	RestrictIssuer bool
}

// Service runs points operations on a ledger host, publishes the events of
// committed calls and records metrics.
type Service struct {
	host     ledger.Host
	notifier notification.Notifier
	metrics  *metrics.Ledger
	logger   *slog.Logger
	opts     Options
}

// NewService constructs a rewards service. notifier and m may be nil.
func NewService(host ledger.Host, notifier notification.Notifier, m *metrics.Ledger, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{host: host, notifier: notifier, metrics: m, logger: logger, opts: opts}
}

// Mutation carries the host-supplied context of a mutating call.
type Mutation struct {
	Caller account.ID
	DryRun bool
}

// IssueResult describes an issuance and the supply that results from it.
type IssueResult struct {
	Receipt     ledger.Receipt
	OwnerPoints uint256.Int
}

// AuthorityResult describes a toggle and the flag the store now holds.
type AuthorityResult struct {
	Receipt    ledger.Receipt
	Authorized bool
}

// BalanceResult describes a grant or redemption and the balances after it.
type BalanceResult struct {
	Receipt         ledger.Receipt
	StorePoints     uint256.Int
	StoreUserPoints uint256.Int
	UserPoints      uint256.Int
}

// Deploy constructs the ledger with the initial issuer supply.
func (s *Service) Deploy(ctx context.Context, caller account.ID, initial uint256.Int) (ledger.Receipt, error) {
	start := time.Now()
	res, err := s.host.Deploy(ctx, caller, initial)
	s.observe(ledger.OpConstruct, false, err, start)
	if err != nil {
		return ledger.Receipt{}, err
	}
	s.metrics.SetSupply(initial)
	s.publish(ctx, res)
	s.logger.Info("ledger deployed", slog.String("deployer", caller.String()), slog.String("initial_supply", initial.Dec()))
	return res, nil
}

// EnsureDeployed deploys the ledger unless it already is, and returns the
// deployment that is in effect.
func (s *Service) EnsureDeployed(ctx context.Context, caller account.ID, initial uint256.Int) (ledger.Deployment, error) {
	if _, err := s.Deploy(ctx, caller, initial); err != nil && !errors.Is(err, ledger.ErrAlreadyDeployed) {
		return ledger.Deployment{}, err
	}
	dep, err := s.host.Deployment(ctx)
	if err != nil {
		return ledger.Deployment{}, err
	}
	if supply, err := s.OwnerPoints(ctx); err == nil {
		s.metrics.SetSupply(supply)
	}
	return dep, nil
}

// Issue adds amount to the issuer supply.
func (s *Service) Issue(ctx context.Context, m Mutation, amount uint256.Int) (IssueResult, error) {
	var out IssueResult
	if err := s.checkOwner(ctx, m, ledger.OpIssuancePoints); err != nil {
		return out, err
	}
	res, err := s.execute(ctx, m, ledger.OpIssuancePoints, func(ctx context.Context, l *points.Ledger) error {
		if err := l.IssuancePoints(ctx, m.Caller, amount); err != nil {
			return err
		}
		supply, err := l.OwnerPoints(ctx)
		out.OwnerPoints = supply
		return err
	})
	if err != nil {
		return IssueResult{}, err
	}
	out.Receipt = res
	if !m.DryRun {
		s.metrics.SetSupply(out.OwnerPoints)
	}
	return out, nil
}

// ToggleAuthority flips the grant flag of store.
func (s *Service) ToggleAuthority(ctx context.Context, m Mutation, store account.ID) (AuthorityResult, error) {
	var out AuthorityResult
	if err := s.checkOwner(ctx, m, ledger.OpGiveAuthority); err != nil {
		return out, err
	}
	res, err := s.execute(ctx, m, ledger.OpGiveAuthority, func(ctx context.Context, l *points.Ledger) error {
		auth, err := l.GiveAuthority(ctx, m.Caller, store)
		out.Authorized = auth
		return err
	})
	if err != nil {
		return AuthorityResult{}, err
	}
	out.Receipt = res
	return out, nil
}

// Grant credits user with amount on behalf of store.
func (s *Service) Grant(ctx context.Context, m Mutation, store, user account.ID, amount uint256.Int) (BalanceResult, error) {
	var out BalanceResult
	res, err := s.execute(ctx, m, ledger.OpGiveUserPoints, func(ctx context.Context, l *points.Ledger) error {
		if err := l.GiveUserPoints(ctx, store, user, amount); err != nil {
			return err
		}
		return readBalances(ctx, l, store, user, &out)
	})
	if err != nil {
		return BalanceResult{}, err
	}
	out.Receipt = res
	return out, nil
}

// Redeem debits amount from user at store.
func (s *Service) Redeem(ctx context.Context, m Mutation, store, user account.ID, amount uint256.Int) (BalanceResult, error) {
	var out BalanceResult
	res, err := s.execute(ctx, m, ledger.OpUseUserPoints, func(ctx context.Context, l *points.Ledger) error {
		if err := l.UseUserPoints(ctx, store, user, amount); err != nil {
			return err
		}
		return readBalances(ctx, l, store, user, &out)
	})
	if err != nil {
		return BalanceResult{}, err
	}
	out.Receipt = res
	return out, nil
}

// OwnerPoints returns the issuer supply.
func (s *Service) OwnerPoints(ctx context.Context) (uint256.Int, error) {
	var v uint256.Int
	err := s.host.View(ctx, func(ctx context.Context, l *points.Ledger) (err error) {
		v, err = l.OwnerPoints(ctx)
		return err
	})
	return v, err
}

// StorePoints returns the total granted by store.
func (s *Service) StorePoints(ctx context.Context, store account.ID) (uint256.Int, error) {
	var v uint256.Int
	err := s.host.View(ctx, func(ctx context.Context, l *points.Ledger) (err error) {
		v, err = l.StorePoints(ctx, store)
		return err
	})
	return v, err
}

// StoreUserPoints returns the total granted by store to user.
func (s *Service) StoreUserPoints(ctx context.Context, store, user account.ID) (uint256.Int, error) {
	var v uint256.Int
	err := s.host.View(ctx, func(ctx context.Context, l *points.Ledger) (err error) {
		v, err = l.StoreUserPoints(ctx, store, user)
		return err
	})
	return v, err
}

// UserPoints returns the spendable balance of user.
func (s *Service) UserPoints(ctx context.Context, user account.ID) (uint256.Int, error) {
	var v uint256.Int
	err := s.host.View(ctx, func(ctx context.Context, l *points.Ledger) (err error) {
		v, err = l.UserPoints(ctx, user)
		return err
	})
	return v, err
}

// IsAuthority reports whether store may grant points.
func (s *Service) IsAuthority(ctx context.Context, store account.ID) (bool, error) {
	var v bool
	err := s.host.View(ctx, func(ctx context.Context, l *points.Ledger) (err error) {
		v, err = l.IsAuthority(ctx, store)
		return err
	})
	return v, err
}

// Events returns the newest committed events matching filter.
func (s *Service) Events(ctx context.Context, filter ledger.EventFilter) ([]ledger.EventEntry, error) {
	return s.host.Events(ctx, filter)
}

// Deployment returns the one-time construction record.
func (s *Service) Deployment(ctx context.Context) (ledger.Deployment, error) {
	return s.host.Deployment(ctx)
}

func (s *Service) checkOwner(ctx context.Context, m Mutation, op string) error {
	if !s.opts.RestrictIssuer {
		return nil
	}
	dep, err := s.host.Deployment(ctx)
	if err != nil {
		return err
	}
	if dep.Deployer != m.Caller {
		s.observe(op, m.DryRun, ErrNotOwner, time.Now())
		return ErrNotOwner
	}
	return nil
}

func (s *Service) execute(ctx context.Context, m Mutation, op string, fn func(context.Context, *points.Ledger) error) (ledger.Receipt, error) {
	start := time.Now()
	res, err := s.host.Execute(ctx, ledger.Call{Caller: m.Caller, Operation: op, DryRun: m.DryRun}, fn)
	s.observe(op, m.DryRun, err, start)
	if err != nil {
		attrs := []any{
			slog.String("operation", op),
			slog.String("caller", m.Caller.String()),
			slog.Any("error", err),
		}
		if isRejection(err) {
			s.logger.Info("ledger call rejected", attrs...)
		} else {
			s.logger.Error("ledger call failed", attrs...)
		}
		return ledger.Receipt{}, err
	}
	if !res.DryRun {
		s.publish(ctx, res)
	}
	return res, nil
}

// publish forwards the events of a committed call. Delivery failures are
// logged and never fail the call, which is already persisted.
func (s *Service) publish(ctx context.Context, res ledger.Receipt) {
	for _, e := range res.Events {
		s.metrics.RecordEvent(e.EventType())
		if s.notifier == nil {
			continue
		}
		msg := notification.FromEvent(e, res.CallID, res.Operation, res.Caller.String(), res.At)
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("notification delivery failed",
				slog.String("call_id", res.CallID),
				slog.String("kind", msg.Kind),
				slog.Any("error", err),
			)
		}
	}
}

func (s *Service) observe(op string, dryRun bool, err error, start time.Time) {
	outcome := metrics.OutcomeOK
	switch {
	case err != nil && isRejection(err):
		outcome = metrics.OutcomeRejected
	case err != nil:
		outcome = metrics.OutcomeError
	case dryRun:
		outcome = metrics.OutcomeDryRun
	}
	s.metrics.ObserveCall(op, outcome, time.Since(start))
}

func isRejection(err error) bool {
	return errors.Is(err, points.ErrNotAuthority) ||
		errors.Is(err, points.ErrInsufficientBalance) ||
		errors.Is(err, ErrNotOwner)
}

func readBalances(ctx context.Context, l *points.Ledger, store, user account.ID, out *BalanceResult) error {
	var err error
	if out.StorePoints, err = l.StorePoints(ctx, store); err != nil {
		return fmt.Errorf("read store points: %w", err)
	}
	if out.StoreUserPoints, err = l.StoreUserPoints(ctx, store, user); err != nil {
		return fmt.Errorf("read store user points: %w", err)
	}
	if out.UserPoints, err = l.UserPoints(ctx, user); err != nil {
		return fmt.Errorf("read user points: %w", err)
	}
	return nil
}
