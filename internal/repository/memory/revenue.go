package memory

import (
	"context"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
)

type RevenueRepo struct{ c *core }

func (r *RevenueRepo) EnsureOpenQuarter(ctx context.Context, quarterLength time.Duration, now time.Time) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if len(r.c.quarters) > 0 {
		return nil
	}
	r.c.quarters = append(r.c.quarters, &model.Quarter{
		Index:     0,
		StartTime: now,
		EndTime:   now.Add(quarterLength),
	})
	return nil
}

// openLocked returns the single un-finalized quarter. Caller holds the
// mutex.
func (r *RevenueRepo) openLocked() *model.Quarter {
	if len(r.c.quarters) == 0 {
		return nil
	}
	return r.c.quarters[len(r.c.quarters)-1]
}

func (r *RevenueRepo) CurrentQuarter(ctx context.Context) (*model.Quarter, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	q := r.openLocked()
	if q == nil {
		return nil, model.ErrNotFinalized
	}
	out := *q
	return &out, nil
}

func (r *RevenueRepo) QuarterByIndex(ctx context.Context, index int) (*model.Quarter, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if index < 0 || index >= len(r.c.quarters) {
		return nil, model.ErrNotFinalized
	}
	out := *r.c.quarters[index]
	return &out, nil
}

func (r *RevenueRepo) Deposit(ctx context.Context, tokenID int64, depositorID, poolID string, amount int64) (*model.Quarter, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if _, ok := r.c.tokens[tokenID]; !ok {
		return nil, model.ErrUnknownToken
	}
	q := r.openLocked()
	if q == nil || q.Finalized {
		return nil, model.ErrAlreadyFinalized
	}

	if err := r.c.transferLocked(depositorID, poolID, amount); err != nil {
		return nil, err
	}

	q.TotalRevenue += amount
	if r.c.deposits[q.Index] == nil {
		r.c.deposits[q.Index] = make(map[int64]*model.QuarterDeposit)
	}
	d := r.c.deposits[q.Index][tokenID]
	if d == nil {
		d = &model.QuarterDeposit{QuarterIndex: q.Index, TokenID: tokenID}
		r.c.deposits[q.Index][tokenID] = d
	}
	d.Amount += amount

	out := *q
	return &out, nil
}

func (r *RevenueRepo) Finalize(ctx context.Context, feeBps int, poolID, treasuryID string, quarterLength time.Duration, now time.Time) (*model.Quarter, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	q := r.openLocked()
	if q == nil || q.Finalized {
		return nil, model.ErrAlreadyFinalized
	}
	if now.Before(q.EndTime) {
		return nil, model.ErrPeriodNotEnded
	}

	fee := q.TotalRevenue * int64(feeBps) / 10000
	if err := r.c.transferLocked(poolID, treasuryID, fee); err != nil {
		return nil, err
	}

	q.Finalized = true
	finalizedAt := now
	q.FinalizedAt = &finalizedAt
	q.FeeBps = feeBps
	q.PlatformFee = fee

	// Open the next window back to back with the one just closed.
	r.c.quarters = append(r.c.quarters, &model.Quarter{
		Index:     q.Index + 1,
		StartTime: q.EndTime,
		EndTime:   q.EndTime.Add(quarterLength),
	})

	out := *q
	return &out, nil
}

func (r *RevenueRepo) Claim(ctx context.Context, tokenID int64, quarterIndex int, claimantID, poolID string, claimWindow time.Duration, now time.Time) (*model.Claim, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if quarterIndex < 0 || quarterIndex >= len(r.c.quarters) {
		return nil, model.ErrNotFinalized
	}
	q := r.c.quarters[quarterIndex]
	if !q.Finalized || q.FinalizedAt == nil {
		return nil, model.ErrNotFinalized
	}

	token, ok := r.c.tokens[tokenID]
	if !ok {
		return nil, model.ErrUnknownToken
	}
	// Ownership at claim time, not deposit time, decides the recipient.
	if token.OwnerID != claimantID {
		return nil, model.ErrNotOwner
	}

	if !now.Before(q.FinalizedAt.Add(claimWindow)) {
		return nil, model.ErrClaimWindowExpired
	}
	if r.c.claims[quarterIndex][tokenID] != nil {
		return nil, model.ErrAlreadyClaimed
	}

	d := r.c.deposits[quarterIndex][tokenID]
	if d == nil || d.Amount <= 0 || d.Swept {
		return nil, model.ErrNothingToWithdraw
	}

	share := d.Amount - d.Amount*int64(q.FeeBps)/10000
	if err := r.c.transferLocked(poolID, claimantID, share); err != nil {
		return nil, err
	}

	claim := &model.Claim{
		QuarterIndex: quarterIndex,
		TokenID:      tokenID,
		AccountID:    claimantID,
		Amount:       share,
		ClaimedAt:    now,
	}
	if r.c.claims[quarterIndex] == nil {
		r.c.claims[quarterIndex] = make(map[int64]*model.Claim)
	}
	r.c.claims[quarterIndex][tokenID] = claim

	out := *claim
	return &out, nil
}

func (r *RevenueRepo) DepositFor(ctx context.Context, quarterIndex int, tokenID int64) (*model.QuarterDeposit, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	d := r.c.deposits[quarterIndex][tokenID]
	if d == nil {
		return &model.QuarterDeposit{QuarterIndex: quarterIndex, TokenID: tokenID}, nil
	}
	out := *d
	return &out, nil
}

func (r *RevenueRepo) ClaimFor(ctx context.Context, quarterIndex int, tokenID int64) (*model.Claim, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	cl := r.c.claims[quarterIndex][tokenID]
	if cl == nil {
		return nil, nil
	}
	out := *cl
	return &out, nil
}

func (r *RevenueRepo) TokenSummary(ctx context.Context, tokenID int64, claimWindow time.Duration, now time.Time) (*model.TokenRevenueSummary, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	sum := &model.TokenRevenueSummary{TokenID: tokenID}
	for _, q := range r.c.quarters {
		d := r.c.deposits[q.Index][tokenID]
		if d == nil {
			continue
		}
		sum.TotalRevenue += d.Amount

		claim := r.c.claims[q.Index][tokenID]
		if claim != nil {
			if sum.LastPayout == nil || claim.ClaimedAt.After(sum.LastPayout.ClaimedAt) {
				cp := *claim
				sum.LastPayout = &cp
			}
			continue
		}
		if q.Finalized && q.FinalizedAt != nil && !d.Swept &&
			now.Before(q.FinalizedAt.Add(claimWindow)) {
			sum.Available += d.Amount - d.Amount*int64(q.FeeBps)/10000
		}
	}
	return sum, nil
}

func (r *RevenueRepo) SweepUnclaimed(ctx context.Context, quarterIndex int, poolID, treasuryID string, claimWindow time.Duration, now time.Time) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if quarterIndex < 0 || quarterIndex >= len(r.c.quarters) {
		return 0, model.ErrNotFinalized
	}
	q := r.c.quarters[quarterIndex]
	if !q.Finalized || q.FinalizedAt == nil {
		return 0, model.ErrNotFinalized
	}
	if now.Before(q.FinalizedAt.Add(claimWindow)) {
		return 0, model.ErrPeriodNotEnded
	}

	var swept int64
	for tokenID, d := range r.c.deposits[quarterIndex] {
		if d.Swept || d.Amount <= 0 {
			continue
		}
		if r.c.claims[quarterIndex][tokenID] != nil {
			continue
		}
		share := d.Amount - d.Amount*int64(q.FeeBps)/10000
		if err := r.c.transferLocked(poolID, treasuryID, share); err != nil {
			return swept, err
		}
		d.Swept = true
		swept += share
	}
	return swept, nil
}
