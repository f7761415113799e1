package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
)

type AdminRepo struct{ c *core }

func (r *AdminRepo) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	_, ok := r.c.admins[accountID]
	return ok, nil
}

func (r *AdminRepo) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	out := make([]model.Admin, 0, len(r.c.admins))
	for id, addedAt := range r.c.admins {
		username := ""
		if a, ok := r.c.accounts[id]; ok {
			username = a.Username
		}
		out = append(out, model.Admin{AccountID: id, Username: username, AddedAt: addedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

func (r *AdminRepo) AddAdmin(ctx context.Context, accountID string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.accounts[accountID]; !ok {
		return model.ErrAccountNotFound
	}
	if _, ok := r.c.admins[accountID]; ok {
		return model.ErrAlreadyExists
	}
	r.c.admins[accountID] = time.Now().UTC()
	return nil
}

func (r *AdminRepo) RemoveAdmin(ctx context.Context, accountID string, requiredConfirmations int) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.admins[accountID]; !ok {
		return model.ErrAccountNotFound
	}
	if len(r.c.admins)-1 < requiredConfirmations {
		return model.ErrTooFewAdmins
	}
	delete(r.c.admins, accountID)
	return nil
}

func (r *AdminRepo) AdminCount(ctx context.Context) (int, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return len(r.c.admins), nil
}

func (r *AdminRepo) SubmitTx(ctx context.Context, tx *model.MultisigTx) (*model.MultisigTx, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	cp := *tx
	cp.ID = int64(len(r.c.txs) + 1)
	cp.Confirmations = nil
	cp.Executed = false
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.c.txs = append(r.c.txs, &cp)

	out := cp
	return &out, nil
}

func (r *AdminRepo) txLocked(id int64) *model.MultisigTx {
	if id < 1 || id > int64(len(r.c.txs)) {
		return nil
	}
	return r.c.txs[id-1]
}

func (r *AdminRepo) GetTx(ctx context.Context, id int64) (*model.MultisigTx, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	tx := r.txLocked(id)
	if tx == nil {
		return nil, model.ErrInvalidCommand
	}
	out := *tx
	out.Confirmations = append([]string(nil), tx.Confirmations...)
	return &out, nil
}

func (r *AdminRepo) ListTxs(ctx context.Context, limit, offset int) ([]model.MultisigTx, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	n := len(r.c.txs)
	var out []model.MultisigTx
	// newest first
	for i := n - 1 - offset; i >= 0 && len(out) < limit; i-- {
		tx := *r.c.txs[i]
		tx.Confirmations = append([]string(nil), r.c.txs[i].Confirmations...)
		out = append(out, tx)
	}
	return out, nil
}

func (r *AdminRepo) Confirm(ctx context.Context, txID int64, adminID string) (*model.MultisigTx, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	tx := r.txLocked(txID)
	if tx == nil {
		return nil, model.ErrInvalidCommand
	}
	if tx.Executed {
		return nil, model.ErrAlreadyExecuted
	}
	for _, id := range tx.Confirmations {
		if id == adminID {
			return nil, model.ErrAlreadyConfirmed
		}
	}
	tx.Confirmations = append(tx.Confirmations, adminID)

	out := *tx
	out.Confirmations = append([]string(nil), tx.Confirmations...)
	return &out, nil
}

func (r *AdminRepo) MarkExecuted(ctx context.Context, txID int64, now time.Time) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	tx := r.txLocked(txID)
	if tx == nil {
		return model.ErrInvalidCommand
	}
	if tx.Executed {
		return model.ErrAlreadyExecuted
	}
	tx.Executed = true
	executedAt := now
	tx.ExecutedAt = &executedAt
	return nil
}
