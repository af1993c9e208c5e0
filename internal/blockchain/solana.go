package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/paywallio/paywalld/internal/models"
	"github.com/paywallio/paywalld/pkg/logger"
)

type solanaBackend interface {
	GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

// SolanaOracle reads system program SOL transfers at confirmed commitment.
// Confirmed is the trust threshold, so it never reports a pending state.
type SolanaOracle struct {
	logger  *logger.Logger
	timeout time.Duration
	client  solanaBackend
}

var _ models.ChainOracle = (*SolanaOracle)(nil)

func NewSolanaOracle(rpcURL string, timeout time.Duration, logger *logger.Logger) *SolanaOracle {
	return &SolanaOracle{client: rpc.New(rpcURL), timeout: timeout, logger: logger}
}

func (o *SolanaOracle) Network() models.Network {
	return models.NetworkSolana
}

func (o *SolanaOracle) LookupTransaction(ctx context.Context, txRef, expectedRecipient string) (*models.Lookup, error) {
	sig, err := solana.SignatureFromBase58(txRef)
	if err != nil {
		return nil, models.WrapError(models.CodeInvalidReference, err, "invalid solana transaction signature").WithNetwork(models.NetworkSolana)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	maxVersion := uint64(0)
	res, err := o.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return notFound(), nil
		}
		return nil, unavailable(models.NetworkSolana, err)
	}
	if res == nil || res.Transaction == nil {
		return notFound(), nil
	}

	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, unavailable(models.NetworkSolana, fmt.Errorf("failed to decode transaction: %w", err))
	}

	lookup := lookupFromSolanaTransaction(tx, res.Meta, res.BlockTime, expectedRecipient)
	o.logger.Debug("Solana transaction resolved", "signature", txRef, "state", lookup.State, "slot", res.Slot)
	return lookup, nil
}

type solanaTransfer struct {
	from     solana.PublicKey
	to       solana.PublicKey
	lamports uint64
}

// lookupFromSolanaTransaction sums the system transfers paying
// expectedRecipient. Without any, the first transfer is reported so a
// mismatch can be explained.
func lookupFromSolanaTransaction(tx *solana.Transaction, meta *rpc.TransactionMeta, blockTime *solana.UnixTimeSeconds, expectedRecipient string) *models.Lookup {
	lookup := &models.Lookup{State: models.TxStateConfirmed}
	if blockTime != nil {
		ts := blockTime.Time().UTC()
		lookup.Timestamp = &ts
	}
	if meta != nil && meta.Err != nil {
		lookup.State = models.TxStateFailed
		return lookup
	}

	transfers := systemTransfers(tx)
	if len(transfers) == 0 {
		return lookup
	}

	var (
		matched  *solanaTransfer
		lamports = new(big.Int)
	)
	for i, t := range transfers {
		if t.to.String() != expectedRecipient {
			continue
		}
		if matched == nil {
			matched = &transfers[i]
		}
		lamports.Add(lamports, new(big.Int).SetUint64(t.lamports))
	}
	if matched == nil {
		matched = &transfers[0]
		lamports.SetUint64(matched.lamports)
	}

	amount := toDecimal(lamports, models.NetworkSolana.Decimals())
	lookup.Counterparty = matched.to.String()
	lookup.Sender = matched.from.String()
	lookup.ObservedAmount = &amount
	return lookup
}

func systemTransfers(tx *solana.Transaction) []solanaTransfer {
	keys := tx.Message.AccountKeys
	var out []solanaTransfer

	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) || !keys[inst.ProgramIDIndex].Equals(solana.SystemProgramID) {
			continue
		}

		accounts := make([]*solana.AccountMeta, 0, len(inst.Accounts))
		for _, idx := range inst.Accounts {
			// Accounts loaded from lookup tables are not in the static key list.
			if int(idx) >= len(keys) {
				accounts = nil
				break
			}
			accounts = append(accounts, solana.Meta(keys[idx]))
		}
		if len(accounts) < 2 {
			continue
		}

		decoded, err := system.DecodeInstruction(accounts, inst.Data)
		if err != nil {
			continue
		}
		transfer, ok := decoded.Impl.(*system.Transfer)
		if !ok || transfer.Lamports == nil {
			continue
		}
		out = append(out, solanaTransfer{
			from:     accounts[0].PublicKey,
			to:       accounts[1].PublicKey,
			lamports: *transfer.Lamports,
		})
	}
	return out
}
