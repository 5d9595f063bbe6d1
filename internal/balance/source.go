// Package balance fetches the monitored account's raw token balances.
package balance

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/solana"
)

// Source returns the raw holdings of an account, one entry per mint.
// Fetch never fails: on any error it logs and returns an empty result.
type Source interface {
	Fetch(ctx context.Context, account string) []domain.RawBalance
}

// RPCSource reads token accounts through Solana getTokenAccountsByOwner.
type RPCSource struct {
	rpc      solana.RPCClient
	programs []string
	logger   *zap.Logger
}

// RPCSourceOptions configures an RPCSource.
type RPCSourceOptions struct {
	RPC      solana.RPCClient
	Programs []string // token program ids, default SPL Token only
	Logger   *zap.Logger
}

// NewRPCSource creates a new RPC-backed balance source.
func NewRPCSource(opts RPCSourceOptions) *RPCSource {
	programs := opts.Programs
	if len(programs) == 0 {
		programs = []string{solana.TokenProgramID}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RPCSource{
		rpc:      opts.RPC,
		programs: programs,
		logger:   logger,
	}
}

var _ Source = (*RPCSource)(nil)

// Fetch returns the account's balances in first-seen order.
// Multiple token accounts of the same mint are summed.
func (s *RPCSource) Fetch(ctx context.Context, account string) []domain.RawBalance {
	log := s.logger.With(zap.String("account", account))

	if err := solana.ValidateAddress(account); err != nil {
		log.Error("invalid account address", zap.Error(err))
		return nil
	}

	var balances []domain.RawBalance
	index := make(map[string]int)

	for _, program := range s.programs {
		accounts, err := s.rpc.GetTokenAccountsByOwner(ctx, account, program)
		if err != nil {
			log.Error("error fetching wallet tokens", zap.String("program", program), zap.Error(err))
			return nil
		}

		for _, acct := range accounts {
			amount, ok := parseAmount(acct)
			if !ok {
				log.Debug("skipping malformed token account", zap.String("pubkey", acct.Pubkey))
				continue
			}

			if i, seen := index[acct.Mint]; seen {
				if balances[i].Decimals != uint8(*acct.Decimals) {
					log.Warn("decimals mismatch across token accounts",
						zap.String("mint", acct.Mint), zap.String("pubkey", acct.Pubkey))
					continue
				}
				balances[i].Amount = new(big.Int).Add(balances[i].Amount, amount)
				continue
			}

			index[acct.Mint] = len(balances)
			balances = append(balances, domain.RawBalance{
				Mint:     acct.Mint,
				Amount:   amount,
				Decimals: uint8(*acct.Decimals),
			})
		}
	}

	return balances
}

// parseAmount validates the parsed fields of a token account.
func parseAmount(acct solana.TokenAccount) (*big.Int, bool) {
	if acct.Mint == "" || acct.Amount == "" || acct.Decimals == nil {
		return nil, false
	}
	if *acct.Decimals < 0 || *acct.Decimals > 255 {
		return nil, false
	}
	amount, ok := new(big.Int).SetString(acct.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return nil, false
	}
	return amount, true
}
