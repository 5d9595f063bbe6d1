package stub

import (
	"context"
	"errors"
	"sync"

	"solana-portfolio-watch/internal/solana"
)

// ErrUnavailable is returned for owners configured to fail.
var ErrUnavailable = errors.New("rpc unavailable")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu            sync.Mutex
	TokenAccounts map[string][]solana.TokenAccount // keyed by owner + "/" + programID
	Accounts      map[string]*solana.AccountInfo
	FailOwners    map[string]bool
	Calls         int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		TokenAccounts: make(map[string][]solana.TokenAccount),
		Accounts:      make(map[string]*solana.AccountInfo),
		FailOwners:    make(map[string]bool),
	}
}

// GetTokenAccountsByOwner returns the accounts registered for owner and program.
func (c *RPCClient) GetTokenAccountsByOwner(_ context.Context, owner, programID string) ([]solana.TokenAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls++
	if c.FailOwners[owner] {
		return nil, ErrUnavailable
	}
	return c.TokenAccounts[owner+"/"+programID], nil
}

// GetAccountInfo returns the registered account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Accounts[pubkey], nil
}

// AddTokenAccounts registers token accounts for owner under programID.
func (c *RPCClient) AddTokenAccounts(owner, programID string, accounts ...solana.TokenAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := owner + "/" + programID
	c.TokenAccounts[key] = append(c.TokenAccounts[key], accounts...)
}

// AddAccount registers account info under pubkey.
func (c *RPCClient) AddAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Accounts[pubkey] = info
}

var _ solana.RPCClient = (*RPCClient)(nil)
