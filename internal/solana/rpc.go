package solana

import "context"

// Well-known program ids.
const (
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC8PCnVkPqzz2v6nVE"
	MetaplexProgramID  = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
)

// RPCClient defines the Solana RPC calls the watcher needs.
type RPCClient interface {
	// GetTokenAccountsByOwner lists token accounts of owner under programID.
	GetTokenAccountsByOwner(ctx context.Context, owner, programID string) ([]TokenAccount, error)

	// GetAccountInfo retrieves account info by public key. Returns nil if account not found.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}
