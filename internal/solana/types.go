package solana

// TokenAccount is one SPL token account as decoded from a jsonParsed response.
// Mint is empty and Decimals nil when the account data could not be parsed.
type TokenAccount struct {
	Pubkey   string
	Mint     string
	Owner    string
	Amount   string // base units, decimal string
	Decimals *int
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}
