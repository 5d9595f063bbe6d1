package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// metadataV1Key is the account discriminator of Metaplex MetadataV1.
const metadataV1Key = 4

// MetadataClient resolves token display names from Metaplex metadata accounts.
type MetadataClient struct {
	rpc RPCClient
}

// NewMetadataClient creates a MetadataClient backed by rpc.
func NewMetadataClient(rpc RPCClient) *MetadataClient {
	return &MetadataClient{rpc: rpc}
}

// Resolve returns the on-chain name and symbol of mint.
// Empty strings are returned when the mint has no metadata account.
func (m *MetadataClient) Resolve(ctx context.Context, mint string) (name, symbol string, err error) {
	pda, err := DeriveMetadataPDA(mint)
	if err != nil {
		return "", "", err
	}

	info, err := m.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		return "", "", errors.Wrap(err, "get metadata account")
	}
	if info == nil {
		return "", "", nil
	}

	name, symbol, err = ParseMetaplexMetadata(info.Data)
	if err != nil {
		return "", "", errors.Wrapf(err, "parse metadata for %s", mint)
	}
	return name, symbol, nil
}

// ParseMetaplexMetadata extracts name and symbol from base64 Metadata account data.
// Layout: key u8 | updateAuthority [32] | mint [32] | name borsh string | symbol borsh string | ...
func ParseMetaplexMetadata(data string) (name, symbol string, err error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", "", errors.Wrap(err, "decode metadata")
	}
	if len(decoded) < 1+2*PublicKeyLength+4 {
		return "", "", errors.Errorf("metadata too short: %d", len(decoded))
	}
	if decoded[0] != metadataV1Key {
		return "", "", errors.Errorf("unexpected metadata key %d", decoded[0])
	}

	offset := 1 + 2*PublicKeyLength
	name, offset, err = readBorshString(decoded, offset, 100)
	if err != nil {
		return "", "", errors.Wrap(err, "name")
	}
	symbol, _, err = readBorshString(decoded, offset, 20)
	if err != nil {
		return "", "", errors.Wrap(err, "symbol")
	}
	return name, symbol, nil
}

// readBorshString reads a u32-length-prefixed string, trimming NUL padding.
func readBorshString(buf []byte, offset, maxLen int) (string, int, error) {
	if offset+4 > len(buf) {
		return "", offset, errors.New("truncated length prefix")
	}
	n := int(binary.LittleEndian.Uint32(buf[offset:]))
	offset += 4
	if n > maxLen || offset+n > len(buf) {
		return "", offset, errors.Errorf("invalid string length %d", n)
	}
	s := strings.TrimRight(string(buf[offset:offset+n]), "\x00")
	return strings.TrimSpace(s), offset + n, nil
}
