// Package common contains the data model shared by the ingestion pipeline,
// the storage engines and the storage-node transport.
package common

import (
	"fmt"
	"strings"
)

// ChainKind is the family a chain belongs to. It decides which concrete
// block shape is carried in a BlockPayload.
type ChainKind string

const (
	ChainKindPolkadot ChainKind = "Polkadot"
	ChainKindEthereum ChainKind = "Ethereum"
)

// ParseChainKind parses the catalog spelling of a chain kind.
func ParseChainKind(s string) (ChainKind, error) {
	switch strings.ToLower(s) {
	case "polkadot", "substrate":
		return ChainKindPolkadot, nil
	case "ethereum":
		return ChainKindEthereum, nil
	default:
		return "", fmt.Errorf("unknown chain kind '%s'", s)
	}
}

// Key used to set values in a web request context.
type ContextKey string

const (
	// RequestIDContextKey carries the request id set by the API middleware.
	RequestIDContextKey ContextKey = "request_id"
)
