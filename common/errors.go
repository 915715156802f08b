package common

import (
	"errors"
	"fmt"
)

var (
	// ErrChainNotRegistered is returned by engines and the speaker when a
	// write or query names a chain they hold no connection or client for.
	ErrChainNotRegistered = errors.New("chain not registered")

	// ErrUnsupportedChainKind is returned when a payload carries a chain
	// kind no engine understands.
	ErrUnsupportedChainKind = errors.New("unsupported chain kind")
)

// ChainNotRegistered wraps ErrChainNotRegistered with the chain name.
func ChainNotRegistered(chain string) error {
	return fmt.Errorf("%w: %s", ErrChainNotRegistered, chain)
}
