package substrate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// hexNumber is a block number as returned by Substrate nodes. Unlike
// hexutil.Uint64 it accepts leading zeros.
type hexNumber uint64

func (n hexNumber) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("0x%x", uint64(n))), nil
}

func (n *hexNumber) UnmarshalText(text []byte) error {
	s := string(text)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return fmt.Errorf("block number %q: missing 0x prefix", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return fmt.Errorf("block number %q: %w", s, err)
	}
	*n = hexNumber(v)
	return nil
}

type rpcDigest struct {
	Logs []hexutil.Bytes `json:"logs"`
}

type rpcHeader struct {
	ParentHash     hexutil.Bytes `json:"parentHash"`
	Number         hexNumber     `json:"number"`
	StateRoot      hexutil.Bytes `json:"stateRoot"`
	ExtrinsicsRoot hexutil.Bytes `json:"extrinsicsRoot"`
	Digest         rpcDigest     `json:"digest"`
}

type rpcBlock struct {
	Header     rpcHeader       `json:"header"`
	Extrinsics []hexutil.Bytes `json:"extrinsics"`
}

type rpcSignedBlock struct {
	Block rpcBlock `json:"block"`
}

type rpcRuntimeVersion struct {
	SpecName           string `json:"specName"`
	ImplName           string `json:"implName"`
	SpecVersion        uint32 `json:"specVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}
