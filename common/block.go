package common

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Phase is the point of block execution at which an event fired. The
// numeric values are persisted in events.phase.
type Phase uint16

const (
	PhaseApplyExtrinsic Phase = 0
	PhaseFinalization   Phase = 1
	PhaseInitialization Phase = 2
)

func (p Phase) String() string {
	switch p {
	case PhaseApplyExtrinsic:
		return "ApplyExtrinsic"
	case PhaseFinalization:
		return "Finalization"
	case PhaseInitialization:
		return "Initialization"
	default:
		return fmt.Sprintf("Phase(%d)", uint16(p))
	}
}

// LogType is the kind of a consensus digest item.
type LogType string

const (
	LogPreRuntime                LogType = "PreRuntime"
	LogConsensus                 LogType = "Consensus"
	LogSeal                      LogType = "Seal"
	LogOther                     LogType = "Other"
	LogRuntimeEnvironmentUpdated LogType = "RuntimeEnvironmentUpdated"
)

// Header is the storage-ready block header.
type Header struct {
	BlockNumber    uint64        `json:"block_number"`
	BlockTimestamp uint64        `json:"block_timestamp"`
	BlockHash      hexutil.Bytes `json:"block_hash"`
	ParentHash     hexutil.Bytes `json:"parent_hash"`
	ExtrinsicsRoot hexutil.Bytes `json:"extrinsics_root"`
	StateRoot      hexutil.Bytes `json:"state_root"`
	// IsFinished is set when a Finalization-phase event was observed.
	IsFinished  bool          `json:"is_finished"`
	Validator   hexutil.Bytes `json:"validator,omitempty"`
	SpecVersion uint32        `json:"spec_version"`
}

// Extrinsic is one decoded extrinsic of a block.
type Extrinsic struct {
	ID             string          `json:"id"`
	BlockNumber    uint64          `json:"block_number"`
	BlockTimestamp uint64          `json:"block_timestamp"`
	ExtrinsicHash  hexutil.Bytes   `json:"extrinsic_hash"`
	IsSigned       bool            `json:"is_signed"`
	ModName        string          `json:"mod_name"`
	CallName       string          `json:"call_name"`
	CallParams     json.RawMessage `json:"call_params,omitempty"`
	Signer         hexutil.Bytes   `json:"signer,omitempty"`
	Result         bool            `json:"result"`
}

// Event is one decoded event emitted while applying an extrinsic.
type Event struct {
	ID             string          `json:"id"`
	BlockNumber    uint64          `json:"block_number"`
	BlockTimestamp uint64          `json:"block_timestamp"`
	ExtrinsicID    string          `json:"extrinsic_id"`
	ExtrinsicIndex uint32          `json:"extrinsic_index"`
	ExtrinsicHash  hexutil.Bytes   `json:"extrinsic_hash"`
	ModName        string          `json:"mod_name"`
	EventName      string          `json:"event_name"`
	EventIndex     uint32          `json:"event_index"`
	Phase          Phase           `json:"phase"`
	Values         json.RawMessage `json:"values,omitempty"`
}

// Log is one consensus digest item of the header. Engine is empty when the
// consensus engine id is not a well-known one.
type Log struct {
	ID          string        `json:"id"`
	BlockNumber uint64        `json:"block_number"`
	Type        LogType       `json:"type"`
	Engine      string        `json:"engine,omitempty"`
	Data        hexutil.Bytes `json:"data,omitempty"`
}

type Body struct {
	Extrinsics []Extrinsic `json:"extrinsics,omitempty"`
	Events     []Event     `json:"events,omitempty"`
}

// Block is the record set extracted from one finalized block. It is not
// modified after extraction, so it may be shared between engines.
type Block struct {
	Header Header `json:"header"`
	Body   Body   `json:"body"`
	Logs   []Log  `json:"logs,omitempty"`
}

func ExtrinsicID(blockNumber uint64, index uint32) string {
	return fmt.Sprintf("%d-%d", blockNumber, index)
}

func EventID(blockNumber uint64, eventIndex uint32) string {
	return fmt.Sprintf("%d-%d", blockNumber, eventIndex)
}

func LogID(blockNumber uint64, logIndex int) string {
	return fmt.Sprintf("%d-%d", blockNumber, logIndex)
}

// WriteBlock is the unit handed to storage engines and remote storage
// nodes. The pipeline emits one block per message.
type WriteBlock struct {
	Chain  string    `json:"chain"`
	Kind   ChainKind `json:"chain_kind"`
	Blocks []*Block  `json:"blocks"`
}

// BlockPayload is a closed union over the block shapes of each chain
// kind. Exactly the field matching Kind is set.
type BlockPayload struct {
	Kind     ChainKind
	Polkadot *Block
}

// PolkadotPayload wraps a Substrate-family block.
func PolkadotPayload(b *Block) BlockPayload {
	return BlockPayload{Kind: ChainKindPolkadot, Polkadot: b}
}

// Number returns the block number carried by the payload.
func (p BlockPayload) Number() uint64 {
	switch p.Kind {
	case ChainKindPolkadot:
		if p.Polkadot != nil {
			return p.Polkadot.Header.BlockNumber
		}
	}
	return 0
}

// Payloads converts the request into one payload per block.
func (w *WriteBlock) Payloads() ([]BlockPayload, error) {
	payloads := make([]BlockPayload, 0, len(w.Blocks))
	for _, b := range w.Blocks {
		switch w.Kind {
		case ChainKindPolkadot:
			payloads = append(payloads, PolkadotPayload(b))
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedChainKind, w.Kind)
		}
	}
	return payloads, nil
}
