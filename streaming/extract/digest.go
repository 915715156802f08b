package extract

import (
	"fmt"

	"github.com/hyperdot/hyperdot-node/chain/scale"
	"github.com/hyperdot/hyperdot-node/common"
)

// Digest item tags.
const (
	digestOther                     = 0
	digestConsensus                 = 4
	digestSeal                      = 5
	digestPreRuntime                = 6
	digestRuntimeEnvironmentUpdated = 8
)

// Engine names of well-known consensus engine ids. Both the engine ids
// used in digests and the key type ids of the same engines are accepted.
var engines = map[string]string{
	"BABE": "Babe",
	"babe": "Babe",
	"FRNK": "Grandpa",
	"gran": "Grandpa",
	"aura": "Aura",
	"AURA": "Aura",
}

// EngineName maps a 4-byte consensus engine id to its well-known name, or
// "" when the engine is not recognized.
func EngineName(id []byte) string {
	return engines[string(id)]
}

// decodeLogs decodes every digest item of the header.
func decodeLogs(blockNumber uint64, digest [][]byte) ([]common.Log, error) {
	logs := make([]common.Log, 0, len(digest))
	for i, raw := range digest {
		l, err := decodeLog(raw)
		if err != nil {
			return nil, fmt.Errorf("digest item %d: %w", i, err)
		}
		l.ID = common.LogID(blockNumber, i)
		l.BlockNumber = blockNumber
		logs = append(logs, l)
	}
	return logs, nil
}

func decodeLog(raw []byte) (common.Log, error) {
	var l common.Log
	d := scale.NewDecoder(raw)
	tag, err := d.ReadByte()
	if err != nil {
		return l, err
	}

	switch tag {
	case digestPreRuntime, digestConsensus, digestSeal:
		l.Type = map[byte]common.LogType{
			digestPreRuntime: common.LogPreRuntime,
			digestConsensus:  common.LogConsensus,
			digestSeal:       common.LogSeal,
		}[tag]
		id, err := d.ReadBytes(4)
		if err != nil {
			return l, err
		}
		l.Engine = EngineName(id)
		if l.Data, err = d.ReadVec(); err != nil {
			return l, err
		}
	case digestOther:
		l.Type = common.LogOther
		if l.Data, err = d.ReadVec(); err != nil {
			return l, err
		}
	case digestRuntimeEnvironmentUpdated:
		l.Type = common.LogRuntimeEnvironmentUpdated
	default:
		return l, fmt.Errorf("unknown digest item type %d", tag)
	}

	if d.Remaining() != 0 {
		return l, fmt.Errorf("%d trailing bytes in digest item", d.Remaining())
	}
	if l.Data != nil {
		l.Data = append([]byte{}, l.Data...)
	}
	return l, nil
}
