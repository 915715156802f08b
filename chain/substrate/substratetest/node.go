// Package substratetest runs an in-process Substrate JSON-RPC node for
// tests.
package substratetest

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hyperdot/hyperdot-node/chain/scale"
	"github.com/hyperdot/hyperdot-node/chain/scale/scaletest"
)

// BlockSpec describes the content of a block added to a Node.
type BlockSpec struct {
	Timestamp  uint64
	Author     *[32]byte
	Extrinsics [][]byte
	// Events is the encoded value of System.Events; see scaletest.Events.
	Events []byte
	Digest [][]byte
}

type block struct {
	number  uint64
	hash    hexutil.Bytes
	parent  hexutil.Bytes
	spec    BlockSpec
	storage map[string]hexutil.Bytes
}

// Node serves chain_* and state_* methods for a growing chain of blocks
// built on one runtime.
type Node struct {
	mu        sync.Mutex
	rt        *scaletest.Runtime
	metadata  hexutil.Bytes
	blocks    []*block
	byHash    map[string]*block
	finalized uint64
	calls     map[string]int
	failures  map[string]int

	server *rpc.Server
}

// NewNode returns a node holding only the genesis block.
func NewNode(rt *scaletest.Runtime) *Node {
	n := &Node{
		rt:       rt,
		metadata: rt.Metadata(),
		byHash:   map[string]*block{},
		calls:    map[string]int{},
		failures: map[string]int{},
		server:   rpc.NewServer(),
	}
	n.AddBlock(BlockSpec{})
	if err := n.server.RegisterName("chain", &chainService{n}); err != nil {
		panic(err)
	}
	if err := n.server.RegisterName("state", &stateService{n}); err != nil {
		panic(err)
	}
	return n
}

// Hash returns the hash of the block at number.
func Hash(number uint64) []byte {
	return scale.Blake2b256(binary.LittleEndian.AppendUint64([]byte("block"), number))
}

// AddBlock appends a block and returns its number. It is not finalized.
func (n *Node) AddBlock(spec BlockSpec) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	number := uint64(len(n.blocks))
	b := &block{
		number:  number,
		hash:    Hash(number),
		spec:    spec,
		storage: map[string]hexutil.Bytes{},
	}
	if number > 0 {
		b.parent = n.blocks[number-1].hash
	} else {
		b.parent = make([]byte, 32)
	}
	b.storage[storageKey("Timestamp", "Now")] = (&scaletest.Encoder{}).U64(spec.Timestamp).Bytes()
	if spec.Events != nil {
		b.storage[storageKey("System", "Events")] = spec.Events
	}
	if spec.Author != nil {
		b.storage[storageKey("Authorship", "Author")] = append([]byte{}, spec.Author[:]...)
	}
	n.blocks = append(n.blocks, b)
	n.byHash[b.hash.String()] = b
	return number
}

// Finalize moves the finalized head to number.
func (n *Node) Finalize(number uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if number >= uint64(len(n.blocks)) {
		panic(fmt.Sprintf("finalize unknown block %d", number))
	}
	n.finalized = number
}

// Client returns an in-process RPC client for the node.
func (n *Node) Client() *rpc.Client {
	return rpc.DialInProc(n.server)
}

func (n *Node) Server() *rpc.Server {
	return n.server
}

// Calls returns how many times method was called.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// FailNext makes the next count calls to method fail.
func (n *Node) FailNext(method string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[method] += count
}

func (n *Node) enter(method string) error {
	n.calls[method]++
	if n.failures[method] > 0 {
		n.failures[method]--
		return fmt.Errorf("injected failure in %s", method)
	}
	return nil
}

func (n *Node) lookup(hash hexutil.Bytes) *block {
	return n.byHash[hash.String()]
}

func storageKey(prefix, item string) string {
	return hexutil.Encode(scale.StorageKey(prefix, item))
}

func (b *block) header() map[string]any {
	logs := make([]hexutil.Bytes, len(b.spec.Digest))
	for i, d := range b.spec.Digest {
		logs[i] = d
	}
	return map[string]any{
		"parentHash":     b.parent,
		"number":         fmt.Sprintf("0x%x", b.number),
		"stateRoot":      hexutil.Bytes(scale.Blake2b256(append([]byte("state"), b.hash...))),
		"extrinsicsRoot": hexutil.Bytes(scale.Blake2b256(append([]byte("extrinsics"), b.hash...))),
		"digest":         map[string]any{"logs": logs},
	}
}

type chainService struct {
	n *Node
}

func (s *chainService) GetFinalizedHead() (hexutil.Bytes, error) {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	if err := s.n.enter("chain_getFinalizedHead"); err != nil {
		return nil, err
	}
	return s.n.blocks[s.n.finalized].hash, nil
}

func (s *chainService) GetBlockHash(number uint64) (*hexutil.Bytes, error) {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	if err := s.n.enter("chain_getBlockHash"); err != nil {
		return nil, err
	}
	if number >= uint64(len(s.n.blocks)) {
		return nil, nil
	}
	h := s.n.blocks[number].hash
	return &h, nil
}

func (s *chainService) GetHeader(hash hexutil.Bytes) (map[string]any, error) {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	if err := s.n.enter("chain_getHeader"); err != nil {
		return nil, err
	}
	b := s.n.lookup(hash)
	if b == nil {
		return nil, nil
	}
	return b.header(), nil
}

func (s *chainService) GetBlock(hash hexutil.Bytes) (map[string]any, error) {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	if err := s.n.enter("chain_getBlock"); err != nil {
		return nil, err
	}
	b := s.n.lookup(hash)
	if b == nil {
		return nil, nil
	}
	extrinsics := make([]hexutil.Bytes, len(b.spec.Extrinsics))
	for i, x := range b.spec.Extrinsics {
		extrinsics[i] = x
	}
	return map[string]any{
		"block": map[string]any{
			"header":     b.header(),
			"extrinsics": extrinsics,
		},
		"justifications": nil,
	}, nil
}

type stateService struct {
	n *Node
}

func (s *stateService) GetStorage(key hexutil.Bytes, hash hexutil.Bytes) (*hexutil.Bytes, error) {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	if err := s.n.enter("state_getStorage"); err != nil {
		return nil, err
	}
	b := s.n.lookup(hash)
	if b == nil {
		return nil, fmt.Errorf("unknown block %s", hash)
	}
	v, ok := b.storage[key.String()]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *stateService) GetRuntimeVersion(hash hexutil.Bytes) (map[string]any, error) {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	if err := s.n.enter("state_getRuntimeVersion"); err != nil {
		return nil, err
	}
	return map[string]any{
		"specName":           s.n.rt.SpecName,
		"implName":           s.n.rt.SpecName,
		"authoringVersion":   1,
		"specVersion":        s.n.rt.SpecVersion,
		"implVersion":        0,
		"transactionVersion": 1,
		"stateVersion":       1,
	}, nil
}

func (s *stateService) GetMetadata(hash hexutil.Bytes) (hexutil.Bytes, error) {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	if err := s.n.enter("state_getMetadata"); err != nil {
		return nil, err
	}
	return s.n.metadata, nil
}
