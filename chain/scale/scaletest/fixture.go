package scaletest

import (
	"math/big"

	"github.com/hyperdot/hyperdot-node/chain/scale"
)

// Pallet indices of the Runtime fixture.
const (
	SystemIndex     = 0
	TimestampIndex  = 3
	AuthorshipIndex = 4
	BalancesIndex   = 5
)

// Runtime is a small Polkadot-like runtime: System, Timestamp, Authorship
// and Balances, with v4 extrinsics signed by a MultiAddress.
type Runtime struct {
	SpecName    string
	SpecVersion uint32

	Builder *Builder

	AccountID      uint32
	MultiAddress   uint32
	RuntimeCall    uint32
	RuntimeEvent   uint32
	EventRecords   uint32
	RuntimeVersion uint32
	Extrinsic      uint32
}

func u32ptr(v uint32) *uint32 {
	return &v
}

func path(p ...string) []string {
	return p
}

func field(name string, ty uint32) scale.Field {
	return scale.Field{Name: name, Type: ty}
}

func unnamed(ty uint32) scale.Field {
	return scale.Field{Type: ty}
}

// NewRuntime builds the fixture runtime.
func NewRuntime(specName string, specVersion uint32) *Runtime {
	b := &Builder{}
	r := &Runtime{SpecName: specName, SpecVersion: specVersion, Builder: b}

	u8 := b.Primitive(scale.PrimU8)
	u32 := b.Primitive(scale.PrimU32)
	u64 := b.Primitive(scale.PrimU64)
	u128 := b.Primitive(scale.PrimU128)
	str := b.Primitive(scale.PrimStr)
	bytes := b.Sequence(u8)
	bytes4 := b.Array(4, u8)
	bytes32 := b.Array(32, u8)
	bytes64 := b.Array(64, u8)
	unit := b.Tuple()

	compactU32 := b.Compact(u32)
	compactU64 := b.Compact(u64)
	compactU128 := b.Compact(u128)

	r.AccountID = b.Composite(path("sp_core", "crypto", "AccountId32"), unnamed(bytes32))
	r.MultiAddress = b.Variant(path("sp_runtime", "multiaddress", "MultiAddress"),
		scale.VariantDef{Name: "Id", Index: 0, Fields: []scale.Field{unnamed(r.AccountID)}},
		scale.VariantDef{Name: "Index", Index: 1, Fields: []scale.Field{unnamed(compactU32)}},
		scale.VariantDef{Name: "Raw", Index: 2, Fields: []scale.Field{unnamed(bytes)}},
		scale.VariantDef{Name: "Address32", Index: 3, Fields: []scale.Field{unnamed(bytes32)}},
	)
	signature := b.Variant(path("sp_runtime", "MultiSignature"),
		scale.VariantDef{Name: "Ed25519", Index: 0, Fields: []scale.Field{unnamed(bytes64)}},
		scale.VariantDef{Name: "Sr25519", Index: 1, Fields: []scale.Field{unnamed(bytes64)}},
	)

	systemCall := b.Variant(path("frame_system", "pallet", "Call"),
		scale.VariantDef{Name: "remark", Index: 0, Fields: []scale.Field{field("remark", bytes)}},
	)
	timestampCall := b.Variant(path("pallet_timestamp", "pallet", "Call"),
		scale.VariantDef{Name: "set", Index: 0, Fields: []scale.Field{field("now", compactU64)}},
	)
	balancesCall := b.Variant(path("pallet_balances", "pallet", "Call"),
		scale.VariantDef{Name: "transfer_allow_death", Index: 0, Fields: []scale.Field{field("dest", r.MultiAddress), field("value", compactU128)}},
		scale.VariantDef{Name: "transfer_keep_alive", Index: 3, Fields: []scale.Field{field("dest", r.MultiAddress), field("value", compactU128)}},
	)
	r.RuntimeCall = b.Variant(path("polkadot_runtime", "RuntimeCall"),
		scale.VariantDef{Name: "System", Index: SystemIndex, Fields: []scale.Field{unnamed(systemCall)}},
		scale.VariantDef{Name: "Timestamp", Index: TimestampIndex, Fields: []scale.Field{unnamed(timestampCall)}},
		scale.VariantDef{Name: "Balances", Index: BalancesIndex, Fields: []scale.Field{unnamed(balancesCall)}},
	)

	dispatchClass := b.Variant(path("frame_support", "dispatch", "DispatchClass"),
		scale.VariantDef{Name: "Normal", Index: 0},
		scale.VariantDef{Name: "Operational", Index: 1},
		scale.VariantDef{Name: "Mandatory", Index: 2},
	)
	pays := b.Variant(path("frame_support", "dispatch", "Pays"),
		scale.VariantDef{Name: "Yes", Index: 0},
		scale.VariantDef{Name: "No", Index: 1},
	)
	dispatchInfo := b.Composite(path("frame_support", "dispatch", "DispatchInfo"),
		field("weight", u64), field("class", dispatchClass), field("pays_fee", pays))
	moduleError := b.Composite(path("sp_runtime", "ModuleError"), field("index", u8), field("error", bytes4))
	dispatchError := b.Variant(path("sp_runtime", "DispatchError"),
		scale.VariantDef{Name: "Other", Index: 0},
		scale.VariantDef{Name: "BadOrigin", Index: 2},
		scale.VariantDef{Name: "Module", Index: 3, Fields: []scale.Field{unnamed(moduleError)}},
	)

	systemEvent := b.Variant(path("frame_system", "pallet", "Event"),
		scale.VariantDef{Name: "ExtrinsicSuccess", Index: 0, Fields: []scale.Field{field("dispatch_info", dispatchInfo)}},
		scale.VariantDef{Name: "ExtrinsicFailed", Index: 1, Fields: []scale.Field{field("dispatch_error", dispatchError), field("dispatch_info", dispatchInfo)}},
		scale.VariantDef{Name: "NewAccount", Index: 3, Fields: []scale.Field{field("account", r.AccountID)}},
	)
	balancesEvent := b.Variant(path("pallet_balances", "pallet", "Event"),
		scale.VariantDef{Name: "Transfer", Index: 2, Fields: []scale.Field{field("from", r.AccountID), field("to", r.AccountID), field("amount", u128)}},
		scale.VariantDef{Name: "Withdraw", Index: 8, Fields: []scale.Field{field("who", r.AccountID), field("amount", u128)}},
	)
	r.RuntimeEvent = b.Variant(path("polkadot_runtime", "RuntimeEvent"),
		scale.VariantDef{Name: "System", Index: SystemIndex, Fields: []scale.Field{unnamed(systemEvent)}},
		scale.VariantDef{Name: "Balances", Index: BalancesIndex, Fields: []scale.Field{unnamed(balancesEvent)}},
	)

	phase := b.Variant(path("frame_system", "Phase"),
		scale.VariantDef{Name: "ApplyExtrinsic", Index: 0, Fields: []scale.Field{unnamed(u32)}},
		scale.VariantDef{Name: "Finalization", Index: 1},
		scale.VariantDef{Name: "Initialization", Index: 2},
	)
	h256 := b.Composite(path("primitive_types", "H256"), unnamed(bytes32))
	topics := b.Sequence(h256)
	eventRecord := b.Composite(path("frame_system", "EventRecord"),
		field("phase", phase), field("event", r.RuntimeEvent), field("topics", topics))
	r.EventRecords = b.Sequence(eventRecord)

	r.RuntimeVersion = b.Composite(path("sp_version", "RuntimeVersion"),
		field("spec_name", str),
		field("impl_name", str),
		field("authoring_version", u32),
		field("spec_version", u32),
		field("impl_version", u32),
		field("transaction_version", u32),
		field("state_version", u8),
	)

	checkNonce := b.Composite(path("frame_system", "extensions", "check_nonce", "CheckNonce"), unnamed(compactU32))
	chargeTx := b.Composite(path("pallet_transaction_payment", "ChargeTransactionPayment"), unnamed(compactU128))
	extra := b.Tuple(checkNonce, chargeTx)
	r.Extrinsic = b.CompositeWithParams(path("sp_runtime", "generic", "unchecked_extrinsic", "UncheckedExtrinsic"),
		[]scale.TypeParam{
			{Name: "Address", Type: u32ptr(r.MultiAddress)},
			{Name: "Call", Type: u32ptr(r.RuntimeCall)},
			{Name: "Signature", Type: u32ptr(signature)},
			{Name: "Extra", Type: u32ptr(extra)},
		},
		unnamed(bytes),
	)
	b.SetExtrinsic(scale.ExtrinsicInfo{
		Type:    r.Extrinsic,
		Version: 4,
		SignedExtensions: []scale.SignedExtension{
			{Identifier: "CheckNonce", Type: checkNonce, AdditionalSigned: unit},
			{Identifier: "ChargeTransactionPayment", Type: chargeTx, AdditionalSigned: unit},
		},
	})
	b.SetRuntimeType(r.RuntimeCall)

	b.AddPallet(&scale.Pallet{
		Name:          "System",
		Index:         SystemIndex,
		StoragePrefix: "System",
		Storage: map[string]*scale.StorageEntry{
			"Events": {Name: "Events", Plain: true, ValueType: r.EventRecords, Default: []byte{0}},
			"Number": {Name: "Number", Plain: true, ValueType: u32, Default: []byte{0, 0, 0, 0}},
		},
		CallType:  u32ptr(systemCall),
		EventType: u32ptr(systemEvent),
		Constants: map[string]*scale.Constant{
			"Version": {Name: "Version", Type: r.RuntimeVersion, Value: r.VersionBytes()},
		},
	})
	b.AddPallet(&scale.Pallet{
		Name:          "Timestamp",
		Index:         TimestampIndex,
		StoragePrefix: "Timestamp",
		Storage: map[string]*scale.StorageEntry{
			"Now": {Name: "Now", Plain: true, ValueType: u64, Default: make([]byte, 8)},
		},
		CallType: u32ptr(timestampCall),
		Constants: map[string]*scale.Constant{
			"MinimumPeriod": {Name: "MinimumPeriod", Type: u64, Value: (&Encoder{}).U64(3000).Bytes()},
		},
	})
	b.AddPallet(&scale.Pallet{
		Name:          "Authorship",
		Index:         AuthorshipIndex,
		StoragePrefix: "Authorship",
		Storage: map[string]*scale.StorageEntry{
			"Author": {Name: "Author", Optional: true, Plain: true, ValueType: r.AccountID},
		},
	})
	b.AddPallet(&scale.Pallet{
		Name:          "Balances",
		Index:         BalancesIndex,
		StoragePrefix: "Balances",
		Storage: map[string]*scale.StorageEntry{
			"Account": {
				Name:      "Account",
				Hashers:   []scale.StorageHasher{scale.HasherBlake2_128Concat},
				KeyType:   r.AccountID,
				ValueType: u128,
				Default:   make([]byte, 16),
			},
		},
		CallType:  u32ptr(balancesCall),
		EventType: u32ptr(balancesEvent),
		Constants: map[string]*scale.Constant{},
	})
	return r
}

// Metadata returns the encoded metadata of the runtime.
func (r *Runtime) Metadata() []byte {
	return r.Builder.Encode()
}

// VersionBytes encodes the System.Version constant.
func (r *Runtime) VersionBytes() []byte {
	return (&Encoder{}).
		Str(r.SpecName).
		Str(r.SpecName).
		U32(1).
		U32(r.SpecVersion).
		U32(0).
		U32(1).
		U8(1).
		Bytes()
}

// withLength prefixes body with its compact length.
func withLength(body []byte) []byte {
	return (&Encoder{}).Vec(body).Bytes()
}

// TimestampSet encodes the unsigned Timestamp.set inherent.
func TimestampSet(now uint64) []byte {
	body := (&Encoder{}).
		U8(4).
		U8(TimestampIndex).U8(0).Compact(now).
		Bytes()
	return withLength(body)
}

// Remark encodes an unsigned System.remark call.
func Remark(msg []byte) []byte {
	body := (&Encoder{}).
		U8(4).
		U8(SystemIndex).U8(0).Vec(msg).
		Bytes()
	return withLength(body)
}

// TransferKeepAlive encodes a signed Balances.transfer_keep_alive.
func TransferKeepAlive(signer, dest [32]byte, amount uint64, nonce uint32) []byte {
	e := &Encoder{}
	e.U8(0x84)
	e.U8(0).Raw(signer[:])
	e.U8(1).Raw(make([]byte, 64))
	e.Compact(uint64(nonce)).Compact(0)
	e.U8(BalancesIndex).U8(3)
	e.U8(0).Raw(dest[:])
	e.Compact(amount)
	return withLength(e.Bytes())
}

// Event is one encoded EventRecord.
type Event struct {
	// Phase is 0 for ApplyExtrinsic, 1 for Finalization and 2 for
	// Initialization.
	Phase     uint8
	Extrinsic uint32
	Body      []byte
}

// Events encodes the value of System.Events.
func Events(events ...Event) []byte {
	e := &Encoder{}
	e.Compact(uint64(len(events)))
	for _, ev := range events {
		e.U8(ev.Phase)
		if ev.Phase == 0 {
			e.U32(ev.Extrinsic)
		}
		e.Raw(ev.Body)
		e.Compact(0)
	}
	return e.Bytes()
}

func dispatchInfo(e *Encoder) {
	e.U64(125_000_000).U8(0).U8(0)
}

func ExtrinsicSuccess() []byte {
	e := (&Encoder{}).U8(SystemIndex).U8(0)
	dispatchInfo(e)
	return e.Bytes()
}

func ExtrinsicFailed() []byte {
	e := (&Encoder{}).U8(SystemIndex).U8(1).U8(2)
	dispatchInfo(e)
	return e.Bytes()
}

func NewAccount(who [32]byte) []byte {
	return (&Encoder{}).U8(SystemIndex).U8(3).Raw(who[:]).Bytes()
}

func Transfer(from, to [32]byte, amount uint64) []byte {
	return (&Encoder{}).
		U8(BalancesIndex).U8(2).
		Raw(from[:]).Raw(to[:]).
		U128(new(big.Int).SetUint64(amount)).
		Bytes()
}

// Account returns a 32-byte account id filled with b.
func Account(b byte) [32]byte {
	var id [32]byte
	for i := range id {
		id[i] = b
	}
	return id
}
