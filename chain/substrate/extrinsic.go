package substrate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperdot/hyperdot-node/chain"
	"github.com/hyperdot/hyperdot-node/chain/scale"
)

const (
	extrinsicVersion = 4
	signedBit        = 0x80
)

var errUnsupportedExtrinsic = errors.New("unsupported extrinsic format")

// extrinsicTypes resolves the type ids an extrinsic is encoded with.
type extrinsicTypes struct {
	address   uint32
	signature uint32
	call      uint32
	// extra is empty when the runtime lists signed extensions without an
	// Extra type parameter.
	extra []uint32
}

func resolveExtrinsicTypes(md *scale.Metadata) (*extrinsicTypes, error) {
	t, err := md.Registry.Type(md.Extrinsic.Type)
	if err != nil {
		return nil, err
	}
	var xt extrinsicTypes
	var ok bool
	if xt.address, ok = t.Param("Address"); !ok {
		return nil, fmt.Errorf("%w: no Address type", errUnsupportedExtrinsic)
	}
	if xt.signature, ok = t.Param("Signature"); !ok {
		return nil, fmt.Errorf("%w: no Signature type", errUnsupportedExtrinsic)
	}
	if xt.call, ok = t.Param("Call"); !ok {
		return nil, fmt.Errorf("%w: no Call type", errUnsupportedExtrinsic)
	}
	if extra, ok := t.Param("Extra"); ok {
		xt.extra = []uint32{extra}
	} else {
		for _, ext := range md.Extrinsic.SignedExtensions {
			xt.extra = append(xt.extra, ext.Type)
		}
	}
	return &xt, nil
}

// decodeExtrinsic decodes one length-prefixed v4 extrinsic.
func decodeExtrinsic(md *scale.Metadata, raw []byte) (chain.Extrinsic, error) {
	xt := chain.Extrinsic{Hash: scale.Blake2b256(raw)}
	types, err := resolveExtrinsicTypes(md)
	if err != nil {
		return xt, err
	}

	d := scale.NewDecoder(raw)
	n, err := d.ReadLength(1)
	if err != nil {
		return xt, err
	}
	if n != d.Remaining() {
		return xt, fmt.Errorf("length prefix %d but %d bytes follow", n, d.Remaining())
	}
	version, err := d.ReadByte()
	if err != nil {
		return xt, err
	}
	if version&^signedBit != extrinsicVersion {
		return xt, fmt.Errorf("%w: version %d", errUnsupportedExtrinsic, version&^signedBit)
	}

	if version&signedBit != 0 {
		xt.Signed = true
		address, err := md.Registry.Decode(d, types.address)
		if err != nil {
			return xt, fmt.Errorf("address: %w", err)
		}
		xt.Signer = signerBytes(address)
		if _, err := md.Registry.Decode(d, types.signature); err != nil {
			return xt, fmt.Errorf("signature: %w", err)
		}
		for _, id := range types.extra {
			if _, err := md.Registry.Decode(d, id); err != nil {
				return xt, fmt.Errorf("signed extra: %w", err)
			}
		}
	}

	call, err := md.Registry.Decode(d, types.call)
	if err != nil {
		return xt, fmt.Errorf("call: %w", err)
	}
	if d.Remaining() != 0 {
		return xt, fmt.Errorf("%d trailing bytes after call", d.Remaining())
	}
	pallet, ok := call.(*scale.Variant)
	if !ok {
		return xt, fmt.Errorf("call decoded as %T", call)
	}
	inner, ok := pallet.Inner()
	if !ok {
		return xt, fmt.Errorf("call of pallet %s has no variant", pallet.Name)
	}
	params, err := json.Marshal(inner.Fields)
	if err != nil {
		return xt, err
	}
	xt.Pallet = pallet.Name
	xt.Call = inner.Name
	xt.Params = params
	return xt, nil
}

// signerBytes extracts the account bytes of a decoded address. For a
// MultiAddress this is the payload of Id, Raw, Address32 or Address20.
func signerBytes(address any) []byte {
	if b, ok := scale.AsBytes(address); ok {
		return b
	}
	v, ok := address.(*scale.Variant)
	if !ok || v.Fields == nil || len(v.Fields.Values) != 1 {
		return nil
	}
	b, _ := scale.AsBytes(v.Fields.Values[0])
	return b
}
