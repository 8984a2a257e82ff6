package ckksproto

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ldsec/lattigo/v2/ckks"
	"github.com/ldsec/lattigo/v2/rlwe"
)

// SerializeCiphertext converts a ciphertext to the bytes carried by one
// ciphertext frame.
func SerializeCiphertext(ct *ckks.Ciphertext) ([]byte, error) {
	data, err := ct.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("ckksproto: marshal ciphertext: %w", err)
	}
	return data, nil
}

// DeserializeCiphertext parses the bytes carried by one ciphertext frame.
func DeserializeCiphertext(data []byte) (*ckks.Ciphertext, error) {
	ct := new(ckks.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("ckksproto: unmarshal ciphertext: %w", err)
	}
	return ct, nil
}

// publicMaterialWire is the gob-encoded envelope for PublicMaterial: each
// component is serialized with its own lattigo MarshalBinary and the three
// resulting blobs are bundled together, since the wire protocol carries them
// as a single "public key" frame.
type publicMaterialWire struct {
	PublicKey []byte
	RelinKey  []byte
	RotKeys   []byte
}

// SerializePublicMaterial converts pm to the bytes carried by one public-key
// frame.
func SerializePublicMaterial(pm *PublicMaterial) ([]byte, error) {
	pkBytes, err := pm.PublicKey.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("ckksproto: marshal public key: %w", err)
	}
	rlkBytes, err := pm.RelinKey.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("ckksproto: marshal relinearization key: %w", err)
	}
	rtkBytes, err := pm.RotKeys.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("ckksproto: marshal rotation keys: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(publicMaterialWire{
		PublicKey: pkBytes,
		RelinKey:  rlkBytes,
		RotKeys:   rtkBytes,
	}); err != nil {
		return nil, fmt.Errorf("ckksproto: encode public material: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializePublicMaterial parses the bytes carried by one public-key
// frame.
func DeserializePublicMaterial(data []byte) (*PublicMaterial, error) {
	var w publicMaterialWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, fmt.Errorf("ckksproto: decode public material: %w", err)
	}

	pk := new(rlwe.PublicKey)
	if err := pk.UnmarshalBinary(w.PublicKey); err != nil {
		return nil, fmt.Errorf("ckksproto: unmarshal public key: %w", err)
	}
	rlk := new(rlwe.RelinearizationKey)
	if err := rlk.UnmarshalBinary(w.RelinKey); err != nil {
		return nil, fmt.Errorf("ckksproto: unmarshal relinearization key: %w", err)
	}
	rtk := new(rlwe.RotationKeySet)
	if err := rtk.UnmarshalBinary(w.RotKeys); err != nil {
		return nil, fmt.Errorf("ckksproto: unmarshal rotation keys: %w", err)
	}

	return &PublicMaterial{PublicKey: pk, RelinKey: rlk, RotKeys: rtk}, nil
}
