package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"racebot-stats/models"
	"racebot-stats/temperrors"
)

// Codec turns a snapshot into bytes and back.
type Codec interface {
	Name() string
	Ext() string
	Encode(snap *models.Snapshot) ([]byte, error)
	Decode(data []byte) (*models.Snapshot, error)
}

func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %q", temperrors.ErrInvalidConfig, name)
	}
}

type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Ext() string  { return ".json" }

func (JSONCodec) Encode(snap *models.Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

func (JSONCodec) Decode(data []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	snap.Normalize()
	return &snap, nil
}

// MsgpackCodec reuses the json struct tags so both encodings share field names.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }
func (MsgpackCodec) Ext() string  { return ".msgpack" }

func (MsgpackCodec) Encode(snap *models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Decode(data []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&snap); err != nil {
		return nil, err
	}
	snap.Normalize()
	return &snap, nil
}
