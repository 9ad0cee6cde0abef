package itemx

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Codec provides content-type aware marshaling. Generated Serialize and
// Deserialize methods take the codec to use.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}

var (
	// JSON encodes items with encoding/json.
	JSON Codec = jsonCodec{}

	// MsgPack encodes items as MessagePack. It reads `json` struct tags so
	// field names match the JSON form.
	MsgPack Codec = msgpackCodec{}

	// YAML encodes items with gopkg.in/yaml.v3.
	YAML Codec = yamlCodec{}
)

// CodecFor returns the codec registered under name (json, msgpack, yaml).
func CodecFor(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json", "":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return nil, NewUnknownCodecError(name)
	}
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string {
	return "application/json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type msgpackCodec struct{}

func (msgpackCodec) ContentType() string {
	return "application/msgpack"
}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

type yamlCodec struct{}

func (yamlCodec) ContentType() string {
	return "application/yaml"
}

func (yamlCodec) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (yamlCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}
