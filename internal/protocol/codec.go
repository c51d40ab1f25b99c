package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame formats for the observer stream.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Encode renders v as a JSON or msgpack frame. Msgpack frames reuse the json
// struct tags so both formats carry identical field names.
func Encode(format string, v any) ([]byte, error) {
	switch format {
	case "", FormatJSON:
		return json.Marshal(v)
	case FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		enc.SetOmitEmpty(true)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown frame format %q", format)
}

func Decode(format string, b []byte, v any) error {
	switch format {
	case "", FormatJSON:
		return json.Unmarshal(b, v)
	case FormatMsgpack:
		dec := msgpack.NewDecoder(bytes.NewReader(b))
		dec.SetCustomStructTag("json")
		return dec.Decode(v)
	}
	return fmt.Errorf("unknown frame format %q", format)
}

// Binary reports whether frames of format go out as binary websocket messages.
func Binary(format string) bool { return format == FormatMsgpack }
