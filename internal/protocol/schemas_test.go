package protocol_test

import (
	"testing"

	"github.com/Aricg/TacticalBlocks-sub001/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	valid := []struct {
		schema string
		raw    string
	}{
		{protocol.SchemaHello, `{"type":"HELLO","protocol_version":"1.0","team":"blue","max_queue":8}`},
		{protocol.SchemaSubscribe, `{"type":"SUBSCRIBE","protocol_version":"1.0","format":"msgpack","field_every":10}`},
		{protocol.SchemaCommand, `{"type":"MOVE","protocol_version":"1.0","seq":3,"unit_id":"U000001","waypoints":[[1.5,2],[4,4.25]],"mode":{"speed_multiplier":1.5,"rotate_to_face":true},"target_rotation":1.57}`},
		{protocol.SchemaCommand, `{"type":"CANCEL","protocol_version":"1.0","unit_id":"U000001"}`},
		{protocol.SchemaCommand, `{"type":"PAUSE","protocol_version":"1.0","unit_id":"U000001"}`},
	}
	for _, c := range valid {
		if err := protocol.Validate(c.schema, []byte(c.raw)); err != nil {
			t.Fatalf("%s: %v\n%s", c.schema, err, c.raw)
		}
	}
}

func TestSchemas_RejectBadCommands(t *testing.T) {
	bad := []string{
		`{"type":"MOVE","protocol_version":"1.0","unit_id":"U1","waypoints":[["a","b"]]}`,
		`{"type":"MOVE","protocol_version":"1.0","unit_id":"U1","waypoints":[[1,2,3]]}`,
		`{"type":"MOVE","protocol_version":"1.0","unit_id":"U1","waypoints":[[1,null]]}`,
		`{"type":"MOVE","protocol_version":"1.0","unit_id":"U1"}`,
		`{"type":"MOVE","protocol_version":"1.0","unit_id":"U1","waypoints":[]}`,
		`{"type":"MOVE","protocol_version":"1.0","unit_id":"U1","waypoints":[[1,2]],"mode":{"speed_multiplier":0}}`,
		`{"type":"FIRE","protocol_version":"1.0","unit_id":"U1"}`,
		`{"type":"CANCEL","protocol_version":"1.0"}`,
	}
	for _, raw := range bad {
		if err := protocol.Validate(protocol.SchemaCommand, []byte(raw)); err == nil {
			t.Fatalf("expected rejection: %s", raw)
		}
	}
}

func TestValidateUnknownSchema(t *testing.T) {
	if err := protocol.Validate("nope.schema.json", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for unknown schema")
	}
}
