package protocol

import "grandexchange-api/pkg/validate"

var (
	HelloSchema = validate.MustCompile("hello.schema.json", `{
		"type": "object",
		"required": ["type", "protocol_version", "token"],
		"properties": {
			"type": {"const": "HELLO"},
			"protocol_version": {"type": "string", "minLength": 1},
			"token": {"type": "string", "minLength": 1}
		}
	}`)

	AckSchema = validate.MustCompile("ack.schema.json", `{
		"type": "object",
		"required": ["type", "timestamp"],
		"properties": {
			"type": {"const": "HISTORY_ACK"},
			"timestamp": {"type": "integer", "minimum": 0}
		}
	}`)
)
