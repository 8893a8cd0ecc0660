package domain

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

type PayloadKind string

const (
	PayloadPoll        PayloadKind = "poll"
	PayloadInteractive PayloadKind = "interactive"
)

type Poll struct {
	Question        string              `json:"question"`
	Options         []string            `json:"options"`
	SelectableCount int                 `json:"selectable_count,omitempty"`
	Votes           map[string][]string `json:"votes,omitempty"`
}

type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Interactive struct {
	Type       string   `json:"type"`
	Header     string   `json:"header,omitempty"`
	Body       string   `json:"body,omitempty"`
	Footer     string   `json:"footer,omitempty"`
	ReplyID    string   `json:"reply_id,omitempty"`
	ReplyTitle string   `json:"reply_title,omitempty"`
	Buttons    []Button `json:"buttons,omitempty"`
}

// Payload is the structured part of a poll or interactive message. Exactly
// one of Poll and Interactive is set, matching Kind. It is stored as
// {"kind": ..., "data": ...}.
type Payload struct {
	Kind        PayloadKind
	Poll        *Poll
	Interactive *Interactive
}

type payloadEnvelope struct {
	Kind PayloadKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch p.Kind {
	case PayloadPoll:
		data, err = json.Marshal(p.Poll)
	case PayloadInteractive:
		data, err = json.Marshal(p.Interactive)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, p.Kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(payloadEnvelope{Kind: p.Kind, Data: data})
}

func (p *Payload) UnmarshalJSON(raw []byte) error {
	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	switch env.Kind {
	case PayloadPoll:
		var poll Poll
		if err := json.Unmarshal(env.Data, &poll); err != nil {
			return err
		}
		*p = Payload{Kind: PayloadPoll, Poll: &poll}
	case PayloadInteractive:
		var interactive Interactive
		if err := json.Unmarshal(env.Data, &interactive); err != nil {
			return err
		}
		*p = Payload{Kind: PayloadInteractive, Interactive: &interactive}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, env.Kind)
	}
	return nil
}

// MessageType is the message type a payload kind belongs to.
func (p Payload) MessageType() Type {
	switch p.Kind {
	case PayloadPoll:
		return TypePoll
	case PayloadInteractive:
		return TypeInteractive
	default:
		return ""
	}
}

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[PayloadKind]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() {
	compiler := jsonschema.NewCompiler()
	files := map[PayloadKind]string{
		PayloadPoll:        "schemas/poll.json",
		PayloadInteractive: "schemas/interactive.json",
	}

	compiled := make(map[PayloadKind]*jsonschema.Schema, len(files))
	for kind, file := range files {
		raw, err := schemaFS.ReadFile(file)
		if err != nil {
			schemasErr = err
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			schemasErr = err
			return
		}
		if err := compiler.AddResource(file, doc); err != nil {
			schemasErr = err
			return
		}
		schema, err := compiler.Compile(file)
		if err != nil {
			schemasErr = err
			return
		}
		compiled[kind] = schema
	}
	schemas = compiled
}

// Validate checks the payload against the JSON schema of its kind.
func (p Payload) Validate() error {
	schemasOnce.Do(compileSchemas)
	if schemasErr != nil {
		return schemasErr
	}

	var data any
	switch {
	case p.Kind == PayloadPoll && p.Poll != nil:
		data = p.Poll
	case p.Kind == PayloadInteractive && p.Interactive != nil:
		data = p.Interactive
	default:
		return ErrInvalidPayload
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	if err := schemas[p.Kind].Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// DecodePayload decodes a stored payload. Empty input yields nil.
func DecodePayload(raw []byte) (*Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
