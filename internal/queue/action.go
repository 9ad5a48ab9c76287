package queue

import (
	"encoding/json"
	"fmt"

	"moneynotes/internal/core"
)

// Kind is the persisted discriminator of an Action.
type Kind string

const (
	KindAdd            Kind = "add"
	KindDelete         Kind = "delete"
	KindDeleteMultiple Kind = "deleteMultiple"
)

// Action is a deferred mutation. The set of implementations is closed:
// Add, Delete and DeleteMultiple.
type Action interface {
	Kind() Kind
	action()
}

type Add struct {
	Transaction core.Transaction
}

type Delete struct {
	ID string
}

type DeleteMultiple struct {
	IDs []string
}

func (Add) Kind() Kind            { return KindAdd }
func (Delete) Kind() Kind         { return KindDelete }
func (DeleteMultiple) Kind() Kind { return KindDeleteMultiple }

func (Add) action()            {}
func (Delete) action()         {}
func (DeleteMultiple) action() {}

type deletePayload struct {
	ID string `json:"id"`
}

type deleteMultiplePayload struct {
	IDs []string `json:"ids"`
}

// EncodeAction returns the discriminator and JSON payload stored for a.
func EncodeAction(a Action) (Kind, []byte, error) {
	var (
		payload []byte
		err     error
	)
	switch a := a.(type) {
	case Add:
		payload, err = json.Marshal(a.Transaction)
	case Delete:
		payload, err = json.Marshal(deletePayload{ID: a.ID})
	case DeleteMultiple:
		payload, err = json.Marshal(deleteMultiplePayload{IDs: a.IDs})
	default:
		return "", nil, fmt.Errorf("unknown action %T", a)
	}
	if err != nil {
		return "", nil, fmt.Errorf("encode %s payload: %w", a.Kind(), err)
	}
	return a.Kind(), payload, nil
}

// DecodeAction rebuilds an Action from its stored form.
func DecodeAction(kind Kind, payload []byte) (Action, error) {
	switch kind {
	case KindAdd:
		var tx core.Transaction
		if err := json.Unmarshal(payload, &tx); err != nil {
			return nil, fmt.Errorf("decode add payload: %w", err)
		}
		return Add{Transaction: tx}, nil
	case KindDelete:
		var p deletePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode delete payload: %w", err)
		}
		return Delete{ID: p.ID}, nil
	case KindDeleteMultiple:
		var p deleteMultiplePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode deleteMultiple payload: %w", err)
		}
		return DeleteMultiple{IDs: p.IDs}, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", kind)
	}
}
