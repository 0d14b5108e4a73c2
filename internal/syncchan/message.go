// Package syncchan carries board updates between windows that have the same board open.
//
// Messages are self-contained: order-bearing messages carry the complete order, never a
// delta, so a receiver can apply any message on its own and applying one twice is harmless.
package syncchan

import (
	"encoding/json"
	"fmt"
	"strings"

	"moodboard/internal/model"
	"moodboard/internal/stack"
)

type Type string

const (
	TypeOrderChanged      Type = "order-changed"
	TypeVisibilityChanged Type = "visibility-changed"
	TypeBackgroundChanged Type = "background-changed"
	TypeFiltersChanged    Type = "filters-changed"
	TypeImageAdded        Type = "image-added"
	TypeGroupsChanged     Type = "groups-changed"
	TypeLayerRemoved      Type = "layer-removed"
	TypeStateRequest      Type = "state-request"
	TypeStateResponse     Type = "state-response"
)

func (t Type) Valid() bool {
	switch t {
	case TypeOrderChanged, TypeVisibilityChanged, TypeBackgroundChanged, TypeFiltersChanged,
		TypeImageAdded, TypeGroupsChanged, TypeLayerRemoved, TypeStateRequest, TypeStateResponse:
		return true
	}
	return false
}

// Message is the wire form: {"type": ..., ...payload}.
type Message struct {
	Type    Type   `json:"type"`
	BoardID string `json:"boardId"`
	// Origin is the window that sent the message. Receivers skip their own.
	Origin string `json:"origin"`

	// order-changed, state-response
	Order []stack.Entry `json:"order,omitempty"`
	// groups-changed, state-response. Nil means no groups.
	Groups []model.Group `json:"groups,omitempty"`
	// visibility-changed, filters-changed, layer-removed
	LayerID string `json:"layerId,omitempty"`
	Visible *bool  `json:"visible,omitempty"`
	// filters-changed. Nil clears the layer's filters.
	Filters *model.Filters `json:"filters,omitempty"`
	// background-changed, state-response
	BgColor string `json:"bgColor,omitempty"`
	// image-added
	Layer *model.Layer `json:"layer,omitempty"`
}

func (m Message) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	if strings.TrimSpace(m.BoardID) == "" {
		return fmt.Errorf("%s: missing boardId", m.Type)
	}
	switch m.Type {
	case TypeVisibilityChanged:
		if m.LayerID == "" || m.Visible == nil {
			return fmt.Errorf("%s: missing layerId or visible", m.Type)
		}
	case TypeFiltersChanged, TypeLayerRemoved:
		if m.LayerID == "" {
			return fmt.Errorf("%s: missing layerId", m.Type)
		}
	case TypeImageAdded:
		if m.Layer == nil || m.Layer.ID == "" {
			return fmt.Errorf("%s: missing layer", m.Type)
		}
	}
	return nil
}

func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, err
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
