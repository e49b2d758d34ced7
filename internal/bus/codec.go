// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package bus

import (
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

// Message metadata keys.
const (
	MetaPlatform      = "platform"
	MetaType          = "type"
	MetaSchemaVersion = "schema_version"
	MetaCorrelationID = "correlation_id"
)

// EncodeEvent serializes a canonical event into a Watermill message.
// Platform and type are mirrored into metadata so consumers can route
// without unmarshaling the payload.
func EncodeEvent(ev *notification.Event) (*message.Message, error) {
	if ev == nil {
		return nil, fmt.Errorf("nil event")
	}
	if ev.SchemaVersion == 0 {
		ev.SchemaVersion = notification.SchemaVersion
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetaPlatform, string(ev.Platform))
	msg.Metadata.Set(MetaType, string(ev.Type))
	msg.Metadata.Set(MetaSchemaVersion, strconv.Itoa(ev.SchemaVersion))
	return msg, nil
}

// DecodeEvent deserializes a Watermill message back into a canonical
// event. Messages with a newer schema version than this build understands
// are rejected.
func DecodeEvent(msg *message.Message) (*notification.Event, error) {
	var ev notification.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.SchemaVersion > notification.SchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %d", ev.SchemaVersion)
	}
	return &ev, nil
}
