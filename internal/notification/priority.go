// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package notification

import "fmt"

// priorities maps every canonical type to its display priority. Higher
// number wins in the queue; ties are FIFO. The table covers the whole
// vocabulary: a known type missing here is a programming error and
// PriorityFor panics rather than guessing.
var priorities = map[Type]int{
	TypeChatMessage:  10,
	TypeFollow:       20,
	TypePaypiggy:     30,
	TypeGift:         40,
	TypeEnvelope:     45,
	TypeRaid:         60,
	TypeShare:        60,
	TypeRedemption:   70,
	TypeGiftPaypiggy: 80,
	TypeCommand:      90,
	TypeFarewell:     95,
	TypeGreeting:     100,
	TypeStreamStatus: 110,
}

// PriorityFor returns the fixed priority for a canonical type.
// Panics if the type has no mapping.
func PriorityFor(t Type) int {
	p, ok := priorities[t]
	if !ok {
		panic(fmt.Sprintf("notification: no priority mapping for type %q", t))
	}
	return p
}
