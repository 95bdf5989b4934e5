package relays

import (
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"proofofawesome/engine/actors"
	"proofofawesome/messaging/wire"
)

func eventFor(wallet *actors.Wallet, m wire.Message, now time.Time) (nostr.Event, error) {
	b, err := wire.Encode(m)
	if err != nil {
		return nostr.Event{}, err
	}
	tags := nostr.Tags{nostr.Tag{"t", string(m.Kind())}}
	if scoped, ok := m.(wire.ChainScoped); ok {
		tags = append(tags, nostr.Tag{"chain", scoped.Chain()})
	}
	e := nostr.Event{
		CreatedAt: nostr.Timestamp(now.Unix()),
		Kind:      EventKind,
		Tags:      tags,
		Content:   string(b),
	}
	if err := wallet.SignNostrEvent(&e); err != nil {
		return nostr.Event{}, err
	}
	return e, nil
}

func messageFrom(ev *nostr.Event) (wire.Message, error) {
	if ev.Kind != EventKind {
		return nil, fmt.Errorf("kind %d does not carry messages", ev.Kind)
	}
	if ok, err := ev.CheckSignature(); !ok {
		return nil, fmt.Errorf("invalid signature: %v", err)
	}
	m, err := wire.Decode([]byte(ev.Content))
	if err != nil {
		return nil, err
	}
	if t, ok := firstTag(ev, "t"); ok && t != string(m.Kind()) {
		return nil, fmt.Errorf("tagged %q but carries %q", t, m.Kind())
	}
	if !m.Kind().Inbound() {
		return nil, fmt.Errorf("%s is not sent by the server", m.Kind())
	}
	return m, nil
}

func firstTag(ev *nostr.Event, key string) (string, bool) {
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == key {
			return tag[1], true
		}
	}
	return "", false
}
