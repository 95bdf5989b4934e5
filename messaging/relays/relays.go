package relays

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"proofofawesome/engine/actors"
	"proofofawesome/engine/library"
	"proofofawesome/messaging/wire"
)

// EventKind is the nostr kind that carries wire envelopes.
const EventKind = 31337

// seenEvents bounds how many event ids are remembered for cross-relay dedupe.
const seenEvents = 4096

// Relays mirrors the event channel over a set of nostr relays. Outbound messages are
// published as events signed by the wallet; inbound messages are events tagged with the
// wallet's relay pubkey.
type Relays struct {
	wallet    *actors.Wallet
	urls      []string
	connected []*nostr.Relay
	mu        *deadlock.Mutex
	inbound   chan wire.Message
	seen      *lru.Cache
	cancel    context.CancelFunc
	wait      *deadlock.WaitGroup
	done      chan struct{}
	closeOnce deadlock.Once
}

// Connect dials every relay in urls and subscribes to events addressed to wallet.
// It fails only if no relay could be reached.
func Connect(ctx context.Context, urls []string, wallet *actors.Wallet) (*Relays, error) {
	r, err := newRelays(urls, wallet)
	if err != nil {
		return nil, err
	}
	if err := r.subscribe(ctx); err != nil {
		return nil, err
	}
	sleepChan := make(chan bool)
	sleeper(sleepChan)
	go func() {
		for {
			select {
			case <-sleepChan:
				library.LogCLI("system sleep detected, reconnecting to relays", 2)
				if err := r.subscribe(context.Background()); err != nil {
					library.LogCLI(err.Error(), 1)
				}
			case <-r.done:
				return
			}
		}
	}()
	return r, nil
}

func newRelays(urls []string, wallet *actors.Wallet) (*Relays, error) {
	if wallet == nil {
		return nil, actors.ErrWalletNotCreated
	}
	seen, err := lru.New(seenEvents)
	if err != nil {
		return nil, err
	}
	return &Relays{
		wallet:  wallet,
		urls:    urls,
		mu:      &deadlock.Mutex{},
		inbound: make(chan wire.Message),
		seen:    seen,
		wait:    &deadlock.WaitGroup{},
		done:    make(chan struct{}),
	}, nil
}

func (r *Relays) subscribe(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnect()
	subCtx, cancel := context.WithCancel(context.Background())
	filters := nostr.Filters{nostr.Filter{
		Kinds: []int{EventKind},
		Tags:  map[string][]string{"p": {r.wallet.NostrPubKey()}},
	}}
	for _, url := range r.urls {
		relay, err := nostr.RelayConnect(ctx, url)
		if err != nil {
			library.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 2)
			continue
		}
		sub, err := relay.Subscribe(subCtx, filters)
		if err != nil {
			library.LogCLI(fmt.Sprintf("could not subscribe to relay %s: %s", url, err), 2)
			relay.Close()
			continue
		}
		library.LogCLI("Connected to "+url, 4)
		r.connected = append(r.connected, relay)
		r.wait.Add(1)
		go r.listen(subCtx, sub)
	}
	if len(r.connected) == 0 {
		cancel()
		return fmt.Errorf("could not reach any of %d relays", len(r.urls))
	}
	r.cancel = cancel
	return nil
}

// disconnect must be called with mu held.
func (r *Relays) disconnect() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	for _, relay := range r.connected {
		relay.Close()
	}
	r.connected = nil
	r.wait.Wait()
}

func (r *Relays) listen(ctx context.Context, sub *nostr.Subscription) {
	defer r.wait.Done()
	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok || ev == nil {
				return
			}
			if !r.firstSighting(ev.ID) {
				continue
			}
			m, err := messageFrom(ev)
			if err != nil {
				library.LogCLI(fmt.Sprintf("dropping event %s: %s", ev.ID, err.Error()), 2)
				continue
			}
			select {
			case r.inbound <- m:
			case <-ctx.Done():
				return
			case <-r.done:
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// firstSighting dedupes events delivered by more than one relay. Only the most
// recent seenEvents ids are remembered.
func (r *Relays) firstSighting(id string) bool {
	seen, _ := r.seen.ContainsOrAdd(id, struct{}{})
	return !seen
}

func (r *Relays) Receive() <-chan wire.Message {
	return r.inbound
}

// Send publishes m to every connected relay and succeeds if at least one accepted it.
func (r *Relays) Send(ctx context.Context, m wire.Message) error {
	e, err := eventFor(r.wallet, m, time.Now())
	if err != nil {
		return err
	}
	r.mu.Lock()
	relays := make([]*nostr.Relay, len(r.connected))
	copy(relays, r.connected)
	r.mu.Unlock()
	var published int
	var lastErr error
	for _, relay := range relays {
		sane := library.WatchExecution()
		_, err := relay.Publish(ctx, e)
		sane()
		if err != nil {
			library.LogCLI(fmt.Sprintf("could not publish to relay %s: %s", relay.URL, err), 2)
			lastErr = err
			continue
		}
		published++
	}
	if published == 0 {
		return fmt.Errorf("%s was not published to any relay: %v", m.Kind(), lastErr)
	}
	return nil
}

func (r *Relays) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.mu.Lock()
		r.disconnect()
		r.mu.Unlock()
		close(r.inbound)
	})
	return nil
}
