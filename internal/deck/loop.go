// ABOUTME: Control loop applying decoder events and realtime signals to the deck
// ABOUTME: The only place Loading becomes Ready and Playing becomes Stopped at end of track
package deck

import (
	"context"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/decoder"
)

// Run moves the deck from Starting to Empty and then processes decoder
// events and callback signals until ctx is cancelled or the deck quits.
func (d *Deck) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.current() == Starting {
		d.setState(Empty)
	}
	d.mu.Unlock()

	ticker := time.NewTicker(d.cfg.SignalPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.done:
			return nil
		case ev := <-d.sup.Events():
			d.handleEvent(ev)
		case <-ticker.C:
			d.handleSignal()
		}
	}
}

func (d *Deck) handleEvent(ev decoder.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ev.Run != d.sup.Run() {
		d.log.Debug().Uint64("run", ev.Run).Stringer("event", ev.Kind).Msg("Ignoring event from replaced decode task")
		return
	}

	switch ev.Kind {
	case decoder.EventReady:
		if d.current() != Loading {
			return
		}
		if d.playWhenReady {
			d.playWhenReady = false
			d.setState(Playing)
			return
		}
		d.setState(Ready)

	case decoder.EventFailed:
		d.reportErrorLocked(ev.Err)
	}
}

func (d *Deck) handleSignal() {
	sig := d.signal.Load()
	if sig == signalNone {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.signal.CompareAndSwap(sig, signalNone) || d.current() != Playing {
		return
	}

	switch sig {
	case signalEndOfTrack:
		d.log.Info().Msg("End of track")
		if d.track != nil {
			d.setPosition(d.track.index.Duration())
		}
		d.stopLocked()
	case signalUnderrun:
		d.reportErrorLocked(decoder.ErrUnderrun)
	}
}
