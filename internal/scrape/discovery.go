package scrape

import (
	"context"
	"hash/fnv"
	"sync"

	"pawarisk/internal/platform"
	"pawarisk/pkg/types"
)

// syntheticBase offsets synthetic event ids well clear of the sportradar id
// space so competitor-only events never collide with joined ones.
const syntheticBase int64 = 1_000_000_000

// syntheticEventID derives a stable internal id for an event with no
// cross-platform id.
func syntheticEventID(p types.Platform, externalID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(string(p)))
	h.Write([]byte{'|'})
	h.Write([]byte(externalID))
	return syntheticBase + int64(h.Sum64()&0x3FFF_FFFF_FFFF_FFFF)
}

// internalEventID picks the internal id: the sportradar id when the
// platform exposes one, a synthetic id otherwise.
func internalEventID(p types.Platform, e platform.Event) int64 {
	if e.SportradarID != 0 {
		return e.SportradarID
	}
	return syntheticEventID(p, e.ExternalID)
}

// discovery is the per-cycle result of listing all enabled platforms.
type discovery struct {
	targets []types.EventTarget
	// betpawaMarkets holds the reference platform's market depth captured
	// at listing time, keyed by internal event id. BetPawa has no usable
	// per-event endpoint; listings are the fetch.
	betpawaMarkets map[int64]*platform.EventMarkets
	// errs holds the listing failure per platform, nil entries omitted.
	errs map[types.Platform]error
}

// discovered is one platform's listing output.
type discovered struct {
	platform types.Platform
	events   []platformEvent
	err      error
}

type platformEvent struct {
	event      platform.Event
	tournament string
}

// listPlatform walks one platform's tournaments and collects its events.
// A tournament listing failure aborts the platform; partial platforms are
// worse than absent ones because disappearance is meaningful downstream.
func listPlatform(ctx context.Context, client platform.Client) ([]platformEvent, error) {
	if err := client.Acquire(ctx); err != nil {
		return nil, err
	}
	tournaments, err := client.FetchTournaments(ctx)
	client.Release()
	if err != nil {
		return nil, err
	}

	var out []platformEvent
	for _, t := range tournaments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := client.Acquire(ctx); err != nil {
			return nil, err
		}
		events, err := client.FetchEventsByTournament(ctx, t.ExternalID)
		client.Release()
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			out = append(out, platformEvent{event: e, tournament: t.Name})
		}
	}
	return out, nil
}

// discover lists every enabled platform in parallel and joins the results
// into EventTargets by sportradar id. Competitor-only events are kept under
// synthetic ids: coverage gaps are data, not noise.
func discover(ctx context.Context, clients map[types.Platform]platform.Client) discovery {
	results := make(chan discovered, len(clients))
	var wg sync.WaitGroup
	for p, client := range clients {
		wg.Add(1)
		go func(p types.Platform, client platform.Client) {
			defer wg.Done()
			events, err := listPlatform(ctx, client)
			results <- discovered{platform: p, events: events, err: err}
		}(p, client)
	}
	wg.Wait()
	close(results)

	d := discovery{
		betpawaMarkets: make(map[int64]*platform.EventMarkets),
		errs:           make(map[types.Platform]error),
	}
	byID := make(map[int64]*types.EventTarget)

	for res := range results {
		if res.err != nil {
			d.errs[res.platform] = res.err
			continue
		}
		for _, pe := range res.events {
			id := internalEventID(res.platform, pe.event)
			target, ok := byID[id]
			if !ok {
				target = &types.EventTarget{
					EventID:      id,
					SportradarID: pe.event.SportradarID,
					Kickoff:      pe.event.Kickoff,
					Home:         pe.event.Home,
					Away:         pe.event.Away,
					Tournament:   pe.tournament,
					Platforms:    make(map[types.Platform]types.PlatformRef),
				}
				byID[id] = target
			}
			// Reference-platform naming wins over competitor naming.
			if res.platform == types.PlatformBetPawa {
				target.Home, target.Away = pe.event.Home, pe.event.Away
				target.Kickoff = pe.event.Kickoff
				target.Tournament = pe.tournament
				if pe.event.Markets != nil {
					d.betpawaMarkets[id] = pe.event.Markets
				}
			}
			fetchID := pe.event.FetchID
			if fetchID == "" {
				fetchID = pe.event.ExternalID
			}
			target.Platforms[res.platform] = types.PlatformRef{
				ExternalID: pe.event.ExternalID,
				FetchID:    fetchID,
			}
		}
	}

	d.targets = make([]types.EventTarget, 0, len(byID))
	for _, t := range byID {
		d.targets = append(d.targets, *t)
	}
	return d
}
