package views

import (
	"context"
	"fmt"
	"sync"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

// ProfilesState is the directory plus who the current user follows.
type ProfilesState struct {
	State[[]edu.Profile]
	Following edu.Follows `json:"following"`
}

// ProfilesView is the school directory with follower, following and post
// counts, and the current user's follow edges.
type ProfilesView struct {
	profiles *LiveView[[]edu.Profile]
	follows  *LiveView[edu.Follows]
	social   *services.SocialService
	tracker  *Tracker
	uid      string

	// serializes follow toggles so each sees the previous optimistic edge
	followMu sync.Mutex
	subs     listeners
}

func NewProfilesView(db realtime.Database, catalog *services.CatalogService, social *services.SocialService, tracker *Tracker, cache *localcache.Cache, uid string, logger *logging.ChanneledLogger) *ProfilesView {
	v := &ProfilesView{
		profiles: NewLiveView(LiveConfig[[]edu.Profile]{
			DB:     db,
			Path:   services.ProfilesPath,
			Decode: catalog.DecodeProfiles,
			Cache:  cache,
			Key:    localcache.KeyProfiles,
			TTL:    config.ProfilesCacheTTL,
			Logger: logger,
		}),
		follows: NewLiveView(LiveConfig[edu.Follows]{
			DB:     db,
			Path:   services.FollowingPath(uid),
			Decode: catalog.DecodeFollows,
			Logger: logger,
		}),
		social:  social,
		tracker: tracker,
		uid:     uid,
	}
	v.profiles.OnChange(v.subs.fire)
	v.follows.OnChange(v.subs.fire)
	return v
}

func (v *ProfilesView) Start(ctx context.Context) {
	v.profiles.Start(ctx)
	v.follows.Start(ctx)
}

// Ready closes once both the directory and the follow edges have arrived.
func (v *ProfilesView) Ready() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		<-v.profiles.Ready()
		<-v.follows.Ready()
		close(ch)
	}()
	return ch
}

func (v *ProfilesView) State() ProfilesState {
	following := edu.Follows{}
	for uid, on := range v.follows.State().Data {
		if on {
			following[uid] = true
		}
	}
	return ProfilesState{State: v.profiles.State(), Following: following}
}

func (v *ProfilesView) Snapshot() any { return v.State() }

func (v *ProfilesView) OnChange(fn func()) func() { return v.subs.add(fn) }

func (v *ProfilesView) Close() {
	v.profiles.Close()
	v.follows.Close()
}

// Follow sets or clears the edge to target, moving both counters at once.
func (v *ProfilesView) Follow(target string, follow bool) error {
	if target == "" || target == v.uid {
		return fmt.Errorf("%w: cannot follow yourself", edu.ErrValidation)
	}
	v.followMu.Lock()
	defer v.followMu.Unlock()

	if v.follows.State().Data[target] == follow {
		return services.ErrFollowUnchanged
	}
	delta := 1
	if !follow {
		delta = -1
	}

	setEdge := func(on bool) func(edu.Follows) edu.Follows {
		return func(f edu.Follows) edu.Follows {
			out := make(edu.Follows, len(f)+1)
			for k, val := range f {
				out[k] = val
			}
			if on {
				out[target] = true
			} else {
				delete(out, target)
			}
			return out
		}
	}
	followsEpoch := v.follows.Mutate(setEdge(follow))
	profilesEpoch := v.profiles.Mutate(func(list []edu.Profile) []edu.Profile {
		return edu.ApplyFollow(list, v.uid, target, delta)
	})

	revert := func() bool {
		a := v.follows.Revert(followsEpoch, setEdge(!follow))
		b := v.profiles.Revert(profilesEpoch, func(list []edu.Profile) []edu.Profile {
			return edu.ApplyFollow(list, v.uid, target, -delta)
		})
		return a || b
	}
	name := "unfollow"
	if follow {
		name = "follow"
	}
	v.tracker.Do(name, target, revert, func(ctx context.Context) error {
		return v.social.Follow(ctx, v.uid, target, follow)
	})
	return nil
}

// AdjustPostCount moves uid's post count optimistically. It is the
// CounterAdjuster the feed uses when posts are created or deleted.
func (v *ProfilesView) AdjustPostCount(uid string, delta int) func() bool {
	adjust := func(d int) func([]edu.Profile) []edu.Profile {
		return func(list []edu.Profile) []edu.Profile {
			out := make([]edu.Profile, len(list))
			copy(out, list)
			for i := range out {
				if out[i].UID == uid {
					out[i].PostCount += d
					if out[i].PostCount < 0 {
						out[i].PostCount = 0
					}
				}
			}
			return out
		}
	}
	epoch := v.profiles.Mutate(adjust(delta))
	return func() bool { return v.profiles.Revert(epoch, adjust(-delta)) }
}
