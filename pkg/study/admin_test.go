package study

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

func TestDeductSession(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name        string
		keepLength  time.Duration
		keepVideo   time.Duration
		owner       string
		wantErr     error
		wantDeleted bool
		wantLength  time.Duration
	}{
		{name: "shortens", keepLength: 40 * time.Minute, keepVideo: 20 * time.Minute, owner: "user-1", wantLength: 40 * time.Minute},
		{name: "zero length deletes", keepLength: 0, owner: "user-1", wantDeleted: true},
		{name: "video above recorded", keepLength: 50 * time.Minute, keepVideo: 31 * time.Minute, owner: "user-1", wantErr: ErrInvalidSimulationInput},
		{name: "video above kept length", keepLength: 10 * time.Minute, keepVideo: 20 * time.Minute, owner: "user-1", wantErr: ErrInvalidSimulationInput},
		{name: "length above recorded", keepLength: 61 * time.Minute, keepVideo: 0, owner: "user-1", wantErr: ErrInvalidSimulationInput},
		{name: "other owner", keepLength: 10 * time.Minute, owner: "user-2", wantErr: ErrUnknownSession},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			fixture := newEngineFixture(test, &scriptedRandom{values: []int{0}})
			owner := mustUserID(test, "user-1")
			sessionID := fixture.store.seedSession(owner, time.Hour, baseTime().Add(-time.Hour))

			err := fixture.engine.DeductSession(context.Background(), mustUserID(test, testCase.owner), sessionID, testCase.keepLength, testCase.keepVideo)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					test.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
				record, getErr := fixture.store.GetSession(context.Background(), sessionID)
				if getErr != nil || record.Length != time.Hour {
					test.Fatalf("expected the record to stay unchanged")
				}
				return
			}
			if err != nil {
				test.Fatalf("deduct: %v", err)
			}
			record, getErr := fixture.store.GetSession(context.Background(), sessionID)
			if testCase.wantDeleted {
				if !errors.Is(getErr, ErrUnknownSession) {
					test.Fatalf("expected the record to be deleted, got %v", getErr)
				}
				return
			}
			if record.Length != testCase.wantLength || record.VideoLength != testCase.keepVideo {
				test.Fatalf("unexpected record %+v", record)
			}
		})
	}
}

func TestDeductUnknownSession(test *testing.T) {
	test.Parallel()
	fixture := newEngineFixture(test, &scriptedRandom{values: []int{0}})
	sessionID, err := NewSessionID("missing")
	if err != nil {
		test.Fatalf("session id: %v", err)
	}
	err = fixture.engine.DeductSession(context.Background(), mustUserID(test, "user-1"), sessionID, time.Minute, 0)
	if !errors.Is(err, ErrUnknownSession) {
		test.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestResultsModePreference(test *testing.T) {
	test.Parallel()
	fixture := newEngineFixture(test, &scriptedRandom{values: []int{0}})
	userID := mustUserID(test, "user-1")
	mode, err := fixture.engine.ResultsMode(context.Background(), userID)
	if err != nil || mode != ResultsModeDM {
		test.Fatalf("expected default dm, got %q (%v)", mode, err)
	}
	if err := fixture.engine.SetResultsMode(context.Background(), userID, "loud"); !errors.Is(err, ErrInvalidResultsMode) {
		test.Fatalf("expected ErrInvalidResultsMode, got %v", err)
	}
	parsed, err := ParseResultsMode(" Guild ")
	if err != nil {
		test.Fatalf("parse: %v", err)
	}
	if err := fixture.engine.SetResultsMode(context.Background(), userID, parsed); err != nil {
		test.Fatalf("set: %v", err)
	}
	mode, err = fixture.engine.ResultsMode(context.Background(), userID)
	if err != nil || mode != ResultsModeGuild {
		test.Fatalf("expected guild, got %q (%v)", mode, err)
	}
}

func TestKeyedMutexSerializesPerKey(test *testing.T) {
	test.Parallel()
	keyed := newKeyedMutex()
	var wait sync.WaitGroup
	var mu sync.Mutex
	inside := 0
	maxInside := 0
	for worker := 0; worker < 16; worker++ {
		wait.Add(1)
		go func() {
			defer wait.Done()
			unlock := keyed.Lock("user-1")
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wait.Wait()
	if maxInside != 1 {
		test.Fatalf("expected one holder at a time, saw %d", maxInside)
	}
	if len(keyed.locks) != 0 {
		test.Fatalf("expected released keys to be dropped, got %d", len(keyed.locks))
	}
}

// gatedCountdownStore parks every countdown read until release is closed.
type gatedCountdownStore struct {
	*stubStore
	arrived chan struct{}
	release chan struct{}
}

func (store *gatedCountdownStore) GetVideoCountdown(ctx context.Context, userID ledger.UserID) (time.Duration, bool, error) {
	store.arrived <- struct{}{}
	<-store.release
	return store.stubStore.GetVideoCountdown(ctx, userID)
}

func TestSimulateWaitsForRegistrySettlementOfSameUser(test *testing.T) {
	test.Parallel()
	userID := mustUserID(test, "user-1")
	store := &gatedCountdownStore{
		stubStore: newStubStore(),
		arrived:   make(chan struct{}, 2),
		release:   make(chan struct{}),
	}
	store.countdowns[userID.String()] = 30 * time.Minute
	clock := newFakeClock(baseTime())
	rewardGranter := &stubRewardGranter{}
	coinService, err := ledger.NewService(store.coins, func() int64 { return clock.Now().Unix() })
	if err != nil {
		test.Fatalf("ledger service: %v", err)
	}
	engine, err := NewEngine(store, coinService, rewardGranter, &recordingNotifier{}, clock.Now, WithRandomSource(&scriptedRandom{}))
	if err != nil {
		test.Fatalf("new engine: %v", err)
	}
	tracker, err := NewTracker(NewChannelPolicy(nil), engine, clock.Now)
	if err != nil {
		test.Fatalf("new tracker: %v", err)
	}
	if err := tracker.Begin(userID); err != nil {
		test.Fatalf("begin: %v", err)
	}
	if err := tracker.UpdateVideo(userID, true); err != nil {
		test.Fatalf("video on: %v", err)
	}
	clock.Advance(20 * time.Minute)

	errs := make(chan error, 2)
	go func() {
		_, endErr := tracker.End(context.Background(), userID)
		errs <- endErr
	}()
	<-store.arrived

	go func() {
		_, simulateErr := engine.SimulateSession(context.Background(), userID, 20*time.Minute, 20*time.Minute, false)
		errs <- simulateErr
	}()
	select {
	case <-store.arrived:
		test.Fatalf("simulation read the countdown while the registry settlement was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(store.release)
	for index := 0; index < 2; index++ {
		if err := <-errs; err != nil {
			test.Fatalf("settlement failed: %v", err)
		}
	}

	videoRewards := 0
	for _, claim := range rewardGranter.claims {
		if claim.reason == ReasonVideoReward {
			videoRewards++
		}
	}
	if videoRewards != 1 {
		test.Fatalf("expected one video reward for 40m against a 30m countdown, got %d", videoRewards)
	}
	if remaining := store.countdowns[userID.String()]; remaining != 20*time.Minute {
		test.Fatalf("expected 20m left on the countdown, got %s", remaining)
	}
	if len(store.sessions) != 2 {
		test.Fatalf("expected two recorded sessions, got %d", len(store.sessions))
	}
}
