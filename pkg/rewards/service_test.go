package rewards

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

func TestClaimCoinsAppendsToLedger(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	coins := &stubCoinLedger{}
	service := mustNewService(test, store, coins)
	userID := mustUserID(test, "user-1")

	rewardID, err := service.Claim(context.Background(), userID, CoinReward(400), "Video reward")
	if err != nil {
		test.Fatalf("claim: %v", err)
	}
	if len(coins.appends) != 1 || coins.appends[0] != 400 {
		test.Fatalf("expected one 400 coin append, got %v", coins.appends)
	}
	claimed, err := service.Reveal(context.Background(), userID, rewardID)
	if err != nil {
		test.Fatalf("reveal: %v", err)
	}
	if claimed.Description != "400 coins" || claimed.Reason != "Video reward" {
		test.Fatalf("unexpected claim: %+v", claimed)
	}
	if len(store.boosters) != 0 {
		test.Fatalf("expected no boosters, got %d", len(store.boosters))
	}
}

func TestClaimBoosterStoresExpiry(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	coins := &stubCoinLedger{}
	service := mustNewService(test, store, coins)
	userID := mustUserID(test, "user-1")

	if _, err := service.Claim(context.Background(), userID, BoosterReward(200, 2*time.Hour), "Daily reward"); err != nil {
		test.Fatalf("claim: %v", err)
	}
	if len(coins.appends) != 0 {
		test.Fatalf("expected no coin appends, got %v", coins.appends)
	}
	if len(store.boosters) != 1 || store.boosters[0].ExpiresUnixUTC != 1000+7200 {
		test.Fatalf("unexpected boosters: %+v", store.boosters)
	}
	active, err := service.ActiveBoosters(context.Background(), userID)
	if err != nil {
		test.Fatalf("active boosters: %v", err)
	}
	if len(active) != 1 {
		test.Fatalf("expected one active booster, got %d", len(active))
	}
}

func TestClaimRejectsInvalidInput(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		userID  ledger.UserID
		reward  Reward
		reason  string
		wantErr error
	}{
		{name: "zero coins", userID: mustUserID(test, "u"), reward: CoinReward(0), reason: "r", wantErr: ErrInvalidReward},
		{name: "flat booster", userID: mustUserID(test, "u"), reward: BoosterReward(100, time.Hour), reason: "r", wantErr: ErrInvalidReward},
		{name: "empty reason", userID: mustUserID(test, "u"), reward: CoinReward(100), reason: " ", wantErr: ErrInvalidReason},
		{name: "missing user", reward: CoinReward(100), reason: "r", wantErr: ledger.ErrInvalidUserID},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore()
			service := mustNewService(test, store, &stubCoinLedger{})
			_, err := service.Claim(context.Background(), testCase.userID, testCase.reward, testCase.reason)
			if !errors.Is(err, testCase.wantErr) {
				test.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
			if len(store.claims) != 0 {
				test.Fatalf("expected no claim rows, got %d", len(store.claims))
			}
		})
	}
}

func TestClaimStopsWhenLedgerFails(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	ledgerFailure := errors.New("ledger down")
	service := mustNewService(test, store, &stubCoinLedger{err: ledgerFailure})
	_, err := service.Claim(context.Background(), mustUserID(test, "user-1"), CoinReward(100), "Video reward")
	if !errors.Is(err, ledgerFailure) {
		test.Fatalf("expected ledger failure, got %v", err)
	}
	if len(store.claims) != 0 {
		test.Fatalf("expected no claim rows, got %d", len(store.claims))
	}
}

func TestRevealUnknownReward(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(), &stubCoinLedger{})
	rewardID, err := NewRewardID("missing")
	if err != nil {
		test.Fatalf("reward id: %v", err)
	}
	_, err = service.Reveal(context.Background(), mustUserID(test, "user-1"), rewardID)
	if !errors.Is(err, ErrUnknownReward) {
		test.Fatalf("expected ErrUnknownReward, got %v", err)
	}
}

// --- helpers ---

type stubCoinLedger struct {
	appends []ledger.Coins
	err     error
}

func (coins *stubCoinLedger) Append(_ context.Context, _ ledger.UserID, amount ledger.Coins, _ string) (ledger.TransactionID, error) {
	if coins.err != nil {
		return ledger.TransactionID{}, coins.err
	}
	coins.appends = append(coins.appends, amount)
	return ledger.NewTransactionID(fmt.Sprintf("tx-%d", len(coins.appends)))
}

type stubStore struct {
	boosters []Booster
	claims   []ClaimedReward
}

func newStubStore() *stubStore {
	return &stubStore{}
}

func (store *stubStore) InsertBooster(_ context.Context, booster Booster) error {
	store.boosters = append(store.boosters, booster)
	return nil
}

func (store *stubStore) InsertClaim(_ context.Context, claim ClaimInput) (RewardID, error) {
	rewardID, err := NewRewardID(fmt.Sprintf("reward-%d", len(store.claims)+1))
	if err != nil {
		return RewardID{}, err
	}
	store.claims = append(store.claims, ClaimedReward{
		RewardID:       rewardID,
		UserID:         claim.UserID,
		Kind:           claim.Reward.Kind,
		Description:    claim.Reward.Description(),
		Reason:         claim.Reason,
		CreatedUnixUTC: claim.CreatedUnixUTC,
	})
	return rewardID, nil
}

func (store *stubStore) GetClaim(_ context.Context, userID ledger.UserID, rewardID RewardID) (ClaimedReward, error) {
	for _, claim := range store.claims {
		if claim.RewardID == rewardID && claim.UserID == userID {
			return claim, nil
		}
	}
	return ClaimedReward{}, ErrUnknownReward
}

func (store *stubStore) ListActiveBoosters(_ context.Context, userID ledger.UserID, atUnixUTC int64) ([]Booster, error) {
	var active []Booster
	for _, booster := range store.boosters {
		if booster.UserID == userID && booster.ExpiresUnixUTC > atUnixUTC {
			active = append(active, booster)
		}
	}
	return active, nil
}

func mustNewService(test *testing.T, store Store, coins CoinLedger) *Service {
	test.Helper()
	service, err := NewService(store, coins, func() int64 { return 1000 })
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw string) ledger.UserID {
	test.Helper()
	value, err := ledger.NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return value
}
