package study

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/rewards"
)

var errStoreFailure = errors.New("store error")

func baseTime() time.Time {
	return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
}

// fakeClock is a settable clock safe for concurrent reads.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *fakeClock) Advance(delta time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(delta)
}

// scriptedRandom replays values; each IntN result is value % n.
type scriptedRandom struct {
	values []int
	index  int
}

func (random *scriptedRandom) IntN(n int) int {
	if len(random.values) == 0 {
		return 0
	}
	value := random.values[random.index%len(random.values)]
	random.index++
	return value % n
}

// memoryCoinStore is an in-memory ledger.Store.
type memoryCoinStore struct {
	transactions []ledger.Transaction
}

func (store *memoryCoinStore) WithTx(ctx context.Context, fn func(context.Context, ledger.Store) error) error {
	return fn(ctx, store)
}

func (store *memoryCoinStore) EnsureAccount(context.Context, ledger.UserID) error {
	return nil
}

func (store *memoryCoinStore) LockAccount(context.Context, ledger.UserID) error {
	return nil
}

func (store *memoryCoinStore) SumBalance(_ context.Context, userID ledger.UserID) (ledger.Coins, error) {
	var balance ledger.Coins
	for _, transaction := range store.transactions {
		if transaction.UserID == userID {
			balance += transaction.Amount
		}
	}
	return balance, nil
}

func (store *memoryCoinStore) InsertTransaction(_ context.Context, input ledger.TransactionInput) (ledger.TransactionID, error) {
	transactionID, err := ledger.NewTransactionID(fmt.Sprintf("tx-%d", len(store.transactions)+1))
	if err != nil {
		return ledger.TransactionID{}, err
	}
	store.transactions = append(store.transactions, ledger.Transaction{
		TransactionID:  transactionID,
		UserID:         input.UserID(),
		Amount:         input.Amount(),
		Reason:         input.Reason(),
		CreatedUnixUTC: input.CreatedUnixUTC(),
	})
	return transactionID, nil
}

func (store *memoryCoinStore) ListTransactions(context.Context, ledger.UserID, int64, int) ([]ledger.Transaction, error) {
	return append([]ledger.Transaction(nil), store.transactions...), nil
}

// stubStore is an in-memory Store with rollback on WithTx errors.
type stubStore struct {
	coins      *memoryCoinStore
	sessions   []SessionRecord
	countdowns map[string]time.Duration
	modes      map[string]ResultsMode
	optOuts    map[string]bool
	nextID     int

	insertError error
	sumError    error
}

func newStubStore() *stubStore {
	return &stubStore{
		coins:      &memoryCoinStore{},
		countdowns: make(map[string]time.Duration),
		modes:      make(map[string]ResultsMode),
		optOuts:    make(map[string]bool),
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	sessionCount := len(store.sessions)
	transactionCount := len(store.coins.transactions)
	if err := fn(ctx, store); err != nil {
		store.sessions = store.sessions[:sessionCount]
		store.coins.transactions = store.coins.transactions[:transactionCount]
		return err
	}
	return nil
}

func (store *stubStore) CoinStore() ledger.Store {
	return store.coins
}

func (store *stubStore) InsertSession(_ context.Context, input SessionRecordInput) (SessionID, error) {
	if store.insertError != nil {
		return SessionID{}, store.insertError
	}
	store.nextID++
	sessionID, err := NewSessionID(fmt.Sprintf("session-%d", store.nextID))
	if err != nil {
		return SessionID{}, err
	}
	store.sessions = append(store.sessions, SessionRecord{
		SessionID:         sessionID,
		UserID:            input.UserID,
		Length:            input.Length,
		VideoLength:       input.VideoLength,
		EndedUnixUTC:      input.EndedUnixUTC,
		CoinTransactionID: input.CoinTransactionID,
	})
	return sessionID, nil
}

func (store *stubStore) seedSession(userID ledger.UserID, length time.Duration, ended time.Time) SessionID {
	store.nextID++
	sessionID := SessionID{value: fmt.Sprintf("session-%d", store.nextID)}
	store.sessions = append(store.sessions, SessionRecord{
		SessionID:    sessionID,
		UserID:       userID,
		Length:       length,
		VideoLength:  length / 2,
		EndedUnixUTC: ended.Unix(),
	})
	return sessionID
}

func (store *stubStore) GetSession(_ context.Context, sessionID SessionID) (SessionRecord, error) {
	for _, record := range store.sessions {
		if record.SessionID == sessionID {
			return record, nil
		}
	}
	return SessionRecord{}, ErrUnknownSession
}

func (store *stubStore) UpdateSessionLengths(_ context.Context, sessionID SessionID, length time.Duration, videoLength time.Duration) error {
	for index := range store.sessions {
		if store.sessions[index].SessionID == sessionID {
			store.sessions[index].Length = length
			store.sessions[index].VideoLength = videoLength
			return nil
		}
	}
	return ErrUnknownSession
}

func (store *stubStore) DeleteSession(_ context.Context, sessionID SessionID) error {
	for index := range store.sessions {
		if store.sessions[index].SessionID == sessionID {
			store.sessions = append(store.sessions[:index], store.sessions[index+1:]...)
			return nil
		}
	}
	return ErrUnknownSession
}

func (store *stubStore) ListQualifyingSessionEnds(_ context.Context, userID ledger.UserID, minLength time.Duration) ([]int64, error) {
	var ends []int64
	for _, record := range store.sessions {
		if record.UserID == userID && record.Length > minLength {
			ends = append(ends, record.EndedUnixUTC)
		}
	}
	return ends, nil
}

func (store *stubStore) SumLengthsSince(_ context.Context, sinceUnixUTC int64) ([]UserTotal, error) {
	if store.sumError != nil {
		return nil, store.sumError
	}
	sums := make(map[ledger.UserID]time.Duration)
	for _, record := range store.sessions {
		if record.EndedUnixUTC <= sinceUnixUTC || store.optOuts[record.UserID.String()] {
			continue
		}
		sums[record.UserID] += record.Length
	}
	totals := make([]UserTotal, 0, len(sums))
	for userID, total := range sums {
		totals = append(totals, UserTotal{UserID: userID, Total: total})
	}
	sort.Slice(totals, func(left, right int) bool {
		return totals[left].UserID.String() < totals[right].UserID.String()
	})
	return totals, nil
}

func (store *stubStore) GetVideoCountdown(_ context.Context, userID ledger.UserID) (time.Duration, bool, error) {
	remaining, found := store.countdowns[userID.String()]
	return remaining, found, nil
}

func (store *stubStore) SetVideoCountdown(_ context.Context, userID ledger.UserID, remaining time.Duration) error {
	store.countdowns[userID.String()] = remaining
	return nil
}

func (store *stubStore) GetResultsMode(_ context.Context, userID ledger.UserID) (ResultsMode, bool, error) {
	mode, found := store.modes[userID.String()]
	return mode, found, nil
}

func (store *stubStore) SetResultsMode(_ context.Context, userID ledger.UserID, mode ResultsMode) error {
	store.modes[userID.String()] = mode
	return nil
}

func (store *stubStore) SetLeaderboardOptOut(_ context.Context, userID ledger.UserID, optOut bool) error {
	store.optOuts[userID.String()] = optOut
	return nil
}

type claimRecord struct {
	userID ledger.UserID
	reward rewards.Reward
	reason string
}

type stubRewardGranter struct {
	claims []claimRecord
	err    error
}

func (granter *stubRewardGranter) Claim(_ context.Context, userID ledger.UserID, reward rewards.Reward, reason string) (rewards.RewardID, error) {
	if granter.err != nil {
		return rewards.RewardID{}, granter.err
	}
	granter.claims = append(granter.claims, claimRecord{userID: userID, reward: reward, reason: reason})
	return rewards.NewRewardID(fmt.Sprintf("reward-%d", len(granter.claims)))
}

type recordingNotifier struct {
	mu        sync.Mutex
	delivered []SettlementResult
	err       error
}

func (notifier *recordingNotifier) Deliver(_ context.Context, result SettlementResult) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.delivered = append(notifier.delivered, result)
	return notifier.err
}

type engineFixture struct {
	engine   *Engine
	store    *stubStore
	rewards  *stubRewardGranter
	notifier *recordingNotifier
	clock    *fakeClock
}

func newEngineFixture(test *testing.T, random rewards.RandomSource) *engineFixture {
	test.Helper()
	fixture := &engineFixture{
		store:    newStubStore(),
		rewards:  &stubRewardGranter{},
		notifier: &recordingNotifier{},
		clock:    newFakeClock(baseTime()),
	}
	coinService, err := ledger.NewService(fixture.store.coins, func() int64 { return fixture.clock.Now().Unix() })
	if err != nil {
		test.Fatalf("ledger service: %v", err)
	}
	fixture.engine, err = NewEngine(fixture.store, coinService, fixture.rewards, fixture.notifier, fixture.clock.Now, WithRandomSource(random))
	if err != nil {
		test.Fatalf("new engine: %v", err)
	}
	return fixture
}

func (fixture *engineFixture) balance(userID ledger.UserID) ledger.Coins {
	balance, _ := fixture.store.coins.SumBalance(context.Background(), userID)
	return balance
}

func (fixture *engineFixture) reasons() []string {
	reasons := make([]string, 0, len(fixture.rewards.claims))
	for _, claim := range fixture.rewards.claims {
		reasons = append(reasons, claim.reason)
	}
	return reasons
}

func mustUserID(test *testing.T, raw string) ledger.UserID {
	test.Helper()
	value, err := ledger.NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return value
}
