package backfill

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/cryptox"
	"github.com/lalithlochan/subtrack/internal/db"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type row struct {
	userID  uuid.UUID
	account string
}

// fakeStore keeps rows ordered by id like the real keyset query
type fakeStore struct {
	rows       map[uuid.UUID]*row
	listErr    error
	updateErr  map[uuid.UUID]error
	concurrent map[uuid.UUID]string // written just before our update lands
	listCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:       make(map[uuid.UUID]*row),
		updateErr:  make(map[uuid.UUID]error),
		concurrent: make(map[uuid.UUID]string),
	}
}

func (f *fakeStore) add(account string) uuid.UUID {
	id := uuid.New()
	f.rows[id] = &row{userID: uuid.New(), account: account}
	return id
}

func (f *fakeStore) ListLegacyAccountNames(ctx context.Context, afterID uuid.UUID, limit int) ([]db.LegacyAccount, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	ids := make([]uuid.UUID, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	var out []db.LegacyAccount
	for _, id := range ids {
		r := f.rows[id]
		if bytes.Compare(id[:], afterID[:]) <= 0 || r.account == "" || cryptox.IsEncrypted(r.account) {
			continue
		}
		out = append(out, db.LegacyAccount{SubscriptionID: id, UserID: r.userID, AccountName: r.account})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) ReplaceAccountName(ctx context.Context, id uuid.UUID, previous, next string) (bool, error) {
	if err := f.updateErr[id]; err != nil {
		return false, err
	}
	if v, ok := f.concurrent[id]; ok {
		f.rows[id].account = v
	}
	r := f.rows[id]
	if r.account != previous {
		return false, nil
	}
	r.account = next
	return true, nil
}

func newCipher(t *testing.T) *cryptox.Cipher {
	t.Helper()
	c, err := cryptox.NewCipherFromSecret(testSecret)
	if err != nil {
		t.Fatalf("NewCipherFromSecret: %v", err)
	}
	return c
}

func TestRun_EncryptsLegacyRows(t *testing.T) {
	store := newFakeStore()
	c := newCipher(t)

	var ids []uuid.UUID
	for _, name := range []string{"jane@example.com", "acct-42", "+15550100", "bob", "carol"} {
		ids = append(ids, store.add(name))
	}
	empty := store.add("")

	res, err := Run(context.Background(), store, c, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Scanned != 5 || res.Encrypted != 5 || res.Failed != 0 || res.Conflicts != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	// 2 + 2 + 1: the short page ends the scan
	if store.listCalls != 3 {
		t.Errorf("expected 3 pages, got %d", store.listCalls)
	}

	for _, id := range ids {
		r := store.rows[id]
		if !cryptox.IsEncrypted(r.account) {
			t.Fatalf("row %s still plaintext: %q", id, r.account)
		}
		if _, err := c.Decrypt(r.account, r.userID.String()); err != nil {
			t.Errorf("row %s does not decrypt with its owner's key: %v", id, err)
		}
	}
	if store.rows[empty].account != "" {
		t.Error("empty account names must stay empty")
	}

	again, err := Run(context.Background(), store, c, 2, zap.NewNop())
	if err != nil || again.Scanned != 0 {
		t.Errorf("second run should find nothing, got %+v, %v", again, err)
	}
}

func TestRun_ConcurrentWriteWins(t *testing.T) {
	store := newFakeStore()
	id := store.add("old@example.com")
	store.concurrent[id] = "new@example.com"

	res, err := Run(context.Background(), store, newCipher(t), 10, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Conflicts != 1 || res.Encrypted != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if store.rows[id].account != "new@example.com" {
		t.Errorf("concurrent write was overwritten: %q", store.rows[id].account)
	}
}

func TestRun_RowFailureIsolated(t *testing.T) {
	store := newFakeStore()
	bad := store.add("broken")
	good := store.add("fine")
	store.updateErr[bad] = errors.New("deadlock detected")

	res, err := Run(context.Background(), store, newCipher(t), 10, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Failed != 1 || res.Encrypted != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if !cryptox.IsEncrypted(store.rows[good].account) {
		t.Error("healthy row should be encrypted")
	}
}

func TestRun_ListErrorStops(t *testing.T) {
	store := newFakeStore()
	store.add("x")
	store.listErr = errors.New("connection reset")

	if _, err := Run(context.Background(), store, newCipher(t), 10, zap.NewNop()); err == nil {
		t.Fatal("expected listing error")
	}
}

func TestRun_Cancelled(t *testing.T) {
	store := newFakeStore()
	store.add("x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, store, newCipher(t), 10, zap.NewNop()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
