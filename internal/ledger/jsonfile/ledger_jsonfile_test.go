package jsonfile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"arkstore/internal/ledger"
	"arkstore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) (*LedgerFile, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.json")
	l, err := Open(path)
	require.NoError(t, err)
	return l, path
}

func sampleUpload(txID, identity string, size int64) *model.Upload {
	return &model.Upload{
		TxID:        txID,
		Identity:    identity,
		FileName:    "file.png",
		Size:        size,
		ContentType: "image/png",
		Category:    model.CategoryImage,
		URL:         "https://arweave.net/" + txID,
		Duration:    120 * time.Millisecond,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestLedgerFile_RecordUpload(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordUpload(ctx, sampleUpload("tx1", "w1", 100)))

	up, err := l.GetUpload(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, "w1", up.Identity)

	dash, err := l.Dashboard(ctx, "w1", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dash.TotalUploads)
	assert.Equal(t, int64(100), dash.TotalSizeBytes)
	require.Len(t, dash.RecentUploads, 1)
}

func TestLedgerFile_DuplicateTransaction(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordUpload(ctx, sampleUpload("tx1", "w1", 100)))
	err := l.RecordUpload(ctx, sampleUpload("tx1", "w1", 100))

	assert.ErrorIs(t, err, ledger.ErrDuplicateTransaction)

	// The duplicate must not bump counters.
	dash, err2 := l.Dashboard(ctx, "w1", 10)
	require.NoError(t, err2)
	assert.Equal(t, int64(1), dash.TotalUploads)
}

func TestLedgerFile_TokenAsset(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordUpload(ctx, sampleUpload("logo-tx", "w1", 10)))
	require.NoError(t, l.RecordUpload(ctx, sampleUpload("meta-tx", "w1", 5)))

	asset := &model.TokenAsset{
		ID:           "asset-1",
		Identity:     "w1",
		Name:         "Token",
		Symbol:       "TKN",
		LogoTxID:     "logo-tx",
		MetadataTxID: "meta-tx",
		MetadataDoc:  `{"name":"Token"}`,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, l.RecordTokenAsset(ctx, asset))

	dash, err := l.Dashboard(ctx, "w1", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dash.TokenCount)
}

func TestLedgerFile_TokenAssetDanglingReference(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordUpload(ctx, sampleUpload("logo-tx", "w1", 10)))

	err := l.RecordTokenAsset(ctx, &model.TokenAsset{
		ID:           "asset-1",
		Identity:     "w1",
		LogoTxID:     "logo-tx",
		MetadataTxID: "missing-tx",
	})

	assert.ErrorIs(t, err, ledger.ErrDanglingReference)

	dash, err2 := l.Dashboard(ctx, "w1", 10)
	require.NoError(t, err2)
	assert.Equal(t, int64(0), dash.TokenCount)
}

func TestLedgerFile_GetUploadNotFound(t *testing.T) {
	l, _ := openTestLedger(t)

	_, err := l.GetUpload(context.Background(), "nope")

	assert.ErrorIs(t, err, ledger.ErrUploadNotFound)
}

func TestLedgerFile_UpsertIdentityIdempotent(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.UpsertIdentity(ctx, "w1"))
	first := l.st.Identities["w1"].CreatedAt

	require.NoError(t, l.UpsertIdentity(ctx, "w1"))

	assert.Len(t, l.st.Identities, 1)
	assert.Equal(t, first, l.st.Identities["w1"].CreatedAt)
	assert.False(t, l.st.Identities["w1"].LastActivityAt.Before(first))
}

func TestLedgerFile_PersistsAcrossReopen(t *testing.T) {
	l, path := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordUpload(ctx, sampleUpload("tx1", "w1", 64)))
	now := time.Now().UTC()
	_, admitted, err := l.Admit(ctx, "w1", "10.0.0.1", now.Add(-time.Minute), now, 100)
	require.NoError(t, err)
	require.True(t, admitted)

	reopened, err := Open(path)
	require.NoError(t, err)

	up, err := reopened.GetUpload(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, int64(64), up.Size)

	n, err := reopened.CountSince(ctx, "w1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "rate window survives restart")
}

func TestLedgerFile_RecentUploadsOrderedAndLimited(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		up := sampleUpload(fmt.Sprintf("tx%d", i), "w1", 10)
		up.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, l.RecordUpload(ctx, up))
	}

	dash, err := l.Dashboard(ctx, "w1", 3)
	require.NoError(t, err)
	require.Len(t, dash.RecentUploads, 3)
	assert.Equal(t, "tx4", dash.RecentUploads[0].TxID)
	assert.Equal(t, "tx3", dash.RecentUploads[1].TxID)
	assert.Equal(t, "tx2", dash.RecentUploads[2].TxID)
	assert.Equal(t, int64(5), dash.TotalUploads)
}

func TestLedgerFile_RateWindowPrune(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	since := base.Add(-time.Minute)
	_, _, err := l.Admit(ctx, "w1", "a", since, base, 100)
	require.NoError(t, err)
	_, _, err = l.Admit(ctx, "w1", "b", since, base.Add(30*time.Second), 100)
	require.NoError(t, err)
	require.NoError(t, l.PruneBefore(ctx, base.Add(10*time.Second)))

	n, err := l.CountSince(ctx, "w1", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLedgerFile_AdmitDeniesAtCeiling(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	since := base.Add(-time.Minute)

	count, admitted, err := l.Admit(ctx, "w1", "a", since, base, 1)
	require.NoError(t, err)
	require.True(t, admitted)
	assert.Equal(t, 0, count)

	count, admitted, err = l.Admit(ctx, "w1", "b", since, base.Add(time.Second), 1)
	require.NoError(t, err)
	assert.False(t, admitted)
	assert.Equal(t, 1, count)

	n, err := l.CountSince(ctx, "w1", since)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "denied request leaves no entry")
}

// Counter increments stay consistent with inserted rows under concurrent
// writers for the same identity.
func TestLedgerFile_ConcurrentRecordUpload(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			up := sampleUpload(fmt.Sprintf("tx%d", i), "w1", 10)
			assert.NoError(t, l.RecordUpload(ctx, up))
		}(i)
	}
	wg.Wait()

	dash, err := l.Dashboard(ctx, "w1", n)
	require.NoError(t, err)
	assert.Equal(t, int64(n), dash.TotalUploads)
	assert.Equal(t, int64(n*10), dash.TotalSizeBytes)
	assert.Len(t, dash.RecentUploads, n)
}
