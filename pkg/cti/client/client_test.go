package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/opentdf/ctivault/internal/blobstore"
	"github.com/opentdf/ctivault/internal/crypto"
	"github.com/opentdf/ctivault/internal/ledger"
	"github.com/opentdf/ctivault/internal/vault"
	"github.com/opentdf/ctivault/pkg/cti"
)

type testEnv struct {
	blob     *countingBlob
	vault    *countingVault
	contract *ledger.Contract
	client   *Client
}

// countingBlob and countingVault record writes so tests can assert that a
// pipeline created no state.
type countingBlob struct {
	*blobstore.MemoryStore
	mu     sync.Mutex
	puts   int
	putErr error
}

func (b *countingBlob) Put(ctx context.Context, data []byte) (string, error) {
	b.mu.Lock()
	b.puts++
	b.mu.Unlock()
	if b.putErr != nil {
		return "", b.putErr
	}
	return b.MemoryStore.Put(ctx, data)
}

type countingVault struct {
	*vault.MemoryStore
	mu     sync.Mutex
	puts   int
	putErr error
}

func (v *countingVault) PutSecret(ctx context.Context, name, value string) error {
	v.mu.Lock()
	v.puts++
	v.mu.Unlock()
	if v.putErr != nil {
		return v.putErr
	}
	return v.MemoryStore.PutSecret(ctx, name, value)
}

// cancelingVault cancels the publish context around its write, before the
// write when early is set and after it otherwise.
type cancelingVault struct {
	*vault.MemoryStore
	cancel context.CancelFunc
	early  bool
}

func (v *cancelingVault) PutSecret(ctx context.Context, name, value string) error {
	if v.early {
		v.cancel()
		return v.MemoryStore.PutSecret(ctx, name, value)
	}
	defer v.cancel()
	return v.MemoryStore.PutSecret(ctx, name, value)
}

type failingLedger struct {
	ledger.Client
	submitErr error
}

func (f *failingLedger) Submit(ctx context.Context, function string, args ...string) (*ledger.Receipt, error) {
	return nil, f.submitErr
}

func newTestEnv(t *testing.T, enc ledger.Encoding) *testEnv {
	t.Helper()
	env := &testEnv{
		blob:  &countingBlob{MemoryStore: blobstore.NewMemoryStore()},
		vault: &countingVault{MemoryStore: vault.NewMemoryStore()},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.contract = ledger.NewContract(ledger.NewMemoryBackend(), ledger.ContractOptions{Encoding: enc, Logger: logger})
	c, err := NewClient(ClientOptions{
		Blob:   env.blob,
		Vault:  env.vault,
		Ledger: env.contract,
		Logger: logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	env.client = c
	return env
}

func fixture() []byte {
	line := []byte("indicator,198.51.100.23,c2,high,observed in phishing campaign\n")
	return bytes.Repeat(line, 25600/len(line)+1)[:25600]
}

func TestPublishRetrieveEndToEnd(t *testing.T) {
	env := newTestEnv(t, ledger.EncodingString)
	data := fixture()

	record, err := env.client.Publish(context.Background(), data, PublishOptions{
		UUID:           "u1",
		Description:    "Phishing campaign IOCs",
		SenderIdentity: "IntelligenceUnit",
		AccessList:     []string{"OrgA", "OrgB"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if record.VaultKey != "artifact-key-u1" {
		t.Fatalf("Got [%s]... wanted [artifact-key-u1]", record.VaultKey)
	}
	if record.SHA256Hash != crypto.Digest(data) {
		t.Fatalf("Got [%s]... wanted [%s]", record.SHA256Hash, crypto.Digest(data))
	}

	res, err := env.client.Retrieve(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusVerified {
		t.Fatalf("Got [%s]... wanted [%s]", res.Status, StatusVerified)
	}
	if !bytes.Equal(res.Plaintext, data) {
		t.Fatal("retrieved plaintext does not match published bytes")
	}
	if res.Record.CID != record.CID {
		t.Fatalf("Got [%s]... wanted [%s]", res.Record.CID, record.CID)
	}
}

func TestPublishDefaults(t *testing.T) {
	env := newTestEnv(t, ledger.EncodingString)
	before := time.Now().UTC().Add(-time.Second)
	record, err := env.client.Publish(context.Background(), []byte("hi"), PublishOptions{SenderIdentity: "OrgA"})
	if err != nil {
		t.Fatal(err)
	}
	if record.UUID == "" {
		t.Fatal("expected a generated UUID")
	}
	if record.AccessList == nil || len(record.AccessList) != 0 {
		t.Fatalf("Got [%v]... wanted empty access list", record.AccessList)
	}
	ts, err := time.Parse(time.RFC3339, record.Timestamp)
	if err != nil {
		t.Fatal(err)
	}
	if ts.Before(before) {
		t.Fatalf("Got [%s]... wanted a timestamp after %s", ts, before)
	}
}

func TestRetrieveByteMapLedger(t *testing.T) {
	env := newTestEnv(t, ledger.EncodingByteMap)
	if _, err := env.client.Publish(context.Background(), []byte("hi"), PublishOptions{UUID: "bm", SenderIdentity: "OrgA"}); err != nil {
		t.Fatal(err)
	}
	res, err := env.client.Retrieve(context.Background(), "bm")
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Plaintext) != "hi" {
		t.Fatalf("Got [%s]... wanted [hi]", res.Plaintext)
	}
}

func TestRetrieveHashBinding(t *testing.T) {
	env := newTestEnv(t, ledger.EncodingString)
	ctx := context.Background()
	published, err := env.client.Publish(ctx, []byte("genuine artifact"), PublishOptions{UUID: "real", SenderIdentity: "OrgA"})
	if err != nil {
		t.Fatal(err)
	}

	// A record that names a valid blob and key but binds a different hash.
	forged := *published
	forged.UUID = "forged"
	forged.SHA256Hash = crypto.Digest([]byte("something else"))
	b, err := forged.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.contract.Submit(ctx, ledger.FnCreateMetadata, string(b)); err != nil {
		t.Fatal(err)
	}

	res, err := env.client.Retrieve(ctx, "forged")
	if res != nil {
		t.Fatal("plaintext returned despite hash mismatch")
	}
	if !errors.Is(err, cti.ErrIntegrityViolation) {
		t.Fatalf("Got [%v]... wanted IntegrityViolation", err)
	}
	if step, _ := cti.StepOf(err); step != cti.StepVerify {
		t.Fatalf("Got [%s]... wanted [%s]", step, cti.StepVerify)
	}
}

func TestRetrieveNeverPublished(t *testing.T) {
	env := newTestEnv(t, ledger.EncodingString)
	res, err := env.client.Retrieve(context.Background(), "nope")
	if res != nil {
		t.Fatal("expected no result")
	}
	if !errors.Is(err, cti.ErrNotFound) {
		t.Fatalf("Got [%v]... wanted NotFound", err)
	}
	if step, _ := cti.StepOf(err); step != cti.StepLedgerEvaluate {
		t.Fatalf("Got [%s]... wanted [%s]", step, cti.StepLedgerEvaluate)
	}
	if env.blob.puts != 0 || env.vault.puts != 0 {
		t.Fatalf("retrieve wrote state: %d blobs, %d secrets", env.blob.puts, env.vault.puts)
	}
	exists, err := env.contract.MetadataExists(context.Background(), "nope")
	if err != nil || exists {
		t.Fatalf("Got [%v, %v]... wanted [false, nil]", exists, err)
	}
}

func TestRetrieveSubstitutedBlob(t *testing.T) {
	env := newTestEnv(t, ledger.EncodingString)
	ctx := context.Background()
	record, err := env.client.Publish(ctx, []byte("original"), PublishOptions{UUID: "sub", SenderIdentity: "OrgA"})
	if err != nil {
		t.Fatal(err)
	}
	otherKey, err := crypto.GenerateKey(crypto.KeySize)
	if err != nil {
		t.Fatal(err)
	}
	other, err := crypto.Seal([]byte("original"), otherKey)
	if err != nil {
		t.Fatal(err)
	}
	env.blob.Replace(record.CID, other)

	_, err = env.client.Retrieve(ctx, "sub")
	if !errors.Is(err, cti.ErrAuthenticationFailure) {
		t.Fatalf("Got [%v]... wanted AuthenticationFailure", err)
	}
	if step, _ := cti.StepOf(err); step != cti.StepOpen {
		t.Fatalf("Got [%s]... wanted [%s]", step, cti.StepOpen)
	}
}

func TestRetrieveDanglingReferences(t *testing.T) {
	env := newTestEnv(t, ledger.EncodingString)
	ctx := context.Background()
	record, err := env.client.Publish(ctx, []byte("x"), PublishOptions{UUID: "d1", SenderIdentity: "OrgA"})
	if err != nil {
		t.Fatal(err)
	}
	env.vault.Delete(record.VaultKey)
	_, err = env.client.Retrieve(ctx, "d1")
	if !errors.Is(err, cti.ErrNotFound) {
		t.Fatalf("Got [%v]... wanted NotFound", err)
	}
	if step, _ := cti.StepOf(err); step != cti.StepSecretGet {
		t.Fatalf("Got [%s]... wanted [%s]", step, cti.StepSecretGet)
	}

	env.blob.Delete(record.CID)
	_, err = env.client.Retrieve(ctx, "d1")
	if step, _ := cti.StepOf(err); step != cti.StepBlobGet {
		t.Fatalf("Got [%s]... wanted [%s]", step, cti.StepBlobGet)
	}
}

func TestRetrieveBadSecretEncoding(t *testing.T) {
	env := newTestEnv(t, ledger.EncodingString)
	ctx := context.Background()
	record, err := env.client.Publish(ctx, []byte("x"), PublishOptions{UUID: "b64", SenderIdentity: "OrgA"})
	if err != nil {
		t.Fatal(err)
	}
	env.vault.Delete(record.VaultKey)
	if err := env.vault.MemoryStore.PutSecret(ctx, record.VaultKey, "%%% not base64"); err != nil {
		t.Fatal(err)
	}
	_, err = env.client.Retrieve(ctx, "b64")
	if !errors.Is(err, cti.ErrResponseFormat) {
		t.Fatalf("Got [%v]... wanted ResponseFormatError", err)
	}

	short := base64.StdEncoding.EncodeToString(make([]byte, 16))
	env.vault.Delete(record.VaultKey)
	if err := env.vault.MemoryStore.PutSecret(ctx, record.VaultKey, short); err != nil {
		t.Fatal(err)
	}
	_, err = env.client.Retrieve(ctx, "b64")
	if !errors.Is(err, cti.ErrInvalidKeySize) {
		t.Fatalf("Got [%v]... wanted InvalidKeySize", err)
	}
}

func TestPublishStepTagging(t *testing.T) {
	unavailable := cti.Errorf(cti.KindTransient, "fake", "service unavailable")
	denied := cti.Errorf(cti.KindUnauthorized, "fake", "permission denied")

	t.Run("blob_put", func(t *testing.T) {
		env := newTestEnv(t, ledger.EncodingString)
		env.blob.putErr = unavailable
		_, err := env.client.Publish(context.Background(), []byte("x"), PublishOptions{UUID: "s1"})
		assertStep(t, err, cti.StepBlobPut, cti.ErrTransient)
		if env.vault.puts != 0 {
			t.Fatal("secret written after blob failure")
		}
	})

	t.Run("secret_put", func(t *testing.T) {
		env := newTestEnv(t, ledger.EncodingString)
		env.vault.putErr = denied
		_, err := env.client.Publish(context.Background(), []byte("x"), PublishOptions{UUID: "s2"})
		assertStep(t, err, cti.StepSecretPut, cti.ErrUnauthorized)
		if env.blob.puts != 1 {
			t.Fatalf("Got [%d]... wanted [1] blob writes", env.blob.puts)
		}
		if ok, _ := env.contract.MetadataExists(context.Background(), "s2"); ok {
			t.Fatal("record committed after secret failure")
		}
	})

	t.Run("ledger_submit", func(t *testing.T) {
		env := newTestEnv(t, ledger.EncodingString)
		c, err := NewClient(ClientOptions{
			Blob:   env.blob,
			Vault:  env.vault,
			Ledger: &failingLedger{submitErr: unavailable},
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		if err != nil {
			t.Fatal(err)
		}
		_, err = c.Publish(context.Background(), []byte("x"), PublishOptions{UUID: "s3"})
		assertStep(t, err, cti.StepLedgerSubmit, cti.ErrTransient)
		// No rollback: the blob and secret stay behind.
		if _, err := env.vault.GetSecret(context.Background(), cti.SecretName("s3")); err != nil {
			t.Fatalf("Got [%v]... wanted orphaned secret", err)
		}
	})

	t.Run("duplicate_uuid", func(t *testing.T) {
		env := newTestEnv(t, ledger.EncodingString)
		_, err := env.client.Publish(context.Background(), []byte("x"), PublishOptions{UUID: "s4"})
		if err != nil {
			t.Fatal(err)
		}
		_, err = env.client.Publish(context.Background(), []byte("y"), PublishOptions{UUID: "s4"})
		assertStep(t, err, cti.StepSecretPut, cti.ErrAlreadyExists)

		res, err := env.client.Retrieve(context.Background(), "s4")
		if err != nil {
			t.Fatal(err)
		}
		if string(res.Plaintext) != "x" {
			t.Fatalf("Got [%s]... wanted [x]", res.Plaintext)
		}
	})
}

func TestPublishCancellation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, tc := range []struct {
		name       string
		early      bool
		wantStep   cti.Step
		wantSecret bool
	}{
		{name: "during_secret_put", early: true, wantStep: cti.StepSecretPut, wantSecret: false},
		{name: "after_secret_put", early: false, wantStep: cti.StepLedgerSubmit, wantSecret: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			blob := &countingBlob{MemoryStore: blobstore.NewMemoryStore()}
			secrets := &cancelingVault{MemoryStore: vault.NewMemoryStore(), cancel: cancel, early: tc.early}
			contract := ledger.NewContract(ledger.NewMemoryBackend(), ledger.ContractOptions{Logger: logger})
			c, err := NewClient(ClientOptions{Blob: blob, Vault: secrets, Ledger: contract, Logger: logger})
			if err != nil {
				t.Fatal(err)
			}

			_, err = c.Publish(ctx, []byte("x"), PublishOptions{UUID: "cx", SenderIdentity: "OrgA"})
			assertStep(t, err, tc.wantStep, cti.ErrTransient)

			if ok, _ := contract.MetadataExists(context.Background(), "cx"); ok {
				t.Fatal("record committed after cancellation")
			}
			// No cleanup: what was written before the checkpoint stays.
			if blob.puts != 1 {
				t.Fatalf("Got [%d]... wanted [1] blob writes", blob.puts)
			}
			_, err = secrets.GetSecret(context.Background(), cti.SecretName("cx"))
			if got := err == nil; got != tc.wantSecret {
				t.Fatalf("Got [secret stored=%v]... wanted [%v]", got, tc.wantSecret)
			}
		})
	}
}

func TestRetrieveExpiredDeadline(t *testing.T) {
	env := newTestEnv(t, ledger.EncodingString)
	if _, err := env.client.Publish(context.Background(), []byte("x"), PublishOptions{UUID: "late", SenderIdentity: "OrgA"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	res, err := env.client.Retrieve(ctx, "late")
	if res != nil {
		t.Fatal("expected no result")
	}
	assertStep(t, err, cti.StepLedgerEvaluate, cti.ErrTransient)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Got [%v]... wanted the deadline as cause", err)
	}

	_, err = env.client.Publish(ctx, []byte("y"), PublishOptions{UUID: "late2", SenderIdentity: "OrgA"})
	assertStep(t, err, cti.StepGenerateKey, cti.ErrTransient)
	if env.blob.puts != 1 || env.vault.puts != 1 {
		t.Fatalf("expired publish wrote state: %d blobs, %d secrets", env.blob.puts, env.vault.puts)
	}
}

func TestRetrieveCorruptedLocalBlob(t *testing.T) {
	root := t.TempDir()
	blob, err := blobstore.NewLocalStore(root)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(ClientOptions{
		Blob:   blob,
		Vault:  vault.NewMemoryStore(),
		Ledger: ledger.NewContract(ledger.NewMemoryBackend(), ledger.ContractOptions{Logger: logger}),
		Logger: logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	record, err := c.Publish(ctx, fixture(), PublishOptions{UUID: "rot", SenderIdentity: "OrgA"})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(root, record.CID[:2], record.CID)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	b[20] ^= 0x01
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = c.Retrieve(ctx, "rot")
	assertStep(t, err, cti.StepBlobGet, cti.ErrAuthenticationFailure)
	if got := cti.HTTPStatus(cti.KindOf(err)); got != 422 {
		t.Fatalf("Got [%d]... wanted [422]", got)
	}
}

func TestListAndShow(t *testing.T) {
	env := newTestEnv(t, ledger.EncodingByteMap)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := env.client.Publish(ctx, []byte(id), PublishOptions{UUID: id, SenderIdentity: "OrgA"}); err != nil {
			t.Fatal(err)
		}
	}
	records, bookmark, err := env.client.List(ctx, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || bookmark == "" {
		t.Fatalf("Got [%d records, bookmark %q]... wanted [2 records and a bookmark]", len(records), bookmark)
	}
	records, bookmark, err = env.client.List(ctx, 2, bookmark)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].UUID != "c" || bookmark != "" {
		t.Fatalf("Got [%v, %q]... wanted the last record and no bookmark", records, bookmark)
	}

	record, err := env.client.Show(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if record.VaultKey != cti.SecretName("b") {
		t.Fatalf("Got [%s]... wanted [%s]", record.VaultKey, cti.SecretName("b"))
	}
}

func TestNewClientRequiresStores(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without stores")
	}
}

func assertStep(t *testing.T, err error, step cti.Step, kind error) {
	t.Helper()
	got, ok := cti.StepOf(err)
	if !ok {
		t.Fatalf("Got [%v]... wanted a pipeline error", err)
	}
	if got != step {
		t.Fatalf("Got [%s]... wanted [%s]", got, step)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("Got [%v]... wanted kind %v", err, kind)
	}
}
