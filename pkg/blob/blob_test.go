package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mslinn/benchledger/pkg/config"
)

var payload = []byte("window.BENCHMARK_DATA = {\"entries\": {}}\n")

// exercise checks the contract every writable Blob must meet
func exercise(t *testing.T, b Blob) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Read(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Write(ctx, payload))
	got, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	second := []byte(`{"entries": {"G": []}}`)
	require.NoError(t, b.Write(ctx, second))
	got, err = b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

// exerciseVersioned checks compare-and-swap writes: of two writers that read
// the same version only the first may store its data
func exerciseVersioned(t *testing.T, b Versioned) {
	t.Helper()
	ctx := context.Background()

	_, _, err := b.ReadVersion(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	v1, err := b.WriteIf(ctx, []byte("c1"), "")
	require.NoError(t, err)
	require.NotEmpty(t, v1)

	// a second creator lost the race
	_, err = b.WriteIf(ctx, []byte("c2"), "")
	require.ErrorIs(t, err, ErrConflict)

	data, v, err := b.ReadVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("c1"), data)
	assert.Equal(t, v1, v)

	v2, err := b.WriteIf(ctx, []byte("c1,c2"), v1)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	// a writer still holding v1 must not overwrite c1,c2
	_, err = b.WriteIf(ctx, []byte("c1,c3"), v1)
	require.ErrorIs(t, err, ErrConflict)

	data, err = b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("c1,c2"), data)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exercise(t, m)

	// callers cannot reach the stored bytes
	got, err := m.Read(context.Background())
	require.NoError(t, err)
	got[0] = 'X'
	again, err := m.Read(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, byte('X'), again[0])
}

func TestMemory_Versioned(t *testing.T) {
	exerciseVersioned(t, NewMemory())
}

func TestFile_Versioned(t *testing.T) {
	exerciseVersioned(t, NewFile(filepath.Join(t.TempDir(), "dev", "bench", "data.js")))
}

func TestFile_ConcurrentWriteIf(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.js")
	require.NoError(t, NewFile(path).Write(ctx, []byte("base")))
	_, v, err := NewFile(path).ReadVersion(ctx)
	require.NoError(t, err)

	const writers = 8
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := NewFile(path).WriteIf(ctx, []byte{byte('a' + i)}, v)
			if err == nil {
				atomic.AddInt32(&wins, 1)
				return
			}
			assert.ErrorIs(t, err, ErrConflict)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev", "bench", "data.js")
	exercise(t, NewFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	exercise(t, NewRedis(rdb, "benchledger:data"))

	stored, err := mr.Get("benchledger:data")
	require.NoError(t, err)
	assert.Equal(t, `{"entries": {"G": []}}`, stored)
}

func TestRedis_Versioned(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	exerciseVersioned(t, NewRedis(rdb, "benchledger:data"))
}

func TestRedis_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	_, err := NewRedis(rdb, "k").Read(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestBolt(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "ledger.db"), "benchledger", "data")
	require.NoError(t, err)
	defer b.Close()

	exercise(t, b)
}

func TestBolt_Versioned(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "ledger.db"), "benchledger", "data")
	require.NoError(t, err)
	defer b.Close()

	exerciseVersioned(t, b)
}

func TestBolt_MissingKeyInExistingBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	b, err := OpenBolt(path, "benchledger", "other")
	require.NoError(t, err)
	require.NoError(t, b.Write(context.Background(), payload))
	require.NoError(t, b.Close())

	b, err = OpenBolt(path, "benchledger", "data")
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Read(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

// fakeS3 keeps objects in a map and answers like S3 for missing keys and
// failed preconditions
type fakeS3 struct {
	mu           sync.Mutex
	objects      map[string][]byte
	etags        map[string]string
	contentTypes map[string]string
	puts         int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:      make(map[string][]byte),
		etags:        make(map[string]string),
		contentTypes: make(map[string]string),
	}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	name := *in.Bucket + "/" + *in.Key
	etag, exists := f.etags[name]
	if in.IfNoneMatch != nil && exists {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
	}
	if in.IfMatch != nil {
		if !exists {
			return nil, &types.NoSuchKey{}
		}
		if *in.IfMatch != etag {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
		}
	}

	f.puts++
	etag = fmt.Sprintf("%q", fmt.Sprintf("etag-%d", f.puts))
	f.objects[name] = data
	f.etags[name] = etag
	f.contentTypes[name] = *in.ContentType
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := *in.Bucket + "/" + *in.Key
	data, ok := f.objects[name]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
		ETag: aws.String(f.etags[name]),
	}, nil
}

func TestS3(t *testing.T) {
	client := newFakeS3()
	exercise(t, NewS3(client, "bench", "dev/bench/data.js"))

	assert.Equal(t, "application/javascript", client.contentTypes["bench/dev/bench/data.js"])

	other := NewS3(client, "bench", "data.json")
	require.NoError(t, other.Write(context.Background(), payload))
	assert.Equal(t, "application/json", client.contentTypes["bench/data.json"])

	upper := NewS3(client, "bench", "DEV/BENCH/DATA.JS")
	require.NoError(t, upper.Write(context.Background(), payload))
	assert.Equal(t, "application/javascript", client.contentTypes["bench/DEV/BENCH/DATA.JS"])
}

func TestS3_Versioned(t *testing.T) {
	exerciseVersioned(t, NewS3(newFakeS3(), "bench", "dev/bench/data.js"))
}

func TestS3_UnrelatedPutErrorIsNotAConflict(t *testing.T) {
	b := NewS3(failingS3{newFakeS3()}, "bench", "data.js")
	_, err := b.WriteIf(context.Background(), payload, "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))
}

type failingS3 struct{ *fakeS3 }

func (failingS3) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
}

func TestHTTP_Read(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dev/bench/data.js" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL + "/dev/bench/data.js")
	got, err := h.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	missing := NewHTTP(srv.URL + "/nope")
	_, err = missing.Read(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, h.Write(context.Background(), payload), ErrReadOnly)
}

func TestHTTP_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL)
	h.Backoff = time.Millisecond

	got, err := h.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTP_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL)
	h.MaxRetries = 2
	h.Backoff = time.Millisecond

	_, err := h.Read(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTP_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL)
	h.Backoff = time.Millisecond

	_, err := h.Read(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.LedgerPath = filepath.Join(dir, "data.js")
	b, closeFn, err := Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &File{}, b)
	require.NoError(t, closeFn())

	cfg.Backend = config.BackendBolt
	cfg.Bolt.Path = filepath.Join(dir, "ledger.db")
	b, closeFn, err = Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Bolt{}, b)
	require.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	cfg.Backend = config.BackendRedis
	cfg.Redis.Addr = mr.Addr()
	b, closeFn, err = Open(cfg)
	require.NoError(t, err)
	exercise(t, b)
	require.NoError(t, closeFn())

	cfg.Backend = config.BackendHTTP
	cfg.HTTP = config.HTTPConfig{URL: "http://localhost/data.js", Retries: 2}
	b, _, err = Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, b.(*HTTP).MaxRetries)

	cfg.Backend = "ftp"
	_, _, err = Open(cfg)
	assert.Error(t, err)
}
