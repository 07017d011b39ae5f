package ecolens_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenlight-eco/ecolens/pkg/ecolens"
	memorystorage "github.com/greenlight-eco/ecolens/pkg/ecolens/storage/memory"
)

// recordingSink captures event sink calls for assertions.
type recordingSink struct {
	mu         sync.Mutex
	uploaded   []string
	evicted    []string
	violations [][]string
}

func (s *recordingSink) ImageUploaded(ctx context.Context, slot, name string, role ecolens.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = append(s.uploaded, name)
	return nil
}

func (s *recordingSink) ImageEvicted(ctx context.Context, slot, name string, role ecolens.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evicted = append(s.evicted, name)
	return nil
}

func (s *recordingSink) InvariantViolated(ctx context.Context, slot string, role ecolens.Role, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, names)
	return nil
}

func newTestService(t *testing.T, store *memorystorage.Store, opts ...ecolens.Option) ecolens.Service {
	t.Helper()
	svc, err := ecolens.New(append([]ecolens.Option{ecolens.WithSlotStore(store)}, opts...)...)
	require.NoError(t, err)
	return svc
}

func uploadReq(slot, fileName string) ecolens.UploadRequest {
	return ecolens.UploadRequest{
		Slot:     slot,
		FileName: fileName,
		MimeType: "image/jpeg",
		Size:     1024,
		Reader:   strings.NewReader("fake image bytes"),
	}
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []ecolens.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []ecolens.Option{},
			expectError: true,
		},
		{
			name: "with slot store should succeed",
			options: []ecolens.Option{
				ecolens.WithSlotStore(memorystorage.New()),
			},
			expectError: false,
		},
		{
			name: "with slot store and custom slots should succeed",
			options: []ecolens.Option{
				ecolens.WithSlotStore(memorystorage.New()),
				ecolens.WithSlots("left", "right"),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := ecolens.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestDefaultSlots(t *testing.T) {
	svc := newTestService(t, memorystorage.New())
	assert.Equal(t, []string{"uploads", "product1", "product2"}, svc.Slots())
}

func TestUploadAssignsFrontThenBack(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memorystorage.New())

	first, err := svc.Upload(ctx, uploadReq("uploads", "label.jpg"))
	require.NoError(t, err)
	assert.Equal(t, ecolens.RoleFront, first.Role)
	assert.True(t, strings.HasPrefix(first.FileName, "front-"))
	assert.True(t, strings.HasSuffix(first.FileName, ".jpg"))
	assert.Empty(t, first.Evicted)
	assert.Equal(t, 1, first.TotalImages)

	second, err := svc.Upload(ctx, uploadReq("uploads", "label.png"))
	require.NoError(t, err)
	assert.Equal(t, ecolens.RoleBack, second.Role)
	assert.True(t, strings.HasSuffix(second.FileName, ".png"))
	assert.Equal(t, 2, second.TotalImages)

	status, err := svc.Status(ctx, "uploads")
	require.NoError(t, err)
	assert.Len(t, status.Front, 1)
	assert.Len(t, status.Back, 1)
	assert.Len(t, status.All, 2)
}

func TestUploadEvictsOlderImage(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return clock })

	svc := newTestService(t, store)

	front, err := svc.Upload(ctx, uploadReq("product1", "a.jpg"))
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	back, err := svc.Upload(ctx, uploadReq("product1", "b.jpg"))
	require.NoError(t, err)

	// Front is older, so the third upload replaces it.
	clock = clock.Add(time.Minute)
	third, err := svc.Upload(ctx, uploadReq("product1", "c.jpg"))
	require.NoError(t, err)

	assert.Equal(t, ecolens.RoleFront, third.Role)
	assert.Equal(t, []string{front.FileName}, third.Evicted)
	assert.Equal(t, 2, third.TotalImages)

	status, err := svc.Status(ctx, "product1")
	require.NoError(t, err)
	require.Len(t, status.Front, 1)
	require.Len(t, status.Back, 1)
	assert.Equal(t, third.FileName, status.Front[0].Name)
	assert.Equal(t, back.FileName, status.Back[0].Name)
}

func TestUploadEqualAgeEvictsBack(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()

	// A frozen clock gives both images identical modification times.
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return fixed })

	svc := newTestService(t, store)

	_, err := svc.Upload(ctx, uploadReq("product2", "a.jpg"))
	require.NoError(t, err)
	back, err := svc.Upload(ctx, uploadReq("product2", "b.jpg"))
	require.NoError(t, err)

	third, err := svc.Upload(ctx, uploadReq("product2", "c.jpg"))
	require.NoError(t, err)

	assert.Equal(t, ecolens.RoleBack, third.Role)
	assert.Equal(t, []string{back.FileName}, third.Evicted)
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     ecolens.UploadRequest
		wantErr error
	}{
		{
			name:    "unknown slot",
			req:     uploadReq("documents", "a.jpg"),
			wantErr: ecolens.ErrInvalidSlot,
		},
		{
			name:    "disallowed extension",
			req:     uploadReq("uploads", "a.gif"),
			wantErr: ecolens.ErrInvalidImageType,
		},
		{
			name: "disallowed mime type",
			req: ecolens.UploadRequest{
				Slot:     "uploads",
				FileName: "a.jpg",
				MimeType: "application/pdf",
				Size:     1024,
				Reader:   strings.NewReader("x"),
			},
			wantErr: ecolens.ErrInvalidImageType,
		},
		{
			name: "file too large",
			req: ecolens.UploadRequest{
				Slot:     "uploads",
				FileName: "a.jpg",
				MimeType: "image/jpeg",
				Size:     ecolens.MaxUploadSize + 1,
				Reader:   strings.NewReader("x"),
			},
			wantErr: ecolens.ErrFileTooLarge,
		},
	}

	ctx := context.Background()
	svc := newTestService(t, memorystorage.New())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Upload(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
		})
	}

	// Rejected uploads must leave the slot untouched.
	status, err := svc.Status(ctx, "uploads")
	require.NoError(t, err)
	assert.Empty(t, status.All)
}

func TestUploadMimeTypeCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memorystorage.New())

	req := uploadReq("uploads", "a.JPG")
	req.MimeType = "IMAGE/JPEG"

	result, err := svc.Upload(ctx, req)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.FileName, ".jpg"))
}

func TestStatusIgnoresNonImageFiles(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()
	require.NoError(t, store.Write(ctx, "uploads", "notes.txt", strings.NewReader("notes")))
	require.NoError(t, store.Write(ctx, "uploads", "front-1-1.jpg", strings.NewReader("img")))

	svc := newTestService(t, store)

	status, err := svc.Status(ctx, "uploads")
	require.NoError(t, err)
	assert.Len(t, status.All, 1)
	assert.Len(t, status.Front, 1)

	// Uploading a back image must not disturb the stray file.
	_, err = svc.Upload(ctx, uploadReq("uploads", "b.jpg"))
	require.NoError(t, err)

	entries, err := store.List(ctx, "uploads")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "notes.txt")
}

func TestStatusIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memorystorage.New())

	_, err := svc.Upload(ctx, uploadReq("uploads", "a.jpg"))
	require.NoError(t, err)
	_, err = svc.Upload(ctx, uploadReq("uploads", "b.jpg"))
	require.NoError(t, err)

	first, err := svc.Status(ctx, "uploads")
	require.NoError(t, err)
	second, err := svc.Status(ctx, "uploads")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStatusInvalidSlot(t *testing.T) {
	svc := newTestService(t, memorystorage.New())
	status, err := svc.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, ecolens.ErrInvalidSlot)
	assert.Nil(t, status)
}

func TestUploadRepairsBrokenSlot(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()

	// Seed a slot that already violates the one-file-per-role rule.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write(ctx, "uploads", "front-1-1.jpg", strings.NewReader("a")))
	require.NoError(t, store.Write(ctx, "uploads", "front-2-2.jpg", strings.NewReader("b")))
	store.SetModTime("uploads", "front-1-1.jpg", base)
	store.SetModTime("uploads", "front-2-2.jpg", base.Add(time.Second))

	sink := &recordingSink{}
	svc := newTestService(t, store, ecolens.WithEventSink(sink))

	// Back is empty so the upload lands there and leaves front alone.
	result, err := svc.Upload(ctx, uploadReq("uploads", "c.jpg"))
	require.NoError(t, err)
	assert.Equal(t, ecolens.RoleBack, result.Role)
	assert.Empty(t, result.Evicted)

	// The next upload targets front and sweeps out both stale files.
	result, err = svc.Upload(ctx, uploadReq("uploads", "d.jpg"))
	require.NoError(t, err)
	assert.Equal(t, ecolens.RoleFront, result.Role)
	assert.ElementsMatch(t, []string{"front-1-1.jpg", "front-2-2.jpg"}, result.Evicted)

	require.Len(t, sink.violations, 1)
	assert.ElementsMatch(t, []string{"front-1-1.jpg", "front-2-2.jpg"}, sink.violations[0])

	status, err := svc.Status(ctx, "uploads")
	require.NoError(t, err)
	assert.Len(t, status.Front, 1)
	assert.Len(t, status.Back, 1)
}

func TestConcurrentUploadsKeepInvariant(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memorystorage.New())

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Upload(ctx, uploadReq("uploads", "img.jpg"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	status, err := svc.Status(ctx, "uploads")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(status.Front), 1)
	assert.LessOrEqual(t, len(status.Back), 1)
	assert.LessOrEqual(t, len(status.All), 2)
}
