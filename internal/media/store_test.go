package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newStore(t *testing.T, maxMB int) *Store {
	t.Helper()
	store, err := NewStore(config.UploadsConfig{Dir: t.TempDir(), PublicPath: "/uploads", MaxUploadMB: maxMB}, logger.Nop())
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return store
}

func TestStoreSavePNG(t *testing.T) {
	store := newStore(t, 1)
	upload, err := store.Save(context.Background(), FolderOrders, "My Photo.JPG", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	assert.Equal(t, "image/png", upload.ContentType)
	assert.True(t, strings.HasPrefix(upload.Path, "/uploads/orders/2025/03/"), upload.Path)
	assert.True(t, strings.HasSuffix(upload.Path, "-my-photo.png"), upload.Path)

	onDisk := filepath.Join(store.Root(), filepath.FromSlash(strings.TrimPrefix(upload.Path, "/uploads/")))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	require.NoError(t, store.Remove(context.Background(), upload.Path))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))
}

func TestStoreRejectsNonImages(t *testing.T) {
	store := newStore(t, 1)
	_, err := store.Save(context.Background(), FolderProducts, "notes.png", strings.NewReader("%PDF-1.7 not an image"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Len(t, typed.Fields(), 1)
	assert.Contains(t, typed.Fields()[0].Message, "PNG, JPEG, WEBP, or GIF")
}

func TestStoreRejectsOversizedAndEmpty(t *testing.T) {
	store := newStore(t, 1)
	big := append(append([]byte{}, pngHeader...), make([]byte, 1<<20)...)
	_, err := store.Save(context.Background(), FolderOrders, "big.png", bytes.NewReader(big))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = store.Save(context.Background(), FolderOrders, "empty.png", bytes.NewReader(nil))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestStoreRemoveOutsideRoot(t *testing.T) {
	store := newStore(t, 1)
	assert.Error(t, store.Remove(context.Background(), "/etc/passwd"))
	assert.Error(t, store.Remove(context.Background(), "/uploads/../secret"))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "invoice-march", sanitizeFileName("  ../dir/Invoice March  "))
	assert.Equal(t, "", sanitizeFileName("..."))
}
