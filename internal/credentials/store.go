package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/cloud"
	appErr "github.com/instanti8/engine/pkg/errors"
	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
)

// Store persists at most one bundle per (owner, provider). Save overwrites.
type Store interface {
	Save(ctx context.Context, ownerID uuid.UUID, p cloud.Provider, b Bundle) error
	// Get fails with not_found when nothing is stored.
	Get(ctx context.Context, ownerID uuid.UUID, p cloud.Provider) (Bundle, error)
	// Delete succeeds when nothing is stored.
	Delete(ctx context.Context, ownerID uuid.UUID, p cloud.Provider) error
	Has(ctx context.Context, ownerID uuid.UUID, p cloud.Provider) (bool, error)
}

const (
	dirMode  fs.FileMode = 0o700
	fileMode fs.FileMode = 0o600
)

// FileStore keeps bundles as <root>/<owner>/<provider>.json, readable only by
// the service user.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, dirMode); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "create credentials root failed")
	}
	if err := os.Chmod(root, dirMode); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "restrict credentials root failed")
	}
	return &FileStore{root: root}, nil
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) ownerDir(ownerID uuid.UUID) string {
	return filepath.Join(s.root, ownerID.String())
}

func (s *FileStore) path(ownerID uuid.UUID, p cloud.Provider) string {
	return filepath.Join(s.ownerDir(ownerID), p.String()+".json")
}

func (s *FileStore) Save(ctx context.Context, ownerID uuid.UUID, p cloud.Provider, b Bundle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "encode credential bundle failed")
	}
	dir := s.ownerDir(ownerID)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create owner credentials dir failed")
	}
	if err := os.Chmod(dir, dirMode); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "restrict owner credentials dir failed")
	}

	tmp, err := os.CreateTemp(dir, "."+p.String()+"-*.tmp")
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create credential file failed")
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return appErr.Wrap(err, appErr.CodeInternal, "restrict credential file failed")
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return appErr.Wrap(err, appErr.CodeInternal, "write credential file failed")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return appErr.Wrap(err, appErr.CodeInternal, "sync credential file failed")
	}
	if err := tmp.Close(); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "close credential file failed")
	}
	if err := os.Rename(tmpName, s.path(ownerID, p)); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "store credential file failed")
	}

	logger.L().Info("credentials saved", zap.String("owner_id", ownerID.String()), zap.String("provider", p.String()))
	return nil
}

func (s *FileStore) Get(ctx context.Context, ownerID uuid.UUID, p cloud.Provider) (Bundle, error) {
	raw, err := os.ReadFile(s.path(ownerID, p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErr.Newf(appErr.CodeNotFound, "no %s credentials configured", p).WithMeta("provider", p.String())
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "read credential file failed")
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "decode credential file failed")
	}
	return b, nil
}

func (s *FileStore) Delete(ctx context.Context, ownerID uuid.UUID, p cloud.Provider) error {
	if err := os.Remove(s.path(ownerID, p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return appErr.Wrap(err, appErr.CodeInternal, "delete credential file failed")
	}
	logger.L().Info("credentials deleted", zap.String("owner_id", ownerID.String()), zap.String("provider", p.String()))
	return nil
}

func (s *FileStore) Has(ctx context.Context, ownerID uuid.UUID, p cloud.Provider) (bool, error) {
	_, err := os.Stat(s.path(ownerID, p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, appErr.Wrap(err, appErr.CodeInternal, "stat credential file failed")
}
