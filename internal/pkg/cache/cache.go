// Package cache persists the reconstructed status of each printer so merges
// can resume after a restart.
package cache

import (
	"errors"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/anicoll/souzu/internal/pkg/model"
	"github.com/anicoll/souzu/pkg/jsonfile"
)

type Store struct {
	dir    string
	logger *zap.Logger
}

func New(dir string) *Store {
	return &Store{
		dir:    dir,
		logger: zap.L(),
	}
}

func (s *Store) path(device model.Device) string {
	return filepath.Join(s.dir, device.FilenamePrefix+".json")
}

// Load returns the cached status for device. A missing or unreadable cache
// file yields an empty cache; other I/O errors are returned.
func (s *Store) Load(device model.Device) (*model.Cache, error) {
	path := s.path(device)
	c := &model.Cache{}
	err := jsonfile.Read(path, c)
	switch {
	case err == nil:
		s.logger.Info("loaded cache file", zap.String("path", path))
		return c, nil
	case jsonfile.IsMissing(err):
		return &model.Cache{}, nil
	case errors.Is(err, jsonfile.ErrCorrupt):
		s.logger.Warn("ignoring corrupt cache file", zap.String("path", path), zap.Error(err))
		return &model.Cache{}, nil
	default:
		return nil, err
	}
}

func (s *Store) Save(device model.Device, c *model.Cache) error {
	path := s.path(device)
	if err := jsonfile.Write(path, c); err != nil {
		return err
	}
	s.logger.Info("saved cache file", zap.String("path", path))
	return nil
}

// Use loads the cache for device, hands it to fn and saves it afterwards no
// matter how fn returns.
func (s *Store) Use(device model.Device, fn func(*model.Cache) error) error {
	c, err := s.Load(device)
	if err != nil {
		return err
	}
	fnErr := fn(c)
	return errors.Join(fnErr, s.Save(device, c))
}
