// Package store picks the category store backend from configuration.
package store

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"osutrack-bot/internal/config"
	"osutrack-bot/internal/jobs"
	"osutrack-bot/internal/sheets"
	"osutrack-bot/internal/xlsxstore"
)

// Backend is a category store that may hold resources until closed.
type Backend interface {
	jobs.CategoryStore
	io.Closer
}

type sheetsBackend struct{ *sheets.Client }

func (sheetsBackend) Close() error { return nil }

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (Backend, error) {
	logger = logger.With(zap.String("backend", cfg.StoreBackend))
	switch cfg.StoreBackend {
	case config.BackendSheets:
		c, err := sheets.New(ctx, cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID, logger)
		if err != nil {
			return nil, err
		}
		return sheetsBackend{c}, nil
	case config.BackendXLSX:
		s, err := xlsxstore.Open(cfg.XLSXPath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}
