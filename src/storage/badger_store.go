package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"clientdesk/src/engine"
	"clientdesk/src/helpers"
	"clientdesk/src/models"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerConfig configures the embedded record database.
type BadgerConfig struct {
	// Path is ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
}

// BadgerStore persists records in BadgerDB under keys
// "rec/<tenant>/<module>/<id>" with BSON encoded values.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

// badgerLogger routes badger's own logging through zap.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.logger.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debugf(format, args...) }

func OpenBadgerStore(cfg BadgerConfig, logger *zap.SugaredLogger) (*BadgerStore, error) {
	logger = helpers.OrNop(logger)
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent record store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("failed to create record directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	logger.Infow("record store opened", "path", cfg.Path, "inMemory", cfg.InMemory)
	return &BadgerStore{db: db, logger: logger, now: time.Now}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Records returns the tenant's view of the store.
func (s *BadgerStore) Records(tenant string) (engine.RecordStore, error) {
	if err := checkName(ErrInvalidTenant, tenant); err != nil {
		return nil, err
	}
	return &badgerTenant{store: s, tenant: tenant}, nil
}

type badgerTenant struct {
	store  *BadgerStore
	tenant string
}

func (t *badgerTenant) prefix(moduleName string) []byte {
	return []byte("rec/" + t.tenant + "/" + moduleName + "/")
}

func (t *badgerTenant) key(moduleName, id string) []byte {
	return append(t.prefix(moduleName), id...)
}

// FetchAll returns the module's records ordered by creation time.
func (t *badgerTenant) FetchAll(ctx context.Context, moduleName string) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkName(ErrInvalidModule, moduleName); err != nil {
		return nil, err
	}

	var records []models.Record
	err := t.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = t.prefix(moduleName)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec models.Record
			err := it.Item().Value(func(val []byte) error {
				return decodeRecord(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (t *badgerTenant) Insert(ctx context.Context, moduleName string, data map[string]interface{}) (models.Record, error) {
	if err := ctx.Err(); err != nil {
		return models.Record{}, err
	}
	if err := checkName(ErrInvalidModule, moduleName); err != nil {
		return models.Record{}, err
	}
	now := t.store.now().UTC().Truncate(time.Millisecond)
	rec := models.Record{
		ID:         helpers.GenerateUUID(),
		ModuleName: moduleName,
		Data:       data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	encoded, err := helpers.EncodeBSON(rec)
	if err != nil {
		return models.Record{}, err
	}
	err = t.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(t.key(moduleName, rec.ID), encoded)
	})
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to insert into %s: %w", moduleName, err)
	}
	t.store.logger.Debugw("record inserted", "tenant", t.tenant, "module", moduleName, "id", rec.ID)
	return rec.Clone(), nil
}

// Update merges data into the stored record.
func (t *badgerTenant) Update(ctx context.Context, moduleName, id string, data map[string]interface{}) (models.Record, error) {
	if err := ctx.Err(); err != nil {
		return models.Record{}, err
	}
	var rec models.Record
	err := t.store.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(t.key(moduleName, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s/%s", engine.ErrRecordNotFound, moduleName, id)
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error { return decodeRecord(val, &rec) }); err != nil {
			return err
		}
		if rec.Data == nil {
			rec.Data = make(map[string]interface{}, len(data))
		}
		for k, v := range data {
			rec.Data[k] = v
		}
		rec.UpdatedAt = t.store.now().UTC().Truncate(time.Millisecond)
		encoded, err := helpers.EncodeBSON(rec)
		if err != nil {
			return err
		}
		return txn.Set(t.key(moduleName, id), encoded)
	})
	if err != nil {
		return models.Record{}, err
	}
	return rec, nil
}

func (t *badgerTenant) Delete(ctx context.Context, moduleName, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.store.db.Update(func(txn *badger.Txn) error {
		key := t.key(moduleName, id)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s/%s", engine.ErrRecordNotFound, moduleName, id)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func decodeRecord(val []byte, rec *models.Record) error {
	if err := helpers.DecodeBSON(val, rec); err != nil {
		return err
	}
	if data, ok := helpers.NormalizeBSON(rec.Data).(map[string]interface{}); ok {
		rec.Data = data
	}
	return nil
}
