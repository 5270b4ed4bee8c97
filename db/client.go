// Package db is the build-state store: a small K/V layer recording build
// metadata, per-build summary statistics, and the append-only match audit
// trail across builds.  The exported dataset itself lives in the build
// directories, never here.
package db

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tychodb/tycho/domain"
)

const (
	TableMetadata  = "build-metadata"
	TableSummaries = "build-summaries"
	TableAudits    = "match-audits"
)

var (
	ErrKeyNotFound = errors.New("requested key not found")

	// ErrStateLocked is surfaced when another process holds the state
	// store's file lock, i.e. a build is already in progress.
	ErrStateLocked = errors.New("state store locked: build already in progress")
)

// Client is the typed interface over the state-store backend.  Audit
// trails are append-only: AuditAppend refuses to overwrite an existing
// build's records.  LatestSummary returns nil when no build was ever
// promoted.
type Client interface {
	Open() error
	Close() error
	MetadataSave(meta *domain.BuildMetadata) error
	Metadata(buildID string) (*domain.BuildMetadata, error)
	SummarySave(summary *domain.BuildSummary) error
	Summary(buildID string) (*domain.BuildSummary, error)
	LatestSummary() (*domain.BuildSummary, error)
	AuditAppend(buildID string, recs []*domain.MatchAuditRecord) error
	Audits(buildID string) ([]*domain.MatchAuditRecord, error)
	EachSummary(fn func(summary *domain.BuildSummary)) error
}

// NewClient constructs a state-store client over the given backend.
func NewClient(be Backend) Client {
	c := &clientKV{be: be}
	return c
}

// WithClient handles client open and close around fn.
func WithClient(be Backend, fn func(client Client) error) (err error) {
	client := NewClient(be)

	if err = client.Open(); err != nil {
		err = errors.Wrap(err, "opening state store")
		return
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			if err == nil {
				err = errors.Wrap(closeErr, "closing state store")
			} else {
				log.Errorf("Existing error before attempt to close state store: %s", err)
				log.Errorf("Also encountered problem closing state store: %s", closeErr)
			}
		}
	}()

	err = fn(client)
	return
}

type clientKV struct {
	be Backend
}

func (c *clientKV) Open() error {
	return c.be.Open()
}

func (c *clientKV) Close() error {
	return c.be.Close()
}

func (c *clientKV) MetadataSave(meta *domain.BuildMetadata) error {
	if meta.BuildID == "" {
		return errors.New("refusing to save metadata without a build id")
	}
	return c.putJSON(TableMetadata, meta.BuildID, meta)
}

func (c *clientKV) Metadata(buildID string) (*domain.BuildMetadata, error) {
	meta := &domain.BuildMetadata{}
	if err := c.getJSON(TableMetadata, buildID, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (c *clientKV) SummarySave(summary *domain.BuildSummary) error {
	if summary.BuildID == "" {
		return errors.New("refusing to save summary without a build id")
	}
	return c.putJSON(TableSummaries, summary.BuildID, summary)
}

func (c *clientKV) Summary(buildID string) (*domain.BuildSummary, error) {
	summary := &domain.BuildSummary{}
	if err := c.getJSON(TableSummaries, buildID, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// LatestSummary exploits build-id keys sorting lexically by timestamp; the
// last key in the bucket belongs to the newest promoted build.
func (c *clientKV) LatestSummary() (*domain.BuildSummary, error) {
	var lastKey []byte
	if err := c.be.EachRow(TableSummaries, func(key, _ []byte) {
		lastKey = append(lastKey[:0], key...)
	}); err != nil {
		return nil, err
	}
	if lastKey == nil {
		return nil, nil
	}
	return c.Summary(string(lastKey))
}

func (c *clientKV) AuditAppend(buildID string, recs []*domain.MatchAuditRecord) error {
	key := []byte(buildID)
	if existing, err := c.be.Get(TableAudits, key); err == nil && len(existing) > 0 {
		return fmt.Errorf("audit trail for build %v already recorded; records are append-only", buildID)
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return errors.Wrap(err, "marshalling audit records")
	}
	return c.be.Put(TableAudits, key, data)
}

func (c *clientKV) Audits(buildID string) ([]*domain.MatchAuditRecord, error) {
	data, err := c.be.Get(TableAudits, []byte(buildID))
	if err != nil {
		return nil, err
	}
	recs := []*domain.MatchAuditRecord{}
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling audit records for build %v", buildID)
	}
	return recs, nil
}

func (c *clientKV) EachSummary(fn func(summary *domain.BuildSummary)) error {
	return c.be.EachRow(TableSummaries, func(key, value []byte) {
		summary := &domain.BuildSummary{}
		if err := json.Unmarshal(value, summary); err != nil {
			log.WithField("build-id", string(key)).Errorf("Skipping undecodable summary: %s", err)
			return
		}
		fn(summary)
	})
}

func (c *clientKV) putJSON(table, key string, src interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return errors.Wrapf(err, "marshalling %v/%v", table, key)
	}
	return c.be.Put(table, []byte(key), data)
}

func (c *clientKV) getJSON(table, key string, dst interface{}) error {
	data, err := c.be.Get(table, []byte(key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrapf(err, "unmarshalling %v/%v", table, key)
	}
	return nil
}
