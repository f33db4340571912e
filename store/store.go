// Package store persists received and sent messages and the few settings the
// daemon keeps between runs, in a SQLite database accessed through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Message directions.
const (
	Inbound  = "in"
	Outbound = "out"
)

// Setting keys.
const (
	KeyLastPort    = "last_port"
	KeyAutoConnect = "auto_connect"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("store: not found")

// Message is an archived short message.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Direction string    `gorm:"index;size:3" json:"direction"`
	Number    string    `gorm:"index;size:32" json:"number"`
	Text      string    `json:"text"`
	Encoding  string    `gorm:"size:8" json:"encoding"`
	Time      time.Time `gorm:"index" json:"time"`
	// Parts holds the comma separated storage indices of an inbound message,
	// or the message references of an outbound one.
	Parts     string    `json:"parts,omitempty"`
	Partial   bool      `json:"partial,omitempty"`
	Port      string    `gorm:"size:64" json:"port,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Setting is a key/value pair.
type Setting struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string
}

// Filter selects archived messages. Zero fields match everything.
type Filter struct {
	Direction string
	Number    string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// Store is the message archive and settings database.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the database at path and migrates its tables. The
// path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if memory {
		// every connection would see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Message{}, &Setting{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveMessage archives m, filling in the direction and time when unset.
func (s *Store) SaveMessage(ctx context.Context, m *Message) error {
	if m.Direction == "" {
		m.Direction = Inbound
	}
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("store: save message: %w", err)
	}
	return nil
}

// ListMessages returns the messages matching f, newest first, together with
// the total number of matches ignoring Limit and Offset.
func (s *Store) ListMessages(ctx context.Context, f Filter) ([]Message, int, error) {
	query := s.db.WithContext(ctx).Model(&Message{})
	if f.Direction != "" {
		query = query.Where("direction = ?", f.Direction)
	}
	if f.Number != "" {
		query = query.Where("number = ?", f.Number)
	}
	if !f.Since.IsZero() {
		query = query.Where("time >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		query = query.Where("time <= ?", f.Until)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: count messages: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var out []Message
	err := query.Order("time DESC").Order("id DESC").Limit(limit).Offset(f.Offset).Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: list messages: %w", err)
	}
	return out, int(total), nil
}

// DeleteMessages removes the messages with the given ids.
func (s *Store) DeleteMessages(ctx context.Context, ids ...uint) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: delete messages: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var setting Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get %s: %w", key, err)
	}
	return setting.Value, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	setting := Setting{Key: key, Value: value}
	err := s.db.WithContext(ctx).Where(Setting{Key: key}).Assign(setting).FirstOrCreate(&setting).Error
	if err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

// Settings returns all stored settings.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	var settings []Setting
	if err := s.db.WithContext(ctx).Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("store: get settings: %w", err)
	}
	out := make(map[string]string, len(settings))
	for _, setting := range settings {
		out[setting.Key] = setting.Value
	}
	return out, nil
}

// LastPort returns the port of the last successful connection, or "".
func (s *Store) LastPort(ctx context.Context) (string, error) {
	v, err := s.Get(ctx, KeyLastPort)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// SetLastPort remembers port as the last successfully connected one.
func (s *Store) SetLastPort(ctx context.Context, port string) error {
	return s.Set(ctx, KeyLastPort, port)
}

// AutoConnect reports whether the daemon connects on startup. It defaults to
// false.
func (s *Store) AutoConnect(ctx context.Context) (bool, error) {
	v, err := s.Get(ctx, KeyAutoConnect)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(v)
}

// SetAutoConnect stores the auto-connect flag.
func (s *Store) SetAutoConnect(ctx context.Context, on bool) error {
	return s.Set(ctx, KeyAutoConnect, strconv.FormatBool(on))
}

// JoinInts formats ints as a comma separated list.
func JoinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
