package telemetry

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// TimestampColumn is the column holding sample timestamps in integer microseconds
const TimestampColumn = "timestamp"

// ErrChannelNotFound is returned when a requested topic or column is absent from the Store
var ErrChannelNotFound = errors.New("channel not found")

// Table is a decoded log topic: named numeric columns sharing a timestamp column
type Table struct {
	Topic      string
	Timestamps []int64 // Microseconds
	Columns    map[string][]float64
}

// Len returns the number of rows in the table
func (t *Table) Len() int {
	return len(t.Timestamps)
}

// Times converts the table timestamps to seconds
func (t *Table) Times() []float64 {
	times := make([]float64, len(t.Timestamps))
	for i, ts := range t.Timestamps {
		times[i] = float64(ts) * 1e-6
	}
	return times
}

// ColumnNames returns column names in sorted order
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Column returns the values of a column
func (t *Table) Column(name string) ([]float64, error) {
	values, ok := t.Columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: column %q in topic %q", ErrChannelNotFound, name, t.Topic)
	}
	return values, nil
}

// Channel builds a Channel from one column of the table
func (t *Table) Channel(column string, kind Kind) (Channel, error) {
	values, err := t.Column(column)
	if err != nil {
		return Channel{}, err
	}
	return NewChannel(column, kind, t.Times(), slices.Clone(values))
}

func (t *Table) validate() error {
	if t.Topic == "" {
		return errors.New("topic name required")
	}
	for name, values := range t.Columns {
		if len(values) != len(t.Timestamps) {
			return fmt.Errorf("topic %q: column %q: %w: %d != %d", t.Topic, name, ErrLengthMismatch, len(values), len(t.Timestamps))
		}
	}
	return nil
}

// Store provides typed access to decoded telemetry topics
type Store struct {
	tables map[string]*Table
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{tables: make(map[string]*Table)}
}

// Add registers a decoded table under its topic name
func (s *Store) Add(t *Table) error {
	if err := t.validate(); err != nil {
		return err
	}
	if _, ok := s.tables[t.Topic]; ok {
		return fmt.Errorf("topic %q already exists", t.Topic)
	}

	s.tables[t.Topic] = t
	return nil
}

// Table returns the table for a topic
func (s *Store) Table(topic string) (*Table, error) {
	t, ok := s.tables[topic]
	if !ok {
		return nil, fmt.Errorf("%w: topic %q", ErrChannelNotFound, topic)
	}
	return t, nil
}

// Channel returns a column of a topic as a Channel
func (s *Store) Channel(topic, column string, kind Kind) (Channel, error) {
	t, err := s.Table(topic)
	if err != nil {
		return Channel{}, err
	}
	return t.Channel(column, kind)
}

// Topics returns the topic names in sorted order
func (s *Store) Topics() []string {
	topics := make([]string, 0, len(s.tables))
	for topic := range s.tables {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}
