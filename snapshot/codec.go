package snapshot

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Read decodes a snapshot document. The input may have been edited by hand,
// so unknown member shapes are rejected rather than guessed at.
func Read(r io.Reader) (Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "Failed decoding snapshot")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.Errorf("unexpected data after snapshot at offset %d", dec.InputOffset())
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that every record names a group.
func (s Snapshot) Validate() error {
	for i, rec := range s {
		if rec.GroupName == "" {
			return errors.Errorf("snapshot record %d has no group_name", i)
		}
	}
	return nil
}

func ReadFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed opening snapshot %s", path)
	}
	defer f.Close()

	return Read(f)
}

// Write encodes the snapshot as indented JSON.
func (s Snapshot) Write(w io.Writer) error {
	if s == nil {
		s = Snapshot{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(s), "Failed encoding snapshot")
}

func (s Snapshot) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := s.Write(&buf); err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "Failed writing snapshot %s", path)
}

// Bytes returns the compact encoding, used for message bodies.
func (s Snapshot) Bytes() ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	b, err := json.Marshal(s)
	return b, errors.Wrap(err, "Failed encoding snapshot")
}
