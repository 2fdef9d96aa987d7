package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	cserrors "github.com/clinilearn/casesearch/pkg/errors"
)

// On-disk snapshot container: a fixed header (magic, format version,
// payload length), the JSON-encoded snapshot, and a CRC32 footer over the
// payload. Files are written to a .tmp sibling and renamed into place.
const (
	fileMagic   uint32 = 0x43534E50 // "CSNP"
	fileVersion uint32 = 1
	headerSize         = 16
	footerSize         = 4
)

// WriteSnapshotFile atomically writes the snapshot to path.
func WriteSnapshotFile(path string, s *Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], fileMagic)
	binary.LittleEndian.PutUint32(header[4:8], fileVersion)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(payload)))
	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(footer, crc32.ChecksumIEEE(payload))

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()
	for _, chunk := range [][]byte{header, payload, footer} {
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("writing snapshot file: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}

// ReadSnapshotFile reads and validates a snapshot container. Malformed
// input of any kind, from a bad magic to a checksum mismatch to invalid
// postings, fails with ErrDeserialization.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	if len(data) < headerSize+footerSize {
		return nil, cserrors.Deserializationf("snapshot file truncated at %d bytes", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != fileMagic {
		return nil, cserrors.Deserializationf("bad magic bytes %x", magic)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != fileVersion {
		return nil, cserrors.Deserializationf("unsupported container version %d", version)
	}
	payloadLen := binary.LittleEndian.Uint64(data[8:16])
	if payloadLen != uint64(len(data)-headerSize-footerSize) {
		return nil, cserrors.Deserializationf(
			"payload length %d does not match file size %d", payloadLen, len(data))
	}
	payload := data[headerSize : headerSize+int(payloadLen)]
	checksum := binary.LittleEndian.Uint32(data[len(data)-footerSize:])
	if actual := crc32.ChecksumIEEE(payload); actual != checksum {
		return nil, cserrors.Deserializationf("checksum mismatch: %08x != %08x", actual, checksum)
	}

	var s Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, cserrors.Deserializationf("decoding payload: %v", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
