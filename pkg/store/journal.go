package store

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/driftmirror/driftmirror/pkg/dmerrors"
)

// journalMagic and journalVersion identify the recovery journal's on-disk
// format. Unlike the bbolt store, this is a format driftmirror owns
// end-to-end, so the magic and version are literal leading bytes, per spec
// §3.1.
var journalMagic = [4]byte{'D', 'M', 'H', '1'}

const journalVersion = uint16(1)

// JournalRecordState describes the lifecycle stage of a pending rename
// recorded in the recovery journal.
type JournalRecordState uint8

const (
	// JournalStatePending indicates a temp-file write is underway; the
	// rename into destinationPath has not yet been attempted.
	JournalStatePending JournalRecordState = iota
	// JournalStateCommitted indicates the rename completed (or was rolled
	// back); Replay skips the record, which stays in the file.
	JournalStateCommitted
)

// JournalRecord describes one in-flight atomic rename, written before the
// rename begins and marked committed once it completes or is rolled back,
// per spec §4.9.
type JournalRecord struct {
	RunID           string
	VirtualPath     string
	TempPath        string
	DestinationPath string
	State           JournalRecordState
}

// Journal is the append-only recovery journal described in spec §4.9.
// BeginRename appends a pending record before a rename and
// PendingRename.Commit marks it committed in place once the rename
// completes; any record still pending at startup identifies a temp file left
// by a rename that never completed. No SyncEngine or VFS code path calls
// BeginRename, so the renames done by filesystem.CopyFileAtomic are not
// journaled.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// OpenJournal opens (creating and initializing if necessary) the journal
// file at path. An existing file whose header is not journalMagic followed
// by journalVersion is refused with a StoreError.
func OpenJournal(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to open recovery journal").With("path", path)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to stat recovery journal")
	}
	if info.Size() == 0 {
		if err := writeHeader(file); err != nil {
			file.Close()
			return nil, err
		}
	} else {
		header := make([]byte, 6)
		if _, err := file.ReadAt(header, 0); err != nil || string(header[:4]) != string(journalMagic[:]) ||
			binary.LittleEndian.Uint16(header[4:]) != journalVersion {
			file.Close()
			return nil, dmerrors.New(dmerrors.CodeStoreError, "unrecognized recovery journal format").With("path", path)
		}
	}

	return &Journal{file: file, path: path}, nil
}

func writeHeader(file *os.File) error {
	header := make([]byte, 6)
	copy(header[:4], journalMagic[:])
	binary.LittleEndian.PutUint16(header[4:], journalVersion)
	if _, err := file.WriteAt(header, 0); err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to write journal header")
	}
	return nil
}

// Close closes the underlying journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// BeginRename appends a pending record for a rename about to be attempted
// and returns a handle used to clear it once the rename completes.
func (j *Journal) BeginRename(virtualPath, tempPath, destinationPath string) (*PendingRename, error) {
	record := JournalRecord{
		RunID:           uuid.NewString(),
		VirtualPath:     virtualPath,
		TempPath:        tempPath,
		DestinationPath: destinationPath,
		State:           JournalStatePending,
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	offset, err := j.appendLocked(record)
	if err != nil {
		return nil, err
	}

	return &PendingRename{journal: j, offset: offset}, nil
}

// PendingRename is an in-progress journal record; call Commit once the
// corresponding rename has succeeded (or been rolled back), marking it
// committed in the journal.
type PendingRename struct {
	journal *Journal
	offset  int64
}

// Commit marks this record committed by rewriting its state byte in place.
func (p *PendingRename) Commit() error {
	p.journal.mu.Lock()
	defer p.journal.mu.Unlock()
	return p.journal.clearAtLocked(p.offset)
}

func (j *Journal) appendLocked(record JournalRecord) (int64, error) {
	offset, err := j.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to seek recovery journal")
	}

	data := encodeRecord(record)
	if _, err := j.file.Write(data); err != nil {
		return 0, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to append recovery journal record")
	}
	if err := j.file.Sync(); err != nil {
		return 0, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to sync recovery journal")
	}
	return offset, nil
}

func (j *Journal) clearAtLocked(offset int64) error {
	if _, err := j.file.WriteAt([]byte{byte(JournalStateCommitted)}, offset+stateFieldOffset); err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to clear recovery journal record")
	}
	return j.file.Sync()
}

// Replay reads every record still in JournalStatePending and returns them,
// representing renames that were interrupted by a crash. The Coordinator
// removes each record's temp file on startup and lets the next sync retry
// the action, per spec §4.9.
func (j *Journal) Replay() ([]JournalRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Seek(6, io.SeekStart); err != nil {
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to seek recovery journal")
	}

	reader := bufio.NewReader(j.file)
	var records []JournalRecord
	for {
		record, err := decodeRecord(reader)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to decode recovery journal record")
		}
		if record.State == JournalStatePending {
			records = append(records, record)
		}
	}
	return records, nil
}

// uuidStringLength is the length of a string produced by uuid.NewString().
const uuidStringLength = 36

// stateFieldOffset is the byte offset of the state field within an encoded
// record (outer 4-byte length prefix, then RunID's 4-byte length prefix and
// fixed-length UUID body), used by clearAtLocked to flip it in place without
// rewriting the whole record.
const stateFieldOffset = 4 + 4 + uuidStringLength

func encodeRecord(record JournalRecord) []byte {
	var buffer []byte
	buffer = appendLengthPrefixed(buffer, record.RunID)
	buffer = append(buffer, byte(record.State))
	buffer = appendLengthPrefixed(buffer, record.VirtualPath)
	buffer = appendLengthPrefixed(buffer, record.TempPath)
	buffer = appendLengthPrefixed(buffer, record.DestinationPath)

	framed := make([]byte, 4+len(buffer))
	binary.LittleEndian.PutUint32(framed, uint32(len(buffer)))
	copy(framed[4:], buffer)
	return framed
}

func decodeRecord(reader *bufio.Reader) (JournalRecord, error) {
	var lengthBytes [4]byte
	if _, err := io.ReadFull(reader, lengthBytes[:]); err != nil {
		return JournalRecord{}, err
	}
	length := binary.LittleEndian.Uint32(lengthBytes[:])
	body := make([]byte, length)
	if _, err := io.ReadFull(reader, body); err != nil {
		return JournalRecord{}, err
	}

	var record JournalRecord
	offset := 0
	record.RunID, offset = readLengthPrefixed(body, offset)
	record.State = JournalRecordState(body[offset])
	offset++
	record.VirtualPath, offset = readLengthPrefixed(body, offset)
	record.TempPath, offset = readLengthPrefixed(body, offset)
	record.DestinationPath, _ = readLengthPrefixed(body, offset)
	return record, nil
}

func appendLengthPrefixed(buffer []byte, s string) []byte {
	var lengthBytes [4]byte
	binary.LittleEndian.PutUint32(lengthBytes[:], uint32(len(s)))
	buffer = append(buffer, lengthBytes[:]...)
	return append(buffer, s...)
}

func readLengthPrefixed(body []byte, offset int) (string, int) {
	length := binary.LittleEndian.Uint32(body[offset : offset+4])
	offset += 4
	return string(body[offset : offset+int(length)]), offset + int(length)
}
