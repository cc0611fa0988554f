package storage

import "fmt"

// CorruptRecordError reports a record whose stored bytes could not be
// decoded or whose schema version is ahead of this binary. The original key
// and raw bytes are preserved so an operator can inspect and repair the
// record; a corrupt record is never silently dropped or zero-filled.
type CorruptRecordError struct {
	RecordType string
	Key        string
	Raw        []byte
	Err        error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt %s record %q (%d bytes): %v", e.RecordType, e.Key, len(e.Raw), e.Err)
}

func (e *CorruptRecordError) Unwrap() error {
	return e.Err
}
