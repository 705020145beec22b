package model

import "github.com/ethereum/go-ethereum/common"

// Journal accumulates event records emitted while operations execute. Records
// emitted by an operation that later aborts are truncated away by the caller,
// so a drained journal only ever contains events of committed operations.
type Journal struct {
	seq     uint64
	records []EventRecord
}

func NewJournal() *Journal {
	return &Journal{}
}

// Emit appends an event record for a contract at the given block.
func (j *Journal) Emit(contract common.Address, block uint64, event string, data any) {
	j.seq++
	j.records = append(j.records, EventRecord{
		Sequence: j.seq,
		Block:    block,
		Contract: contract.Hex(),
		Event:    event,
		Data:     data,
	})
}

// Len returns the number of buffered records, used as a truncation mark.
func (j *Journal) Len() int {
	return len(j.records)
}

// Truncate drops every record emitted after the given mark.
func (j *Journal) Truncate(mark int) {
	if mark < 0 || mark > len(j.records) {
		return
	}
	j.records = j.records[:mark]
}

// Drain returns the buffered records and resets the buffer. The sequence
// counter keeps running so records stay globally ordered across drains.
func (j *Journal) Drain() []EventRecord {
	out := j.records
	j.records = nil
	return out
}
