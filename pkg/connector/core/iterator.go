package core

import "github.com/evhart/preserve/pkg/record"

// sliceIterator walks an in-memory snapshot of records. Backends that copy
// their contents at Iterate time use it instead of rolling their own.
type sliceIterator struct {
	records []record.Record
	pos     int
}

// NewSliceIterator returns an iterator over a snapshot of records.
func NewSliceIterator(records []record.Record) Iterator {
	return &sliceIterator{records: records, pos: -1}
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.records) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Record() record.Record {
	if it.pos < 0 || it.pos >= len(it.records) {
		return record.Record{}
	}
	return it.records[it.pos]
}

func (it *sliceIterator) Err() error { return nil }

func (it *sliceIterator) Close() error {
	it.records = nil
	it.pos = -1
	return nil
}
