package model

import "fmt"

// FetchError reports that the trace source could not be reached or returned
// something that is not a trace.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch trace from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedTraceError reports one instruction without a usable event list.
type MalformedTraceError struct {
	Index  int
	Reason string
}

func (e *MalformedTraceError) Error() string {
	return fmt.Sprintf("instruction %d: malformed trace: %s", e.Index, e.Reason)
}

// UnknownSegmentError reports an interaction with a segment that is not in
// the current trace.
type UnknownSegmentError struct {
	ID SegmentID
}

func (e *UnknownSegmentError) Error() string {
	return fmt.Sprintf("no segment %s in trace", e.ID)
}

// RowError reports an instruction whose row could not be laid out.
type RowError struct {
	Index  int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("instruction %d: cannot lay out row: %s", e.Index, e.Reason)
}
