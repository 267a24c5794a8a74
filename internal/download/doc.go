// Package download implements the download engine: a FIFO job queue with a
// single dispatch loop, supervised extractor processes, progress fan-out to
// subscribers, and history persistence for every terminal job.
package download
