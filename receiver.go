package sifql

// ReceiverStatus is returned by a RowReceiver for every row it is handed
type ReceiverStatus int

const (
	// NeedMore indicates that the RowReceiver is ready for the next row
	NeedMore ReceiverStatus = iota
	// Pause indicates that the producer must wait on Resumed() before pushing the next row
	Pause
	// Stop indicates that the RowReceiver does not need any more rows. Finish must still be called.
	Stop
)

// RowReceiver is a downstream sink for rows. A producer calls Prepare once,
// pushes rows with SetNextRow, and terminates with exactly one call to either
// Finish or Fail.
type RowReceiver interface {
	Prepare()                          // Prepare is called once before the first row is pushed
	SetNextRow(row Row) ReceiverStatus // SetNextRow hands over a row. The receiver must not retain row after returning, unless it materializes it.
	Resumed() <-chan struct{}          // Resumed returns a channel which is closed once a paused receiver accepts rows again
	Finish()                           // Finish signals successful completion
	Fail(err error)                    // Fail signals that the producer failed with err
}

// ClosedChannel is a channel which is always closed, useful for RowReceivers which never pause
var ClosedChannel = func() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()
