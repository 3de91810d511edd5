// Package dispatch decouples question submitters from a slow, streaming
// answering engine.
//
// Submit places a question on a shared FIFO queue and returns its id
// immediately. A fixed pool of workers takes questions off the queue, asks a
// fresh ai.Engine for each one, and publishes the answer as a series of text
// deltas into a per-question buffer. Poll drains whatever has accumulated
// for a question without waiting on the engine, and reports the answer as
// finished once the terminal fragment has been seen, at which point the
// buffer is reclaimed.
//
// Each question's buffer is bounded. A poller that falls behind throttles
// only the worker producing that question's answer.
package dispatch
