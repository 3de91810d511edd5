// Package mock provides test double implementations of the ai interfaces.
//
// MockEngine replays a scripted sequence of cumulative answer steps and can
// be told to fail after a number of steps, to pause between steps, or to
// block until a gate is released. MockProvider hands out engines and records
// the credentials it was asked for.
//
// # Usage in Tests
//
//	// Engine that streams "H", "He", "Hello" and finishes
//	engine := mock.NewMockEngine("H", "He", "Hello")
//	provider := mock.NewMockProvider(engine)
//
//	// Engine that yields "partial" then fails
//	failing := mock.NewMockEngine("partial").WithError(1, errors.New("boom"))
//
//	// Custom behaviour per request
//	engine.AskFunc = func(ctx context.Context, req ai.Request) iter.Seq2[ai.Step, error] { ... }
//
//	// Check call counts
//	count := engine.CallCount()
//
// # Default Behavior
//
//   - MockEngine: Yields its steps in order tagged with conversation id
//     "mock-conversation" (or the request's id) and parent "mock-parent"
//   - MockProvider: Returns the same engine for every credential
package mock
