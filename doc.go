// Package claudeweb runs Claude CLI processes on behalf of web sessions.
//
// Each session owns one long-lived CLI process speaking newline-delimited
// JSON over stdin and stdout. The Engine starts and stops those processes,
// turns prompts into awaited query results, and publishes every decoded
// output line as an event.
//
// # Basic Usage
//
//	engine, err := claudeweb.New(ctx,
//	    claudeweb.WithLogger(slog.Default()),
//	    claudeweb.WithQueryTimeout(2*time.Minute),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close(ctx)
//
//	if err := engine.CreateSession(ctx, "s1", "/path/to/project"); err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := engine.ExecuteQuery(ctx, "s1", "What does this repo do?")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(*result.Message.Result)
//
// # Streaming Output
//
// Output lines arrive on the event bus while a query runs:
//
//	events, unsubscribe := engine.Subscribe(claudeweb.ForSession("s1", claudeweb.EventMessage))
//	defer unsubscribe()
//
//	for ev := range events {
//	    fmt.Println(ev.Message.MessageType())
//	}
//
// # Cancellation
//
// Cancelling the context passed to ExecuteQuery, or calling CancelQuery with
// the id set by WithQueryID, stops the wait. The CLI process is not
// interrupted and may still emit output for the abandoned prompt.
//
// # Errors
//
// Failures are typed: *SessionNotFoundError, *SessionExistsError,
// *ProcessStartError, *QueryTimeoutError, *QueryAbortedError,
// *SubprocessCrashedError and *AuthenticationError all implement EngineError
// and match their sentinels with errors.Is.
package claudeweb
