// Package event implements the event emission sink of a turn.
//
// An Emitter stamps each payload into a core.EmittedEvent and hands it to a
// Transport. Events sharing a correlation id are delivered in the order
// Emit was called and carry consecutive offsets; events of different
// correlation ids are independent. Transport failures are returned to the
// caller, and every send is bounded by a timeout so emission never blocks
// indefinitely.
//
// Example:
//
//	sink := event.NewChannelTransport(64)
//	em := event.NewEmitter(sink)
//
//	go func() {
//	    for ev := range sink.Events() {
//	        fmt.Println(ev.Kind, ev.CorrelationID)
//	    }
//	}()
//
//	_, err := em.EmitStatus(ctx, core.StatusAcknowledged, nil)
package event
