// Package subscription turns bus messages into decoded records delivered to
// caller handlers.
//
// An Engine sits on one shared bus connection. Subscribe builds a subject from a
// scope and message class, waits for the bus to confirm, and returns a Handle.
// Each subscription owns a bounded queue drained by a single worker, so records
// reach its handler one at a time in bus order while a slow handler holds up
// only its own subscription. Different subscriptions run concurrently.
//
// Failures that concern one message never end a subscription. Decode errors,
// handler errors, recovered panics and queue overflows go to the ErrorHandler:
//
//	engine := subscription.NewEngine(conn,
//	    subscription.WithErrorHandler(func(h subscription.Handle, subj string, err error) {
//	        log.Printf("%s: %v", subj, err)
//	    }),
//	)
//	h, err := engine.SubscribePointData(ctx, "project_001", "", "",
//	    func(ctx context.Context, p message.PointData) error {
//	        fmt.Println(p.DeviceID, p.Value)
//	        return nil
//	    })
//	...
//	err = engine.Unsubscribe(ctx, h)
//
// Unsubscribe is idempotent and returns only after the bus has acknowledged and
// the handler has finished, so shared state can be torn down right after it.
// Closing the engine, or the bus connection, releases every handle.
package subscription
