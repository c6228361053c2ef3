// Package testutil provides test doubles and wire fixtures for TopStack tests.
//
// MockBus is an in-memory bus.Bus with the same single-level wildcard routing
// as the platform's subjects. Publish is synchronous: when it returns, every
// matching handler has run. FailNextSubscribe injects a subscribe failure and
// Close ends the connection, closing Done:
//
//	b := testutil.NewMockBus()
//	engine := subscription.NewEngine(b)
//	h, _ := engine.Subscribe(ctx, subject.Scope{}, subject.ClassPointData, handler)
//	_ = b.Publish(ctx, testutil.PointDataSubject, []byte(testutil.PointDataPayload))
//
// The *Payload constants are platform wire messages, one per message class,
// paired with the *Subject constants they are published on.
package testutil
