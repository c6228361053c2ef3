// Package mqttbus carries the platform event bus over MQTT, for deployments
// that bridge the event stream to a broker such as Mosquitto or EMQX.
//
// Bus subjects keep their dotted form at the API. On the wire they become
// topics: dots turn into slashes and the single-level wildcard '*' into '+'.
// Handlers receive the concrete subject in dotted form again, so the
// subscription engine and the decoders work unchanged:
//
//	b, err := mqttbus.Connect(ctx, mqttbus.Config{
//	    Broker:   "tcp://broker:1883",
//	    ClientID: "topstack-watch",
//	    QoS:      1,
//	})
//	if err != nil {
//	    return err
//	}
//	defer b.Close(ctx)
//
//	engine := subscription.NewEngine(b)
//
// Subscriptions on the same subject share one broker subscription. paho runs
// handlers on its router goroutine in arrival order; a bus handler must not
// block and must not call Unsubscribe from inside itself.
//
// With reconnects enabled (the default) a dropped connection is retried by
// paho and every subscription is restored afterwards. With DisableReconnect the
// first loss closes Done, which ends every engine subscription.
package mqttbus
