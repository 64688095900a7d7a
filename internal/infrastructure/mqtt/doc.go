// Package mqtt provides MQTT client connectivity for Gray Logic Fan.
//
// The fan service uses the broker for retained fan state and Home Assistant
// discovery (PublishRetained), automation events (PublishEvent) and fan
// command and trigger subscriptions (Subscribe). The client reconnects with
// backoff, restores subscriptions, and registers a Last Will so dashboards
// see the service go offline.
//
// Failures on a topic are returned as *TopicError, which names the fan the
// topic belongs to and wraps one of the sentinel errors.
//
// # Architecture
//
//	fan controller ↔ MQTT Broker ↔ dashboards, Home Assistant, scripts
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllFanCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        fanID, _, _ := mqtt.ParseFanTopic(topic)
//	        log.Printf("command for %s: %s", fanID, payload)
//	        return nil
//	    })
//
//	client.PublishRetained(mqtt.Topics{}.FanState("living_room"), []byte(`{"state":"ON"}`))
package mqtt
