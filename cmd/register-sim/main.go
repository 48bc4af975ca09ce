// register-sim publishes a scripted terminal event sequence to the broker so
// a running registerd can be exercised end to end without the backend.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "broker address")
	prefix := flag.String("prefix", "registration/terminal/demo", "terminal topic prefix")
	username := flag.String("username", "", "broker username")
	password := flag.String("password", "", "broker password")
	total := flag.Int64("total", 6000, "payment total in minor units")
	reference := flag.String("reference", "SIM-REF1", "transaction reference")
	delay := flag.Duration("delay", 2*time.Second, "delay between events")
	flag.Parse()

	opts := mqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID("register-sim-" + uuid.NewString()[:8]).
		SetUsername(*username).
		SetPassword(*password)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %s: %v\n", *broker, token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	topic := *prefix + "/payment/event"

	events := []map[string]any{
		{"type": "state", "value": "open"},
		{
			"type": "updateCart",
			"cart": map[string]any{
				"badges": []map[string]any{
					{
						"id":        1,
						"firstName": "First",
						"lastName":  "Last",
						"badgeName": "Badge",
						"effectiveLevel": map[string]any{
							"name":  "Weekend",
							"price": "60.00",
						},
						"discountedPrice": nil,
					},
				},
				"charityDonation":      "0.00",
				"organizationDonation": "0.00",
				"totalDiscount":        nil,
				"total":                "60.00",
				"paid":                 "0.00",
			},
		},
		{
			"type":             "processPayment",
			"paymentAttemptId": uuid.NewString(),
			"orderId":          nil,
			"total":            *total,
			"note":             "register-sim checkout",
			"reference":        *reference,
		},
		{"type": "state", "value": "close"},
	}

	for i, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not encode event: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("publishing %s to %s\n", event["type"], topic)
		if token := client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
			fmt.Fprintf(os.Stderr, "publish failed: %v\n", token.Error())
			os.Exit(1)
		}

		if i < len(events)-1 {
			time.Sleep(*delay)
		}
	}
}
