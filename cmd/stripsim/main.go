// stripsim simulates a dorm power strip over MQTT.
//
// It publishes status and telemetry waveforms on the device topics the
// backend subscribes to, optionally answers commands with a success ack
// after a short delay, and registers a Last Will so the broker reports
// the strip as offline if the simulator dies.
//
// Usage:
//
//	stripsim -device strip01 -interval 1s -auto-ack
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Evildoersudo/back-end/internal/device"
	"github.com/Evildoersudo/back-end/internal/infrastructure/mqtt"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 500 // milliseconds

	minInterval = 200 * time.Millisecond
	minAckDelay = 200 * time.Millisecond
)

type options struct {
	host     string
	port     int
	username string
	password string
	prefix   string
	deviceID string
	interval time.Duration
	duration time.Duration
	autoAck  bool
	ackDelay time.Duration
	qos      int
}

func main() {
	opts := parseFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.host, "host", "localhost", "MQTT broker host")
	flag.IntVar(&opts.port, "port", 1883, "MQTT broker port")
	flag.StringVar(&opts.username, "username", "", "MQTT username")
	flag.StringVar(&opts.password, "password", "", "MQTT password")
	flag.StringVar(&opts.prefix, "prefix", mqtt.DefaultTopicPrefix, "topic prefix")
	flag.StringVar(&opts.deviceID, "device", "strip01", "device id")
	flag.DurationVar(&opts.interval, "interval", time.Second, "publish interval")
	flag.DurationVar(&opts.duration, "duration", 0, "run duration (0 means forever)")
	flag.BoolVar(&opts.autoAck, "auto-ack", false, "answer commands with a success ack")
	flag.DurationVar(&opts.ackDelay, "ack-delay", 1200*time.Millisecond, "delay before auto ack")
	flag.IntVar(&opts.qos, "qos", 1, "MQTT QoS level")
	flag.Parse()

	if opts.interval < minInterval {
		opts.interval = minInterval
	}
	if opts.ackDelay < minAckDelay {
		opts.ackDelay = minAckDelay
	}
	return opts
}

func run(ctx context.Context, opts options) error {
	topics := mqtt.Topics{Prefix: opts.prefix}
	deviceTopic := func(kind string) string {
		return fmt.Sprintf("%s/%s/%s", opts.prefix, opts.deviceID, kind)
	}

	clientOpts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", opts.host, opts.port)).
		SetClientID("stripsim-" + opts.deviceID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	if opts.username != "" {
		clientOpts.SetUsername(opts.username)
		clientOpts.SetPassword(opts.password)
	}

	// LWT: the broker announces the strip as gone if the simulator dies
	// without a graceful disconnect.
	will, _ := json.Marshal(map[string]interface{}{
		"ts":     time.Now().Unix(),
		"reason": "power loss",
	})
	clientOpts.SetWill(deviceTopic(mqtt.KindLWT), string(will), byte(opts.qos), false)

	client := pahomqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connecting to broker: timeout after %s", connectTimeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}
	defer client.Disconnect(disconnectQuiesce)

	publish := func(topic string, v interface{}) error {
		body, err := json.Marshal(v)
		if err != nil {
			return err
		}
		token := client.Publish(topic, byte(opts.qos), false, body)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish to %s timed out", topic)
		}
		return token.Error()
	}

	// Answer commands the backend publishes for this strip. Both topic
	// shapes are subscribed so room-qualified identities work too.
	if opts.autoAck {
		ackTopic := deviceTopic(mqtt.KindAck)
		handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
			var cmd struct {
				CmdID string `json:"cmdId"`
			}
			if err := json.Unmarshal(msg.Payload(), &cmd); err != nil || cmd.CmdID == "" {
				return
			}
			go func() {
				select {
				case <-time.After(opts.ackDelay):
				case <-ctx.Done():
					return
				}
				ack := map[string]interface{}{
					"cmdId":  cmd.CmdID,
					"status": "success",
					"costMs": opts.ackDelay.Milliseconds(),
				}
				if err := publish(ackTopic, ack); err != nil {
					fmt.Printf("[sim] ack publish failed: %v\n", err)
					return
				}
				fmt.Printf("[sim] acked %s\n", cmd.CmdID)
			}()
		}

		cmdTopics := []string{topics.DeviceCommand(opts.deviceID)}
		if room, dev, ok := device.SplitRoomDevice(opts.deviceID); ok {
			cmdTopics = append(cmdTopics, topics.RoomDeviceCommand(room, dev))
		}
		for _, topic := range cmdTopics {
			tok := client.Subscribe(topic, byte(opts.qos), handler)
			if !tok.WaitTimeout(publishTimeout) {
				return fmt.Errorf("subscribing to %s: timeout", topic)
			}
			if tok.Error() != nil {
				return fmt.Errorf("subscribing to %s: %w", topic, tok.Error())
			}
		}
	}

	fmt.Printf("[sim] start device=%s broker=%s:%d interval=%s auto_ack=%v\n",
		opts.deviceID, opts.host, opts.port, opts.interval, opts.autoAck)

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if opts.duration > 0 {
		deadline = time.After(opts.duration)
	}

	tick := 0
	for {
		now := time.Now().Unix()
		status := makeStatus(now, tick)
		if err := publish(deviceTopic(mqtt.KindStatus), status); err != nil {
			return fmt.Errorf("publishing status: %w", err)
		}
		telemetry := map[string]interface{}{
			"ts":        now,
			"power_w":   status["total_power_w"],
			"voltage_v": status["voltage_v"],
			"current_a": status["current_a"],
		}
		if err := publish(deviceTopic(mqtt.KindTelemetry), telemetry); err != nil {
			return fmt.Errorf("publishing telemetry: %w", err)
		}
		fmt.Printf("[sim] ts=%d power=%vW voltage=%vV\n", now, status["total_power_w"], status["voltage_v"])
		tick++

		select {
		case <-ctx.Done():
			// Graceful stop: tell the backend the strip is going away so
			// it records the offline cause instead of waiting out the
			// silence window.
			offline := map[string]interface{}{
				"ts":     time.Now().Unix(),
				"reason": "remote manual power-off",
			}
			if err := publish(deviceTopic(mqtt.KindOffline), offline); err != nil {
				fmt.Printf("[sim] offline publish failed: %v\n", err)
			}
			fmt.Println("[sim] done")
			return nil
		case <-deadline:
			fmt.Println("[sim] done")
			return nil
		case <-ticker.C:
		}
	}
}

// makeStatus builds a plausible 4-socket load waveform. Socket powers
// are phase-shifted sines around a wandering base load so charts look
// alive rather than flat.
func makeStatus(ts int64, tick int) map[string]interface{} {
	t := float64(tick)
	base := 130.0 + 45.0*math.Sin(t/9.0)
	p1 := math.Max(base*0.45, 5.0)
	p2 := math.Max(base*0.25+8.0*math.Sin(t/6.0), 0.0)
	p3 := math.Max(base*0.20+5.0*math.Cos(t/7.0), 0.0)
	p4 := math.Max(base-p1-p2-p3, 0.0)
	total := p1 + p2 + p3 + p4

	return map[string]interface{}{
		"ts":            ts,
		"online":        true,
		"total_power_w": round2(total),
		"voltage_v":     round2(220.0 + 1.8*math.Sin(t/13.0)),
		"current_a":     round3(total / device.DefaultVoltage),
		"sockets": []map[string]interface{}{
			{"id": 1, "on": true, "power_w": round2(p1), "device": "PC"},
			{"id": 2, "on": true, "power_w": round2(p2), "device": "Monitor"},
			{"id": 3, "on": true, "power_w": round2(p3), "device": "Fan"},
			{"id": 4, "on": true, "power_w": round2(p4), "device": "Router"},
		},
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
