// accelbridge polls an accelerometer node over a serial port and publishes
// its samples to an MQTT broker.
//
//	accelbridge -port /dev/ttyUSB0 -broker mqtt://localhost:1883/wisp
//
// Samples go to <prefix>/accel as JSON; FIFO drains go to <prefix>/fifo.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/tarm/serial"
	"go.uber.org/multierr"

	"github.com/jangala-dev/tinygo-uartxfer/adxl362"
	"github.com/jangala-dev/tinygo-uartxfer/console"
)

var (
	portName  = "/dev/ttyUSB0"
	baud      = 115200
	brokerURL = "mqtt://localhost:1883/wisp"
	interval  = 200 * time.Millisecond
	useFIFO   = false
)

func init() {
	flag.StringVar(&portName, "port", portName, "Serial port of the node.")
	flag.IntVar(&baud, "baud", baud, "Line rate.")
	flag.StringVar(&brokerURL, "broker", brokerURL, "Broker URL; the path is the topic prefix, ?client-id= overrides the id.")
	flag.DurationVar(&interval, "interval", interval, "Poll interval.")
	flag.BoolVar(&useFIFO, "fifo", useFIFO, "Drain the FIFO instead of reading the data registers.")
}

// Reading is one published acceleration sample.
type Reading struct {
	Time int64 `json:"t"` // unix milliseconds
	X    int16 `json:"x"`
	Y    int16 `json:"y"`
	Z    int16 `json:"z"`
	Temp int16 `json:"temp"`
}

// Drain is one published FIFO read.
type Drain struct {
	Time    int64            `json:"t"`
	Samples []adxl362.Sample `json:"samples"`
}

// brokerOptions turns a broker URL into client options and a topic prefix.
func brokerOptions(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}

	clientID := u.Query().Get("client-id")
	if clientID == "" {
		if clientID, err = machineid.ProtectedID("accelbridge"); err != nil {
			return nil, "", fmt.Errorf("machine id: %w", err)
		}
		clientID = clientID[:12]
	}
	opts.SetClientID(clientID)
	return opts, strings.TrimPrefix(u.Path, "/"), nil
}

// Bridge moves samples from a node to the broker.
type Bridge struct {
	node   *console.Client
	mq     paho.Client
	prefix string
}

func (b *Bridge) topic(name string) string {
	if b.prefix == "" {
		return name
	}
	return b.prefix + "/" + name
}

func (b *Bridge) publish(name string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tok := b.mq.Publish(b.topic(name), 0, false, payload)
	tok.Wait()
	return tok.Error()
}

func (b *Bridge) pollAccel(now time.Time) error {
	x, y, z, err := b.node.Acceleration()
	if err != nil {
		return err
	}
	t, err := b.node.Temperature()
	if err != nil {
		return err
	}
	return b.publish("accel", Reading{Time: now.UnixMilli(), X: x, Y: y, Z: z, Temp: t})
}

func (b *Bridge) pollFIFO(now time.Time) error {
	samples, err := b.node.FIFO(console.MaxFIFOWords)
	if err != nil || len(samples) == 0 {
		return err
	}
	return b.publish("fifo", Drain{Time: now.UnixMilli(), Samples: samples})
}

// Run polls until ctx ends. Node errors are logged and polling continues.
func (b *Bridge) Run(ctx context.Context) error {
	poll := b.pollAccel
	if useFIFO {
		poll = b.pollFIFO
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := poll(now); err != nil {
				failures++
				if failures == 1 || bool(glog.V(1)) {
					glog.Warningf("poll: %v", err)
				}
				continue
			}
			if failures > 0 {
				glog.Infof("node recovered after %d failed polls", failures)
				failures = 0
			}
		}
	}
}

// Close disconnects from the broker and releases the serial port.
func (b *Bridge) Close() error {
	b.mq.Disconnect(250)
	return b.node.Close()
}

func run() (err error) {
	opts, prefix, err := brokerOptions(brokerURL)
	if err != nil {
		return err
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		glog.Warningf("broker connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		glog.Infof("connected to %s", brokerURL)
	})

	port, err := serial.OpenPort(&serial.Config{Name: portName, Baud: baud, ReadTimeout: time.Second})
	if err != nil {
		return err
	}
	node := console.NewClient(port)
	id, err := node.ID()
	if err != nil {
		return multierr.Append(fmt.Errorf("node on %s: %w", portName, err), node.Close())
	}
	glog.Infof("node on %s: devid %02X part %02X", portName, id[0], id[2])

	mq := paho.NewClient(opts)
	if tok := mq.Connect(); tok.Wait() && tok.Error() != nil {
		return multierr.Append(tok.Error(), node.Close())
	}

	b := &Bridge{node: node, mq: mq, prefix: prefix}
	defer func() { err = multierr.Append(err, b.Close()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return b.Run(ctx)
}

func main() {
	flag.Parse()
	defer glog.Flush()
	if err := run(); err != nil {
		glog.Errorf("accelbridge: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}
