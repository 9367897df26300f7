package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"market-stream/src/client"
	"market-stream/src/logger"
)

// -----------------------------------------------------------------------------
// feed - small console consumer for the gateway stream
//
// Connects, subscribes to the requested symbols and prints every event until
// interrupted. Useful for eyeballing a running gateway.
// -----------------------------------------------------------------------------

func main() {

	url := flag.String("url", "ws://localhost:8000/ws", "gateway websocket url")
	token := flag.String("token", "", "JWT access token")
	symbols := flag.String("symbols", "AAPL,BTC-USD", "comma separated symbols to subscribe")
	flag.Parse()

	if *token == "" {
		fmt.Println("Error: -token is required")
		os.Exit(1)
	}

	appLogger := logger.NewLogger("info", "feed")

	manager := client.NewSocketManager(client.Config{
		URL:           *url,
		Token:         *token,
		AutoReconnect: true,
	}, appLogger)

	wanted := strings.Split(*symbols, ",")
	manager.Subscribe(wanted...)

	if err := manager.Connect(); err != nil {
		appLogger.Warning("Initial connect failed, retrying: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case event := <-manager.Events():
			printEvent(event)
		case <-quit:
			fmt.Println("bye")
			manager.Disconnect()
			return
		}
	}
}

// -----------------------------------------------------------------------------

func printEvent(event client.Event) {
	switch event.Kind {
	case client.EventPriceUpdate:
		t := event.Tick
		fmt.Printf("%-8s %10.2f  %+6.2f%%  bid %.2f ask %.2f vol %.0f\n",
			t.Symbol, t.Price, t.ChangePercent, t.Bid, t.Ask, t.Volume)

	case client.EventAuthenticated:
		fmt.Printf("-- authenticated as user %d\n", event.UserID)

	case client.EventSubscribed:
		fmt.Printf("-- subscribed: %s\n", strings.Join(event.Symbols, ", "))

	case client.EventMarketAlert:
		a := event.Alert
		fmt.Printf("!! [%s] %s: %s (%s)\n", a.Severity, a.Symbol, a.Title, a.Message)

	case client.EventOrderExecuted:
		e := event.Execution
		fmt.Printf("** order %s %s: %s %.2f @ %.2f\n", e.OrderID, e.Symbol, e.Status, e.Quantity, e.Price)

	case client.EventError:
		fmt.Printf("ERR [%s] %s\n", event.Code, event.Message)

	case client.EventDisconnected:
		fmt.Printf("-- disconnected: %v\n", event.Err)

	case client.EventConnected:
		fmt.Println("-- connected")
	}
}
